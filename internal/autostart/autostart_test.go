package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) run(name string, args ...string) error {
	r.calls = append(r.calls, name+" "+strings.Join(args, " "))
	return r.err
}

func TestLinuxInstallUninstall(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	rec := &recorder{}
	l := &LinuxAutoStarter{run: rec.run}

	installed, err := l.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)

	require.NoError(t, l.Install("/usr/local/bin/settle"))

	unit, err := os.ReadFile(filepath.Join(home, ".config", "systemd", "user", unitName))
	require.NoError(t, err)
	assert.Contains(t, string(unit), "ExecStart=/usr/local/bin/settle watch")
	assert.Contains(t, string(unit), "[Service]")
	assert.Equal(t, []string{
		"systemctl --user daemon-reload",
		"systemctl --user enable settle.service",
		"systemctl --user start settle.service",
	}, rec.calls)

	installed, err = l.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)

	require.NoError(t, l.Uninstall())
	installed, err = l.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)

	assert.NoError(t, l.Uninstall(), "uninstalling twice is fine")
}

func TestLinuxInstallCommandFailure(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	l := &LinuxAutoStarter{run: (&recorder{err: errors.New("no systemd")}).run}
	assert.Error(t, l.Install("/usr/local/bin/settle"))
}

func TestWindowsInstall(t *testing.T) {
	rec := &recorder{}
	w := &WindowsAutoStarter{run: rec.run}

	require.NoError(t, w.Install(`C:\settle.exe`))
	require.Len(t, rec.calls, 1)
	assert.Contains(t, rec.calls[0], `"C:\settle.exe" watch`)
	assert.Contains(t, rec.calls[0], "/SC ONLOGON")

	installed, err := w.IsInstalled()
	require.NoError(t, err)
	assert.True(t, installed)

	rec.err = errors.New("not found")
	installed, err = w.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}
