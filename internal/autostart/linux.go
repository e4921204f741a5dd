package autostart

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

const (
	unitName     = "settle.service"
	unitTemplate = `[Unit]
Description=Settle Filesystem Event Daemon

[Service]
ExecStart={{.ExecPath}} watch
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`
)

var unitTmpl = template.Must(template.New("unit").Parse(unitTemplate))

// LinuxAutoStarter manages a systemd user unit.
type LinuxAutoStarter struct {
	run runner
}

func (l *LinuxAutoStarter) unitPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".config", "systemd", "user")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, unitName), nil
}

func (l *LinuxAutoStarter) Install(execPath string) error {
	path, err := l.unitPath()
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create unit file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := unitTmpl.Execute(f, map[string]string{"ExecPath": execPath}); err != nil {
		return fmt.Errorf("failed to write unit file: %w", err)
	}

	cmds := [][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", unitName},
		{"systemctl", "--user", "start", unitName},
	}
	for _, args := range cmds {
		if err := l.run(args[0], args[1:]...); err != nil {
			return err
		}
	}

	return nil
}

func (l *LinuxAutoStarter) Uninstall() error {
	_ = l.run("systemctl", "--user", "stop", unitName)
	_ = l.run("systemctl", "--user", "disable", unitName)

	path, err := l.unitPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (l *LinuxAutoStarter) IsInstalled() (bool, error) {
	path, err := l.unitPath()
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	return err == nil, nil
}
