// Package autostart registers the settle daemon to start at login.
package autostart

import (
	"fmt"
	"os/exec"
	"runtime"
)

type AutoStarter interface {
	Install(execPath string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "windows":
		return &WindowsAutoStarter{run: runCommand}
	case "linux":
		return &LinuxAutoStarter{run: runCommand}
	default:
		return &UnsupportedAutoStarter{}
	}
}

type runner func(name string, args ...string) error

func runCommand(name string, args ...string) error {
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %s %v: %w\n%s", name, args, err, out)
	}
	return nil
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ string) error {
	return fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}
