package autostart

import "fmt"

const taskName = "SettleDaemon"

// WindowsAutoStarter manages a logon task in the task scheduler.
type WindowsAutoStarter struct {
	run runner
}

func (w *WindowsAutoStarter) Install(execPath string) error {
	err := w.run("schtasks", "/create",
		"/TN", taskName,
		"/TR", fmt.Sprintf(`"%s" watch`, execPath),
		"/SC", "ONLOGON",
		"/F")
	if err != nil {
		return fmt.Errorf("failed to register task: %w", err)
	}

	return nil
}

func (w *WindowsAutoStarter) Uninstall() error {
	if err := w.run("schtasks", "/DELETE", "/TN", taskName, "/F"); err != nil {
		return fmt.Errorf("failed to remove task: %w", err)
	}

	return nil
}

func (w *WindowsAutoStarter) IsInstalled() (bool, error) {
	return w.run("schtasks", "/Query", "/TN", taskName) == nil, nil
}
