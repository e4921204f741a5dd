package cmd

import (
	"fmt"
	"os"
	"settle/internal/autostart"

	"github.com/spf13/cobra"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the daemon at login",
	RunE: func(cmd *cobra.Command, args []string) error {
		as := autostart.New()

		installed, err := as.IsInstalled()
		if err != nil {
			return err
		}
		if installed && !installForce {
			fmt.Println("settle daemon already registered, use --force to overwrite")
			return nil
		}

		execPath, err := os.Executable()
		if err != nil {
			return fmt.Errorf("failed to get executable path: %w", err)
		}

		if err := as.Install(execPath); err != nil {
			return err
		}

		fmt.Println("settle daemon registered for autostart")
		return nil
	},
}

func init() {
	installCmd.Flags().BoolVar(&installForce, "force", false, "overwrite an existing registration")
	rootCmd.AddCommand(installCmd)
}
