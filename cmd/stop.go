package cmd

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var stopWait time.Duration

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(daemonURL("/stop"), "application/json", nil)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		deadline := time.Now().Add(stopWait)
		for time.Now().Before(deadline) {
			r, err := http.Get(daemonURL("/status"))
			if err != nil {
				fmt.Println("stopped")
				return nil
			}
			_ = r.Body.Close()
			time.Sleep(100 * time.Millisecond)
		}

		fmt.Println("stop requested")
		return nil
	},
}

func init() {
	stopCmd.Flags().DurationVar(&stopWait, "wait", 5*time.Second, "how long to wait for the daemon to exit")
	rootCmd.AddCommand(stopCmd)
}
