package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"settle/internal/model"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/status"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Engine model.EngineSnapshot `json:"engine"`
			Roots  []model.RootSnapshot `json:"roots"`
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode status response: %w", err)
		}

		engine := result.Engine
		lastFlush := "-"
		if engine.LastFlush != nil {
			lastFlush = engine.LastFlush.Format("2006-01-02 15:04:05")
		}

		fmt.Printf("backend: %s  uptime: %s\n", engine.Backend, time.Since(engine.StartedAt).Round(time.Second))
		fmt.Printf("batches: %d  events: %d  pending paths: %d  last flush: %s\n",
			engine.Batches, engine.Events, engine.PendingPaths, lastFlush)
		if engine.Errors > 0 {
			fmt.Printf("errors: %d  last: %s\n", engine.Errors, engine.LastError)
		}

		if len(result.Roots) == 0 {
			fmt.Println("no active roots")
			return nil
		}

		fmt.Printf("\n%-6s %-10s %-9s %s\n", "ROOT", "STATUS", "RECURSIVE", "PATH")
		for _, snap := range result.Roots {
			fmt.Printf("%-6d %-10s %-9t %s\n", snap.RootID, snap.Status, snap.Recursive, snap.Path)
			fmt.Printf("       uptime: %s\n", time.Since(snap.StartedAt).Round(time.Second))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
