package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"settle/internal/model"
	"strings"

	"github.com/spf13/cobra"
)

var rootsFlat bool

var rootsCmd = &cobra.Command{
	Use:   "roots",
	Short: "Manage watched roots",
}

var rootsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(daemonURL("/roots"))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		var result struct {
			Roots   []model.Root         `json:"roots"`
			Running []model.RootSnapshot `json:"running"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("failed to decode roots response: %w", err)
		}

		if len(result.Roots) == 0 {
			fmt.Println("no roots configured")
			return nil
		}

		running := make(map[uint]model.RootSnapshot)
		for _, snap := range result.Running {
			running[snap.RootID] = snap
		}

		fmt.Printf("%-4s %-8s %-9s %-8s %s\n", "ID", "STATUS", "RECURSIVE", "RUNNING", "PATH")
		for _, r := range result.Roots {
			_, ok := running[r.ID]
			fmt.Printf("%-4d %-8s %-9t %-8t %s\n", r.ID, r.Status, r.Recursive, ok, r.Path)
		}

		return nil
	},
}

var rootsAddCmd = &cobra.Command{
	Use:   "add [dir]",
	Short: "Watch a new root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}

		body, err := json.Marshal(map[string]any{
			"path":      path,
			"recursive": !rootsFlat,
		})
		if err != nil {
			return err
		}

		resp, err := http.Post(daemonURL("/roots"), "application/json", strings.NewReader(string(body)))
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusCreated {
			return responseError(resp)
		}

		var root model.Root
		if err := json.NewDecoder(resp.Body).Decode(&root); err != nil {
			return err
		}
		fmt.Printf("root added: id=%d path=%s recursive=%t\n", root.ID, root.Path, root.Recursive)
		return nil
	},
}

var rootsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Stop watching a root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodDelete, daemonURL("/roots/"+args[0]), nil)
		if err != nil {
			return err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("daemon not running: %w", err)
		}

		defer func(Body io.ReadCloser) {
			_ = Body.Close()
		}(resp.Body)

		if resp.StatusCode != http.StatusNoContent {
			return responseError(resp)
		}

		fmt.Printf("root %s removed\n", args[0])
		return nil
	},
}

func rootAction(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " [id]",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := http.Post(daemonURL("/roots/"+args[0]+"/"+action), "application/json", nil)
			if err != nil {
				return fmt.Errorf("daemon not running: %w", err)
			}

			defer func(Body io.ReadCloser) {
				_ = Body.Close()
			}(resp.Body)

			if resp.StatusCode != http.StatusOK {
				return responseError(resp)
			}

			fmt.Printf("root %s %sd\n", args[0], action)
			return nil
		},
	}
}

func responseError(resp *http.Response) error {
	var result map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&result)
	if msg := result["error"]; msg != "" {
		return fmt.Errorf("daemon: %s", msg)
	}
	return fmt.Errorf("daemon: %s", resp.Status)
}

func init() {
	rootsAddCmd.Flags().BoolVar(&rootsFlat, "flat", false, "watch only the top level of the directory")
	rootsCmd.AddCommand(rootsListCmd, rootsAddCmd, rootsRemoveCmd, rootAction("pause"), rootAction("resume"))
	rootCmd.AddCommand(rootsCmd)
}
