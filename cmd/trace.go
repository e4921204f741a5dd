package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"settle/internal/backend"
	"settle/internal/debouncer"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/pipeline"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var traceFlat bool

var traceCmd = &cobra.Command{
	Use:   "trace [dir...]",
	Short: "Print settled events for directories until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defer logger.Sync()

		b, err := backend.New(backend.Kind(cfg.Backend), cfg.BackendOptions())
		if err != nil {
			return err
		}
		defer func() { _ = b.Close() }()

		engine, err := debouncer.New(cfg.DebouncerOptions()...)
		if err != nil {
			return err
		}
		defer engine.Stop()

		ig, err := pipeline.NewIgnore(cfg.IgnoreList)
		if err != nil {
			return err
		}

		for _, dir := range args {
			if err := engine.AddRoot(dir, !traceFlat); err != nil {
				return err
			}
			if err := b.Watch(dir, !traceFlat); err != nil {
				return err
			}
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		go func() { _ = engine.Serve(ctx) }()
		go func() {
			events, errCh := pipeline.Filter(b.Events(), ig), b.Errors()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-events:
					if !ok {
						return
					}
					_ = engine.IngestEvent(event)
				case err, ok := <-errCh:
					if !ok {
						errCh = nil
						continue
					}
					engine.ReportError(err)
				}
			}
		}()

		logger.Log.Info("tracing",
			zap.Strings("roots", args),
			zap.String("backend", cfg.Backend))

		for {
			select {
			case <-ctx.Done():
				return nil
			case batch, ok := <-engine.Batches():
				if !ok {
					return nil
				}
				for _, event := range batch.Events {
					fmt.Println(formatEvent(event))
				}
			case err, ok := <-engine.Errors():
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
			}
		}
	},
}

func formatEvent(event model.Event) string {
	var sb strings.Builder
	sb.WriteString(event.Time.Format("15:04:05.000"))
	fmt.Fprintf(&sb, " %-22s ", event.Kind)
	sb.WriteString(strings.Join(event.Paths, " -> "))
	if event.Flags.Has(model.FlagOngoing) {
		sb.WriteString(" (ongoing)")
	}
	if event.Info != "" {
		sb.WriteString(" [" + event.Info + "]")
	}
	return sb.String()
}

func init() {
	traceCmd.Flags().BoolVar(&traceFlat, "flat", false, "watch only the top level of each directory")
	rootCmd.AddCommand(traceCmd)
}
