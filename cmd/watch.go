package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"settle/internal/daemon"
	"settle/internal/db"
	"settle/internal/logger"
	"settle/internal/model"
	"settle/internal/repository"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the daemon using all the stored roots",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	defer logger.Sync()
	defer func() { _ = db.Close() }()

	rootRepo := repository.NewRootRepository()
	roots, err := rootRepo.GetAll()
	if err != nil {
		return err
	}

	manager, err := daemon.NewManager(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- manager.Serve(ctx) }()

	for _, root := range roots {
		if root.Status == model.RootStatusPaused {
			continue
		}

		if err := manager.StartRoot(root); err != nil {
			logger.Log.Warn("failed to start root",
				zap.Uint("id", root.ID),
				zap.String("path", root.Path),
				zap.Error(err))
			_ = rootRepo.UpdateStatus(root.ID, model.RootStatusFailed)
			continue
		}

		if root.Status != model.RootStatusActive {
			_ = rootRepo.UpdateStatus(root.ID, model.RootStatusActive)
		}
	}

	if len(roots) == 0 {
		logger.Log.Info("no roots configured, use 'settle roots add <dir>' to add one")
	}

	srv := daemon.NewServer(manager, cfg.DaemonPort)
	srv.Start()

	logger.Log.Info("settle daemon started",
		zap.Int("roots", len(roots)),
		zap.String("backend", cfg.Backend),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("port", cfg.DaemonPort))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	case err := <-done:
		logger.Log.Error("manager exited", zap.Error(err))
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	srvErr := srv.Stop(shutdownCtx)
	manager.StopAll()
	cancel()

	return errors.Join(srvErr, <-done)
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
