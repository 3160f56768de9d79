package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/config"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/db"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/logging"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/reminders"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/telemetry"
)

const runTimeout = 10 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Receipt retention cleanup for reminder-service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Permanently delete batch receipts past the retention period",
		RunE:  runCleanup,
	}
	runCmd.Flags().Duration("every", 0, "keep running and repeat the cleanup at this interval (e.g. 24h)")
	runCmd.Flags().Bool("scheduled", false, "keep running and repeat the cleanup every CLEANUP_INTERVAL")
	runCmd.Flags().Bool("dry-run", false, "only report how many receipts are eligible")

	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCleanup(cmd *cobra.Command, args []string) error {
	every, _ := cmd.Flags().GetDuration("every")
	scheduled, _ := cmd.Flags().GetBool("scheduled")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateDatabase(); err != nil {
		return err
	}
	if every <= 0 && scheduled {
		every = cfg.CleanupInterval
	}

	logger := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
		Service:     cfg.ServiceName + "-cleanup",
	})
	logger.Info().Dur("retention", cfg.ReceiptRetention).Msg("receipt cleanup job starting")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(rootCtx, db.Config{DSN: cfg.PostgresDSN(), Name: cfg.DBName, MaxOpenConns: 2, MaxIdleConns: 1}, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		return err
	}
	svc := reminders.NewCleanupService(reminders.NewRepository(database), cfg.ReceiptRetention, metrics, logger)

	if every <= 0 {
		return runOnce(rootCtx, svc, dryRun, logger)
	}

	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(every).Do(func() {
		if err := runOnce(rootCtx, svc, dryRun, logger); err != nil {
			logger.Error().Err(err).Msg("cleanup run failed")
		}
	}); err != nil {
		return err
	}
	scheduler.StartAsync()
	logger.Info().Dur("interval", every).Msg("cleanup scheduled")

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping cleanup scheduler")
	scheduler.Stop()
	return nil
}

func runOnce(ctx context.Context, svc *reminders.CleanupService, dryRun bool, logger zerolog.Logger) error {
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	count, err := svc.ExpiredReceiptsCount(runCtx)
	if err != nil {
		return err
	}
	logger.Info().Int("eligible", count).Msg("receipts eligible for permanent deletion")
	if count == 0 || dryRun {
		return nil
	}

	start := time.Now()
	deleted, err := svc.CleanupExpiredReceipts(runCtx)
	if err != nil {
		return err
	}
	logger.Info().Int64("deleted", deleted).Dur("took", time.Since(start)).Msg("cleanup completed")
	return nil
}
