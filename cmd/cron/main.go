package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/labverse/sentinel-core/internal/app"
	"github.com/labverse/sentinel-core/internal/config"
	"github.com/labverse/sentinel-core/pkg/logger"
	"github.com/labverse/sentinel-core/pkg/models"
)

var log *logger.Logger

var rootCmd = &cobra.Command{
	Use:   "sentinel-cron",
	Short: "Headless scheduler for recurring backup downloads",
	Long: `sentinel-cron loads the stored schedule definitions, registers one cron
entry per active definition and starts the matching download when it fires.`,
	SilenceUsage: true,
	RunE:         runWorker,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one download to completion and exit",
	RunE:  runOnce,
}

var schedulesCmd = &cobra.Command{
	Use:   "schedules",
	Short: "List stored schedules with their next run",
	RunE:  listSchedules,
}

var (
	methodFlag  string
	timeoutFlag time.Duration
)

func init() {
	runCmd.Flags().StringVar(&methodFlag, "method", models.DefaultMethod.String(), "download method (sftp, ssh, cpanel)")
	runCmd.Flags().DurationVar(&timeoutFlag, "timeout", 10*time.Minute, "give up and stop the download after this long")

	rootCmd.AddCommand(runCmd, schedulesCmd)
}

func main() {
	logger.SetupLogger()
	log = logger.New("cron-service")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
}

func runWorker(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.New(ctx, config.Load(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.StartScheduler(ctx); err != nil {
		return err
	}

	log.Info().
		Int("jobs", len(a.Jobs.GetJobs())).
		Str("action", "cron_started").
		Msg("Cron service started")

	<-ctx.Done()

	log.Info().
		Str("action", "cron_stopping").
		Msg("Shutting down cron service")
	return nil
}

func runOnce(cmd *cobra.Command, args []string) error {
	id, err := models.ParseMethodID(methodFlag)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeoutFlag)
	defer cancel()

	a, err := app.New(ctx, config.Load(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().
		Str("method", id.String()).
		Str("action", "run_once").
		Msg("Running download once")

	a.Manager.Start(id)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Manager.Stop(id)
			return fmt.Errorf("download %s interrupted: %w", id, ctx.Err())
		case <-ticker.C:
			js := a.Board.Job(id)
			if js.Running {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%d%%)\n", id.Info().Label, js.LastResult, js.Progress)
			for _, line := range a.Board.LogLines() {
				log.Debug().Str("line", line).Msg("Console log")
			}
			return nil
		}
	}
}

func listSchedules(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.New(ctx, config.Load(), log)
	if err != nil {
		return err
	}
	defer a.Close()

	defs, err := a.Store.List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMETHOD\tTIME\tDAYS\tSTATE\tNEXT RUN")
	for _, def := range defs {
		next := "-"
		if def.NextRun != nil {
			next = def.NextRun.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%02d:%02d\t%s\t%s\t%s\n",
			def.ID, def.JobType, def.Hour, def.Minute, def.Days, def.State(), next)
	}
	return w.Flush()
}
