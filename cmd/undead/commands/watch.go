package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/internal/ingest"
	"github.com/l3aro/go-undead/pkg/watch"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-extract and re-analyze on every change",
	Long: `Extracts and analyzes once, then watches the source tree and the model
files. Every batch of changes triggers an incremental extraction, and a new
analysis when a revision was committed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := applyAnalyzeFlags(cmd, cfg); err != nil {
			return err
		}
		logger := newLogger(cfg)

		in, err := ingestInputs(cmd, cfg.Threads)
		if err != nil {
			return err
		}
		quiet, _ := cmd.Flags().GetDuration("quiet")
		maxWait, _ := cmd.Flags().GetDuration("max-wait")
		metricsFile, _ := cmd.Flags().GetString("metrics-file")

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		tracker, err := openTracker(cfg)
		if err != nil {
			return err
		}

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		var models []string
		for _, f := range []string{in.VariabilityModel, in.BuildModel} {
			if f != "" {
				models = append(models, f)
			}
		}
		w, err := watch.New(in.SourceDir, models, watch.WithDebounce(quiet, maxWait), watch.WithLogger(logger))
		if err != nil {
			return err
		}
		events := w.Run(ctx)

		cycle := func() {
			res, err := ingest.Run(ctx, st, tracker, in, logger)
			if err != nil {
				logger.Error("extraction failed", "error", err)
				return
			}
			if res.UpToDate() {
				return
			}
			if _, err := analyze(ctx, cfg, st, logger, os.Stdout, metricsFile); err != nil {
				logger.Error("analysis failed", "error", err)
			}
		}

		cycle()
		in.Force = false
		logger.Info("watching for changes", "source", in.SourceDir)
		for ev := range events {
			logger.Debug("changes detected", "paths", len(ev.Paths))
			fmt.Fprintf(os.Stderr, "--- %s: %d change(s)\n", ev.Timestamp.Format(time.TimeOnly), len(ev.Paths))
			cycle()
		}
		return nil
	},
}

func init() {
	addIngestFlags(watchCmd)
	addAnalyzeFlags(watchCmd)
	watchCmd.Flags().Duration("quiet", watch.DefaultQuiet, "Quiet period before a batch of changes is processed")
	watchCmd.Flags().Duration("max-wait", watch.DefaultMaxWait, "Maximum delay of a batch of changes")
	RootCmd.AddCommand(watchCmd)
}
