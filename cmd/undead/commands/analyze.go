package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/internal/config"
	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/metrics"
	"github.com/l3aro/go-undead/pkg/engine"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/report"
	"github.com/l3aro/go-undead/pkg/store"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Report dead blocks of the current revision",
	Long: `Runs the dead code analysis over the current revision of the model store
and prints every conditional block that no valid configuration selects.`,
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

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		metricsFile, _ := cmd.Flags().GetString("metrics-file")
		_, err = analyze(ctx, cfg, st, logger, os.Stdout, metricsFile)
		return err
	},
}

// applyAnalyzeFlags lets command line flags override the configuration.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.Threads, _ = flags.GetInt("threads")
	}
	if flags.Changed("only-variability") {
		cfg.VariabilityRelatedBlocksOnly, _ = flags.GetBool("only-variability")
	}
	if flags.Changed("bm-opt") {
		cfg.BuildModelOptimization, _ = flags.GetBool("bm-opt")
	}
	if flags.Changed("cm-opt") {
		cfg.CodeModelOptimization, _ = flags.GetBool("cm-opt")
	}
	if flags.Changed("format") {
		cfg.Format, _ = flags.GetString("format")
	}
	if flags.Changed("solver-timeout") {
		cfg.SolverTimeout, _ = flags.GetDuration("solver-timeout")
	}
	return cfg.Validate()
}

// analyze runs the engine over the store head and writes the report to w.
func analyze(ctx context.Context, cfg *config.Config, st *store.Store, logger log.Logger, w io.Writer, metricsFile string) (*engine.Summary, error) {
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	eng, err := engine.New(st, cfg.EngineOptions(), engine.WithLogger(logger), engine.WithMetrics(m))
	if err != nil {
		return nil, err
	}

	var blocks []model.DeadCodeBlock
	summary, err := eng.Run(ctx, func(b model.DeadCodeBlock) {
		blocks = append(blocks, b)
	})
	if err != nil {
		return nil, err
	}

	// counters are per run so watch cycles report their own rate
	stats := st.CacheStats()
	logger.Debug("previous file cache",
		"entries", stats.Length,
		"hits", stats.HitCount,
		"misses", stats.MissCount,
		"hit_rate", stats.HitRate())
	st.ResetCacheStats()

	if err := report.Write(w, format, blocks); err != nil {
		return nil, fmt.Errorf("writing report: %w", err)
	}

	if metricsFile != "" {
		if err := m.WriteFile(metricsFile); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func addAnalyzeFlags(cmd *cobra.Command) {
	cmd.Flags().IntP("threads", "t", 2, "Number of analysis workers")
	cmd.Flags().Bool("only-variability", false, "Only check variability related blocks")
	cmd.Flags().Bool("bm-opt", false, "Enable the build model optimization")
	cmd.Flags().Bool("cm-opt", false, "Enable the code model optimization")
	cmd.Flags().StringP("format", "f", "text", "Output format: text, csv, json or table")
	cmd.Flags().Duration("solver-timeout", 0, "Bound for a single satisfiability query (0 = unbounded)")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics of the run to this file")
}

func init() {
	addAnalyzeFlags(analyzeCmd)
	RootCmd.AddCommand(analyzeCmd)
}
