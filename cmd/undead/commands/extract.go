package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/internal/ingest"
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract changed sources and models and commit a revision",
	Long: `Scans the source tree, re-extracts the C files and model files whose
content changed since the last extraction and commits the result as a new
revision of the model store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		in, err := ingestInputs(cmd, cfg.Threads)
		if err != nil {
			return err
		}

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

		var res *ingest.Result
		err = spin(cfg, "Extracting models...", func() error {
			res, err = ingest.Run(ctx, st, tracker, in, logger)
			return err
		})
		if err != nil {
			return err
		}
		if res.UpToDate() {
			fmt.Println("Models are up to date.")
			return nil
		}
		fmt.Printf("Committed revision %d: %d changed, %d removed\n",
			res.Transition.Revision, len(res.Changed), len(res.Removed))
		return nil
	},
}

func ingestInputs(cmd *cobra.Command, workers int) (ingest.Inputs, error) {
	source, _ := cmd.Flags().GetString("source")
	vm, _ := cmd.Flags().GetString("vm")
	bm, _ := cmd.Flags().GetString("bm")
	force, _ := cmd.Flags().GetBool("force")
	if source == "" && vm == "" && bm == "" {
		return ingest.Inputs{}, fmt.Errorf("nothing to extract: set --source, --vm or --bm")
	}
	return ingest.Inputs{
		SourceDir:        source,
		VariabilityModel: vm,
		BuildModel:       bm,
		Workers:          workers,
		Force:            force,
	}, nil
}

func addIngestFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("source", "s", "", "Root directory of the C sources")
	cmd.Flags().String("vm", "", "Variability model YAML file")
	cmd.Flags().String("bm", "", "Build model YAML file")
	cmd.Flags().Bool("force", false, "Re-extract every input")
}

func init() {
	addIngestFlags(extractCmd)
	RootCmd.AddCommand(extractCmd)
}
