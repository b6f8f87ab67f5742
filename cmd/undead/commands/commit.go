package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/pkg/extract"
	"github.com/l3aro/go-undead/pkg/store"
)

// commitCmd represents the commit command
var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Commit pre-extracted YAML models as a revision",
	Long: `Commits models produced by an external extractor. Omitted models are
carried over from the current revision; code model files not listed are
carried over unless named by --deleted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		vmPath, _ := cmd.Flags().GetString("vm")
		bmPath, _ := cmd.Flags().GetString("bm")
		cmPath, _ := cmd.Flags().GetString("cm")
		deleted, _ := cmd.Flags().GetStringSlice("deleted")

		var rev store.Revision
		if vmPath != "" {
			if rev.VariabilityModel, err = extract.LoadVariabilityModel(vmPath); err != nil {
				return err
			}
		}
		if bmPath != "" {
			if rev.BuildModel, err = extract.LoadBuildModel(bmPath); err != nil {
				return err
			}
		}
		if cmPath != "" {
			if rev.Files, err = extract.LoadCodeModel(cmPath); err != nil {
				return err
			}
		}
		rev.Deleted = deleted

		st, err := openStore(cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.Commit(rev)
		if err != nil {
			return fmt.Errorf("committing revision: %w", err)
		}
		fmt.Printf("Committed revision %d\n", t.Revision)
		printTransition(t)
		return nil
	},
}

func init() {
	commitCmd.Flags().String("vm", "", "Variability model YAML file")
	commitCmd.Flags().String("bm", "", "Build model YAML file")
	commitCmd.Flags().String("cm", "", "Code model YAML file")
	commitCmd.Flags().StringSlice("deleted", nil, "Paths removed from the code model")
	RootCmd.AddCommand(commitCmd)
}
