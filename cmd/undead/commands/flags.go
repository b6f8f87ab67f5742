package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/store"
)

// FlagsOutput is the JSON form of a revision's change flags.
type FlagsOutput struct {
	Revision         uint64              `json:"revision"`
	VariabilityModel []string            `json:"variability_model"`
	BuildModel       []string            `json:"build_model"`
	Files            map[string][]string `json:"files"`
}

// flagsCmd represents the flags command
var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Show the change flags of the current revision",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg, newLogger(cfg))
		if err != nil {
			return err
		}
		defer st.Close()

		t, err := st.ReadTransition()
		if err != nil {
			return fmt.Errorf("reading flags: %w", err)
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			out := FlagsOutput{
				Revision:         t.Revision,
				VariabilityModel: flagNames(t.VariabilityModel),
				BuildModel:       flagNames(t.BuildModel),
				Files:            make(map[string][]string),
			}
			for _, p := range t.ChangedFiles() {
				out.Files[p] = flagNames(t.Files[p])
			}
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Revision %d\n", t.Revision)
		printTransition(t)
		return nil
	},
}

func flagNames(f model.FlagSet) []string {
	names := []string{}
	for _, flag := range f.Flags() {
		names = append(names, flag.String())
	}
	return names
}

func printTransition(t *store.Transition) {
	fmt.Printf("  variability model: %s\n", t.VariabilityModel)
	fmt.Printf("  build model:       %s\n", t.BuildModel)
	for _, p := range t.ChangedFiles() {
		fmt.Printf("  %s: %s\n", p, t.Files[p])
	}
}

func init() {
	flagsCmd.Flags().BoolP("json", "j", false, "Output as JSON")
	RootCmd.AddCommand(flagsCmd)
}
