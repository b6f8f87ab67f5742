package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/relevancy"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <path>",
	Short: "Show the blocks of a stored file and their relevance",
	Args:  cobra.ExactArgs(1),
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

		files, err := st.ReadCurrentCodeModel()
		if err != nil {
			return fmt.Errorf("reading code model: %w", err)
		}
		var file *model.SourceFile
		for _, f := range files {
			if f.Path == args[0] {
				file = f
				break
			}
		}
		if file == nil {
			return fmt.Errorf("file %s is not in the current revision", args[0])
		}

		flags, err := st.CodeModelFlags(file.Path)
		if err != nil {
			return fmt.Errorf("reading flags: %w", err)
		}

		filter := relevancy.New(cfg.RelevancyPrefix)
		relevant := make(map[int]bool)
		for _, v := range filter.Project(file) {
			relevant[v.Index] = true
		}

		fmt.Printf("=== %s %s ===\n", file.Path, flags)
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Lines", "Condition", "Presence Condition", "Relevant"})
		table.SetBorder(false)
		table.SetAutoWrapText(false)
		file.Walk(func(i int, e *model.Element) {
			mark := ""
			if relevant[i] {
				mark = "yes"
			}
			table.Append([]string{
				lineRange(e.StartLine, e.EndLine),
				strings.Repeat("  ", file.Depth(i)) + e.Condition.String(),
				e.PresenceCondition.String(),
				mark,
			})
		})
		table.SetFooter([]string{"", "", fmt.Sprintf("Blocks %d", file.Len()), fmt.Sprintf("Relevant %d", len(relevant))})
		table.Render()
		return nil
	},
}

func lineRange(start, end int) string {
	if end == 0 {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func init() {
	RootCmd.AddCommand(inspectCmd)
}
