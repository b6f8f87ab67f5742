package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-undead/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize undead configuration interactively",
	Long: `Guides you through setting up undead configuration step by step.
Creates a config file with the analysis switches, worker count and output format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Analysis ===
	var switches []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Analysis options").
				Description("Optimizations skip work that cannot change the result").
				Options(
					huh.NewOption("Only variability related blocks", "only"),
					huh.NewOption("Build model optimization", "bm"),
					huh.NewOption("Code model optimization", "cm"),
				).
				Value(&switches),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	for _, s := range switches {
		switch s {
		case "only":
			cfg.VariabilityRelatedBlocksOnly = true
		case "bm":
			cfg.BuildModelOptimization = true
		case "cm":
			cfg.CodeModelOptimization = true
		}
	}

	// === SECTION 2: Execution ===
	threads := strconv.Itoa(cfg.Threads)
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Worker threads").
				Placeholder(threads).
				Validate(func(s string) error {
					n, err := strconv.Atoi(s)
					if err != nil || n < 1 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&threads),
			huh.NewInput().
				Title("Relevancy prefix").
				Description("Variables with this prefix make a block variability related").
				Placeholder(cfg.RelevancyPrefix).
				Value(&cfg.RelevancyPrefix),
			huh.NewSelect[string]().
				Title("Output format").
				Options(
					huh.NewOption("Text", config.FormatText),
					huh.NewOption("Table", config.FormatTable),
					huh.NewOption("CSV", config.FormatCSV),
					huh.NewOption("JSON", config.FormatJSON),
				).
				Value(&cfg.Format),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.Threads, _ = strconv.Atoi(threads)

	// === SECTION 3: Config Location ===
	var location string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.undead/config.yaml)", "project"),
					huh.NewOption("Global (~/.undead/config.yaml)", "global"),
				).
				Value(&location),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	configPath := config.ProjectConfigFilePath()
	if location == "global" {
		configPath = config.GlobalConfigFilePath()
	}

	if _, err := os.Stat(configPath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", configPath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", configPath)
	fmt.Printf("Only variability related blocks: %v\n", cfg.VariabilityRelatedBlocksOnly)
	fmt.Printf("Build model optimization: %v\n", cfg.BuildModelOptimization)
	fmt.Printf("Code model optimization: %v\n", cfg.CodeModelOptimization)
	fmt.Printf("Threads: %d\n", cfg.Threads)
	fmt.Printf("Relevancy prefix: %s\n", cfg.RelevancyPrefix)
	fmt.Printf("Format: %s\n", cfg.Format)
	fmt.Println("================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", configPath)
	return nil
}

func init() {
	RootCmd.AddCommand(initCmd)
}
