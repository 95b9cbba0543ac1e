package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingoxa/internal/config"
	"github.com/MrWong99/lingoxa/internal/scenario"
)

func newScenariosCmd() *cobra.Command {
	var category, kind string
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the practice scenarios",
		Long:  "Lists the built-in scenarios and those defined in the config file.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			opts := scenario.ListOptions{Category: scenario.Category(category), Kind: scenario.Kind(kind)}
			if category != "" && !opts.Category.IsValid() {
				return fmt.Errorf("unknown category %q", category)
			}
			if kind != "" && !opts.Kind.IsValid() {
				return fmt.Errorf("unknown kind %q", kind)
			}
			catalog, err := catalogFor(cfg)
			if err != nil {
				return err
			}
			printScenarios(cmd.OutOrStdout(), catalog.List(opts))
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list this category (daily, travel, business, listening, custom)")
	cmd.Flags().StringVar(&kind, "kind", "", "only list this kind (conversation, listening)")
	return cmd
}

// catalogFor returns the built-in catalog extended with the config's
// scenarios.
func catalogFor(cfg *config.Config) (*scenario.Catalog, error) {
	catalog, err := scenario.Builtin()
	if err != nil {
		return nil, err
	}
	for _, s := range cfg.Scenarios {
		if _, err := catalog.Add(s); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

func printScenarios(out io.Writer, list []scenario.Scenario) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tDIFFICULTY\tCATEGORY\tKIND")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", s.ID, s.Emoji, s.Title, s.Difficulty, s.Category, s.Kind)
	}
	w.Flush()
}
