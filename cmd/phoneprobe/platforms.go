package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nao1215/phoneprobe/internal/config"
	"github.com/nao1215/phoneprobe/internal/platform"
)

// NewPlatformsCmd creates the platforms command.
func NewPlatformsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the searchable platforms",
		Long: `Platforms lists the built-in platforms with the settings of the
configuration file applied.`,
		Args: cobra.NoArgs,
		RunE: runPlatformsCmd,
	}
}

// runPlatformsCmd prints the platform registry.
func runPlatformsCmd(cmd *cobra.Command, _ []string) error {
	cfg := config.NewConfig()
	cfg.ConfigFilePath = getGlobalString(cmd, "config")
	if err := loadConfigFile(cfg); err != nil {
		return err
	}
	registry, err := cfg.File.Registry()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), platformsTable(registry.All()))
	return nil
}

// platformsTable renders platform descriptors as a table.
func platformsTable(descs []platform.Descriptor) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Platforms")
	t.AppendHeader(table.Row{"Name", "Fetcher", "Candidates", "Delay", "Retries", "Description"})
	for _, d := range descs {
		rules := make([]string, 0, len(d.Rules))
		for _, r := range d.Rules {
			rules = append(rules, r.RuleName())
		}
		candidates := strings.Join(rules, ", ")
		if d.SingleTarget {
			candidates = "full number"
		}
		delay := d.MinDelay.String()
		if d.Jitter > 0 {
			delay += " + " + d.Jitter.String()
		}
		t.AppendRow(table.Row{d.Name, string(d.Fetcher), candidates, delay, d.MaxRetries, d.Description})
	}
	return t.Render()
}
