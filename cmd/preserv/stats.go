package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jamesainslie/preserv/pkg/preserv/manifest"
	"github.com/jamesainslie/preserv/pkg/preserv/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show manifest statistics",
	Long:  `Display entry count, total archived bytes, and manifest age.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}

	if !a.store.Exists() {
		return fmt.Errorf("no manifest at %s, run 'preserv generate' first", a.store.Path())
	}

	m, err := a.store.Load()
	if err != nil {
		return err
	}

	stats := manifest.ComputeStats(m)

	if viper.GetString("output") == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	fmt.Printf("Manifest: %s\n", a.store.Path())
	fmt.Printf("  entries:     %d\n", stats.Entries)
	fmt.Printf("  total size:  %s\n", types.FormatSize(stats.TotalBytes))
	if !stats.LastGenerated.IsZero() {
		fmt.Printf("  generated:   %s\n", stats.LastGenerated.Local().Format("2006-01-02 15:04:05"))
	}

	return nil
}
