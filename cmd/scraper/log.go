package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shanehull/bottlescraper/internal/config"
	"github.com/shanehull/bottlescraper/internal/runlog"
)

var tailLines int

var logCmd = &cobra.Command{
	Use:   "log [--lines N]",
	Short: "Print the most recent run log entries.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogging()

		cfg, err := config.Load(envFile)
		if err != nil {
			return err
		}

		lines, err := runlog.Lines(cfg.LogFile)
		if err != nil {
			return err
		}
		if tailLines > 0 && len(lines) > tailLines {
			lines = lines[len(lines)-tailLines:]
		}
		for _, line := range lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return nil
	},
}

func init() {
	logCmd.Flags().IntVarP(&tailLines, "lines", "n", 20, "Number of entries to show (0 = all)")
}
