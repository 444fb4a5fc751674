package main

import (
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/definition"
	"github.com/NicklasHM/P3-sleep-diary/internal/cli"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <definition>...",
	Short: "Write questionnaire definitions to the sqlite store",
	Long:  `Validates each definition and writes it to the sqlite database, replacing questions with the same IDs.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		defs := make([]definition.Definition, 0, len(args))
		for _, path := range args {
			def, err := definition.LoadFile(path)
			if err != nil {
				return err
			}
			if err := def.Check(); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			defs = append(defs, def)
		}
		ctx, stop := signalContext()
		defer stop()
		if err := cli.Import(ctx, cfg, logger, defs...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d questionnaire(s) into %s\n", len(defs), cfg.Store.Dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
