package main

import (
	"errors"
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/definition"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <definition>...",
	Short: "Check questionnaire definitions for consistency",
	Long:  `Parses each definition and reports dangling edges, unknown options, cycles and duplicate "other" options.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed []error
		for _, path := range args {
			def, err := definition.LoadFile(path)
			if err == nil {
				err = def.Check()
			}
			if err != nil {
				failed = append(failed, fmt.Errorf("%s: %w", path, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d questions, graph is valid ✅\n", path, len(def.Questions))
		}
		return errors.Join(failed...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
