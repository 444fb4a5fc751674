package main

import (
	"fmt"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sleepdiary",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "sleepdiary version %s\n", sleepdiary.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
