package main

import (
	"encoding/json"
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/definition"
	"github.com/NicklasHM/P3-sleep-diary/internal/presentation/graph"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <definition>",
	Short: "Export the question graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of the root flow and the conditional
edges. With --answers the visible, answered and current questions are marked.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		def, err := definition.LoadFile(args[0])
		if err != nil {
			return err
		}
		lang, _ := cmd.Flags().GetString("language")
		locale := domain.ParseLocale(lang)
		qs := make([]domain.Question, 0, len(def.Questions))
		for _, q := range def.Questions {
			qs = append(qs, domain.Localize(q, locale))
		}

		var overlay *graph.Overlay
		raw, _ := cmd.Flags().GetString("answers")
		current, _ := cmd.Flags().GetString("current")
		if raw != "" || current != "" {
			overlay = &graph.Overlay{Answers: domain.Answers{}, Current: current}
			if raw != "" {
				if err := json.Unmarshal([]byte(raw), &overlay.Answers); err != nil {
					return fmt.Errorf("--answers must be a JSON object: %w", err)
				}
			}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(qs, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("answers", "", `Answers as JSON, e.g. '{"q1": "med_yes"}'`)
	graphCmd.Flags().String("current", "", "Question to mark as current")
	graphCmd.Flags().String("language", "da", "Language of the texts: da or en")
}
