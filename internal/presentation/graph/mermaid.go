package graph

import (
	"fmt"
	"strings"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	qgraph "github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// Overlay contains session data to visualize on the graph.
type Overlay struct {
	Answers domain.Answers
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a questionnaire. Root
// questions are chained in flow order with solid arrows; conditional edges
// are dotted and labeled with the option that shows the child.
// Shapes follow the input kind:
//   - choice: {Rhombus}
//   - time, numeric and slider: [/Parallelogram/]
//   - text: [Rectangle]
//
// With an overlay, answered questions, the current question and the
// questions hidden by the answers are styled.
func GenerateMermaid(questions []domain.Question, overlay *Overlay) string {
	g := qgraph.New(questions)
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, q := range g.Questions() {
		opener, closer := "[", "]"
		switch {
		case q.Type.IsChoice():
			opener, closer = "{", "}"
		case q.Type == domain.TypeTimePicker, q.Type == domain.TypeNumeric, q.Type == domain.TypeSlider:
			opener, closer = "[/", "/]"
		}
		label := escape(q.Text)
		if label == "" {
			label = q.ID
		}
		if q.Locked {
			label = "🔒 " + label
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(q.ID), opener, label, closer)
	}

	roots := g.RootIDs()
	for i := 1; i < len(roots); i++ {
		fmt.Fprintf(&sb, "    %s --> %s\n", sanitizeMermaidID(roots[i-1]), sanitizeMermaidID(roots[i]))
	}

	for _, q := range g.Questions() {
		for _, e := range q.Edges {
			optionLabel := e.OptionID
			if o, ok := q.Option(e.OptionID); ok && o.Text != "" {
				optionLabel = o.Text
			}
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n",
				sanitizeMermaidID(q.ID), escape(optionLabel), sanitizeMermaidID(e.ChildQuestionID))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef answered fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef hidden fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 4,color:#757575;\n")

		for _, q := range g.Questions() {
			id := sanitizeMermaidID(q.ID)
			switch {
			case q.ID == overlay.Current:
				fmt.Fprintf(&sb, "    class %s current;\n", id)
			case !g.Visible(q.ID, overlay.Answers):
				fmt.Fprintf(&sb, "    class %s hidden;\n", id)
			case overlay.Answers.Answered(q.ID):
				fmt.Fprintf(&sb, "    class %s answered;\n", id)
			}
		}
	}

	return sb.String()
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
