package graph_test

import (
	"strings"
	"testing"

	"github.com/NicklasHM/P3-sleep-diary/internal/presentation/graph"
	"github.com/NicklasHM/P3-sleep-diary/internal/testutils"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name      string
		questions []domain.Question
		contains  []string
		excludes  []string
	}{
		{
			name: "Shapes",
			questions: []domain.Question{
				{ID: "q1", Order: 1, Type: domain.TypeSingleChoice, Text: "Gate"},
				{ID: "q2", Order: 2, Type: domain.TypeTimePicker, Text: "Time"},
				{ID: "q3", Order: 3, Type: domain.TypeText, Text: "Notes"},
			},
			contains: []string{
				`q1{"Gate"}`,
				`q2[/"Time"/]`,
				`q3["Notes"]`,
			},
		},
		{
			name: "Root Flow",
			questions: []domain.Question{
				{ID: "b", Order: 2, Type: domain.TypeText},
				{ID: "a", Order: 1, Type: domain.TypeText},
			},
			contains: []string{"a --> b"},
			excludes: []string{"b --> a"},
		},
		{
			name: "Conditional Edge Label",
			questions: []domain.Question{
				{
					ID: "q1", Order: 1, Type: domain.TypeSingleChoice, Text: "Gate",
					Options: []domain.Option{{ID: "yes", Text: `Say "yes"`}},
					Edges:   []domain.Edge{{OptionID: "yes", ChildQuestionID: "q101", Order: 1}},
				},
				{ID: "q101", Order: 101, Type: domain.TypeText, Text: "Child"},
			},
			contains: []string{`q1 -. "Say 'yes'" .-> q101`},
			excludes: []string{"q1 --> q101"},
		},
		{
			name: "ID Sanitization",
			questions: []domain.Question{
				{ID: "4f0c-a1.b/c", Order: 1, Type: domain.TypeText, Text: "x"},
			},
			contains: []string{`4f0c_a1_b_c["x"]`},
		},
		{
			name: "Locked",
			questions: []domain.Question{
				{ID: "q1", Order: 1, Type: domain.TypeText, Text: "Fixed", Locked: true},
			},
			contains: []string{`q1["🔒 Fixed"]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.questions, nil)
			assert.True(t, strings.HasPrefix(got, "graph TD\n"))
			for _, s := range tt.contains {
				assert.Contains(t, got, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, got, s)
			}
			assert.NotContains(t, got, "classDef")
		})
	}
}

func TestGenerateMermaidOverlay(t *testing.T) {
	answers := domain.Answers{"q1": "med_no", "q2": "Læste", "q6": "wake_no"}
	got := graph.GenerateMermaid(testutils.MorningQuestions(), &graph.Overlay{Answers: answers, Current: "q3"})

	assert.Contains(t, got, "classDef answered")
	assert.Contains(t, got, "class q1 answered;")
	assert.Contains(t, got, "class q2 answered;")
	assert.Contains(t, got, "class q3 current;")
	assert.Contains(t, got, "class q101 hidden;")
	assert.Contains(t, got, "class q601 hidden;")
	assert.NotContains(t, got, "class q602 hidden;")
	assert.NotContains(t, got, "class q4 ")
}
