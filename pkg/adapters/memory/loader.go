package memory

import (
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// NewFromQuestions creates a Store holding one questionnaire and its
// questions as given, identifiers and edges included. The graph must be
// final: no temporary identifiers, cycles or dangling edges.
func NewFromQuestions(qn domain.Questionnaire, questions ...domain.Question) (*Store, error) {
	s := NewStore()
	if err := s.Seed(qn, questions...); err != nil {
		return nil, err
	}
	return s, nil
}

// Seed adds a questionnaire and its questions to the store, replacing any
// question with the same ID.
func (s *Store) Seed(qn domain.Questionnaire, questions ...domain.Question) error {
	if qn.ID == "" {
		return fmt.Errorf("questionnaire missing ID")
	}
	for _, q := range questions {
		if q.ID == "" {
			return fmt.Errorf("question %q missing ID", q.Text)
		}
	}
	if err := graph.New(questions).Finalize(); err != nil {
		return fmt.Errorf("seed %s: %w", qn.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[qn.ID] = qn
	for _, q := range questions {
		c := q.Clone()
		c.QuestionnaireID = qn.ID
		s.questions[c.ID] = c
	}
	return nil
}
