package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// Seed imports a questionnaire and its questions as given, identifiers and
// edges included, replacing rows with the same IDs. The graph must be final.
// Everything is written in one transaction.
func (s *Store) Seed(ctx context.Context, qn domain.Questionnaire, questions ...domain.Question) error {
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

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO questionnaires (id, type, name) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET type = excluded.type, name = excluded.name`,
			qn.ID, string(qn.Type), qn.Name,
		); err != nil {
			return domain.Transient("sqlite: put questionnaire", err)
		}
		// edges reference their children, so all rows go in before any edge
		for _, q := range questions {
			c := q.Clone()
			c.QuestionnaireID = qn.ID
			if err := writeQuestion(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, q := range questions {
			if err := writeEdges(ctx, tx, q); err != nil {
				return err
			}
		}
		return nil
	})
}
