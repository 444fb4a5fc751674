// Package sqlite implements the question, questionnaire and response stores
// on SQLite (modernc.org/sqlite, no cgo).
//
// Edge mutations load the questionnaire graph inside a transaction, apply
// the shared pkg/graph mutation and write the changed rows back, so the
// store enforces the same invariants as the in-memory adapter. Unlike the
// memory store it implements ports.EdgeReplacer.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultFile is the database file name inside the store directory.
const DefaultFile = "sleepdiary.db"

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Store implements ports.QuestionStore, ports.EdgeReplacer,
// ports.QuestionnaireStore and ports.ResponseStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Open opens (and creates if needed) the database at path, enables WAL mode
// and runs the migrations.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlite: create data dir: %w", err)
	}
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open database: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between our own transactions
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS questionnaires (
			id   TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS questions (
			id               TEXT PRIMARY KEY,
			questionnaire_id TEXT    NOT NULL,
			type             TEXT    NOT NULL,
			text             TEXT    NOT NULL,
			ord              INTEGER NOT NULL DEFAULT 0,
			locked           INTEGER NOT NULL DEFAULT 0,
			body             TEXT    NOT NULL DEFAULT '{}',
			deleted_at       TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_questions_qn ON questions(questionnaire_id, ord);

		CREATE TABLE IF NOT EXISTS edges (
			question_id TEXT    NOT NULL REFERENCES questions(id),
			option_id   TEXT    NOT NULL,
			child_id    TEXT    NOT NULL REFERENCES questions(id),
			ord         INTEGER NOT NULL,
			PRIMARY KEY (question_id, option_id, child_id)
		);
		CREATE INDEX IF NOT EXISTS idx_edges_child ON edges(child_id);

		CREATE TABLE IF NOT EXISTS responses (
			id               TEXT PRIMARY KEY,
			questionnaire_id TEXT NOT NULL,
			respondent_id    TEXT NOT NULL,
			answers          TEXT NOT NULL,
			created_at       TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_responses_qn ON responses(questionnaire_id, respondent_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// body holds the question fields that are never queried on.
type body struct {
	Translations map[domain.Locale]string `json:"translations,omitempty"`
	Options      []domain.Option          `json:"options,omitempty"`
	MinLength    *int                     `json:"minLength,omitempty"`
	MaxLength    *int                     `json:"maxLength,omitempty"`
	MinValue     *float64                 `json:"minValue,omitempty"`
	MaxValue     *float64                 `json:"maxValue,omitempty"`
	MinTime      string                   `json:"minTime,omitempty"`
	MaxTime      string                   `json:"maxTime,omitempty"`
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const questionColumns = `id, questionnaire_id, type, text, ord, locked, body, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(r rowScanner) (domain.Question, error) {
	var (
		q        domain.Question
		typ      string
		locked   int
		raw      string
		archived sql.NullString
	)
	if err := r.Scan(&q.ID, &q.QuestionnaireID, &typ, &q.Text, &q.Order, &locked, &raw, &archived); err != nil {
		return domain.Question{}, err
	}
	q.Type = domain.QuestionType(typ)
	q.Locked = locked != 0
	var b body
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return domain.Question{}, fmt.Errorf("decode question %s: %w", q.ID, err)
	}
	q.Translations = b.Translations
	q.Options = b.Options
	q.MinLength, q.MaxLength = b.MinLength, b.MaxLength
	q.MinValue, q.MaxValue = b.MinValue, b.MaxValue
	q.MinTime, q.MaxTime = b.MinTime, b.MaxTime
	if archived.Valid {
		t, err := time.Parse(timeLayout, archived.String)
		if err != nil {
			return domain.Question{}, fmt.Errorf("decode question %s: %w", q.ID, err)
		}
		q.DeletedAt = &t
	}
	return q, nil
}

// loadEdges attaches the stored edges to qs, keyed by question ID.
func loadEdges(ctx context.Context, db queryer, qs map[string]*domain.Question) error {
	if len(qs) == 0 {
		return nil
	}
	rows, err := db.QueryContext(ctx, `SELECT question_id, option_id, child_id, ord FROM edges ORDER BY rowid`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var parentID string
		var e domain.Edge
		if err := rows.Scan(&parentID, &e.OptionID, &e.ChildQuestionID, &e.Order); err != nil {
			return err
		}
		if q, ok := qs[parentID]; ok {
			q.Edges = append(q.Edges, e)
		}
	}
	return rows.Err()
}

func (s *Store) lookup(ctx context.Context, db queryer, id string, includeArchived bool) (domain.Question, error) {
	if domain.IsTempID(id) {
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrTempIDRejected)
	}
	rows, err := db.QueryContext(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = ?`, id)
	if err != nil {
		return domain.Question{}, domain.Transient("sqlite: get question", err)
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return domain.Question{}, domain.Transient("sqlite: get question", err)
		}
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
	}
	q, err := scanQuestion(rows)
	if err != nil {
		return domain.Question{}, err
	}
	rows.Close()
	if q.Archived() && !includeArchived {
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
	}

	edges, err := db.QueryContext(ctx, `SELECT option_id, child_id, ord FROM edges WHERE question_id = ? ORDER BY rowid`, id)
	if err != nil {
		return domain.Question{}, domain.Transient("sqlite: get edges", err)
	}
	defer edges.Close()
	for edges.Next() {
		var e domain.Edge
		if err := edges.Scan(&e.OptionID, &e.ChildQuestionID, &e.Order); err != nil {
			return domain.Question{}, domain.Transient("sqlite: get edges", err)
		}
		q.Edges = append(q.Edges, e)
	}
	if err := edges.Err(); err != nil {
		return domain.Question{}, domain.Transient("sqlite: get edges", err)
	}
	return q, nil
}

func (s *Store) list(ctx context.Context, db queryer, questionnaireID string, includeArchived bool) ([]domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE questionnaire_id = ?`
	if !includeArchived {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY ord, id`
	rows, err := db.QueryContext(ctx, query, questionnaireID)
	if err != nil {
		return nil, domain.Transient("sqlite: list questions", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Transient("sqlite: list questions", err)
	}
	rows.Close()

	byID := make(map[string]*domain.Question, len(out))
	for i := range out {
		byID[out[i].ID] = &out[i]
	}
	if err := loadEdges(ctx, db, byID); err != nil {
		return nil, domain.Transient("sqlite: list edges", err)
	}
	for i := range out {
		out[i].Renumber()
	}
	return out, nil
}

func writeQuestion(ctx context.Context, db queryer, q domain.Question) error {
	raw, err := json.Marshal(body{
		Translations: q.Translations,
		Options:      q.Options,
		MinLength:    q.MinLength,
		MaxLength:    q.MaxLength,
		MinValue:     q.MinValue,
		MaxValue:     q.MaxValue,
		MinTime:      q.MinTime,
		MaxTime:      q.MaxTime,
	})
	if err != nil {
		return fmt.Errorf("encode question %s: %w", q.ID, err)
	}
	var archived sql.NullString
	if q.DeletedAt != nil {
		archived = sql.NullString{String: q.DeletedAt.UTC().Format(timeLayout), Valid: true}
	}
	locked := 0
	if q.Locked {
		locked = 1
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			questionnaire_id = excluded.questionnaire_id,
			type = excluded.type,
			text = excluded.text,
			ord = excluded.ord,
			locked = excluded.locked,
			body = excluded.body,
			deleted_at = excluded.deleted_at`,
		q.ID, q.QuestionnaireID, string(q.Type), q.Text, q.Order, locked, string(raw), archived,
	)
	if err != nil {
		return domain.Transient("sqlite: write question", err)
	}
	return nil
}

// writeEdges replaces the stored edge list of q. Insertion order follows
// q.Edges so reads return the buckets as written.
func writeEdges(ctx context.Context, db queryer, q domain.Question) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM edges WHERE question_id = ?`, q.ID); err != nil {
		return domain.Transient("sqlite: clear edges", err)
	}
	for _, e := range q.Edges {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO edges (question_id, option_id, child_id, ord) VALUES (?, ?, ?, ?)`,
			q.ID, e.OptionID, e.ChildQuestionID, e.Order,
		); err != nil {
			return domain.Transient("sqlite: write edge", err)
		}
	}
	return nil
}

// syncChildOrders rewrites the order of every child of parent.
func syncChildOrders(ctx context.Context, db queryer, parent domain.Question) error {
	for childID, order := range graph.ChildOrders(parent) {
		if _, err := db.ExecContext(ctx, `UPDATE questions SET ord = ? WHERE id = ?`, order, childID); err != nil {
			return domain.Transient("sqlite: child order", err)
		}
	}
	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Transient("sqlite: begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.Transient("sqlite: commit transaction", err)
	}
	return nil
}

// Get returns the question with its texts resolved for locale.
func (s *Store) Get(ctx context.Context, id string, locale domain.Locale, includeArchived bool) (domain.Question, error) {
	q, err := s.lookup(ctx, s.db, id, includeArchived)
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Localize(q, locale), nil
}

// List returns the questions of a questionnaire sorted by order.
func (s *Store) List(ctx context.Context, questionnaireID string, locale domain.Locale, includeArchived bool) ([]domain.Question, error) {
	qs, err := s.list(ctx, s.db, questionnaireID, includeArchived)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		qs[i] = domain.Localize(qs[i], locale)
	}
	return qs, nil
}

// Create stores q under a fresh ID, without edges.
func (s *Store) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	c := q.Clone()
	c.ID = domain.NewID()
	c.Edges = nil
	c.DeletedAt = nil
	if err := writeQuestion(ctx, s.db, c); err != nil {
		return domain.Question{}, err
	}
	return c, nil
}

// Update replaces the editable fields of a question, dropping the edges of
// options that were removed.
func (s *Store) Update(ctx context.Context, id string, q domain.Question) (domain.Question, error) {
	var out domain.Question
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := s.lookup(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if current.Locked {
			return fmt.Errorf("update %s: %w", id, domain.ErrQuestionLocked)
		}
		next := q.Clone()
		next.ID = current.ID
		next.QuestionnaireID = current.QuestionnaireID
		next.Locked = current.Locked
		next.DeletedAt = nil
		next.Edges = current.Edges
		next = graph.PruneEdges(next)

		if err := writeQuestion(ctx, tx, next); err != nil {
			return err
		}
		if err := writeEdges(ctx, tx, next); err != nil {
			return err
		}
		if err := syncChildOrders(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// Delete archives a question and detaches it from every parent.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		q, err := s.lookup(ctx, tx, id, false)
		if err != nil {
			return err
		}
		if q.Locked {
			return fmt.Errorf("delete %s: %w", id, domain.ErrQuestionLocked)
		}
		all, err := s.list(ctx, tx, q.QuestionnaireID, false)
		if err != nil {
			return err
		}
		for _, parent := range graph.New(all).Detach(id) {
			if err := writeEdges(ctx, tx, parent); err != nil {
				return err
			}
		}
		now := s.now()
		q.DeletedAt = &now
		return writeQuestion(ctx, tx, q)
	})
}

// mutate loads the live graph of the questionnaire owning questionID and
// persists the parent returned by fn together with its child orders.
func (s *Store) mutate(ctx context.Context, questionID string, fn func(g *graph.Graph, parent domain.Question) (domain.Question, error)) (domain.Question, error) {
	var out domain.Question
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		parent, err := s.lookup(ctx, tx, questionID, false)
		if err != nil {
			return err
		}
		all, err := s.list(ctx, tx, parent.QuestionnaireID, false)
		if err != nil {
			return err
		}
		next, err := fn(graph.New(all), parent)
		if err != nil {
			return err
		}
		if err := writeEdges(ctx, tx, next); err != nil {
			return err
		}
		if err := syncChildOrders(ctx, tx, next); err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// AddEdge appends childID to the bucket of optionID.
func (s *Store) AddEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error) {
	return s.mutate(ctx, questionID, func(g *graph.Graph, _ domain.Question) (domain.Question, error) {
		parent, _, err := g.AppendEdge(questionID, optionID, childID)
		return parent, err
	})
}

// RemoveEdge deletes one edge and renumbers its bucket.
func (s *Store) RemoveEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error) {
	return s.mutate(ctx, questionID, func(_ *graph.Graph, parent domain.Question) (domain.Question, error) {
		return graph.DropEdge(parent, optionID, childID)
	})
}

// ReorderEdges sets the order of one bucket.
func (s *Store) ReorderEdges(ctx context.Context, questionID, optionID string, orderedChildIDs []string) (domain.Question, error) {
	return s.mutate(ctx, questionID, func(_ *graph.Graph, parent domain.Question) (domain.Question, error) {
		return graph.ReorderBucket(parent, optionID, orderedChildIDs)
	})
}

// ReplaceEdges atomically replaces the whole edge list of a question. On
// any error the stored edges are left untouched.
func (s *Store) ReplaceEdges(ctx context.Context, questionID string, edges []domain.Edge) (domain.Question, error) {
	return s.mutate(ctx, questionID, func(g *graph.Graph, _ domain.Question) (domain.Question, error) {
		return g.ReplaceEdges(questionID, edges)
	})
}

// GetQuestionnaire returns the questionnaire with the given ID.
func (s *Store) GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error) {
	var qn domain.Questionnaire
	var typ string
	err := s.db.QueryRowContext(ctx, `SELECT id, type, name FROM questionnaires WHERE id = ?`, id).Scan(&qn.ID, &typ, &qn.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Questionnaire{}, fmt.Errorf("questionnaire %s: %w", id, domain.ErrQuestionnaireNotFound)
	}
	if err != nil {
		return domain.Questionnaire{}, domain.Transient("sqlite: get questionnaire", err)
	}
	qn.Type = domain.QuestionnaireType(typ)
	return qn, nil
}

// FindQuestionnaire returns the questionnaire of the given type.
func (s *Store) FindQuestionnaire(ctx context.Context, t domain.QuestionnaireType) (domain.Questionnaire, error) {
	var qn domain.Questionnaire
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM questionnaires WHERE type = ? ORDER BY id LIMIT 1`, string(t)).Scan(&qn.ID, &qn.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Questionnaire{}, fmt.Errorf("questionnaire type %s: %w", t, domain.ErrQuestionnaireNotFound)
	}
	if err != nil {
		return domain.Questionnaire{}, domain.Transient("sqlite: find questionnaire", err)
	}
	qn.Type = t
	return qn, nil
}

// PutQuestionnaire stores or replaces a questionnaire.
func (s *Store) PutQuestionnaire(ctx context.Context, qn domain.Questionnaire) error {
	if qn.ID == "" {
		return fmt.Errorf("questionnaire missing ID")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO questionnaires (id, type, name) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET type = excluded.type, name = excluded.name`,
		qn.ID, string(qn.Type), qn.Name,
	)
	if err != nil {
		return domain.Transient("sqlite: put questionnaire", err)
	}
	return nil
}

// SaveResponse stores a submitted response.
func (s *Store) SaveResponse(ctx context.Context, r domain.Response) error {
	raw, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode response %s: %w", r.ID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO responses (id, questionnaire_id, respondent_id, answers, created_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.QuestionnaireID, r.RespondentID, string(raw), r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return domain.Transient("sqlite: save response", err)
	}
	return nil
}

// ListResponses returns the matching responses newest first.
func (s *Store) ListResponses(ctx context.Context, questionnaireID, respondentID string) ([]domain.Response, error) {
	query := `SELECT id, questionnaire_id, respondent_id, answers, created_at FROM responses WHERE questionnaire_id = ?`
	args := []any{questionnaireID}
	if respondentID != "" {
		query += ` AND respondent_id = ?`
		args = append(args, respondentID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.Transient("sqlite: list responses", err)
	}
	defer rows.Close()

	var out []domain.Response
	for rows.Next() {
		var r domain.Response
		var raw, created string
		if err := rows.Scan(&r.ID, &r.QuestionnaireID, &r.RespondentID, &raw, &created); err != nil {
			return nil, domain.Transient("sqlite: list responses", err)
		}
		if err := json.Unmarshal([]byte(raw), &r.Answers); err != nil {
			return nil, fmt.Errorf("decode response %s: %w", r.ID, err)
		}
		if r.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
			return nil, fmt.Errorf("decode response %s: %w", r.ID, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Transient("sqlite: list responses", err)
	}
	return out, nil
}
