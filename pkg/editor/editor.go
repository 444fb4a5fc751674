package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/session"
)

// Editor edits questionnaire graphs held by a QuestionStore.
type Editor struct {
	store    ports.QuestionStore
	locks    *session.Manager
	logger   *slog.Logger
	onCommit func(outcome string, took time.Duration)
	onChange func(questionnaireID string)
}

// Option configures an Editor.
type Option func(*Editor)

// WithLocks serializes commits through m, e.g. one backed by a
// distributed locker.
func WithLocks(m *session.Manager) Option {
	return func(e *Editor) {
		e.locks = m
	}
}

// WithLogger configures a logger for the Editor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		e.logger = logger
	}
}

// WithCommitObserver registers a callback for every commit attempt.
// outcome is one of ok, structural, reconciliation or error.
func WithCommitObserver(fn func(outcome string, took time.Duration)) Option {
	return func(e *Editor) {
		e.onCommit = fn
	}
}

// WithChangeHook registers fn to run after every operation that may have
// written to the store, e.g. to drop cached questions.
func WithChangeHook(fn func(questionnaireID string)) Option {
	return func(e *Editor) {
		e.onChange = fn
	}
}

// New creates an Editor.
func New(store ports.QuestionStore, opts ...Option) *Editor {
	e := &Editor{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locks == nil {
		e.locks = session.NewManager(nil, session.WithLogger(e.logger))
	}
	return e
}

func (e *Editor) changed(questionnaireID string) {
	if e.onChange != nil {
		e.onChange(questionnaireID)
	}
}

func questionKey(id string) string      { return "question:" + id }
func questionnaireKey(id string) string { return "questionnaire:" + id }

// Open loads a question and its questionnaire into a Draft.
func (e *Editor) Open(ctx context.Context, questionID string) (*Draft, error) {
	q, err := e.store.Get(ctx, questionID, domain.DefaultLocale, false)
	if err != nil {
		return nil, err
	}
	all, err := e.store.List(ctx, q.QuestionnaireID, domain.DefaultLocale, false)
	if err != nil {
		return nil, domain.Transient("list questions", err)
	}
	d := newDraft(q, all)
	for _, s := range d.stray {
		e.logger.Warn("dropping stray temporary edge", "question_id", questionID, "option_id", s.OptionID, "temp_id", s.ChildQuestionID)
	}
	return d, nil
}

// OpenEdited builds a Draft from a complete edited question as sent by a
// client: its edges may reference the temporary IDs of pending. The stored
// question supplies the identity fields; content changes to a locked
// question are rejected.
func (e *Editor) OpenEdited(ctx context.Context, edited domain.Question, pending []domain.Question) (*Draft, error) {
	d, err := e.Open(ctx, edited.ID)
	if err != nil {
		return nil, err
	}
	next := edited.Clone()
	next.ID = d.question.ID
	next.QuestionnaireID = d.question.QuestionnaireID
	next.Locked = d.question.Locked
	next.DeletedAt = nil
	if !next.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, next.Type)
	}
	if next.Locked {
		stored := d.question
		d.question = next
		if d.dirty(stored) {
			return nil, fmt.Errorf("edit %s: %w", next.ID, domain.ErrQuestionLocked)
		}
	}
	d.question = next

	for _, p := range pending {
		if !domain.IsTempID(p.ID) {
			return nil, fmt.Errorf("%w: pending question %q needs a temporary id", ErrInvalidQuestion, p.ID)
		}
		if !p.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, p.Type)
		}
		c := p.Clone()
		c.QuestionnaireID = next.QuestionnaireID
		c.Edges = nil
		c.Locked = false
		if _, dup := d.pending[c.ID]; !dup {
			d.order = append(d.order, c.ID)
		}
		d.pending[c.ID] = c
	}
	d.question.Renumber()
	d.prune()
	return d, nil
}

// Commit persists d with the two-phase sequence: pending branch questions
// are created first, then the edges are rewritten to their real IDs and
// written. Edges whose question failed to persist are dropped and reported
// in a *domain.ReconciliationError next to the persisted question. On
// success d is reset to the persisted state.
func (e *Editor) Commit(ctx context.Context, d *Draft) (domain.Question, error) {
	start := time.Now()
	var out domain.Question
	err := e.locks.WithLock(ctx, questionKey(d.question.ID), func(ctx context.Context) error {
		var err error
		out, err = e.commit(ctx, d)
		return err
	})

	outcome := "ok"
	var se *domain.StructuralError
	var re *domain.ReconciliationError
	switch {
	case err == nil:
	case errors.As(err, &se):
		outcome = "structural"
	case errors.As(err, &re):
		outcome = "reconciliation"
	default:
		outcome = "error"
	}
	if e.onCommit != nil {
		e.onCommit(outcome, time.Since(start))
	}
	if outcome != "structural" {
		e.changed(d.question.QuestionnaireID)
	}
	return out, err
}

func (e *Editor) commit(ctx context.Context, d *Draft) (domain.Question, error) {
	id := d.question.ID
	all, err := e.store.List(ctx, d.question.QuestionnaireID, domain.DefaultLocale, false)
	if err != nil {
		return domain.Question{}, domain.Transient("list questions", err)
	}
	d.others = slices.DeleteFunc(all, func(q domain.Question) bool { return q.ID == id })
	if err := d.Check(); err != nil {
		return domain.Question{}, err
	}

	base, err := e.store.Get(ctx, id, domain.DefaultLocale, false)
	if err != nil {
		return domain.Question{}, err
	}

	// phase one: persist pending branch questions
	resolved := make(map[string]string, len(d.order))
	var unresolved []string
	for _, tempID := range d.order {
		draft := d.pending[tempID].Clone()
		draft.ID = ""
		created, err := e.store.Create(ctx, draft)
		if err != nil {
			e.logger.Warn("branch question not persisted", "question_id", id, "temp_id", tempID, "err", err)
			unresolved = append(unresolved, tempID)
			continue
		}
		resolved[tempID] = created.ID
	}

	// phase two: rewrite edges, dropping the unresolved ones
	edges := make([]domain.Edge, 0, len(d.question.Edges))
	for _, edge := range sortedEdges(d.question) {
		if domain.IsTempID(edge.ChildQuestionID) {
			real, ok := resolved[edge.ChildQuestionID]
			if !ok {
				continue
			}
			edge.ChildQuestionID = real
		}
		edges = append(edges, edge)
	}

	if d.dirty(base) {
		if _, err := e.store.Update(ctx, id, d.question); err != nil {
			archived := e.archiveOrphans(ctx, id, d.order, resolved)
			return domain.Question{}, e.partial(id, err, unresolved, nil, archived)
		}
	}

	failed, err := e.writeEdges(ctx, id, edges)
	if err != nil {
		archived := e.archiveOrphans(ctx, id, d.order, resolved)
		return domain.Question{}, e.partial(id, err, unresolved, failed, archived)
	}

	final, err := e.verify(ctx, id)
	if err != nil {
		return final, err
	}
	var archived []string
	if len(failed) > 0 {
		archived = e.archiveOrphans(ctx, id, d.order, resolved)
		if final, err = e.store.Get(ctx, id, domain.DefaultLocale, false); err != nil {
			return domain.Question{}, err
		}
	}

	d.question = final
	d.pending = make(map[string]domain.Question)
	d.order = nil
	d.stray = nil
	if all, err := e.store.List(ctx, final.QuestionnaireID, domain.DefaultLocale, false); err == nil {
		d.others = slices.DeleteFunc(all, func(q domain.Question) bool { return q.ID == id })
	}

	if len(unresolved) > 0 || len(failed) > 0 {
		return final, &domain.ReconciliationError{QuestionID: id, Unresolved: unresolved, Failed: failed, Archived: archived}
	}
	e.logger.Info("question committed", "question_id", id, "created", len(resolved))
	return final, nil
}

// partial wraps a failure that happened after branch questions may have
// been created.
func (e *Editor) partial(id string, err error, unresolved []string, failed []domain.Edge, archived []string) error {
	if len(unresolved) == 0 && len(failed) == 0 && len(archived) == 0 {
		return err
	}
	return errors.Join(err, &domain.ReconciliationError{QuestionID: id, Unresolved: unresolved, Failed: failed, Archived: archived})
}

// archiveOrphans archives the branch questions created by this commit that
// no stored edge of id references. Left alone they would have no parent and
// show up as roots.
func (e *Editor) archiveOrphans(ctx context.Context, id string, order []string, resolved map[string]string) []string {
	if len(resolved) == 0 {
		return nil
	}
	parent, err := e.store.Get(ctx, id, domain.DefaultLocale, false)
	if err != nil {
		e.logger.Warn("orphaned branch questions not archived", "question_id", id, "err", err)
		return nil
	}
	linked := make(map[string]bool, len(parent.Edges))
	for _, edge := range parent.Edges {
		linked[edge.ChildQuestionID] = true
	}
	var archived []string
	for _, tempID := range order {
		realID, ok := resolved[tempID]
		if !ok || linked[realID] {
			continue
		}
		if err := e.store.Delete(ctx, realID); err != nil {
			e.logger.Warn("orphaned branch question not archived", "question_id", id, "child_id", realID, "err", err)
			continue
		}
		e.logger.Warn("archived branch question without edge", "question_id", id, "temp_id", tempID, "child_id", realID)
		archived = append(archived, realID)
	}
	return archived
}

// writeEdges stores the final edge list of id. Stores without atomic
// replacement get every current edge removed before the list is re-added;
// removals that fail are logged and ignored.
func (e *Editor) writeEdges(ctx context.Context, id string, edges []domain.Edge) ([]domain.Edge, error) {
	current, err := e.store.Get(ctx, id, domain.DefaultLocale, false)
	if err != nil {
		return nil, err
	}
	if sameEdges(current, edges) {
		return nil, nil
	}
	if r, ok := e.store.(ports.EdgeReplacer); ok {
		_, err := r.ReplaceEdges(ctx, id, edges)
		return nil, err
	}

	for _, edge := range current.Edges {
		if _, err := e.store.RemoveEdge(ctx, id, edge.OptionID, edge.ChildQuestionID); err != nil {
			e.logger.Warn("edge removal failed", "question_id", id, "option_id", edge.OptionID, "child_id", edge.ChildQuestionID, "err", err)
		}
	}
	var failed []domain.Edge
	for _, edge := range edges {
		if _, err := e.store.AddEdge(ctx, id, edge.OptionID, edge.ChildQuestionID); err != nil {
			if errors.Is(err, domain.ErrTransient) {
				return failed, err
			}
			e.logger.Warn("edge not added", "question_id", id, "option_id", edge.OptionID, "child_id", edge.ChildQuestionID, "err", err)
			failed = append(failed, edge)
		}
	}
	return failed, nil
}

// verify re-reads id and removes temporary edges that survived, retrying
// once before giving up.
func (e *Editor) verify(ctx context.Context, id string) (domain.Question, error) {
	for attempt := 0; ; attempt++ {
		q, err := e.store.Get(ctx, id, domain.DefaultLocale, false)
		if err != nil {
			return domain.Question{}, err
		}
		var remaining []domain.Edge
		for _, edge := range q.Edges {
			if domain.IsTempID(edge.ChildQuestionID) {
				remaining = append(remaining, edge)
			}
		}
		if len(remaining) == 0 {
			return q, nil
		}
		if attempt > 0 {
			ids := make([]string, len(remaining))
			for i, edge := range remaining {
				ids[i] = edge.ChildQuestionID
			}
			return q, &domain.ReconciliationError{QuestionID: id, Remaining: ids}
		}
		for _, edge := range remaining {
			if _, err := e.store.RemoveEdge(ctx, id, edge.OptionID, edge.ChildQuestionID); err != nil {
				e.logger.Warn("temporary edge removal failed", "question_id", id, "temp_id", edge.ChildQuestionID, "err", err)
			}
		}
	}
}

func sortedEdges(q domain.Question) []domain.Edge {
	var out []domain.Edge
	seen := make(map[string]bool)
	for _, e := range q.Edges {
		if seen[e.OptionID] {
			continue
		}
		seen[e.OptionID] = true
		out = append(out, q.Bucket(e.OptionID)...)
	}
	return out
}

func sameEdges(q domain.Question, edges []domain.Edge) bool {
	want := domain.Question{Edges: edges}
	want.Renumber()
	have := sortedEdges(q)
	got := sortedEdges(want)
	if len(have) != len(got) {
		return false
	}
	for i := range have {
		if have[i] != got[i] {
			return false
		}
	}
	return true
}

// CreateQuestion appends a new root question after the last root.
func (e *Editor) CreateQuestion(ctx context.Context, questionnaireID string, q domain.Question) (domain.Question, error) {
	if !q.Type.Valid() {
		return domain.Question{}, fmt.Errorf("%w: unknown question type %q", ErrInvalidQuestion, q.Type)
	}
	var out domain.Question
	err := e.locks.WithLock(ctx, questionnaireKey(questionnaireID), func(ctx context.Context) error {
		all, err := e.store.List(ctx, questionnaireID, domain.DefaultLocale, false)
		if err != nil {
			return domain.Transient("list questions", err)
		}
		last := 0
		for _, root := range graph.New(all).Roots() {
			last = max(last, root.Order)
		}
		c := q.Clone()
		c.QuestionnaireID = questionnaireID
		c.Order = last + 1
		out, err = e.store.Create(ctx, c)
		return err
	})
	if err == nil {
		e.changed(questionnaireID)
	}
	return out, err
}

// DeleteQuestion archives a question and detaches it from its parents.
func (e *Editor) DeleteQuestion(ctx context.Context, id string) error {
	var questionnaireID string
	err := e.locks.WithLock(ctx, questionKey(id), func(ctx context.Context) error {
		q, err := e.store.Get(ctx, id, domain.DefaultLocale, false)
		if err != nil {
			return err
		}
		questionnaireID = q.QuestionnaireID
		return e.store.Delete(ctx, id)
	})
	if err == nil {
		e.changed(questionnaireID)
	}
	return err
}

// ReorderRoots renumbers the root sequence to 1..n in the given order.
// ordered must be a permutation of the current roots. A locked question
// whose order would change fails the whole operation before anything is
// written.
func (e *Editor) ReorderRoots(ctx context.Context, questionnaireID string, ordered []string) ([]domain.Question, error) {
	var out []domain.Question
	err := e.locks.WithLock(ctx, questionnaireKey(questionnaireID), func(ctx context.Context) error {
		all, err := e.store.List(ctx, questionnaireID, domain.DefaultLocale, false)
		if err != nil {
			return domain.Transient("list questions", err)
		}
		roots := graph.New(all).Roots()
		if len(roots) != len(ordered) {
			return fmt.Errorf("%w: reorder roots: got %d ids for %d roots", ErrInvalidQuestion, len(ordered), len(roots))
		}
		byID := make(map[string]domain.Question, len(roots))
		for _, r := range roots {
			byID[r.ID] = r
		}
		var changes []domain.Question
		for i, id := range ordered {
			q, ok := byID[id]
			if !ok {
				return fmt.Errorf("reorder roots: %s: %w", id, domain.ErrQuestionNotFound)
			}
			delete(byID, id)
			if q.Order == i+1 {
				continue
			}
			if q.Locked {
				return fmt.Errorf("reorder roots: %s: %w", id, domain.ErrQuestionLocked)
			}
			q.Order = i + 1
			changes = append(changes, q)
		}
		if len(changes) > 0 {
			defer e.changed(questionnaireID)
		}
		for _, q := range changes {
			if _, err := e.store.Update(ctx, q.ID, q); err != nil {
				return err
			}
		}
		all, err = e.store.List(ctx, questionnaireID, domain.DefaultLocale, false)
		if err != nil {
			return domain.Transient("list questions", err)
		}
		out = graph.New(all).Roots()
		return nil
	})
	return out, err
}
