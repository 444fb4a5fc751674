package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
)

// Store implements ports.QuestionStore, ports.QuestionnaireStore and
// ports.ResponseStore in memory.
// Safe for concurrent use.
type Store struct {
	mu             sync.RWMutex
	questions      map[string]domain.Question
	questionnaires map[string]domain.Questionnaire
	responses      []domain.Response
	now            func() time.Time
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		questions:      make(map[string]domain.Question),
		questionnaires: make(map[string]domain.Questionnaire),
		now:            time.Now,
	}
}

func (s *Store) graphOf(questionnaireID string) *graph.Graph {
	var qs []domain.Question
	for _, q := range s.questions {
		if q.QuestionnaireID == questionnaireID {
			qs = append(qs, q)
		}
	}
	return graph.New(qs)
}

func (s *Store) lookup(id string, includeArchived bool) (domain.Question, error) {
	if domain.IsTempID(id) {
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrTempIDRejected)
	}
	q, ok := s.questions[id]
	if !ok || (q.Archived() && !includeArchived) {
		return domain.Question{}, fmt.Errorf("question %s: %w", id, domain.ErrQuestionNotFound)
	}
	return q, nil
}

// Get returns a copy of the question with its texts resolved for locale.
func (s *Store) Get(ctx context.Context, id string, locale domain.Locale, includeArchived bool) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, err := s.lookup(id, includeArchived)
	if err != nil {
		return domain.Question{}, err
	}
	return domain.Localize(q, locale), nil
}

// List returns the questions of a questionnaire sorted by order.
func (s *Store) List(ctx context.Context, questionnaireID string, locale domain.Locale, includeArchived bool) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Question
	for _, q := range s.questions {
		if q.QuestionnaireID != questionnaireID || (q.Archived() && !includeArchived) {
			continue
		}
		out = append(out, domain.Localize(q, locale))
	}
	slices.SortFunc(out, func(a, b domain.Question) int {
		return cmp.Or(cmp.Compare(a.Order, b.Order), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// Create stores a copy of q under a fresh ID.
func (s *Store) Create(ctx context.Context, q domain.Question) (domain.Question, error) {
	c := q.Clone()
	c.ID = domain.NewID()
	c.Edges = nil
	c.DeletedAt = nil

	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions[c.ID] = c
	return c.Clone(), nil
}

// Update replaces the editable fields of a question, dropping the edges of
// options that were removed.
func (s *Store) Update(ctx context.Context, id string, q domain.Question) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.lookup(id, false)
	if err != nil {
		return domain.Question{}, err
	}
	if current.Locked {
		return domain.Question{}, fmt.Errorf("update %s: %w", id, domain.ErrQuestionLocked)
	}
	next := q.Clone()
	next.ID = current.ID
	next.QuestionnaireID = current.QuestionnaireID
	next.Locked = current.Locked
	next.DeletedAt = nil
	next.Edges = current.Edges
	next = graph.PruneEdges(next)

	s.questions[id] = next
	s.syncChildOrders(next)
	return next.Clone(), nil
}

// Delete archives a question and detaches it from every parent.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(id, false)
	if err != nil {
		return err
	}
	if q.Locked {
		return fmt.Errorf("delete %s: %w", id, domain.ErrQuestionLocked)
	}
	for _, parent := range s.graphOf(q.QuestionnaireID).Detach(id) {
		s.questions[parent.ID] = parent
		s.syncChildOrders(parent)
	}
	now := s.now()
	q.DeletedAt = &now
	s.questions[id] = q
	return nil
}

// AddEdge appends childID to the bucket of optionID.
func (s *Store) AddEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(questionID, false)
	if err != nil {
		return domain.Question{}, err
	}
	parent, child, err := s.graphOf(q.QuestionnaireID).AppendEdge(questionID, optionID, childID)
	if err != nil {
		return domain.Question{}, err
	}
	s.questions[parent.ID] = parent
	s.questions[child.ID] = child
	return parent.Clone(), nil
}

// RemoveEdge deletes one edge and renumbers its bucket.
func (s *Store) RemoveEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(questionID, false)
	if err != nil {
		return domain.Question{}, err
	}
	next, err := graph.DropEdge(q, optionID, childID)
	if err != nil {
		return domain.Question{}, err
	}
	s.questions[questionID] = next
	s.syncChildOrders(next)
	return next.Clone(), nil
}

// ReorderEdges sets the order of one bucket.
func (s *Store) ReorderEdges(ctx context.Context, questionID, optionID string, orderedChildIDs []string) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := s.lookup(questionID, false)
	if err != nil {
		return domain.Question{}, err
	}
	next, err := graph.ReorderBucket(q, optionID, orderedChildIDs)
	if err != nil {
		return domain.Question{}, err
	}
	s.questions[questionID] = next
	s.syncChildOrders(next)
	return next.Clone(), nil
}

// syncChildOrders rewrites the order of every child of parent. Callers hold
// the write lock.
func (s *Store) syncChildOrders(parent domain.Question) {
	for childID, order := range graph.ChildOrders(parent) {
		if child, ok := s.questions[childID]; ok && child.Order != order {
			child.Order = order
			s.questions[childID] = child
		}
	}
}

// GetQuestionnaire returns the questionnaire with the given ID.
func (s *Store) GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	qn, ok := s.questionnaires[id]
	if !ok {
		return domain.Questionnaire{}, fmt.Errorf("questionnaire %s: %w", id, domain.ErrQuestionnaireNotFound)
	}
	return qn, nil
}

// FindQuestionnaire returns the questionnaire of the given type.
func (s *Store) FindQuestionnaire(ctx context.Context, t domain.QuestionnaireType) (domain.Questionnaire, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.questionnaires))
	for id := range s.questionnaires {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		if qn := s.questionnaires[id]; qn.Type == t {
			return qn, nil
		}
	}
	return domain.Questionnaire{}, fmt.Errorf("questionnaire type %s: %w", t, domain.ErrQuestionnaireNotFound)
}

// PutQuestionnaire stores or replaces a questionnaire.
func (s *Store) PutQuestionnaire(ctx context.Context, qn domain.Questionnaire) error {
	if qn.ID == "" {
		return fmt.Errorf("questionnaire missing ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questionnaires[qn.ID] = qn
	return nil
}

// SaveResponse appends a response.
func (s *Store) SaveResponse(ctx context.Context, r domain.Response) error {
	c := r
	c.Answers = r.Answers.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, c)
	return nil
}

// ListResponses returns the matching responses newest first.
func (s *Store) ListResponses(ctx context.Context, questionnaireID, respondentID string) ([]domain.Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Response
	for _, r := range s.responses {
		if r.QuestionnaireID != questionnaireID || (respondentID != "" && r.RespondentID != respondentID) {
			continue
		}
		c := r
		c.Answers = r.Answers.Clone()
		out = append(out, c)
	}
	slices.SortStableFunc(out, func(a, b domain.Response) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}
