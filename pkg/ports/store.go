package ports

import (
	"context"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// QuestionReader is the read side of a QuestionStore.
type QuestionReader interface {
	// Get returns the question with texts resolved for locale.
	// Returns domain.ErrQuestionNotFound if it does not exist or is archived
	// and includeArchived is false.
	Get(ctx context.Context, id string, locale domain.Locale, includeArchived bool) (domain.Question, error)

	// List returns the questions of a questionnaire sorted by order.
	List(ctx context.Context, questionnaireID string, locale domain.Locale, includeArchived bool) ([]domain.Question, error)
}

// QuestionStore persists questions and their conditional edges. Stores
// assign identifiers on Create and reject temporary identifiers everywhere.
type QuestionStore interface {
	QuestionReader

	// Create persists q and returns it with its assigned ID. Any ID or edges
	// set on q are ignored.
	Create(ctx context.Context, q domain.Question) (domain.Question, error)

	// Update replaces the scalar fields and options of a question. Edges are
	// kept, except those keyed by options that no longer exist.
	// Returns domain.ErrQuestionLocked for locked questions.
	Update(ctx context.Context, id string, q domain.Question) (domain.Question, error)

	// Delete archives a question and removes every edge pointing at it.
	Delete(ctx context.Context, id string) error

	// AddEdge appends childID to the bucket of optionID and sets the child's
	// order to domain.ChildOrder(parent.Order, localOrder).
	AddEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error)

	// RemoveEdge deletes one edge and renumbers its bucket.
	// Returns domain.ErrEdgeNotFound when the edge does not exist.
	RemoveEdge(ctx context.Context, questionID, optionID, childID string) (domain.Question, error)

	// ReorderEdges sets the order of one bucket. orderedChildIDs must be a
	// permutation of the bucket's children.
	ReorderEdges(ctx context.Context, questionID, optionID string, orderedChildIDs []string) (domain.Question, error)
}

// EdgeReplacer is implemented by stores able to swap a question's whole edge
// list atomically.
type EdgeReplacer interface {
	ReplaceEdges(ctx context.Context, questionID string, edges []domain.Edge) (domain.Question, error)
}

// QuestionnaireStore resolves questionnaires.
type QuestionnaireStore interface {
	GetQuestionnaire(ctx context.Context, id string) (domain.Questionnaire, error)
	FindQuestionnaire(ctx context.Context, t domain.QuestionnaireType) (domain.Questionnaire, error)
	PutQuestionnaire(ctx context.Context, qn domain.Questionnaire) error
}

// ResponseStore persists submitted responses.
type ResponseStore interface {
	SaveResponse(ctx context.Context, r domain.Response) error
	// ListResponses returns responses newest first. An empty respondentID
	// matches every respondent.
	ListResponses(ctx context.Context, questionnaireID, respondentID string) ([]domain.Response, error)
}

// SessionStore persists wizard snapshots, allowing a wizard to resume on any replica.
type SessionStore interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snap *domain.WizardSnapshot) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.WizardSnapshot, error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
