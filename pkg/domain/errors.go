package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrQuestionNotFound is returned when a question ID is unknown to the store.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionnaireNotFound is returned for an unknown questionnaire ID or type.
	ErrQuestionnaireNotFound = errors.New("questionnaire not found")
	// ErrOptionNotFound is returned when an option ID does not belong to the question.
	ErrOptionNotFound = errors.New("option not found")
	ErrEdgeNotFound   = errors.New("conditional edge not found")
	ErrEdgeExists     = errors.New("conditional edge already exists")
	// ErrQuestionLocked is returned when a locked question is updated or deleted.
	ErrQuestionLocked = errors.New("question is locked")
	// ErrResponseExists is returned when the respondent already answered today.
	ErrResponseExists = errors.New("response already submitted today")
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	ErrStepInFlight  = errors.New("a navigation step is already in flight")
	ErrStaleResponse = errors.New("response discarded: session moved on")
	ErrNotNavigable  = errors.New("question is not navigable")
	ErrNoPrevious    = errors.New("no previous question")
	ErrInvalidState  = errors.New("operation not allowed in current state")

	// ErrConfirmationRequired is returned when a destructive edit needs operator consent.
	ErrConfirmationRequired = errors.New("confirmation required")
	// ErrTempIDRejected is returned by stores handed a temporary identifier.
	ErrTempIDRejected = errors.New("temporary identifier rejected")
	ErrDuplicateOther = errors.New("question already has an other option")

	// ErrTransient matches every TransientError.
	ErrTransient = errors.New("transient i/o failure")
)

// Structural error kinds. StructuralError unwraps to one of these.
var (
	ErrCycle         = errors.New("edge would create a cycle")
	ErrSelfEdge      = errors.New("question cannot be its own child")
	ErrDanglingEdge  = errors.New("edge references an unknown question")
	ErrUnknownOption = errors.New("edge references an unknown option")
	ErrOrphanedTemp  = errors.New("edge references an unresolved temporary question")
	ErrOtherOptions  = errors.New("more than one other option")
)

// Reason is a machine readable validation failure code.
type Reason string

// ValidationError is a field-level failure. It never aborts a session; the
// caller renders it next to the offending input and blocks progression.
type ValidationError struct {
	QuestionID string            `json:"questionId,omitempty"`
	Reason     Reason            `json:"reason"`
	Params     map[string]string `json:"params,omitempty"`
	Message    string            `json:"message,omitempty"`
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.QuestionID == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.QuestionID, e.Reason)
}

// StructuralError reports a graph that violates the model invariants.
type StructuralError struct {
	Kind       error
	QuestionID string
	OptionID   string
	ChildID    string
}

func (e *StructuralError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.QuestionID != "" {
		fmt.Fprintf(&b, " (question=%s", e.QuestionID)
		if e.OptionID != "" {
			fmt.Fprintf(&b, " option=%s", e.OptionID)
		}
		if e.ChildID != "" {
			fmt.Fprintf(&b, " child=%s", e.ChildID)
		}
		b.WriteString(")")
	}
	return b.String()
}

func (e *StructuralError) Unwrap() error { return e.Kind }

// TransientError wraps a store or service failure that may succeed on retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func (e *TransientError) Is(target error) bool { return target == ErrTransient }

// Transient wraps err as a TransientError unless it is nil or already typed.
func Transient(op string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransientError
	if errors.As(err, &te) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}

// ReconciliationError reports temporary identifiers that could not be
// resolved by a two-phase commit. Parts of the graph that were persisted
// before the failure stay persisted.
type ReconciliationError struct {
	QuestionID string
	// Unresolved lists temporary IDs whose question failed to persist.
	Unresolved []string
	// Remaining lists temporary IDs still referenced after the retry.
	Remaining []string
	// Failed lists resolved edges the store refused to add.
	Failed []Edge
	// Archived lists branch questions that were created but archived again
	// because no stored edge references them.
	Archived []string
}

func (e *ReconciliationError) Error() string {
	parts := make([]string, 0, 4)
	if len(e.Unresolved) > 0 {
		parts = append(parts, fmt.Sprintf("unresolved %s", strings.Join(e.Unresolved, ",")))
	}
	if len(e.Remaining) > 0 {
		parts = append(parts, fmt.Sprintf("still referenced %s", strings.Join(e.Remaining, ",")))
	}
	if len(e.Failed) > 0 {
		parts = append(parts, fmt.Sprintf("%d edge(s) not added", len(e.Failed)))
	}
	if len(e.Archived) > 0 {
		parts = append(parts, fmt.Sprintf("archived %s", strings.Join(e.Archived, ",")))
	}
	return fmt.Sprintf("reconcile question %s: %s", e.QuestionID, strings.Join(parts, "; "))
}
