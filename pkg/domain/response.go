package domain

import "time"

// Response is one submitted answer batch.
type Response struct {
	ID              string    `json:"id"`
	QuestionnaireID string    `json:"questionnaireId"`
	RespondentID    string    `json:"respondentId"`
	Answers         Answers   `json:"answers"`
	CreatedAt       time.Time `json:"createdAt"`
}

// WizardState is a state of the wizard navigator.
type WizardState string

const (
	StateLoading    WizardState = "loading"
	StatePresenting WizardState = "presenting"
	StateReview     WizardState = "review"
	StateSubmitting WizardState = "submitting"
	StateDone       WizardState = "done"
)

// WizardSnapshot is the persistable state of one wizard session. Question
// definitions are not part of it; they are re-fetched on restore.
type WizardSnapshot struct {
	SessionID         string            `json:"sessionId"`
	QuestionnaireID   string            `json:"questionnaireId"`
	QuestionnaireType QuestionnaireType `json:"questionnaireType"`
	RespondentID      string            `json:"respondentId,omitempty"`
	Locale            Locale            `json:"locale"`
	State             WizardState       `json:"state"`
	CurrentID         string            `json:"currentId,omitempty"`
	Answers           Answers           `json:"answers"`
	History           []string          `json:"history"`
	ResponseID        string            `json:"responseId,omitempty"`
	UpdatedAt         time.Time         `json:"updatedAt"`
}
