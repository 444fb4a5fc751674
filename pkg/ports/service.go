package ports

import (
	"context"

	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
)

// ResponseService is the authoritative collaborator of the wizard.
type ResponseService interface {
	// NextQuestion returns the next root question after currentQuestionID
	// given the answers so far, or nil when the flow is complete. It may
	// reject the answers with a *domain.ValidationError whose Message is
	// meant to be shown verbatim.
	NextQuestion(ctx context.Context, questionnaireID, currentQuestionID string, answers domain.Answers, locale domain.Locale) (*domain.Question, error)

	// Submit validates and stores the final answer batch.
	Submit(ctx context.Context, questionnaireID, respondentID string, answers domain.Answers) (domain.Response, error)
}

// Bootstrap loads a fresh wizard session.
type Bootstrap interface {
	// Start returns the questionnaire of the given type and its question set,
	// roots first in flow order followed by branch-only questions.
	Start(ctx context.Context, t domain.QuestionnaireType, locale domain.Locale) (domain.Questionnaire, []domain.Question, error)
}
