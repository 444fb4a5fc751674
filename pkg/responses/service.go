package responses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"
	_ "time/tzdata" // Europe/Copenhagen must resolve without a system zoneinfo

	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/validation"
)

// DefaultTimezone decides which calendar day a response belongs to.
const DefaultTimezone = "Europe/Copenhagen"

// Service implements ports.ResponseService and ports.Bootstrap over the stores.
type Service struct {
	questions      ports.QuestionReader
	questionnaires ports.QuestionnaireStore
	responses      ports.ResponseStore

	loc          *time.Location
	now          func() time.Time
	designations *validation.Designations
	logger       *slog.Logger

	onSubmit  func(domain.Response)
	onFailure func(domain.Reason)
}

var (
	_ ports.ResponseService = (*Service)(nil)
	_ ports.Bootstrap       = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the timezone of the one-response-per-day rule.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithDesignations overrides the order-based designations of every engine
// the service builds.
func WithDesignations(d validation.Designations) Option {
	return func(s *Service) {
		s.designations = &d
	}
}

// WithLogger configures a logger for the Service.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithSubmitObserver registers a callback for every stored response.
func WithSubmitObserver(fn func(domain.Response)) Option {
	return func(s *Service) {
		s.onSubmit = fn
	}
}

// WithValidationObserver registers a callback for every validation failure.
func WithValidationObserver(fn func(domain.Reason)) Option {
	return func(s *Service) {
		s.onFailure = fn
	}
}

// New creates a Service.
func New(questions ports.QuestionReader, questionnaires ports.QuestionnaireStore, responses ports.ResponseStore, opts ...Option) *Service {
	s := &Service{
		questions:      questions,
		questionnaires: questionnaires,
		responses:      responses,
		loc:            time.UTC,
		now:            time.Now,
		logger:         logging.NewNop(),
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		s.loc = loc
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine builds the validation engine of a questionnaire with texts in locale.
func (s *Service) Engine(ctx context.Context, questionnaireID string, locale domain.Locale) (*validation.Engine, error) {
	qs, err := s.questions.List(ctx, questionnaireID, locale, false)
	if err != nil {
		return nil, domain.Transient("list questions", err)
	}
	var opts []validation.Option
	if s.designations != nil {
		opts = append(opts, validation.WithDesignations(*s.designations))
	}
	if s.onFailure != nil {
		opts = append(opts, validation.WithObserver(s.onFailure))
	}
	return validation.New(graph.New(qs), opts...), nil
}

// Start loads the questionnaire of type t and its questions: the roots in
// flow order followed by the branch-only questions.
func (s *Service) Start(ctx context.Context, t domain.QuestionnaireType, locale domain.Locale) (domain.Questionnaire, []domain.Question, error) {
	qn, err := s.questionnaires.FindQuestionnaire(ctx, t)
	if err != nil {
		return domain.Questionnaire{}, nil, err
	}
	qs, err := s.questions.List(ctx, qn.ID, locale, false)
	if err != nil {
		return domain.Questionnaire{}, nil, domain.Transient("list questions", err)
	}
	g := graph.New(qs)
	out := g.Roots()
	for _, q := range g.Questions() {
		if !g.IsRoot(q.ID) {
			out = append(out, q)
		}
	}
	return qn, out, nil
}

// NextQuestion validates the answers given so far and returns the first root
// ordered after the root of currentQuestionID, or nil at the end of the flow.
func (s *Service) NextQuestion(ctx context.Context, questionnaireID, currentQuestionID string, answers domain.Answers, locale domain.Locale) (*domain.Question, error) {
	engine, err := s.Engine(ctx, questionnaireID, locale)
	if err != nil {
		return nil, err
	}
	if errs := engine.ValidateAll(answers, validation.Interactive); len(errs) > 0 {
		return nil, validation.Localize(errs, locale)[0]
	}

	g := engine.Graph()
	rootID, ok := g.RootOf(currentQuestionID)
	if !ok {
		return nil, fmt.Errorf("current question %s: %w", currentQuestionID, domain.ErrQuestionNotFound)
	}
	current, _ := g.Question(rootID)
	for _, root := range g.Roots() {
		if root.Order > current.Order {
			return &root, nil
		}
	}
	return nil, nil
}

// Submit validates the complete answer set and stores it. Answers to
// questions that are not visible are dropped. A respondent may submit each
// questionnaire once per calendar day.
func (s *Service) Submit(ctx context.Context, questionnaireID, respondentID string, answers domain.Answers) (domain.Response, error) {
	if _, err := s.questionnaires.GetQuestionnaire(ctx, questionnaireID); err != nil {
		return domain.Response{}, err
	}
	engine, err := s.Engine(ctx, questionnaireID, domain.DefaultLocale)
	if err != nil {
		return domain.Response{}, err
	}
	normalized := engine.Normalize(answers)
	if errs := engine.ValidateAll(normalized, validation.Submit); len(errs) > 0 {
		joined := make([]error, len(errs))
		for i, e := range validation.Localize(errs, domain.DefaultLocale) {
			joined[i] = e
		}
		return domain.Response{}, errors.Join(joined...)
	}

	if respondentID != "" {
		done, err := s.CheckToday(ctx, questionnaireID, respondentID)
		if err != nil {
			return domain.Response{}, err
		}
		if done {
			return domain.Response{}, fmt.Errorf("respondent %s: %w", respondentID, domain.ErrResponseExists)
		}
	}

	kept := make(domain.Answers, len(normalized))
	for _, q := range engine.Graph().VisibleFlow(normalized) {
		if v, ok := normalized[q.ID]; ok {
			kept[q.ID] = v
		}
	}
	resp := domain.Response{
		ID:              domain.NewID(),
		QuestionnaireID: questionnaireID,
		RespondentID:    respondentID,
		Answers:         kept,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.responses.SaveResponse(ctx, resp); err != nil {
		return domain.Response{}, domain.Transient("save response", err)
	}
	s.logger.Info("response stored", "response_id", resp.ID, "questionnaire_id", questionnaireID)
	if s.onSubmit != nil {
		s.onSubmit(resp)
	}
	return resp, nil
}

// CheckToday reports whether respondentID already submitted questionnaireID
// on the current calendar day.
func (s *Service) CheckToday(ctx context.Context, questionnaireID, respondentID string) (bool, error) {
	list, err := s.responses.ListResponses(ctx, questionnaireID, respondentID)
	if err != nil {
		return false, domain.Transient("list responses", err)
	}
	today := s.day(s.now())
	return slices.ContainsFunc(list, func(r domain.Response) bool {
		return s.day(r.CreatedAt) == today
	}), nil
}

func (s *Service) day(t time.Time) string {
	return t.In(s.loc).Format(time.DateOnly)
}
