package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/graph"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/validation"
)

// Config holds the collaborators of a Navigator.
type Config struct {
	SessionID    string
	Type         domain.QuestionnaireType
	RespondentID string
	Locale       domain.Locale

	Service   ports.ResponseService
	Bootstrap ports.Bootstrap
	// Fetcher is optional. When set, branch questions missing from the
	// bootstrap set are fetched on demand and locale changes go through it.
	Fetcher *Fetcher
	// Designations overrides the order-based designations.
	Designations *validation.Designations
}

// Step is what the wizard currently shows.
type Step struct {
	State    domain.WizardState `json:"state"`
	Question *domain.Question   `json:"question,omitempty"`
	Children []domain.Question  `json:"children,omitempty"`
}

// Feedback is the result of setting an answer.
type Feedback struct {
	// Field is the failure of the answered question itself.
	Field *domain.ValidationError `json:"field,omitempty"`
	// Cross are advisory failures of the cross-question rules.
	Cross []*domain.ValidationError `json:"cross,omitempty"`
	// Children are the conditional children now visible under the root of
	// the answered question.
	Children []domain.Question `json:"children,omitempty"`
}

// RailItem is one entry of the progress rail.
type RailItem struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Answered  bool   `json:"answered"`
	Current   bool   `json:"current"`
	Visited   bool   `json:"visited"`
	Navigable bool   `json:"navigable"`
}

// Navigator is the wizard state machine of one session.
// Safe for concurrent use; at most one navigation step is in flight.
type Navigator struct {
	mu     sync.Mutex
	cfg    Config
	logger *slog.Logger

	onStep    func(action, outcome string)
	onFailure func(domain.Reason)

	state         domain.WizardState
	questionnaire domain.Questionnaire
	locale        domain.Locale
	graph         *graph.Graph
	engine        *validation.Engine
	answers       domain.Answers
	history       []string
	current       string
	responseID    string

	pending    bool
	generation uint64
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger configures a logger for the Navigator.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// WithStepObserver registers a callback for every navigation attempt.
func WithStepObserver(fn func(action, outcome string)) Option {
	return func(n *Navigator) {
		n.onStep = fn
	}
}

// WithValidationObserver registers a callback for every validation failure.
func WithValidationObserver(fn func(domain.Reason)) Option {
	return func(n *Navigator) {
		n.onFailure = fn
	}
}

// New creates a Navigator in the Loading state.
func New(cfg Config, opts ...Option) *Navigator {
	if cfg.SessionID == "" {
		cfg.SessionID = domain.NewID()
	}
	if cfg.Locale == "" {
		cfg.Locale = domain.DefaultLocale
	}
	n := &Navigator{
		cfg:     cfg,
		logger:  logging.NewNop(),
		state:   domain.StateLoading,
		locale:  cfg.Locale,
		answers: domain.Answers{},
		graph:   graph.New(nil),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.engine = n.newEngine(n.graph)
	return n
}

func (n *Navigator) newEngine(g *graph.Graph) *validation.Engine {
	var opts []validation.Option
	if n.cfg.Designations != nil {
		opts = append(opts, validation.WithDesignations(*n.cfg.Designations))
	}
	if n.onFailure != nil {
		opts = append(opts, validation.WithObserver(n.onFailure))
	}
	return validation.New(g, opts...)
}

func (n *Navigator) setGraph(g *graph.Graph) {
	n.graph = g
	n.engine = n.newEngine(g)
}

func (n *Navigator) observe(action string, err error) {
	if n.onStep == nil {
		return
	}
	outcome := "ok"
	var verr *domain.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		outcome = "invalid"
	case errors.Is(err, domain.ErrStaleResponse):
		outcome = "stale"
	case errors.Is(err, domain.ErrTransient):
		outcome = "transient"
	default:
		outcome = "error"
	}
	n.onStep(action, outcome)
}

// begin marks a step as in flight and returns its generation.
// Callers hold n.mu.
func (n *Navigator) begin() (uint64, error) {
	if n.pending {
		return 0, domain.ErrStepInFlight
	}
	n.pending = true
	return n.generation, nil
}

// finish ends the step started at gen. It reports false when the session
// moved on meanwhile, in which case the result must be discarded.
// Callers hold n.mu.
func (n *Navigator) finish(gen uint64) bool {
	if gen != n.generation {
		return false
	}
	n.pending = false
	return true
}

// moveAway invalidates any step in flight. Callers hold n.mu.
func (n *Navigator) moveAway() {
	n.generation++
	n.pending = false
}

func (n *Navigator) visit(id string) {
	n.current = id
	if !slices.Contains(n.history, id) {
		n.history = append(n.history, id)
	}
}

// Start loads the questionnaire and presents its first root question.
// Failing to load is fatal for the session and leaves it in Loading.
func (n *Navigator) Start(ctx context.Context) (Step, error) {
	n.mu.Lock()
	if n.state != domain.StateLoading {
		n.mu.Unlock()
		return Step{}, domain.ErrInvalidState
	}
	gen, err := n.begin()
	n.mu.Unlock()
	if err != nil {
		return Step{}, err
	}

	qn, qs, err := n.cfg.Bootstrap.Start(ctx, n.cfg.Type, n.locale)
	if err := n.started(gen, qn, qs, err); err != nil {
		return Step{}, err
	}
	n.prefetch(ctx)
	return n.Current(), nil
}

func (n *Navigator) started(gen uint64, qn domain.Questionnaire, qs []domain.Question, err error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.finish(gen) {
		return domain.ErrStaleResponse
	}
	if err != nil {
		n.observe("start", err)
		return fmt.Errorf("start %s: %w", n.cfg.Type, err)
	}
	n.questionnaire = qn
	n.setGraph(graph.New(qs))

	roots := n.graph.RootIDs()
	if len(roots) == 0 {
		n.state = domain.StateReview
	} else {
		n.state = domain.StatePresenting
		n.visit(roots[0])
	}
	n.logger.Info("wizard started", "session_id", n.cfg.SessionID, "questionnaire_id", qn.ID, "roots", len(roots))
	n.observe("start", nil)
	return nil
}

// prefetch fetches the branch questions referenced by edges but missing
// from the graph. It must be called without n.mu held. Failures only omit
// those questions.
func (n *Navigator) prefetch(ctx context.Context) {
	if n.cfg.Fetcher == nil {
		return
	}
	n.mu.Lock()
	var missing []string
	for _, q := range n.graph.Questions() {
		for _, e := range q.Edges {
			if _, ok := n.graph.Question(e.ChildQuestionID); !ok && !domain.IsTempID(e.ChildQuestionID) && !slices.Contains(missing, e.ChildQuestionID) {
				missing = append(missing, e.ChildQuestionID)
			}
		}
	}
	locale := n.locale
	n.mu.Unlock()
	if len(missing) == 0 {
		return
	}

	fetched, _ := n.cfg.Fetcher.Fetch(ctx, missing, locale, FailOpen)
	if len(fetched) == 0 {
		return
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	// a locale switch in between brought its own texts
	if n.locale != locale {
		return
	}
	added := n.graph.Questions()
	grown := false
	for _, q := range fetched {
		if _, ok := n.graph.Question(q.ID); !ok {
			added = append(added, q)
			grown = true
		}
	}
	if grown {
		n.setGraph(graph.New(added))
	}
}

func (n *Navigator) stepLocked() Step {
	s := Step{State: n.state}
	if n.current == "" || (n.state != domain.StatePresenting && n.state != domain.StateReview) {
		return s
	}
	if n.state == domain.StatePresenting {
		if q, ok := n.graph.Question(n.current); ok {
			s.Question = &q
			s.Children = n.graph.Branch(q.ID, n.answers)
		}
	}
	return s
}

// Current returns the current step.
func (n *Navigator) Current() Step {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stepLocked()
}

// State returns the state of the session.
func (n *Navigator) State() domain.WizardState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

// Answers returns a copy of the answers given so far.
func (n *Navigator) Answers() domain.Answers {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.answers.Clone()
}

// History returns the visited root questions in visiting order.
func (n *Navigator) History() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.history)
}

// Questionnaire returns the loaded questionnaire.
func (n *Navigator) Questionnaire() domain.Questionnaire {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.questionnaire
}

// SetAnswer records value as the answer to questionID and applies the
// coupling side effects: copying bedtime to light-off and wake time to out
// of bed while the target is unanswered or still holds the copied value,
// and zeroing the wake minutes when the wake gate is answered "no".
func (n *Navigator) SetAnswer(questionID string, value any) (Feedback, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != domain.StatePresenting {
		return Feedback{}, domain.ErrInvalidState
	}
	if n.pending {
		return Feedback{}, domain.ErrStepInFlight
	}
	if _, ok := n.graph.Question(questionID); !ok {
		return Feedback{}, fmt.Errorf("answer %s: %w", questionID, domain.ErrQuestionNotFound)
	}

	prev, hadPrev := n.answers[questionID]
	if domain.IsBlank(value) {
		delete(n.answers, questionID)
	} else {
		n.answers[questionID] = value
	}

	d := n.engine.Designations()
	for _, pair := range d.CopyPairs() {
		src, dst := pair[0], pair[1]
		if src != questionID || domain.IsBlank(value) {
			continue
		}
		if !n.answers.Answered(dst) || (hadPrev && domain.Text(n.answers[dst]) == domain.Text(prev)) {
			n.answers[dst] = value
		}
	}
	if questionID == d.WakeOccurred && d.WakeDuration != "" && domain.FirstOptionID(value) == d.WakeNo {
		n.answers[d.WakeDuration] = 0.0
	}

	root, ok := n.graph.RootOf(questionID)
	if !ok {
		root = n.current
	}
	fb := Feedback{
		Field:    n.engine.ValidateAnswer(questionID, n.answers),
		Cross:    validation.Localize(n.engine.CrossCheck(n.answers, validation.Interactive), n.locale),
		Children: n.graph.Branch(root, n.answers),
	}
	if fb.Field != nil {
		fb.Field.Message = validation.Message(fb.Field, n.locale)
	}
	return fb, nil
}

// validateStepLocked checks the current root and its visible children.
func (n *Navigator) validateStepLocked() []*domain.ValidationError {
	q, ok := n.graph.Question(n.current)
	if !ok {
		return nil
	}
	var errs []*domain.ValidationError
	for _, item := range append([]domain.Question{q}, n.graph.Branch(q.ID, n.answers)...) {
		if err := n.engine.ValidateAnswer(item.ID, n.answers); err != nil {
			errs = append(errs, err)
		}
	}
	return validation.Localize(errs, n.locale)
}

// Next validates the current step and moves to the root question returned
// by the ResponseService, or to Review when there is none. A rejection by
// the service is returned like a local validation failure.
func (n *Navigator) Next(ctx context.Context) (Step, error) {
	n.mu.Lock()
	if n.state != domain.StatePresenting {
		n.mu.Unlock()
		return Step{}, domain.ErrInvalidState
	}
	if n.pending {
		n.mu.Unlock()
		return Step{}, domain.ErrStepInFlight
	}
	if errs := n.validateStepLocked(); len(errs) > 0 {
		step := n.stepLocked()
		n.mu.Unlock()
		n.observe("next", errs[0])
		return step, errs[0]
	}
	gen, _ := n.begin()
	qnID, current, locale := n.questionnaire.ID, n.current, n.locale
	answers := n.engine.Normalize(n.answers)
	n.mu.Unlock()

	next, err := n.cfg.Service.NextQuestion(ctx, qnID, current, answers, locale)
	step, grown, err := n.advance(gen, current, next, err)
	if err != nil || !grown {
		return step, err
	}
	n.prefetch(ctx)
	return n.Current(), nil
}

// advance applies the result of NextQuestion. grown reports that the graph
// gained a question whose branches may still be missing.
func (n *Navigator) advance(gen uint64, current string, next *domain.Question, err error) (Step, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.finish(gen) {
		n.logger.Debug("discarding stale next result", "session_id", n.cfg.SessionID, "question_id", current)
		n.observe("next", domain.ErrStaleResponse)
		return n.stepLocked(), false, domain.ErrStaleResponse
	}
	if err != nil {
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			err = domain.Transient("next question", err)
		}
		n.observe("next", err)
		return n.stepLocked(), false, err
	}
	n.observe("next", nil)
	if next == nil {
		n.state = domain.StateReview
		return n.stepLocked(), false, nil
	}
	_, known := n.graph.Question(next.ID)
	if !known {
		n.setGraph(n.graph.With(*next))
	}
	n.visit(next.ID)
	return n.stepLocked(), !known, nil
}

// Previous moves to the prior root question. From Review it returns to the
// last root question.
func (n *Navigator) Previous() (Step, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	switch n.state {
	case domain.StateReview:
		if n.current == "" {
			return n.stepLocked(), domain.ErrNoPrevious
		}
		n.moveAway()
		n.state = domain.StatePresenting
		return n.stepLocked(), nil
	case domain.StatePresenting:
	default:
		return Step{}, domain.ErrInvalidState
	}

	roots := n.graph.RootIDs()
	idx := slices.Index(roots, n.current)
	if idx <= 0 {
		return n.stepLocked(), domain.ErrNoPrevious
	}
	n.moveAway()
	n.visit(roots[idx-1])
	return n.stepLocked(), nil
}

// JumpTo moves to a navigable root question of the progress rail. A
// conditional child resolves to its root.
func (n *Navigator) JumpTo(questionID string) (Step, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state != domain.StatePresenting && n.state != domain.StateReview {
		return Step{}, domain.ErrInvalidState
	}
	rootID, ok := n.graph.RootOf(questionID)
	if !ok {
		return n.stepLocked(), fmt.Errorf("jump to %s: %w", questionID, domain.ErrQuestionNotFound)
	}
	if !n.navigableLocked(rootID) {
		return n.stepLocked(), fmt.Errorf("jump to %s: %w", rootID, domain.ErrNotNavigable)
	}
	n.moveAway()
	n.state = domain.StatePresenting
	n.visit(rootID)
	return n.stepLocked(), nil
}

func (n *Navigator) navigableLocked(rootID string) bool {
	if n.answers.Answered(rootID) || slices.Contains(n.history, rootID) {
		return true
	}
	if n.state == domain.StateReview {
		return true
	}
	roots := n.graph.RootIDs()
	return slices.Index(roots, rootID) <= slices.Index(roots, n.current)
}

// Rail returns the progress rail: every root question with its status.
func (n *Navigator) Rail() []RailItem {
	n.mu.Lock()
	defer n.mu.Unlock()

	roots := n.graph.Roots()
	out := make([]RailItem, 0, len(roots))
	for _, q := range roots {
		out = append(out, RailItem{
			ID:        q.ID,
			Text:      q.Text,
			Answered:  n.answers.Answered(q.ID),
			Current:   q.ID == n.current && n.state == domain.StatePresenting,
			Visited:   slices.Contains(n.history, q.ID),
			Navigable: n.navigableLocked(q.ID),
		})
	}
	return out
}

// Progress returns the number of answered root questions and the total.
func (n *Navigator) Progress() (answered, total int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ids := n.graph.RootIDs()
	for _, id := range ids {
		if n.answers.Answered(id) {
			answered++
		}
	}
	return answered, len(ids)
}

// Visible returns the full visible flow for the current answers.
func (n *Navigator) Visible() []domain.Question {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.graph.VisibleFlow(n.answers)
}

// Validate runs every rule in Submit mode against the current answers.
func (n *Navigator) Validate() []*domain.ValidationError {
	n.mu.Lock()
	defer n.mu.Unlock()
	return validation.Localize(n.engine.ValidateAll(n.answers, validation.Submit), n.locale)
}

// Submit validates every visible answer and the cross rules, then stores
// the response. On failure the session returns to Review.
func (n *Navigator) Submit(ctx context.Context) (domain.Response, error) {
	n.mu.Lock()
	if n.state != domain.StateReview {
		n.mu.Unlock()
		return domain.Response{}, domain.ErrInvalidState
	}
	if n.pending {
		n.mu.Unlock()
		return domain.Response{}, domain.ErrStepInFlight
	}
	if errs := validation.Localize(n.engine.ValidateAll(n.answers, validation.Submit), n.locale); len(errs) > 0 {
		n.mu.Unlock()
		joined := make([]error, len(errs))
		for i, e := range errs {
			joined[i] = e
		}
		err := errors.Join(joined...)
		n.observe("submit", err)
		return domain.Response{}, err
	}
	gen, _ := n.begin()
	n.state = domain.StateSubmitting
	qnID := n.questionnaire.ID
	answers := n.engine.Normalize(n.answers)
	n.mu.Unlock()

	resp, err := n.cfg.Service.Submit(ctx, qnID, n.cfg.RespondentID, answers)

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.finish(gen) {
		n.observe("submit", domain.ErrStaleResponse)
		return domain.Response{}, domain.ErrStaleResponse
	}
	n.observe("submit", err)
	if err != nil {
		n.state = domain.StateReview
		return domain.Response{}, err
	}
	n.state = domain.StateDone
	n.responseID = resp.ID
	n.logger.Info("wizard submitted", "session_id", n.cfg.SessionID, "response_id", resp.ID)
	return resp, nil
}

// SetLocale switches the language of the session. Question texts are
// re-fetched; answers and history are kept.
func (n *Navigator) SetLocale(ctx context.Context, locale domain.Locale) error {
	n.mu.Lock()
	if n.state == domain.StateLoading || n.state == domain.StateDone {
		n.locale = locale
		n.mu.Unlock()
		return nil
	}
	gen, err := n.begin()
	if err != nil {
		n.mu.Unlock()
		return err
	}
	all := n.graph.Questions()
	roots := n.graph.RootIDs()
	n.mu.Unlock()

	refreshed, err := n.fetchTexts(ctx, all, roots, locale)

	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.finish(gen) {
		return domain.ErrStaleResponse
	}
	if err != nil {
		return err
	}
	n.locale = locale
	n.setGraph(graph.New(refreshed))
	return nil
}

// fetchTexts returns the questions re-read in locale. The root questions
// are critical; branch questions that fail to load keep their old text.
func (n *Navigator) fetchTexts(ctx context.Context, all []domain.Question, roots []string, locale domain.Locale) ([]domain.Question, error) {
	if n.cfg.Fetcher == nil {
		_, qs, err := n.cfg.Bootstrap.Start(ctx, n.cfg.Type, locale)
		if err != nil {
			return nil, fmt.Errorf("reload %s: %w", locale, err)
		}
		return qs, nil
	}

	rootQs, err := n.cfg.Fetcher.Fetch(ctx, roots, locale, FailClosed)
	if err != nil {
		return nil, err
	}
	var branchIDs []string
	for _, q := range all {
		if !slices.Contains(roots, q.ID) {
			branchIDs = append(branchIDs, q.ID)
		}
	}
	branchQs, _ := n.cfg.Fetcher.Fetch(ctx, branchIDs, locale, FailOpen)

	byID := make(map[string]domain.Question, len(all))
	for _, q := range all {
		byID[q.ID] = q
	}
	for _, q := range append(rootQs, branchQs...) {
		byID[q.ID] = q
	}
	out := make([]domain.Question, 0, len(byID))
	for _, q := range byID {
		out = append(out, q)
	}
	return out, nil
}

// Locale returns the language of the session.
func (n *Navigator) Locale() domain.Locale {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.locale
}

// Snapshot returns the persistable state of the session.
func (n *Navigator) Snapshot() *domain.WizardSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return &domain.WizardSnapshot{
		SessionID:         n.cfg.SessionID,
		QuestionnaireID:   n.questionnaire.ID,
		QuestionnaireType: n.cfg.Type,
		RespondentID:      n.cfg.RespondentID,
		Locale:            n.locale,
		State:             n.state,
		CurrentID:         n.current,
		Answers:           n.answers.Clone(),
		History:           slices.Clone(n.history),
		ResponseID:        n.responseID,
	}
}

// Restore rebuilds a Navigator from a snapshot, re-fetching the question
// definitions. A session caught mid-submit resumes in Review.
func Restore(ctx context.Context, cfg Config, snap *domain.WizardSnapshot, opts ...Option) (*Navigator, error) {
	cfg.SessionID = snap.SessionID
	cfg.Type = snap.QuestionnaireType
	cfg.RespondentID = snap.RespondentID
	cfg.Locale = snap.Locale

	n := New(cfg, opts...)
	if snap.State == domain.StateLoading {
		return n, nil
	}
	qn, qs, err := cfg.Bootstrap.Start(ctx, cfg.Type, n.locale)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", snap.SessionID, err)
	}

	n.mu.Lock()
	n.questionnaire = qn
	n.setGraph(graph.New(qs))
	n.answers = snap.Answers.Clone()
	if n.answers == nil {
		n.answers = domain.Answers{}
	}
	n.history = slices.Clone(snap.History)
	n.current = snap.CurrentID
	n.responseID = snap.ResponseID
	n.state = snap.State
	if n.state == domain.StateSubmitting {
		n.state = domain.StateReview
	}
	if _, ok := n.graph.Question(n.current); !ok && n.state == domain.StatePresenting {
		roots := n.graph.RootIDs()
		if len(roots) == 0 {
			n.state = domain.StateReview
		} else {
			n.visit(roots[0])
		}
	}
	n.mu.Unlock()

	n.prefetch(ctx)
	return n, nil
}
