package sleepdiary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/NicklasHM/P3-sleep-diary/internal/logging"
	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/editor"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
	"github.com/NicklasHM/P3-sleep-diary/pkg/responses"
	"github.com/NicklasHM/P3-sleep-diary/pkg/session"
	"github.com/NicklasHM/P3-sleep-diary/pkg/wizard"
)

// Version is the release of the module.
const Version = "0.1.0"

// Store is the persistence an App runs on.
type Store interface {
	ports.QuestionStore
	ports.QuestionnaireStore
	ports.ResponseStore
}

// App wires the stores to the services every adapter (HTTP, MCP, CLI)
// works through.
type App struct {
	Store    Store
	Service  *responses.Service
	Editor   *editor.Editor
	Sessions *session.Manager
	Fetcher  *wizard.Fetcher
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	sessionStore ports.SessionStore
	locker       ports.DistributedLocker
	location     *time.Location
	cacheSize    int
	closers      []io.Closer
}

// Option configures an App.
type Option func(*App)

// WithStore sets the question store. Defaults to an empty memory store.
func WithStore(s Store) Option {
	return func(a *App) {
		a.Store = s
	}
}

// WithSessionStore sets where wizard snapshots live. Defaults to memory.
func WithSessionStore(s ports.SessionStore) Option {
	return func(a *App) {
		a.sessionStore = s
	}
}

// WithLocker adds a distributed lock to session and commit serialization.
func WithLocker(l ports.DistributedLocker) Option {
	return func(a *App) {
		a.locker = l
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.Logger = logger
	}
}

// WithMetrics reports the components through m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) {
		a.Metrics = m
	}
}

// WithLocation sets the timezone of the once-per-day response rule.
func WithLocation(loc *time.Location) Option {
	return func(a *App) {
		a.location = loc
	}
}

// WithCacheSize sets the size of the localized question cache.
func WithCacheSize(n int) Option {
	return func(a *App) {
		a.cacheSize = n
	}
}

// WithCloser registers c to be closed by Close, e.g. the database.
func WithCloser(c io.Closer) Option {
	return func(a *App) {
		a.closers = append(a.closers, c)
	}
}

// New assembles an App.
func New(opts ...Option) (*App, error) {
	a := &App{cacheSize: wizard.DefaultCacheSize}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = logging.NewNop()
	}
	if a.Store == nil {
		a.Store = memory.NewStore()
	}
	if a.sessionStore == nil {
		a.sessionStore = memory.NewSessionStore()
	}

	sessionOpts := []session.Option{session.WithLogger(a.Logger)}
	if a.locker != nil {
		sessionOpts = append(sessionOpts, session.WithLocker(a.locker))
	}
	a.Sessions = session.NewManager(a.sessionStore, sessionOpts...)

	serviceOpts := []responses.Option{
		responses.WithLogger(a.Logger),
		responses.WithSubmitObserver(a.Metrics.ObserveResponse),
		responses.WithValidationObserver(a.Metrics.ObserveValidation),
	}
	if a.location != nil {
		serviceOpts = append(serviceOpts, responses.WithLocation(a.location))
	}
	a.Service = responses.New(a.Store, a.Store, a.Store, serviceOpts...)

	a.Editor = editor.New(a.Store,
		editor.WithLocks(a.Sessions),
		editor.WithLogger(a.Logger),
		editor.WithCommitObserver(a.Metrics.ObserveCommit),
		editor.WithChangeHook(func(questionnaireID string) {
			a.InvalidateQuestions()
			a.Logger.Debug("question cache purged", "questionnaire_id", questionnaireID)
		}),
	)

	fetcher, err := wizard.NewFetcher(a.Store, a.cacheSize,
		wizard.WithFetchLogger(a.Logger),
		wizard.WithFailureObserver(func(p wizard.Policy) { a.Metrics.ObserveFetchFailure(p.String()) }),
	)
	if err != nil {
		return nil, fmt.Errorf("question cache: %w", err)
	}
	a.Fetcher = fetcher
	return a, nil
}

// InvalidateQuestions drops the localized question cache. Adapters that
// write to Store directly call it after a successful write.
func (a *App) InvalidateQuestions() {
	if a.Fetcher != nil {
		a.Fetcher.Purge()
	}
}

// NavigatorOptions are the options every navigator of the App gets.
func (a *App) NavigatorOptions() []wizard.Option {
	return []wizard.Option{
		wizard.WithLogger(a.Logger),
		wizard.WithStepObserver(a.Metrics.ObserveStep),
		wizard.WithValidationObserver(a.Metrics.ObserveValidation),
	}
}

func (a *App) navigatorConfig() wizard.Config {
	return wizard.Config{
		Service:   a.Service,
		Bootstrap: a.Service,
		Fetcher:   a.Fetcher,
	}
}

// NewNavigator starts a wizard session for a questionnaire type.
func (a *App) NewNavigator(ctx context.Context, sessionID string, t domain.QuestionnaireType, respondentID string, locale domain.Locale) (*wizard.Navigator, wizard.Step, error) {
	cfg := a.navigatorConfig()
	cfg.SessionID = sessionID
	cfg.Type = t
	cfg.RespondentID = respondentID
	cfg.Locale = locale

	nav := wizard.New(cfg, a.NavigatorOptions()...)
	step, err := nav.Start(ctx)
	if err != nil {
		return nil, wizard.Step{}, err
	}
	return nav, step, nil
}

// RestoreNavigator rebuilds the navigator of a stored session.
func (a *App) RestoreNavigator(ctx context.Context, snap *domain.WizardSnapshot) (*wizard.Navigator, error) {
	return wizard.Restore(ctx, a.navigatorConfig(), snap, a.NavigatorOptions()...)
}

// Close releases the registered closers.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
