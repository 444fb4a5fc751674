// Package cli assembles the App from configuration and runs the terminal
// wizard for the sleepdiary command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sleepdiary "github.com/NicklasHM/P3-sleep-diary"
	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/definition"
	"github.com/NicklasHM/P3-sleep-diary/internal/adapters/sqlite"
	"github.com/NicklasHM/P3-sleep-diary/internal/config"
	"github.com/NicklasHM/P3-sleep-diary/internal/metrics"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/memory"
	"github.com/NicklasHM/P3-sleep-diary/pkg/adapters/redis"
	"github.com/NicklasHM/P3-sleep-diary/pkg/domain"
	"github.com/NicklasHM/P3-sleep-diary/pkg/persistence/middleware"
	"github.com/NicklasHM/P3-sleep-diary/pkg/ports"
)

// AppOptions tune NewApp beyond the configuration.
type AppOptions struct {
	// Definitions are seeded after the ones named in the configuration.
	Definitions []definition.Definition
	Metrics     *metrics.Metrics
}

// NewApp builds the App described by cfg: the question store, the session
// store and lock, the timezone and the cache size. The returned App owns
// every connection it opened; Close releases them.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts AppOptions) (*sleepdiary.App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	appOpts := []sleepdiary.Option{
		sleepdiary.WithLogger(logger),
		sleepdiary.WithLocation(loc),
		sleepdiary.WithCacheSize(cfg.Cache.Size),
	}
	if opts.Metrics != nil {
		appOpts = append(appOpts, sleepdiary.WithMetrics(opts.Metrics))
	}

	var closeAll []func() error
	fail := func(err error) (*sleepdiary.App, error) {
		for i := len(closeAll) - 1; i >= 0; i-- {
			_ = closeAll[i]()
		}
		return nil, err
	}

	var seed func(domain.Questionnaire, ...domain.Question) error
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.DatabasePath(sqlite.DefaultFile)
		store, err := sqlite.Open(path)
		if err != nil {
			return fail(fmt.Errorf("open question store: %w", err))
		}
		closeAll = append(closeAll, store.Close)
		appOpts = append(appOpts, sleepdiary.WithStore(store), sleepdiary.WithCloser(store))
		seed = func(qn domain.Questionnaire, qs ...domain.Question) error {
			return store.Seed(ctx, qn, qs...)
		}
		logger.Debug("question store opened", "driver", "sqlite", "path", path)
	default:
		store := memory.NewStore()
		appOpts = append(appOpts, sleepdiary.WithStore(store))
		seed = store.Seed
	}

	var sessions ports.SessionStore = memory.NewSessionStore()
	if cfg.Redis.Addr != "" {
		rs := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(cfg.Redis.TTL),
		)
		closeAll = append(closeAll, rs.Close)
		if err := rs.Client().Ping(ctx).Err(); err != nil {
			return fail(fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err))
		}
		sessions = rs
		appOpts = append(appOpts,
			sleepdiary.WithLocker(redis.NewLocker(rs.Client(), cfg.Redis.Prefix)),
			sleepdiary.WithCloser(rs),
		)
		logger.Debug("session store connected", "addr", cfg.Redis.Addr)
	}
	if len(cfg.Session.EncryptionKeys) > 0 {
		keys, err := middleware.ParseKeys(cfg.Session.EncryptionKeys...)
		if err != nil {
			return fail(fmt.Errorf("session.encryption_keys: %w", err))
		}
		sealer, err := middleware.NewEncryptionMiddleware(keys)
		if err != nil {
			return fail(err)
		}
		sessions = middleware.Chain(sessions, sealer)
	}
	appOpts = append(appOpts, sleepdiary.WithSessionStore(sessions))

	defs := make([]definition.Definition, 0, len(cfg.Store.Definitions)+len(opts.Definitions))
	for _, path := range cfg.Store.Definitions {
		def, err := definition.LoadFile(path)
		if err != nil {
			return fail(err)
		}
		defs = append(defs, def)
	}
	defs = append(defs, opts.Definitions...)
	for _, def := range defs {
		if err := seed(def.Questionnaire, def.Questions...); err != nil {
			return fail(fmt.Errorf("seed %s: %w", def.Questionnaire.ID, err))
		}
		logger.Info("questionnaire loaded", "questionnaire_id", def.Questionnaire.ID, "questions", len(def.Questions))
	}

	app, err := sleepdiary.New(appOpts...)
	if err != nil {
		return fail(err)
	}
	return app, nil
}

// Import writes the definitions to the store selected by cfg.
func Import(ctx context.Context, cfg config.Config, logger *slog.Logger, defs ...definition.Definition) error {
	if cfg.Store.Driver != "sqlite" {
		return errors.New("import needs store.driver sqlite; the memory store does not outlive the process")
	}
	cfg.Redis.Addr = ""
	cfg.Store.Definitions = nil
	app, err := NewApp(ctx, cfg, logger, AppOptions{Definitions: defs})
	if err != nil {
		return err
	}
	return app.Close()
}
