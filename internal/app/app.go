// Package app builds the assistant's components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/talentlink/assistant/internal/cache"
	"github.com/talentlink/assistant/internal/chat"
	"github.com/talentlink/assistant/internal/config"
	"github.com/talentlink/assistant/internal/content"
	"github.com/talentlink/assistant/internal/knowledge"
	"github.com/talentlink/assistant/internal/llm"
	"github.com/talentlink/assistant/internal/matcher"
	"github.com/talentlink/assistant/internal/observability"
	"github.com/talentlink/assistant/internal/storage"
)

// Options toggles optional components.
type Options struct {
	// WatchKnowledge starts the fsnotify watcher when the config enables it.
	WatchKnowledge bool
	// SkipChatLog leaves the chat log disabled even if a database is configured.
	SkipChatLog bool
}

// App holds the wired components.
type App struct {
	Config    *config.Config
	Logger    *observability.Logger
	Metrics   *observability.Metrics
	Index     *content.Index
	Matcher   *matcher.Matcher
	Knowledge *knowledge.Store
	Provider  llm.Provider
	Primary   *chat.PrimaryResponder
	Service   *chat.Service
	ChatLog   *storage.ChatLogRepository

	closers []func() error
	cancel  context.CancelFunc
}

// New wires every component described by cfg. Optional components that fail
// to start (cache, knowledge) are logged and skipped; content and database
// errors are returned.
func New(ctx context.Context, cfg *config.Config, logger *observability.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.Observability.MetricsEnabled {
		a.Metrics = observability.NewMetrics()
	}

	idx, err := content.Load(cfg.Content.Path)
	if err != nil {
		return nil, fmt.Errorf("load content index: %w", err)
	}
	a.Index = idx
	a.Matcher = matcher.New(idx)

	a.Knowledge = knowledge.NewStore()
	if cfg.Knowledge.Dir != "" {
		if err := a.Knowledge.Reload(cfg.Knowledge.Dir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Knowledge.Dir).Msg("Knowledge not loaded")
		} else {
			snap := a.Knowledge.Snapshot()
			logger.Info().Strs("sources", snap.Sources).Int("bytes", len(snap.Text)).Msg("Knowledge loaded")
		}
	}

	provider, err := llm.NewOpenAICompatible(llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Retry: llm.RetryConfig{
			MaxRetries: cfg.LLM.MaxRetries,
		},
	}, logger)
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		logger.Warn().Str("provider", cfg.LLM.Provider).Msg("No model API key configured, answering with keyword matcher only")
	case err != nil:
		return nil, fmt.Errorf("create model provider: %w", err)
	default:
		a.Provider = provider
		logger.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Msg("Model provider enabled")
	}

	replies := a.openCache(ctx)

	a.Primary = chat.NewPrimaryResponder(a.Provider, idx, a.Knowledge, replies, a.Metrics, logger, chat.PrimaryConfig{
		Timeout:          cfg.LLM.Timeout,
		MaxContextBytes:  cfg.Knowledge.MaxContextBytes,
		RequireKnowledge: cfg.Knowledge.Required,
		CacheTTL:         cfg.Cache.TTL,
	})

	var chatLog chat.ChatLog
	if !opts.SkipChatLog && cfg.Database.Driver != "none" {
		repo, err := a.OpenChatLog(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ChatLog = repo
		chatLog = repo
	}

	a.Service = chat.NewService(a.Primary, a.Matcher, chatLog, a.Metrics, logger)

	if opts.WatchKnowledge && cfg.Knowledge.Watch && cfg.Knowledge.Dir != "" {
		a.startWatcher(ctx)
	}

	return a, nil
}

// OpenChatLog opens the configured database and runs migrations. The
// connection is closed by Close.
func (a *App) OpenChatLog(ctx context.Context) (*storage.ChatLogRepository, error) {
	cfg := a.Config
	pool := storage.PoolConfig{MaxOpenConns: cfg.Database.SQLite.MaxOpenConns}
	if cfg.Database.Driver == storage.DriverPostgres {
		pool = storage.PoolConfig{
			MaxOpenConns:    cfg.Database.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Database.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.Postgres.ConnMaxLifetime,
		}
	}

	db, err := storage.Open(ctx, cfg.Database.Driver, cfg.DatabaseDSN(), pool)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	repo := storage.NewChatLogRepository(db, cfg.Database.Driver)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	a.Logger.Info().Str("driver", cfg.Database.Driver).Msg("Chat log enabled")
	return repo, nil
}

func (a *App) openCache(ctx context.Context) cache.Client {
	cfg := a.Config.Cache
	if a.Provider == nil || cfg.TTL <= 0 {
		return nil
	}

	switch cfg.Driver {
	case "memory":
		c := cache.NewMemoryClient(cfg.MaxEntries)
		a.closers = append(a.closers, c.Close)
		return c
	case "redis":
		c, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			a.Logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis unavailable, reply cache disabled")
			return nil
		}
		a.closers = append(a.closers, c.Close)
		return c
	default:
		return nil
	}
}

func (a *App) startWatcher(ctx context.Context) {
	w, err := knowledge.NewWatcher(a.Knowledge, a.Config.Knowledge.Dir, a.Config.Knowledge.Debounce, a.Logger)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Knowledge watcher not started")
		return
	}
	watchCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	go w.Run(watchCtx)
	go func() {
		for {
			select {
			case <-watchCtx.Done():
				return
			case <-w.Reloaded():
				a.Primary.InvalidateCache(watchCtx)
			}
		}
	}()
}

// Close stops background work and releases connections.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.Service != nil {
		a.Service.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
