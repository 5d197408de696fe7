package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/talentlink/assistant/internal/cache"
	"github.com/talentlink/assistant/internal/content"
	"github.com/talentlink/assistant/internal/knowledge"
	"github.com/talentlink/assistant/internal/llm"
	"github.com/talentlink/assistant/internal/observability"
)

const replyKeyPrefix = "reply"

// PrimaryConfig configures the model-backed responder.
type PrimaryConfig struct {
	Timeout          time.Duration
	MaxContextBytes  int
	RequireKnowledge bool
	CacheTTL         time.Duration
}

// PrimaryResult is a successful model answer.
type PrimaryResult struct {
	Text     string
	Provider string
	Cached   bool
	Latency  time.Duration
}

// PrimaryResponder asks the model for a grounded answer. It never returns an
// error: any failure is logged and reported as "no answer".
type PrimaryResponder struct {
	provider llm.Provider
	index    *content.Index
	store    *knowledge.Store
	cache    cache.Client
	metrics  *observability.Metrics
	logger   *observability.Logger
	cfg      PrimaryConfig
}

// NewPrimaryResponder builds a responder. provider may be nil, in which case
// Attempt always declines. store and replies may be nil.
func NewPrimaryResponder(
	provider llm.Provider,
	index *content.Index,
	store *knowledge.Store,
	replies cache.Client,
	metrics *observability.Metrics,
	logger *observability.Logger,
	cfg PrimaryConfig,
) *PrimaryResponder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if logger == nil {
		logger = observability.Nop()
	}
	return &PrimaryResponder{
		provider: provider,
		index:    index,
		store:    store,
		cache:    replies,
		metrics:  metrics,
		logger:   logger.WithComponent("primary"),
		cfg:      cfg,
	}
}

// Enabled reports whether a provider is configured.
func (p *PrimaryResponder) Enabled() bool {
	return p != nil && p.provider != nil
}

// Ready reports whether Attempt would call the model.
func (p *PrimaryResponder) Ready() bool {
	if !p.Enabled() {
		return false
	}
	if p.cfg.RequireKnowledge {
		return p.store != nil && p.store.Loaded()
	}
	return true
}

// Attempt returns the model's answer, or false when the model is disabled,
// not ready, or failed.
func (p *PrimaryResponder) Attempt(ctx context.Context, message string) (PrimaryResult, bool) {
	if !p.Ready() {
		return PrimaryResult{}, false
	}

	logger := p.logger.WithContext(ctx)
	name := p.provider.Name()
	snap := p.snapshot()
	key := p.cacheKey(message, snap.Version)

	if text, ok := p.lookup(ctx, key, logger); ok {
		return PrimaryResult{Text: text, Provider: name, Cached: true}, true
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := p.provider.Generate(callCtx, message, p.grounding(snap))
	latency := time.Since(start)
	if err == nil && strings.TrimSpace(text) == "" {
		err = llm.ErrEmptyResponse
	}

	p.metrics.RecordPrimary(name, llm.Outcome(err), latency)

	if err != nil {
		logger.Warn().
			Err(err).
			Str("provider", name).
			Dur("latency", latency).
			Msg("Primary responder failed, using fallback")
		return PrimaryResult{}, false
	}

	p.remember(ctx, key, text, logger)

	return PrimaryResult{Text: text, Provider: name, Latency: latency}, true
}

// InvalidateCache drops every cached reply. Called after a knowledge reload.
func (p *PrimaryResponder) InvalidateCache(ctx context.Context) {
	if p == nil || p.cache == nil {
		return
	}
	if err := p.cache.DeleteByPrefix(ctx, replyKeyPrefix+":"); err != nil {
		p.logger.Warn().Err(err).Msg("Reply cache invalidation failed")
	}
}

func (p *PrimaryResponder) snapshot() knowledge.Snapshot {
	if p.store == nil {
		return knowledge.Snapshot{}
	}
	return p.store.Snapshot()
}

func (p *PrimaryResponder) grounding(snap knowledge.Snapshot) string {
	return llm.Grounding(p.index.Render(), snap.Text, p.cfg.MaxContextBytes)
}

// cacheKey includes the knowledge version so a reload never serves answers
// grounded on the previous snapshot.
func (p *PrimaryResponder) cacheKey(message string, version uint64) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(message))))
	return cache.CacheKey(
		replyKeyPrefix,
		p.provider.Name(),
		p.provider.Model(),
		"k"+strconv.FormatUint(version, 10),
		hex.EncodeToString(sum[:16]),
	)
}

func (p *PrimaryResponder) lookup(ctx context.Context, key string, logger *observability.Logger) (string, bool) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return "", false
	}
	data, err := p.cache.Get(ctx, key)
	switch {
	case err == nil && strings.TrimSpace(string(data)) == "":
		p.metrics.RecordCache("miss")
		if err := p.cache.Delete(ctx, key); err != nil {
			logger.Warn().Err(err).Msg("Reply cache delete failed")
		}
	case err == nil:
		p.metrics.RecordCache("hit")
		return string(data), true
	case errors.Is(err, cache.ErrCacheMiss):
		p.metrics.RecordCache("miss")
	default:
		p.metrics.RecordCache("error")
		logger.Warn().Err(err).Msg("Reply cache lookup failed")
	}
	return "", false
}

func (p *PrimaryResponder) remember(ctx context.Context, key, text string, logger *observability.Logger) {
	if p.cache == nil || p.cfg.CacheTTL <= 0 {
		return
	}
	if err := p.cache.Set(ctx, key, []byte(text), p.cfg.CacheTTL); err != nil {
		logger.Warn().Err(err).Msg("Reply cache store failed")
	}
}
