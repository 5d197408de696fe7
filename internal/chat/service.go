// Package chat resolves a visitor message into a reply: the model answers
// when it can, and the keyword matcher answers otherwise.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/talentlink/assistant/internal/matcher"
	"github.com/talentlink/assistant/internal/observability"
	"github.com/talentlink/assistant/internal/storage"
)

// Source says which responder produced a reply.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Primary is the model-backed responder.
type Primary interface {
	Attempt(ctx context.Context, message string) (PrimaryResult, bool)
	Ready() bool
}

// Fallback is the deterministic responder.
type Fallback interface {
	Match(message string) matcher.Result
}

// ChatLog records answered exchanges.
type ChatLog interface {
	Record(ctx context.Context, ex *storage.ChatExchange) error
}

// Reply is the answer to one message.
type Reply struct {
	Text      string
	Source    Source
	Kind      matcher.Kind
	SectionID string
	Score     int
	Provider  string
	Cached    bool
	Latency   time.Duration
}

// Service answers visitor messages.
type Service struct {
	primary  Primary
	fallback Fallback
	log      ChatLog
	metrics  *observability.Metrics
	logger   *observability.Logger
	pending  sync.WaitGroup
}

// recordTimeout bounds one chat log write.
const recordTimeout = 2 * time.Second

// NewService wires the responders. primary and log may be nil.
func NewService(primary Primary, fallback Fallback, log ChatLog, metrics *observability.Metrics, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.Nop()
	}
	return &Service{
		primary:  primary,
		fallback: fallback,
		log:      log,
		metrics:  metrics,
		logger:   logger.WithComponent("chat"),
	}
}

// AIReady reports whether the model would be asked.
func (s *Service) AIReady() bool {
	return s.primary != nil && s.primary.Ready()
}

// Reply answers message. It always returns a non-empty reply for non-empty
// input; validation of empty input is the caller's job.
func (s *Service) Reply(ctx context.Context, message string) Reply {
	start := time.Now()

	var reply Reply
	if res, ok := s.attemptPrimary(ctx, message); ok {
		reply = Reply{
			Text:     res.Text,
			Source:   SourceAI,
			Provider: res.Provider,
			Cached:   res.Cached,
		}
	} else {
		m := s.fallback.Match(message)
		reply = Reply{
			Text:      m.Text,
			Source:    SourceFallback,
			Kind:      m.Kind,
			SectionID: m.SectionID,
			Score:     m.Score,
		}
	}
	reply.Latency = time.Since(start)

	s.metrics.RecordReply(string(reply.Source), string(reply.Kind))

	s.logger.WithContext(ctx).Info().
		Str("source", string(reply.Source)).
		Str("kind", string(reply.Kind)).
		Str("section", reply.SectionID).
		Int("score", reply.Score).
		Bool("cached", reply.Cached).
		Dur("latency", reply.Latency).
		Msg("Chat message answered")

	s.record(ctx, message, reply)

	return reply
}

func (s *Service) attemptPrimary(ctx context.Context, message string) (res PrimaryResult, ok bool) {
	if s.primary == nil {
		return PrimaryResult{}, false
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithContext(ctx).Error().
				Str("panic", panicString(r)).
				Msg("Primary responder panicked, using fallback")
			res, ok = PrimaryResult{}, false
		}
	}()
	return s.primary.Attempt(ctx, message)
}

func (s *Service) record(ctx context.Context, message string, reply Reply) {
	if s.log == nil {
		return
	}
	ex := &storage.ChatExchange{
		Message:   message,
		Reply:     reply.Text,
		Source:    string(reply.Source),
		Kind:      string(reply.Kind),
		SectionID: reply.SectionID,
		Score:     reply.Score,
		Provider:  reply.Provider,
		Cached:    reply.Cached,
		LatencyMS: reply.Latency.Milliseconds(),
	}
	logger := s.logger.WithContext(ctx)
	detached := context.WithoutCancel(ctx)

	// The write happens off the request path; Wait flushes it.
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		recordCtx, cancel := context.WithTimeout(detached, recordTimeout)
		defer cancel()
		if err := s.log.Record(recordCtx, ex); err != nil {
			logger.Warn().
				Err(err).
				Str("source", ex.Source).
				Int64("latency_ms", ex.LatencyMS).
				Msg("Failed to record chat exchange")
		}
	}()
}

// Wait blocks until pending chat log writes have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

func panicString(r interface{}) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unknown panic"
}
