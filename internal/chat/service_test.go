package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentlink/assistant/internal/cache"
	"github.com/talentlink/assistant/internal/content"
	"github.com/talentlink/assistant/internal/knowledge"
	"github.com/talentlink/assistant/internal/llm"
	"github.com/talentlink/assistant/internal/matcher"
	"github.com/talentlink/assistant/internal/storage"
)

type fakeProvider struct {
	calls     int32
	text      string
	err       error
	block     bool
	panicMsg  string
	grounding string
	mu        sync.Mutex
}

func (f *fakeProvider) Name() string  { return "fake" }
func (f *fakeProvider) Model() string { return "fake-model" }

func (f *fakeProvider) Generate(ctx context.Context, message, grounding string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.grounding = grounding
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.text, f.err
}

func (f *fakeProvider) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type countingFallback struct {
	calls int32
	m     *matcher.Matcher
}

func (c *countingFallback) Match(message string) matcher.Result {
	atomic.AddInt32(&c.calls, 1)
	return c.m.Match(message)
}

func (c *countingFallback) Calls() int { return int(atomic.LoadInt32(&c.calls)) }

type memoryLog struct {
	mu      sync.Mutex
	entries []storage.ChatExchange
	err     error
	gate    chan struct{}
}

func (l *memoryLog) Record(ctx context.Context, ex *storage.ChatExchange) error {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, *ex)
	return nil
}

type harness struct {
	provider *fakeProvider
	fallback *countingFallback
	store    *knowledge.Store
	log      *memoryLog
	service  *Service
}

func newHarness(t *testing.T, provider *fakeProvider, cfg PrimaryConfig, replies cache.Client) *harness {
	t.Helper()
	idx, err := content.Default()
	require.NoError(t, err)

	h := &harness{
		provider: provider,
		fallback: &countingFallback{m: matcher.New(idx)},
		store:    knowledge.NewStore(),
		log:      &memoryLog{},
	}

	var p llm.Provider
	if provider != nil {
		p = provider
	}
	primary := NewPrimaryResponder(p, idx, h.store, replies, nil, nil, cfg)
	h.service = NewService(primary, h.fallback, h.log, nil, nil)
	return h
}

func TestReplyUsesAIWithoutInvokingFallback(t *testing.T) {
	h := newHarness(t, &fakeProvider{text: "We are open 9 to 6 on weekdays."}, PrimaryConfig{}, nil)

	reply := h.service.Reply(context.Background(), "When are you open?")

	assert.Equal(t, "We are open 9 to 6 on weekdays.", reply.Text)
	assert.Equal(t, SourceAI, reply.Source)
	assert.Equal(t, "fake", reply.Provider)
	assert.Equal(t, 1, h.provider.Calls())
	assert.Equal(t, 0, h.fallback.Calls())
}

func TestReplyFallsBackOnProviderError(t *testing.T) {
	errs := []error{
		&llm.ProviderError{Provider: "fake", Kind: llm.KindStatus, StatusCode: 500, Err: errors.New("boom")},
		&llm.ProviderError{Provider: "fake", Kind: llm.KindNetwork, Err: errors.New("connection refused")},
		&llm.ProviderError{Provider: "fake", Kind: llm.KindMalformed, Err: errors.New("bad json")},
	}
	for _, providerErr := range errs {
		t.Run(providerErr.Error(), func(t *testing.T) {
			h := newHarness(t, &fakeProvider{err: providerErr}, PrimaryConfig{}, nil)

			reply := h.service.Reply(context.Background(), "What are your office hours and address?")

			assert.Equal(t, SourceFallback, reply.Source)
			assert.Equal(t, "contact", reply.SectionID)
			assert.Equal(t, 1, h.provider.Calls())
			assert.Equal(t, 1, h.fallback.Calls())
		})
	}
}

func TestReplyFallsBackOnBlankText(t *testing.T) {
	h := newHarness(t, &fakeProvider{text: "  \n "}, PrimaryConfig{}, nil)
	reply := h.service.Reply(context.Background(), "hi there")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, matcher.KindGreeting, reply.Kind)
}

func TestReplyWithoutCredentialSkipsProvider(t *testing.T) {
	h := newHarness(t, nil, PrimaryConfig{}, nil)

	reply := h.service.Reply(context.Background(), "asdkjasjdkajsd")

	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, matcher.KindGeneric, reply.Kind)
	assert.False(t, h.service.AIReady())
}

func TestReplyRequiresKnowledgeWhenConfigured(t *testing.T) {
	provider := &fakeProvider{text: "grounded"}
	h := newHarness(t, provider, PrimaryConfig{RequireKnowledge: true}, nil)

	reply := h.service.Reply(context.Background(), "Tell me about the company")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, 0, provider.Calls())

	h.store.Replace(knowledge.Snapshot{Text: "Northbridge Talent was founded in 2009.", LoadedAt: time.Now()})

	reply = h.service.Reply(context.Background(), "Tell me about the company")
	assert.Equal(t, SourceAI, reply.Source)
	assert.Equal(t, 1, provider.Calls())
	assert.Contains(t, provider.grounding, "founded in 2009")
	assert.Contains(t, provider.grounding, "## contact")
}

func TestReplyTimeoutFallsBackPromptly(t *testing.T) {
	h := newHarness(t, &fakeProvider{block: true}, PrimaryConfig{Timeout: 30 * time.Millisecond}, nil)

	start := time.Now()
	reply := h.service.Reply(context.Background(), "How does your recruitment process work?")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, "process", reply.SectionID)
}

func TestReplyRecoversFromProviderPanic(t *testing.T) {
	h := newHarness(t, &fakeProvider{panicMsg: "nil map"}, PrimaryConfig{}, nil)

	reply := h.service.Reply(context.Background(), "who built this bot")
	assert.Equal(t, SourceFallback, reply.Source)
	assert.Equal(t, matcher.KindIdentity, reply.Kind)
}

func TestReplyUsesCache(t *testing.T) {
	replies := cache.NewMemoryClient(10)
	defer replies.Close()

	provider := &fakeProvider{text: "cached answer"}
	h := newHarness(t, provider, PrimaryConfig{CacheTTL: time.Minute}, replies)

	first := h.service.Reply(context.Background(), "Do you offer contract staffing?")
	second := h.service.Reply(context.Background(), "  do you offer CONTRACT staffing?")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Equal(t, "cached answer", second.Text)
	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, 0, h.fallback.Calls())
}

func TestReplyRecordsChatLog(t *testing.T) {
	h := newHarness(t, nil, PrimaryConfig{}, nil)

	h.service.Reply(context.Background(), "What are your office hours and address?")
	h.service.Wait()

	require.Len(t, h.log.entries, 1)
	ex := h.log.entries[0]
	assert.Equal(t, "fallback", ex.Source)
	assert.Equal(t, "section", ex.Kind)
	assert.Equal(t, "contact", ex.SectionID)
	assert.Equal(t, 9, ex.Score)
}

func TestReplyIgnoresChatLogErrors(t *testing.T) {
	h := newHarness(t, &fakeProvider{text: "ok"}, PrimaryConfig{}, nil)
	h.log.err = errors.New("disk full")

	reply := h.service.Reply(context.Background(), "hello")
	assert.Equal(t, "ok", reply.Text)
}

func TestReplyConcurrent(t *testing.T) {
	h := newHarness(t, nil, PrimaryConfig{}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reply := h.service.Reply(context.Background(), "How does your recruitment process work?")
			assert.Equal(t, "process", reply.SectionID)
		}()
	}
	wg.Wait()
	assert.Equal(t, 32, h.fallback.Calls())
}

func TestReplyDoesNotWaitForChatLog(t *testing.T) {
	h := newHarness(t, nil, PrimaryConfig{}, nil)
	h.log.gate = make(chan struct{})

	done := make(chan Reply, 1)
	go func() { done <- h.service.Reply(context.Background(), "hi there") }()

	select {
	case reply := <-done:
		assert.Equal(t, "greeting", string(reply.Kind))
	case <-time.After(time.Second):
		t.Fatal("reply blocked on the chat log write")
	}

	close(h.log.gate)
	h.service.Wait()
	require.Len(t, h.log.entries, 1)
}

func TestReplyCacheMissesAfterKnowledgeReload(t *testing.T) {
	provider := &fakeProvider{text: "old answer"}
	replies := cache.NewMemoryClient(100)
	defer replies.Close()
	h := newHarness(t, provider, PrimaryConfig{CacheTTL: time.Minute}, replies)
	h.store.Replace(knowledge.Snapshot{Text: "We place engineers."})

	first := h.service.Reply(context.Background(), "What roles do you fill?")
	assert.Equal(t, "old answer", first.Text)

	h.store.Replace(knowledge.Snapshot{Text: "We place engineers and nurses."})
	provider.mu.Lock()
	provider.text = "new answer"
	provider.mu.Unlock()

	second := h.service.Reply(context.Background(), "What roles do you fill?")
	assert.Equal(t, "new answer", second.Text)
	assert.False(t, second.Cached)
	assert.Equal(t, 2, provider.Calls())
	assert.Contains(t, provider.grounding, "nurses")
}

func TestInvalidateCacheDropsReplies(t *testing.T) {
	provider := &fakeProvider{text: "answer"}
	replies := cache.NewMemoryClient(100)
	defer replies.Close()
	h := newHarness(t, provider, PrimaryConfig{CacheTTL: time.Minute}, replies)

	h.service.Reply(context.Background(), "Do you hire remotely?")
	require.Equal(t, 1, replies.Len())

	h.service.primary.(*PrimaryResponder).InvalidateCache(context.Background())
	assert.Equal(t, 0, replies.Len())

	reply := h.service.Reply(context.Background(), "Do you hire remotely?")
	assert.False(t, reply.Cached)
	assert.Equal(t, 2, provider.Calls())
}

func TestBlankCachedReplyIsDropped(t *testing.T) {
	provider := &fakeProvider{text: "fresh"}
	replies := cache.NewMemoryClient(100)
	defer replies.Close()
	h := newHarness(t, provider, PrimaryConfig{CacheTTL: time.Minute}, replies)
	primary := h.service.primary.(*PrimaryResponder)

	key := primary.cacheKey("Do you hire remotely?", h.store.Snapshot().Version)
	require.NoError(t, replies.Set(context.Background(), key, []byte("  "), time.Minute))

	reply := h.service.Reply(context.Background(), "Do you hire remotely?")
	assert.Equal(t, "fresh", reply.Text)
	assert.Equal(t, 1, provider.Calls())
}
