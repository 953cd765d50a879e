package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allergenlens/backend/internal/domain"
)

func TestLLMCandidateGenerator_Generate(t *testing.T) {
	chat := &MockChatClient{reply: `{"terms": ["Nutella", "hazelnut spread"]}`}
	cache := NewMockCacheRepository()
	g := NewLLMCandidateGenerator(chat, cache, nil)

	terms := g.Generate(context.Background(), "Does Nutella contain milk?")

	assert.Equal(t, []string{"Nutella", "hazelnut spread"}, terms)
	require.Len(t, chat.requests, 1)

	req := chat.requests[0]
	assert.Contains(t, req.System, "raw JSON only")
	assert.Contains(t, req.System, `"maxItems": 6`)
	assert.Contains(t, req.User, "Does Nutella contain milk?")
	assert.Equal(t, domain.CandidateTermsSchema, req.JSONSchema)
	assert.Equal(t, "candidate_terms", req.SchemaName)
}

func TestLLMCandidateGenerator_CachesByNormalizedQuery(t *testing.T) {
	chat := &MockChatClient{reply: `{"terms": ["Oreo"]}`}
	cache := NewMockCacheRepository()
	g := NewLLMCandidateGenerator(chat, cache, nil)
	ctx := context.Background()

	first := g.Generate(ctx, "Oreo  Thins gluten?")
	second := g.Generate(ctx, "  oreo thins GLUTEN? ")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, chat.CallCount(), "repeat question must not issue a second request")
	assert.Equal(t, []string{"terms:oreo thins gluten?"}, cache.keys())
	assert.Zero(t, cache.ttls["terms:oreo thins gluten?"], "terms never expire")
}

func TestLLMCandidateGenerator_FailureReturnsEmpty(t *testing.T) {
	chat := &MockChatClient{err: errors.New("connection refused")}
	cache := NewMockCacheRepository()
	g := NewLLMCandidateGenerator(chat, cache, nil)

	terms := g.Generate(context.Background(), "nutella")

	assert.NotNil(t, terms)
	assert.Empty(t, terms)
	assert.Empty(t, cache.keys(), "failed calls are not cached")
}

func TestLLMCandidateGenerator_UnparseableReply(t *testing.T) {
	chat := &MockChatClient{reply: "I think you mean Nutella."}
	g := NewLLMCandidateGenerator(chat, nil, nil)

	assert.Empty(t, g.Generate(context.Background(), "nutella"))
}

func TestLLMCandidateGenerator_Disabled(t *testing.T) {
	g := NewLLMCandidateGenerator(nil, nil, nil)

	assert.Equal(t, []string{}, g.Generate(context.Background(), "nutella"))
}

func TestLLMCandidateGenerator_BlankQuery(t *testing.T) {
	chat := &MockChatClient{reply: `{"terms": ["x1"]}`}
	g := NewLLMCandidateGenerator(chat, nil, nil)

	assert.Empty(t, g.Generate(context.Background(), "  "))
	assert.Equal(t, 0, chat.CallCount())
}

func TestLLMCandidateGenerator_CorruptCacheEntry(t *testing.T) {
	chat := &MockChatClient{reply: `{"terms": ["Twix"]}`}
	cache := NewMockCacheRepository()
	cache.data["terms:twix"] = []byte("not json")
	g := NewLLMCandidateGenerator(chat, cache, nil)

	terms := g.Generate(context.Background(), "Twix")

	assert.Equal(t, []string{"Twix"}, terms)
	assert.Equal(t, 1, chat.CallCount())
	assert.Equal(t, `["Twix"]`, string(cache.data["terms:twix"]))
}

func TestBuildCandidateSystemPrompt(t *testing.T) {
	var prompt string
	require.NotPanics(t, func() { prompt = buildCandidateSystemPrompt() })

	assert.Contains(t, prompt, `"required": [`)
	assert.Contains(t, prompt, "between 1 and 6 terms")
	assert.NotContains(t, prompt, "%!")

	a := NewLLMCandidateGenerator(&MockChatClient{}, nil, nil)
	b := NewLLMCandidateGenerator(&MockChatClient{}, nil, nil)
	assert.Equal(t, prompt, a.systemPrompt)
	assert.Equal(t, a.systemPrompt, b.systemPrompt)
}
