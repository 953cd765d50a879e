package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/metrics"
)

const termsCachePrefix = "terms:"

const candidateSystemPrompt = `You turn a shopper's question into search terms for the OpenFoodFacts product database.
Reply with raw JSON only. No markdown, no code fences, no explanation.
The reply must match this JSON schema:
%s
Rules:
- Return between %d and %d terms, most specific first.
- Start with the exact product name including the brand when the question names one, then shorter product names, then the generic food.
- Keep the language the shopper used; do not translate product names.
- Never include allergen words, questions or filler such as "does it contain".`

// LLMCandidateGenerator asks a chat model for product search terms.
// Parsed term lists are cached per normalized query so a repeated question costs no second call.
type LLMCandidateGenerator struct {
	chat         domain.ChatClient
	cache        domain.CacheRepository
	systemPrompt string
	logger       *zap.Logger
}

// NewLLMCandidateGenerator creates a generator. chat may be nil, in which case Generate
// always returns an empty list; cache may be nil to disable term caching.
func NewLLMCandidateGenerator(chat domain.ChatClient, cache domain.CacheRepository, log *zap.Logger) *LLMCandidateGenerator {
	return &LLMCandidateGenerator{
		chat:         chat,
		cache:        cache,
		systemPrompt: candidateSystemPromptText,
		logger:       logger.OrNop(log).Named("candidates"),
	}
}

// candidateSystemPromptText is candidateSystemPrompt with the terms schema embedded
var candidateSystemPromptText = buildCandidateSystemPrompt()

func buildCandidateSystemPrompt() string {
	schema, err := json.MarshalIndent(domain.CandidateTermsSchema, "", "  ")
	if err != nil {
		panic("usecase: cannot encode candidate terms schema: " + err.Error())
	}
	return fmt.Sprintf(candidateSystemPrompt, schema, domain.MinCandidateTerms, domain.MaxCandidateTerms)
}

// Generate returns model-proposed search terms for query, or an empty list on any failure
func (g *LLMCandidateGenerator) Generate(ctx context.Context, query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" || g.chat == nil {
		return []string{}
	}

	cacheKey := termsCacheKey(trimmed)
	if terms, ok := g.getCachedTerms(ctx, cacheKey); ok {
		return terms
	}

	reply, err := g.chat.Complete(ctx, domain.ChatRequest{
		System:     g.systemPrompt,
		User:       "Shopper question: " + trimmed,
		JSONSchema: domain.CandidateTermsSchema,
		SchemaName: "candidate_terms",
	})
	if err != nil {
		g.logger.Warn("term generation failed", zap.String("query", trimmed), zap.Error(err))
		metrics.LLMCalls.WithLabelValues("terms", metrics.OutcomeError).Inc()
		return []string{}
	}

	terms := ParseCandidateResponse(reply)
	if len(terms) == 0 {
		g.logger.Info("term generation returned no usable terms", zap.String("query", trimmed))
		metrics.LLMCalls.WithLabelValues("terms", metrics.OutcomeMiss).Inc()
	} else {
		g.logger.Debug("generated terms", zap.String("query", trimmed), zap.Strings("terms", terms))
		metrics.LLMCalls.WithLabelValues("terms", metrics.OutcomeHit).Inc()
	}

	g.setCachedTerms(ctx, cacheKey, terms)
	return terms
}

// termsCacheKey lowercases and collapses whitespace so equivalent questions share an entry
func termsCacheKey(query string) string {
	normalized := whitespaceRunPattern.ReplaceAllString(strings.ToLower(query), " ")
	return termsCachePrefix + strings.TrimSpace(normalized)
}

func (g *LLMCandidateGenerator) getCachedTerms(ctx context.Context, key string) ([]string, bool) {
	if g.cache == nil {
		return nil, false
	}

	data, err := g.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("terms", metrics.OutcomeMiss).Inc()
		return nil, false
	}

	var terms []string
	if err := json.Unmarshal(data, &terms); err != nil {
		g.logger.Warn("dropping unreadable terms cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheLookups.WithLabelValues("terms", metrics.OutcomeError).Inc()
		_ = g.cache.Delete(ctx, key)
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("terms", metrics.OutcomeHit).Inc()
	if terms == nil {
		terms = []string{}
	}
	return terms, true
}

func (g *LLMCandidateGenerator) setCachedTerms(ctx context.Context, key string, terms []string) {
	if g.cache == nil {
		return
	}

	data, err := json.Marshal(terms)
	if err != nil {
		return
	}
	// First writer wins; entries live as long as the backend does
	if _, err := g.cache.SetIfAbsent(ctx, key, data, 0); err != nil {
		g.logger.Warn("failed to cache terms", zap.String("key", key), zap.Error(err))
	}
}
