package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
)

// TermGenerator proposes search terms for a free-text query
type TermGenerator interface {
	Generate(ctx context.Context, query string) []string
}

// CandidateBuilder merges model-proposed terms with the rule-based fallback terms
type CandidateBuilder struct {
	generator TermGenerator
	logger    *zap.Logger
}

// NewCandidateBuilder creates a builder. A nil generator yields fallback terms only.
func NewCandidateBuilder(generator TermGenerator, log *zap.Logger) *CandidateBuilder {
	return &CandidateBuilder{
		generator: generator,
		logger:    logger.OrNop(log).Named("candidates"),
	}
}

// Build returns up to MaxCandidateTerms search terms, model terms first.
// Terms are normalized and deduplicated case-insensitively.
func (b *CandidateBuilder) Build(ctx context.Context, query string) []string {
	if strings.TrimSpace(query) == "" {
		return []string{}
	}

	var generated []string
	if b.generator != nil {
		generated = b.generator.Generate(ctx, query)
	}
	fallback := BuildFallbackCandidateTerms(query)

	seen := make(map[string]bool, len(generated)+len(fallback))
	terms := make([]string, 0, domain.MaxCandidateTerms)

	for _, group := range [][]string{generated, fallback} {
		for _, raw := range group {
			term := NormalizeCandidateTerm(raw)
			key := strings.ToLower(term)
			if term == "" || seen[key] {
				continue
			}
			seen[key] = true
			terms = append(terms, term)
			if len(terms) == domain.MaxCandidateTerms {
				b.logger.Debug("candidate terms", zap.String("query", query), zap.Strings("terms", terms))
				return terms
			}
		}
	}

	b.logger.Debug("candidate terms", zap.String("query", query), zap.Strings("terms", terms))
	return terms
}
