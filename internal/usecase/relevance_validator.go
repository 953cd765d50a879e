package usecase

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/metrics"
)

const relevanceSystemPrompt = `You check whether a product record retrieved from OpenFoodFacts is the product a shopper is asking about.
Answer on one line starting with "YES -" when the record is that product (or an obvious variant of it),
or "NO -" when it is a different product, followed by a short justification.
Do not answer the shopper's question itself.`

// Leading yes/no verdict, tolerating markdown emphasis or quotes before it
var verdictPattern = regexp.MustCompile(`(?i)^[\s"'*_` + "`" + `]*(yes|no)\b[\s"'*_` + "`" + `]*[-:–.,]?\s*(.*)`)

// RelevanceValidator asks a chat model whether a tentative match fits the query
type RelevanceValidator struct {
	chat     domain.ChatClient
	failOpen bool
	logger   *zap.Logger
}

// NewRelevanceValidator creates a validator. failOpen decides the verdict when the
// model call fails or its reply carries no leading yes/no.
func NewRelevanceValidator(chat domain.ChatClient, failOpen bool, log *zap.Logger) *RelevanceValidator {
	return &RelevanceValidator{
		chat:     chat,
		failOpen: failOpen,
		logger:   logger.OrNop(log).Named("relevance"),
	}
}

// Validate checks productContext against the original query. It never fails;
// undecided outcomes resolve to the configured fail-open policy.
func (v *RelevanceValidator) Validate(ctx context.Context, query, productContext string) domain.Verdict {
	if v.chat == nil {
		return domain.Verdict{Valid: true, Reason: "relevance check disabled"}
	}

	reply, err := v.chat.Complete(ctx, domain.ChatRequest{
		System: relevanceSystemPrompt,
		User:   "Shopper question: " + strings.TrimSpace(query) + "\n\nProduct record:\n" + productContext,
	})
	if err != nil {
		v.logger.Warn("relevance check failed", zap.String("query", query), zap.Error(err))
		metrics.LLMCalls.WithLabelValues("relevance", metrics.OutcomeError).Inc()
		metrics.RelevanceVerdicts.WithLabelValues("error").Inc()
		return domain.Verdict{Valid: v.failOpen, Reason: err.Error()}
	}
	metrics.LLMCalls.WithLabelValues("relevance", metrics.OutcomeHit).Inc()

	verdict := parseVerdict(reply)
	if !verdict.Decided {
		verdict.Valid = v.failOpen
		v.logger.Info("relevance reply had no verdict",
			zap.String("query", query), zap.Bool("accepted", verdict.Valid))
		metrics.RelevanceVerdicts.WithLabelValues("undecided").Inc()
		return verdict
	}

	label := "no"
	if verdict.Valid {
		label = "yes"
	}
	metrics.RelevanceVerdicts.WithLabelValues(label).Inc()
	v.logger.Debug("relevance verdict",
		zap.String("query", query), zap.String("verdict", label), zap.String("reason", verdict.Reason))

	return verdict
}

// parseVerdict reads the leading yes/no token; Decided is false when there is none
func parseVerdict(reply string) domain.Verdict {
	m := verdictPattern.FindStringSubmatch(strings.TrimSpace(reply))
	if m == nil {
		return domain.Verdict{Reason: strings.TrimSpace(reply)}
	}
	return domain.Verdict{
		Valid:   strings.EqualFold(m[1], "yes"),
		Decided: true,
		Reason:  strings.TrimSpace(m[2]),
	}
}
