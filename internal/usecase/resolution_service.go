package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/metrics"
)

const (
	resolutionCachePrefix = "resolution:"
	defaultSessionID      = "default"
)

// Matcher finds the product a query refers to
type Matcher interface {
	FindMatch(ctx context.Context, query string) (*domain.Match, error)
}

// Validator checks a tentative match against the original query
type Validator interface {
	Validate(ctx context.Context, query, productContext string) domain.Verdict
}

// ResolutionServiceConfig holds configuration for the resolution service
type ResolutionServiceConfig struct {
	// SessionTTL bounds how long a session's resolutions are remembered; zero keeps them forever
	SessionTTL time.Duration
}

// ResolutionService is the chat-turn entry point: query in, grounding context and citations out.
// Flow: check session cache -> find match -> validate -> build sources -> cache -> return
type ResolutionService struct {
	matcher    Matcher
	validator  Validator
	cache      domain.CacheRepository
	sessionTTL time.Duration
	logger     *zap.Logger
}

// NewResolutionService creates a resolution service. validator and cache may be nil.
func NewResolutionService(
	matcher Matcher,
	validator Validator,
	cache domain.CacheRepository,
	config ResolutionServiceConfig,
	log *zap.Logger,
) *ResolutionService {
	return &ResolutionService{
		matcher:    matcher,
		validator:  validator,
		cache:      cache,
		sessionTTL: config.SessionTTL,
		logger:     logger.OrNop(log).Named("resolution"),
	}
}

// Resolve returns the grounding context and sources for query within a session.
// It never fails: every miss, rejection or upstream error yields an empty resolution.
func (s *ResolutionService) Resolve(ctx context.Context, sessionID, query string) *domain.Resolution {
	start := time.Now()

	query = strings.TrimSpace(query)
	if query == "" {
		return emptyResolution()
	}

	cacheKey := resolutionCacheKey(sessionID, query)
	if entry, ok := s.getFromCache(ctx, cacheKey); ok {
		metrics.ResolutionDuration.WithLabelValues("cached").Observe(time.Since(start).Seconds())
		return &domain.Resolution{
			Context: entry.Context,
			Sources: entry.Sources,
			Matched: entry.Context != "",
			Cached:  true,
		}
	}

	resolution, cacheable := s.resolve(ctx, query)
	if cacheable {
		s.setInCache(ctx, cacheKey, domain.ResolutionCacheEntry{
			Context: resolution.Context,
			Sources: resolution.Sources,
		})
	}

	outcome := metrics.OutcomeMiss
	if resolution.Matched {
		outcome = metrics.OutcomeHit
	}
	metrics.ResolutionDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return resolution
}

// resolve runs the uncached pipeline. Outcomes caused by the caller's context
// ending are not cacheable.
func (s *ResolutionService) resolve(ctx context.Context, query string) (*domain.Resolution, bool) {
	match, err := s.matcher.FindMatch(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			s.logger.Info("resolution abandoned", zap.String("query", query), zap.Error(err))
			return emptyResolution(), false
		}
		if !errors.Is(err, domain.ErrProductNotFound) {
			s.logger.Warn("match lookup failed", zap.String("query", query), zap.Error(err))
		}
		return emptyResolution(), true
	}

	if s.validator != nil {
		verdict := s.validator.Validate(ctx, query, match.Context)
		if !verdict.Valid {
			s.logger.Info("match rejected as irrelevant",
				zap.String("query", query),
				zap.String("candidate", match.Candidate),
				zap.String("reason", verdict.Reason))
			return emptyResolution(), true
		}
	}

	return &domain.Resolution{
		Context:   match.Context,
		Sources:   BuildSourcesFromMatch(match),
		Matched:   true,
		MatchType: match.MatchType,
		Candidate: match.Candidate,
	}, true
}

func emptyResolution() *domain.Resolution {
	return &domain.Resolution{Sources: []domain.Source{}}
}

// resolutionCacheKey scopes entries to a session.
// Format: "resolution:{session}:{lowercased query}"
func resolutionCacheKey(sessionID, query string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = defaultSessionID
	}
	normalized := whitespaceRunPattern.ReplaceAllString(strings.ToLower(query), " ")
	return resolutionCachePrefix + sessionID + ":" + normalized
}

func (s *ResolutionService) getFromCache(ctx context.Context, key string) (*domain.ResolutionCacheEntry, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("resolution cache read failed", zap.String("key", key), zap.Error(err))
			metrics.CacheLookups.WithLabelValues("resolution", metrics.OutcomeError).Inc()
			return nil, false
		}
		metrics.CacheLookups.WithLabelValues("resolution", metrics.OutcomeMiss).Inc()
		return nil, false
	}

	var entry domain.ResolutionCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.logger.Warn("dropping unreadable resolution cache entry", zap.String("key", key), zap.Error(err))
		metrics.CacheLookups.WithLabelValues("resolution", metrics.OutcomeError).Inc()
		_ = s.cache.Delete(ctx, key)
		return nil, false
	}
	if entry.Sources == nil {
		entry.Sources = []domain.Source{}
	}

	metrics.CacheLookups.WithLabelValues("resolution", metrics.OutcomeHit).Inc()
	return &entry, true
}

func (s *ResolutionService) setInCache(ctx context.Context, key string, entry domain.ResolutionCacheEntry) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// Entries are never overwritten; a concurrent identical query keeps the first result
	if _, err := s.cache.SetIfAbsent(ctx, key, data, s.sessionTTL); err != nil {
		s.logger.Warn("failed to cache resolution", zap.String("key", key), zap.Error(err))
	}
}
