// Package app wires the resolver pipeline from configuration.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/allergenlens/backend/config"
	httpDelivery "github.com/allergenlens/backend/internal/delivery/http"
	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/infrastructure/cache"
	"github.com/allergenlens/backend/internal/infrastructure/llm"
	"github.com/allergenlens/backend/internal/infrastructure/openfoodfacts"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/usecase"
)

// App holds the wired services shared by the server and the CLI
type App struct {
	Products    domain.ProductClient
	Candidates  *usecase.CandidateBuilder
	Formatter   *usecase.ContextFormatter
	Matcher     *usecase.MatchResolver
	Resolutions *usecase.ResolutionService

	termsCache      domain.CacheRepository
	urlCache        domain.CacheRepository
	resolutionCache domain.CacheRepository

	closers []func() error
	logger  *zap.Logger
}

type closableCache interface {
	domain.CacheRepository
	Close() error
}

// New builds every component named by cfg. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{logger: log}

	// Term and URL entries never expire, so they stay in process memory.
	// Only session-scoped resolutions use the configured backend.
	termsCache, err := a.newCache(ctx, "memory", cfg.Cache, "terms")
	if err != nil {
		return nil, err
	}
	urlCache, err := a.newCache(ctx, "memory", cfg.Cache, "url")
	if err != nil {
		a.Close()
		return nil, err
	}
	resolutionCache, err := a.newCache(ctx, cfg.Cache.Type, cfg.Cache, "resolution")
	if err != nil {
		a.Close()
		return nil, err
	}
	a.termsCache, a.urlCache, a.resolutionCache = termsCache, urlCache, resolutionCache

	a.Products = openfoodfacts.NewClient(openfoodfacts.Config{
		ProductEndpoint:   cfg.OpenFoodFacts.ProductEndpoint,
		SearchEndpoint:    cfg.OpenFoodFacts.SearchEndpoint,
		UserAgent:         cfg.OpenFoodFacts.UserAgent,
		Timeout:           cfg.OpenFoodFacts.Timeout,
		RequestsPerMinute: cfg.OpenFoodFacts.RequestsPerMinute,
	}, log)

	var urls domain.ProductURLResolver
	if cfg.Resolver.URLVerification == "direct" {
		urls = openfoodfacts.NewDirectResolver(cfg.OpenFoodFacts.Locale)
	} else {
		urls = openfoodfacts.NewVerifiedResolver(cfg.OpenFoodFacts.Locale, cfg.OpenFoodFacts.UserAgent,
			cfg.Resolver.VerifyTimeout, log)
	}
	urls = openfoodfacts.NewCachingResolver(urls, urlCache, log)

	// A nil chat client disables term extraction and relevance checks
	var chat domain.ChatClient
	if cfg.LLM.Enabled {
		chat = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		}, log)
	}

	var generator usecase.TermGenerator
	if chat != nil {
		generator = usecase.NewLLMCandidateGenerator(chat, termsCache, log)
	}
	a.Candidates = usecase.NewCandidateBuilder(generator, log)
	a.Formatter = usecase.NewContextFormatter(urls)
	a.Matcher = usecase.NewMatchResolver(a.Products, a.Candidates, a.Formatter, usecase.MatchResolverConfig{
		Strategy: cfg.Resolver.Strategy,
		Fanout:   cfg.Resolver.Fanout,
	}, log)

	var validator usecase.Validator
	if cfg.Resolver.Validate && chat != nil {
		validator = usecase.NewRelevanceValidator(chat, cfg.Resolver.FailOpen, log)
	}
	a.Resolutions = usecase.NewResolutionService(a.Matcher, validator, resolutionCache,
		usecase.ResolutionServiceConfig{SessionTTL: cfg.Cache.SessionTTL}, log)

	log.Info("resolver pipeline ready",
		zap.String("cache", cfg.Cache.Type),
		zap.String("strategy", cfg.Resolver.Strategy),
		zap.Bool("llm", chat != nil),
		zap.Bool("validate", validator != nil),
		zap.String("url_verification", cfg.Resolver.URLVerification))

	return a, nil
}

// HandlerDeps exposes the services the HTTP layer serves
func (a *App) HandlerDeps() httpDelivery.HandlerDeps {
	return httpDelivery.HandlerDeps{
		Resolutions: a.Resolutions,
		Candidates:  a.Candidates,
		Products:    a.Products,
		Formatter:   a.Formatter,
	}
}

// Close releases cache connections and background sweepers
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// newCache opens one cache on backend ("memory" or "redis")
func (a *App) newCache(ctx context.Context, backend string, cfg config.CacheConfig, name string) (domain.CacheRepository, error) {
	var c closableCache
	switch backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("open %s cache: %w", name, err)
		}
		c = rc
	default:
		c = cache.NewMemoryCache()
	}
	a.closers = append(a.closers, c.Close)
	a.logger.Debug("cache opened", zap.String("name", name), zap.String("type", backend))
	return c, nil
}
