package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
)

// Search strategies for trying candidate terms
const (
	StrategySequential = "sequential"
	StrategyParallel   = "parallel"
)

const defaultFanout = 3

// CandidateSource builds the ordered candidate terms for a query
type CandidateSource interface {
	Build(ctx context.Context, query string) []string
}

// MatchResolverConfig holds the search strategy settings
type MatchResolverConfig struct {
	Strategy string
	// Fanout bounds concurrent searches in the parallel strategy
	Fanout int
}

// MatchResolver turns a free-text or barcode query into a single product match
type MatchResolver struct {
	products   domain.ProductClient
	candidates CandidateSource
	formatter  *ContextFormatter
	strategy   string
	fanout     int
	logger     *zap.Logger
}

// NewMatchResolver creates a resolver. Unknown strategies fall back to sequential.
func NewMatchResolver(
	products domain.ProductClient,
	candidates CandidateSource,
	formatter *ContextFormatter,
	cfg MatchResolverConfig,
	log *zap.Logger,
) *MatchResolver {
	strategy := cfg.Strategy
	if strategy != StrategyParallel {
		strategy = StrategySequential
	}
	fanout := cfg.Fanout
	if fanout < 1 {
		fanout = defaultFanout
	}
	if formatter == nil {
		formatter = NewContextFormatter(nil)
	}

	return &MatchResolver{
		products:   products,
		candidates: candidates,
		formatter:  formatter,
		strategy:   strategy,
		fanout:     fanout,
		logger:     logger.OrNop(log).Named("matcher"),
	}
}

// ExtractBarcode returns the first 8 to 14 digit code in query, or ""
func ExtractBarcode(query string) string {
	return domain.BarcodePattern.FindString(query)
}

// FindMatch resolves query to a product.
// A barcode in the query is looked up first; otherwise candidate terms are searched
// in priority order. It returns ErrInvalidRequest for a blank query and
// ErrProductNotFound when nothing matched.
func (r *MatchResolver) FindMatch(ctx context.Context, query string) (*domain.Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrInvalidRequest
	}

	if code := ExtractBarcode(query); code != "" {
		product, err := r.products.GetProduct(ctx, code)
		if err == nil && product != nil {
			r.logger.Info("barcode match", zap.String("code", code))
			return r.buildMatch(ctx, product, domain.MatchTypeBarcode, code), nil
		}
		r.logger.Debug("barcode lookup missed, falling back to search",
			zap.String("code", code), zap.Error(err))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := r.candidates.Build(ctx, query)
	if len(terms) == 0 {
		r.logger.Info("no candidate terms", zap.String("query", query))
		return nil, domain.ErrProductNotFound
	}

	var (
		product   *domain.ProductRecord
		candidate string
	)
	if r.strategy == StrategyParallel && len(terms) > 1 {
		product, candidate = r.searchParallel(ctx, terms)
	} else {
		product, candidate = r.searchSequential(ctx, terms)
	}

	if product == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.logger.Info("no match for query",
			zap.String("query", query), zap.Int("candidates", len(terms)))
		return nil, domain.ErrProductNotFound
	}

	r.logger.Info("search match",
		zap.String("query", query), zap.String("candidate", candidate), zap.String("code", product.Code))
	return r.buildMatch(ctx, product, domain.MatchTypeSearch, candidate), nil
}

// searchSequential tries terms in order and stops at the first hit
func (r *MatchResolver) searchSequential(ctx context.Context, terms []string) (*domain.ProductRecord, string) {
	for _, term := range terms {
		if ctx.Err() != nil {
			return nil, ""
		}
		product, err := r.products.SearchProduct(ctx, term)
		if err != nil || product == nil {
			r.logSearchMiss(term, err)
			continue
		}
		return product, term
	}
	return nil, ""
}

// searchParallel runs up to fanout searches at once. The first hit cancels the
// remaining lookups; among hits that already finished, the earliest term wins.
func (r *MatchResolver) searchParallel(ctx context.Context, terms []string) (*domain.ProductRecord, string) {
	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gCtx := errgroup.WithContext(searchCtx)
	g.SetLimit(r.fanout)

	var (
		mu        sync.Mutex
		bestIndex = -1
		best      *domain.ProductRecord
	)

	for i, term := range terms {
		i, term := i, term // per-iteration copies (go directive is below 1.22)
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gCtx.Err() != nil {
				return nil
			}
			product, err := r.products.SearchProduct(gCtx, term)
			if err != nil || product == nil {
				// Lookups aborted by an earlier hit are not misses
				if gCtx.Err() == nil {
					r.logSearchMiss(term, err)
				}
				return nil
			}

			mu.Lock()
			if bestIndex == -1 || i < bestIndex {
				bestIndex = i
				best = product
			}
			mu.Unlock()

			cancel()
			return nil
		})
	}
	_ = g.Wait()

	if best == nil {
		return nil, ""
	}
	return best, terms[bestIndex]
}

func (r *MatchResolver) logSearchMiss(term string, err error) {
	if err == nil || errors.Is(err, domain.ErrProductNotFound) {
		r.logger.Debug("no product for candidate", zap.String("candidate", term))
		return
	}
	r.logger.Warn("candidate search failed", zap.String("candidate", term), zap.Error(err))
}

func (r *MatchResolver) buildMatch(
	ctx context.Context,
	product *domain.ProductRecord,
	matchType domain.MatchType,
	candidate string,
) *domain.Match {
	text, canonicalURL := r.formatter.Format(ctx, product)
	return &domain.Match{
		Product:      product,
		Context:      text,
		MatchType:    matchType,
		Candidate:    candidate,
		CanonicalURL: canonicalURL,
	}
}
