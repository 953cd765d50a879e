package openfoodfacts

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/metrics"
)

// DefaultLocale is the only locale the service renders for
const DefaultLocale = "world"

// localeRoots maps a locale to its site root and localized product path segment
var localeRoots = map[string]struct{ host, path string }{
	"world": {"https://world.openfoodfacts.org", "product"},
	"en":    {"https://world.openfoodfacts.org", "product"},
	"us":    {"https://us.openfoodfacts.org", "product"},
	"uk":    {"https://uk.openfoodfacts.org", "product"},
	"fr":    {"https://fr.openfoodfacts.org", "produit"},
	"de":    {"https://de.openfoodfacts.org", "produkt"},
	"es":    {"https://es.openfoodfacts.org", "producto"},
	"it":    {"https://it.openfoodfacts.org", "prodotto"},
}

// ProductPageBase returns e.g. "https://fr.openfoodfacts.org/produit".
// Unknown locales fall back to the world site.
func ProductPageBase(locale string) string {
	root, ok := localeRoots[strings.ToLower(strings.TrimSpace(locale))]
	if !ok {
		root = localeRoots[DefaultLocale]
	}
	return root.host + "/" + root.path
}

// GenericProductURL is the locale-independent page for a barcode
func GenericProductURL(code string) string {
	if code == "" {
		return ""
	}
	return ProductPageBase(DefaultLocale) + "/" + code
}

// IsKnownLocale reports whether locale has an entry in the root table
func IsKnownLocale(locale string) bool {
	_, ok := localeRoots[strings.ToLower(strings.TrimSpace(locale))]
	return ok
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify strips diacritics, lowercases and collapses anything non-alphanumeric to hyphens
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(stripped), "-")
	return strings.Trim(slug, "-")
}

// GuessSlug predicts the readable slug OpenFoodFacts embeds in product URLs
func GuessSlug(p *domain.ProductRecord) string {
	if p == nil {
		return ""
	}

	name := Slugify(p.ProductName)
	brand := Slugify(p.PrimaryBrand())

	switch {
	case name == "":
		return brand
	case brand == "" || strings.Contains(name, brand):
		return name
	default:
		return name + "-" + brand
	}
}

// candidateURLs returns the slugged and bare-code page URLs; slugged is empty without a slug
func candidateURLs(base string, p *domain.ProductRecord) (slugged, bare string) {
	if p == nil || strings.TrimSpace(p.Code) == "" {
		return "", ""
	}
	bare = base + "/" + strings.TrimSpace(p.Code)
	if slug := GuessSlug(p); slug != "" {
		slugged = bare + "/" + slug
	}
	return slugged, bare
}

// DirectResolver builds the page URL without touching the network.
// Used where outbound verification is not possible.
type DirectResolver struct {
	base string
}

// NewDirectResolver creates a resolver for the given locale
func NewDirectResolver(locale string) *DirectResolver {
	return &DirectResolver{base: ProductPageBase(locale)}
}

// Resolve returns the slugged URL, or the bare-code URL when no slug can be guessed
func (r *DirectResolver) Resolve(ctx context.Context, p *domain.ProductRecord) string {
	slugged, bare := candidateURLs(r.base, p)
	if slugged != "" {
		return slugged
	}
	return bare
}

// VerifiedResolver probes the guessed URLs with HEAD then GET and follows
// a redirect's Location when the site canonicalizes the slug itself.
type VerifiedResolver struct {
	base       string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewVerifiedResolver creates a resolver that checks candidate URLs over HTTP
func NewVerifiedResolver(locale, userAgent string, timeout time.Duration, log *zap.Logger) *VerifiedResolver {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &VerifiedResolver{
		base:      ProductPageBase(locale),
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects are inspected, not followed
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.OrNop(log).Named("urlresolver"),
	}
}

// Resolve runs HEAD slugged -> HEAD bare -> GET slugged -> GET bare and
// falls back to the unverified slugged (or bare) URL.
func (r *VerifiedResolver) Resolve(ctx context.Context, p *domain.ProductRecord) string {
	slugged, bare := candidateURLs(r.base, p)
	if bare == "" {
		return ""
	}

	attempts := []struct{ method, url string }{
		{http.MethodHead, slugged},
		{http.MethodHead, bare},
		{http.MethodGet, slugged},
		{http.MethodGet, bare},
	}

	for _, a := range attempts {
		if a.url == "" {
			continue
		}
		if resolved, ok := r.probe(ctx, a.method, a.url); ok {
			return resolved
		}
	}

	r.logger.Debug("product page unverified, using guessed URL", zap.String("code", p.Code))
	if slugged != "" {
		return slugged
	}
	return bare
}

func (r *VerifiedResolver) probe(ctx context.Context, method, target string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.Debug("probe failed", zap.String("method", method), zap.String("url", target), zap.Error(err))
		return "", false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return target, true
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := resp.Header.Get("Location")
		if loc == "" {
			return "", false
		}
		abs, err := req.URL.Parse(loc)
		if err != nil {
			return "", false
		}
		return abs.String(), true
	default:
		r.logger.Debug("probe rejected", zap.String("method", method),
			zap.String("url", target), zap.Int("status", resp.StatusCode))
		return "", false
	}
}

// CachingResolver memoizes every outcome of the wrapped resolver by barcode,
// so each product is resolved at most once per cache lifetime.
type CachingResolver struct {
	next   domain.ProductURLResolver
	cache  domain.CacheRepository
	logger *zap.Logger
}

// NewCachingResolver wraps next with a barcode-keyed cache
func NewCachingResolver(next domain.ProductURLResolver, cache domain.CacheRepository, log *zap.Logger) *CachingResolver {
	return &CachingResolver{next: next, cache: cache, logger: logger.OrNop(log).Named("urlcache")}
}

// Resolve returns the cached URL for p.Code or resolves and stores it
func (r *CachingResolver) Resolve(ctx context.Context, p *domain.ProductRecord) string {
	if p == nil || strings.TrimSpace(p.Code) == "" {
		return r.next.Resolve(ctx, p)
	}

	key := "url:" + strings.TrimSpace(p.Code)
	if cached, err := r.cache.Get(ctx, key); err == nil {
		metrics.CacheLookups.WithLabelValues("url", metrics.OutcomeHit).Inc()
		return string(cached)
	}
	metrics.CacheLookups.WithLabelValues("url", metrics.OutcomeMiss).Inc()

	resolved := r.next.Resolve(ctx, p)
	if _, err := r.cache.SetIfAbsent(ctx, key, []byte(resolved), 0); err != nil {
		r.logger.Warn("failed to cache product URL", zap.String("code", p.Code), zap.Error(err))
	}
	return resolved
}
