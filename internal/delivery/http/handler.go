package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/allergenlens/backend/internal/domain"
	"github.com/allergenlens/backend/internal/logger"
	"github.com/allergenlens/backend/internal/usecase"
)

const (
	serviceName    = "allergenlens-backend"
	serviceVersion = "1.0.0"
)

// Resolver is the chat-turn entry point used by the resolve endpoint
type Resolver interface {
	Resolve(ctx context.Context, sessionID, query string) *domain.Resolution
}

// HandlerDeps groups the usecases served over HTTP. Nil members make their
// endpoints answer 503.
type HandlerDeps struct {
	Resolutions Resolver
	Candidates  usecase.CandidateSource
	Products    domain.ProductClient
	Formatter   *usecase.ContextFormatter
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolutions Resolver
	candidates  usecase.CandidateSource
	products    domain.ProductClient
	formatter   *usecase.ContextFormatter
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(deps HandlerDeps, log *zap.Logger) *Handler {
	formatter := deps.Formatter
	if formatter == nil {
		formatter = usecase.NewContextFormatter(nil)
	}

	return &Handler{
		resolutions: deps.Resolutions,
		candidates:  deps.Candidates,
		products:    deps.Products,
		formatter:   formatter,
		logger:      logger.OrNop(log).Named("http"),
	}
}

// ResolveRequest is the body of POST /api/v1/allergens/resolve
type ResolveRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionId"`
}

// ResolveResponse carries grounding context and citations for one chat turn
type ResolveResponse struct {
	SessionID string           `json:"sessionId"`
	Context   string           `json:"context"`
	Sources   []domain.Source  `json:"sources"`
	Matched   bool             `json:"matched"`
	MatchType domain.MatchType `json:"matchType,omitempty"`
	Candidate string           `json:"candidate,omitempty"`
	Cached    bool             `json:"cached"`
}

// ProductResponse is the body of GET /api/v1/products/:code
type ProductResponse struct {
	Product *domain.ProductRecord `json:"product"`
	Context string                `json:"context"`
	Sources []domain.Source       `json:"sources"`
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": serviceVersion,
	})
}

// ResolveAllergens resolves a shopper question into grounding context and sources
func (h *Handler) ResolveAllergens(c *gin.Context) {
	if h.resolutions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "allergen resolution is not configured"})
		return
	}

	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: query is required"})
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: query must not be blank"})
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	res := h.resolutions.Resolve(c.Request.Context(), sessionID, query)

	c.JSON(http.StatusOK, ResolveResponse{
		SessionID: sessionID,
		Context:   res.Context,
		Sources:   res.Sources,
		Matched:   res.Matched,
		MatchType: res.MatchType,
		Candidate: res.Candidate,
		Cached:    res.Cached,
	})
}

// CandidateTerms returns the search terms a query would be tried with
func (h *Handler) CandidateTerms(c *gin.Context) {
	if h.candidates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candidate generation is not configured"})
		return
	}

	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'q' is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"terms": h.candidates.Build(c.Request.Context(), query)})
}

// GetProduct looks up a product by barcode and renders its grounding context
func (h *Handler) GetProduct(c *gin.Context) {
	if h.products == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "product lookup is not configured"})
		return
	}

	code := strings.TrimSpace(c.Param("code"))
	if code == "" || usecase.ExtractBarcode(code) != code {
		c.JSON(http.StatusBadRequest, gin.H{"error": "barcode must be 8 to 14 digits"})
		return
	}

	product, err := h.products.GetProduct(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		case errors.Is(err, domain.ErrRateLimited):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "upstream rate limit reached, retry later"})
		default:
			h.logger.Warn("product lookup failed", zap.String("code", code), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "product database unavailable"})
		}
		return
	}

	text, canonicalURL := h.formatter.Format(c.Request.Context(), product)
	match := &domain.Match{
		Product:      product,
		Context:      text,
		MatchType:    domain.MatchTypeBarcode,
		Candidate:    code,
		CanonicalURL: canonicalURL,
	}

	c.JSON(http.StatusOK, ProductResponse{
		Product: product,
		Context: text,
		Sources: usecase.BuildSourcesFromMatch(match),
	})
}
