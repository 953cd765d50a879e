package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/allergenlens/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	getError error
	setError error
	gets     int
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Duration),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *MockCacheRepository) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return false, m.setError
	}
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return true, nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockCacheRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheRepository) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

// MockProductClient is a mock implementation of domain.ProductClient.
// Products are keyed by barcode and by lowercased search term.
type MockProductClient struct {
	mu         sync.Mutex
	byCode     map[string]*domain.ProductRecord
	byTerm     map[string]*domain.ProductRecord
	searchErr  error
	searchWait map[string]time.Duration
	calls      []string
}

func NewMockProductClient() *MockProductClient {
	return &MockProductClient{
		byCode:     make(map[string]*domain.ProductRecord),
		byTerm:     make(map[string]*domain.ProductRecord),
		searchWait: make(map[string]time.Duration),
	}
}

func (m *MockProductClient) GetProduct(ctx context.Context, code string) (*domain.ProductRecord, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "barcode:"+code)
	p, ok := m.byCode[code]
	m.mu.Unlock()

	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *MockProductClient) SearchProduct(ctx context.Context, term string) (*domain.ProductRecord, error) {
	m.mu.Lock()
	m.calls = append(m.calls, "search:"+term)
	p, ok := m.byTerm[strings.ToLower(term)]
	wait := m.searchWait[term]
	searchErr := m.searchErr
	m.mu.Unlock()

	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if searchErr != nil {
		return nil, searchErr
	}
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *MockProductClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MockChatClient is a mock implementation of domain.ChatClient
type MockChatClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []domain.ChatRequest
}

func (m *MockChatClient) Complete(ctx context.Context, req domain.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

func (m *MockChatClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// staticTerms is a CandidateSource and TermGenerator returning fixed terms
type staticTerms []string

func (s staticTerms) Build(ctx context.Context, query string) []string {
	return append([]string(nil), s...)
}

func (s staticTerms) Generate(ctx context.Context, query string) []string {
	return append([]string(nil), s...)
}

// staticURLResolver resolves every product with a code to a fixed page
type staticURLResolver struct {
	base string
}

func (r staticURLResolver) Resolve(ctx context.Context, p *domain.ProductRecord) string {
	if p == nil || p.Code == "" {
		return ""
	}
	return r.base + "/" + p.Code
}

// stubMatcher returns a fixed match or error and counts calls
type stubMatcher struct {
	mu    sync.Mutex
	match *domain.Match
	err   error
	calls int
}

func (s *stubMatcher) FindMatch(ctx context.Context, query string) (*domain.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.match, s.err
}

// stubValidator returns a fixed verdict
type stubValidator struct {
	verdict domain.Verdict
	calls   int
}

func (s *stubValidator) Validate(ctx context.Context, query, productContext string) domain.Verdict {
	s.calls++
	return s.verdict
}
