package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/config"
	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/listing"
	"github.com/plateshare/searchd/internal/domain/search/filter"
	"github.com/plateshare/searchd/internal/usecase/embedding"
	healthuc "github.com/plateshare/searchd/internal/usecase/health"
	indexuc "github.com/plateshare/searchd/internal/usecase/index"
	searchuc "github.com/plateshare/searchd/internal/usecase/search"
	"github.com/plateshare/searchd/internal/vector"
)

// --- Stubs ---

type stubIndex struct {
	matches []vector.Match
	err     error
}

func (s *stubIndex) Query(_ context.Context, _ []float32, _ int, _ filter.Filters) ([]vector.Match, error) {
	return s.matches, s.err
}

func (s *stubIndex) Upsert(_ context.Context, _ vector.Record) error        { return nil }
func (s *stubIndex) UpsertBatch(_ context.Context, _ []vector.Record) error { return nil }
func (s *stubIndex) Delete(_ context.Context, _ []string) error             { return nil }

func (s *stubIndex) Ping(_ context.Context) error { return s.err }

type stubCatalog struct {
	rows []listing.Listing
	err  error
}

func (s *stubCatalog) FullTextSearch(
	_ context.Context, _ string, _ filter.Filters, _, _ int,
) ([]listing.Listing, int64, error) {
	return s.rows, int64(len(s.rows)), s.err
}

func (s *stubCatalog) SubstringSearch(
	_ context.Context, _ string, _ filter.Filters, _, _ int,
) ([]listing.Listing, int64, error) {
	return s.rows, int64(len(s.rows)), s.err
}

func (s *stubCatalog) FetchByID(_ context.Context, _ int64) (listing.Listing, error) {
	return listing.Listing{}, domain.ErrNotFound
}

func (s *stubCatalog) FetchByIDs(_ context.Context, _ []int64) ([]listing.Listing, error) {
	return s.rows, s.err
}

func (s *stubCatalog) FetchWindow(_ context.Context, _, _ int, _ bool) ([]listing.Listing, error) {
	return s.rows, s.err
}

func (s *stubCatalog) Ping(_ context.Context) error { return s.err }

type stubEmbedder struct {
	vec []float32
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float32, string, error) {
	return s.vec, "primary", s.err
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, string, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = s.vec
	}
	return out, "primary", s.err
}

type stubProviders struct{ healthy bool }

func (s *stubProviders) Statuses(_ context.Context) []embedding.Status {
	return []embedding.Status{{Name: "primary", Healthy: s.healthy}}
}

const testWebhookSecret = "webhook-secret"

func newTestServer(t *testing.T, index *stubIndex, catalog *stubCatalog, embed *stubEmbedder) http.Handler {
	t.Helper()

	cfg := config.Config{}
	cfg.ApplyDefaults()

	searchSvc := searchuc.New(index, catalog, embed, cfg.Search, zap.NewNop())
	indexSvc := indexuc.New(index, catalog, embed, cfg.Embedding, zap.NewNop())
	healthSvc := healthuc.New(index, catalog, &stubProviders{healthy: true})

	srv := NewServer(searchSvc, indexSvc, healthSvc, testWebhookSecret, []string{"admin-key"}, zap.NewNop())
	return srv.Routes()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (body: %s)", err, rec.Body.String())
	}
}

// --- Search ---

func TestSearchGet(t *testing.T) {
	index := &stubIndex{matches: []vector.Match{
		{ID: "1", Score: 0.9, Meta: vector.Metadata{Title: "fresh apples"}},
	}}
	catalog := &stubCatalog{rows: []listing.Listing{{ID: 1, Title: "fresh apples", IsActive: true}}}
	handler := newTestServer(t, index, catalog, &stubEmbedder{vec: []float32{0.1}})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=fresh+apples&mode=hybrid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []json.RawMessage `json:"results"`
		Total   int               `json:"total"`
		Mode    string            `json:"mode"`
	}
	decodeBody(t, rec, &resp)
	if resp.Mode != "hybrid" {
		t.Errorf("expected mode hybrid, got %s", resp.Mode)
	}
	if len(resp.Results) == 0 {
		t.Error("expected results")
	}
}

func TestSearchGetValidation(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	tests := []struct {
		name string
		url  string
	}{
		{"empty query", "/api/v1/search?q="},
		{"unknown mode", "/api/v1/search?q=x&mode=psychic"},
		{"bad limit", "/api/v1/search?q=x&limit=abc"},
		{"incomplete geo", "/api/v1/search?q=x&lat=52.5"},
		{"bad lat", "/api/v1/search?q=x&lat=abc&lng=13.4&radiusKm=5"},
		{"out-of-range lat", "/api/v1/search?q=x&lat=95&lng=13.4&radiusKm=5"},
		{"bad category id", "/api/v1/search?q=x&categoryIds=1,abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestSearchPost(t *testing.T) {
	index := &stubIndex{matches: []vector.Match{
		{ID: "1", Score: 0.9, Meta: vector.Metadata{Title: "soup"}},
	}}
	handler := newTestServer(t, index, &stubCatalog{}, &stubEmbedder{vec: []float32{0.1}})

	body := `{"query":"warm soup","mode":"semantic","limit":5,"filters":{"dietaryTags":["vegan"]}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSearchPostIncompleteGeo(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	body := `{"query":"soup","filters":{"lat":52.5,"lng":13.4}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for partial geo filter, got %d", rec.Code)
	}
}

func TestSearchHonorsConfiguredMaxLimit(t *testing.T) {
	catalog := &stubCatalog{rows: []listing.Listing{
		{ID: 1, Title: "bread", IsActive: true},
		{ID: 2, Title: "bread rolls", IsActive: true},
		{ID: 3, Title: "breadsticks", IsActive: true},
	}}

	cfg := config.Config{}
	cfg.ApplyDefaults()
	cfg.Search.MaxLimit = 1

	searchSvc := searchuc.New(&stubIndex{}, catalog, &stubEmbedder{}, cfg.Search, zap.NewNop())
	indexSvc := indexuc.New(&stubIndex{}, catalog, &stubEmbedder{}, cfg.Embedding, zap.NewNop())
	healthSvc := healthuc.New(&stubIndex{}, catalog, &stubProviders{healthy: true})
	handler := NewServer(searchSvc, indexSvc, healthSvc, testWebhookSecret, nil, zap.NewNop()).Routes()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=bread&mode=text&limit=50", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Results []json.RawMessage `json:"results"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Results) != 1 {
		t.Errorf("expected page capped at the configured max limit 1, got %d results", len(resp.Results))
	}
}

func TestSearchUnavailable(t *testing.T) {
	// Both hybrid branches fail: embedding down and catalog down.
	index := &stubIndex{err: domain.ErrVectorStore}
	catalog := &stubCatalog{err: domain.ErrSearchUnavailable}
	embed := &stubEmbedder{err: domain.ErrEmbeddingUnavailable}
	handler := newTestServer(t, index, catalog, embed)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search?q=soup&mode=hybrid", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
}

// --- Webhook ---

func webhookRequest(body []byte, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/webhook", bytes.NewBuffer(body))
	if sig != "" {
		req.Header.Set(SignatureHeader, sig)
	}
	return req
}

func TestIndexWebhook(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{vec: []float32{0.1}})

	body := []byte(`{"type":"insert","record":{"id":42,"title":"free bread","isActive":true}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(testWebhookSecret, body)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Indexed int `json:"indexed"`
	}
	decodeBody(t, rec, &report)
	if report.Indexed != 1 {
		t.Errorf("expected 1 indexed, got %d", report.Indexed)
	}
}

func TestIndexWebhookBadSignature(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	body := []byte(`{"type":"insert","record":{"id":42}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign("wrong-secret", body)))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestIndexWebhookMissingSignature(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest([]byte(`{"type":"insert","record":{"id":1}}`), ""))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestIndexWebhookInvalidChangeType(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	body := []byte(`{"type":"truncate","record":{"id":1}}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, webhookRequest(body, sign(testWebhookSecret, body)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

// --- Batch ---

func TestIndexBatchRequiresAuth(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/batch", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without bearer token, got %d", rec.Code)
	}
}

func TestIndexBatch(t *testing.T) {
	catalog := &stubCatalog{rows: []listing.Listing{{ID: 1, Title: "bread", IsActive: true}}}
	handler := newTestServer(t, &stubIndex{}, catalog, &stubEmbedder{vec: []float32{0.1}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/batch", bytes.NewBufferString(`{"limit":10}`))
	req.Header.Set("Authorization", "Bearer admin-key")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var report struct {
		Indexed int `json:"indexed"`
	}
	decodeBody(t, rec, &report)
	if report.Indexed != 1 {
		t.Errorf("expected 1 indexed, got %d", report.Indexed)
	}
}

// --- Health and stats ---

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var report struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &report)
	if report.Status != "healthy" {
		t.Errorf("expected healthy, got %s", report.Status)
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	handler := newTestServer(t, &stubIndex{err: domain.ErrVectorStore}, &stubCatalog{}, &stubEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	handler := newTestServer(t, &stubIndex{}, &stubCatalog{}, &stubEmbedder{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap struct {
		TotalSearches *int64 `json:"total_searches"`
	}
	decodeBody(t, rec, &snap)
	if snap.TotalSearches == nil {
		t.Error("expected total_searches in stats payload")
	}
}
