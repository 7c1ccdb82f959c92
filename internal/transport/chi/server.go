// Package chi is the HTTP transport for searchd.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	chirouter "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/plateshare/searchd/internal/domain"
	"github.com/plateshare/searchd/internal/domain/geo"
	domindex "github.com/plateshare/searchd/internal/domain/index"
	"github.com/plateshare/searchd/internal/domain/search/filter"
	"github.com/plateshare/searchd/internal/domain/search/mode"
	"github.com/plateshare/searchd/internal/domain/search/request"
	logpkg "github.com/plateshare/searchd/internal/logger"
	"github.com/plateshare/searchd/internal/metrics"
	healthuc "github.com/plateshare/searchd/internal/usecase/health"
	indexuc "github.com/plateshare/searchd/internal/usecase/index"
	searchuc "github.com/plateshare/searchd/internal/usecase/search"
)

// maxWebhookBody bounds the raw webhook payload read into memory.
const maxWebhookBody = 1 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server hosts the search, indexing, health and stats endpoints.
type Server struct {
	search        *searchuc.Service
	index         *indexuc.Service
	health        *healthuc.Service
	webhookSecret string
	adminKeys     []string
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	search *searchuc.Service,
	index *indexuc.Service,
	health *healthuc.Service,
	webhookSecret string,
	adminKeys []string,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:        search,
		index:         index,
		health:        health,
		webhookSecret: webhookSecret,
		adminKeys:     adminKeys,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, "validation_failed"),
		sentinelHandler(domain.ErrInvalidSignature, http.StatusUnauthorized, "invalid_signature"),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, "not_found"),
		sentinelHandler(domain.ErrEmbeddingUnavailable, http.StatusBadGateway, "embedding_unavailable"),
		sentinelHandler(domain.ErrSearchUnavailable, http.StatusServiceUnavailable, "search_unavailable"),
		sentinelHandler(domain.ErrVectorStore, http.StatusServiceUnavailable, "vector_store_unavailable"),
	}
	return s
}

// Routes builds the chi router with middleware and all endpoints mounted.
func (s *Server) Routes() http.Handler {
	r := chirouter.NewRouter()
	r.Use(s.recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.wideEvent)
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/stats", s.StatsSnapshot)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chirouter.Router) {
		r.Get("/search", s.SearchGet)
		r.Post("/search", s.SearchPost)

		r.Route("/index", func(r chirouter.Router) {
			r.Post("/webhook", s.IndexWebhook)
			r.With(BearerAuthMiddleware(s.adminKeys)).Post("/batch", s.IndexBatch)
		})
	})

	return r
}

// SearchGet handles GET /api/v1/search with query-string parameters.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	req, err := searchRequestFromQuery(r, s.search.Limits())
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}
	s.serveSearch(w, r, req)
}

// searchBody is the POST /api/v1/search payload.
type searchBody struct {
	Query   string `json:"query"`
	Mode    string `json:"mode,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
	Filters struct {
		Category    string   `json:"category,omitempty"`
		DietaryTags []string `json:"dietaryTags,omitempty"`
		Lat         *float64 `json:"lat,omitempty"`
		Lng         *float64 `json:"lng,omitempty"`
		RadiusKM    *float64 `json:"radiusKm,omitempty"`
		MaxAgeHours int      `json:"maxAgeHours,omitempty"`
		ProfileID   string   `json:"profileId,omitempty"`
		CategoryIDs []int64  `json:"categoryIds,omitempty"`
	} `json:"filters,omitempty"`
}

// SearchPost handles POST /api/v1/search with a JSON body.
func (s *Server) SearchPost(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	m, err := mode.Parse(body.Mode)
	if err != nil {
		s.handleDomainError(w, fmt.Errorf("%w: %v", domain.ErrValidation, err))
		return
	}

	f := filter.Filters{
		Category:    body.Filters.Category,
		DietaryTags: body.Filters.DietaryTags,
		MaxAgeHours: body.Filters.MaxAgeHours,
		ProfileID:   body.Filters.ProfileID,
		CategoryIDs: body.Filters.CategoryIDs,
	}
	if body.Filters.Lat != nil || body.Filters.Lng != nil || body.Filters.RadiusKM != nil {
		if body.Filters.Lat == nil || body.Filters.Lng == nil || body.Filters.RadiusKM == nil {
			s.handleDomainError(w, fmt.Errorf("%w: geo filter needs lat, lng and radiusKm together", domain.ErrValidation))
			return
		}
		f.Geo = &geo.Circle{
			Center:   geo.Point{Lat: *body.Filters.Lat, Lng: *body.Filters.Lng},
			RadiusKM: *body.Filters.RadiusKM,
		}
	}

	req, err := request.New(body.Query, m, f, body.Limit, body.Offset, s.search.Limits())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	s.serveSearch(w, r, req)
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request, req request.Request) {
	resp, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// webhookBody is the POST /api/v1/index/webhook payload: one catalog mutation.
type webhookBody struct {
	Type   string          `json:"type"`
	Record json.RawMessage `json:"record"`
}

// IndexWebhook handles POST /api/v1/index/webhook. The body signature is
// verified before any parsing; an unsigned payload never reaches the decoder.
func (s *Server) IndexWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "read body: "+err.Error())
		return
	}

	if err := VerifySignature(s.webhookSecret, body, r.Header.Get(SignatureHeader)); err != nil {
		s.handleDomainError(w, err)
		return
	}

	var payload webhookBody
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}

	changeType := domindex.ChangeType(payload.Type)
	if !changeType.Valid() {
		s.handleDomainError(w, fmt.Errorf("%w: unknown change type %q", domain.ErrValidation, payload.Type))
		return
	}

	ch := indexuc.Change{Type: changeType}
	if err := json.Unmarshal(payload.Record, &ch.Listing); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid record: "+err.Error())
		return
	}
	if ch.Listing.ID == 0 {
		s.handleDomainError(w, fmt.Errorf("%w: record id is required", domain.ErrValidation))
		return
	}

	report := s.index.ApplyChange(r.Context(), ch)
	writeJSON(w, http.StatusOK, report)
}

// batchBody is the POST /api/v1/index/batch payload.
type batchBody struct {
	IDs    []int64 `json:"ids,omitempty"`
	Limit  int     `json:"limit,omitempty"`
	Offset int     `json:"offset,omitempty"`
	Force  bool    `json:"force,omitempty"`
}

// IndexBatch handles POST /api/v1/index/batch. An empty body reindexes a
// default window starting at offset zero.
func (s *Server) IndexBatch(w http.ResponseWriter, r *http.Request) {
	var body batchBody
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
			return
		}
	}

	if body.Limit < 0 || body.Offset < 0 {
		s.handleDomainError(w, fmt.Errorf("%w: limit and offset must be non-negative", domain.ErrValidation))
		return
	}

	report := s.index.Reindex(r.Context(), indexuc.BatchParams{
		IDs:    body.IDs,
		Limit:  body.Limit,
		Offset: body.Offset,
		Force:  body.Force,
	})
	writeJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// StatsSnapshot handles GET /stats.
func (s *Server) StatsSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.search.Stats().Snapshot())
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// searchRequestFromQuery parses the GET /api/v1/search query string.
func searchRequestFromQuery(r *http.Request, lim request.Limits) (request.Request, error) {
	q := r.URL.Query()

	m, err := mode.Parse(q.Get("mode"))
	if err != nil {
		return request.Request{}, err
	}

	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		return request.Request{}, err
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		return request.Request{}, err
	}
	maxAge, err := intParam(q.Get("maxAgeHours"), "maxAgeHours")
	if err != nil {
		return request.Request{}, err
	}

	f := filter.Filters{
		Category:    q.Get("category"),
		MaxAgeHours: maxAge,
		ProfileID:   q.Get("profileId"),
	}
	if tags := q.Get("dietaryTags"); tags != "" {
		f.DietaryTags = strings.Split(tags, ",")
	}
	if ids := q.Get("categoryIds"); ids != "" {
		for _, raw := range strings.Split(ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
			if err != nil {
				return request.Request{}, fmt.Errorf("categoryIds: %q is not an integer", raw)
			}
			f.CategoryIDs = append(f.CategoryIDs, id)
		}
	}

	f.Geo, err = geoFromQuery(q.Get("lat"), q.Get("lng"), q.Get("radiusKm"))
	if err != nil {
		return request.Request{}, err
	}

	return request.New(q.Get("q"), m, f, limit, offset, lim)
}

func geoFromQuery(latStr, lngStr, radiusStr string) (*geo.Circle, error) {
	if latStr == "" && lngStr == "" && radiusStr == "" {
		return nil, nil
	}
	if latStr == "" || lngStr == "" || radiusStr == "" {
		return nil, errors.New("geo filter needs lat, lng and radiusKm together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, fmt.Errorf("lat: %q is not a number", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil {
		return nil, fmt.Errorf("lng: %q is not a number", lngStr)
	}
	radius, err := strconv.ParseFloat(radiusStr, 64)
	if err != nil {
		return nil, fmt.Errorf("radiusKm: %q is not a number", radiusStr)
	}

	return &geo.Circle{Center: geo.Point{Lat: lat, Lng: lng}, RadiusKM: radius}, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, raw)
	}
	return v, nil
}

// wideEvent emits one canonical log line per request and propagates
// X-Request-ID into the response and a request-scoped logger into the context.
func (s *Server) wideEvent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := middleware.GetReqID(r.Context())
		if requestID != "" {
			w.Header().Set("X-Request-ID", requestID)
		}

		reqLogger := s.logger.With(zap.String("request_id", requestID))
		ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		reqLogger.Info("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", r.RemoteAddr),
			zap.Int("response_bytes", ww.BytesWritten()),
		)
	})
}

// recoverer converts panics into JSON 500s instead of chi's plain-text page.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
				)
				writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without
// exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrInvalidSignature,
		domain.ErrNotFound,
		domain.ErrEmbeddingUnavailable,
		domain.ErrSearchUnavailable,
		domain.ErrVectorStore,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			// Validation details are safe and useful for the caller.
			if errors.Is(err, domain.ErrValidation) {
				return err.Error()
			}
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
