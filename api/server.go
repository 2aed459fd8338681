// Package api provides the HTTP REST API server for dartfin.
//
// It exposes indicator series, DART financial statements, report listings,
// corp-code lookups and today's disclosures as JSON, plus Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seenimoa/dartfin/internal/config"
	"github.com/seenimoa/dartfin/internal/datasource"
	"github.com/seenimoa/dartfin/internal/metrics"
	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/internal/providers/dart"
	"github.com/seenimoa/dartfin/pkg/models"
	"github.com/seenimoa/dartfin/pkg/utils"
)

// Version is reported by /health. Set at build time with -ldflags.
var Version = "dev"

// Services are the components the API serves from. Feed and CorpCodes may
// be nil; their routes then answer 503.
type Services struct {
	Aggregator *datasource.Aggregator
	Client     *dart.Client
	CorpCodes  *dart.CorpCodes
	Feed       *dart.Feed
	Registry   *provider.Registry
	Metrics    *metrics.Metrics
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	svc    Services
	log    zerolog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, svc Services, log zerolog.Logger) *Server {
	if svc.Registry == nil {
		svc.Registry = provider.Global()
	}
	if svc.Metrics == nil {
		svc.Metrics = metrics.Default()
	}
	s := &Server{
		cfg: cfg,
		svc: svc,
		log: log.With().Str("component", "api").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("API server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(150 * time.Second))

	// CORS
	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.svc.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Indicators
		r.Get("/indicators/{stockCode}", s.handleIndicators)

		// Statements
		r.Get("/statements/{corpCode}", s.handleStatement)
		r.Get("/statements/{corpCode}/multi-year", s.handleMultiYear)

		// Filings
		r.Get("/reports/{corpCode}", s.handleReports)
		r.Get("/disclosures/today", s.handleDisclosures)

		// Reference
		r.Get("/corpcode/{stockCode}", s.handleCorpCode)
		r.Get("/providers", s.handleProviders)
		r.Get("/models", s.handleModels)
		r.Get("/config", s.handleGetConfig)
	})

	return r
}

// accessLog writes one zerolog line per request.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatementResult is a statement response annotated with the reporting mode
// that produced it.
type StatementResult struct {
	Status  string             `json:"status"`
	Message string             `json:"message"`
	Mode    string             `json:"fs_div"`
	List    []models.LineItem `json:"list,omitempty"`
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]string{
			"status":  "ok",
			"version": Version,
			"time":    utils.NowKST().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleIndicators(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockCode")
	if err := utils.ValidateStockCode(stockCode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, ok := yearRange(w, r, utils.NowKST().Year())
	if !ok {
		return
	}
	if s.svc.Aggregator == nil {
		writeError(w, http.StatusServiceUnavailable, "indicator aggregation not configured")
		return
	}

	series, err := s.svc.Aggregator.BuildIndicatorSeries(r.Context(), stockCode, start, end)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: series})
}

func (s *Server) handleStatement(w http.ResponseWriter, r *http.Request) {
	corpCode, ok := corpCodeParam(w, r)
	if !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year is required")
		return
	}
	quarter, ok := quarterParam(w, r)
	if !ok {
		return
	}

	var resp *models.StatementResponse
	switch mode := models.ReportingMode(r.URL.Query().Get("fs_div")); mode {
	case "":
		resp, err = s.svc.Client.FinancialStatements(r.Context(), corpCode, year, quarter.ReportCode())
	case models.Consolidated, models.Standalone:
		resp, err = s.svc.Client.Statement(r.Context(), corpCode, year, quarter.ReportCode(), mode)
	default:
		writeError(w, http.StatusBadRequest, "fs_div must be CFS or OFS")
		return
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: StatementResult{
			Status:  resp.Status,
			Message: resp.Message,
			Mode:    string(resp.Mode),
			List:    resp.List,
		},
	})
}

func (s *Server) handleMultiYear(w http.ResponseWriter, r *http.Request) {
	corpCode, ok := corpCodeParam(w, r)
	if !ok {
		return
	}
	start, end, ok := yearRange(w, r, 0)
	if !ok {
		return
	}
	quarter, ok := quarterParam(w, r)
	if !ok {
		return
	}

	out, err := s.svc.Client.MultiYearStatements(r.Context(), corpCode, start, end, quarter.ReportCode())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	corpCode, ok := corpCodeParam(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	query := dart.ReportQuery{
		CorpCode:  corpCode,
		BeginDate: q.Get("bgn_de"),
		EndDate:   q.Get("end_de"),
	}
	for _, d := range []string{query.BeginDate, query.EndDate} {
		if d == "" {
			continue
		}
		if _, err := utils.ParseDate(d); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	var err error
	if query.PageNo, err = optionalInt(q.Get("page_no"), 1); err != nil {
		writeError(w, http.StatusBadRequest, "page_no must be a positive integer")
		return
	}
	if query.PageCount, err = optionalInt(q.Get("page_count"), 10); err != nil || query.PageCount > 100 {
		writeError(w, http.StatusBadRequest, "page_count must be between 1 and 100")
		return
	}

	resp, err := s.svc.Client.ReportList(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleCorpCode(w http.ResponseWriter, r *http.Request) {
	stockCode := chi.URLParam(r, "stockCode")
	if err := utils.ValidateStockCode(stockCode); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.svc.CorpCodes == nil {
		writeError(w, http.StatusServiceUnavailable, "corp code table not configured")
		return
	}

	entry, ok, err := s.svc.CorpCodes.Lookup(r.Context(), stockCode)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "company with stock code "+utils.NormalizeStockCode(stockCode)+" not found")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: entry})
}

func (s *Server) handleDisclosures(w http.ResponseWriter, r *http.Request) {
	if s.svc.Feed == nil {
		writeError(w, http.StatusServiceUnavailable, "disclosure feed not configured")
		return
	}
	items, err := s.svc.Feed.Today(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: items})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.svc.Registry.List()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.svc.Registry.Coverage()})
}

// --- Helpers ---

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var notFound *datasource.ErrCompanyNotFound
	var apiErr *dart.APIError
	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "request cancelled: "+err.Error())
	case errors.As(err, &apiErr) && apiErr.Status == models.StatusBadKey:
		s.log.Error().Err(err).Msg("DART rejected the API key")
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.log.Warn().Err(err).Msg("upstream request failed")
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func corpCodeParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	corpCode := chi.URLParam(r, "corpCode")
	if !utils.IsCorpCode(corpCode) {
		writeError(w, http.StatusBadRequest, "corp code must be 8 digits")
		return "", false
	}
	return corpCode, true
}

func quarterParam(w http.ResponseWriter, r *http.Request) (models.Quarter, bool) {
	s := r.URL.Query().Get("quarter")
	if s == "" {
		return models.Q4, true
	}
	q, err := models.ParseQuarter(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return q, true
}

// MaxYearSpan bounds how many fiscal years one request may fan out to.
const MaxYearSpan = 20

// yearRange reads start_year and end_year. When defaultEnd is non-zero both
// are optional: end_year defaults to defaultEnd and start_year to end_year.
func yearRange(w http.ResponseWriter, r *http.Request, defaultEnd int) (int, int, bool) {
	q := r.URL.Query()
	parse := func(key string, def int) (int, bool) {
		v := q.Get(key)
		if v == "" && def != 0 {
			return def, true
		}
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			writeError(w, http.StatusBadRequest, key+" must be a four-digit year")
			return 0, false
		}
		return y, true
	}

	end, ok := parse("end_year", defaultEnd)
	if !ok {
		return 0, 0, false
	}
	startDefault := 0
	if defaultEnd != 0 {
		startDefault = end
	}
	start, ok := parse("start_year", startDefault)
	if !ok {
		return 0, 0, false
	}
	if start > end {
		writeError(w, http.StatusBadRequest, "start_year must not be after end_year")
		return 0, 0, false
	}
	if end-start+1 > MaxYearSpan {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("year range may cover at most %d years", MaxYearSpan))
		return 0, 0, false
	}
	return start, end, true
}

func optionalInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
