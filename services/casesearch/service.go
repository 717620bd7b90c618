package casesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/serviceutil"
	"jagriti-backend/lib/telemetry"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var tracer = telemetry.Tracer("jagriti.services.casesearch")

const (
	report_service_search = "service.search"
	report_service_cache  = "service.clear-cache"
)

// Portal is what the service needs from *jagriti.Portal.
//
// note: fault injection point
type Portal interface {
	States(ctx context.Context) ([]jagriti.State, error)
	Commissions(ctx context.Context, stateRef string) (jagriti.State, []jagriti.Commission, error)
	Search(ctx context.Context, q jagriti.Query) (jagriti.SearchResult, error)
	ClearCache()
}

type Options struct {
	Version string
	// AdminToken guards the admin routes and the RPC surface, empty leaves
	// them open.
	AdminToken string
	// RequestTimeout bounds every request, zero disables it.
	RequestTimeout time.Duration
	// Registry receives the HTTP metrics and is served on /metrics, a fresh
	// registry is used when nil.
	Registry *prometheus.Registry
}

type Service struct {
	portal   Portal
	options  Options
	metrics  *metrics
	registry *prometheus.Registry
	tel      telemetry.API
}

func NewService(portal Portal, options Options, tel telemetry.API) *Service {
	registry := options.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if options.Version == "" {
		options.Version = "dev"
	}
	return &Service{
		portal:   portal,
		options:  options,
		metrics:  newMetrics(registry),
		registry: registry,
		tel:      telemetry.NewScopedAPI("casesearch", tel),
	}
}

// Handler returns the HTTP surface: the REST routes, the connect RPC
// procedures and /metrics.
func (s *Service) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.middleware)
	if s.options.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.options.RequestTimeout))
	}

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/states", s.handleStates)
	r.Get("/states/", s.handleStates)
	r.Get("/commissions/{state_id}", s.handleCommissions)
	r.Get("/cases/by-{kind}", s.handleSearchQuery)
	r.Post("/cases/by-{kind}", s.handleSearchBody)

	r.With(serviceutil.RequireAccessToken(s.options.AdminToken)).
		Post("/admin/cache/clear", s.handleClearCache)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	for path, handler := range s.rpcHandlers() {
		r.Handle(path, handler)
	}
	return r
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.DebugContext(
			r.Context(), "request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"remote", r.RemoteAddr,
			"took", time.Since(start).String(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Warn("failed to write response", "err", err)
	}
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	searches := make([]string, 0, len(jagriti.SearchKinds()))
	for _, kind := range jagriti.SearchKinds() {
		searches = append(searches, "/cases/by-"+kind.Slug())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Jagriti Case Search API",
		"version": s.options.Version,
		"endpoints": map[string]any{
			"states":           "/states",
			"commissions":      "/commissions/{state_id}",
			"search_endpoints": searches,
			"metrics":          "/metrics",
		},
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type statesResponse struct {
	States []jagriti.State `json:"states"`
}

func (s *Service) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.portal.States(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statesResponse{States: states})
}

type commissionsResponse struct {
	Commissions []jagriti.Commission `json:"commissions"`
	StateID     string               `json:"state_id"`
}

func (s *Service) handleCommissions(w http.ResponseWriter, r *http.Request) {
	state, commissions, err := s.portal.Commissions(r.Context(), chi.URLParam(r, "state_id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, commissionsResponse{
		Commissions: commissions,
		StateID:     state.ID,
	})
}

type searchRequest struct {
	State       string `json:"state"`
	Commission  string `json:"commission"`
	SearchValue string `json:"search_value"`
}

func (s *Service) handleSearchBody(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body)
	if err != nil {
		s.writeError(w, r, &jagriti.Error{
			Code:    jagriti.CodeValidation,
			Stage:   jagriti.StageBuild,
			Message: fmt.Sprintf("invalid request body: %s", err.Error()),
		})
		return
	}
	s.search(w, r, body)
}

func (s *Service) handleSearchQuery(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	s.search(w, r, searchRequest{
		State:       query.Get("state"),
		Commission:  query.Get("commission"),
		SearchValue: query.Get("search_value"),
	})
}

func (s *Service) search(w http.ResponseWriter, r *http.Request, req searchRequest) {
	ctx, span := tracer.Start(r.Context(), "http:Search")
	defer span.End()

	kind, err := jagriti.ParseSearchKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.portal.Search(ctx, jagriti.Query{
		State:       req.State,
		Commission:  req.Commission,
		SearchValue: req.SearchValue,
		Kind:        kind,
	})
	s.metrics.observeSearch(kind, err)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.portal.ClearCache()
	s.tel.ReportDebug(report_service_cache, middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type errorResponse struct {
	Error       string   `json:"error"`
	Detail      string   `json:"detail"`
	Stage       string   `json:"stage,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	IncidentID  string   `json:"incident_id,omitempty"`
}

// statusOf maps an error onto the HTTP status the API answers with.
func statusOf(err error) int {
	switch jagriti.CodeOf(err) {
	case jagriti.CodeValidation:
		return http.StatusBadRequest
	case jagriti.CodeNotFound:
		return http.StatusNotFound
	case jagriti.CodeCaptcha:
		return http.StatusServiceUnavailable
	case jagriti.CodeParse, jagriti.CodeUpstream, jagriti.CodeNetwork:
		return http.StatusBadGateway
	case jagriti.CodeTimeout:
		return http.StatusGatewayTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func toErrorResponse(err error) errorResponse {
	failure, ok := jagriti.AsError(err)
	if !ok {
		return errorResponse{Error: "internal_error", Detail: err.Error()}
	}
	return errorResponse{
		Error:       string(failure.Code),
		Detail:      failure.Error(),
		Stage:       string(failure.Stage),
		Suggestions: failure.Suggestions,
		IncidentID:  failure.IncidentID,
	}
}

func (s *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status >= 500 {
		s.tel.ReportWarning(
			report_service_search,
			middleware.GetReqID(r.Context()),
			strings.TrimPrefix(r.URL.Path, "/"),
			err,
		)
	}
	writeJSON(w, status, toErrorResponse(err))
}
