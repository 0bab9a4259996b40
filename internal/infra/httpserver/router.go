package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	appanalysis "github.com/bryanwahyu/automaton-review/internal/application/analysis"
	domain "github.com/bryanwahyu/automaton-review/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-review/internal/middleware"
)

// Options configures the router.
type Options struct {
	CORSOrigins       []string
	APIKeys           map[string]string
	RateLimitRPS      float64
	RateLimitBurst    int
	AllowPrivateHosts bool
	Metrics           *middleware.Metrics
	Checks            map[string]middleware.HealthChecker
}

type Router struct {
	svc          *appanalysis.Service
	allowPrivate bool
}

func NewRouter(svc *appanalysis.Service, opts Options) http.Handler {
	r := &Router{svc: svc, allowPrivate: opts.AllowPrivateHosts}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.Recoverer)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(metrics.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	mux.Use(middleware.RateLimitMiddleware(opts.RateLimitRPS, opts.RateLimitBurst))

	mux.Get("/health", middleware.LivenessHandler)
	mux.Get("/healthz", middleware.HealthHandler(opts.Checks))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Post("/analyze-pr", r.wrap(r.handleSubmit))
	mux.Get("/status/{task_id}", r.wrap(r.handleStatus))
	mux.Get("/results/{task_id}", r.wrap(r.handleResults))
	mux.Get("/jobs/latest", r.wrap(r.handleLatest))
	mux.Get("/jobs/{task_id}/events", r.wrap(r.handleEvents))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// httpError carries a status code and client-facing detail.
type httpError struct {
	code   int
	detail string
}

func (e *httpError) Error() string { return e.detail }

func badRequest(msg string) error { return &httpError{code: http.StatusBadRequest, detail: msg} }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var he *httpError
		switch {
		case errors.As(err, &he):
			writeJSON(w, he.code, detail(he.detail))
		case errors.Is(err, appanalysis.ErrInvalidRequest):
			writeJSON(w, http.StatusBadRequest, detail(err.Error()))
		case errors.Is(err, domain.ErrQueueFull):
			writeJSON(w, http.StatusServiceUnavailable, detail("queue is full, try again later"))
		case errors.Is(err, domain.ErrNotFound):
			writeJSON(w, http.StatusNotFound, detail("not found"))
		default:
			log.Error().Err(err).Str("path", req.URL.Path).Msg("request failed")
			writeJSON(w, http.StatusInternalServerError, detail("internal error"))
		}
	}
}

func detail(msg string) map[string]string { return map[string]string{"detail": msg} }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type submitRequest struct {
	RepoURL     string `json:"repo_url"`
	PRNumber    int    `json:"pr_number"`
	GithubToken string `json:"github_token,omitempty"`
}

// POST /analyze-pr
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var body submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20))
	if err := dec.Decode(&body); err != nil {
		return badRequest("invalid JSON body")
	}
	body.RepoURL = middleware.SanitizeString(body.RepoURL)
	if err := middleware.ValidateRepoURL(body.RepoURL, r.allowPrivate); err != nil {
		return badRequest(err.Error())
	}
	if err := middleware.ValidatePRNumber(body.PRNumber); err != nil {
		return badRequest(err.Error())
	}

	id, err := r.svc.Submit(req.Context(), appanalysis.SubmitCommand{
		RepoURL:  body.RepoURL,
		PRNumber: body.PRNumber,
		Token:    strings.TrimSpace(body.GithubToken),
	})
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": string(id)})
	return nil
}

// GET /status/{task_id}
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "task_id"))
	view, err := r.svc.Status(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, view)
	return nil
}

// GET /results/{task_id}
func (r *Router) handleResults(w http.ResponseWriter, req *http.Request) error {
	id := domain.JobID(chi.URLParam(req, "task_id"))
	result, err := r.svc.Result(req.Context(), id)

	var failed *appanalysis.FailedError
	switch {
	case errors.Is(err, appanalysis.ErrNotReady):
		writeJSON(w, http.StatusNotFound, detail("Result not ready"))
		return nil
	case errors.As(err, &failed):
		writeJSON(w, http.StatusInternalServerError, detail(failed.Detail))
		return nil
	case err != nil:
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"task_id": id, "result": result})
	return nil
}

// GET /jobs/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	list, err := r.svc.Latest(req.Context(), middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*domain.Job{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

// GET /jobs/{task_id}/events?limit=
func (r *Router) handleEvents(w http.ResponseWriter, req *http.Request) error {
	raw := chi.URLParam(req, "task_id")
	if err := middleware.ValidateJobID(raw); err != nil {
		return badRequest(err.Error())
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	events, err := r.svc.JobEvents(req.Context(), domain.JobID(raw), limit)
	if err != nil {
		return err
	}
	if events == nil {
		events = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, events)
	return nil
}
