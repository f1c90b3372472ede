// Package dashboard serves the wildfire risk page and its JSON API.
//
// The page streams slider values over a WebSocket and receives the live alert
// set back; explicit predictions, the per-session history, exports and the
// sensitivity charts go through the REST endpoints. Core packages never
// import this one.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/Danangellotti/app-incendios-cordoba/internal/common"
	"github.com/Danangellotti/app-incendios-cordoba/internal/features"
	"github.com/Danangellotti/app-incendios-cordoba/internal/ml"
	"github.com/Danangellotti/app-incendios-cordoba/internal/risk"
	"github.com/Danangellotti/app-incendios-cordoba/internal/session"
	"github.com/Danangellotti/app-incendios-cordoba/internal/storage"
)

// MetricsInterface defines metrics methods needed by the dashboard
type MetricsInterface interface {
	HistoryClearsInc()
	ExportsInc(outcome string)
	HTTPRequestObserve(method, route string, status int, seconds float64)
}

// ModelSource is the view of the model provider the dashboard needs;
// *ml.Provider satisfies it.
type ModelSource interface {
	Load() (ml.Classifier, error)
	Path() string
	Metadata() *ml.ModelMetadata
	LoadedAt() time.Time
}

// Archive stores explicit exports; *storage.Store satisfies it.
type Archive interface {
	PutExport(rec storage.ExportRecord) (string, error)
	GetExport(key string) (storage.ExportRecord, error)
	ListExports(sessionID string, start, end time.Time) ([]storage.ExportRecord, error)
	Count() (int, error)
}

// Options configures the dashboard. Metrics, EvaluationMetrics and Archive
// are optional; Gatherer defaults to the default Prometheus registry and Clock
// to the wall clock.
type Options struct {
	Addr              string
	Model             ModelSource
	Sessions          *session.Manager
	Metrics           MetricsInterface
	EvaluationMetrics risk.MetricsInterface
	Archive           Archive
	Gatherer          prometheus.Gatherer
	Clock             clockwork.Clock
	ExportDir         string
	SweepSteps        int
	HeatmapSteps      int
	ShutdownTimeout   time.Duration
}

// Dashboard is the HTTP front end of the application.
type Dashboard struct {
	opts      Options
	evaluator *risk.Evaluator
	server    *http.Server
	router    *mux.Router
	upgrader  websocket.Upgrader

	clients   map[*websocket.Conn]bool // Connected live-alert clients
	clientsMu sync.Mutex

	isRunning bool
	mu        sync.Mutex
}

// New wires the routes. The model is not loaded here; the first request that
// needs it (or the caller) triggers the memoized load.
func New(opts Options) *Dashboard {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.SweepSteps == 0 {
		opts.SweepSteps = common.DefaultSweepSteps
	}
	if opts.HeatmapSteps == 0 {
		opts.HeatmapSteps = common.DefaultHeatmapSteps
	}
	if opts.ExportDir == "" {
		opts.ExportDir = common.DefaultExportDir
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}

	d := &Dashboard{
		opts:      opts,
		evaluator: risk.NewEvaluator(opts.Model, opts.EvaluationMetrics),
		upgrader:  websocket.Upgrader{CheckOrigin: sameOrigin},
		clients:   make(map[*websocket.Conn]bool),
	}

	r := mux.NewRouter()
	r.Use(d.instrument)
	r.HandleFunc("/", d.handlePage).Methods(http.MethodGet)
	r.HandleFunc("/ws", d.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/health", d.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/alerts", d.handleAlerts).Methods(http.MethodPost)
	api.HandleFunc("/predict", d.handlePredict).Methods(http.MethodPost)
	api.HandleFunc("/history", d.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/history", d.handleClearHistory).Methods(http.MethodDelete)
	api.HandleFunc("/history/summary", d.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/history/export", d.handleDownloadExport).Methods(http.MethodGet)
	api.HandleFunc("/history/export", d.handleWriteExport).Methods(http.MethodPost)
	api.HandleFunc("/history/archive", d.handleListArchive).Methods(http.MethodGet)
	api.HandleFunc("/history/archive/{key}", d.handleGetArchive).Methods(http.MethodGet)
	api.HandleFunc("/sweep/heatmap", d.handleHeatmap).Methods(http.MethodGet)
	api.HandleFunc("/sweep/{axis}", d.handleSweep).Methods(http.MethodGet)
	api.HandleFunc("/model", d.handleModel).Methods(http.MethodGet)
	api.HandleFunc("/session", d.handleEndSession).Methods(http.MethodDelete)

	d.router = r
	d.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return d
}

// Handler exposes the router, mainly for tests.
func (d *Dashboard) Handler() http.Handler {
	return d.router
}

// Start serves in the background. Listen failures are logged.
func (d *Dashboard) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dashboard is already running")
	}

	go func() {
		log.Info().Str("address", d.server.Addr).Msg("Starting dashboard server")

		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Dashboard server failed")
		}
	}()

	d.isRunning = true
	return nil
}

// Stop closes live-alert connections and shuts the server down.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return nil
	}

	d.clientsMu.Lock()
	for client := range d.clients {
		client.Close()
	}
	d.clients = make(map[*websocket.Conn]bool)
	d.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.opts.ShutdownTimeout)
	defer cancel()

	if err := d.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown dashboard server")
		return err
	}

	d.isRunning = false
	log.Info().Msg("Dashboard stopped")
	return nil
}

// session returns the caller's session, starting one (and setting the
// cookie) when the request carries none or an expired one.
func (d *Dashboard) session(w http.ResponseWriter, r *http.Request) *session.Session {
	var id string
	if c, err := r.Cookie(common.SessionCookieName); err == nil {
		id = c.Value
	}

	s, created := d.opts.Sessions.Acquire(id)
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     common.SessionCookieName,
			Value:    s.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return s
}

// statusRecorder captures the status code for access logs and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (d *Dashboard) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if r.URL.Path == "/ws" {
			// The upgrader needs the raw writer's Hijacker.
			next.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(rec, r)
		}

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		elapsed := time.Since(start)

		if d.opts.Metrics != nil {
			d.opts.Metrics.HTTPRequestObserve(r.Method, route, rec.status, elapsed.Seconds())
		}
		log.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", rec.status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}

func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
}

type errorResponse struct {
	Error string   `json:"error"`
	Field string   `json:"field,omitempty"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError maps the application error kinds to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var invalid *features.InvalidInputError
	var loadErr *ml.ArtifactLoadError

	switch {
	case errors.As(err, &invalid):
		resp := errorResponse{Error: err.Error(), Field: invalid.Axis.String()}
		if invalid.Reason == "" {
			resp.Min, resp.Max = &invalid.Min, &invalid.Max
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.As(err, &loadErr):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "modelo no disponible: " + loadErr.Error()})
	case errors.Is(err, errBadRequest), errors.Is(err, risk.ErrInvalidGrid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	default:
		log.Error().Err(err).Msg("Request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
