package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/compii/playground/pkg/api"
	"github.com/compii/playground/pkg/debug"
	"github.com/compii/playground/pkg/observability"
	"github.com/compii/playground/pkg/storage"
	"github.com/compii/playground/pkg/transport"
)

// Compiler reports the state of the external compiler for readiness
// checks. *runner.Runner implements it.
type Compiler interface {
	Available() bool
	Version(ctx context.Context) string
	Capacity() int
	Load() int
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxBodySize limits the POST /run request body.
	MaxBodySize int64

	// StaticDir is served for every path no other route claims.
	// Empty disables static serving.
	StaticDir string

	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string

	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string

	// MCPPath mounts the MCP handler given with WithMCP.
	MCPPath string
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
		StaticDir:   ".",
		CORSOrigins: []string{"*"},
		MetricsPath: "/metrics",
		MCPPath:     "/mcp",
	}
}

// Adapter serves the playground API over HTTP.
type Adapter struct {
	executor transport.Executor
	store    storage.RunStore // nil when run history is disabled
	inflight *transport.InFlightRegistry
	compiler Compiler
	protect  func(http.Handler) http.Handler
	mcp      http.Handler
	config   Config
	started  time.Time

	compilerVersion func() string
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithInFlight sets the registry POST /runs/{id}/cancel consults. Sharing
// it with the executor makes runs started over MCP cancellable as well.
func WithInFlight(r *transport.InFlightRegistry) AdapterOption {
	return func(a *Adapter) { a.inflight = r }
}

// WithCompiler enables compiler details in GET /readyz.
func WithCompiler(c Compiler) AdapterOption {
	return func(a *Adapter) { a.compiler = c }
}

// WithAuth wraps the API routes (/run, /runs, MCP) with mw. Health,
// metrics and static files stay public.
func WithAuth(mw func(http.Handler) http.Handler) AdapterOption {
	return func(a *Adapter) { a.protect = mw }
}

// WithMCP mounts h at Config.MCPPath.
func WithMCP(h http.Handler) AdapterOption {
	return func(a *Adapter) { a.mcp = h }
}

// NewAdapter creates an HTTP adapter. The store is optional; when nil the
// /runs endpoints answer 404. Middleware is applied to the executor in the
// given order.
func NewAdapter(executor transport.Executor, store storage.RunStore, cfg Config, middlewares []transport.Middleware, opts ...AdapterOption) *Adapter {
	if len(middlewares) > 0 {
		executor = transport.Chain(middlewares...)(executor)
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	a := &Adapter{
		executor: executor,
		store:    store,
		config:   cfg,
		started:  time.Now(),
		protect:  func(h http.Handler) http.Handler { return h },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.inflight == nil {
		a.inflight = transport.NewInFlightRegistry()
	}
	if a.compiler != nil {
		a.compilerVersion = sync.OnceValue(func() string {
			return a.compiler.Version(context.Background())
		})
	}
	return a
}

// Handler returns the http.Handler for this adapter, with CORS and HTTP
// metrics applied.
func (a *Adapter) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /run", a.protect(http.HandlerFunc(a.handleRun)))
	mux.HandleFunc("/run", methodNotAllowed(http.MethodPost))
	mux.Handle("GET /runs/{id}", a.protect(http.HandlerFunc(a.handleGetRun)))
	mux.Handle("GET /runs", a.protect(http.HandlerFunc(a.handleListRuns)))
	mux.Handle("POST /runs/{id}/cancel", a.protect(http.HandlerFunc(a.handleCancelRun)))

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)

	if a.config.MetricsPath != "" {
		mux.Handle("GET "+a.config.MetricsPath, promhttp.Handler())
	}
	if a.mcp != nil && a.config.MCPPath != "" {
		mux.Handle(a.config.MCPPath, a.protect(a.mcp))
	}
	if a.config.StaticDir != "" {
		mux.Handle("/", staticHandler(a.config.StaticDir))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: a.config.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Run-ID", "X-Request-ID", "Mcp-Session-Id"},
	})

	return c.Handler(observability.MetricsMiddleware(mux))
}

// handleRun handles POST /run. The status is always 200: every failure,
// including a malformed body, is reported in the output field.
func (a *Adapter) handleRun(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = transport.NewRequestID()
	}
	runID := api.NewRunID()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Run-ID", runID)

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req api.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		debug.Log("transport", "rejecting run request body", "request_id", requestID, "error", err)
		writeRunResponse(w, a.describeDecodeError(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	a.inflight.Register(runID, storage.GetOwner(r.Context()), cancel)
	defer a.inflight.Remove(runID)

	// The run is cancellable from the moment the caller sees X-Run-ID.
	w.WriteHeader(http.StatusOK)
	_ = http.NewResponseController(w).Flush()

	ctx = transport.ContextWithRequestID(ctx, requestID)
	ctx = transport.ContextWithRunID(ctx, runID)

	run, err := a.executor.Execute(ctx, &req)
	switch {
	case err != nil:
		writeRunResponse(w, err.Error())
	case run == nil:
		writeRunResponse(w, "internal server error")
	default:
		writeRunResponse(w, run.Output)
	}
}

func (a *Adapter) describeDecodeError(err error) string {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)
	}
	return "invalid JSON: " + err.Error()
}

func writeRunResponse(w http.ResponseWriter, output string) {
	if err := json.NewEncoder(w).Encode(api.RunResponse{Output: output}); err != nil {
		slog.Debug("writing run response failed", "error", err)
	}
}

// handleGetRun handles GET /runs/{id}.
func (a *Adapter) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateRunID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed run ID"))
		return
	}
	if a.store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("run history is disabled"))
		return
	}

	run, err := a.store.GetRun(r.Context(), id)
	if err != nil {
		a.writeStoreError(w, err, "run "+id+" not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleListRuns handles GET /runs.
func (a *Adapter) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("run history is disabled"))
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := a.store.ListRuns(r.Context(), opts)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			transport.WriteAPIError(w, api.NewInvalidRequestError("after", "unknown cursor "+opts.After))
			return
		}
		a.writeStoreError(w, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleCancelRun handles POST /runs/{id}/cancel.
func (a *Adapter) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateRunID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed run ID"))
		return
	}
	if !a.inflight.Cancel(id, storage.GetOwner(r.Context())) {
		transport.WriteAPIError(w, api.NewNotFoundError("run "+id+" is not running"))
		return
	}
	slog.Info("run cancelled", "run_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (a *Adapter) writeStoreError(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, storage.ErrNotFound) && notFoundMsg != "" {
		transport.WriteAPIError(w, api.NewNotFoundError(notFoundMsg))
		return
	}
	slog.Error("run store error", "error", err)
	transport.WriteError(w, err)
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (storage.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := storage.ListOptions{
		After: q.Get("after"),
		Order: q.Get("order"),
	}

	if opts.After != "" && !api.ValidateRunID(opts.After) {
		return opts, api.NewInvalidRequestError("after", "malformed run ID")
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > storage.MaxListLimit {
			return opts, api.NewInvalidRequestError("limit",
				fmt.Sprintf("limit must be an integer between 1 and %d", storage.MaxListLimit))
		}
		opts.Limit = limit
	}

	return opts, nil
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

type compilerStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Capacity  int    `json:"capacity"`
	Load      int    `json:"current_load"`
}

type storageStatus struct {
	Enabled bool   `json:"enabled"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

type readyResponse struct {
	Status     string          `json:"status"`
	Compiler   *compilerStatus `json:"compiler,omitempty"`
	Storage    storageStatus   `json:"storage"`
	InFlight   int             `json:"in_flight"`
	UptimeSecs int64           `json:"uptime_seconds"`
}

// handleReadyz reports 503 when the compiler cannot be found or the run
// store fails its health check.
func (a *Adapter) handleReadyz(w http.ResponseWriter, r *http.Request) {
	resp := readyResponse{
		Status:     "ready",
		InFlight:   a.inflight.Len(),
		UptimeSecs: int64(time.Since(a.started).Seconds()),
	}

	if a.compiler != nil {
		cs := &compilerStatus{
			Available: a.compiler.Available(),
			Capacity:  a.compiler.Capacity(),
			Load:      a.compiler.Load(),
		}
		if cs.Available {
			cs.Version = a.compilerVersion()
		} else {
			resp.Status = "not_ready"
		}
		resp.Compiler = cs
	}

	if a.store != nil {
		resp.Storage.Enabled = true
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.store.HealthCheck(ctx); err != nil {
			resp.Storage.Error = err.Error()
			resp.Status = "not_ready"
		} else {
			resp.Storage.Healthy = true
		}
	}

	status := http.StatusOK
	if resp.Status != "ready" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func methodNotAllowed(allow string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", allow)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
