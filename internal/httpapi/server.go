// Package httpapi exposes a running engine over HTTP: triggers in, field
// state and Prometheus metrics out.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/roach88/formdeps/internal/ir"
)

// Engine runs one pass synchronously.
type Engine interface {
	Process(ctx context.Context, t ir.Trigger) (ir.Result, error)
}

// Registry is the field state the server reads and writes.
type Registry interface {
	Snapshot() ir.Snapshot
	State(fieldID string) (ir.FieldState, bool)
	Set(fieldID string, value any) error
}

// TriggerRequest is a trigger with values to write before it is evaluated.
// The same shape is read from the run command's stdin.
type TriggerRequest struct {
	ir.Trigger
	Set map[string]any `json:"set,omitempty"`
}

// RequestError is a trigger request that was rejected before evaluation.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Submitter applies a request's values and runs its pass. Requests are
// serialized so every pass sees exactly the values its own request wrote.
type Submitter struct {
	mu  sync.Mutex
	eng Engine
	reg Registry
}

// NewSubmitter creates a Submitter over eng and reg.
func NewSubmitter(eng Engine, reg Registry) *Submitter {
	return &Submitter{eng: eng, reg: reg}
}

// Submit validates req, writes its values in key order and processes the
// trigger. Rejected requests return a *RequestError and write nothing.
func (s *Submitter) Submit(ctx context.Context, req TriggerRequest) (ir.Result, error) {
	if err := s.check(req); err != nil {
		return ir.Result{Trigger: req.Trigger}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(req.Set))
	for k := range req.Set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := s.reg.Set(k, ir.Normalize(req.Set[k])); err != nil {
			return ir.Result{Trigger: req.Trigger}, &RequestError{Message: err.Error()}
		}
	}
	return s.eng.Process(ctx, req.Trigger)
}

func (s *Submitter) check(req TriggerRequest) error {
	if req.FieldID == "" {
		return &RequestError{Message: "fieldId is required"}
	}
	if !ir.ValidTriggers[req.Kind] {
		return &RequestError{Message: fmt.Sprintf("kind %q is not a trigger kind", req.Kind)}
	}
	if req.Kind == ir.TriggerCustom && req.Name == "" {
		return &RequestError{Message: "name is required for custom triggers"}
	}
	if _, ok := s.reg.State(req.FieldID); !ok {
		return &RequestError{Message: fmt.Sprintf("unknown field %q", req.FieldID)}
	}
	for k := range req.Set {
		if _, ok := s.reg.State(k); !ok {
			return &RequestError{Message: fmt.Sprintf("set: unknown field %q", k)}
		}
	}
	return nil
}

// Option configures the handler.
type Option func(*handlerConfig)

type handlerConfig struct {
	origins []string
}

// WithAllowedOrigins enables CORS for browser renderers served from
// origins. "*" allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(c *handlerConfig) { c.origins = origins }
}

// Server routes HTTP requests to a Submitter and a Registry.
type Server struct {
	submit   *Submitter
	reg      Registry
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// NewHandler creates the HTTP handler:
//
//	GET  /healthz          liveness
//	GET  /metrics          Prometheus exposition from gatherer
//	GET  /snapshot         every field's state
//	GET  /fields/{fieldID} one field's state
//	POST /triggers         apply a TriggerRequest and return its pass
func NewHandler(submit *Submitter, reg Registry, gatherer prometheus.Gatherer, logger *slog.Logger, opts ...Option) http.Handler {
	var cfg handlerConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &Server{submit: submit, reg: reg, gatherer: gatherer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(cfg.origins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/snapshot", s.Snapshot)
	r.Get("/fields/{fieldID}", s.Field)
	r.Post("/triggers", s.Trigger)

	return r
}

// Snapshot handles GET /snapshot.
func (s *Server) Snapshot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.Snapshot())
}

// Field handles GET /fields/{fieldID}.
func (s *Server) Field(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "fieldID")
	st, ok := s.reg.State(id)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown field %q", id), http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, st)
}

// Trigger handles POST /triggers.
func (s *Server) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		s.logger.Warn("trigger: invalid request body", "error", err)
		return
	}

	res, err := s.submit.Submit(r.Context(), req)
	var reqErr *RequestError
	switch {
	case errors.As(err, &reqErr):
		http.Error(w, reqErr.Message, http.StatusBadRequest)
		s.logger.Warn("trigger rejected", "field", req.FieldID, "error", err)
		return
	case err != nil:
		http.Error(w, fmt.Sprintf("pass failed: %v", err), http.StatusInternalServerError)
		s.logger.Error("trigger failed", "pass", res.PassID, "field", req.FieldID, "error", err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := ir.CanonicalJSON(v)
	if err != nil {
		http.Error(w, "encode failed", http.StatusInternalServerError)
		s.logger.Error("response encode failed", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}
