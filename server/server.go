//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.
// All rights reserved.
//
// If you have downloaded a copy of the trpc-workflow-go source code from Tencent,
// please note that trpc-workflow-go source code is licensed under the  Apache 2.0 License,
// A copy of the Apache 2.0 License is included in this file.
//
//

// Package server exposes a runner over HTTP: the current graph, run
// control, run snapshots, live run events as server-sent events, and the
// latest record of every node.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-workflow-go/engine"
	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
	"trpc.group/trpc-go/trpc-workflow-go/runner"
	"trpc.group/trpc-go/trpc-workflow-go/runstore"
)

const (
	defaultKeepAlive = 15 * time.Second
	defaultListLimit = 50

	formatDOT = "dot"
)

// Runner is what the server drives. *runner.Runner implements it.
type Runner interface {
	Graph(ctx context.Context) (*graph.Graph, error)
	StartRun(ctx context.Context, scope graph.Scope) (*runner.Handle, error)
	Cancel(runID string) error
	GetRun(ctx context.Context, runID string) (*engine.Snapshot, error)
	Subscribe(ctx context.Context, runID string) (<-chan *event.Event, error)
	List(ctx context.Context, limit int) ([]runstore.Info, error)
	Latest() map[string]*engine.NodeRecord
}

var _ Runner = (*runner.Runner)(nil)

// Server routes HTTP requests to a Runner.
type Server struct {
	runner    Runner
	router    *mux.Router
	handler   http.Handler
	origins   []string
	keepAlive time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins restricts CORS to origins. All origins are allowed
// by default.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithKeepAlive sets how often an idle event stream gets a comment line.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// New creates a server for r.
func New(r Runner, opts ...Option) *Server {
	s := &Server{
		runner:    r,
		router:    mux.NewRouter(),
		origins:   []string{"*"},
		keepAlive: defaultKeepAlive,
	}
	for _, opt := range opts {
		opt(s)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	s.registerRoutes()
	s.handler = c.Handler(s.router)
	return s
}

// Handler returns the root handler, CORS included.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/graph", s.handleGraph).Methods(http.MethodGet)

	s.router.HandleFunc("/runs", s.handleStartRun).Methods(http.MethodPost)
	s.router.HandleFunc("/runs", s.handleListRuns).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}", s.handleGetRun).Methods(http.MethodGet)
	s.router.HandleFunc("/runs/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.HandleFunc("/runs/{id}/events", s.handleEvents).Methods(http.MethodGet)

	s.router.HandleFunc("/nodes/latest", s.handleLatest).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type graphResponse struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// handleGraph serves the graph as JSON, or as Graphviz DOT colored by the
// latest node statuses with ?format=dot.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	g, err := s.runner.Graph(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if g == nil {
		writeError(w, http.StatusNotFound, errors.New("no graph loaded"))
		return
	}
	if r.URL.Query().Get("format") == formatDOT {
		status := make(map[string]string)
		for id, rec := range s.runner.Latest() {
			status[id] = string(rec.Status)
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		if err := g.WriteDOT(w, graph.WithStatus(status)); err != nil {
			log.Errorf("write graph dot: %v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, graphResponse{Nodes: g.Nodes(), Edges: g.Edges()})
}

type startRunRequest struct {
	Scope  graph.ScopeKind `json:"scope"`
	NodeID string          `json:"nodeId"`
	Force  bool            `json:"force"`
}

type startRunResponse struct {
	RunID string `json:"runId"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var req startRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode run request: %w", err))
		return
	}
	scope := graph.Scope{Kind: req.Scope, NodeID: req.NodeID, Force: req.Force}
	h, err := s.runner.StartRun(r.Context(), scope)
	if err != nil {
		writeRunError(w, err)
		return
	}
	log.Infof("run %s accepted: %s", h.RunID, scope)
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: h.RunID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", v))
			return
		}
		limit = n
	}
	runs, err := s.runner.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []runstore.Info{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	snap, err := s.runner.GetRun(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.runner.Cancel(id); err != nil {
		writeRunError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, startRunResponse{RunID: id})
}

// handleEvents streams run events as "data: <json>\n\n" frames until the
// run finishes or the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	events, err := s.runner.Subscribe(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeRunError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(e)
			if err != nil {
				log.Errorf("marshal run event %s: %v", e.ID, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.runner.Latest())
}

// errorResponse is the body of every failed request. Path is set for
// cycles and Missing for single-node runs without upstream output.
type errorResponse struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	NodeID  string   `json:"nodeId,omitempty"`
	EdgeID  string   `json:"edgeId,omitempty"`
	Path    []string `json:"path,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

const kindMissingUpstream = "missing_upstream_output"

// writeRunError maps runner errors to status codes: scope and graph
// problems are 422, unknown runs 404, anything else 500.
func writeRunError(w http.ResponseWriter, err error) {
	var (
		cycle   *graph.CycleDetected
		invalid *graph.ValidationError
		missing *graph.MissingUpstreamOutput
	)
	switch {
	case errors.As(err, &cycle):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(), Kind: graph.ReasonCycle, Path: cycle.Path,
		})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(), Kind: kindMissingUpstream, NodeID: missing.NodeID, Missing: missing.Missing,
		})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(), Kind: invalid.Reason, NodeID: invalid.NodeID, EdgeID: invalid.EdgeID,
		})
	case errors.Is(err, runner.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, runner.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("write response: %v", err)
	}
}
