// Package httpapi is transcodectl's operator-facing HTTP surface: health, a
// read-only view of scheduler state, a foreground-submitter admin endpoint,
// and Prometheus metrics. It is not an external RPC surface for submitting
// work — clients submit and cancel sessions through the in-process
// scheduler.Scheduler directly, the same way a mobile app embeds this
// engine rather than talking to it over the network.
package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/xeipuuv/gojsonschema"

	cerrors "github.com/livepeer/transcode-engine/errors"
	"github.com/livepeer/transcode-engine/log"
	"github.com/livepeer/transcode-engine/scheduler"
)

// Server exposes scheduler state and foreground-submitter control over
// HTTP for operators.
type Server struct {
	sched  *scheduler.Scheduler
	policy *scheduler.StaticTopPolicy
}

func NewServer(sched *scheduler.Scheduler, policy *scheduler.StaticTopPolicy) *Server {
	return &Server{sched: sched, policy: policy}
}

// Router builds the chi mux, one handler per route rather than a
// hand-rolled switch on r.URL.Path.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Get("/sessions", s.handleSessions)
	r.Post("/admin/top-submitters", s.handleSetTopSubmitters)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.LogNoRequestID("http request " + r.Method + " " + r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	views := s.sched.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		cerrors.WriteHTTPInternalServerError(w, "error encoding sessions", err)
	}
}

var topSubmittersSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["submitters"],
	"properties": {
		"submitters": {"type": "array", "items": {"type": "string"}}
	}
}`)

type topSubmittersRequest struct {
	Submitters []string `json:"submitters"`
}

// handleSetTopSubmitters replaces the platform's foreground-submitter set
// and immediately re-evaluates the scheduler against it, standing in for
// whatever live foreground signal a real mobile platform would push in
// through SubmitterPolicy.
func (s *Server) handleSetTopSubmitters(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		cerrors.WriteHTTPBadRequest(w, "error reading request body", err)
		return
	}

	result, err := gojsonschema.Validate(topSubmittersSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		cerrors.WriteHTTPBadRequest(w, "error validating request body", err)
		return
	}
	if !result.Valid() {
		cerrors.WriteHTTPBadBodySchema("top-submitters", w, result.Errors())
		return
	}

	var req topSubmittersRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		cerrors.WriteHTTPBadRequest(w, "error decoding request body", err)
		return
	}

	top := make(map[string]struct{}, len(req.Submitters))
	for _, id := range req.Submitters {
		top[id] = struct{}{}
	}
	s.policy.SetTopSet(top)
	s.sched.OnTopSubmittersChanged(top)

	w.WriteHeader(http.StatusNoContent)
}
