// Package server exposes flag evaluation over HTTP.
//
// Routes:
//   - POST /v1/evaluate: evaluate one request, or a batch under "requests".
//   - GET /v1/flags: list the known flag keys.
//   - GET /healthz: liveness.
//   - GET /metrics: Prometheus metrics, when metrics are given.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/open-feature/go-sdk/openfeature"

	"github.com/matt-riley/vwo-openfeature-provider/internal/evaluation"
	"github.com/matt-riley/vwo-openfeature-provider/internal/metrics"
	"github.com/matt-riley/vwo-openfeature-provider/internal/middleware"
)

const (
	maxJSONBodyBytes = 1 << 20
	maxBatchSize     = 100
)

var errJSONBodyTooLarge = errors.New("json request body too large")

// FlagLister reports the flag keys available to the evaluator.
type FlagLister interface {
	Keys() []string
}

type HTTPServer struct {
	client  *openfeature.Client
	flags   FlagLister
	metrics *metrics.Metrics
}

type evaluateJSONRequest struct {
	evaluation.Request
	Requests []evaluation.Request `json:"requests,omitempty"`
}

type evaluateJSONResponse struct {
	Results []evaluation.Resolution `json:"results"`
}

type listFlagsJSONResponse struct {
	Flags []string `json:"flags"`
}

// NewHTTPHandler returns the evaluation API. flags and m may be nil; with m
// set, requests and evaluations are recorded and served on /metrics.
func NewHTTPHandler(client *openfeature.Client, flags FlagLister, m *metrics.Metrics) http.Handler {
	if client == nil {
		panic("openfeature client is nil")
	}

	server := &HTTPServer{client: client, flags: flags, metrics: m}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/evaluate", server.handleEvaluate)
	mux.HandleFunc("GET /v1/flags", server.handleListFlags)
	mux.HandleFunc("GET /healthz", server.handleHealthz)
	if m == nil {
		return mux
	}

	mux.Handle("GET /metrics", m.Handler())
	return m.HTTPMiddleware(mux)
}

func (s *HTTPServer) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateJSONRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeJSONDecodeError(w, err)
		return
	}

	hasSingle := strings.TrimSpace(req.Flag) != ""
	switch {
	case hasSingle && len(req.Requests) > 0:
		writeJSONError(w, http.StatusBadRequest, "use either flag or requests")
		return
	case !hasSingle && len(req.Requests) == 0:
		writeJSONError(w, http.StatusBadRequest, "flag or requests is required")
		return
	case len(req.Requests) > maxBatchSize:
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("at most %d requests per batch", maxBatchSize))
		return
	}

	requests := req.Requests
	if hasSingle {
		requests = []evaluation.Request{req.Request}
	}

	results := make([]evaluation.Resolution, 0, len(requests))
	for idx, item := range requests {
		res, err := evaluation.Evaluate(r.Context(), s.client, item)
		if err != nil {
			message := strings.TrimPrefix(err.Error(), evaluation.ErrInvalidRequest.Error()+": ")
			if !hasSingle {
				message = fmt.Sprintf("requests[%d]: %s", idx, message)
			}
			writeJSONError(w, http.StatusBadRequest, message)
			return
		}
		if s.metrics != nil {
			s.metrics.RecordEvaluation(res.Type, res.Reason)
		}
		if res.ErrorCode != "" {
			middleware.LoggerFromContext(r.Context()).DebugContext(r.Context(), "evaluation served default",
				"flag", res.Flag, "error_code", res.ErrorCode, "error", res.Error)
		}
		results = append(results, res)
	}

	writeJSON(w, http.StatusOK, evaluateJSONResponse{Results: results})
}

func (s *HTTPServer) handleListFlags(w http.ResponseWriter, _ *http.Request) {
	keys := []string{}
	if s.flags != nil {
		keys = append(keys, s.flags.Keys()...)
	}
	writeJSON(w, http.StatusOK, listFlagsJSONResponse{Flags: keys})
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSONDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errJSONBodyTooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return io.EOF
	}

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return normalizeJSONDecodeError(err)
	}

	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("request body must contain a single JSON object")
		}
		return normalizeJSONDecodeError(err)
	}

	return nil
}

func normalizeJSONDecodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return errJSONBodyTooLarge
	}
	return err
}
