package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sony/gobreaker"

	"github.com/sanonone/termgraph/pkg/client"
	"github.com/sanonone/termgraph/pkg/definitions"
	"github.com/sanonone/termgraph/pkg/uts"
	"github.com/sanonone/termgraph/pkg/vocab"
)

// searchResponse is the body of both search endpoints.
type searchResponse struct {
	Concepts []uts.Concept `json:"concepts"`
	Count    int           `json:"count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// paramError reports a query parameter that could not be parsed.
type paramError struct {
	Name  string
	Value string
}

func (e *paramError) Error() string {
	return fmt.Sprintf("invalid value %q for parameter %s", e.Value, e.Name)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearchDefinitions serves GET /v1/concepts/{cui}/definitions.
func (s *Server) handleSearchDefinitions(w http.ResponseWriter, r *http.Request) {
	cui := chi.URLParam(r, "cui")
	opts, err := s.searchOptions(r.URL.Query())
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}

	concepts, err := s.searcher.SearchDefinitions(r.Context(), cui, opts)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}
	writeConcepts(w, concepts)
}

// handleFindDefinedConcepts serves GET /v1/defined-concepts.
func (s *Server) handleFindDefinedConcepts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts, err := s.searchOptions(q)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}
	req := definitions.FindRequest{
		SourceVocabulary:  q.Get("source_sab"),
		SourceCode:        q.Get("code"),
		SourceDescription: q.Get("description"),
		Options:           opts,
	}
	if v := q.Get("top_k"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 0 {
			s.writeSearchError(w, r, &paramError{Name: "top_k", Value: v})
			return
		}
		req.TopK = k
	}

	concepts, err := s.searcher.FindDefinedConcepts(r.Context(), req)
	if err != nil {
		s.writeSearchError(w, r, err)
		return
	}
	writeConcepts(w, concepts)
}

// searchOptions overlays the request's query parameters on the server defaults.
func (s *Server) searchOptions(q url.Values) (definitions.SearchOptions, error) {
	opts := s.defaults
	opts.TargetVocabularies = append([]string(nil), s.defaults.TargetVocabularies...)

	if v := q.Get("direction"); v != "" {
		opts.Direction = definitions.Direction(strings.ToLower(v))
	}
	if v := q.Get("language"); v != "" {
		opts.TargetLanguage = v
	}
	if sabs := q["sab"]; len(sabs) > 0 {
		opts.TargetVocabularies = nil
		for _, v := range sabs {
			for _, sab := range strings.Split(v, ",") {
				if sab = strings.TrimSpace(sab); sab != "" {
					opts.TargetVocabularies = append(opts.TargetVocabularies, sab)
				}
			}
		}
	}
	if v := q.Get("max_distance"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, &paramError{Name: "max_distance", Value: v}
		}
		opts.MaxDistance = n
	}

	flags := []struct {
		name string
		dst  *bool
	}{
		{"stop_on_found", &opts.StopOnFound},
		{"preserve_semantic_type", &opts.PreserveSemanticType},
		{"strict_language", &opts.StrictLanguage},
	}
	for _, f := range flags {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, &paramError{Name: f.name, Value: v}
		}
		*f.dst = b
	}
	return opts, nil
}

// statusFor maps a search error to an HTTP status: bad input is the
// caller's fault, upstream failures are a bad gateway.
func statusFor(err error) int {
	var (
		cfgErr   *vocab.ConfigurationError
		parErr   *paramError
		httpErr  *client.HTTPError
		protoErr *client.ProtocolError
	)
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &parErr):
		return http.StatusBadRequest
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return http.StatusServiceUnavailable
	case errors.As(err, &httpErr), errors.As(err, &protoErr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeSearchError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Search failed", "path", r.URL.Path, "request_id", RequestID(r.Context()), "error", err)
	}
	writeError(w, status, err.Error())
}

func writeConcepts(w http.ResponseWriter, concepts []uts.Concept) {
	if concepts == nil {
		concepts = []uts.Concept{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Concepts: concepts, Count: len(concepts)})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
