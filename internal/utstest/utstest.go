// Package utstest serves canned UMLS Terminology Services responses for tests.
package utstest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Server answers fixed JSON bodies by request path. A key suffixed with
// "#N" answers pageNumber=N. "{{base}}" in a body expands to the server URL.
// Unknown paths answer 404.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]string
	requests []*http.Request
}

// NewServer starts a Server closed at test cleanup.
func NewServer(t testing.TB, routes map[string]string) *Server {
	t.Helper()
	s := &Server{routes: routes}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the REST root to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + "/rest"
}

// Requests returns a copy of the requests received so far.
func (s *Server) Requests() []*http.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*http.Request(nil), s.requests...)
}

// Set adds or replaces a route.
func (s *Server) Set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = body
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if page := r.URL.Query().Get("pageNumber"); page != "" && page != "1" {
		key += "#" + page
	}
	s.mu.Lock()
	s.requests = append(s.requests, r.Clone(r.Context()))
	body, ok := s.routes[key]
	s.mu.Unlock()

	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, strings.ReplaceAll(body, "{{base}}", s.URL))
}

// SynonymGraph is a two-concept graph: C0000001 has no definitions and a
// synonym relation to C0000002, which has one MSH definition. Source code
// "D000001" in MSH maps to C0000001.
func SynonymGraph() map[string]string {
	return map[string]string{
		"/rest/content/current/CUI/C0000001": `{"pageNumber":1,"pageCount":1,"result":{
			"ui":"C0000001","name":"Start concept",
			"semanticTypes":[{"name":"Disease or Syndrome","uri":"{{base}}/rest/semantic-network/current/TUI/T047"}]}}`,
		"/rest/content/current/CUI/C0000001/definitions": `{"pageNumber":1,"pageCount":1,"result":[]}`,
		"/rest/content/current/CUI/C0000001/relations": `{"pageNumber":1,"pageCount":1,"result":[
			{"ui":"R1","relationLabel":"SY","relatedId":"{{base}}/rest/content/current/CUI/C0000002",
			 "relatedIdName":"Synonym concept","rootSource":"MSH","obsolete":false,"suppressible":false}]}`,
		"/rest/content/current/CUI/C0000002": `{"pageNumber":1,"pageCount":1,"result":{
			"ui":"C0000002","name":"Synonym concept",
			"semanticTypes":[{"name":"Disease or Syndrome","uri":"{{base}}/rest/semantic-network/current/TUI/T047"}]}}`,
		"/rest/content/current/CUI/C0000002/definitions": `{"pageNumber":1,"pageCount":1,"result":[
			{"classType":"Definition","value":"A <b>defined</b> synonym. (MSH)","rootSource":"MSH","sourceOriginated":true}]}`,
		"/rest/semantic-network/current/TUI/T047": `{"pageNumber":1,"pageCount":1,"result":{
			"ui":"T047","name":"Disease or Syndrome","abbreviation":"dsyn","treeNumber":"B2.2.1.2.1",
			"definition":"A condition which alters or interferes with a normal process.",
			"semanticTypeGroup":{"abbreviation":"DISO","expandedForm":"Disorders"}}}`,
		"/rest/search/current": `{"pageNumber":1,"pageSize":25,"result":{"classType":"searchResults","results":[
			{"ui":"C0000001","name":"Start concept","rootSource":"MSH","uri":"{{base}}/rest/content/current/CUI/C0000001"}]}}`,
		"/rest/search/current#2": `{"pageNumber":2,"pageSize":25,"result":{"classType":"searchResults","results":[
			{"ui":"NONE","name":"NO RESULTS"}]}}`,
	}
}
