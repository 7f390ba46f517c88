package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/varigraph/varigraph/internal/engine"
	"github.com/varigraph/varigraph/internal/provider"
	"github.com/varigraph/varigraph/internal/resolver"
	"github.com/varigraph/varigraph/internal/schema"
)

const grch38 = "a7335667-93e7-11ec-a39d-005056b38ce3"

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	s, err := schema.Variation()
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	reg, err := resolver.NewRegistry(s, provider.Seed(), []string{grch38})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return New(engine.New(s, reg), s, opts...)
}

func postJSON(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, w.Body.String())
	}
	return out
}

func TestServeVariantQuery(t *testing.T) {
	h := newTestHandler(t)

	w := postJSON(t, h, `{"query": "query($g: String!) { variant(by_id: {genome_id: $g, variant_id: \"rs699\"}) { name type } }", "variables": {"g": "`+grch38+`"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if rid := w.Header().Get("X-Request-Id"); rid == "" {
		t.Fatal("missing X-Request-Id header")
	}
	got := decodeResponse(t, w)
	want := map[string]any{
		"data": map[string]any{
			"variant": map[string]any{"name": "rs699", "type": "Variant"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response (-want +got):\n%s", diff)
	}
}

func TestServeGetRequest(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/graphql?query="+
		"%7B%20version%20%7B%20api%20%7B%20major%20%7D%20%7D%20%7D", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	got := decodeResponse(t, w)
	want := map[string]any{
		"data": map[string]any{
			"version": map[string]any{"api": map[string]any{"major": "0"}},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response (-want +got):\n%s", diff)
	}
}

func TestServeCompileErrorKeepsDataNull(t *testing.T) {
	h := newTestHandler(t)

	w := postJSON(t, h, `{"query": "{ variant(by_id: {genome_id: \"x\", variant_id: \"y\"}) { nope } }"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	got := decodeResponse(t, w)
	if got["data"] != nil {
		t.Fatalf("data = %v, want null", got["data"])
	}
	errs, ok := got["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("errors = %v, want one", got["errors"])
	}
	first := errs[0].(map[string]any)
	if first["kind"] != "COMPILE" {
		t.Fatalf("kind = %v, want COMPILE", first["kind"])
	}
	if msg := first["message"].(string); !strings.Contains(msg, "nope") {
		t.Fatalf("message = %q", msg)
	}
}

func TestServeBatchedRequests(t *testing.T) {
	h := newTestHandler(t)

	w := postJSON(t, h, `[
		{"query": "{ version { api { major } } }"},
		{"query": "{ version { api { minor } } }"}
	]`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("responses = %d, want 2", len(got))
	}
}

func TestServeRejectsOversizedBody(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(16))

	w := postJSON(t, h, `{"query": "{ version { api { major } } }"}`)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}
}

func TestServeRejectsUnknownMethod(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodDelete, "/graphql", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", w.Code)
	}
}

func TestServeCORSPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("https://variation.example"))

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://variation.example")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://variation.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET,POST,OPTIONS" {
		t.Fatalf("Allow-Methods = %q", got)
	}
}
