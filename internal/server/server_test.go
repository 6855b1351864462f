package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/catalograph/catalograph/internal/catalog"
	"github.com/catalograph/catalograph/internal/resolver"
	"github.com/catalograph/catalograph/internal/server"
	"github.com/catalograph/catalograph/internal/storage"
	"github.com/catalograph/catalograph/internal/storage/memory"
)

func newTestHandler(t *testing.T, opts ...server.Option) *server.Handler {
	t.Helper()
	b := memory.New(0)
	err := b.Put(context.Background(), storage.KindProduct, storage.Key{Partition: "p1"}, storage.Attributes{
		"product_id": "p1",
		"name":       "Keyboard",
		"price":      decimal.RequireFromString("19.99"),
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	h, err := server.New(resolver.Factory(b), catalog.Schema(), opts...)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	return h
}

func postJSON(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestPostQuery(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{"query": "{ product(productId: \"p1\") { productId name price } }"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}

	want := map[string]any{
		"data": map[string]any{
			"product": map[string]any{"productId": "p1", "name": "Keyboard", "price": 19.99},
		},
	}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetQuery(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/graphql?query=%7B%20product(productId%3A%20%22p1%22)%20%7B%20productId%20%7D%20%7D", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	want := map[string]any{
		"data": map[string]any{"product": map[string]any{"productId": "p1"}},
	}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestGetServesGraphiQL(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "GraphiQL") {
		t.Fatal("expected the GraphiQL page")
	}
}

func TestGraphiQLDisabled(t *testing.T) {
	h := newTestHandler(t, server.WithGraphiQL(false))
	req := httptest.NewRequest(http.MethodGet, "/graphql", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestVariablesInPost(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{
		"query": "query ($id: String!) { product(productId: $id) { productId } }",
		"variables": {"id": "p1"}
	}`)

	want := map[string]any{
		"data": map[string]any{"product": map[string]any{"productId": "p1"}},
	}
	if diff := cmp.Diff(want, decodeBody(t, rec)); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchRequest(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `[
		{"query": "{ product(productId: \"p1\") { productId } }"},
		{"query": "{ product(productId: \"ghost\") { productId } }"}
	]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var out []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []map[string]any{
		{"data": map[string]any{"product": map[string]any{"productId": "p1"}}},
		{"data": map[string]any{"product": nil}},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Fatalf("body mismatch (-want +got):\n%s", diff)
	}
}

func TestErrorsCarryPaths(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{"query": "mutation { updateProduct(productId: \"ghost\", input: { name: \"x\" }) { productId } }"}`)

	body := decodeBody(t, rec)
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("errors = %v", body["errors"])
	}
	e := errs[0].(map[string]any)
	if !strings.Contains(e["message"].(string), "not found") {
		t.Fatalf("message = %v", e["message"])
	}
	if diff := cmp.Diff([]any{"updateProduct"}, e["path"]); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
	// Data stays present alongside the error.
	if diff := cmp.Diff(map[string]any{"updateProduct": nil}, body["data"]); diff != "" {
		t.Fatalf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestSyntaxError(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{"query": "{ product("}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if _, hasData := body["data"]; hasData && body["data"] != nil {
		t.Fatalf("data = %v", body["data"])
	}
	if errs, ok := body["errors"].([]any); !ok || len(errs) == 0 {
		t.Fatalf("errors = %v", body["errors"])
	}
}

func TestInvalidJSON(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{"query": `)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMissingQuery(t *testing.T) {
	h := newTestHandler(t)
	rec := postJSON(t, h, `{"operationName": "x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestBodyTooLarge(t *testing.T) {
	h := newTestHandler(t, server.WithMaxBodyBytes(64))
	rec := postJSON(t, h, `{"query": "{ product(productId: \"p1\") { productId name price description } }"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPut, "/graphql", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestHandler(t, server.WithCORS("https://shop.example"))
	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://shop.example" {
		t.Fatalf("allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Fatalf("allow-methods = %q", got)
	}
}

func TestCORSUnlistedOrigin(t *testing.T) {
	h := newTestHandler(t, server.WithCORS("https://shop.example"))
	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unlisted origin must get no CORS headers, got %q", got)
	}
}

func TestUnsupportedContentType(t *testing.T) {
	h := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader("query { x }"))
	req.Header.Set("Content-Type", "application/graphql")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}
