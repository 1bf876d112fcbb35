package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGeneratePage(t *testing.T) {
	var gotAuth, gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var req chatRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": "```json\n" + pageJSON + "\n```"}}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL + "/", Model: "gpt-test", Timeout: time.Second}, nil)
	page, err := c.GeneratePage(context.Background(), "inventory for tiny shops")
	if err != nil {
		t.Fatalf("GeneratePage returned error: %v", err)
	}
	if page.ProductName != "Shelfie" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if gotAuth != "Bearer sk-test" || gotModel != "gpt-test" {
		t.Fatalf("unexpected request auth=%q model=%q", gotAuth, gotModel)
	}
}

func TestGeneratePageErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(Options{APIKey: "sk-test", BaseURL: srv.URL}, nil)
	if _, err := c.GeneratePage(context.Background(), "idea"); err == nil {
		t.Fatal("expected error for 429")
	}

	unconfigured := NewClient(Options{BaseURL: srv.URL}, nil)
	if _, err := unconfigured.GeneratePage(context.Background(), "idea"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
