package parser

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return NewClient(NewClientParams{
		BaseURL:  url,
		MaxTries: 3,
		Timeout:  time.Second,
		Budget:   10 * time.Second,
	})
}

func TestParse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("multipart parse: %v", err)
		}
		_ = json.NewEncoder(w).Encode(Result{
			Elements: []Element{{Type: ElementText, Text: "hello", Page: 1}},
			Markdown: "hello",
			Pages:    1,
		})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Parse(context.Background(), "doc.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Pages != 1 || len(result.Elements) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Elements[0].Text != "hello" {
		t.Fatalf("unexpected element %+v", result.Elements[0])
	}
}

func TestParse_RetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Result{Markdown: "ok", Pages: 2})
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Parse(context.Background(), "doc.pdf", nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if result.Pages != 2 {
		t.Fatalf("expected pages 2, got %d", result.Pages)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestParse_PermanentFailureNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Parse(context.Background(), "doc.pdf", nil)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 attempt for 422, got %d", calls.Load())
	}
}

func TestIsTransientStatus(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusTooManyRequests, true},
		{http.StatusRequestTimeout, true},
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		if got := isTransientStatus(tt.code); got != tt.want {
			t.Errorf("isTransientStatus(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
