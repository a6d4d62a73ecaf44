package wolfram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/justin-russell/matrix-gptbot/backend"
)

func TestQuerySuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("appid"); got != "app-1" {
			t.Errorf("appid = %q", got)
		}
		if got := r.URL.Query().Get("i"); got != "2+2" {
			t.Errorf("i = %q", got)
		}
		_, _ = w.Write([]byte("4\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, "app-1")
	got, err := c.Query(context.Background(), "2+2")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != "4" {
		t.Fatalf("Query() = %q, want %q", got, "4")
	}
}

func TestQueryUnconfigured(t *testing.T) {
	c := New("", "")
	_, err := c.Query(context.Background(), "2+2")
	if !backend.IsUnsupported(err) {
		t.Fatalf("Query() error = %v, want unsupported", err)
	}
}

func TestQueryUninterpretableInput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		_, _ = w.Write([]byte("Wolfram|Alpha did not understand your input"))
	}))
	defer srv.Close()

	c := New(srv.URL, "app-1")
	_, err := c.Query(context.Background(), "gibberish")
	if got := backend.KindOf(err); got != backend.KindInvalidRequest {
		t.Fatalf("Query() kind = %v, want invalid_request", got)
	}
}

func TestQueryEmptyExpression(t *testing.T) {
	c := New("", "app-1")
	_, err := c.Query(context.Background(), "   ")
	if got := backend.KindOf(err); got != backend.KindInvalidRequest {
		t.Fatalf("Query() kind = %v, want invalid_request", got)
	}
}
