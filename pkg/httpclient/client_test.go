package httpclient

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type payload struct {
	Name string `json:"name"`
}

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client, err := New(Config{Timeout: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out payload
	err = client.GetJSON(context.Background(), ts.URL, nil, &out)
	var statusErr *StatusError
	if err == nil || errors.As(err, &statusErr) {
		t.Fatalf("expected transport timeout, got %v", err)
	}

	if _, err := New(Config{Timeout: -time.Second}); err == nil {
		t.Error("expected error for negative timeout")
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		default:
			_, _ = w.Write([]byte(`{"name":"moved"}`))
		}
	}))
	defer ts.Close()
	ctx := context.Background()

	var out payload
	client, _ := New(Config{})
	if err := client.GetJSON(ctx, ts.URL+"/1", nil, &out); err != nil || out.Name != "moved" {
		t.Errorf("expected redirects to be followed, got %v %+v", err, out)
	}

	limited, _ := New(Config{MaxRedirects: 1})
	if err := limited.GetJSON(ctx, ts.URL+"/1", nil, &out); err == nil || !strings.Contains(err.Error(), "stopped after 1 redirects") {
		t.Errorf("expected redirect limit error, got %v", err)
	}

	none, _ := New(Config{MaxRedirects: -1})
	err := none.GetJSON(ctx, ts.URL+"/1", nil, &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusFound {
		t.Errorf("expected unfollowed 302 as StatusError, got %v", err)
	}
}

func TestClient_Context(t *testing.T) {
	client, _ := New(Config{})

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := client.Do(nil, req); err == nil || err.Error() != "httpclient: context cannot be nil" {
		t.Errorf("expected nil context error, got %v", err)
	}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out payload
	err := client.GetJSON(ctx, ts.URL, nil, &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}
}

func TestClient_GetJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("User-Agent") != "quarry-test/1.0" {
				t.Errorf("expected configured User-Agent, got %q", r.Header.Get("User-Agent"))
			}
			if r.Header.Get("Authorization") != "secret" {
				t.Errorf("expected Authorization header, got %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("Accept") != "application/json" {
				t.Errorf("expected json Accept header, got %q", r.Header.Get("Accept"))
			}
			_, _ = w.Write([]byte(`{"name":"quarry"}`))
		case "/forbidden":
			w.Header().Set("Server", "cloudflare")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte("<title>Attention Required!</title>"))
		case "/huge":
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write(bytes.Repeat([]byte("x"), 64<<10))
		case "/garbage":
			_, _ = w.Write([]byte(`<html>not json</html>`))
		}
	}))
	defer ts.Close()

	client, err := New(Config{UserAgent: "quarry-test/1.0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	var out payload
	if err := client.GetJSON(ctx, ts.URL+"/ok", http.Header{"Authorization": {"secret"}}, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "quarry" {
		t.Errorf("expected name quarry, got %q", out.Name)
	}

	err = client.GetJSON(ctx, ts.URL+"/forbidden", nil, &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusForbidden {
		t.Fatalf("expected StatusError 403, got %v", err)
	}
	if statusErr.Header.Get("Server") != "cloudflare" || !bytes.Contains(statusErr.Body, []byte("Attention Required!")) {
		t.Errorf("expected headers and body kept on StatusError, got %+v", statusErr)
	}

	err = client.GetJSON(ctx, ts.URL+"/huge", nil, &out)
	if !errors.As(err, &statusErr) || len(statusErr.Body) != maxErrorBody {
		t.Errorf("expected body capped at %d bytes, got %v", maxErrorBody, err)
	}

	err = client.GetJSON(ctx, ts.URL+"/garbage", nil, &out)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("expected DecodeError, got %v", err)
	}
}
