package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type recordingServer struct {
	mu      sync.Mutex
	headers []http.Header
}

func (s *recordingServer) handler(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"0x1"}`))
}

func (s *recordingServer) last() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers[len(s.headers)-1]
}

func TestNewHTTPClient_SetsHeaders(t *testing.T) {
	rec := &recordingServer{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	logger := zerolog.New(nil)
	client := NewHTTPClient("secret", 100, 5*time.Second, &logger)

	resp, err := client.Post(server.URL, "text/plain", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	headers := rec.last()
	if got := headers.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", got)
	}
	if got := headers.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
}

func TestNewHTTPClient_NoAPIKey(t *testing.T) {
	rec := &recordingServer{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	client := NewHTTPClient("", 100, 5*time.Second, nil)

	resp, err := client.Post(server.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()

	if got := rec.last().Get("Authorization"); got != "" {
		t.Errorf("Authorization = %q, want empty", got)
	}
}

func TestRateLimitedTransport_ContextCancelled(t *testing.T) {
	rec := &recordingServer{}
	server := httptest.NewServer(http.HandlerFunc(rec.handler))
	defer server.Close()

	// One token per hour: the second request has to wait
	transport := &RateLimitedTransport{
		Base:        http.DefaultTransport,
		RateLimiter: rate.NewLimiter(rate.Every(time.Hour), 1),
	}
	client := &http.Client{Transport: transport}

	resp, err := client.Get(server.URL)
	if err != nil {
		t.Fatalf("first request error = %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err = client.Do(req)
	if err == nil {
		t.Fatal("expected rate limit error")
	}
	if !strings.Contains(err.Error(), "rate limit error") && !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("unexpected error: %v", err)
	}
}
