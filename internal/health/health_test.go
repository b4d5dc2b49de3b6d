package health

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type MockChainReader struct {
	mu      sync.Mutex
	chainID *big.Int
	err     error
	calls   int
}

func (m *MockChainReader) ChainID(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.chainID, m.err
}

func (m *MockChainReader) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestLivenessHandler(t *testing.T) {
	logger := zerolog.Nop()
	c := NewChecker(&logger)

	rec := httptest.NewRecorder()
	c.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("liveness = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	logger := zerolog.Nop()
	c := NewChecker(&logger)
	reader := &MockChainReader{chainID: big.NewInt(11155111)}

	rec := httptest.NewRecorder()
	c.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before readiness, got %d", rec.Code)
	}

	c.check(context.Background(), reader)
	c.SetReady(true)

	rec = httptest.NewRecorder()
	c.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Status   string         `json:"status"`
		Provider ProviderStatus `json:"provider"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Status != "Ready" || body.Provider.ChainID != "0xaa36a7" {
		t.Errorf("unexpected body: %+v", body)
	}

	c.SetReady(false)
	rec = httptest.NewRecorder()
	c.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after SetReady(false), got %d", rec.Code)
	}
}

func TestCheck_ErrorKeepsPreviousStatus(t *testing.T) {
	logger := zerolog.Nop()
	c := NewChecker(&logger)
	reader := &MockChainReader{chainID: big.NewInt(1)}

	c.check(context.Background(), reader)
	reader.err = errors.New("rpc down")
	c.check(context.Background(), reader)

	if c.status == nil || c.status.ChainID != "0x1" {
		t.Errorf("status = %+v, want chain 0x1", c.status)
	}
}

func TestRegisterProvider(t *testing.T) {
	logger := zerolog.Nop()
	c := NewChecker(&logger)
	reader := &MockChainReader{chainID: big.NewInt(5)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.RegisterProvider(ctx, reader, 10*time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for reader.Calls() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if reader.Calls() < 2 {
		t.Fatalf("provider polled %d times, want at least 2", reader.Calls())
	}

	c.statusMutex.RLock()
	defer c.statusMutex.RUnlock()
	if c.status == nil || c.status.ChainID != "0x5" {
		t.Errorf("status = %+v", c.status)
	}
}
