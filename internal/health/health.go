package health

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog"
)

// ChainReader reports the chain the wallet provider is on
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

type ProviderStatus struct {
	ChainID   string    `json:"chain_id"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker backs the liveness and readiness endpoints
type Checker struct {
	ready  atomic.Bool
	logger *zerolog.Logger

	statusMutex sync.RWMutex
	status      *ProviderStatus
}

func NewChecker(logger *zerolog.Logger) *Checker {
	return &Checker{logger: logger}
}

func (c *Checker) SetReady(ready bool) {
	c.ready.Store(ready)
}

func (c *Checker) LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (c *Checker) ReadinessHandler(w http.ResponseWriter, _ *http.Request) {
	c.statusMutex.RLock()
	defer c.statusMutex.RUnlock()

	if c.status == nil || !c.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))

		return
	}

	response := make(map[string]interface{})
	response["status"] = "Ready"
	response["provider"] = c.status

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// RegisterProvider polls the provider's chain id every interval until ctx is done
func (c *Checker) RegisterProvider(ctx context.Context, provider ChainReader, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			c.check(ctx, provider)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (c *Checker) check(ctx context.Context, provider ChainReader) {
	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	chainID, err := provider.ChainID(reqCtx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error getting provider chain id")
		return
	}

	c.statusMutex.Lock()
	defer c.statusMutex.Unlock()
	c.status = &ProviderStatus{
		ChainID:   hexutil.EncodeBig(chainID),
		CheckedAt: time.Now(),
	}
}
