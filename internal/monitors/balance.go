package monitors

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HeadReader reports the latest block of the connected chain
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// BalanceRefresher re-reads the session balance
type BalanceRefresher interface {
	RefreshBalance(ctx context.Context) error
}

// BalanceMonitor refreshes the session balance whenever the chain head
// changes, so incoming transfers show up without a manual refresh.
type BalanceMonitor struct {
	Heads     HeadReader
	Refresher BalanceRefresher
	Interval  time.Duration
	Logger    *zerolog.Logger

	mu          sync.Mutex
	latestBlock uint64
}

func NewBalanceMonitor(heads HeadReader, refresher BalanceRefresher, interval time.Duration, logger *zerolog.Logger) *BalanceMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &BalanceMonitor{
		Heads:     heads,
		Refresher: refresher,
		Interval:  interval,
		Logger:    logger,
	}
}

// Start polls the head until ctx is done
func (b *BalanceMonitor) Start(ctx context.Context) {
	b.Logger.Info().Dur("interval", b.Interval).Msg("Starting balance monitoring loop")
	go b.monitorBlocks(ctx)
}

func (b *BalanceMonitor) monitorBlocks(ctx context.Context) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Logger.Info().Msg("Balance monitor shutting down")
			return
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

// poll refreshes the balance once per new head. A chain switch can move the
// head backwards, so any change counts.
func (b *BalanceMonitor) poll(ctx context.Context) {
	head, err := b.Heads.BlockNumber(ctx)
	if err != nil {
		b.Logger.Error().Err(err).Msg("Failed to get current block")
		return
	}

	b.mu.Lock()
	changed := head != b.latestBlock
	b.latestBlock = head
	b.mu.Unlock()

	if !changed {
		return
	}

	b.Logger.Debug().Uint64("blockNumber", head).Msg("New block, refreshing balance")
	if err := b.Refresher.RefreshBalance(ctx); err != nil {
		b.Logger.Warn().Err(err).Uint64("blockNumber", head).Msg("Balance refresh failed")
	}
}
