package events

import (
	"errors"

	"github.com/rs/zerolog"

	"wallet-session/internal/interfaces"
	"wallet-session/internal/models"
)

// LogEmitter logs every wallet event and forwards it to the wrapped emitters
type LogEmitter struct {
	WrappedEmitters []interfaces.EventEmitter
	Logger          *zerolog.Logger
}

// EmitEvent logs the event and fans it out. Every sink is tried; the joined
// sink errors are returned.
func (d *LogEmitter) EmitEvent(event models.WalletEvent) error {
	entry := d.Logger.Info().
		Str("kind", string(event.Kind)).
		Str("from", event.From).
		Str("to", event.To).
		Str("txHash", event.TxHash).
		Str("chainId", event.ChainID).
		Time("timestamp", event.Timestamp)
	if event.Amount != "" {
		entry = entry.Str("amount", event.Amount)
	}
	if event.ProposalID != nil {
		entry = entry.Uint64("proposal", *event.ProposalID)
	}
	if event.ExplorerURL != "" {
		entry = entry.Str("explorer", event.ExplorerURL)
	}
	entry.Msg("Wallet event")

	var errs []error
	for _, emitter := range d.WrappedEmitters {
		if emitter == nil {
			continue
		}
		if err := emitter.EmitEvent(event); err != nil {
			d.Logger.Error().Err(err).Str("txHash", event.TxHash).Msg("Error forwarding wallet event")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
