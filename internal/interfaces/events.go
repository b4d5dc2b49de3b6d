package interfaces

import "wallet-session/internal/models"

// EventEmitter defines the interface for emitting wallet events
type EventEmitter interface {
	EmitEvent(event models.WalletEvent) error
}
