package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"wallet-session/internal/models"
)

// Journal is an append-only audit trail of confirmed wallet events
type Journal struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// NewJournal wraps an open connection
func NewJournal(db *sql.DB, logger *zerolog.Logger) *Journal {
	return &Journal{db: db, logger: logger}
}

// EmitEvent implements interfaces.EventEmitter
func (j *Journal) EmitEvent(event models.WalletEvent) error {
	var proposal sql.NullInt64
	if event.ProposalID != nil {
		proposal = sql.NullInt64{Int64: int64(*event.ProposalID), Valid: true}
	}

	_, err := j.db.Exec(`
		INSERT INTO wallet_events (kind, tx_hash, from_address, to_address, amount, proposal_id, chain_id, explorer_url, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tx_hash, kind) DO NOTHING
	`, string(event.Kind), event.TxHash, event.From, event.To,
		nullString(event.Amount), proposal, nullString(event.ChainID), nullString(event.ExplorerURL), event.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to save wallet event: %w", err)
	}

	j.logger.Debug().
		Str("kind", string(event.Kind)).
		Str("txHash", event.TxHash).
		Msg("Wallet event journaled")
	return nil
}

// ListEvents returns the events sent from address, newest first
func (j *Journal) ListEvents(ctx context.Context, from string, limit, offset int) ([]models.WalletEvent, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT kind, tx_hash, from_address, to_address, amount, proposal_id, chain_id, explorer_url, timestamp
		FROM wallet_events
		WHERE from_address = $1
		ORDER BY timestamp DESC
		LIMIT $2 OFFSET $3
	`, from, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet events: %w", err)
	}
	defer rows.Close()

	var events []models.WalletEvent
	for rows.Next() {
		var (
			ev                           models.WalletEvent
			kind                         string
			amount, chainID, explorerURL sql.NullString
			proposal                     sql.NullInt64
		)
		if err := rows.Scan(&kind, &ev.TxHash, &ev.From, &ev.To, &amount, &proposal, &chainID, &explorerURL, &ev.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan wallet event: %w", err)
		}
		ev.Kind = models.WalletEventKind(kind)
		ev.Amount = amount.String
		ev.ChainID = chainID.String
		ev.ExplorerURL = explorerURL.String
		if proposal.Valid {
			id := uint64(proposal.Int64)
			ev.ProposalID = &id
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close closes the underlying connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
