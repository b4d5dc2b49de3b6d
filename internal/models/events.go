package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type ProviderEventKind string

const (
	AccountsChanged ProviderEventKind = "accountsChanged"
	ChainChanged    ProviderEventKind = "chainChanged"
)

// ProviderEvent is a change notification pushed by the wallet provider
type ProviderEvent struct {
	Kind     ProviderEventKind
	Accounts []common.Address
	ChainID  *big.Int
}

type WalletEventKind string

const (
	TransferConfirmed WalletEventKind = "transfer_confirmed"
	VoteConfirmed     WalletEventKind = "vote_confirmed"
)

// WalletEvent is published to the configured sinks once a submission is confirmed
type WalletEvent struct {
	Kind        WalletEventKind `json:"kind"`
	TxHash      string          `json:"tx_hash"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Amount      string          `json:"amount,omitempty"`
	ProposalID  *uint64         `json:"proposal_id,omitempty"`
	ChainID     string          `json:"chain_id,omitempty"`
	ExplorerURL string          `json:"explorer_url,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
}
