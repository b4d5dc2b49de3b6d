package models

import "time"

type SessionState string

const (
	Disconnected SessionState = "disconnected"
	Connected    SessionState = "connected"
)

func (s SessionState) String() string {
	return string(s)
}

// Session is the in-memory view of the current wallet linkage
type Session struct {
	State            SessionState    `json:"state"`
	ConnectedAddress string          `json:"connected_address,omitempty"`
	ChainID          string          `json:"chain_id,omitempty"`
	NetworkName      string          `json:"network_name,omitempty"`
	NativeBalance    string          `json:"native_balance,omitempty"`
	TransferPending  bool            `json:"transfer_pending"`
	VotePending      bool            `json:"vote_pending"`
	Voted            bool            `json:"voted"`
	Status           string          `json:"status,omitempty"`
	Draft            TransferRequest `json:"draft"`
}

// TransferRequest is user input for a native-currency transfer, amount in display units
type TransferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

func (r TransferRequest) IsEmpty() bool {
	return r.Recipient == "" && r.Amount == ""
}

// TransferRecord is an entry of the append-only transfer history
type TransferRecord struct {
	ID          string    `json:"id"`
	TxHash      string    `json:"tx_hash"`
	From        string    `json:"from"`
	Recipient   string    `json:"recipient"`
	Amount      string    `json:"amount"`
	ChainID     string    `json:"chain_id,omitempty"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

type VoteRequest struct {
	ProposalID uint64 `json:"proposal_id"`
}
