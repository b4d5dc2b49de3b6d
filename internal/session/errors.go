package session

import "errors"

var (
	// ErrNoWallet is fatal: without a provider nothing else can work
	ErrNoWallet = errors.New("no wallet available")

	ErrConnectionFailed = errors.New("wallet connection failed")
	ErrNotConnected     = errors.New("wallet not connected")
	ErrValidation       = errors.New("invalid transfer request")
	ErrTransferInFlight = errors.New("a transfer is already pending")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrVotingDisabled   = errors.New("voting is not enabled")
	ErrHistoryDisabled  = errors.New("transfer history is not enabled")
	ErrInvalidProposal  = errors.New("invalid proposal")
	ErrAlreadyVoted     = errors.New("already voted")
	ErrVoteInFlight     = errors.New("a vote is already pending")
	ErrVoteFailed       = errors.New("vote failed")
	ErrBalanceFailed    = errors.New("balance refresh failed")
)
