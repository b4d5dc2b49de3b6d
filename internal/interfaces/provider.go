package interfaces

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"wallet-session/internal/models"
)

// Provider is the wallet provider the session controller talks to
type Provider interface {
	// RequestAccounts asks the wallet for account access and returns the granted accounts
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error)

	// SwitchChain moves the provider to another configured chain
	SwitchChain(ctx context.Context, chainID *big.Int) error

	// Signer returns a signer bound to one of the granted accounts
	Signer(account common.Address) (Signer, error)

	// Events delivers accountsChanged and chainChanged notifications
	Events() <-chan models.ProviderEvent
}

// Signer authorizes and submits transactions for one account
type Signer interface {
	Address() common.Address
	SendValue(ctx context.Context, to common.Address, value *big.Int) (Submission, error)
	Transact(ctx context.Context, contract common.Address, data []byte) (Submission, error)
}

// Submission is a broadcast transaction awaiting confirmation
type Submission interface {
	Hash() common.Hash
	// Wait blocks until the transaction is mined or ctx is done
	Wait(ctx context.Context) error
}
