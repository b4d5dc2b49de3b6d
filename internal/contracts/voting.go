package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"wallet-session/internal/interfaces"
)

// DefaultVotingAddress is the deployed two-proposal voting contract
const DefaultVotingAddress = "0xB2E1185468e57A801a54162F27725CbD5B0EB4a6"

// VotingABI is the minimal interface of the voting contract. Proposals are
// indexed from zero.
const VotingABI = `[
	{"constant":false,"inputs":[{"name":"proposal","type":"uint256"}],"name":"vote","outputs":[],"type":"function"},
	{"constant":true,"inputs":[{"name":"proposal","type":"uint256"}],"name":"votes","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

var ErrNoSigner = errors.New("voting binding has no signer")

var votingABI = mustParseABI(VotingABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid voting ABI: %v", err))
	}
	return parsed
}

// ContractCaller performs read-only contract calls
type ContractCaller interface {
	CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error)
}

// Voting binds the voting contract to a caller and, once a wallet is connected, a signer.
// A Voting value is never mutated; WithSigner returns a new binding.
type Voting struct {
	address common.Address
	caller  ContractCaller
	signer  interfaces.Signer
}

// NewVoting returns a read-only binding
func NewVoting(address common.Address, caller ContractCaller) *Voting {
	return &Voting{address: address, caller: caller}
}

func (v *Voting) Address() common.Address {
	return v.address
}

func (v *Voting) Signer() interfaces.Signer {
	return v.signer
}

// WithSigner returns a copy of the binding that submits through signer
func (v *Voting) WithSigner(signer interfaces.Signer) *Voting {
	return &Voting{address: v.address, caller: v.caller, signer: signer}
}

// Vote submits vote(proposal)
func (v *Voting) Vote(ctx context.Context, proposal uint64) (interfaces.Submission, error) {
	if v.signer == nil {
		return nil, ErrNoSigner
	}

	data, err := PackVote(proposal)
	if err != nil {
		return nil, err
	}

	return v.signer.Transact(ctx, v.address, data)
}

// Votes reads the vote count for a proposal
func (v *Voting) Votes(ctx context.Context, proposal uint64) (*big.Int, error) {
	data, err := votingABI.Pack("votes", new(big.Int).SetUint64(proposal))
	if err != nil {
		return nil, fmt.Errorf("failed to pack votes call: %w", err)
	}

	output, err := v.caller.CallContract(ctx, v.address, data)
	if err != nil {
		return nil, fmt.Errorf("votes call failed: %w", err)
	}

	results, err := votingABI.Unpack("votes", output)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack votes result: %w", err)
	}
	if len(results) != 1 {
		return nil, fmt.Errorf("unexpected votes result length %d", len(results))
	}

	count, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected votes result type %T", results[0])
	}
	return count, nil
}

// PackVote returns the calldata for vote(proposal)
func PackVote(proposal uint64) ([]byte, error) {
	data, err := votingABI.Pack("vote", new(big.Int).SetUint64(proposal))
	if err != nil {
		return nil, fmt.Errorf("failed to pack vote call: %w", err)
	}
	return data, nil
}
