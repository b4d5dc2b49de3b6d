package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"wallet-session/internal/interfaces"
)

var ErrReverted = errors.New("transaction reverted")

// keystoreSigner signs with one keystore account. It resolves the backend on
// every call so a chain switch is picked up without rebuilding the signer.
type keystoreSigner struct {
	provider *EthereumProvider
	account  accounts.Account
}

var _ interfaces.Signer = (*keystoreSigner)(nil)

func (s *keystoreSigner) Address() common.Address {
	return s.account.Address
}

func (s *keystoreSigner) SendValue(ctx context.Context, to common.Address, value *big.Int) (interfaces.Submission, error) {
	return s.send(ctx, to, value, nil)
}

func (s *keystoreSigner) Transact(ctx context.Context, contract common.Address, data []byte) (interfaces.Submission, error) {
	return s.send(ctx, contract, new(big.Int), data)
}

func (s *keystoreSigner) send(ctx context.Context, to common.Address, value *big.Int, data []byte) (interfaces.Submission, error) {
	backend, chainID := s.provider.current()
	from := s.account.Address

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	head, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := backend.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice, err := backend.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to suggest gas price: %w", err)
		}

		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}

	signed, err := s.provider.keystore.SignTxWithPassphrase(s.account, s.provider.passphrase, tx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	s.provider.logger.Info().
		Str("from", from.Hex()).
		Str("to", to.Hex()).
		Str("value", value.String()).
		Str("txHash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Msg("Transaction submitted")

	return &submission{backend: backend, tx: signed}, nil
}

type submission struct {
	backend Backend
	tx      *types.Transaction
}

func (s *submission) Hash() common.Hash {
	return s.tx.Hash()
}

// Wait blocks until the transaction is mined. A mined but failed transaction
// returns ErrReverted.
func (s *submission) Wait(ctx context.Context) error {
	receipt, err := bind.WaitMined(ctx, s.backend, s.tx)
	if err != nil {
		return fmt.Errorf("confirmation wait for %s: %w", s.tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s in block %v", ErrReverted, s.tx.Hash().Hex(), receipt.BlockNumber)
	}
	return nil
}
