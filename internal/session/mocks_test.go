package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"wallet-session/internal/interfaces"
	"wallet-session/internal/models"
)

// mockSubmission completes immediately with err, or blocks on release when set
type mockSubmission struct {
	hash    common.Hash
	err     error
	release chan error
}

func (m *mockSubmission) Hash() common.Hash {
	return m.hash
}

func (m *mockSubmission) Wait(ctx context.Context) error {
	if m.release != nil {
		select {
		case err := <-m.release:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

type sentTx struct {
	to    common.Address
	value *big.Int
	data  []byte
}

// MockSigner records every submission
type MockSigner struct {
	address common.Address
	sendErr error
	waitErr error
	release chan error

	mu   sync.Mutex
	sent []sentTx
}

func (m *MockSigner) Address() common.Address {
	return m.address
}

func (m *MockSigner) SendValue(_ context.Context, to common.Address, value *big.Int) (interfaces.Submission, error) {
	return m.record(sentTx{to: to, value: new(big.Int).Set(value)})
}

func (m *MockSigner) Transact(_ context.Context, contract common.Address, data []byte) (interfaces.Submission, error) {
	return m.record(sentTx{to: contract, value: new(big.Int), data: data})
}

func (m *MockSigner) record(tx sentTx) (interfaces.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return nil, m.sendErr
	}
	m.sent = append(m.sent, tx)
	hash := common.BigToHash(big.NewInt(int64(len(m.sent))))
	return &mockSubmission{hash: hash, err: m.waitErr, release: m.release}, nil
}

func (m *MockSigner) Sent() []sentTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	sent := make([]sentTx, len(m.sent))
	copy(sent, m.sent)
	return sent
}

// MockProvider is a scripted wallet provider
type MockProvider struct {
	mu sync.Mutex

	accounts    []common.Address
	accountsErr error
	chainID     *big.Int
	chainErr    error
	// balances are returned in order, the last one repeats
	balances     []*big.Int
	balanceErr   error
	callOutput   []byte
	switchErr    error
	switchedTo   *big.Int
	signerErr    error
	signers      map[common.Address]*MockSigner
	explorerBase string

	requestCalls int
	balanceCalls int
	signerCalls  int

	events chan models.ProviderEvent
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		chainID: big.NewInt(1),
		signers: make(map[common.Address]*MockSigner),
		events:  make(chan models.ProviderEvent, 8),
	}
}

func (m *MockProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCalls++
	if m.accountsErr != nil {
		return nil, m.accountsErr
	}
	return m.accounts, nil
}

func (m *MockProvider) ChainID(_ context.Context) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.chainErr != nil {
		return nil, m.chainErr
	}
	return new(big.Int).Set(m.chainID), nil
}

func (m *MockProvider) BalanceAt(_ context.Context, _ common.Address) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceCalls++
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	if len(m.balances) == 0 {
		return big.NewInt(0), nil
	}
	balance := m.balances[0]
	if len(m.balances) > 1 {
		m.balances = m.balances[1:]
	}
	return balance, nil
}

func (m *MockProvider) CallContract(_ context.Context, _ common.Address, _ []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callOutput == nil {
		return nil, errors.New("execution reverted")
	}
	return m.callOutput, nil
}

func (m *MockProvider) SwitchChain(_ context.Context, chainID *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.switchErr != nil {
		return m.switchErr
	}
	m.switchedTo = chainID
	m.chainID = chainID
	return nil
}

func (m *MockProvider) Signer(account common.Address) (interfaces.Signer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signerCalls++
	if m.signerErr != nil {
		return nil, m.signerErr
	}
	signer, ok := m.signers[account]
	if !ok {
		signer = &MockSigner{address: account}
		m.signers[account] = signer
	}
	return signer, nil
}

func (m *MockProvider) Events() <-chan models.ProviderEvent {
	return m.events
}

func (m *MockProvider) ExplorerURL(txHash common.Hash) string {
	if m.explorerBase == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s", m.explorerBase, txHash.Hex())
}

func (m *MockProvider) BalanceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceCalls
}

func (m *MockProvider) RequestCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCalls
}

// MockEventEmitter collects emitted events
type MockEventEmitter struct {
	mu        sync.Mutex
	events    []models.WalletEvent
	emitError error
}

func (m *MockEventEmitter) EmitEvent(event models.WalletEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emitError != nil {
		return m.emitError
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockEventEmitter) GetEmittedEvents() []models.WalletEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]models.WalletEvent, len(m.events))
	copy(events, m.events)
	return events
}

// SignerFor returns the signer the provider hands out for account
func (m *MockProvider) SignerFor(account common.Address) *MockSigner {
	m.mu.Lock()
	defer m.mu.Unlock()
	signer, ok := m.signers[account]
	if !ok {
		signer = &MockSigner{address: account}
		m.signers[account] = signer
	}
	return signer
}
