// Package provider implements the wallet provider on top of a go-ethereum
// keystore and an ethclient connection.
package provider

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog"

	"wallet-session/internal/config"
	"wallet-session/internal/interfaces"
	"wallet-session/internal/models"
	"wallet-session/internal/rpc"
)

var (
	ErrNoWallet       = errors.New("no wallet available")
	ErrNoAccounts     = errors.New("wallet has no accounts")
	ErrUnknownAccount = errors.New("account is not managed by the wallet")
	ErrUnknownChain   = errors.New("unrecognized chain")
	ErrChainMismatch  = errors.New("endpoint serves a different chain")
)

var _ interfaces.Provider = (*EthereumProvider)(nil)

const eventBufferSize = 16

// Backend is the subset of ethclient the provider needs
type Backend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	ChainID(ctx context.Context) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dialer connects to a chain and returns the backend with its close function
type Dialer func(ctx context.Context, chain config.ChainConfig) (Backend, func(), error)

// DialHTTP returns a Dialer that connects through the rate limited rpc transport
func DialHTTP(timeout time.Duration, logger *zerolog.Logger) Dialer {
	return func(ctx context.Context, chain config.ChainConfig) (Backend, func(), error) {
		httpClient := rpc.NewHTTPClient(chain.HeaderAPIKey(), chain.RateLimit, timeout, logger)

		rpcClient, err := gethrpc.DialHTTPWithClient(chain.Endpoint(), httpClient)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create RPC client: %w", err)
		}

		client := ethclient.NewClient(rpcClient)
		return client, client.Close, nil
	}
}

// OpenKeystore opens an existing keystore directory
func OpenKeystore(dir string) (*keystore.KeyStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: keystore %s: %v", ErrNoWallet, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: keystore %s is not a directory", ErrNoWallet, dir)
	}
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), nil
}

// Options configures an EthereumProvider
type Options struct {
	Chains       map[string]config.ChainConfig
	DefaultChain string
	Passphrase   string
	PollInterval time.Duration
}

// EthereumProvider exposes a keystore and a chain connection the way an
// injected browser wallet does: account access, chain queries, signing and
// change notifications.
type EthereumProvider struct {
	keystore     *keystore.KeyStore
	passphrase   string
	chains       map[string]config.ChainConfig
	dial         Dialer
	pollInterval time.Duration
	logger       *zerolog.Logger

	mu           sync.RWMutex
	backend      Backend
	closeBackend func()
	chainID      *big.Int
	authorized   bool

	events    chan models.ProviderEvent
	walletCh  chan accounts.WalletEvent
	sub       event.Subscription
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New dials the default chain and starts watching the keystore and the chain id
func New(ctx context.Context, opts Options, ks *keystore.KeyStore, dial Dialer, logger *zerolog.Logger) (*EthereumProvider, error) {
	if ks == nil {
		return nil, ErrNoWallet
	}

	chain, ok := opts.Chains[opts.DefaultChain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChain, opts.DefaultChain)
	}

	backend, closeBackend, err := dial(ctx, chain)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoWallet, err)
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		closeBackend()
		return nil, fmt.Errorf("%w: failed to get chain id: %v", ErrNoWallet, err)
	}

	p := &EthereumProvider{
		keystore:     ks,
		passphrase:   opts.Passphrase,
		chains:       opts.Chains,
		dial:         dial,
		pollInterval: opts.PollInterval,
		logger:       logger,
		backend:      backend,
		closeBackend: closeBackend,
		chainID:      chainID,
		events:       make(chan models.ProviderEvent, eventBufferSize),
		walletCh:     make(chan accounts.WalletEvent, eventBufferSize),
		quit:         make(chan struct{}),
	}
	p.sub = ks.Subscribe(p.walletCh)

	p.wg.Add(2)
	go p.watchWallets()
	go p.pollChain()

	logger.Info().
		Str("chainId", hexutil.EncodeBig(chainID)).
		Int("accounts", len(ks.Accounts())).
		Msg("Wallet provider ready")

	return p, nil
}

func (p *EthereumProvider) current() (Backend, *big.Int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.backend, p.chainID
}

// RequestAccounts grants access to the keystore accounts. From then on
// keystore changes are reported as accountsChanged events.
func (p *EthereumProvider) RequestAccounts(_ context.Context) ([]common.Address, error) {
	addresses := accountAddresses(p.keystore.Accounts())
	if len(addresses) == 0 {
		return nil, ErrNoAccounts
	}

	p.mu.Lock()
	p.authorized = true
	p.mu.Unlock()

	return addresses, nil
}

func (p *EthereumProvider) ChainID(ctx context.Context) (*big.Int, error) {
	backend, _ := p.current()
	return backend.ChainID(ctx)
}

func (p *EthereumProvider) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	backend, _ := p.current()
	return backend.BalanceAt(ctx, account, nil)
}

// BlockNumber returns the head block of the current chain
func (p *EthereumProvider) BlockNumber(ctx context.Context) (uint64, error) {
	backend, _ := p.current()
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return header.Number.Uint64(), nil
}

func (p *EthereumProvider) CallContract(ctx context.Context, contract common.Address, data []byte) ([]byte, error) {
	backend, _ := p.current()
	return backend.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
}

// SwitchChain reconnects to the configured endpoint of chainID
func (p *EthereumProvider) SwitchChain(ctx context.Context, chainID *big.Int) error {
	key := hexutil.EncodeBig(chainID)
	chain, ok := p.chains[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChain, key)
	}

	if _, current := p.current(); current.Cmp(chainID) == 0 {
		return nil
	}

	backend, closeBackend, err := p.dial(ctx, chain)
	if err != nil {
		return fmt.Errorf("failed to dial chain %s: %w", key, err)
	}

	remote, err := backend.ChainID(ctx)
	if err != nil {
		closeBackend()
		return fmt.Errorf("failed to get chain id from %s: %w", key, err)
	}
	if remote.Cmp(chainID) != 0 {
		closeBackend()
		return fmt.Errorf("%w: want %s, got %s", ErrChainMismatch, key, hexutil.EncodeBig(remote))
	}

	p.mu.Lock()
	oldClose := p.closeBackend
	p.backend = backend
	p.closeBackend = closeBackend
	p.chainID = remote
	p.mu.Unlock()

	if oldClose != nil {
		oldClose()
	}

	p.logger.Info().Str("chainId", key).Str("network", chain.Name).Msg("Switched chain")
	p.emit(models.ProviderEvent{Kind: models.ChainChanged, ChainID: new(big.Int).Set(remote)})
	return nil
}

// Signer returns a keystore signer for account
func (p *EthereumProvider) Signer(account common.Address) (interfaces.Signer, error) {
	acct, err := p.keystore.Find(accounts.Account{Address: account})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	return &keystoreSigner{provider: p, account: acct}, nil
}

func (p *EthereumProvider) Events() <-chan models.ProviderEvent {
	return p.events
}

// ExplorerURL returns the explorer link of txHash on the current chain
func (p *EthereumProvider) ExplorerURL(txHash common.Hash) string {
	_, chainID := p.current()
	chain, ok := p.chains[hexutil.EncodeBig(chainID)]
	if !ok {
		return ""
	}
	return chain.ExplorerURL(txHash.Hex())
}

// Close stops the watchers and closes the chain connection
func (p *EthereumProvider) Close() {
	p.closeOnce.Do(func() {
		close(p.quit)
		p.sub.Unsubscribe()
		p.wg.Wait()

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closeBackend != nil {
			p.closeBackend()
			p.closeBackend = nil
		}
	})
}

func (p *EthereumProvider) emit(ev models.ProviderEvent) {
	select {
	case p.events <- ev:
	default:
		p.logger.Warn().Str("event", string(ev.Kind)).Msg("Provider event buffer full, dropping event")
	}
}

func (p *EthereumProvider) watchWallets() {
	defer p.wg.Done()

	for {
		select {
		case <-p.quit:
			return
		case err := <-p.sub.Err():
			if err != nil {
				p.logger.Error().Err(err).Msg("Keystore subscription failed")
			}
			return
		case ev := <-p.walletCh:
			if ev.Kind != accounts.WalletArrived && ev.Kind != accounts.WalletDropped {
				continue
			}

			p.mu.RLock()
			authorized := p.authorized
			p.mu.RUnlock()
			if !authorized {
				continue
			}

			addresses := accountAddresses(p.keystore.Accounts())
			p.logger.Debug().Int("accounts", len(addresses)).Msg("Keystore accounts changed")
			p.emit(models.ProviderEvent{Kind: models.AccountsChanged, Accounts: addresses})
		}
	}
}

func (p *EthereumProvider) pollChain() {
	defer p.wg.Done()

	if p.pollInterval <= 0 {
		return
	}

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.quit:
			return
		case <-ticker.C:
			backend, known := p.current()

			ctx, cancel := context.WithTimeout(context.Background(), p.pollInterval)
			remote, err := backend.ChainID(ctx)
			cancel()
			if err != nil {
				p.logger.Warn().Err(err).Msg("Failed to poll chain id")
				continue
			}
			if remote.Cmp(known) == 0 {
				continue
			}

			p.mu.Lock()
			if p.backend != backend {
				// switched while polling, the switch already reported the new chain
				p.mu.Unlock()
				continue
			}
			p.chainID = remote
			p.mu.Unlock()

			p.logger.Info().Str("chainId", hexutil.EncodeBig(remote)).Msg("Remote chain changed")
			p.emit(models.ProviderEvent{Kind: models.ChainChanged, ChainID: new(big.Int).Set(remote)})
		}
	}
}

func accountAddresses(accts []accounts.Account) []common.Address {
	addresses := make([]common.Address, 0, len(accts))
	for _, a := range accts {
		addresses = append(addresses, a.Address)
	}
	return addresses
}
