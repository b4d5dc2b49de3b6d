// Package session implements the wallet session controller: connection,
// balance, native transfers and the optional voting and history features.
package session

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wallet-session/internal/contracts"
	"wallet-session/internal/interfaces"
	"wallet-session/internal/models"
	"wallet-session/internal/units"
	"wallet-session/internal/validation"
)

// Options selects the controller features
type Options struct {
	History        bool
	Voting         bool
	NetworkNames   bool
	ConfirmTimeout time.Duration
	VotingContract common.Address
	// ProposalCount bounds proposal ids, which start at zero
	ProposalCount uint64
}

type explorer interface {
	ExplorerURL(txHash common.Hash) string
}

// Controller owns the session state and mediates between callers and the
// wallet provider. It is safe for concurrent use; the mutex is never held
// across a provider call.
type Controller struct {
	provider interfaces.Provider
	emitter  interfaces.EventEmitter
	opts     Options
	logger   *zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	initialized bool
	connected   bool
	address     common.Address
	chainID     string
	balance     string
	voted       bool
	status      string
	draft       models.TransferRequest
	history     []models.TransferRecord
	signer      interfaces.Signer
	voting      *contracts.Voting

	transferPending atomic.Bool
	votePending     atomic.Bool
}

// NewController creates a controller. emitter may be nil.
func NewController(provider interfaces.Provider, emitter interfaces.EventEmitter, opts Options, logger *zerolog.Logger) *Controller {
	if opts.ConfirmTimeout <= 0 {
		opts.ConfirmTimeout = 5 * time.Minute
	}
	if opts.ProposalCount == 0 {
		opts.ProposalCount = 2
	}

	return &Controller{
		provider: provider,
		emitter:  emitter,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Initialize binds the voting contract and starts consuming provider
// notifications until ctx is done. Calling it again is a no-op.
func (c *Controller) Initialize(ctx context.Context) error {
	if c.provider == nil {
		c.logger.Error().Msg("No wallet provider available")
		return ErrNoWallet
	}

	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	if c.opts.Voting {
		c.voting = contracts.NewVoting(c.opts.VotingContract, c.provider)
	}
	c.mu.Unlock()

	go c.listen(ctx)

	c.logger.Info().
		Bool("history", c.opts.History).
		Bool("voting", c.opts.Voting).
		Bool("networkNames", c.opts.NetworkNames).
		Msg("Session controller initialized")
	return nil
}

func (c *Controller) listen(ctx context.Context) {
	events := c.provider.Events()
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("Session controller event listener shutting down")
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case models.AccountsChanged:
				c.OnAccountsChanged(ctx, ev.Accounts)
			case models.ChainChanged:
				c.OnChainChanged(ev.ChainID)
			}
		}
	}
}

// Connect requests account access and links the session to the first account
func (c *Controller) Connect(ctx context.Context) (models.Session, error) {
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Connection failed")
		return c.Snapshot(), fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if len(accounts) == 0 {
		c.logger.Error().Msg("Connection failed: wallet returned no accounts")
		return c.Snapshot(), fmt.Errorf("%w: no accounts returned", ErrConnectionFailed)
	}

	address := accounts[0]
	signer, err := c.provider.Signer(address)
	if err != nil {
		c.logger.Error().Err(err).Str("address", address.Hex()).Msg("Connection failed: no signer")
		return c.Snapshot(), fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	var chainID string
	if id, err := c.provider.ChainID(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to read chain id")
	} else {
		chainID = hexutil.EncodeBig(id)
	}

	c.mu.Lock()
	c.adoptAccount(address, signer)
	if chainID != "" {
		c.chainID = chainID
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("address", address.Hex()).
		Str("chainId", chainID).
		Msg("Wallet connected")

	_ = c.RefreshBalance(ctx)
	return c.Snapshot(), nil
}

// adoptAccount links the session to address. Callers hold c.mu.
func (c *Controller) adoptAccount(address common.Address, signer interfaces.Signer) {
	if !c.connected || c.address != address {
		c.balance = ""
		c.voted = false
		c.status = ""
	}
	c.connected = true
	c.address = address
	c.signer = signer
	if c.voting != nil {
		c.voting = c.voting.WithSigner(signer)
	}
}

// RefreshBalance re-reads the native balance of the connected account. It is a
// no-op while disconnected; on failure the previous balance is kept.
func (c *Controller) RefreshBalance(ctx context.Context) error {
	c.mu.Lock()
	connected, address := c.connected, c.address
	c.mu.Unlock()

	if !connected {
		return nil
	}

	balance, err := c.provider.BalanceAt(ctx, address)
	if err != nil {
		c.logger.Error().Err(err).Str("address", address.Hex()).Msg("Error fetching balance")
		return fmt.Errorf("%w: %w", ErrBalanceFailed, err)
	}

	formatted := units.FormatEther(balance)

	c.mu.Lock()
	// the account may have changed while the query was in flight
	if c.connected && c.address == address {
		c.balance = formatted
	}
	c.mu.Unlock()

	c.logger.Debug().Str("address", address.Hex()).Str("balance", formatted).Msg("Balance refreshed")
	return nil
}

// UpdateDraft stores the in-progress transfer form
func (c *Controller) UpdateDraft(req models.TransferRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = req
}

// SendTransfer sends amount (in ether) to recipient and waits for the
// transfer to be mined or for ConfirmTimeout to elapse.
func (c *Controller) SendTransfer(ctx context.Context, req models.TransferRequest) (models.TransferRecord, error) {
	recipient := strings.TrimSpace(req.Recipient)
	amount := strings.TrimSpace(req.Amount)
	if recipient == "" || amount == "" {
		return models.TransferRecord{}, fmt.Errorf("%w: recipient address and amount are required", ErrValidation)
	}

	c.mu.Lock()
	connected, from, signer, chainID := c.connected, c.address, c.signer, c.chainID
	c.mu.Unlock()

	if !connected || signer == nil {
		return models.TransferRecord{}, ErrNotConnected
	}

	if err := validation.ValidateAddress(recipient); err != nil {
		return models.TransferRecord{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	value, err := units.ParseEther(amount)
	if err != nil {
		return models.TransferRecord{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if err := validation.ValidateAmount(value); err != nil {
		return models.TransferRecord{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if !c.transferPending.CompareAndSwap(false, true) {
		return models.TransferRecord{}, ErrTransferInFlight
	}

	submittedAt := c.now()
	hash, err := c.submitTransfer(ctx, signer, common.HexToAddress(recipient), value)
	if err != nil {
		c.logger.Error().
			Err(err).
			Str("from", from.Hex()).
			Str("to", recipient).
			Str("amount", amount).
			Msg("Transaction failed")
		return models.TransferRecord{}, fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	record := models.TransferRecord{
		ID:          uuid.NewString(),
		TxHash:      hash.Hex(),
		From:        from.Hex(),
		Recipient:   recipient,
		Amount:      amount,
		ChainID:     chainID,
		ExplorerURL: c.explorerURL(hash),
		SubmittedAt: submittedAt,
	}

	c.mu.Lock()
	if c.opts.History {
		c.history = append(c.history, record)
	}
	c.draft = models.TransferRequest{}
	c.mu.Unlock()

	c.logger.Info().
		Str("from", record.From).
		Str("to", record.Recipient).
		Str("amount", record.Amount).
		Str("txHash", record.TxHash).
		Msg("Transaction successful")

	c.emit(models.WalletEvent{
		Kind:        models.TransferConfirmed,
		TxHash:      record.TxHash,
		From:        record.From,
		To:          record.Recipient,
		Amount:      record.Amount,
		ChainID:     record.ChainID,
		ExplorerURL: record.ExplorerURL,
		Timestamp:   c.now(),
	})

	_ = c.RefreshBalance(ctx)
	return record, nil
}

// submitTransfer holds the pending flag for the submission and confirmation wait
func (c *Controller) submitTransfer(ctx context.Context, signer interfaces.Signer, to common.Address, value *big.Int) (common.Hash, error) {
	defer c.transferPending.Store(false)

	sub, err := signer.SendValue(ctx, to, value)
	if err != nil {
		return common.Hash{}, err
	}

	c.logger.Info().
		Str("txHash", sub.Hash().Hex()).
		Dur("timeout", c.opts.ConfirmTimeout).
		Msg("Waiting for transfer confirmation")

	return sub.Hash(), c.wait(ctx, sub)
}

func (c *Controller) wait(ctx context.Context, sub interfaces.Submission) error {
	waitCtx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()
	return sub.Wait(waitCtx)
}

// CastVote votes for proposal on the voting contract. A successful vote closes
// the client-side gate until the account changes or the session disconnects.
func (c *Controller) CastVote(ctx context.Context, req models.VoteRequest) (common.Hash, error) {
	if !c.opts.Voting {
		return common.Hash{}, ErrVotingDisabled
	}

	c.mu.Lock()
	connected, voted, binding, from, chainID := c.connected, c.voted, c.voting, c.address, c.chainID
	c.mu.Unlock()

	if !connected || binding == nil || binding.Signer() == nil {
		return common.Hash{}, ErrNotConnected
	}
	if voted {
		return common.Hash{}, ErrAlreadyVoted
	}
	if req.ProposalID >= c.opts.ProposalCount {
		return common.Hash{}, fmt.Errorf("%w: %d (proposals are 0-%d)", ErrInvalidProposal, req.ProposalID, c.opts.ProposalCount-1)
	}

	if !c.votePending.CompareAndSwap(false, true) {
		return common.Hash{}, ErrVoteInFlight
	}

	hash, err := c.submitVote(ctx, binding, req.ProposalID)

	c.mu.Lock()
	// the session may have moved to another account or disconnected meanwhile
	current := c.connected && c.address == from
	if err != nil {
		if current {
			c.status = fmt.Sprintf("Voting failed: %v", err)
		}
		c.mu.Unlock()

		c.logger.Error().Err(err).Uint64("proposal", req.ProposalID).Msg("Voting failed")
		return hash, fmt.Errorf("%w: %w", ErrVoteFailed, err)
	}
	if current {
		c.voted = true
		c.status = fmt.Sprintf("Voted for proposal %d", req.ProposalID)
	}
	c.mu.Unlock()

	c.logger.Info().
		Str("from", from.Hex()).
		Uint64("proposal", req.ProposalID).
		Str("txHash", hash.Hex()).
		Msg("Vote confirmed")

	proposal := req.ProposalID
	c.emit(models.WalletEvent{
		Kind:        models.VoteConfirmed,
		TxHash:      hash.Hex(),
		From:        from.Hex(),
		To:          binding.Address().Hex(),
		ProposalID:  &proposal,
		ChainID:     chainID,
		ExplorerURL: c.explorerURL(hash),
		Timestamp:   c.now(),
	})
	return hash, nil
}

func (c *Controller) submitVote(ctx context.Context, binding *contracts.Voting, proposal uint64) (common.Hash, error) {
	defer c.votePending.Store(false)

	sub, err := binding.Vote(ctx, proposal)
	if err != nil {
		return common.Hash{}, err
	}

	c.logger.Info().
		Str("txHash", sub.Hash().Hex()).
		Uint64("proposal", proposal).
		Msg("Waiting for vote confirmation")

	return sub.Hash(), c.wait(ctx, sub)
}

// VoteCount reads the on-chain vote count of a proposal
func (c *Controller) VoteCount(ctx context.Context, proposal uint64) (*big.Int, error) {
	if !c.opts.Voting {
		return nil, ErrVotingDisabled
	}
	if proposal >= c.opts.ProposalCount {
		return nil, fmt.Errorf("%w: %d", ErrInvalidProposal, proposal)
	}

	c.mu.Lock()
	binding := c.voting
	c.mu.Unlock()

	if binding == nil {
		return nil, ErrNoWallet
	}
	return binding.Votes(ctx, proposal)
}

// Disconnect clears the local session. Wallet permissions are untouched.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.logger.Info().Str("address", c.address.Hex()).Msg("Wallet disconnected")
	}

	c.connected = false
	c.address = common.Address{}
	c.balance = ""
	c.draft = models.TransferRequest{}
	c.voted = false
	c.status = ""
	c.signer = nil
	if c.voting != nil {
		c.voting = contracts.NewVoting(c.voting.Address(), c.provider)
	}
}

// SwitchNetwork asks the provider to move to chainID, e.g. "0xaa36a7"
func (c *Controller) SwitchNetwork(ctx context.Context, chainID string) error {
	chainID = strings.ToLower(strings.TrimSpace(chainID))
	if err := validation.ValidateChainID(chainID); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	id, err := hexutil.DecodeBig(chainID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := c.provider.SwitchChain(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("chainId", chainID).Msg("Network switch failed")
		return err
	}

	c.OnChainChanged(id)
	return nil
}

// OnAccountsChanged handles the provider's accountsChanged notification. An
// empty list disconnects the session.
func (c *Controller) OnAccountsChanged(ctx context.Context, accounts []common.Address) {
	if len(accounts) == 0 {
		c.logger.Info().Msg("Wallet reported no accounts")
		c.Disconnect()
		return
	}

	address := accounts[0]
	signer, err := c.provider.Signer(address)
	if err != nil {
		c.logger.Error().Err(err).Str("address", address.Hex()).Msg("No signer for changed account, disconnecting")
		c.Disconnect()
		return
	}

	c.mu.Lock()
	c.adoptAccount(address, signer)
	c.mu.Unlock()

	c.logger.Info().Str("address", address.Hex()).Msg("Account changed")
	_ = c.RefreshBalance(ctx)
}

// OnChainChanged records the new chain id
func (c *Controller) OnChainChanged(chainID *big.Int) {
	if chainID == nil {
		return
	}
	id := hexutil.EncodeBig(chainID)

	c.mu.Lock()
	changed := c.chainID != id
	c.chainID = id
	c.mu.Unlock()

	if changed {
		c.logger.Info().Str("chainId", id).Msg("Network changed")
	}
}

// Snapshot returns a consistent copy of the session
func (c *Controller) Snapshot() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := models.Session{
		State:           models.Disconnected,
		ChainID:         c.chainID,
		TransferPending: c.transferPending.Load(),
		VotePending:     c.votePending.Load(),
		Voted:           c.voted,
		Status:          c.status,
		Draft:           c.draft,
	}
	if c.connected {
		s.State = models.Connected
		s.ConnectedAddress = c.address.Hex()
		s.NativeBalance = c.balance
	}
	if c.opts.NetworkNames && c.chainID != "" {
		s.NetworkName = NetworkName(c.chainID)
	}
	return s
}

// History returns the confirmed transfers in submission order
func (c *Controller) History() ([]models.TransferRecord, error) {
	if !c.opts.History {
		return nil, ErrHistoryDisabled
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := make([]models.TransferRecord, len(c.history))
	copy(records, c.history)
	return records, nil
}

func (c *Controller) explorerURL(hash common.Hash) string {
	if e, ok := c.provider.(explorer); ok {
		return e.ExplorerURL(hash)
	}
	return ""
}

func (c *Controller) emit(event models.WalletEvent) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.EmitEvent(event); err != nil {
		c.logger.Error().Err(err).Str("txHash", event.TxHash).Msg("Error emitting wallet event")
	}
}
