package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"wallet-session/internal/models"
	"wallet-session/internal/provider"
	"wallet-session/internal/session"
	"wallet-session/internal/validation"
)

// SessionController is the part of session.Controller the API drives
type SessionController interface {
	Snapshot() models.Session
	Connect(ctx context.Context) (models.Session, error)
	Disconnect()
	RefreshBalance(ctx context.Context) error
	SwitchNetwork(ctx context.Context, chainID string) error
	UpdateDraft(req models.TransferRequest)
	SendTransfer(ctx context.Context, req models.TransferRequest) (models.TransferRecord, error)
	History() ([]models.TransferRecord, error)
	CastVote(ctx context.Context, req models.VoteRequest) (common.Hash, error)
	VoteCount(ctx context.Context, proposal uint64) (*big.Int, error)
}

// EventLister reads the wallet event journal
type EventLister interface {
	ListEvents(ctx context.Context, from string, limit, offset int) ([]models.WalletEvent, error)
}

type API struct {
	controller SessionController
	events     EventLister
	logger     zerolog.Logger
}

// NewAPI creates the API. events may be nil when the journal is disabled.
func NewAPI(controller SessionController, events EventLister, logger zerolog.Logger) *API {
	return &API{controller: controller, events: events, logger: logger}
}

type networkRequest struct {
	ChainID string `json:"chain_id"`
}

type voteResponse struct {
	TxHash  string         `json:"tx_hash"`
	Session models.Session `json:"session"`
}

type voteCountResponse struct {
	Proposal uint64 `json:"proposal"`
	Votes    string `json:"votes"`
}

func (api *API) writeJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (api *API) writeError(w http.ResponseWriter, err error) {
	api.writeJSONResponse(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps controller errors to HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrValidation),
		errors.Is(err, session.ErrInvalidProposal),
		errors.Is(err, provider.ErrUnknownChain):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrTransferInFlight),
		errors.Is(err, session.ErrVoteInFlight),
		errors.Is(err, session.ErrAlreadyVoted):
		return http.StatusConflict
	case errors.Is(err, session.ErrVotingDisabled),
		errors.Is(err, session.ErrHistoryDisabled):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoWallet),
		errors.Is(err, provider.ErrNoWallet):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrConnectionFailed),
		errors.Is(err, session.ErrTransferFailed),
		errors.Is(err, session.ErrVoteFailed),
		errors.Is(err, session.ErrBalanceFailed),
		errors.Is(err, provider.ErrChainMismatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes an optional JSON body into v
func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (api *API) GetSession(w http.ResponseWriter, _ *http.Request) {
	api.writeJSONResponse(w, http.StatusOK, api.controller.Snapshot())
}

func (api *API) Connect(w http.ResponseWriter, r *http.Request) {
	s, err := api.controller.Connect(r.Context())
	if err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, s)
}

func (api *API) Disconnect(w http.ResponseWriter, _ *http.Request) {
	api.controller.Disconnect()
	api.writeJSONResponse(w, http.StatusOK, api.controller.Snapshot())
}

func (api *API) RefreshBalance(w http.ResponseWriter, r *http.Request) {
	if err := api.controller.RefreshBalance(r.Context()); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, api.controller.Snapshot())
}

func (api *API) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	var req networkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.logger.Error().Err(err).Msg("Failed to decode network request")
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid network request format"})
		return
	}

	if err := api.controller.SwitchNetwork(r.Context(), req.ChainID); err != nil {
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, api.controller.Snapshot())
}

func (api *API) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.logger.Error().Err(err).Msg("Failed to decode transfer draft")
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid transfer format"})
		return
	}

	api.controller.UpdateDraft(req)
	api.writeJSONResponse(w, http.StatusOK, api.controller.Snapshot())
}

// SendTransfer submits the request body, or the stored draft when the body is empty
func (api *API) SendTransfer(w http.ResponseWriter, r *http.Request) {
	var req models.TransferRequest
	if err := decodeBody(r, &req); err != nil {
		api.logger.Error().Err(err).Msg("Failed to decode transfer")
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid transfer format"})
		return
	}
	if req.IsEmpty() {
		req = api.controller.Snapshot().Draft
	}

	// a dropped client must not abandon a broadcast transfer; ConfirmTimeout still bounds the wait
	record, err := api.controller.SendTransfer(context.WithoutCancel(r.Context()), req)
	if err != nil {
		api.writeError(w, err)
		return
	}

	api.logger.Info().Str("tx_hash", record.TxHash).Msg("Transfer confirmed")
	api.writeJSONResponse(w, http.StatusCreated, record)
}

func (api *API) GetTransfers(w http.ResponseWriter, _ *http.Request) {
	records, err := api.controller.History()
	if err != nil {
		api.writeError(w, err)
		return
	}
	if records == nil {
		records = []models.TransferRecord{}
	}
	api.writeJSONResponse(w, http.StatusOK, map[string]interface{}{"transfers": records})
}

func (api *API) CastVote(w http.ResponseWriter, r *http.Request) {
	proposal, ok := api.proposalParam(w, r)
	if !ok {
		return
	}

	hash, err := api.controller.CastVote(context.WithoutCancel(r.Context()), models.VoteRequest{ProposalID: proposal})
	if err != nil {
		api.writeError(w, err)
		return
	}

	api.logger.Info().Uint64("proposal", proposal).Str("tx_hash", hash.Hex()).Msg("Vote confirmed")
	api.writeJSONResponse(w, http.StatusCreated, voteResponse{TxHash: hash.Hex(), Session: api.controller.Snapshot()})
}

func (api *API) GetVotes(w http.ResponseWriter, r *http.Request) {
	proposal, ok := api.proposalParam(w, r)
	if !ok {
		return
	}

	votes, err := api.controller.VoteCount(r.Context(), proposal)
	if err != nil {
		api.logger.Error().Err(err).Uint64("proposal", proposal).Msg("Failed to read vote count")
		api.writeError(w, err)
		return
	}
	api.writeJSONResponse(w, http.StatusOK, voteCountResponse{Proposal: proposal, Votes: votes.String()})
}

// GetEvents lists journaled events sent from the given address, or from the
// connected account when none is given
func (api *API) GetEvents(w http.ResponseWriter, r *http.Request) {
	if api.events == nil {
		api.writeJSONResponse(w, http.StatusNotFound, map[string]string{"error": "event journal is not enabled"})
		return
	}

	query := r.URL.Query()
	from := query.Get("from")
	if from == "" {
		from = api.controller.Snapshot().ConnectedAddress
	}
	if err := validation.ValidateAddress(from); err != nil {
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid from address"})
		return
	}

	limit, err := strconv.Atoi(query.Get("limit"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(query.Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	// the journal stores checksummed addresses
	address := common.HexToAddress(from).Hex()
	events, err := api.events.ListEvents(r.Context(), address, limit, offset)
	if err != nil {
		api.logger.Error().Err(err).Str("from", address).Msg("Failed to list wallet events")
		api.writeJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve events"})
		return
	}
	if events == nil {
		events = []models.WalletEvent{}
	}

	api.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"pagination": map[string]int{
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (api *API) proposalParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	vars := mux.Vars(r)
	proposal, err := strconv.ParseUint(vars["proposal"], 10, 64)
	if err != nil {
		api.writeJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid proposal id"})
		return 0, false
	}
	return proposal, true
}
