package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/sankalp771/MONAD-RAGE/internal/domain"
)

// ArenaService defines the methods that the arena handler requires from the
// service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type ArenaService interface {
	Create(ctx context.Context, creator common.Address, roastStake, voteStake, supplied int64) (int64, error)
	Join(ctx context.Context, caller common.Address, arenaID, supplied int64) error
	Vote(ctx context.Context, caller common.Address, arenaID int64, candidate common.Address, supplied int64) error
	Settle(ctx context.Context, caller common.Address, arenaID int64) (domain.Arena, error)
	ClaimParticipantReward(ctx context.Context, caller common.Address, arenaID int64) (int64, error)
	ClaimVoterReward(ctx context.Context, caller common.Address, arenaID int64) (int64, error)
	ClaimRefund(ctx context.Context, caller common.Address, arenaID int64) (int64, error)
	GetArena(ctx context.Context, arenaID int64) (domain.Arena, error)
	Phase(ctx context.Context, arenaID int64) (domain.ArenaPhase, error)
	Recent(ctx context.Context, opts domain.ListOpts) ([]domain.Arena, error)
	Participants(ctx context.Context, arenaID int64) ([]common.Address, error)
	Winners(ctx context.Context, arenaID int64) ([]common.Address, error)
	Tallies(ctx context.Context, arenaID int64) ([]domain.Tally, error)
	VoteOf(ctx context.Context, arenaID int64, voter common.Address) (domain.Vote, error)
	History(ctx context.Context, from int64, limit int) []domain.Event
	Count(ctx context.Context) int64
	TotalEscrowed(ctx context.Context) int64
}

// ArenaHandler serves arena lifecycle and escrow HTTP endpoints.
type ArenaHandler struct {
	arenas ArenaService
	logger *slog.Logger
}

// NewArenaHandler creates an ArenaHandler with the given service and logger.
func NewArenaHandler(arenas ArenaService, logger *slog.Logger) *ArenaHandler {
	return &ArenaHandler{
		arenas: arenas,
		logger: logger,
	}
}

type createArenaRequest struct {
	Creator    string `json:"creator"`
	RoastStake int64  `json:"roast_stake"`
	VoteStake  int64  `json:"vote_stake"`
	Value      int64  `json:"value"`
}

// CreateArena opens a new arena funded by the creator's stake.
// POST /api/arenas
func (h *ArenaHandler) CreateArena(w http.ResponseWriter, r *http.Request) {
	var req createArenaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	creator, ok := parseAddress(req.Creator)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid creator address")
		return
	}

	id, err := h.arenas.Create(r.Context(), creator, req.RoastStake, req.VoteStake, req.Value)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"arena_id": id})
}

// listArenasResponse wraps the list endpoint output with metadata.
type listArenasResponse struct {
	Arenas []domain.Arena `json:"arenas"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListArenas returns arenas newest-first with pagination.
// GET /api/arenas?limit=50&offset=0
func (h *ArenaHandler) ListArenas(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	arenas, err := h.arenas.Recent(r.Context(), opts)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if arenas == nil {
		arenas = []domain.Arena{}
	}

	writeJSON(w, http.StatusOK, listArenasResponse{
		Arenas: arenas,
		Total:  h.arenas.Count(r.Context()),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetArena returns a single arena snapshot together with its time-derived
// effective phase.
// GET /api/arenas/{id}
func (h *ArenaHandler) GetArena(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	arena, err := h.arenas.GetArena(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	phase, err := h.arenas.Phase(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"arena":           arena,
		"effective_phase": phase,
	})
}

type joinArenaRequest struct {
	Address string `json:"address"`
	Value   int64  `json:"value"`
}

// JoinArena enrols the caller as a participant.
// POST /api/arenas/{id}/join
func (h *ArenaHandler) JoinArena(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req joinArenaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	if err := h.arenas.Join(r.Context(), addr, id, req.Value); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "joined",
		"arena_id": id,
	})
}

type castVoteRequest struct {
	Voter     string `json:"voter"`
	Candidate string `json:"candidate"`
	Value     int64  `json:"value"`
}

// CastVote casts the caller's vote for a candidate.
// POST /api/arenas/{id}/votes
func (h *ArenaHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req castVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	voter, ok := parseAddress(req.Voter)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid voter address")
		return
	}
	candidate, ok := parseAddress(req.Candidate)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid candidate address")
		return
	}

	if err := h.arenas.Vote(r.Context(), voter, id, candidate, req.Value); err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "voted",
		"arena_id": id,
	})
}

type settleRequest struct {
	Caller string `json:"caller"`
}

// Settle finalizes an arena whose voting window has ended.
// POST /api/arenas/{id}/settle
func (h *ArenaHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req settleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	arena, err := h.arenas.Settle(r.Context(), caller, id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, arena)
}

type claimRequest struct {
	Address string `json:"address"`
}

// claimFunc is the shape shared by the three claim operations.
type claimFunc func(ctx context.Context, caller common.Address, arenaID int64) (int64, error)

func (h *ArenaHandler) handleClaim(w http.ResponseWriter, r *http.Request, kind string, claim claimFunc) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	addr, ok := parseAddress(req.Address)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	amount, err := claim(r.Context(), addr, id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   kind,
		"arena_id": id,
		"amount":   amount,
	})
}

// ClaimParticipantReward pays out the caller's winner share.
// POST /api/arenas/{id}/claims/participant
func (h *ArenaHandler) ClaimParticipantReward(w http.ResponseWriter, r *http.Request) {
	h.handleClaim(w, r, "participant_reward_claimed", h.arenas.ClaimParticipantReward)
}

// ClaimVoterReward pays out the caller's voter share.
// POST /api/arenas/{id}/claims/voter
func (h *ArenaHandler) ClaimVoterReward(w http.ResponseWriter, r *http.Request) {
	h.handleClaim(w, r, "voter_reward_claimed", h.arenas.ClaimVoterReward)
}

// ClaimRefund returns the caller's stakes from a cancelled arena.
// POST /api/arenas/{id}/claims/refund
func (h *ArenaHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	h.handleClaim(w, r, "refund_claimed", h.arenas.ClaimRefund)
}

// Participants returns an arena's participants in join order.
// GET /api/arenas/{id}/participants
func (h *ArenaHandler) Participants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	parts, err := h.arenas.Participants(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if parts == nil {
		parts = []common.Address{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"participants": parts})
}

// Winners returns a settled arena's winners in join order.
// GET /api/arenas/{id}/winners
func (h *ArenaHandler) Winners(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	winners, err := h.arenas.Winners(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if winners == nil {
		winners = []common.Address{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"winners": winners})
}

// Tallies returns the per-candidate vote counts for an arena.
// GET /api/arenas/{id}/tallies
func (h *ArenaHandler) Tallies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	tallies, err := h.arenas.Tallies(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}
	if tallies == nil {
		tallies = []domain.Tally{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tallies": tallies})
}

// VoteOf returns the vote a voter cast in an arena.
// GET /api/arenas/{id}/votes/{voter}
func (h *ArenaHandler) VoteOf(w http.ResponseWriter, r *http.Request) {
	id, ok := pathArenaID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid arena id")
		return
	}

	voter, ok := pathAddress(r, "voter")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid voter address")
		return
	}

	vote, err := h.arenas.VoteOf(r.Context(), id, voter)
	if err != nil {
		writeDomainError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, vote)
}

// History returns ledger events in sequence order.
// GET /api/events?from=1&limit=100
func (h *ArenaHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	from := int64(1)
	if v := q.Get("from"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			from = n
		}
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	events := h.arenas.History(r.Context(), from, limit)
	if events == nil {
		events = []domain.Event{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// Stats returns aggregate engine counters.
// GET /api/stats
func (h *ArenaHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"arena_count":    h.arenas.Count(r.Context()),
		"total_escrowed": h.arenas.TotalEscrowed(r.Context()),
	})
}
