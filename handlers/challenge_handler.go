package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"skillSwapAPI/internal/types/challenge"
	"skillSwapAPI/middleware"
	"skillSwapAPI/services"
)

type ChallengeHandler struct {
	challengeService *services.ChallengeService
	catalogService   *services.CatalogService
}

func NewChallengeHandler(challengeService *services.ChallengeService, catalogService *services.CatalogService) *ChallengeHandler {
	return &ChallengeHandler{
		challengeService: challengeService,
		catalogService:   catalogService,
	}
}

func (h *ChallengeHandler) ListChallenges(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challenges, err := h.catalogService.ListActiveChallenges(ctx, r.URL.Query().Get("type"))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to list challenges")
		return
	}

	respondWithJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) GetChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	ch, err := h.catalogService.GetChallenge(ctx, challengeID)
	if err != nil {
		respondWithChallengeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ch)
}

func (h *ChallengeHandler) StartChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	uc, err := h.challengeService.StartChallenge(ctx, clerkID, challengeID)
	middleware.RecordChallengeTransition("start", transitionOutcome(err))
	if err != nil {
		respondWithChallengeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, uc)
}

type progressRequest struct {
	Delta int `json:"delta"`
}

func (h *ChallengeHandler) UpdateChallengeProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	challengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid challenge id")
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	uc, err := h.challengeService.UpdateChallengeProgress(ctx, clerkID, challengeID, req.Delta)
	middleware.RecordChallengeTransition("progress", transitionOutcome(err))
	if err != nil {
		respondWithChallengeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}

func (h *ChallengeHandler) CompleteChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userChallengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid participation id")
		return
	}

	uc, err := h.challengeService.CompleteChallenge(ctx, clerkID, userChallengeID)
	middleware.RecordChallengeTransition("complete", transitionOutcome(err))
	if err != nil {
		respondWithChallengeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}

func (h *ChallengeHandler) AbandonChallenge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userChallengeID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid participation id")
		return
	}

	uc, err := h.challengeService.AbandonChallenge(ctx, clerkID, userChallengeID)
	middleware.RecordChallengeTransition("abandon", transitionOutcome(err))
	if err != nil {
		respondWithChallengeError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, uc)
}

func (h *ChallengeHandler) GetChallengeStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	stats, err := h.challengeService.GetChallengeStats(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to compute challenge stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func transitionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, challenge.ErrChallengeNotFound), errors.Is(err, challenge.ErrNotJoined):
		return "not_found"
	case errors.Is(err, challenge.ErrChallengeInactive):
		return "inactive"
	case errors.Is(err, challenge.ErrTierLocked):
		return "tier_locked"
	case errors.Is(err, challenge.ErrAlreadyJoined):
		return "already_joined"
	case errors.Is(err, challenge.ErrAlreadyCompleted):
		return "already_completed"
	case errors.Is(err, challenge.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, challenge.ErrTxConflict):
		return "tx_conflict"
	default:
		return "error"
	}
}

// respondWithChallengeError maps domain errors to HTTP statuses.
func respondWithChallengeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, challenge.ErrChallengeNotFound), errors.Is(err, challenge.ErrNotJoined):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, challenge.ErrTierLocked):
		respondWithError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, challenge.ErrChallengeInactive),
		errors.Is(err, challenge.ErrAlreadyJoined),
		errors.Is(err, challenge.ErrInvalidState),
		errors.Is(err, challenge.ErrAlreadyCompleted):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, challenge.ErrTxConflict):
		respondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
