package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"skillSwapAPI/internal/types/progression"
	"skillSwapAPI/middleware"
	"skillSwapAPI/services"
	"skillSwapAPI/utils"
)

type ProgressionHandler struct {
	progressionService *services.ProgressionService
	endorsementService *services.EndorsementService
	notifier           utils.Notifier
}

func NewProgressionHandler(progressionService *services.ProgressionService, endorsementService *services.EndorsementService, notifier utils.Notifier) *ProgressionHandler {
	return &ProgressionHandler{
		progressionService: progressionService,
		endorsementService: endorsementService,
		notifier:           notifier,
	}
}

func (h *ProgressionHandler) GetProgression(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.progressionService.GetProgressionByClerkID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, progression.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to get progression")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// GetUserProgression is the public view of another user's reputation.
func (h *ProgressionHandler) GetUserProgression(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	p, err := h.progressionService.GetProgression(ctx, userID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get progression")
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProgressionHandler) GetUnlockedTiers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	p, err := h.progressionService.GetProgressionByClerkID(ctx, clerkID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve user")
		return
	}

	unlocked, err := h.progressionService.GetUnlockedTiers(ctx, p.UserID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get tiers")
		return
	}

	tiers := []progression.Tier{}
	for t := range unlocked {
		tiers = append(tiers, t)
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"tiers": tiers})
}

type unlockTierRequest struct {
	Tier string `json:"tier"`
}

// UnlockTier grants the authenticated user a tier. Idempotent: re-unlocking
// an already-held tier succeeds without firing another notification.
func (h *ProgressionHandler) UnlockTier(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req unlockTierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	t, ok := progression.ParseTier(req.Tier)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Unknown tier")
		return
	}

	p, err := h.progressionService.GetProgressionByClerkID(ctx, clerkID)
	if err != nil {
		if errors.Is(err, progression.ErrUserNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to resolve user")
		return
	}

	unlocked, err := h.progressionService.GetUnlockedTiers(ctx, p.UserID)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get tiers")
		return
	}
	if unlocked[t] {
		respondWithJSON(w, http.StatusOK, map[string]string{"message": "Tier already unlocked"})
		return
	}

	if err := h.progressionService.UnlockTier(ctx, p.UserID, t); err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to unlock tier")
		return
	}
	utils.TierUnlocked(h.notifier, p.UserID, string(t))

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Tier unlocked"})
}

type endorsementRequest struct {
	Skill string `json:"skill"`
}

func (h *ProgressionHandler) AddEndorsement(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	userID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req endorsementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Skill == "" {
		respondWithError(w, http.StatusBadRequest, "Field 'skill' is required")
		return
	}

	if err := h.endorsementService.AddEndorsement(ctx, clerkID, userID, req.Skill); err != nil {
		switch {
		case errors.Is(err, progression.ErrSelfEndorsement):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, progression.ErrUserNotFound):
			respondWithError(w, http.StatusNotFound, err.Error())
		default:
			respondWithError(w, http.StatusInternalServerError, "Failed to add endorsement")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Endorsement added"})
}
