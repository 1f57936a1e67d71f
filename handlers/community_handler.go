package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"greenTrackAPI/services"
)

type CommunityHandler struct {
	communityService *services.CommunityService
}

func NewCommunityHandler(communityService *services.CommunityService) *CommunityHandler {
	return &CommunityHandler{
		communityService: communityService,
	}
}

func (h *CommunityHandler) GetCommunity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id := mux.Vars(r)["id"]

	rec, err := h.communityService.GetCommunity(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrCommunityNotFound) {
			respondWithError(w, http.StatusNotFound, "Community not found")
			return
		}
		log.Printf("GetCommunity Handler: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load community")
		return
	}

	respondWithJSON(w, http.StatusOK, rec)
}

func (h *CommunityHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	communityID := r.URL.Query().Get("community")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithError(w, http.StatusBadRequest, "Query parameter 'limit' must be a positive integer")
			return
		}
		limit = n
	}

	board, err := h.communityService.Leaderboard(ctx, communityID, limit)
	if err != nil {
		if errors.Is(err, services.ErrCommunityNotFound) {
			respondWithError(w, http.StatusNotFound, "Community not found")
			return
		}
		log.Printf("GetLeaderboard Handler: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load leaderboard")
		return
	}

	respondWithJSON(w, http.StatusOK, board)
}
