package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"greenTrackAPI/internal/docstore"
	"greenTrackAPI/internal/user"
	"greenTrackAPI/middleware"
	"greenTrackAPI/services"
)

type UserHandler struct {
	communityService *services.CommunityService
}

func NewUserHandler(communityService *services.CommunityService) *UserHandler {
	return &UserHandler{
		communityService: communityService,
	}
}

// SignIn creates the caller's user record on first sign-in, or returns the
// existing one.
func (h *UserHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.SignInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, created, err := h.communityService.EnsureUser(ctx, user.Profile{
		ID:       userID,
		Name:     req.Name,
		Email:    req.Email,
		PhotoURL: req.PhotoURL,
	}, req.Location)
	if err != nil {
		log.Printf("SignIn Handler: Failed for %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondWithJSON(w, status, u)
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	u, err := h.communityService.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("GetProfile Handler: %v", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	respondWithJSON(w, http.StatusOK, u)
}

func (h *UserHandler) UpdateLocation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req user.UpdateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	c, err := h.communityService.AssignCommunity(ctx, userID, req.Location)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("UpdateLocation Handler: Failed for %s: %v", userID, err)
		respondWithError(w, http.StatusInternalServerError, "Failed to update location")
		return
	}

	respondWithJSON(w, http.StatusOK, c)
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
