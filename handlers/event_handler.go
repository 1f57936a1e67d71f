package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"greenTrackAPI/internal/gamification"
	"greenTrackAPI/middleware"
	"greenTrackAPI/services"
)

type EventRequest struct {
	Kind        string `json:"kind"`
	RecipientID string `json:"recipientId,omitempty"`
}

type EventHandler struct {
	ledger *services.LedgerService
}

func NewEventHandler(ledger *services.LedgerService) *EventHandler {
	return &EventHandler{ledger: ledger}
}

// PostEvent awards points for one domain event. Tree registrations and
// posts credit the caller; likes and verifications credit the post author
// named in recipientId.
func (h *EventHandler) PostEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req EventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind, err := gamification.ParseEventKind(req.Kind)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	recipient := userID
	switch kind {
	case gamification.EventLikeReceived, gamification.EventVerifiedPost:
		if req.RecipientID == "" {
			respondWithError(w, http.StatusBadRequest, "recipientId is required for "+string(kind))
			return
		}
		recipient = req.RecipientID
	}

	result, err := h.ledger.Award(ctx, recipient, kind)
	if err != nil {
		if errors.Is(err, gamification.ErrUnknownEvent) || errors.Is(err, services.ErrMissingUserID) {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondWithError(w, http.StatusServiceUnavailable, "Failed to award points, try again")
		return
	}

	respondWithJSON(w, http.StatusOK, result)
}
