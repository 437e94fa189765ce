package social

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"toptry/internal/auth"
	"toptry/internal/storage"
)

// Handler exposes the follow graph endpoints.
type Handler struct {
	Store storage.Store
}

// ToggleFollow handles POST /api/users/{id}/follow. A second call unfollows.
func (h *Handler) ToggleFollow(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	targetID := chi.URLParam(r, "id")
	following, err := h.Store.ToggleFollow(r.Context(), user.ID, targetID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSelfFollow):
			writeError(w, http.StatusBadRequest, "cannot follow yourself")
		case errors.Is(err, storage.ErrNotFound):
			writeError(w, http.StatusNotFound, "Not found")
		default:
			log.Printf("toggle follow: %v", err)
			writeError(w, http.StatusInternalServerError, "could not update follow")
		}
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"following": following})
}

// FollowingFeed handles GET /api/feed/following: public looks from accounts
// the caller follows, newest first.
func (h *Handler) FollowingFeed(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	looks, err := h.Store.ListFollowingLooks(r.Context(), user.ID, 50)
	if err != nil {
		log.Printf("following feed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load feed")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"looks": looks})
}

func jsonResponse(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = jsonResponse(w, status, map[string]string{"error": message})
}
