package looks

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"toptry/internal/auth"
	"toptry/internal/events"
	"toptry/internal/imaging"
	"toptry/internal/media"
	"toptry/internal/render"
	"toptry/internal/storage"
)

// Handler exposes the try-on and look endpoints.
type Handler struct {
	Pipeline *Pipeline
	Store    storage.Store
	Broker   *events.Broker
}

type tryOnRequest struct {
	SelfieDataURL string   `json:"selfieDataUrl"`
	ItemImageURLs []string `json:"itemImageUrls"`
	AspectRatio   string   `json:"aspectRatio"`
}

type createLookRequest struct {
	SelfieDataURL   string   `json:"selfieDataUrl"`
	ItemImageURLs   []string `json:"itemImageUrls"`
	ItemIDs         []string `json:"itemIds"`
	Title           string   `json:"title"`
	UserDescription string   `json:"userDescription"`
	BuyLinks        []string `json:"buyLinks"`
	AspectRatio     string   `json:"aspectRatio"`
	PriceBuyNowRUB  int      `json:"priceBuyNowRUB"`
	IsPublic        *bool    `json:"isPublic"`
}

type visibilityRequest struct {
	IsPublic bool `json:"isPublic"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// TryOn handles POST /api/tryon: render a composite without saving a look.
func (h *Handler) TryOn(w http.ResponseWriter, r *http.Request) {
	var payload tryOnRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Pipeline.TryOn(r.Context(), payload.SelfieDataURL, payload.ItemImageURLs, payload.AspectRatio)
	if err != nil {
		writeRenderError(w, err)
		return
	}

	_ = jsonResponse(w, http.StatusOK, map[string]any{"imageDataUrl": result.DataURL()})
}

// Create handles POST /api/looks/create.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload createLookRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	look, err := h.Pipeline.CreateLook(r.Context(), CreateRequest{
		UserID:          user.ID,
		SelfieRef:       payload.SelfieDataURL,
		GarmentRefs:     payload.ItemImageURLs,
		ItemIDs:         payload.ItemIDs,
		Title:           payload.Title,
		UserDescription: payload.UserDescription,
		BuyLinks:        payload.BuyLinks,
		AspectRatio:     payload.AspectRatio,
		PriceBuyNowRUB:  payload.PriceBuyNowRUB,
		IsPublic:        payload.IsPublic,
	})
	if err != nil {
		writeRenderError(w, err)
		return
	}

	h.Broker.Publish(events.Event{Kind: events.KindLookCreated, LookID: look.ID, OwnerID: look.UserID})
	_ = jsonResponse(w, http.StatusOK, map[string]any{"look": look})
}

// My handles GET /api/looks/my.
func (h *Handler) My(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	looks, err := h.Store.ListLooksByUser(r.Context(), user.ID)
	if err != nil {
		log.Printf("list my looks: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load looks")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"looks": looks})
}

// Public handles GET /api/looks/public?sort=trending|new&limit=N.
func (h *Handler) Public(w http.ResponseWriter, r *http.Request) {
	sort := r.URL.Query().Get("sort")
	if sort != storage.SortNew {
		sort = storage.SortTrending
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	looks, err := h.Store.ListPublicLooks(r.Context(), sort, limit)
	if err != nil {
		log.Printf("list public looks: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load feed")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"looks": looks})
}

// Get handles GET /api/looks/{id}. Private looks are visible only to their
// owner and read as missing for everyone else.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	look, ok := h.visibleLook(w, r)
	if !ok {
		return
	}

	comments, err := h.Store.ListComments(r.Context(), look.ID)
	if err != nil {
		log.Printf("list comments: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load look")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"look": look, "comments": comments})
}

// Visibility handles PATCH /api/looks/{id}/visibility. Owner only.
func (h *Handler) Visibility(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	lookID := chi.URLParam(r, "id")
	look, err := h.Store.GetLook(r.Context(), lookID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if look.UserID != user.ID {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var payload visibilityRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.Store.SetLookVisibility(r.Context(), lookID, payload.IsPublic)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"look": updated})
}

// Like handles POST /api/looks/{id}/like. A second call from the same user
// undoes the first; the response always carries the post-toggle count.
func (h *Handler) Like(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	lookID := chi.URLParam(r, "id")
	look, ok := h.visibleLook(w, r)
	if !ok {
		return
	}

	likes, liked, err := h.Store.ToggleLike(r.Context(), user.ID, lookID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.Broker.Publish(events.Event{Kind: events.KindLookLiked, LookID: lookID, OwnerID: look.UserID, Likes: likes})
	_ = jsonResponse(w, http.StatusOK, map[string]any{"likes": likes, "liked": liked})
}

// Comments handles GET /api/looks/{id}/comments.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	look, ok := h.visibleLook(w, r)
	if !ok {
		return
	}

	comments, err := h.Store.ListComments(r.Context(), look.ID)
	if err != nil {
		log.Printf("list comments: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load comments")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"comments": comments})
}

// AddComment handles POST /api/looks/{id}/comments.
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	look, ok := h.visibleLook(w, r)
	if !ok {
		return
	}

	var payload commentRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	text := strings.TrimSpace(payload.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "comment text is required")
		return
	}

	comment, err := h.Store.CreateComment(r.Context(), storage.Comment{
		LookID:    look.ID,
		UserID:    user.ID,
		UserName:  user.Username,
		Text:      text,
		CreatedAt: time.Now(),
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"comment": comment})
}

// visibleLook loads the look from the path id and enforces the privacy rule:
// non-owners see private looks as 404, never 403.
func (h *Handler) visibleLook(w http.ResponseWriter, r *http.Request) (storage.Look, bool) {
	lookID := chi.URLParam(r, "id")
	look, err := h.Store.GetLook(r.Context(), lookID)
	if err != nil {
		writeStoreError(w, err)
		return storage.Look{}, false
	}

	if !look.IsPublic {
		user, ok := auth.UserFromContext(r.Context())
		if !ok || user.ID != look.UserID {
			writeError(w, http.StatusNotFound, "Not found")
			return storage.Look{}, false
		}
	}
	return look, true
}

// writeRenderError maps pipeline failures onto the HTTP surface.
func writeRenderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, render.ErrTooManyItems),
		errors.Is(err, imaging.ErrInvalidInput), errors.Is(err, imaging.ErrDecode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, render.ErrCredentialsMissing):
		writeError(w, http.StatusInternalServerError, "image generation is not configured")
	case errors.Is(err, render.ErrNoImage):
		writeError(w, http.StatusBadGateway, "model did not return an image")
	case errors.Is(err, media.ErrDisabled):
		writeError(w, http.StatusInternalServerError, "media storage is not configured")
	default:
		log.Printf("try-on pipeline: %v", err)
		writeError(w, http.StatusBadGateway, "image generation failed")
	}
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	log.Printf("storage: %v", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func jsonResponse(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	_ = jsonResponse(w, status, map[string]string{"error": message})
}
