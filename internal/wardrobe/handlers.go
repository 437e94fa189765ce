package wardrobe

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"toptry/internal/auth"
	"toptry/internal/imaging"
	"toptry/internal/media"
	"toptry/internal/render"
	"toptry/internal/storage"
)

// Extractor is the subset of the render client the wardrobe flow uses.
type Extractor interface {
	Cutout(ctx context.Context, photo imaging.Image) (render.Result, error)
	Attributes(ctx context.Context, photo imaging.Image, hintCategory, hintGender string) (render.ItemAttributes, error)
}

// Normalizer resolves an image reference into processed bytes.
type Normalizer interface {
	Normalize(ctx context.Context, ref string) (imaging.Image, error)
}

// Handler exposes the wardrobe endpoints: extract, save, list, delete.
type Handler struct {
	Store      storage.Store
	Blobs      media.Store
	Normalizer Normalizer
	Extractor  Extractor
}

type extractRequest struct {
	PhotoDataURL string `json:"photoDataUrl"`
	HintCategory string `json:"hintCategory"`
	HintGender   string `json:"hintGender"`
}

type saveRequest struct {
	OriginalDataURL string   `json:"originalDataUrl"`
	CutoutDataURL   string   `json:"cutoutDataUrl"`
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Gender          string   `json:"gender"`
	Tags            []string `json:"tags"`
	Color           string   `json:"color"`
	Material        string   `json:"material"`
	Notes           string   `json:"notes"`
}

// itemView is the wire shape of a wardrobe item, compatible with catalog
// product cards: user uploads read as single-size own-store products.
type itemView struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category"`
	Gender     string    `json:"gender"`
	Tags       []string  `json:"tags"`
	Color      string    `json:"color,omitempty"`
	Material   string    `json:"material,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	Price      int       `json:"price"`
	Currency   string    `json:"currency"`
	Sizes      []string  `json:"sizes"`
	StoreID    string    `json:"storeId"`
	SourceType string    `json:"sourceType"`
	Images     []string  `json:"images"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Extract handles POST /api/wardrobe/extract: cutout plus attributes from one
// photo, nothing persisted yet.
func (h *Handler) Extract(w http.ResponseWriter, r *http.Request) {
	var payload extractRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.PhotoDataURL) == "" {
		writeError(w, http.StatusBadRequest, "photoDataUrl is required")
		return
	}

	photo, err := h.Normalizer.Normalize(r.Context(), payload.PhotoDataURL)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read photo")
		return
	}

	cutout, err := h.Extractor.Cutout(r.Context(), photo)
	if err != nil {
		switch {
		case errors.Is(err, render.ErrCredentialsMissing):
			writeError(w, http.StatusInternalServerError, "image generation is not configured")
		case errors.Is(err, render.ErrNoImage):
			writeError(w, http.StatusBadGateway, "model did not return a cutout")
		default:
			log.Printf("wardrobe cutout: %v", err)
			writeError(w, http.StatusBadGateway, "cutout failed")
		}
		return
	}

	// Attribute extraction is best-effort: a parsing or model failure falls
	// back to defaults rather than failing the whole request.
	attrs, err := h.Extractor.Attributes(r.Context(), photo, payload.HintCategory, payload.HintGender)
	if err != nil {
		log.Printf("wardrobe attributes: %v", err)
		attrs = render.FallbackAttributes(payload.HintCategory, payload.HintGender)
	}

	_ = jsonResponse(w, http.StatusOK, map[string]any{
		"cutoutDataUrl": cutout.DataURL(),
		"attributes":    attrs,
	})
}

// Save handles POST /api/wardrobe/save: persist the original and cutout blobs
// under the user's prefix and record the item.
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var payload saveRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.OriginalDataURL == "" || payload.CutoutDataURL == "" || strings.TrimSpace(payload.Title) == "" {
		writeError(w, http.StatusBadRequest, "originalDataUrl, cutoutDataUrl and title are required")
		return
	}

	prefix := "users/" + user.ID + "/wardrobe"
	original, err := media.PutDataURL(r.Context(), h.Blobs, payload.OriginalDataURL, prefix)
	if err != nil {
		writeMediaError(w, err)
		return
	}
	cutout, err := media.PutDataURL(r.Context(), h.Blobs, payload.CutoutDataURL, prefix)
	if err != nil {
		writeMediaError(w, err)
		return
	}

	item := storage.WardrobeItem{
		UserID:      user.ID,
		Title:       strings.TrimSpace(payload.Title),
		Category:    payload.Category,
		Gender:      payload.Gender,
		Tags:        payload.Tags,
		Color:       payload.Color,
		Material:    payload.Material,
		Notes:       payload.Notes,
		OriginalKey: original.Key,
		CutoutKey:   cutout.Key,
		CreatedAt:   time.Now(),
	}
	created, err := h.Store.CreateWardrobeItem(r.Context(), item)
	if err != nil {
		log.Printf("save wardrobe item: %v", err)
		writeError(w, http.StatusInternalServerError, "could not save item")
		return
	}

	_ = jsonResponse(w, http.StatusOK, map[string]any{"item": viewOf(created)})
}

// List handles GET /api/wardrobe/list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	items, err := h.Store.ListWardrobeItems(r.Context(), user.ID)
	if err != nil {
		log.Printf("list wardrobe: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load wardrobe")
		return
	}

	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, viewOf(item))
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"items": views})
}

// Delete handles DELETE /api/wardrobe/{id}. Blobs are left in place; the
// record alone is removed.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	itemID := chi.URLParam(r, "id")
	if err := h.Store.DeleteWardrobeItem(r.Context(), user.ID, itemID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		log.Printf("delete wardrobe item: %v", err)
		writeError(w, http.StatusInternalServerError, "could not delete item")
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// viewOf maps a stored item to its wire shape. The cutout is the presentation
// image; the original stays reachable for re-extraction.
func viewOf(item storage.WardrobeItem) itemView {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return itemView{
		ID:         item.ID,
		Title:      item.Title,
		Category:   item.Category,
		Gender:     item.Gender,
		Tags:       tags,
		Color:      item.Color,
		Material:   item.Material,
		Notes:      item.Notes,
		Price:      0,
		Currency:   "RUB",
		Sizes:      []string{"ONE"},
		StoreID:    "user-upload",
		SourceType: "own",
		Images:     []string{"/media/" + item.CutoutKey},
		CreatedAt:  item.CreatedAt,
	}
}

func writeMediaError(w http.ResponseWriter, err error) {
	if errors.Is(err, media.ErrDisabled) {
		writeError(w, http.StatusInternalServerError, "media storage is not configured")
		return
	}
	log.Printf("media: %v", err)
	writeError(w, http.StatusInternalServerError, "could not store image")
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
