package looks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"toptry/internal/imaging"
	"toptry/internal/media"
	"toptry/internal/render"
	"toptry/internal/storage"
)

// ErrInvalidRequest rejects malformed creation requests before any network or
// storage call is made.
var ErrInvalidRequest = errors.New("looks: invalid request")

// Normalizer resolves an image reference into render-ready bytes.
type Normalizer interface {
	Normalize(ctx context.Context, ref string) (imaging.Image, error)
}

// Renderer is the generative capability the pipeline depends on.
type Renderer interface {
	TryOn(ctx context.Context, selfie imaging.Image, garments []imaging.Image, aspectRatio string) (render.Result, error)
	DescribeLook(ctx context.Context, img imaging.Image, itemsSummary string) string
}

// CreateRequest carries everything needed to produce one look.
type CreateRequest struct {
	UserID          string
	SelfieRef       string
	GarmentRefs     []string
	ItemIDs         []string
	Title           string
	UserDescription string
	BuyLinks        []string
	AspectRatio     string
	PriceBuyNowRUB  int
	IsPublic        *bool
}

// Pipeline turns a (selfie, garment list) pair into a persisted look:
// normalize inputs, render the composite, store the blob, caption, record.
// Steps run in order with no partial commit and no internal retry; a failed
// call is resubmitted by the user and creates a brand new look.
type Pipeline struct {
	Normalizer Normalizer
	Renderer   Renderer
	Blobs      media.Store
	Store      storage.Store
}

// CreateLook runs the full pipeline and returns the hydrated look record.
func (p *Pipeline) CreateLook(ctx context.Context, req CreateRequest) (storage.Look, error) {
	if req.SelfieRef == "" {
		return storage.Look{}, fmt.Errorf("%w: selfie reference is required", ErrInvalidRequest)
	}
	if len(req.GarmentRefs) < 1 || len(req.GarmentRefs) > render.MaxGarments {
		return storage.Look{}, fmt.Errorf("%w: between 1 and %d items per look", ErrInvalidRequest, render.MaxGarments)
	}
	if len(req.ItemIDs) != len(req.GarmentRefs) {
		return storage.Look{}, fmt.Errorf("%w: itemIds must match itemImageUrls", ErrInvalidRequest)
	}

	selfie, garments, err := p.normalizeInputs(ctx, req.SelfieRef, req.GarmentRefs)
	if err != nil {
		return storage.Look{}, err
	}

	composite, err := p.Renderer.TryOn(ctx, selfie, garments, req.AspectRatio)
	if err != nil {
		return storage.Look{}, err
	}

	stored, err := p.Blobs.Put(ctx, media.PutInput{
		KeyPrefix:   "users/" + req.UserID + "/looks",
		ContentType: composite.MIMEType,
		Body:        bytes.NewReader(composite.Data),
		Size:        int64(len(composite.Data)),
	})
	if err != nil {
		// A look is never created without a retrievable result image.
		return storage.Look{}, fmt.Errorf("store composite: %w", err)
	}

	// Best-effort: captioning never blocks look creation.
	caption := p.Renderer.DescribeLook(ctx, imaging.Image(composite), req.Title)

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	look := storage.Look{
		UserID:          req.UserID,
		Title:           req.Title,
		Items:           append([]string(nil), req.ItemIDs...),
		ResultImageURL:  "/media/" + stored.Key,
		IsPublic:        isPublic,
		UserDescription: req.UserDescription,
		AIDescription:   caption,
		PriceBuyNowRUB:  req.PriceBuyNowRUB,
		BuyLinks:        req.BuyLinks,
		CreatedAt:       time.Now(),
	}

	created, err := p.Store.CreateLook(ctx, look)
	if err != nil {
		return storage.Look{}, fmt.Errorf("persist look: %w", err)
	}
	return created, nil
}

// TryOn renders a composite without persisting anything, backing /api/tryon.
func (p *Pipeline) TryOn(ctx context.Context, selfieRef string, garmentRefs []string, aspectRatio string) (render.Result, error) {
	if selfieRef == "" || len(garmentRefs) < 1 {
		return render.Result{}, fmt.Errorf("%w: selfieDataUrl and itemImageUrls[] are required", ErrInvalidRequest)
	}
	if len(garmentRefs) > render.MaxGarments {
		return render.Result{}, fmt.Errorf("%w: maximum %d items per try-on", ErrInvalidRequest, render.MaxGarments)
	}

	selfie, garments, err := p.normalizeInputs(ctx, selfieRef, garmentRefs)
	if err != nil {
		return render.Result{}, err
	}

	return p.Renderer.TryOn(ctx, selfie, garments, aspectRatio)
}

func (p *Pipeline) normalizeInputs(ctx context.Context, selfieRef string, garmentRefs []string) (imaging.Image, []imaging.Image, error) {
	selfie, err := p.Normalizer.Normalize(ctx, selfieRef)
	if err != nil {
		return imaging.Image{}, nil, fmt.Errorf("normalize selfie: %w", err)
	}

	garments := make([]imaging.Image, 0, len(garmentRefs))
	for i, ref := range garmentRefs {
		img, err := p.Normalizer.Normalize(ctx, ref)
		if err != nil {
			return imaging.Image{}, nil, fmt.Errorf("normalize item %d: %w", i, err)
		}
		garments = append(garments, img)
	}
	return selfie, garments, nil
}
