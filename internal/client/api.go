package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"toptry/internal/storage"
)

// ErrAuthRequired is the uniform mapping of any HTTP 401 so callers can route
// to sign-in instead of surfacing a raw error.
var ErrAuthRequired = errors.New("client: authentication required")

const (
	defaultTimeout    = 15 * time.Second
	createLookTimeout = 35 * time.Second
)

// APIError carries a non-2xx response that is not an auth failure.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: api error %d: %s", e.Status, e.Message)
}

// API is an explicit HTTP client for the application backend. It is configured
// once with a base origin and carries session cookies across calls.
type API struct {
	BaseURL string
	http    *http.Client
}

// NewAPI constructs a client against the given origin, e.g. "http://localhost:8080".
func NewAPI(baseURL string) (*API, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}
	return &API{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

// TryOnResult is the rendered composite returned by the try-on endpoint.
type TryOnResult struct {
	Image string `json:"imageDataUrl"`
}

// ExtractResult is the cutout-plus-attributes reply from wardrobe extraction.
type ExtractResult struct {
	Cutout     string         `json:"cutoutDataUrl"`
	Attributes ItemAttributes `json:"attributes"`
}

// ItemAttributes mirrors the server's extracted garment description.
type ItemAttributes struct {
	Title    string   `json:"title"`
	Category string   `json:"category"`
	Gender   string   `json:"gender"`
	Tags     []string `json:"tags"`
	Color    string   `json:"color"`
	Material string   `json:"material"`
}

// Item is the wire shape of a wardrobe item.
type Item struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Category   string   `json:"category"`
	Gender     string   `json:"gender"`
	Tags       []string `json:"tags"`
	Color      string   `json:"color,omitempty"`
	Material   string   `json:"material,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Price      int      `json:"price"`
	Currency   string   `json:"currency"`
	Sizes      []string `json:"sizes"`
	StoreID    string   `json:"storeId"`
	SourceType string   `json:"sourceType"`
	Images     []string `json:"images"`
}

// CreateLookInput is the request body for look creation.
type CreateLookInput struct {
	SelfieDataURL   string   `json:"selfieDataUrl"`
	ItemImageURLs   []string `json:"itemImageUrls"`
	ItemIDs         []string `json:"itemIds"`
	Title           string   `json:"title,omitempty"`
	UserDescription string   `json:"userDescription,omitempty"`
	BuyLinks        []string `json:"buyLinks,omitempty"`
	AspectRatio     string   `json:"aspectRatio,omitempty"`
	PriceBuyNowRUB  int      `json:"priceBuyNowRUB,omitempty"`
	IsPublic        *bool    `json:"isPublic,omitempty"`
}

// SaveItemInput is the request body for persisting an extracted wardrobe item.
type SaveItemInput struct {
	Title           string   `json:"title"`
	Category        string   `json:"category"`
	Gender          string   `json:"gender"`
	Tags            []string `json:"tags,omitempty"`
	Color           string   `json:"color,omitempty"`
	Material        string   `json:"material,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	OriginalDataURL string   `json:"originalDataUrl"`
	CutoutDataURL   string   `json:"cutoutDataUrl"`
}

// LikeResult is the post-toggle like state the server reports.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// Register creates an account and opens a session.
func (c *API) Register(ctx context.Context, email, username, password string) (storage.User, error) {
	var out struct {
		User storage.User `json:"user"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "username": username, "password": password}, &out, defaultTimeout)
	return out.User, err
}

// Login opens a session with an email or username.
func (c *API) Login(ctx context.Context, emailOrUsername, password string) (storage.User, error) {
	var out struct {
		User storage.User `json:"user"`
	}
	err := c.call(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"emailOrUsername": emailOrUsername, "password": password}, &out, defaultTimeout)
	return out.User, err
}

// Logout drops the server session.
func (c *API) Logout(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/auth/logout", nil, nil, defaultTimeout)
}

// Me probes for a restorable session. A nil user with nil error means anonymous.
func (c *API) Me(ctx context.Context) (*storage.User, error) {
	var out struct {
		User *storage.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/auth/me", nil, &out, defaultTimeout); err != nil {
		return nil, err
	}
	return out.User, nil
}

// TryOn renders a composite without creating a look.
func (c *API) TryOn(ctx context.Context, selfieDataURL string, itemImageURLs []string, aspectRatio string) (TryOnResult, error) {
	var out TryOnResult
	err := c.call(ctx, http.MethodPost, "/api/tryon", map[string]any{
		"selfieDataUrl": selfieDataURL,
		"itemImageUrls": itemImageURLs,
		"aspectRatio":   aspectRatio,
	}, &out, createLookTimeout)
	return out, err
}

// ExtractWardrobeItem runs the cutout-and-attributes flow on a photo.
func (c *API) ExtractWardrobeItem(ctx context.Context, photoDataURL, hintCategory, hintGender string) (ExtractResult, error) {
	var out ExtractResult
	err := c.call(ctx, http.MethodPost, "/api/wardrobe/extract", map[string]string{
		"photoDataUrl": photoDataURL,
		"hintCategory": hintCategory,
		"hintGender":   hintGender,
	}, &out, createLookTimeout)
	return out, err
}

// SaveWardrobeItem persists an extracted item.
func (c *API) SaveWardrobeItem(ctx context.Context, input SaveItemInput) (Item, error) {
	var out struct {
		Item Item `json:"item"`
	}
	err := c.call(ctx, http.MethodPost, "/api/wardrobe/save", input, &out, defaultTimeout)
	return out.Item, err
}

// ListWardrobe returns the caller's saved items.
func (c *API) ListWardrobe(ctx context.Context) ([]Item, error) {
	var out struct {
		Items []Item `json:"items"`
	}
	err := c.call(ctx, http.MethodGet, "/api/wardrobe/list", nil, &out, defaultTimeout)
	return out.Items, err
}

// DeleteWardrobeItem removes a saved item.
func (c *API) DeleteWardrobeItem(ctx context.Context, itemID string) error {
	return c.call(ctx, http.MethodDelete, "/api/wardrobe/"+itemID, nil, nil, defaultTimeout)
}

// CreateLook runs the full generation pipeline. Rendering is slow, so this
// call alone gets the extended timeout.
func (c *API) CreateLook(ctx context.Context, input CreateLookInput) (storage.Look, error) {
	var out struct {
		Look storage.Look `json:"look"`
	}
	err := c.call(ctx, http.MethodPost, "/api/looks/create", input, &out, createLookTimeout)
	return out.Look, err
}

// MyLooks returns the caller's looks, newest first.
func (c *API) MyLooks(ctx context.Context) ([]storage.Look, error) {
	var out struct {
		Looks []storage.Look `json:"looks"`
	}
	err := c.call(ctx, http.MethodGet, "/api/looks/my", nil, &out, defaultTimeout)
	return out.Looks, err
}

// PublicLooks returns the public feed with the given sort order.
func (c *API) PublicLooks(ctx context.Context, sort string) ([]storage.Look, error) {
	var out struct {
		Looks []storage.Look `json:"looks"`
	}
	path := "/api/looks/public"
	if sort != "" {
		path += "?sort=" + sort
	}
	err := c.call(ctx, http.MethodGet, path, nil, &out, defaultTimeout)
	return out.Looks, err
}

// LikeLook toggles a like and returns the post-toggle state.
func (c *API) LikeLook(ctx context.Context, lookID string) (LikeResult, error) {
	var out LikeResult
	err := c.call(ctx, http.MethodPost, "/api/looks/"+lookID+"/like", nil, &out, defaultTimeout)
	return out, err
}

// SetLookVisibility updates a look's public flag (owner only).
func (c *API) SetLookVisibility(ctx context.Context, lookID string, isPublic bool) (storage.Look, error) {
	var out struct {
		Look storage.Look `json:"look"`
	}
	err := c.call(ctx, http.MethodPatch, "/api/looks/"+lookID+"/visibility",
		map[string]bool{"isPublic": isPublic}, &out, defaultTimeout)
	return out.Look, err
}

// AddComment appends a comment to a look.
func (c *API) AddComment(ctx context.Context, lookID, text string) (storage.Comment, error) {
	var out struct {
		Comment storage.Comment `json:"comment"`
	}
	err := c.call(ctx, http.MethodPost, "/api/looks/"+lookID+"/comments",
		map[string]string{"text": text}, &out, defaultTimeout)
	return out.Comment, err
}

// ToggleFollow toggles following the given user and reports the new state.
func (c *API) ToggleFollow(ctx context.Context, userID string) (bool, error) {
	var out struct {
		Following bool `json:"following"`
	}
	err := c.call(ctx, http.MethodPost, "/api/users/"+userID+"/follow", nil, &out, defaultTimeout)
	return out.Following, err
}

// FollowingFeed returns public looks from followed accounts.
func (c *API) FollowingFeed(ctx context.Context) ([]storage.Look, error) {
	var out struct {
		Looks []storage.Look `json:"looks"`
	}
	err := c.call(ctx, http.MethodGet, "/api/feed/following", nil, &out, defaultTimeout)
	return out.Looks, err
}

func (c *API) call(ctx context.Context, method, path string, body, out any, timeout time.Duration) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(callCtx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrAuthRequired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}
