package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"toptry/internal/storage"
)

// Subscription tiers. Tier and the remaining-usage counters live only on the
// client; the server does not enforce them.
const (
	TierFree   = "FREE"
	TierSilver = "SILVER"
	TierGold   = "GOLD"
)

// Home feed layouts toggled by the UI.
const (
	LayoutFeed = "feed"
	LayoutGrid = "grid"
)

// Local cache bounds. Anything beyond these limits is dropped oldest-last on
// persist so the cache file stays small.
const (
	maxCachedWardrobe  = 200
	maxCachedMyLooks   = 10
	maxCachedFeedLooks = 5
)

// maxPersistBytes caps the cache file, mirroring a browser storage quota. An
// oversized snapshot is retried once with inline image payloads stripped.
const maxPersistBytes = 2 << 20

// State is the locally persisted application snapshot.
type State struct {
	User             *storage.User  `json:"user,omitempty"`
	Tier             string         `json:"tier"`
	LooksRemaining   int            `json:"looksRemaining"`
	HDTryOnRemaining int            `json:"hdTryOnRemaining"`
	SelfieDataURL    string         `json:"selfieDataUrl,omitempty"`
	Wardrobe         []Item         `json:"wardrobe"`
	MyLooks          []storage.Look `json:"myLooks"`
	FeedLooks        []storage.Look `json:"feedLooks"`
	HomeLayout       string         `json:"homeLayout"`
}

// Store is the process-wide client state container: a mutex-guarded snapshot
// plus file-backed persistence. Network actions mutate state only after a
// successful response; a failed call leaves state untouched.
type Store struct {
	api  *API
	path string

	mu    sync.Mutex
	state State
}

// NewStore creates a container persisting to the given file path. An empty
// path defaults to a per-user cache location.
func NewStore(api *API, path string) *Store {
	if path == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		path = filepath.Join(dir, "toptry", "state.json")
	}
	return &Store{
		api:  api,
		path: path,
		state: State{
			Tier:             TierFree,
			LooksRemaining:   tierLooks(TierFree),
			HDTryOnRemaining: tierHDTryOns(TierFree),
			HomeLayout:       LayoutFeed,
		},
	}
}

// Hydrate loads persisted state and then tries to restore a server session.
// Both steps are best-effort: a missing cache file or anonymous session still
// yields a usable container.
func (s *Store) Hydrate(ctx context.Context) error {
	s.mu.Lock()
	if data, err := os.ReadFile(s.path); err == nil {
		var persisted State
		if err := json.Unmarshal(data, &persisted); err == nil {
			s.state = withDefaults(persisted)
		}
	}
	s.mu.Unlock()

	user, err := s.api.Me(ctx)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if user == nil {
		// The cached user is stale if the server session is gone.
		s.state.User = nil
	} else {
		s.state.User = user
	}
	return s.persistLocked()
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.state
	snap.Wardrobe = append([]Item(nil), s.state.Wardrobe...)
	snap.MyLooks = append([]storage.Look(nil), s.state.MyLooks...)
	snap.FeedLooks = append([]storage.Look(nil), s.state.FeedLooks...)
	return snap
}

// Login opens a session and reloads the wardrobe and looks from the server.
func (s *Store) Login(ctx context.Context, emailOrUsername, password string) error {
	user, err := s.api.Login(ctx, emailOrUsername, password)
	if err != nil {
		return err
	}
	return s.adoptSession(ctx, user)
}

// Register creates an account and opens a session.
func (s *Store) Register(ctx context.Context, email, username, password string) error {
	user, err := s.api.Register(ctx, email, username, password)
	if err != nil {
		return err
	}
	return s.adoptSession(ctx, user)
}

// Logout drops the server session and clears account-scoped local state.
func (s *Store) Logout(ctx context.Context) error {
	if err := s.api.Logout(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = nil
	s.state.Wardrobe = nil
	s.state.MyLooks = nil
	s.state.SelfieDataURL = ""
	return s.persistLocked()
}

// AddToWardrobe saves an extracted item on the server and prepends it locally.
func (s *Store) AddToWardrobe(ctx context.Context, input SaveItemInput) (Item, error) {
	item, err := s.api.SaveWardrobeItem(ctx, input)
	if err != nil {
		return Item{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Wardrobe = append([]Item{item}, s.state.Wardrobe...)
	return item, s.persistLocked()
}

// UpsertWardrobeItem replaces a cached item by id, or prepends it when absent.
func (s *Store) UpsertWardrobeItem(item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.state.Wardrobe {
		if existing.ID == item.ID {
			s.state.Wardrobe[i] = item
			return s.persistLocked()
		}
	}
	s.state.Wardrobe = append([]Item{item}, s.state.Wardrobe...)
	return s.persistLocked()
}

// RemoveFromWardrobe deletes the item on the server and drops it locally.
func (s *Store) RemoveFromWardrobe(ctx context.Context, itemID string) error {
	if err := s.api.DeleteWardrobeItem(ctx, itemID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.Wardrobe[:0]
	for _, item := range s.state.Wardrobe {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	s.state.Wardrobe = kept
	return s.persistLocked()
}

// CreateLook delegates to the generation pipeline and caches the result. On
// success the local usage counters are decremented; the server does not report
// authoritative counters, so these stay advisory only.
func (s *Store) CreateLook(ctx context.Context, input CreateLookInput) (storage.Look, error) {
	look, err := s.api.CreateLook(ctx, input)
	if err != nil {
		return storage.Look{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MyLooks = append([]storage.Look{look}, s.state.MyLooks...)
	if s.state.LooksRemaining > 0 {
		s.state.LooksRemaining--
	}
	if s.state.HDTryOnRemaining > 0 {
		s.state.HDTryOnRemaining--
	}
	return look, s.persistLocked()
}

// SetSelfie caches the user's selfie reference for subsequent try-ons.
func (s *Store) SetSelfie(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SelfieDataURL = ref
	return s.persistLocked()
}

// LikeLook toggles a like and reconciles cached counters with the post-toggle
// value the server reports.
func (s *Store) LikeLook(ctx context.Context, lookID string) (LikeResult, error) {
	result, err := s.api.LikeLook(ctx, lookID)
	if err != nil {
		return LikeResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.MyLooks {
		if s.state.MyLooks[i].ID == lookID {
			s.state.MyLooks[i].LikesCount = result.Likes
		}
	}
	for i := range s.state.FeedLooks {
		if s.state.FeedLooks[i].ID == lookID {
			s.state.FeedLooks[i].LikesCount = result.Likes
		}
	}
	return result, s.persistLocked()
}

// RefreshFeed replaces the cached public feed.
func (s *Store) RefreshFeed(ctx context.Context, sort string) ([]storage.Look, error) {
	looks, err := s.api.PublicLooks(ctx, sort)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.FeedLooks = looks
	return looks, s.persistLocked()
}

// ToggleHomeLayout flips between the feed and grid home layouts.
func (s *Store) ToggleHomeLayout() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.HomeLayout == LayoutFeed {
		s.state.HomeLayout = LayoutGrid
	} else {
		s.state.HomeLayout = LayoutFeed
	}
	_ = s.persistLocked()
	return s.state.HomeLayout
}

// adoptSession installs the user and reloads server-side collections.
func (s *Store) adoptSession(ctx context.Context, user storage.User) error {
	items, err := s.api.ListWardrobe(ctx)
	if err != nil && !errors.Is(err, ErrAuthRequired) {
		return err
	}
	looks, err := s.api.MyLooks(ctx)
	if err != nil && !errors.Is(err, ErrAuthRequired) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.User = &user
	s.state.Wardrobe = items
	s.state.MyLooks = looks
	return s.persistLocked()
}

// persistLocked writes the snapshot to disk, clamping collection sizes first.
// If the encoded snapshot still exceeds the size cap, it retries once with
// inline image payloads stripped from cached looks. Caller holds s.mu.
func (s *Store) persistLocked() error {
	snap := s.state
	snap.Wardrobe = clampItems(snap.Wardrobe, maxCachedWardrobe)
	snap.MyLooks = clampLooks(snap.MyLooks, maxCachedMyLooks)
	snap.FeedLooks = clampLooks(snap.FeedLooks, maxCachedFeedLooks)

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if len(data) > maxPersistBytes {
		snap.MyLooks = stripInlineImages(snap.MyLooks)
		snap.FeedLooks = stripInlineImages(snap.FeedLooks)
		snap.SelfieDataURL = ""
		data, err = json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("encode stripped state: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

func clampItems(items []Item, limit int) []Item {
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}

func clampLooks(looks []storage.Look, limit int) []storage.Look {
	if len(looks) <= limit {
		return looks
	}
	return looks[:limit]
}

// stripInlineImages drops data-URL payloads from cached looks; /media
// references stay since they are tiny.
func stripInlineImages(looks []storage.Look) []storage.Look {
	out := make([]storage.Look, len(looks))
	copy(out, looks)
	for i := range out {
		if strings.HasPrefix(out[i].ResultImageURL, "data:") {
			out[i].ResultImageURL = ""
		}
	}
	return out
}

func withDefaults(state State) State {
	if state.Tier == "" {
		state.Tier = TierFree
	}
	if state.HomeLayout == "" {
		state.HomeLayout = LayoutFeed
	}
	return state
}

func tierLooks(tier string) int {
	switch tier {
	case TierGold:
		return 100
	case TierSilver:
		return 20
	default:
		return 5
	}
}

func tierHDTryOns(tier string) int {
	switch tier {
	case TierGold:
		return 50
	case TierSilver:
		return 10
	default:
		return 2
	}
}
