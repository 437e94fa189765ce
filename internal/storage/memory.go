package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a thread-safe store used when a database is not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	wardrobe map[string]WardrobeItem
	looks    map[string]Look
	comments map[string][]Comment
	likes    map[string]map[string]struct{} // lookID -> userIDs
	follows  map[string]map[string]struct{} // followerID -> followingIDs
}

// NewInMemoryStore constructs an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:    make(map[string]User),
		wardrobe: make(map[string]WardrobeItem),
		looks:    make(map[string]Look),
		comments: make(map[string][]Comment),
		likes:    make(map[string]map[string]struct{}),
		follows:  make(map[string]map[string]struct{}),
	}
}

// CreateUser registers a user, enforcing unique email and username.
func (s *InMemoryStore) CreateUser(_ context.Context, input User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, input.Email) || strings.EqualFold(u.Username, input.Username) {
			return User{}, ErrUserExists
		}
	}

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	s.users[input.ID] = input
	return input, nil
}

// GetUserByID returns the user with the given id.
func (s *InMemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

// GetUserByLogin finds a user by email or username.
func (s *InMemoryStore) GetUserByLogin(_ context.Context, emailOrUsername string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, emailOrUsername) || strings.EqualFold(u.Username, emailOrUsername) {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

// CreateWardrobeItem appends an item.
func (s *InMemoryStore) CreateWardrobeItem(_ context.Context, input WardrobeItem) (WardrobeItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	if input.Tags == nil {
		input.Tags = []string{}
	}

	s.wardrobe[input.ID] = input
	return input, nil
}

// ListWardrobeItems returns the user's items, newest first.
func (s *InMemoryStore) ListWardrobeItems(_ context.Context, userID string) ([]WardrobeItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []WardrobeItem{}
	for _, item := range s.wardrobe {
		if item.UserID == userID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	return items, nil
}

// DeleteWardrobeItem removes the item if owned by the user.
func (s *InMemoryStore) DeleteWardrobeItem(_ context.Context, userID, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.wardrobe[itemID]
	if !ok || item.UserID != userID {
		return ErrNotFound
	}
	delete(s.wardrobe, itemID)
	return nil
}

// CreateLook stores a look and returns it hydrated with author fields.
func (s *InMemoryStore) CreateLook(_ context.Context, input Look) (Look, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	if input.Items == nil {
		input.Items = []string{}
	}
	if input.BuyLinks == nil {
		input.BuyLinks = []string{}
	}

	s.looks[input.ID] = input
	return s.hydrate(input), nil
}

// GetLook returns one look.
func (s *InMemoryStore) GetLook(_ context.Context, id string) (Look, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	look, ok := s.looks[id]
	if !ok {
		return Look{}, ErrNotFound
	}
	return s.hydrate(look), nil
}

// ListLooksByUser returns the user's looks, newest first.
func (s *InMemoryStore) ListLooksByUser(_ context.Context, userID string) ([]Look, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	looks := []Look{}
	for _, l := range s.looks {
		if l.UserID == userID {
			looks = append(looks, s.hydrate(l))
		}
	}
	sortByRecency(looks)
	return looks, nil
}

// ListPublicLooks returns the public feed in the requested order.
func (s *InMemoryStore) ListPublicLooks(_ context.Context, sortOrder string, limit int) ([]Look, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	looks := []Look{}
	for _, l := range s.looks {
		if l.IsPublic {
			looks = append(looks, s.hydrate(l))
		}
	}

	if sortOrder == SortTrending {
		sort.Slice(looks, func(i, j int) bool {
			if looks[i].LikesCount != looks[j].LikesCount {
				return looks[i].LikesCount > looks[j].LikesCount
			}
			return looks[i].CreatedAt.After(looks[j].CreatedAt)
		})
	} else {
		sortByRecency(looks)
	}

	if limit > 0 && len(looks) > limit {
		looks = looks[:limit]
	}
	return looks, nil
}

// SetLookVisibility flips the public flag.
func (s *InMemoryStore) SetLookVisibility(_ context.Context, id string, isPublic bool) (Look, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	look, ok := s.looks[id]
	if !ok {
		return Look{}, ErrNotFound
	}
	look.IsPublic = isPublic
	s.looks[id] = look
	return s.hydrate(look), nil
}

// ToggleLike flips the relation and adjusts the counter under one lock.
func (s *InMemoryStore) ToggleLike(_ context.Context, userID, lookID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	look, ok := s.looks[lookID]
	if !ok {
		return 0, false, ErrNotFound
	}

	set := s.likes[lookID]
	if set == nil {
		set = make(map[string]struct{})
		s.likes[lookID] = set
	}

	var liked bool
	if _, exists := set[userID]; exists {
		delete(set, userID)
		if look.LikesCount > 0 {
			look.LikesCount--
		}
	} else {
		set[userID] = struct{}{}
		look.LikesCount++
		liked = true
	}

	s.looks[lookID] = look
	return look.LikesCount, liked, nil
}

// CreateComment appends a comment and bumps the parent counter.
func (s *InMemoryStore) CreateComment(_ context.Context, input Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	look, ok := s.looks[input.LookID]
	if !ok {
		return Comment{}, ErrNotFound
	}

	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	if input.UserName == "" {
		if u, ok := s.users[input.UserID]; ok {
			input.UserName = u.Username
		}
	}

	s.comments[input.LookID] = append(s.comments[input.LookID], input)
	look.CommentsCount++
	s.looks[input.LookID] = look
	return input, nil
}

// ListComments returns a look's comments oldest first.
func (s *InMemoryStore) ListComments(_ context.Context, lookID string) ([]Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make([]Comment, len(s.comments[lookID]))
	copy(snapshot, s.comments[lookID])
	return snapshot, nil
}

// ToggleFollow flips the follower relation. Self-follows are rejected.
func (s *InMemoryStore) ToggleFollow(_ context.Context, followerID, followingID string) (bool, error) {
	if followerID == followingID {
		return false, ErrSelfFollow
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[followingID]; !ok {
		return false, ErrNotFound
	}

	set := s.follows[followerID]
	if set == nil {
		set = make(map[string]struct{})
		s.follows[followerID] = set
	}

	if _, exists := set[followingID]; exists {
		delete(set, followingID)
		return false, nil
	}
	set[followingID] = struct{}{}
	return true, nil
}

// ListFollowingLooks returns public looks from followed users, newest first.
func (s *InMemoryStore) ListFollowingLooks(_ context.Context, userID string, limit int) ([]Look, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	following := s.follows[userID]
	looks := []Look{}
	for _, l := range s.looks {
		if _, ok := following[l.UserID]; ok && l.IsPublic {
			looks = append(looks, s.hydrate(l))
		}
	}
	sortByRecency(looks)
	if limit > 0 && len(looks) > limit {
		looks = looks[:limit]
	}
	return looks, nil
}

// Close satisfies the Store interface.
func (s *InMemoryStore) Close() {}

// hydrate joins author display fields; callers must hold at least a read lock.
func (s *InMemoryStore) hydrate(look Look) Look {
	if author, ok := s.users[look.UserID]; ok {
		look.AuthorName = author.Username
		look.AuthorAvatar = author.AvatarURL
	}
	return look
}

func sortByRecency(looks []Look) {
	sort.Slice(looks, func(i, j int) bool { return looks[i].CreatedAt.After(looks[j].CreatedAt) })
}
