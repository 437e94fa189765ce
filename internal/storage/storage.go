package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates that a record could not be located in the backing store.
	ErrNotFound = errors.New("record not found")
	// ErrUserExists is returned when the email or username is already registered.
	ErrUserExists = errors.New("email or username already exists")
	// ErrSelfFollow rejects follow toggles where follower and followee are the same user.
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// Public look feed sort orders.
const (
	SortTrending = "trending"
	SortNew      = "new"
)

// User is a registered account. Subscription tier and usage limits are
// client-side concerns and are not persisted here.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	AvatarURL    string    `json:"avatarUrl,omitempty"`
	IsPublic     bool      `json:"isPublic"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WardrobeItem is a user-photographed garment. OriginalKey and CutoutKey are
// blob store keys; the HTTP layer maps them to /media references.
type WardrobeItem struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Gender      string    `json:"gender"`
	Tags        []string  `json:"tags"`
	Color       string    `json:"color,omitempty"`
	Material    string    `json:"material,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	OriginalKey string    `json:"-"`
	CutoutKey   string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Look is one persisted try-on result plus its social metadata.
// LikesCount and CommentsCount are maintained only through the atomic toggle
// and append paths below, never recomputed by scanning relation tables.
type Look struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Title           string    `json:"title"`
	Items           []string  `json:"items"`
	ResultImageURL  string    `json:"resultImageUrl"`
	IsPublic        bool      `json:"isPublic"`
	LikesCount      int       `json:"likes"`
	CommentsCount   int       `json:"comments"`
	UserDescription string    `json:"userDescription,omitempty"`
	AIDescription   string    `json:"aiDescription,omitempty"`
	PriceBuyNowRUB  int       `json:"priceBuyNowRUB,omitempty"`
	BuyLinks        []string  `json:"buyLinks,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`

	// Joined from the author record when the look is read back.
	AuthorName   string `json:"authorName,omitempty"`
	AuthorAvatar string `json:"authorAvatar,omitempty"`
}

// Comment belongs to exactly one look; append-only, ordered by creation time.
type Comment struct {
	ID        string    `json:"id"`
	LookID    string    `json:"lookId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store defines the persistence behaviors the application relies on.
type Store interface {
	CreateUser(ctx context.Context, input User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByLogin(ctx context.Context, emailOrUsername string) (User, error)

	CreateWardrobeItem(ctx context.Context, input WardrobeItem) (WardrobeItem, error)
	ListWardrobeItems(ctx context.Context, userID string) ([]WardrobeItem, error)
	DeleteWardrobeItem(ctx context.Context, userID, itemID string) error

	CreateLook(ctx context.Context, input Look) (Look, error)
	GetLook(ctx context.Context, id string) (Look, error)
	ListLooksByUser(ctx context.Context, userID string) ([]Look, error)
	ListPublicLooks(ctx context.Context, sort string, limit int) ([]Look, error)
	SetLookVisibility(ctx context.Context, id string, isPublic bool) (Look, error)

	ToggleLike(ctx context.Context, userID, lookID string) (likes int, liked bool, err error)
	CreateComment(ctx context.Context, input Comment) (Comment, error)
	ListComments(ctx context.Context, lookID string) ([]Comment, error)

	ToggleFollow(ctx context.Context, followerID, followingID string) (following bool, err error)
	ListFollowingLooks(ctx context.Context, userID string, limit int) ([]Look, error)

	Close()
}

// NewStore selects a backing store based on whether a database URL is provided.
func NewStore(ctx context.Context, databaseURL string) (Store, error) {
	if databaseURL == "" {
		return NewInMemoryStore(), nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := ensureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			avatar_url TEXT,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS wardrobe_items (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			gender TEXT NOT NULL,
			tags TEXT[] NOT NULL DEFAULT '{}',
			color TEXT,
			material TEXT,
			notes TEXT,
			original_key TEXT NOT NULL,
			cutout_key TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS looks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			title TEXT NOT NULL DEFAULT '',
			item_ids TEXT[] NOT NULL DEFAULT '{}',
			result_image_url TEXT NOT NULL,
			is_public BOOLEAN NOT NULL DEFAULT TRUE,
			likes_count INTEGER NOT NULL DEFAULT 0,
			comments_count INTEGER NOT NULL DEFAULT 0,
			user_description TEXT,
			ai_description TEXT,
			price_buy_now_rub INTEGER NOT NULL DEFAULT 0,
			buy_links TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS comments (
			id TEXT PRIMARY KEY,
			look_id TEXT NOT NULL REFERENCES looks(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			text TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS likes (
			user_id TEXT NOT NULL REFERENCES users(id),
			look_id TEXT NOT NULL REFERENCES looks(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (user_id, look_id)
		)`,
		`CREATE TABLE IF NOT EXISTS follows (
			follower_id TEXT NOT NULL REFERENCES users(id),
			following_id TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (follower_id, following_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_wardrobe_items_user ON wardrobe_items(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_looks_user ON looks(user_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_looks_public ON looks(is_public, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_comments_look ON comments(look_id, created_at ASC)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	return nil
}
