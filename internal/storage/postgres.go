package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists users, wardrobe items and looks in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const lookColumns = `l.id, l.user_id, l.title, l.item_ids, l.result_image_url, l.is_public,
	l.likes_count, l.comments_count, COALESCE(l.user_description, ''), COALESCE(l.ai_description, ''),
	l.price_buy_now_rub, l.buy_links, l.created_at, u.username, COALESCE(u.avatar_url, '')`

// CreateUser stores a new account. Unique violations map to ErrUserExists.
func (s *PostgresStore) CreateUser(ctx context.Context, input User) (User, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, username, password_hash, avatar_url, is_public, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)`,
		input.ID, input.Email, input.Username, input.PasswordHash, input.AvatarURL, input.IsPublic, input.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	return input, nil
}

// GetUserByID returns the user with the given id.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, COALESCE(avatar_url, ''), is_public, created_at
		 FROM users WHERE id = $1`, id))
}

// GetUserByLogin finds a user by email or username.
func (s *PostgresStore) GetUserByLogin(ctx context.Context, emailOrUsername string) (User, error) {
	return s.scanUser(s.pool.QueryRow(ctx,
		`SELECT id, email, username, password_hash, COALESCE(avatar_url, ''), is_public, created_at
		 FROM users WHERE email = $1 OR username = $1`, emailOrUsername))
}

func (s *PostgresStore) scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.AvatarURL, &u.IsPublic, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

// CreateWardrobeItem stores an own-photographed garment.
func (s *PostgresStore) CreateWardrobeItem(ctx context.Context, input WardrobeItem) (WardrobeItem, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}
	if input.Tags == nil {
		input.Tags = []string{}
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO wardrobe_items (id, user_id, title, category, gender, tags, color, material, notes, original_key, cutout_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12)`,
		input.ID, input.UserID, input.Title, input.Category, input.Gender, input.Tags,
		input.Color, input.Material, input.Notes, input.OriginalKey, input.CutoutKey, input.CreatedAt); err != nil {
		return WardrobeItem{}, fmt.Errorf("insert wardrobe item: %w", err)
	}

	return input, nil
}

// ListWardrobeItems returns the user's items, newest first.
func (s *PostgresStore) ListWardrobeItems(ctx context.Context, userID string) ([]WardrobeItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, category, gender, tags, COALESCE(color, ''), COALESCE(material, ''),
		 COALESCE(notes, ''), original_key, cutout_key, created_at
		 FROM wardrobe_items WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wardrobe items: %w", err)
	}
	defer rows.Close()

	items := []WardrobeItem{}
	for rows.Next() {
		var item WardrobeItem
		if err := rows.Scan(&item.ID, &item.UserID, &item.Title, &item.Category, &item.Gender, &item.Tags,
			&item.Color, &item.Material, &item.Notes, &item.OriginalKey, &item.CutoutKey, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wardrobe item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// DeleteWardrobeItem removes the item if it belongs to the user.
func (s *PostgresStore) DeleteWardrobeItem(ctx context.Context, userID, itemID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM wardrobe_items WHERE id = $1 AND user_id = $2`, itemID, userID)
	if err != nil {
		return fmt.Errorf("delete wardrobe item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateLook stores a fresh look with zeroed counters and returns it hydrated
// with the author's display fields.
func (s *PostgresStore) CreateLook(ctx context.Context, input Look) (Look, error) {
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

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO looks (id, user_id, title, item_ids, result_image_url, is_public,
		 user_description, ai_description, price_buy_now_rub, buy_links, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), $9, $10, $11)`,
		input.ID, input.UserID, input.Title, input.Items, input.ResultImageURL, input.IsPublic,
		input.UserDescription, input.AIDescription, input.PriceBuyNowRUB, input.BuyLinks, input.CreatedAt); err != nil {
		return Look{}, fmt.Errorf("insert look: %w", err)
	}

	return s.GetLook(ctx, input.ID)
}

// GetLook returns one look joined with its author.
func (s *PostgresStore) GetLook(ctx context.Context, id string) (Look, error) {
	return scanLook(s.pool.QueryRow(ctx,
		`SELECT `+lookColumns+` FROM looks l JOIN users u ON u.id = l.user_id WHERE l.id = $1`, id))
}

// ListLooksByUser returns the user's looks, newest first.
func (s *PostgresStore) ListLooksByUser(ctx context.Context, userID string) ([]Look, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+lookColumns+` FROM looks l JOIN users u ON u.id = l.user_id
		 WHERE l.user_id = $1 ORDER BY l.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query looks: %w", err)
	}
	return collectLooks(rows)
}

// ListPublicLooks returns the public feed; trending sorts by likes then recency.
func (s *PostgresStore) ListPublicLooks(ctx context.Context, sort string, limit int) ([]Look, error) {
	order := `l.created_at DESC`
	if sort == SortTrending {
		order = `l.likes_count DESC, l.created_at DESC`
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+lookColumns+` FROM looks l JOIN users u ON u.id = l.user_id
		 WHERE l.is_public ORDER BY `+order+` LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query public looks: %w", err)
	}
	return collectLooks(rows)
}

// SetLookVisibility flips the public flag and returns the updated look.
func (s *PostgresStore) SetLookVisibility(ctx context.Context, id string, isPublic bool) (Look, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE looks SET is_public = $2 WHERE id = $1`, id, isPublic)
	if err != nil {
		return Look{}, fmt.Errorf("update visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Look{}, ErrNotFound
	}
	return s.GetLook(ctx, id)
}

// ToggleLike inserts or deletes the (user, look) relation and applies the
// matching counter delta inside one transaction. Returns the post-toggle count.
func (s *PostgresStore) ToggleLike(ctx context.Context, userID, lookID string) (int, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("begin toggle like: %w", err)
	}
	defer tx.Rollback(ctx)

	var likes int
	var liked bool

	tag, err := tx.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND look_id = $2`, userID, lookID)
	if err != nil {
		return 0, false, fmt.Errorf("delete like: %w", err)
	}

	if tag.RowsAffected() > 0 {
		err = tx.QueryRow(ctx,
			`UPDATE looks SET likes_count = GREATEST(likes_count - 1, 0) WHERE id = $1 RETURNING likes_count`,
			lookID).Scan(&likes)
	} else {
		if _, err := tx.Exec(ctx, `INSERT INTO likes (user_id, look_id) VALUES ($1, $2)`, userID, lookID); err != nil {
			if isForeignKeyViolation(err) {
				return 0, false, ErrNotFound
			}
			return 0, false, fmt.Errorf("insert like: %w", err)
		}
		liked = true
		err = tx.QueryRow(ctx,
			`UPDATE looks SET likes_count = likes_count + 1 WHERE id = $1 RETURNING likes_count`,
			lookID).Scan(&likes)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, ErrNotFound
	}
	if err != nil {
		return 0, false, fmt.Errorf("adjust likes counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, fmt.Errorf("commit toggle like: %w", err)
	}
	return likes, liked, nil
}

// CreateComment appends a comment and bumps the parent counter in one transaction.
func (s *PostgresStore) CreateComment(ctx context.Context, input Comment) (Comment, error) {
	if input.ID == "" {
		input.ID = uuid.NewString()
	}
	if input.CreatedAt.IsZero() {
		input.CreatedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Comment{}, fmt.Errorf("begin comment: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO comments (id, look_id, user_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		input.ID, input.LookID, input.UserID, input.Text, input.CreatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}

	var count int
	err = tx.QueryRow(ctx,
		`UPDATE looks SET comments_count = comments_count + 1 WHERE id = $1 RETURNING comments_count`,
		input.LookID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("bump comments counter: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Comment{}, fmt.Errorf("commit comment: %w", err)
	}
	return input, nil
}

// ListComments returns a look's comments oldest first, joined with usernames.
func (s *PostgresStore) ListComments(ctx context.Context, lookID string) ([]Comment, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.look_id, c.user_id, u.username, c.text, c.created_at
		 FROM comments c JOIN users u ON u.id = c.user_id
		 WHERE c.look_id = $1 ORDER BY c.created_at ASC`, lookID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.LookID, &c.UserID, &c.UserName, &c.Text, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	return comments, rows.Err()
}

// ToggleFollow flips the follower relation. Self-follows are rejected.
func (s *PostgresStore) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == followingID {
		return false, ErrSelfFollow
	}

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
	if err != nil {
		return false, fmt.Errorf("delete follow: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2)`, followerID, followingID); err != nil {
		if isForeignKeyViolation(err) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("insert follow: %w", err)
	}
	return true, nil
}

// ListFollowingLooks returns public looks from users the given user follows.
func (s *PostgresStore) ListFollowingLooks(ctx context.Context, userID string, limit int) ([]Look, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+lookColumns+` FROM looks l
		 JOIN users u ON u.id = l.user_id
		 JOIN follows f ON f.following_id = l.user_id
		 WHERE f.follower_id = $1 AND l.is_public
		 ORDER BY l.created_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query following feed: %w", err)
	}
	return collectLooks(rows)
}

// Close releases database resources.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanLook(row pgx.Row) (Look, error) {
	var l Look
	err := row.Scan(&l.ID, &l.UserID, &l.Title, &l.Items, &l.ResultImageURL, &l.IsPublic,
		&l.LikesCount, &l.CommentsCount, &l.UserDescription, &l.AIDescription,
		&l.PriceBuyNowRUB, &l.BuyLinks, &l.CreatedAt, &l.AuthorName, &l.AuthorAvatar)
	if errors.Is(err, pgx.ErrNoRows) {
		return Look{}, ErrNotFound
	}
	if err != nil {
		return Look{}, fmt.Errorf("scan look: %w", err)
	}
	return l, nil
}

func collectLooks(rows pgx.Rows) ([]Look, error) {
	defer rows.Close()

	looks := []Look{}
	for rows.Next() {
		look, err := scanLook(rows)
		if err != nil {
			return nil, err
		}
		looks = append(looks, look)
	}
	return looks, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
