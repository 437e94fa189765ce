package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"toptry/internal/storage"
)

// ErrInvalidCredentials is returned when login and password don't match.
var ErrInvalidCredentials = errors.New("invalid credentials")

type contextKey string

const userContextKey contextKey = "auth/user"

// SessionManager signs and validates lightweight session tokens.
type SessionManager struct {
	Secret       []byte
	Duration     time.Duration
	CookieName   string
	SecureCookie bool
}

// Claims captures decoded session data.
type Claims struct {
	UserID    string
	ExpiresAt time.Time
}

// Middleware attaches the authenticated user to the request context when a
// valid session cookie exists. A missing or invalid cookie means anonymous,
// never an error.
type Middleware struct {
	Store    storage.Store
	Sessions SessionManager
}

// Handler exposes auth endpoints for registering and logging in users.
type Handler struct {
	Store    storage.Store
	Sessions SessionManager
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

// InjectUser parses the session cookie (if present) and loads the user into context.
func (m Middleware) InjectUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.Sessions.cookieName())
		if err == nil && cookie.Value != "" {
			if claims, err := m.Sessions.Parse(cookie.Value); err == nil && claims.ExpiresAt.After(time.Now()) {
				if user, err := m.Store.GetUserByID(r.Context(), claims.UserID); err == nil {
					r = r.WithContext(WithUser(r.Context(), user))
				}
			} else if err != nil {
				// Clear unusable cookies to avoid loops.
				clear := m.Sessions.expiredCookie()
				http.SetCookie(w, &clear)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth ensures a user exists in context or returns 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Register handles POST /api/auth/register.
func (h Handler) Register(w http.ResponseWriter, r *http.Request) {
	var payload registerRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	email := normalizeLogin(payload.Email)
	username := normalizeLogin(payload.Username)
	if email == "" || username == "" || len(payload.Password) < 6 {
		writeError(w, http.StatusBadRequest, "email, username and password (min 6 chars) are required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	user := storage.User{
		Email:        email,
		Username:     username,
		PasswordHash: string(hashed),
		IsPublic:     true,
		CreatedAt:    time.Now(),
	}
	created, err := h.Store.CreateUser(r.Context(), user)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			writeError(w, http.StatusConflict, "Email or username already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not save user")
		return
	}

	h.setSessionCookie(w, created.ID)
	_ = jsonResponse(w, http.StatusOK, map[string]any{"user": created})
}

// Login handles POST /api/auth/login. Accepts email or username.
func (h Handler) Login(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	login := normalizeLogin(payload.EmailOrUsername)
	if login == "" || payload.Password == "" {
		writeError(w, http.StatusBadRequest, "emailOrUsername and password are required")
		return
	}

	user, err := h.Store.GetUserByLogin(r.Context(), login)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.setSessionCookie(w, user.ID)
	_ = jsonResponse(w, http.StatusOK, map[string]any{"user": user})
}

// Logout handles POST /api/auth/logout.
func (h Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	cookie := h.Sessions.expiredCookie()
	http.SetCookie(w, &cookie)
	_ = jsonResponse(w, http.StatusOK, map[string]any{"ok": true})
}

// Me handles GET /api/auth/me. Anonymous sessions get {"user": null}, not 401,
// so the client can probe for a restorable session without error handling.
func (h Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		_ = jsonResponse(w, http.StatusOK, map[string]any{"user": nil})
		return
	}
	_ = jsonResponse(w, http.StatusOK, map[string]any{"user": user})
}

// Parse validates a token and returns session claims.
func (sm SessionManager) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, errors.New("invalid token format")
	}
	payload := parts[0]
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return Claims{}, fmt.Errorf("decode signature: %w", err)
	}

	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	if !hmac.Equal(mac.Sum(nil), sig) {
		return Claims{}, errors.New("signature mismatch")
	}

	payloadParts := strings.Split(payload, "|")
	if len(payloadParts) != 2 {
		return Claims{}, errors.New("invalid payload")
	}
	userID := payloadParts[0]
	expUnix, err := strconv.ParseInt(payloadParts[1], 10, 64)
	if err != nil {
		return Claims{}, fmt.Errorf("parse expiry: %w", err)
	}
	return Claims{UserID: userID, ExpiresAt: time.Unix(expUnix, 0)}, nil
}

// Issue builds a signed session token for the given user.
func (sm SessionManager) Issue(userID string) (string, time.Time, error) {
	if len(sm.Secret) == 0 {
		return "", time.Time{}, errors.New("session secret missing")
	}
	expires := time.Now().Add(sm.sessionDuration())
	payload := fmt.Sprintf("%s|%d", userID, expires.Unix())
	mac := hmac.New(sha256.New, sm.Secret)
	mac.Write([]byte(payload))
	sig := mac.Sum(nil)
	token := payload + "." + base64.RawURLEncoding.EncodeToString(sig)
	return token, expires, nil
}

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, user storage.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext extracts the authenticated user from context if present.
func UserFromContext(ctx context.Context) (storage.User, bool) {
	user, ok := ctx.Value(userContextKey).(storage.User)
	return user, ok
}

func (h Handler) setSessionCookie(w http.ResponseWriter, userID string) {
	token, exp, err := h.Sessions.Issue(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	cookie := h.Sessions.cookie(token, exp)
	http.SetCookie(w, &cookie)
}

func (sm SessionManager) cookie(token string, expires time.Time) http.Cookie {
	return http.Cookie{
		Name:     sm.cookieName(),
		Value:    token,
		Path:     "/",
		Expires:  expires,
		MaxAge:   int(time.Until(expires).Seconds()),
		HttpOnly: true,
		SameSite: sm.sameSite(),
		Secure:   sm.SecureCookie,
	}
}

func (sm SessionManager) expiredCookie() http.Cookie {
	return http.Cookie{
		Name:     sm.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: sm.sameSite(),
		Secure:   sm.SecureCookie,
	}
}

// sameSite is None for secure cross-origin cookies (frontend and API live on
// different subdomains in production), Lax otherwise since None requires Secure.
func (sm SessionManager) sameSite() http.SameSite {
	if sm.SecureCookie {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (sm SessionManager) cookieName() string {
	if sm.CookieName != "" {
		return sm.CookieName
	}
	return "toptry_session"
}

func (sm SessionManager) sessionDuration() time.Duration {
	if sm.Duration <= 0 {
		return 20 * time.Minute
	}
	return sm.Duration
}

func normalizeLogin(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
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
