package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/labeld/internal/dataset"
	"github.com/mind-engage/labeld/internal/rbac"
	"github.com/mind-engage/labeld/internal/session"
)

type AuthService struct {
	hmac []byte
	ttl  time.Duration
}

func NewAuthService(secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &AuthService{hmac: []byte(secret), ttl: ttl}
}

type Claims struct {
	Sub  string `json:"sub"`
	Role string `json:"role"` // "annotator" or "admin"
	Sid  string `json:"sid"`  // session id in the session store
	jwt.RegisteredClaims
}

func (a *AuthService) IssueJWT(sub, role, sid string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Sub:  sub,
		Role: role,
		Sid:  sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "labeld",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(a.hmac)
}

func (a *AuthService) Parse(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.hmac, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || c.Sid == "" {
		return nil, errors.New("invalid token")
	}
	return c, nil
}

// RoleFor maps a backend user onto a labeld role.
func RoleFor(u dataset.User) string {
	if u.IsAdmin() {
		return rbac.RoleAdmin
	}
	return rbac.RoleAnnotator
}

// Sessions is the part of the session store the middleware needs.
type Sessions interface {
	Create(ctx context.Context, u dataset.User, upstreamToken string) (session.Record, error)
	Get(ctx context.Context, id string) (session.Record, error)
}

// Open stores a session for u and returns a signed token for it.
func (a *AuthService) Open(ctx context.Context, store Sessions, u dataset.User, upstreamToken string) (string, session.Record, error) {
	rec, err := store.Create(ctx, u, upstreamToken)
	if err != nil {
		return "", session.Record{}, err
	}
	tok, err := a.IssueJWT(u.ID, RoleFor(u), rec.ID)
	if err != nil {
		return "", session.Record{}, fmt.Errorf("issue token: %w", err)
	}
	return tok, rec, nil
}

// JWTMiddleware verifies the bearer token, loads its session and puts the
// subject, role and session into the request context. The role comes from
// the stored session, not the token.
func JWTMiddleware(a *AuthService, store Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			c, err := a.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			rec, err := store.Get(r.Context(), c.Sid)
			switch {
			case errors.Is(err, session.ErrNotFound):
				http.Error(w, "session expired", http.StatusUnauthorized)
				return
			case err != nil:
				slog.Error("failed to load session", "error", err, "sid", c.Sid)
				http.Error(w, "session lookup failed", http.StatusInternalServerError)
				return
			}
			ctx := WithSubject(r.Context(), rec.User.ID)
			ctx = WithSession(ctx, rec)
			ctx = rbac.WithRole(ctx, RoleFor(rec.User))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LocalLoginConfig is the offline admin account.
type LocalLoginConfig struct {
	Enabled       bool
	AdminUser     string
	AdminPassHash string // bcrypt
}

// POST /auth/local-login  { "username": "...", "password": "..." }
//
// Signs in the configured admin without the backend, so the wizard works
// offline.
func LocalLoginHandler(a *AuthService, store Sessions, cfg LocalLoginConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !cfg.Enabled {
			http.Error(w, "local auth disabled", http.StatusForbidden)
			return
		}
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.Username != cfg.AdminUser ||
			bcrypt.CompareHashAndPassword([]byte(cfg.AdminPassHash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		u := dataset.User{ID: "local:" + req.Username, Username: req.Username, Role: dataset.RoleAdmin}
		tok, _, err := a.Open(r.Context(), store, u, "")
		if err != nil {
			slog.Error("failed to open local session", "error", err)
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"token": tok, "user": u})
	}
}
