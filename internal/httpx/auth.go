package httpx

import (
	"context"
	"errors"
	"fmt"
	"github.com/golang-jwt/jwt/v5"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	RoleAdmin = "admin"
	RoleBuyer = "buyer"
)

type Identity struct {
	UserID int64
	Role   string
}

func (id Identity) Admin() bool { return id.Role == RoleAdmin }

// may reports whether id acts for userID: itself, or any user when admin.
func (id Identity) may(userID int64) bool { return id.Admin() || id.UserID == userID }

type ctxKey struct{}

func identityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// IssueToken signs an HS256 token carrying sub and role.
func IssueToken(secret string, userID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (Identity, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return Identity{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, errors.New("invalid claims")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return Identity{}, err
	}
	uid, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("subject %q is not a user id", sub)
	}
	role, _ := claims["role"].(string)
	if role != RoleAdmin && role != RoleBuyer {
		return Identity{}, fmt.Errorf("unknown role %q", role)
	}
	return Identity{UserID: uid, Role: role}, nil
}

// Authenticate rejects requests without a valid bearer token and puts the
// caller's identity into the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, response{Reason: "missing bearer token"})
				return
			}
			id, err := parseToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, response{Reason: "invalid token"})
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
		})
	}
}

// RequireAdmin must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := identityFrom(r.Context()); !ok || !id.Admin() {
			writeJSON(w, http.StatusForbidden, response{Reason: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
