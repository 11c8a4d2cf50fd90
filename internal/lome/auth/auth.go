// Package auth issues and verifies session tokens and carries the signed-in
// user through request contexts.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/longkey1/lome/internal/lome"
)

const (
	// Issuer is set on every token and required on verification.
	Issuer = "lome"
	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 7 * 24 * time.Hour

	// Email domains reserved for development and test personas.
	DevEmailDomain  = "dev.lome-chat.com"
	TestEmailDomain = "test.lome-chat.com"
)

var (
	ErrNoSecret     = errors.New("session secret is not configured (set session_secret or LOME_SESSION_SECRET)")
	ErrInvalidToken = errors.New("invalid session token")
	ErrExpiredToken = errors.New("session token has expired")
)

// Claims are the JWT claims of a session.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates a TokenIssuer. A non-positive ttl means DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for user.
func (i *TokenIssuer) Issue(user lome.User) (string, error) {
	if user.ID == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}

	now := i.now()
	claims := &Claims{
		Email: user.Email,
		Name:  user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    Issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks a token and returns its user.
func (i *TokenIssuer) Verify(token string) (*lome.User, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &lome.User{ID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

type userKey struct{}

// WithUser returns a context carrying user. A nil user marks a request without session.
func WithUser(ctx context.Context, user *lome.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFrom returns the user stored in ctx, or nil.
func UserFrom(ctx context.Context) *lome.User {
	user, _ := ctx.Value(userKey{}).(*lome.User)
	return user
}

// Persona returns the development or test persona for email. The user id is
// derived from the email, so the same persona keeps its conversations across
// tokens.
func Persona(email string) (*lome.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return nil, fmt.Errorf("invalid email: %q", email)
	}
	if domain != DevEmailDomain && domain != TestEmailDomain {
		return nil, fmt.Errorf("persona email must use @%s or @%s (got %q)", DevEmailDomain, TestEmailDomain, email)
	}

	first, size := utf8.DecodeRuneInString(local)
	name := string(unicode.ToUpper(first)) + local[size:]
	return &lome.User{
		ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte("lome:persona:"+email)).String(),
		Email: email,
		Name:  name,
	}, nil
}
