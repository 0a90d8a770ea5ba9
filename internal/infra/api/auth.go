package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// AgentClaims binds a bearer token to one agent through its subject.
type AgentClaims struct {
	jwt.RegisteredClaims
}

type AuthManager struct {
	secret []byte
	ttl    time.Duration
}

// NewAuthManager returns nil when secret is empty so callers can treat
// "no auth configured" as a nil manager.
func NewAuthManager(secret string, ttl time.Duration) *AuthManager {
	if secret == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &AuthManager{secret: []byte(secret), ttl: ttl}
}

// Mint signs an HS256 token for agentID.
func (a *AuthManager) Mint(agentID string) (string, error) {
	if agentID == "" {
		return "", errors.New("agent id required")
	}
	now := time.Now()
	claims := AgentClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			Subject:   agentID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *AuthManager) HasToken(r *http.Request) bool {
	_, ok := bearer(r)
	return ok
}

func (a *AuthManager) ParseFromRequest(r *http.Request) (*AgentClaims, error) {
	tok, ok := bearer(r)
	if !ok {
		return nil, errMissingToken
	}
	return a.parse(tok)
}

func (a *AuthManager) parse(tok string) (*AgentClaims, error) {
	claims := &AgentClaims{}
	tkn, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tkn.Valid || claims.Subject == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// Authorization: Bearer <jwt>
func bearer(r *http.Request) (string, bool) {
	hdr := r.Header.Get("Authorization")
	if len(hdr) < 7 || !strings.EqualFold(hdr[:7], "bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(hdr[7:])
	return tok, tok != ""
}
