package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/amerhub/amerhub/internal/hub"
)

var (
	ErrNoCredential      = errors.New("no bearer credential provided")
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

// Claims are carried by the bearer credential presented once at
// connection establishment. They are never re-sent per message.
type Claims struct {
	Identity    string
	Role        string
	DisplayName string
}

// Verifier validates bearer credentials with an HMAC-SHA256 shared
// secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a credential verifier.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// VerifyRequest extracts and validates the credential from an upgrade
// request. The token comes from the Authorization header or, for
// browser clients that cannot set WebSocket headers, the token query
// parameter.
func (v *Verifier) VerifyRequest(r *http.Request) (Claims, error) {
	raw := bearerToken(r)
	if raw == "" {
		return Claims{}, ErrNoCredential
	}
	return v.Verify(raw)
}

// Verify validates a raw token: signature, expiry, and role claim.
func (v *Verifier) Verify(raw string) (Claims, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidCredential
	}

	sub, _ := mapClaims["sub"].(string)
	role, _ := mapClaims["role"].(string)
	name, _ := mapClaims["name"].(string)
	if sub == "" || !hub.ValidRole(role) {
		return Claims{}, fmt.Errorf("%w: missing subject or role", ErrInvalidCredential)
	}

	return Claims{Identity: sub, Role: role, DisplayName: name}, nil
}

// Mint signs a credential for an identity. Used by the token CLI
// command and by tests.
func (v *Verifier) Mint(identity, role, displayName string, ttl time.Duration) (string, error) {
	if !hub.ValidRole(role) {
		return "", fmt.Errorf("unknown role %q", role)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  identity,
		"role": role,
		"name": displayName,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString(v.secret)
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return after
		}
	}
	return r.URL.Query().Get("token")
}
