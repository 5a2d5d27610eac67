package daemon

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// attachTokenTTL bounds how long a minted attach token is valid. Tokens
// are only minted and checked by callers of IssueAttachToken and
// ValidateAttachToken; Daemon.ListenAndServe does not check one.
const attachTokenTTL = 5 * time.Minute

// AttachClaims identify which daemon session a token authorizes
// attaching to.
type AttachClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// NewAttachSecret returns 32 random bytes suitable as an HMAC signing
// key for one daemon's attach tokens; a token minted with one secret
// never validates against another.
func NewAttachSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("daemon: generate attach secret: %w", err)
	}
	return secret, nil
}

// IssueAttachToken mints a short-lived HS256 token scoped to sessionID.
func IssueAttachToken(secret []byte, sessionID string) (string, error) {
	claims := AttachClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(attachTokenTTL)),
		},
		SessionID: sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("daemon: sign attach token: %w", err)
	}
	return signed, nil
}

// ValidateAttachToken verifies tokenString against secret and checks it
// authorizes attaching to sessionID.
func ValidateAttachToken(secret []byte, tokenString, sessionID string) error {
	token, err := jwt.ParseWithClaims(tokenString, &AttachClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("daemon: parse attach token: %w", err)
	}
	claims, ok := token.Claims.(*AttachClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("daemon: invalid attach token")
	}
	if claims.SessionID != sessionID {
		return fmt.Errorf("daemon: attach token scoped to a different session")
	}
	return nil
}
