package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity provider's profile for the subject. Only the
// subject is required; the profile fields feed the user upsert on login.
type Claims struct {
	Email           string `json:"email,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	jwt.RegisteredClaims
}

func SignToken(secret []byte, c Claims, expiresAt time.Time) (string, error) {
	if len(secret) == 0 {
		return "", errors.New("missing secret")
	}
	if strings.TrimSpace(c.Subject) == "" {
		return "", errors.New("missing subject")
	}
	c.ExpiresAt = jwt.NewNumericDate(expiresAt.UTC())
	if c.IssuedAt == nil {
		c.IssuedAt = jwt.NewNumericDate(time.Now().UTC())
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(secret)
}

// VerifyToken accepts only HS256 tokens with a subject and an expiry after now.
func VerifyToken(secret []byte, token string, now time.Time) (Claims, bool) {
	token = strings.TrimSpace(token)
	if token == "" || len(secret) == 0 {
		return Claims{}, false
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	var c Claims
	parsed, err := parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) { return secret, nil })
	if err != nil || !parsed.Valid {
		return Claims{}, false
	}
	if strings.TrimSpace(c.Subject) == "" {
		return Claims{}, false
	}
	return c, true
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
