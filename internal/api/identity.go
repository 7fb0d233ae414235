package api

import (
	"strings"

	"github.com/DivyPatel-31/coastwatch/internal/auth"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/gin-gonic/gin"
)

const (
	ctxUserIDKey = "user_id"
	ctxClaimsKey = "auth_claims"
)

// SetIdentity records the verified caller for the handlers that follow.
func SetIdentity(c *gin.Context, claims auth.Claims) {
	c.Set(ctxUserIDKey, claims.Subject)
	c.Set(ctxClaimsKey, claims)
}

func userIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func claimsFromContext(c *gin.Context) (auth.Claims, bool) {
	v, ok := c.Get(ctxClaimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	cl, ok := v.(auth.Claims)
	return cl, ok
}

// UserFromClaims maps the identity provider's profile onto a user row.
// The role is left empty so the store applies its default.
func UserFromClaims(cl auth.Claims) model.User {
	u := model.User{
		ID:              cl.Subject,
		FirstName:       strings.TrimSpace(cl.FirstName),
		LastName:        strings.TrimSpace(cl.LastName),
		ProfileImageURL: strings.TrimSpace(cl.ProfileImageURL),
	}
	if email := strings.TrimSpace(cl.Email); email != "" {
		u.Email = &email
	}
	return u
}
