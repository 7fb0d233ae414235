package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/api"
	"github.com/DivyPatel-31/coastwatch/internal/auth"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequireUser verifies the session token before any handler touches storage
// and upserts the caller the first time a given profile is seen. The token is
// read from the Authorization header, or from ?token= for websocket upgrades.
func RequireUser(secret []byte, s store.Storage, log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	known := newKnownUserCache(10_000, 5*time.Minute)
	return func(c *gin.Context) {
		token := auth.BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = strings.TrimSpace(c.Query("token"))
		}
		if token == "" {
			api.Unauthorized(c)
			return
		}
		claims, ok := auth.VerifyToken(secret, token, time.Now())
		if !ok {
			api.Unauthorized(c)
			return
		}

		fingerprint := profileKey(claims)
		if !known.Get(fingerprint) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			_, err := s.UpsertUser(ctx, api.UserFromClaims(claims))
			cancel()
			if err != nil {
				if errors.Is(err, store.ErrConflict) {
					c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "Email already belongs to another user"})
					return
				}
				log.Warn("upsert user", zap.String("user_id", claims.Subject), zap.Error(err))
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Failed to fetch user"})
				return
			}
			known.Set(fingerprint)
		}

		api.SetIdentity(c, claims)
		c.Next()
	}
}

func profileKey(cl auth.Claims) string {
	return strings.Join([]string{cl.Subject, cl.Email, cl.FirstName, cl.LastName, cl.ProfileImageURL}, "\x00")
}

// knownUserCache remembers profiles already written to storage.
type knownUserCache struct {
	mu        sync.Mutex
	items     map[string]time.Time
	maxItems  int
	ttl       time.Duration
	lastPrune time.Time
}

func newKnownUserCache(maxItems int, ttl time.Duration) *knownUserCache {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &knownUserCache{
		items:    map[string]time.Time{},
		maxItems: maxItems,
		ttl:      ttl,
	}
}

func (c *knownUserCache) Get(key string) bool {
	if c == nil {
		return false
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.items[key]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(c.items, key)
		return false
	}
	return true
}

func (c *knownUserCache) Set(key string) {
	if c == nil {
		return
	}
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = now.Add(c.ttl)

	if len(c.items) <= c.maxItems && now.Sub(c.lastPrune) < time.Minute {
		return
	}
	c.lastPrune = now
	for k, until := range c.items {
		if now.After(until) {
			delete(c.items, k)
		}
	}
	for len(c.items) > c.maxItems {
		for k := range c.items {
			delete(c.items, k)
			break
		}
	}
}
