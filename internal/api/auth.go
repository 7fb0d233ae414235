package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/auth"
	"github.com/DivyPatel-31/coastwatch/internal/model"
	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
)

func CurrentUserHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		u, err := s.GetUser(ctx, uid)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "User not found")
				return
			}
			respondFailure(c, "Failed to fetch user", err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

// LoginHandler refreshes the caller's profile from the token claims.
func LoginHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		u, err := s.UpsertUser(ctx, UserFromClaims(claims))
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondErr(c, http.StatusConflict, "Email already belongs to another user")
				return
			}
			respondFailure(c, "Failed to log in", err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

type roleInput struct {
	Role model.Role `json:"role" binding:"required,oneof=government ngo fisherfolk"`
}

func UpdateRoleHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}
		var in roleInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		u, err := s.UpdateUserRole(ctx, uid, in.Role)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "User not found")
				return
			}
			respondFailure(c, "Failed to update user role", err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

type devTokenInput struct {
	Subject   string     `json:"sub" binding:"required,max=255"`
	Email     string     `json:"email" binding:"omitempty,email"`
	FirstName string     `json:"firstName" binding:"max=255"`
	LastName  string     `json:"lastName" binding:"max=255"`
	Role      model.Role `json:"role" binding:"omitempty,oneof=government ngo fisherfolk"`
}

// DevTokenHandler mints a session token without an identity provider. It is
// only routed when dev login is enabled.
func DevTokenHandler(s store.Storage, secret []byte, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in devTokenInput
		if err := c.ShouldBindJSON(&in); err != nil {
			respondInvalid(c, err)
			return
		}
		claims := auth.Claims{
			Email:     strings.TrimSpace(in.Email),
			FirstName: strings.TrimSpace(in.FirstName),
			LastName:  strings.TrimSpace(in.LastName),
		}
		claims.Subject = strings.TrimSpace(in.Subject)
		if claims.Subject == "" {
			respondErr(c, http.StatusBadRequest, "Invalid input")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		u, err := s.UpsertUser(ctx, UserFromClaims(claims))
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				respondErr(c, http.StatusConflict, "Email already belongs to another user")
				return
			}
			respondFailure(c, "Failed to create user", err)
			return
		}
		if in.Role != "" && in.Role != u.Role {
			if u, err = s.UpdateUserRole(ctx, u.ID, in.Role); err != nil {
				respondFailure(c, "Failed to update user role", err)
				return
			}
		}

		token, err := auth.SignToken(secret, claims, time.Now().Add(ttl))
		if err != nil {
			respondFailure(c, "Failed to sign token", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": u})
	}
}
