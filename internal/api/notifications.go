package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/DivyPatel-31/coastwatch/internal/store"
	"github.com/gin-gonic/gin"
)

func ListNotificationsHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		rows, err := s.ListNotificationsByUser(ctx, uid)
		if err != nil {
			respondFailure(c, "Failed to fetch notifications", err)
			return
		}
		c.JSON(http.StatusOK, list(rows))
	}
}

// MarkNotificationReadHandler only touches the caller's own notifications;
// anyone else's id is reported as not found.
func MarkNotificationReadHandler(s store.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := userIDFromContext(c)
		if !ok {
			Unauthorized(c)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := s.MarkNotificationRead(ctx, c.Param("id"), uid); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				respondErr(c, http.StatusNotFound, "Notification not found")
				return
			}
			respondFailure(c, "Failed to mark notification as read", err)
			return
		}
		respondMessage(c, "Notification marked as read")
	}
}
