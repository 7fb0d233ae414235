package api

import (
	"net/http"
	"strings"

	"github.com/DivyPatel-31/coastwatch/internal/validate"
	"github.com/gin-gonic/gin"
)

// Error responses.
//
//	{"message":"Invalid input","errors":[{"field":"title","message":"Required"}]}
//	{"message":"Failed to fetch alerts"}
type errorBody struct {
	Message string                `json:"message"`
	Errors  []validate.FieldError `json:"errors,omitempty"`
}

func respondErr(c *gin.Context, status int, msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, errorBody{Message: msg})
}

func respondInvalid(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{
		Message: "Invalid input",
		Errors:  validate.Fields(err),
	})
}

// respondFailure attaches err to the request so the access log records it and
// replies with an opaque 500.
func respondFailure(c *gin.Context, msg string, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	respondErr(c, http.StatusInternalServerError, msg)
}

func respondMessage(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// Unauthorized is the signal clients treat as "redirect to login".
func Unauthorized(c *gin.Context) {
	respondErr(c, http.StatusUnauthorized, "Unauthorized")
}

// list keeps empty results encoding as [] instead of null.
func list[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
