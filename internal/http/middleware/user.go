package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dispute_triage/backend/internal/db"
	"github.com/dispute_triage/backend/internal/models"
)

const (
	UserIDHeader = "X-User-Id"

	userKey  = "current_user"
	isOpsKey = "current_user_is_ops"
)

type Users interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	IsOpsUser(ctx context.Context, userID int64) (bool, error)
}

// Identify resolves the X-User-Id header to a user. Requests without the
// header pass through anonymously; a header naming no active user is rejected.
func Identify(users Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			c.Next()
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid user id")
			return
		}
		u, err := users.GetUser(c.Request.Context(), id)
		if errors.Is(err, db.ErrNotFound) || (err == nil && !u.IsActive) {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unknown user")
			return
		}
		if err != nil {
			abort(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load user")
			return
		}
		ops, err := users.IsOpsUser(c.Request.Context(), id)
		if err != nil {
			abort(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load user groups")
			return
		}
		c.Set(userKey, u)
		c.Set(isOpsKey, ops)
		c.Next()
	}
}

func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-Id header required")
			return
		}
		c.Next()
	}
}

// RequireOps admits staff and members of the ops group.
func RequireOps() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			abort(c, http.StatusUnauthorized, "UNAUTHORIZED", "X-User-Id header required")
			return
		}
		if !IsOps(c) {
			abort(c, http.StatusForbidden, "FORBIDDEN", "Ops access required")
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	u, ok := v.(models.User)
	return u, ok
}

func IsOps(c *gin.Context) bool {
	return c.GetBool(isOpsKey)
}
