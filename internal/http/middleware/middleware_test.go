package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dispute_triage/backend/internal/models"
)

type usersFake struct {
	user models.User
	ops  bool
	err  error
}

func (f usersFake) GetUser(context.Context, int64) (models.User, error) { return f.user, f.err }
func (f usersFake) IsOpsUser(context.Context, int64) (bool, error) { return f.ops, nil }

func serve(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestIDKeepsIncomingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDHeader)) })

	w := serve(r, map[string]string{RequestIDHeader: "abc"})
	if w.Body.String() != "abc" || w.Header().Get(RequestIDHeader) != "abc" {
		t.Fatalf("request id not propagated: %q", w.Body.String())
	}
	w = serve(r, nil)
	if !strings.HasPrefix(w.Header().Get(RequestIDHeader), "req_") {
		t.Fatalf("expected generated id, got %q", w.Header().Get(RequestIDHeader))
	}
}

func TestAdminKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminKey("k"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if w := serve(r, nil); w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Invalid admin key") {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := serve(r, map[string]string{"X-Admin-Key": "k"}); w.Code != http.StatusNoContent {
		t.Fatalf("expected pass through, got %d", w.Code)
	}

	open := gin.New()
	open.Use(AdminKey(""))
	open.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	if w := serve(open, nil); w.Code != http.StatusNoContent {
		t.Fatalf("empty key must disable the check, got %d", w.Code)
	}
}

func TestIdentifyAndRequireOps(t *testing.T) {
	gin.SetMode(gin.TestMode)
	build := func(users Users) *gin.Engine {
		r := gin.New()
		r.Use(Identify(users), RequireOps())
		r.GET("/", func(c *gin.Context) {
			u, _ := CurrentUser(c)
			c.String(http.StatusOK, u.Username)
		})
		return r
	}

	staff := build(usersFake{user: models.User{ID: 3, Username: "ops_unauth", IsActive: true}, ops: true})
	if w := serve(staff, map[string]string{UserIDHeader: "3"}); w.Code != http.StatusOK || w.Body.String() != "ops_unauth" {
		t.Fatalf("ops user rejected: %d %s", w.Code, w.Body.String())
	}
	if w := serve(staff, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", w.Code)
	}

	customer := build(usersFake{user: models.User{ID: 1, Username: "alice", IsActive: true}})
	if w := serve(customer, map[string]string{UserIDHeader: "1"}); w.Code != http.StatusForbidden {
		t.Fatalf("customer: expected 403, got %d", w.Code)
	}

	broken := build(usersFake{err: errors.New("conn reset")})
	if w := serve(broken, map[string]string{UserIDHeader: "1"}); w.Code != http.StatusInternalServerError {
		t.Fatalf("lookup failure: expected 500, got %d", w.Code)
	}
}
