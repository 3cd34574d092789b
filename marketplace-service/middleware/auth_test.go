package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"agromart/marketplace-service/apperr"
	"agromart/marketplace-service/auth"
	"agromart/marketplace-service/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type validatorFunc func(ctx context.Context, raw string) (auth.Actor, error)

func (f validatorFunc) Validate(ctx context.Context, raw string) (auth.Actor, error) { return f(ctx, raw) }

func setupRouter(t *testing.T, v SessionValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Authenticate(v, zaptest.NewLogger(t)))
	router.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, ActorFrom(c).UserID)
	})
	router.GET("/admin", RequireRole(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	router.GET("/sellers", RequireRole(models.RoleFarmer, models.RoleIndustry), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return router
}

func get(router *gin.Engine, path, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	router := setupRouter(t, validatorFunc(func(_ context.Context, raw string) (auth.Actor, error) {
		switch raw {
		case "good":
			return auth.Actor{UserID: "u1", Role: models.RoleBuyer}, nil
		case "broken":
			return auth.Actor{}, errors.New("redis down")
		}
		return auth.Actor{}, apperr.ErrUnauthorized
	}))

	tests := []struct {
		header string
		code   int
		body   string
	}{
		{"Bearer good", http.StatusOK, "u1"},
		{"bearer good", http.StatusOK, "u1"},
		{"", http.StatusUnauthorized, ""},
		{"Basic good", http.StatusUnauthorized, ""},
		{"Bearer bad", http.StatusUnauthorized, ""},
		{"Bearer broken", http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		w := get(router, "/me", tt.header)
		if w.Code != tt.code {
			t.Errorf("%q: expected status %d, got %d", tt.header, tt.code, w.Code)
		}
		if tt.body != "" && w.Body.String() != tt.body {
			t.Errorf("%q: expected body %q, got %q", tt.header, tt.body, w.Body.String())
		}
	}
}

func TestRequireRole(t *testing.T) {
	actors := map[string]auth.Actor{
		"buyer":  {UserID: "u1", Role: models.RoleBuyer},
		"farmer": {UserID: "u2", Role: models.RoleFarmer},
		"admin":  {UserID: "u3", Role: models.RoleAdmin},
	}
	router := setupRouter(t, validatorFunc(func(_ context.Context, raw string) (auth.Actor, error) {
		return actors[raw], nil
	}))

	tests := []struct {
		token, path string
		code        int
	}{
		{"buyer", "/admin", http.StatusForbidden},
		{"farmer", "/admin", http.StatusForbidden},
		{"admin", "/admin", http.StatusNoContent},
		{"buyer", "/sellers", http.StatusForbidden},
		{"farmer", "/sellers", http.StatusNoContent},
		{"admin", "/sellers", http.StatusNoContent},
	}
	for _, tt := range tests {
		w := get(router, tt.path, "Bearer "+tt.token)
		if w.Code != tt.code {
			t.Errorf("%s on %s: expected status %d, got %d", tt.token, tt.path, tt.code, w.Code)
		}
	}
}
