package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/pkg/config"
)

func adminTestRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.AdminAuth.JWTSecret = secret

	r := gin.New()
	g := r.Group("/admin")
	g.Use(AdminAuthMiddleware(cfg))
	g.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestAdminAuthMiddleware_ValidToken(t *testing.T) {
	r := adminTestRouter("test-secret")

	token, err := MintAdminToken("test-secret", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuthMiddleware_MissingToken(t *testing.T) {
	r := adminTestRouter("test-secret")

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthMiddleware_WrongSecret(t *testing.T) {
	r := adminTestRouter("test-secret")

	token, err := MintAdminToken("other-secret", time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminAuthMiddleware_ExpiredToken(t *testing.T) {
	r := adminTestRouter("test-secret")

	token, err := MintAdminToken("test-secret", -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
