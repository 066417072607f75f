package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/pkg/config"
)

func registeredRoutes(r *gin.Engine) map[string]bool {
	out := map[string]bool{}
	for _, rt := range r.Routes() {
		out[rt.Method+" "+rt.Path] = true
	}
	return out
}

func TestRegisterUserRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1")
	RegisterCheckoutRoutes(g, nil, nil, nil)
	RegisterAccessRoutes(g, nil)
	RegisterSubscriptionRoutes(g, nil)

	routes := registeredRoutes(r)
	for _, want := range []string{
		"POST /api/v1/checkout/one_time",
		"POST /api/v1/checkout/subscribe",
		"POST /api/v1/checkout/apple/receipt",
		"GET /api/v1/transactions/:id",
		"GET /api/v1/transactions",
		"GET /api/v1/invoices",
		"GET /api/v1/access/check",
		"GET /api/v1/subscription",
		"POST /api/v1/subscription/cancel",
		"POST /api/v1/subscription/change_plan",
	} {
		require.True(t, routes[want], want)
	}
}

func TestRegisterWebhookRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/webhook")
	RegisterWebhookRoutes(g, &config.Config{}, nil, nil, zap.NewNop().Sugar())

	routes := registeredRoutes(r)
	require.True(t, routes["POST /webhook/stripe"])
	require.True(t, routes["POST /webhook/paypal"])
	require.True(t, routes["POST /webhook/apple"])
}

func TestRegisterAdminRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	g := r.Group("/api/v1/admin")
	RegisterAdminRoutes(g, nil, nil, nil, nil)

	routes := registeredRoutes(r)
	for _, want := range []string{
		"POST /api/v1/admin/transactions/scan",
		"POST /api/v1/admin/transactions/refund",
		"POST /api/v1/admin/gift",
		"POST /api/v1/admin/plans",
		"GET /api/v1/admin/plans",
		"POST /api/v1/admin/content_rules",
		"POST /api/v1/admin/access/grant",
		"POST /api/v1/admin/access/revoke",
	} {
		require.True(t, routes[want], want)
	}
}
