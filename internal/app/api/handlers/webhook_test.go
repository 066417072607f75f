package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/pkg/config"
)

func TestApiStripeWebhook_RejectsBadSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = "whsec_test"

	r := gin.New()
	r.POST("/webhook/stripe", ApiStripeWebhook(cfg, nil, zap.NewNop().Sugar()))

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApiStripeWebhook_RejectsMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}
	cfg.Stripe.WebhookSecret = "whsec_test"

	body := []byte(`not json`)
	now := time.Now()
	mac := hmac.New(sha256.New, []byte(cfg.Stripe.WebhookSecret))
	fmt.Fprintf(mac, "%d.%s", now.Unix(), body)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(mac.Sum(nil)))

	r := gin.New()
	r.POST("/webhook/stripe", ApiStripeWebhook(cfg, nil, zap.NewNop().Sugar()))

	req := httptest.NewRequest(http.MethodPost, "/webhook/stripe", bytes.NewBuffer(body))
	req.Header.Set("Stripe-Signature", header)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiAppleWebhook_RejectsMissingPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}

	r := gin.New()
	r.POST("/webhook/apple", ApiAppleWebhook(cfg, nil, zap.NewNop().Sugar()))

	req := httptest.NewRequest(http.MethodPost, "/webhook/apple", bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiAppleWebhook_RejectsUnverifiablePayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{}

	r := gin.New()
	r.POST("/webhook/apple", ApiAppleWebhook(cfg, nil, zap.NewNop().Sugar()))

	req := httptest.NewRequest(http.MethodPost, "/webhook/apple",
		bytes.NewBufferString(`{"signedPayload":"not.a.jws"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}
