package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/app/service/webhook"
	"github.com/fatflowers/paywall/internal/platform/provider/apple"
	"github.com/fatflowers/paywall/internal/platform/provider/paypal"
	"github.com/fatflowers/paywall/internal/platform/provider/stripe"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/response"
)

// @Summary      Stripe Webhook
// @Description  Receives Stripe events. The Stripe-Signature header must verify against the configured endpoint secret.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhook/stripe [post]
func ApiStripeWebhook(cfg *config.Config, rec *webhook.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		sig := c.GetHeader("Stripe-Signature")
		if err := stripe.VerifySignature(body, sig, cfg.Stripe.WebhookSecret,
			stripe.DefaultSignatureTolerance, time.Now()); err != nil {
			logctx.FromCtx(c, log).Warnw("webhook_stripe_bad_signature", "error", err.Error())
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
			return
		}

		ev, err := webhook.ParseStripe(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		deliver(c, rec, ev)
	}
}

// @Summary      PayPal Webhook
// @Description  Receives PayPal events, verified through the verify-webhook-signature API.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhook/paypal [post]
func ApiPayPalWebhook(pp *paypal.Client, rec *webhook.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		if err := pp.VerifyWebhookSignature(c.Request.Context(), c.Request.Header, body); err != nil {
			logctx.FromCtx(c, log).Warnw("webhook_paypal_bad_signature", "error", err.Error())
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signature"))
			return
		}

		ev, err := webhook.ParsePayPal(body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		deliver(c, rec, ev)
	}
}

// @Summary      Apple Webhook
// @Description  Handles App Store Server Notifications V2. The body carries a signed JWS payload.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /webhook/apple [post]
func ApiAppleWebhook(cfg *config.Config, rec *webhook.Reconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		var req apple.NotificationRequest
		if err := json.Unmarshal(body, &req); err != nil || req.SignedPayload == "" {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing signedPayload"))
			return
		}

		n, err := apple.ParseNotification(req.SignedPayload)
		if err != nil {
			logctx.FromCtx(c, log).Warnw("webhook_apple_bad_signature", "error", err.Error())
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid signed payload"))
			return
		}
		if !n.IsTestNotification && n.Payload.Data.BundleID != cfg.AppleIAP.BundleID {
			c.JSON(http.StatusUnauthorized, response.ErrorT[any](response.APIResponseCodeBadRequest, "bundle mismatch"))
			return
		}

		deliver(c, rec, webhook.MapAppleNotification(n, body))
	}
}

func deliver(c *gin.Context, rec *webhook.Reconciler, ev *webhook.Event) {
	if _, err := rec.Process(c.Request.Context(), ev); err != nil {
		// non-2xx so the provider redelivers; the log row already records the
		// failure
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.OKT[any](nil))
}

func RegisterWebhookRoutes(r gin.IRouter, cfg *config.Config, pp *paypal.Client, rec *webhook.Reconciler, log *zap.SugaredLogger) {
	r.POST("/stripe", ApiStripeWebhook(cfg, rec, log))
	r.POST("/paypal", ApiPayPalWebhook(pp, rec, log))
	r.POST("/apple", ApiAppleWebhook(cfg, rec, log))
}
