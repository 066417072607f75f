package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/paywall/internal/app/service/checkout"
	"github.com/fatflowers/paywall/internal/app/service/invoice"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/pkg/response"
	"github.com/fatflowers/paywall/pkg/types"
)

type oneTimeCheckoutRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required"`
	Provider    string `json:"provider" binding:"required"`
	CouponCode  string `json:"coupon_code"`
	Email       string `json:"email"`
	Country     string `json:"country"`
}

// @Summary      One-time checkout
// @Description  Opens a pending transaction for a one-time content purchase and returns the provider payment handle.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body handlers.oneTimeCheckoutRequest true "Checkout request"
// @Success      200  {object}  handlers.RespOneTimeCheckout
// @Router       /api/v1/checkout/one_time [post]
func ApiCheckoutOneTime(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req oneTimeCheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.OneTime(c.Request.Context(), &checkout.OneTimeRequest{
			UserID:     req.UserID,
			ContentRef: types.ContentRef{Type: req.ContentType, ID: req.ContentID},
			Provider:   types.PaymentProvider(req.Provider),
			CouponCode: req.CouponCode,
			Email:      req.Email,
			Country:    req.Country,
		})
		if err != nil {
			if errors.Is(err, checkout.ErrContentNotPurchasable) ||
				errors.Is(err, checkout.ErrAlreadyOwned) ||
				errors.Is(err, checkout.ErrInvalidCoupon) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type subscribeRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	PlanID         string `json:"plan_id" binding:"required"`
	Provider       string `json:"provider" binding:"required"`
	ProviderPlanID string `json:"provider_plan_id"`
	Email          string `json:"email"`
	Country        string `json:"country"`
}

// @Summary      Subscription checkout
// @Description  Starts a subscription on the chosen provider and opens the pending first-charge transaction.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body handlers.subscribeRequest true "Subscribe request"
// @Success      200  {object}  handlers.RespSubscribe
// @Router       /api/v1/checkout/subscribe [post]
func ApiCheckoutSubscribe(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.Subscribe(c.Request.Context(), &checkout.SubscribeRequest{
			UserID:         req.UserID,
			PlanID:         req.PlanID,
			Provider:       types.PaymentProvider(req.Provider),
			ProviderPlanID: req.ProviderPlanID,
			Email:          req.Email,
			Country:        req.Country,
		})
		if err != nil {
			if errors.Is(err, subscription.ErrSubscriptionExists) ||
				errors.Is(err, subscription.ErrPlanNotFound) ||
				errors.Is(err, subscription.ErrPlanInactive) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type appleReceiptRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ReceiptData string `json:"receipt_data" binding:"required"`
}

// @Summary      Redeem App Store receipt
// @Description  Verifies a store receipt and registers the subscription it attests for the user.
// @Tags         Checkout
// @Accept       json
// @Produce      json
// @Param        request body handlers.appleReceiptRequest true "Receipt"
// @Success      200  {object}  handlers.RespAppleReceipt
// @Router       /api/v1/checkout/apple/receipt [post]
func ApiCheckoutAppleReceipt(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req appleReceiptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		res, err := svc.RedeemAppleReceipt(c.Request.Context(), &checkout.AppleReceiptRequest{
			UserID:      req.UserID,
			ReceiptData: req.ReceiptData,
		})
		if err != nil {
			if errors.Is(err, checkout.ErrReceiptMismatch) ||
				errors.Is(err, checkout.ErrEmptyReceipt) ||
				errors.Is(err, subscription.ErrPlanNotFound) ||
				errors.Is(err, subscription.ErrSubscriptionExists) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Transaction status
// @Description  Returns one transaction; used by the frontend to poll a pending checkout.
// @Tags         Checkout
// @Produce      json
// @Param        id path string true "Transaction id"
// @Success      200  {object}  handlers.RespTransaction
// @Router       /api/v1/transactions/{id} [get]
func ApiGetTransaction(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		txn, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			if errors.Is(err, ledger.ErrTransactionNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

// @Summary      List user transactions
// @Tags         Checkout
// @Produce      json
// @Param        user_id query string true "User id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/transactions [get]
func ApiListTransactions(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id required"))
			return
		}
		rows, err := svc.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

// @Summary      List user invoices
// @Tags         Invoice
// @Produce      json
// @Param        user_id query string true "User id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/invoices [get]
func ApiListInvoices(svc *invoice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id required"))
			return
		}
		rows, err := svc.ListForUser(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(rows))
	}
}

func RegisterCheckoutRoutes(r gin.IRouter, svc *checkout.Service, ledgerSvc *ledger.Service, invoiceSvc *invoice.Service) {
	r.POST("/checkout/one_time", ApiCheckoutOneTime(svc))
	r.POST("/checkout/subscribe", ApiCheckoutSubscribe(svc))
	r.POST("/checkout/apple/receipt", ApiCheckoutAppleReceipt(svc))
	r.GET("/transactions/:id", ApiGetTransaction(ledgerSvc))
	r.GET("/transactions", ApiListTransactions(ledgerSvc))
	r.GET("/invoices", ApiListInvoices(invoiceSvc))
}
