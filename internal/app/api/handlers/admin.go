package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/internal/app/service/checkout"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	subsvc "github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/response"
	"github.com/fatflowers/paywall/pkg/types"
)

// @Summary      Scan transactions
// @Description  Paginated admin listing of ledger entries with composable filters.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ledger.ScanRequest true "Scan request"
// @Success      200  {object}  handlers.RespScanTransactions
// @Router       /api/v1/admin/transactions/scan [post]
func ApiAdminScanTransactions(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ledger.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.Scan(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

type refundRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	Reason        string `json:"reason"`
}

// @Summary      Refund transaction
// @Description  Refunds a completed one-time transaction through its provider and revokes the grant it funded.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.refundRequest true "Refund request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/transactions/refund [post]
func ApiAdminRefund(svc *ledger.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refundRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		err := svc.ProcessRefund(c.Request.Context(), req.TransactionID, req.Reason)
		if err != nil {
			if errors.Is(err, ledger.ErrTransactionNotFound) || errors.Is(err, ledger.ErrNotRefundable) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type giftRequest struct {
	UserID      string  `json:"user_id" binding:"required"`
	ContentType *string `json:"content_type"`
	ContentID   *string `json:"content_id"`
	PlanID      *string `json:"plan_id"`
	Note        string  `json:"note"`
}

// @Summary      Gift content or a plan
// @Description  Grants a user content access or a subscription through the inner provider, without charging.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.giftRequest true "Gift request"
// @Success      200  {object}  handlers.RespTransaction
// @Router       /api/v1/admin/gift [post]
func ApiAdminGift(svc *checkout.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req giftRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		var ref *types.ContentRef
		if req.ContentType != nil && req.ContentID != nil {
			ref = &types.ContentRef{Type: *req.ContentType, ID: *req.ContentID}
		}

		txn, err := svc.Gift(c.Request.Context(), req.UserID, ref, req.PlanID, req.Note)
		if err != nil {
			if errors.Is(err, subsvc.ErrSubscriptionExists) || errors.Is(err, subsvc.ErrPlanNotFound) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(txn))
	}
}

// @Summary      Save plan
// @Description  Creates or updates a subscription plan.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body models.Plan true "Plan"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/plans [post]
func ApiAdminSavePlan(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var plan models.Plan
		if err := c.ShouldBindJSON(&plan); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := svc.SavePlan(c.Request.Context(), &plan); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// @Summary      List plans
// @Tags         Admin
// @Produce      json
// @Param        include_inactive query bool false "Include deactivated plans"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/plans [get]
func ApiAdminListPlans(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := svc.ListPlans(c.Request.Context(), c.Query("include_inactive") == "true")
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(plans))
	}
}

// @Summary      Save content rule
// @Description  Creates or updates the access rule gating a content item.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body models.PremiumContent true "Content rule"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/content_rules [post]
func ApiAdminSaveContentRule(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rule models.PremiumContent
		if err := c.ShouldBindJSON(&rule); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if err := svc.SaveRule(c.Request.Context(), &rule); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type revokeAccessRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required"`
}

// @Summary      Revoke access grant
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.revokeAccessRequest true "Revoke request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/access/revoke [post]
func ApiAdminRevokeAccess(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req revokeAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		ref := types.ContentRef{Type: req.ContentType, ID: req.ContentID}
		if err := svc.Revoke(c.Request.Context(), req.UserID, ref); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type grantAccessRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	ContentID   string `json:"content_id" binding:"required"`
}

// @Summary      Grant access directly
// @Description  Writes a gift grant without a ledger entry; prefer the gift endpoint for auditable grants.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body handlers.grantAccessRequest true "Grant request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/access/grant [post]
func ApiAdminGrantAccess(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req grantAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		ref := types.ContentRef{Type: req.ContentType, ID: req.ContentID}
		if err := svc.Grant(c.Request.Context(), req.UserID, ref, access.GrantMethodGift, nil, nil); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, ledgerSvc *ledger.Service, checkoutSvc *checkout.Service, subSvc *subsvc.Service, accessSvc *access.Service) {
	r.POST("/transactions/scan", ApiAdminScanTransactions(ledgerSvc))
	r.POST("/transactions/refund", ApiAdminRefund(ledgerSvc))
	r.POST("/gift", ApiAdminGift(checkoutSvc))
	r.POST("/plans", ApiAdminSavePlan(subSvc))
	r.GET("/plans", ApiAdminListPlans(subSvc))
	r.POST("/content_rules", ApiAdminSaveContentRule(accessSvc))
	r.POST("/access/grant", ApiAdminGrantAccess(accessSvc))
	r.POST("/access/revoke", ApiAdminRevokeAccess(accessSvc))
}
