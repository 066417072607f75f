package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	subsvc "github.com/fatflowers/paywall/internal/app/service/subscription"
	"github.com/fatflowers/paywall/pkg/response"
)

// @Summary      Current subscription
// @Description  Returns the user's effective subscription, if any.
// @Tags         Subscription
// @Produce      json
// @Param        user_id query string true "User id"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscription [get]
func ApiGetSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id required"))
			return
		}
		sub, err := svc.ActiveForUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, subsvc.ErrSubscriptionNotFound) {
				c.JSON(http.StatusOK, response.OKT[any](nil))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type cancelSubscriptionRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	SubscriptionID string `json:"subscription_id" binding:"required"`
	Immediately    bool   `json:"immediately"`
	Reason         string `json:"reason"`
}

// @Summary      Cancel subscription
// @Description  Cancels a subscription immediately or at the period end.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body handlers.cancelSubscriptionRequest true "Cancel request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscription/cancel [post]
func ApiCancelSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		sub, err := svc.Get(c.Request.Context(), req.SubscriptionID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if sub.UserID != req.UserID {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "subscription does not belong to user"))
			return
		}

		if err := svc.Cancel(c.Request.Context(), req.SubscriptionID, req.Immediately, req.Reason); err != nil {
			if errors.Is(err, subsvc.ErrInvalidTransition) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

type changePlanRequest struct {
	UserID         string `json:"user_id" binding:"required"`
	SubscriptionID string `json:"subscription_id" binding:"required"`
	PlanID         string `json:"plan_id" binding:"required"`
}

// @Summary      Change plan
// @Description  Moves a subscription to a different plan.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body handlers.changePlanRequest true "Change plan request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscription/change_plan [post]
func ApiChangePlan(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req changePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}

		sub, err := svc.Get(c.Request.Context(), req.SubscriptionID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if sub.UserID != req.UserID {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "subscription does not belong to user"))
			return
		}

		if err := svc.ChangePlan(c.Request.Context(), req.SubscriptionID, req.PlanID); err != nil {
			if errors.Is(err, subsvc.ErrPlanNotFound) ||
				errors.Is(err, subsvc.ErrPlanInactive) ||
				errors.Is(err, subsvc.ErrInvalidTransition) {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
				return
			}
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subsvc.Service) {
	r.GET("/subscription", ApiGetSubscription(svc))
	r.POST("/subscription/cancel", ApiCancelSubscription(svc))
	r.POST("/subscription/change_plan", ApiChangePlan(svc))
}
