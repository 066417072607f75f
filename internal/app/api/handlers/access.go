package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fatflowers/paywall/internal/app/service/access"
	"github.com/fatflowers/paywall/pkg/response"
	"github.com/fatflowers/paywall/pkg/types"
)

type accessCheckResponse struct {
	Allowed bool `json:"allowed"`
	// PreviewPolicy is the content's fallback presentation when access is
	// denied, empty when the content is ungated.
	PreviewPolicy string `json:"preview_policy,omitempty"`
}

// @Summary      Access check
// @Description  Answers whether a user may access a content item right now.
// @Tags         Access
// @Produce      json
// @Param        user_id query string true "User id"
// @Param        content_type query string true "Content type"
// @Param        content_id query string true "Content id"
// @Success      200  {object}  handlers.RespAccessCheck
// @Router       /api/v1/access/check [get]
func ApiAccessCheck(svc *access.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Query("user_id")
		ref := types.ContentRef{Type: c.Query("content_type"), ID: c.Query("content_id")}
		if userID == "" || !ref.Valid() {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "user_id, content_type and content_id required"))
			return
		}

		allowed, err := svc.HasAccess(c.Request.Context(), userID, ref)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		out := accessCheckResponse{Allowed: allowed}
		if !allowed {
			if rule, err := svc.Rule(c.Request.Context(), ref); err == nil && rule != nil {
				out.PreviewPolicy = rule.PreviewPolicy
			}
		}
		c.JSON(http.StatusOK, response.OKT(out))
	}
}

func RegisterAccessRoutes(r gin.IRouter, svc *access.Service) {
	r.GET("/access/check", ApiAccessCheck(svc))
}
