// Package api exposes the password policy as a stateless JSON API.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/pwcheck/internal/policy"
	"github.com/jwalitptl/pwcheck/internal/service/check"
	"github.com/jwalitptl/pwcheck/pkg/errors"
	"github.com/jwalitptl/pwcheck/pkg/httputil"
)

type Handler struct {
	svc *check.Service
}

func NewHandler(svc *check.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/policy", h.Policy)
	r.POST("/validate", h.Validate)
}

type PolicyResponse struct {
	MinLength    int           `json:"min_length"`
	SpecialChars string        `json:"special_chars"`
	Rules        []policy.Rule `json:"rules"`
}

type ValidateRequest struct {
	Password *string `json:"password" binding:"required"`
}

func (h *Handler) Policy(c *gin.Context) {
	httputil.RespondWithSuccess(c, PolicyResponse{
		MinLength:    policy.MinLength,
		SpecialChars: policy.SpecialChars,
		Rules:        policy.Rules(),
	})
}

// Validate checks a password against the policy. It never hashes and never
// reads or writes session state.
func (h *Handler) Validate(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, errors.BadRequest("invalid request body", err))
		return
	}

	httputil.RespondWithSuccess(c, h.svc.Validate(*req.Password))
}
