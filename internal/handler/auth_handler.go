package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/solidguard/internal/pkg/errcode"
	"github.com/xxxsen/solidguard/internal/pkg/response"
	"github.com/xxxsen/solidguard/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type tokenRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Password == "" {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}
