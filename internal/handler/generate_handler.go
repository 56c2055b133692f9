package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/pkg/errcode"
	"github.com/xxxsen/solidguard/internal/pkg/response"
	"github.com/xxxsen/solidguard/internal/service"
)

type GenerateHandler struct {
	generate *service.GenerateService
}

func NewGenerateHandler(generate *service.GenerateService) *GenerateHandler {
	return &GenerateHandler{generate: generate}
}

type generateRequest struct {
	AttackType string `json:"attack_type"`
	ContractID string `json:"contract_id"`
	Model      string `json:"model"`
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	attack := model.AttackType(strings.TrimSpace(req.AttackType))
	out, err := h.generate.Generate(c.Request.Context(), attack, strings.TrimSpace(req.ContractID), req.Model)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}
