package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/solidguard/internal/model"
	"github.com/xxxsen/solidguard/internal/pkg/errcode"
	"github.com/xxxsen/solidguard/internal/pkg/response"
	"github.com/xxxsen/solidguard/internal/report"
	"github.com/xxxsen/solidguard/internal/service"
)

type ClassifyHandler struct {
	classify *service.ClassifyService
}

func NewClassifyHandler(classify *service.ClassifyService) *ClassifyHandler {
	return &ClassifyHandler{classify: classify}
}

type classifyRequest struct {
	ContractText string `json:"contract_text"`
	ContractID   string `json:"contract_id"`
	Mode         string `json:"mode"`
	Model        string `json:"model"`
	K            int    `json:"k"`
}

func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Mode == "" {
		req.Mode = string(model.ModeRaw)
	}
	out, err := h.classify.Classify(c.Request.Context(), &model.ClassifyRequest{
		ContractID:   req.ContractID,
		ContractText: req.ContractText,
		Mode:         model.Mode(req.Mode),
		Model:        req.Model,
		K:            req.K,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, out)
}

func (h *ClassifyHandler) Get(c *gin.Context) {
	rec, result, err := h.classify.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"id":          rec.ID,
		"contract_id": rec.ContractID,
		"mode":        rec.Mode,
		"model":       rec.Model,
		"valid":       rec.Valid,
		"errors":      rec.Errors,
		"ctime":       rec.Ctime,
		"result":      result,
	})
}

// Report serves an archived classification as HTML, or as markdown with
// ?format=md.
func (h *ClassifyHandler) Report(c *gin.Context) {
	_, result, err := h.classify.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	md := report.Markdown(result, "")
	if c.Query("format") == "md" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
		return
	}
	html, err := report.HTML(md)
	if err != nil {
		handleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
