package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/solidguard/internal/pkg/response"
)

type StoreStatus interface {
	Loaded() bool
	Len() int
	Dimension() int
	Categories() map[string]int
}

type ModelLister interface {
	Models() []string
	DefaultModel() string
}

type HealthHandler struct {
	store  StoreStatus
	models ModelLister
}

func NewHealthHandler(store StoreStatus, models ModelLister) *HealthHandler {
	return &HealthHandler{store: store, models: models}
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{
		"status": "ok",
		"store": gin.H{
			"loaded":     h.store.Loaded(),
			"chunks":     h.store.Len(),
			"dimension":  h.store.Dimension(),
			"categories": h.store.Categories(),
		},
		"models":        h.models.Models(),
		"default_model": h.models.DefaultModel(),
	})
}
