package handler

import (
	"errors"
	"net/http"

	"github.com/gamidirohan/Rate-Limiter-and-Monitoring/internal/service"
	"github.com/gin-gonic/gin"
)

type TierHandler struct {
	service *service.TierService
}

func NewTierHandler(service *service.TierService) *TierHandler {
	return &TierHandler{service: service}
}

func (h *TierHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	tiers, err := h.service.List(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, tiers)
}

func (h *TierHandler) Create(c *gin.Context) {
	var req struct {
		Name              string `json:"name" binding:"required"`
		RequestsPerSecond int    `json:"requests_per_second" binding:"required"`
		Burst             int    `json:"burst" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	tier, err := h.service.Create(ctx, req.Name, req.RequestsPerSecond, req.Burst)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTierRate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rate and burst must be positive"})
		case errors.Is(err, service.ErrTierExists):
			c.JSON(http.StatusConflict, gin.H{"error": "A tier with this name already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, tier)
}

func (h *TierHandler) Update(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		Name              *string `json:"name"`
		RequestsPerSecond *int    `json:"requests_per_second"`
		Burst             *int    `json:"burst"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == nil && req.RequestsPerSecond == nil && req.Burst == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	ctx := c.Request.Context()
	tier, err := h.service.Update(ctx, id, req.Name, req.RequestsPerSecond, req.Burst)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTierNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Tier not found"})
		case errors.Is(err, service.ErrInvalidTierRate):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Rate and burst must be positive"})
		case errors.Is(err, service.ErrTierExists):
			c.JSON(http.StatusConflict, gin.H{"error": "A tier with this name already exists"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, tier)
}
