package controllers

import (
	"net/http"
	"time"

	"stockwatch_backend/services"

	"github.com/gin-gonic/gin"
)

// StatusController reports live broadcast state
type StatusController struct {
	hub      *services.Hub
	currency *services.CurrencyService
}

// NewStatusController creates a new status controller
func NewStatusController(hub *services.Hub, currency *services.CurrencyService) *StatusController {
	return &StatusController{hub: hub, currency: currency}
}

// GetStatus returns connection counts and the exchange-rate cache state
// GET /api/v1/status
func (sc *StatusController) GetStatus(c *gin.Context) {
	rate, fetchedAt, valid := sc.currency.CachedRateInfo()

	currency := gin.H{"cached": false}
	if !fetchedAt.IsZero() {
		currency = gin.H{
			"cached":     true,
			"rate":       rate,
			"fetched_at": fetchedAt.Format(time.RFC3339),
			"valid":      valid,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"clients":  sc.hub.ClientCount(),
		"users":    sc.hub.UserCount(),
		"currency": currency,
	})
}
