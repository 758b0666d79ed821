package controllers

import (
	"net/http"

	"stockwatch_backend/middleware"
	"stockwatch_backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// SubscriptionController handles ticker subscription requests
type SubscriptionController struct {
	db *gorm.DB
}

// NewSubscriptionController creates a new subscription controller
func NewSubscriptionController(db *gorm.DB) *SubscriptionController {
	return &SubscriptionController{db: db}
}

// GetSubscriptions returns the current user's subscriptions
// GET /api/v1/subscriptions
func (sc *SubscriptionController) GetSubscriptions(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var subscriptions []models.Subscription
	if err := sc.db.Where("user_id = ?", userID).Order("created_at").Find(&subscriptions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscriptions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":  subscriptions,
		"limit": models.MaxSubscriptionsPerUser,
	})
}

// Subscribe adds a ticker to the current user's subscriptions
// POST /api/v1/subscriptions
func (sc *SubscriptionController) Subscribe(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		Ticker string `json:"ticker" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ticker := models.NormalizeTicker(request.Ticker)
	if !models.IsValidTicker(ticker) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ticker symbol"})
		return
	}

	// Ticker must exist in the active catalog
	var stock models.Stock
	err := sc.db.Where("symbol = ? AND status = ?", ticker, models.StockStatusActive).First(&stock).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown ticker"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up ticker"})
		return
	}

	var existing models.Subscription
	if err := sc.db.Where("user_id = ? AND ticker = ?", userID, ticker).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already subscribed to " + ticker})
		return
	}

	var count int64
	if err := sc.db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count subscriptions"})
		return
	}
	if count >= models.MaxSubscriptionsPerUser {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": "Subscription limit reached",
			"limit": models.MaxSubscriptionsPerUser,
		})
		return
	}

	subscription := models.Subscription{UserID: userID, Ticker: ticker}
	if err := sc.db.Create(&subscription).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": subscription})
}

// Unsubscribe removes a ticker from the current user's subscriptions
// DELETE /api/v1/subscriptions/:ticker
func (sc *SubscriptionController) Unsubscribe(c *gin.Context) {
	userID, ok := middleware.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ticker := models.NormalizeTicker(c.Param("ticker"))

	result := sc.db.Where("user_id = ? AND ticker = ?", userID, ticker).Delete(&models.Subscription{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not subscribed to " + ticker})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed from " + ticker})
}
