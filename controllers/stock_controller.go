package controllers

import (
	"log"
	"net/http"
	"strconv"

	"stockwatch_backend/models"
	"stockwatch_backend/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StockController handles stock catalog requests
type StockController struct {
	db      *gorm.DB
	catalog *services.CatalogService
}

// NewStockController creates a new stock controller
func NewStockController(db *gorm.DB, catalog *services.CatalogService) *StockController {
	return &StockController{db: db, catalog: catalog}
}

// GetStocks returns the stock catalog with pagination
// GET /api/v1/stocks
func (sc *StockController) GetStocks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := sc.db.Model(&models.Stock{}).Where("status = ?", models.StockStatusActive)

	var total int64
	query.Count(&total)

	var stocks []models.Stock
	if err := query.Order("symbol").Limit(limit).Offset(offset).Find(&stocks).Error; err != nil {
		// Serve from the local mirror when Postgres is unavailable
		mirrored, mirrorErr := sc.catalog.LocalCatalog()
		if mirrorErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stocks"})
			return
		}
		log.Printf("Serving catalog from local mirror: %v", err)
		c.JSON(http.StatusOK, gin.H{"data": mirrored, "source": "mirror"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": stocks,
		"pagination": gin.H{
			"page":  page,
			"limit": limit,
			"total": total,
		},
	})
}

// SearchStocks finds catalog entries by symbol or company name
// GET /api/v1/stocks/search?q=
func (sc *StockController) SearchStocks(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'q' is required"})
		return
	}

	symbol := models.NormalizeTicker(query)

	var stocks []models.Stock
	err := sc.db.Where("status = ?", models.StockStatusActive).
		Where("symbol LIKE ? OR name ILIKE ?", symbol+"%", "%"+query+"%").
		Order("symbol").Limit(20).Find(&stocks).Error
	if err != nil {
		// Serve from the local mirror when Postgres is unavailable
		mirrored, mirrorErr := sc.catalog.SearchLocal(query, 20)
		if mirrorErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search stocks"})
			return
		}
		log.Printf("Serving catalog search from local mirror: %v", err)
		c.JSON(http.StatusOK, gin.H{"data": mirrored, "source": "mirror"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stocks})
}

// GetStock returns a single catalog entry by symbol
// GET /api/v1/stocks/:symbol
func (sc *StockController) GetStock(c *gin.Context) {
	symbol := models.NormalizeTicker(c.Param("symbol"))

	var stock models.Stock
	if err := sc.db.Where("symbol = ?", symbol).First(&stock).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Stock not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stock"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stock})
}
