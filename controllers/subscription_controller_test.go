package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stockwatch_backend/middleware"
	"stockwatch_backend/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newControllerTestDB opens an in-memory database with the full schema
func newControllerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// In-memory SQLite is per-connection; keep the pool at one
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigrateStockModels(db))
	require.NoError(t, models.MigrateSubscriptionModels(db))

	for _, email := range []string{"one@example.com", "two@example.com"} {
		user := models.User{Email: email, PasswordHash: "x", IsActive: true}
		require.NoError(t, db.Create(&user).Error)
	}
	return db
}

func seedStocks(t *testing.T, db *gorm.DB, symbols ...string) {
	t.Helper()
	for _, symbol := range symbols {
		stock := models.Stock{
			Symbol:   symbol,
			Name:     symbol + " Inc",
			Exchange: "US",
			Status:   models.StockStatusActive,
		}
		require.NoError(t, db.Create(&stock).Error)
	}
}

// newSubscriptionRouter mounts the subscription routes behind a stub auth
// middleware that injects the given user id
func newSubscriptionRouter(db *gorm.DB, userID uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
	})

	sc := NewSubscriptionController(db)
	router.GET("/subscriptions", sc.GetSubscriptions)
	router.POST("/subscriptions", sc.Subscribe)
	router.DELETE("/subscriptions/:ticker", sc.Unsubscribe)
	return router
}

func postSubscription(router *gin.Engine, ticker string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"ticker":%q}`, ticker)
	req := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestSubscribe_NormalizesTicker(t *testing.T) {
	db := newControllerTestDB(t)
	seedStocks(t, db, "AAPL")
	router := newSubscriptionRouter(db, 1)

	recorder := postSubscription(router, "  aapl ")
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	var stored models.Subscription
	require.NoError(t, db.Where("user_id = ?", 1).First(&stored).Error)
	assert.Equal(t, "AAPL", stored.Ticker, "lowercase input must be stored uppercased")
}

func TestSubscribe_RejectsInvalidTicker(t *testing.T) {
	db := newControllerTestDB(t)
	router := newSubscriptionRouter(db, 1)

	for _, ticker := range []string{"TOOLONG", "AA-PL", ""} {
		recorder := postSubscription(router, ticker)
		assert.Equal(t, http.StatusBadRequest, recorder.Code, "ticker %q", ticker)
	}
}

func TestSubscribe_UnknownTickerNotFound(t *testing.T) {
	db := newControllerTestDB(t)
	router := newSubscriptionRouter(db, 1)

	recorder := postSubscription(router, "AAPL")
	assert.Equal(t, http.StatusNotFound, recorder.Code, "symbol missing from catalog")
}

func TestSubscribe_DuplicateConflicts(t *testing.T) {
	db := newControllerTestDB(t)
	seedStocks(t, db, "AAPL")
	router := newSubscriptionRouter(db, 1)

	require.Equal(t, http.StatusCreated, postSubscription(router, "AAPL").Code)

	recorder := postSubscription(router, "aapl")
	assert.Equal(t, http.StatusConflict, recorder.Code, "same ticker twice must 409")

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSubscribe_LimitReached(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "TSLA", "AMZN", "META", "NVDA"}

	db := newControllerTestDB(t)
	seedStocks(t, db, symbols...)
	router := newSubscriptionRouter(db, 1)

	for _, symbol := range symbols[:models.MaxSubscriptionsPerUser] {
		require.Equal(t, http.StatusCreated, postSubscription(router, symbol).Code)
	}

	recorder := postSubscription(router, symbols[models.MaxSubscriptionsPerUser])
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	var response map[string]any
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.EqualValues(t, models.MaxSubscriptionsPerUser, response["limit"])
}

func TestSubscribe_LimitIsPerUser(t *testing.T) {
	db := newControllerTestDB(t)
	seedStocks(t, db, "AAPL", "MSFT", "TSLA", "AMZN", "META", "NVDA")

	u1 := newSubscriptionRouter(db, 1)
	for _, symbol := range []string{"AAPL", "MSFT", "TSLA", "AMZN", "META"} {
		require.Equal(t, http.StatusCreated, postSubscription(u1, symbol).Code)
	}

	// A full first user must not block a second user
	u2 := newSubscriptionRouter(db, 2)
	assert.Equal(t, http.StatusCreated, postSubscription(u2, "NVDA").Code)
}

func TestUnsubscribe(t *testing.T) {
	db := newControllerTestDB(t)
	seedStocks(t, db, "AAPL")
	router := newSubscriptionRouter(db, 1)
	require.Equal(t, http.StatusCreated, postSubscription(router, "AAPL").Code)

	req := httptest.NewRequest(http.MethodDelete, "/subscriptions/aapl", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusOK, recorder.Code)

	var count int64
	require.NoError(t, db.Model(&models.Subscription{}).Where("user_id = ?", 1).Count(&count).Error)
	assert.Zero(t, count)

	// Deleting again is a 404
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodDelete, "/subscriptions/AAPL", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
