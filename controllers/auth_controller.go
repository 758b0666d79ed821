package controllers

import (
	"net/http"
	"strconv"
	"time"

	"stockwatch_backend/middleware"
	"stockwatch_backend/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// TokenLifetime is how long issued login tokens stay valid
const TokenLifetime = 24 * time.Hour

// AuthController handles registration and login
type AuthController struct {
	db          *gorm.DB
	jwtSecret   string
	rateLimiter *middleware.LoginRateLimiter
}

// NewAuthController creates a new auth controller
func NewAuthController(db *gorm.DB, jwtSecret string, rateLimiter *middleware.LoginRateLimiter) *AuthController {
	return &AuthController{db: db, jwtSecret: jwtSecret, rateLimiter: rateLimiter}
}

// Register creates a new user account
// POST /api/v1/auth/register
func (ac *AuthController) Register(c *gin.Context) {
	var request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		FullName string `json:"full_name"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.User
	if err := ac.db.Where("email = ?", request.Email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	user := models.User{
		Email:    request.Email,
		FullName: request.FullName,
		IsActive: true,
	}
	if err := user.SetPassword(request.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if err := ac.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	token, err := ac.issueToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user, "token": token})
}

// Login authenticates a user and issues a JWT
// POST /api/v1/auth/login
func (ac *AuthController) Login(c *gin.Context) {
	var request struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ip := c.ClientIP()

	var user models.User
	err := ac.db.Where("email = ? AND is_active = ?", request.Email, true).First(&user).Error
	if err != nil || !user.CheckPassword(request.Password) {
		ac.rateLimiter.RecordAttempt(ip, false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	ac.rateLimiter.RecordAttempt(ip, true)

	now := time.Now()
	ac.db.Model(&user).Update("last_login_at", now)

	token, err := ac.issueToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user, "token": token})
}

// issueToken signs a JWT with the user id as subject
func (ac *AuthController) issueToken(userID uint) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(ac.jwtSecret))
}
