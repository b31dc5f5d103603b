// Package settings exposes per-user configuration: summarization model and
// credentials, automation flags, and the scraping cookies replayed on
// fetches.
package settings

import (
	"net/http"
	"strconv"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/burrow-app/burrow/pkg/burrow/summarize"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles settings requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new settings handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UpdateRequest represents the settings update request body. Pointer
// fields distinguish "leave unchanged" from "set to zero value".
type UpdateRequest struct {
	SummarizationModel *string `json:"summarization_model"`
	OpenAIAPIKey       *string `json:"openai_api_key"`
	AnthropicAPIKey    *string `json:"anthropic_api_key"`
	AutoSummarize      *bool   `json:"auto_summarize"`
}

// SettingsResponse represents settings in responses; credentials are
// reported as presence flags, never echoed back.
type SettingsResponse struct {
	SummarizationModel string `json:"summarization_model"`
	HasOpenAIKey       bool   `json:"has_openai_key"`
	HasAnthropicKey    bool   `json:"has_anthropic_key"`
	AutoSummarize      bool   `json:"auto_summarize"`
}

// CookieRequest represents the cookie creation request body
type CookieRequest struct {
	Domain string `json:"domain" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

func settingsResponse(s *models.UserSetting) SettingsResponse {
	return SettingsResponse{
		SummarizationModel: s.SummarizationModel,
		HasOpenAIKey:       s.OpenAIAPIKey != "",
		HasAnthropicKey:    s.AnthropicAPIKey != "",
		AutoSummarize:      s.AutoSummarize,
	}
}

func (h *Handler) load(c *gin.Context) (*models.UserSetting, uint, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, 0, false
	}

	var settings models.UserSetting
	if err := h.db.Where(models.UserSetting{UserID: userID}).FirstOrCreate(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load settings"})
		return nil, 0, false
	}
	return &settings, userID, true
}

// Get returns the current user's settings
func (h *Handler) Get(c *gin.Context) {
	settings, _, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, settingsResponse(settings))
}

// Update changes the current user's settings
func (h *Handler) Update(c *gin.Context) {
	settings, _, ok := h.load(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.SummarizationModel != nil {
		if _, err := summarize.ProviderForModel(*req.SummarizationModel); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		settings.SummarizationModel = *req.SummarizationModel
	}
	if req.OpenAIAPIKey != nil {
		settings.OpenAIAPIKey = *req.OpenAIAPIKey
	}
	if req.AnthropicAPIKey != nil {
		settings.AnthropicAPIKey = *req.AnthropicAPIKey
	}
	if req.AutoSummarize != nil {
		settings.AutoSummarize = *req.AutoSummarize
	}

	if err := h.db.Save(settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, settingsResponse(settings))
}

// ListCookies returns the user's scraping cookies, values omitted
func (h *Handler) ListCookies(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var cookies []models.UserCookie
	if err := h.db.Where("user_id = ?", userID).Order("domain, name").Find(&cookies).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list cookies"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cookies": cookies})
}

// CreateCookie stores a scraping cookie for a domain
func (h *Handler) CreateCookie(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CookieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cookie := models.UserCookie{
		UserID: userID,
		Domain: req.Domain,
		Name:   req.Name,
		Value:  req.Value,
	}

	// One value per (domain, name): update in place when it exists.
	var existing models.UserCookie
	err := h.db.Where("user_id = ? AND domain = ? AND name = ?", userID, req.Domain, req.Name).First(&existing).Error
	if err == nil {
		existing.Value = req.Value
		if err := h.db.Save(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save cookie"})
			return
		}
		c.JSON(http.StatusOK, existing)
		return
	}

	if err := h.db.Create(&cookie).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save cookie"})
		return
	}

	c.JSON(http.StatusCreated, cookie)
}

// DeleteCookie removes a scraping cookie
func (h *Handler) DeleteCookie(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	cookieID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cookie ID"})
		return
	}

	result := h.db.Where("id = ? AND user_id = ?", cookieID, userID).Delete(&models.UserCookie{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete cookie"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Cookie not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cookie deleted"})
}

// RegisterRoutes registers settings routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.Get)
	rg.PATCH("/settings", h.Update)
	rg.GET("/settings/cookies", h.ListCookies)
	rg.POST("/settings/cookies", h.CreateCookie)
	rg.DELETE("/settings/cookies/:id", h.DeleteCookie)
}
