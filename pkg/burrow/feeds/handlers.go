package feeds

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles feed requests
type Handler struct {
	db     *gorm.DB
	poller *Poller
}

// NewHandler creates a new feeds handler
func NewHandler(db *gorm.DB, poller *Poller) *Handler {
	return &Handler{db: db, poller: poller}
}

// SubscribeRequest represents the feed subscription request body
type SubscribeRequest struct {
	URL     string `json:"url" binding:"required,url"`
	AutoAdd bool   `json:"auto_add"`
}

// UpdateRequest represents the feed update request body
type UpdateRequest struct {
	AutoAdd *bool `json:"auto_add"`
}

// Subscribe adds a feed for the current user and ingests its latest items
func (h *Handler) Subscribe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.Feed
	if err := h.db.Where("user_id = ? AND feed_url = ?", userID, req.URL).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already subscribed to this feed"})
		return
	}

	remote, err := h.poller.LoadRemoteURL(c.Request.Context(), userID, req.URL, req.AutoAdd)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Could not read feed: " + err.Error()})
		return
	}

	result, err := remote.PersistNewItems()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store feed items"})
		return
	}
	if err := result.PersistFeedMetadata(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store feed"})
		return
	}

	if remote.Feed.AutoAdd && len(result.NewItems) > 0 {
		// Outlives the request.
		go h.poller.PromoteNewItems(context.Background(), result)
	}

	c.JSON(http.StatusCreated, gin.H{
		"feed":      remote.Feed,
		"new_items": len(result.NewItems),
	})
}

// List returns the user's feeds
func (h *Handler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var feeds []models.Feed
	if err := h.db.Where("user_id = ?", userID).Order("feed_name").Find(&feeds).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list feeds"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"feeds": feeds})
}

// Refresh re-polls one feed on demand
func (h *Handler) Refresh(c *gin.Context) {
	feed, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if feed.IsDeleted {
		c.JSON(http.StatusGone, gin.H{"error": "Feed is permanently gone"})
		return
	}

	result, err := h.poller.Refresh(c.Request.Context(), feed)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Feed refresh failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"feed":      feed,
		"new_items": len(result.NewItems),
		"skipped":   result.SkippedCount,
	})
}

// Update changes feed settings
func (h *Handler) Update(c *gin.Context) {
	feed, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.AutoAdd != nil {
		feed.AutoAdd = *req.AutoAdd
	}
	if err := h.db.Save(feed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update feed"})
		return
	}

	c.JSON(http.StatusOK, feed)
}

// Unsubscribe removes a feed; its items and promoted links remain
func (h *Handler) Unsubscribe(c *gin.Context) {
	feed, ok := h.loadOwned(c)
	if !ok {
		return
	}

	if err := h.db.Delete(feed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete feed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Feed deleted"})
}

// ListItems returns the stored items of one feed
func (h *Handler) ListItems(c *gin.Context) {
	feed, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var items []models.FeedItem
	if err := h.db.Where("feed_id = ?", feed.ID).Order("pub_date DESC").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// PromoteItem saves one feed item into the link library
func (h *Handler) PromoteItem(c *gin.Context) {
	feed, ok := h.loadOwned(c)
	if !ok {
		return
	}

	itemID, err := strconv.ParseUint(c.Param("itemID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
		return
	}

	var item models.FeedItem
	if err := h.db.Where("id = ? AND feed_id = ?", itemID, feed.ID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed item not found"})
		return
	}

	link, err := h.poller.PromoteItem(c.Request.Context(), &item)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save item"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// loadOwned resolves the :id parameter to a feed owned by the current
// user, writing the error response itself on failure.
func (h *Handler) loadOwned(c *gin.Context) (*models.Feed, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	feedID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid feed ID"})
		return nil, false
	}

	var feed models.Feed
	if err := h.db.Where("id = ? AND user_id = ?", feedID, userID).First(&feed).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return nil, false
	}
	return &feed, true
}

// RegisterRoutes registers feed routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/feeds", h.Subscribe)
	rg.GET("/feeds", h.List)
	rg.PATCH("/feeds/:id", h.Update)
	rg.DELETE("/feeds/:id", h.Unsubscribe)
	rg.POST("/feeds/:id/refresh", h.Refresh)
	rg.GET("/feeds/:id/items", h.ListItems)
	rg.POST("/feeds/:id/items/:itemID/save", h.PromoteItem)
}
