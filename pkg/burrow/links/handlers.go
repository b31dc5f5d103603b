package links

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/burrow-app/burrow/pkg/burrow/tags"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Summarizer produces and persists a summary for a link.
type Summarizer interface {
	Summarize(ctx context.Context, link *models.Link) (*models.Link, error)
}

// Archiver captures a full-page archive for a link.
type Archiver interface {
	CreateArchive(ctx context.Context, userID uint, link *models.Link) (*models.LinkArchive, error)
}

// Handler handles link requests
type Handler struct {
	db         *gorm.DB
	repo       *Repository
	tags       *tags.Manager
	summarizer Summarizer
	archiver   Archiver
}

// NewHandler creates a new links handler
func NewHandler(db *gorm.DB, repo *Repository, summarizer Summarizer, archiver Archiver) *Handler {
	return &Handler{
		db:         db,
		repo:       repo,
		tags:       tags.NewManager(db),
		summarizer: summarizer,
		archiver:   archiver,
	}
}

// AddRequest represents the add-link request body
type AddRequest struct {
	URL    string `json:"url" binding:"required,url"`
	Title  string `json:"title"`
	TagIDs []uint `json:"tag_ids"`
}

// ActionRequest represents a link action request body
type ActionRequest struct {
	Action string `json:"action" binding:"required"`
}

// TagsRequest represents the replace-tags request body
type TagsRequest struct {
	Names []string `json:"names"`
}

// Add saves a URL for the current user, returning the existing link if it
// was already saved
func (h *Handler) Add(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Capture browser headers so background fetches look like the user.
	if err := fetch.MaybeRefreshScrapeHeaders(h.db, userID, c.Request.Header); err != nil {
		logrus.WithError(err).Warn("failed to refresh scrape headers")
	}

	extra := &ExtraFields{Title: req.Title, TagIDs: req.TagIDs}
	link, created, err := h.repo.GetOrCreate(c.Request.Context(), req.URL, userID, extra)
	if err != nil {
		var fetchErr *fetch.Error
		if errors.As(err, &fetchErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save link"})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"link": link, "created": created})
}

// List returns the user's links with optional search, read filter, tag
// filter, and pagination
func (h *Handler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	query := h.db.Model(&models.Link{}).Where("links.user_id = ?", userID)

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(excerpt) LIKE ? OR LOWER(raw_text_content) LIKE ?",
			pattern, pattern, pattern,
		)
		// Title matches rank above excerpt matches, which rank above body
		// matches; recency breaks ties.
		query = query.Order(clause.OrderBy{Expression: clause.Expr{
			SQL:                "CASE WHEN LOWER(title) LIKE ? THEN 0 WHEN LOWER(excerpt) LIKE ? THEN 1 ELSE 2 END",
			Vars:               []interface{}{pattern, pattern},
			WithoutParentheses: true,
		}})
	}

	switch c.Query("read") {
	case "true":
		query = query.Where("last_viewed_at IS NOT NULL")
	case "false":
		query = query.Where("last_viewed_at IS NULL")
	}

	if slug := c.Query("tag"); slug != "" {
		query = query.
			Joins("JOIN link_tags ON link_tags.link_id = links.id").
			Joins("JOIN tags ON tags.id = link_tags.tag_id").
			Where("tags.slug = ? AND tags.user_id = ?", slug, userID)
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list links"})
		return
	}

	var links []models.Link
	err := query.
		Preload("Tags").
		Order("added_at DESC").
		Limit(limit).Offset(offset).
		Find(&links).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list links"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"links": links, "total": total, "limit": limit, "offset": offset})
}

// Get returns a single link and marks it as viewed
func (h *Handler) Get(c *gin.Context) {
	link, ok := h.loadOwned(c)
	if !ok {
		return
	}

	now := time.Now()
	link.LastViewedAt = &now
	if err := h.db.Model(link).Update("last_viewed_at", now).Error; err != nil {
		logrus.WithError(err).WithField("link_id", link.ID).Warn("failed to record view")
	}

	c.JSON(http.StatusOK, link)
}

// Act performs a named action on a link
func (h *Handler) Act(c *gin.Context) {
	link, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.Action {
	case "delete":
		err := h.db.Transaction(func(tx *gorm.DB) error {
			// Notes and feed items outlive the link with the reference
			// nulled out.
			if err := tx.Model(&models.Note{}).Where("link_id = ?", link.ID).Update("link_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.FeedItem{}).Where("saved_as_link_id = ?", link.ID).Update("saved_as_link_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Model(link).Association("Tags").Clear(); err != nil {
				return err
			}
			return tx.Delete(link).Error
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete link"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Link deleted"})

	case "toggle-read":
		if link.IsRead() {
			link.LastViewedAt = nil
		} else {
			now := time.Now()
			link.LastViewedAt = &now
		}
		if err := h.db.Model(link).Update("last_viewed_at", link.LastViewedAt).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update link"})
			return
		}
		c.JSON(http.StatusOK, link)

	case "summarize":
		updated, err := h.summarizer.Summarize(c.Request.Context(), link)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, updated)

	case "archive":
		archive, err := h.archiver.CreateArchive(c.Request.Context(), link.UserID, link)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if archive == nil {
			c.JSON(http.StatusOK, gin.H{"message": "Archiving is not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"archive_id": archive.ID})

	case "refetch":
		if err := h.repo.Refresh(c.Request.Context(), link); err != nil {
			var fetchErr *fetch.Error
			if errors.As(err, &fetchErr) {
				c.JSON(http.StatusBadGateway, gin.H{"error": fetchErr.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refetch link"})
			return
		}
		c.JSON(http.StatusOK, link)

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown action: " + req.Action})
	}
}

// SetTags replaces a link's tags with the named set
func (h *Handler) SetTags(c *gin.Context) {
	link, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req TagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.tags.SetLinkTags(link, req.Names)
	if err != nil {
		if errors.Is(err, tags.ErrTagOwnership) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tags"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tags": updated})
}

// GetArchive serves the stored single-file archive for a link
func (h *Handler) GetArchive(c *gin.Context) {
	link, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var archive models.LinkArchive
	if err := h.db.Where("link_id = ?", link.ID).First(&archive).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No archive for this link"})
		return
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, archive.Content)
}

// loadOwned resolves the :id parameter to a link owned by the current
// user, writing the error response itself on failure.
func (h *Handler) loadOwned(c *gin.Context) (*models.Link, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}

	linkID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
		return nil, false
	}

	var link models.Link
	if err := h.db.Preload("Tags").Where("id = ? AND user_id = ?", linkID, userID).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return nil, false
	}
	return &link, true
}

// RegisterRoutes registers link routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/links", h.Add)
	rg.GET("/links", h.List)
	rg.GET("/links/:id", h.Get)
	rg.POST("/links/:id/actions", h.Act)
	rg.PUT("/links/:id/tags", h.SetTags)
	rg.GET("/links/:id/archive", h.GetArchive)
}
