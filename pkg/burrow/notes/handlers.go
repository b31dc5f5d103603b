// Package notes handles user annotations on saved links.
package notes

import (
	"net/http"
	"strconv"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles note requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new notes handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// CreateRequest represents the note creation request body
type CreateRequest struct {
	LinkID  uint   `json:"link_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Create attaches a note to one of the user's links, denormalizing the
// link's URL and title so the note outlives the link
func (h *Handler) Create(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var link models.Link
	if err := h.db.Where("id = ? AND user_id = ?", req.LinkID, userID).First(&link).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Link not found"})
		return
	}

	note := models.Note{
		UserID:    userID,
		LinkID:    &link.ID,
		Content:   req.Content,
		URL:       link.CleanedURL,
		Hostname:  link.Hostname,
		LinkTitle: link.Title,
		SavedAt:   time.Now(),
	}
	if note.URL == "" {
		note.URL = link.OriginalURL
	}

	if err := h.db.Create(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create note"})
		return
	}

	c.JSON(http.StatusCreated, note)
}

// List returns the user's notes, optionally for one link
func (h *Handler) List(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	query := h.db.Where("user_id = ?", userID)
	if linkParam := c.Query("link_id"); linkParam != "" {
		linkID, err := strconv.ParseUint(linkParam, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid link ID"})
			return
		}
		query = query.Where("link_id = ?", linkID)
	}

	var notes []models.Note
	if err := query.Order("saved_at DESC").Find(&notes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list notes"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"notes": notes})
}

// Delete removes one of the user's notes
func (h *Handler) Delete(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	noteID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid note ID"})
		return
	}

	var note models.Note
	if err := h.db.Where("id = ? AND user_id = ?", noteID, userID).First(&note).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Note not found"})
		return
	}

	if err := h.db.Delete(&note).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete note"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Note deleted"})
}

// RegisterRoutes registers note routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/notes", h.Create)
	rg.GET("/notes", h.List)
	rg.DELETE("/notes/:id", h.Delete)
}
