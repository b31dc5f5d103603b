package importexport

import (
	"net/http"

	"github.com/burrow-app/burrow/pkg/burrow/auth"
	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler handles import/export requests
type Handler struct {
	db   *gorm.DB
	repo *links.Repository
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB, repo *links.Repository) *Handler {
	return &Handler{db: db, repo: repo}
}

// ImportRequest represents the bulk import request body
type ImportRequest struct {
	Items []ImportItem `json:"items" binding:"required,min=1,dive"`
}

// Import ingests a batch of pre-fetched pages
func (h *Handler) Import(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := ImportPages(c.Request.Context(), h.repo, userID, req.Items)

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"results": results,
		"total":   len(results),
		"failed":  failed,
	})
}

// Export returns the user's full library as JSON
func (h *Handler) Export(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	export, err := ExportUserData(h.db, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="burrow-export.json"`)
	c.JSON(http.StatusOK, export)
}

// RegisterRoutes registers import/export routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
}
