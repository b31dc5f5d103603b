// Package importexport moves whole libraries in and out: bulk import of
// pre-fetched pages and a JSON export of everything a user owns.
package importexport

import (
	"context"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ImportItem is one pre-fetched page in a bulk upload.
type ImportItem struct {
	URL   string `json:"url" binding:"required"`
	HTML  string `json:"html" binding:"required"`
	Title string `json:"title"`
}

// ImportResult reports the outcome for one imported item.
type ImportResult struct {
	URL     string `json:"url"`
	LinkID  uint   `json:"link_id,omitempty"`
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}

// ImportPages runs every item through the link pipeline. Items fail
// independently; one broken page never aborts the batch.
func ImportPages(ctx context.Context, repo *links.Repository, userID uint, items []ImportItem) []ImportResult {
	results := make([]ImportResult, 0, len(items))
	for _, item := range items {
		result := ImportResult{URL: item.URL}

		extra := &links.ExtraFields{Title: item.Title}
		link, created, err := repo.GetOrCreateWithContent(ctx, item.URL, item.HTML, userID, extra)
		if err != nil {
			result.Error = err.Error()
			logrus.WithError(err).WithField("url", item.URL).Warn("bulk import item failed")
		} else {
			result.LinkID = link.ID
			result.Created = created
		}
		results = append(results, result)
	}
	return results
}

// Export is a complete dump of one user's library.
type Export struct {
	ExportedAt time.Time     `json:"exported_at"`
	User       ExportUser    `json:"user"`
	Links      []models.Link `json:"links"`
	Tags       []models.Tag  `json:"tags"`
	Feeds      []models.Feed `json:"feeds"`
	Notes      []models.Note `json:"notes"`
}

// ExportUser identifies the library owner in an export.
type ExportUser struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// ExportUserData collects everything the user owns.
func ExportUserData(db *gorm.DB, userID uint) (*Export, error) {
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, err
	}

	export := &Export{
		ExportedAt: time.Now(),
		User:       ExportUser{ID: user.ID, Email: user.Email, Name: user.Name},
	}

	if err := db.Preload("Tags").Where("user_id = ?", userID).Order("added_at").Find(&export.Links).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Order("name").Find(&export.Tags).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Find(&export.Feeds).Error; err != nil {
		return nil, err
	}
	if err := db.Where("user_id = ?", userID).Order("saved_at").Find(&export.Notes).Error; err != nil {
		return nil, err
	}
	return export, nil
}
