package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Tag represents a user-scoped label that can be applied to links
type Tag struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Slug      string         `gorm:"index" json:"slug"`

	// Relationships
	Links []Link `gorm:"many2many:link_tags;" json:"links,omitempty"`
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a tag name.
func Slugify(name string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}

// BeforeSave derives the slug from the name.
func (t *Tag) BeforeSave(tx *gorm.DB) error {
	t.Slug = Slugify(t.Name)
	return nil
}
