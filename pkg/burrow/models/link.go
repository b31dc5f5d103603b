package models

import (
	"time"

	"gorm.io/gorm"
)

// Link represents a saved article. OriginalURL holds the URL exactly as the
// user submitted it; CleanedURL holds the canonical form derived during
// extraction. Duplicate detection matches either field, case-insensitively,
// within a single user's library.
type Link struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`

	OriginalURL string `gorm:"not null" json:"original_url"`
	CleanedURL  string `gorm:"index" json:"cleaned_url"`
	Hostname    string `json:"hostname"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Excerpt     string `json:"excerpt"`
	ArticleDate time.Time `json:"article_date"`

	// Parsed/generated content
	ArticleHTML    string `json:"-"`
	RawTextContent string `json:"-"`
	FullPageHTML   string `json:"-"` // raw fetched page, kept for re-processing
	HeaderImageURL string `json:"header_image_url"`

	ReadTimeSeconds int    `json:"read_time_seconds"`
	ReadTimeDisplay string `json:"read_time_display"`

	Summary string `json:"summary,omitempty"`

	AddedAt      time.Time  `json:"added_at"`
	LastViewedAt *time.Time `json:"last_viewed_at"` // nil means unread

	CreatedFromFeedID *uint `json:"created_from_feed_id,omitempty"`

	// Relationships
	User            User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Tags            []Tag `gorm:"many2many:link_tags;" json:"tags,omitempty"`
	CreatedFromFeed *Feed `gorm:"foreignKey:CreatedFromFeedID" json:"created_from_feed,omitempty"`
}

// IsRead reports whether the link has been viewed at least once.
func (l *Link) IsRead() bool {
	return l.LastViewedAt != nil
}
