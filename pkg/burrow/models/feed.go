package models

import (
	"time"

	"gorm.io/gorm"
)

// Feed represents a subscribed RSS/Atom source
type Feed struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`

	FeedURL         string `gorm:"not null" json:"feed_url"`
	FeedName        string `json:"feed_name"`
	FeedDescription string `json:"feed_description"`
	FeedImageURL    string `json:"feed_image_url"`

	// HTTP caching tokens from the last successful fetch
	ETag     string `json:"-"`
	Modified string `json:"-"`

	LastFetchedAt *time.Time `json:"last_fetched_at"`

	// Set when the remote responds 410 Gone; the feed stops refreshing
	// but its items remain.
	IsDeleted bool `gorm:"default:false" json:"is_deleted"`

	// When true, new items are promoted into the link library automatically.
	AutoAdd bool `gorm:"default:false" json:"auto_add"`

	// Relationships
	User  User       `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Items []FeedItem `gorm:"foreignKey:FeedID" json:"items,omitempty"`
}

// FeedItem represents one entry of a Feed, unique per (feed, guid)
type FeedItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	FeedID    uint      `gorm:"not null;uniqueIndex:idx_feed_guid" json:"feed_id"`
	GUID      string    `gorm:"not null;uniqueIndex:idx_feed_guid" json:"guid"`

	Title       string    `json:"title"`
	URL         string    `gorm:"not null" json:"url"`
	Description string    `json:"description"`
	PubDate     time.Time `json:"pub_date"`

	// Set once the item has been promoted into the library; nulled if the
	// link is later deleted.
	SavedAsLinkID *uint `json:"saved_as_link_id,omitempty"`

	// Relationships
	Feed        Feed  `gorm:"foreignKey:FeedID" json:"feed,omitempty"`
	SavedAsLink *Link `gorm:"foreignKey:SavedAsLinkID;constraint:OnDelete:SET NULL" json:"saved_as_link,omitempty"`
}
