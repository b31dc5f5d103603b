package models

import (
	"time"

	"gorm.io/gorm"
)

// Note represents a user annotation bound to a URL. The link reference is
// optional and nulled when the link is deleted; the denormalized URL,
// hostname, and title keep the note meaningful on its own.
type Note struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	LinkID    *uint          `json:"link_id,omitempty"`

	Content   string    `gorm:"not null" json:"content"`
	URL       string    `json:"url"`
	Hostname  string    `json:"hostname"`
	LinkTitle string    `json:"link_title"`
	SavedAt   time.Time `json:"saved_at"`

	// Relationships
	User User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Link *Link `gorm:"foreignKey:LinkID;constraint:OnDelete:SET NULL" json:"link,omitempty"`
}

// LinkArchive holds at most one full-page snapshot per link.
type LinkArchive struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	LinkID    uint      `gorm:"not null;uniqueIndex" json:"link_id"`
	Content   string    `json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Link Link `gorm:"foreignKey:LinkID" json:"link,omitempty"`
}
