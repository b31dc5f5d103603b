package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Summarization model identifiers a user may select. Each maps to a
// provider family in the summarize package.
const (
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelGPT4o        = "gpt-4o"
	ModelGPT4Turbo    = "gpt-4-turbo"
	ModelClaudeHaiku  = "claude-3-5-haiku-latest"
	ModelClaudeSonnet = "claude-sonnet-4-0"
)

// UserSetting holds per-user configuration
type UserSetting struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	UserID    uint           `gorm:"not null;uniqueIndex" json:"user_id"`

	SummarizationModel string `json:"summarization_model"`
	OpenAIAPIKey       string `json:"-"`
	AnthropicAPIKey    string `json:"-"`

	// When true, newly created links are summarized in the background.
	AutoSummarize bool `gorm:"default:false" json:"auto_summarize"`

	// Allow-listed headers captured from the user's own browser requests,
	// replayed on scraping fetches. Refreshed at most every few days.
	ScrapeHeaders          datatypes.JSON `json:"-"`
	ScrapeHeadersUpdatedAt *time.Time     `json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// UserCookie stores one cookie replayed on fetch and archive requests for
// its domain only.
type UserCookie struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Domain    string    `gorm:"not null" json:"domain"`
	Name      string    `gorm:"not null" json:"name"`
	Value     string    `gorm:"not null" json:"-"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
