package fetch

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DaysToKeepHeaders bounds how often a user's cached scrape headers are
// refreshed from a live inbound request.
const DaysToKeepHeaders = 3

// Headers that make the request look less like scraping while not changing
// behavior.
var scrapeHeaderAllowList = []string{
	"accept", "accept-language", "user-agent", "dnt", "sec-fetch-dest",
	"sec-fetch-mode",
}

// FilterScrapeHeaders returns the allow-listed subset of inbound headers,
// lowercased.
func FilterScrapeHeaders(inbound http.Header) map[string]string {
	filtered := make(map[string]string)
	for _, name := range scrapeHeaderAllowList {
		if v := inbound.Get(name); v != "" {
			filtered[strings.ToLower(name)] = v
		}
	}
	return filtered
}

// MaybeRefreshScrapeHeaders captures the allow-listed subset of a live
// request's headers into the user's settings, at most once every
// DaysToKeepHeaders days. Later fetches replay these headers without any
// coupling to an inbound request.
func MaybeRefreshScrapeHeaders(db *gorm.DB, userID uint, inbound http.Header) error {
	var settings models.UserSetting
	if err := db.Where(models.UserSetting{UserID: userID}).FirstOrCreate(&settings).Error; err != nil {
		return err
	}

	cutoff := time.Now().Add(-DaysToKeepHeaders * 24 * time.Hour)
	if settings.ScrapeHeaders != nil && settings.ScrapeHeadersUpdatedAt != nil &&
		settings.ScrapeHeadersUpdatedAt.After(cutoff) {
		return nil
	}

	raw, err := json.Marshal(FilterScrapeHeaders(inbound))
	if err != nil {
		return err
	}

	now := time.Now()
	settings.ScrapeHeaders = datatypes.JSON(raw)
	settings.ScrapeHeadersUpdatedAt = &now
	return db.Save(&settings).Error
}

// ScrapeHeaders returns the user's cached scrape headers, or an empty map
// when none are cached yet.
func ScrapeHeaders(db *gorm.DB, userID uint) map[string]string {
	var settings models.UserSetting
	if err := db.Where("user_id = ?", userID).First(&settings).Error; err != nil {
		return map[string]string{}
	}
	if settings.ScrapeHeaders == nil {
		return map[string]string{}
	}

	headers := make(map[string]string)
	if err := json.Unmarshal(settings.ScrapeHeaders, &headers); err != nil {
		return map[string]string{}
	}
	return headers
}
