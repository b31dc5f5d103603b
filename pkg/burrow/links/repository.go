// Package links owns saved-article persistence: the idempotent
// get-or-create path that composes fetching, cleaning, and extraction, and
// the HTTP handlers over it.
package links

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/content"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ContentFetcher retrieves raw HTML for a URL on behalf of a user.
type ContentFetcher interface {
	Fetch(ctx context.Context, rawURL string, userID uint) (string, error)
}

// ExtraFields are caller-supplied overrides applied on top of extracted
// metadata when a link is created.
type ExtraFields struct {
	Title             string
	CreatedFromFeedID *uint
	TagIDs            []uint
}

// Repository is the entity store for saved links. It enforces one link per
// (user, URL): lookups match the submitted URL case-insensitively against
// both the original and the cleaned URL of existing links, and the
// check-then-act sequence is serialized per (user, URL) so concurrent
// submissions of the same new URL cannot race into duplicates.
type Repository struct {
	db      *gorm.DB
	fetcher ContentFetcher

	locks *keyedMutex

	// post-create side effects (summarize, archive); each runs in its own
	// goroutine and must tolerate failure.
	postCreate []func(link *models.Link)
}

// NewRepository creates a link repository.
func NewRepository(db *gorm.DB, fetcher ContentFetcher) *Repository {
	return &Repository{db: db, fetcher: fetcher, locks: newKeyedMutex()}
}

// OnCreate registers a hook invoked asynchronously after a link is created.
func (r *Repository) OnCreate(hook func(link *models.Link)) {
	r.postCreate = append(r.postCreate, hook)
}

func lockKey(userID uint, rawURL string) string {
	return fmt.Sprintf("%d\x00%s", userID, strings.ToLower(rawURL))
}

// GetOrCreate returns the user's existing link for url, or fetches,
// cleans, and persists a new one. The boolean reports whether a link was
// created. On a hit no network request is made.
func (r *Repository) GetOrCreate(ctx context.Context, rawURL string, userID uint, extra *ExtraFields) (*models.Link, bool, error) {
	unlock := r.locks.Lock(lockKey(userID, rawURL))
	defer unlock()

	if link, ok, err := r.lookup(rawURL, userID); err != nil || ok {
		return link, false, err
	}

	html, err := r.fetcher.Fetch(ctx, rawURL, userID)
	if err != nil {
		return nil, false, err
	}

	link, err := r.create(rawURL, html, userID, extra)
	if err != nil {
		return nil, false, err
	}
	return link, true, nil
}

// GetOrCreateWithContent behaves like GetOrCreate but uses the supplied
// page HTML instead of fetching, for callers that already hold the content
// (bulk import).
func (r *Repository) GetOrCreateWithContent(ctx context.Context, rawURL, html string, userID uint, extra *ExtraFields) (*models.Link, bool, error) {
	unlock := r.locks.Lock(lockKey(userID, rawURL))
	defer unlock()

	if link, ok, err := r.lookup(rawURL, userID); err != nil || ok {
		return link, false, err
	}

	link, err := r.create(rawURL, html, userID, extra)
	if err != nil {
		return nil, false, err
	}
	return link, true, nil
}

// lookup finds the user's link matching url case-insensitively on either
// the cleaned or the original URL. Matching is strictly per-owner.
func (r *Repository) lookup(rawURL string, userID uint) (*models.Link, bool, error) {
	lowered := strings.ToLower(rawURL)

	var link models.Link
	err := r.db.
		Where("user_id = ? AND (LOWER(cleaned_url) = ? OR LOWER(original_url) = ?)", userID, lowered, lowered).
		First(&link).Error
	if err == gorm.ErrRecordNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &link, true, nil
}

// create runs the content pipeline over raw HTML and persists the
// resulting link.
func (r *Repository) create(rawURL, html string, userID uint, extra *ExtraFields) (*models.Link, error) {
	articleHTML, err := content.ApplyAllTransforms(html, rawURL)
	if err != nil {
		return nil, fmt.Errorf("transform content: %w", err)
	}

	md, err := content.Extract(html, rawURL)
	if err != nil {
		return nil, fmt.Errorf("extract metadata: %w", err)
	}

	seconds, display := content.EstimateReadTime(articleHTML)

	link := models.Link{
		UserID:          userID,
		OriginalURL:     rawURL,
		CleanedURL:      md.CleanedURL,
		Hostname:        md.Hostname,
		Title:           md.Title,
		Author:          md.Author,
		Excerpt:         md.Excerpt,
		ArticleDate:     md.ArticleDate,
		ArticleHTML:     articleHTML,
		RawTextContent:  md.RawText,
		FullPageHTML:    html,
		HeaderImageURL:  md.HeaderImageURL,
		ReadTimeSeconds: seconds,
		ReadTimeDisplay: display,
		AddedAt:         time.Now(),
	}

	if extra != nil {
		if extra.Title != "" {
			link.Title = extra.Title
		}
		if extra.CreatedFromFeedID != nil {
			link.CreatedFromFeedID = extra.CreatedFromFeedID
		}
		if len(extra.TagIDs) > 0 {
			var tags []models.Tag
			if err := r.db.Where("id IN ? AND user_id = ?", extra.TagIDs, userID).Find(&tags).Error; err != nil {
				return nil, err
			}
			link.Tags = tags
		}
	}

	if err := r.db.Create(&link).Error; err != nil {
		return nil, err
	}

	// Each hook gets its own copy: hooks run concurrently with the caller,
	// which may still be reading the returned struct.
	for _, hook := range r.postCreate {
		hooked := link
		go hook(&hooked)
	}

	return &link, nil
}

// Refresh re-fetches and re-processes an existing link in place,
// preserving its identity, tags, and read state.
func (r *Repository) Refresh(ctx context.Context, link *models.Link) error {
	html, err := r.fetcher.Fetch(ctx, link.OriginalURL, link.UserID)
	if err != nil {
		return err
	}

	articleHTML, err := content.ApplyAllTransforms(html, link.OriginalURL)
	if err != nil {
		return fmt.Errorf("transform content: %w", err)
	}

	md, err := content.Extract(html, link.OriginalURL)
	if err != nil {
		return fmt.Errorf("extract metadata: %w", err)
	}

	seconds, display := content.EstimateReadTime(articleHTML)

	link.CleanedURL = md.CleanedURL
	link.Hostname = md.Hostname
	link.Title = md.Title
	link.Author = md.Author
	link.Excerpt = md.Excerpt
	link.ArticleDate = md.ArticleDate
	link.ArticleHTML = articleHTML
	link.RawTextContent = md.RawText
	link.FullPageHTML = html
	link.HeaderImageURL = md.HeaderImageURL
	link.ReadTimeSeconds = seconds
	link.ReadTimeDisplay = display

	if err := r.db.Save(link).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{"link_id": link.ID, "url": link.OriginalURL}).Debug("link refreshed")
	return nil
}
