// Package feeds implements RSS/Atom subscriptions: conditional polling,
// new-entry diffing, and promotion of entries into the link library.
package feeds

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/links"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/mmcdole/gofeed"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// firstFetchItemLimit caps how many historical entries a brand-new
// subscription ingests.
const firstFetchItemLimit = 3

// Poller drives the feed refresh cycle. A refresh is three ordered steps,
// each producing the input of the next:
//
//	LoadRemote -> PersistNewItems -> PersistFeedMetadata
//
// Caching tokens only advance in the final step, after items are captured.
type Poller struct {
	db     *gorm.DB
	repo   *links.Repository
	client *http.Client
	parser *gofeed.Parser
}

// NewPoller creates a feed poller.
func NewPoller(db *gorm.DB, repo *links.Repository, timeout time.Duration) *Poller {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Poller{
		db:     db,
		repo:   repo,
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
	}
}

// RemoteFeed is the outcome of fetching one feed document.
type RemoteFeed struct {
	poller *Poller

	Feed   *models.Feed
	Parsed *gofeed.Feed

	StatusCode  int
	RedirectURL string // final URL after a permanent redirect, if any
	ETag        string
	Modified    string
}

// ItemsResult reports what PersistNewItems stored.
type ItemsResult struct {
	remote *RemoteFeed

	NewItems     []models.FeedItem
	SkippedCount int
}

// Feed returns the feed this result belongs to.
func (r *ItemsResult) Feed() *models.Feed {
	return r.remote.Feed
}

// LoadRemote fetches the feed document with a conditional GET, supplying
// the stored ETag/Last-Modified tokens. 304 and 410 are captured in the
// result rather than returned as errors; other non-2xx statuses become a
// *fetch.Error.
func (p *Poller) LoadRemote(ctx context.Context, feed *models.Feed) (*RemoteFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.FeedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	if feed.Modified != "" {
		req.Header.Set("If-Modified-Since", feed.Modified)
	}

	remote := &RemoteFeed{poller: p, Feed: feed}

	// Follow redirects but remember when the move was permanent so the
	// stored feed URL can be advanced later.
	client := *p.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return errors.New("stopped after 10 redirects")
		}
		if req.Response != nil {
			switch req.Response.StatusCode {
			case http.StatusMovedPermanently, http.StatusPermanentRedirect:
				remote.RedirectURL = req.URL.String()
			}
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &fetch.Error{Message: err.Error(), Timeout: errors.Is(err, context.DeadlineExceeded)}
	}
	defer resp.Body.Close()

	remote.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return remote, nil
	case resp.StatusCode == http.StatusGone:
		return remote, nil
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &fetch.Error{StatusCode: resp.StatusCode, Message: "feed fetch failed: " + resp.Status}
	}

	parsed, err := p.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	remote.Parsed = parsed
	remote.ETag = resp.Header.Get("ETag")
	remote.Modified = resp.Header.Get("Last-Modified")
	return remote, nil
}

// LoadRemoteURL subscribes a user to a new feed: fetches and parses the
// document, derives the feed's name, description, and image from it, and
// creates the Feed row.
func (p *Poller) LoadRemoteURL(ctx context.Context, userID uint, url string, autoAdd bool) (*RemoteFeed, error) {
	feed := &models.Feed{UserID: userID, FeedURL: url, AutoAdd: autoAdd}

	remote, err := p.LoadRemote(ctx, feed)
	if err != nil {
		return nil, err
	}
	if remote.Parsed == nil {
		return nil, &fetch.Error{StatusCode: remote.StatusCode, Message: "feed document unavailable"}
	}

	feed.FeedName = remote.Parsed.Title
	feed.FeedDescription = stripHTML(remote.Parsed.Description)
	if remote.Parsed.Image != nil {
		feed.FeedImageURL = remote.Parsed.Image.URL
	}

	if err := p.db.Create(feed).Error; err != nil {
		return nil, err
	}
	return remote, nil
}

// PersistNewItems stores the entries the feed has not delivered before.
// A feed that has never been fetched takes only the most recent entries;
// afterwards only entries published strictly after LastFetchedAt qualify.
// Redelivered GUIDs are swallowed and counted as skipped.
func (r *RemoteFeed) PersistNewItems() (*ItemsResult, error) {
	result := &ItemsResult{remote: r}
	if r.Parsed == nil {
		return result, nil
	}

	for _, entry := range r.selectEntries() {
		item := models.FeedItem{
			FeedID:      r.Feed.ID,
			GUID:        entryGUID(entry),
			Title:       entry.Title,
			URL:         entry.Link,
			Description: stripHTML(entry.Description),
			PubDate:     entryPublished(entry),
		}

		if err := r.poller.db.Create(&item).Error; err != nil {
			if isDuplicateKey(err) {
				result.SkippedCount++
				continue
			}
			return nil, err
		}
		result.NewItems = append(result.NewItems, item)
	}

	return result, nil
}

// selectEntries picks which parsed entries are candidates for storage.
func (r *RemoteFeed) selectEntries() []*gofeed.Item {
	entries := make([]*gofeed.Item, len(r.Parsed.Items))
	copy(entries, r.Parsed.Items)

	if r.Feed.LastFetchedAt == nil {
		sort.SliceStable(entries, func(i, j int) bool {
			return entryPublished(entries[i]).After(entryPublished(entries[j]))
		})
		if len(entries) > firstFetchItemLimit {
			entries = entries[:firstFetchItemLimit]
		}
		return entries
	}

	fresh := entries[:0]
	for _, entry := range entries {
		if entryPublished(entry).After(*r.Feed.LastFetchedAt) {
			fresh = append(fresh, entry)
		}
	}
	return fresh
}

// PersistFeedMetadata advances the feed's caching state. It must only run
// after items have been captured.
func (i *ItemsResult) PersistFeedMetadata() error {
	remote := i.remote
	feed := remote.Feed

	if remote.RedirectURL != "" && remote.RedirectURL != feed.FeedURL {
		logrus.WithFields(logrus.Fields{
			"feed_id": feed.ID,
			"from":    feed.FeedURL,
			"to":      remote.RedirectURL,
		}).Warn("feed moved permanently, updating stored URL")
		feed.FeedURL = remote.RedirectURL
	}

	if remote.StatusCode == http.StatusGone {
		logrus.WithField("feed_id", feed.ID).Error("feed is permanently gone, disabling")
		feed.IsDeleted = true
	}

	now := time.Now()
	feed.LastFetchedAt = &now
	if remote.ETag != "" {
		feed.ETag = remote.ETag
	}
	if remote.Modified != "" {
		feed.Modified = remote.Modified
	}

	return remote.poller.db.Save(feed).Error
}

// PromoteItem turns a feed item into a saved link through the link
// repository and records the back-reference on the item.
func (p *Poller) PromoteItem(ctx context.Context, item *models.FeedItem) (*models.Link, error) {
	var feed models.Feed
	if err := p.db.First(&feed, item.FeedID).Error; err != nil {
		return nil, err
	}

	extra := &links.ExtraFields{Title: item.Title, CreatedFromFeedID: &feed.ID}
	link, _, err := p.repo.GetOrCreate(ctx, item.URL, feed.UserID, extra)
	if err != nil {
		return nil, err
	}

	item.SavedAsLinkID = &link.ID
	if err := p.db.Model(item).Update("saved_as_link_id", link.ID).Error; err != nil {
		return nil, err
	}
	return link, nil
}

// PromoteNewItems promotes every newly stored item concurrently. Failures
// are logged per item and do not affect the rest of the batch.
func (p *Poller) PromoteNewItems(ctx context.Context, result *ItemsResult) {
	var wg sync.WaitGroup
	for idx := range result.NewItems {
		wg.Add(1)
		go func(item *models.FeedItem) {
			defer wg.Done()
			if _, err := p.PromoteItem(ctx, item); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"feed_id": item.FeedID,
					"url":     item.URL,
				}).Warn("feed item promotion failed")
			}
		}(&result.NewItems[idx])
	}
	wg.Wait()
}

// Refresh runs a full refresh cycle for one feed, auto-promoting new items
// when the feed is configured for it.
func (p *Poller) Refresh(ctx context.Context, feed *models.Feed) (*ItemsResult, error) {
	remote, err := p.LoadRemote(ctx, feed)
	if err != nil {
		return nil, err
	}

	result, err := remote.PersistNewItems()
	if err != nil {
		return nil, err
	}

	if err := result.PersistFeedMetadata(); err != nil {
		return nil, err
	}

	if feed.AutoAdd && len(result.NewItems) > 0 {
		p.PromoteNewItems(ctx, result)
	}

	logrus.WithFields(logrus.Fields{
		"feed_id": feed.ID,
		"new":     len(result.NewItems),
		"skipped": result.SkippedCount,
	}).Info("feed refreshed")
	return result, nil
}

// RefreshAll refreshes every active feed, isolating per-feed failures.
func (p *Poller) RefreshAll(ctx context.Context) error {
	var feeds []models.Feed
	if err := p.db.Where("is_deleted = ?", false).Find(&feeds).Error; err != nil {
		return err
	}

	for idx := range feeds {
		if _, err := p.Refresh(ctx, &feeds[idx]); err != nil {
			logrus.WithError(err).WithField("feed_id", feeds[idx].ID).Warn("feed refresh failed")
		}
	}
	return nil
}

func entryGUID(entry *gofeed.Item) string {
	if entry.GUID != "" {
		return entry.GUID
	}
	return entry.Link
}

func entryPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}

// stripHTML reduces a fragment to its visible text.
func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	return strings.TrimSpace(doc.Text())
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
