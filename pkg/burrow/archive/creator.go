// Package archive captures full-page snapshots of saved links through an
// external single-file rendering service.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/fetch"
	"github.com/burrow-app/burrow/pkg/burrow/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Creator talks to the single-file service. A Creator with no endpoint is
// valid and silently does nothing.
type Creator struct {
	db       *gorm.DB
	endpoint string
	client   *http.Client
}

// NewCreator creates an archive creator. endpoint may be empty to disable
// archiving.
func NewCreator(db *gorm.DB, endpoint string, timeout time.Duration) *Creator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Creator{
		db:       db,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether an archive endpoint is configured.
func (c *Creator) Enabled() bool {
	return c.endpoint != ""
}

// CreateArchive snapshots the link's page. At most one archive exists per
// link; an existing one is returned without calling the service. When
// archiving is disabled the result is (nil, nil).
func (c *Creator) CreateArchive(ctx context.Context, userID uint, link *models.Link) (*models.LinkArchive, error) {
	var existing models.LinkArchive
	if err := c.db.Where("link_id = ?", link.ID).First(&existing).Error; err == nil {
		return &existing, nil
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if !c.Enabled() {
		return nil, nil
	}

	content, err := c.renderPage(ctx, userID, link)
	if err != nil {
		return nil, err
	}

	archive := models.LinkArchive{
		UserID:  userID,
		LinkID:  link.ID,
		Content: content,
	}
	if err := c.db.Create(&archive).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"link_id": link.ID, "bytes": len(content)}).Info("link archived")
	return &archive, nil
}

// renderPage asks the single-file service to capture the page, passing the
// user's cookies for the link's host as name,value,domain triples.
func (c *Creator) renderPage(ctx context.Context, userID uint, link *models.Link) (string, error) {
	form := url.Values{}
	form.Set("url", link.OriginalURL)

	cookies, err := fetch.CookiesForHost(c.db, userID, link.Hostname)
	if err != nil {
		return "", err
	}
	for _, cookie := range cookies {
		form.Add("cookies", fmt.Sprintf("%s,%s,%s", cookie.Name, cookie.Value, cookie.Domain))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build archive request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded)
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			timeout = true
		}
		return "", &fetch.Error{Message: "archive service: " + err.Error(), Timeout: timeout}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &fetch.Error{StatusCode: resp.StatusCode, Message: "archive service returned " + resp.Status}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read archive response: %w", err)
	}
	return string(body), nil
}
