// Package fetch retrieves raw page content for a URL on behalf of a user,
// replaying the user's domain-scoped cookies and cached scrape headers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/burrow-app/burrow/pkg/burrow/models"
	"gorm.io/gorm"
)

const maxBodySize = 5 << 20 // 5 MiB

// Error is returned for non-2xx responses and transport failures.
type Error struct {
	StatusCode int
	Message    string
	Timeout    bool
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed with status %d: %s", e.StatusCode, e.Message)
	}
	return "fetch failed: " + e.Message
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout
}

// Fetcher retrieves raw HTML for URLs. It holds no per-request state and is
// safe for concurrent use.
type Fetcher struct {
	db      *gorm.DB
	timeout time.Duration

	transport http.RoundTripper
}

// NewFetcher creates a Fetcher with a dedicated transport.
func NewFetcher(db *gorm.DB, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		db:      db,
		timeout: timeout,
		transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 15 * time.Second,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// CookiesForHost returns the user's cookies whose stored domain matches the
// given host, either exactly or as a parent domain. Cookies for other
// domains are never sent.
func CookiesForHost(db *gorm.DB, userID uint, host string) ([]models.UserCookie, error) {
	var all []models.UserCookie
	if err := db.Where("user_id = ?", userID).Find(&all).Error; err != nil {
		return nil, err
	}

	var matched []models.UserCookie
	for _, c := range all {
		if domainMatches(host, c.Domain) {
			matched = append(matched, c)
		}
	}
	return matched, nil
}

func domainMatches(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(strings.TrimPrefix(domain, "."))
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// Fetch retrieves the raw HTML at rawURL, applying the user's cookies for
// the target domain and the user's cached scrape headers. Non-2xx responses
// and transport failures are returned as *Error. There are no retries;
// retry policy belongs to the caller.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, userID uint) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &Error{Message: "invalid url: " + err.Error()}
	}

	jar, err := f.jarFor(userID, u)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &Error{Message: err.Error()}
	}
	for k, v := range ScrapeHeaders(f.db, userID) {
		req.Header.Set(k, v)
	}

	client := &http.Client{Transport: f.transport, Jar: jar, Timeout: f.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &Error{StatusCode: resp.StatusCode, Message: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", transportError(err)
	}

	return string(body), nil
}

func (f *Fetcher) jarFor(userID uint, u *url.URL) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, &Error{Message: err.Error()}
	}

	cookies, err := CookiesForHost(f.db, userID, u.Hostname())
	if err != nil {
		return nil, &Error{Message: "loading cookies: " + err.Error()}
	}

	httpCookies := make([]*http.Cookie, len(cookies))
	for i, c := range cookies {
		httpCookies[i] = &http.Cookie{Name: c.Name, Value: c.Value}
	}
	jar.SetCookies(u, httpCookies)
	return jar, nil
}

func transportError(err error) *Error {
	fe := &Error{Message: err.Error()}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		fe.Timeout = true
	}
	return fe
}
