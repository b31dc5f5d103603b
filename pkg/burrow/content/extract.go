package content

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

// Metadata holds structured fields derived from a fetched page. Every field
// is populated: when the extraction heuristic comes up empty, a documented
// fallback applies.
type Metadata struct {
	CleanedURL     string
	Hostname       string
	Title          string
	Author         string
	Excerpt        string
	HeaderImageURL string
	RawText        string
	ArticleDate    time.Time
}

// UnknownAuthor is the fallback byline when no author can be derived.
const UnknownAuthor = "Unknown Author"

// Extract derives structured metadata from raw HTML. Extraction is
// best-effort: a failing heuristic degrades to per-field fallbacks rather
// than an error. Only unparseable input is an error.
func Extract(rawHTML string, originURL string) (Metadata, error) {
	origin, err := url.Parse(originURL)
	if err != nil {
		return Metadata{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return Metadata{}, err
	}

	// A failed extraction leaves article zero-valued; the fallbacks below
	// then apply across the board.
	article, _ := readability.FromReader(strings.NewReader(rawHTML), origin)

	md := Metadata{
		CleanedURL:     canonicalURL(doc, originURL),
		Author:         article.Byline,
		Title:          article.Title,
		Excerpt:        article.Excerpt,
		HeaderImageURL: article.Image,
		RawText:        article.TextContent,
	}

	if cleaned, err := url.Parse(md.CleanedURL); err == nil && cleaned.Hostname() != "" {
		md.Hostname = cleaned.Hostname()
	} else {
		md.Hostname = origin.Hostname()
	}

	if md.Author == "" {
		md.Author = UnknownAuthor
	}
	if md.Title == "" {
		md.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if md.RawText == "" {
		md.RawText = visibleText(doc)
	}

	if article.PublishedTime != nil {
		md.ArticleDate = *article.PublishedTime
	} else if parsed, ok := metaPublishedDate(doc); ok {
		md.ArticleDate = parsed
	} else {
		md.ArticleDate = time.Now()
	}

	return md, nil
}

// canonicalURL returns the page's own idea of its canonical location, or
// the origin URL when it declares none.
func canonicalURL(doc *goquery.Document, originURL string) string {
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
		return href
	}
	if content, ok := doc.Find(`meta[property="og:url"]`).First().Attr("content"); ok && content != "" {
		return content
	}
	return originURL
}

// metaPublishedDate parses a YYYY-MM-DD publication date from common meta
// tags.
func metaPublishedDate(doc *goquery.Document) (time.Time, bool) {
	for _, sel := range []string{
		`meta[property="article:published_time"]`,
		`meta[name="date"]`,
	} {
		content, ok := doc.Find(sel).First().Attr("content")
		if !ok || content == "" {
			continue
		}
		if len(content) >= 10 {
			if t, err := time.Parse("2006-01-02", content[:10]); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// visibleText returns the document's text content with whitespace
// collapsed, excluding script and style bodies.
func visibleText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
