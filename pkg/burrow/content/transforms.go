// Package content turns raw fetched HTML into a cleaned, displayable
// article plus structured metadata.
package content

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ApplyAllTransforms runs the full cleanup pipeline over raw HTML and
// returns displayable article HTML. The stage order is fixed: image-link
// normalization must run before the readability pass (so captioned-image
// wrappers don't confuse the boilerplate heuristic), and URL absolutization
// runs last so only surviving elements are rewritten.
func ApplyAllTransforms(rawHTML string, originURL string) (string, error) {
	origin, err := url.Parse(originURL)
	if err != nil {
		return "", fmt.Errorf("parse origin url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	convertImageLinks(doc)
	doc = readabilityExtract(doc, origin)
	removeDeadMarkup(doc)
	absolutizeURLs(doc, origin)

	return doc.Html()
}

// convertImageLinks normalizes the captioned-image markup some newsletter
// platforms emit: the wrapper containers are unwrapped, the expand
// decorations are dropped, and anchors carrying an image-link class become
// plain <img> tags. All other anchors are left alone.
func convertImageLinks(doc *goquery.Document) {
	doc.Find(".captioned-image-container").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})
	doc.Find(".image-link-expand").Remove()
	doc.Find("a.image-link").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}
		// Built as a node so the href is attribute-escaped on render.
		s.ReplaceWithNodes(&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Img,
			Data:     "img",
			Attr:     []html.Attribute{{Key: "src", Val: href}},
		})
	})
}

// readabilityExtract strips navigation and boilerplate, keeping the main
// article subtree. Extraction is best-effort: if the heuristic fails or
// produces nothing the document is returned unchanged.
func readabilityExtract(doc *goquery.Document, origin *url.URL) *goquery.Document {
	markup, err := doc.Html()
	if err != nil {
		return doc
	}

	article, err := readability.FromReader(strings.NewReader(markup), origin)
	if err != nil || article.Content == "" {
		return doc
	}

	reduced, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return doc
	}
	return reduced
}

// removeDeadMarkup unwraps legacy styling tags, keeping their children, and
// deletes interactive-map remnants entirely.
func removeDeadMarkup(doc *goquery.Document) {
	doc.Find("font").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithSelection(s.Contents())
	})
	doc.Find("area, map").Remove()
}

// absolutizeURLs resolves relative anchor hrefs, image srcs, and srcset
// entries against the origin URL. URLs that already carry a network
// location are left untouched.
func absolutizeURLs(doc *goquery.Document, origin *url.URL) {
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok {
			s.SetAttr("href", resolveAgainst(origin, href))
		}
	})
	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			s.SetAttr("src", resolveAgainst(origin, src))
		}
	})
	doc.Find("img[srcset]").Each(func(_ int, s *goquery.Selection) {
		if srcset, ok := s.Attr("srcset"); ok {
			s.SetAttr("srcset", rewriteSrcset(origin, srcset))
		}
	})
}

// resolveAgainst resolves raw against origin when raw has no network
// location. Absolute and protocol-relative URLs pass through unchanged.
func resolveAgainst(origin *url.URL, raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if u.Host != "" {
		return raw
	}
	return origin.ResolveReference(u).String()
}

// rewriteSrcset resolves each URL of a srcset attribute individually,
// preserving width/density descriptors verbatim. Entries are rejoined with
// commas.
func rewriteSrcset(origin *url.URL, srcset string) string {
	entries := strings.Split(srcset, ",")
	rewritten := make([]string, 0, len(entries))
	for _, entry := range entries {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		resolved := resolveAgainst(origin, fields[0])
		if len(fields) > 1 {
			resolved += " " + strings.Join(fields[1:], " ")
		}
		rewritten = append(rewritten, resolved)
	}
	return strings.Join(rewritten, ",")
}
