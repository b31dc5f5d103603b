package content

import (
	"fmt"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Read-time estimation constants: a standard silent-reading speed, plus a
// flat cost per embedded image.
const (
	wordsPerMinute  = 265
	secondsPerImage = 12
)

// EstimateReadTime estimates how long the cleaned, displayable HTML takes
// to read. It returns the estimate in seconds and a human-readable display
// string ("45 seconds", "3 min read").
func EstimateReadTime(cleanedHTML string) (int, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(cleanedHTML))
	if err != nil {
		return 0, "0 seconds"
	}

	words := len(strings.Fields(visibleText(doc)))
	images := doc.Find("img").Length()

	seconds := int(math.Round(float64(words)/wordsPerMinute*60)) + images*secondsPerImage
	return seconds, FormatReadTime(seconds)
}

// FormatReadTime renders a seconds estimate for display.
func FormatReadTime(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	minutes := int(math.Round(float64(seconds) / 60))
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("%d min read", minutes)
}
