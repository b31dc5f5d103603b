package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html><head>
	<title>Fallback Title</title>
	<link rel="canonical" href="https://example.com/canonical-post"/>
	<meta property="article:published_time" content="2024-03-05T10:00:00Z"/>
</head><body>
	<article>
		<p>The quick brown fox jumps over the lazy dog, repeatedly, in a
		paragraph long enough to register as article content for the
		extraction heuristic. The pipeline needs some real prose here to
		exercise the text-content path end to end.</p>
	</article>
</body></html>`

func TestExtractCanonicalURLAndHostname(t *testing.T) {
	md, err := Extract(samplePage, "http://example.com/original?utm_source=x")
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/canonical-post", md.CleanedURL)
	assert.Equal(t, "example.com", md.Hostname)
}

func TestExtractFallbacks(t *testing.T) {
	bare := `<html><head><title>Just A Title</title></head><body><p>short</p></body></html>`
	md, err := Extract(bare, "http://fallback.example.org/page")
	require.NoError(t, err)

	assert.Equal(t, "http://fallback.example.org/page", md.CleanedURL, "no canonical declared: origin URL applies")
	assert.Equal(t, "fallback.example.org", md.Hostname)
	assert.Equal(t, UnknownAuthor, md.Author)
	assert.Equal(t, "Just A Title", md.Title)
	assert.Contains(t, md.RawText, "short")
	assert.WithinDuration(t, time.Now(), md.ArticleDate, time.Minute, "unknown date falls back to now")
}

func TestExtractMetaPublishedDate(t *testing.T) {
	md, err := Extract(samplePage, "http://example.com/original")
	require.NoError(t, err)

	assert.Equal(t, 2024, md.ArticleDate.Year())
	assert.Equal(t, time.Month(3), md.ArticleDate.Month())
	assert.Equal(t, 5, md.ArticleDate.Day())
}

func TestExtractRawTextExcludesScripts(t *testing.T) {
	page := `<html><body><p>visible words</p><script>var hidden = "secret";</script></body></html>`
	md, err := Extract(page, "http://example.com")
	require.NoError(t, err)

	assert.Contains(t, md.RawText, "visible words")
	assert.NotContains(t, md.RawText, "secret")
}

func TestExtractInvalidOriginURL(t *testing.T) {
	_, err := Extract("<html></html>", "http://bad url with spaces")
	assert.Error(t, err)
}
