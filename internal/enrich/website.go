package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// maxWebsiteChars caps the text handed to the model.
const maxWebsiteChars = 50000

// Fetcher downloads a church website and reduces it to plain text.
type Fetcher struct {
	Client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// FetchText gets the page at url and returns its visible text, whitespace
// collapsed and truncated to a model-friendly size.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ChurchFinderBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("website returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, noscript, svg, iframe").Remove()
	text := doc.Find("body").Text()

	text = strings.Join(strings.Fields(text), " ")
	if len(text) > maxWebsiteChars {
		text = text[:maxWebsiteChars]
	}
	return text, nil
}
