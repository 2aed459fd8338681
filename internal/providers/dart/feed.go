package dart

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog"

	"github.com/seenimoa/dartfin/internal/infra"
	"github.com/seenimoa/dartfin/pkg/models"
)

// Feed reads DART's RSS feed of today's disclosures.
type Feed struct {
	url    string
	http   *http.Client
	parser *gofeed.Parser
	cache  *infra.Cache
	log    zerolog.Logger
}

// NewFeed creates a disclosure feed reader. Parsed feeds are cached for a
// few minutes since DART refreshes the feed throughout the day.
func NewFeed(feedURL string, httpClient *http.Client, log zerolog.Logger) *Feed {
	if feedURL == "" {
		feedURL = DefaultFeedURL
	}
	if httpClient == nil {
		httpClient = infra.HTTPClient
	}
	return &Feed{
		url:    feedURL,
		http:   httpClient,
		parser: gofeed.NewParser(),
		cache:  infra.NewCache(5 * time.Minute),
		log:    log.With().Str("component", "dart_feed").Logger(),
	}
}

// Today returns the disclosures currently listed in the feed, newest first
// as DART publishes them.
func (f *Feed) Today(ctx context.Context) ([]models.Disclosure, error) {
	if v, ok := f.cache.Get(f.url); ok {
		return v.([]models.Disclosure), nil
	}

	body, _, err := infra.DoGetWith(ctx, f.http, f.url, map[string]string{
		"Accept": "application/rss+xml, application/xml",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch disclosure feed: %w", err)
	}
	defer body.Close()

	feed, err := f.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse disclosure feed: %w", err)
	}

	out := make([]models.Disclosure, 0, len(feed.Items))
	for _, item := range feed.Items {
		out = append(out, disclosureFromItem(item))
	}
	f.cache.Set(f.url, out)

	f.log.Debug().Int("items", len(out)).Msg("fetched disclosure feed")
	return out, nil
}

func disclosureFromItem(item *gofeed.Item) models.Disclosure {
	d := models.Disclosure{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		PublishedAt: item.PublishedParsed,
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		d.CorpName = strings.TrimSpace(item.Authors[0].Name)
	}
	if d.CorpName == "" && item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		d.CorpName = strings.TrimSpace(item.DublinCoreExt.Creator[0])
	}
	if len(item.Categories) > 0 {
		d.Category = strings.TrimSpace(item.Categories[0])
	}
	d.Summary = htmlText(item.Description)
	return d
}

// htmlText flattens an HTML fragment to single-spaced plain text.
func htmlText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
