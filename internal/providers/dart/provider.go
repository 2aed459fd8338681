// Package dart implements the OpenDART data provider.
// OpenDART is the Financial Supervisory Service's electronic disclosure API:
// periodic report listings, full financial statements per filing, the
// corp-code table and a daily disclosure RSS feed.
//
// Requires an API key (crtfc_key) from https://opendart.fss.or.kr.
// Rate limit: 20,000 requests per day per key; excess requests are rejected
// with status 020.
package dart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/pkg/models"
	"github.com/seenimoa/dartfin/pkg/utils"
)

const (
	providerName = "dart"

	// DefaultBaseURL is the OpenDART API root.
	DefaultBaseURL = "https://opendart.fss.or.kr/api"
	// DefaultFeedURL is the RSS feed of today's disclosures.
	DefaultFeedURL = "https://dart.fss.or.kr/api/todayRSS.xml"

	endpointStatement = "fnlttSinglAcntAll.json"
	endpointList      = "list.json"
	endpointCorpCode  = "corpCode.xml"

	defaultTimeout     = 30 * time.Second
	defaultCorpCodeTTL = 24 * time.Hour
)

// Provider implements provider.Provider for OpenDART.
type Provider struct {
	provider.BaseProvider
	client    *Client
	corpCodes *CorpCodes
	feed      *Feed
}

// New creates a DART provider and registers its fetchers. corpCodes and feed
// may be nil, in which case the corresponding models are not offered.
func New(client *Client, corpCodes *CorpCodes, feed *Feed) *Provider {
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"OpenDART - Korean corporate filings and financial statements",
			"https://opendart.fss.or.kr",
			[]provider.ProviderCredential{{
				Name:        "api_key",
				Description: "OpenDART certification key (crtfc_key)",
				Required:    true,
				EnvVar:      "DART_API_KEY",
			}},
		),
		client:    client,
		corpCodes: corpCodes,
		feed:      feed,
	}

	// --- Filings ---
	p.RegisterFetcher(newStatementFetcher(client))
	p.RegisterFetcher(newReportListFetcher(client))
	if feed != nil {
		p.RegisterFetcher(newDisclosureFeedFetcher(feed))
	}

	// --- Reference ---
	if corpCodes != nil {
		p.RegisterFetcher(newCorpCodeFetcher(corpCodes))
	}

	return p
}

// Client returns the API client backing the provider.
func (p *Provider) Client() *Client { return p.client }

// CorpCodes returns the corp-code table, or nil.
func (p *Provider) CorpCodes() *CorpCodes { return p.corpCodes }

// Ping checks connectivity and the API key with a one-row report search.
// Status 013 (nothing filed yesterday) still proves the key works.
func (p *Provider) Ping(ctx context.Context) error {
	now := utils.NowKST()
	resp, err := p.client.ReportList(ctx, ReportQuery{
		BeginDate: utils.FormatDate(now.AddDate(0, 0, -1)),
		EndDate:   utils.FormatDate(now),
		PageCount: 1,
	})
	if err != nil {
		return fmt.Errorf("dart ping: %w", err)
	}
	if err := StatusError(resp.Status, resp.Message); err != nil && !errors.Is(err, ErrNoData) {
		if resp.Status == models.StatusBadKey {
			return &provider.ErrInvalidCredentials{Provider: providerName, Detail: resp.Message}
		}
		return fmt.Errorf("dart ping: %w", err)
	}
	return nil
}
