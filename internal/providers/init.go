// Package providers wires the concrete data providers from configuration and
// registers them with a provider registry.
package providers

import (
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/seenimoa/dartfin/internal/account"
	"github.com/seenimoa/dartfin/internal/config"
	"github.com/seenimoa/dartfin/internal/datasource"
	"github.com/seenimoa/dartfin/internal/metrics"
	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/internal/providers/dart"
)

// Stack holds the components built from one configuration.
type Stack struct {
	Client     *dart.Client
	CorpCodes  *dart.CorpCodes
	Feed       *dart.Feed
	Provider   *dart.Provider
	Aggregator *datasource.Aggregator
	Metrics    *metrics.Metrics
}

// Build constructs the DART client, corp-code table, disclosure feed and
// indicator aggregator described by cfg. A nil m selects metrics.Default.
func Build(cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*Stack, error) {
	if m == nil {
		m = metrics.Default()
	}

	table := account.DefaultTable()
	if cfg.Accounts.ConceptsFile != "" {
		t, err := account.LoadTableFile(cfg.Accounts.ConceptsFile)
		if err != nil {
			return nil, fmt.Errorf("load concept table: %w", err)
		}
		table = t
		log.Info().Str("file", cfg.Accounts.ConceptsFile).Str("version", t.Version).Msg("loaded concept table")
	}

	httpClient := &http.Client{Timeout: cfg.DART.Timeout()}
	client := dart.NewClient(dart.ClientConfig{
		APIKey:     cfg.DART.APIKey,
		BaseURL:    cfg.DART.BaseURL,
		Timeout:    cfg.DART.Timeout(),
		RateLimit:  cfg.DART.RateLimit,
		RateWindow: cfg.DART.RateWindow(),
		HTTPClient: httpClient,
		Logger:     log,
		Metrics:    m,
	})
	corpCodes := dart.NewCorpCodes(client, cfg.DART.CorpCodeFile, cfg.DART.CorpCodeTTL())

	var feed *dart.Feed
	if cfg.DART.FeedURL != "" {
		feed = dart.NewFeed(cfg.DART.FeedURL, httpClient, log)
	}

	agg := datasource.NewAggregator(client, corpCodes, datasource.Options{
		Concurrency: cfg.DART.ConcurrentFetches,
		Resolver:    account.NewResolver(table, log),
		Logger:      log,
		Metrics:     m,
	})

	p := dart.New(client, corpCodes, feed)
	p.RegisterFetcher(datasource.NewIndicatorFetcher(agg))

	return &Stack{
		Client:     client,
		CorpCodes:  corpCodes,
		Feed:       feed,
		Provider:   p,
		Aggregator: agg,
		Metrics:    m,
	}, nil
}

// RegisterAll builds the stack and registers it with the global registry.
func RegisterAll(cfg *config.Config, log zerolog.Logger) (*Stack, error) {
	return RegisterAllTo(provider.Global(), cfg, log, nil)
}

// RegisterAllTo builds the stack and registers its providers to reg. The
// DART provider requires an API key; without one Init fails and nothing is
// registered.
func RegisterAllTo(reg *provider.Registry, cfg *config.Config, log zerolog.Logger, m *metrics.Metrics) (*Stack, error) {
	stack, err := Build(cfg, log, m)
	if err != nil {
		return nil, err
	}

	// --- OpenDART (requires API key) ---
	if err := stack.Provider.Init(map[string]string{"api_key": cfg.DART.APIKey}); err != nil {
		return nil, err
	}
	if err := reg.Register(stack.Provider); err != nil {
		return nil, err
	}
	return stack, nil
}
