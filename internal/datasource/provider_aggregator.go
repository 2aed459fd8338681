package datasource

import (
	"context"
	"strconv"
	"time"

	"github.com/seenimoa/dartfin/internal/provider"
)

// IndicatorFetcher exposes BuildIndicatorSeries as the FinancialIndicators
// model so the series can be requested through the provider registry.
type IndicatorFetcher struct {
	provider.BaseFetcher
	agg *Aggregator
}

// NewIndicatorFetcher wraps agg as a provider.Fetcher.
func NewIndicatorFetcher(agg *Aggregator) *IndicatorFetcher {
	return &IndicatorFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelFinancialIndicators,
			"Quarterly growth, profitability and liquidity indicators over a year range",
			[]string{provider.ParamStockCode, provider.ParamStartYear, provider.ParamEndYear},
			nil,
			30*time.Minute,
		),
		agg: agg,
	}
}

// Fetch builds the series. Series with failed or cancelled periods are not
// cached so a retry can fill them in.
func (f *IndicatorFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	start, err := yearParam(params, provider.ParamStartYear)
	if err != nil {
		return nil, err
	}
	end, err := yearParam(params, provider.ParamEndYear)
	if err != nil {
		return nil, err
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.CachedResult(cached), nil
	}

	series, err := f.agg.BuildIndicatorSeries(ctx, params[provider.ParamStockCode], start, end)
	if err != nil {
		return nil, err
	}
	if series.Complete() {
		f.CacheSet(cacheKey, series)
	}
	return provider.Result(series), nil
}

func yearParam(params provider.QueryParams, key string) (int, error) {
	s := params[key]
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 9999 {
		return 0, &provider.ErrInvalidParam{Param: key, Value: s}
	}
	return y, nil
}
