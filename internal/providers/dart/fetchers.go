package dart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/pkg/models"
)

// ErrNotListed is returned when a stock code has no corp-code entry.
var ErrNotListed = errors.New("dart: stock code not listed")

// ---- FinancialStatement fetcher ----
// Full statement of one filing; consolidated first unless fs_div pins a mode.

type statementFetcher struct {
	provider.BaseFetcher
	client *Client
}

func newStatementFetcher(client *Client) *statementFetcher {
	return &statementFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelFinancialStatement,
			"Full financial statement of a periodic report (consolidated, falling back to standalone)",
			[]string{provider.ParamCorpCode, provider.ParamYear},
			[]string{provider.ParamQuarter, provider.ParamReportMode},
			10*time.Minute,
		),
		client: client,
	}
}

func (f *statementFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	year, err := intParam(params, provider.ParamYear, 0)
	if err != nil {
		return nil, err
	}
	quarter := models.Q4
	if s := params[provider.ParamQuarter]; s != "" {
		if quarter, err = models.ParseQuarter(s); err != nil {
			return nil, &provider.ErrInvalidParam{Param: provider.ParamQuarter, Value: s}
		}
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.CachedResult(cached), nil
	}

	corpCode := params[provider.ParamCorpCode]
	var resp *models.StatementResponse
	switch mode := models.ReportingMode(params[provider.ParamReportMode]); mode {
	case "":
		resp, err = f.client.FinancialStatements(ctx, corpCode, year, quarter.ReportCode())
	case models.Consolidated, models.Standalone:
		resp, err = f.client.Statement(ctx, corpCode, year, quarter.ReportCode(), mode)
	default:
		return nil, &provider.ErrInvalidParam{Param: provider.ParamReportMode, Value: string(mode)}
	}
	if err != nil {
		return nil, err
	}

	if resp.OK() {
		f.CacheSet(cacheKey, resp)
	}
	return provider.Result(resp), nil
}

// ---- ReportList fetcher ----

type reportListFetcher struct {
	provider.BaseFetcher
	client *Client
}

func newReportListFetcher(client *Client) *reportListFetcher {
	return &reportListFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelReportList,
			"Search periodic reports filed by a company",
			[]string{provider.ParamCorpCode},
			[]string{provider.ParamBeginDate, provider.ParamEndDate, provider.ParamPageNo, provider.ParamPageCount},
			10*time.Minute,
		),
		client: client,
	}
}

func (f *reportListFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	pageNo, err := intParam(params, provider.ParamPageNo, 1)
	if err != nil {
		return nil, err
	}
	pageCount, err := intParam(params, provider.ParamPageCount, 10)
	if err != nil {
		return nil, err
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.CachedResult(cached), nil
	}

	resp, err := f.client.ReportList(ctx, ReportQuery{
		CorpCode:  params[provider.ParamCorpCode],
		BeginDate: params[provider.ParamBeginDate],
		EndDate:   params[provider.ParamEndDate],
		PageNo:    pageNo,
		PageCount: pageCount,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == models.StatusOK {
		f.CacheSet(cacheKey, resp)
	}
	return provider.Result(resp), nil
}

// ---- CorpCode fetcher ----

type corpCodeFetcher struct {
	provider.BaseFetcher
	codes *CorpCodes
}

func newCorpCodeFetcher(codes *CorpCodes) *corpCodeFetcher {
	return &corpCodeFetcher{
		// The table carries its own TTL.
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCorpCode,
			"Map a six-digit stock code to its DART corp code",
			[]string{provider.ParamStockCode},
			nil,
			0,
		),
		codes: codes,
	}
}

func (f *corpCodeFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	stockCode := params[provider.ParamStockCode]
	entry, ok, err := f.codes.Lookup(ctx, stockCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotListed, stockCode)
	}
	return provider.Result(&entry), nil
}

// ---- DisclosureFeed fetcher ----

type disclosureFeedFetcher struct {
	provider.BaseFetcher
	feed *Feed
}

func newDisclosureFeedFetcher(feed *Feed) *disclosureFeedFetcher {
	return &disclosureFeedFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelDisclosureFeed,
			"Today's disclosures from the DART RSS feed",
			nil, nil, 0,
		),
		feed: feed,
	}
}

func (f *disclosureFeedFetcher) Fetch(ctx context.Context, _ provider.QueryParams) (*provider.FetchResult, error) {
	items, err := f.feed.Today(ctx)
	if err != nil {
		return nil, err
	}
	return provider.Result(items), nil
}

// --- helpers ---

func intParam(params provider.QueryParams, key string, def int) (int, error) {
	s := params[key]
	if s == "" {
		if def == 0 {
			return 0, &provider.ErrMissingParam{Param: key}
		}
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return 0, &provider.ErrInvalidParam{Param: key, Value: s}
	}
	return v, nil
}
