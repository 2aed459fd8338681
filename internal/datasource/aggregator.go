package datasource

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dartfin/internal/account"
	"github.com/seenimoa/dartfin/internal/analysis/fundamental"
	"github.com/seenimoa/dartfin/internal/metrics"
	"github.com/seenimoa/dartfin/pkg/models"
	"github.com/seenimoa/dartfin/pkg/utils"
)

// DefaultConcurrency bounds in-flight statement fetches per aggregation.
const DefaultConcurrency = 4

// Options configures an Aggregator. Zero values select the defaults.
type Options struct {
	Concurrency int
	Resolver    *account.Resolver
	Logger      zerolog.Logger
	Metrics     *metrics.Metrics
}

// Aggregator builds indicator series for listed companies.
type Aggregator struct {
	statements  StatementFetcher
	corpCodes   CorpCodeLookup
	resolver    *account.Resolver
	concurrency int
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// NewAggregator creates an aggregator over the given collaborators.
func NewAggregator(statements StatementFetcher, corpCodes CorpCodeLookup, opts Options) *Aggregator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := opts.Logger.With().Str("component", "aggregator").Logger()
	if opts.Resolver == nil {
		opts.Resolver = account.NewResolver(nil, opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Default()
	}
	return &Aggregator{
		statements:  statements,
		corpCodes:   corpCodes,
		resolver:    opts.Resolver,
		concurrency: opts.Concurrency,
		log:         log,
		metrics:     opts.Metrics,
	}
}

// Series is the indicator dataset of one company over a year range.
type Series struct {
	StockCode   string                          `json:"stock_code"`
	CorpCode    string                          `json:"corp_code"`
	StartYear   int                             `json:"start_year"`
	EndYear     int                             `json:"end_year"`
	Periods     map[string]*models.PeriodResult `json:"periods"`
	Diagnostics []PeriodDiagnostic              `json:"diagnostics,omitempty"`
}

// Keys returns the period keys of the series in fiscal order.
func (s *Series) Keys() []string {
	keys := make([]string, 0, len(s.Periods))
	for k := range s.Periods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Complete reports whether every missing period is missing because DART
// has no data for it, rather than because of a failure or cancellation.
func (s *Series) Complete() bool {
	for _, d := range s.Diagnostics {
		if d.Reason == ReasonFetchFailed || d.Reason == ReasonCancelled {
			return false
		}
	}
	return true
}

// BuildIndicatorSeries fetches every quarterly statement of stockCode in
// [startYear, endYear] and computes the indicator set of each period that
// returned line items. Growth rates use the same quarter of the prior year
// when that period was fetched in the same call.
//
// A failed period is logged, recorded in Series.Diagnostics and omitted; it
// never aborts the others. Only an unknown stock code or a failure to load
// the corp-code table returns no Series. If ctx is cancelled, pending fetches
// are abandoned and the periods already fetched are still computed; the
// partial Series is returned together with ctx.Err().
func (a *Aggregator) BuildIndicatorSeries(ctx context.Context, stockCode string, startYear, endYear int) (*Series, error) {
	stockCode = utils.NormalizeStockCode(stockCode)
	corpCode, ok, err := a.corpCodes.CorpCode(ctx, stockCode)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ErrCompanyNotFound{StockCode: stockCode}
	}

	series := &Series{
		StockCode: stockCode,
		CorpCode:  corpCode,
		StartYear: startYear,
		EndYear:   endYear,
		Periods:   make(map[string]*models.PeriodResult),
	}

	fetched, diags := a.fetchAll(ctx, corpCode, startYear, endYear)
	series.Diagnostics = diags
	a.compute(series, fetched)

	a.log.Info().
		Str("stock_code", stockCode).
		Str("corp_code", corpCode).
		Int("start_year", startYear).
		Int("end_year", endYear).
		Int("periods", len(series.Periods)).
		Int("missing", len(series.Diagnostics)).
		Msg("built indicator series")

	return series, ctx.Err()
}

// fetchAll runs the bounded fan-out and returns the line items of every
// period that produced any, plus a diagnostic for every other period.
func (a *Aggregator) fetchAll(ctx context.Context, corpCode string, startYear, endYear int) (map[models.PeriodKey][]models.LineItem, []PeriodDiagnostic) {
	var (
		mu      sync.Mutex
		fetched = make(map[models.PeriodKey][]models.LineItem)
		diags   []PeriodDiagnostic
	)
	record := func(d PeriodDiagnostic) {
		mu.Lock()
		diags = append(diags, d)
		mu.Unlock()
		a.metrics.Periods.WithLabelValues(string(d.Reason)).Inc()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)

	for _, year := range utils.YearRange(startYear, endYear) {
		for _, q := range models.Quarters {
			key := models.PeriodKey{Year: year, Quarter: q}
			if ctx.Err() != nil {
				record(PeriodDiagnostic{Key: key.String(), Reason: ReasonCancelled, Err: ctx.Err()})
				continue
			}
			// Never returns an error: gctx is cancelled only through ctx.
			g.Go(func() error {
				items, diag := a.fetchPeriod(gctx, corpCode, key)
				if diag != nil {
					record(*diag)
					return nil
				}
				mu.Lock()
				fetched[key] = items
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	sort.Slice(diags, func(i, j int) bool { return diags[i].Key < diags[j].Key })
	return fetched, diags
}

func (a *Aggregator) fetchPeriod(ctx context.Context, corpCode string, key models.PeriodKey) ([]models.LineItem, *PeriodDiagnostic) {
	if err := ctx.Err(); err != nil {
		return nil, &PeriodDiagnostic{Key: key.String(), Reason: ReasonCancelled, Err: err}
	}

	resp, err := a.statements.FinancialStatements(ctx, corpCode, key.Year, key.Quarter.ReportCode())
	if err != nil {
		if ctx.Err() != nil {
			return nil, &PeriodDiagnostic{Key: key.String(), Reason: ReasonCancelled, Err: ctx.Err()}
		}
		a.log.Warn().Err(err).
			Str("period", key.String()).
			Str("corp_code", corpCode).
			Msg("statement fetch failed")
		return nil, &PeriodDiagnostic{Key: key.String(), Reason: ReasonFetchFailed, Message: err.Error(), Err: err}
	}

	if len(resp.List) == 0 {
		reason := ReasonAPIStatus
		if resp.Status == models.StatusNoData {
			reason = ReasonNoData
		}
		a.log.Debug().
			Str("period", key.String()).
			Str("corp_code", corpCode).
			Str("status", resp.Status).
			Str("message", resp.Message).
			Msg("no line items for period")
		return nil, &PeriodDiagnostic{Key: key.String(), Reason: reason, Status: resp.Status, Message: resp.Message}
	}
	return resp.List, nil
}

// compute resolves accounts and indicators for every fetched period in key
// order. It runs single-threaded after the fetch phase has settled.
func (a *Aggregator) compute(series *Series, fetched map[models.PeriodKey][]models.LineItem) {
	keys := make([]models.PeriodKey, 0, len(fetched))
	for k := range fetched {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	resolved := make(map[models.PeriodKey]account.Accounts, len(keys))
	resolve := func(k models.PeriodKey) account.Accounts {
		if acc, ok := resolved[k]; ok {
			return acc
		}
		acc, _ := a.resolver.ResolveAll(fetched[k])
		resolved[k] = acc
		return acc
	}

	for _, key := range keys {
		current := resolve(key)
		var prior *account.Accounts
		if _, ok := fetched[key.PriorYear()]; ok {
			p := resolve(key.PriorYear())
			prior = &p
		}

		series.Periods[key.String()] = &models.PeriodResult{
			Indicators:      fundamental.ComputeIndicators(current, prior),
			IncomeStatement: current.IncomeStatement(),
			BalanceSheet:    current.BalanceSheet(),
			CashFlow:        current.CashFlow(),
		}
		a.metrics.Periods.WithLabelValues("computed").Inc()
	}
}
