package dart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dartfin/internal/infra"
	"github.com/seenimoa/dartfin/internal/metrics"
	"github.com/seenimoa/dartfin/pkg/models"
)

// ErrNoData matches an APIError carrying status 013 (no data for the query).
var ErrNoData = errors.New("dart: no data")

// APIError is a non-success status returned in a DART response envelope.
type APIError struct {
	Status  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dart api error %s: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrNoData) match status 013.
func (e *APIError) Is(target error) bool {
	return target == ErrNoData && e.Status == models.StatusNoData
}

// StatusError converts a response status into an error, nil for "000".
func StatusError(status, message string) error {
	if status == models.StatusOK {
		return nil
	}
	return &APIError{Status: status, Message: message}
}

// ClientConfig configures a Client. Zero values select the defaults.
type ClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	RateLimit  int           // requests per RateWindow, 0 disables limiting
	RateWindow time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Metrics    *metrics.Metrics
}

// Client calls the OpenDART REST API. It is safe for concurrent use; all
// requests share one rate limiter.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *infra.RateLimiter
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// NewClient creates a DART API client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Default()
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		limiter: infra.NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		log:     cfg.Logger.With().Str("component", "dart").Logger(),
		metrics: cfg.Metrics,
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// Statement fetches the full financial statement of one filing in a single
// reporting mode. A non-"000" status is returned in the response, not as an
// error; transport and decode failures are errors.
func (c *Client) Statement(ctx context.Context, corpCode string, year int, code models.ReportCode, mode models.ReportingMode) (*models.StatementResponse, error) {
	params := url.Values{}
	params.Set("corp_code", corpCode)
	params.Set("bsns_year", strconv.Itoa(year))
	params.Set("reprt_code", string(code))
	params.Set("fs_div", string(mode))

	var resp models.StatementResponse
	if err := c.getJSON(ctx, endpointStatement, params, &resp, func() string { return resp.Status }); err != nil {
		return nil, fmt.Errorf("dart statement %s %d/%s %s: %w", corpCode, year, code, mode, err)
	}
	resp.Mode = mode
	return &resp, nil
}

// FinancialStatements fetches a filing's statement, preferring consolidated
// figures. When the consolidated request reports any status other than
// "000", exactly one standalone request is made and its response is returned
// whatever its status. A transport error on the first request is returned
// without attempting the fallback.
func (c *Client) FinancialStatements(ctx context.Context, corpCode string, year int, code models.ReportCode) (*models.StatementResponse, error) {
	resp, err := c.Statement(ctx, corpCode, year, code, models.Consolidated)
	if err != nil {
		return nil, err
	}
	if resp.OK() {
		return resp, nil
	}

	c.log.Debug().
		Str("corp_code", corpCode).
		Int("year", year).
		Str("reprt_code", string(code)).
		Str("status", resp.Status).
		Msg("consolidated statement unavailable, retrying standalone")
	c.metrics.Fallbacks.Inc()

	return c.Statement(ctx, corpCode, year, code, models.Standalone)
}

// ReportQuery selects filings for ReportList.
type ReportQuery struct {
	CorpCode  string
	BeginDate string // YYYYMMDD
	EndDate   string // YYYYMMDD
	PageNo    int    // default 1
	PageCount int    // default 10
}

// ReportList searches periodic reports (pblntf_ty=A) of KOSPI-listed
// companies (corp_cls=Y), including superseded filings (last_reprt_at=N).
func (c *Client) ReportList(ctx context.Context, q ReportQuery) (*models.ReportListResponse, error) {
	if q.PageNo <= 0 {
		q.PageNo = 1
	}
	if q.PageCount <= 0 {
		q.PageCount = 10
	}

	params := url.Values{}
	if q.CorpCode != "" {
		params.Set("corp_code", q.CorpCode)
	}
	if q.BeginDate != "" {
		params.Set("bgn_de", q.BeginDate)
	}
	if q.EndDate != "" {
		params.Set("end_de", q.EndDate)
	}
	params.Set("last_reprt_at", "N")
	params.Set("pblntf_ty", "A")
	params.Set("corp_cls", "Y")
	params.Set("page_no", strconv.Itoa(q.PageNo))
	params.Set("page_count", strconv.Itoa(q.PageCount))

	var resp models.ReportListResponse
	if err := c.getJSON(ctx, endpointList, params, &resp, func() string { return resp.Status }); err != nil {
		return nil, fmt.Errorf("dart report list %s: %w", q.CorpCode, err)
	}
	return &resp, nil
}

// MultiYearStatements fetches the same report for every year in
// [startYear, endYear] concurrently. Each year maps to its line items, or to
// the API message when the response carried none. Any transport failure
// fails the whole call.
func (c *Client) MultiYearStatements(ctx context.Context, corpCode string, startYear, endYear int, code models.ReportCode) (map[string]any, error) {
	if startYear > endYear {
		return map[string]any{}, nil
	}

	n := endYear - startYear + 1
	responses := make([]*models.StatementResponse, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			resp, err := c.FinancialStatements(gctx, corpCode, startYear+i, code)
			if err != nil {
				return err
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, n)
	for i, resp := range responses {
		year := strconv.Itoa(startYear + i)
		if len(resp.List) > 0 {
			out[year] = resp.List
		} else {
			out[year] = resp.Message
		}
	}
	return out, nil
}

// --- transport ---

// getJSON performs a rate-limited GET of endpoint with the credential added
// and decodes the JSON body into dest. status reads the decoded envelope
// status for metrics.
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, dest any, status func() string) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dest); err != nil {
		c.metrics.Requests.WithLabelValues(endpoint, "decode_error").Inc()
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	c.metrics.Requests.WithLabelValues(endpoint, status()).Inc()
	return nil
}

// get performs a rate-limited GET and returns the open body.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("crtfc_key", c.apiKey)
	u := c.baseURL + "/" + endpoint + "?" + q.Encode()

	start := time.Now()
	body, _, err := infra.DoGetWith(ctx, c.http, u, nil)
	c.metrics.Latency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.Requests.WithLabelValues(endpoint, "transport_error").Inc()
		return nil, err
	}
	return body, nil
}
