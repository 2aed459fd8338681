package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/seenimoa/dartfin/internal/config"
	"github.com/seenimoa/dartfin/internal/datasource"
	"github.com/seenimoa/dartfin/internal/metrics"
	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/internal/providers/dart"
	"github.com/seenimoa/dartfin/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

const (
	corpSamsung    = "00126380" // consolidated filer
	corpStandalone = "00000002" // standalone only
	corpBroken     = "00000003" // upstream fails
)

const corpCodeXML = `<?xml version="1.0" encoding="UTF-8"?>
<result>
<list><corp_code>00126380</corp_code><corp_name>삼성전자</corp_name><stock_code>005930</stock_code><modify_date>20230101</modify_date></list>
<list><corp_code>00000002</corp_code><corp_name>단독회사</corp_name><stock_code>000002</stock_code><modify_date>20230101</modify_date></list>
<list><corp_code>00000009</corp_code><corp_name>비상장</corp_name><stock_code> </stock_code><modify_date>20230101</modify_date></list>
</result>`

const todayRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel><title>오늘의공시</title>
<item><title>[기재정정]사업보고서</title><link>https://dart.fss.or.kr/1</link><category>정기공시</category><dc:creator>삼성전자</dc:creator><pubDate>Mon, 16 Oct 2023 09:00:00 +0900</pubDate></item>
</channel></rss>`

const annualStatement = `{"status":"000","message":"정상","list":[
{"account_nm":"유동자산","thstrm_amount":"150"},
{"account_nm":"부채총계","thstrm_amount":"100"},
{"account_nm":"유동부채","thstrm_amount":"100"},
{"account_nm":"자본총계","thstrm_amount":"200"},
{"account_nm":"매출액","thstrm_amount":"1,000"},
{"account_nm":"영업이익","thstrm_amount":"125"},
{"account_nm":"당기순이익","thstrm_amount":"40"}]}`

// fakeDART serves the OpenDART endpoints the API touches.
type fakeDART struct {
	statements atomic.Int32
}

func (f *fakeDART) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case strings.HasSuffix(r.URL.Path, "/fnlttSinglAcntAll.json"):
		f.statements.Add(1)
		corp, mode := q.Get("corp_code"), q.Get("fs_div")
		switch {
		case corp == corpBroken:
			http.Error(w, "bad gateway", http.StatusBadGateway)
		case corp == corpSamsung && mode == "CFS" && q.Get("reprt_code") == "11011" && q.Get("bsns_year") == "2023":
			_, _ = w.Write([]byte(annualStatement))
		case corp == corpStandalone && mode == "OFS":
			_, _ = w.Write([]byte(annualStatement))
		default:
			_, _ = w.Write([]byte(`{"status":"013","message":"조회된 데이타가 없습니다."}`))
		}
	case strings.HasSuffix(r.URL.Path, "/list.json"):
		_, _ = w.Write([]byte(`{"status":"000","message":"정상","page_no":1,"page_count":10,"total_count":1,"total_page":1,
"list":[{"corp_code":"00126380","corp_name":"삼성전자","stock_code":"005930","corp_cls":"Y","report_nm":"사업보고서 (2023.12)","rcept_no":"20240312000736","flr_nm":"삼성전자","rcept_dt":"20240312","rm":"연"}]}`))
	case strings.HasSuffix(r.URL.Path, "/rss"):
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(todayRSS))
	default:
		http.NotFound(w, r)
	}
}

func testServer(t *testing.T) (*Server, *fakeDART) {
	t.Helper()
	fake := &fakeDART{}
	upstream := httptest.NewServer(fake)
	t.Cleanup(upstream.Close)

	file := filepath.Join(t.TempDir(), "CORPCODE.xml")
	if err := os.WriteFile(file, []byte(corpCodeXML), 0o644); err != nil {
		t.Fatal(err)
	}

	m := metrics.New()
	client := dart.NewClient(dart.ClientConfig{
		APIKey:  "test-key-123456",
		BaseURL: upstream.URL,
		Metrics: m,
		Logger:  zerolog.Nop(),
	})
	corpCodes := dart.NewCorpCodes(client, file, 0)
	feed := dart.NewFeed(upstream.URL+"/rss", upstream.Client(), zerolog.Nop())
	agg := datasource.NewAggregator(client, corpCodes, datasource.Options{Logger: zerolog.Nop(), Metrics: m})

	reg := provider.NewRegistry()
	p := dart.New(client, corpCodes, feed)
	p.RegisterFetcher(datasource.NewIndicatorFetcher(agg))
	if err := reg.Register(p); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		DART: config.DARTConfig{APIKey: "test-key-123456", BaseURL: upstream.URL},
		API:  config.APIConfig{Port: 8080, CORSOrigins: []string{"http://localhost:3000"}},
	}
	srv := NewServer(cfg, Services{
		Aggregator: agg,
		Client:     client,
		CorpCodes:  corpCodes,
		Feed:       feed,
		Registry:   reg,
		Metrics:    m,
	}, zerolog.Nop())
	return srv, fake
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

// decodeData re-decodes the Data field of the envelope into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success, got error %q", env.Error)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

// ════════════════════════════════════════════════════════════════════
// Health & metadata
// ════════════════════════════════════════════════════════════════════

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := doGet(t, srv, path)
		expectStatus(t, rec, http.StatusOK)
		resp := decodeResponse(t, rec)
		if !resp.Success {
			t.Errorf("%s: expected success", path)
		}
		data, ok := resp.Data.(map[string]interface{})
		if !ok || data["status"] != "ok" {
			t.Errorf("%s: unexpected data %v", path, resp.Data)
		}
	}
}

func TestProviders(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/providers")
	expectStatus(t, rec, http.StatusOK)

	var infos []provider.ProviderInfo
	decodeData(t, rec, &infos)
	if len(infos) != 1 || infos[0].Name != "dart" {
		t.Fatalf("unexpected providers %+v", infos)
	}
	if len(infos[0].Models) != len(provider.AllModels) {
		t.Errorf("models = %v", infos[0].Models)
	}
}

func TestModels(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/models")
	expectStatus(t, rec, http.StatusOK)

	var cov []provider.ModelCoverage
	decodeData(t, rec, &cov)
	if len(cov) != len(provider.AllModels) {
		t.Fatalf("coverage = %+v", cov)
	}
	for i, c := range cov {
		if c.Model != provider.AllModels[i] || c.Default != "dart" {
			t.Errorf("coverage[%d] = %+v", i, c)
		}
	}
}

func TestGetConfigHidesKey(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/config")
	expectStatus(t, rec, http.StatusOK)

	body := rec.Body.String()
	if strings.Contains(body, "test-key-123456") {
		t.Fatal("config response leaks the API key")
	}
	if !strings.Contains(body, `"masked":"tes...456"`) {
		t.Errorf("expected masked key in %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := testServer(t)
	expectStatus(t, doGet(t, srv, "/api/v1/statements/"+corpSamsung+"?year=2023"), http.StatusOK)

	rec := doGet(t, srv, "/metrics")
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), "dartfin_dart_requests_total") {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Indicators
// ════════════════════════════════════════════════════════════════════

func TestIndicators(t *testing.T) {
	srv, fake := testServer(t)
	rec := doGet(t, srv, "/api/v1/indicators/005930?start_year=2023&end_year=2023")
	expectStatus(t, rec, http.StatusOK)

	var series datasource.Series
	decodeData(t, rec, &series)
	if series.CorpCode != corpSamsung {
		t.Errorf("corp code = %s", series.CorpCode)
	}
	if len(series.Periods) != 1 {
		t.Fatalf("periods = %v", series.Keys())
	}
	p := series.Periods["2023-4Q"]
	if p == nil {
		t.Fatal("missing 2023-4Q")
	}
	want := map[string]string{
		models.IndicatorROE:                   "20.00",
		models.IndicatorDebtRatio:             "50.00",
		models.IndicatorCurrentRatio:          "150.00",
		models.IndicatorOperatingMargin:       "12.50",
		models.IndicatorRevenueGrowth:         "0",
		models.IndicatorOperatingProfitGrowth: "0",
	}
	for name, v := range want {
		if p.Indicators[name] != v {
			t.Errorf("%s = %s, want %s", name, p.Indicators[name], v)
		}
	}
	if p.IncomeStatement.Revenue != 1000 {
		t.Errorf("revenue = %v", p.IncomeStatement.Revenue)
	}
	// Three empty quarters, each tried as CFS then OFS, plus one CFS hit.
	if got := fake.statements.Load(); got != 7 {
		t.Errorf("statement requests = %d, want 7", got)
	}
	if len(series.Diagnostics) != 3 {
		t.Errorf("diagnostics = %+v", series.Diagnostics)
	}
}

func TestIndicatorsDefaultsToCurrentYear(t *testing.T) {
	srv, fake := testServer(t)
	rec := doGet(t, srv, "/api/v1/indicators/005930")
	expectStatus(t, rec, http.StatusOK)
	if got := fake.statements.Load(); got != 8 {
		t.Errorf("statement requests = %d, want 8 (four quarters, both modes)", got)
	}
}

func TestIndicatorsNotFound(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/indicators/123456?start_year=2023&end_year=2023")
	expectStatus(t, rec, http.StatusNotFound)
	resp := decodeResponse(t, rec)
	if resp.Error != "company with stock code 123456 not found" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestIndicatorsBadParams(t *testing.T) {
	srv, _ := testServer(t)
	tests := []string{
		"/api/v1/indicators/abc?start_year=2023&end_year=2023",
		"/api/v1/indicators/005930?start_year=2024&end_year=2023",
		"/api/v1/indicators/005930?start_year=20x&end_year=2023",
		"/api/v1/indicators/005930?start_year=2023&end_year=99999",
		"/api/v1/indicators/005930?start_year=1900&end_year=9999",
		"/api/v1/indicators/005930?start_year=2003&end_year=2023",
	}
	for _, path := range tests {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Statements
// ════════════════════════════════════════════════════════════════════

func TestStatementConsolidated(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/statements/"+corpSamsung+"?year=2023")
	expectStatus(t, rec, http.StatusOK)

	var res StatementResult
	decodeData(t, rec, &res)
	if res.Mode != "CFS" || res.Status != "000" || len(res.List) != 7 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestStatementFallsBackToStandalone(t *testing.T) {
	srv, fake := testServer(t)
	rec := doGet(t, srv, "/api/v1/statements/"+corpStandalone+"?year=2023&quarter=4Q")
	expectStatus(t, rec, http.StatusOK)

	var res StatementResult
	decodeData(t, rec, &res)
	if res.Mode != "OFS" || res.Status != "000" {
		t.Errorf("unexpected result %+v", res)
	}
	if got := fake.statements.Load(); got != 2 {
		t.Errorf("statement requests = %d, want 2", got)
	}
}

func TestStatementPinnedMode(t *testing.T) {
	srv, fake := testServer(t)
	rec := doGet(t, srv, "/api/v1/statements/"+corpStandalone+"?year=2023&fs_div=CFS")
	expectStatus(t, rec, http.StatusOK)

	var res StatementResult
	decodeData(t, rec, &res)
	if res.Mode != "CFS" || res.Status != "013" {
		t.Errorf("unexpected result %+v", res)
	}
	if got := fake.statements.Load(); got != 1 {
		t.Errorf("pinned mode must not fall back; requests = %d", got)
	}
}

func TestStatementUpstreamError(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/statements/"+corpBroken+"?year=2023")
	expectStatus(t, rec, http.StatusBadGateway)
	if resp := decodeResponse(t, rec); resp.Success {
		t.Error("expected failure envelope")
	}
}

func TestStatementBadParams(t *testing.T) {
	srv, _ := testServer(t)
	tests := []string{
		"/api/v1/statements/123?year=2023",
		"/api/v1/statements/" + corpSamsung,
		"/api/v1/statements/" + corpSamsung + "?year=2023&quarter=5Q",
		"/api/v1/statements/" + corpSamsung + "?year=2023&fs_div=XYZ",
	}
	for _, path := range tests {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestMultiYear(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/statements/"+corpSamsung+"/multi-year?start_year=2022&end_year=2023")
	expectStatus(t, rec, http.StatusOK)

	var out map[string]json.RawMessage
	decodeData(t, rec, &out)
	if len(out) != 2 {
		t.Fatalf("years = %d, want 2", len(out))
	}
	if !strings.Contains(string(out["2023"]), "매출액") {
		t.Errorf("2023 should carry line items: %s", out["2023"])
	}
	if !strings.Contains(string(out["2022"]), "조회된 데이타가 없습니다.") {
		t.Errorf("2022 should carry the status message: %s", out["2022"])
	}

	rec = doGet(t, srv, "/api/v1/statements/"+corpSamsung+"/multi-year?start_year=2022")
	expectStatus(t, rec, http.StatusBadRequest)

	rec = doGet(t, srv, "/api/v1/statements/"+corpSamsung+"/multi-year?start_year=1900&end_year=9999")
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestYearRangeSpanLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"start_year=2004&end_year=2023", http.StatusOK},
		{"start_year=2003&end_year=2023", http.StatusBadRequest},
		{"start_year=1900&end_year=9999", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/?"+tt.query, nil)
		rec := httptest.NewRecorder()
		start, end, ok := yearRange(rec, req, 0)
		if tt.want == http.StatusOK {
			if !ok || end-start+1 != MaxYearSpan {
				t.Errorf("%s: got %d..%d ok=%v", tt.query, start, end, ok)
			}
			continue
		}
		if ok || rec.Code != tt.want {
			t.Errorf("%s: ok=%v status=%d, want %d", tt.query, ok, rec.Code, tt.want)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Filings & reference data
// ════════════════════════════════════════════════════════════════════

func TestReports(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/reports/"+corpSamsung+"?bgn_de=20240101&end_de=20241231")
	expectStatus(t, rec, http.StatusOK)

	var resp models.ReportListResponse
	decodeData(t, rec, &resp)
	if len(resp.List) != 1 || resp.List[0].RceptNo != "20240312000736" {
		t.Errorf("unexpected list %+v", resp.List)
	}
}

func TestReportsBadParams(t *testing.T) {
	srv, _ := testServer(t)
	tests := []string{
		"/api/v1/reports/" + corpSamsung + "?bgn_de=2024-01-01",
		"/api/v1/reports/" + corpSamsung + "?page_no=0",
		"/api/v1/reports/" + corpSamsung + "?page_count=101",
	}
	for _, path := range tests {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", path, rec.Code)
		}
	}
}

func TestCorpCode(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/corpcode/A005930")
	expectStatus(t, rec, http.StatusOK)

	var entry models.CorpCode
	decodeData(t, rec, &entry)
	if entry.CorpCode != corpSamsung || entry.CorpName != "삼성전자" {
		t.Errorf("unexpected entry %+v", entry)
	}

	expectStatus(t, doGet(t, srv, "/api/v1/corpcode/999999"), http.StatusNotFound)
	expectStatus(t, doGet(t, srv, "/api/v1/corpcode/ab-12"), http.StatusBadRequest)
}

func TestDisclosuresToday(t *testing.T) {
	srv, _ := testServer(t)
	rec := doGet(t, srv, "/api/v1/disclosures/today")
	expectStatus(t, rec, http.StatusOK)

	var items []models.Disclosure
	decodeData(t, rec, &items)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if items[0].CorpName != "삼성전자" || items[0].Category != "정기공시" {
		t.Errorf("unexpected item %+v", items[0])
	}
}

func TestUnconfiguredServices(t *testing.T) {
	srv := NewServer(&config.Config{}, Services{Metrics: metrics.New(), Registry: provider.NewRegistry()}, zerolog.Nop())
	for _, path := range []string{
		"/api/v1/indicators/005930?start_year=2023&end_year=2023",
		"/api/v1/corpcode/005930",
		"/api/v1/disclosures/today",
	} {
		rec := doGet(t, srv, path)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status = %d, want 503", path, rec.Code)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Envelope
// ════════════════════════════════════════════════════════════════════

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "short and stout")

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	resp := decodeResponse(t, rec)
	if resp.Success || resp.Error != "short and stout" || resp.Data != nil {
		t.Errorf("unexpected envelope %+v", resp)
	}
}
