package models

import "time"

// --- DART disclosures ---

// ReportListResponse is the envelope returned by list.json.
type ReportListResponse struct {
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	PageNo     int      `json:"page_no"`
	PageCount  int      `json:"page_count"`
	TotalCount int      `json:"total_count"`
	TotalPage  int      `json:"total_page"`
	List       []Report `json:"list,omitempty"`
}

// Report is one filing entry in a report list.
type Report struct {
	CorpCode  string `json:"corp_code"`
	CorpName  string `json:"corp_name"`
	StockCode string `json:"stock_code"`
	CorpCls   string `json:"corp_cls"` // Y: KOSPI, K: KOSDAQ, N: KONEX, E: other
	ReportNm  string `json:"report_nm"`
	RceptNo   string `json:"rcept_no"`
	FlrNm     string `json:"flr_nm"`
	RceptDt   string `json:"rcept_dt"` // YYYYMMDD
	Rm        string `json:"rm"`
}

// CorpCode maps a listed company's stock code to its DART identifier.
type CorpCode struct {
	CorpCode   string `json:"corp_code"   xml:"corp_code"`
	CorpName   string `json:"corp_name"   xml:"corp_name"`
	StockCode  string `json:"stock_code"  xml:"stock_code"`
	ModifyDate string `json:"modify_date" xml:"modify_date"`
}

// Disclosure is one item of the daily disclosure RSS feed.
type Disclosure struct {
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	CorpName    string     `json:"corp_name,omitempty"`
	Category    string     `json:"category,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}
