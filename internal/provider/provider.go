// Package provider implements the data provider abstraction layer.
// It defines a Provider interface, a Fetcher interface, and a central registry
// that routes data requests to the appropriate provider based on model type.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderCredential describes a required credential for a provider.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "OpenDART certification key (crtfc_key)"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // environment variable name, e.g., "DART_API_KEY"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"`        // e.g., "dart"
	Description string               `json:"description"` // human-readable description
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"` // supported models
}

// Provider is the interface that all data providers must implement.
// Each provider registers one Fetcher per model type it serves.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init initializes the provider with credentials. Returns an error if
	// required credentials are missing.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for the given model type, or nil if unsupported.
	Fetcher(model ModelType) Fetcher

	// SupportedModels returns all model types this provider can fetch.
	SupportedModels() []ModelType

	// Ping verifies the provider's connectivity and credentials.
	Ping(ctx context.Context) error
}

// QueryParams is the generic query parameter map passed to fetchers.
// Each fetcher declares which keys it requires and which it accepts.
type QueryParams map[string]string

// Query parameter keys understood by the DART fetchers.
const (
	ParamStockCode  = "stock_code" // 6-digit KRX listing code
	ParamCorpCode   = "corp_code"  // 8-digit DART company identifier
	ParamYear       = "year"
	ParamQuarter    = "quarter" // 1Q..4Q
	ParamStartYear  = "start_year"
	ParamEndYear    = "end_year"
	ParamBeginDate  = "bgn_de" // YYYYMMDD
	ParamEndDate    = "end_de"
	ParamPageNo     = "page_no"
	ParamPageCount  = "page_count"
	ParamReportMode = "fs_div" // CFS or OFS
	ParamProvider   = "provider"
)

// FetchResult wraps a fetcher result with metadata.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"`
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher is the interface for fetching a single model type.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string

	// Fetch retrieves data for the given query parameters. The Data type
	// depends on the model:
	//   - FinancialStatement  → *models.StatementResponse
	//   - ReportList          → *models.ReportListResponse
	//   - CorpCode            → *models.CorpCode
	//   - DisclosureFeed      → []models.Disclosure
	//   - FinancialIndicators → *datasource.Series
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider doesn't support a model type.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// ErrMissingParam is returned when a required query parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidParam is returned when a query parameter cannot be interpreted.
type ErrInvalidParam struct {
	Param string
	Value string
}

func (e *ErrInvalidParam) Error() string {
	return fmt.Sprintf("invalid value %q for parameter %q", e.Value, e.Param)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ValidateParams checks that all required parameters are present in params.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
