// dartfin computes quarterly financial indicators for KRX-listed companies
// from OpenDART filings.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/seenimoa/dartfin/api"
	"github.com/seenimoa/dartfin/internal/config"
	"github.com/seenimoa/dartfin/internal/logger"
	"github.com/seenimoa/dartfin/internal/provider"
	"github.com/seenimoa/dartfin/internal/providers"
	"github.com/seenimoa/dartfin/internal/providers/dart"
	"github.com/seenimoa/dartfin/pkg/models"
	"github.com/seenimoa/dartfin/pkg/utils"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config and logger, set by PersistentPreRunE.
var (
	cfg *config.Config
	log zerolog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dartfin",
	Short: "dartfin - financial indicators from OpenDART filings",
	Long: `dartfin fetches periodic financial statements of KRX-listed companies
from OpenDART (consolidated first, standalone as fallback), resolves the
key accounts and computes growth, profitability and liquidity indicators
for every quarter in a year range.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		level := cfg.Logging.Level
		if override, _ := cmd.Flags().GetString("log-level"); override != "" {
			level = override
		}
		log = logger.New(logger.Config{Level: level, Pretty: cfg.Logging.Pretty()})
		logger.SetGlobal(log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "overall request timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(indicatorsCmd)
	rootCmd.AddCommand(statementsCmd)
	rootCmd.AddCommand(multiYearCmd)
	rootCmd.AddCommand(reportsCmd)
	rootCmd.AddCommand(corpCodeCmd)
	rootCmd.AddCommand(disclosuresCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
}

// --- helpers ---

// stack registers the DART provider with the global registry.
func stack() (*providers.Stack, error) {
	return providers.RegisterAll(cfg, log)
}

// commandContext is cancelled on SIGINT/SIGTERM or after --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func quarterFlag(cmd *cobra.Command) (models.Quarter, error) {
	s, _ := cmd.Flags().GetString("quarter")
	return models.ParseQuarter(s)
}

func yearFlags(cmd *cobra.Command) (int, int, error) {
	end, _ := cmd.Flags().GetInt("end-year")
	if end == 0 {
		end = utils.NowKST().Year()
	}
	start, _ := cmd.Flags().GetInt("start-year")
	if start == 0 {
		start = end
	}
	if start > end {
		return 0, 0, fmt.Errorf("start year %d is after end year %d", start, end)
	}
	if end-start+1 > api.MaxYearSpan {
		return 0, 0, fmt.Errorf("year range %d-%d exceeds %d years", start, end, api.MaxYearSpan)
	}
	return start, end, nil
}

func corpCodeArg(s string) (string, error) {
	if !utils.IsCorpCode(s) {
		return "", fmt.Errorf("corp code must be 8 digits, got %q", s)
	}
	return s, nil
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print version information",
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dartfin %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Indicators Command ---

var indicatorsCmd = &cobra.Command{
	Use:   "indicators [stock-code]",
	Short: "Compute quarterly indicators for a listed company",
	Long: `Compute revenue growth, operating profit growth, ROE, debt ratio,
current ratio and operating margin for every quarter in a year range.

Examples:
  dartfin indicators 005930 --start-year 2021 --end-year 2023
  dartfin indicators A000660`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := utils.ValidateStockCode(args[0]); err != nil {
			return err
		}
		start, end, err := yearFlags(cmd)
		if err != nil {
			return err
		}
		s, err := stack()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		series, err := s.Aggregator.BuildIndicatorSeries(ctx, args[0], start, end)
		if series != nil {
			if perr := printJSON(series); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	indicatorsCmd.Flags().Int("start-year", 0, "first fiscal year (default: end year)")
	indicatorsCmd.Flags().Int("end-year", 0, "last fiscal year (default: current year)")
}

// --- Statements Command ---

var statementsCmd = &cobra.Command{
	Use:   "statements [corp-code]",
	Short: "Fetch one financial statement (CFS, falling back to OFS)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corpCode, err := corpCodeArg(args[0])
		if err != nil {
			return err
		}
		q, err := quarterFlag(cmd)
		if err != nil {
			return err
		}
		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = utils.NowKST().Year() - 1
		}
		mode, _ := cmd.Flags().GetString("fs-div")

		s, err := stack()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var resp *models.StatementResponse
		switch m := models.ReportingMode(strings.ToUpper(mode)); m {
		case "":
			resp, err = s.Client.FinancialStatements(ctx, corpCode, year, q.ReportCode())
		case models.Consolidated, models.Standalone:
			resp, err = s.Client.Statement(ctx, corpCode, year, q.ReportCode(), m)
		default:
			return fmt.Errorf("--fs-div must be CFS or OFS, got %q", mode)
		}
		if err != nil {
			return err
		}
		log.Debug().Str("fs_div", string(resp.Mode)).Str("status", resp.Status).Msg("statement fetched")
		return printJSON(api.StatementResult{
			Status:  resp.Status,
			Message: resp.Message,
			Mode:    string(resp.Mode),
			List:    resp.List,
		})
	},
}

func init() {
	statementsCmd.Flags().Int("year", 0, "fiscal year (default: last year)")
	statementsCmd.Flags().String("quarter", "4Q", "report period: 1Q, 2Q, 3Q or 4Q")
	statementsCmd.Flags().String("fs-div", "", "pin the reporting mode (CFS or OFS)")
}

// --- Multi-year Command ---

var multiYearCmd = &cobra.Command{
	Use:   "multi-year [corp-code]",
	Short: "Fetch the same report for a range of years",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corpCode, err := corpCodeArg(args[0])
		if err != nil {
			return err
		}
		q, err := quarterFlag(cmd)
		if err != nil {
			return err
		}
		start, end, err := yearFlags(cmd)
		if err != nil {
			return err
		}
		s, err := stack()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		out, err := s.Client.MultiYearStatements(ctx, corpCode, start, end, q.ReportCode())
		if err != nil {
			return err
		}
		return printJSON(out)
	},
}

func init() {
	multiYearCmd.Flags().Int("start-year", 0, "first fiscal year (default: end year)")
	multiYearCmd.Flags().Int("end-year", 0, "last fiscal year (default: current year)")
	multiYearCmd.Flags().String("quarter", "4Q", "report period: 1Q, 2Q, 3Q or 4Q")
}

// --- Reports Command ---

var reportsCmd = &cobra.Command{
	Use:   "reports [corp-code]",
	Short: "List periodic reports filed by a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corpCode, err := corpCodeArg(args[0])
		if err != nil {
			return err
		}
		q := dart.ReportQuery{CorpCode: corpCode}
		q.BeginDate, _ = cmd.Flags().GetString("from")
		q.EndDate, _ = cmd.Flags().GetString("to")
		q.PageNo, _ = cmd.Flags().GetInt("page")
		q.PageCount, _ = cmd.Flags().GetInt("page-count")
		for _, d := range []string{q.BeginDate, q.EndDate} {
			if d == "" {
				continue
			}
			if _, err := utils.ParseDate(d); err != nil {
				return err
			}
		}

		s, err := stack()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		resp, err := s.Client.ReportList(ctx, q)
		if err != nil {
			return err
		}
		if err := dart.StatusError(resp.Status, resp.Message); err != nil && !errors.Is(err, dart.ErrNoData) {
			return err
		}
		return printJSON(resp)
	},
}

func init() {
	reportsCmd.Flags().String("from", "", "first filing date (YYYYMMDD)")
	reportsCmd.Flags().String("to", "", "last filing date (YYYYMMDD)")
	reportsCmd.Flags().Int("page", 1, "page number")
	reportsCmd.Flags().Int("page-count", 10, "entries per page (max 100)")
}

// --- Corp Code Command ---

var corpCodeCmd = &cobra.Command{
	Use:   "corpcode [stock-code]",
	Short: "Look up the DART corp code of a listed company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := utils.ValidateStockCode(args[0]); err != nil {
			return err
		}
		s, err := stack()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		entry, ok, err := s.CorpCodes.Lookup(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("company with stock code %s not found", utils.NormalizeStockCode(args[0]))
		}
		return printJSON(entry)
	},
}

// --- Disclosures Command ---

var disclosuresCmd = &cobra.Command{
	Use:   "disclosures",
	Short: "Show today's disclosures from the DART RSS feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := stack()
		if err != nil {
			return err
		}
		if s.Feed == nil {
			return errors.New("no disclosure feed configured (dart.feed_url)")
		}
		ctx, cancel := commandContext(cmd)
		defer cancel()

		items, err := s.Feed.Today(ctx)
		if err != nil {
			return err
		}
		for _, d := range items {
			fmt.Printf("%-20s %-12s %s\n", d.CorpName, d.Category, d.Title)
		}
		return nil
	},
}

// --- Providers Command ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List registered providers and the models they serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := stack()
		if err != nil {
			return err
		}
		info := s.Provider.Info()
		fmt.Printf("%s  %s\n", info.Name, info.Description)
		for _, c := range provider.Global().Coverage() {
			desc := ""
			if f := s.Provider.Fetcher(c.Model); f != nil {
				desc = f.Description()
			}
			fmt.Printf("  - %-20s default=%s providers=%s  %s\n",
				c.Model, c.Default, strings.Join(c.Providers, ","), desc)
		}
		return nil
	},
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := stack()
		if err != nil {
			return err
		}
		api.Version = version

		srv := api.NewServer(cfg, api.Services{
			Aggregator: s.Aggregator,
			Client:     s.Client,
			CorpCodes:  s.CorpCodes,
			Feed:       s.Feed,
			Metrics:    s.Metrics,
		}, log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx, fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	},
}

// --- Status Command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and check the OpenDART key",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("═══════════════════════════════════════")
		fmt.Println("  dartfin - System Status")
		fmt.Println("═══════════════════════════════════════")
		fmt.Printf("  Version:       %s (%s)\n", version, commit)
		fmt.Printf("  Time (KST):    %s\n", utils.NowKST().Format("2006-01-02 15:04:05"))
		fmt.Println()

		fmt.Println("  Configuration:")
		fmt.Printf("    DART API:      %s\n", cfg.DART.BaseURL)
		fmt.Printf("    Rate limit:    %d per %s\n", cfg.DART.RateLimit, cfg.DART.RateWindow())
		fmt.Printf("    Concurrency:   %d\n", cfg.DART.ConcurrentFetches)
		corpSource := "download"
		if cfg.DART.CorpCodeFile != "" {
			corpSource = cfg.DART.CorpCodeFile
		}
		fmt.Printf("    Corp codes:    %s\n", corpSource)
		fmt.Printf("    API Server:    %s:%d\n", cfg.API.Host, cfg.API.Port)
		fmt.Println()

		fmt.Println("  API Keys:")
		for _, k := range config.CheckAPIKeys(cfg) {
			status := "❌ not set"
			if k.IsSet {
				status = fmt.Sprintf("✅ set (%s: %s)", k.Source, k.Masked)
			}
			fmt.Printf("    %-25s %s\n", k.Name+":", status)
		}

		if ping, _ := cmd.Flags().GetBool("ping"); ping {
			fmt.Println()
			s, err := stack()
			if err != nil {
				fmt.Printf("  Ping:          ❌ %v\n", err)
			} else {
				ctx, cancel := commandContext(cmd)
				defer cancel()
				if err := s.Provider.Ping(ctx); err != nil {
					fmt.Printf("  Ping:          ❌ %v\n", err)
				} else {
					fmt.Println("  Ping:          ✅ ok")
				}
				if n, err := s.CorpCodes.Len(ctx); err != nil {
					fmt.Printf("  Listed corps:  ❌ %v\n", err)
				} else {
					fmt.Printf("  Listed corps:  %d\n", n)
				}
			}
		}

		fmt.Println("═══════════════════════════════════════")
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("ping", false, "call OpenDART to verify the key")
}
