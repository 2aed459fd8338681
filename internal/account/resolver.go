// Package account resolves financial concepts (revenue, total equity, ...)
// from the loosely labelled line items of a DART financial statement.
//
// Matching is a substring search over whitespace-stripped account names:
// the first line item, in filing order, whose name contains any alias of the
// concept supplies the value. Amounts are read up to the first character that
// cannot continue a decimal number; missing or unparsable amounts resolve
// to 0.
package account

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/seenimoa/dartfin/pkg/models"
)

// Resolve returns the amount of the first item whose normalized account
// name contains any of aliases, or 0 when nothing matches or the amount
// does not parse.
func Resolve(items []models.LineItem, aliases []string) float64 {
	return find(items, aliases).Value
}

// Match records how a concept was resolved, for auditing misclassification.
type Match struct {
	Concept     Concept `json:"concept"`
	Found       bool    `json:"found"`
	Index       int     `json:"index"` // position in the line-item list, -1 if not found
	Alias       string  `json:"alias,omitempty"`
	AccountName string  `json:"account_name,omitempty"`
	RawAmount   string  `json:"raw_amount,omitempty"`
	Parsed      bool    `json:"parsed"` // false when the amount was absent or malformed
	Value       float64 `json:"value"`
}

func find(items []models.LineItem, aliases []string) Match {
	type alias struct{ raw, norm string }
	candidates := make([]alias, 0, len(aliases))
	for _, a := range aliases {
		if n := normalize(a); n != "" {
			candidates = append(candidates, alias{raw: a, norm: n})
		}
	}

	for i, item := range items {
		name := normalize(item.AccountNm)
		for _, a := range candidates {
			if !strings.Contains(name, a.norm) {
				continue
			}
			v, ok := ParseAmount(item.ThstrmAmount)
			return Match{
				Found:       true,
				Index:       i,
				Alias:       a.raw,
				AccountName: item.AccountNm,
				RawAmount:   item.ThstrmAmount,
				Parsed:      ok,
				Value:       v,
			}
		}
	}
	return Match{Index: -1}
}

// normalize removes all whitespace, including the byte-order mark some
// filings carry, and folds to Unicode NFC so decomposed Hangul compares
// equal to its precomposed form.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '\ufeff' {
			return -1
		}
		return r
	}, s)
	return norm.NFC.String(s)
}

// amountPrefix is the leading decimal number of an amount field. Trailing
// text such as a unit suffix ("1234원") is ignored.
var amountPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseAmount parses the leading decimal number of a comma-grouped amount.
// The bool is false when the field has no leading number or the number is
// not finite; the value is then 0.
func ParseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	num := amountPrefix.FindString(s)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Resolver resolves every concept of a Table against a line-item list.
type Resolver struct {
	table *Table
	log   zerolog.Logger
}

// NewResolver creates a resolver. A nil table selects DefaultTable.
func NewResolver(table *Table, log zerolog.Logger) *Resolver {
	if table == nil {
		table = DefaultTable()
	}
	return &Resolver{table: table, log: log.With().Str("component", "account").Logger()}
}

// Table returns the concept table in use.
func (r *Resolver) Table() *Table { return r.table }

// Match resolves a single concept and reports how it matched.
func (r *Resolver) Match(items []models.LineItem, c Concept) Match {
	m := find(items, r.table.Aliases(c))
	m.Concept = c
	return m
}

// ResolveAll resolves every concept. The returned matches follow the order
// of Concepts.
func (r *Resolver) ResolveAll(items []models.LineItem) (Accounts, []Match) {
	matches := make([]Match, 0, len(Concepts))
	values := make(map[Concept]float64, len(Concepts))
	for _, c := range Concepts {
		m := r.Match(items, c)
		matches = append(matches, m)
		values[c] = m.Value

		if e := r.log.Debug(); e.Enabled() {
			e.Str("concept", string(c)).
				Bool("found", m.Found).
				Str("alias", m.Alias).
				Str("account_nm", m.AccountName).
				Bool("parsed", m.Parsed).
				Str("table_version", r.table.Version).
				Msg("resolved account")
		}
	}
	return accountsFrom(values), matches
}
