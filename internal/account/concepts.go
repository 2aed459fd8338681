package account

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

//go:embed concepts.json
var defaultConceptsJSON []byte

// Concept is an abstract financial-statement line.
type Concept string

const (
	Revenue               Concept = "revenue"
	CostOfSales           Concept = "cost_of_sales"
	GrossProfit           Concept = "gross_profit"
	SellingAdminExpenses  Concept = "selling_admin_expenses"
	OperatingProfit       Concept = "operating_profit"
	NetIncome             Concept = "net_income"
	TotalAssets           Concept = "total_assets"
	CurrentAssets         Concept = "current_assets"
	NonCurrentAssets      Concept = "non_current_assets"
	TotalLiabilities      Concept = "total_liabilities"
	CurrentLiabilities    Concept = "current_liabilities"
	NonCurrentLiabilities Concept = "non_current_liabilities"
	TotalEquity           Concept = "total_equity"
	OperatingCashFlow     Concept = "operating_cash_flow"
	InvestingCashFlow     Concept = "investing_cash_flow"
	FinancingCashFlow     Concept = "financing_cash_flow"
)

// Concepts lists every concept the indicator engine resolves.
var Concepts = []Concept{
	Revenue, CostOfSales, GrossProfit, SellingAdminExpenses, OperatingProfit, NetIncome,
	TotalAssets, CurrentAssets, NonCurrentAssets,
	TotalLiabilities, CurrentLiabilities, NonCurrentLiabilities, TotalEquity,
	OperatingCashFlow, InvestingCashFlow, FinancingCashFlow,
}

// Entry binds a concept to its ordered keyword aliases.
type Entry struct {
	Concept Concept  `json:"concept"`
	Aliases []string `json:"aliases"`
	Notes   string   `json:"notes,omitempty"`
}

// Table is a versioned, ordered concept -> alias mapping.
type Table struct {
	Version     string  `json:"version"`
	Description string  `json:"description,omitempty"`
	Concepts    []Entry `json:"concepts"`

	index map[Concept]int
}

// DefaultTable returns the table embedded in the binary.
func DefaultTable() *Table {
	t, err := ParseTable(defaultConceptsJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded concepts.json: %v", err))
	}
	return t
}

// LoadTableFile reads a table from a JSON file.
func LoadTableFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open concept table: %w", err)
	}
	defer f.Close()
	return LoadTable(f)
}

// LoadTable reads a table from r.
func LoadTable(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read concept table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a JSON concept table. Every concept in
// Concepts must be present exactly once with at least one alias.
func ParseTable(data []byte) (*Table, error) {
	var t Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse concept table: %w", err)
	}
	if t.Version == "" {
		return nil, fmt.Errorf("concept table: missing version")
	}

	t.index = make(map[Concept]int, len(t.Concepts))
	for i, e := range t.Concepts {
		if _, dup := t.index[e.Concept]; dup {
			return nil, fmt.Errorf("concept table %s: duplicate concept %q", t.Version, e.Concept)
		}
		if len(e.Aliases) == 0 {
			return nil, fmt.Errorf("concept table %s: concept %q has no aliases", t.Version, e.Concept)
		}
		for j, a := range e.Aliases {
			if normalize(a) == "" {
				return nil, fmt.Errorf("concept table %s: concept %q alias %d is blank", t.Version, e.Concept, j)
			}
		}
		t.index[e.Concept] = i
	}
	for _, c := range Concepts {
		if _, ok := t.index[c]; !ok {
			return nil, fmt.Errorf("concept table %s: missing concept %q", t.Version, c)
		}
	}
	return &t, nil
}

// Aliases returns the ordered aliases of c, or nil if c is unknown.
func (t *Table) Aliases(c Concept) []string {
	i, ok := t.index[c]
	if !ok {
		return nil
	}
	return t.Concepts[i].Aliases
}
