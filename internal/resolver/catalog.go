package resolver

import (
	"context"
	"sort"
	"strings"

	"termbridge/internal/terminal"
)

const (
	DefaultListLimit = 80
	MaxListLimit     = 500
)

// Catalog searches the terminal's symbol catalog.
type Catalog struct {
	gate *terminal.Gate
}

func NewCatalog(gate *terminal.Gate) *Catalog {
	return &Catalog{gate: gate}
}

// ClampLimit maps a requested limit into 1..500. Callers substitute
// DefaultListLimit for a missing or unparseable limit.
func ClampLimit(limit int) int {
	switch {
	case limit < 1:
		return 1
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}

// List returns sorted, deduplicated symbol names matching query. A query
// without "*" or "?" is a substring match. At most 5000 raw entries are scanned.
func (c *Catalog) List(ctx context.Context, query string, limit int) ([]string, terminal.LastError, error) {
	group := ""
	if q := strings.ToUpper(strings.TrimSpace(query)); q != "" {
		group = q
		if !strings.ContainsAny(q, "*?") {
			group = "*" + q + "*"
		}
	}
	limit = ClampLimit(limit)

	var found []terminal.SymbolInfo
	last, err := c.gate.Do(ctx, "symbols_get", func(t terminal.Terminal) error {
		var err error
		found, err = t.SymbolsGet(group)
		return err
	})
	if err != nil {
		return []string{}, last, err
	}

	if len(found) > MaxCandidates {
		found = found[:MaxCandidates]
	}
	seen := make(map[string]struct{}, len(found))
	names := make([]string, 0, len(found))
	for _, s := range found {
		if s.Name == "" {
			continue
		}
		if _, ok := seen[s.Name]; ok {
			continue
		}
		seen[s.Name] = struct{}{}
		names = append(names, s.Name)
	}
	sort.Strings(names)
	if len(names) > limit {
		names = names[:limit]
	}
	return names, last, nil
}
