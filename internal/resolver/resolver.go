// Package resolver maps user-typed tickers to the terminal's canonical symbol names.
package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"termbridge/internal/metrics"
	"termbridge/internal/terminal"

	"go.uber.org/zap"
)

const (
	MaxSuggestions = 8
	MaxCandidates  = 5000
)

const (
	scoreExactUpper     = 1000
	scoreExactCanonical = 900
	scoreCanonicalStart = 850
	scoreUpperStart     = 800
	scoreVisible        = 10
	scoreForexPath      = 3
)

// Result is the outcome of one resolution. Symbol is empty when nothing matched.
type Result struct {
	Requested   string             `json:"requested"`
	Symbol      string             `json:"symbol,omitempty"`
	Suggestions []string           `json:"suggestions"`
	LastError   terminal.LastError `json:"last_error"`
}

// Found reports whether a canonical symbol was resolved.
func (r Result) Found() bool { return r.Symbol != "" }

// NotFoundError is returned when resolution is exhausted.
type NotFoundError struct {
	Requested   string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("symbol %q not found", e.Requested)
	}
	return fmt.Sprintf("symbol %q not found, did you mean %s", e.Requested, strings.Join(e.Suggestions, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == terminal.ErrSymbolNotFound }

type Resolver struct {
	gate    *terminal.Gate
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(gate *terminal.Gate, logger *zap.Logger, m *metrics.Metrics) *Resolver {
	return &Resolver{gate: gate, logger: logger, metrics: m}
}

// Resolve finds the canonical symbol for requested. The whole search runs while
// holding the terminal, so it is atomic with respect to other terminal callers.
// On failure Result still carries suggestions and the terminal's last error.
func (r *Resolver) Resolve(ctx context.Context, requested string) (Result, error) {
	raw := strings.TrimSpace(requested)
	res := Result{Requested: raw, Suggestions: []string{}}

	last, err := r.gate.Do(ctx, "resolve", func(t terminal.Terminal) error {
		if raw != "" {
			res.Symbol, res.Suggestions = search(t, raw)
		}
		return nil
	})
	res.LastError = last

	switch {
	case err != nil:
		// terminal down, cancelled, or a fault inside the search
		r.metrics.Resolution("error")
		return res, err
	case !res.Found():
		r.metrics.Resolution("not_found")
		r.logger.Debug("symbol not resolved",
			zap.String("requested", raw), zap.Strings("suggestions", res.Suggestions))
		return res, &NotFoundError{Requested: raw, Suggestions: res.Suggestions}
	default:
		r.metrics.Resolution("found")
		return res, nil
	}
}

// search expects the terminal to be held.
func search(t terminal.Terminal, raw string) (string, []string) {
	upper := strings.ToUpper(raw)
	lower := strings.ToLower(raw)
	canon := Canonical(raw)

	for _, variant := range dedupe([]string{raw, upper, lower}) {
		if _, err := t.SymbolInfo(variant); err != nil {
			continue
		}
		// selection failure still leaves the symbol usable for lookups
		_ = terminal.EnsureVisible(t, variant)
		return variant, []string{}
	}

	var candidates []terminal.SymbolInfo
	patterns := dedupe([]string{
		upper + "*", "*" + upper + "*",
		raw + "*", "*" + raw + "*",
		lower + "*", "*" + lower + "*",
	})
	for _, p := range patterns {
		found, err := t.SymbolsGet(p)
		if err == nil && len(found) > 0 {
			candidates = found
			break
		}
	}
	if len(candidates) == 0 && canon != "" {
		all, err := t.SymbolsGet("")
		if err == nil {
			candidates = all
		}
	}
	if len(candidates) == 0 {
		return "", []string{}
	}
	if len(candidates) > MaxCandidates {
		candidates = candidates[:MaxCandidates]
	}

	scored, suggestions := rank(candidates, upper, canon)
	suggestions = capSuggestions(suggestions)
	if len(scored) == 0 {
		return "", suggestions
	}

	best := scored[0].name
	if info, err := t.SymbolInfo(best); err == nil && !info.Visible {
		_ = t.SymbolSelect(best, true)
	}
	return best, suggestions
}

type scoredName struct {
	score int
	name  string
}

// rank filters candidates against the request and scores the survivors.
// Bonuses are additive. The result is sorted by score desc, length asc, name asc.
func rank(candidates []terminal.SymbolInfo, reqUpper, reqCanon string) ([]scoredName, []string) {
	var scored []scoredName
	var suggestions []string
	for _, c := range candidates {
		if c.Name == "" {
			continue
		}
		candUpper := strings.ToUpper(c.Name)
		candCanon := Canonical(c.Name)
		if reqCanon != "" && !strings.Contains(candCanon, reqCanon) && !strings.HasPrefix(candCanon, reqCanon) {
			continue
		}
		suggestions = append(suggestions, c.Name)

		score := 0
		if candUpper == reqUpper {
			score += scoreExactUpper
		}
		if reqCanon != "" && candCanon == reqCanon {
			score += scoreExactCanonical
		}
		if reqCanon != "" && strings.HasPrefix(candCanon, reqCanon) {
			score += scoreCanonicalStart
		}
		if strings.HasPrefix(candUpper, reqUpper) {
			score += scoreUpperStart
		}
		if c.Visible {
			score += scoreVisible
		}
		if strings.Contains(strings.ToUpper(c.Path), "FOREX") {
			score += scoreForexPath
		}
		scored = append(scored, scoredName{score: score, name: c.Name})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if len(a.name) != len(b.name) {
			return len(a.name) < len(b.name)
		}
		return a.name < b.name
	})
	return scored, suggestions
}

// Canonical strips everything but letters and digits and upper-cases the rest.
func Canonical(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capSuggestions(names []string) []string {
	out := dedupe(names)
	if len(out) > MaxSuggestions {
		out = out[:MaxSuggestions]
	}
	return out
}

// dedupe drops repeats and keeps first-seen order.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}
