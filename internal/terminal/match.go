package terminal

import "strings"

// MatchGroup reports whether name matches a symbols_get style group: comma
// separated wildcard patterns, "*" and "?" wildcards, a leading "!" excludes.
// Matching ignores case. An empty group matches everything.
func MatchGroup(group, name string) bool {
	group = strings.TrimSpace(group)
	if group == "" {
		return true
	}
	upper := strings.ToUpper(name)

	matched, sawPositive := false, false
	for _, p := range strings.Split(group, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "!") {
			if wildcard(p[1:], upper) {
				return false
			}
			continue
		}
		sawPositive = true
		if wildcard(p, upper) {
			matched = true
		}
	}
	return matched || !sawPositive
}

// wildcard matches s against pattern with "*" and "?" only.
func wildcard(pattern, s string) bool {
	p, n := []rune(pattern), []rune(s)
	pi, ni := 0, 0
	star, mark := -1, 0
	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, ni
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			ni = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
