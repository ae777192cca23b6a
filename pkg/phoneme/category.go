package phoneme

import (
	"slices"
	"strings"
)

// CategorySeparator joins the members of a minimal-pair category name.
const CategorySeparator = "-"

// Category returns the canonical category name for symbols: the distinct
// members sorted and joined with CategorySeparator, e.g. "i-ɪ".
func Category(symbols ...string) string {
	members := slices.Clone(symbols)
	slices.Sort(members)
	members = slices.Compact(members)
	return strings.Join(members, CategorySeparator)
}

// ParseCategory splits a category name into its members.
func ParseCategory(name string) []string {
	var out []string
	for _, p := range strings.Split(name, CategorySeparator) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ValidCategory reports whether name is a single registered symbol or a group
// of distinct registered symbols all similar to the first member.
func (inv *Inventory) ValidCategory(name string) bool {
	members := ParseCategory(name)
	if len(members) == 0 {
		return false
	}
	for _, m := range members {
		if !inv.Contains(m) {
			return false
		}
	}
	if len(members) == 1 {
		return true
	}
	if len(slices.Compact(slices.Sorted(slices.Values(members)))) != len(members) {
		return false
	}
	for _, m := range members[1:] {
		if !inv.IsSimilar(members[0], m) {
			return false
		}
	}
	return true
}

// MinimalPairs returns the sorted pair categories symbol takes part in.
func (inv *Inventory) MinimalPairs(symbol string) []string {
	similar := inv.similar[symbol]
	out := make([]string, 0, len(similar))
	for _, s := range similar {
		out = append(out, Category(symbol, s))
	}
	slices.Sort(out)
	return out
}
