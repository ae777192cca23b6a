// Package phoneme holds the phonetic symbol inventory and the text-level
// processing built on it: input preparation, longest-match tokenization and
// token-sequence normalization.
//
// An [Inventory] is built once from a [Definition] and is read-only
// afterwards. All methods are safe for concurrent use.
package phoneme

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Class is the articulatory category of a symbol.
type Class int

const (
	// ClassUnknown is returned for strings that are not registered symbols.
	ClassUnknown Class = iota
	ClassVowel
	ClassDiphthong
	ClassConsonant
)

// String returns the lowercase class name.
func (c Class) String() string {
	switch c {
	case ClassVowel:
		return "vowel"
	case ClassDiphthong:
		return "diphthong"
	case ClassConsonant:
		return "consonant"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Symbol is an atomic phonetic unit.
type Symbol struct {
	Text  string `json:"symbol"`
	Class Class  `json:"class"`
}

// Inventory is the immutable symbol table: membership, class lookup,
// similarity lookup and length-ordered enumeration for tokenizing.
type Inventory struct {
	declared []Symbol
	longest  []Symbol
	byFirst  map[rune][]Symbol
	classes  map[string]Class

	adjacent map[string][]string
	similar  map[string][]string
	simSet   map[string]map[string]struct{}

	reconstruct map[string]struct{}

	fold *strings.Replacer
}

// NewInventory validates def and builds an Inventory from it.
func NewInventory(def Definition) (*Inventory, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	inv := &Inventory{
		classes: make(map[string]Class),
		byFirst: make(map[rune][]Symbol),
	}
	add := func(class Class, texts []string) {
		for _, t := range texts {
			inv.declared = append(inv.declared, Symbol{Text: t, Class: class})
			inv.classes[t] = class
		}
	}
	add(ClassVowel, def.Vowels)
	add(ClassDiphthong, def.Diphthongs)
	add(ClassConsonant, def.Consonants)

	inv.longest = slices.Clone(inv.declared)
	sort.SliceStable(inv.longest, func(i, j int) bool {
		return utf8.RuneCountInString(inv.longest[i].Text) > utf8.RuneCountInString(inv.longest[j].Text)
	})
	for _, s := range inv.longest {
		r, _ := utf8.DecodeRuneInString(s.Text)
		inv.byFirst[r] = append(inv.byFirst[r], s)
	}

	inv.buildSimilarity(def.Similar)

	joined := def.Reconstruct
	if len(joined) == 0 {
		joined = def.Diphthongs
	}
	inv.reconstruct = make(map[string]struct{}, len(joined))
	for _, s := range joined {
		inv.reconstruct[s] = struct{}{}
	}

	var pairs []string
	for _, m := range []map[string]string{def.TieBars, def.Aliases} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			pairs = append(pairs, k, m[k])
		}
	}
	inv.fold = strings.NewReplacer(pairs...)

	return inv, nil
}

// buildSimilarity symmetrizes the raw table once and caches, per symbol, the
// direct neighbours plus the neighbours of those neighbours (one hop).
func (inv *Inventory) buildSimilarity(table map[string][]string) {
	edges := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if edges[a] == nil {
			edges[a] = make(map[string]struct{})
		}
		edges[a][b] = struct{}{}
	}
	for a, bs := range table {
		for _, b := range bs {
			link(a, b)
			link(b, a)
		}
	}

	inv.adjacent = make(map[string][]string, len(edges))
	for a, bs := range edges {
		inv.adjacent[a] = sortedKeys(bs)
	}

	inv.similar = make(map[string][]string, len(edges))
	inv.simSet = make(map[string]map[string]struct{}, len(edges))
	for a, direct := range edges {
		set := make(map[string]struct{}, len(direct))
		for b := range direct {
			set[b] = struct{}{}
			for c := range edges[b] {
				set[c] = struct{}{}
			}
		}
		delete(set, a)
		inv.simSet[a] = set
		inv.similar[a] = sortedKeys(set)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Contains reports whether s is a registered symbol.
func (inv *Inventory) Contains(s string) bool {
	_, ok := inv.classes[s]
	return ok
}

// Class returns the class of s, or ClassUnknown.
func (inv *Inventory) Class(s string) Class {
	return inv.classes[s]
}

// IsDiphthong reports whether s is a registered diphthong.
func (inv *Inventory) IsDiphthong(s string) bool {
	return inv.classes[s] == ClassDiphthong
}

// Rejoins reports whether s is put back together from adjacent parts by
// ReconstructDiphthongs.
func (inv *Inventory) Rejoins(s string) bool {
	_, ok := inv.reconstruct[s]
	return ok
}

// Declared returns all symbols in declaration order.
func (inv *Inventory) Declared() []Symbol {
	return slices.Clone(inv.declared)
}

// Symbols returns all symbols ordered by descending length in characters.
// Symbols of equal length keep their declaration order.
func (inv *Inventory) Symbols() []Symbol {
	return slices.Clone(inv.longest)
}

// Neighbours returns the symbols directly linked to s in either direction of
// the raw similarity table, sorted.
func (inv *Inventory) Neighbours(s string) []string {
	return slices.Clone(inv.adjacent[s])
}

// Similar returns the sorted similarity set of s: every symbol linked to s in
// either direction, plus the symbols linked to those. s itself is never
// included. Unregistered strings have an empty set.
func (inv *Inventory) Similar(s string) []string {
	return slices.Clone(inv.similar[s])
}

// IsSimilar reports whether b is in the similarity set of a. The relation is
// symmetric.
func (inv *Inventory) IsSimilar(a, b string) bool {
	_, ok := inv.simSet[a][b]
	return ok
}

// Fold rewrites tie-bar affricate notations and known alternative spellings
// to their inventory form.
func (inv *Inventory) Fold(s string) string {
	return inv.fold.Replace(s)
}

var defaultInventory = sync.OnceValue(func() *Inventory {
	inv, err := NewInventory(DefaultDefinition())
	if err != nil {
		panic(fmt.Sprintf("phoneme: built-in definition is invalid: %v", err))
	}
	return inv
})

// Default returns the built-in English inventory.
func Default() *Inventory {
	return defaultInventory()
}

// ErrInvalidDefinition is wrapped by every Definition validation failure.
var ErrInvalidDefinition = errors.New("phoneme: invalid definition")
