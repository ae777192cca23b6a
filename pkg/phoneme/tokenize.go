package phoneme

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Stress and length markers carry no segmental information and never become
// tokens.
const (
	PrimaryStress   = "ˈ"
	SecondaryStress = "ˌ"
	Long            = "ː"
)

var markerStripper = strings.NewReplacer(PrimaryStress, "", SecondaryStress, "", Long, "")

// StripMarkers removes stress and length markers from s.
func StripMarkers(s string) string {
	return markerStripper.Replace(s)
}

// Prepare puts raw recognizer or catalogue text into canonical form before
// tokenizing: NFC composition, then tie-bar and alias folding.
func (inv *Inventory) Prepare(raw string) string {
	return inv.Fold(norm.NFC.String(raw))
}

// Tokenize segments s into symbol tokens, longest registered symbol first.
//
// Markers are dropped and whitespace only separates tokens. A character that
// starts no registered symbol becomes a token on its own, so Tokenize never
// fails: joining the result reproduces s without markers and whitespace.
func (inv *Inventory) Tokenize(s string) []string {
	s = StripMarkers(s)
	tokens := make([]string, 0, utf8.RuneCountInString(s))

	for i := 0; i < len(s); {
		rest := s[i:]
		r, size := utf8.DecodeRuneInString(rest)
		if unicode.IsSpace(r) {
			i += size
			continue
		}

		tok := rest[:size]
		for _, sym := range inv.byFirst[r] {
			if strings.HasPrefix(rest, sym.Text) {
				tok = sym.Text
				break
			}
		}
		tokens = append(tokens, tok)
		i += len(tok)
	}
	return tokens
}

// Parse prepares, tokenizes and normalizes raw phoneme text in one step. It is
// the path every comparison input takes.
func (inv *Inventory) Parse(raw string) []string {
	return inv.Normalize(inv.Tokenize(inv.Prepare(raw)))
}

// Join renders tokens as a single-space separated string.
func Join(tokens []string) string {
	return strings.Join(tokens, " ")
}
