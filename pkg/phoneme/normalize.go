package phoneme

import "strings"

// Normalize returns a new sequence with, in order, tie-bar notations folded
// inside each token, split diphthongs and affricates rejoined, and tokens
// equal to their predecessor dropped. tokens is not modified.
func (inv *Inventory) Normalize(tokens []string) []string {
	return CollapseRepeats(inv.ReconstructDiphthongs(inv.FoldTokens(tokens)))
}

// NormalizeString is Normalize over a whitespace-separated token string.
func (inv *Inventory) NormalizeString(s string) []string {
	return inv.Normalize(strings.Fields(s))
}

// FoldTokens applies Fold to every token.
func (inv *Inventory) FoldTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, t := range tokens {
		out[i] = inv.Fold(t)
	}
	return out
}

// ReconstructDiphthongs merges tokens[i] and tokens[i+1] whenever their
// concatenation is a symbol the inventory rejoins (the diphthongs and, in the
// built-in table, the affricates dʒ and tʃ), scanning left to right. A merged
// token is never merged again in the same pass.
func (inv *Inventory) ReconstructDiphthongs(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		if i+1 < len(tokens) {
			if joined := tokens[i] + tokens[i+1]; inv.Rejoins(joined) {
				out = append(out, joined)
				i += 2
				continue
			}
		}
		out = append(out, tokens[i])
		i++
	}
	return out
}

// CollapseRepeats drops every token identical to the one before it.
func CollapseRepeats(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for i, t := range tokens {
		if i > 0 && t == tokens[i-1] {
			continue
		}
		out = append(out, t)
	}
	return out
}
