package align

import "github.com/antzucaro/matchr"

// ErrorRate is the phoneme error rate: the token-level Levenshtein distance
// between target and produced divided by len(target). An empty target gives
// 0 against an empty produced sequence and 1 otherwise. It is diagnostic and
// independent of Accuracy.
func ErrorRate(target, produced []string) float64 {
	if len(target) == 0 {
		if len(produced) == 0 {
			return 0
		}
		return 1
	}
	a, b := encodePair(target, produced)
	return float64(matchr.Levenshtein(a, b)) / float64(len(target))
}

// encodePair maps every distinct token of both sequences to one private-use
// rune so that a character-level distance becomes a token-level one.
func encodePair(a, b []string) (string, string) {
	codes := make(map[string]rune)
	encode := func(tokens []string) string {
		rs := make([]rune, len(tokens))
		for i, t := range tokens {
			r, ok := codes[t]
			if !ok {
				r = privateRune(len(codes))
				codes[t] = r
			}
			rs[i] = r
		}
		return string(rs)
	}
	return encode(a), encode(b)
}

func privateRune(n int) rune {
	const bmpSize = 0xF8FF - 0xE000 + 1
	if n < bmpSize {
		return 0xE000 + rune(n)
	}
	return 0xF0000 + rune(n-bmpSize)
}
