package analyzer

import (
	"strings"

	"github.com/MrWong99/phonoscore/pkg/align"
)

// Overlay copies commentary feedback onto pairs whose 1-based position,
// target and produced symbol all agree with the commentary entry. Status and
// similarity are never touched. It returns the number of pairs updated.
func Overlay(pairs []align.Pair, a *Analysis) int {
	if a == nil {
		return 0
	}
	var n int
	for _, c := range a.Comparison {
		i := c.Position - 1
		if i < 0 || i >= len(pairs) {
			continue
		}
		fb := strings.TrimSpace(c.Feedback)
		if fb == "" {
			continue
		}
		p := &pairs[i]
		if strings.TrimSpace(c.Target) != p.Target || strings.TrimSpace(c.User) != p.Produced {
			continue
		}
		p.Feedback = fb
		n++
	}
	return n
}
