package phoneme_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/phonoscore/pkg/phoneme"
)

func TestCategory(t *testing.T) {
	t.Parallel()
	if got := phoneme.Category("ɪ", "i"); got != "i-ɪ" {
		t.Errorf("Category(ɪ, i) = %q", got)
	}
	if got := phoneme.Category("b", "p", "b"); got != "b-p" {
		t.Errorf("Category(b, p, b) = %q", got)
	}
	if got := phoneme.ParseCategory(" ə - ʌ -ɚ"); !slices.Equal(got, []string{"ə", "ʌ", "ɚ"}) {
		t.Errorf("ParseCategory = %q", got)
	}
}

func TestValidCategory(t *testing.T) {
	t.Parallel()
	inv := phoneme.Default()

	tests := []struct {
		name string
		want bool
	}{
		{"p-b", true},
		{"ə-ʌ-ɚ", true},
		{"θ", true},
		{"p-k", false},
		{"p-p", false},
		{"p-x", false},
		{"", false},
		{"-", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := inv.ValidCategory(tc.name); got != tc.want {
				t.Errorf("ValidCategory(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestMinimalPairs(t *testing.T) {
	t.Parallel()
	inv := phoneme.Default()
	if got := inv.MinimalPairs("p"); !slices.Equal(got, []string{"b-p"}) {
		t.Errorf("MinimalPairs(p) = %q", got)
	}
	if got := inv.MinimalPairs("x"); len(got) != 0 {
		t.Errorf("MinimalPairs(x) = %q, want empty", got)
	}
}
