package align_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/phonoscore/pkg/align"
	"github.com/MrWong99/phonoscore/pkg/phoneme"
)

func TestAlign_ReplaceRunPadsShorterSide(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   []string
		produced []string
		want     []align.Pair
	}{
		{
			name:     "longer target",
			target:   []string{"s", "t", "r", "ɪ", "p"},
			produced: []string{"s", "ɛ", "p"},
			want: []align.Pair{
				{Target: "s", Produced: "s"},
				{Target: "t", Produced: "ɛ"},
				{Target: "r"},
				{Target: "ɪ"},
				{Target: "p", Produced: "p"},
			},
		},
		{
			name:     "longer produced",
			target:   []string{"k", "æ", "t"},
			produced: []string{"k", "ɛ", "ə", "t"},
			want: []align.Pair{
				{Target: "k", Produced: "k"},
				{Target: "æ", Produced: "ɛ"},
				{Produced: "ə"},
				{Target: "t", Produced: "t"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := align.Align(tc.target, tc.produced)
			if !slices.Equal(got, tc.want) {
				t.Errorf("Align =\n%v\nwant\n%v", got, tc.want)
			}
		})
	}
}

func TestAlign_DoesNotMutateInput(t *testing.T) {
	t.Parallel()
	target := []string{"p", "ʊ", "ʃ"}
	produced := []string{"b", "ʊ"}
	align.Align(target, produced)
	if !slices.Equal(target, []string{"p", "ʊ", "ʃ"}) || !slices.Equal(produced, []string{"b", "ʊ"}) {
		t.Error("Align mutated its input")
	}
}

// checkCoverage verifies that every token of both sides occupies exactly one
// slot, in order, and that no slot is empty on both sides.
func checkCoverage(t *testing.T, target, produced []string, pairs []align.Pair) {
	t.Helper()
	var gotT, gotP []string
	for i, p := range pairs {
		if p.Target == "" && p.Produced == "" {
			t.Fatalf("pair %d is empty on both sides", i)
		}
		if p.Target != "" {
			gotT = append(gotT, p.Target)
		}
		if p.Produced != "" {
			gotP = append(gotP, p.Produced)
		}
	}
	if !slices.Equal(gotT, target) {
		t.Fatalf("target slots %q, want %q", gotT, target)
	}
	if !slices.Equal(gotP, produced) {
		t.Fatalf("produced slots %q, want %q", gotP, produced)
	}
}

func FuzzAlign(f *testing.F) {
	f.Add([]byte{0, 1, 2}, []byte{1, 2})
	f.Add([]byte{}, []byte{3, 3})
	f.Add([]byte{4, 5, 6, 7}, []byte{})
	f.Add([]byte{1, 2, 1, 2}, []byte{2, 1, 2, 1})

	alphabet := []string{"p", "b", "ʊ", "ʃ", "i", "ɪ", "ə", "ʌ", "ɚ", "k"}
	decode := func(bs []byte) []string {
		out := make([]string, 0, len(bs))
		for _, b := range bs {
			out = append(out, alphabet[int(b)%len(alphabet)])
		}
		return out
	}
	inv := phoneme.Default()

	f.Fuzz(func(t *testing.T, ta, pa []byte) {
		target, produced := decode(ta), decode(pa)
		res := align.Compare(inv, target, produced)

		checkCoverage(t, target, produced, res.Pairs)

		st := res.Statistics
		if st.TotalTarget != len(target) || st.TotalProduced != len(produced) {
			t.Fatalf("totals = %d/%d, want %d/%d", st.TotalTarget, st.TotalProduced, len(target), len(produced))
		}
		if st.Correct+st.Similar+st.Incorrect+st.Missing != st.TotalTarget {
			t.Fatalf("target-side counts do not sum: %+v", st)
		}
		if st.Correct+st.Similar+st.Incorrect+st.Extra != st.TotalProduced {
			t.Fatalf("produced-side counts do not sum: %+v", st)
		}
		if res.Accuracy < 0 || res.Accuracy > 100 {
			t.Fatalf("accuracy %v out of range", res.Accuracy)
		}
		if len(produced) == 0 && (res.Accuracy != 0 || st.Missing != len(target)) {
			t.Fatalf("silence: accuracy %v, missing %d of %d", res.Accuracy, st.Missing, len(target))
		}
	})
}
