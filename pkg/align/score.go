package align

import "strconv"

// Statistics summarizes a classified alignment.
type Statistics struct {
	TotalTarget   int `json:"total_phonemes_target"`
	TotalProduced int `json:"total_phonemes_user"`
	Correct       int `json:"correct_phonemes"`
	Similar       int `json:"similar_phonemes"`
	Incorrect     int `json:"incorrect_phonemes"`
	Missing       int `json:"missing_phonemes"`
	Extra         int `json:"extra_phonemes"`
}

// Count returns the number of pairs with status s.
func (st Statistics) Count(s Status) int {
	switch s {
	case StatusCorrect:
		return st.Correct
	case StatusSimilar:
		return st.Similar
	case StatusIncorrect:
		return st.Incorrect
	case StatusMissing:
		return st.Missing
	case StatusExtra:
		return st.Extra
	}
	return 0
}

// Summarize counts pairs per status and non-empty slots per side.
func Summarize(pairs []Pair) Statistics {
	var st Statistics
	for _, p := range pairs {
		if p.Target != "" {
			st.TotalTarget++
		}
		if p.Produced != "" {
			st.TotalProduced++
		}
		switch p.Status {
		case StatusCorrect:
			st.Correct++
		case StatusSimilar:
			st.Similar++
		case StatusIncorrect:
			st.Incorrect++
		case StatusMissing:
			st.Missing++
		case StatusExtra:
			st.Extra++
		}
	}
	return st
}

// Accuracy is the mean status weight over all pairs, rounded to one decimal
// with ties to even. No pairs score 0.
func Accuracy(pairs []Pair) float64 {
	if len(pairs) == 0 {
		return 0
	}
	var sum float64
	for _, p := range pairs {
		sum += p.Status.Weight()
	}
	return Round1(sum / float64(len(pairs)))
}

// Round1 rounds x to one decimal place. Rounding works on the exact binary
// value of x, so 0.15 (stored just below the tie) goes down, and only exact
// ties such as 6.25 go to even.
func Round1(x float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 1, 64), 64)
	return r
}

// Result is a scored comparison.
type Result struct {
	Accuracy   float64    `json:"accuracy_score"`
	Pairs      []Pair     `json:"phoneme_comparison"`
	Statistics Statistics `json:"alignment_statistics"`
}

// Compare aligns, classifies and scores two token sequences. An empty
// produced sequence yields only missing pairs and an accuracy of 0.
func Compare(table SimilarityTable, target, produced []string) Result {
	pairs := Align(target, produced)
	ClassifyAll(table, pairs)
	return Result{
		Accuracy:   Accuracy(pairs),
		Pairs:      pairs,
		Statistics: Summarize(pairs),
	}
}
