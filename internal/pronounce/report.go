package pronounce

import (
	"github.com/MrWong99/phonoscore/internal/analyzer"
	"github.com/MrWong99/phonoscore/internal/content"
	"github.com/MrWong99/phonoscore/pkg/align"
)

// Report is the outcome of one comparison. The embedded [align.Result]
// contributes accuracy_score, phoneme_comparison and alignment_statistics.
type Report struct {
	Text    string       `json:"text,omitempty"`
	Content *content.Ref `json:"content,omitempty"`

	// TargetPhonemes and ProducedPhonemes are the normalized token
	// sequences joined by spaces.
	TargetPhonemes   string `json:"target_phonemes"`
	ProducedPhonemes string `json:"user_phonemes"`

	align.Result

	// ErrorRate is the phoneme error rate. It is diagnostic and does not
	// contribute to the accuracy.
	ErrorRate float64 `json:"phoneme_error_rate"`

	Analysis *analyzer.Analysis `json:"analysis"`
}

// Silent reports whether nothing was produced.
func (r *Report) Silent() bool { return r.Statistics.TotalProduced == 0 }

// ExamReport is the outcome of scoring a set of exam attempts.
type ExamReport struct {
	ExamID   int64  `json:"exam_id"`
	Category string `json:"category"`

	// Accuracy is the mean of the attempted sentences' accuracies, rounded
	// to one decimal.
	Accuracy float64 `json:"average_score"`

	Answered int `json:"answered"`
	Total    int `json:"total"`

	// Unanswered lists exam sentence IDs without an attempt.
	Unanswered []int64 `json:"unanswered,omitempty"`

	Reports []*Report `json:"results"`
}
