package align

// Status is the verdict for one aligned pair.
type Status string

const (
	StatusCorrect   Status = "correct"
	StatusSimilar   Status = "similar"
	StatusIncorrect Status = "incorrect"
	StatusMissing   Status = "missing"
	StatusExtra     Status = "extra"
)

// Statuses lists every status in report order.
var Statuses = []Status{StatusCorrect, StatusSimilar, StatusIncorrect, StatusMissing, StatusExtra}

// Weight is the contribution of a pair with this status to the accuracy mean.
func (s Status) Weight() float64 {
	switch s {
	case StatusCorrect:
		return 100
	case StatusSimilar:
		return 75
	default:
		return 0
	}
}

// Similarity sub-scores reported per pair. They are diagnostic only.
const (
	SimilarityExact = 100
	SimilarityClose = 75
	SimilarityNone  = 0
)

// SimilarityTable answers whether two distinct symbols are perceptually close.
// *phoneme.Inventory implements it.
type SimilarityTable interface {
	IsSimilar(a, b string) bool
}

// Classify returns the status and similarity sub-score of one pair. Empty
// strings stand for an empty slot.
func Classify(table SimilarityTable, target, produced string) (Status, int) {
	switch {
	case target == "" && produced == "":
		return StatusCorrect, SimilarityExact
	case target == "":
		return StatusExtra, SimilarityNone
	case produced == "":
		return StatusMissing, SimilarityNone
	case target == produced:
		return StatusCorrect, SimilarityExact
	case table.IsSimilar(target, produced):
		return StatusSimilar, SimilarityClose
	default:
		return StatusIncorrect, SimilarityNone
	}
}
