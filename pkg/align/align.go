package align

// Pair is one slot of an alignment. At most one of Target and Produced is
// empty.
type Pair struct {
	Target     string `json:"target"`
	Produced   string `json:"produced"`
	Status     Status `json:"status"`
	Similarity int    `json:"similarity"`

	// Feedback is optional commentary attached after scoring. It never
	// affects Status or the score.
	Feedback string `json:"feedback,omitempty"`
}

// Align pairs target with produced following Opcodes. Replace runs of
// unequal length are paired index by index and the shorter side's excess
// positions get an empty slot. The returned pairs are not classified yet.
func Align(target, produced []string) []Pair {
	pairs := make([]Pair, 0, max(len(target), len(produced)))
	for _, op := range Opcodes(target, produced) {
		switch op.Tag {
		case OpEqual:
			for k := range op.I2 - op.I1 {
				pairs = append(pairs, Pair{Target: target[op.I1+k], Produced: produced[op.J1+k]})
			}
		case OpReplace:
			m, n := op.I2-op.I1, op.J2-op.J1
			for k := range max(m, n) {
				var p Pair
				if k < m {
					p.Target = target[op.I1+k]
				}
				if k < n {
					p.Produced = produced[op.J1+k]
				}
				pairs = append(pairs, p)
			}
		case OpDelete:
			for _, t := range target[op.I1:op.I2] {
				pairs = append(pairs, Pair{Target: t})
			}
		case OpInsert:
			for _, p := range produced[op.J1:op.J2] {
				pairs = append(pairs, Pair{Produced: p})
			}
		}
	}
	return pairs
}

// ClassifyAll sets Status and Similarity on every pair in place.
func ClassifyAll(table SimilarityTable, pairs []Pair) {
	for i := range pairs {
		pairs[i].Status, pairs[i].Similarity = Classify(table, pairs[i].Target, pairs[i].Produced)
	}
}
