// Package align pairs a target phoneme sequence with a produced one,
// classifies every pair and reduces the result to an accuracy score.
//
// Everything here is pure computation over caller-owned slices and is safe
// for concurrent use.
package align

import "github.com/pmezard/go-difflib/difflib"

// OpTag names one kind of edit-script run.
type OpTag string

const (
	OpEqual   OpTag = "equal"
	OpReplace OpTag = "replace"
	OpDelete  OpTag = "delete"
	OpInsert  OpTag = "insert"
)

// Opcode describes that a[I1:I2] relates to b[J1:J2] by Tag.
type Opcode struct {
	Tag    OpTag
	I1, I2 int
	J1, J2 int
}

var opTags = map[byte]OpTag{
	'e': OpEqual,
	'r': OpReplace,
	'd': OpDelete,
	'i': OpInsert,
}

// Opcodes returns the edit script turning a into b, computed by a
// SequenceMatcher over the token slices: the longest matching block is
// anchored first and both sides of it are matched recursively. Gaps between
// matching blocks become a replace when both sides are non-empty, otherwise a
// delete or an insert. The opcodes cover a and b completely and in order.
func Opcodes(a, b []string) []Opcode {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	raw := difflib.NewMatcher(a, b).GetOpCodes()
	ops := make([]Opcode, 0, len(raw))
	for _, op := range raw {
		ops = append(ops, Opcode{Tag: opTags[op.Tag], I1: op.I1, I2: op.I2, J1: op.J1, J2: op.J2})
	}
	return ops
}
