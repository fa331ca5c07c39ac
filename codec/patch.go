package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrNeedsPatternBank is returned by Expand when op references another
// composed pattern (KindGrammarRule) that only the pattern bank, not the
// codec package in isolation, can resolve.
var ErrNeedsPatternBank = errors.New("codec: operator expansion requires the pattern bank")

// ErrPatchMismatch is returned by Apply when an operator's expansion does
// not reproduce the raw bytes it is meant to replace. A scheduler action
// must never install a patch that fails this check, since doing so would
// break the engine's lossless round-trip guarantee.
var ErrPatchMismatch = errors.New("codec: operator expansion does not match source bytes")

// Expand reconstructs the literal bytes an operator stands for. history is
// the slice of already-decoded output immediately preceding the operator's
// position, used by KindBackRef to resolve its distance; it may be nil for
// kinds that don't need it.
func Expand(op Operator, dict *Dictionary, history []byte) ([]byte, error) {
	switch op.Kind {
	case KindRunLength, KindGeneralizedRunLength:
		if op.RunCount == 0 {
			return nil, nil
		}
		return bytes.Repeat([]byte{op.RunByte}, op.RunCount), nil

	case KindBackRef:
		if op.Distance <= 0 || op.Distance > len(history) {
			return nil, fmt.Errorf("%w: back-reference distance %d exceeds history length %d", ErrInvalidOp, op.Distance, len(history))
		}
		out := make([]byte, 0, op.Length)
		src := len(history) - op.Distance
		for i := 0; i < op.Length; i++ {
			out = append(out, history[src+i%op.Distance])
		}
		return out, nil

	case KindDeltaSequence:
		out := make([]byte, op.DeltaLen)
		v := op.DeltaStart
		for i := range out {
			out[i] = v
			v = byte(int(v) + int(op.DeltaStep))
		}
		return out, nil

	case KindXorMask:
		if len(op.XorKey) == 0 {
			return nil, fmt.Errorf("%w: xor mask has empty key", ErrInvalidOp)
		}
		out := make([]byte, op.XorLen)
		for i := range out {
			out[i] = op.XorBase ^ op.XorKey[i%len(op.XorKey)]
		}
		return out, nil

	case KindDictionary:
		if dict == nil {
			return nil, fmt.Errorf("%w: dictionary reference with nil dictionary", ErrInvalidOp)
		}
		word, ok := dict.Get(op.WordID)
		if !ok {
			return nil, fmt.Errorf("%w: dangling dictionary word id %d", ErrInvalidOp, op.WordID)
		}
		return word, nil

	case KindGrammarRule:
		return nil, ErrNeedsPatternBank

	default:
		return nil, fmt.Errorf("%w: kind %s has no expansion", ErrInvalidOp, op.Kind)
	}
}

// Patch describes replacing the raw byte range [Start, End) of a focus
// window with an encoded Operator. Patches are the unit of change the
// scheduler's Exploit and Explore actions install into the window.
type Patch struct {
	Start int
	End   int
	Op    Operator
}

// Apply verifies that Op expands back to exactly window[Start:End) and, if
// so, returns the operator's wire encoding. history is the window bytes
// preceding Start, passed through to Expand for KindBackRef resolution.
// Apply never mutates window; the engine splices the returned encoding in
// place once it accepts the patch.
func Apply(window []byte, p Patch, dict *Dictionary, history []byte) ([]byte, error) {
	if p.Start < 0 || p.End > len(window) || p.Start > p.End {
		return nil, fmt.Errorf("%w: patch range [%d,%d) out of window bounds [0,%d)", ErrInvalidOp, p.Start, p.End, len(window))
	}

	expanded, err := Expand(p.Op, dict, history)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(expanded, window[p.Start:p.End]) {
		return nil, ErrPatchMismatch
	}

	return Encode(p.Op)
}
