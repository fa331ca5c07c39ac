// Package codec implements the typed byte-operator palette used by the
// scheduler-driven mode of the engine (see package engine).
//
// Each operator has a fixed little-endian wire encoding keyed by a reserved
// leading opcode byte. The palette is closed and kinds are matched
// exhaustively in both the encode and decode paths; there is no
// interface-based virtual dispatch.
package codec

import (
	"errors"
	"fmt"

	"github.com/tompula86/petridish/internal/conv"
)

// OpCode is the reserved leading byte of an operator's wire encoding.
// These six values are never emitted as literal bytes inside an encoded
// region; the cost model recognizes them by their leading byte and the
// length signature that follows.
type OpCode byte

const (
	OpRLE     OpCode = 0xFF
	OpLZ      OpCode = 0xFE
	OpDelta   OpCode = 0xFD
	OpXor     OpCode = 0xFC
	OpDict    OpCode = 0xFB
	OpGrammar OpCode = 0xFA
)

// Kind is the tagged-union discriminant for a codec operator pattern. It is
// immutable once a Pattern is created, mirroring pattern.Kind's contract.
type Kind uint8

const (
	// KindRunLength encodes a run of one repeated byte (OP_RLE).
	KindRunLength Kind = iota
	// KindBackRef encodes a back-reference copy (OP_LZ).
	KindBackRef
	// KindDeltaSequence encodes an arithmetic progression mod 256 (OP_DELTA).
	KindDeltaSequence
	// KindXorMask encodes a repeating XOR key (OP_XOR).
	KindXorMask
	// KindDictionary encodes a dictionary word reference (OP_DICT).
	KindDictionary
	// KindGeneralizedRunLength is a meta-pattern synthesized by MetaLearn
	// that generalizes a group of same-kind patterns; it has no opcode of
	// its own and is never written to the wire directly.
	KindGeneralizedRunLength
	// KindGrammarRule is an optional meta-pattern referencing a grammar
	// rule id (OP_GRAMMAR).
	KindGrammarRule
)

func (k Kind) String() string {
	switch k {
	case KindRunLength:
		return "RunLength"
	case KindBackRef:
		return "BackRef"
	case KindDeltaSequence:
		return "DeltaSequence"
	case KindXorMask:
		return "XorMask"
	case KindDictionary:
		return "Dictionary"
	case KindGeneralizedRunLength:
		return "GeneralizedRunLength"
	case KindGrammarRule:
		return "GrammarRule"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Common codec errors.
var (
	ErrShortBuffer   = errors.New("codec: buffer too short for operator")
	ErrUnknownOpcode = errors.New("codec: unrecognized opcode")
	ErrInvalidOp     = errors.New("codec: operator fields out of range")
)

// Operator is the decoded operand payload for one codec pattern occurrence.
// Only the fields relevant to Kind are meaningful; a tagged variant's
// inactive fields stay zeroed rather than allocating per-kind structs,
// since the palette is small and closed.
type Operator struct {
	Kind Kind

	// RunLength / GeneralizedRunLength
	RunByte  byte
	RunCount int

	// BackRef
	Distance int
	Length   int

	// DeltaSequence
	DeltaLen   int
	DeltaStart byte
	DeltaStep  int8

	// XorMask
	XorLen  int
	XorBase byte
	XorKey  []byte

	// Dictionary
	WordID uint16

	// GrammarRule
	RuleID uint16
}

// EncodedLen returns the number of wire bytes Operator would occupy.
func (o Operator) EncodedLen() int {
	switch o.Kind {
	case KindRunLength:
		return 3
	case KindBackRef:
		return 4
	case KindDeltaSequence:
		return 4
	case KindXorMask:
		return 5 + len(o.XorKey)
	case KindDictionary:
		return 3
	case KindGrammarRule:
		return 3
	default:
		// GeneralizedRunLength has no direct wire form; its encoded length
		// is whatever member pattern it stands in for at expansion time.
		return 0
	}
}

// Encode writes the wire form of o per the opcode table above.
func Encode(o Operator) ([]byte, error) {
	switch o.Kind {
	case KindRunLength:
		if o.RunCount < 0 || o.RunCount > 255 {
			return nil, fmt.Errorf("%w: run count %d out of byte range", ErrInvalidOp, o.RunCount)
		}
		return []byte{byte(OpRLE), o.RunByte, conv.IntToUint8(o.RunCount)}, nil

	case KindBackRef:
		if o.Distance < 0 || o.Distance > 0xFFFF {
			return nil, fmt.Errorf("%w: distance %d exceeds u16 range", ErrInvalidOp, o.Distance)
		}
		if o.Length < 0 || o.Length > 255 {
			return nil, fmt.Errorf("%w: length %d out of byte range", ErrInvalidOp, o.Length)
		}
		dist := conv.IntToUint16(o.Distance)
		return []byte{byte(OpLZ), byte(dist), byte(dist >> 8), conv.IntToUint8(o.Length)}, nil

	case KindDeltaSequence:
		if o.DeltaLen < 0 || o.DeltaLen > 255 {
			return nil, fmt.Errorf("%w: delta length %d out of byte range", ErrInvalidOp, o.DeltaLen)
		}
		return []byte{byte(OpDelta), conv.IntToUint8(o.DeltaLen), o.DeltaStart, byte(o.DeltaStep)}, nil

	case KindXorMask:
		if o.XorLen < 0 || o.XorLen > 0xFFFF {
			return nil, fmt.Errorf("%w: xor length %d exceeds u16 range", ErrInvalidOp, o.XorLen)
		}
		if len(o.XorKey) == 0 || len(o.XorKey) > 255 {
			return nil, fmt.Errorf("%w: xor key length %d out of byte range", ErrInvalidOp, len(o.XorKey))
		}
		length := conv.IntToUint16(o.XorLen)
		buf := make([]byte, 0, o.EncodedLen())
		buf = append(buf, byte(OpXor), byte(length), byte(length>>8), conv.IntToUint8(len(o.XorKey)), o.XorBase)
		buf = append(buf, o.XorKey...)
		return buf, nil

	case KindDictionary:
		return []byte{byte(OpDict), byte(o.WordID), byte(o.WordID >> 8)}, nil

	case KindGrammarRule:
		return []byte{byte(OpGrammar), byte(o.RuleID), byte(o.RuleID >> 8)}, nil

	default:
		return nil, fmt.Errorf("%w: kind %s has no wire encoding", ErrInvalidOp, o.Kind)
	}
}

// Decode reads one operator starting at buf[0], returning the operator and
// the number of bytes consumed. Decode does not recognize
// KindGeneralizedRunLength, which never appears on the wire.
func Decode(buf []byte) (Operator, int, error) {
	if len(buf) == 0 {
		return Operator{}, 0, ErrShortBuffer
	}

	switch OpCode(buf[0]) {
	case OpRLE:
		if len(buf) < 3 {
			return Operator{}, 0, ErrShortBuffer
		}
		return Operator{Kind: KindRunLength, RunByte: buf[1], RunCount: int(buf[2])}, 3, nil

	case OpLZ:
		if len(buf) < 4 {
			return Operator{}, 0, ErrShortBuffer
		}
		dist := int(buf[1]) | int(buf[2])<<8
		return Operator{Kind: KindBackRef, Distance: dist, Length: int(buf[3])}, 4, nil

	case OpDelta:
		if len(buf) < 4 {
			return Operator{}, 0, ErrShortBuffer
		}
		return Operator{
			Kind:       KindDeltaSequence,
			DeltaLen:   int(buf[1]),
			DeltaStart: buf[2],
			DeltaStep:  int8(buf[3]),
		}, 4, nil

	case OpXor:
		if len(buf) < 5 {
			return Operator{}, 0, ErrShortBuffer
		}
		keyLen := int(buf[3])
		total := 5 + keyLen
		if len(buf) < total {
			return Operator{}, 0, ErrShortBuffer
		}
		key := make([]byte, keyLen)
		copy(key, buf[5:total])
		length := int(buf[1]) | int(buf[2])<<8
		return Operator{Kind: KindXorMask, XorLen: length, XorBase: buf[4], XorKey: key}, total, nil

	case OpDict:
		if len(buf) < 3 {
			return Operator{}, 0, ErrShortBuffer
		}
		wordID := uint16(buf[1]) | uint16(buf[2])<<8
		return Operator{Kind: KindDictionary, WordID: wordID}, 3, nil

	case OpGrammar:
		if len(buf) < 3 {
			return Operator{}, 0, ErrShortBuffer
		}
		ruleID := uint16(buf[1]) | uint16(buf[2])<<8
		return Operator{Kind: KindGrammarRule, RuleID: ruleID}, 3, nil

	default:
		return Operator{}, 0, ErrUnknownOpcode
	}
}

// IsOpcode reports whether b is one of the six reserved leading opcode
// bytes. The cost model uses this to distinguish model bytes from residual
// bytes without fully decoding every candidate.
func IsOpcode(b byte) bool {
	switch OpCode(b) {
	case OpRLE, OpLZ, OpDelta, OpXor, OpDict, OpGrammar:
		return true
	default:
		return false
	}
}
