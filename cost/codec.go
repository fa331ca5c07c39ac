package cost

import "github.com/tompula86/petridish/codec"

// dictOpLen is the wire length of an OP_DICT reference, used when
// estimating how much a dictionary promotion saves per occurrence.
const dictOpLen = 3

// CodecConfig holds the tunables the codec engine's cost evaluation
// reads from. Defaults live here rather than scattered through the engine
// so every threshold used by Exploit/Explore decisions has one home.
type CodecConfig struct {
	// MinAcceptGain is the gain (in bytes saved) a patch or dictionary
	// promotion must strictly exceed before the engine installs it.
	MinAcceptGain float64
}

// DefaultCodecConfig returns the engine's default codec cost tunables.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{MinAcceptGain: 1.0}
}

// Validate reports whether c's fields are in an acceptable range.
func (c CodecConfig) Validate() error {
	if c.MinAcceptGain < 0 {
		return errCodecConfig("MinAcceptGain must be non-negative")
	}
	return nil
}

type errCodecConfig string

func (e errCodecConfig) Error() string { return "cost: invalid CodecConfig: " + string(e) }

// CodecResult summarizes a buffer's current model/residual composition.
type CodecResult struct {
	// ModelBytes is the wire length occupied by recognized operators.
	ModelBytes int
	// ResidualBytes is the count of bytes not covered by any operator.
	ResidualBytes int
	// RepresentedBytes is how many original raw bytes the buffer's
	// operators plus residual bytes stand for once fully expanded.
	RepresentedBytes int
}

// TotalBytes returns the buffer's current encoded size.
func (r CodecResult) TotalBytes() int {
	return r.ModelBytes + r.ResidualBytes
}

// Gain returns how many bytes smaller the encoded buffer is than the raw
// bytes it represents. Positive means the encoding compresses.
func (r CodecResult) Gain() float64 {
	return float64(r.RepresentedBytes - r.TotalBytes())
}

// EvaluateCodecBuffer walks buf left to right, classifying each byte as
// either part of a recognized operator's wire encoding (a model byte) or
// an uncovered literal (a residual byte), and accumulates how many raw
// bytes the buffer as a whole stands for. dict resolves OP_DICT references
// so their represented length is the dictionary word's true length rather
// than just the 3-byte reference.
func EvaluateCodecBuffer(buf []byte, dict *codec.Dictionary) CodecResult {
	var res CodecResult
	for i := 0; i < len(buf); {
		if codec.IsOpcode(buf[i]) {
			op, n, err := codec.Decode(buf[i:])
			if err == nil {
				res.ModelBytes += n
				res.RepresentedBytes += representedLength(op, dict)
				i += n
				continue
			}
		}
		res.ResidualBytes++
		res.RepresentedBytes++
		i++
	}
	return res
}

func representedLength(op codec.Operator, dict *codec.Dictionary) int {
	switch op.Kind {
	case codec.KindRunLength:
		return op.RunCount
	case codec.KindBackRef:
		return op.Length
	case codec.KindDeltaSequence:
		return op.DeltaLen
	case codec.KindXorMask:
		return op.XorLen
	case codec.KindDictionary:
		if dict != nil {
			if w, ok := dict.Get(op.WordID); ok {
				return len(w)
			}
		}
		return op.EncodedLen()
	default:
		return op.EncodedLen()
	}
}

// EstimateDictionaryGain projects the byte savings from promoting a word
// of wordLen bytes, seen occurrences times in the current window, into a
// dictionary entry. Each occurrence drops from wordLen raw bytes to a
// dictOpLen-byte reference; the word itself must still be stored once,
// which is charged against the total as a one-time cost.
func EstimateDictionaryGain(wordLen, occurrences int) float64 {
	if occurrences <= 0 || wordLen <= dictOpLen {
		return 0
	}
	perOccurrence := float64(wordLen - dictOpLen)
	return perOccurrence*float64(occurrences) - float64(wordLen)
}
