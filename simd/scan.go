package simd

import "golang.org/x/sys/cpu"

// unrollWidth is the loop-unroll factor used by IndexAll. Wider unrolling
// pays off on CPUs with enough out-of-order lookahead to hide the extra
// branches; narrower unrolling is safer on CPUs without fast unaligned
// access characteristics.
var unrollWidth = detectUnrollWidth()

func detectUnrollWidth() int {
	if cpu.X86.HasAVX2 || cpu.X86.HasSSE42 {
		return 8
	}
	return 4
}

// IndexAll returns every offset in data at which byte b occurs, in
// ascending order. The codec engine's explore step uses this to list the
// earlier positions of the window's first byte as back-reference
// candidates, instead of comparing the window against every history
// offset.
func IndexAll(data []byte, b byte) []int {
	if len(data) == 0 {
		return nil
	}

	positions := make([]int, 0, 16)
	i := 0
	w := unrollWidth
	for ; i+w <= len(data); i += w {
		chunk := data[i : i+w]
		for j, c := range chunk {
			if c == b {
				positions = append(positions, i+j)
			}
		}
	}
	for ; i < len(data); i++ {
		if data[i] == b {
			positions = append(positions, i)
		}
	}
	return positions
}

// RunLength returns the number of consecutive bytes equal to data[start]
// starting at start, up to max. Used by the codec explore step to size
// RunLength/GeneralizedRunLength candidates.
func RunLength(data []byte, start int, max int) int {
	if start >= len(data) || max <= 0 {
		return 0
	}
	b := data[start]
	n := 1
	limit := len(data) - start
	if max < limit {
		limit = max
	}
	for n < limit && data[start+n] == b {
		n++
	}
	return n
}
