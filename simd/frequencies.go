// Package simd provides byte-rarity heuristics used to order candidate
// scans in the codec engine's explore and repack passes.
//
// Scanning a focus window for run-length, back-reference, and dictionary
// candidates is cheaper when the scan anchors on a rare byte first: a rare
// byte has few occurrences, so verifying candidates anchored on it touches
// far less of the window than a byte-by-byte scan starting at every
// position. The frequency table below is the same empirical ranking used
// by general-purpose substring search (e.g. Rust's memchr crate); lower
// rank means rarer, and rarer is a better anchor.
package simd

// ByteFrequencies contains empirical byte frequency ranks based on analysis
// of English text, source code, and binary data.
//
// Lower rank = rarer byte (better anchor for a sparse scan).
// Higher rank = more common byte (worse anchor, touches more positions).
//
// Reference: https://github.com/BurntSushi/memchr
var ByteFrequencies = [256]byte{
	// 0x00-0x0F: Control characters (generally rare)
	0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 1, 0, 0,
	// 0x10-0x1F: More control characters
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	// 0x20-0x2F: Space, punctuation
	255, 60, 140, 50, 40, 35, 30, 160, 130, 130, 80, 55, 200, 140, 210, 100,
	// 0x30-0x3F: Digits and more punctuation
	180, 190, 170, 150, 140, 140, 130, 120, 120, 120, 150, 100, 70, 160, 70, 50,
	// 0x40-0x4F: '@' and uppercase A-O
	25, 120, 80, 90, 85, 130, 75, 70, 80, 115, 30, 35, 90, 85, 100, 105,
	// 0x50-0x5F: Uppercase P-Z and brackets
	80, 15, 100, 110, 115, 70, 45, 55, 20, 50, 10, 90, 60, 90, 20, 110,
	// 0x60-0x6F: Backtick and lowercase a-o
	30, 225, 140, 170, 165, 245, 135, 130, 150, 200, 25, 65, 175, 155, 195, 205,
	// 0x70-0x7F: Lowercase p-z and braces
	145, 15, 195, 200, 215, 150, 75, 95, 45, 120, 20, 85, 40, 85, 15, 0,
	// 0x80-0xFF: Extended ASCII / UTF-8 continuation bytes (generally rare in text)
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
}

// ByteRank returns the frequency rank of a byte. Lower values indicate
// rarer bytes (better anchor candidates).
func ByteRank(b byte) byte {
	return ByteFrequencies[b]
}

// RareByteInfo holds the two rarest distinct bytes found in a span, used to
// seed a paired-anchor scan (e.g. candidate back-reference targets).
type RareByteInfo struct {
	Byte1  byte
	Index1 int
	Byte2  byte
	Index2 int
}

// SelectRareBytes finds the two rarest distinct bytes in span using the
// frequency table. The codec explore step uses the rarest byte of the
// window as a quick pre-check on each back-reference candidate before the
// full byte-by-byte compare.
func SelectRareBytes(span []byte) RareByteInfo {
	n := len(span)
	if n == 0 {
		return RareByteInfo{}
	}
	if n == 1 {
		return RareByteInfo{Byte1: span[0], Index1: 0, Byte2: span[0], Index2: 0}
	}

	byte1, idx1 := span[0], 0
	byte2, idx2 := span[1], 1
	if ByteFrequencies[byte2] < ByteFrequencies[byte1] {
		byte1, byte2 = byte2, byte1
		idx1, idx2 = idx2, idx1
	}

	for i := 2; i < n; i++ {
		b := span[i]
		rank := ByteFrequencies[b]
		if rank < ByteFrequencies[byte1] {
			byte2, idx2 = byte1, idx1
			byte1, idx1 = b, i
		} else if b != byte1 && rank < ByteFrequencies[byte2] {
			byte2, idx2 = b, i
		}
	}

	return RareByteInfo{Byte1: byte1, Index1: idx1, Byte2: byte2, Index2: idx2}
}
