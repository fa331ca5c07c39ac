package simd

import (
	"reflect"
	"testing"
)

func TestIndexAll(t *testing.T) {
	tests := []struct {
		data []byte
		b    byte
		want []int
	}{
		{nil, 'a', nil},
		{[]byte("aaaa"), 'a', []int{0, 1, 2, 3}},
		{[]byte("abcabcabc"), 'b', []int{1, 4, 7}},
		{[]byte("xxxxxxxxxxxxy"), 'y', []int{12}},
		{[]byte("no match here"), 'z', nil},
	}

	for _, tt := range tests {
		got := IndexAll(tt.data, tt.b)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("IndexAll(%q, %q) = %v, want %v", tt.data, tt.b, got, tt.want)
		}
	}
}

func TestRunLength(t *testing.T) {
	tests := []struct {
		data  []byte
		start int
		max   int
		want  int
	}{
		{[]byte("AAAAA"), 0, 255, 5},
		{[]byte("AAABBB"), 0, 255, 3},
		{[]byte("AAABBB"), 3, 255, 3},
		{[]byte("AAAAA"), 0, 3, 3},
		{[]byte(""), 0, 255, 0},
		{[]byte("A"), 5, 255, 0},
	}

	for _, tt := range tests {
		got := RunLength(tt.data, tt.start, tt.max)
		if got != tt.want {
			t.Errorf("RunLength(%q, %d, %d) = %d, want %d", tt.data, tt.start, tt.max, got, tt.want)
		}
	}
}
