package codec

import (
	"bytes"
	"reflect"
	"testing"
)

func TestExpand_RunLength(t *testing.T) {
	op := Operator{Kind: KindRunLength, RunByte: 'Z', RunCount: 4}
	got, err := Expand(op, nil, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !bytes.Equal(got, []byte("ZZZZ")) {
		t.Errorf("Expand = %q, want %q", got, "ZZZZ")
	}
}

func TestExpand_BackRef_Overlapping(t *testing.T) {
	history := []byte("ab")
	op := Operator{Kind: KindBackRef, Distance: 2, Length: 5}
	got, err := Expand(op, nil, history)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !bytes.Equal(got, []byte("ababa")) {
		t.Errorf("Expand = %q, want %q", got, "ababa")
	}
}

func TestExpand_BackRef_DistanceTooLarge(t *testing.T) {
	op := Operator{Kind: KindBackRef, Distance: 10, Length: 1}
	if _, err := Expand(op, nil, []byte("ab")); err == nil {
		t.Error("Expand should fail when distance exceeds history")
	}
}

func TestExpand_DeltaSequence(t *testing.T) {
	op := Operator{Kind: KindDeltaSequence, DeltaLen: 5, DeltaStart: 10, DeltaStep: 2}
	got, err := Expand(op, nil, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []byte{10, 12, 14, 16, 18}
	if !bytes.Equal(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_DeltaSequence_Wraps(t *testing.T) {
	op := Operator{Kind: KindDeltaSequence, DeltaLen: 3, DeltaStart: 254, DeltaStep: 2}
	got, err := Expand(op, nil, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []byte{254, 0, 2}
	if !bytes.Equal(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_XorMask(t *testing.T) {
	op := Operator{Kind: KindXorMask, XorLen: 6, XorBase: 0xFF, XorKey: []byte{0x0F, 0xF0}}
	got, err := Expand(op, nil, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []byte{0xF0, 0x0F, 0xF0, 0x0F, 0xF0, 0x0F}
	if !bytes.Equal(got, want) {
		t.Errorf("Expand = %v, want %v", got, want)
	}
}

func TestExpand_Dictionary(t *testing.T) {
	d := NewDictionary()
	id, _ := d.Add([]byte("hello"))
	op := Operator{Kind: KindDictionary, WordID: id}
	got, err := Expand(op, d, nil)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Errorf("Expand = %q, want %q", got, "hello")
	}
}

func TestExpand_Dictionary_Dangling(t *testing.T) {
	d := NewDictionary()
	op := Operator{Kind: KindDictionary, WordID: 999}
	if _, err := Expand(op, d, nil); err == nil {
		t.Error("Expand should fail for dangling word id")
	}
}

func TestExpand_GrammarRule_NeedsBank(t *testing.T) {
	op := Operator{Kind: KindGrammarRule, RuleID: 1}
	if _, err := Expand(op, nil, nil); err != ErrNeedsPatternBank {
		t.Errorf("err = %v, want ErrNeedsPatternBank", err)
	}
}

func TestApply_Success(t *testing.T) {
	window := []byte("AAAA rest of window")
	p := Patch{Start: 0, End: 4, Op: Operator{Kind: KindRunLength, RunByte: 'A', RunCount: 4}}
	encoded, err := Apply(window, p, nil, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	roundtrip, _, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(roundtrip, p.Op) {
		t.Errorf("roundtrip = %+v, want %+v", roundtrip, p.Op)
	}
}

func TestApply_Mismatch(t *testing.T) {
	window := []byte("ABCD")
	p := Patch{Start: 0, End: 4, Op: Operator{Kind: KindRunLength, RunByte: 'A', RunCount: 4}}
	if _, err := Apply(window, p, nil, nil); err != ErrPatchMismatch {
		t.Errorf("err = %v, want ErrPatchMismatch", err)
	}
}

func TestApply_OutOfBounds(t *testing.T) {
	window := []byte("AB")
	p := Patch{Start: 0, End: 10, Op: Operator{Kind: KindRunLength, RunByte: 'A', RunCount: 10}}
	if _, err := Apply(window, p, nil, nil); err == nil {
		t.Error("Apply should reject out-of-bounds patch range")
	}
}
