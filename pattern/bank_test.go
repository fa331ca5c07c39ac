package pattern

import (
	"bytes"
	"testing"

	"github.com/tompula86/petridish/codec"
)

func TestNewBank_AllLiteralsPresent(t *testing.T) {
	b := NewBank(0)
	if b.Len() != 256 {
		t.Fatalf("Len() = %d, want 256", b.Len())
	}
	for i := 0; i < 256; i++ {
		id := b.LiteralID(byte(i))
		p, ok := b.Get(id)
		if !ok {
			t.Fatalf("literal %d missing", i)
		}
		if p.Kind != KindLiteral || p.Byte != byte(i) {
			t.Errorf("literal %d = %+v", i, p)
		}
	}
	if b.CompositeCount() != 0 {
		t.Errorf("CompositeCount() = %d, want 0", b.CompositeCount())
	}
}

func TestCreateCombine_IdempotentForSamePair(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')

	id1, reused1, err := b.CreateCombine(a, c)
	if err != nil {
		t.Fatalf("CreateCombine: %v", err)
	}
	if reused1 {
		t.Error("first CreateCombine should not report reuse")
	}

	id2, reused2, err := b.CreateCombine(a, c)
	if err != nil {
		t.Fatalf("CreateCombine: %v", err)
	}
	if !reused2 {
		t.Error("second CreateCombine should report reuse")
	}
	if id1 != id2 {
		t.Errorf("ids differ: %d != %d", id1, id2)
	}
	if b.CompositeCount() != 1 {
		t.Errorf("CompositeCount() = %d, want 1", b.CompositeCount())
	}
}

func TestCreateCombine_DifferentOrderDifferentPattern(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')

	id1, _, _ := b.CreateCombine(a, c)
	id2, _, _ := b.CreateCombine(c, a)
	if id1 == id2 {
		t.Error("Combine(a,b) and Combine(b,a) should be distinct")
	}
}

func TestCreateCombine_UnknownChild(t *testing.T) {
	b := NewBank(0)
	if _, _, err := b.CreateCombine(ID(99999), b.LiteralID('a')); err == nil {
		t.Error("CreateCombine with unknown left should fail")
	}
}

func TestCreateCombine_RespectsCapacity(t *testing.T) {
	b := NewBank(1)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	d := b.LiteralID('c')

	if _, _, err := b.CreateCombine(a, c); err != nil {
		t.Fatalf("first CreateCombine: %v", err)
	}
	if _, _, err := b.CreateCombine(a, d); err != ErrCapacityReached {
		t.Errorf("err = %v, want ErrCapacityReached", err)
	}
}

func TestHasPair_GetPairID(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')

	if b.HasPair(a, c) {
		t.Error("HasPair should be false before creation")
	}
	if _, ok := b.GetPairID(a, c); ok {
		t.Error("GetPairID should find nothing before creation")
	}

	id, _, err := b.CreateCombine(a, c)
	if err != nil {
		t.Fatalf("CreateCombine: %v", err)
	}
	if !b.HasPair(a, c) {
		t.Error("HasPair should be true after creation")
	}
	got, ok := b.GetPairID(a, c)
	if !ok || got != id {
		t.Errorf("GetPairID = (%d, %v), want (%d, true)", got, ok, id)
	}

	if err := b.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if b.HasPair(a, c) {
		t.Error("HasPair should be false after removal")
	}
}

func TestDecode_Literal(t *testing.T) {
	b := NewBank(0)
	out, err := b.Decode(b.LiteralID('x'))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, []byte("x")) {
		t.Errorf("Decode = %q, want %q", out, "x")
	}
}

func TestDecode_Combine_PreservesOrder(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	d := b.LiteralID('c')

	ab, _, _ := b.CreateCombine(a, c)
	abc, _, _ := b.CreateCombine(ab, d)

	out, err := b.Decode(abc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, []byte("abc")) {
		t.Errorf("Decode = %q, want %q", out, "abc")
	}
}

func TestDecode_DeepCompositeDoesNotRecurse(t *testing.T) {
	b := NewBank(0)
	cur := b.LiteralID('a')
	want := []byte{'a'}
	for i := 0; i < 5000; i++ {
		next := b.LiteralID(byte('a' + (i % 26)))
		id, _, err := b.CreateCombine(cur, next)
		if err != nil {
			t.Fatalf("CreateCombine at %d: %v", i, err)
		}
		cur = id
		want = append(want, byte('a'+(i%26)))
	}
	out, err := b.Decode(cur)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, want) {
		t.Errorf("Decode length %d, want %d", len(out), len(want))
	}
}

func TestDecode_UnsupportedOperator(t *testing.T) {
	b := NewBank(0)
	id, err := b.AddOperator(codec.Operator{Kind: codec.KindRunLength, RunByte: 'x', RunCount: 3}, 3)
	if err != nil {
		t.Fatalf("AddOperator: %v", err)
	}
	if _, err := b.Decode(id); err != ErrUnsupportedDecode {
		t.Errorf("err = %v, want ErrUnsupportedDecode", err)
	}
}

func TestRemove_Combine(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	id, _, _ := b.CreateCombine(a, c)

	if err := b.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := b.Get(id); ok {
		t.Error("pattern should be gone after Remove")
	}

	id2, reused, err := b.CreateCombine(a, c)
	if err != nil {
		t.Fatalf("CreateCombine after remove: %v", err)
	}
	if reused {
		t.Error("should allocate a fresh id, not reuse the retired one")
	}
	if id2 == id {
		t.Error("retired id must never be reused")
	}
}

func TestRemove_LiteralFails(t *testing.T) {
	b := NewBank(0)
	if err := b.Remove(b.LiteralID('a')); err != ErrLiteralImmutable {
		t.Errorf("err = %v, want ErrLiteralImmutable", err)
	}
}

func TestRemove_UnknownID(t *testing.T) {
	b := NewBank(0)
	if err := b.Remove(ID(99999)); err == nil {
		t.Error("Remove of unknown id should fail")
	}
}

func TestPatternLength(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	id, _, _ := b.CreateCombine(a, c)

	n, err := b.PatternLength(id)
	if err != nil {
		t.Fatalf("PatternLength: %v", err)
	}
	if n != 2 {
		t.Errorf("PatternLength = %d, want 2", n)
	}
}

func TestGetWeakest(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	id1, _, _ := b.CreateCombine(a, c)
	id2, _, _ := b.CreateCombine(c, a)

	p1, _ := b.Get(id1)
	p2, _ := b.Get(id2)
	p1.strength = 0.9
	p2.strength = 0.1

	weakest, ok := b.GetWeakest()
	if !ok {
		t.Fatal("GetWeakest found nothing")
	}
	if weakest != id2 {
		t.Errorf("GetWeakest = %d, want %d", weakest, id2)
	}
}

func TestGetWeakest_SkipsReferencedChild(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	d := b.LiteralID('c')

	ab, _, _ := b.CreateCombine(a, c)
	abc, _, _ := b.CreateCombine(ab, d)

	abP, _ := b.Get(ab)
	abcP, _ := b.Get(abc)
	abP.strength = 0.01
	abcP.strength = 0.99

	// ab is the weakest by strength but abc still builds on it; only abc
	// is evictable.
	weakest, ok := b.GetWeakest()
	if !ok {
		t.Fatal("GetWeakest found nothing")
	}
	if weakest != abc {
		t.Errorf("GetWeakest = %d, want %d (referenced child must be skipped)", weakest, abc)
	}

	if err := b.Remove(abc); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	weakest, ok = b.GetWeakest()
	if !ok || weakest != ab {
		t.Errorf("GetWeakest after parent removal = (%d, %v), want (%d, true)", weakest, ok, ab)
	}
}

func TestGetWeakest_NoComposites(t *testing.T) {
	b := NewBank(0)
	if _, ok := b.GetWeakest(); ok {
		t.Error("GetWeakest should find nothing when only literals exist")
	}
}

func TestGetLowestScore(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	id1, _, _ := b.CreateCombine(a, c)
	id2, _, _ := b.CreateCombine(c, a)

	p1, _ := b.Get(id1)
	p2, _ := b.Get(id2)
	p1.strength, p1.recentGain = 0.5, 0.5
	p2.strength, p2.recentGain = 0.1, 0.05

	lowest, ok := b.GetLowestScore()
	if !ok {
		t.Fatal("GetLowestScore found nothing")
	}
	if lowest != id2 {
		t.Errorf("GetLowestScore = %d, want %d", lowest, id2)
	}
}

func TestCreateCombine_ComplexityExceedsChildren(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	d := b.LiteralID('c')

	ab, _, _ := b.CreateCombine(a, c)
	abP, _ := b.Get(ab)
	if abP.Complexity() != 1 {
		t.Errorf("Combine(literal,literal).Complexity() = %d, want 1", abP.Complexity())
	}

	abc, _, _ := b.CreateCombine(ab, d)
	abcP, _ := b.Get(abc)
	if abcP.Complexity() <= abP.Complexity() {
		t.Errorf("Complexity() = %d, want > %d", abcP.Complexity(), abP.Complexity())
	}
}

func TestCreateCombine_ComplexitySaturates(t *testing.T) {
	b := NewBank(0)
	cur := b.LiteralID('a')
	for i := 0; i < 300; i++ {
		next := b.LiteralID(byte('a' + (i % 26)))
		id, _, err := b.CreateCombine(cur, next)
		if err != nil {
			t.Fatalf("CreateCombine at %d: %v", i, err)
		}
		cur = id
	}
	p, _ := b.Get(cur)
	if p.Complexity() != 255 {
		t.Errorf("Complexity() = %d, want saturated at 255", p.Complexity())
	}
}

func TestExportRestore_RoundTrips(t *testing.T) {
	src := NewBank(0)
	a := src.LiteralID('a')
	c := src.LiteralID('b')
	d := src.LiteralID('c')
	ab, _, _ := src.CreateCombine(a, c)
	abc, _, _ := src.CreateCombine(ab, d)
	if p, ok := src.Get(abc); ok {
		p.RecordUse(3.5)
	}

	records, nextID := src.Export()
	if len(records) != 2 {
		t.Fatalf("Export returned %d records, want 2", len(records))
	}

	dst := NewBank(0)
	if err := dst.Restore(records, nextID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if dst.NextID() != src.NextID() {
		t.Errorf("NextID() = %d, want %d", dst.NextID(), src.NextID())
	}

	out, err := dst.Decode(abc)
	if err != nil {
		t.Fatalf("Decode after restore: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("Decode after restore = %q, want %q", out, "abc")
	}

	restoredID, _, err := dst.CreateCombine(ab, d)
	if err != nil {
		t.Fatalf("CreateCombine after restore: %v", err)
	}
	if restoredID != abc {
		t.Errorf("pair index not restored: CreateCombine returned %d, want existing %d", restoredID, abc)
	}

	p, _ := dst.Get(abc)
	if p.UsageCount() != 1 {
		t.Errorf("UsageCount() = %d, want 1 (restored from export)", p.UsageCount())
	}
}

func TestRestore_RejectsMissingChild(t *testing.T) {
	b := NewBank(0)
	records := []CompositeRecord{{ID: 300, Kind: KindCombine, Left: 298, Right: 299}}
	if err := b.Restore(records, 301); err == nil {
		t.Error("Restore should reject a Combine whose children are not yet live")
	}
}

func TestGetWeakestN(t *testing.T) {
	b := NewBank(0)
	a := b.LiteralID('a')
	c := b.LiteralID('b')
	d := b.LiteralID('c')
	id1, _, _ := b.CreateCombine(a, c)
	id2, _, _ := b.CreateCombine(c, a)
	id3, _, _ := b.CreateCombine(a, d)

	p1, _ := b.Get(id1)
	p2, _ := b.Get(id2)
	p3, _ := b.Get(id3)
	p1.strength, p2.strength, p3.strength = 0.5, 0.1, 0.9

	weakest := b.GetWeakestN(2)
	if len(weakest) != 2 {
		t.Fatalf("GetWeakestN(2) returned %d ids, want 2", len(weakest))
	}
	if weakest[0] != id2 || weakest[1] != id1 {
		t.Errorf("GetWeakestN(2) = %v, want [%d %d]", weakest, id2, id1)
	}
}

func TestEach(t *testing.T) {
	b := NewBank(0)
	count := 0
	b.Each(func(p *Pattern) { count++ })
	if count != 256 {
		t.Errorf("Each visited %d, want 256", count)
	}
}
