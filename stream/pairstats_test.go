package stream

import (
	"testing"

	"github.com/tompula86/petridish/pattern"
)

func TestRebuildPairStats_CountsOverlapping(t *testing.T) {
	bank := pattern.NewBank(0)
	s := FromBytes([]byte("AAA"), bank)
	a := bank.LiteralID('A')

	ps := RebuildPairStats(s)
	if got := ps.Count(PairKey{a, a}); got != 2 {
		t.Errorf("Count((A,A)) = %d, want 2", got)
	}
}

func TestTopPairs_OrderedDescending(t *testing.T) {
	bank := pattern.NewBank(0)
	s := FromBytes([]byte("AABAAC"), bank)
	ps := RebuildPairStats(s)

	top := ps.TopPairs(3)
	if len(top) == 0 {
		t.Fatal("TopPairs returned nothing")
	}
	for i := 1; i < len(top); i++ {
		if top[i].Count > top[i-1].Count {
			t.Errorf("TopPairs not descending at %d: %d > %d", i, top[i].Count, top[i-1].Count)
		}
	}
}

func TestTopPairs_ClampsToAvailable(t *testing.T) {
	bank := pattern.NewBank(0)
	s := FromBytes([]byte("AB"), bank)
	ps := RebuildPairStats(s)

	top := ps.TopPairs(50)
	if len(top) != ps.Len() {
		t.Errorf("len(top) = %d, want %d", len(top), ps.Len())
	}
}

func TestTopPairs_EmptyStream(t *testing.T) {
	bank := pattern.NewBank(0)
	s := FromBytes([]byte{}, bank)
	ps := RebuildPairStats(s)
	if top := ps.TopPairs(5); len(top) != 0 {
		t.Errorf("TopPairs on empty stream = %v, want empty", top)
	}
}
