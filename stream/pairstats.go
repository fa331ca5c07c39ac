package stream

import "github.com/tompula86/petridish/pattern"

// PairKey identifies an ordered adjacent token pair.
type PairKey struct {
	Left, Right pattern.ID
}

// PairCount is one entry of a TopPairs ranking.
type PairCount struct {
	Pair  PairKey
	Count int
}

// PairStats tracks how often each adjacent token pair occurs in a stream,
// the frequency signal the hierarchical engine's explore step ranks
// candidate folds by.
type PairStats struct {
	counts map[PairKey]int
}

// RebuildPairStats scans s from scratch and counts every adjacent pair.
// Unlike CollapsePass, counting is a sliding window: overlapping
// occurrences (e.g. AAA contributes two occurrences of (A,A)) are all
// counted, since the goal here is to rank candidates by raw frequency,
// not to perform a non-overlapping rewrite.
func RebuildPairStats(s *Stream) *PairStats {
	ps := &PairStats{counts: make(map[PairKey]int)}
	tokens := s.Tokens()
	for i := 0; i+1 < len(tokens); i++ {
		ps.counts[PairKey{tokens[i], tokens[i+1]}]++
	}
	return ps
}

// Count returns how many times pair occurred.
func (ps *PairStats) Count(pair PairKey) int {
	return ps.counts[pair]
}

// Len returns the number of distinct pairs tracked.
func (ps *PairStats) Len() int {
	return len(ps.counts)
}

// TopPairs returns up to n pairs ordered by descending count, ties broken
// by Left id then Right id for determinism.
func (ps *PairStats) TopPairs(n int) []PairCount {
	all := make([]PairCount, 0, len(ps.counts))
	for pair, count := range ps.counts {
		all = append(all, PairCount{Pair: pair, Count: count})
	}

	// Insertion sort over every distinct pair in the stream; n only limits
	// how many of the sorted pairs are returned (the hierarchical explore
	// step asks for a handful of candidates per cycle).
	for i := 1; i < len(all); i++ {
		j := i
		for j > 0 && less(all[j], all[j-1]) {
			all[j], all[j-1] = all[j-1], all[j]
			j--
		}
	}

	if n > len(all) {
		n = len(all)
	}
	return all[:n]
}

func less(a, b PairCount) bool {
	if a.Count != b.Count {
		return a.Count > b.Count
	}
	if a.Pair.Left != b.Pair.Left {
		return a.Pair.Left < b.Pair.Left
	}
	return a.Pair.Right < b.Pair.Right
}
