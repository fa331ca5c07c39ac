// Package stream implements the token sequence the hierarchical engine
// rewrites in place as it learns composite patterns. A Stream starts as
// one literal token per input byte; collapse passes greedily fold
// frequent adjacent pairs into single composite tokens, and expand
// reverses a fold so an evicted composite's tokens can still be decoded
// back to their original bytes.
package stream

import (
	"fmt"

	"github.com/tompula86/petridish/internal/sparse"
	"github.com/tompula86/petridish/pattern"
)

// Stream is an ordered sequence of pattern ids. Decoding every token in
// order and concatenating the results always reproduces the original
// input bytes, regardless of how many collapse or expand passes have run.
type Stream struct {
	tokens []pattern.ID
}

// FromBytes builds a stream with one literal token per input byte.
func FromBytes(data []byte, bank *pattern.Bank) *Stream {
	tokens := make([]pattern.ID, len(data))
	for i, b := range data {
		tokens[i] = bank.LiteralID(b)
	}
	return &Stream{tokens: tokens}
}

// Tokens returns the stream's current token sequence. The returned slice
// must not be mutated by the caller.
func (s *Stream) Tokens() []pattern.ID {
	return s.tokens
}

// Len returns the number of tokens currently in the stream.
func (s *Stream) Len() int {
	return len(s.tokens)
}

// Decode expands every token back to raw bytes and concatenates them in
// order, reconstructing the original input.
func (s *Stream) Decode(bank *pattern.Bank) ([]byte, error) {
	out := make([]byte, 0, len(s.tokens))
	for _, id := range s.tokens {
		b, err := bank.Decode(id)
		if err != nil {
			return nil, fmt.Errorf("stream: decode token %d: %w", id, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// CollapsePass scans the stream left to right and replaces every
// non-overlapping occurrence of the adjacent pair (left, right) with the
// single composite token Combine(left, right), creating that composite in
// bank if it does not already exist. Matches never overlap: once a pair at
// position i is folded, scanning resumes at i+2 rather than i+1, so a run
// like AAAA folding pair (A,A) yields two composites, not three
// overlapping ones. CollapsePass returns the composite id and how many
// replacements were made.
func (s *Stream) CollapsePass(bank *pattern.Bank, left, right pattern.ID) (pattern.ID, int, error) {
	merged, ok := bank.GetPairID(left, right)
	if !ok {
		var err error
		merged, _, err = bank.CreateCombine(left, right)
		if err != nil {
			return pattern.InvalidID, 0, fmt.Errorf("stream: create combine: %w", err)
		}
	}

	out := make([]pattern.ID, 0, len(s.tokens))
	count := 0
	for i := 0; i < len(s.tokens); {
		if i+1 < len(s.tokens) && s.tokens[i] == left && s.tokens[i+1] == right {
			out = append(out, merged)
			count++
			i += 2
			continue
		}
		out = append(out, s.tokens[i])
		i++
	}

	s.tokens = out
	return merged, count, nil
}

// Expand replaces every occurrence of the Combine token id in the stream
// with its two children, Left then Right, restoring the stream to the
// state it would be in had that fold never happened. Expand is how the
// engine preserves the round-trip byte invariant when it forgets (evicts)
// a composite: every reference to the composite is rewritten before the
// pattern is removed from the bank. Expand is only valid for Combine
// patterns; it returns an error for literals and operator patterns, which
// have nothing to expand into within the stream itself.
func (s *Stream) Expand(bank *pattern.Bank, id pattern.ID) (int, error) {
	p, ok := bank.Get(id)
	if !ok {
		return 0, fmt.Errorf("stream: expand: %w: id=%d", pattern.ErrNotFound, id)
	}
	if p.Kind != pattern.KindCombine {
		return 0, fmt.Errorf("stream: expand: pattern %d is not a Combine", id)
	}

	out := make([]pattern.ID, 0, len(s.tokens))
	count := 0
	for _, tok := range s.tokens {
		if tok == id {
			out = append(out, p.Left, p.Right)
			count++
			continue
		}
		out = append(out, tok)
	}

	s.tokens = out
	return count, nil
}

// ExpandAll replaces every stream occurrence of any id in ids with that
// Combine's two children, Left then Right, in a single pass over the
// stream. It is the bulk form of Expand used by a forget sweep evicting
// several patterns at once. The caller must guarantee no id in ids is a
// child of another live pattern (the bank's eviction candidates satisfy
// this), so a token inserted by one expansion can never itself be a
// member of ids and one pass suffices.
func (s *Stream) ExpandAll(bank *pattern.Bank, ids []pattern.ID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	victims := sparse.NewSparseSet(uint32(bank.NextID()))
	for _, id := range ids {
		p, ok := bank.Get(id)
		if !ok {
			return 0, fmt.Errorf("stream: expand all: %w: id=%d", pattern.ErrNotFound, id)
		}
		if p.Kind != pattern.KindCombine {
			return 0, fmt.Errorf("stream: expand all: pattern %d is not a Combine", id)
		}
		victims.Insert(uint32(id))
	}

	out := make([]pattern.ID, 0, len(s.tokens))
	count := 0
	for _, tok := range s.tokens {
		if victims.Contains(uint32(tok)) {
			p, _ := bank.Get(tok)
			out = append(out, p.Left, p.Right)
			count++
			continue
		}
		out = append(out, tok)
	}

	s.tokens = out
	return count, nil
}

// Append adds tokens to the end of the stream, used by the host loop to
// feed freshly read bytes into an already-running engine.
func (s *Stream) Append(data []byte, bank *pattern.Bank) {
	for _, b := range data {
		s.tokens = append(s.tokens, bank.LiteralID(b))
	}
}
