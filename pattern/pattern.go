// Package pattern implements the content-addressed pattern bank shared by
// both engine modes: the hierarchical byte-pair compositor and the
// scheduler-driven codec. A Pattern is either a Literal byte, a Combine of
// two existing patterns, or a codec operator; the bank assigns every
// pattern a monotonically increasing id that, once allocated, is never
// reused.
package pattern

import (
	"fmt"

	"github.com/tompula86/petridish/codec"
)

// ID identifies a pattern within a Bank. Ids are allocated monotonically
// and are stable for the lifetime of the bank; Remove retires an id but
// never recycles it, so a stale ID can always be detected rather than
// silently aliasing a different pattern.
type ID uint32

// InvalidID is never assigned to a live pattern and marks the absence of a
// reference.
const InvalidID ID = 0xFFFFFFFF

// Kind discriminates the three ways a Pattern can be constructed.
type Kind uint8

const (
	// KindLiteral holds exactly one raw byte and has no children.
	KindLiteral Kind = iota
	// KindCombine concatenates two existing patterns, Left then Right.
	KindCombine
	// KindOperator wraps a codec.Operator, used only by the codec
	// engine's focus-window patches.
	KindOperator
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "Literal"
	case KindCombine:
		return "Combine"
	case KindOperator:
		return "Operator"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Pattern is one entry in a Bank. Composite is true for anything that is
// not a bare literal byte: a Combine node or a codec operator, matching the
// glossary definition that a composite is "a non-literal pattern".
type Pattern struct {
	ID   ID
	Kind Kind

	// Literal
	Byte byte

	// Combine
	Left  ID
	Right ID

	// Operator
	Op codec.Operator

	// complexity is 0 for a literal and, for a Combine, strictly exceeds
	// both children's complexity (saturating at 255 so a pathologically
	// deep DAG can never overflow the counter). It is immutable once set
	// and exists purely as a diagnostic/ranking signal; nothing in the
	// engine currently guards an action on it, but the bank enforces the
	// invariant on every CreateCombine call.
	complexity uint8

	// length is the number of raw bytes this pattern decodes to. For a
	// literal this is always 1; for a Combine it is the sum of its
	// children's lengths; for an operator it is the operator's expansion
	// length, cached at creation time since recomputing it requires the
	// dictionary.
	length int

	// Scoring state, updated by the engine after each cycle.
	strength   float64 // saturating in [0, 1]
	recentGain float64 // EMA of realized gain, alpha = emaAlpha
	usageCount uint64
	idleCycles uint64

	// refCount is how many live Combine patterns use p as a child. The
	// bank maintains it on create and remove; eviction only considers
	// patterns nothing else builds on, so removing one can never leave a
	// live pattern with a dangling child reference.
	refCount int
}

// emaAlpha is the smoothing factor for RecentGain's exponential moving
// average. A higher alpha favors the last cycle's observation over the
// pattern's longer history.
const emaAlpha = 0.25

// newbornStrength is the initial strength of a freshly created Combine:
// halfway between dead and fully confirmed, so a new composite survives a
// few decay cycles but still needs realized gain to stay in the bank.
const newbornStrength = 0.5

// Composite reports whether p is anything other than a raw literal byte.
func (p *Pattern) Composite() bool {
	return p.Kind != KindLiteral
}

// Complexity returns p's depth in the Combine DAG: 0 for a literal, and
// for a Combine strictly greater than both children's complexity.
func (p *Pattern) Complexity() uint8 {
	return p.complexity
}

// Length returns the number of raw bytes p expands to.
func (p *Pattern) Length() int {
	return p.length
}

// Strength returns the pattern's current saturating strength in [0, 1].
func (p *Pattern) Strength() float64 {
	return p.strength
}

// RecentGain returns the exponential moving average of the pattern's
// realized gain across recent cycles.
func (p *Pattern) RecentGain() float64 {
	return p.recentGain
}

// UsageCount returns how many times p has been applied since creation.
func (p *Pattern) UsageCount() uint64 {
	return p.usageCount
}

// IdleCycles returns how many engine cycles have elapsed since p was last
// applied.
func (p *Pattern) IdleCycles() uint64 {
	return p.idleCycles
}

// RecordUse updates usage bookkeeping after p participates in a collapse or
// patch, folding gain into the running EMA and saturating strength toward
// 1 on positive gain and toward 0 on non-positive gain.
func (p *Pattern) RecordUse(gain float64) {
	p.usageCount++
	p.idleCycles = 0
	p.recentGain = emaAlpha*gain + (1-emaAlpha)*p.recentGain

	if gain > 0 {
		p.strength += (1 - p.strength) * emaAlpha
	} else {
		p.strength -= p.strength * emaAlpha
	}
}

// Decay ages p by one cycle without use, incrementing its idle counter and
// pulling both strength and the recent-gain EMA toward 0. The hierarchical
// engine calls this once per cycle for every composite except the one it
// just applied; the codec engine calls it once per cycle for every
// composite.
func (p *Pattern) Decay(rate float64) {
	p.idleCycles++
	p.strength -= p.strength * rate
	if p.strength < 0 {
		p.strength = 0
	}
	p.recentGain *= 1 - rate
}

// RefCount returns how many live Combine patterns reference p as a child.
func (p *Pattern) RefCount() int {
	return p.refCount
}

// Score combines strength and recent gain into the single comparable value
// the codec engine's capacity eviction and meta-learning step rank
// patterns by.
func (p *Pattern) Score() float64 {
	return p.strength + p.recentGain
}
