// Package engine implements both modes of the pattern-learning
// cycle described by the system: a hierarchical byte-pair compositor
// (explore, collapse, forget, decay) and a scheduler-driven codec that
// patches a focus window with typed operators (exploit, explore,
// shift-window, meta-learn, repack).
package engine

import (
	"fmt"

	"github.com/tompula86/petridish/cost"
	"github.com/tompula86/petridish/scheduler"
)

// Config holds every tunable both engine modes read from. Mode-
// specific sections (hierarchical-only or codec-only fields) are grouped
// and documented as such; a mode simply ignores the fields it has
// no use for.
type Config struct {
	// BankCapacity bounds how many composite patterns the bank will hold
	// before CreateCombine/AddOperator start returning
	// pattern.ErrCapacityReached. Zero means unbounded.
	BankCapacity int

	// DecayRate is the per-cycle strength decay applied to composite
	// patterns. The hierarchical engine skips the composite it used this
	// cycle; the codec engine decays every composite at the start of each
	// cycle.
	DecayRate float64

	// ForgetThreshold is the strength below which the hierarchical
	// engine's forget step will evict the bank's current weakest
	// composite. Patterns at or above this strength are left alone even
	// if they are the weakest the bank currently holds.
	ForgetThreshold float64

	// ForgetCheckInterval is how many cycles elapse between forget
	// attempts in the hierarchical engine.
	ForgetCheckInterval int

	// ForgetCapacityFraction is the bank fill fraction above which forget
	// switches from single weakest-composite eviction to a bulk sweep.
	ForgetCapacityFraction float64

	// ForgetRemovalFraction is how large a share of the bank's composites
	// a bulk forget sweep removes.
	ForgetRemovalFraction float64

	// MinAcceptGain is the hierarchical cost improvement a fold must
	// strictly exceed before CollapsePass is applied.
	MinAcceptGain float64

	// PairThreshold is the minimum adjacency count an explored pair must
	// reach before it is considered for promotion to a composite.
	PairThreshold int

	// WindowSize and WindowMaxSize configure the codec engine's focus
	// window: its initial span and its maximum size. No codec engine
	// action grows the window; AdaptFeedRate also caps the restored feed
	// size at WindowMaxSize.
	WindowSize    int
	WindowMaxSize int

	// MemoryLimit bounds the codec engine's raw byte buffer. A Feed call
	// that would push the buffer past this limit is refused with
	// ErrMemoryLimitExceeded; the engine's own state is unaffected. Zero
	// means unbounded.
	MemoryLimit int

	// Scheduler configures the codec engine's action-selection policy.
	Scheduler scheduler.Config

	// Codec configures the codec engine's cost evaluation.
	Codec cost.CodecConfig

	// StalePruneIdleCycles is how many idle cycles (no use) a codec
	// pattern must accumulate before it becomes a stale-prune candidate.
	StalePruneIdleCycles uint64
	// StalePruneMinGain is the recent-gain floor below which an idle
	// pattern is pruned even if its strength has not yet decayed to
	// zero.
	StalePruneMinGain float64

	// DictionaryMinLen is the shortest repeated substring the codec
	// engine will consider promoting to a dictionary entry.
	DictionaryMinLen int

	// FeedBackoffFreeFraction is the free-memory fraction below which
	// the host loop should halve its feed size.
	FeedBackoffFreeFraction float64
	// FeedRestoreCycles is how many consecutive stagnation-free cycles
	// must elapse before the host loop restores feed size toward its
	// prior level (scaled by FeedRestoreFactor).
	FeedRestoreCycles int
	// FeedRestoreFactor is the multiplicative factor applied to the feed
	// size once FeedRestoreCycles elapses without stagnation.
	FeedRestoreFactor float64
}

// DefaultConfig returns the engine's default tuning.
func DefaultConfig() Config {
	return Config{
		BankCapacity:            1 << 16,
		DecayRate:               0.05,
		ForgetThreshold:         0.05,
		ForgetCheckInterval:     50,
		ForgetCapacityFraction:  0.8,
		ForgetRemovalFraction:   0.1,
		MinAcceptGain:           0,
		PairThreshold:           2,
		WindowSize:              4096,
		WindowMaxSize:           65536,
		Scheduler:               scheduler.DefaultConfig(),
		Codec:                   cost.DefaultCodecConfig(),
		StalePruneIdleCycles:    500,
		StalePruneMinGain:       0.01,
		DictionaryMinLen:        4,
		FeedBackoffFreeFraction: 0.15,
		FeedRestoreCycles:       100,
		FeedRestoreFactor:       1.5,
	}
}

// Validate reports whether c's fields are in an acceptable range.
func (c Config) Validate() error {
	if c.BankCapacity < 0 {
		return fmt.Errorf("engine: BankCapacity must be non-negative")
	}
	if c.DecayRate < 0 || c.DecayRate > 1 {
		return fmt.Errorf("engine: DecayRate must be in [0,1]")
	}
	if c.ForgetThreshold < 0 || c.ForgetThreshold > 1 {
		return fmt.Errorf("engine: ForgetThreshold must be in [0,1]")
	}
	if c.ForgetCheckInterval <= 0 {
		return fmt.Errorf("engine: ForgetCheckInterval must be positive")
	}
	if c.ForgetCapacityFraction <= 0 || c.ForgetCapacityFraction > 1 {
		return fmt.Errorf("engine: ForgetCapacityFraction must be in (0,1]")
	}
	if c.ForgetRemovalFraction <= 0 || c.ForgetRemovalFraction > 1 {
		return fmt.Errorf("engine: ForgetRemovalFraction must be in (0,1]")
	}
	if c.PairThreshold < 1 {
		return fmt.Errorf("engine: PairThreshold must be at least 1")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("engine: WindowSize must be positive")
	}
	if c.WindowMaxSize < c.WindowSize {
		return fmt.Errorf("engine: WindowMaxSize must be >= WindowSize")
	}
	if c.MemoryLimit < 0 {
		return fmt.Errorf("engine: MemoryLimit must be non-negative")
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if err := c.Codec.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	if c.DictionaryMinLen <= 0 {
		return fmt.Errorf("engine: DictionaryMinLen must be positive")
	}
	if c.FeedBackoffFreeFraction < 0 || c.FeedBackoffFreeFraction > 1 {
		return fmt.Errorf("engine: FeedBackoffFreeFraction must be in [0,1]")
	}
	if c.FeedRestoreCycles <= 0 {
		return fmt.Errorf("engine: FeedRestoreCycles must be positive")
	}
	if c.FeedRestoreFactor <= 1 {
		return fmt.Errorf("engine: FeedRestoreFactor must be > 1")
	}
	return nil
}
