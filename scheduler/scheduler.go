package scheduler

import (
	"fmt"
	"math/rand"
)

// Rand is the randomness source Decide draws from. Tests and deterministic
// replays supply a fixed-seed or scripted implementation instead of
// relying on ambient global randomness.
type Rand interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
}

// defaultRand wraps math/rand's package-level source.
type defaultRand struct {
	r *rand.Rand
}

// NewDefaultRand returns a Rand seeded with seed. Callers that want
// reproducible engine runs should pass a fixed seed; the host loop's
// default wiring seeds from the current time.
func NewDefaultRand(seed int64) Rand {
	return &defaultRand{r: rand.New(rand.NewSource(seed))}
}

func (d *defaultRand) Float64() float64 {
	return d.r.Float64()
}

// Config holds the scheduler's tunable policy knobs.
type Config struct {
	// QuotaPerCycle is checked by Validate but not read by Decide or by
	// the codec engine, whose Cycle runs exactly one action.
	QuotaPerCycle int
	// ExploreFloor is the minimum probability Explore is selected even
	// when Exploit's measured gain-per-quota dominates, guaranteeing the
	// engine never stops searching for new patterns entirely.
	ExploreFloor float64
	// MetaProbability is the flat per-decision probability of choosing
	// MetaLearn before the Exploit/Explore split is even considered.
	MetaProbability float64
	// StagnationCycles is how many consecutive cycles with non-positive
	// gain trigger a forced ShiftWindow.
	StagnationCycles int
	// RepackInterval is how many cycles between forced Repack actions,
	// independent of stagnation. A zero value disables interval-triggered
	// repacking; buffer pressure can still trigger one.
	RepackInterval int
	// RepackThreshold is the bufferPressure value (Decide's argument) at
	// or above which Decide forces a Repack regardless of RepackInterval.
	RepackThreshold float64
}

// DefaultConfig returns the scheduler's default policy.
func DefaultConfig() Config {
	return Config{
		QuotaPerCycle:    16,
		ExploreFloor:     0.1,
		MetaProbability:  0.05,
		StagnationCycles: 20,
		RepackInterval:   200,
		RepackThreshold:  0.92,
	}
}

// Validate reports whether c's fields are in an acceptable range.
func (c Config) Validate() error {
	if c.QuotaPerCycle <= 0 {
		return fmt.Errorf("scheduler: QuotaPerCycle must be positive")
	}
	if c.ExploreFloor < 0 || c.ExploreFloor > 1 {
		return fmt.Errorf("scheduler: ExploreFloor must be in [0,1]")
	}
	if c.MetaProbability < 0 || c.MetaProbability > 1 {
		return fmt.Errorf("scheduler: MetaProbability must be in [0,1]")
	}
	if c.StagnationCycles <= 0 {
		return fmt.Errorf("scheduler: StagnationCycles must be positive")
	}
	if c.RepackThreshold < 0 || c.RepackThreshold > 1 {
		return fmt.Errorf("scheduler: RepackThreshold must be in [0,1]")
	}
	return nil
}

// Scheduler selects an Action each cycle, biasing toward whichever of
// Exploit/Explore has the better recent gain-per-quota while guaranteeing
// Explore a floor and forcing a ShiftWindow once a run of cycles has
// produced no gain at all.
type Scheduler struct {
	cfg            Config
	rng            Rand
	stats          map[Action]*Stats
	stagnantCycles int
	cyclesSinceUse int
}

// New creates a Scheduler from cfg and rng. cfg must already be valid;
// callers should call Config.Validate before constructing a Scheduler.
func New(cfg Config, rng Rand) *Scheduler {
	return &Scheduler{
		cfg: cfg,
		rng: rng,
		stats: map[Action]*Stats{
			ActionExploit:     {},
			ActionExplore:     {},
			ActionShiftWindow: {},
			ActionMetaLearn:   {},
			ActionRepack:      {},
		},
	}
}

// Stats returns the running statistics for action, for inspection by
// callers (e.g. a host loop's periodic report) without mutating scheduler
// state.
func (s *Scheduler) Stats(action Action) Stats {
	return *s.stats[action]
}

// bufferPressure is set by the engine ahead of Decide to report how full
// the bank or window currently is, as a fraction in [0,1].
func (s *Scheduler) Decide(bufferPressure float64) Action {
	s.cyclesSinceUse++

	if bufferPressure >= s.cfg.RepackThreshold {
		return ActionRepack
	}
	if s.cfg.RepackInterval > 0 && s.cyclesSinceUse >= s.cfg.RepackInterval {
		return ActionRepack
	}

	if s.stagnantCycles >= s.cfg.StagnationCycles {
		return ActionShiftWindow
	}

	if s.rng.Float64() < s.cfg.MetaProbability {
		return ActionMetaLearn
	}

	exploitGain := s.stats[ActionExploit].GainPerQuota()
	exploreGain := s.stats[ActionExplore].GainPerQuota()

	exploreProb := s.cfg.ExploreFloor
	total := exploitGain + exploreGain
	if total > 0 {
		if p := exploreGain / total; p > exploreProb {
			exploreProb = p
		}
	}

	if s.rng.Float64() < exploreProb {
		return ActionExplore
	}
	return ActionExploit
}

// RecordOutcome folds a cycle's realized gain back into the scheduler's
// statistics for action and updates the stagnation counter. Exploit and
// Explore drive stagnation up or down by whether they produced gain.
// ShiftWindow clears it: the window the engine was stuck on is gone, so
// the streak it measured is no longer meaningful. MetaLearn and Repack
// leave it untouched, since neither says anything about whether the
// current window is still worth working.
func (s *Scheduler) RecordOutcome(action Action, gain float64, quotaCost int) {
	s.stats[action].Record(gain, quotaCost)

	switch action {
	case ActionExploit, ActionExplore:
		if gain > 0 {
			s.stagnantCycles = 0
		} else {
			s.stagnantCycles++
		}
	case ActionShiftWindow:
		s.stagnantCycles = 0
	}

	if action == ActionRepack {
		s.cyclesSinceUse = 0
	}
}

// StagnantCycles returns the current run length of non-positive-gain
// Exploit/Explore cycles.
func (s *Scheduler) StagnantCycles() int {
	return s.stagnantCycles
}
