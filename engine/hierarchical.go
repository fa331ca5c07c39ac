package engine

import (
	"fmt"

	"github.com/tompula86/petridish/cost"
	"github.com/tompula86/petridish/pattern"
	"github.com/tompula86/petridish/stream"
)

// HierarchicalEngine runs the explore/collapse/forget/decay cycle over a
// single in-memory byte stream, building up a DAG of composite patterns in
// its bank the way a bottom-up grammar induction pass would.
type HierarchicalEngine struct {
	bank       *pattern.Bank
	stream     *stream.Stream
	cfg        Config
	cycleCount uint64
}

// NewHierarchicalEngine creates an engine over data, with one literal
// token per byte and an empty bank of composites.
func NewHierarchicalEngine(data []byte, cfg Config) (*HierarchicalEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bank := pattern.NewBank(cfg.BankCapacity)
	s := stream.FromBytes(data, bank)
	return &HierarchicalEngine{bank: bank, stream: s, cfg: cfg}, nil
}

// Bank returns the engine's pattern bank.
func (e *HierarchicalEngine) Bank() *pattern.Bank {
	return e.bank
}

// Stream returns the engine's token stream.
func (e *HierarchicalEngine) Stream() *stream.Stream {
	return e.stream
}

// CycleCount returns how many cycles have run so far.
func (e *HierarchicalEngine) CycleCount() uint64 {
	return e.cycleCount
}

// CycleResult reports what one Cycle call did.
type CycleResult struct {
	Collapsed bool
	MergedID  pattern.ID
	Gain      float64
	Evicted   bool
	EvictedID pattern.ID
}

// Cycle runs one explore -> collapse -> forget -> decay pass. Explore
// and collapse are combined into a single step here because collapsing is
// only ever a commit of whatever explore already found to be profitable;
// there is no separate "propose, then later commit" phase to model. The
// cost comparison is the gate that decides whether a composite gets to
// rewrite the stream: a fold must win on measured gain each cycle rather
// than cross a stored strength bar once, so strength only governs
// eviction, never stream influence.
func (e *HierarchicalEngine) Cycle() (CycleResult, error) {
	e.cycleCount++
	var result CycleResult

	merged, gain, applied, err := e.exploreAndCollapse()
	if err != nil {
		return result, err
	}
	if applied {
		result.Collapsed = true
		result.MergedID = merged
		result.Gain = gain
		if p, ok := e.bank.Get(merged); ok {
			p.RecordUse(gain)
		}
	}

	if e.cycleCount%uint64(e.cfg.ForgetCheckInterval) == 0 {
		if evicted, ok, ferr := e.forget(); ferr != nil {
			return result, ferr
		} else if ok {
			result.Evicted = true
			result.EvictedID = evicted
		}
	}

	e.decay(merged, applied)
	return result, nil
}

// candidateBreadth bounds how many of the stream's most frequent adjacent
// pairs explore evaluates each cycle, keeping the search a bounded
// per-cycle cost regardless of stream size.
const candidateBreadth = 8

func (e *HierarchicalEngine) exploreAndCollapse() (pattern.ID, float64, bool, error) {
	ps := stream.RebuildPairStats(e.stream)
	top := ps.TopPairs(candidateBreadth)
	if len(top) == 0 {
		return pattern.InvalidID, 0, false, nil
	}

	curLen := e.stream.Len()
	curComposites := e.bank.CompositeCount()
	before := cost.EvaluateBank(curLen, e.bank)

	var (
		bestPair  stream.PairKey
		bestGain  float64
		bestFolds int
		found     bool
	)

	for _, pc := range top {
		if pc.Count < e.cfg.PairThreshold {
			continue
		}
		folds := countFolds(e.stream.Tokens(), pc.Pair.Left, pc.Pair.Right)
		if folds == 0 {
			continue
		}
		_, reused, err := e.bank.CreateCombine(pc.Pair.Left, pc.Pair.Right)
		if err == pattern.ErrCapacityReached {
			continue
		}
		if err != nil {
			return pattern.InvalidID, 0, false, fmt.Errorf("engine: explore: %w", err)
		}

		newComposites := curComposites
		if !reused {
			newComposites++
		}
		after := cost.EvaluateHierarchical(curLen-folds, newComposites)
		gain := cost.Gain(before, after)

		if !found || gain > bestGain {
			bestPair, bestGain, bestFolds, found = pc.Pair, gain, folds, true
		}
	}

	if !found || bestGain <= e.cfg.MinAcceptGain {
		return pattern.InvalidID, 0, false, nil
	}

	merged, count, err := e.stream.CollapsePass(e.bank, bestPair.Left, bestPair.Right)
	if err != nil {
		return pattern.InvalidID, 0, false, fmt.Errorf("engine: collapse: %w", err)
	}
	if count != bestFolds {
		// The stream changed shape between counting and collapsing only
		// if a concurrent mutation occurred, which Cycle's single-
		// threaded use never does; this is a defensive cross-check.
		bestGain = cost.Gain(before, cost.EvaluateHierarchical(e.stream.Len(), e.bank.CompositeCount()))
	}

	return merged, bestGain, true, nil
}

func countFolds(tokens []pattern.ID, left, right pattern.ID) int {
	count := 0
	for i := 0; i < len(tokens); {
		if i+1 < len(tokens) && tokens[i] == left && tokens[i+1] == right {
			count++
			i += 2
			continue
		}
		i++
	}
	return count
}

// forget evicts low-utility composites, expanding every stream reference
// to each victim first so the round-trip byte invariant holds after the
// pattern is gone. Under capacity pressure (bank fuller than
// ForgetCapacityFraction) it sweeps the weakest ForgetRemovalFraction of
// all composites in one pass; otherwise it only retires the single
// weakest composite, and only once its strength has decayed below
// ForgetThreshold.
func (e *HierarchicalEngine) forget() (pattern.ID, bool, error) {
	if e.cfg.BankCapacity > 0 &&
		float64(e.bank.CompositeCount()) > float64(e.cfg.BankCapacity)*e.cfg.ForgetCapacityFraction {
		n := int(float64(e.bank.CompositeCount()) * e.cfg.ForgetRemovalFraction)
		if n < 1 {
			n = 1
		}
		ids := e.bank.GetWeakestN(n)
		if len(ids) > 0 {
			if _, err := e.stream.ExpandAll(e.bank, ids); err != nil {
				return pattern.InvalidID, false, fmt.Errorf("engine: forget: %w", err)
			}
			for _, id := range ids {
				if err := e.bank.Remove(id); err != nil {
					return pattern.InvalidID, false, fmt.Errorf("engine: forget: remove: %w", err)
				}
			}
			return ids[len(ids)-1], true, nil
		}
	}

	id, ok := e.bank.GetWeakest()
	if !ok {
		return pattern.InvalidID, false, nil
	}
	p, _ := e.bank.Get(id)
	if p.Strength() >= e.cfg.ForgetThreshold {
		return pattern.InvalidID, false, nil
	}
	if err := e.evict(id); err != nil {
		return pattern.InvalidID, false, err
	}
	return id, true, nil
}

func (e *HierarchicalEngine) evict(id pattern.ID) error {
	if _, err := e.stream.Expand(e.bank, id); err != nil {
		return fmt.Errorf("engine: forget: expand: %w", err)
	}
	if err := e.bank.Remove(id); err != nil {
		return fmt.Errorf("engine: forget: remove: %w", err)
	}
	return nil
}

// decay ages every composite pattern except the one just used this cycle
// (whose strength was already updated by RecordUse).
func (e *HierarchicalEngine) decay(justUsed pattern.ID, used bool) {
	e.bank.Each(func(p *pattern.Pattern) {
		if p.Kind == pattern.KindLiteral {
			return
		}
		if used && p.ID == justUsed {
			return
		}
		p.Decay(e.cfg.DecayRate)
	})
}

// Familiarity returns how strongly id is currently reinforced, in [0,1].
func (e *HierarchicalEngine) Familiarity(id pattern.ID) (float64, error) {
	p, ok := e.bank.Get(id)
	if !ok {
		return 0, fmt.Errorf("engine: %w: id=%d", pattern.ErrNotFound, id)
	}
	return p.Strength(), nil
}

// Decode reconstructs the full original byte sequence from the current
// stream and bank state.
func (e *HierarchicalEngine) Decode() ([]byte, error) {
	return e.stream.Decode(e.bank)
}

// Feed appends newly read bytes to the stream, used by the host loop
// between cycles.
func (e *HierarchicalEngine) Feed(data []byte) {
	e.stream.Append(data, e.bank)
}
