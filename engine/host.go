package engine

import (
	"errors"
	"fmt"
	"io"
)

// ByteSource is the input the host loop pulls bytes from. The engine only
// depends on this Read shape; the actual file/network reader lives with
// the CLI driver.
type ByteSource interface {
	// Read behaves like io.Reader: it returns the number of bytes placed
	// in buf and, on exhaustion, io.EOF alongside any bytes already read.
	Read(buf []byte) (n int, err error)
}

// FamiliarityBand classifies a Familiarity reading against the host's
// boredom/curiosity thresholds.
type FamiliarityBand int

const (
	// BandNormal is familiarity between the curiosity and boredom
	// thresholds, both inclusive: steady-state, no rate adjustment.
	BandNormal FamiliarityBand = iota
	// BandBored is familiarity above BoredomThreshold: the recent stream
	// is mostly already-known composites, so the host reads faster. Only
	// the feed rate changes; the engine's cycle, explore included, runs
	// the same in every band.
	BandBored
	// BandCurious is familiarity below CuriosityThreshold: the recent
	// stream is still mostly literals, so the host reads more slowly. As
	// with BandBored, only the feed rate changes.
	BandCurious
)

func (b FamiliarityBand) String() string {
	switch b {
	case BandBored:
		return "bored"
	case BandCurious:
		return "curious"
	default:
		return "normal"
	}
}

// HostConfig configures the adaptive host loop.
type HostConfig struct {
	// FeedRate is the initial number of bytes requested per Step call.
	FeedRate int
	// BoredomThreshold is the familiarity value above which the host
	// considers the engine "bored" (default 0.70).
	BoredomThreshold float64
	// CuriosityThreshold is the familiarity value below which the host
	// considers the engine "curious" (default 0.40).
	CuriosityThreshold float64
	// FamiliarityWindow is how many of the stream's most recent tokens
	// Familiarity inspects (default 1000).
	FamiliarityWindow int
	// MaxStagnantCycles is how many consecutive cycles after the source
	// is exhausted must pass with no stream-length change, no collapse
	// and no eviction before Done reports true.
	MaxStagnantCycles int
	// BoredFeedMultiplier scales FeedRate up while BandBored.
	BoredFeedMultiplier float64
	// CuriousFeedDivisor scales FeedRate down (by division) while
	// BandCurious.
	CuriousFeedDivisor float64
}

// DefaultHostConfig returns the host loop's default tuning.
func DefaultHostConfig() HostConfig {
	return HostConfig{
		FeedRate:            4096,
		BoredomThreshold:    0.70,
		CuriosityThreshold:  0.40,
		FamiliarityWindow:   1000,
		MaxStagnantCycles:   25,
		BoredFeedMultiplier: 2.0,
		CuriousFeedDivisor:  2.0,
	}
}

// Validate reports whether c's fields are in an acceptable range.
func (c HostConfig) Validate() error {
	if c.FeedRate <= 0 {
		return fmt.Errorf("engine: host: FeedRate must be positive")
	}
	if c.BoredomThreshold <= c.CuriosityThreshold {
		return fmt.Errorf("engine: host: BoredomThreshold must exceed CuriosityThreshold")
	}
	if c.BoredomThreshold > 1 || c.CuriosityThreshold < 0 {
		return fmt.Errorf("engine: host: thresholds must lie within [0,1]")
	}
	if c.FamiliarityWindow <= 0 {
		return fmt.Errorf("engine: host: FamiliarityWindow must be positive")
	}
	if c.MaxStagnantCycles <= 0 {
		return fmt.Errorf("engine: host: MaxStagnantCycles must be positive")
	}
	if c.BoredFeedMultiplier <= 1 {
		return fmt.Errorf("engine: host: BoredFeedMultiplier must be > 1")
	}
	if c.CuriousFeedDivisor <= 1 {
		return fmt.Errorf("engine: host: CuriousFeedDivisor must be > 1")
	}
	return nil
}

// Host drives a HierarchicalEngine's cycle loop end to end: it reads from
// a ByteSource between cycles, feeds what it gets to the engine, runs one
// cycle, and adapts its own feed rate to how familiar the engine currently
// is with the tail of the stream.
type Host struct {
	cfg    HostConfig
	engine *HierarchicalEngine

	feedRate       int
	eof            bool
	stagnantCycles int
	lastStreamLen  int
	cyclesRun      uint64
}

// NewHost creates a Host driving engine.
func NewHost(hengine *HierarchicalEngine, cfg HostConfig) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Host{
		cfg:           cfg,
		engine:        hengine,
		feedRate:      cfg.FeedRate,
		lastStreamLen: hengine.Stream().Len(),
	}, nil
}

// Familiarity returns, over the last FamiliarityWindow tokens of the
// stream, the fraction whose pattern is a composite. It is always in
// [0,1] and is monotone non-decreasing in the number of composite tokens
// within the window.
func (h *Host) Familiarity() float64 {
	tokens := h.engine.Stream().Tokens()
	n := h.cfg.FamiliarityWindow
	if n > len(tokens) {
		n = len(tokens)
	}
	if n == 0 {
		return 0
	}

	bank := h.engine.Bank()
	start := len(tokens) - n
	composite := 0
	for _, id := range tokens[start:] {
		if p, ok := bank.Get(id); ok && p.Composite() {
			composite++
		}
	}
	return float64(composite) / float64(n)
}

// Band classifies the host's current Familiarity reading.
func (h *Host) Band() FamiliarityBand {
	f := h.Familiarity()
	switch {
	case f > h.cfg.BoredomThreshold:
		return BandBored
	case f < h.cfg.CuriosityThreshold:
		return BandCurious
	default:
		return BandNormal
	}
}

// FeedRate returns the number of bytes the next Step call will request
// from the source.
func (h *Host) FeedRate() int {
	return h.feedRate
}

// CyclesRun returns how many engine cycles Step has driven so far.
func (h *Host) CyclesRun() uint64 {
	return h.cyclesRun
}

// Done reports whether the host has reached steady state: the source is
// exhausted and the stream's shape has not changed for MaxStagnantCycles
// consecutive Step calls.
func (h *Host) Done() bool {
	return h.eof && h.stagnantCycles >= h.cfg.MaxStagnantCycles
}

// Step reads up to the host's current feed rate from source, feeds
// whatever bytes came back into the engine, runs one Cycle, and updates
// the feed rate and stagnation bookkeeping for the next call. It returns
// the cycle's result; callers should stop calling Step once Done reports
// true (or sooner, at their own discretion).
func (h *Host) Step(source ByteSource) (CycleResult, error) {
	if !h.eof && source != nil {
		buf := make([]byte, h.feedRate)
		n, err := source.Read(buf)
		if n > 0 {
			h.engine.Feed(buf[:n])
		}
		switch {
		case errors.Is(err, io.EOF):
			h.eof = true
		case err != nil:
			return CycleResult{}, fmt.Errorf("engine: host: read: %w", err)
		}
	}

	result, err := h.engine.Cycle()
	if err != nil {
		return result, err
	}
	h.cyclesRun++

	curLen := h.engine.Stream().Len()
	if h.eof && curLen == h.lastStreamLen && !result.Collapsed && !result.Evicted {
		h.stagnantCycles++
	} else {
		h.stagnantCycles = 0
	}
	h.lastStreamLen = curLen

	h.adaptFeedRate()
	return result, nil
}

// adaptFeedRate implements the boredom/curiosity feed-rate rule: bored
// grows the feed size (bounded only by practical limits the caller's
// memory budget enforces upstream), curious shrinks it, and the normal
// band leaves it untouched.
func (h *Host) adaptFeedRate() {
	switch h.Band() {
	case BandBored:
		h.feedRate = maxInt(1, int(float64(h.feedRate)*h.cfg.BoredFeedMultiplier))
	case BandCurious:
		h.feedRate = maxInt(1, int(float64(h.feedRate)/h.cfg.CuriousFeedDivisor))
	}
}
