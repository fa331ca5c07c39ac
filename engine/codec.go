package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/coregx/ahocorasick"

	"github.com/tompula86/petridish/codec"
	"github.com/tompula86/petridish/cost"
	"github.com/tompula86/petridish/pattern"
	"github.com/tompula86/petridish/scheduler"
	"github.com/tompula86/petridish/simd"
	"github.com/tompula86/petridish/stream"
)

const (
	minRunLen        = 4
	minDeltaLen      = 5
	minBackRef       = 4
	maxBackRefSearch = 64 // how many candidate anchor positions explore checks per cycle
)

// CodecEngine runs the scheduler-driven cycle that encodes an input byte
// stream into a model of typed operators plus residual literal bytes. It
// never mutates the raw input it has already seen; encoded output is
// append-only, so a patch once committed is never revisited in place,
// only ever superseded by future cycles covering later bytes.
type CodecEngine struct {
	cfg  Config
	bank *pattern.Bank
	dict *codec.Dictionary

	raw     []byte
	encoded []byte
	window  *stream.FocusWindow

	sched *scheduler.Scheduler

	aho      *ahocorasick.Automaton
	ahoStale bool

	cycleCount  uint64
	rleBankID   map[byte]pattern.ID
	dictIDs     map[uint16]pattern.ID
	generalized pattern.ID

	feedRate                 int
	stagnationFreeCycleCount int
}

// NewCodecEngine creates a codec engine over an initial chunk of input.
// More input can be appended later via Feed.
func NewCodecEngine(initial []byte, cfg Config, rng scheduler.Rand) (*CodecEngine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	bank := pattern.NewBank(cfg.BankCapacity)
	win, err := stream.NewFocusWindow(initial, 0, cfg.WindowSize, cfg.WindowMaxSize)
	if err != nil {
		return nil, fmt.Errorf("engine: codec: %w", err)
	}

	return &CodecEngine{
		cfg:         cfg,
		bank:        bank,
		dict:        codec.NewDictionary(),
		raw:         initial,
		window:      win,
		sched:       scheduler.New(cfg.Scheduler, rng),
		ahoStale:    true,
		rleBankID:   make(map[byte]pattern.ID),
		dictIDs:     make(map[uint16]pattern.ID),
		generalized: pattern.InvalidID,
		feedRate:    cfg.WindowSize,
	}, nil
}

// Bank returns the engine's pattern bank.
func (e *CodecEngine) Bank() *pattern.Bank {
	return e.bank
}

// Dictionary returns the engine's live dictionary.
func (e *CodecEngine) Dictionary() *codec.Dictionary {
	return e.dict
}

// Output returns the encoded bytes produced so far.
func (e *CodecEngine) Output() []byte {
	return e.encoded
}

// Decode walks the encoded output left to right, expanding every recognized
// operator against the bytes decoded so far and passing residual bytes
// through unchanged, reconstructing the raw input Feed has been given. This
// is the codec engine's half of the round-trip invariant the
// hierarchical engine's Stream.Decode satisfies for token streams.
func (e *CodecEngine) Decode() ([]byte, error) {
	out := make([]byte, 0, len(e.encoded))
	buf := e.encoded
	for i := 0; i < len(buf); {
		if codec.IsOpcode(buf[i]) {
			op, n, err := codec.Decode(buf[i:])
			if err == nil {
				expanded, xerr := codec.Expand(op, e.dict, out)
				if xerr != nil {
					return nil, fmt.Errorf("engine: codec: decode: %w", xerr)
				}
				out = append(out, expanded...)
				i += n
				continue
			}
		}
		out = append(out, buf[i])
		i++
	}
	return out, nil
}

// Cost evaluates the encoded output against the codec cost model,
// classifying every byte as operator (model) or literal (residual) and
// totaling the raw bytes they stand for.
func (e *CodecEngine) Cost() cost.CodecResult {
	return cost.EvaluateCodecBuffer(e.encoded, e.dict)
}

// Finalize flushes any bytes still sitting unencoded in the window as
// residual literals, so Output represents every byte Feed has ever
// received. The host loop calls this once, after its last Feed, before
// persisting or reporting final output.
func (e *CodecEngine) Finalize() error {
	return e.shiftWindow()
}

// ErrMemoryLimitExceeded is returned by Feed when accepting the bytes
// would push the raw buffer past the configured MemoryLimit. The feed
// attempt fails as a whole; engine state is unchanged and the caller may
// retry with a smaller chunk after backing its feed rate off.
var ErrMemoryLimitExceeded = errors.New("engine: codec: feed would exceed memory limit")

// Feed appends newly read bytes to the raw input the window scans over.
func (e *CodecEngine) Feed(data []byte) error {
	if e.cfg.MemoryLimit > 0 && len(e.raw)+len(data) > e.cfg.MemoryLimit {
		return fmt.Errorf("%w: have %d bytes, limit %d, refused %d more",
			ErrMemoryLimitExceeded, len(e.raw), e.cfg.MemoryLimit, len(data))
	}
	e.raw = append(e.raw, data...)
	// FocusWindow holds a slice header over the buffer it was built
	// from; after growing raw, re-anchor the window at its current
	// offset so Bytes() reflects the newly appended tail too. The span
	// is re-requested at full configured size: the old window may have
	// been clamped short by the previous end of data.
	size := e.cfg.WindowSize
	if l := e.window.Len(); l > size {
		size = l
	}
	if nw, err := stream.NewFocusWindow(e.raw, e.window.Start(), size, e.cfg.WindowMaxSize); err == nil {
		e.window = nw
	}
	return nil
}

// Pending returns how many raw bytes are still in the focus window
// awaiting encoding. The host loop uses this to decide when the engine
// has consumed everything it was fed.
func (e *CodecEngine) Pending() int {
	return e.window.Len()
}

// FreeFraction reports how much of the configured MemoryLimit is still
// unused, in [0,1]. With no limit configured it reports 1; the host loop
// feeds this to AdaptFeedRate each cycle.
func (e *CodecEngine) FreeFraction() float64 {
	if e.cfg.MemoryLimit <= 0 {
		return 1
	}
	free := e.cfg.MemoryLimit - len(e.raw)
	if free <= 0 {
		return 0
	}
	return float64(free) / float64(e.cfg.MemoryLimit)
}

// FeedRate returns the engine's current adaptive feed size: how many
// bytes the host loop should read per Feed call.
func (e *CodecEngine) FeedRate() int {
	return e.feedRate
}

// AdaptFeedRate implements the feed-rate backoff: under memory pressure
// (freeFraction below FeedBackoffFreeFraction) the feed size is halved
// immediately; otherwise, once FeedRestoreCycles consecutive calls have
// found the scheduler's stagnation counter at zero, the feed size is
// grown back by FeedRestoreFactor. The host loop calls this once per
// cycle, after Cycle has run.
func (e *CodecEngine) AdaptFeedRate(freeFraction float64) {
	if freeFraction < e.cfg.FeedBackoffFreeFraction {
		e.feedRate = maxInt(1, e.feedRate/2)
		e.stagnationFreeCycleCount = 0
		return
	}

	if e.sched.StagnantCycles() > 0 {
		e.stagnationFreeCycleCount = 0
		return
	}

	e.stagnationFreeCycleCount++
	if e.stagnationFreeCycleCount >= e.cfg.FeedRestoreCycles {
		e.feedRate = minInt(e.cfg.WindowMaxSize, int(float64(e.feedRate)*e.cfg.FeedRestoreFactor))
		e.stagnationFreeCycleCount = 0
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// bufferPressure reports how full the bank is, in [0,1], the signal the
// scheduler uses to decide whether to force a Repack.
func (e *CodecEngine) bufferPressure() float64 {
	if e.cfg.BankCapacity == 0 {
		return 0
	}
	return float64(e.bank.CompositeCount()) / float64(e.cfg.BankCapacity)
}

// CodecCycleResult reports what one Cycle call did.
type CodecCycleResult struct {
	Action scheduler.Action
	Gain   float64
}

// Per-action quota costs. An exploit probe is cheap, an explore scan
// touches the whole window head, meta-learning and repacking touch the
// whole bank or window. The scheduler's gain-per-quota ratios divide by
// these, so an expensive action has to pay for itself proportionally.
const (
	costExploit     = 1
	costExplore     = 10
	costShiftWindow = 3
	costMetaLearn   = 100
	costRepack      = 50
)

func actionCost(a scheduler.Action) int {
	switch a {
	case scheduler.ActionExplore:
		return costExplore
	case scheduler.ActionShiftWindow:
		return costShiftWindow
	case scheduler.ActionMetaLearn:
		return costMetaLearn
	case scheduler.ActionRepack:
		return costRepack
	default:
		return costExploit
	}
}

// dictRefreshInterval is how many cycles elapse between window scans for
// dictionary promotion candidates.
const dictRefreshInterval = 25

// Cycle runs one scheduler-driven action against the current focus
// window, after the per-cycle housekeeping: aging every pattern one cycle
// and periodically rescanning the window for dictionary candidates.
func (e *CodecEngine) Cycle() (CodecCycleResult, error) {
	if e.window.Len() == 0 {
		return CodecCycleResult{}, nil
	}

	e.cycleCount++
	e.bank.Each(func(p *pattern.Pattern) {
		if p.Composite() {
			p.Decay(e.cfg.DecayRate)
		}
	})
	if e.cycleCount%dictRefreshInterval == 1 {
		e.refreshDictionary()
	}

	action := e.sched.Decide(e.bufferPressure())

	var gain float64
	var err error
	switch action {
	case scheduler.ActionExploit:
		gain, err = e.exploit()
	case scheduler.ActionExplore:
		gain, err = e.explore()
	case scheduler.ActionShiftWindow:
		err = e.shiftWindow()
	case scheduler.ActionMetaLearn:
		gain, err = e.metaLearn()
	case scheduler.ActionRepack:
		gain, err = e.repack()
	}
	if err != nil {
		return CodecCycleResult{Action: action}, err
	}

	e.sched.RecordOutcome(action, gain, actionCost(action))
	e.prune()
	return CodecCycleResult{Action: action, Gain: gain}, nil
}

// history returns the already-encoded raw bytes preceding the window,
// used to resolve KindBackRef distances.
func (e *CodecEngine) history() []byte {
	return e.raw[:e.window.Start()]
}

// emit appends the wire encoding of a patch covering the window's first
// n raw bytes, advances the window past them, and returns the byte gain.
func (e *CodecEngine) emit(op codec.Operator, n int) (float64, error) {
	p := codec.Patch{Start: 0, End: n, Op: op}
	encoded, err := codec.Apply(e.window.Bytes(), p, e.dict, e.history())
	if err != nil {
		return 0, fmt.Errorf("engine: codec: emit: %w", err)
	}
	e.encoded = append(e.encoded, encoded...)
	gain := float64(n - len(encoded))
	if err := e.window.Shift(n); err != nil {
		return 0, fmt.Errorf("engine: codec: emit: %w", err)
	}
	return gain, nil
}

// emitResidual appends n raw bytes (no operator) and advances the window
// past them. A raw byte that collides with a reserved opcode value is
// wrapped in a single-repetition run, so the decoder can never mistake a
// residual byte for the start of an operator.
func (e *CodecEngine) emitResidual(n int) error {
	for _, b := range e.window.Bytes()[:n] {
		if codec.IsOpcode(b) {
			e.encoded = append(e.encoded, byte(codec.OpRLE), b, 1)
			continue
		}
		e.encoded = append(e.encoded, b)
	}
	return e.window.Shift(n)
}

// exploit tries to apply the engine's best already-known structure,
// a live dictionary word, at the window's head.
func (e *CodecEngine) exploit() (float64, error) {
	if e.dict.Len() == 0 {
		return 0, nil
	}
	if e.ahoStale {
		if err := e.rebuildAho(); err != nil {
			return 0, err
		}
	}
	if e.aho == nil {
		return 0, nil
	}

	match := e.aho.Find(e.window.Bytes(), 0)
	if match == nil || match.Start != 0 {
		return 0, nil
	}

	wordID, ok := e.wordIDForBytes(e.window.Bytes()[match.Start:match.End])
	if !ok {
		return 0, nil
	}

	matchLen := match.End - match.Start
	op := codec.Operator{Kind: codec.KindDictionary, WordID: wordID}
	if float64(matchLen-op.EncodedLen()) <= e.cfg.Codec.MinAcceptGain {
		return 0, nil
	}
	gain, err := e.emit(op, matchLen)
	if err != nil {
		return 0, err
	}

	if id, ok := e.dictBankID(wordID); ok {
		if p, ok := e.bank.Get(id); ok {
			p.RecordUse(gain)
		}
	}
	return gain, nil
}

// explore searches the window's head for a compressible structure the
// engine does not already exploit: a run, an arithmetic delta sequence,
// or a back-reference into already-seen bytes. When nothing matches, the
// head byte passes through as residual so the engine always makes
// forward progress.
func (e *CodecEngine) explore() (float64, error) {
	window := e.window.Bytes()
	if len(window) == 0 {
		return 0, nil
	}

	if gain, ok, err := e.tryRunLength(window); ok || err != nil {
		return gain, err
	}
	if gain, ok, err := e.tryDelta(window); ok || err != nil {
		return gain, err
	}
	if gain, ok, err := e.tryBackRef(window); ok || err != nil {
		return gain, err
	}

	if err := e.emitResidual(1); err != nil {
		return 0, err
	}
	return 0, nil
}

func (e *CodecEngine) tryRunLength(window []byte) (float64, bool, error) {
	run := simd.RunLength(window, 0, 255)
	if run < minRunLen {
		return 0, false, nil
	}
	op := codec.Operator{Kind: codec.KindRunLength, RunByte: window[0], RunCount: run}
	if float64(run-op.EncodedLen()) <= e.cfg.Codec.MinAcceptGain {
		return 0, false, nil
	}
	gain, err := e.emit(op, run)
	if err != nil {
		return 0, false, err
	}
	e.recordRunLengthUse(window[0], gain)
	return gain, true, nil
}

func (e *CodecEngine) recordRunLengthUse(b byte, gain float64) {
	id, ok := e.rleBankID[b]
	if !ok {
		newID, err := e.bank.AddOperator(codec.Operator{Kind: codec.KindRunLength, RunByte: b}, 0)
		if err != nil {
			return
		}
		e.rleBankID[b] = newID
		id = newID
	}
	if p, ok := e.bank.Get(id); ok {
		p.RecordUse(gain)
	}
}

func (e *CodecEngine) tryDelta(window []byte) (float64, bool, error) {
	if len(window) < minDeltaLen {
		return 0, false, nil
	}
	step := int8(window[1] - window[0])
	n := 1
	// The wire field for the run length is one byte, so a longer ramp is
	// emitted 255 bytes at a time; the next cycle picks up the remainder.
	for n < len(window)-1 && n+1 < 255 && byte(int(window[n])+int(step)) == window[n+1] {
		n++
	}
	length := n + 1
	if length < minDeltaLen {
		return 0, false, nil
	}
	op := codec.Operator{Kind: codec.KindDeltaSequence, DeltaLen: length, DeltaStart: window[0], DeltaStep: step}
	if float64(length-op.EncodedLen()) <= e.cfg.Codec.MinAcceptGain {
		return 0, false, nil
	}
	gain, err := e.emit(op, length)
	if err != nil {
		return 0, false, err
	}
	return gain, true, nil
}

// commonByteRank is the frequency rank above which an anchor byte is too
// common to be worth probing many candidate positions for.
const commonByteRank = 200

func (e *CodecEngine) tryBackRef(window []byte) (float64, bool, error) {
	history := e.history()
	if len(history) == 0 {
		return 0, false, nil
	}

	anchor := window[0]
	positions := simd.IndexAll(history, anchor)
	if len(positions) == 0 {
		return 0, false, nil
	}
	// The wire distance is a u16; anything further back is unreachable.
	if minPos := len(history) - 0xFFFF; minPos > 0 {
		positions = positions[sort.SearchInts(positions, minPos):]
		if len(positions) == 0 {
			return 0, false, nil
		}
	}
	limit := maxBackRefSearch
	if simd.ByteRank(anchor) >= commonByteRank {
		// A very common anchor (space, 'e', ...) produces many candidate
		// positions that mostly fail the full compare; probe fewer of them.
		limit = maxBackRefSearch / 4
	}
	if len(positions) > limit {
		positions = positions[len(positions)-limit:]
	}

	// Pre-filter candidates on the rarest byte of the match's prefix: a
	// position whose bytes disagree there can be rejected on one byte
	// instead of a full prefix compare.
	span := window
	if len(span) > 8 {
		span = span[:8]
	}
	rare := simd.SelectRareBytes(span)

	bestLen := 0
	bestDistance := 0
	for _, pos := range positions {
		distance := len(history) - pos
		if rare.Index1 > 0 && rare.Index1 < distance && pos+rare.Index1 < len(history) &&
			history[pos+rare.Index1] != rare.Byte1 {
			continue
		}
		matchLen := commonPrefixLen(history, pos, window, distance)
		if matchLen > bestLen {
			bestLen, bestDistance = matchLen, distance
		}
	}
	if bestLen < minBackRef {
		return 0, false, nil
	}

	op := codec.Operator{Kind: codec.KindBackRef, Distance: bestDistance, Length: bestLen}
	if float64(bestLen-op.EncodedLen()) <= e.cfg.Codec.MinAcceptGain {
		return 0, false, nil
	}
	gain, err := e.emit(op, bestLen)
	if err != nil {
		return 0, false, err
	}
	return gain, true, nil
}

// commonPrefixLen measures how far window matches the repeating source
// starting distance bytes back from history's end, allowing the match to
// run past the end of history into window itself (overlapping copies),
// the same semantics codec.Expand uses for KindBackRef.
func commonPrefixLen(history []byte, pos int, window []byte, distance int) int {
	n := 0
	for n < len(window) && n < 255 {
		var src byte
		if pos+n < len(history) {
			src = history[pos+n]
		} else {
			src = window[(pos+n)-len(history)]
		}
		if src != window[n] {
			break
		}
		n++
	}
	return n
}

// maxDictPromotionsPerRefresh bounds how many new words one refresh pass
// may install, keeping a single highly repetitive window from flooding
// the dictionary with overlapping variants of the same repeat.
const maxDictPromotionsPerRefresh = 4

// dictScanMaxLen is the longest repeated sequence the refresh scan will
// consider promoting. Long repeats save the most per reference, but the
// scan cost grows with every extra length counted, so the ceiling stays
// fixed rather than tracking the window size.
const dictScanMaxLen = 48

type dictCandidate struct {
	word string
	gain float64
}

// refreshDictionary scans the current window for repeated substrings and
// promotes the best of them into the dictionary: a word qualifies when
// its in-window frequency clears a length-dependent threshold
// (max(2, 64/len)) and its projected saving exceeds the accept gain.
// Longer words are scanned first and shorter words contained in an
// already-promoted one are skipped, so one long repeat does not also
// install all of its own fragments.
func (e *CodecEngine) refreshDictionary() {
	window := e.window.Bytes()
	if len(window) < e.cfg.DictionaryMinLen*2 {
		return
	}
	maxLen := dictScanMaxLen
	if maxLen > len(window)/2 {
		maxLen = len(window) / 2
	}

	var candidates []dictCandidate
	for l := maxLen; l >= e.cfg.DictionaryMinLen; l-- {
		threshold := 64 / l
		if threshold < 2 {
			threshold = 2
		}
		counts := make(map[string]int)
		for i := 0; i+l <= len(window); i++ {
			counts[string(window[i:i+l])]++
		}
		for word, count := range counts {
			if count < threshold {
				continue
			}
			gain := cost.EstimateDictionaryGain(l, count)
			if gain <= e.cfg.Codec.MinAcceptGain {
				continue
			}
			if _, exists := e.wordIDForBytes([]byte(word)); exists {
				continue
			}
			candidates = append(candidates, dictCandidate{word: word, gain: gain})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].gain != candidates[j].gain {
			return candidates[i].gain > candidates[j].gain
		}
		return candidates[i].word < candidates[j].word
	})

	promoted := 0
	var kept []string
	for _, c := range candidates {
		if promoted >= maxDictPromotionsPerRefresh {
			break
		}
		contained := false
		for _, k := range kept {
			if strings.Contains(k, c.word) {
				contained = true
				break
			}
		}
		if contained {
			continue
		}
		if e.promoteDictionary(c.word) {
			kept = append(kept, c.word)
			promoted++
		}
	}
}

func (e *CodecEngine) promoteDictionary(word string) bool {
	wordID, err := e.dict.Add([]byte(word))
	if err != nil {
		return false
	}
	id, err := e.bank.AddOperator(codec.Operator{Kind: codec.KindDictionary, WordID: wordID}, len(word))
	if err == pattern.ErrCapacityReached && e.forgetIfNeeded() {
		id, err = e.bank.AddOperator(codec.Operator{Kind: codec.KindDictionary, WordID: wordID}, len(word))
	}
	if err != nil {
		e.dict.Remove(wordID)
		return false
	}
	e.dictIDs[wordID] = id
	e.ahoStale = true
	return true
}

// forgetIfNeeded frees one bank slot by evicting the lowest-scoring
// pattern, so a promotion with fresh evidence behind it can displace a
// stale one when the bank is full. A dictionary pattern that has been
// used on the wire is never displaced, since its word must stay
// resolvable for already-emitted references.
func (e *CodecEngine) forgetIfNeeded() bool {
	id, ok := e.bank.GetLowestScore()
	if !ok {
		return false
	}
	p, _ := e.bank.Get(id)
	if p.Kind == pattern.KindOperator {
		switch p.Op.Kind {
		case codec.KindDictionary:
			if p.UsageCount() > 0 {
				return false
			}
			e.dict.Remove(p.Op.WordID)
			delete(e.dictIDs, p.Op.WordID)
			e.ahoStale = true
		case codec.KindRunLength:
			delete(e.rleBankID, p.Op.RunByte)
		}
	}
	return e.bank.Remove(id) == nil
}

func (e *CodecEngine) dictBankID(wordID uint16) (pattern.ID, bool) {
	id, ok := e.dictIDs[wordID]
	return id, ok
}

func (e *CodecEngine) wordIDForBytes(word []byte) (uint16, bool) {
	for id, w := range e.dict.Words() {
		if string(w) == string(word) {
			return id, true
		}
	}
	return 0, false
}

func (e *CodecEngine) rebuildAho() error {
	if e.dict.Len() == 0 {
		e.aho = nil
		e.ahoStale = false
		return nil
	}
	b := ahocorasick.NewBuilder()
	for _, w := range e.dict.Words() {
		b.AddPattern(w)
	}
	automaton, err := b.Build()
	if err != nil {
		return fmt.Errorf("engine: codec: rebuild aho-corasick: %w", err)
	}
	e.aho = automaton
	e.ahoStale = false
	return nil
}

// shiftWindow gives up on the current window, flushing its remaining
// bytes through as residual literals so the round-trip invariant holds,
// then moves on to fresh territory.
func (e *CodecEngine) shiftWindow() error {
	n := e.window.Len()
	if n == 0 {
		return nil
	}
	return e.emitResidual(n)
}

// metaLearn generalizes the bank's concrete run-length patterns into a
// single GeneralizedRunLength meta-pattern once their average score
// clears a threshold, giving the scheduler a standing signal that "some
// byte repeated" is a reliably profitable shape without waiting to see
// every individual byte value.
func (e *CodecEngine) metaLearn() (float64, error) {
	if e.generalized != pattern.InvalidID {
		return 0, nil
	}
	if len(e.rleBankID) < 2 {
		return 0, nil
	}

	var total float64
	for _, id := range e.rleBankID {
		if p, ok := e.bank.Get(id); ok {
			total += p.Score()
		}
	}
	avg := total / float64(len(e.rleBankID))
	if avg <= e.cfg.Codec.MinAcceptGain {
		return 0, nil
	}

	id, err := e.bank.AddOperator(codec.Operator{Kind: codec.KindGeneralizedRunLength}, 0)
	if err != nil {
		return 0, nil
	}
	e.generalized = id
	return 0, nil
}

// repack re-runs the explore step several times within a single action,
// catching consecutive compressible regions a single-pass-per-cycle
// explore would otherwise need many cycles to find.
func (e *CodecEngine) repack() (float64, error) {
	const maxPasses = 10
	var total float64
	for i := 0; i < maxPasses && e.window.Len() > 0; i++ {
		gain, err := e.explore()
		if err != nil {
			return total, err
		}
		total += gain
		if gain <= 0 {
			break
		}
	}
	return total, nil
}

// prune evicts idle, low-value operator patterns from the bank. Dictionary
// patterns are only pruned if they were never actually used on the wire,
// since a used dictionary word may still be referenced by already-emitted
// OP_DICT bytes and removing it from the live dictionary would dangle
// that reference.
func (e *CodecEngine) prune() {
	var toRemove []pattern.ID
	e.bank.Each(func(p *pattern.Pattern) {
		if p.Kind != pattern.KindOperator {
			return
		}
		if p.IdleCycles() < e.cfg.StalePruneIdleCycles {
			return
		}
		stale := p.RecentGain() < e.cfg.StalePruneMinGain || p.UsageCount() == 0
		if !stale {
			return
		}
		if p.Op.Kind == codec.KindDictionary && p.UsageCount() > 0 {
			return
		}
		toRemove = append(toRemove, p.ID)
	})

	for _, id := range toRemove {
		p, ok := e.bank.Get(id)
		if !ok {
			continue
		}
		if p.Op.Kind == codec.KindDictionary {
			e.dict.Remove(p.Op.WordID)
			delete(e.dictIDs, p.Op.WordID)
			e.ahoStale = true
		}
		if p.Op.Kind == codec.KindRunLength {
			delete(e.rleBankID, p.Op.RunByte)
		}
		_ = e.bank.Remove(id)
	}
}
