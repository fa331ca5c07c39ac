package pattern

import (
	"errors"
	"fmt"
	"sort"

	"github.com/tompula86/petridish/codec"
)

// Sentinel errors returned by Bank operations.
var (
	// ErrNotFound is returned when an ID does not name a live pattern.
	ErrNotFound = errors.New("pattern: id not found")
	// ErrLiteralImmutable is returned when Remove is called on a literal,
	// which always exists for the lifetime of the bank.
	ErrLiteralImmutable = errors.New("pattern: literal patterns cannot be removed")
	// ErrCapacityReached is returned by CreateCombine and AddOperator when
	// the bank already holds its capacity of composites. The bank does not
	// evict to make room; freeing a slot is left to the caller.
	ErrCapacityReached = errors.New("pattern: bank at capacity")
	// ErrUnsupportedDecode is returned by Decode for operator-kind
	// patterns, whose expansion depends on window history and a
	// dictionary that only the codec engine's stream owns.
	ErrUnsupportedDecode = errors.New("pattern: operator patterns cannot be decoded directly by the bank")
)

type pairKey struct {
	left, right ID
}

// Bank is the content-addressed store of every pattern the engine has
// learned. The 256 literal bytes always exist and are never evicted;
// Combine pairs are idempotently keyed so that repeated exploration of the
// same pair returns the existing entry instead of allocating a duplicate.
type Bank struct {
	patterns map[ID]*Pattern
	literals [256]ID
	pairs    map[pairKey]ID
	nextID   ID
	capacity int
}

// NewBank creates a bank pre-populated with all 256 literal byte patterns
// and a capacity bound on the number of composite patterns it will hold.
func NewBank(capacity int) *Bank {
	b := &Bank{
		patterns: make(map[ID]*Pattern),
		pairs:    make(map[pairKey]ID),
		capacity: capacity,
	}
	for i := 0; i < 256; i++ {
		id := b.allocID()
		b.literals[i] = id
		b.patterns[id] = &Pattern{ID: id, Kind: KindLiteral, Byte: byte(i), length: 1, strength: 1}
	}
	return b
}

func (b *Bank) allocID() ID {
	id := b.nextID
	b.nextID++
	return id
}

// LiteralID returns the stable id of the literal pattern for byte b.
func (b *Bank) LiteralID(raw byte) ID {
	return b.literals[raw]
}

// Get returns the pattern named by id.
func (b *Bank) Get(id ID) (*Pattern, bool) {
	p, ok := b.patterns[id]
	return p, ok
}

// CompositeCount returns the number of non-literal patterns currently in
// the bank.
func (b *Bank) CompositeCount() int {
	return len(b.patterns) - 256
}

// Len returns the total number of live patterns, literals included.
func (b *Bank) Len() int {
	return len(b.patterns)
}

// CreateCombine returns the id of the pattern Combine(left, right),
// creating it if it does not already exist. The second return value is
// true when an existing pattern was reused. Both left and right must
// already be live in the bank; this, together with monotone id
// allocation, guarantees the composite graph stays acyclic by
// construction; a Combine can only reference patterns created earlier,
// so a new node can never be its own ancestor.
func (b *Bank) CreateCombine(left, right ID) (ID, bool, error) {
	lp, ok := b.Get(left)
	if !ok {
		return InvalidID, false, fmt.Errorf("%w: left=%d", ErrNotFound, left)
	}
	rp, ok := b.Get(right)
	if !ok {
		return InvalidID, false, fmt.Errorf("%w: right=%d", ErrNotFound, right)
	}

	key := pairKey{left, right}
	if id, ok := b.pairs[key]; ok {
		return id, true, nil
	}

	if b.capacity > 0 && b.CompositeCount() >= b.capacity {
		return InvalidID, false, ErrCapacityReached
	}

	id := b.allocID()
	p := &Pattern{
		ID:         id,
		Kind:       KindCombine,
		Left:       left,
		Right:      right,
		length:     lp.length + rp.length,
		complexity: combineComplexity(lp.complexity, rp.complexity),
		strength:   newbornStrength,
	}
	b.patterns[id] = p
	b.pairs[key] = id
	lp.refCount++
	rp.refCount++
	return id, false, nil
}

// combineComplexity returns a Combine's complexity given its children's:
// strictly greater than both, saturating at 255 rather than overflowing.
func combineComplexity(left, right uint8) uint8 {
	m := left
	if right > m {
		m = right
	}
	if m == 255 {
		return 255
	}
	return m + 1
}

// HasPair reports whether a Combine for (left, right) already exists.
func (b *Bank) HasPair(left, right ID) bool {
	_, ok := b.pairs[pairKey{left, right}]
	return ok
}

// GetPairID returns the id of the Combine for (left, right) and whether
// one exists.
func (b *Bank) GetPairID(left, right ID) (ID, bool) {
	id, ok := b.pairs[pairKey{left, right}]
	return id, ok
}

// AddOperator inserts a standalone codec operator pattern (used by the
// codec engine for dictionary mirrors and accepted patches) and
// returns its id. expandedLen is the number of raw bytes the operator
// decodes to, supplied by the caller since computing it here would require
// threading a dictionary and window history through the bank.
func (b *Bank) AddOperator(op codec.Operator, expandedLen int) (ID, error) {
	if b.capacity > 0 && b.CompositeCount() >= b.capacity {
		return InvalidID, ErrCapacityReached
	}
	id := b.allocID()
	p := &Pattern{ID: id, Kind: KindOperator, Op: op, length: expandedLen}
	b.patterns[id] = p
	return id, nil
}

// Remove retires id from the bank. Literals cannot be removed. Removing a
// Combine also drops its pair-index entry so that a future CreateCombine
// for the same (left, right) allocates a fresh id rather than resurrecting
// the retired one; ids are never reused.
func (b *Bank) Remove(id ID) error {
	p, ok := b.patterns[id]
	if !ok {
		return fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	if p.Kind == KindLiteral {
		return ErrLiteralImmutable
	}
	if p.Kind == KindCombine {
		delete(b.pairs, pairKey{p.Left, p.Right})
		if lp, ok := b.patterns[p.Left]; ok {
			lp.refCount--
		}
		if rp, ok := b.patterns[p.Right]; ok {
			rp.refCount--
		}
	}
	delete(b.patterns, id)
	return nil
}

// PatternLength returns the number of raw bytes id expands to.
func (b *Bank) PatternLength(id ID) (int, error) {
	p, ok := b.patterns[id]
	if !ok {
		return 0, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return p.length, nil
}

// Decode expands id into its raw bytes. Traversal is iterative, using an
// explicit stack rather than recursion, so decode time is linear in output
// size regardless of the composite's depth and can never overflow the
// call stack on a deeply nested pattern.
func (b *Bank) Decode(id ID) ([]byte, error) {
	root, ok := b.patterns[id]
	if !ok {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}

	out := make([]byte, 0, root.length)
	stack := make([]ID, 0, 64)
	stack = append(stack, id)

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		p, ok := b.patterns[cur]
		if !ok {
			return nil, fmt.Errorf("%w: id=%d", ErrNotFound, cur)
		}

		switch p.Kind {
		case KindLiteral:
			out = append(out, p.Byte)
		case KindCombine:
			// Push Right first so Left is popped and processed first,
			// preserving left-to-right output order.
			stack = append(stack, p.Right, p.Left)
		case KindOperator:
			return nil, ErrUnsupportedDecode
		}
	}

	return out, nil
}

// GetWeakest returns the id of the composite pattern with the lowest
// strength, used by the hierarchical engine's forget step. Literals
// and patterns other composites still build on are never candidates.
// Returns false if the bank holds no evictable composites.
func (b *Bank) GetWeakest() (ID, bool) {
	var best ID
	found := false
	bestStrength := 0.0
	for id, p := range b.patterns {
		if p.Kind == KindLiteral || p.refCount > 0 {
			continue
		}
		if !found || p.strength < bestStrength {
			best, bestStrength, found = id, p.strength, true
		}
	}
	return best, found
}

// GetLowestScore returns the id of the composite pattern with the lowest
// combined Score (strength plus recent gain), used by the codec
// engine's capacity eviction to free a slot for a dictionary promotion
// when the bank is full.
func (b *Bank) GetLowestScore() (ID, bool) {
	var best ID
	found := false
	bestScore := 0.0
	for id, p := range b.patterns {
		if p.Kind == KindLiteral || p.refCount > 0 {
			continue
		}
		if !found || p.Score() < bestScore {
			best, bestScore, found = id, p.Score(), true
		}
	}
	return best, found
}

// Each calls f for every live pattern in the bank. Iteration order is
// unspecified.
func (b *Bank) Each(f func(*Pattern)) {
	for _, p := range b.patterns {
		f(p)
	}
}

// NextID returns the id the bank's next allocation would use, for
// persistence round-tripping.
func (b *Bank) NextID() ID {
	return b.nextID
}

// GetWeakestN returns up to n evictable composite ids ordered by ascending
// strength (weakest first), the form the forget step's bulk eviction sweep
// consumes. A pattern another live composite builds on is not evictable
// and is excluded. Ties are broken by ascending id so the result is
// deterministic given the bank's current contents.
func (b *Bank) GetWeakestN(n int) []ID {
	if n <= 0 {
		return nil
	}
	ids := make([]ID, 0, b.CompositeCount())
	for id, p := range b.patterns {
		if p.Kind == KindLiteral || p.refCount > 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := b.patterns[ids[i]], b.patterns[ids[j]]
		if pi.strength != pj.strength {
			return pi.strength < pj.strength
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// CompositeRecord is the serializable form of one non-literal pattern.
// Package persist uses it to snapshot and restore bank state across
// process restarts.
type CompositeRecord struct {
	ID         ID
	Kind       Kind // KindCombine or KindOperator
	Left       ID   // meaningful only for KindCombine
	Right      ID   // meaningful only for KindCombine
	Op         codec.Operator
	Complexity uint8
	Length     int
	Strength   float64
	RecentGain float64
	UsageCount uint64
	IdleCycles uint64
}

// Export returns every composite pattern currently in the bank, in
// ascending id order, plus the id the bank's next allocation would use.
// Ascending order guarantees that when the records are fed back through
// Restore, a Combine's children are always already present by the time
// the Combine itself is restored.
func (b *Bank) Export() ([]CompositeRecord, ID) {
	ids := make([]ID, 0, b.CompositeCount())
	for id, p := range b.patterns {
		if p.Kind != KindLiteral {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	recs := make([]CompositeRecord, len(ids))
	for i, id := range ids {
		p := b.patterns[id]
		recs[i] = CompositeRecord{
			ID:         p.ID,
			Kind:       p.Kind,
			Left:       p.Left,
			Right:      p.Right,
			Op:         p.Op,
			Complexity: p.complexity,
			Length:     p.length,
			Strength:   p.strength,
			RecentGain: p.recentGain,
			UsageCount: p.usageCount,
			IdleCycles: p.idleCycles,
		}
	}
	return recs, b.nextID
}

// Restore rebuilds composite patterns from records previously produced by
// Export, the inverse operation used when a persisted snapshot is loaded. records
// must be in ascending id order (Export's own order) so that a Combine's
// children are always already live when it is restored; Restore returns
// an error rather than silently dropping a record whose children are
// missing.
func (b *Bank) Restore(records []CompositeRecord, nextID ID) error {
	for _, r := range records {
		if r.Kind == KindCombine {
			if _, ok := b.patterns[r.Left]; !ok {
				return fmt.Errorf("pattern: restore: pattern %d references unknown left id %d", r.ID, r.Left)
			}
			if _, ok := b.patterns[r.Right]; !ok {
				return fmt.Errorf("pattern: restore: pattern %d references unknown right id %d", r.ID, r.Right)
			}
		}
		p := &Pattern{
			ID:         r.ID,
			Kind:       r.Kind,
			Left:       r.Left,
			Right:      r.Right,
			Op:         r.Op,
			complexity: r.Complexity,
			length:     r.Length,
			strength:   r.Strength,
			recentGain: r.RecentGain,
			usageCount: r.UsageCount,
			idleCycles: r.IdleCycles,
		}
		b.patterns[r.ID] = p
		if r.Kind == KindCombine {
			b.pairs[pairKey{r.Left, r.Right}] = r.ID
			b.patterns[r.Left].refCount++
			b.patterns[r.Right].refCount++
		}
	}
	if nextID > b.nextID {
		b.nextID = nextID
	}
	return nil
}
