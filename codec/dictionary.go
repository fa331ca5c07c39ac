package codec

import "fmt"

// Dictionary is the live word_id -> bytes table backing OP_DICT references.
// Every live entry is mirrored as a KindDictionary pattern in the bank so
// that dictionary words participate in eviction, scoring, and decode the
// same way any other pattern does; Dictionary itself only owns the byte
// payload and the id allocation, mirroring how the bank owns ids for
// Combine patterns.
type Dictionary struct {
	words  map[uint16][]byte
	nextID uint16
}

// NewDictionary returns an empty dictionary.
func NewDictionary() *Dictionary {
	return &Dictionary{words: make(map[uint16][]byte)}
}

// Add registers word as a new dictionary entry and returns its id.
// Word ids are never reused, matching the bank's monotone id allocation.
func (d *Dictionary) Add(word []byte) (uint16, error) {
	if d.nextID == 0xFFFF && len(d.words) > 0 {
		return 0, fmt.Errorf("codec: dictionary exhausted word id space")
	}
	id := d.nextID
	buf := make([]byte, len(word))
	copy(buf, word)
	d.words[id] = buf
	d.nextID++
	return id, nil
}

// Get returns the bytes for id and whether it exists.
func (d *Dictionary) Get(id uint16) ([]byte, bool) {
	w, ok := d.words[id]
	return w, ok
}

// Remove deletes id from the dictionary. Removing a word does not reclaim
// its id.
func (d *Dictionary) Remove(id uint16) {
	delete(d.words, id)
}

// Len returns the number of live dictionary entries.
func (d *Dictionary) Len() int {
	return len(d.words)
}

// Words returns every live word keyed by id. The returned map must not be
// mutated by the caller.
func (d *Dictionary) Words() map[uint16][]byte {
	return d.words
}

// NextID returns the id that would be allocated by the next Add call,
// for persistence round-tripping.
func (d *Dictionary) NextID() uint16 {
	return d.nextID
}

// Restore repopulates the dictionary from a persisted snapshot, preserving
// the original ids and the next-allocation counter. It is the inverse of
// Words plus NextID.
func (d *Dictionary) Restore(words map[uint16][]byte, nextID uint16) {
	d.words = make(map[uint16][]byte, len(words))
	for id, w := range words {
		buf := make([]byte, len(w))
		copy(buf, w)
		d.words[id] = buf
	}
	d.nextID = nextID
}
