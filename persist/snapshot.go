// Package persist implements the on-disk serialization of one engine
// instance's state: the pattern bank's composite records, the live
// dictionary, and the byte source's bookmark. The format is a small
// binary snapshot, written and replaced atomically so a crash mid-write
// can never leave a truncated file behind.
package persist

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/natefinch/atomic"

	"github.com/tompula86/petridish/codec"
	"github.com/tompula86/petridish/pattern"
)

// Sentinel errors returned by Load.
var (
	// ErrDanglingDictionaryRef is returned when a restored Dictionary
	// pattern's word id has no backing dictionary entry. The dictionary
	// is persisted alongside the bank, and Load refuses a snapshot that
	// would otherwise retain a pattern with nothing to expand into,
	// rather than silently dropping it.
	ErrDanglingDictionaryRef = errors.New("persist: dictionary pattern references a missing word id")
	// ErrBadMagic is returned when a file does not start with the
	// snapshot format's magic bytes.
	ErrBadMagic = errors.New("persist: not a petridish snapshot")
	// ErrVersionMismatch is returned when a file's format version is not
	// one this build understands.
	ErrVersionMismatch = errors.New("persist: unsupported snapshot version")
)

// CorruptionError reports where in a snapshot file parsing failed,
// carrying the original decode error for Unwrap.
type CorruptionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("persist: %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// Bookmark records a byte source's read position: which file of a
// multi-file source is current, the offset within it, and the total
// bytes fed across all files.
type Bookmark struct {
	FileIndex uint32
	FilePos   uint64
	TotalFed  uint64
}

// Snapshot is the full serializable state of one engine instance.
type Snapshot struct {
	NextID     pattern.ID
	Patterns   []pattern.CompositeRecord
	Dictionary map[uint16][]byte
	NextWordID uint16
	Bookmark   Bookmark
}

const (
	snapshotMagic   = "PTBK"
	snapshotVersion = uint16(1)
)

// Save serializes snap and atomically replaces path's contents with it: the
// new snapshot is written to a temp file in the same directory and renamed
// into place, so a crash mid-write can never leave a half-written or
// truncated snapshot for a later Load to trip over.
func Save(path string, snap Snapshot) error {
	buf, err := encode(snap)
	if err != nil {
		return fmt.Errorf("persist: save %s: %w", path, err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(buf)); err != nil {
		return fmt.Errorf("persist: save %s: %w", path, err)
	}
	return nil
}

// Load reads and parses a snapshot previously written by Save.
func Load(path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persist: load %s: %w", path, err)
	}

	snap, err := decode(raw)
	if err != nil {
		return Snapshot{}, &CorruptionError{Path: path, Reason: "malformed snapshot", Err: err}
	}

	for _, p := range snap.Patterns {
		if p.Kind != pattern.KindOperator || p.Op.Kind != codec.KindDictionary {
			continue
		}
		if _, ok := snap.Dictionary[p.Op.WordID]; !ok {
			return Snapshot{}, fmt.Errorf("%w: word id %d referenced by pattern %d", ErrDanglingDictionaryRef, p.Op.WordID, p.ID)
		}
	}

	return snap, nil
}

// encode serializes snap into the binary snapshot format: a small fixed
// header (magic, version, next ids, bookmark, record/word counts) followed
// by the pattern records and dictionary entries themselves.
func encode(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	if err := binary.Write(&buf, binary.LittleEndian, snapshotVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(snap.NextID)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, snap.Bookmark.FileIndex); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, snap.Bookmark.FilePos); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, snap.Bookmark.TotalFed); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(snap.Patterns))); err != nil {
		return nil, err
	}
	for _, p := range snap.Patterns {
		if err := writeRecord(&buf, p); err != nil {
			return nil, err
		}
	}

	if err := binary.Write(&buf, binary.LittleEndian, snap.NextWordID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(snap.Dictionary))); err != nil {
		return nil, err
	}
	for id, word := range snap.Dictionary {
		if err := binary.Write(&buf, binary.LittleEndian, id); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(word))); err != nil {
			return nil, err
		}
		buf.Write(word)
	}

	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, p pattern.CompositeRecord) error {
	fields := []any{
		uint32(p.ID),
		uint8(p.Kind),
		uint32(p.Left),
		uint32(p.Right),
		p.Complexity,
		uint32(p.Length),
		p.Strength,
		p.RecentGain,
		p.UsageCount,
		p.IdleCycles,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	return writeOperator(buf, p.Op)
}

func writeOperator(buf *bytes.Buffer, op codec.Operator) error {
	if err := binary.Write(buf, binary.LittleEndian, uint8(op.Kind)); err != nil {
		return err
	}
	fields := []any{
		op.RunByte,
		uint32(op.RunCount),
		uint32(op.Distance),
		uint32(op.Length),
		uint32(op.DeltaLen),
		op.DeltaStart,
		op.DeltaStep,
		uint32(op.XorLen),
		op.XorBase,
		op.WordID,
		op.RuleID,
	}
	for _, f := range fields {
		if err := binary.Write(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(op.XorKey))); err != nil {
		return err
	}
	buf.Write(op.XorKey)
	return nil
}

// decode parses raw into a Snapshot. It does not validate cross-references
// (dangling dictionary ids, missing Combine children); Load and
// pattern.Bank.Restore perform those checks respectively so decode itself
// stays a pure format-layer operation.
func decode(raw []byte) (Snapshot, error) {
	r := bytes.NewReader(raw)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrBadMagic, err)
	}
	if string(magic) != snapshotMagic {
		return Snapshot{}, ErrBadMagic
	}

	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return Snapshot{}, fmt.Errorf("reading version: %w", err)
	}
	if version != snapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, version, snapshotVersion)
	}

	var snap Snapshot
	var nextID uint32
	if err := binary.Read(r, binary.LittleEndian, &nextID); err != nil {
		return Snapshot{}, fmt.Errorf("reading next pattern id: %w", err)
	}
	snap.NextID = pattern.ID(nextID)

	if err := binary.Read(r, binary.LittleEndian, &snap.Bookmark.FileIndex); err != nil {
		return Snapshot{}, fmt.Errorf("reading bookmark file index: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &snap.Bookmark.FilePos); err != nil {
		return Snapshot{}, fmt.Errorf("reading bookmark file pos: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &snap.Bookmark.TotalFed); err != nil {
		return Snapshot{}, fmt.Errorf("reading bookmark total fed: %w", err)
	}

	var recordCount uint32
	if err := binary.Read(r, binary.LittleEndian, &recordCount); err != nil {
		return Snapshot{}, fmt.Errorf("reading pattern count: %w", err)
	}
	snap.Patterns = make([]pattern.CompositeRecord, recordCount)
	for i := range snap.Patterns {
		rec, err := readRecord(r)
		if err != nil {
			return Snapshot{}, fmt.Errorf("reading pattern %d: %w", i, err)
		}
		snap.Patterns[i] = rec
	}

	if err := binary.Read(r, binary.LittleEndian, &snap.NextWordID); err != nil {
		return Snapshot{}, fmt.Errorf("reading next word id: %w", err)
	}
	var wordCount uint32
	if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
		return Snapshot{}, fmt.Errorf("reading dictionary count: %w", err)
	}
	snap.Dictionary = make(map[uint16][]byte, wordCount)
	for i := uint32(0); i < wordCount; i++ {
		var id uint16
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return Snapshot{}, fmt.Errorf("reading dictionary word %d id: %w", i, err)
		}
		var wlen uint32
		if err := binary.Read(r, binary.LittleEndian, &wlen); err != nil {
			return Snapshot{}, fmt.Errorf("reading dictionary word %d length: %w", i, err)
		}
		word := make([]byte, wlen)
		if _, err := io.ReadFull(r, word); err != nil {
			return Snapshot{}, fmt.Errorf("reading dictionary word %d bytes: %w", i, err)
		}
		snap.Dictionary[id] = word
	}

	return snap, nil
}

func readRecord(r *bytes.Reader) (pattern.CompositeRecord, error) {
	var rec pattern.CompositeRecord
	var id, left, right, length uint32
	var kind uint8

	for _, f := range []any{&id, &kind, &left, &right, &rec.Complexity, &length,
		&rec.Strength, &rec.RecentGain, &rec.UsageCount, &rec.IdleCycles} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return rec, err
		}
	}
	rec.ID = pattern.ID(id)
	rec.Kind = pattern.Kind(kind)
	rec.Left = pattern.ID(left)
	rec.Right = pattern.ID(right)
	rec.Length = int(length)

	op, err := readOperator(r)
	if err != nil {
		return rec, err
	}
	rec.Op = op
	return rec, nil
}

func readOperator(r *bytes.Reader) (codec.Operator, error) {
	var op codec.Operator
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return op, err
	}
	op.Kind = codec.Kind(kind)

	var runCount, distance, length, deltaLen, xorLen uint32
	for _, f := range []any{
		&op.RunByte, &runCount, &distance, &length, &deltaLen,
		&op.DeltaStart, &op.DeltaStep, &xorLen, &op.XorBase, &op.WordID, &op.RuleID,
	} {
		if err := binary.Read(r, binary.LittleEndian, f); err != nil {
			return op, err
		}
	}
	op.RunCount = int(runCount)
	op.Distance = int(distance)
	op.Length = int(length)
	op.DeltaLen = int(deltaLen)
	op.XorLen = int(xorLen)

	var keyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &keyLen); err != nil {
		return op, err
	}
	if keyLen > 0 {
		key := make([]byte, keyLen)
		if _, err := io.ReadFull(r, key); err != nil {
			return op, err
		}
		op.XorKey = key
	}

	return op, nil
}
