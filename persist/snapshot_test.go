package persist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tompula86/petridish/codec"
	"github.com/tompula86/petridish/pattern"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		NextID: 300,
		Patterns: []pattern.CompositeRecord{
			{
				ID: 256, Kind: pattern.KindCombine, Left: 97, Right: 98,
				Complexity: 1, Length: 2, Strength: 0.5, RecentGain: 0.1,
				UsageCount: 3, IdleCycles: 1,
			},
			{
				ID: 257, Kind: pattern.KindOperator,
				Op: codec.Operator{Kind: codec.KindXorMask, XorLen: 8, XorBase: 0x10, XorKey: []byte{1, 2, 3}},
				Length: 8, Strength: 0.2,
			},
			{
				ID: 258, Kind: pattern.KindOperator,
				Op: codec.Operator{Kind: codec.KindDictionary, WordID: 5},
				Length: 4,
			},
		},
		Dictionary: map[uint16][]byte{
			5: []byte("hello"),
		},
		NextWordID: 6,
		Bookmark:   Bookmark{FileIndex: 2, FilePos: 1024, TotalFed: 9999},
	}
}

func TestSaveLoad_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.ptbk")

	want := sampleSnapshot()
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load() round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_AtomicReplace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.ptbk")

	first := sampleSnapshot()
	if err := Save(path, first); err != nil {
		t.Fatalf("Save: %v", err)
	}

	second := sampleSnapshot()
	second.NextID = 301
	second.Bookmark.TotalFed = 123
	if err := Save(path, second); err != nil {
		t.Fatalf("Save (second): %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.NextID != 301 || got.Bookmark.TotalFed != 123 {
		t.Errorf("Load() after replace = %+v, want the second snapshot's contents", got)
	}
}

func TestLoad_RejectsDanglingDictionaryRef(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.ptbk")

	snap := Snapshot{
		NextID: 257,
		Patterns: []pattern.CompositeRecord{
			{ID: 256, Kind: pattern.KindOperator, Op: codec.Operator{Kind: codec.KindDictionary, WordID: 99}},
		},
		Dictionary: map[uint16][]byte{},
	}
	if err := Save(path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load should reject a Dictionary pattern whose word id has no backing entry")
	}
}

func TestLoad_BadMagic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ptbk")
	if err := os.WriteFile(path, []byte("not a snapshot"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load should reject a file without the snapshot magic")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.ptbk")); err == nil {
		t.Error("Load should fail for a missing file")
	}
}

func TestBankExportImportViaSnapshot(t *testing.T) {
	src := pattern.NewBank(0)
	a := src.LiteralID('a')
	b := src.LiteralID('b')
	ab, _, err := src.CreateCombine(a, b)
	if err != nil {
		t.Fatalf("CreateCombine: %v", err)
	}

	records, nextID := src.Export()
	snap := Snapshot{NextID: nextID, Patterns: records, Dictionary: map[uint16][]byte{}}

	dir := t.TempDir()
	path := filepath.Join(dir, "bank.ptbk")
	if err := Save(path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	dst := pattern.NewBank(0)
	if err := dst.Restore(loaded.Patterns, loaded.NextID); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	out, err := dst.Decode(ab)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if string(out) != "ab" {
		t.Errorf("Decode after snapshot round trip = %q, want %q", out, "ab")
	}
}
