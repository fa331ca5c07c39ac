package engine

import (
	"bytes"
	"io"
	"testing"
)

// sliceSource is a ByteSource over an in-memory byte slice.
type sliceSource struct {
	data []byte
	pos  int
}

func (s *sliceSource) Read(buf []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(buf, s.data[s.pos:])
	s.pos += n
	if s.pos >= len(s.data) {
		return n, io.EOF
	}
	return n, nil
}

func newTestHierarchicalHost(t *testing.T, data []byte) (*Host, *HierarchicalEngine) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ForgetCheckInterval = 1000
	e, err := NewHierarchicalEngine(nil, cfg)
	if err != nil {
		t.Fatalf("NewHierarchicalEngine: %v", err)
	}
	hcfg := DefaultHostConfig()
	hcfg.FeedRate = len(data)
	host, err := NewHost(e, hcfg)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	return host, e
}

func TestHost_InvalidConfig(t *testing.T) {
	e, _ := NewHierarchicalEngine([]byte("a"), DefaultConfig())
	cfg := DefaultHostConfig()
	cfg.BoredomThreshold = 0.1
	cfg.CuriosityThreshold = 0.9
	if _, err := NewHost(e, cfg); err == nil {
		t.Error("NewHost should reject BoredomThreshold <= CuriosityThreshold")
	}
}

func TestHost_Familiarity_EmptyStreamIsZero(t *testing.T) {
	host, _ := newTestHierarchicalHost(t, []byte("abab"))
	if f := host.Familiarity(); f != 0 {
		t.Errorf("Familiarity() on empty stream = %f, want 0", f)
	}
}

func TestHost_Familiarity_AllLiteralsIsZero(t *testing.T) {
	host, e := newTestHierarchicalHost(t, []byte("abcdef"))
	e.Feed([]byte("abcdef"))
	if f := host.Familiarity(); f != 0 {
		t.Errorf("Familiarity() over all-literal stream = %f, want 0", f)
	}
}

func TestHost_Step_FeedsAndRunsCycle(t *testing.T) {
	data := []byte("abababababababababab")
	host, e := newTestHierarchicalHost(t, data)
	src := &sliceSource{data: data}

	for i := 0; i < 40 && !host.Done(); i++ {
		if _, err := host.Step(src); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
	}

	out, err := e.Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("Decode = %q, want %q", out, data)
	}
	if host.CyclesRun() == 0 {
		t.Error("expected at least one cycle to have run")
	}
}

func TestHost_Done_RequiresEOFAndStagnation(t *testing.T) {
	host, _ := newTestHierarchicalHost(t, []byte("a"))
	if host.Done() {
		t.Error("Done should be false before any Step")
	}
	src := &sliceSource{data: []byte("a")}
	for i := 0; i < host.cfg.MaxStagnantCycles+5; i++ {
		if _, err := host.Step(src); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if !host.Done() {
		t.Error("Done should be true once input is exhausted and the stream stops changing")
	}
}

func TestHost_AdaptFeedRate_BoredDoublesRate(t *testing.T) {
	// A long, highly repetitive stream collapses down to mostly composite
	// tokens after enough cycles, which should read as "bored" and grow
	// the feed rate.
	e, err := NewHierarchicalEngine(repeatAB(400), DefaultConfig())
	if err != nil {
		t.Fatalf("NewHierarchicalEngine: %v", err)
	}
	cfg := DefaultHostConfig()
	cfg.FeedRate = 64
	host, err := NewHost(e, cfg)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	for i := 0; i < 200; i++ {
		if _, err := e.Cycle(); err != nil {
			t.Fatalf("Cycle %d: %v", i, err)
		}
	}

	host.adaptFeedRate()
	if host.Band() == BandBored && host.FeedRate() <= cfg.FeedRate {
		t.Errorf("FeedRate() = %d after bored adaptation, want > %d", host.FeedRate(), cfg.FeedRate)
	}
}

func TestHost_AdaptFeedRate_CuriousHalvesRate(t *testing.T) {
	e, err := NewHierarchicalEngine([]byte("the quick brown fox jumps"), DefaultConfig())
	if err != nil {
		t.Fatalf("NewHierarchicalEngine: %v", err)
	}
	cfg := DefaultHostConfig()
	cfg.FeedRate = 64
	host, err := NewHost(e, cfg)
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}

	// An all-literal stream never clears the curiosity threshold's floor
	// of zero composites, so it reads as curious.
	host.adaptFeedRate()
	if host.Band() == BandCurious && host.FeedRate() >= cfg.FeedRate {
		t.Errorf("FeedRate() = %d after curious adaptation, want < %d", host.FeedRate(), cfg.FeedRate)
	}
}

func repeatAB(n int) []byte {
	out := make([]byte, 0, n*2)
	for i := 0; i < n; i++ {
		out = append(out, 'a', 'b')
	}
	return out
}
