package scheduler

import "testing"

// scriptedRand returns a fixed sequence of Float64 values, cycling once
// exhausted, so tests can drive Decide down a specific branch
// deterministically instead of depending on math/rand's output.
type scriptedRand struct {
	values []float64
	idx    int
}

func (s *scriptedRand) Float64() float64 {
	v := s.values[s.idx%len(s.values)]
	s.idx++
	return v
}

func TestDefaultConfig_Validates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should validate: %v", err)
	}
}

func TestConfig_Validate_Rejections(t *testing.T) {
	base := DefaultConfig()

	bad := base
	bad.QuotaPerCycle = 0
	if err := bad.Validate(); err == nil {
		t.Error("QuotaPerCycle=0 should fail validation")
	}

	bad = base
	bad.ExploreFloor = 1.5
	if err := bad.Validate(); err == nil {
		t.Error("ExploreFloor>1 should fail validation")
	}

	bad = base
	bad.StagnationCycles = 0
	if err := bad.Validate(); err == nil {
		t.Error("StagnationCycles=0 should fail validation")
	}
}

func TestDecide_RepackOnBufferPressure(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	if got := s.Decide(0.95); got != ActionRepack {
		t.Errorf("Decide(0.95) = %v, want ActionRepack", got)
	}
}

func TestDecide_RepackOnInterval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepackInterval = 3
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	s.Decide(0)
	s.Decide(0)
	if got := s.Decide(0); got != ActionRepack {
		t.Errorf("third Decide = %v, want ActionRepack at interval", got)
	}
}

func TestDecide_ShiftWindowOnStagnation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepackInterval = 0
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	for i := 0; i < cfg.StagnationCycles; i++ {
		s.RecordOutcome(ActionExploit, 0, 1)
	}
	if got := s.Decide(0); got != ActionShiftWindow {
		t.Errorf("Decide after stagnation = %v, want ActionShiftWindow", got)
	}
}

func TestDecide_MetaLearnOnLowRoll(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepackInterval = 0
	cfg.MetaProbability = 0.5
	s := New(cfg, &scriptedRand{values: []float64{0.01}})
	if got := s.Decide(0); got != ActionMetaLearn {
		t.Errorf("Decide = %v, want ActionMetaLearn", got)
	}
}

func TestDecide_ExploitByDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepackInterval = 0
	cfg.MetaProbability = 0
	cfg.ExploreFloor = 0
	s := New(cfg, &scriptedRand{values: []float64{0.99, 0.99}})
	if got := s.Decide(0); got != ActionExploit {
		t.Errorf("Decide = %v, want ActionExploit", got)
	}
}

func TestDecide_ExploreFloorGuaranteesSomeExploration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RepackInterval = 0
	cfg.MetaProbability = 0
	cfg.ExploreFloor = 0.9
	s := New(cfg, &scriptedRand{values: []float64{0.99, 0.1}})
	if got := s.Decide(0); got != ActionExplore {
		t.Errorf("Decide = %v, want ActionExplore with a high explore floor", got)
	}
}

func TestRecordOutcome_ResetsStagnationOnGain(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	s.RecordOutcome(ActionExploit, 0, 1)
	s.RecordOutcome(ActionExploit, 0, 1)
	if s.StagnantCycles() != 2 {
		t.Fatalf("StagnantCycles() = %d, want 2", s.StagnantCycles())
	}
	s.RecordOutcome(ActionExploit, 5, 1)
	if s.StagnantCycles() != 0 {
		t.Errorf("StagnantCycles() = %d, want 0 after positive gain", s.StagnantCycles())
	}
}

func TestRecordOutcome_MetaActionsDoNotAffectStagnation(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	s.RecordOutcome(ActionExploit, 0, 1)
	s.RecordOutcome(ActionMetaLearn, 0, 0)
	s.RecordOutcome(ActionRepack, 0, 0)
	if s.StagnantCycles() != 1 {
		t.Errorf("StagnantCycles() = %d, want 1 (only Exploit counted)", s.StagnantCycles())
	}
}

func TestRecordOutcome_ShiftWindowClearsStagnation(t *testing.T) {
	cfg := DefaultConfig()
	s := New(cfg, &scriptedRand{values: []float64{0.99}})
	for i := 0; i < cfg.StagnationCycles; i++ {
		s.RecordOutcome(ActionExploit, 0, 1)
	}
	s.RecordOutcome(ActionShiftWindow, 0, 0)
	if s.StagnantCycles() != 0 {
		t.Errorf("StagnantCycles() = %d, want 0 after a shift", s.StagnantCycles())
	}
}

func TestNewDefaultRand_InRange(t *testing.T) {
	r := NewDefaultRand(1)
	for i := 0; i < 100; i++ {
		v := r.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %f, out of [0,1)", v)
		}
	}
}
