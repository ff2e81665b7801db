package controlword

import "testing"

func TestDisabledWhenNotEnabled(t *testing.T) {
	// every combination of the five non-enable bits
	for rest := uint32(0); rest < 1<<5; rest++ {
		raw := rest << 1
		if m := Decode(raw).Mode(); m != Disabled {
			t.Fatalf("word %06b: expected disabled, got %s", raw, m)
		}
	}
}

func TestAutonomousBeatsTest(t *testing.T) {
	for _, raw := range []uint32{
		BitEnabled | BitAutonomous,
		BitEnabled | BitAutonomous | BitTest,
		BitEnabled | BitAutonomous | BitFMSAttached | BitDSAttached,
	} {
		if m := Decode(raw).Mode(); m != Autonomous {
			t.Fatalf("word %06b: expected autonomous, got %s", raw, m)
		}
	}
}

func TestModePriority(t *testing.T) {
	tests := []struct {
		raw  uint32
		want Mode
	}{
		{0, Disabled},
		{BitEnabled, Teleop},
		{BitEnabled | BitTest, Test},
		{BitEnabled | BitDSAttached, Teleop},
		{BitEnabled | BitEStop, Teleop},
		{BitTest | BitAutonomous, Disabled},
	}
	for _, tt := range tests {
		if got := Decode(tt.raw).Mode(); got != tt.want {
			t.Errorf("word %06b: expected %s, got %s", tt.raw, tt.want, got)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	for raw := uint32(0); raw < 1<<6; raw++ {
		if got := Decode(raw).Encode(); got != raw {
			t.Fatalf("expected %06b, got %06b", raw, got)
		}
	}
	if got := Decode(0xFFFFFFC0).Encode(); got != 0 {
		t.Fatalf("high bits leaked into the word: %b", got)
	}
}

func TestFlags(t *testing.T) {
	w := Decode(BitEStop | BitFMSAttached | BitDSAttached)
	if !w.EStop || !w.FMSAttached || !w.DSAttached || w.Enabled {
		t.Fatalf("bad decode: %+v", w)
	}
}
