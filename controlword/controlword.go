// Package controlword decodes the driver-station control word into the
// robot's operating mode.
package controlword

// Bit positions inside the raw control word.
const (
	BitEnabled = 1 << iota
	BitAutonomous
	BitTest
	BitEStop
	BitFMSAttached
	BitDSAttached
)

// Mode is the operating mode the scheduler dispatches on.
type Mode int

// All the modes of the robot
const (
	Disabled Mode = iota
	Autonomous
	Teleop
	Test
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Autonomous:
		return "autonomous"
	case Teleop:
		return "teleop"
	case Test:
		return "test"
	}
	return "unknown"
}

// ControlWord is an immutable snapshot of the control bits for one tick.
type ControlWord struct {
	Enabled     bool
	Autonomous  bool
	Test        bool
	EStop       bool
	FMSAttached bool
	DSAttached  bool
}

// Decode splits a raw word. Bits above BitDSAttached are ignored.
func Decode(raw uint32) ControlWord {
	return ControlWord{
		Enabled:     raw&BitEnabled != 0,
		Autonomous:  raw&BitAutonomous != 0,
		Test:        raw&BitTest != 0,
		EStop:       raw&BitEStop != 0,
		FMSAttached: raw&BitFMSAttached != 0,
		DSAttached:  raw&BitDSAttached != 0,
	}
}

// Encode is the inverse of Decode.
func (w ControlWord) Encode() uint32 {
	var raw uint32
	for _, b := range []struct {
		set bool
		bit uint32
	}{
		{w.Enabled, BitEnabled},
		{w.Autonomous, BitAutonomous},
		{w.Test, BitTest},
		{w.EStop, BitEStop},
		{w.FMSAttached, BitFMSAttached},
		{w.DSAttached, BitDSAttached},
	} {
		if b.set {
			raw |= b.bit
		}
	}
	return raw
}

// Mode resolves the word by priority: not enabled, then autonomous, then
// test. Teleop is the fallback for an enabled word with neither bit set.
// The emergency-stop bit does not take part; an e-stopped robot is also
// reported as not enabled by the driver station.
func (w ControlWord) Mode() Mode {
	switch {
	case !w.Enabled:
		return Disabled
	case w.Autonomous:
		return Autonomous
	case w.Test:
		return Test
	}
	return Teleop
}
