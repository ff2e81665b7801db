package gpio

import (
	"context"
	"math"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/task"
	"github.com/stianeikeland/go-rpio/v4"
)

// LED blink half-periods.
const (
	BlinkDisabled = 500 * time.Millisecond
	BlinkEnabled  = 75 * time.Millisecond
	BlinkTest     = 250 * time.Millisecond
)

// BlinkPeriod is the LED half-period for m.
func BlinkPeriod(m controlword.Mode) time.Duration {
	switch m {
	case controlword.Autonomous, controlword.Teleop:
		return BlinkEnabled
	case controlword.Test:
		return BlinkTest
	}
	return BlinkDisabled
}

// StatusLED blinks at a rate that shows the current mode.
type StatusLED struct {
	pin   outputPin
	mode  func() controlword.Mode
	now   func() time.Time
	on    bool
	since time.Time
}

// NewStatusLED configures pin and reads the mode from mode.
func NewStatusLED(pin uint8, mode func() controlword.Mode) *StatusLED {
	return &StatusLED{pin: Output(pin), mode: mode, now: time.Now}
}

// Blink is a task activity: each iteration toggles the LED once its
// half-period has passed.
func (s *StatusLED) Blink(ctx context.Context) error {
	now := s.now()
	if now.Sub(s.since) < BlinkPeriod(s.mode()) {
		return nil
	}
	s.on = !s.on
	if s.on {
		s.pin.Write(rpio.High)
	} else {
		s.pin.Write(rpio.Low)
	}
	s.since = now
	return nil
}

// Buzzer plays tones on a PWM pin.
type Buzzer struct {
	pin pwmPin
}

// NewBuzzer configures pin.
func NewBuzzer(pin uint8) *Buzzer {
	return &Buzzer{pin: PWM(pin)}
}

// Frequency of tone semitones above 440 Hz.
func Frequency(tone int) int {
	return int(440 * math.Pow(2, float64(tone)/12))
}

// Ring sounds tone for d. It sleeps cooperatively.
func (b *Buzzer) Ring(ctx context.Context, tone int, d time.Duration) error {
	const pwmMultiplier = 64
	b.pin.Freq(Frequency(tone) * pwmMultiplier)
	b.pin.DutyCycle(16, 32)
	err := task.Sleep(ctx, d)
	b.pin.DutyCycle(0, 32)
	return err
}

// Note is one buzzer note.
type Note struct {
	Tone     int
	Duration time.Duration
}

// StartupMelody plays on boot.
var StartupMelody = []Note{
	{13, 150 * time.Millisecond},
	{9, 150 * time.Millisecond},
	{4, 150 * time.Millisecond},
	{9, 150 * time.Millisecond},
	{11, 150 * time.Millisecond},
	{16, 300 * time.Millisecond},
}

// Play rings each note in turn.
func (b *Buzzer) Play(ctx context.Context, notes []Note) error {
	for _, n := range notes {
		if err := b.Ring(ctx, n.Tone, n.Duration); err != nil {
			return err
		}
	}
	return nil
}
