package gpio

import (
	"context"
	"testing"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

type fakePin struct {
	level  rpio.State
	writes []rpio.State
	freq   int
	duty   uint32
}

func (p *fakePin) Read() rpio.State          { return p.level }
func (p *fakePin) Write(s rpio.State)        { p.writes = append(p.writes, s) }
func (p *fakePin) Freq(f int)                { p.freq = f }
func (p *fakePin) DutyCycle(d, cycle uint32) { p.duty = d }

func TestButtonsAreActiveLow(t *testing.T) {
	pressed := &fakePin{level: rpio.Low}
	released := &fakePin{level: rpio.High}
	b := &Buttons{device: 2, pins: []inputPin{released, pressed, pressed}}

	m, err := b.ReadButtonBitmask(2)
	if err != nil {
		t.Fatal(err)
	}
	if m != 0b110 {
		t.Fatalf("mask %b", m)
	}
	if _, err := b.ReadButtonBitmask(0); err == nil {
		t.Fatal("wrong device accepted")
	}

	d := &DigitalInput{pin: pressed}
	if on, _ := d.Get(); !on {
		t.Fatal("pulled-low input should read true")
	}
}

func TestPWMPulseWidth(t *testing.T) {
	pin := &fakePin{}
	b := &PWMBus{pins: map[hal.ActuatorID]pwmPin{0: pin}}
	for _, c := range []struct {
		v    float64
		want uint32
	}{{0, 150}, {1, 200}, {-1, 100}, {3, 200}, {0.5, 175}} {
		b.SetOutput(0, c.v)
		if pin.duty != c.want {
			t.Errorf("SetOutput(%v): duty %d want %d", c.v, pin.duty, c.want)
		}
	}
	b.Stop(0)
	if pin.duty != pwmNeutral {
		t.Fatalf("stop duty %d", pin.duty)
	}
	if err := b.SetOutput(7, 0); !errors.Is(err, hal.ErrUnknownActuator) {
		t.Fatalf("expected ErrUnknownActuator, got %v", err)
	}
}

func TestStatusLEDBlinkRate(t *testing.T) {
	pin := &fakePin{}
	now := time.Unix(100, 0)
	mode := controlword.Disabled
	led := &StatusLED{pin: pin, mode: func() controlword.Mode { return mode }, now: func() time.Time { return now }}

	ctx := context.Background()
	led.Blink(ctx)
	if len(pin.writes) != 1 || pin.writes[0] != rpio.High {
		t.Fatalf("first blink %v", pin.writes)
	}
	now = now.Add(100 * time.Millisecond)
	led.Blink(ctx)
	if len(pin.writes) != 1 {
		t.Fatal("disabled LED toggled too early")
	}

	mode = controlword.Teleop
	led.Blink(ctx)
	if len(pin.writes) != 2 || pin.writes[1] != rpio.Low {
		t.Fatalf("enabled LED did not toggle: %v", pin.writes)
	}
}

func TestBuzzer(t *testing.T) {
	pin := &fakePin{}
	b := &Buzzer{pin: pin}
	if err := b.Ring(context.Background(), 12, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if pin.freq != 880*64 {
		t.Fatalf("freq %d", pin.freq)
	}
	if pin.duty != 0 {
		t.Fatal("buzzer left on")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Play(ctx, StartupMelody); err == nil {
		t.Fatal("cancelled melody kept playing")
	}
}
