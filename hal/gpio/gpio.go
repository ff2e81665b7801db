// Package gpio drives the Raspberry Pi header: on-board buttons, digital
// sensors, PWM outputs, the status LED and the buzzer.
package gpio

import (
	"math"

	"github.com/Rione/racoon-frc/hal"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

// Open maps the GPIO registers. Call Close on exit.
func Open() error {
	if err := rpio.Open(); err != nil {
		return errors.Wrap(err, "gpio open")
	}
	return nil
}

// Close unmaps the GPIO registers.
func Close() error {
	return rpio.Close()
}

type inputPin interface {
	Read() rpio.State
}

type outputPin interface {
	Write(rpio.State)
}

type pwmPin interface {
	Freq(freq int)
	DutyCycle(dutyLen, cycleLen uint32)
}

// PullUpInput configures pin as an input with pull-up, the way the on-board
// buttons and DIP switches are wired.
func PullUpInput(pin uint8) rpio.Pin {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return p
}

// Output configures pin as a push-pull output.
func Output(pin uint8) rpio.Pin {
	p := rpio.Pin(pin)
	p.Output()
	return p
}

// PWM configures pin for hardware PWM.
func PWM(pin uint8) rpio.Pin {
	p := rpio.Pin(pin)
	p.Mode(rpio.Pwm)
	return p
}

// DigitalInput is an active-low sensor on a pulled-up pin.
type DigitalInput struct {
	pin inputPin
}

// NewDigitalInput configures pin.
func NewDigitalInput(pin uint8) *DigitalInput {
	return &DigitalInput{pin: PullUpInput(pin)}
}

// Get reports true when the pin is pulled low.
func (d *DigitalInput) Get() (bool, error) {
	return d.pin.Read()^1 == rpio.High, nil
}

// Buttons exposes a set of active-low pins as one input device. Button n is
// pins[n-1].
type Buttons struct {
	device int
	pins   []inputPin
}

// NewButtons configures pins as device.
func NewButtons(device int, pins ...uint8) *Buttons {
	b := &Buttons{device: device}
	for _, p := range pins {
		b.pins = append(b.pins, PullUpInput(p))
	}
	return b
}

func (b *Buttons) ReadButtonBitmask(device int) (uint32, error) {
	if device != b.device {
		return 0, errors.Errorf("gpio: device %d not present", device)
	}
	var mask uint32
	for i, p := range b.pins {
		if p.Read()^1 == rpio.High {
			mask |= 1 << uint(i)
		}
	}
	return mask, nil
}

// ReadAxis reads 0: the header has no analog inputs.
func (b *Buttons) ReadAxis(device, axis int) (float64, error) {
	if device != b.device {
		return 0, errors.Errorf("gpio: device %d not present", device)
	}
	return 0, nil
}

// Servo PWM: 50 Hz frame of cycleLen counts, 1 ms..2 ms pulse.
const (
	pwmCycle    = 2000
	pwmFreq     = 50 * pwmCycle
	pwmNeutral  = 150
	pwmHalfSpan = 50
)

// PWMBus drives speed controllers with servo-style pulses.
type PWMBus struct {
	pins map[hal.ActuatorID]pwmPin
}

// NewPWMBus configures each pin in pins under its actuator id.
func NewPWMBus(pins map[hal.ActuatorID]uint8) *PWMBus {
	b := &PWMBus{pins: make(map[hal.ActuatorID]pwmPin)}
	for id, pin := range pins {
		p := PWM(pin)
		p.Freq(pwmFreq)
		b.pins[id] = p
	}
	return b
}

func (b *PWMBus) SetOutput(id hal.ActuatorID, v float64) error {
	p, ok := b.pins[id]
	if !ok {
		return errors.Wrapf(hal.ErrUnknownActuator, "pwm %d", id)
	}
	p.DutyCycle(pulse(v), pwmCycle)
	return nil
}

func (b *PWMBus) Stop(id hal.ActuatorID) error {
	return b.SetOutput(id, 0)
}

func pulse(v float64) uint32 {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(-1, math.Min(1, v))
	return uint32(math.Round(pwmNeutral + pwmHalfSpan*v))
}
