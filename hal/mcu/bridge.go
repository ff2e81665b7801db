// Package mcu talks to the motor/IO microcontroller over a UART. Every
// refresh reads one preamble-framed telemetry frame and answers with the
// latest actuator commands.
package mcu

import (
	"io"
	"sync"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Defaults for the UART.
const (
	DefaultPort     = "/dev/serial0"
	DefaultBaudrate = 460800
	readTimeout     = 50 * time.Millisecond
)

// LowVoltage is the battery level, in 0.1 V, below which a warning is logged.
const LowVoltage = 70

// Port is the subset of serial.Port the bridge uses.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Bridge is a hal.Backend over a serial port.
type Bridge struct {
	l    hclog.Logger
	port Port
	now  func() time.Time

	// TicksPerUnit converts encoder counts into position units.
	TicksPerUnit float64

	mu        sync.Mutex
	frame     Telemetry
	prev      Telemetry
	have      bool
	frameAt   time.Time
	prevAt    time.Time
	started   bool
	mode      controlword.Mode
	outputs   [Channels]int16
	lowBatt   bool
	exchanges uint64
}

// Open opens and configures a UART.
func Open(name string, baudrate int, l hclog.Logger) (*Bridge, error) {
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "set read timeout")
	}
	return New(port, l), nil
}

// New wraps an already open port.
func New(port Port, l hclog.Logger) *Bridge {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Bridge{
		l:            l.Named("mcu"),
		port:         port,
		now:          time.Now,
		TicksPerUnit: 1,
	}
}

// Initialize waits up to timeout for the first telemetry frame.
func (b *Bridge) Initialize(timeout time.Duration, mode int32) error {
	deadline := b.now().Add(timeout)
	for {
		err := b.exchange()
		if err == nil {
			b.l.Info("microcontroller link up", "hal_mode", mode)
			return nil
		}
		if !errors.Is(err, hal.ErrNoFrame) || !b.now().Before(deadline) {
			return errors.Wrapf(hal.ErrHALInit, "mcu: %v", err)
		}
	}
}

// RefreshLinkData runs one frame exchange.
func (b *Bridge) RefreshLinkData() error {
	return b.exchange()
}

func (b *Bridge) exchange() error {
	if err := b.port.ResetInputBuffer(); err != nil {
		return errors.Wrap(err, "reset input buffer")
	}
	t, err := readFrame(b.port)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.prev, b.prevAt = b.frame, b.frameAt
	b.frame, b.frameAt = t, b.now()
	b.have = true
	b.exchanges++
	cmd := b.commandLocked()
	b.checkBatteryLocked()
	b.mu.Unlock()

	if _, err := b.port.Write(encodeCommand(cmd)); err != nil {
		return errors.Wrap(err, "serial write")
	}
	return nil
}

func (b *Bridge) commandLocked() Command {
	c := Command{Mode: uint8(b.mode), Outputs: b.outputs}
	if b.started {
		c.Flags |= FlagProgramStarted
	}
	if b.mode != controlword.Disabled {
		c.Flags |= FlagOutputsEnabled
	} else {
		c.Outputs = [Channels]int16{}
	}
	return c
}

func (b *Bridge) checkBatteryLocked() {
	low := b.frame.Volt < LowVoltage
	if low && !b.lowBatt {
		b.l.Warn("battery low", "volts", float64(b.frame.Volt)/10)
	}
	b.lowBatt = low
}

func (b *Bridge) SignalProgramStarted() error {
	b.mu.Lock()
	b.started = true
	b.mu.Unlock()
	return nil
}

func (b *Bridge) ReadControlWord() (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.have {
		return 0, hal.ErrNoFrame
	}
	return b.frame.Control, nil
}

// ObserveMode is sent to the microcontroller with the next command.
func (b *Bridge) ObserveMode(m controlword.Mode) {
	b.mu.Lock()
	b.mode = m
	b.mu.Unlock()
}

func checkDevice(device int) error {
	if device < 0 || device >= Devices {
		return errors.Errorf("mcu: device %d not present", device)
	}
	return nil
}

func (b *Bridge) ReadButtonBitmask(device int) (uint32, error) {
	if err := checkDevice(device); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frame.Buttons[device], nil
}

func (b *Bridge) ReadAxis(device, axis int) (float64, error) {
	if err := checkDevice(device); err != nil {
		return 0, err
	}
	if axis < 0 || axis >= Axes {
		return 0, errors.Errorf("mcu: axis %d not present", axis)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return fromFixed(b.frame.Axes[device][axis]), nil
}

func (b *Bridge) ReadPOV(device int) (int, error) {
	if err := checkDevice(device); err != nil {
		return -1, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return int(b.frame.POV[device]), nil
}

func checkChannel(id hal.ActuatorID) error {
	if id < 0 || int(id) >= Channels {
		return errors.Wrapf(hal.ErrUnknownActuator, "mcu channel %d", id)
	}
	return nil
}

// SetOutput takes effect at the next exchange.
func (b *Bridge) SetOutput(id hal.ActuatorID, v float64) error {
	if err := checkChannel(id); err != nil {
		return err
	}
	b.mu.Lock()
	b.outputs[id] = toFixed(v)
	b.mu.Unlock()
	return nil
}

func (b *Bridge) Stop(id hal.ActuatorID) error {
	return b.SetOutput(id, 0)
}

// Voltage is the last reported battery voltage.
func (b *Bridge) Voltage() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.frame.Volt) / 10
}

// Encoder returns encoder input i.
func (b *Bridge) Encoder(i int) (hal.Encoder, error) {
	if i < 0 || i >= Encoders {
		return nil, errors.Errorf("mcu: encoder %d not present", i)
	}
	return &encoder{b: b, i: i}, nil
}

type encoder struct {
	b *Bridge
	i int
}

func (e *encoder) Position() (float64, error) {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	if !e.b.have {
		return 0, hal.ErrNoFrame
	}
	return float64(e.b.frame.Encoders[e.i]) / e.b.TicksPerUnit, nil
}

func (e *encoder) Velocity() (float64, error) {
	e.b.mu.Lock()
	defer e.b.mu.Unlock()
	dt := e.b.frameAt.Sub(e.b.prevAt).Seconds()
	if e.b.exchanges < 2 || dt <= 0 {
		return 0, nil
	}
	d := float64(e.b.frame.Encoders[e.i] - e.b.prev.Encoders[e.i])
	return d / e.b.TicksPerUnit / dt, nil
}

// Gyro returns the microcontroller's IMU.
func (b *Bridge) Gyro() hal.Gyro {
	return gyro{b}
}

type gyro struct {
	b *Bridge
}

func (g gyro) Heading() (float64, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	if !g.b.have {
		return 0, hal.ErrNoFrame
	}
	return float64(g.b.frame.Heading) / 100, nil
}

func (g gyro) Rate() (float64, error) {
	g.b.mu.Lock()
	defer g.b.mu.Unlock()
	dt := g.b.frameAt.Sub(g.b.prevAt).Seconds()
	if g.b.exchanges < 2 || dt <= 0 {
		return 0, nil
	}
	return float64(g.b.frame.Heading-g.b.prev.Heading) / 100 / dt, nil
}

// Close closes the port.
func (b *Bridge) Close() error {
	return b.port.Close()
}

var (
	_ hal.Backend      = (*Bridge)(nil)
	_ hal.ModeObserver = (*Bridge)(nil)
)
