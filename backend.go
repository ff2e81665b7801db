package main

import (
	"github.com/Rione/racoon-frc/config"
	"github.com/Rione/racoon-frc/hal"
	"github.com/Rione/racoon-frc/hal/dslink"
	"github.com/Rione/racoon-frc/hal/gpio"
	"github.com/Rione/racoon-frc/hal/mcu"
	"github.com/Rione/racoon-frc/hal/sim"
	"github.com/Rione/racoon-frc/input"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// backend is the hardware chosen by the configuration.
type backend struct {
	link    hal.Link
	inputs  input.Provider
	bus     hal.ActuatorBus
	encoder func(id hal.ActuatorID) (hal.Encoder, error)
	gpio    bool
	closers []func() error

	// armLimit is nil without GPIO.
	armLimit hal.DigitalInput
}

func openBackend(cfg config.Config, l hclog.Logger) (*backend, error) {
	be := &backend{}

	switch cfg.Link {
	case config.LinkSim:
		h := sim.New(sim.Match(cfg.TickHz))
		h.Scale = SIM_SCALE
		be.link, be.inputs, be.bus = h, h, h
		be.encoder = simEncoders(h)

	case config.LinkSerial:
		b, err := mcu.Open(cfg.SerialPort, cfg.Baudrate, l)
		if err != nil {
			return nil, err
		}
		be.link, be.inputs, be.bus = b, b, b
		be.encoder = func(id hal.ActuatorID) (hal.Encoder, error) {
			return b.Encoder(int(id))
		}
		be.closers = append(be.closers, b.Close)

	case config.LinkUDP:
		k := dslink.New(cfg.DSListen, cfg.DSTimeout, l)
		be.link, be.inputs = k, k
		be.closers = append(be.closers, k.Close)
		// no output hardware on the link itself: model the mechanisms
		// unless the GPIO header drives them
		h := sim.New(nil)
		h.Scale = SIM_SCALE
		be.bus = h
		be.encoder = simEncoders(h)

	default:
		return nil, errors.Errorf("unknown link %q", cfg.Link)
	}

	if cfg.GPIO {
		if err := gpio.Open(); err != nil {
			be.Close()
			return nil, err
		}
		be.gpio = true
		be.closers = append(be.closers, gpio.Close)
		be.inputs = &inputMux{
			primary: be.inputs,
			device:  ONBOARD_DEVICE,
			onboard: gpio.NewButtons(ONBOARD_DEVICE, PIN_BUTTON1, PIN_BUTTON2),
		}
		be.armLimit = gpio.NewDigitalInput(PIN_ARM_TOP)
		if cfg.Link == config.LinkUDP {
			be.bus = gpio.NewPWMBus(map[hal.ActuatorID]uint8{
				DRIVE_LEFT:  PIN_PWM0,
				DRIVE_RIGHT: PIN_PWM1,
				ARM:         PIN_PWM2,
			})
		}
	}
	return be, nil
}

func simEncoders(h *sim.HAL) func(hal.ActuatorID) (hal.Encoder, error) {
	return func(id hal.ActuatorID) (hal.Encoder, error) {
		return h.Encoder(id), nil
	}
}

func (be *backend) Close() error {
	var first error
	for i := len(be.closers) - 1; i >= 0; i-- {
		if err := be.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// inputMux serves one device from the on-board buttons and every other
// device from the primary provider.
type inputMux struct {
	primary input.Provider
	device  int
	onboard input.Provider
}

func (m *inputMux) ReadButtonBitmask(device int) (uint32, error) {
	if device == m.device {
		return m.onboard.ReadButtonBitmask(device)
	}
	return m.primary.ReadButtonBitmask(device)
}

func (m *inputMux) ReadAxis(device, axis int) (float64, error) {
	if device == m.device {
		return m.onboard.ReadAxis(device, axis)
	}
	return m.primary.ReadAxis(device, axis)
}

func (m *inputMux) ReadPOV(device int) (int, error) {
	if p, ok := m.primary.(input.POVReader); ok && device != m.device {
		return p.ReadPOV(device)
	}
	return -1, nil
}
