// Package hal declares the hardware collaborators the robot loop talks to.
// Concrete backends live in the sub-packages: sim, mcu, dslink and gpio.
package hal

import (
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/input"
	"github.com/pkg/errors"
)

// ErrHALInit is returned when the hardware layer refuses to start.
var ErrHALInit = errors.New("hal initialization failed")

// ErrNoFrame is returned by a link that has not received any data yet.
var ErrNoFrame = errors.New("no frame received")

// Link is the driver-station side of the HAL.
type Link interface {
	// Initialize brings the HAL up. A non-nil error is fatal.
	Initialize(timeout time.Duration, mode int32) error
	RefreshLinkData() error
	SignalProgramStarted() error
	ReadControlWord() (uint32, error)
}

// ModeObserver is implemented by links that report the running mode back to
// the driver station.
type ModeObserver interface {
	ObserveMode(m controlword.Mode)
}

// ActuatorID addresses one output channel on an ActuatorBus.
type ActuatorID int

// ActuatorBus sends normalised commands in [-1, 1].
type ActuatorBus interface {
	SetOutput(id ActuatorID, value float64) error
	Stop(id ActuatorID) error
}

// Actuator is a single output channel.
type Actuator interface {
	Set(value float64) error
	Stop() error
}

// Encoder reports a mechanism position and velocity.
type Encoder interface {
	Position() (float64, error)
	Velocity() (float64, error)
}

// Gyro reports heading in degrees and turn rate in degrees per second.
type Gyro interface {
	Heading() (float64, error)
	Rate() (float64, error)
}

// DigitalInput is a single on/off sensor.
type DigitalInput interface {
	Get() (bool, error)
}

// Backend is everything the robot loop needs from one piece of hardware.
type Backend interface {
	Link
	input.Provider
	ActuatorBus
}
