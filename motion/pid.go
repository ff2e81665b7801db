package motion

import (
	"math"
	"time"

	"github.com/felixge/pidctrl"
	"github.com/pkg/errors"
)

// Controller computes a normalised actuator command from a setpoint and a
// measurement.
type Controller interface {
	Update(setpoint, measured, dt float64) (float64, error)
	Reset()
}

// Limit returns a function clamping x into [min, max].
func Limit(min, max float64) func(x float64) float64 {
	return func(x float64) float64 {
		switch {
		case x > max:
			return max
		case x < min:
			return min
		}
		return x
	}
}

var unit = Limit(-1, 1)

// PID is an error-feedback controller with its output clamped to [-1, 1].
// The integral is not bounded and the derivative is not filtered; use
// LimitedPID when anti-windup is wanted.
type PID struct {
	KP, KI, KD float64

	prevError float64
	integral  float64
}

// NewPID returns a controller with the given gains.
func NewPID(kp, ki, kd float64) *PID {
	return &PID{KP: kp, KI: ki, KD: kd}
}

// Update runs one step. dt is in seconds and must be positive.
func (p *PID) Update(setpoint, measured, dt float64) (float64, error) {
	if err := checkDt(dt); err != nil {
		return 0, err
	}
	if !finite(setpoint, measured) {
		return 0, errors.Errorf("non-finite input: setpoint=%v measured=%v", setpoint, measured)
	}
	e := setpoint - measured
	p.integral += e * dt
	derivative := (e - p.prevError) / dt
	p.prevError = e
	return unit(p.KP*e + p.KI*p.integral + p.KD*derivative), nil
}

// Reset clears the integral and the previous error.
func (p *PID) Reset() {
	p.prevError = 0
	p.integral = 0
}

// Integral returns the accumulated error.
func (p *PID) Integral() float64 { return p.integral }

// LimitedPID is the hardened controller: the integral is kept inside the
// output limits and the derivative acts on the measurement, so setpoint
// steps do not kick the output.
type LimitedPID struct {
	c      *pidctrl.PIDController
	primed bool
}

// NewLimitedPID returns a controller with output limits [-1, 1].
func NewLimitedPID(kp, ki, kd float64) *LimitedPID {
	return &LimitedPID{
		c: pidctrl.NewPIDController(kp, ki, kd).SetOutputLimits(-1, 1),
	}
}

// Update runs one step. dt is in seconds and must be positive.
func (p *LimitedPID) Update(setpoint, measured, dt float64) (float64, error) {
	if err := checkDt(dt); err != nil {
		return 0, err
	}
	if !finite(setpoint, measured) {
		return 0, errors.Errorf("non-finite input: setpoint=%v measured=%v", setpoint, measured)
	}
	if p.c.Get() != setpoint {
		p.c.Set(setpoint)
	}
	if !p.primed {
		// seed the previous measurement so the first derivative is zero
		p.c.UpdateDuration(measured, 0)
		p.primed = true
	}
	d := time.Duration(math.Round(dt * float64(time.Second)))
	return p.c.UpdateDuration(measured, d), nil
}

// Reset rebuilds the controller with the same gains and setpoint.
func (p *LimitedPID) Reset() {
	kp, ki, kd := p.c.PID()
	sp := p.c.Get()
	p.c = pidctrl.NewPIDController(kp, ki, kd).SetOutputLimits(-1, 1).Set(sp)
	p.primed = false
}
