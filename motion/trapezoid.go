// Package motion has the per-tick control primitives: a trapezoidal
// reference profile, PID controllers and an output rate limiter.
package motion

import (
	"math"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidConstraints is returned for non-positive or non-finite
	// velocity and acceleration limits.
	ErrInvalidConstraints = errors.New("max velocity and acceleration must be positive and finite")
	// ErrNonPositiveDt is returned when a time step is zero, negative or NaN.
	ErrNonPositiveDt = errors.New("time step must be positive")
)

func checkDt(dt float64) error {
	if !(dt > 0) || math.IsInf(dt, 0) {
		return errors.Wrapf(ErrNonPositiveDt, "dt=%v", dt)
	}
	return nil
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Trapezoid is a time-parameterised reference trajectory from start to goal
// with bounded velocity and acceleration. Times are in seconds.
type Trapezoid struct {
	start, goal      float64
	maxVel, maxAccel float64

	sign       float64
	peakVel    float64
	accelTime  float64
	cruiseTime float64
	totalTime  float64

	elapsed float64
}

// NewTrapezoid plans a profile. Replanning means building a new one.
func NewTrapezoid(start, goal, maxVelocity, maxAcceleration float64) (*Trapezoid, error) {
	if !finite(start, goal, maxVelocity, maxAcceleration) || maxVelocity <= 0 || maxAcceleration <= 0 {
		return nil, errors.Wrapf(ErrInvalidConstraints, "v=%v a=%v", maxVelocity, maxAcceleration)
	}
	p := &Trapezoid{
		start:    start,
		goal:     goal,
		maxVel:   maxVelocity,
		maxAccel: maxAcceleration,
		sign:     sign(goal - start),
	}
	distance := math.Abs(goal - start)

	ta := maxVelocity / maxAcceleration
	da := 0.5 * maxAcceleration * ta * ta
	if distance < 2*da {
		// triangular: the cruise velocity is never reached
		p.accelTime = math.Sqrt(distance / maxAcceleration)
		p.peakVel = maxAcceleration * p.accelTime
		p.totalTime = 2 * p.accelTime
	} else {
		p.accelTime = ta
		p.peakVel = maxVelocity
		p.cruiseTime = (distance - 2*da) / maxVelocity
		p.totalTime = 2*ta + p.cruiseTime
	}
	return p, nil
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func (p *Trapezoid) Start() float64 { return p.start }
func (p *Trapezoid) Goal() float64  { return p.goal }

// AccelTime is the duration of the acceleration phase, equal to the
// deceleration phase.
func (p *Trapezoid) AccelTime() float64 { return p.accelTime }

// CruiseTime is zero for a triangular profile.
func (p *Trapezoid) CruiseTime() float64 { return p.cruiseTime }

func (p *Trapezoid) TotalTime() float64 { return p.totalTime }

// Triangular reports whether the profile has no cruise phase.
func (p *Trapezoid) Triangular() bool { return p.cruiseTime == 0 }

// Elapsed is the internal clock advanced by Update.
func (p *Trapezoid) Elapsed() float64 { return p.elapsed }

// Done reports whether the internal clock has passed the end of the profile.
func (p *Trapezoid) Done() bool { return p.elapsed >= p.totalTime }

// PositionAt returns the reference position t seconds into the profile.
func (p *Trapezoid) PositionAt(t float64) float64 {
	if t <= 0 {
		return p.start
	}
	if t >= p.totalTime {
		return p.goal
	}
	a := p.maxAccel
	ta := p.accelTime

	var d float64
	switch {
	case t <= ta:
		d = 0.5 * a * t * t
	case t <= ta+p.cruiseTime:
		d = 0.5*a*ta*ta + p.peakVel*(t-ta)
	default:
		td := t - ta - p.cruiseTime
		d = 0.5*a*ta*ta + p.peakVel*p.cruiseTime + p.peakVel*td - 0.5*a*td*td
	}
	return p.start + p.sign*d
}

// VelocityAt returns the reference velocity t seconds into the profile.
func (p *Trapezoid) VelocityAt(t float64) float64 {
	if t <= 0 || t >= p.totalTime {
		return 0
	}
	ta := p.accelTime

	var v float64
	switch {
	case t <= ta:
		v = p.maxAccel * t
	case t <= ta+p.cruiseTime:
		v = p.peakVel
	default:
		v = p.peakVel - p.maxAccel*(t-ta-p.cruiseTime)
	}
	return p.sign * v
}

// Update advances the internal clock by dt seconds and returns the reference
// position and velocity at the new time.
func (p *Trapezoid) Update(dt float64) (position, velocity float64, err error) {
	if err := checkDt(dt); err != nil {
		return p.PositionAt(p.elapsed), p.VelocityAt(p.elapsed), err
	}
	p.elapsed += dt
	return p.PositionAt(p.elapsed), p.VelocityAt(p.elapsed), nil
}

// UpdateDuration is Update for a time.Duration step.
func (p *Trapezoid) UpdateDuration(dt time.Duration) (position, velocity float64, err error) {
	return p.Update(dt.Seconds())
}
