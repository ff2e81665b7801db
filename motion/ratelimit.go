package motion

import "math"

// RateLimiter drives a position toward a target with an open-loop power
// command whose rate of change is bounded. Rates are output units per second.
type RateLimiter struct {
	AccelRate   float64
	DecelRate   float64
	CruisePower float64
	Tolerance   float64

	last float64
}

// NewRateLimiter clamps cruisePower into [0, 1].
func NewRateLimiter(accelRate, decelRate, cruisePower, tolerance float64) *RateLimiter {
	return &RateLimiter{
		AccelRate:   accelRate,
		DecelRate:   decelRate,
		CruisePower: Limit(0, 1)(math.Abs(cruisePower)),
		Tolerance:   tolerance,
	}
}

// Update returns the next command. Inside the tolerance band the output
// drops straight to zero.
func (r *RateLimiter) Update(current, target, dt float64) (float64, error) {
	if err := checkDt(dt); err != nil {
		return r.last, err
	}
	remaining := target - current
	if math.Abs(remaining) < r.Tolerance {
		r.last = 0
		return 0, nil
	}
	desired := r.CruisePower * sign(remaining)

	maxStep := r.DecelRate * dt
	if math.Abs(desired) > math.Abs(r.last) || sign(desired) != sign(r.last) {
		maxStep = r.AccelRate * dt
	}
	out := r.last + Limit(-maxStep, maxStep)(desired-r.last)
	r.last = out
	return Limit(-r.CruisePower, r.CruisePower)(out), nil
}

// Last returns the previous command.
func (r *RateLimiter) Last() float64 { return r.last }

// Reset zeroes the previous command.
func (r *RateLimiter) Reset() { r.last = 0 }
