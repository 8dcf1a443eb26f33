package control

import "math"

// PIDGains are the coefficients of a PID block along with the symmetric saturation limit of
// its output.
type PIDGains struct {
	Kp    float64
	Ki    float64
	Kd    float64
	Limit float64
}

// PID is a discrete PID block stepped once per control tick. The integral is a plain sum of
// errors and the derivative a plain difference, so gains are per-tick. The zero value is ready
// to use.
type PID struct {
	integral  float64
	prevError float64
}

// Next feeds one error sample through the block and returns the clamped output. Gains are
// passed on every call so they can change between ticks without resetting the state.
func (p *PID) Next(gains PIDGains, err float64) float64 {
	p.integral += err
	diff := err - p.prevError
	p.prevError = err

	output := gains.Kp*err + gains.Ki*p.integral + gains.Kd*diff
	return math.Max(-gains.Limit, math.Min(gains.Limit, output))
}

// Integral returns the accumulated error.
func (p *PID) Integral() float64 {
	return p.integral
}

// Reset clears the accumulated state.
func (p *PID) Reset() {
	*p = PID{}
}
