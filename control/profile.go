// Package control implements the feedback primitives shared by the motion controllers.
package control

import "math"

// Speed returns the velocity magnitude for a closed-loop approach to a stopping point.
//
// The stopping point is whichever is nearer of the goal (remaining) and the limit imposed by
// an obstacle (obstacleLimit). Far away the result saturates at maxVelocity; near the stopping
// point sqrt(2*acceleration*d) keeps the approach within the configured deceleration. The
// result never drops below minVelocity, so callers must zero it themselves once their finish
// condition fires.
func Speed(remaining, obstacleLimit, maxVelocity, minVelocity, gain, acceleration float64) float64 {
	d := math.Min(math.Abs(remaining), math.Abs(obstacleLimit))
	v := math.Min(gain*d, math.Sqrt(2*acceleration*d))
	return math.Max(minVelocity, math.Min(maxVelocity, v))
}
