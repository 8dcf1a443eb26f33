// Package base defines a mobile base driven by velocity commands.
package base

import (
	"context"

	"github.com/golang/geo/r3"
)

// A Base is the sink for motion commands. Linear velocity is in metres per second along X
// (forward) and angular velocity in radians per second about Z (counter clockwise).
type Base interface {
	// SetVelocity commands the base to move at the given velocities until told otherwise.
	SetVelocity(ctx context.Context, linear, angular r3.Vector) error

	// Stop commands the base to stop.
	Stop(ctx context.Context) error
}

// SetVelocity2D commands a planar linear and angular velocity.
func SetVelocity2D(ctx context.Context, b Base, linear, angular float64) error {
	return b.SetVelocity(ctx, r3.Vector{X: linear}, r3.Vector{Z: angular})
}
