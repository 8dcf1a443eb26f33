// Package fake implements a simulated differential drive base.
package fake

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"go.viam.com/movebasic/referenceframe"
	"go.viam.com/movebasic/spatialmath"
)

// Base integrates the commanded velocities over clock time and reports the resulting pose as
// the transform of its base frame in its odometry frame.
type Base struct {
	mu        sync.Mutex
	clock     clock.Clock
	frames    *referenceframe.FrameSystem
	odomFrame string
	baseFrame string

	pose            spatialmath.Pose2D
	linear, angular float64
	last            time.Time
	commandCount    int
}

// NewBase returns a stationary base at start and publishes its initial transform.
func NewBase(
	clk clock.Clock,
	frames *referenceframe.FrameSystem,
	odomFrame, baseFrame string,
	start spatialmath.Pose2D,
) (*Base, error) {
	if clk == nil {
		clk = clock.New()
	}
	b := &Base{
		clock:     clk,
		frames:    frames,
		odomFrame: odomFrame,
		baseFrame: baseFrame,
		pose:      start,
		last:      clk.Now(),
	}
	if err := b.publish(); err != nil {
		return nil, err
	}
	return b, nil
}

// SetVelocity applies the planar part of the command: linear.X and angular.Z.
func (b *Base) SetVelocity(ctx context.Context, linear, angular r3.Vector) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.advance(); err != nil {
		return err
	}
	b.linear, b.angular = linear.X, angular.Z
	b.commandCount++
	return nil
}

// Stop zeroes the commanded velocities.
func (b *Base) Stop(ctx context.Context) error {
	return b.SetVelocity(ctx, r3.Vector{}, r3.Vector{})
}

// Update integrates up to the current time and republishes the transform.
func (b *Base) Update() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.advance()
}

// Pose returns the pose in the odometry frame as of the last update.
func (b *Base) Pose() spatialmath.Pose2D {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose
}

// Velocity returns the commanded linear and angular velocity.
func (b *Base) Velocity() (float64, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linear, b.angular
}

// CommandCount returns how many commands the base has received.
func (b *Base) CommandCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.commandCount
}

// advance moves the pose along the arc traced by the current command since the last update.
func (b *Base) advance() error {
	now := b.clock.Now()
	dt := now.Sub(b.last).Seconds()
	b.last = now
	if dt <= 0 {
		return nil
	}

	v, w, yaw := b.linear, b.angular, b.pose.Yaw
	if math.Abs(w) < 1e-9 {
		b.pose.X += v * math.Cos(yaw) * dt
		b.pose.Y += v * math.Sin(yaw) * dt
	} else {
		r := v / w
		b.pose.X += r * (math.Sin(yaw+w*dt) - math.Sin(yaw))
		b.pose.Y -= r * (math.Cos(yaw+w*dt) - math.Cos(yaw))
	}
	b.pose.Yaw = spatialmath.NormalizeAngle(yaw + w*dt)
	return b.publish()
}

func (b *Base) publish() error {
	return b.frames.SetTransform(b.baseFrame, b.odomFrame,
		spatialmath.NewPoseFromXYYaw(b.pose.X, b.pose.Y, b.pose.Yaw))
}
