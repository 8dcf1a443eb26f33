package movebasic

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/control"
	"go.viam.com/movebasic/spatialmath"
)

// rotationTick is the outcome of one rotation controller tick.
type rotationTick struct {
	angleRemaining float64
	velocity       float64
	done           bool
	err            error
}

// stepRotation computes one rotation tick. obstacleAngle is the clearance in the direction of
// angleRemaining.
func stepRotation(cfg config.Config, angleRemaining, obstacleAngle float64, preempt bool) rotationTick {
	tick := rotationTick{angleRemaining: angleRemaining}
	switch {
	case preempt:
		tick.done, tick.err = true, ErrPreempted
		return tick
	case math.Abs(angleRemaining) < cfg.AngularTolerance:
		tick.done = true
		return tick
	}

	tick.velocity = control.Speed(angleRemaining, obstacleAngle,
		cfg.MaxTurningVelocity, cfg.MinTurningVelocity, cfg.RotationalGain, cfg.AngularAcceleration)
	if angleRemaining < 0 {
		tick.velocity = -tick.velocity
	}
	return tick
}

// rotate turns the robot in place by yaw radians relative to its current heading, tracking
// heading in drivingFrame.
func (mb *MoveBasic) rotate(ctx context.Context, yaw float64, drivingFrame string, handle GoalHandle) error {
	pose, err := mb.robotPose(mb.store.Get(), drivingFrame)
	if err != nil {
		return errors.Wrap(ErrNoPoseForRotation, err.Error())
	}
	requestedYaw := spatialmath.NormalizeAngle(pose.Yaw + yaw)
	mb.logger.CInfof(ctx, "requested rotation %.2f degrees to heading %.2f degrees in %q",
		rad2deg(yaw), rad2deg(requestedYaw), drivingFrame)

	ticker := mb.clock.Ticker(ControlInterval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cfg := mb.store.Get()
		pose, err := mb.robotPose(cfg, drivingFrame)
		if err != nil {
			return errors.Wrap(ErrNoPoseForRotation, err.Error())
		}

		angleRemaining := spatialmath.NormalizeAngle(requestedYaw - pose.Yaw)
		obstacle := mb.checker.ObstacleAngle(angleRemaining > 0)
		tick := stepRotation(cfg, angleRemaining, obstacle, handle.IsPreemptRequested())

		if tick.done {
			if tick.err != nil {
				return tick.err
			}
			mb.logger.CInfof(ctx, "done rotation, error %.3f degrees", rad2deg(angleRemaining))
			return mb.sendCmd(ctx, 0, 0)
		}

		if err := mb.sendCmd(ctx, tick.velocity, 0); err != nil {
			return err
		}
		mb.logger.CDebugw(ctx, "rotating", "angle_remaining_deg", rad2deg(angleRemaining), "angular_velocity", tick.velocity)
	}
}

func rad2deg(rad float64) float64 {
	return rad * 180 / math.Pi
}
