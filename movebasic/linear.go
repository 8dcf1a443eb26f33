package movebasic

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/control"
	"go.viam.com/movebasic/spatialmath"
)

// linearState is owned by one translation and discarded when it ends.
type linearState struct {
	forward           bool
	requestedDistance float64

	lateral control.PID

	// lowWaterMark is the smallest distance to the goal seen so far and lastProgress the time
	// it was set.
	lowWaterMark float64
	lastProgress time.Time

	paused      bool
	pausedSince time.Time
}

func newLinearState(goalInBase r3.Vector, now time.Time) *linearState {
	dist := math.Hypot(goalInBase.X, goalInBase.Y)
	return &linearState{
		forward:           goalInBase.X > 0,
		requestedDistance: dist,
		lowWaterMark:      dist,
		lastProgress:      now,
	}
}

// linearTick is the outcome of one translation tick.
type linearTick struct {
	distRemaining float64
	lateral       LateralError
	velocity      float64
	// pausing and resuming are set on the tick the pause starts or ends.
	pausing  bool
	resuming bool
	done     bool
	err      error
}

// step computes one translation tick from the goal position in the base frame and the
// obstacle clearance in the direction of travel. Exits are decided in priority order: preempt,
// obstacle timeout, no progress, then arrival.
func (s *linearState) step(
	cfg config.Config,
	now time.Time,
	remaining r3.Vector,
	obstacleDist float64,
	preempt bool,
) linearTick {
	var tick linearTick
	tick.distRemaining = math.Hypot(remaining.X, remaining.Y)

	lateralError := cfg.SideRecoverWeight * remaining.Y
	rotation := s.lateral.Next(control.PIDGains{
		Kp:    cfg.LateralKp,
		Ki:    cfg.LateralKi,
		Kd:    cfg.LateralKd,
		Limit: cfg.MaxLateralVelocity,
	}, lateralError)
	if !s.forward {
		rotation = -rotation
	}
	tick.lateral = LateralError{XRemaining: remaining.X, Error: lateralError, Rotation: rotation}

	velocity := control.Speed(tick.distRemaining, obstacleDist,
		cfg.MaxLinearVelocity, 0, cfg.LinearGain, cfg.LinearAcceleration)

	obstacleTimeout := false
	if obstacleDist < cfg.ForwardObstacleThreshold {
		velocity = 0
		if !s.paused {
			s.paused, s.pausedSince, tick.pausing = true, now, true
		} else if now.Sub(s.pausedSince) > cfg.ObstacleWaitDuration() {
			obstacleTimeout = true
		}
	} else if s.paused {
		s.paused, tick.resuming = false, true
	}

	noProgress := false
	switch {
	case tick.distRemaining < s.lowWaterMark:
		s.lowWaterMark, s.lastProgress = tick.distRemaining, now
	case s.paused:
		// Waiting for an obstacle is not a lack of progress.
		s.lastProgress = now
	case tick.distRemaining > s.lowWaterMark && now.Sub(s.lastProgress) > cfg.AbortTimeoutDuration():
		noProgress = true
	}

	switch {
	case preempt:
		tick.done, tick.err = true, ErrPreempted
	case obstacleTimeout:
		tick.done, tick.err = true, ErrObstacleTimeout
	case noProgress:
		tick.done, tick.err = true, ErrNoProgressTimeout
	case math.Abs(velocity) < cfg.VelocityThreshold && tick.distRemaining < cfg.LinearTolerance:
		tick.done = true
	}
	if tick.done {
		return tick
	}

	if !s.forward {
		velocity = -velocity
	}
	tick.velocity = velocity
	return tick
}

// moveLinear drives to goalInDriving, tracking position in drivingFrame.
func (mb *MoveBasic) moveLinear(
	ctx context.Context,
	goalInDriving spatialmath.Pose,
	drivingFrame string,
	handle GoalHandle,
) error {
	cfg := mb.store.Get()
	goalInBase, err := mb.goalInBase(cfg, goalInDriving, drivingFrame)
	if err != nil {
		return errors.Wrap(ErrNoPoseForTranslation, err.Error())
	}
	state := newLinearState(goalInBase, mb.clock.Now())
	mb.logger.CInfof(ctx, "requested translation %.3f m (forward %v) in %q",
		state.requestedDistance, state.forward, drivingFrame)

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
		goalInBase, err := mb.goalInBase(cfg, goalInDriving, drivingFrame)
		if err != nil {
			mb.logger.CWarnf(ctx, "cannot determine robot pose for linear: %v", err)
			return errors.Wrap(ErrNoPoseForTranslation, err.Error())
		}

		obstacleDist := mb.checker.ObstacleDistance(state.forward).Forward
		tick := state.step(cfg, mb.clock.Now(), goalInBase, obstacleDist, handle.IsPreemptRequested())

		if mb.lateralErrors != nil {
			if err := mb.lateralErrors.PublishLateralError(ctx, tick.lateral); err != nil {
				mb.logger.CDebugw(ctx, "cannot publish lateral error", "error", err)
			}
		}
		if tick.pausing {
			mb.logger.CInfof(ctx, "pausing for obstacle at %.3f m", obstacleDist)
		}
		if tick.resuming {
			mb.logger.CInfof(ctx, "resuming after obstacle has gone")
		}

		if tick.done {
			if tick.err != nil {
				return tick.err
			}
			mb.logger.CInfof(ctx, "done linear, error: x: %.3f m, y: %.3f m", goalInBase.X, goalInBase.Y)
			return mb.sendCmd(ctx, 0, 0)
		}

		if err := mb.sendCmd(ctx, tick.lateral.Rotation, tick.velocity); err != nil {
			return err
		}
		mb.logger.CDebugw(ctx, "translating",
			"dist_remaining", tick.distRemaining,
			"linear_velocity", tick.velocity,
			"lateral_error", tick.lateral.Error,
			"rotation", tick.lateral.Rotation,
			"obstacle_dist", obstacleDist)
	}
}

// goalInBase returns the goal position relative to the robot, flattened to the ground plane.
func (mb *MoveBasic) goalInBase(cfg config.Config, goalInDriving spatialmath.Pose, drivingFrame string) (r3.Vector, error) {
	drivingInBase, err := mb.transforms.Transform(drivingFrame, cfg.BaseFrame)
	if err != nil {
		return r3.Vector{}, err
	}
	p := spatialmath.Compose(drivingInBase, goalInDriving).Point()
	return r3.Vector{X: p.X, Y: p.Y}, nil
}
