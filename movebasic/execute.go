package movebasic

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/spatialmath"
)

// Execute drives to goal and reports the outcome through handle: SetSucceeded when the goal
// is reached, SetAborted with a reason otherwise. The returned error wraps one of the Err
// values of this package, or the context error when ctx ends first. The base is stopped on
// every failure. Only one goal may execute at a time.
func (mb *MoveBasic) Execute(ctx context.Context, goal Goal, handle GoalHandle) error {
	if !mb.busy.CompareAndSwap(false, true) {
		handle.SetAborted(ErrGoalInProgress.Error())
		return ErrGoalInProgress
	}
	defer mb.busy.Store(false)

	err := mb.execute(ctx, goal, handle)
	if err == nil {
		mb.logger.CInfof(ctx, "goal reached")
		handle.SetSucceeded()
		return nil
	}

	if stopErr := mb.base.Stop(context.WithoutCancel(ctx)); stopErr != nil {
		err = errors.Wrapf(err, "also failed to stop base: %v", stopErr)
	}
	if errors.Is(err, ErrPreempted) {
		mb.logger.CInfof(ctx, "%v", err)
	} else {
		mb.logger.CErrorf(ctx, "aborting goal: %v", err)
	}
	handle.SetAborted(err.Error())
	return err
}

func (mb *MoveBasic) execute(ctx context.Context, goal Goal, handle GoalHandle) error {
	start := spatialmath.PoseOf(goal.Pose)
	mb.logger.CInfof(ctx, "received goal %.3f %.3f %.2f degrees in %q",
		start.X, start.Y, rad2deg(start.Yaw), goal.FrameID)

	if !spatialmath.ValidOrientation(goal.Pose.Orientation()) {
		return ErrInvalidOrientation
	}

	// Planning happens once, before anything moves.
	cfg := mb.store.Get()
	p, err := mb.resolvePlan(ctx, cfg, goal)
	if err != nil {
		return err
	}
	goalInPlanning, robotInPlanning := spatialmath.PoseOf(p.goal), spatialmath.PoseOf(p.robot)
	mb.logger.CInfof(ctx, "goal in %q: %.3f %.3f %.2f degrees", p.frame,
		goalInPlanning.X, goalInPlanning.Y, rad2deg(goalInPlanning.Yaw))
	handle.PublishFeedback(Feedback{Phase: PhasePlanning, Frame: p.frame, Robot: robotInPlanning})
	mb.publishPath(ctx, p)

	// The goal is pinned in the driving frame before anything moves, so a goal given in a frame
	// attached to the robot stays where it was when the goal started.
	frames := ResolvedFrames{Planning: p.frame}
	frames.Driving, err = mb.resolveDrivingFrame(ctx, cfg)
	if err != nil {
		return err
	}
	pins, err := mb.pinGoal(cfg, goal, frames.Driving)
	if err != nil {
		return err
	}
	goalInBase, err := mb.goalInBase(cfg, pins[frames.Driving], frames.Driving)
	if err != nil {
		return errors.Wrap(ErrNoLocalizationForDriving, err.Error())
	}
	mb.logger.CInfof(ctx, "goal in %q: %.3f %.3f", cfg.BaseFrame, goalInBase.X, goalInBase.Y)

	dist := math.Hypot(goalInBase.X, goalInBase.Y)
	reverseWithoutTurning := dist < cfg.ReverseWithoutTurningThreshold && goalInBase.X < 0

	requestedYaw := 0.
	if dist > cfg.LinearTolerance {
		requestedYaw = math.Atan2(goalInBase.Y, goalInBase.X)
		if reverseWithoutTurning {
			// Face directly away from the goal.
			requestedYaw = spatialmath.NormalizeAngle(requestedYaw - math.Pi)
		}

		if math.Abs(requestedYaw) > cfg.AngularTolerance {
			if err := mb.runRotation(ctx, PhaseInitialRotation, requestedYaw, frames.Driving, handle); err != nil {
				return err
			}
		}
		if err := mb.settle(ctx, handle); err != nil {
			return err
		}

		cfg = mb.store.Get()
		frames.Driving, err = mb.refreshDrivingFrame(ctx, cfg, frames.Driving, pins)
		if err != nil {
			return err
		}
		mb.publishFeedback(handle, PhaseTranslation, cfg, frames.Driving)
		if err := mb.moveLinear(ctx, pins[frames.Driving], frames.Driving, handle); err != nil {
			return errors.WithMessage(err, PhaseTranslation.String())
		}
		if err := mb.settle(ctx, handle); err != nil {
			return err
		}
	}

	cfg = mb.store.Get()
	if frames.Planning == cfg.BaseFrame {
		// The planning frame turned with the robot, so the heading is checked against the goal
		// pinned in the driving frame instead.
		frames.Driving, err = mb.refreshDrivingFrame(ctx, cfg, frames.Driving, pins)
		if err != nil {
			return err
		}
		robot, err := mb.robotPose(cfg, frames.Driving)
		if err != nil {
			return errors.WithMessage(errors.Wrap(ErrNoPoseForRotation, err.Error()), PhaseFinalRotation.String())
		}
		finalYaw := spatialmath.NormalizeAngle(spatialmath.PoseOf(pins[frames.Driving]).Yaw - robot.Yaw)
		if math.Abs(finalYaw) > cfg.AngularTolerance {
			return mb.runRotation(ctx, PhaseFinalRotation, finalYaw, frames.Driving, handle)
		}
		return nil
	}

	finalYaw := mb.finalRotation(ctx, cfg, frames.Planning, goalInPlanning.Yaw,
		spatialmath.NormalizeAngle(robotInPlanning.Yaw+requestedYaw))
	if math.Abs(finalYaw) > cfg.AngularTolerance {
		frames.Driving, err = mb.refreshDrivingFrame(ctx, cfg, frames.Driving, pins)
		if err != nil {
			return err
		}
		if err := mb.runRotation(ctx, PhaseFinalRotation, finalYaw, frames.Driving, handle); err != nil {
			return err
		}
	}
	return nil
}

// settle waits for localization to catch up after a motion phase. A preempt requested during
// the wait ends the goal.
func (mb *MoveBasic) settle(ctx context.Context, handle GoalHandle) error {
	if err := mb.sleep(ctx, mb.store.Get().LocalizationLatencyDuration()); err != nil {
		return err
	}
	if handle.IsPreemptRequested() {
		return ErrPreempted
	}
	return nil
}

// goalPins holds the goal pose in each driving frame, fixed when the goal started.
type goalPins map[string]spatialmath.Pose

// pinGoal expresses the goal in the current driving frame, which must succeed, and in the
// other configured driving frames where possible.
func (mb *MoveBasic) pinGoal(cfg config.Config, goal Goal, drivingFrame string) (goalPins, error) {
	goalInDriving, err := mb.goalIn(goal, drivingFrame)
	if err != nil {
		return nil, err
	}
	pins := goalPins{drivingFrame: goalInDriving}
	for _, frame := range []string{cfg.PreferredDrivingFrame, cfg.AlternateDrivingFrame} {
		if _, ok := pins[frame]; ok {
			continue
		}
		if pose, err := mb.poseIn(goal, frame); err == nil {
			pins[frame] = pose
		}
	}
	return pins, nil
}

// refreshDrivingFrame resolves the driving frame again. A frame the goal was not pinned in is
// reached from the current driving frame rather than from the goal's own frame, which may
// have moved with the robot since.
func (mb *MoveBasic) refreshDrivingFrame(
	ctx context.Context,
	cfg config.Config,
	current string,
	pins goalPins,
) (string, error) {
	next, err := mb.resolveDrivingFrame(ctx, cfg)
	if err != nil {
		return "", err
	}
	if next != current {
		mb.logger.CInfof(ctx, "driving frame changed from %q to %q", current, next)
	}
	if _, ok := pins[next]; ok {
		return next, nil
	}
	currentInNext, err := mb.transforms.Transform(current, next)
	if err != nil {
		return "", errors.Wrapf(ErrNoLocalizationForDriving,
			"cannot carry goal from %q to %q: %v", current, next, err)
	}
	pins[next] = spatialmath.Compose(currentInNext, pins[current])
	return next, nil
}

func (mb *MoveBasic) runRotation(
	ctx context.Context,
	phase MotionPhase,
	yaw float64,
	drivingFrame string,
	handle GoalHandle,
) error {
	mb.publishFeedback(handle, phase, mb.store.Get(), drivingFrame)
	if err := mb.rotate(ctx, yaw, drivingFrame, handle); err != nil {
		return errors.WithMessage(err, phase.String())
	}
	return nil
}

// finalRotation returns the rotation still needed to reach goalYaw. The robot heading is read
// from the planning frame when it is available, otherwise it is assumed to be predictedYaw.
func (mb *MoveBasic) finalRotation(
	ctx context.Context,
	cfg config.Config,
	planningFrame string,
	goalYaw, predictedYaw float64,
) float64 {
	robotYaw := predictedYaw
	robot, err := mb.robotPose(cfg, planningFrame)
	if err == nil {
		robotYaw = robot.Yaw
	} else {
		mb.logger.CWarnf(ctx, "cannot locate robot in %q for final rotation, assuming heading %.2f degrees: %v",
			planningFrame, rad2deg(predictedYaw), err)
	}
	return spatialmath.NormalizeAngle(goalYaw - robotYaw)
}

// goalIn expresses the goal in the driving frame.
func (mb *MoveBasic) goalIn(goal Goal, drivingFrame string) (spatialmath.Pose, error) {
	pose, err := mb.poseIn(goal, drivingFrame)
	if err != nil {
		return spatialmath.Pose{}, errors.Wrapf(ErrNoLocalizationForDriving, "cannot determine goal pose in %q: %v",
			drivingFrame, err)
	}
	return pose, nil
}

func (mb *MoveBasic) publishFeedback(handle GoalHandle, phase MotionPhase, cfg config.Config, frame string) {
	fb := Feedback{Phase: phase, Frame: frame}
	if robot, err := mb.robotPose(cfg, frame); err == nil {
		fb.Robot = robot
	}
	handle.PublishFeedback(fb)
}

func (mb *MoveBasic) publishPath(ctx context.Context, p plan) {
	if mb.paths == nil {
		return
	}
	if err := mb.paths.PublishPath(ctx, p.frame, []spatialmath.Pose{p.robot, p.goal}); err != nil {
		mb.logger.CWarnf(ctx, "cannot publish path: %v", err)
	}
}
