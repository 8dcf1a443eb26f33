package movebasic

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/spatialmath"
)

// resolvePlan picks the planning frame and locates the goal and the robot in it. With no
// preferred planning frame the goal's own frame is used. Otherwise the preferred frame is
// tried, then the alternate.
func (mb *MoveBasic) resolvePlan(ctx context.Context, cfg config.Config, goal Goal) (plan, error) {
	p := plan{frame: goal.FrameID, goal: goal.Pose}
	if cfg.PreferredPlanningFrame != "" {
		goalInPreferred, err := mb.poseIn(goal, cfg.PreferredPlanningFrame)
		if err == nil {
			p.frame, p.goal = cfg.PreferredPlanningFrame, goalInPreferred
		} else {
			mb.logger.CWarnf(ctx, "cannot plan in %q frame (%v), will attempt to plan in %q frame",
				cfg.PreferredPlanningFrame, err, cfg.AlternatePlanningFrame)
			goalInAlternate, err := mb.poseIn(goal, cfg.AlternatePlanningFrame)
			if err != nil {
				return plan{}, errors.Wrapf(ErrNoLocalizationForPlanning, "cannot locate goal: %v", err)
			}
			p.frame, p.goal = cfg.AlternatePlanningFrame, goalInAlternate
		}
	}

	robot, err := mb.transforms.Transform(cfg.BaseFrame, p.frame)
	if err != nil {
		return plan{}, errors.Wrapf(ErrNoLocalizationForPlanning, "cannot locate robot in %q: %v", p.frame, err)
	}
	p.robot = robot
	return p, nil
}

// resolveDrivingFrame picks the frame to drive in: the preferred driving frame if the robot
// can be located in it, otherwise the alternate.
func (mb *MoveBasic) resolveDrivingFrame(ctx context.Context, cfg config.Config) (string, error) {
	_, err := mb.transforms.Transform(cfg.PreferredDrivingFrame, cfg.BaseFrame)
	if err == nil {
		return cfg.PreferredDrivingFrame, nil
	}
	mb.logger.CWarnf(ctx, "%q not available (%v), attempting to drive using %q frame",
		cfg.PreferredDrivingFrame, err, cfg.AlternateDrivingFrame)
	if _, err := mb.transforms.Transform(cfg.AlternateDrivingFrame, cfg.BaseFrame); err != nil {
		return "", errors.Wrap(ErrNoLocalizationForDriving, err.Error())
	}
	return cfg.AlternateDrivingFrame, nil
}

// poseIn expresses the goal pose in frame.
func (mb *MoveBasic) poseIn(goal Goal, frame string) (spatialmath.Pose, error) {
	if goal.FrameID == frame {
		return goal.Pose, nil
	}
	goalFrameInTarget, err := mb.transforms.Transform(goal.FrameID, frame)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.Compose(goalFrameInTarget, goal.Pose), nil
}

// robotPose returns the planar pose of the base in frame.
func (mb *MoveBasic) robotPose(cfg config.Config, frame string) (spatialmath.Pose2D, error) {
	pose, err := mb.transforms.Transform(cfg.BaseFrame, frame)
	if err != nil {
		return spatialmath.Pose2D{}, err
	}
	return spatialmath.PoseOf(pose), nil
}
