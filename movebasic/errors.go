package movebasic

import "github.com/pkg/errors"

// Every failed goal returns an error wrapping one of these.
var (
	// ErrInvalidOrientation is returned for a goal whose orientation is not a finite rotation.
	ErrInvalidOrientation = errors.New("invalid orientation specified")
	// ErrNoLocalizationForPlanning is returned when neither planning frame locates the goal or
	// the robot.
	ErrNoLocalizationForPlanning = errors.New("no localization available for planning")
	// ErrNoLocalizationForDriving is returned when neither driving frame locates the robot or
	// the goal.
	ErrNoLocalizationForDriving = errors.New("cannot determine robot pose in driving frame")
	// ErrNoPoseForRotation is returned when the robot pose is lost during a rotation.
	ErrNoPoseForRotation = errors.New("cannot determine robot pose for rotation")
	// ErrNoPoseForTranslation is returned when the robot pose is lost during a translation.
	ErrNoPoseForTranslation = errors.New("cannot determine robot pose for linear")
	// ErrObstacleTimeout is returned when an obstacle blocks the path for too long.
	ErrObstacleTimeout = errors.New("aborting due to obstacle")
	// ErrNoProgressTimeout is returned when the distance to the goal stops improving for too
	// long.
	ErrNoProgressTimeout = errors.New("no progress towards goal for longer than timeout")
	// ErrPreempted is returned when the goal was cancelled by its requester.
	ErrPreempted = errors.New("stopping due to preempt")
	// ErrGoalInProgress is returned when a goal is submitted while another is executing.
	ErrGoalInProgress = errors.New("another goal is already executing")
)
