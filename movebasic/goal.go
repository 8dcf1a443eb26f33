package movebasic

import (
	"strings"

	"go.viam.com/movebasic/spatialmath"
)

// A Goal is a target pose expressed in a named frame.
type Goal struct {
	Pose    spatialmath.Pose
	FrameID string
	// Debug requests debug level controller logs for this goal only.
	Debug bool
}

// NewGoal returns a goal, dropping any leading "/" from the frame id.
func NewGoal(pose spatialmath.Pose, frameID string) Goal {
	return Goal{Pose: pose, FrameID: strings.TrimPrefix(frameID, "/")}
}

// MotionPhase identifies one segment of goal execution.
type MotionPhase int

// The phases of a goal in execution order.
const (
	PhasePlanning MotionPhase = iota
	PhaseInitialRotation
	PhaseTranslation
	PhaseFinalRotation
)

func (p MotionPhase) String() string {
	switch p {
	case PhasePlanning:
		return "planning"
	case PhaseInitialRotation:
		return "initial rotation"
	case PhaseTranslation:
		return "translation"
	case PhaseFinalRotation:
		return "final rotation"
	}
	return "unknown"
}

// Feedback is reported to the goal's requester when a phase starts.
type Feedback struct {
	Phase MotionPhase
	// Frame is the planning frame for PhasePlanning and the driving frame otherwise.
	Frame string
	// Robot is the robot pose in Frame when the phase started.
	Robot spatialmath.Pose2D
}

// A GoalHandle connects one executing goal to whoever requested it.
type GoalHandle interface {
	// IsPreemptRequested reports whether the requester wants the goal stopped. It is polled
	// once per control tick.
	IsPreemptRequested() bool
	// PublishFeedback reports progress.
	PublishFeedback(fb Feedback)
	// SetSucceeded marks the goal reached.
	SetSucceeded()
	// SetAborted marks the goal failed with a human readable reason.
	SetAborted(msg string)
}

// ResolvedFrames are the frames chosen for one goal. Planning is fixed once the path is
// computed, Driving is resolved again at the start of every phase.
type ResolvedFrames struct {
	Planning string
	Driving  string
}

// plan is the straight line path computed once per goal in the planning frame.
type plan struct {
	frame string
	goal  spatialmath.Pose
	robot spatialmath.Pose
}
