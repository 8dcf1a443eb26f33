package mqtt

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/movebasic/action"
	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/movebasic"
	"go.viam.com/movebasic/spatialmath"
)

// Vector3 is a JSON encoded vector.
type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a JSON encoded orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// PoseMessage is a position and orientation.
type PoseMessage struct {
	Position    Vector3    `json:"position"`
	Orientation Quaternion `json:"orientation"`
}

// PoseStamped is a pose in a named frame.
type PoseStamped struct {
	FrameID string      `json:"frame_id"`
	Pose    PoseMessage `json:"pose"`
}

// Twist is a velocity command for the base.
type Twist struct {
	Linear  Vector3 `json:"linear"`
	Angular Vector3 `json:"angular"`
}

// GoalMessage requests a new goal. Status updates for it are published on the status topic.
type GoalMessage struct {
	TargetPose PoseStamped `json:"target_pose"`
	Debug      bool        `json:"debug,omitempty"`
}

// CancelMessage cancels the goal with the given id, or every goal when the id is empty.
type CancelMessage struct {
	ID string `json:"id"`
}

// TransformMessage is the pose of a child frame in its parent frame.
type TransformMessage struct {
	FrameID      string      `json:"frame_id"`
	ChildFrameID string      `json:"child_frame_id"`
	Transform    PoseMessage `json:"transform"`
	Static       bool        `json:"static,omitempty"`
}

// TransformsMessage is a batch of frame updates.
type TransformsMessage struct {
	Transforms []TransformMessage `json:"transforms"`
}

// ObstaclePointsMessage replaces the obstacle points, expressed in the base frame.
type ObstaclePointsMessage struct {
	Points []Vector3 `json:"points"`
}

// PathMessage is the planned path of the current goal.
type PathMessage struct {
	FrameID string        `json:"frame_id"`
	Poses   []PoseMessage `json:"poses"`
}

// ObstacleDistanceMessage is one reading of the collision monitor.
type ObstacleDistanceMessage struct {
	Forward      float64 `json:"forward"`
	Left         float64 `json:"left"`
	Right        float64 `json:"right"`
	ForwardLeft  Vector3 `json:"forward_left"`
	ForwardRight Vector3 `json:"forward_right"`
}

// LateralErrorMessage is one tick of lateral control telemetry.
type LateralErrorMessage struct {
	XRemaining float64 `json:"x_remaining"`
	Error      float64 `json:"error"`
	Rotation   float64 `json:"rotation"`
}

// Pose2DMessage is a planar pose.
type Pose2DMessage struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// GoalStatusMessage reports the state of a goal and its latest feedback.
type GoalStatusMessage struct {
	ID      string        `json:"id"`
	State   string        `json:"state"`
	Message string        `json:"message,omitempty"`
	Phase   string        `json:"phase"`
	Frame   string        `json:"frame,omitempty"`
	Robot   Pose2DMessage `json:"robot"`
}

func vectorFrom(v r3.Vector) Vector3 {
	return Vector3{X: v.X, Y: v.Y, Z: v.Z}
}

func (v Vector3) vector() r3.Vector {
	return r3.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func poseMessageFrom(p spatialmath.Pose) PoseMessage {
	q := p.Orientation()
	return PoseMessage{
		Position:    vectorFrom(p.Point()),
		Orientation: Quaternion{X: q.Imag, Y: q.Jmag, Z: q.Kmag, W: q.Real},
	}
}

// pose converts the message without validating the orientation so an all-zero quaternion
// still reaches the controller and is rejected there.
func (p PoseMessage) pose() spatialmath.Pose {
	o := p.Orientation
	return spatialmath.NewPose(p.Position.vector(), quat.Number{Real: o.W, Imag: o.X, Jmag: o.Y, Kmag: o.Z})
}

func (g GoalMessage) goal() (movebasic.Goal, error) {
	if g.TargetPose.FrameID == "" {
		return movebasic.Goal{}, errors.New("goal has no frame_id")
	}
	goal := movebasic.NewGoal(g.TargetPose.Pose.pose(), g.TargetPose.FrameID)
	goal.Debug = g.Debug
	return goal, nil
}

func pathMessageFrom(frame string, path []spatialmath.Pose) PathMessage {
	msg := PathMessage{FrameID: frame, Poses: make([]PoseMessage, 0, len(path))}
	for _, p := range path {
		msg.Poses = append(msg.Poses, poseMessageFrom(p))
	}
	return msg
}

func obstacleDistanceMessageFrom(d collision.Distances) ObstacleDistanceMessage {
	return ObstacleDistanceMessage{
		Forward:      d.Forward,
		Left:         d.Left,
		Right:        d.Right,
		ForwardLeft:  vectorFrom(d.ForwardLeft),
		ForwardRight: vectorFrom(d.ForwardRight),
	}
}

func goalStatusMessageFrom(s action.Status) GoalStatusMessage {
	return GoalStatusMessage{
		ID:      s.ID.String(),
		State:   s.State.String(),
		Message: s.Message,
		Phase:   s.Feedback.Phase.String(),
		Frame:   s.Feedback.Frame,
		Robot:   Pose2DMessage{X: s.Feedback.Robot.X, Y: s.Feedback.Robot.Y, Yaw: s.Feedback.Robot.Yaw},
	}
}
