package spatialmath

import "math"

// Pose2D is the planar part of a pose.
type Pose2D struct {
	X   float64
	Y   float64
	Yaw float64
}

// PoseOf extracts x, y and yaw from a pose.
func PoseOf(p Pose) Pose2D {
	return Pose2D{X: p.point.X, Y: p.point.Y, Yaw: NormalizeAngle(Yaw(p.orientation))}
}

// NormalizeAngle maps a finite angle into (-π, π].
func NormalizeAngle(angle float64) float64 {
	angle = math.Remainder(angle, 2*math.Pi)
	if angle <= -math.Pi {
		angle += 2 * math.Pi
	}
	return angle
}
