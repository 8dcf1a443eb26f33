// Package spatialmath defines spatial mathematical operations.
// Poses are rigid transforms. Composition follows the convention that a pose of frame A
// expressed in frame B is obtained as Compose(B_from_A, A_in_A); swapping the arguments
// silently changes which frame the result is expressed in.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

const floatEpsilon = 1e-6

// Pose is a translation followed by a rotation. The zero value is not a valid pose; use
// NewZeroPose.
type Pose struct {
	point       r3.Vector
	orientation quat.Number
}

// NewZeroPose returns the identity pose.
func NewZeroPose() Pose {
	return Pose{orientation: quat.Number{Real: 1}}
}

// NewPose returns a pose at the given point with the given orientation. The orientation is
// normalized when it has a usable norm and left as-is otherwise, so invalid input stays
// detectable by ValidOrientation.
func NewPose(point r3.Vector, orientation quat.Number) Pose {
	return Pose{point: point, orientation: normalize(orientation)}
}

// NewPoseFromPoint returns a pose at the given point with no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{point: point, orientation: quat.Number{Real: 1}}
}

// NewPoseFromXYYaw returns a planar pose.
func NewPoseFromXYYaw(x, y, yaw float64) Pose {
	return Pose{point: r3.Vector{X: x, Y: y}, orientation: QuaternionFromYaw(yaw)}
}

// Point returns the translation of the pose.
func (p Pose) Point() r3.Vector {
	return p.point
}

// Orientation returns the rotation of the pose as a unit quaternion.
func (p Pose) Orientation() quat.Number {
	return p.orientation
}

// Compose returns the pose obtained by applying b in the frame of a.
func Compose(a, b Pose) Pose {
	return Pose{
		point:       a.point.Add(rotate(a.orientation, b.point)),
		orientation: normalize(quat.Mul(a.orientation, b.orientation)),
	}
}

// PoseInverse returns the pose that undoes p.
func PoseInverse(p Pose) Pose {
	inv := quat.Conj(p.orientation)
	return Pose{
		point:       rotate(inv, p.point).Mul(-1),
		orientation: inv,
	}
}

// PoseBetween returns the pose that takes a to b, i.e. Compose(a, PoseBetween(a, b)) == b.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual returns whether two poses describe the same transform within a small tolerance.
func PoseAlmostEqual(a, b Pose) bool {
	return a.point.Sub(b.point).Norm() < floatEpsilon &&
		QuaternionAlmostEqual(a.orientation, b.orientation, floatEpsilon)
}

func rotate(q quat.Number, v r3.Vector) r3.Vector {
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

func normalize(q quat.Number) quat.Number {
	norm := quat.Abs(q)
	if norm < floatEpsilon || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return q
	}
	return quat.Scale(1/norm, q)
}
