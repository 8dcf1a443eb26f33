package spatialmath

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// QuaternionFromYaw returns the rotation of yaw radians about the vertical axis.
func QuaternionFromYaw(yaw float64) quat.Number {
	return quat.Number{Real: math.Cos(yaw / 2), Kmag: math.Sin(yaw / 2)}
}

// Yaw returns the rotation about the vertical axis of q, ignoring roll and pitch.
func Yaw(q quat.Number) float64 {
	return math.Atan2(
		2*(q.Real*q.Kmag+q.Imag*q.Jmag),
		1-2*(q.Jmag*q.Jmag+q.Kmag*q.Kmag),
	)
}

// ValidOrientation returns false if q has non-finite components or cannot be normalized.
func ValidOrientation(q quat.Number) bool {
	for _, v := range []float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return quat.Abs(q) > floatEpsilon
}

// QuaternionAlmostEqual is an equality test for two quaternions that also treats q and -q as
// the same rotation.
func QuaternionAlmostEqual(a, b quat.Number, tol float64) bool {
	same := func(a, b quat.Number) bool {
		return math.Abs(a.Real-b.Real) < tol &&
			math.Abs(a.Imag-b.Imag) < tol &&
			math.Abs(a.Jmag-b.Jmag) < tol &&
			math.Abs(a.Kmag-b.Kmag) < tol
	}
	return same(a, b) || same(a, quat.Scale(-1, b))
}
