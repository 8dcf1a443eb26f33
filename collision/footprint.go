package collision

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Footprint is the robot outline in the base frame: a rectangle extending Front metres ahead of
// the base origin, Back metres behind, and HalfWidth metres to either side.
type Footprint struct {
	HalfWidth float64 `json:"half_width"`
	Front     float64 `json:"front"`
	Back      float64 `json:"back"`
}

// DefaultFootprint is a small differential drive robot.
var DefaultFootprint = Footprint{HalfWidth: 0.2, Front: 0.2, Back: 0.2}

// Validate ensures all parts of the footprint are valid.
func (f Footprint) Validate() error {
	if f.HalfWidth <= 0 {
		return errors.Errorf("footprint half width must be positive, got %v", f.HalfWidth)
	}
	if f.Front < 0 || f.Back < 0 {
		return errors.Errorf("footprint extents must be non-negative, got front %v back %v", f.Front, f.Back)
	}
	return nil
}

// Contains reports whether the xy projection of p lies inside the footprint.
func (f Footprint) Contains(p r3.Vector) bool {
	return p.X <= f.Front && p.X >= -f.Back && math.Abs(p.Y) <= f.HalfWidth
}

// rotatedContains reports whether p lies inside the footprint after the robot has turned by
// theta about its origin. This is the same as turning the point by -theta.
func (f Footprint) rotatedContains(p r3.Vector, theta float64) bool {
	s, c := math.Sincos(-theta)
	return f.Contains(r3.Vector{X: c*p.X - s*p.Y, Y: s*p.X + c*p.Y})
}
