package collision

import (
	"math"
	"sync"

	"github.com/golang/geo/r3"
)

// angleIncrement is the step used when sweeping the footprint through a rotation.
const angleIncrement = math.Pi / 180

// PointChecker is a Checker over a set of obstacle points expressed in the base frame, such as
// the returns of a planar range sensor. Points beyond the maximum range are ignored and
// distances with no obstacle report the maximum range.
type PointChecker struct {
	mu          sync.RWMutex
	footprint   Footprint
	maxRange    float64
	minSideDist float64
	points      []r3.Vector
}

// NewPointChecker returns a checker with no obstacle points.
func NewPointChecker(footprint Footprint, maxRange float64) (*PointChecker, error) {
	if err := footprint.Validate(); err != nil {
		return nil, err
	}
	return &PointChecker{footprint: footprint, maxRange: maxRange}, nil
}

// SetPoints replaces the obstacle points.
func (pc *PointChecker) SetPoints(points []r3.Vector) {
	inRange := make([]r3.Vector, 0, len(points))
	for _, p := range points {
		if math.Hypot(p.X, p.Y) <= pc.maxRange {
			inRange = append(inRange, p)
		}
	}
	pc.mu.Lock()
	pc.points = inRange
	pc.mu.Unlock()
}

// SetMinSideDist sets the width of the bands beside the footprint that are reported in
// ForwardLeft and ForwardRight.
func (pc *PointChecker) SetMinSideDist(minSideDist float64) {
	pc.mu.Lock()
	pc.minSideDist = minSideDist
	pc.mu.Unlock()
}

// ObstacleDistance returns the clearance ahead of the footprint in the direction of travel and
// beside it.
func (pc *PointChecker) ObstacleDistance(forward bool) Distances {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	sign, ahead, behind := 1., pc.footprint.Front, pc.footprint.Back
	if !forward {
		sign, ahead, behind = -1., pc.footprint.Back, pc.footprint.Front
	}
	halfWidth := pc.footprint.HalfWidth

	out := Distances{Forward: pc.maxRange, Left: pc.maxRange, Right: pc.maxRange}
	forwardLeft, forwardRight := math.Inf(1), math.Inf(1)
	for _, p := range pc.points {
		along := sign * p.X
		side := math.Abs(p.Y)
		switch {
		case along > ahead && side <= halfWidth:
			out.Forward = math.Min(out.Forward, along-ahead)
		case along > ahead && side <= halfWidth+pc.minSideDist:
			if p.Y > 0 && along < forwardLeft {
				forwardLeft = along
				out.ForwardLeft = p
			}
			if p.Y < 0 && along < forwardRight {
				forwardRight = along
				out.ForwardRight = p
			}
		case along >= -behind && along <= ahead && side > halfWidth:
			if p.Y > 0 {
				out.Left = math.Min(out.Left, p.Y-halfWidth)
			} else {
				out.Right = math.Min(out.Right, -p.Y-halfWidth)
			}
		}
	}
	return out
}

// ObstacleAngle sweeps the footprint in whole degree steps and returns the last angle reached
// before it would contain an obstacle point. Points already inside the footprint are ignored.
// With no obstacle the result is ±π.
func (pc *PointChecker) ObstacleAngle(positive bool) float64 {
	pc.mu.RLock()
	defer pc.mu.RUnlock()

	dir := 1.
	if !positive {
		dir = -1.
	}

	outside := make([]r3.Vector, 0, len(pc.points))
	for _, p := range pc.points {
		if !pc.footprint.Contains(p) {
			outside = append(outside, p)
		}
	}

	steps := int(math.Round(math.Pi / angleIncrement))
	for i := 1; i <= steps; i++ {
		theta := dir * float64(i) * angleIncrement
		for _, p := range outside {
			if pc.footprint.rotatedContains(p, theta) {
				return dir * float64(i-1) * angleIncrement
			}
		}
	}
	return dir * math.Pi
}
