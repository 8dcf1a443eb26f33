// Package collision answers how far the robot may drive or turn before touching an obstacle.
package collision

import (
	"github.com/golang/geo/r3"
)

// Distances is one obstacle reading in the base frame. Forward is the free distance along the
// direction of travel, Left and Right the free distance beside the footprint. ForwardLeft and
// ForwardRight are the nearest points in the side bands ahead of the robot, or the zero vector.
type Distances struct {
	Forward      float64
	Left         float64
	Right        float64
	ForwardLeft  r3.Vector
	ForwardRight r3.Vector
}

// A Checker reports obstacle clearance around the robot.
type Checker interface {
	// ObstacleDistance returns clearance for travel forward, or backward when forward is false.
	ObstacleDistance(forward bool) Distances
	// ObstacleAngle returns the signed angle the robot may rotate, in the positive (counter
	// clockwise) direction when positive is true, before its footprint touches an obstacle.
	ObstacleAngle(positive bool) float64
	// SetMinSideDist sets the width of the side bands.
	SetMinSideDist(minSideDist float64)
}
