package inject

import (
	"go.viam.com/movebasic/collision"
)

// Checker is an injected collision checker.
type Checker struct {
	collision.Checker
	ObstacleDistanceFunc func(forward bool) collision.Distances
	ObstacleAngleFunc    func(positive bool) float64
	SetMinSideDistFunc   func(minSideDist float64)
}

// ObstacleDistance calls the injected ObstacleDistance or the real version.
func (c *Checker) ObstacleDistance(forward bool) collision.Distances {
	if c.ObstacleDistanceFunc == nil {
		return c.Checker.ObstacleDistance(forward)
	}
	return c.ObstacleDistanceFunc(forward)
}

// ObstacleAngle calls the injected ObstacleAngle or the real version.
func (c *Checker) ObstacleAngle(positive bool) float64 {
	if c.ObstacleAngleFunc == nil {
		return c.Checker.ObstacleAngle(positive)
	}
	return c.ObstacleAngleFunc(positive)
}

// SetMinSideDist calls the injected SetMinSideDist or the real version.
func (c *Checker) SetMinSideDist(minSideDist float64) {
	if c.SetMinSideDistFunc == nil {
		c.Checker.SetMinSideDist(minSideDist)
		return
	}
	c.SetMinSideDistFunc(minSideDist)
}
