package referenceframe

import (
	"math"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/movebasic/spatialmath"
)

func TestFrameSystemTransform(t *testing.T) {
	fs := NewFrameSystem(clock.NewMock(), 0)
	// odom is offset from map, robot is at (1, 0) in odom facing +y
	test.That(t, fs.SetTransform("odom", "map", spatialmath.NewPoseFromXYYaw(2, 0, 0)), test.ShouldBeNil)
	test.That(t, fs.SetTransform("base_footprint", "odom", spatialmath.NewPoseFromXYYaw(1, 0, math.Pi/2)), test.ShouldBeNil)

	t.Run("base in map", func(t *testing.T) {
		pose, err := fs.Transform("base_footprint", "map")
		test.That(t, err, test.ShouldBeNil)
		p := spatialmath.PoseOf(pose)
		test.That(t, p.X, test.ShouldAlmostEqual, 3)
		test.That(t, p.Y, test.ShouldAlmostEqual, 0)
		test.That(t, p.Yaw, test.ShouldAlmostEqual, math.Pi/2)
	})

	t.Run("map point expressed in base", func(t *testing.T) {
		mapInBase, err := fs.Transform("map", "base_footprint")
		test.That(t, err, test.ShouldBeNil)
		goalInMap := spatialmath.NewPoseFromXYYaw(3, 2, 0)
		p := spatialmath.PoseOf(spatialmath.Compose(mapInBase, goalInMap))
		test.That(t, p.X, test.ShouldAlmostEqual, 2)
		test.That(t, p.Y, test.ShouldAlmostEqual, 0)
		test.That(t, p.Yaw, test.ShouldAlmostEqual, -math.Pi/2)
	})

	t.Run("same frame", func(t *testing.T) {
		pose, err := fs.Transform("odom", "odom")
		test.That(t, err, test.ShouldBeNil)
		test.That(t, spatialmath.PoseAlmostEqual(pose, spatialmath.NewZeroPose()), test.ShouldBeTrue)
	})

	t.Run("unknown frame", func(t *testing.T) {
		_, err := fs.Transform("base_footprint", "nowhere")
		test.That(t, errors.Is(err, ErrTransformNotAvailable), test.ShouldBeTrue)
	})

	t.Run("disconnected trees", func(t *testing.T) {
		test.That(t, fs.SetTransform("laser", "other_root", spatialmath.NewZeroPose()), test.ShouldBeNil)
		_, err := fs.Transform("laser", "map")
		test.That(t, errors.Is(err, ErrTransformNotAvailable), test.ShouldBeTrue)
	})

	test.That(t, fs.FrameNames(), test.ShouldResemble,
		[]string{"base_footprint", "laser", "map", "odom", "other_root"})
}

func TestFrameSystemSetTransformErrors(t *testing.T) {
	fs := NewFrameSystem(nil, 0)
	test.That(t, fs.SetTransform("", "map", spatialmath.NewZeroPose()), test.ShouldNotBeNil)
	test.That(t, fs.SetTransform("map", "map", spatialmath.NewZeroPose()), test.ShouldNotBeNil)
	test.That(t, fs.SetTransform("odom", "map", spatialmath.NewZeroPose()), test.ShouldBeNil)
	test.That(t, fs.SetTransform("base", "odom", spatialmath.NewZeroPose()), test.ShouldBeNil)
	err := fs.SetTransform("map", "base", spatialmath.NewZeroPose())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "cycle")
}

func TestFrameSystemStaleness(t *testing.T) {
	clk := clock.NewMock()
	fs := NewFrameSystem(clk, time.Second)
	test.That(t, fs.SetTransform("odom", "map", spatialmath.NewZeroPose()), test.ShouldBeNil)
	test.That(t, fs.SetTransform("base", "odom", spatialmath.NewZeroPose()), test.ShouldBeNil)

	clk.Add(500 * time.Millisecond)
	test.That(t, fs.SetTransform("base", "odom", spatialmath.NewPoseFromXYYaw(1, 0, 0)), test.ShouldBeNil)

	clk.Add(700 * time.Millisecond)
	_, err := fs.Transform("base", "odom")
	test.That(t, err, test.ShouldBeNil)
	_, err = fs.Transform("base", "map")
	test.That(t, errors.Is(err, ErrTransformNotAvailable), test.ShouldBeTrue)
	test.That(t, err.Error(), test.ShouldContainSubstring, "stale")

	fs.RemoveFrame("odom")
	_, err = fs.Transform("base", "map")
	test.That(t, errors.Is(err, ErrTransformNotAvailable), test.ShouldBeTrue)
}

func TestFrameSystemStaticTransform(t *testing.T) {
	clk := clock.NewMock()
	fs := NewFrameSystem(clk, time.Second)
	test.That(t, fs.SetStaticTransform("odom", "map", spatialmath.NewPoseFromXYYaw(1, 1, 0)), test.ShouldBeNil)
	test.That(t, fs.SetTransform("base", "odom", spatialmath.NewZeroPose()), test.ShouldBeNil)

	clk.Add(10 * time.Second)
	pose, err := fs.Transform("odom", "map")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, 1)

	_, err = fs.Transform("base", "map")
	test.That(t, errors.Is(err, ErrTransformNotAvailable), test.ShouldBeTrue)

	test.That(t, fs.SetTransform("base", "odom", spatialmath.NewPoseFromXYYaw(2, 0, 0)), test.ShouldBeNil)
	pose, err = fs.Transform("base", "map")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseOf(pose).X, test.ShouldAlmostEqual, 3)
	test.That(t, spatialmath.PoseOf(pose).Y, test.ShouldAlmostEqual, 1)
}
