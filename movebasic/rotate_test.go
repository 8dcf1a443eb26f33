package movebasic

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/spatialmath"
)

func TestStepRotation(t *testing.T) {
	cfg := config.Default()

	t.Run("saturates far from target", func(t *testing.T) {
		tick := stepRotation(cfg, 3, math.Pi, false)
		test.That(t, tick.done, test.ShouldBeFalse)
		test.That(t, tick.velocity, test.ShouldAlmostEqual, cfg.MaxTurningVelocity)
	})

	t.Run("sign follows remaining angle", func(t *testing.T) {
		tick := stepRotation(cfg, -0.5, -math.Pi, false)
		test.That(t, tick.velocity, test.ShouldBeLessThan, 0)
		test.That(t, tick.velocity, test.ShouldAlmostEqual, -math.Sqrt(2*cfg.AngularAcceleration*0.5))
	})

	t.Run("obstacle limits the approach", func(t *testing.T) {
		free := stepRotation(cfg, 1, math.Pi, false)
		blocked := stepRotation(cfg, 1, 0.05, false)
		test.That(t, blocked.velocity, test.ShouldBeLessThan, free.velocity)
		test.That(t, blocked.velocity, test.ShouldBeGreaterThanOrEqualTo, cfg.MinTurningVelocity)
	})

	t.Run("floor before tolerance", func(t *testing.T) {
		tick := stepRotation(cfg, 0.011, math.Pi, false)
		test.That(t, tick.done, test.ShouldBeFalse)
		test.That(t, tick.velocity, test.ShouldAlmostEqual, math.Max(cfg.MinTurningVelocity, 0.011*cfg.RotationalGain))
	})

	t.Run("zero after tolerance", func(t *testing.T) {
		tick := stepRotation(cfg, 0.005, math.Pi, false)
		test.That(t, tick.done, test.ShouldBeTrue)
		test.That(t, tick.err, test.ShouldBeNil)
		test.That(t, tick.velocity, test.ShouldEqual, 0)
	})

	t.Run("preempt wins", func(t *testing.T) {
		tick := stepRotation(cfg, 0.005, math.Pi, true)
		test.That(t, tick.done, test.ShouldBeTrue)
		test.That(t, tick.err, test.ShouldEqual, ErrPreempted)
		test.That(t, tick.velocity, test.ShouldEqual, 0)
	})
}

func TestRotate(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	handle := &recordingHandle{}

	err := h.run(t, func() error {
		return h.mb.rotate(context.Background(), math.Pi/2, "odom", handle)
	})
	test.That(t, err, test.ShouldBeNil)

	commands := h.recorded()
	test.That(t, len(commands), test.ShouldBeGreaterThan, 10)
	test.That(t, len(commands), test.ShouldBeLessThan, 500)

	prevRemaining := math.Pi / 2
	for _, cmd := range commands[:len(commands)-1] {
		test.That(t, cmd.linear, test.ShouldEqual, 0)
		test.That(t, cmd.angular, test.ShouldBeGreaterThan, 0)
		remaining := math.Abs(spatialmath.NormalizeAngle(math.Pi/2 - cmd.pose.Yaw))
		test.That(t, remaining, test.ShouldBeLessThanOrEqualTo, prevRemaining)
		prevRemaining = remaining
	}
	last := commands[len(commands)-1]
	test.That(t, last.angular, test.ShouldEqual, 0)
	test.That(t, h.fakeBase.Pose().Yaw, test.ShouldAlmostEqual, math.Pi/2, config.Default().AngularTolerance)
}

func TestRotateAcrossPi(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{Yaw: 3 * math.Pi / 4})
	err := h.run(t, func() error {
		return h.mb.rotate(context.Background(), math.Pi/2, "odom", &recordingHandle{})
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.fakeBase.Pose().Yaw, test.ShouldAlmostEqual, -3*math.Pi/4, config.Default().AngularTolerance)
	for _, cmd := range h.recorded() {
		test.That(t, cmd.angular, test.ShouldBeGreaterThanOrEqualTo, 0)
	}
}

func TestRotateFailures(t *testing.T) {
	t.Run("lost pose", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		err := h.mb.rotate(context.Background(), 1, "nowhere", &recordingHandle{})
		test.That(t, errors.Is(err, ErrNoPoseForRotation), test.ShouldBeTrue)
	})

	t.Run("preempt", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		handle := &recordingHandle{}
		handle.preempt.Store(true)
		err := h.run(t, func() error {
			return h.mb.rotate(context.Background(), 1, "odom", handle)
		})
		test.That(t, errors.Is(err, ErrPreempted), test.ShouldBeTrue)
		test.That(t, h.fakeBase.Pose().Yaw, test.ShouldEqual, 0)
	})

	t.Run("cancelled context", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := h.mb.rotate(ctx, 1, "odom", &recordingHandle{})
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
	})
}
