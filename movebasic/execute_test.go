package movebasic

import (
	"context"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
	"gonum.org/v1/gonum/num/quat"

	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/referenceframe"
	"go.viam.com/movebasic/spatialmath"
)

func TestExecuteStraightAhead(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	handle := &recordingHandle{}

	err := h.run(t, func() error {
		return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(2, 0, 0), "map"), handle)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.succeeded, test.ShouldBeTrue)
	test.That(t, handle.aborted, test.ShouldEqual, "")
	test.That(t, handle.phases(), test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseTranslation})

	pose := h.fakeBase.Pose()
	test.That(t, math.Hypot(2-pose.X, pose.Y), test.ShouldBeLessThan, config.Default().LinearTolerance)
	for _, cmd := range h.recorded() {
		test.That(t, cmd.angular, test.ShouldEqual, 0)
		test.That(t, cmd.linear, test.ShouldBeGreaterThanOrEqualTo, 0)
	}

	test.That(t, h.paths.frame, test.ShouldEqual, "map")
	test.That(t, len(h.paths.path), test.ShouldEqual, 2)
	test.That(t, spatialmath.PoseOf(h.paths.path[0]), test.ShouldResemble, spatialmath.Pose2D{})
	test.That(t, spatialmath.PoseOf(h.paths.path[1]).X, test.ShouldAlmostEqual, 2)
}

func TestExecuteReverseWithoutTurning(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	handle := &recordingHandle{}

	err := h.run(t, func() error {
		return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(-0.2, 0, 0), "map"), handle)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.succeeded, test.ShouldBeTrue)
	test.That(t, handle.phases(), test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseTranslation})

	moved := false
	for _, cmd := range h.recorded() {
		test.That(t, cmd.linear, test.ShouldBeLessThanOrEqualTo, 0)
		moved = moved || cmd.linear < 0
	}
	test.That(t, moved, test.ShouldBeTrue)
	test.That(t, h.fakeBase.Pose().Yaw, test.ShouldEqual, 0)
	test.That(t, h.fakeBase.Pose().X, test.ShouldBeLessThan, -0.1)
}

func TestExecuteTurnDriveTurn(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	handle := &recordingHandle{}

	goal := NewGoal(spatialmath.NewPoseFromXYYaw(0, 1, math.Pi), "/map")
	err := h.run(t, func() error {
		return h.mb.Execute(context.Background(), goal, handle)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.phases(), test.ShouldResemble,
		[]MotionPhase{PhasePlanning, PhaseInitialRotation, PhaseTranslation, PhaseFinalRotation})
	test.That(t, handle.feedback[1].Frame, test.ShouldEqual, "map")

	pose := h.fakeBase.Pose()
	test.That(t, math.Hypot(pose.X, 1-pose.Y), test.ShouldBeLessThan, config.Default().LinearTolerance)
	test.That(t, math.Abs(spatialmath.NormalizeAngle(math.Pi-pose.Yaw)), test.ShouldBeLessThan, 0.02)
}

func TestExecuteBaseFrameGoal(t *testing.T) {
	for _, tc := range []struct {
		name  string
		start spatialmath.Pose2D
		goal  spatialmath.Pose
	}{
		{"straight ahead", spatialmath.Pose2D{}, spatialmath.NewPoseFromXYYaw(2, 0, 0)},
		{"to the left", spatialmath.Pose2D{}, spatialmath.NewPoseFromXYYaw(0, 1, 0)},
		{"diagonal with final turn", spatialmath.Pose2D{}, spatialmath.NewPoseFromXYYaw(1, 1, math.Pi/2)},
		{"away from odom origin", spatialmath.Pose2D{X: 1, Y: -1, Yaw: math.Pi / 2}, spatialmath.NewPoseFromXYYaw(1, 1, math.Pi/2)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, tc.start)
			handle := &recordingHandle{}

			err := h.run(t, func() error {
				return h.mb.Execute(context.Background(), NewGoal(tc.goal, "base_footprint"), handle)
			})
			test.That(t, err, test.ShouldBeNil)
			test.That(t, handle.succeeded, test.ShouldBeTrue)
			test.That(t, handle.feedback[0].Frame, test.ShouldEqual, "base_footprint")

			startPose := spatialmath.NewPoseFromXYYaw(tc.start.X, tc.start.Y, tc.start.Yaw)
			want := spatialmath.PoseOf(spatialmath.Compose(startPose, tc.goal))
			pose := h.fakeBase.Pose()
			test.That(t, math.Hypot(want.X-pose.X, want.Y-pose.Y), test.ShouldBeLessThan, config.Default().LinearTolerance)
			test.That(t, math.Abs(spatialmath.NormalizeAngle(want.Yaw-pose.Yaw)), test.ShouldBeLessThan,
				config.Default().AngularTolerance)
		})
	}
}

func TestExecuteDrivingFrameChange(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	test.That(t, h.frames.SetStaticTransform("odom", "map", spatialmath.NewPoseFromXYYaw(3, 2, 0.5)), test.ShouldBeNil)
	// map is lost once the initial rotation has finished.
	h.transforms.TransformFunc = func(from, to string) (spatialmath.Pose, error) {
		_, angular := h.fakeBase.Velocity()
		if (from == "map" || to == "map") && h.fakeBase.Pose().Yaw > 1.5 && angular == 0 {
			return spatialmath.Pose{}, referenceframe.NewFrameMissingError("map")
		}
		return h.frames.Transform(from, to)
	}

	handle := &recordingHandle{}
	err := h.run(t, func() error {
		return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(0, 1, 0), "base_footprint"), handle)
	})
	test.That(t, err, test.ShouldBeNil)
	phases := handle.phases()
	test.That(t, phases[:3], test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseInitialRotation, PhaseTranslation})
	test.That(t, handle.feedback[1].Frame, test.ShouldEqual, "map")
	test.That(t, handle.feedback[2].Frame, test.ShouldEqual, "odom")

	pose := h.fakeBase.Pose()
	test.That(t, math.Hypot(pose.X, 1-pose.Y), test.ShouldBeLessThan, config.Default().LinearTolerance)
	test.That(t, math.Abs(pose.Yaw), test.ShouldBeLessThan, config.Default().AngularTolerance)
}

func TestExecuteRotateInPlace(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	handle := &recordingHandle{}

	err := h.run(t, func() error {
		return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(0.02, 0, -math.Pi/2), "map"), handle)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.phases(), test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseFinalRotation})
	test.That(t, h.fakeBase.Pose().Yaw, test.ShouldAlmostEqual, -math.Pi/2, 0.02)
	test.That(t, h.fakeBase.Pose().X, test.ShouldEqual, 0)
}

func TestExecuteFrameFallback(t *testing.T) {
	h := newHarness(t, spatialmath.Pose2D{})
	// Without map the driving frame falls back to odom and planning to the alternate frame.
	h.frames.RemoveFrame("odom")
	_, err := h.store.Merge(map[string]interface{}{"preferred_planning_frame": "map"})
	test.That(t, err, test.ShouldBeNil)

	handle := &recordingHandle{}
	err = h.run(t, func() error {
		return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(0.5, 0, 0), "odom"), handle)
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, handle.feedback[0].Frame, test.ShouldEqual, "odom")
	test.That(t, handle.feedback[1].Frame, test.ShouldEqual, "odom")
	test.That(t, h.paths.frame, test.ShouldEqual, "odom")
}

func TestExecuteFailures(t *testing.T) {
	t.Run("invalid orientation", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		handle := &recordingHandle{}
		pose := spatialmath.NewPose(r3.Vector{X: 1}, quat.Number{Real: math.NaN()})
		err := h.mb.Execute(context.Background(), NewGoal(pose, "map"), handle)
		test.That(t, errors.Is(err, ErrInvalidOrientation), test.ShouldBeTrue)
		test.That(t, handle.aborted, test.ShouldEqual, err.Error())
		test.That(t, handle.succeeded, test.ShouldBeFalse)
	})

	t.Run("no planning frame", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		_, err := h.store.Merge(map[string]interface{}{
			"preferred_planning_frame": "earth",
			"alternate_planning_frame": "moon",
		})
		test.That(t, err, test.ShouldBeNil)
		handle := &recordingHandle{}
		err = h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(1, 0, 0), "map"), handle)
		test.That(t, errors.Is(err, ErrNoLocalizationForPlanning), test.ShouldBeTrue)
		test.That(t, handle.aborted, test.ShouldContainSubstring, "no localization available for planning")
	})

	t.Run("robot not in goal frame", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		test.That(t, h.frames.SetTransform("marker", "camera", spatialmath.NewZeroPose()), test.ShouldBeNil)
		err := h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(1, 0, 0), "marker"), &recordingHandle{})
		test.That(t, errors.Is(err, ErrNoLocalizationForPlanning), test.ShouldBeTrue)
	})

	t.Run("no driving frame", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		_, err := h.store.Merge(map[string]interface{}{
			"preferred_driving_frame": "earth",
			"alternate_driving_frame": "moon",
		})
		test.That(t, err, test.ShouldBeNil)
		err = h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(1, 0, 0), "map"), &recordingHandle{})
		test.That(t, errors.Is(err, ErrNoLocalizationForDriving), test.ShouldBeTrue)
	})

	t.Run("localization lost while rotating", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		h.transforms.TransformFunc = func(from, to string) (spatialmath.Pose, error) {
			if from == "base_footprint" && h.fakeBase.Pose().Yaw > math.Pi/4 {
				return spatialmath.Pose{}, referenceframe.NewFrameMissingError(from)
			}
			return h.frames.Transform(from, to)
		}
		handle := &recordingHandle{}
		err := h.run(t, func() error {
			return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(0, 1, math.Pi/2), "map"), handle)
		})
		test.That(t, errors.Is(err, ErrNoPoseForRotation), test.ShouldBeTrue)
		test.That(t, handle.phases(), test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseInitialRotation})
		_, angular := h.fakeBase.Velocity()
		test.That(t, angular, test.ShouldEqual, 0)
	})

	t.Run("preempted during translation", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		handle := &recordingHandle{}
		h.checker.ObstacleDistanceFunc = func(forward bool) collision.Distances {
			if h.fakeBase.Pose().X > 0.5 {
				handle.preempt.Store(true)
			}
			return collision.Distances{Forward: clearPath}
		}
		err := h.run(t, func() error {
			return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(3, 0, 0), "map"), handle)
		})
		test.That(t, errors.Is(err, ErrPreempted), test.ShouldBeTrue)
		test.That(t, handle.aborted, test.ShouldContainSubstring, "translation")
		linear, angular := h.fakeBase.Velocity()
		test.That(t, linear, test.ShouldEqual, 0)
		test.That(t, angular, test.ShouldEqual, 0)
	})

	t.Run("preempted while settling", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		handle := &recordingHandle{}
		// Preempt once the robot has stopped at the goal.
		settling := preemptingHandle{recordingHandle: handle, when: func() bool {
			linear, _ := h.fakeBase.Velocity()
			return linear == 0 && h.fakeBase.Pose().X > 1.8
		}}
		err := h.run(t, func() error {
			return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(2, 0, 0), "map"), settling)
		})
		test.That(t, errors.Is(err, ErrPreempted), test.ShouldBeTrue)
		test.That(t, handle.succeeded, test.ShouldBeFalse)
		test.That(t, handle.aborted, test.ShouldEqual, err.Error())
		test.That(t, handle.phases(), test.ShouldResemble, []MotionPhase{PhasePlanning, PhaseTranslation})
	})

	t.Run("blocked by obstacle", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		_, err := h.store.Merge(map[string]interface{}{"obstacle_wait_threshold": 1})
		test.That(t, err, test.ShouldBeNil)
		h.checker.ObstacleDistanceFunc = func(forward bool) collision.Distances {
			return collision.Distances{Forward: 0.2}
		}
		handle := &recordingHandle{}
		err = h.run(t, func() error {
			return h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(3, 0, 0), "map"), handle)
		})
		test.That(t, errors.Is(err, ErrObstacleTimeout), test.ShouldBeTrue)
		test.That(t, h.fakeBase.Pose().X, test.ShouldEqual, 0)
	})

	t.Run("one goal at a time", func(t *testing.T) {
		h := newHarness(t, spatialmath.Pose2D{})
		h.mb.busy.Store(true)
		handle := &recordingHandle{}
		err := h.mb.Execute(context.Background(), NewGoal(spatialmath.NewPoseFromXYYaw(1, 0, 0), "map"), handle)
		test.That(t, err, test.ShouldEqual, ErrGoalInProgress)
		test.That(t, handle.aborted, test.ShouldEqual, ErrGoalInProgress.Error())
	})
}

// preemptingHandle also requests preemption whenever when returns true.
type preemptingHandle struct {
	*recordingHandle
	when func() bool
}

func (h preemptingHandle) IsPreemptRequested() bool {
	return h.recordingHandle.IsPreemptRequested() || h.when()
}
