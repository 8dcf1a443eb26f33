// Package movebasic drives a wheeled base to a goal pose along a straight line: rotate to face
// the goal, drive to it while correcting lateral drift and yielding to obstacles, then rotate
// to the goal heading.
//
// Planning happens once in a slow but accurate frame (typically map). Each motion phase is
// executed in a fast but drifting frame (typically odom), with a pause between phases to let
// localization settle.
package movebasic

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"go.viam.com/movebasic/base"
	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/logging"
	"go.viam.com/movebasic/referenceframe"
	"go.viam.com/movebasic/spatialmath"
)

// ControlInterval is the period of both motion controllers.
const ControlInterval = 20 * time.Millisecond

// A PathPublisher receives the planned straight line path, robot pose first.
type PathPublisher interface {
	PublishPath(ctx context.Context, frame string, path []spatialmath.Pose) error
}

// LateralError is one tick of lateral control telemetry.
type LateralError struct {
	// XRemaining is the distance to the goal along the robot's heading.
	XRemaining float64
	// Error is the weighted lateral offset fed to the PID.
	Error float64
	// Rotation is the clamped PID output.
	Rotation float64
}

// A LateralErrorPublisher receives lateral control telemetry every translation tick.
type LateralErrorPublisher interface {
	PublishLateralError(ctx context.Context, e LateralError) error
}

// Deps are the collaborators of a MoveBasic. Paths and LateralErrors are optional.
type Deps struct {
	Transforms    referenceframe.TransformProvider
	Base          base.Base
	Checker       collision.Checker
	Config        *config.Store
	Clock         clock.Clock
	Logger        logging.Logger
	Paths         PathPublisher
	LateralErrors LateralErrorPublisher
}

// MoveBasic executes goals one at a time.
type MoveBasic struct {
	transforms    referenceframe.TransformProvider
	base          base.Base
	checker       collision.Checker
	store         *config.Store
	clock         clock.Clock
	logger        logging.Logger
	paths         PathPublisher
	lateralErrors LateralErrorPublisher

	busy atomic.Bool
}

// New returns a MoveBasic. A nil clock uses wall time.
func New(deps Deps) (*MoveBasic, error) {
	switch {
	case deps.Transforms == nil:
		return nil, errors.New("transform provider is required")
	case deps.Base == nil:
		return nil, errors.New("base is required")
	case deps.Checker == nil:
		return nil, errors.New("collision checker is required")
	case deps.Config == nil:
		return nil, errors.New("config store is required")
	case deps.Logger == nil:
		return nil, errors.New("logger is required")
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &MoveBasic{
		transforms:    deps.Transforms,
		base:          deps.Base,
		checker:       deps.Checker,
		store:         deps.Config,
		clock:         clk,
		logger:        deps.Logger,
		paths:         deps.Paths,
		lateralErrors: deps.LateralErrors,
	}, nil
}

// sendCmd emits one motion command.
func (mb *MoveBasic) sendCmd(ctx context.Context, angular, linear float64) error {
	if err := base.SetVelocity2D(ctx, mb.base, linear, angular); err != nil {
		return errors.Wrap(err, "cannot command base")
	}
	return nil
}

// sleep waits for d of clock time or until ctx is done.
func (mb *MoveBasic) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := mb.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
