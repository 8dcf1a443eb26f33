package main

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/movebasic/action"
	"go.viam.com/movebasic/base"
	"go.viam.com/movebasic/base/fake"
	"go.viam.com/movebasic/collision"
	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/logging"
	"go.viam.com/movebasic/movebasic"
	"go.viam.com/movebasic/mqtt"
	"go.viam.com/movebasic/referenceframe"
	"go.viam.com/movebasic/spatialmath"
)

// system is every long lived part of the process.
type system struct {
	logger  logging.Logger
	clock   clock.Clock
	store   *config.Store
	watcher *config.Watcher
	frames  *referenceframe.FrameSystem
	checker *collision.PointChecker
	monitor *collision.Monitor
	client  *mqtt.Client
	simBase *fake.Base
	server  *action.Server

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

func newSystem(s settings, clk clock.Clock, logger logging.Logger) (_ *system, err error) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	sys := &system{
		logger:    logger,
		clock:     clk,
		frames:    referenceframe.NewFrameSystem(clk, s.transformTimeout),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	defer func() {
		if err != nil {
			err = multierr.Combine(err, sys.Close())
		}
	}()

	cfg := config.Default()
	if s.configPath != "" {
		if cfg, err = config.FromFile(s.configPath); err != nil {
			return nil, err
		}
	}
	if sys.store, err = config.NewStore(cfg, logger.Sublogger("config")); err != nil {
		return nil, err
	}
	if s.configPath != "" {
		if sys.watcher, err = config.NewWatcher(s.configPath, sys.store, logger.Sublogger("config")); err != nil {
			return nil, err
		}
	}

	if sys.checker, err = collision.NewPointChecker(s.footprint, s.obstacleRange); err != nil {
		return nil, err
	}
	sys.client = mqtt.NewClient(mqtt.Options{
		Broker:      s.broker,
		ClientID:    s.clientID,
		Username:    s.username,
		Password:    s.password,
		TopicPrefix: s.topicPrefix,
	}, logger.Sublogger("mqtt"))
	sys.monitor = collision.NewMonitor(sys.checker, sys.store, sys.client, clk, logger.Sublogger("collision"))

	var b base.Base = sys.client
	if s.sim {
		// The simulated base owns odom -> base and the map never drifts from odom.
		if err = sys.frames.SetStaticTransform(cfg.AlternateDrivingFrame, cfg.PreferredDrivingFrame,
			spatialmath.NewZeroPose()); err != nil {
			return nil, err
		}
		if sys.simBase, err = fake.NewBase(clk, sys.frames, cfg.AlternateDrivingFrame, cfg.BaseFrame,
			spatialmath.Pose2D{}); err != nil {
			return nil, err
		}
		b = sys.simBase
	}

	controller, err := movebasic.New(movebasic.Deps{
		Transforms:    sys.frames,
		Base:          b,
		Checker:       sys.monitor,
		Config:        sys.store,
		Clock:         clk,
		Logger:        logger.Sublogger("controller"),
		Paths:         sys.client,
		LateralErrors: sys.client,
	})
	if err != nil {
		return nil, err
	}
	sys.server = action.NewServer(controller, sys.client, clk, logger.Sublogger("action"))
	return sys, nil
}

func (sys *system) handlers() mqtt.Handlers {
	return mqtt.Handlers{
		Goals:      sys.server,
		Transforms: sys.frames,
		Points:     sys.checker,
		Parameters: sys.store,
	}
}

// startBackground starts the collision monitor and, in simulation, the base integrator.
func (sys *system) startBackground() {
	sys.monitor.Start()
	if sys.simBase == nil {
		return
	}
	sys.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer sys.activeBackgroundWorkers.Done()
		ticker := sys.clock.Ticker(movebasic.ControlInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sys.cancelCtx.Done():
				return
			case <-ticker.C:
			}
			if err := sys.simBase.Update(); err != nil {
				sys.logger.Warnw("simulated base update failed", "error", err)
			}
		}
	})
}

// Close stops goals before the parts they depend on.
func (sys *system) Close() error {
	var err error
	if sys.server != nil {
		err = multierr.Combine(err, sys.server.Close())
	}
	sys.cancel()
	sys.activeBackgroundWorkers.Wait()
	if sys.monitor != nil {
		err = multierr.Combine(err, sys.monitor.Close())
	}
	if sys.watcher != nil {
		err = multierr.Combine(err, sys.watcher.Close())
	}
	if sys.client != nil {
		err = multierr.Combine(err, sys.client.Close())
	}
	return err
}

func runServer(ctx context.Context, s settings) (err error) {
	logger := s.logger()
	logging.ReplaceGlobal(logger)
	defer func() {
		// stdout cannot always be synced
		goutils.UncheckedError(logger.Sync())
	}()

	sys, err := newSystem(s, clock.New(), logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, sys.Close())
	}()

	sys.startBackground()
	if err := sys.client.Connect(ctx, sys.handlers()); err != nil {
		return err
	}
	logger.Infow("ready", "broker", s.broker, "sim", s.sim)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}
