package collision

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"
	goutils "go.viam.com/utils"

	"go.viam.com/movebasic/config"
	"go.viam.com/movebasic/logging"
)

// MonitorInterval is the period of the background obstacle reading.
const MonitorInterval = 50 * time.Millisecond

// A Publisher receives every background obstacle reading.
type Publisher interface {
	PublishObstacleDistance(ctx context.Context, d Distances) error
}

// Monitor polls a Checker in the background, publishes each forward reading and keeps the
// latest one. It is itself a Checker: forward distances come from the cached reading, every
// other query goes to the wrapped checker.
type Monitor struct {
	checker   Checker
	store     *config.Store
	publisher Publisher
	clock     clock.Clock
	logger    logging.Logger

	latest *atomic.Pointer[Distances]

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewMonitor returns a monitor holding one initial reading. A nil publisher disables
// publishing. Call Start to begin polling.
func NewMonitor(
	checker Checker,
	store *config.Store,
	publisher Publisher,
	clk clock.Clock,
	logger logging.Logger,
) *Monitor {
	if clk == nil {
		clk = clock.New()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		checker:   checker,
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	d := m.read()
	m.latest = atomic.NewPointer(&d)
	return m
}

// Start begins polling in the background until Close is called.
func (m *Monitor) Start() {
	m.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer m.activeBackgroundWorkers.Done()
		m.run(m.cancelCtx)
	})
}

func (m *Monitor) run(ctx context.Context) {
	ticker := m.clock.Ticker(MonitorInterval)
	defer ticker.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d := m.read()
			m.latest.Store(&d)
			if m.publisher == nil {
				continue
			}
			if err := m.publisher.PublishObstacleDistance(ctx, d); err != nil {
				m.logger.Debugw("cannot publish obstacle distance", "error", err)
			}
		}
	}
}

func (m *Monitor) read() Distances {
	m.checker.SetMinSideDist(m.store.Get().MinSideDist)
	return m.checker.ObstacleDistance(true)
}

// Latest returns the most recent background reading.
func (m *Monitor) Latest() Distances {
	return *m.latest.Load()
}

// ObstacleDistance returns the latest background reading for forward travel and queries the
// wrapped checker for backward travel.
func (m *Monitor) ObstacleDistance(forward bool) Distances {
	if forward {
		return m.Latest()
	}
	return m.checker.ObstacleDistance(false)
}

// ObstacleAngle queries the wrapped checker.
func (m *Monitor) ObstacleAngle(positive bool) float64 {
	return m.checker.ObstacleAngle(positive)
}

// SetMinSideDist sets the side band width on the wrapped checker.
func (m *Monitor) SetMinSideDist(minSideDist float64) {
	m.checker.SetMinSideDist(minSideDist)
}

// Close stops polling and waits for the background worker to exit.
func (m *Monitor) Close() error {
	m.cancel()
	m.activeBackgroundWorkers.Wait()
	return nil
}
