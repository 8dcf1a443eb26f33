// Package action runs goals one at a time on behalf of remote requesters. Goals are queued in
// arrival order, identified by id, and may be cancelled while pending or preempted while
// active. Terminal outcomes are kept in memory for status queries.
package action

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"go.viam.com/movebasic/logging"
	"go.viam.com/movebasic/movebasic"
)

// maxFinishedGoals is how many terminal goals are kept for status queries.
const maxFinishedGoals = 100

// ErrClosed is returned by operations on a closed server.
var ErrClosed = errors.New("action server is closed")

// NewGoalNotFoundError is used when a goal id is unknown.
func NewGoalNotFoundError(id uuid.UUID) error {
	return errors.Errorf("goal %s not found", id)
}

// State is where a goal is in its lifecycle.
type State int

// The goal states. Pending and Active are the only non-terminal states.
const (
	StatePending State = iota
	StateActive
	StateSucceeded
	StateAborted
	StatePreempted
	StateRecalled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateSucceeded:
		return "succeeded"
	case StateAborted:
		return "aborted"
	case StatePreempted:
		return "preempted"
	case StateRecalled:
		return "recalled"
	}
	return "unknown"
}

// Terminal reports whether the goal is finished.
func (s State) Terminal() bool {
	return s >= StateSucceeded
}

// Status is a snapshot of one goal.
type Status struct {
	ID       uuid.UUID
	Goal     movebasic.Goal
	State    State
	Message  string
	Feedback movebasic.Feedback
	Updated  time.Time
}

// An Executor runs a single goal to completion, reporting through the handle.
type Executor interface {
	Execute(ctx context.Context, goal movebasic.Goal, handle movebasic.GoalHandle) error
}

// A StatusPublisher receives every goal status change.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status Status) error
}

// Server is a single goal action server.
type Server struct {
	executor  Executor
	publisher StatusPublisher
	clock     clock.Clock
	logger    logging.Logger

	mu       sync.Mutex
	goals    map[uuid.UUID]*goalEntry
	pending  []*goalEntry
	active   *goalEntry
	finished []uuid.UUID
	closed   bool
	wake     chan struct{}

	cancelCtx               context.Context
	cancel                  func()
	activeBackgroundWorkers sync.WaitGroup
}

// NewServer starts a server that feeds goals to executor. publisher may be nil.
func NewServer(executor Executor, publisher StatusPublisher, clk clock.Clock, logger logging.Logger) *Server {
	if clk == nil {
		clk = clock.New()
	}
	cancelCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		executor:  executor,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		goals:     map[uuid.UUID]*goalEntry{},
		wake:      make(chan struct{}, 1),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	s.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer s.activeBackgroundWorkers.Done()
		s.run()
	})
	return s
}

// Submit queues goal and returns its id.
func (s *Server) Submit(goal movebasic.Goal) (uuid.UUID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return uuid.Nil, ErrClosed
	}
	entry := &goalEntry{server: s, status: Status{ID: uuid.New(), Goal: goal, State: StatePending, Updated: s.clock.Now()}}
	s.goals[entry.status.ID] = entry
	s.pending = append(s.pending, entry)
	status := entry.status
	s.mu.Unlock()

	s.logger.Infow("goal received", "id", status.ID, "frame", goal.FrameID)
	s.publish(status)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return status.ID, nil
}

// Cancel recalls a pending goal or requests preemption of the active one. Cancelling a
// finished goal does nothing.
func (s *Server) Cancel(id uuid.UUID) error {
	s.mu.Lock()
	entry, ok := s.goals[id]
	if !ok {
		s.mu.Unlock()
		return NewGoalNotFoundError(id)
	}
	status, changed := s.cancelLocked(entry)
	s.mu.Unlock()

	if changed {
		s.publish(status)
	}
	return nil
}

// CancelAll recalls every pending goal and preempts the active one.
func (s *Server) CancelAll() {
	s.mu.Lock()
	entries := append([]*goalEntry(nil), s.pending...)
	if s.active != nil {
		entries = append(entries, s.active)
	}
	var changed []Status
	for _, entry := range entries {
		if status, ok := s.cancelLocked(entry); ok {
			changed = append(changed, status)
		}
	}
	s.mu.Unlock()

	for _, status := range changed {
		s.publish(status)
	}
}

// cancelLocked returns the new status if the goal was recalled.
func (s *Server) cancelLocked(entry *goalEntry) (Status, bool) {
	switch entry.status.State {
	case StatePending:
		for i, pending := range s.pending {
			if pending == entry {
				s.pending = append(s.pending[:i], s.pending[i+1:]...)
				break
			}
		}
		s.finishLocked(entry, StateRecalled, "cancelled before starting")
		return entry.status, true
	case StateActive:
		entry.preempt.Store(true)
	case StateSucceeded, StateAborted, StatePreempted, StateRecalled:
	}
	return Status{}, false
}

// Status returns the current status of a goal.
func (s *Server) Status(id uuid.UUID) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.goals[id]
	if !ok {
		return Status{}, NewGoalNotFoundError(id)
	}
	return entry.status, nil
}

// Close preempts the active goal, recalls pending ones, and waits for the executor to return.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.CancelAll()
	s.cancel()
	s.activeBackgroundWorkers.Wait()
	return nil
}

func (s *Server) run() {
	for {
		entry := s.next()
		if entry == nil {
			return
		}
		s.logger.Infow("goal started", "id", entry.status.ID)
		ctx := s.cancelCtx
		if entry.status.Goal.Debug {
			ctx = logging.EnableDebugMode(ctx, entry.status.ID.String())
		}
		if err := s.executor.Execute(ctx, entry.status.Goal, entry); err != nil {
			s.logger.Debugw("goal ended with error", "id", entry.status.ID, "error", err)
		}
		entry.finish(StateAborted, "executor returned without reporting an outcome")

		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}
}

// next blocks until a goal is pending and makes it active. It returns nil once the server is
// closing.
func (s *Server) next() *goalEntry {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 && s.cancelCtx.Err() == nil {
			entry := s.pending[0]
			s.pending = s.pending[1:]
			s.active = entry
			entry.status.State = StateActive
			entry.status.Updated = s.clock.Now()
			status := entry.status
			s.mu.Unlock()
			s.publish(status)
			return entry
		}
		s.mu.Unlock()

		select {
		case <-s.cancelCtx.Done():
			return nil
		case <-s.wake:
		}
	}
}

func (s *Server) finishLocked(entry *goalEntry, state State, msg string) {
	entry.status.State = state
	entry.status.Message = msg
	entry.status.Updated = s.clock.Now()

	s.finished = append(s.finished, entry.status.ID)
	if len(s.finished) > maxFinishedGoals {
		delete(s.goals, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *Server) publish(status Status) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishStatus(s.cancelCtx, status); err != nil {
		s.logger.Debugw("cannot publish goal status", "id", status.ID, "error", err)
	}
}

// goalEntry is the GoalHandle given to the executor.
type goalEntry struct {
	server  *Server
	preempt atomic.Bool
	status  Status
}

func (e *goalEntry) IsPreemptRequested() bool {
	return e.preempt.Load()
}

func (e *goalEntry) PublishFeedback(fb movebasic.Feedback) {
	e.server.mu.Lock()
	if e.status.State.Terminal() {
		e.server.mu.Unlock()
		return
	}
	e.status.Feedback = fb
	e.status.Updated = e.server.clock.Now()
	status := e.status
	e.server.mu.Unlock()
	e.server.publish(status)
}

func (e *goalEntry) SetSucceeded() {
	e.finish(StateSucceeded, "")
}

// SetAborted marks the goal preempted if preemption was requested, aborted otherwise.
func (e *goalEntry) SetAborted(msg string) {
	if e.preempt.Load() {
		e.finish(StatePreempted, msg)
		return
	}
	e.finish(StateAborted, msg)
}

// finish records the first terminal outcome only.
func (e *goalEntry) finish(state State, msg string) {
	e.server.mu.Lock()
	if e.status.State.Terminal() {
		e.server.mu.Unlock()
		return
	}
	e.server.finishLocked(e, state, msg)
	status := e.status
	e.server.mu.Unlock()

	e.server.logger.Infow("goal finished", "id", status.ID, "state", status.State.String(), "message", msg)
	e.server.publish(status)
}
