package config

import (
	"go.uber.org/atomic"

	"go.viam.com/movebasic/logging"
)

// Store holds the current snapshot. Readers always observe a whole snapshot; a replacement
// becomes visible to the next Get.
type Store struct {
	current *atomic.Pointer[Config]
	logger  logging.Logger
}

// NewStore validates initial and returns a Store holding it.
func NewStore(initial Config, logger logging.Logger) (*Store, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	cfg := initial
	return &Store{current: atomic.NewPointer(&cfg), logger: logger}, nil
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() Config {
	return *s.current.Load()
}

// Update replaces the snapshot with cfg if it is valid.
func (s *Store) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	next := cfg
	prev := s.current.Swap(&next)
	s.logChange(*prev, next)
	return nil
}

// Merge applies a partial attribute map over the current snapshot. Concurrent merges are
// serialized by retrying against the latest snapshot.
func (s *Store) Merge(attrs map[string]interface{}) (Config, error) {
	for {
		prev := s.current.Load()
		next, err := prev.Merge(attrs)
		if err != nil {
			return *prev, err
		}
		if s.current.CompareAndSwap(prev, &next) {
			s.logChange(*prev, next)
			return next, nil
		}
	}
}

func (s *Store) logChange(prev, next Config) {
	if s.logger == nil || prev == next {
		return
	}
	s.logger.Infow("parameter change detected", "config", next)
}
