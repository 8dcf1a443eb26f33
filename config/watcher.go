package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"go.viam.com/movebasic/logging"
)

// A Watcher reloads a config file whenever it changes on disk and installs the result, merged
// over the defaults, into a Store. Files that fail to parse or validate are logged and ignored.
type Watcher struct {
	path    string
	store   *Store
	watcher *fsnotify.Watcher
	logger  logging.Logger

	reloaded                chan Config
	activeBackgroundWorkers sync.WaitGroup
}

// NewWatcher starts watching path. The containing directory is watched so that editors which
// replace the file by rename are still observed.
func NewWatcher(path string, store *Store, logger logging.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create file watcher")
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %q", absPath), fsWatcher.Close())
	}

	w := &Watcher{
		path:     absPath,
		store:    store,
		watcher:  fsWatcher,
		logger:   logger,
		reloaded: make(chan Config, 1),
	}
	w.activeBackgroundWorkers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer w.activeBackgroundWorkers.Done()
		w.run()
	})
	return w, nil
}

// Reloaded delivers each snapshot the watcher installed. Only the most recent undelivered
// snapshot is kept.
func (w *Watcher) Reloaded() <-chan Config {
	return w.reloaded
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config file watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := FromFile(w.path)
	if err != nil {
		w.logger.Errorw("ignoring config file change", "path", w.path, "error", err)
		return
	}
	if err := w.store.Update(cfg); err != nil {
		w.logger.Errorw("ignoring config file change", "path", w.path, "error", err)
		return
	}
	select {
	case <-w.reloaded:
	default:
	}
	select {
	case w.reloaded <- cfg:
	default:
	}
}

// Close stops watching and waits for the background worker to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	w.activeBackgroundWorkers.Wait()
	return err
}
