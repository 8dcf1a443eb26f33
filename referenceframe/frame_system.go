// Package referenceframe tracks named coordinate frames and answers transform lookups
// between them.
package referenceframe

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/movebasic/spatialmath"
)

// TransformProvider looks up the most recent transform between two frames. Lookups are
// single attempts that never wait for data: an unavailable transform is reported
// immediately with an error wrapping ErrTransformNotAvailable.
type TransformProvider interface {
	// Transform returns the pose of frame `from` expressed in frame `to`. Composing it with a
	// pose expressed in `from` yields the same pose expressed in `to`.
	Transform(from, to string) (spatialmath.Pose, error)
}

type link struct {
	parent string
	pose   spatialmath.Pose
	stamp  time.Time
	static bool
}

// FrameSystem is a TransformProvider backed by a forest of frames. Each frame has at most one
// parent and a pose in that parent, updated as localization sources report. A frame whose
// link to its parent is older than maxAge is treated as unavailable unless the link is static.
type FrameSystem struct {
	mu     sync.RWMutex
	clock  clock.Clock
	maxAge time.Duration
	links  map[string]link
}

// NewFrameSystem returns an empty FrameSystem. A zero maxAge disables staleness checks.
func NewFrameSystem(clk clock.Clock, maxAge time.Duration) *FrameSystem {
	if clk == nil {
		clk = clock.New()
	}
	return &FrameSystem{clock: clk, maxAge: maxAge, links: map[string]link{}}
}

// SetTransform records the pose of child expressed in parent, replacing any previous parent.
func (fs *FrameSystem) SetTransform(child, parent string, childInParent spatialmath.Pose) error {
	return fs.setLink(child, parent, childInParent, false)
}

// SetStaticTransform is SetTransform for a link that never goes stale, such as a fixed
// mounting offset or a map that never moves relative to odometry.
func (fs *FrameSystem) SetStaticTransform(child, parent string, childInParent spatialmath.Pose) error {
	return fs.setLink(child, parent, childInParent, true)
}

func (fs *FrameSystem) setLink(child, parent string, childInParent spatialmath.Pose, static bool) error {
	if child == "" || parent == "" {
		return errors.New("frame names cannot be empty")
	}
	if child == parent {
		return errors.Errorf("frame %q cannot be its own parent", child)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	for name := parent; name != ""; name = fs.links[name].parent {
		if name == child {
			return errors.Errorf("setting %q as parent of %q would create a cycle", parent, child)
		}
	}
	fs.links[child] = link{parent: parent, pose: childInParent, stamp: fs.clock.Now(), static: static}
	return nil
}

// RemoveFrame detaches the named frame from its parent. Its children stay attached to it.
func (fs *FrameSystem) RemoveFrame(name string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	delete(fs.links, name)
}

// FrameNames returns the sorted names of every frame the system knows about.
func (fs *FrameSystem) FrameNames() []string {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	seen := map[string]struct{}{}
	for child, l := range fs.links {
		seen[child] = struct{}{}
		seen[l.parent] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Transform returns the pose of frame `from` expressed in frame `to`. Only the links between
// each frame and their nearest common ancestor are consulted.
func (fs *FrameSystem) Transform(from, to string) (spatialmath.Pose, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	fromChain, err := fs.ancestors(from)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	toChain, err := fs.ancestors(to)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	inTo := make(map[string]struct{}, len(toChain))
	for _, name := range toChain {
		inTo[name] = struct{}{}
	}
	common := ""
	for _, name := range fromChain {
		if _, ok := inTo[name]; ok {
			common = name
			break
		}
	}
	if common == "" {
		return spatialmath.Pose{}, errors.Wrapf(ErrTransformNotAvailable,
			"frames %q and %q are not connected", from, to)
	}

	fromInCommon, err := fs.traceback(from, common)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	toInCommon, err := fs.traceback(to, common)
	if err != nil {
		return spatialmath.Pose{}, err
	}
	return spatialmath.PoseBetween(toInCommon, fromInCommon), nil
}

// ancestors returns the named frame followed by each of its ancestors up to the root.
func (fs *FrameSystem) ancestors(name string) ([]string, error) {
	if !fs.frameExists(name) {
		return nil, NewFrameMissingError(name)
	}
	chain := []string{name}
	for {
		l, ok := fs.links[name]
		if !ok {
			return chain, nil
		}
		name = l.parent
		chain = append(chain, name)
	}
}

// traceback composes the links from the named frame up to ancestor, returning the frame's pose
// in ancestor.
func (fs *FrameSystem) traceback(name, ancestor string) (spatialmath.Pose, error) {
	now := fs.clock.Now()
	pose := spatialmath.NewZeroPose()
	for name != ancestor {
		l := fs.links[name]
		if !l.static && fs.maxAge > 0 && now.Sub(l.stamp) > fs.maxAge {
			return spatialmath.Pose{}, NewStaleTransformError(name, l.parent, now.Sub(l.stamp))
		}
		pose = spatialmath.Compose(l.pose, pose)
		name = l.parent
	}
	return pose, nil
}

func (fs *FrameSystem) frameExists(name string) bool {
	if _, ok := fs.links[name]; ok {
		return true
	}
	for _, l := range fs.links {
		if l.parent == name {
			return true
		}
	}
	return false
}
