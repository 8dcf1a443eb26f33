package referenceframe

import (
	"time"

	"github.com/pkg/errors"
)

// ErrTransformNotAvailable is wrapped by every failed transform lookup.
var ErrTransformNotAvailable = errors.New("transform not available")

// NewFrameMissingError returns an error indicating that a frame is unknown.
func NewFrameMissingError(name string) error {
	return errors.Wrapf(ErrTransformNotAvailable, "frame %q does not exist", name)
}

// NewStaleTransformError returns an error indicating that the last update linking child to
// parent is too old to be trusted.
func NewStaleTransformError(child, parent string, age time.Duration) error {
	return errors.Wrapf(ErrTransformNotAvailable, "transform %q -> %q is stale (%v old)", child, parent, age)
}
