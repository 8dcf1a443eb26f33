package inject

import (
	"go.viam.com/movebasic/referenceframe"
	"go.viam.com/movebasic/spatialmath"
)

// TransformProvider is an injected transform provider.
type TransformProvider struct {
	referenceframe.TransformProvider
	TransformFunc func(from, to string) (spatialmath.Pose, error)
}

// Transform calls the injected Transform or the real version.
func (tp *TransformProvider) Transform(from, to string) (spatialmath.Pose, error) {
	if tp.TransformFunc == nil {
		return tp.TransformProvider.Transform(from, to)
	}
	return tp.TransformFunc(from, to)
}
