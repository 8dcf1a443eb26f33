// Package config defines the tunable parameters of the goal executor and the machinery to
// load, validate, and atomically replace them while goals are running.
package config

import (
	"encoding/json"
	"math"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Config is one immutable snapshot of every tunable parameter. Durations are in seconds.
type Config struct {
	MinTurningVelocity  float64 `json:"min_turning_velocity"`
	MaxTurningVelocity  float64 `json:"max_turning_velocity"`
	AngularAcceleration float64 `json:"angular_acceleration"`
	MaxLinearVelocity   float64 `json:"max_linear_velocity"`
	LinearAcceleration  float64 `json:"linear_acceleration"`
	AngularTolerance    float64 `json:"angular_tolerance"`
	LinearTolerance     float64 `json:"linear_tolerance"`

	LateralKp float64 `json:"lateral_kp"`
	LateralKi float64 `json:"lateral_ki"`
	LateralKd float64 `json:"lateral_kd"`

	LinearGain        float64 `json:"linear_gain"`
	RotationalGain    float64 `json:"rotational_gain"`
	VelocityThreshold float64 `json:"velocity_threshold"`

	MinSideDist        float64 `json:"min_side_dist"`
	MaxLateralVelocity float64 `json:"max_lateral_velocity"`
	SideRecoverWeight  float64 `json:"side_recover_weight"`

	LocalizationLatency   float64 `json:"localization_latency"`
	AbortTimeout          float64 `json:"abort_timeout"`
	ObstacleWaitThreshold float64 `json:"obstacle_wait_threshold"`

	ForwardObstacleThreshold       float64 `json:"forward_obstacle_threshold"`
	ReverseWithoutTurningThreshold float64 `json:"reverse_without_turning_threshold"`

	PreferredPlanningFrame string `json:"preferred_planning_frame"`
	AlternatePlanningFrame string `json:"alternate_planning_frame"`
	PreferredDrivingFrame  string `json:"preferred_driving_frame"`
	AlternateDrivingFrame  string `json:"alternate_driving_frame"`
	BaseFrame              string `json:"base_frame"`
}

// Default returns the stock parameter set.
func Default() Config {
	return Config{
		MinTurningVelocity:  0.02,
		MaxTurningVelocity:  1.0,
		AngularAcceleration: 0.3,
		MaxLinearVelocity:   0.5,
		LinearAcceleration:  0.1,
		AngularTolerance:    0.01,
		LinearTolerance:     0.1,

		LateralKp: 2.0,
		LateralKi: 0.0,
		LateralKd: 20.0,

		LinearGain:        1.0,
		RotationalGain:    2.5,
		VelocityThreshold: 0.1,

		MinSideDist:        0.3,
		MaxLateralVelocity: 0.5,
		SideRecoverWeight:  1.0,

		LocalizationLatency:   0.5,
		AbortTimeout:          5.0,
		ObstacleWaitThreshold: 60.0,

		ForwardObstacleThreshold:       0.5,
		ReverseWithoutTurningThreshold: 0.5,

		PreferredPlanningFrame: "",
		AlternatePlanningFrame: "odom",
		PreferredDrivingFrame:  "map",
		AlternateDrivingFrame:  "odom",
		BaseFrame:              "base_footprint",
	}
}

// NewConfigValidationFieldRequiredError is used when a required field is missing.
func NewConfigValidationFieldRequiredError(field string) error {
	return errors.Errorf("%q is required", field)
}

// Validate returns an error naming the first field that holds an unusable value.
func (c *Config) Validate() error {
	nonNegative := []struct {
		name string
		val  float64
	}{
		{"min_turning_velocity", c.MinTurningVelocity},
		{"max_turning_velocity", c.MaxTurningVelocity},
		{"angular_acceleration", c.AngularAcceleration},
		{"max_linear_velocity", c.MaxLinearVelocity},
		{"linear_acceleration", c.LinearAcceleration},
		{"angular_tolerance", c.AngularTolerance},
		{"linear_tolerance", c.LinearTolerance},
		{"linear_gain", c.LinearGain},
		{"rotational_gain", c.RotationalGain},
		{"velocity_threshold", c.VelocityThreshold},
		{"min_side_dist", c.MinSideDist},
		{"max_lateral_velocity", c.MaxLateralVelocity},
		{"localization_latency", c.LocalizationLatency},
		{"abort_timeout", c.AbortTimeout},
		{"obstacle_wait_threshold", c.ObstacleWaitThreshold},
		{"forward_obstacle_threshold", c.ForwardObstacleThreshold},
		{"reverse_without_turning_threshold", c.ReverseWithoutTurningThreshold},
	}
	for _, f := range nonNegative {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return errors.Errorf("%q must be finite, got %v", f.name, f.val)
		}
		if f.val < 0 {
			return errors.Errorf("%q must be non-negative, got %v", f.name, f.val)
		}
	}
	for _, f := range []struct {
		name string
		val  float64
	}{
		{"lateral_kp", c.LateralKp},
		{"lateral_ki", c.LateralKi},
		{"lateral_kd", c.LateralKd},
		{"side_recover_weight", c.SideRecoverWeight},
	} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return errors.Errorf("%q must be finite, got %v", f.name, f.val)
		}
	}
	if c.MinTurningVelocity > c.MaxTurningVelocity {
		return errors.Errorf("min_turning_velocity (%v) exceeds max_turning_velocity (%v)",
			c.MinTurningVelocity, c.MaxTurningVelocity)
	}
	if c.BaseFrame == "" {
		return NewConfigValidationFieldRequiredError("base_frame")
	}
	if c.PreferredDrivingFrame == "" {
		return NewConfigValidationFieldRequiredError("preferred_driving_frame")
	}
	if c.AlternateDrivingFrame == "" {
		return NewConfigValidationFieldRequiredError("alternate_driving_frame")
	}
	return nil
}

// Merge decodes a partial attribute map over a copy of c. Unknown keys are rejected and the
// result is validated.
func (c Config) Merge(attrs map[string]interface{}) (Config, error) {
	out := c
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		Metadata:         &md,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return c, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return c, errors.Wrap(err, "error decoding parameters")
	}
	if err := out.Validate(); err != nil {
		return c, err
	}
	return out, nil
}

// FromFile reads a JSON object of parameters and merges it over the defaults.
func FromFile(path string) (Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "cannot read config file %q", path)
	}
	attrs := map[string]interface{}{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return Config{}, errors.Wrapf(err, "cannot parse config file %q", path)
	}
	return Default().Merge(attrs)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// LocalizationLatencyDuration is the settle pause between motion phases.
func (c Config) LocalizationLatencyDuration() time.Duration {
	return seconds(c.LocalizationLatency)
}

// AbortTimeoutDuration is how long a translation may go without progress.
func (c Config) AbortTimeoutDuration() time.Duration {
	return seconds(c.AbortTimeout)
}

// ObstacleWaitDuration is how long a translation may stay paused behind an obstacle.
func (c Config) ObstacleWaitDuration() time.Duration {
	return seconds(c.ObstacleWaitThreshold)
}
