package control

import (
	"math"
	"testing"

	"go.viam.com/test"
)

func TestSpeed(t *testing.T) {
	const (
		maxVel = 0.5
		minVel = 0.02
		gain   = 1.0
		acc    = 0.1
	)

	t.Run("saturates far from the goal", func(t *testing.T) {
		test.That(t, Speed(10, 100, maxVel, minVel, gain, acc), test.ShouldEqual, maxVel)
	})

	t.Run("deceleration limited near the goal", func(t *testing.T) {
		test.That(t, Speed(0.2, 100, maxVel, minVel, gain, acc), test.ShouldAlmostEqual, math.Sqrt(2*acc*0.2))
	})

	t.Run("gain limited", func(t *testing.T) {
		test.That(t, Speed(0.1, 100, maxVel, minVel, 0.5, 10), test.ShouldAlmostEqual, 0.05)
	})

	t.Run("floor", func(t *testing.T) {
		test.That(t, Speed(0, 100, maxVel, minVel, gain, acc), test.ShouldEqual, minVel)
		test.That(t, Speed(0.0001, 100, maxVel, 0, gain, acc), test.ShouldBeGreaterThan, 0)
	})

	t.Run("obstacle replaces the goal as stopping point", func(t *testing.T) {
		test.That(t, Speed(10, 0.2, maxVel, minVel, gain, acc), test.ShouldEqual, Speed(0.2, 10, maxVel, minVel, gain, acc))
		test.That(t, Speed(10, -0.2, maxVel, minVel, gain, acc), test.ShouldEqual, Speed(0.2, 10, maxVel, minVel, gain, acc))
	})

	t.Run("non-negative and monotone in remaining", func(t *testing.T) {
		prev := 0.0
		for d := 0.0; d < 5; d += 0.01 {
			v := Speed(d, 100, maxVel, minVel, gain, acc)
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, 0)
			test.That(t, v, test.ShouldBeGreaterThanOrEqualTo, prev)
			test.That(t, v, test.ShouldBeLessThanOrEqualTo, maxVel)
			prev = v
		}
		test.That(t, prev, test.ShouldEqual, maxVel)
	})
}

func TestPID(t *testing.T) {
	gains := PIDGains{Kp: 2, Ki: 0.1, Kd: 20, Limit: 0.5}

	t.Run("zero error gives zero output", func(t *testing.T) {
		var pid PID
		for i := 0; i < 100; i++ {
			test.That(t, pid.Next(gains, 0), test.ShouldEqual, 0)
		}
		test.That(t, pid.Integral(), test.ShouldEqual, 0)
	})

	t.Run("terms", func(t *testing.T) {
		var pid PID
		unclamped := PIDGains{Kp: 2, Ki: 0.1, Kd: 20, Limit: math.Inf(1)}
		// first sample: diff against a zero previous error
		test.That(t, pid.Next(unclamped, 0.01), test.ShouldAlmostEqual, 2*0.01+0.1*0.01+20*0.01)
		// second sample: integral 0.03, diff 0.01
		test.That(t, pid.Next(unclamped, 0.02), test.ShouldAlmostEqual, 2*0.02+0.1*0.03+20*0.01)
		test.That(t, pid.Integral(), test.ShouldAlmostEqual, 0.03)
	})

	t.Run("clamped", func(t *testing.T) {
		var pid PID
		test.That(t, pid.Next(gains, 10), test.ShouldEqual, 0.5)
		test.That(t, pid.Next(gains, -10), test.ShouldEqual, -0.5)
	})

	t.Run("reset", func(t *testing.T) {
		var pid PID
		pid.Next(gains, 1)
		pid.Reset()
		test.That(t, pid.Integral(), test.ShouldEqual, 0)
		test.That(t, pid.Next(PIDGains{Kd: 1, Limit: 10}, 0), test.ShouldEqual, 0)
	})
}
