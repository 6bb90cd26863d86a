package spatialmath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestCapsuleFromEndpoints(t *testing.T) {
	t.Run("aligned with reference axis", func(t *testing.T) {
		c, err := NewCapsuleFromEndpoints(r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 0, Z: 1}, 0.1)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Length(), test.ShouldAlmostEqual, 2.0)
		test.That(t, c.Radius(), test.ShouldAlmostEqual, 0.1)
		test.That(t, R3VectorAlmostEqual(c.Center(), r3.Vector{}, 1e-12), test.ShouldBeTrue)
		test.That(t, OrientationAlmostEqual(c.Orientation(), NewZeroOrientation()), test.ShouldBeTrue)
		test.That(t, c.CheckAlignment(r3.Vector{X: 0, Y: 0, Z: 2}), test.ShouldBeNil)
	})

	t.Run("antiparallel to reference axis", func(t *testing.T) {
		c, err := NewCapsuleFromEndpoints(r3.Vector{X: 1, Y: 1, Z: 3}, r3.Vector{X: 1, Y: 1, Z: -1}, 0.5)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Length(), test.ShouldAlmostEqual, 4.0)
		test.That(t, R3VectorAlmostEqual(c.Center(), r3.Vector{X: 1, Y: 1, Z: 1}, 1e-12), test.ShouldBeTrue)
		test.That(t, R3VectorAlmostEqual(c.Axis(), r3.Vector{X: 0, Y: 0, Z: -1}, 1e-9), test.ShouldBeTrue)
		test.That(t, c.CheckAlignment(r3.Vector{X: 0, Y: 0, Z: -4}), test.ShouldBeNil)
	})

	t.Run("oblique direction", func(t *testing.T) {
		c, err := NewCapsuleFromEndpoints(r3.Vector{X: 0, Y: 0, Z: 0}, r3.Vector{X: 1, Y: 0, Z: 0}, 0.2)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, R3VectorAlmostEqual(c.Axis(), r3.Vector{X: 1, Y: 0, Z: 0}, 1e-9), test.ShouldBeTrue)
		quarterTurnAboutY := &R4AA{Theta: math.Pi / 2, RX: 0, RY: 1, RZ: 0}
		test.That(t, OrientationAlmostEqualEps(c.Orientation(), quarterTurnAboutY, 1e-12), test.ShouldBeTrue)
	})

	t.Run("coincident endpoints", func(t *testing.T) {
		c, err := NewCapsuleFromEndpoints(r3.Vector{X: 2, Y: 2, Z: 2}, r3.Vector{X: 2, Y: 2, Z: 2}, 0.3)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, c.Length(), test.ShouldEqual, 0)
		test.That(t, OrientationAlmostEqual(c.Orientation(), NewZeroOrientation()), test.ShouldBeTrue)
	})

	t.Run("bad dimensions", func(t *testing.T) {
		_, err := NewCapsuleFromEndpoints(r3.Vector{}, r3.Vector{X: 0, Y: 0, Z: 1}, -1)
		test.That(t, errors.Is(err, ErrBadCapsuleDimensions), test.ShouldBeTrue)
		_, err = NewCapsuleFromEndpoints(r3.Vector{X: math.NaN(), Y: 0, Z: 0}, r3.Vector{X: 0, Y: 0, Z: 1}, 1)
		test.That(t, errors.Is(err, ErrBadCapsuleDimensions), test.ShouldBeTrue)
		_, err = NewCapsule(r3.Vector{}, nil, -2, 1)
		test.That(t, errors.Is(err, ErrBadCapsuleDimensions), test.ShouldBeTrue)
	})
}

func TestCapsuleEndpointRoundTrip(t *testing.T) {
	//nolint:gosec
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		center := r3.Vector{X: r.Float64()*4 - 2, Y: r.Float64()*4 - 2, Z: r.Float64()*4 - 2}
		orientation := &EulerAngles{
			Roll:  r.Float64()*2*math.Pi - math.Pi,
			Pitch: r.Float64()*math.Pi - math.Pi/2,
			Yaw:   r.Float64()*2*math.Pi - math.Pi,
		}
		length := 0.01 + r.Float64()*3
		radius := r.Float64()

		original, err := NewCapsule(center, orientation, length, radius)
		test.That(t, err, test.ShouldBeNil)

		ep1, ep2 := original.Endpoints()
		rebuilt, err := NewCapsuleFromEndpoints(ep1, ep2, original.Radius())
		test.That(t, err, test.ShouldBeNil)

		test.That(t, rebuilt.Length(), test.ShouldAlmostEqual, original.Length(), 1e-6)
		test.That(t, rebuilt.Radius(), test.ShouldAlmostEqual, original.Radius(), 1e-6)
		test.That(t, R3VectorAlmostEqual(rebuilt.Center(), original.Center(), 1e-9), test.ShouldBeTrue)
		test.That(t, R3VectorAlmostEqual(rebuilt.Axis(), original.Axis(), 1e-9), test.ShouldBeTrue)
		test.That(t, rebuilt.CheckAlignment(ep2.Sub(ep1)), test.ShouldBeNil)
	}
}

func TestCapsuleCheckAlignment(t *testing.T) {
	c, err := NewCapsule(r3.Vector{}, NewZeroOrientation(), 1, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, c.CheckAlignment(r3.Vector{X: 0, Y: 0, Z: 5}), test.ShouldBeNil)
	test.That(t, c.CheckAlignment(r3.Vector{}), test.ShouldBeNil)
	err = c.CheckAlignment(r3.Vector{X: 0, Y: 1, Z: 0})
	test.That(t, errors.Is(err, ErrAxisMisaligned), test.ShouldBeTrue)
}

func TestCapsuleTransform(t *testing.T) {
	c, err := NewCapsuleFromEndpoints(r3.Vector{X: 0, Y: 0, Z: -1}, r3.Vector{X: 0, Y: 0, Z: 1}, 0.1)
	test.That(t, err, test.ShouldBeNil)

	moved := c.Transform(NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0}))
	test.That(t, R3VectorAlmostEqual(moved.Center(), r3.Vector{X: 1, Y: 0, Z: 0}, 1e-12), test.ShouldBeTrue)
	test.That(t, moved.Length(), test.ShouldEqual, c.Length())
	test.That(t, moved.Radius(), test.ShouldEqual, c.Radius())

	// a quarter turn about X maps the capsule's Z axis onto -Y and its offset center along with it
	offset, err := NewCapsuleFromEndpoints(r3.Vector{X: 0, Y: 0, Z: 1}, r3.Vector{X: 0, Y: 0, Z: 3}, 0.1)
	test.That(t, err, test.ShouldBeNil)
	parent := NewPose(r3.Vector{X: 0, Y: 0, Z: 1}, &EulerAngles{Roll: math.Pi / 2})
	rotated := offset.Transform(parent)
	test.That(t, R3VectorAlmostEqual(rotated.Center(), r3.Vector{X: 0, Y: -2, Z: 1}, 1e-9), test.ShouldBeTrue)
	test.That(t, R3VectorAlmostEqual(rotated.Axis(), r3.Vector{X: 0, Y: -1, Z: 0}, 1e-9), test.ShouldBeTrue)
	ep1, ep2 := rotated.Endpoints()
	test.That(t, R3VectorAlmostEqual(ep1, r3.Vector{X: 0, Y: -1, Z: 1}, 1e-9), test.ShouldBeTrue)
	test.That(t, R3VectorAlmostEqual(ep2, r3.Vector{X: 0, Y: -3, Z: 1}, 1e-9), test.ShouldBeTrue)
}
