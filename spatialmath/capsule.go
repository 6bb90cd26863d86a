package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ReferenceAxis is the capsule's local longitudinal axis. URDF cylinders extend along their local Z.
var ReferenceAxis = r3.Vector{X: 0, Y: 0, Z: 1}

const (
	// AlignmentTolerance is the largest per-component deviation allowed between a capsule's axis and
	// the direction between its endpoints before CheckAlignment reports a mismatch.
	AlignmentTolerance = 1e-9

	// below this sine the direction is treated as parallel or antiparallel to ReferenceAxis.
	degenerateSine = 1e-12
)

// Capsule is a swept sphere: a segment of length Length centered at the pose's point, oriented along
// the pose's local Z axis, and inflated by Radius.
//
// .....___________________
// ..../                   \
// ...|  x-------O-------x  |
// ....\___________________/
//
// Length is the distance between the x's, i.e. the endpoint segment, which is also the height of the
// cylinder that represents the capsule in a URDF.
type Capsule struct {
	pose   Pose
	length float64
	radius float64
}

// NewCapsule instantiates a capsule from its center, orientation, segment length and radius.
func NewCapsule(center r3.Vector, orientation Orientation, length, radius float64) (*Capsule, error) {
	if length < 0 || radius < 0 || !isFinite(length, radius, center.X, center.Y, center.Z) {
		return nil, newBadCapsuleDimensionsError(length, radius)
	}
	return &Capsule{pose: NewPose(center, orientation), length: length, radius: radius}, nil
}

// NewCapsuleFromEndpoints instantiates a capsule whose segment runs from ep1 to ep2.
// The orientation is the minimal rotation taking ReferenceAxis onto the ep1→ep2 direction.
func NewCapsuleFromEndpoints(ep1, ep2 r3.Vector, radius float64) (*Capsule, error) {
	if !isFinite(ep1.X, ep1.Y, ep1.Z, ep2.X, ep2.Y, ep2.Z) {
		return nil, errors.Wrapf(ErrBadCapsuleDimensions, "endpoints %v and %v", ep1, ep2)
	}
	segment := ep2.Sub(ep1)
	center := ep1.Add(ep2).Mul(0.5)
	return NewCapsule(center, OrientationFromDirection(segment), segment.Norm(), radius)
}

// OrientationFromDirection returns the minimal rotation that aligns ReferenceAxis with direction.
// Parallel directions yield no rotation, antiparallel ones a half turn about X, and a zero
// direction yields no rotation.
func OrientationFromDirection(direction r3.Vector) Orientation {
	norm := direction.Norm()
	if norm == 0 {
		return NewZeroOrientation()
	}
	dir := direction.Mul(1 / norm)
	axis := ReferenceAxis.Cross(dir)
	sinTheta := axis.Norm()
	cosTheta := ReferenceAxis.Dot(dir)
	if sinTheta < degenerateSine {
		if cosTheta > 0 {
			return NewZeroOrientation()
		}
		return &R4AA{Theta: math.Pi, RX: 1, RY: 0, RZ: 0}
	}
	theta := math.Atan2(sinTheta, cosTheta)
	return &R4AA{Theta: theta, RX: axis.X / sinTheta, RY: axis.Y / sinTheta, RZ: axis.Z / sinTheta}
}

// Pose returns the pose of the capsule's center.
func (c *Capsule) Pose() Pose {
	return c.pose
}

// Center returns the midpoint of the capsule's segment.
func (c *Capsule) Center() r3.Vector {
	return c.pose.Point()
}

// Orientation returns the orientation of the capsule.
func (c *Capsule) Orientation() Orientation {
	return c.pose.Orientation()
}

// Length returns the length of the capsule's segment.
func (c *Capsule) Length() float64 {
	return c.length
}

// Radius returns the radius of the capsule.
func (c *Capsule) Radius() float64 {
	return c.radius
}

// Axis returns the unit vector along which the capsule's segment extends.
func (c *Capsule) Axis() r3.Vector {
	return c.Orientation().RotationMatrix().Col(2)
}

// Endpoints returns the two ends of the capsule's segment.
func (c *Capsule) Endpoints() (r3.Vector, r3.Vector) {
	half := c.Axis().Mul(0.5 * c.length)
	center := c.Center()
	return center.Sub(half), center.Add(half)
}

// CheckAlignment verifies that the capsule's axis matches the normalized direction within
// AlignmentTolerance. A zero direction always passes.
func (c *Capsule) CheckAlignment(direction r3.Vector) error {
	norm := direction.Norm()
	if norm == 0 {
		return nil
	}
	axis := c.Axis()
	dir := direction.Mul(1 / norm)
	if !R3VectorAlmostEqual(axis, dir, AlignmentTolerance) {
		return errors.Wrapf(ErrAxisMisaligned, "axis %v, direction %v", axis, dir)
	}
	return nil
}

// Transform premultiplies the capsule pose with a transform, moving the capsule from the frame of
// toPremultiply's child into its parent.
func (c *Capsule) Transform(toPremultiply Pose) *Capsule {
	return &Capsule{
		pose:   Compose(toPremultiply, c.pose),
		length: c.length,
		radius: c.radius,
	}
}

// String returns a human readable string that represents the capsule.
func (c *Capsule) String() string {
	center := c.Center()
	return fmt.Sprintf("Type: Capsule, Radius: %.6f, Length: %.6f, Center: (%.6f, %.6f, %.6f)",
		c.radius, c.length, center.X, center.Y, center.Z)
}
