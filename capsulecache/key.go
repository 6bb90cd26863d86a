package capsulecache

import (
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfcapsule/urdf"
)

// ScalingKey names the cache entry for one mesh used at one scale. Scales that agree to five decimals
// share a key.
type ScalingKey string

// IdentityKey is the key of an unscaled mesh.
var IdentityKey = NewScalingKey(r3.Vector{X: 1, Y: 1, Z: 1})

// NewScalingKey formats a scale vector as "sx_sy_sz".
func NewScalingKey(scale r3.Vector) ScalingKey {
	return ScalingKey(fmt.Sprintf("%.5f_%.5f_%.5f", scale.X, scale.Y, scale.Z))
}

// ScalingKeyFor derives the key from the scale of a mesh collision element, identity when unset.
func ScalingKeyFor(c *urdf.Collision) (ScalingKey, error) {
	if c == nil || c.Geometry == nil {
		return "", errors.Wrap(urdf.ErrValidation, "collision has no geometry to take a scale from")
	}
	shape, err := c.Geometry.Shape()
	if err != nil {
		return "", err
	}
	mesh, ok := shape.(*urdf.Mesh)
	if !ok {
		return "", errors.Wrapf(urdf.ErrValidation, "only a mesh carries a scale, got %s", shape.Type())
	}
	scale, err := mesh.ScaleVector()
	if err != nil {
		return "", err
	}
	return NewScalingKey(scale), nil
}
