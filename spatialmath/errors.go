package spatialmath

import (
	"github.com/pkg/errors"
)

var (
	// ErrBadCapsuleDimensions is returned when a capsule is built with a negative or non-finite length or radius.
	ErrBadCapsuleDimensions = errors.New("capsule dimensions must be finite and non-negative")

	// ErrAxisMisaligned is returned by the advisory alignment check when a capsule's longitudinal axis
	// does not follow the direction between its endpoints.
	ErrAxisMisaligned = errors.New("capsule axis does not match endpoint direction")
)

func newBadCapsuleDimensionsError(length, radius float64) error {
	return errors.Wrapf(ErrBadCapsuleDimensions, "length %v, radius %v", length, radius)
}
