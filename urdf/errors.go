package urdf

import "github.com/pkg/errors"

// ErrValidation is returned when a description is missing required collision data or carries
// malformed values.
var ErrValidation = errors.New("invalid robot description")
