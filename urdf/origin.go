package urdf

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/urdfcapsule/spatialmath"
)

// Origin is the XML used in a URDF origin element. Missing attributes mean zero.
type Origin struct {
	XMLName xml.Name `xml:"origin"`
	XYZ     string   `xml:"xyz,attr,omitempty"` // "x y z" format, in meters
	RPY     string   `xml:"rpy,attr,omitempty"` // fixed frame angle "r p y" format, in radians
}

// NewOrigin writes a pose as an origin element. An orientation given as *spatialmath.EulerAngles is
// written verbatim; anything else is converted first.
func NewOrigin(p spatialmath.Pose) *Origin {
	pt := p.Point()
	o := p.Orientation().EulerAngles()
	return &Origin{
		XYZ: FormatVector(pt),
		RPY: FormatVector(r3.Vector{X: o.Roll, Y: o.Pitch, Z: o.Yaw}),
	}
}

// Pose parses the origin. A nil origin is the identity.
func (o *Origin) Pose() (spatialmath.Pose, error) {
	if o == nil {
		return spatialmath.NewZeroPose(), nil
	}
	xyz, err := parseOptionalVector(o.XYZ)
	if err != nil {
		return nil, errors.Wrap(err, "origin xyz")
	}
	rpy, err := parseOptionalVector(o.RPY)
	if err != nil {
		return nil, errors.Wrap(err, "origin rpy")
	}
	return spatialmath.NewPose(xyz, &spatialmath.EulerAngles{Roll: rpy.X, Pitch: rpy.Y, Yaw: rpy.Z}), nil
}

// FormatFloat renders a value with the fewest digits that parse back to the same float64.
func FormatFloat(f float64) string {
	if f == 0 {
		// drops the sign of negative zero
		f = 0
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// FormatVector renders a vector in the space delimited "x y z" form.
func FormatVector(v r3.Vector) string {
	return FormatFloat(v.X) + " " + FormatFloat(v.Y) + " " + FormatFloat(v.Z)
}

func parseOptionalVector(s string) (r3.Vector, error) {
	if strings.TrimSpace(s) == "" {
		return r3.Vector{}, nil
	}
	return parseVector(s)
}

func parseVector(s string) (r3.Vector, error) {
	values, err := spaceDelimitedStringToFloatSlice(s)
	if err != nil {
		return r3.Vector{}, err
	}
	if len(values) != 3 {
		return r3.Vector{}, errors.Wrapf(ErrValidation, "expected 3 values but got %d in %q", len(values), s)
	}
	return r3.Vector{X: values[0], Y: values[1], Z: values[2]}, nil
}

// spaceDelimitedStringToFloatSlice splits up space-delimited fields in a string and converts them to floats.
func spaceDelimitedStringToFloatSlice(s string) ([]float64, error) {
	fields := strings.Fields(s)
	converted := make([]float64, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrValidation, "%q is not a number", field)
		}
		converted = append(converted, value)
	}
	return converted, nil
}
