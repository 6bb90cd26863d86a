package urdf

import (
	"encoding/xml"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// ShapeType names the primitive carried by a geometry element.
type ShapeType string

// The shapes a URDF geometry element may carry.
const (
	BoxType      ShapeType = "box"
	CylinderType ShapeType = "cylinder"
	SphereType   ShapeType = "sphere"
	MeshType     ShapeType = "mesh"
)

// Shape is the closed set of primitives a geometry element can hold: *Box, *Cylinder, *Sphere or *Mesh.
// Callers dispatch on it with a type switch.
type Shape interface {
	Type() ShapeType
	isShape()
}

// Geometry is the XML form of a URDF geometry element. Exactly one field is set in a valid document;
// use Shape and SetShape rather than the fields directly.
type Geometry struct {
	XMLName  xml.Name  `xml:"geometry"`
	Box      *Box      `xml:"box,omitempty"`
	Cylinder *Cylinder `xml:"cylinder,omitempty"`
	Sphere   *Sphere   `xml:"sphere,omitempty"`
	Mesh     *Mesh     `xml:"mesh,omitempty"`
}

// Box is a URDF box primitive.
type Box struct {
	XMLName xml.Name `xml:"box"`
	Size    string   `xml:"size,attr"` // "x y z" format
}

// Cylinder is a URDF cylinder primitive, extending Length along its local Z axis.
type Cylinder struct {
	XMLName xml.Name `xml:"cylinder"`
	Radius  float64  `xml:"radius,attr"`
	Length  float64  `xml:"length,attr"`
}

// Sphere is a URDF sphere primitive.
type Sphere struct {
	XMLName xml.Name `xml:"sphere"`
	Radius  float64  `xml:"radius,attr"`
}

// Mesh is a URDF mesh reference.
type Mesh struct {
	XMLName  xml.Name `xml:"mesh"`
	Filename string   `xml:"filename,attr"`        // path or package://name/rest
	Scale    string   `xml:"scale,attr,omitempty"` // "sx sy sz" format, identity when absent
}

// Type implements Shape.
func (b *Box) Type() ShapeType { return BoxType }

// Type implements Shape.
func (c *Cylinder) Type() ShapeType { return CylinderType }

// Type implements Shape.
func (s *Sphere) Type() ShapeType { return SphereType }

// Type implements Shape.
func (m *Mesh) Type() ShapeType { return MeshType }

func (b *Box) isShape()      {}
func (c *Cylinder) isShape() {}
func (s *Sphere) isShape()   {}
func (m *Mesh) isShape()     {}

// ScaleVector returns the mesh scale, (1,1,1) when none is given.
func (m *Mesh) ScaleVector() (r3.Vector, error) {
	if m.Scale == "" {
		return r3.Vector{X: 1, Y: 1, Z: 1}, nil
	}
	scale, err := parseVector(m.Scale)
	if err != nil {
		return r3.Vector{}, errors.Wrapf(err, "scale of mesh %q", m.Filename)
	}
	return scale, nil
}

// NewGeometry wraps a single shape in a geometry element.
func NewGeometry(s Shape) *Geometry {
	g := &Geometry{}
	g.SetShape(s)
	return g
}

// Shape returns the one primitive held by the geometry.
func (g *Geometry) Shape() (Shape, error) {
	var shapes []Shape
	if g.Box != nil {
		shapes = append(shapes, g.Box)
	}
	if g.Cylinder != nil {
		shapes = append(shapes, g.Cylinder)
	}
	if g.Sphere != nil {
		shapes = append(shapes, g.Sphere)
	}
	if g.Mesh != nil {
		shapes = append(shapes, g.Mesh)
	}
	switch len(shapes) {
	case 0:
		return nil, errors.Wrap(ErrValidation, "geometry defines no shape")
	case 1:
		return shapes[0], nil
	default:
		return nil, errors.Wrapf(ErrValidation, "geometry defines %d shapes", len(shapes))
	}
}

// SetShape replaces whatever the geometry held with s.
func (g *Geometry) SetShape(s Shape) {
	g.Box, g.Cylinder, g.Sphere, g.Mesh = nil, nil, nil, nil
	switch shape := s.(type) {
	case *Box:
		g.Box = shape
	case *Cylinder:
		g.Cylinder = shape
	case *Sphere:
		g.Sphere = shape
	case *Mesh:
		g.Mesh = shape
	default:
		panic(fmt.Sprintf("unknown shape %T", s))
	}
}
