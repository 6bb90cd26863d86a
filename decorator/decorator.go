// Package decorator expands cylinder collisions into capsules made of a cylinder and two spheres,
// for renderers that cannot draw capsules.
package decorator

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/samber/lo"

	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/spatialmath"
	"go.viam.com/urdfcapsule/urdf"
)

// OutputSuffix replaces the extension of a decorated description.
const OutputSuffix = "_capsules." + urdf.Extension

const sphereMatchTolerance = 1e-9

// Stats counts what a decoration pass did.
type Stats struct {
	Cylinders int
	Spheres   int // spheres added; existing caps are not counted
}

// Decorator adds a sphere at each end of every cylinder collision.
type Decorator struct {
	logger logging.Logger
}

// NewDecorator returns a decorator.
func NewDecorator(logger logging.Logger) *Decorator {
	return &Decorator{logger: logger}
}

// OutputPath names the decorated copy of a description, e.g. arm.urdf becomes arm_capsules.urdf.
func OutputPath(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + OutputSuffix
}

type endCap struct {
	center r3.Vector
	radius float64
}

// Decorate adds the end spheres in place. Spheres already present at an end with the cylinder's
// radius are not added twice.
func (d *Decorator) Decorate(robot *urdf.Robot) (Stats, error) {
	var stats Stats
	for _, link := range robot.Links {
		caps, err := existingCaps(link)
		if err != nil {
			return Stats{}, err
		}
		cylinders := lo.Filter(link.Collisions, func(c *urdf.Collision, _ int) bool {
			return c.Geometry != nil && c.Geometry.Cylinder != nil
		})
		for _, c := range cylinders {
			pose, err := c.Origin.Pose()
			if err != nil {
				return Stats{}, err
			}
			capsule, err := spatialmath.NewCapsule(pose.Point(), pose.Orientation(), c.Geometry.Cylinder.Length, c.Geometry.Cylinder.Radius)
			if err != nil {
				return Stats{}, err
			}
			stats.Cylinders++

			ep1, ep2 := capsule.Endpoints()
			for i, ep := range []r3.Vector{ep1, ep2} {
				end := endCap{center: ep, radius: capsule.Radius()}
				if lo.ContainsBy(caps, end.matches) {
					continue
				}
				link.AddCollision(&urdf.Collision{
					Name:     capName(c.Name, i),
					Origin:   urdf.NewOrigin(spatialmath.NewPoseFromPoint(ep)),
					Geometry: urdf.NewGeometry(&urdf.Sphere{Radius: capsule.Radius()}),
				})
				caps = append(caps, end)
				stats.Spheres++
			}
		}
	}
	d.logger.Infow("decorated robot description", "robot", robot.Name, "cylinders", stats.Cylinders, "spheres", stats.Spheres)
	return stats, nil
}

// DecorateDocument reads a description from in, decorates it and writes it to out.
func (d *Decorator) DecorateDocument(in io.Reader, out io.Writer) (Stats, error) {
	robot, err := urdf.Read(in)
	if err != nil {
		return Stats{}, err
	}
	stats, err := d.Decorate(robot)
	if err != nil {
		return Stats{}, err
	}
	data, err := robot.Marshal()
	if err != nil {
		return Stats{}, err
	}
	if _, err := out.Write(data); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (c endCap) matches(other endCap) bool {
	return spatialmath.Float64AlmostEqual(c.radius, other.radius, sphereMatchTolerance) &&
		spatialmath.R3VectorAlmostEqual(c.center, other.center, sphereMatchTolerance)
}

func existingCaps(link *urdf.Link) ([]endCap, error) {
	var caps []endCap
	for _, c := range link.Collisions {
		if c.Geometry == nil || c.Geometry.Sphere == nil {
			continue
		}
		pose, err := c.Origin.Pose()
		if err != nil {
			return nil, err
		}
		caps = append(caps, endCap{center: pose.Point(), radius: c.Geometry.Sphere.Radius})
	}
	return caps, nil
}

func capName(cylinder string, end int) string {
	if cylinder == "" {
		return ""
	}
	return cylinder + []string{"_cap1", "_cap2"}[end]
}
