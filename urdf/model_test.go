package urdf

import (
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/urdfcapsule/spatialmath"
)

const armDoc = `<?xml version="1.0"?>
<robot name="arm" xmlns:xacro="http://www.ros.org/wiki/xacro">
  <material name="grey"><color rgba="0.5 0.5 0.5 1"/></material>
  <link name="base">
    <visual>
      <geometry><mesh filename="package://arm/meshes/base.dae"/></geometry>
    </visual>
    <collision name="base_collision">
      <origin xyz="1 0 0" rpy="0 0 0"/>
      <geometry>
        <mesh filename="package://arm/meshes/base.stl" scale="2 1 1"/>
      </geometry>
    </collision>
    <inertial><mass value="1.5"/></inertial>
  </link>
  <joint name="j1" type="revolute">
    <parent link="base"/>
    <child link="upper"/>
    <limit lower="-1" upper="1"/>
  </joint>
  <link name="upper">
    <collision>
      <geometry><box size="0.1 0.2 0.3"/></geometry>
    </collision>
  </link>
</robot>
`

func TestParse(t *testing.T) {
	robot, err := Parse([]byte(armDoc))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, robot.Name, test.ShouldEqual, "arm")
	test.That(t, len(robot.Links), test.ShouldEqual, 2)

	base := robot.Link("base")
	test.That(t, base, test.ShouldNotBeNil)
	test.That(t, len(base.Collisions), test.ShouldEqual, 1)
	coll := base.Collisions[0]
	test.That(t, coll.Name, test.ShouldEqual, "base_collision")

	shape, err := coll.Geometry.Shape()
	test.That(t, err, test.ShouldBeNil)
	mesh, ok := shape.(*Mesh)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, mesh.Filename, test.ShouldEqual, "package://arm/meshes/base.stl")
	scale, err := mesh.ScaleVector()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale, test.ShouldResemble, r3.Vector{X: 2, Y: 1, Z: 1})

	pose, err := coll.Origin.Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, spatialmath.NewPoseFromPoint(r3.Vector{X: 1, Y: 0, Z: 0})), test.ShouldBeTrue)

	upper := robot.Link("upper")
	shape, err = upper.Collisions[0].Geometry.Shape()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, shape.Type(), test.ShouldEqual, BoxType)
	test.That(t, shape.(*Box).Size, test.ShouldEqual, "0.1 0.2 0.3")

	test.That(t, robot.Link("missing"), test.ShouldBeNil)
}

func TestMarshalKeepsUnknownElements(t *testing.T) {
	robot, err := Parse([]byte(armDoc))
	test.That(t, err, test.ShouldBeNil)
	out, err := robot.Marshal()
	test.That(t, err, test.ShouldBeNil)

	doc := string(out)
	test.That(t, strings.HasPrefix(doc, "<?xml"), test.ShouldBeTrue)
	test.That(t, doc, test.ShouldContainSubstring, `xmlns:xacro="http://www.ros.org/wiki/xacro"`)
	test.That(t, doc, test.ShouldContainSubstring, `<color rgba="0.5 0.5 0.5 1"></color>`)
	test.That(t, doc, test.ShouldContainSubstring, `<mass value="1.5"></mass>`)
	test.That(t, doc, test.ShouldContainSubstring, `<limit lower="-1" upper="1"></limit>`)

	// document order survives: material, base, joint, upper
	material := strings.Index(doc, "<material")
	base := strings.Index(doc, `<link name="base"`)
	joint := strings.Index(doc, "<joint")
	upper := strings.Index(doc, `<link name="upper"`)
	test.That(t, material, test.ShouldBeLessThan, base)
	test.That(t, base, test.ShouldBeLessThan, joint)
	test.That(t, joint, test.ShouldBeLessThan, upper)

	// visual before collision before inertial inside the link
	test.That(t, strings.Index(doc, "<visual"), test.ShouldBeLessThan, strings.Index(doc, "<collision"))
	test.That(t, strings.Index(doc, "<collision"), test.ShouldBeLessThan, strings.Index(doc, "<inertial"))

	// output is a fixed point
	again, err := Parse(out)
	test.That(t, err, test.ShouldBeNil)
	out2, err := again.Marshal()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(out2), test.ShouldEqual, doc)
}

func TestSetShape(t *testing.T) {
	robot, err := Parse([]byte(armDoc))
	test.That(t, err, test.ShouldBeNil)
	coll := robot.Link("base").Collisions[0]
	coll.Geometry.SetShape(&Cylinder{Radius: 0.25, Length: 1.5})
	coll.Origin = NewOrigin(spatialmath.NewPose(r3.Vector{X: 0.5, Y: 0, Z: 0}, &spatialmath.EulerAngles{Pitch: 0.1}))

	out, err := robot.Marshal()
	test.That(t, err, test.ShouldBeNil)
	doc := string(out)
	test.That(t, doc, test.ShouldContainSubstring, `<cylinder radius="0.25" length="1.5"></cylinder>`)
	test.That(t, doc, test.ShouldContainSubstring, `<origin xyz="0.5 0 0" rpy="0 0.1 0"></origin>`)
	test.That(t, doc, test.ShouldNotContainSubstring, "base.stl")
	// the visual mesh is not a collision and stays
	test.That(t, doc, test.ShouldContainSubstring, "base.dae")
}

func TestAddCollision(t *testing.T) {
	robot, err := Parse([]byte(armDoc))
	test.That(t, err, test.ShouldBeNil)
	base := robot.Link("base")
	base.AddCollision(&Collision{Geometry: NewGeometry(&Sphere{Radius: 0.1})})
	test.That(t, len(base.Collisions), test.ShouldEqual, 2)

	out, err := robot.Marshal()
	test.That(t, err, test.ShouldBeNil)
	doc := string(out)
	test.That(t, strings.Index(doc, "<sphere"), test.ShouldBeGreaterThan, strings.Index(doc, "base.stl"))
	test.That(t, strings.Index(doc, "<sphere"), test.ShouldBeLessThan, strings.Index(doc, "<inertial"))

	robot.AddLink(&Link{Name: "tool"})
	test.That(t, robot.Link("tool"), test.ShouldNotBeNil)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte(`<model name="x"></model>`))
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	_, err = Parse([]byte(`<robot name="x"><link name="a">`))
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	_, err = (&Geometry{}).Shape()
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	_, err = (&Geometry{Box: &Box{Size: "1 1 1"}, Sphere: &Sphere{Radius: 1}}).Shape()
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	_, err = (&Mesh{Filename: "a.stl", Scale: "1 x 1"}).ScaleVector()
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)

	_, err = (&Origin{XYZ: "1 2"}).Pose()
	test.That(t, errors.Is(err, ErrValidation), test.ShouldBeTrue)
}

func TestOrigin(t *testing.T) {
	var nilOrigin *Origin
	pose, err := nilOrigin.Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, spatialmath.NewZeroPose()), test.ShouldBeTrue)

	pose, err = (&Origin{RPY: "0 0 1.5707963267948966"}).Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point(), test.ShouldResemble, r3.Vector{})
	test.That(t, pose.Orientation().EulerAngles().Yaw, test.ShouldEqual, math.Pi/2)

	// euler angles pass through formatting unchanged
	ea := &spatialmath.EulerAngles{Roll: 0.1234567890123, Pitch: -1e-17, Yaw: math.Pi}
	o := NewOrigin(spatialmath.NewPose(r3.Vector{X: 1e-3, Y: -2, Z: 3.25}, ea))
	test.That(t, o.XYZ, test.ShouldEqual, "0.001 -2 3.25")
	back, err := o.Pose()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, back.Orientation().EulerAngles(), test.ShouldResemble, ea)

	mesh := &Mesh{Filename: "a.stl"}
	scale, err := mesh.ScaleVector()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, scale, test.ShouldResemble, r3.Vector{X: 1, Y: 1, Z: 1})
}
