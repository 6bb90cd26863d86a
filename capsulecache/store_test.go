package capsulecache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/spatialmath"
	"go.viam.com/urdfcapsule/urdf"
)

func writeMesh(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	test.That(t, os.WriteFile(path, []byte("solid mesh\nendsolid mesh\n"), 0o600), test.ShouldBeNil)
	return path
}

func touch(t *testing.T, path string, when time.Time) {
	t.Helper()
	test.That(t, os.Chtimes(path, when, when), test.ShouldBeNil)
}

func testCapsule(t *testing.T, x float64) *spatialmath.Capsule {
	t.Helper()
	c, err := spatialmath.NewCapsule(
		r3.Vector{X: x, Y: 0.25, Z: -1},
		&spatialmath.EulerAngles{Roll: 0.1, Pitch: -0.2, Yaw: 0.3},
		1.5,
		0.2,
	)
	test.That(t, err, test.ShouldBeNil)
	return c
}

func TestScalingKey(t *testing.T) {
	test.That(t, IdentityKey, test.ShouldEqual, ScalingKey("1.00000_1.00000_1.00000"))
	test.That(t, NewScalingKey(r3.Vector{X: 2, Y: 1, Z: 1}), test.ShouldEqual, ScalingKey("2.00000_1.00000_1.00000"))
	test.That(t, NewScalingKey(r3.Vector{X: 0.001, Y: 1, Z: 1}), test.ShouldEqual, NewScalingKey(r3.Vector{X: 0.0010000001, Y: 1, Z: 1}))
	test.That(t, NewScalingKey(r3.Vector{X: 0.00101, Y: 1, Z: 1}), test.ShouldNotEqual, NewScalingKey(r3.Vector{X: 0.001, Y: 1, Z: 1}))

	key, err := ScalingKeyFor(&urdf.Collision{Geometry: urdf.NewGeometry(&urdf.Mesh{Filename: "a.stl"})})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, key, test.ShouldEqual, IdentityKey)

	key, err = ScalingKeyFor(&urdf.Collision{Geometry: urdf.NewGeometry(&urdf.Mesh{Filename: "a.stl", Scale: "2 1 1"})})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, key, test.ShouldEqual, ScalingKey("2.00000_1.00000_1.00000"))

	_, err = ScalingKeyFor(&urdf.Collision{})
	test.That(t, errors.Is(err, urdf.ErrValidation), test.ShouldBeTrue)
	_, err = ScalingKeyFor(nil)
	test.That(t, errors.Is(err, urdf.ErrValidation), test.ShouldBeTrue)
	_, err = ScalingKeyFor(&urdf.Collision{Geometry: urdf.NewGeometry(&urdf.Mesh{Filename: "a.stl", Scale: "2 1"})})
	test.That(t, errors.Is(err, urdf.ErrValidation), test.ShouldBeTrue)
	_, err = ScalingKeyFor(&urdf.Collision{Geometry: urdf.NewGeometry(&urdf.Sphere{Radius: 1})})
	test.That(t, errors.Is(err, urdf.ErrValidation), test.ShouldBeTrue)
}

func TestPathFor(t *testing.T) {
	test.That(t, PathFor("/robots/arm/meshes/base.stl", ""), test.ShouldEqual, "/robots/arm/meshes/base.cache")
	test.That(t, PathFor("/robots/arm/meshes/base.stl", "/var/cache/capsules"), test.ShouldEqual, "/var/cache/capsules/base.cache")
	test.That(t, PathFor("meshes/link.v2.dae", ""), test.ShouldEqual, "meshes/link.v2.cache")
	test.That(t, PathFor("meshes/noext", ""), test.ShouldEqual, "meshes/noext.cache")
}

func TestOpen(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()

	_, err := Open(filepath.Join(dir, "missing.stl"), "", logger)
	test.That(t, errors.Is(err, ErrMeshNotFound), test.ShouldBeTrue)

	_, err = Open(dir, "", logger)
	test.That(t, errors.Is(err, ErrMeshNotFound), test.ShouldBeTrue)

	mesh := writeMesh(t, dir, "base.stl")
	store, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, store.MeshPath(), test.ShouldEqual, mesh)
	test.That(t, store.Path(), test.ShouldEqual, filepath.Join(dir, "base.cache"))

	// nothing is created until the first save
	exists, err := store.Exists(IdentityKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeFalse)
	fresh, err := store.IsUpToDate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fresh, test.ShouldBeFalse)
	_, err = os.Stat(store.Path())
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestSaveAndGetParameters(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	mesh := writeMesh(t, dir, "base.stl")
	touch(t, mesh, time.Now().Add(-time.Hour))

	store, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)

	original := testCapsule(t, 1)
	test.That(t, store.Save(IdentityKey, original), test.ShouldBeNil)

	fresh, err := store.IsUpToDate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fresh, test.ShouldBeTrue)

	// a second store on the same mesh sees the entry through the file
	reopened, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	exists, err := reopened.Exists(IdentityKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)
	exists, err = reopened.Exists(NewScalingKey(r3.Vector{X: 2, Y: 1, Z: 1}))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeFalse)

	loaded, err := reopened.GetParameters(IdentityKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, loaded.Center(), test.ShouldResemble, original.Center())
	test.That(t, loaded.Length(), test.ShouldEqual, original.Length())
	test.That(t, loaded.Radius(), test.ShouldEqual, original.Radius())
	test.That(t, loaded.Orientation().EulerAngles(), test.ShouldResemble, original.Orientation().EulerAngles())

	_, err = reopened.GetParameters(NewScalingKey(r3.Vector{X: 2, Y: 1, Z: 1}))
	test.That(t, errors.Is(err, ErrKeyNotFound), test.ShouldBeTrue)

	// saving another key keeps the first
	test.That(t, reopened.Save(NewScalingKey(r3.Vector{X: 2, Y: 1, Z: 1}), testCapsule(t, 2)), test.ShouldBeNil)
	keys, err := reopened.Keys()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, keys, test.ShouldResemble, []ScalingKey{IdentityKey, "2.00000_1.00000_1.00000"})

	entries, err := reopened.Entries()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries[IdentityKey].Type, test.ShouldEqual, "cylinder")
	test.That(t, entries["2.00000_1.00000_1.00000"].XYZ, test.ShouldResemble, [3]float64{2, 0.25, -1})

	// no temp files are left behind
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, matches, test.ShouldBeEmpty)
}

func TestStaleness(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	mesh := writeMesh(t, dir, "base.stl")
	touch(t, mesh, time.Now().Add(-time.Hour))

	store, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, store.Save(IdentityKey, testCapsule(t, 1)), test.ShouldBeNil)

	touch(t, mesh, time.Now().Add(time.Hour))
	fresh, err := store.IsUpToDate()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, fresh, test.ShouldBeFalse)

	// the stale entry is still visible but a save into the stale file drops it
	exists, err := store.Exists(IdentityKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)

	scaled := NewScalingKey(r3.Vector{X: 2, Y: 1, Z: 1})
	touch(t, store.Path(), time.Now().Add(-2*time.Hour))
	test.That(t, store.Save(scaled, testCapsule(t, 2)), test.ShouldBeNil)
	keys, err := store.Keys()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, keys, test.ShouldResemble, []ScalingKey{scaled})
}

func TestCacheDir(t *testing.T) {
	logger := logging.NewTestLogger(t)
	meshDir := t.TempDir()
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache")
	mesh := writeMesh(t, meshDir, "forearm.stl")

	store, err := Open(mesh, cacheDir, logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, store.Path(), test.ShouldEqual, filepath.Join(cacheDir, "forearm.cache"))
	test.That(t, store.Save(IdentityKey, testCapsule(t, 0)), test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(cacheDir, "forearm.cache"))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(meshDir, "forearm.cache"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestCorruptStore(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	mesh := writeMesh(t, dir, "base.stl")

	store, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	doc := `{"mesh": "base.stl", "entries": {"1.00000_1.00000_1.00000": {"type": "box", "length": 1, "radius": 1, "xyz": [0,0,0], "rpy": [0,0,0]}}}`
	test.That(t, os.WriteFile(store.Path(), []byte(doc), 0o600), test.ShouldBeNil)

	exists, err := store.Exists(IdentityKey)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, exists, test.ShouldBeTrue)
	_, err = store.GetParameters(IdentityKey)
	test.That(t, errors.Is(err, ErrCacheCorrupt), test.ShouldBeTrue)

	bad, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, os.WriteFile(bad.Path(), []byte("<robot/>"), 0o600), test.ShouldBeNil)
	_, err = bad.Exists(IdentityKey)
	test.That(t, errors.Is(err, ErrCacheCorrupt), test.ShouldBeTrue)

	negative, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)
	doc = `{"entries": {"1.00000_1.00000_1.00000": {"type": "cylinder", "length": -1, "radius": 1, "xyz": [0,0,0], "rpy": [0,0,0]}}}`
	test.That(t, os.WriteFile(negative.Path(), []byte(doc), 0o600), test.ShouldBeNil)
	_, err = negative.GetParameters(IdentityKey)
	test.That(t, errors.Is(err, ErrCacheCorrupt), test.ShouldBeTrue)
}

func TestRemove(t *testing.T) {
	logger := logging.NewTestLogger(t)
	dir := t.TempDir()
	mesh := writeMesh(t, dir, "base.stl")
	store, err := Open(mesh, "", logger)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, store.Remove(), test.ShouldBeNil)
	test.That(t, store.Save(IdentityKey, testCapsule(t, 1)), test.ShouldBeNil)
	test.That(t, store.Remove(), test.ShouldBeNil)
	_, err = os.Stat(store.Path())
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
	_, err = os.Stat(store.Path() + ".lock")
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)

	keys, err := store.Keys()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, keys, test.ShouldBeEmpty)
}
