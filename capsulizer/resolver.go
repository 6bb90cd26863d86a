// Package capsulizer replaces the mesh collision geometry of a robot description with capsules,
// fitting each mesh once per scale and caching the result next to it.
package capsulizer

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"

	"go.viam.com/urdfcapsule/capsulecache"
	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/optimizer"
	"go.viam.com/urdfcapsule/ros"
	"go.viam.com/urdfcapsule/spatialmath"
	"go.viam.com/urdfcapsule/urdf"
)

// Stats counts what a run did.
type Stats struct {
	Hits       int // capsules served from a store
	Misses     int // capsules computed by the optimizer
	Collisions int // collision elements replaced
	Links      int // links with at least one replaced collision
}

// Resolver turns one mesh collision element into a capsule posed in the element's link frame.
type Resolver struct {
	optimizer optimizer.Optimizer
	locator   *ros.Locator
	cacheDir  string
	logger    logging.Logger

	stores map[string]*capsulecache.Store
	stats  Stats
}

// NewResolver returns a resolver. An empty cacheDir keeps every store next to its mesh.
func NewResolver(opt optimizer.Optimizer, locator *ros.Locator, cacheDir string, logger logging.Logger) *Resolver {
	return &Resolver{
		optimizer: opt,
		locator:   locator,
		cacheDir:  cacheDir,
		logger:    logger,
		stores:    map[string]*capsulecache.Store{},
	}
}

// Stats returns the cache hits and misses so far.
func (r *Resolver) Stats() Stats {
	return r.stats
}

// MeshPath resolves the mesh referenced by c. Relative paths are taken from baseDir.
func (r *Resolver) MeshPath(c *urdf.Collision, baseDir string) (string, error) {
	mesh, err := meshOf(c)
	if err != nil {
		return "", err
	}
	path, err := r.locator.Resolve(mesh.Filename)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return path, nil
}

// Resolve returns the capsule for c. A capsule cached under the element's scale is used while its
// store is up to date; otherwise the optimizer fits one, it is moved into the element's frame and
// saved.
func (r *Resolver) Resolve(ctx context.Context, c *urdf.Collision, baseDir string) (*spatialmath.Capsule, error) {
	mesh, err := meshOf(c)
	if err != nil {
		return nil, err
	}
	meshPath, err := r.MeshPath(c, baseDir)
	if err != nil {
		return nil, err
	}
	store, err := r.store(meshPath)
	if err != nil {
		return nil, err
	}
	key, err := capsulecache.ScalingKeyFor(c)
	if err != nil {
		return nil, err
	}

	cached, err := r.cached(store, key)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		r.stats.Hits++
		r.logger.Debugw("capsule cache hit", "mesh", meshPath, "key", key)
		return cached, nil
	}

	scale, err := mesh.ScaleVector()
	if err != nil {
		return nil, err
	}
	r.logger.Infow("fitting capsule", "mesh", meshPath, "key", key)
	result, err := r.optimizer.Fit(ctx, meshPath, scale)
	if err != nil {
		return nil, err
	}
	r.stats.Misses++

	fitted, err := spatialmath.NewCapsuleFromEndpoints(result.Endpoint1, result.Endpoint2, result.Radius)
	if err != nil {
		return nil, errors.Wrapf(optimizer.ErrOptimizerFailed, "%s: %v", meshPath, err)
	}

	origin, err := c.Origin.Pose()
	if err != nil {
		return nil, err
	}
	composed := fitted.Transform(origin)
	// the stored and emitted roll, pitch and yaw must be the same numbers
	capsule, err := spatialmath.NewCapsule(
		composed.Center(), composed.Orientation().EulerAngles(), composed.Length(), composed.Radius(),
	)
	if err != nil {
		return nil, err
	}
	direction := spatialmath.RotateVector(origin.Orientation(), result.Endpoint2.Sub(result.Endpoint1))
	if err := capsule.CheckAlignment(direction); err != nil {
		r.logger.Warnw("fitted capsule axis does not match its endpoints", "mesh", meshPath, "error", err)
	}
	if err := store.Save(key, capsule); err != nil {
		return nil, err
	}
	return capsule, nil
}

func (r *Resolver) cached(store *capsulecache.Store, key capsulecache.ScalingKey) (*spatialmath.Capsule, error) {
	fresh, err := store.IsUpToDate()
	if err != nil || !fresh {
		return nil, err
	}
	exists, err := store.Exists(key)
	if err != nil || !exists {
		return nil, err
	}
	return store.GetParameters(key)
}

func (r *Resolver) store(meshPath string) (*capsulecache.Store, error) {
	if store, ok := r.stores[meshPath]; ok {
		return store, nil
	}
	store, err := capsulecache.Open(meshPath, r.cacheDir, r.logger)
	if err != nil {
		return nil, err
	}
	r.stores[meshPath] = store
	return store, nil
}

func meshOf(c *urdf.Collision) (*urdf.Mesh, error) {
	if c == nil || c.Geometry == nil {
		return nil, errors.Wrap(urdf.ErrValidation, "collision has no geometry")
	}
	shape, err := c.Geometry.Shape()
	if err != nil {
		return nil, err
	}
	mesh, ok := shape.(*urdf.Mesh)
	if !ok {
		return nil, errors.Wrapf(urdf.ErrValidation, "expected %s geometry but got %s", urdf.MeshType, shape.Type())
	}
	return mesh, nil
}
