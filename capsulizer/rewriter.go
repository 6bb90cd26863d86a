package capsulizer

import (
	"context"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/spatialmath"
	"go.viam.com/urdfcapsule/urdf"
)

// Rewriter replaces every mesh collision of a description with a cylinder carrying the capsule's
// length and radius. Visuals, joints and non-mesh collisions are left alone.
type Rewriter struct {
	resolver *Resolver
	logger   logging.Logger
}

// NewRewriter returns a rewriter that resolves capsules through resolver.
func NewRewriter(resolver *Resolver, logger logging.Logger) *Rewriter {
	return &Rewriter{resolver: resolver, logger: logger}
}

type replacement struct {
	collision *urdf.Collision
	capsule   *spatialmath.Capsule
}

// Rewrite resolves every mesh collision of robot and then replaces them all. The first failure aborts
// the run and leaves robot untouched; the error names the link and the mesh.
func (rw *Rewriter) Rewrite(ctx context.Context, robot *urdf.Robot, baseDir string) (Stats, error) {
	var replacements []replacement
	links := 0
	for _, link := range robot.Links {
		meshes := lo.Filter(link.Collisions, func(c *urdf.Collision, _ int) bool {
			return c.Geometry != nil && c.Geometry.Mesh != nil
		})
		for _, c := range meshes {
			if err := ctx.Err(); err != nil {
				return Stats{}, err
			}
			capsule, err := rw.resolver.Resolve(ctx, c, baseDir)
			if err != nil {
				return Stats{}, errors.Wrapf(err, "link %q, mesh %q", link.Name, c.Geometry.Mesh.Filename)
			}
			replacements = append(replacements, replacement{collision: c, capsule: capsule})
		}
		if len(meshes) > 0 {
			links++
		}
	}

	for _, r := range replacements {
		r.collision.Geometry.SetShape(&urdf.Cylinder{Radius: r.capsule.Radius(), Length: r.capsule.Length()})
		r.collision.Origin = urdf.NewOrigin(r.capsule.Pose())
	}

	stats := rw.resolver.Stats()
	stats.Collisions = len(replacements)
	stats.Links = links
	rw.logger.Infow("rewrote robot description",
		"robot", robot.Name,
		"links", stats.Links,
		"collisions", stats.Collisions,
		"cache_hits", stats.Hits,
		"cache_misses", stats.Misses,
	)
	return stats, nil
}
