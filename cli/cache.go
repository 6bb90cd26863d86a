package cli

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v2"

	"go.viam.com/urdfcapsule/capsulecache"
	"go.viam.com/urdfcapsule/urdf"
)

// CachePathAction prints where the capsule cache of a mesh lives.
func CachePathAction(c *cli.Context) error {
	_, store, err := openStore(c)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", store.Path())
	return nil
}

// CacheListAction prints a table of every capsule cached for a mesh, one scale per row.
func CacheListAction(c *cli.Context) error {
	r, store, err := openStore(c)
	if err != nil {
		return err
	}
	fresh, err := store.IsUpToDate()
	if err != nil {
		return err
	}
	keys, err := store.Keys()
	if err != nil {
		return err
	}
	entries, err := store.Entries()
	if err != nil {
		return err
	}
	if len(keys) > 0 && !fresh {
		r.logger.Warnw("mesh changed after its cache was written, entries will be refitted", "mesh", store.MeshPath())
	}
	if len(keys) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.AppendHeader(table.Row{"Scale", "Type", "Length", "Radius", "XYZ", "RPY"})
	for _, key := range keys {
		e := entries[key]
		t.AppendRow(table.Row{
			string(key),
			e.Type,
			urdf.FormatFloat(e.Length),
			urdf.FormatFloat(e.Radius),
			formatTriple(e.XYZ),
			formatTriple(e.RPY),
		})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

// CacheClearAction deletes the capsule cache of a mesh.
func CacheClearAction(c *cli.Context) error {
	r, store, err := openStore(c)
	if err != nil {
		return err
	}
	if err := store.Remove(); err != nil {
		return err
	}
	r.logger.Infow("cleared capsule cache", "mesh", store.MeshPath(), "path", store.Path())
	return nil
}

func openStore(c *cli.Context) (*runner, *capsulecache.Store, error) {
	if err := expectArgs(c, 1, 1); err != nil {
		return nil, nil, err
	}
	r, err := newRunner(c)
	if err != nil {
		return nil, nil, err
	}
	meshPath, err := r.locator().Resolve(c.Args().First())
	if err != nil {
		return nil, nil, err
	}
	store, err := capsulecache.Open(meshPath, r.cfg.Cache.Dir, r.logger.Sublogger("cache"))
	if err != nil {
		return nil, nil, err
	}
	return r, store, nil
}

func formatTriple(v [3]float64) string {
	parts := make([]string, 0, len(v))
	for _, f := range v {
		parts = append(parts, urdf.FormatFloat(f))
	}
	return strings.Join(parts, " ")
}
