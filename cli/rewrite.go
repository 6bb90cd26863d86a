package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/urdfcapsule/capsulizer"
	"go.viam.com/urdfcapsule/optimizer"
	"go.viam.com/urdfcapsule/urdf"
)

// changes closer together than this trigger one rewrite.
const watchDebounce = 200 * time.Millisecond

// RewriteAction replaces the mesh collisions of a description with capsules.
func RewriteAction(c *cli.Context) error {
	if err := expectArgs(c, 0, 1); err != nil {
		return err
	}
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(r.logger.Sync)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := &rewriteJob{
		c:      c,
		runner: r,
		input:  c.Args().First(),
		output: c.Path(generalFlagOutput),
	}
	if c.Bool(rewriteFlagWatch) {
		return job.watch(ctx)
	}
	_, err = job.run(ctx)
	return err
}

type rewriteJob struct {
	c      *cli.Context
	runner *runner
	input  string
	output string
}

func (j *rewriteJob) newRewriter() (*capsulizer.Resolver, *capsulizer.Rewriter) {
	cfg := j.runner.cfg
	logger := j.runner.logger
	opt := optimizer.NewExternal(
		cfg.Optimizer.Executable,
		time.Duration(cfg.Optimizer.Timeout),
		cfg.Optimizer.Retries,
		logger.Sublogger("optimizer"),
	)
	resolver := capsulizer.NewResolver(opt, j.runner.locator(), cfg.Cache.Dir, logger.Sublogger("resolver"))
	return resolver, capsulizer.NewRewriter(resolver, logger)
}

// run rewrites the input once. It returns the meshes the input refers to, also when the rewrite
// itself failed, so a watcher knows what to follow.
func (j *rewriteJob) run(ctx context.Context) ([]string, error) {
	data, baseDir, err := readInput(j.c, j.input)
	if err != nil {
		return nil, err
	}
	robot, err := urdf.Parse(data)
	if err != nil {
		return nil, err
	}
	resolver, rewriter := j.newRewriter()
	meshes := meshPaths(resolver, robot, baseDir)

	if _, err := rewriter.Rewrite(ctx, robot, baseDir); err != nil {
		return meshes, err
	}
	out, err := robot.Marshal()
	if err != nil {
		return meshes, err
	}
	return meshes, writeOutput(j.c, j.output, out)
}

func meshPaths(resolver *capsulizer.Resolver, robot *urdf.Robot, baseDir string) []string {
	var paths []string
	for _, link := range robot.Links {
		paths = append(paths, lo.FilterMap(link.Collisions, func(col *urdf.Collision, _ int) (string, bool) {
			if col.Geometry == nil || col.Geometry.Mesh == nil {
				return "", false
			}
			path, err := resolver.MeshPath(col, baseDir)
			if err != nil {
				return "", false
			}
			abs, err := filepath.Abs(path)
			return abs, err == nil
		})...)
	}
	return lo.Uniq(paths)
}

// watch rewrites the input, then again every time the input or one of its meshes changes, until ctx
// is done. Failed rewrites are logged and do not stop the watch.
func (j *rewriteJob) watch(ctx context.Context) error {
	if isStdio(j.input) {
		return errors.Errorf("--%s needs an input file", rewriteFlagWatch)
	}
	input, err := filepath.Abs(j.input)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "starting file watcher")
	}
	defer utils.UncheckedErrorFunc(watcher.Close)

	logger := j.runner.logger
	watched := map[string]bool{}
	dirs := map[string]bool{}
	// directories are watched rather than files so editors that replace a file are still seen
	follow := func(paths []string) {
		for _, path := range paths {
			watched[path] = true
			dir := filepath.Dir(path)
			if dirs[dir] {
				continue
			}
			if err := watcher.Add(dir); err != nil {
				logger.Warnw("cannot watch directory", "dir", dir, "error", err)
				continue
			}
			dirs[dir] = true
		}
	}
	rewrite := func() {
		meshes, err := j.run(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorw("rewrite failed", "error", err)
		}
		follow(append(meshes, input))
		logger.Infow("watching for changes", "files", len(watched))
	}

	rewrite()
	debounced := debounce.New(watchDebounce)
	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			logger.Debugw("file changed", "file", event.Name, "op", event.Op.String())
			debounced(func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnw("file watcher error", "error", err)
		case <-trigger:
			rewrite()
		}
	}
}
