// Package cli contains the urdfcapsule command line application.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/urdfcapsule/decorator"
	"go.viam.com/urdfcapsule/optimizer"
)

const (
	// Flags.
	generalFlagConfig      = "config"
	generalFlagDebug       = "debug"
	generalFlagOutput      = "output"
	generalFlagCapsulePath = "capsule-path"

	rewriteFlagOptimizer   = "optimizer"
	rewriteFlagTimeout     = "timeout"
	rewriteFlagRetries     = "retries"
	rewriteFlagPackagePath = "package-path"
	rewriteFlagWatch       = "watch"

	stdioArg = "-"
)

func capsulePathFlag() cli.Flag {
	return &cli.PathFlag{
		Name:    generalFlagCapsulePath,
		Aliases: []string{"c", "cache-dir"},
		Usage:   "keep capsule caches in `DIR` instead of next to each mesh",
	}
}

func packagePathFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  rewriteFlagPackagePath,
		Usage: "search `DIR` for ROS packages (repeatable, defaults to $ROS_PACKAGE_PATH)",
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:            "urdfcapsule",
		Usage:           "replace URDF collision meshes with fitted capsules",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:  generalFlagConfig,
				Usage: "load configuration from `FILE`",
			},
			&cli.BoolFlag{
				Name:    generalFlagDebug,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "rewrite",
				Usage:     "replace every mesh collision with a capsule cylinder",
				ArgsUsage: "[input.urdf|-]",
				Description: `Each mesh collision is fitted once per mesh and scale by the capsule optimizer and
the result is cached next to the mesh. The rewritten description goes to stdout unless --output
is given. With no input, or "-", the description is read from stdin.`,
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    generalFlagOutput,
						Aliases: []string{"o"},
						Usage:   "write the rewritten description to `FILE`",
					},
					capsulePathFlag(),
					&cli.StringFlag{
						Name:        rewriteFlagOptimizer,
						Usage:       "capsule optimizer `EXECUTABLE`",
						DefaultText: optimizer.DefaultExecutable,
					},
					&cli.DurationFlag{
						Name:        rewriteFlagTimeout,
						Usage:       "give up on one optimizer run after `DURATION`",
						DefaultText: optimizer.DefaultTimeout.String(),
					},
					&cli.IntFlag{
						Name:  rewriteFlagRetries,
						Usage: "retry a failed optimizer run `N` times",
					},
					packagePathFlag(),
					&cli.BoolFlag{
						Name:  rewriteFlagWatch,
						Usage: "rewrite again whenever the input or one of its meshes changes",
					},
				},
				Action: RewriteAction,
			},
			{
				Name:      "decorate",
				Usage:     "add a sphere at both ends of every cylinder collision",
				ArgsUsage: "[input.urdf|-]",
				Description: fmt.Sprintf(`Renders capsules for viewers that only know cylinders and spheres. The decorated
description goes to stdout unless --output is given, in which case the extension of FILE is
replaced by %q.`, decorator.OutputSuffix),
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:    generalFlagOutput,
						Aliases: []string{"o"},
						Usage:   "write the decorated description next to `FILE`, suffixed",
					},
				},
				Action: DecorateAction,
			},
			{
				Name:            "cache",
				Usage:           "inspect or clear the capsule cache of a mesh",
				HideHelpCommand: true,
				Flags:           []cli.Flag{capsulePathFlag(), packagePathFlag()},
				Subcommands: []*cli.Command{
					{
						Name:      "path",
						Usage:     "print where the cache of a mesh is kept",
						ArgsUsage: "<mesh>",
						Action:    CachePathAction,
					},
					{
						Name:      "list",
						Usage:     "list the capsules cached for a mesh",
						ArgsUsage: "<mesh>",
						Action:    CacheListAction,
					},
					{
						Name:      "clear",
						Usage:     "delete the cache of a mesh",
						ArgsUsage: "<mesh>",
						Action:    CacheClearAction,
					},
				},
			},
			{
				Name:            "config",
				Usage:           "work with the configuration file",
				HideHelpCommand: true,
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "print the effective configuration",
						Action: ConfigShowAction,
					},
				},
			},
		},
	}
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app := newApp()
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
