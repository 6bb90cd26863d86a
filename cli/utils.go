package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"
	"go.viam.com/utils"

	"go.viam.com/urdfcapsule/config"
	"go.viam.com/urdfcapsule/logging"
	"go.viam.com/urdfcapsule/ros"
)

// runner carries what every action needs: the effective config and a logger writing to the app's
// error writer.
type runner struct {
	cfg    *config.Config
	logger logging.Logger
}

func newRunner(c *cli.Context) (*runner, error) {
	cfg, err := config.Read(c.Path(generalFlagConfig))
	if err != nil {
		return nil, err
	}
	if err := applyFlags(c, cfg); err != nil {
		return nil, err
	}
	level, err := cfg.Logging.ZapLevel()
	if err != nil {
		return nil, err
	}
	if c.Bool(generalFlagDebug) {
		level = zapcore.DebugLevel
	}
	logger := logging.NewWriterLogger("urdfcapsule", c.App.ErrWriter, level)
	if cfg.ConfigFilePath != "" {
		logger.Debugw("loaded config", "path", cfg.ConfigFilePath)
	}
	return &runner{cfg: cfg, logger: logger}, nil
}

// applyFlags overrides config file values with the flags given on the command line.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet(generalFlagCapsulePath) {
		cfg.Cache.Dir = c.Path(generalFlagCapsulePath)
	}
	if c.IsSet(rewriteFlagOptimizer) {
		cfg.Optimizer.Executable = c.String(rewriteFlagOptimizer)
	}
	if c.IsSet(rewriteFlagTimeout) {
		cfg.Optimizer.Timeout = config.Duration(c.Duration(rewriteFlagTimeout))
	}
	if c.IsSet(rewriteFlagRetries) {
		cfg.Optimizer.Retries = c.Int(rewriteFlagRetries)
	}
	if c.IsSet(rewriteFlagPackagePath) {
		cfg.ROS.PackagePath = c.StringSlice(rewriteFlagPackagePath)
	}
	return cfg.Ensure()
}

func (r *runner) locator() *ros.Locator {
	return ros.NewLocator(r.cfg.ROS.PackagePath, r.logger.Sublogger("ros"))
}

// readInput reads the description named by input, or stdin when input is empty or "-". It also
// returns the directory relative mesh paths are taken from.
func readInput(c *cli.Context, input string) ([]byte, string, error) {
	if isStdio(input) {
		data, err := io.ReadAll(c.App.Reader)
		if err != nil {
			return nil, "", errors.Wrap(err, "reading stdin")
		}
		wd, err := os.Getwd()
		if err != nil {
			return nil, "", err
		}
		return data, wd, nil
	}
	abs, err := filepath.Abs(input)
	if err != nil {
		return nil, "", err
	}
	//nolint:gosec
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, "", err
	}
	return data, filepath.Dir(abs), nil
}

// writeOutput writes data to stdout when output is empty or "-" and replaces output otherwise.
func writeOutput(c *cli.Context, output string, data []byte) error {
	if isStdio(output) {
		_, err := c.App.Writer.Write(data)
		return err
	}
	return writeFileAtomic(output, data)
}

// writeFileAtomic writes data next to path and renames it into place, so readers see the old file or
// the new one.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	defer utils.UncheckedErrorFunc(func() error { return removeIfExists(tmp.Name()) })
	if _, err := tmp.Write(data); err != nil {
		utils.UncheckedError(tmp.Close())
		return errors.Wrapf(err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	//nolint:gosec
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "writing %s", path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func isStdio(path string) bool {
	return path == "" || path == stdioArg
}

// printf prints a message with a newline to w.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// expectArgs fails unless the command got between min and max positional arguments.
func expectArgs(c *cli.Context, minArgs, maxArgs int) error {
	if n := c.Args().Len(); n < minArgs || n > maxArgs {
		if minArgs == maxArgs {
			return errors.Errorf("%s expects %d argument(s), got %d", c.Command.FullName(), minArgs, n)
		}
		return errors.Errorf("%s expects at most %d argument(s), got %d", c.Command.FullName(), maxArgs, n)
	}
	return nil
}
