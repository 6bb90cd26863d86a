package cli

import (
	"github.com/urfave/cli/v2"
)

// ConfigShowAction prints the configuration after the config file and defaults are applied.
func ConfigShowAction(c *cli.Context) error {
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	data, err := r.cfg.Marshal()
	if err != nil {
		return err
	}
	if r.cfg.ConfigFilePath != "" {
		printf(c.App.Writer, "# %s", r.cfg.ConfigFilePath)
	}
	_, err = c.App.Writer.Write(data)
	return err
}
