package cli

import (
	"bytes"

	"github.com/urfave/cli/v2"
	"go.viam.com/utils"

	"go.viam.com/urdfcapsule/decorator"
)

// DecorateAction adds end spheres to the cylinder collisions of a description.
func DecorateAction(c *cli.Context) error {
	if err := expectArgs(c, 0, 1); err != nil {
		return err
	}
	r, err := newRunner(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(r.logger.Sync)

	input := c.Args().First()
	output := c.Path(generalFlagOutput)
	if output != "" && !isStdio(output) {
		output = decorator.OutputPath(output)
	}

	data, _, err := readInput(c, input)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if _, err := decorator.NewDecorator(r.logger).DecorateDocument(bytes.NewReader(data), &out); err != nil {
		return err
	}
	if err := writeOutput(c, output, out.Bytes()); err != nil {
		return err
	}
	if !isStdio(output) {
		r.logger.Debugw("wrote decorated description", "path", output)
	}
	return nil
}
