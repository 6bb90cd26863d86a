// Package main is the urdfcapsule command itself.
package main

import (
	"context"
	"log"
	"os"

	"go.viam.com/urdfcapsule/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.RunContext(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
