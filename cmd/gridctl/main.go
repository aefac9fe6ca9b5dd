// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package gridctl is a command-line client for the grid REST
// interface.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/urfave/cli"

	"github.com/diffeo/go-gridrest/restclient"
)

// ctl carries state shared by every command.
type ctl struct {
	Client *restclient.Client
	Out    io.Writer
}

func (c *ctl) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

func newApp(out io.Writer) *cli.App {
	state := &ctl{Out: out}
	app := cli.NewApp()
	app.Name = "gridctl"
	app.Usage = "manage a grid through its REST interface"
	app.Writer = out
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "url",
			Value:  "http://localhost:11222/rest",
			Usage:  "base URL of the REST interface",
			EnvVar: "GRIDREST_URL",
		},
	}
	app.Commands = []cli.Command{
		cacheCommands(state),
		entryGet(state),
		entryPut(state),
		entryRemove(state),
		counterCommands(state),
		backupCommand(state),
		restoreCommand(state),
		benchCommand(state, runtime.NumCPU()),
	}
	app.Before = func(c *cli.Context) (err error) {
		state.Client, err = restclient.New(c.String("url"))
		return
	}
	return app
}

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// requireArgs checks the number of positional arguments.
func requireArgs(c *cli.Context, n int) error {
	if c.NArg() != n {
		return cli.NewExitError(fmt.Sprintf("usage: %v %v", c.Command.Name, c.Command.ArgsUsage), 2)
	}
	return nil
}
