// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/urfave/cli"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restclient"
	"github.com/diffeo/go-gridrest/restdata"
)

// operationName returns the --name flag, or a fresh unique name.
func operationName(c *cli.Context) string {
	if name := c.String("name"); name != "" {
		return name
	}
	return uuid.NewV4().String()
}

// resourceFlags selects backup or restore contents.
var resourceFlags = []cli.Flag{
	cli.StringSliceFlag{Name: "caches", Usage: "caches to include (repeatable, * for all)"},
	cli.StringSliceFlag{Name: "counters", Usage: "counters to include (repeatable, * for all)"},
}

func resources(c *cli.Context) map[string][]string {
	result := make(map[string][]string)
	for _, kind := range []string{grid.ResourceCaches, grid.ResourceCounters} {
		if names := c.StringSlice(kind); len(names) > 0 {
			result[kind] = names
		}
	}
	return result
}

// await waits for an operation to finish, failing on timeout or if
// the operation failed.
func await(c *cli.Context, what, name string, poll func() (grid.OperationStatus, error)) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()
	status, err := restclient.Await(ctx, poll)
	if err != nil {
		return err
	}
	switch status {
	case grid.OperationComplete:
		return nil
	case grid.OperationFailed:
		return fmt.Errorf("%v %v failed", what, name)
	}
	return fmt.Errorf("%v %v disappeared", what, name)
}

var timeoutFlag = cli.DurationFlag{
	Name:  "timeout",
	Value: 10 * time.Minute,
	Usage: "wait at most this long for the operation",
}

func backupCommand(state *ctl) cli.Command {
	return cli.Command{
		Name:      "backup",
		Usage:     "back up the grid and download the archive",
		ArgsUsage: "FILE",
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "name", Usage: "backup name (default: generated)"},
			cli.BoolFlag{Name: "keep", Usage: "leave the archive on the server"},
			timeoutFlag,
		}, resourceFlags...),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			name := operationName(c)
			err := state.Client.CreateBackup(name, restdata.BackupRequest{Resources: resources(c)})
			if err != nil {
				return err
			}
			err = await(c, "backup", name, func() (grid.OperationStatus, error) {
				return state.Client.BackupStatus(name)
			})
			if err != nil {
				return err
			}

			f, err := os.Create(c.Args().Get(0))
			if err != nil {
				return err
			}
			err = state.Client.DownloadBackup(name, f)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			if !c.Bool("keep") {
				if _, err := state.Client.RemoveBackup(name); err != nil {
					return err
				}
			}
			state.printf("%v\n", name)
			return nil
		},
	}
}

func restoreCommand(state *ctl) cli.Command {
	return cli.Command{
		Name:      "restore",
		Usage:     "upload a backup archive and restore it",
		ArgsUsage: "FILE",
		Flags: append([]cli.Flag{
			cli.StringFlag{Name: "name", Usage: "restore name (default: generated)"},
			timeoutFlag,
		}, resourceFlags...),
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			f, err := os.Open(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer f.Close()
			name := operationName(c)
			if err := state.Client.RestoreUpload(name, f, resources(c)); err != nil {
				return err
			}
			err = await(c, "restore", name, func() (grid.OperationStatus, error) {
				return state.Client.RestoreStatus(name)
			})
			if err != nil {
				return err
			}
			_, err = state.Client.RemoveRestore(name)
			return err
		},
	}
}
