// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli"

	"github.com/diffeo/go-gridrest/restclient"
	"github.com/diffeo/go-gridrest/restdata"
)

func cacheCommands(state *ctl) cli.Command {
	return cli.Command{
		Name:  "cache",
		Usage: "list, create and remove caches",
		Subcommands: []cli.Command{
			{
				Name:  "ls",
				Usage: "list caches",
				Action: func(c *cli.Context) error {
					names, err := state.Client.CacheNames()
					if err != nil {
						return err
					}
					for _, name := range names {
						state.printf("%v\n", name)
					}
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "create a cache",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					cli.StringFlag{Name: "encoding", Usage: "media type values are stored in"},
					cli.DurationFlag{Name: "lifespan", Usage: "default entry lifespan"},
					cli.DurationFlag{Name: "max-idle", Usage: "default entry maximum idle time"},
					cli.BoolFlag{Name: "indexed", Usage: "make the cache searchable"},
					cli.StringSliceFlag{Name: "site", Usage: "backup site (repeatable)"},
					cli.StringFlag{Name: "template", Usage: "create from this template"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					config := restdata.CacheConfig{
						Encoding: c.String("encoding"),
						Lifespan: int64(c.Duration("lifespan") / time.Second),
						MaxIdle:  int64(c.Duration("max-idle") / time.Second),
						Indexed:  c.Bool("indexed"),
						Sites:    c.StringSlice("site"),
					}
					_, err := state.Client.CreateCache(c.Args().Get(0), config, c.String("template"))
					return err
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a cache",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					return state.Client.RemoveCache(c.Args().Get(0))
				},
			},
			{
				Name:      "keys",
				Usage:     "list the keys in a cache",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					cli.IntFlag{Name: "limit", Value: -1, Usage: "list at most this many keys"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					keys, err := state.Client.Cache(c.Args().Get(0)).Keys(c.Int("limit"))
					if err != nil {
						return err
					}
					for _, key := range keys {
						state.printf("%v\n", key)
					}
					return nil
				},
			},
			{
				Name:      "search",
				Usage:     "run a query against a cache",
				ArgsUsage: "NAME QUERY",
				Flags: []cli.Flag{
					cli.IntFlag{Name: "max-results", Usage: "return at most this many hits"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					result, err := state.Client.Cache(c.Args().Get(0)).Search(restdata.SearchRequest{
						Query:      c.Args().Get(1),
						MaxResults: c.Int("max-results"),
					})
					if err != nil {
						return err
					}
					state.printf("%v hits\n", result.HitCount)
					for _, hit := range result.Hits {
						state.printf("%v\n", hit.Hit)
					}
					return nil
				},
			},
		},
	}
}

func entryGet(state *ctl) cli.Command {
	return cli.Command{
		Name:      "get",
		Usage:     "print a cache entry",
		ArgsUsage: "CACHE KEY",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "accept", Usage: "media type to fetch the value in"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			entry, err := state.Client.Cache(c.Args().Get(0)).Get(c.Args().Get(1), c.String("accept"))
			if err != nil {
				return err
			}
			if entry == nil {
				return cli.NewExitError("no such entry", 1)
			}
			state.printf("%s\n", strings.TrimSuffix(string(entry.Value), "\n"))
			return nil
		},
	}
}

func entryPut(state *ctl) cli.Command {
	return cli.Command{
		Name:      "put",
		Usage:     "store a cache entry",
		ArgsUsage: "CACHE KEY VALUE",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "content-type", Usage: "media type of the value"},
			cli.DurationFlag{Name: "lifespan", Usage: "entry lifespan"},
			cli.DurationFlag{Name: "max-idle", Usage: "entry maximum idle time"},
			cli.StringFlag{Name: "if-match", Usage: "only replace this entity tag"},
			cli.BoolFlag{Name: "create", Usage: "fail if the entry exists"},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 3); err != nil {
				return err
			}
			cache := state.Client.Cache(c.Args().Get(0))
			opts := restclient.WriteOptions{
				ContentType: c.String("content-type"),
				Lifespan:    c.Duration("lifespan"),
				MaxIdle:     c.Duration("max-idle"),
				IfMatch:     c.String("if-match"),
			}
			write := cache.Put
			if c.Bool("create") {
				write = cache.Create
			}
			etag, err := write(c.Args().Get(1), []byte(c.Args().Get(2)), opts)
			if err != nil {
				return err
			}
			state.printf("%v\n", etag)
			return nil
		},
	}
}

func entryRemove(state *ctl) cli.Command {
	return cli.Command{
		Name:      "rm",
		Usage:     "remove a cache entry",
		ArgsUsage: "CACHE KEY",
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			removed, err := state.Client.Cache(c.Args().Get(0)).Remove(c.Args().Get(1))
			if err != nil {
				return err
			}
			if !removed {
				return cli.NewExitError("no such entry", 1)
			}
			return nil
		},
	}
}

func counterCommands(state *ctl) cli.Command {
	return cli.Command{
		Name:  "counter",
		Usage: "define and update counters",
		Subcommands: []cli.Command{
			{
				Name:      "define",
				Usage:     "create a counter",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					cli.BoolFlag{Name: "weak", Usage: "create a weak counter"},
					cli.Int64Flag{Name: "initial", Usage: "initial value"},
				},
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					def := restdata.Counter{Type: "strong", InitialValue: c.Int64("initial")}
					if c.Bool("weak") {
						def.Type = "weak"
					}
					created, err := state.Client.DefineCounter(c.Args().Get(0), def)
					if err != nil {
						return err
					}
					if !created {
						state.printf("counter already exists\n")
					}
					return nil
				},
			},
			{
				Name:      "get",
				Usage:     "print a counter value",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					value, err := state.Client.CounterValue(c.Args().Get(0))
					if err != nil {
						return err
					}
					state.printf("%v\n", value)
					return nil
				},
			},
			{
				Name:      "add",
				Usage:     "add to a counter",
				ArgsUsage: "NAME DELTA",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 2); err != nil {
						return err
					}
					delta, err := strconv.ParseInt(c.Args().Get(1), 10, 64)
					if err != nil {
						return cli.NewExitError(err.Error(), 2)
					}
					value, err := state.Client.AddCounter(c.Args().Get(0), delta)
					if err != nil {
						return err
					}
					state.printf("%v\n", value)
					return nil
				},
			},
			{
				Name:      "rm",
				Usage:     "remove a counter",
				ArgsUsage: "NAME",
				Action: func(c *cli.Context) error {
					if err := requireArgs(c, 1); err != nil {
						return err
					}
					return state.Client.RemoveCounter(c.Args().Get(0))
				},
			},
		},
	}
}
