// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/urfave/cli"

	"github.com/diffeo/go-gridrest/restclient"
	"github.com/diffeo/go-gridrest/restdata"
)

type benchWork struct {
	Cache       *restclient.Cache
	Concurrency int

	// failures counts failed requests across all runners.
	failures int64
}

// Run calls runner in bench.Concurrency goroutines and waits for all
// of them.
func (bench *benchWork) Run(runner func()) {
	wg := sync.WaitGroup{}
	wg.Add(bench.Concurrency)
	for i := 0; i < bench.Concurrency; i++ {
		go func() {
			defer wg.Done()
			runner()
		}()
	}
	wg.Wait()
}

func (bench *benchWork) check(err error) {
	if err != nil {
		atomic.AddInt64(&bench.failures, 1)
	}
}

// numbers feeds 1 through count to a channel, then closes it.
func numbers(count int) <-chan int {
	ch := make(chan int)
	go func() {
		for i := 1; i <= count; i++ {
			ch <- i
		}
		close(ch)
	}()
	return ch
}

func benchCommand(state *ctl, concurrency int) cli.Command {
	bench := &benchWork{}
	report := func(what string, count int, start time.Time) {
		elapsed := time.Since(start)
		state.printf("%v %v requests in %v (%.1f/s), %v failed\n",
			what, count, elapsed.Round(time.Millisecond),
			float64(count)/elapsed.Seconds(), atomic.LoadInt64(&bench.failures))
	}
	return cli.Command{
		Name:  "bench",
		Usage: "generate load against a cache",
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "cache",
				Value: "bench",
				Usage: "cache to load, created if missing",
			},
			cli.IntFlag{
				Name:  "concurrency",
				Value: concurrency,
				Usage: "run this many clients in parallel",
			},
		},
		Before: func(c *cli.Context) error {
			name := c.String("cache")
			exists, err := state.Client.CacheExists(name)
			if err != nil {
				return err
			}
			if !exists {
				if _, err := state.Client.CreateCache(name, restdata.CacheConfig{Encoding: "text/plain"}, ""); err != nil {
					return err
				}
			}
			bench.Cache = state.Client.Cache(name)
			bench.Concurrency = c.Int("concurrency")
			return nil
		},
		Subcommands: []cli.Command{
			{
				Name:  "put",
				Usage: "write many entries with random keys",
				Flags: []cli.Flag{
					cli.IntFlag{Name: "count", Value: 100, Usage: "number of entries to write"},
					cli.IntFlag{Name: "size", Value: 64, Usage: "bytes per value"},
				},
				Action: func(c *cli.Context) error {
					count := c.Int("count")
					value := bytes.Repeat([]byte("x"), c.Int("size"))
					ch := numbers(count)
					start := time.Now()
					bench.Run(func() {
						for range ch {
							_, err := bench.Cache.Put(uuid.NewV4().String(), value, restclient.WriteOptions{})
							bench.check(err)
						}
					})
					report("put", count, start)
					return nil
				},
			},
			{
				Name:  "get",
				Usage: "read every entry in the cache",
				Action: func(c *cli.Context) error {
					keys, err := bench.Cache.Keys(-1)
					if err != nil {
						return err
					}
					ch := make(chan string)
					go func() {
						for _, key := range keys {
							ch <- key
						}
						close(ch)
					}()
					start := time.Now()
					bench.Run(func() {
						for key := range ch {
							_, err := bench.Cache.Get(key, "")
							bench.check(err)
						}
					})
					report("get", len(keys), start)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "delete all of the entries",
				Action: func(c *cli.Context) error {
					return bench.Cache.Clear()
				},
			},
		},
	}
}
