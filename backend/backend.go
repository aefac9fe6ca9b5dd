// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package backend provides a standard way to construct a grid engine
// and its services based on command-line flags.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/diffeo/go-gridrest/backup"
	"github.com/diffeo/go-gridrest/cache"
	"github.com/diffeo/go-gridrest/encoding"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
	"github.com/diffeo/go-gridrest/postgres"
)

// Backend describes user-visible parameters to store grid data.
// This implements the flag.Value interface, and so a typical use is
//
//     func main() {
//         backend := backend.Backend{Implementation: "memory"}
//         flag.Var(&backend, "backend", "impl:address of grid storage")
//         flag.Parse()
//         services, err := backend.Services(backend.Options{})
//     }
type Backend struct {
	// Implementation holds the name of the implementation; for
	// instance, "memory".
	Implementation string

	// Address holds some backend-specific address, such as a
	// database connect string.
	Address string
}

// Options tune the services a Backend builds.
type Options struct {
	// NodeName and NodeAddress are reported by the memory engine.
	// The postgres engine reports the database host instead.
	NodeName    string
	NodeAddress string

	// BackupDir is where backup archives are written.  If empty
	// the system temporary directory is used.
	BackupDir string

	// Clock is the engine time source; nil means the real clock.
	Clock clock.Clock

	// CacheSize bounds the number of cache handles held in front
	// of the engine.  Zero uses cache.DefaultSize; negative
	// disables the handle cache.
	CacheSize int
}

// Implementations lists the known values of Implementation.
var Implementations = []string{"memory", "postgres"}

// ErrUnknownBackend is returned for an Implementation that is not one
// of Implementations.
type ErrUnknownBackend struct {
	Implementation string
}

func (e ErrUnknownBackend) Error() string {
	return fmt.Sprintf("unknown grid backend %q", e.Implementation)
}

// Grid creates the grid engine and its counter manager.  This
// generally should be only called once.  If the backend has in-process
// state, such as a database connection pool or an in-memory store,
// calling this multiple times will create multiple copies of that
// state.  In particular, if b.Implementation is "memory", multiple
// calls to this will create multiple independent grids.
func (b *Backend) Grid(opts Options) (grid.Grid, grid.CounterManager, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	var (
		g        grid.Grid
		counters grid.CounterManager
		err      error
	)
	switch b.Implementation {
	case "memory":
		name := opts.NodeName
		if name == "" {
			name = "local"
		}
		g = memory.NewNode(name, opts.NodeAddress, clk)
		counters = memory.NewCounterManager()
	case "postgres":
		g, err = postgres.NewWithClock(b.Address, clk)
		if err != nil {
			return nil, nil, err
		}
		// This must see the unwrapped grid
		counters, err = postgres.NewCounterManager(g)
		if err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, ErrUnknownBackend{Implementation: b.Implementation}
	}
	switch {
	case opts.CacheSize == 0:
		g = cache.New(g)
	case opts.CacheSize > 0:
		g = cache.NewWithSize(g, opts.CacheSize)
	}
	return g, counters, nil
}

// Services creates the grid engine and every service the REST layer
// uses on top of it.  Security is left unset, so requests are not
// authorized; tasks start out empty.
func (b *Backend) Services(opts Options) (*grid.Services, error) {
	g, counters, err := b.Grid(opts)
	if err != nil {
		return nil, err
	}
	registry := encoding.New()
	return &grid.Services{
		Grid:     g,
		Backups:  backup.New(g, counters, opts.BackupDir),
		XSite:    memory.NewXSiteAdmin(g, false),
		Counters: counters,
		Tasks:    memory.NewTaskManager(),
		Query:    memory.NewQueryEngine(g, registry),
		Encoding: registry,
	}, nil
}

// String renders a backend description as a string.
func (b *Backend) String() string {
	if b.Address == "" {
		return b.Implementation
	}
	return b.Implementation + ":" + b.Address
}

// Set parses a string into an existing backend description.  The
// string should be of the form "implementation:address", where
// address can be any string.  Set checks to see if the provided
// implementation is any of the known implementations, and returns an
// appropriate error if not.
//
// This is part of the flag.Value interface.  Note that neither this
// nor Grid() attempts to validate the b.Address part of the string
// before actually making a connection.
func (b *Backend) Set(param string) error {
	if param == "" {
		return errors.New("must specify a backend type")
	}
	parts := strings.SplitN(param, ":", 2)
	for _, impl := range Implementations {
		if parts[0] == impl {
			b.Implementation = parts[0]
			b.Address = ""
			if len(parts) == 2 {
				b.Address = parts[1]
			}
			return nil
		}
	}
	return ErrUnknownBackend{Implementation: parts[0]}
}
