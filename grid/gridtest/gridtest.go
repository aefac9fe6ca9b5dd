// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package gridtest provides generic functional tests for the grid
// interfaces.  A typical engine test module needs to wrap Suite to
// create its engine:
//
//     package myengine
//
//     import (
//             "testing"
//             "github.com/diffeo/go-gridrest/grid/gridtest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-engine generic test suite.
//     type Suite struct{
//             gridtest.Suite
//     }
//
//     // SetupSuite does global setup for the test suite.
//     func (s *Suite) SetupSuite() {
//             s.Suite.SetupSuite()
//             s.Grid = NewWithClock(s.Clock)
//     }
//
//     // TestGrid runs the grid generic tests.
//     func TestGrid(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package gridtest

import (
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic grid engine test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in
	// tests.  It is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Grid contains the top-level interface to the engine under
	// test.  It is set by importing packages.
	Grid grid.Grid

	// Counters is the engine's counter manager.  If it is nil
	// the counter tests are skipped.
	Counters grid.CounterManager
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
}

// cacheName derives a cache name from the current test name.
func (s *Suite) cacheName() string {
	name := s.T().Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// makeCache creates an empty cache named after the current test,
// destroying any previous cache of that name.
func (s *Suite) makeCache(config grid.CacheConfig) grid.Cache {
	name := s.cacheName()
	err := s.Grid.RemoveCache(name)
	if err != nil {
		s.IsType(grid.ErrNoSuchCache{}, err)
	}
	cache, err := s.Grid.CreateCache(name, config)
	s.Require().NoError(err)
	return cache
}
