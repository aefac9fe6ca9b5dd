// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"os"
	"testing"

	"github.com/diffeo/go-gridrest/grid/gridtest"
	"github.com/diffeo/go-gridrest/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite is the per-engine generic test suite.
//
// This creates a PostgreSQL grid using an empty string as the
// connection string.  This means that, when you run "go test", you
// must set environment variables as described in
// http://www.postgresql.org/docs/current/static/libpq-envars.html.
// Without PGHOST the suite is skipped.
type Suite struct {
	gridtest.Suite
}

// SetupSuite does global setup for the test suite.
func (s *Suite) SetupSuite() {
	s.Suite.SetupSuite()
	g, err := NewWithClock("", s.Clock)
	s.Require().NoError(err)
	s.Grid = g
	s.Counters, err = NewCounterManager(g)
	s.Require().NoError(err)
}

// TestGrid runs the generic grid tests.
func TestGrid(t *testing.T) {
	if os.Getenv("PGHOST") == "" {
		t.Skip("PGHOST not set")
	}
	suite.Run(t, &Suite{})
}

func TestWrongBackend(t *testing.T) {
	_, err := NewCounterManager(memory.New())
	assert.Equal(t, ErrWrongBackend, err)
}
