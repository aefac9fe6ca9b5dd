// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package gridtest

import "github.com/diffeo/go-gridrest/grid"

// makeCounter defines a fresh counter named after the current test.
func (s *Suite) makeCounter(config grid.CounterConfig) grid.Counter {
	if s.Counters == nil {
		s.T().Skip("engine has no counters")
	}
	name := s.cacheName()
	err := s.Counters.RemoveCounter(name)
	if err != nil {
		s.IsType(grid.ErrNoSuchCounter{}, err)
	}
	created, err := s.Counters.DefineCounter(name, config)
	s.Require().NoError(err)
	s.Require().True(created)
	counter, err := s.Counters.Counter(name)
	s.Require().NoError(err)
	return counter
}

// TestCounterDefine checks defining, listing, and removing counters.
func (s *Suite) TestCounterDefine() {
	counter := s.makeCounter(grid.CounterConfig{Type: grid.StrongCounter, Initial: 5})
	name := counter.Name()

	created, err := s.Counters.DefineCounter(name, grid.CounterConfig{Initial: 10})
	s.NoError(err)
	s.False(created)

	config, err := s.Counters.CounterConfig(name)
	if s.NoError(err) {
		s.Equal(int64(5), config.Initial)
		s.Equal(grid.StrongCounter, config.Type)
	}

	names, err := s.Counters.CounterNames()
	if s.NoError(err) {
		s.Contains(names, name)
	}

	s.NoError(s.Counters.RemoveCounter(name))
	_, err = s.Counters.Counter(name)
	s.Equal(grid.ErrNoSuchCounter{Name: name}, err)
	_, err = counter.Value()
	s.Equal(grid.ErrNoSuchCounter{Name: name}, err)
}

// TestCounterArithmetic checks add, compare-and-set, and reset.
func (s *Suite) TestCounterArithmetic() {
	counter := s.makeCounter(grid.CounterConfig{Type: grid.StrongCounter, Initial: 5})

	value, err := counter.Add(3)
	s.NoError(err)
	s.Equal(int64(8), value)
	value, err = counter.Add(-10)
	s.NoError(err)
	s.Equal(int64(-2), value)

	swapped, err := counter.CompareAndSet(7, 100)
	s.NoError(err)
	s.False(swapped)
	swapped, err = counter.CompareAndSet(-2, 100)
	s.NoError(err)
	s.True(swapped)

	value, err = counter.Value()
	s.NoError(err)
	s.Equal(int64(100), value)

	s.NoError(counter.Reset())
	value, err = counter.Value()
	s.NoError(err)
	s.Equal(int64(5), value)
}

// TestCounterBounds checks that bounded counters stop at their
// limits.
func (s *Suite) TestCounterBounds() {
	counter := s.makeCounter(grid.CounterConfig{
		Type:    grid.StrongCounter,
		Bounded: true,
		Lower:   0,
		Upper:   10,
	})

	_, err := counter.Add(15)
	s.IsType(grid.ErrCounterBounds{}, err)
	value, err := counter.Value()
	s.NoError(err)
	s.Equal(int64(10), value)

	_, err = counter.Add(-20)
	s.IsType(grid.ErrCounterBounds{}, err)
	value, err = counter.Value()
	s.NoError(err)
	s.Equal(int64(0), value)

	_, err = counter.CompareAndSet(0, 11)
	s.IsType(grid.ErrCounterBounds{}, err)
}

// TestWeakCounter checks that weak counters add but do not
// compare-and-set.
func (s *Suite) TestWeakCounter() {
	counter := s.makeCounter(grid.CounterConfig{Type: grid.WeakCounter})

	value, err := counter.Add(2)
	s.NoError(err)
	s.Equal(int64(2), value)

	_, err = counter.CompareAndSet(2, 3)
	s.IsType(grid.ErrCounterUnsupported{}, err)
}
