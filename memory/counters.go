// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"sort"
	"sync"

	"github.com/diffeo/go-gridrest/grid"
)

// NewCounterManager creates an in-memory counter manager.
func NewCounterManager() grid.CounterManager {
	return &counterManager{counters: make(map[string]*counter)}
}

type counterManager struct {
	lock     sync.Mutex
	counters map[string]*counter
}

type counter struct {
	manager *counterManager
	name    string
	config  grid.CounterConfig
	value   int64
	deleted bool
}

func (m *counterManager) DefineCounter(name string, config grid.CounterConfig) (bool, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, present := m.counters[name]; present {
		return false, nil
	}
	m.counters[name] = &counter{
		manager: m,
		name:    name,
		config:  config,
		value:   config.Initial,
	}
	return true, nil
}

func (m *counterManager) Counter(name string) (grid.Counter, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, present := m.counters[name]
	if !present {
		return nil, grid.ErrNoSuchCounter{Name: name}
	}
	return c, nil
}

func (m *counterManager) CounterConfig(name string) (grid.CounterConfig, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, present := m.counters[name]
	if !present {
		return grid.CounterConfig{}, grid.ErrNoSuchCounter{Name: name}
	}
	return c.config, nil
}

func (m *counterManager) CounterNames() ([]string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	names := make([]string, 0, len(m.counters))
	for name := range m.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *counterManager) RemoveCounter(name string) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, present := m.counters[name]
	if !present {
		return grid.ErrNoSuchCounter{Name: name}
	}
	c.deleted = true
	delete(m.counters, name)
	return nil
}

func (c *counter) do(f func() error) error {
	c.manager.lock.Lock()
	defer c.manager.lock.Unlock()

	if c.deleted {
		return grid.ErrNoSuchCounter{Name: c.name}
	}
	return f()
}

func (c *counter) Name() string {
	return c.name
}

func (c *counter) Value() (value int64, err error) {
	err = c.do(func() error {
		value = c.value
		return nil
	})
	return
}

func (c *counter) Add(delta int64) (value int64, err error) {
	err = c.do(func() error {
		next := c.value + delta
		if c.config.Type == grid.StrongCounter && c.config.Bounded {
			if next > c.config.Upper {
				c.value = c.config.Upper
				return grid.ErrCounterBounds{Name: c.name, Value: c.value}
			}
			if next < c.config.Lower {
				c.value = c.config.Lower
				return grid.ErrCounterBounds{Name: c.name, Value: c.value}
			}
		}
		c.value = next
		value = next
		return nil
	})
	return
}

func (c *counter) CompareAndSet(expect, update int64) (swapped bool, err error) {
	err = c.do(func() error {
		if c.config.Type != grid.StrongCounter {
			return grid.ErrCounterUnsupported{Name: c.name, Op: "compareAndSet"}
		}
		if c.config.Bounded && (update > c.config.Upper || update < c.config.Lower) {
			return grid.ErrCounterBounds{Name: c.name, Value: c.value}
		}
		if c.value == expect {
			c.value = update
			swapped = true
		}
		return nil
	})
	return
}

func (c *counter) Reset() error {
	return c.do(func() error {
		c.value = c.config.Initial
		return nil
	})
}
