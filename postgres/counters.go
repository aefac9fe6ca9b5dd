// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"errors"

	"github.com/diffeo/go-gridrest/grid"
)

// ErrWrongBackend is returned by NewCounterManager when it is given a
// grid that did not come from this package.
var ErrWrongBackend = errors.New("grid is not a postgres grid")

// NewCounterManager creates a counter manager that stores counters in
// the same database as g, which must have come from New or
// NewWithClock.
func NewCounterManager(g grid.Grid) (grid.CounterManager, error) {
	pg, ok := g.(*pgGrid)
	if !ok {
		return nil, ErrWrongBackend
	}
	return &counterManager{grid: pg}, nil
}

type counterManager struct {
	grid *pgGrid
}

func (m *counterManager) Grid() *pgGrid {
	return m.grid
}

type counter struct {
	manager *counterManager
	name    string
}

func (c *counter) Grid() *pgGrid {
	return c.manager.grid
}

// readCounter fetches a counter's configuration and value.  With
// forUpdate, the row is locked for the rest of the transaction.
func readCounter(tx *sql.Tx, name string, forUpdate bool) (config grid.CounterConfig, value int64, err error) {
	params := queryParams{}
	query := buildSelect([]string{
		counterType,
		counterInitial,
		counterBounded,
		counterLower,
		counterUpper,
		counterValue,
	}, []string{
		counterTable,
	}, []string{
		counterHasName(&params, name),
	})
	if forUpdate {
		query += " FOR UPDATE"
	}
	var typeName string
	err = tx.QueryRow(query, params...).Scan(&typeName, &config.Initial,
		&config.Bounded, &config.Lower, &config.Upper, &value)
	if err == sql.ErrNoRows {
		err = grid.ErrNoSuchCounter{Name: name}
		return
	}
	if err != nil {
		return
	}
	err = config.Type.UnmarshalText([]byte(typeName))
	return
}

func setCounter(tx *sql.Tx, name string, value int64) error {
	params := queryParams{}
	query := buildUpdate(counterTable, []string{
		"value=" + params.Param(value),
	}, []string{
		counterHasName(&params, name),
	})
	_, err := tx.Exec(query, params...)
	return err
}

func (m *counterManager) DefineCounter(name string, config grid.CounterConfig) (created bool, err error) {
	typeName, err := config.Type.MarshalText()
	if err != nil {
		return false, err
	}
	err = withTx(m, false, func(tx *sql.Tx) error {
		params := queryParams{}
		fields := fieldList{}
		fields.Add(&params, "name", name)
		fields.Add(&params, "type", string(typeName))
		fields.Add(&params, "initial", config.Initial)
		fields.Add(&params, "bounded", config.Bounded)
		fields.Add(&params, "lower_bound", config.Lower)
		fields.Add(&params, "upper_bound", config.Upper)
		fields.Add(&params, "value", config.Initial)
		query := fields.InsertStatement(counterTable) + " ON CONFLICT (name) DO NOTHING"
		result, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
		count, err := result.RowsAffected()
		created = count > 0
		return err
	})
	return
}

func (m *counterManager) Counter(name string) (grid.Counter, error) {
	err := withTx(m, true, func(tx *sql.Tx) error {
		_, _, err := readCounter(tx, name, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &counter{manager: m, name: name}, nil
}

func (m *counterManager) CounterConfig(name string) (config grid.CounterConfig, err error) {
	err = withTx(m, true, func(tx *sql.Tx) error {
		config, _, err = readCounter(tx, name, false)
		return err
	})
	return
}

func (m *counterManager) CounterNames() ([]string, error) {
	names := []string{}
	query := buildSelect([]string{counterName}, []string{counterTable}, nil) +
		" ORDER BY " + counterName
	err := queryAndScan(m, query, queryParams{}, func(rows *sql.Rows) error {
		var name string
		err := rows.Scan(&name)
		if err == nil {
			names = append(names, name)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (m *counterManager) RemoveCounter(name string) error {
	return withTx(m, false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := "DELETE FROM " + counterTable + " WHERE " + counterHasName(&params, name)
		result, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
		count, err := result.RowsAffected()
		if err == nil && count == 0 {
			err = grid.ErrNoSuchCounter{Name: name}
		}
		return err
	})
}

func (c *counter) Name() string {
	return c.name
}

func (c *counter) Value() (value int64, err error) {
	err = withTx(c, true, func(tx *sql.Tx) error {
		_, value, err = readCounter(tx, c.name, false)
		return err
	})
	return
}

func (c *counter) Add(delta int64) (value int64, err error) {
	err = withTx(c, false, func(tx *sql.Tx) error {
		config, current, err := readCounter(tx, c.name, true)
		if err != nil {
			return err
		}
		value = current + delta
		if config.Type == grid.StrongCounter && config.Bounded {
			var bound int64
			switch {
			case value > config.Upper:
				bound = config.Upper
			case value < config.Lower:
				bound = config.Lower
			default:
				return setCounter(tx, c.name, value)
			}
			// Commit the clamped value, but report the
			// bounds error
			if err = setCounter(tx, c.name, bound); err != nil {
				return err
			}
			value = 0
			err = grid.ErrCounterBounds{Name: c.name, Value: bound}
			return nil
		}
		return setCounter(tx, c.name, value)
	})
	return
}

func (c *counter) CompareAndSet(expect, update int64) (swapped bool, err error) {
	err = withTx(c, false, func(tx *sql.Tx) error {
		swapped = false
		config, current, err := readCounter(tx, c.name, true)
		if err != nil {
			return err
		}
		if config.Type != grid.StrongCounter {
			return grid.ErrCounterUnsupported{Name: c.name, Op: "compareAndSet"}
		}
		if config.Bounded && (update > config.Upper || update < config.Lower) {
			return grid.ErrCounterBounds{Name: c.name, Value: current}
		}
		if current != expect {
			return nil
		}
		swapped = true
		return setCounter(tx, c.name, update)
	})
	return
}

func (c *counter) Reset() error {
	return withTx(c, false, func(tx *sql.Tx) error {
		config, _, err := readCounter(tx, c.name, true)
		if err != nil {
			return err
		}
		return setCounter(tx, c.name, config.Initial)
	})
}
