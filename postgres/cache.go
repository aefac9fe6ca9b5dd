// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"bytes"
	"database/sql"
	"time"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/lib/pq"
)

type pgCache struct {
	grid *pgGrid
	id   int
	name string
}

func (c *pgCache) Grid() *pgGrid {
	return c.grid
}

// do runs f in a transaction after checking that the cache still
// exists.
func (c *pgCache) do(readOnly bool, f func(*sql.Tx) error) error {
	return withTx(c, readOnly, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{cacheID}, []string{cacheTable}, []string{
			isCache(&params, c.id),
		})
		var id int
		err := tx.QueryRow(query, params...).Scan(&id)
		if err == sql.ErrNoRows {
			return grid.ErrNoSuchCache{Name: c.name}
		}
		if err != nil {
			return err
		}
		return f(tx)
	})
}

// bumpStat increments one of the cache's usage counters.
func (c *pgCache) bumpStat(tx *sql.Tx, column string) error {
	params := queryParams{}
	query := buildUpdate(cacheTable, []string{
		column + "=" + column + "+1",
	}, []string{
		isCache(&params, c.id),
	})
	_, err := tx.Exec(query, params...)
	return err
}

// purgeKey deletes key if it has expired.
func (c *pgCache) purgeKey(tx *sql.Tx, key string, now time.Time) error {
	params := queryParams{}
	query := "DELETE FROM " + entryTable + " WHERE " + entryInCache(&params, c.id) +
		" AND " + entryHasKey(&params, key) + " AND " + entryIsExpired(&params, now)
	_, err := tx.Exec(query, params...)
	return err
}

// config reads the cache configuration inside a transaction.
func (c *pgCache) config(tx *sql.Tx) (grid.CacheConfig, error) {
	var (
		config            grid.CacheConfig
		encoding          string
		lifespan, maxIdle sql.NullString
		sites             []string
		err               error
	)
	params := queryParams{}
	query := buildSelect([]string{
		cacheEncoding,
		cacheLifespan,
		cacheMaxIdle,
		cacheIndexed,
		cacheSites,
		cacheTemplate,
	}, []string{
		cacheTable,
	}, []string{
		isCache(&params, c.id),
	})
	err = tx.QueryRow(query, params...).Scan(&encoding, &lifespan, &maxIdle,
		&config.Indexed, pq.Array(&sites), &config.Template)
	if err != nil {
		return config, err
	}
	config.Sites = sites
	if config.Encoding, err = grid.ParseMediaType(encoding); err != nil {
		return config, err
	}
	if config.Lifespan, err = nullSQLToDuration(lifespan); err != nil {
		return config, err
	}
	config.MaxIdle, err = nullSQLToDuration(maxIdle)
	return config, err
}

// write inserts or overwrites an entry.  The caller has already
// decided that it should.
func (c *pgCache) write(tx *sql.Tx, key string, value []byte, options grid.WriteOptions, now time.Time) error {
	config, err := c.config(tx)
	if err != nil {
		return err
	}
	mediaType := config.Encoding
	if mediaType.Is(grid.UnknownType) {
		mediaType = options.MediaType
		if mediaType.IsZero() {
			mediaType = grid.OctetStreamType
		}
	}
	entry := grid.Entry{
		Key:       key,
		MediaType: mediaType,
		Created:   now,
		LastUsed:  now,
		Lifespan:  grid.ResolveLifetime(options.Lifespan, config.Lifespan),
		MaxIdle:   grid.ResolveLifetime(options.MaxIdle, config.MaxIdle),
	}
	expires, mortal := entry.Expiry()
	if !mortal {
		expires = time.Time{}
	}

	params := queryParams{}
	fields := fieldList{}
	fields.Add(&params, "cache_id", c.id)
	fields.Add(&params, "key", key)
	fields.Add(&params, "value", value)
	fields.Add(&params, "media_type", mediaType.String())
	fields.Add(&params, "created", now)
	fields.Add(&params, "last_used", now)
	fields.Add(&params, "lifespan", durationToNullSQL(entry.Lifespan))
	fields.Add(&params, "max_idle", durationToNullSQL(entry.MaxIdle))
	fields.Add(&params, "expires", timeToNullTime(expires))
	query := fields.InsertStatement(entryTable) +
		" ON CONFLICT (cache_id, key) DO UPDATE SET " +
		"value=EXCLUDED.value, media_type=EXCLUDED.media_type, " +
		"created=EXCLUDED.created, last_used=EXCLUDED.last_used, " +
		"lifespan=EXCLUDED.lifespan, max_idle=EXCLUDED.max_idle, " +
		"expires=EXCLUDED.expires"
	if _, err = tx.Exec(query, params...); err != nil {
		return err
	}
	return c.bumpStat(tx, "stores")
}

// liveValue returns the current value of a live entry, or nil.
func (c *pgCache) liveValue(tx *sql.Tx, key string, now time.Time) ([]byte, error) {
	params := queryParams{}
	query := buildSelect([]string{entryValue}, []string{entryTable}, []string{
		entryInCache(&params, c.id),
		entryHasKey(&params, key),
		entryIsLive(&params, now),
	}) + " FOR UPDATE"
	var value []byte
	err := tx.QueryRow(query, params...).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return value, err
}

// grid.Cache interface:

func (c *pgCache) Name() string {
	return c.name
}

func (c *pgCache) Config() (config grid.CacheConfig, err error) {
	err = c.do(true, func(tx *sql.Tx) error {
		config, err = c.config(tx)
		return err
	})
	return
}

func (c *pgCache) Get(key string) (*grid.Entry, error) {
	if key == "" {
		return nil, grid.ErrNoKey
	}
	var entry *grid.Entry
	now := c.grid.clock.Now()
	err := c.do(false, func(tx *sql.Tx) error {
		entry = nil
		params := queryParams{}
		query := buildSelect([]string{
			entryValue,
			entryMediaType,
			entryCreated,
			entryLifespan,
			entryMaxIdle,
		}, []string{
			entryTable,
		}, []string{
			entryInCache(&params, c.id),
			entryHasKey(&params, key),
			entryIsLive(&params, now),
		})
		var (
			e                 grid.Entry
			mediaType         string
			lifespan, maxIdle sql.NullString
		)
		err := tx.QueryRow(query, params...).Scan(&e.Value, &mediaType,
			&e.Created, &lifespan, &maxIdle)
		if err == sql.ErrNoRows {
			if err = c.purgeKey(tx, key, now); err != nil {
				return err
			}
			return c.bumpStat(tx, "misses")
		}
		if err != nil {
			return err
		}
		e.Key = key
		e.LastUsed = now
		if e.MediaType, err = grid.ParseMediaType(mediaType); err != nil {
			return err
		}
		if e.Lifespan, err = nullSQLToDuration(lifespan); err != nil {
			return err
		}
		if e.MaxIdle, err = nullSQLToDuration(maxIdle); err != nil {
			return err
		}

		// Touch the entry, which may push back its expiry
		expires, mortal := e.Expiry()
		if !mortal {
			expires = time.Time{}
		}
		params = queryParams{}
		update := buildUpdate(entryTable, []string{
			"last_used=" + params.Param(now),
			"expires=" + params.Param(timeToNullTime(expires)),
		}, []string{
			entryInCache(&params, c.id),
			entryHasKey(&params, key),
		})
		if _, err = tx.Exec(update, params...); err != nil {
			return err
		}
		entry = &e
		return c.bumpStat(tx, "hits")
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (c *pgCache) Put(key string, value []byte, options grid.WriteOptions) error {
	if key == "" {
		return grid.ErrNoKey
	}
	now := c.grid.clock.Now()
	return c.do(false, func(tx *sql.Tx) error {
		return c.write(tx, key, value, options, now)
	})
}

func (c *pgCache) PutIfAbsent(key string, value []byte, options grid.WriteOptions) (stored bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	now := c.grid.clock.Now()
	err = c.do(false, func(tx *sql.Tx) error {
		stored = false
		current, err := c.liveValue(tx, key, now)
		if err != nil || current != nil {
			return err
		}
		stored = true
		return c.write(tx, key, value, options, now)
	})
	return
}

func (c *pgCache) Replace(key string, expected, value []byte, options grid.WriteOptions) (replaced bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	now := c.grid.clock.Now()
	err = c.do(false, func(tx *sql.Tx) error {
		replaced = false
		current, err := c.liveValue(tx, key, now)
		if err != nil || current == nil || !bytes.Equal(current, expected) {
			return err
		}
		replaced = true
		return c.write(tx, key, value, options, now)
	})
	return
}

func (c *pgCache) Remove(key string) (removed bool, err error) {
	if key == "" {
		return false, grid.ErrNoKey
	}
	now := c.grid.clock.Now()
	err = c.do(false, func(tx *sql.Tx) error {
		removed = false
		params := queryParams{}
		query := "DELETE FROM " + entryTable + " WHERE " +
			entryInCache(&params, c.id) + " AND " +
			entryHasKey(&params, key) + " AND " +
			entryIsLive(&params, now)
		result, err := tx.Exec(query, params...)
		if err != nil {
			return err
		}
		count, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return c.purgeKey(tx, key, now)
		}
		removed = true
		return c.bumpStat(tx, "removes")
	})
	return
}

func (c *pgCache) Clear() error {
	return c.do(false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := "DELETE FROM " + entryTable + " WHERE " + entryInCache(&params, c.id)
		_, err := tx.Exec(query, params...)
		return err
	})
}

func (c *pgCache) Size() (size int, err error) {
	now := c.grid.clock.Now()
	err = c.do(true, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildSelect([]string{"COUNT(*)"}, []string{entryTable}, []string{
			entryInCache(&params, c.id),
			entryIsLive(&params, now),
		})
		return tx.QueryRow(query, params...).Scan(&size)
	})
	return
}

func (c *pgCache) Keys() (keys []string, err error) {
	now := c.grid.clock.Now()
	err = c.do(true, func(tx *sql.Tx) error {
		keys = nil
		params := queryParams{}
		query := buildSelect([]string{entryKey}, []string{entryTable}, []string{
			entryInCache(&params, c.id),
			entryIsLive(&params, now),
		}) + " ORDER BY " + entryKey
		rows, err := tx.Query(query, params...)
		if err != nil {
			return err
		}
		return scanRows(rows, func() error {
			var key string
			err := rows.Scan(&key)
			if err == nil {
				keys = append(keys, key)
			}
			return err
		})
	})
	return
}

func (c *pgCache) Stats() (stats grid.CacheStats, err error) {
	now := c.grid.clock.Now()
	err = c.do(true, func(tx *sql.Tx) error {
		var started, reset time.Time
		params := queryParams{}
		query := buildSelect([]string{
			cacheHits,
			cacheMisses,
			cacheStores,
			cacheRemoves,
			cacheStarted,
			cacheReset,
		}, []string{
			cacheTable,
		}, []string{
			isCache(&params, c.id),
		})
		err := tx.QueryRow(query, params...).Scan(&stats.Hits, &stats.Misses,
			&stats.Stores, &stats.Removes, &started, &reset)
		if err != nil {
			return err
		}
		stats.TimeSinceStart = now.Sub(started)
		stats.TimeSinceReset = now.Sub(reset)
		stats.RequiredMinNodes = 1

		params = queryParams{}
		query = buildSelect([]string{"COUNT(*)"}, []string{entryTable}, []string{
			entryInCache(&params, c.id),
			entryIsLive(&params, now),
		})
		return tx.QueryRow(query, params...).Scan(&stats.CurrentEntries)
	})
	return
}

func (c *pgCache) ResetStats() error {
	now := c.grid.clock.Now()
	return c.do(false, func(tx *sql.Tx) error {
		params := queryParams{}
		query := buildUpdate(cacheTable, []string{
			"hits=0", "misses=0", "stores=0", "removes=0",
			"reset=" + params.Param(now),
		}, []string{
			isCache(&params, c.id),
		})
		_, err := tx.Exec(query, params...)
		return err
	})
}
