// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"

	"github.com/rubenv/sql-migrate"
)

// This file maintains the database migration code.  See
// https://github.com/rubenv/sql-migrate for details of what goes in
// here.  This runs "outside" the normal grid flow, either at initial
// startup or from an external tool.

var migrationSource = &migrate.MemoryMigrationSource{
	Migrations: []*migrate.Migration{
		{
			Id: "1_grid",
			Up: []string{
				`CREATE TABLE cache(
					id SERIAL PRIMARY KEY,
					name TEXT NOT NULL UNIQUE,
					encoding TEXT NOT NULL,
					lifespan INTERVAL,
					max_idle INTERVAL,
					indexed BOOLEAN NOT NULL DEFAULT FALSE,
					sites TEXT[] NOT NULL DEFAULT '{}',
					template TEXT NOT NULL DEFAULT '',
					hits BIGINT NOT NULL DEFAULT 0,
					misses BIGINT NOT NULL DEFAULT 0,
					stores BIGINT NOT NULL DEFAULT 0,
					removes BIGINT NOT NULL DEFAULT 0,
					started TIMESTAMP WITH TIME ZONE NOT NULL,
					reset TIMESTAMP WITH TIME ZONE NOT NULL
				)`,
				`CREATE TABLE entry(
					cache_id INTEGER NOT NULL REFERENCES cache(id) ON DELETE CASCADE,
					key TEXT NOT NULL,
					value BYTEA NOT NULL,
					media_type TEXT NOT NULL,
					created TIMESTAMP WITH TIME ZONE NOT NULL,
					last_used TIMESTAMP WITH TIME ZONE NOT NULL,
					lifespan INTERVAL,
					max_idle INTERVAL,
					expires TIMESTAMP WITH TIME ZONE,
					PRIMARY KEY(cache_id, key)
				)`,
				`CREATE INDEX entry_expires ON entry(cache_id, expires)`,
				`CREATE TABLE counter(
					name TEXT PRIMARY KEY,
					type TEXT NOT NULL,
					initial BIGINT NOT NULL,
					bounded BOOLEAN NOT NULL,
					lower_bound BIGINT NOT NULL,
					upper_bound BIGINT NOT NULL,
					value BIGINT NOT NULL
				)`,
			},
			Down: []string{
				`DROP TABLE counter`,
				`DROP TABLE entry`,
				`DROP TABLE cache`,
			},
		},
	},
}

// Upgrade upgrades a database to the latest database schema version.
func Upgrade(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Up)
	return err
}

// Drop clears a database by running all of the migrations in reverse,
// ultimately resulting in dropping all of the tables.
func Drop(db *sql.DB) error {
	_, err := migrate.Exec(db, "postgres", migrationSource, migrate.Down)
	return err
}
