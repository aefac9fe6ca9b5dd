// Copyright 2016-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type duration struct {
	Duration time.Duration
	Written  string
	Read     string
}

var someTimes = []duration{
	{1 * time.Second, "0 0:0:1.000000", "00:00:01"},
	{1 * time.Minute, "0 0:1:0.000000", "00:01:00"},
	{1 * time.Hour, "0 1:0:0.000000", "01:00:00"},
	{24 * time.Hour, "1 0:0:0.000000", "1 day"},
	{25 * time.Hour, "1 1:0:0.000000", "1 day 01:00:00"},
	{49 * time.Hour, "2 1:0:0.000000", "2 days 01:00:00"},
}

func TestDurationToSQL(t *testing.T) {
	for _, d := range someTimes {
		actual := string(durationToSQL(d.Duration))
		assert.Equal(t, d.Written, actual)
	}
}

func TestSQLToDuration(t *testing.T) {
	for _, d := range someTimes {
		actual, err := sqlToDuration(d.Read)
		if assert.NoError(t, err, d.Read) {
			assert.Equal(t, d.Duration, actual, d.Read)
		}
	}
	actual, err := sqlToDuration("00:00:01.5")
	if assert.NoError(t, err) {
		assert.Equal(t, 1500*time.Millisecond, actual)
	}
}

func TestNullDurations(t *testing.T) {
	assert.Nil(t, durationToNullSQL(0))
	assert.Nil(t, durationToNullSQL(-time.Second))
	assert.Equal(t, []byte("0 0:0:1.000000"), durationToNullSQL(time.Second))

	d, err := nullSQLToDuration(sql.NullString{})
	assert.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	d, err = nullSQLToDuration(sql.NullString{String: "1 day", Valid: true})
	assert.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)
}

func TestBuildSelect(t *testing.T) {
	params := queryParams{}
	query := buildSelect([]string{cacheID}, []string{cacheTable},
		[]string{cacheHasName(&params, "c")})
	assert.Equal(t, "SELECT cache.id FROM cache WHERE cache.name=$1", query)
	assert.Equal(t, queryParams{"c"}, params)
}

func TestInsertStatement(t *testing.T) {
	params := queryParams{}
	fields := fieldList{}
	fields.Add(&params, "name", "c")
	fields.Add(&params, "value", 0)
	assert.Equal(t, "INSERT INTO counter(name, value) VALUES($1, $2)",
		fields.InsertStatement(counterTable))
	assert.Equal(t, queryParams{"c", 0}, params)
}
