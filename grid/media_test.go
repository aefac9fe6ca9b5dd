// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMediaType(t *testing.T) {
	mt, err := ParseMediaType("Text/Plain; charset=UTF-8")
	if assert.NoError(t, err) {
		assert.Equal(t, "text", mt.Type)
		assert.Equal(t, "plain", mt.Subtype)
		assert.Equal(t, "UTF-8", mt.Charset())
		assert.Equal(t, "text/plain", mt.Base())
		assert.Equal(t, "text/plain; charset=UTF-8", mt.String())
	}
}

func TestParseMediaTypeErrors(t *testing.T) {
	for _, s := range []string{"", "text", "text/", "*/plain", ";q=1"} {
		_, err := ParseMediaType(s)
		assert.Error(t, err, s)
		assert.IsType(t, ErrBadMediaType{}, err, s)
	}
}

func TestMediaTypeStringDropsQuality(t *testing.T) {
	mt := MustParseMediaType("application/json; q=0.5")
	assert.Equal(t, "application/json", mt.String())
	q, err := mt.Quality()
	assert.NoError(t, err)
	assert.Equal(t, 0.5, q)
}

func TestMediaTypeQuality(t *testing.T) {
	q, err := TextPlainType.Quality()
	assert.NoError(t, err)
	assert.Equal(t, 1.0, q)

	_, err = MustParseMediaType("text/plain;q=2").Quality()
	assert.Error(t, err)

	_, err = MustParseMediaType("text/plain;q=abc").Quality()
	assert.Error(t, err)

	_, err = MustParseMediaType("text/plain;q=NaN").Quality()
	assert.Error(t, err)
}

func TestMediaTypeMatch(t *testing.T) {
	textAny := MustParseMediaType("text/*")
	assert.True(t, AnyType.MatchesAll())
	assert.True(t, AnyType.IsWildcard())
	assert.True(t, textAny.IsWildcard())
	assert.False(t, textAny.MatchesAll())
	assert.False(t, JSONType.IsWildcard())

	assert.True(t, AnyType.Match(JSONType))
	assert.True(t, JSONType.Match(AnyType))
	assert.True(t, textAny.Match(TextPlainType))
	assert.False(t, textAny.Match(JSONType))
	assert.True(t, JSONType.Match(MustParseMediaType("application/json; charset=utf-8")))
	assert.False(t, JSONType.Match(OctetStreamType))
}

func TestMediaTypeIs(t *testing.T) {
	assert.True(t, JSONType.Is(MustParseMediaType("application/json;charset=utf-8")))
	assert.False(t, AnyType.Is(JSONType))
}

func TestMediaTypeZero(t *testing.T) {
	assert.True(t, MediaType{}.IsZero())
	assert.Equal(t, "", MediaType{}.String())
	assert.False(t, JSONType.IsZero())
}
