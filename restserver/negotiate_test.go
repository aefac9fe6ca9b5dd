// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diffeo/go-gridrest/encoding"
	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

func TestParseAccept(t *testing.T) {
	accept, err := ParseAccept("text/plain;q=0.5, application/json, application/yaml;q=0.5, image/png;q=0")
	require.NoError(t, err)
	if assert.Len(t, accept, 3) {
		assert.True(t, accept[0].Is(grid.JSONType))
		assert.True(t, accept[1].Is(grid.TextPlainType))
		assert.True(t, accept[2].Is(grid.YAMLType))
	}

	accept, err = ParseAccept("")
	require.NoError(t, err)
	assert.Equal(t, []grid.MediaType{grid.AnyType}, accept)

	_, err = ParseAccept("text/plain;q=2")
	assert.Equal(t, http.StatusBadRequest, restdata.Status(err))

	_, err = ParseAccept("text/plain;q=NaN, application/json")
	assert.Equal(t, http.StatusBadRequest, restdata.Status(err))

	_, err = ParseAccept("not a type")
	assert.Equal(t, http.StatusBadRequest, restdata.Status(err))
}

func negotiate(t *testing.T, accept string, storage grid.MediaType) (grid.MediaType, error) {
	ranges, err := ParseAccept(accept)
	require.NoError(t, err)
	return Negotiate(ranges, storage, encoding.New())
}

func TestNegotiateWildcard(t *testing.T) {
	mt, err := negotiate(t, "", grid.ObjectType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.TextPlainType))

	mt, err = negotiate(t, "*/*", grid.ProtostreamType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.JSONType))

	mt, err = negotiate(t, "*/*", grid.JSONType)
	require.NoError(t, err)
	assert.True(t, mt.MatchesAll())
}

func TestNegotiateRange(t *testing.T) {
	mt, err := negotiate(t, "application/*", grid.JSONType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.JSONType))

	mt, err = negotiate(t, "text/*", grid.JSONType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.TextPlainType))

	_, err = negotiate(t, "image/*", grid.JSONType)
	assert.Equal(t, http.StatusNotAcceptable, restdata.Status(err))
}

func TestNegotiateConcrete(t *testing.T) {
	mt, err := negotiate(t, "application/yaml, application/json", grid.JSONType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.YAMLType))

	mt, err = negotiate(t, "application/yaml;q=0.2, application/json", grid.ObjectType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.JSONType))
	_, hasQ := mt.Params["q"]
	assert.False(t, hasQ)

	mt, err = negotiate(t, "text/plain; charset=UTF-8", grid.JSONType)
	require.NoError(t, err)
	assert.Equal(t, "UTF-8", mt.Charset())

	_, err = negotiate(t, "application/json", grid.UnknownType)
	assert.Equal(t, http.StatusNotAcceptable, restdata.Status(err))

	mt, err = negotiate(t, "application/json, */*;q=0.1", grid.UnknownType)
	require.NoError(t, err)
	assert.True(t, mt.MatchesAll())
}

func TestNegotiateNoRegistry(t *testing.T) {
	accept, err := ParseAccept("application/json, text/plain")
	require.NoError(t, err)
	mt, err := Negotiate(accept, grid.TextPlainType, nil)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.TextPlainType))
}

func TestNegotiateFixed(t *testing.T) {
	accept, err := ParseAccept("text/*, application/json;q=0.5")
	require.NoError(t, err)
	mt, err := NegotiateFixed(accept, grid.JSONType, grid.YAMLType, grid.TextPlainType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.TextPlainType))

	mt, err = NegotiateFixed(nil, grid.JSONType, grid.TextPlainType)
	require.NoError(t, err)
	assert.True(t, mt.Is(grid.JSONType))

	accept, err = ParseAccept("image/png")
	require.NoError(t, err)
	_, err = NegotiateFixed(accept, grid.JSONType)
	var notAcceptable restdata.ErrNotAcceptable
	if assert.True(t, errors.As(err, &notAcceptable), "%v", err) {
		assert.Equal(t, "image/png", notAcceptable.Accept)
	}
}
