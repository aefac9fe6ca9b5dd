// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package encoding converts cache values between storage media types.
//
// Structured types (JSON, YAML, object, protostream, and plain text)
// are converted through a common in-memory form, the usual
// interface{} tree of maps, slices, and scalars.  Object values are
// CBOR; protostream values are serialized google.protobuf.Value
// messages.  application/octet-stream converts to and from anything
// by passing the bytes through unchanged.  Values stored as
// application/unknown can only be read back as exactly what was
// written.
package encoding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/ugorji/go/codec"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v2"
)

// format reads and writes one structured media type.
type format struct {
	decode func([]byte) (interface{}, error)
	encode func(interface{}) ([]byte, error)
}

// Registry is a grid.EncodingRegistry over the well-known media
// types.
type Registry struct {
	formats map[string]format
}

// New creates a registry that knows every well-known media type.
func New() *Registry {
	return &Registry{
		formats: map[string]format{
			grid.MediaJSON:        {decodeCodec(jsonHandle()), encodeCodec(jsonHandle())},
			grid.MediaObject:      {decodeCodec(cborHandle()), encodeCodec(cborHandle())},
			grid.MediaProtostream: {decodeProto, encodeProto},
			grid.MediaYAML:        {decodeYAML, encodeYAML},
			grid.MediaTextPlain:   {decodeText, encodeText},
		},
	}
}

func jsonHandle() *codec.JsonHandle {
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	h.Canonical = true
	return h
}

func cborHandle() *codec.CborHandle {
	h := &codec.CborHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	h.Canonical = true
	return h
}

// IsConversionSupported returns true if Transcode can turn values of
// type from into values of type to.  to may be a range like "text/*".
func (r *Registry) IsConversionSupported(from, to grid.MediaType) bool {
	_, ok := r.route(from, to)
	return ok
}

// route decides how to convert between two types.  It returns the
// concrete target type, or false if there is no conversion.
func (r *Registry) route(from, to grid.MediaType) (grid.MediaType, bool) {
	if to.IsWildcard() {
		if to.Match(from) {
			return from, true
		}
		if from.Is(grid.UnknownType) {
			return grid.MediaType{}, false
		}
		for _, candidate := range []grid.MediaType{grid.JSONType, grid.TextPlainType, grid.YAMLType, grid.OctetStreamType} {
			if to.Match(candidate) {
				if _, ok := r.route(from, candidate); ok {
					return candidate, true
				}
			}
		}
		return grid.MediaType{}, false
	}
	if from.Is(to) {
		return to, true
	}
	if from.Is(grid.UnknownType) || to.Is(grid.UnknownType) {
		return grid.MediaType{}, false
	}
	if from.Is(grid.OctetStreamType) || to.Is(grid.OctetStreamType) {
		return to, true
	}
	_, fromOK := r.formats[from.Base()]
	_, toOK := r.formats[to.Base()]
	if fromOK && toOK {
		return to, true
	}
	return grid.MediaType{}, false
}

// Transcode converts data from one media type to another.
func (r *Registry) Transcode(data []byte, from, to grid.MediaType) ([]byte, error) {
	target, ok := r.route(from, to)
	if !ok {
		return nil, grid.ErrUnsupportedConversion{From: from, To: to}
	}
	if from.Is(target) || from.Is(grid.OctetStreamType) || target.Is(grid.OctetStreamType) {
		return data, nil
	}
	value, err := r.formats[from.Base()].decode(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %v: %v", from.Base(), err)
	}
	out, err := r.formats[target.Base()].encode(normalize(value))
	if err != nil {
		return nil, fmt.Errorf("encoding %v: %v", target.Base(), err)
	}
	return out, nil
}

// normalize rewrites YAML-style map[interface{}]interface{} maps,
// at any depth, into map[string]interface{}.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, item := range v {
			m[fmt.Sprint(key)] = normalize(item)
		}
		return m
	case map[string]interface{}:
		for key, item := range v {
			v[key] = normalize(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	}
	return value
}

func decodeCodec(h codec.Handle) func([]byte) (interface{}, error) {
	return func(data []byte) (interface{}, error) {
		var value interface{}
		err := codec.NewDecoder(bytes.NewReader(data), h).Decode(&value)
		return value, err
	}
}

func encodeCodec(h codec.Handle) func(interface{}) ([]byte, error) {
	return func(value interface{}) ([]byte, error) {
		var buf bytes.Buffer
		err := codec.NewEncoder(&buf, h).Encode(value)
		return buf.Bytes(), err
	}
}

func decodeProto(data []byte) (interface{}, error) {
	var value structpb.Value
	if err := proto.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value.AsInterface(), nil
}

func encodeProto(value interface{}) ([]byte, error) {
	pv, err := structpb.NewValue(protoCompatible(value))
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pv)
}

// protoCompatible converts the slice types codecs produce into the
// ones structpb accepts.
func protoCompatible(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(v))
		for key, item := range v {
			m[key] = protoCompatible(item)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(v))
		for i, item := range v {
			s[i] = protoCompatible(item)
		}
		return s
	case []string:
		s := make([]interface{}, len(v))
		for i, item := range v {
			s[i] = item
		}
		return s
	}
	return value
}

func decodeYAML(data []byte) (interface{}, error) {
	var value interface{}
	err := yaml.Unmarshal(data, &value)
	return normalize(value), err
}

func encodeYAML(value interface{}) ([]byte, error) {
	return yaml.Marshal(value)
}

// decodeText reads plain text that happens to hold JSON as that JSON
// value, and anything else as a string.
func decodeText(data []byte) (interface{}, error) {
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("text is not valid UTF-8")
	}
	if json.Valid(data) {
		return decodeCodec(jsonHandle())(data)
	}
	return string(data), nil
}

// encodeText writes strings as themselves and anything else as JSON.
func encodeText(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	}
	return encodeCodec(jsonHandle())(value)
}
