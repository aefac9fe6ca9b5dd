// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package grid

import (
	"math"
	"mime"
	"strconv"
	"strings"
)

// Well-known media type strings.
const (
	MediaAny         = "*/*"
	MediaTextPlain   = "text/plain"
	MediaJSON        = "application/json"
	MediaOctetStream = "application/octet-stream"
	MediaYAML        = "application/yaml"
	MediaZip         = "application/zip"
	// MediaObject is the in-memory object representation.  Values
	// in this encoding are serialized as CBOR.
	MediaObject = "application/x-java-object"
	// MediaProtostream is the schema-based binary encoding.
	// Values in this encoding are serialized protobuf
	// google.protobuf.Value messages.
	MediaProtostream = "application/x-protostream"
	// MediaUnknown means "whatever the client wrote".
	MediaUnknown = "application/unknown"
)

// Parsed forms of the well-known media types.
var (
	AnyType         = MustParseMediaType(MediaAny)
	TextPlainType   = MustParseMediaType(MediaTextPlain)
	JSONType        = MustParseMediaType(MediaJSON)
	OctetStreamType = MustParseMediaType(MediaOctetStream)
	YAMLType        = MustParseMediaType(MediaYAML)
	ZipType         = MustParseMediaType(MediaZip)
	ObjectType      = MustParseMediaType(MediaObject)
	ProtostreamType = MustParseMediaType(MediaProtostream)
	UnknownType     = MustParseMediaType(MediaUnknown)
)

// MediaType is a parsed MIME type, such as "text/plain; charset=utf-8".
// The zero value is not a valid media type.
type MediaType struct {
	Type    string
	Subtype string
	Params  map[string]string
}

// ParseMediaType parses a media type string.  Type and subtype are
// lower-cased; parameter names are lower-cased by the mime package.
func ParseMediaType(s string) (MediaType, error) {
	full, params, err := mime.ParseMediaType(s)
	if err != nil {
		return MediaType{}, ErrBadMediaType{Value: s, Err: err}
	}
	parts := strings.SplitN(full, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return MediaType{}, ErrBadMediaType{Value: s}
	}
	if parts[0] == "*" && parts[1] != "*" {
		return MediaType{}, ErrBadMediaType{Value: s}
	}
	if len(params) == 0 {
		params = nil
	}
	return MediaType{Type: parts[0], Subtype: parts[1], Params: params}, nil
}

// MustParseMediaType is ParseMediaType that panics on error.  It is
// intended for static initialization.
func MustParseMediaType(s string) MediaType {
	mt, err := ParseMediaType(s)
	if err != nil {
		panic(err)
	}
	return mt
}

// IsZero returns true for the zero MediaType.
func (m MediaType) IsZero() bool {
	return m.Type == "" && m.Subtype == ""
}

// Base returns "type/subtype" without any parameters.
func (m MediaType) Base() string {
	return m.Type + "/" + m.Subtype
}

// String renders the media type, including parameters other than
// the "q" quality factor.
func (m MediaType) String() string {
	if m.IsZero() {
		return ""
	}
	params := make(map[string]string)
	for k, v := range m.Params {
		if k != "q" {
			params[k] = v
		}
	}
	if len(params) == 0 {
		return m.Base()
	}
	s := mime.FormatMediaType(m.Base(), params)
	if s == "" {
		// mime refused something in the parameters
		return m.Base()
	}
	return s
}

// MatchesAll returns true for "*/*".
func (m MediaType) MatchesAll() bool {
	return m.Type == "*" && m.Subtype == "*"
}

// IsWildcard returns true for "*/*" and for ranges like "text/*".
func (m MediaType) IsWildcard() bool {
	return m.Type == "*" || m.Subtype == "*"
}

// Match returns true if either type is a range that covers the
// other, or if both name the same type and subtype.  Parameters are
// not considered.
func (m MediaType) Match(other MediaType) bool {
	if m.MatchesAll() || other.MatchesAll() {
		return true
	}
	if m.Type != other.Type {
		return false
	}
	return m.Subtype == "*" || other.Subtype == "*" || m.Subtype == other.Subtype
}

// Is returns true if m has exactly the given base type.
func (m MediaType) Is(other MediaType) bool {
	return m.Type == other.Type && m.Subtype == other.Subtype
}

// Charset returns the charset parameter, or an empty string.
func (m MediaType) Charset() string {
	return m.Params["charset"]
}

// Quality returns the "q" parameter, defaulting to 1.  It returns an
// error if the parameter is present but not a number in [0, 1].
func (m MediaType) Quality() (float64, error) {
	qs, present := m.Params["q"]
	if !present {
		return 1.0, nil
	}
	q, err := strconv.ParseFloat(qs, 64)
	if err != nil || math.IsNaN(q) || q < 0.0 || q > 1.0 {
		return 0.0, ErrBadMediaType{Value: m.Base() + ";q=" + qs}
	}
	return q, nil
}

// WithoutParams returns a copy of m with no parameters at all.
func (m MediaType) WithoutParams() MediaType {
	return MediaType{Type: m.Type, Subtype: m.Subtype}
}
