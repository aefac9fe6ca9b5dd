// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restdata

import (
	"fmt"
	"io"
	"io/ioutil"
	"mime"

	"github.com/mitchellh/mapstructure"
	"github.com/ugorji/go/codec"
	"gopkg.in/yaml.v2"

	"github.com/diffeo/go-gridrest/grid"
)

// Media types of the representations in this package.
const (
	JSONMediaType = grid.MediaJSON
	YAMLMediaType = grid.MediaYAML
	TextMediaType = grid.MediaTextPlain
)

// canonicalTypes maps accepted spellings of media types to the ones
// this package understands.
var canonicalTypes = map[string]string{
	"application/json":   JSONMediaType,
	"text/json":          JSONMediaType,
	"application/yaml":   YAMLMediaType,
	"application/x-yaml": YAMLMediaType,
	"text/yaml":          YAMLMediaType,
	"text/plain":         TextMediaType,
}

// Decode tries to decode a restdata object from a reader, such as an
// HTTP request or response.  out must be a pointer type.  An empty
// body decodes to nothing and leaves out unchanged; an empty
// contentType is taken as JSON.
func Decode(contentType string, r io.Reader, out interface{}) error {
	body, err := ioutil.ReadAll(r)
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	if contentType == "" {
		contentType = JSONMediaType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ErrBadRequest{Err: err}
	}

	switch canonicalTypes[mediaType] {
	case JSONMediaType:
		decoder := codec.NewDecoderBytes(body, &codec.JsonHandle{})
		err = decoder.Decode(out)
	case YAMLMediaType:
		// yaml.v2 does not know about json tags, so decode
		// generically and then fill in the structure
		var generic interface{}
		err = yaml.Unmarshal(body, &generic)
		if err == nil {
			err = decodeMap(generic, out)
		}
	default:
		return ErrUnsupportedMediaType{Type: mediaType}
	}
	if err != nil {
		return ErrBadRequest{Err: err}
	}
	return nil
}

// decodeMap fills out from a generic decoded document, using the
// json field tags.
func decodeMap(in, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(in)
}

// Encode writes v to w in the given media type, which should be
// one of the types in this package.  Text encoding writes strings
// and numbers as-is, and anything else as JSON.
func Encode(mediaType string, w io.Writer, v interface{}) error {
	switch canonicalTypes[mediaType] {
	case YAMLMediaType:
		// Round-trip through JSON so that field names match
		var (
			b       []byte
			generic interface{}
		)
		h := &codec.JsonHandle{}
		if err := codec.NewEncoderBytes(&b, h).Encode(v); err != nil {
			return err
		}
		if err := yaml.Unmarshal(b, &generic); err != nil {
			return err
		}
		out, err := yaml.Marshal(generic)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	case TextMediaType:
		switch v.(type) {
		case string, int, int64, bool:
			_, err := fmt.Fprint(w, v)
			return err
		}
	}
	return codec.NewEncoder(w, &codec.JsonHandle{}).Encode(v)
}
