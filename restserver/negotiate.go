// Copyright 2015-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains content negotiation, following the path laid
// out in RFC 7231 section 5.3.  Entry values are negotiated against
// the cache's storage type and the conversions the encoding registry
// supports; everything else is negotiated against a fixed list of
// representations.

import (
	"sort"
	"strings"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/restdata"
)

// ParseAccept parses an Accept: header into media ranges, best
// first.  Ranges with equal quality keep their header order, and
// ranges with q=0 are dropped.  An empty header accepts anything.
func ParseAccept(header string) ([]grid.MediaType, error) {
	if strings.TrimSpace(header) == "" {
		return []grid.MediaType{grid.AnyType}, nil
	}
	type ranked struct {
		mediaType grid.MediaType
		q         float64
	}
	var ranges []ranked
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mt, err := grid.ParseMediaType(part)
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
		q, err := mt.Quality()
		if err != nil {
			return nil, restdata.ErrBadRequest{Err: err}
		}
		if q == 0 {
			continue
		}
		ranges = append(ranges, ranked{mediaType: mt, q: q})
	}
	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].q > ranges[j].q
	})
	result := make([]grid.MediaType, len(ranges))
	for i, r := range ranges {
		result[i] = r.mediaType
	}
	return result, nil
}

// acceptString renders a parsed Accept: list for error messages.
func acceptString(accept []grid.MediaType) string {
	parts := make([]string, len(accept))
	for i, mt := range accept {
		parts[i] = mt.String()
	}
	return strings.Join(parts, ", ")
}

// supported returns true if stored values can be presented as
// candidate.
func supported(storage, candidate grid.MediaType, registry grid.EncodingRegistry) bool {
	if storage.Is(candidate) {
		return true
	}
	return registry != nil && registry.IsConversionSupported(storage, candidate)
}

// rangeCandidates are the concrete types tried for a "type/*" range
// when the storage type does not fall in it.
var rangeCandidates = []grid.MediaType{
	grid.TextPlainType,
	grid.JSONType,
	grid.YAMLType,
	grid.OctetStreamType,
}

// Negotiate picks the media type to present a stored value in.  It
// returns the first acceptable candidate the stored type can be
// converted to.  A "*/*" candidate becomes text/plain for object
// storage and application/json for protostream storage, and is
// otherwise returned as-is; callers then answer in the storage type.
// Returns restdata.ErrNotAcceptable if nothing matches.
func Negotiate(accept []grid.MediaType, storage grid.MediaType, registry grid.EncodingRegistry) (grid.MediaType, error) {
	if len(accept) == 0 {
		accept = []grid.MediaType{grid.AnyType}
	}
	for _, candidate := range accept {
		switch {
		case candidate.MatchesAll():
			switch {
			case storage.Is(grid.ObjectType):
				return grid.TextPlainType, nil
			case storage.Is(grid.ProtostreamType):
				return grid.JSONType, nil
			}
			return candidate.WithoutParams(), nil
		case candidate.IsWildcard():
			if storage.Type == candidate.Type && !storage.Is(grid.UnknownType) {
				return storage.WithoutParams(), nil
			}
			for _, concrete := range rangeCandidates {
				if candidate.Match(concrete) && supported(storage, concrete, registry) {
					return concrete, nil
				}
			}
		default:
			if supported(storage, candidate, registry) {
				return stripQuality(candidate), nil
			}
		}
	}
	return grid.MediaType{}, restdata.ErrNotAcceptable{Accept: acceptString(accept)}
}

// NegotiateFixed picks one of a fixed list of offered media types.
// A wildcard selects the first offer that it covers.
func NegotiateFixed(accept []grid.MediaType, offered ...grid.MediaType) (grid.MediaType, error) {
	if len(accept) == 0 {
		accept = []grid.MediaType{grid.AnyType}
	}
	for _, candidate := range accept {
		for _, offer := range offered {
			if candidate.Match(offer) {
				return offer, nil
			}
		}
	}
	return grid.MediaType{}, restdata.ErrNotAcceptable{Accept: acceptString(accept)}
}

// stripQuality returns mt without its "q" parameter.
func stripQuality(mt grid.MediaType) grid.MediaType {
	if _, present := mt.Params["q"]; !present {
		return mt
	}
	params := make(map[string]string, len(mt.Params))
	for k, v := range mt.Params {
		if k != "q" {
			params[k] = v
		}
	}
	if len(params) == 0 {
		params = nil
	}
	return grid.MediaType{Type: mt.Type, Subtype: mt.Subtype, Params: params}
}
