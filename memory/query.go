// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/ugorji/go/codec"
)

// TypeField is the JSON field naming the entity type of a value.
// "FROM x" selects values whose TypeField is x.
const TypeField = "_type"

// NewQueryEngine creates a search engine over the caches of g.  Values
// are converted to JSON through reg before they are matched, so any
// cache whose encoding reg can present as JSON is searchable.
//
// The query language is a small subset of Ickle:
//
//	FROM entity [WHERE field op literal [AND field op literal ...]]
//	    [ORDER BY field [ASC|DESC]]
//
// where op is one of = != < <= > >= and a literal is a quoted
// string, a number, true or false.
func NewQueryEngine(g grid.Grid, reg grid.EncodingRegistry) *QueryEngine {
	return &QueryEngine{
		grid:     g,
		registry: reg,
		indexed:  make(map[string]int),
	}
}

// QueryEngine implements grid.QueryEngine over an arbitrary grid.
type QueryEngine struct {
	grid     grid.Grid
	registry grid.EncodingRegistry
	lock     sync.Mutex
	// indexed maps cache name to number of documents in its
	// index
	indexed map[string]int
}

func (q *QueryEngine) Query(cacheName string, query grid.Query) (grid.QueryResult, error) {
	var result grid.QueryResult
	parsed, err := parseQuery(query.Text)
	if err != nil {
		return result, err
	}
	cache, err := q.grid.Cache(cacheName)
	if err != nil {
		return result, err
	}
	docs, err := q.documents(cache)
	if err != nil {
		return result, err
	}

	var hits []map[string]interface{}
	for _, doc := range docs {
		if parsed.matches(doc) {
			hits = append(hits, doc)
		}
	}
	if parsed.orderBy != "" {
		sort.SliceStable(hits, func(i, j int) bool {
			c, ok := compareValues(hits[i][parsed.orderBy], hits[j][parsed.orderBy])
			if !ok {
				return false
			}
			if parsed.descending {
				return c > 0
			}
			return c < 0
		})
	}

	result.HitCount = len(hits)
	result.HitCountExact = query.HitCountAccuracy <= 0 || len(hits) <= query.HitCountAccuracy
	if !result.HitCountExact {
		result.HitCount = query.HitCountAccuracy
	}
	start := query.Offset
	if start < 0 {
		start = 0
	}
	if start > len(hits) {
		start = len(hits)
	}
	end := len(hits)
	if query.MaxResults > 0 && start+query.MaxResults < end {
		end = start + query.MaxResults
	}
	result.Hits = hits[start:end]
	if result.Hits == nil {
		result.Hits = []map[string]interface{}{}
	}
	return result, nil
}

// documents decodes every value of a cache that can be read as JSON.
func (q *QueryEngine) documents(cache grid.Cache) ([]map[string]interface{}, error) {
	keys, err := cache.Keys()
	if err != nil {
		return nil, err
	}
	h := &codec.JsonHandle{}
	h.MapType = reflect.TypeOf(map[string]interface{}(nil))
	var docs []map[string]interface{}
	for _, key := range keys {
		entry, err := cache.Get(key)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		data := entry.Value
		if !entry.MediaType.Is(grid.JSONType) {
			if q.registry == nil || !q.registry.IsConversionSupported(entry.MediaType, grid.JSONType) {
				continue
			}
			data, err = q.registry.Transcode(entry.Value, entry.MediaType, grid.JSONType)
			if err != nil {
				continue
			}
		}
		var doc map[string]interface{}
		err = codec.NewDecoder(bytes.NewReader(data), h).Decode(&doc)
		if err != nil || doc == nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (q *QueryEngine) indexedCache(cacheName string) (grid.Cache, error) {
	cache, err := q.grid.Cache(cacheName)
	if err != nil {
		return nil, err
	}
	config, err := cache.Config()
	if err != nil {
		return nil, err
	}
	if !config.Indexed {
		return nil, grid.ErrNotIndexed{Cache: cacheName}
	}
	return cache, nil
}

func (q *QueryEngine) Reindex(cacheName string) (<-chan error, error) {
	cache, err := q.indexedCache(cacheName)
	if err != nil {
		return nil, err
	}
	done := make(chan error, 1)
	go func() {
		docs, err := q.documents(cache)
		if err == nil {
			q.lock.Lock()
			q.indexed[cacheName] = len(docs)
			q.lock.Unlock()
		}
		done <- err
		close(done)
	}()
	return done, nil
}

// IndexSize returns the number of documents the last reindex of a
// cache saw, and false if the cache has no index.
func (q *QueryEngine) IndexSize(cacheName string) (int, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	size, present := q.indexed[cacheName]
	return size, present
}

func (q *QueryEngine) ClearIndex(cacheName string) error {
	if _, err := q.indexedCache(cacheName); err != nil {
		return err
	}
	q.lock.Lock()
	defer q.lock.Unlock()
	delete(q.indexed, cacheName)
	return nil
}

// Query parsing:

type condition struct {
	field string
	op    string
	value interface{}
}

type parsedQuery struct {
	entity     string
	conditions []condition
	orderBy    string
	descending bool
}

func (p parsedQuery) matches(doc map[string]interface{}) bool {
	if p.entity != "" && doc[TypeField] != p.entity {
		return false
	}
	for _, cond := range p.conditions {
		actual, present := doc[cond.field]
		if !present {
			return false
		}
		c, ok := compareValues(actual, cond.value)
		if !ok {
			return false
		}
		switch cond.op {
		case "=":
			if c != 0 {
				return false
			}
		case "!=":
			if c == 0 {
				return false
			}
		case "<":
			if c >= 0 {
				return false
			}
		case "<=":
			if c > 0 {
				return false
			}
		case ">":
			if c <= 0 {
				return false
			}
		case ">=":
			if c < 0 {
				return false
			}
		}
	}
	return true
}

// compareValues orders two decoded JSON scalars.  It returns false if
// they are not comparable.
func compareValues(a, b interface{}) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func badQuery(text, format string, args ...interface{}) error {
	return grid.ErrBadQuery{Query: text, Reason: fmt.Sprintf(format, args...)}
}

func parseQuery(text string) (parsedQuery, error) {
	var p parsedQuery
	tokens, err := tokenize(text)
	if err != nil {
		return p, err
	}
	pos := 0
	next := func() string {
		if pos >= len(tokens) {
			return ""
		}
		pos++
		return tokens[pos-1]
	}
	keyword := func(want string) bool {
		if pos < len(tokens) && strings.EqualFold(tokens[pos], want) {
			pos++
			return true
		}
		return false
	}

	if !keyword("FROM") {
		return p, badQuery(text, "expected FROM")
	}
	p.entity = next()
	if !isIdentifier(p.entity) {
		return p, badQuery(text, "expected an entity name after FROM")
	}
	if keyword("WHERE") {
		for {
			field := next()
			if !isIdentifier(field) {
				return p, badQuery(text, "expected a field name, got %q", field)
			}
			op := next()
			switch op {
			case "=", "!=", "<", "<=", ">", ">=":
			default:
				return p, badQuery(text, "unknown operator %q", op)
			}
			value, err := parseLiteral(next())
			if err != nil {
				return p, badQuery(text, "%v", err)
			}
			p.conditions = append(p.conditions, condition{field, op, value})
			if !keyword("AND") {
				break
			}
		}
	}
	if keyword("ORDER") {
		if !keyword("BY") {
			return p, badQuery(text, "expected BY after ORDER")
		}
		p.orderBy = next()
		if !isIdentifier(p.orderBy) {
			return p, badQuery(text, "expected a field name after ORDER BY")
		}
		if keyword("DESC") {
			p.descending = true
		} else {
			keyword("ASC")
		}
	}
	if pos != len(tokens) {
		return p, badQuery(text, "unexpected %q", tokens[pos])
	}
	return p, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if !(unicode.IsLetter(r) || r == '_' || r == '.' || (i > 0 && unicode.IsDigit(r))) {
			return false
		}
	}
	return true
}

func parseLiteral(token string) (interface{}, error) {
	switch {
	case token == "":
		return nil, fmt.Errorf("expected a value")
	case token[0] == '\'' || token[0] == '"':
		return token[1 : len(token)-1], nil
	case strings.EqualFold(token, "true"):
		return true, nil
	case strings.EqualFold(token, "false"):
		return false, nil
	}
	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return nil, fmt.Errorf("bad literal %q", token)
	}
	return f, nil
}

// tokenize splits query text into words, quoted strings (kept with
// their quotes) and comparison operators.
func tokenize(text string) ([]string, error) {
	var tokens []string
	runes := []rune(text)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				j++
			}
			if j >= len(runes) {
				return nil, badQuery(text, "unterminated string")
			}
			tokens = append(tokens, string(runes[i:j+1]))
			i = j + 1
		case strings.ContainsRune("=!<>", r):
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, string(runes[i:i+2]))
				i += 2
			} else if r == '!' {
				return nil, badQuery(text, "unexpected '!'")
			} else {
				tokens = append(tokens, string(r))
				i++
			}
		default:
			j := i
			for j < len(runes) && !unicode.IsSpace(runes[j]) && !strings.ContainsRune("=!<>'\"", runes[j]) {
				j++
			}
			tokens = append(tokens, string(runes[i:j]))
			i = j
		}
	}
	return tokens, nil
}
