// Copyright 2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package backup

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/ugorji/go/codec"
)

// Archive layout:
//
//	manifest.json                  manifest
//	caches/<name>/config.json      cacheRecord
//	caches/<name>/entries.cbor     []entryRecord
//	counters.json                  map[string]counterRecord
const (
	manifestFile = "manifest.json"
	countersFile = "counters.json"
	archiveVer   = 1
)

type manifest struct {
	Version  int      `codec:"version"`
	Created  string   `codec:"created"`
	Node     string   `codec:"node"`
	Caches   []string `codec:"caches"`
	Counters []string `codec:"counters"`
}

type cacheRecord struct {
	Encoding string   `codec:"encoding"`
	Lifespan int64    `codec:"lifespan_ms"`
	MaxIdle  int64    `codec:"max_idle_ms"`
	Indexed  bool     `codec:"indexed"`
	Sites    []string `codec:"sites"`
	Template string   `codec:"template,omitempty"`
}

type entryRecord struct {
	Key       string `codec:"k"`
	Value     []byte `codec:"v"`
	MediaType string `codec:"t"`
	// Lifespan and MaxIdle are in milliseconds, negative meaning
	// immortal.
	Lifespan int64 `codec:"l"`
	MaxIdle  int64 `codec:"i"`
}

type counterRecord struct {
	Type    grid.CounterType `codec:"type"`
	Initial int64            `codec:"initial"`
	Bounded bool             `codec:"bounded"`
	Lower   int64            `codec:"lower"`
	Upper   int64            `codec:"upper"`
	Value   int64            `codec:"value"`
}

func cacheDir(name string) string {
	return path.Join("caches", name)
}

func millis(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}

// lifetime converts a stored lifetime back to write options: absent
// lifetimes must not pick up the restored cache's defaults.
func lifetime(ms int64) time.Duration {
	if ms <= 0 {
		return -1
	}
	return time.Duration(ms) * time.Millisecond
}

func writeJSON(zw *zip.Writer, name string, v interface{}) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	return codec.NewEncoder(w, &codec.JsonHandle{}).Encode(v)
}

func writeCBOR(zw *zip.Writer, name string, v interface{}) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	return codec.NewEncoder(w, &codec.CborHandle{}).Encode(v)
}

// writeArchive writes the selected resources of the grid to a new
// zip file at archivePath.
func (m *Manager) writeArchive(archivePath string, resources grid.Resources) (err error) {
	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	zw := zip.NewWriter(f)

	man := manifest{
		Version: archiveVer,
		Created: time.Now().UTC().Format(time.RFC3339),
		Node:    m.grid.NodeName(),
	}
	names, err := m.grid.CacheNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		if !resources.Includes(grid.ResourceCaches, name) {
			continue
		}
		if err = m.writeCache(zw, name); err != nil {
			return grid.CacheError{Op: "backup " + name, Err: err}
		}
		man.Caches = append(man.Caches, name)
	}

	if m.counters != nil {
		records, err := m.counterRecords(resources)
		if err != nil {
			return err
		}
		for name := range records {
			man.Counters = append(man.Counters, name)
		}
		if err = writeJSON(zw, countersFile, records); err != nil {
			return err
		}
	}

	if err = writeJSON(zw, manifestFile, man); err != nil {
		return err
	}
	return zw.Close()
}

func (m *Manager) writeCache(zw *zip.Writer, name string) error {
	cache, err := m.grid.Cache(name)
	if err != nil {
		return err
	}
	config, err := cache.Config()
	if err != nil {
		return err
	}
	err = writeJSON(zw, path.Join(cacheDir(name), "config.json"), cacheRecord{
		Encoding: config.Encoding.String(),
		Lifespan: millis(config.Lifespan),
		MaxIdle:  millis(config.MaxIdle),
		Indexed:  config.Indexed,
		Sites:    config.Sites,
		Template: config.Template,
	})
	if err != nil {
		return err
	}

	keys, err := cache.Keys()
	if err != nil {
		return err
	}
	entries := make([]entryRecord, 0, len(keys))
	for _, key := range keys {
		entry, err := cache.Get(key)
		if err != nil {
			return err
		}
		if entry == nil {
			continue
		}
		entries = append(entries, entryRecord{
			Key:       entry.Key,
			Value:     entry.Value,
			MediaType: entry.MediaType.String(),
			Lifespan:  millis(entry.Lifespan),
			MaxIdle:   millis(entry.MaxIdle),
		})
	}
	return writeCBOR(zw, path.Join(cacheDir(name), "entries.cbor"), entries)
}

func (m *Manager) counterRecords(resources grid.Resources) (map[string]counterRecord, error) {
	names, err := m.counters.CounterNames()
	if err != nil {
		return nil, err
	}
	records := make(map[string]counterRecord)
	for _, name := range names {
		if !resources.Includes(grid.ResourceCounters, name) {
			continue
		}
		config, err := m.counters.CounterConfig(name)
		if err != nil {
			return nil, err
		}
		counter, err := m.counters.Counter(name)
		if err != nil {
			return nil, err
		}
		value, err := counter.Value()
		if err != nil {
			return nil, err
		}
		records[name] = counterRecord{
			Type:    config.Type,
			Initial: config.Initial,
			Bounded: config.Bounded,
			Lower:   config.Lower,
			Upper:   config.Upper,
			Value:   value,
		}
	}
	return records, nil
}

// zipFiles indexes the members of an open archive.
type zipFiles map[string]*zip.File

func (files zipFiles) decode(name string, h codec.Handle, v interface{}) error {
	f, present := files[name]
	if !present {
		return fmt.Errorf("archive has no %v", name)
	}
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()
	return codec.NewDecoder(io.LimitReader(r, int64(f.UncompressedSize64)), h).Decode(v)
}

// readArchive loads the selected resources of a zip archive into the
// grid.  Caches that already exist keep their configuration and
// receive the archived entries.
func (m *Manager) readArchive(archivePath string, resources grid.Resources) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()
	files := make(zipFiles)
	for _, f := range zr.File {
		files[f.Name] = f
	}

	var man manifest
	if err = files.decode(manifestFile, &codec.JsonHandle{}, &man); err != nil {
		return err
	}
	if man.Version != archiveVer {
		return fmt.Errorf("unsupported archive version %v", man.Version)
	}

	for _, name := range man.Caches {
		if !resources.Includes(grid.ResourceCaches, name) {
			continue
		}
		if err = m.restoreCache(files, name); err != nil {
			return grid.CacheError{Op: "restore " + name, Err: err}
		}
	}

	if m.counters != nil && len(man.Counters) > 0 {
		var records map[string]counterRecord
		if err = files.decode(countersFile, &codec.JsonHandle{}, &records); err != nil {
			return err
		}
		for name, record := range records {
			if !resources.Includes(grid.ResourceCounters, name) {
				continue
			}
			if err = m.restoreCounter(name, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Manager) restoreCache(files zipFiles, name string) error {
	var record cacheRecord
	err := files.decode(path.Join(cacheDir(name), "config.json"), &codec.JsonHandle{}, &record)
	if err != nil {
		return err
	}
	encoding, err := grid.ParseMediaType(record.Encoding)
	if err != nil {
		return err
	}
	cache, err := m.grid.CreateCache(name, grid.CacheConfig{
		Encoding: encoding,
		Lifespan: time.Duration(record.Lifespan) * time.Millisecond,
		MaxIdle:  time.Duration(record.MaxIdle) * time.Millisecond,
		Indexed:  record.Indexed,
		Sites:    record.Sites,
		Template: record.Template,
	})
	if _, exists := err.(grid.ErrCacheExists); exists {
		cache, err = m.grid.Cache(name)
	}
	if err != nil {
		return err
	}

	var entries []entryRecord
	err = files.decode(path.Join(cacheDir(name), "entries.cbor"), &codec.CborHandle{}, &entries)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		mediaType, err := grid.ParseMediaType(entry.MediaType)
		if err != nil {
			return err
		}
		err = cache.Put(entry.Key, entry.Value, grid.WriteOptions{
			MediaType: mediaType,
			Lifespan:  lifetime(entry.Lifespan),
			MaxIdle:   lifetime(entry.MaxIdle),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) restoreCounter(name string, record counterRecord) error {
	_, err := m.counters.DefineCounter(name, grid.CounterConfig{
		Type:    record.Type,
		Initial: record.Initial,
		Bounded: record.Bounded,
		Lower:   record.Lower,
		Upper:   record.Upper,
	})
	if err != nil {
		return err
	}
	counter, err := m.counters.Counter(name)
	if err != nil {
		return err
	}
	if err = counter.Reset(); err != nil {
		return err
	}
	value, err := counter.Value()
	if err != nil {
		return err
	}
	_, err = counter.Add(record.Value - value)
	return err
}
