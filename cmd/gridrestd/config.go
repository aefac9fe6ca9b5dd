// Copyright 2017-2018 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package main

import (
	"fmt"
	"io/ioutil"
	"sort"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"

	"github.com/diffeo/go-gridrest/grid"
	"github.com/diffeo/go-gridrest/memory"
)

// Config is the daemon's global configuration file.  For instance:
//
//     node:
//       name: grid1
//       address: 10.0.0.1:11222
//     workers: 16
//     backup_dir: /var/lib/gridrest/backups
//     caches:
//       sessions:
//         encoding: application/json
//         lifespan: 1h
//         sites: [NYC]
//     roles:
//       reader: [READ, MONITOR]
//     users:
//       alice: [admin]
//
// Setting "users" or "roles" turns on authorization.
type Config struct {
	Node      NodeConfig
	Workers   int
	BackupDir string `mapstructure:"backup_dir"`
	Caches    map[string]CacheConfig
	Roles     map[string][]string
	Users     map[string][]string
}

// NodeConfig names this server in the topology the engine reports.
type NodeConfig struct {
	Name    string
	Address string
}

// CacheConfig describes a cache created at startup.
type CacheConfig struct {
	Encoding string
	Lifespan time.Duration
	MaxIdle  time.Duration `mapstructure:"max_idle"`
	Indexed  bool
	Sites    []string
	Template string
}

// toConfig converts c to an engine cache configuration.
func (c CacheConfig) toConfig() (grid.CacheConfig, error) {
	config := grid.CacheConfig{
		Lifespan: c.Lifespan,
		MaxIdle:  c.MaxIdle,
		Indexed:  c.Indexed,
		Sites:    c.Sites,
		Template: c.Template,
	}
	if c.Encoding != "" {
		encoding, err := grid.ParseMediaType(c.Encoding)
		if err != nil {
			return config, err
		}
		config.Encoding = encoding
	}
	return config, nil
}

func loadConfigYaml(filename string) (map[string]interface{}, error) {
	var result map[string]interface{}
	var err error
	var bytes []byte
	bytes, err = ioutil.ReadFile(filename)
	if err == nil {
		err = yaml.Unmarshal(bytes, &result)
	}
	return result, err
}

// decodeConfig converts the generic YAML map into a Config.  Numbers
// and strings are converted as needed, and durations may be written
// as "90s" or "1h".
func decodeConfig(raw map[string]interface{}) (Config, error) {
	var result Config
	config := mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &result,
	}
	decoder, err := mapstructure.NewDecoder(&config)
	if err == nil {
		err = decoder.Decode(raw)
	}
	return result, err
}

// secured returns true if c turns on authorization.
func (c Config) secured() bool {
	return len(c.Roles) > 0 || len(c.Users) > 0
}

// security builds the role mapper c describes.
func (c Config) security() (*memory.Security, error) {
	security := memory.NewSecurity()
	for role, names := range c.Roles {
		var perm grid.Permission
		for _, name := range names {
			p, err := grid.ParsePermission(name)
			if err != nil {
				return nil, fmt.Errorf("role %v: %v", role, err)
			}
			perm |= p
		}
		security.DefineRole(role, perm)
	}
	for user, roles := range c.Users {
		if err := security.Grant(user, roles); err != nil {
			return nil, fmt.Errorf("user %v: %v", user, err)
		}
	}
	return security, nil
}

// createCaches creates the configured caches, in name order, that do
// not exist yet.
func (c Config) createCaches(g grid.Grid) error {
	names := make([]string, 0, len(c.Caches))
	for name := range c.Caches {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		config, err := c.Caches[name].toConfig()
		if err != nil {
			return fmt.Errorf("cache %v: %v", name, err)
		}
		_, err = g.CreateCache(name, config)
		if _, exists := err.(grid.ErrCacheExists); exists {
			continue
		}
		if err != nil {
			return fmt.Errorf("cache %v: %v", name, err)
		}
	}
	return nil
}
