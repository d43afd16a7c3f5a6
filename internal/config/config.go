// Package config loads the czar's string-map configuration (§6), applying
// documented defaults and logging a warning for every key that falls back
// to one.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/provingground-moe/qserv-sub000/internal/qlog"
)

// defaults holds every key's documented fallback value. Reading a key
// absent from this map is a programming error (Get panics, whatever the
// loaded file/env holds), since every key the core reads must be
// documented here.
var defaults = map[string]string{
	"frontend.xrootd":        "localhost:1094",
	"resultdb.unix_socket":   "/var/run/mysqld/mysqld.sock",
	"resultdb.user":          "qsmaster",
	"resultdb.db":            "qservResult",
	"qmeta.host":             "127.0.0.1",
	"qmeta.port":             "3306",
	"qmeta.user":             "qsmaster",
	"qmeta.passwd":           "",
	"qmeta.unix_socket":      "",
	"qmeta.db":               "qservMeta",
	"css.technology":         "mysql",
	"css.connection":         "mysql://qsmaster@localhost/qservCss",
	"css.timeout":            "10s",
	"partitioner.emptychunkpath": "",
	"executive.controllerThreads": "1",
	"messenger.ioThreads":         "1",
	"merger.maxResultTableSizeMB": "5000",
	"merger.checkSizeEveryXRows":  "100000",
}

// Config is the loaded, default-filled configuration map.
type Config struct {
	values map[string]string
}

// Load reads path (a TOML file, decoded by viper's own TOML support) plus
// environment overrides, and fills in any documented
// key the file/env omitted, logging a warning for each.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.AutomaticEnv()

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, err
			}
			qlog.With("path", path).Warn("config file not found, using documented defaults")
		}
	}

	c := &Config{values: map[string]string{}}
	for key, def := range defaults {
		if v.IsSet(key) {
			c.values[key] = v.GetString(key)
			continue
		}
		c.values[key] = def
		qlog.WithFields(map[string]interface{}{"key": key, "default": def}).
			Warn("config key missing, applying documented default")
	}
	return c, nil
}

// FromMap builds a Config directly from a string map (e.g. for tests),
// applying the same default-fill behavior as Load.
func FromMap(m map[string]string) *Config {
	c := &Config{values: map[string]string{}}
	for key, def := range defaults {
		if val, ok := m[key]; ok {
			c.values[key] = val
			continue
		}
		c.values[key] = def
	}
	for k, v := range m {
		if _, known := defaults[k]; !known {
			c.values[k] = v
		}
	}
	return c
}

// Get returns the string value of key, panicking if key was never
// documented in defaults -- every key the core reads must have a
// documented fallback.
func (c *Config) Get(key string) string {
	if _, ok := defaults[key]; !ok {
		panic("config: undocumented key " + key)
	}
	return c.values[key]
}

// GetDuration parses key as a Go duration (e.g. "css.timeout" = "10s") via
// cast. A bare integer with no unit is read as nanoseconds, not seconds.
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return cast.ToDurationE(c.Get(key))
}

// GetInt parses key as an integer (e.g. "merger.maxResultTableSizeMB").
func (c *Config) GetInt(key string) (int, error) {
	return cast.ToIntE(c.Get(key))
}

// MarshalDefaultsTOML renders the documented defaults as a TOML document,
// used by `cmd/czar config example` to print a starting configuration
// file.
func MarshalDefaultsTOML() (string, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(defaults); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// MarshalDefaultsYAML renders the documented defaults as a YAML document,
// for operators who keep their fleet's config templates in YAML (`cmd/czar
// config example --format yaml`).
func MarshalDefaultsYAML() (string, error) {
	out, err := yaml.Marshal(defaults)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
