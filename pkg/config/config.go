// Package config loads sensortree settings from a TOML file.
//
//	[layout]
//	x_spacing = 260
//
//	[server]
//	addr = ":8080"
//	session_ttl = "4h"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
//
//	[storage]
//	backend = "mongo"
//	[storage.mongo]
//	uri = "mongodb://localhost:27017"
//
// Values absent from the file keep their defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/sensortree/pkg/layout"
	"github.com/matzehuels/sensortree/pkg/storage"
)

// Duration is a time.Duration written as a string such as "90s" or "2h".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the full configuration.
type Config struct {
	Layout  layout.Config `toml:"layout"`
	Server  Server        `toml:"server"`
	Cache   Cache         `toml:"cache"`
	Storage Storage       `toml:"storage"`
}

// Server configures `sensortree serve`.
type Server struct {
	Addr          string   `toml:"addr"`
	SessionTTL    Duration `toml:"session_ttl"`
	FrameInterval Duration `toml:"frame_interval"`
	// Sessions is "memory" or "redis".
	Sessions string `toml:"sessions"`
}

// Cache configures the artifact cache.
type Cache struct {
	// Backend is "file", "redis" or "none".
	Backend     string   `toml:"backend"`
	Dir         string   `toml:"dir"`
	RedisAddr   string   `toml:"redis_addr"`
	RedisDB     int      `toml:"redis_db"`
	Prefix      string   `toml:"prefix"`
	ForestTTL   Duration `toml:"forest_ttl"`
	LayoutTTL   Duration `toml:"layout_ttl"`
	ArtifactTTL Duration `toml:"artifact_ttl"`
}

// Storage configures payload and note storage.
type Storage struct {
	// Backend is "file" or "mongo".
	Backend string              `toml:"backend"`
	Dir     string              `toml:"dir"`
	Mongo   storage.MongoConfig `toml:"mongo"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Layout: layout.DefaultConfig(),
		Server: Server{
			Addr:          ":8080",
			SessionTTL:    Duration{2 * time.Hour},
			FrameInterval: Duration{16 * time.Millisecond},
			Sessions:      "memory",
		},
		Cache: Cache{
			Backend:     "file",
			Dir:         filepath.Join(baseDir(), "cache"),
			RedisAddr:   "localhost:6379",
			ForestTTL:   Duration{7 * 24 * time.Hour},
			LayoutTTL:   Duration{24 * time.Hour},
			ArtifactTTL: Duration{24 * time.Hour},
		},
		Storage: Storage{
			Backend: "file",
			Dir:     filepath.Join(baseDir(), "data"),
		},
	}
}

// Load overlays the file at path onto [Default]. An empty path returns the
// defaults; a missing non-empty path is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config %s: unknown key %s", path, undecoded[0])
	}
	cfg.Layout = cfg.Layout.Merge(layout.DefaultConfig())
	return cfg, cfg.Validate()
}

// Validate checks enumerated fields.
func (c Config) Validate() error {
	var errs []error
	switch c.Cache.Backend {
	case "file", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.backend: unknown backend %q", c.Cache.Backend))
	}
	switch c.Storage.Backend {
	case "file", "mongo":
	default:
		errs = append(errs, fmt.Errorf("storage.backend: unknown backend %q", c.Storage.Backend))
	}
	switch c.Server.Sessions {
	case "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("server.sessions: unknown store %q", c.Server.Sessions))
	}
	if c.Server.SessionTTL.Duration <= 0 {
		errs = append(errs, errors.New("server.session_ttl: must be positive"))
	}
	return errors.Join(errs...)
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// baseDir is ~/.cache/sensortree, or the temp dir when there is no home.
func baseDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sensortree")
	}
	return filepath.Join(os.TempDir(), "sensortree")
}
