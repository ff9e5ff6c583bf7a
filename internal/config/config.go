// Package config loads the graphwire TOML configuration.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/entitycache/graphwire/wire/core"
)

// ErrInvalid marks configuration that failed validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the root of the configuration file.
type Config struct {
	Serializer Serializer `toml:"serializer"`
	Snapshot   Snapshot   `toml:"snapshot"`
}

// Serializer configures the serialization engine.
type Serializer struct {
	Depth       string   `toml:"depth"`
	MaxNodes    int      `toml:"max_nodes"`
	MaxElements int      `toml:"max_elements"`
	MaxNesting  int      `toml:"max_nesting"`
	SkipMembers []string `toml:"skip_members"`
}

// Snapshot configures the snapshot manager and its Redis store.
type Snapshot struct {
	Namespace     string `toml:"namespace"`
	TTL           string `toml:"ttl"`
	RedisAddr     string `toml:"redis_addr"`
	ChannelPrefix string `toml:"channel_prefix"`
	Format        string `toml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Serializer: Serializer{
			Depth:       core.DepthStandard.String(),
			MaxNodes:    core.DefaultMaxNodes,
			MaxElements: core.DefaultMaxElements,
			MaxNesting:  core.DefaultMaxNesting,
			SkipMembers: append([]string(nil), core.DefaultSkippedMembers...),
		},
		Snapshot: Snapshot{
			Namespace:     "graphwire",
			TTL:           "10m",
			RedisAddr:     "127.0.0.1:6379",
			ChannelPrefix: "graphwire::",
			Format:        core.FormatJSON,
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(string(data))
}

// Parse decodes TOML text on top of the defaults and validates the result.
func Parse(text string) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(text, &cfg)
	if err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.Mark(errors.Newf("unknown keys: %s", strings.Join(keys, ", ")), ErrInvalid)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown depths and formats, non-positive budgets and
// malformed TTLs.
func (c Config) Validate() error {
	if _, err := c.Serializer.ParsedDepth(); err != nil {
		return errors.Mark(err, ErrInvalid)
	}
	budgets := []struct {
		name  string
		value int
	}{
		{"max_nodes", c.Serializer.MaxNodes},
		{"max_elements", c.Serializer.MaxElements},
		{"max_nesting", c.Serializer.MaxNesting},
	}
	for _, b := range budgets {
		if b.value <= 0 {
			return errors.Mark(errors.Newf("serializer.%s must be positive, got %d", b.name, b.value), ErrInvalid)
		}
	}
	if _, err := c.Snapshot.ParsedTTL(); err != nil {
		return errors.Mark(err, ErrInvalid)
	}
	if !core.ValidFormat(c.Snapshot.Format) {
		return errors.Mark(errors.Wrapf(core.ErrUnknownFormat, "snapshot.format %q", c.Snapshot.Format), ErrInvalid)
	}
	return nil
}

// ParsedDepth returns the configured depth.
func (s Serializer) ParsedDepth() (core.Depth, error) {
	return core.ParseDepth(s.Depth)
}

// EngineOptions converts the serializer section into engine options.
func (s Serializer) EngineOptions() []core.Option {
	return []core.Option{
		core.WithMaxNodes(s.MaxNodes),
		core.WithMaxElements(s.MaxElements),
		core.WithMaxNesting(s.MaxNesting),
		core.WithSkippedMembers(s.SkipMembers...),
	}
}

// ParsedTTL returns the snapshot TTL. An empty value means no expiry.
func (s Snapshot) ParsedTTL() (time.Duration, error) {
	if s.TTL == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(s.TTL)
	if err != nil {
		return 0, errors.Wrapf(err, "snapshot.ttl %q", s.TTL)
	}
	if ttl < 0 {
		return 0, errors.Newf("snapshot.ttl must not be negative, got %s", s.TTL)
	}
	return ttl, nil
}
