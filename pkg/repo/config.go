// Package repo wires the engine packages (pristine, graph, change, apply,
// tag, remote) into a runnable repository: the on-disk layout of spec
// §6.3, the content-addressed change/tag file store, and the repository
// configuration file.
//
// Grounded on the teacher's pkg/config/config.go (section-struct Config,
// Validate(), functional defaults) and pkg/storage/loader.go (directory
// layout conventions); adapted from Neo4j-environment configuration to
// repository configuration, and from environment variables to a yaml file
// since a repository's config travels with its working tree rather than
// its process environment.
package repo

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the on-disk repository configuration (spec §6.3
// "<repo>/.atomic/config"). It is organized into sections the way the
// teacher's Config groups Auth/Database/Server/... — here the sections are
// Core (pristine/channel defaults), Remotes (named remote addresses), and
// Identity (default author attribution).
type Config struct {
	Core     CoreConfig              `yaml:"core"`
	Remotes  map[string]RemoteConfig `yaml:"remotes"`
	Identity IdentityConfig          `yaml:"identity"`
}

// CoreConfig holds repository-wide defaults.
type CoreConfig struct {
	// DefaultChannel is the channel new clones and fresh repositories
	// start on (spec §3.3 calls this "main" throughout its examples).
	DefaultChannel string `yaml:"default_channel"`
	// SyncWrites mirrors pristine.Options.SyncWrites: fsync every commit.
	SyncWrites bool `yaml:"sync_writes"`
	// TransactionTimeout bounds how long a single write transaction may
	// run before a caller should consider it stuck (the engine itself
	// does not enforce this — spec §5 "the engine does not itself
	// schedule timers"); nothing in this repository reads the value.
	TransactionTimeout time.Duration `yaml:"transaction_timeout"`
}

// RemoteConfig names one remote a repository knows how to push to or pull
// from. Address is an opaque string (an SSH spec, an HTTP URL, or a local
// path) interpreted entirely by the transport adapters of spec §6.1/§6.2,
// which are out of scope here.
type RemoteConfig struct {
	Address string `yaml:"address"`
	// Channel is the remote-side channel name this local alias tracks. It
	// is stored as written; nothing in this package substitutes
	// CoreConfig.DefaultChannel when it is empty.
	Channel string `yaml:"channel"`
}

// IdentityConfig holds a default display name/email for a change's
// Header.Authors. Identity/key management proper (spec §1's "out of scope"
// list) lives in this package's identity JSON blobs (identity.go). Nothing
// in this repository reads IdentityConfig; cmd/atomic has no `record`
// command.
type IdentityConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DefaultConfig returns the configuration a freshly initialized repository
// starts with.
func DefaultConfig() *Config {
	return &Config{
		Core: CoreConfig{
			DefaultChannel:     "main",
			SyncWrites:         false,
			TransactionTimeout: 30 * time.Second,
		},
		Remotes: map[string]RemoteConfig{},
	}
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("repo: reading config %s: %w", path, err)
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("repo: parsing config %s: %w", path, err)
	}
	if c.Remotes == nil {
		c.Remotes = map[string]RemoteConfig{}
	}
	return &c, nil
}

// Save writes c to path as yaml, creating or truncating the file.
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("repo: encoding config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("repo: writing config %s: %w", path, err)
	}
	return nil
}

// Validate checks the configuration for the kinds of mistakes that would
// otherwise surface as a confusing error deep inside the engine.
func (c *Config) Validate() error {
	if c.Core.DefaultChannel == "" {
		return fmt.Errorf("repo: core.default_channel must not be empty")
	}
	for name, r := range c.Remotes {
		if r.Address == "" {
			return fmt.Errorf("repo: remote %q has an empty address", name)
		}
	}
	return nil
}
