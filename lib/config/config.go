// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "WEBTTY_CONFIG"

// Config is the complete webtty configuration.
type Config struct {
	// ICE configures candidate gathering for both sides.
	ICE ICEConfig `yaml:"ice"`

	// Relay configures the third-party blob store used in one-way mode.
	Relay RelayConfig `yaml:"relay"`

	// Host configures the offering side.
	Host HostConfig `yaml:"host"`

	// Client configures the answering side.
	Client ClientConfig `yaml:"client"`

	// Codec configures token encoding.
	Codec CodecConfig `yaml:"codec"`
}

// ICEConfig configures ICE servers.
type ICEConfig struct {
	// STUNServers are stun: URLs. An empty list gathers host
	// candidates only, which works on a shared LAN.
	// Default: stun:stun.l.google.com:19302
	STUNServers []string `yaml:"stun_servers"`

	// IncludeLoopback gathers 127.0.0.1 candidates, for sessions
	// between two processes on one machine.
	IncludeLoopback bool `yaml:"include_loopback"`
}

// RelayConfig configures the relay client.
type RelayConfig struct {
	// URL is the base URL; tokens live at URL + location.
	// Default: https://up.10kb.site/
	URL string `yaml:"url"`

	// PollInterval is how often the host polls for an answer.
	// Default: 300ms
	PollInterval string `yaml:"poll_interval"`
}

// HostConfig configures the PTY host.
type HostConfig struct {
	// Command is the command line run on the PTY, split on whitespace.
	// Default: bash
	Command string `yaml:"command"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	// Buffered coalesces inbound output into one write per 10 ms.
	Buffered bool `yaml:"buffered"`
}

// CodecConfig configures token encoding.
type CodecConfig struct {
	// Compression is one of none, zstd, lz4, deflate.
	// Default: zstd
	Compression string `yaml:"compression"`
}

// compressionNames mirrors the tags the signaling codec understands.
var compressionNames = []string{"none", "zstd", "lz4", "deflate"}

// Default returns the configuration used when no file is given, and the
// base that a loaded file is merged into.
func Default() *Config {
	return &Config{
		ICE: ICEConfig{
			STUNServers: []string{"stun:stun.l.google.com:19302"},
		},
		Relay: RelayConfig{
			URL:          "https://up.10kb.site/",
			PollInterval: "300ms",
		},
		Host: HostConfig{
			Command: "bash",
		},
		Codec: CodecConfig{
			Compression: "zstd",
		},
	}
}

// Load loads the file named by explicitPath, or by WEBTTY_CONFIG when
// explicitPath is empty. With neither set it returns Default().
func Load(explicitPath string) (*Config, error) {
	path := explicitPath
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path, validates it, and returns
// the merged result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// loadFile merges one file into c.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// JSON is a subset of YAML, so once comments and trailing commas
	// are gone the same decoder handles both.
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	// An empty file leaves the defaults in place.
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} in the fields
// that name commands and endpoints.
func (c *Config) expandVariables() {
	c.Host.Command = expandVars(c.Host.Command)
	c.Relay.URL = expandVars(c.Relay.URL)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// PollIntervalDuration parses Relay.PollInterval.
func (c *Config) PollIntervalDuration() (time.Duration, error) {
	interval, err := time.ParseDuration(c.Relay.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("relay.poll_interval: %w", err)
	}
	return interval, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Relay.URL == "" {
		errs = append(errs, fmt.Errorf("relay.url is required"))
	} else if parsed, err := url.Parse(c.Relay.URL); err != nil {
		errs = append(errs, fmt.Errorf("relay.url: %w", err))
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, fmt.Errorf("relay.url must be http or https, got %q", c.Relay.URL))
	}

	if interval, err := c.PollIntervalDuration(); err != nil {
		errs = append(errs, err)
	} else if interval <= 0 {
		errs = append(errs, fmt.Errorf("relay.poll_interval must be positive"))
	}

	if strings.TrimSpace(c.Host.Command) == "" {
		errs = append(errs, fmt.Errorf("host.command is required"))
	}

	if !slices.Contains(compressionNames, c.Codec.Compression) {
		errs = append(errs, fmt.Errorf("codec.compression must be one of: %v", compressionNames))
	}

	for _, server := range c.ICE.STUNServers {
		if !strings.HasPrefix(server, "stun:") && !strings.HasPrefix(server, "stuns:") {
			errs = append(errs, fmt.Errorf("ice.stun_servers: %q is not a stun: URL", server))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
