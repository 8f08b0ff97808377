// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Node configuration loaded from YAML.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/momentics/hioload-netevent/api"
	"github.com/momentics/hioload-netevent/protocol"
)

// Defaults applied by Default and ParseConfig.
const (
	DefaultTick           = 16 * time.Millisecond
	DefaultRecvBufferSize = 65536
	DefaultEventCapacity  = 1024
)

// SocketConfig describes one bound socket and where it sends.
type SocketConfig struct {
	Name   string   `yaml:"name"`
	Listen string   `yaml:"listen"`
	Peers  []string `yaml:"peers"`
}

// Config is the full node configuration.
type Config struct {
	LogLevel            string         `yaml:"log_level"`
	Tick                time.Duration  `yaml:"tick"`
	RecvBufferSize      int            `yaml:"recv_buffer_size"`
	EventCapacity       int            `yaml:"event_capacity"`
	ChannelCapacity     int            `yaml:"channel_capacity"`
	MaxDatagramsPerTick int            `yaml:"max_datagrams_per_tick"`
	PollerCPU           int            `yaml:"poller_cpu"`
	MetricsAddr         string         `yaml:"metrics_addr"`
	Sockets             []SocketConfig `yaml:"sockets"`
}

// Default returns a configuration with no sockets.
func Default() Config {
	return Config{
		LogLevel:       "info",
		Tick:           DefaultTick,
		RecvBufferSize: DefaultRecvBufferSize,
		EventCapacity:  DefaultEventCapacity,
		PollerCPU:      -1,
	}
}

// ParseConfig decodes YAML over Default and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, api.WrapError(api.ErrCodeInvalidArgument, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses the YAML file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, api.WrapError(api.ErrCodeInvalidArgument, "read config", err).WithContext("path", path)
	}
	return ParseConfig(data)
}

// Validate checks ranges and socket names.
func (c Config) Validate() error {
	var errs []error
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", c.Tick))
	}
	if c.RecvBufferSize < protocol.HeaderLen {
		errs = append(errs, fmt.Errorf("recv_buffer_size must be at least %d, got %d", protocol.HeaderLen, c.RecvBufferSize))
	}
	if c.EventCapacity <= 0 {
		errs = append(errs, fmt.Errorf("event_capacity must be positive, got %d", c.EventCapacity))
	}
	if c.ChannelCapacity < 0 {
		errs = append(errs, fmt.Errorf("channel_capacity must not be negative, got %d", c.ChannelCapacity))
	}
	if c.MaxDatagramsPerTick < 0 {
		errs = append(errs, fmt.Errorf("max_datagrams_per_tick must not be negative, got %d", c.MaxDatagramsPerTick))
	}
	if c.PollerCPU < -1 {
		errs = append(errs, fmt.Errorf("poller_cpu must be -1 (unpinned) or a cpu index, got %d", c.PollerCPU))
	}
	seen := make(map[string]bool, len(c.Sockets))
	for i, s := range c.Sockets {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Errorf("sockets[%d]: name is required", i))
		case seen[s.Name]:
			errs = append(errs, fmt.Errorf("sockets[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.Listen == "" {
			errs = append(errs, fmt.Errorf("sockets[%d]: listen is required", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return api.WrapError(api.ErrCodeInvalidArgument, "invalid config", err)
	}
	return nil
}

// Level returns the parsed log level, or info if LogLevel is unset.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Socket returns the socket entry with the given name.
func (c Config) Socket(name string) (SocketConfig, bool) {
	for _, s := range c.Sockets {
		if s.Name == name {
			return s, true
		}
	}
	return SocketConfig{}, false
}
