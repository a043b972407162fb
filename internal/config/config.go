// Package config loads the memwatch configuration: a YAML file describing the
// target and its memory model, with MEMWATCH_* environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"memwatch/internal/logging"
	"memwatch/memory"
	"memwatch/split"
)

// DefaultPath is the configuration file read when none is given.
const DefaultPath = "memwatch.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEMWATCH_"

const (
	DefaultTickRate     = 120
	DefaultTryLoadDelay = 100 * time.Millisecond
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the whole configuration file.
type Config struct {
	Game         string        `yaml:"game"`
	Process      []string      `yaml:"process" validate:"dive,required"`
	Module       string        `yaml:"module"`
	PointerWidth string        `yaml:"pointer_width" validate:"pointerwidth"`
	// TickRate is in Hz; 0 ticks as fast as possible.
	TickRate     float64       `yaml:"tick_rate" validate:"gte=0"`
	TryLoadDelay time.Duration `yaml:"try_load_delay" validate:"gte=0"`
	MetricsAddr  string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel     string        `yaml:"log_level" validate:"loglevel"`
	Segments     int           `yaml:"segments" validate:"gte=0"`
	// GameTime names a numeric watcher holding in-game time in seconds.
	GameTime string `yaml:"game_time"`

	Emulator    *Emulator    `yaml:"emulator,omitempty"`
	LoadRemoval *LoadRemoval `yaml:"load_removal,omitempty"`
	Watchers    []Watcher    `yaml:"watchers" validate:"dive"`
	Rules       []Rule       `yaml:"rules" validate:"dive"`
}

// Emulator configures a GBA emulator target: where the guest's work RAM
// lives in the emulator's host memory.
type Emulator struct {
	Kind  string      `yaml:"kind" validate:"oneof=gba"`
	EWRAM HostPointer `yaml:"ewram"`
	IWRAM HostPointer `yaml:"iwram"`
}

// HostPointer is a pointer path in the host process whose value is an
// address. An empty Offsets means Base itself is the address.
type HostPointer struct {
	Module  string   `yaml:"module"`
	Base    Offset   `yaml:"base"`
	Offsets []Offset `yaml:"offsets"`
}

// LoadRemoval drives game-time pausing from two watchers.
type LoadRemoval struct {
	Loading    string `yaml:"loading"`
	Scene      string `yaml:"scene"`
	StartScene string `yaml:"start_scene"`
}

// Watcher declares one named value read through a pointer path.
type Watcher struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"valuetype"`
	// Module is the module Base is relative to; empty means the top-level
	// module, or an absolute address when there is none.
	Module  string   `yaml:"module"`
	Base    Offset   `yaml:"base"`
	Offsets []Offset `yaml:"offsets"`
	// Default is reported while the value cannot be read.
	Default *string `yaml:"default"`
	// Publish mirrors the value into a timer variable every tick.
	Publish bool `yaml:"publish"`
	// Format selects how a published value is rendered: "", "hex" or
	// "seconds".
	Format string `yaml:"format" validate:"omitempty,oneof=hex seconds"`
}

// Rule is a split.Rule in configuration form.
type Rule struct {
	Name   string `yaml:"name"`
	Action string `yaml:"action" validate:"action"`
	When   string `yaml:"when" validate:"required"`
}

// Offset is a pointer-path offset. It accepts decimal, 0x-prefixed hex and
// negative values, which wrap.
type Offset uint64

func (o *Offset) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseOffset(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*o = v
	return nil
}

func (o Offset) MarshalYAML() (any, error) {
	return "0x" + strings.ToUpper(strconv.FormatUint(uint64(o), 16)), nil
}

// ParseOffset parses s as an Offset.
func ParseOffset(s string) (Offset, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "-"), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid offset %q", s)
	}
	if neg {
		v = -v
	}
	return Offset(v), nil
}

// Uint64s converts offsets for pointerpath.
func Uint64s(offs []Offset) []uint64 {
	out := make([]uint64, len(offs))
	for i, o := range offs {
		out[i] = uint64(o)
	}
	return out
}

type overrides struct {
	Process      []string       `env:"PROCESS" envSeparator:","`
	Module       *string        `env:"MODULE"`
	PointerWidth *string        `env:"POINTER_WIDTH"`
	TickRate     *float64       `env:"TICK_RATE"`
	TryLoadDelay *time.Duration `env:"TRY_LOAD_DELAY"`
	MetricsAddr  *string        `env:"METRICS_ADDR"`
	LogLevel     *string        `env:"LOG_LEVEL"`
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, env.ToMap(os.Environ()))
}

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, environ map[string]string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.applyEnv(environ); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document and fills defaults. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	// tick_rate: 0 means unpaced, so its default is set before decoding.
	cfg := &Config{TickRate: DefaultTickRate}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	cfg.defaults()
	return cfg, nil
}

func (c *Config) defaults() {
	if c.PointerWidth == "" {
		c.PointerWidth = "64"
	}
	if c.TryLoadDelay == 0 {
		c.TryLoadDelay = DefaultTryLoadDelay
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) applyEnv(environ map[string]string) error {
	var o overrides
	if err := env.ParseWithOptions(&o, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if len(o.Process) > 0 {
		c.Process = o.Process
	}
	setIf(&c.Module, o.Module)
	setIf(&c.PointerWidth, o.PointerWidth)
	setIf(&c.TickRate, o.TickRate)
	setIf(&c.TryLoadDelay, o.TryLoadDelay)
	setIf(&c.MetricsAddr, o.MetricsAddr)
	setIf(&c.LogLevel, o.LogLevel)
	return nil
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Width returns the parsed pointer width of the target process.
func (c *Config) Width() memory.PointerWidth {
	w, _ := memory.ParsePointerWidth(c.PointerWidth)
	return w
}

// Severity returns the parsed log level.
func (c *Config) Severity() logging.Severity {
	s, _ := logging.ParseSeverity(c.LogLevel)
	return s
}

// Watcher returns the watcher named name.
func (c *Config) Watcher(name string) (Watcher, bool) {
	for _, w := range c.Watchers {
		if w.Name == name {
			return w, true
		}
	}
	return Watcher{}, false
}

// SplitRules converts the configured rules.
func (c *Config) SplitRules() []split.Rule {
	rules := make([]split.Rule, len(c.Rules))
	for i, r := range c.Rules {
		rules[i] = split.Rule{Name: r.Name, Action: split.Action(r.Action), When: r.When}
	}
	return rules
}
