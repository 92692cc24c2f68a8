package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"traffic-service/internal/fsm"
	"traffic-service/internal/hardware"
	"traffic-service/internal/types"
)

const DefaultPath = "/etc/traffic-service/config.yaml"

type Config struct {
	LogLevel string       `yaml:"log_level"`
	Redis    RedisConfig  `yaml:"redis"`
	Timing   TimingConfig `yaml:"timing"`
	Pins     PinsConfig   `yaml:"pins"`
}

// RedisConfig locates the Redis server. An empty host disables the transport.
type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TimingConfig struct {
	BaseUnit   time.Duration `yaml:"base_unit"`
	Debounce   time.Duration `yaml:"debounce"`
	Green      int           `yaml:"green"`
	Yellow     int           `yaml:"yellow"`
	Red        int           `yaml:"red"`
	Pedestrian int           `yaml:"pedestrian"`
}

type Pin struct {
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	Bias      string `yaml:"bias"`
}

type PinsConfig struct {
	Red              Pin `yaml:"red"`
	Yellow           Pin `yaml:"yellow"`
	Green            Pin `yaml:"green"`
	ButtonMode       Pin `yaml:"button_mode"`
	ButtonPedestrian Pin `yaml:"button_pedestrian"`
}

// Default returns the BeagleBone wiring: lights on GPIO67/68/44, buttons on
// GPIO26/46 (chip = gpio/32, line = gpio%32).
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Redis: RedisConfig{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Timing: TimingConfig{
			BaseUnit:   time.Second,
			Green:      types.DefaultDurations[types.ColorGreen],
			Yellow:     types.DefaultDurations[types.ColorYellow],
			Red:        types.DefaultDurations[types.ColorRed],
			Pedestrian: types.PedestrianTicks,
		},
		Pins: PinsConfig{
			Red:              Pin{Chip: "gpiochip2", Line: 3},
			Yellow:           Pin{Chip: "gpiochip2", Line: 4},
			Green:            Pin{Chip: "gpiochip1", Line: 12},
			ButtonMode:       Pin{Chip: "gpiochip0", Line: 26, Bias: hardware.BiasPullDown},
			ButtonPedestrian: Pin{Chip: "gpiochip1", Line: 14, Bias: hardware.BiasPullDown},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	t := c.Timing
	if t.BaseUnit < types.MinBaseUnit {
		return fmt.Errorf("timing.base_unit must be at least %v, got %v", types.MinBaseUnit, t.BaseUnit)
	}
	if t.Debounce < 0 {
		return fmt.Errorf("timing.debounce must not be negative, got %v", t.Debounce)
	}
	for name, v := range map[string]int{
		"green":      t.Green,
		"yellow":     t.Yellow,
		"red":        t.Red,
		"pedestrian": t.Pedestrian,
	} {
		if v <= 0 {
			return fmt.Errorf("timing.%s must be a positive tick count, got %d", name, v)
		}
	}
	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		return fmt.Errorf("redis.port out of range: %d", c.Redis.Port)
	}

	seen := make(map[Pin]string)
	for _, lc := range c.Pins.Lines() {
		if lc.Chip == "" || lc.Line < 0 {
			return fmt.Errorf("pins.%s: chip and a non-negative line are required", lc.Name)
		}
		switch lc.Bias {
		case hardware.BiasNone, hardware.BiasDisabled, hardware.BiasPullUp, hardware.BiasPullDown:
		default:
			return fmt.Errorf("pins.%s: unknown bias %q", lc.Name, lc.Bias)
		}
		key := Pin{Chip: lc.Chip, Line: lc.Line}
		if other, dup := seen[key]; dup {
			return fmt.Errorf("pins.%s and pins.%s share %s:%d", other, lc.Name, lc.Chip, lc.Line)
		}
		seen[key] = lc.Name
	}
	return nil
}

// Lines returns the hardware line list in acquisition order: outputs first.
func (p PinsConfig) Lines() []hardware.LineConfig {
	out := func(name string, pin Pin) hardware.LineConfig {
		return hardware.LineConfig{Name: name, Chip: pin.Chip, Line: pin.Line, Output: true, ActiveLow: pin.ActiveLow}
	}
	in := func(name string, pin Pin) hardware.LineConfig {
		return hardware.LineConfig{Name: name, Chip: pin.Chip, Line: pin.Line, ActiveLow: pin.ActiveLow, Bias: pin.Bias}
	}
	return []hardware.LineConfig{
		out(hardware.ChannelRed, p.Red),
		out(hardware.ChannelYellow, p.Yellow),
		out(hardware.ChannelGreen, p.Green),
		in(hardware.ChannelButtonMode, p.ButtonMode),
		in(hardware.ChannelButtonPedestrian, p.ButtonPedestrian),
	}
}

// Cycle returns the state machine parameters.
func (t TimingConfig) Cycle() fsm.Config {
	return fsm.Config{
		Durations: types.Durations{
			types.ColorGreen:  t.Green,
			types.ColorYellow: t.Yellow,
			types.ColorRed:    t.Red,
		},
		PedestrianTicks: t.Pedestrian,
	}
}
