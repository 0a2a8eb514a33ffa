package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Runtime holds the operational tunables the supervisor, reaper, and
// arbitrage detector use. All durations are expressed in the YAML file
// as Go duration strings (e.g. "30s"); zero/absent fields fall back to
// the defaults named in spec.md §4 and §5.
type Runtime struct {
	ReconnectDelay       time.Duration `yaml:"reconnect_delay"`
	MaxReconnectAttempts int           `yaml:"max_reconnect_attempts"`
	HeartbeatInterval    time.Duration `yaml:"heartbeat_interval"`
	SubscribePacing      time.Duration `yaml:"subscribe_pacing"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`

	ReapInterval time.Duration `yaml:"reap_interval"`
	ReapMaxAge   time.Duration `yaml:"reap_max_age"`

	ArbitrageThresholdPct float64       `yaml:"arbitrage_threshold_pct"`
	ArbitrageCooldown     time.Duration `yaml:"arbitrage_cooldown"`

	PollInterval   time.Duration `yaml:"poll_interval"`
	PollChangeEpsilon float64    `yaml:"poll_change_epsilon"`

	LegacyVenues []string `yaml:"legacy_venues"`
}

// DefaultRuntime matches the defaults spec.md names throughout §4/§5/§6.
func DefaultRuntime() Runtime {
	return Runtime{
		ReconnectDelay:        5 * time.Second,
		MaxReconnectAttempts:  10,
		HeartbeatInterval:     30 * time.Second,
		SubscribePacing:       100 * time.Millisecond,
		ConnectTimeout:        10 * time.Second,
		ReapInterval:          60 * time.Second,
		ReapMaxAge:            300 * time.Second,
		ArbitrageThresholdPct: 0.1,
		ArbitrageCooldown:     300 * time.Second,
		PollInterval:          3 * time.Second,
		PollChangeEpsilon:     0.0001,
	}
}

// LoadRuntime reads a YAML tunables file, applying defaults for any
// field left unset.
func LoadRuntime(path string) (Runtime, error) {
	rt := DefaultRuntime()
	if path == "" {
		return rt, nil
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Runtime{}, fmt.Errorf("config: read runtime %s: %w", path, err)
	}
	var overrides Runtime
	if err := yaml.Unmarshal(body, &overrides); err != nil {
		return Runtime{}, fmt.Errorf("config: parse runtime %s: %w", path, err)
	}
	mergeRuntime(&rt, overrides)
	return rt, nil
}

func mergeRuntime(base *Runtime, override Runtime) {
	if override.ReconnectDelay > 0 {
		base.ReconnectDelay = override.ReconnectDelay
	}
	if override.MaxReconnectAttempts > 0 {
		base.MaxReconnectAttempts = override.MaxReconnectAttempts
	}
	if override.HeartbeatInterval > 0 {
		base.HeartbeatInterval = override.HeartbeatInterval
	}
	if override.SubscribePacing > 0 {
		base.SubscribePacing = override.SubscribePacing
	}
	if override.ConnectTimeout > 0 {
		base.ConnectTimeout = override.ConnectTimeout
	}
	if override.ReapInterval > 0 {
		base.ReapInterval = override.ReapInterval
	}
	if override.ReapMaxAge > 0 {
		base.ReapMaxAge = override.ReapMaxAge
	}
	if override.ArbitrageThresholdPct > 0 {
		base.ArbitrageThresholdPct = override.ArbitrageThresholdPct
	}
	if override.ArbitrageCooldown > 0 {
		base.ArbitrageCooldown = override.ArbitrageCooldown
	}
	if override.PollInterval > 0 {
		base.PollInterval = override.PollInterval
	}
	if override.PollChangeEpsilon > 0 {
		base.PollChangeEpsilon = override.PollChangeEpsilon
	}
	if len(override.LegacyVenues) > 0 {
		base.LegacyVenues = override.LegacyVenues
	}
}
