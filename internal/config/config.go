// Package config loads the bridge configuration file.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the main configuration structure for cerebot.
type Config struct {
	Version   int             `yaml:"version"`
	Discord   DiscordConfig   `yaml:"discord"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// DiscordConfig configures the Discord bot account and its commands.
type DiscordConfig struct {
	Token         string        `yaml:"token"`
	Admins        []string      `yaml:"admins"`
	CommandPeriod time.Duration `yaml:"command_period"`
	CommandLimit  int           `yaml:"command_limit"`
	FakeConnect   bool          `yaml:"fake_connect"`
	BotRole       string        `yaml:"bot_role"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	CommandPrefix string        `yaml:"command_prefix"`
	SingleUser    bool          `yaml:"single_user"`
}

// ReconnectConfig controls how the bridge reconnects after a fault.
type ReconnectConfig struct {
	// MaxAttempts is the number of consecutive failed connection cycles
	// before giving up. Zero retries forever.
	MaxAttempts  int           `yaml:"max_attempts"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	StableAfter  time.Duration `yaml:"stable_after"`
	Jitter       *bool         `yaml:"jitter"`
}

// ValidationError collects every problem found in a configuration.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Issues) == 0 {
		return "invalid config"
	}
	return "invalid config: " + strings.Join(e.Issues, "; ")
}

// Load reads, merges, decodes and validates the configuration file. Relative
// $include paths resolve against the including file, and ${VAR} references
// are expanded from the environment.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Discord.CommandPeriod == 0 {
		cfg.Discord.CommandPeriod = 20 * time.Second
	}
	if cfg.Discord.CommandLimit == 0 {
		cfg.Discord.CommandLimit = 10
	}
	if cfg.Discord.BotRole == "" {
		cfg.Discord.BotRole = "Bot"
	}
	if cfg.Discord.PingInterval == 0 {
		cfg.Discord.PingInterval = 10 * time.Second
	}
	if cfg.Discord.CommandPrefix == "" {
		cfg.Discord.CommandPrefix = "!"
	}
	if cfg.Reconnect.InitialDelay == 0 {
		cfg.Reconnect.InitialDelay = 2 * time.Second
	}
	if cfg.Reconnect.MaxDelay == 0 {
		cfg.Reconnect.MaxDelay = time.Minute
	}
	if cfg.Reconnect.StableAfter == 0 {
		cfg.Reconnect.StableAfter = time.Minute
	}
	if cfg.Reconnect.Jitter == nil {
		jitter := true
		cfg.Reconnect.Jitter = &jitter
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "cerebot"
	}
	if cfg.Tracing.SamplingRate == 0 {
		cfg.Tracing.SamplingRate = 1.0
	}
}

var prefixPattern = regexp.MustCompile(`^\S{1,3}$`)

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var issues []string

	if err := ValidateVersion(c.Version); err != nil {
		issues = append(issues, err.Error())
	}

	d := c.Discord
	if strings.TrimSpace(d.Token) == "" && !d.FakeConnect {
		issues = append(issues, "discord.token is required unless discord.fake_connect is set")
	}
	if d.CommandLimit < 0 {
		issues = append(issues, "discord.command_limit must not be negative")
	}
	if d.CommandPeriod < 0 {
		issues = append(issues, "discord.command_period must not be negative")
	}
	if d.PingInterval < 0 {
		issues = append(issues, "discord.ping_interval must not be negative")
	}
	if !prefixPattern.MatchString(d.CommandPrefix) {
		issues = append(issues, "discord.command_prefix must be 1 to 3 non-space characters")
	}
	for i, admin := range d.Admins {
		if strings.TrimSpace(admin) == "" {
			issues = append(issues, fmt.Sprintf("discord.admins[%d] is empty", i))
		}
	}

	r := c.Reconnect
	if r.MaxAttempts < 0 {
		issues = append(issues, "reconnect.max_attempts must not be negative")
	}
	if r.MaxDelay < r.InitialDelay {
		issues = append(issues, "reconnect.max_delay must be at least reconnect.initial_delay")
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		issues = append(issues, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("logging.level %q is not a known level", c.Logging.Level))
	}
	for _, pattern := range c.Logging.RedactPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			issues = append(issues, fmt.Sprintf("logging.redact_patterns: %v", err))
		}
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		issues = append(issues, "metrics.path must start with /")
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		issues = append(issues, "tracing.sampling_rate must be between 0 and 1")
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		issues = append(issues, "tracing.endpoint is required when tracing is enabled")
	}

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
