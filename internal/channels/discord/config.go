package discord

import (
	"log/slog"
	"time"

	"github.com/haasonsaas/cerebot/internal/channels"
	"github.com/haasonsaas/cerebot/internal/observability"
)

const (
	defaultBotRole       = "Bot"
	defaultPingInterval  = 10 * time.Second
	defaultCommandPeriod = 20 * time.Second
	defaultCommandLimit  = 10
)

// Config holds configuration for the Discord connection manager.
type Config struct {
	// Token is the bot token from the Discord Developer Portal. Required
	// unless FakeConnect is set.
	Token string

	// Admins lists user ids, usernames or legacy name#discriminator tags
	// allowed to run admin commands.
	Admins []string

	// CommandPeriod and CommandLimit bound how many bot commands are accepted
	// within any sliding window of CommandPeriod.
	CommandPeriod time.Duration
	CommandLimit  int

	// FakeConnect skips all network I/O. Outbound messages are logged.
	FakeConnect bool

	// BotRole names the role held by the bot account that caps which roles
	// users may assign themselves.
	BotRole string

	// PingInterval is the keepalive probe interval.
	PingInterval time.Duration

	// CommandPrefix precedes bot command names (default "!").
	CommandPrefix string

	// SingleUser restricts the bridge to commands marked single-user
	// allowed.
	SingleUser bool

	// Version is reported by the version command.
	Version string

	// Reconnect configures the supervisor used by Run.
	Reconnect channels.ReconnectConfig

	// Logger is an optional slog.Logger instance
	Logger *slog.Logger

	// Metrics and Tracer are optional.
	Metrics *observability.Metrics
	Tracer  *observability.Tracer
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" && !c.FakeConnect {
		return channels.ErrConfig("token is required", nil)
	}
	if c.CommandLimit < 0 {
		return channels.ErrConfig("command_limit must not be negative", nil)
	}
	if c.CommandPeriod < 0 {
		return channels.ErrConfig("command_period must not be negative", nil)
	}

	if c.CommandPeriod == 0 {
		c.CommandPeriod = defaultCommandPeriod
	}
	if c.CommandLimit == 0 {
		c.CommandLimit = defaultCommandLimit
	}
	if c.BotRole == "" {
		c.BotRole = defaultBotRole
	}
	if c.PingInterval <= 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = "!"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return nil
}
