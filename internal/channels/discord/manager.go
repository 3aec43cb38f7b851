package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/haasonsaas/cerebot/internal/channels"
	"github.com/haasonsaas/cerebot/internal/commands"
	"github.com/haasonsaas/cerebot/internal/observability"
	"github.com/haasonsaas/cerebot/internal/ratelimit"
	"github.com/haasonsaas/cerebot/internal/retry"
	"github.com/haasonsaas/cerebot/pkg/models"
)

// Manager owns one Discord bot account: the gateway connection, its
// keepalive, the command limiter and the command table.
type Manager struct {
	config   Config
	configMu sync.RWMutex

	session    discordSession
	state      *discordgo.State
	newSession func(token string) (discordSession, *discordgo.State, error)
	handlersOn bool

	dispatcher *commands.Dispatcher
	limiter    *ratelimit.Window
	tracker    *channels.StateTracker

	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	loggedIn atomic.Bool
	shutdown atomic.Bool

	// ctx lives until Disconnect(true); command handlers run under it.
	ctx    context.Context
	cancel context.CancelFunc

	mu              sync.Mutex
	me              *discordgo.User
	keepaliveCancel context.CancelFunc
	keepaliveDone   chan struct{}
	cycleDone       chan struct{}
	cycleEnded      bool
	lastFault       error

	loginPolicy retry.Policy
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

var _ channels.Bridge = (*Manager)(nil)

// NewManager creates a manager with the given configuration and registers
// the Discord command table.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := config.Logger.With("adapter", "discord")

	m := &Manager{
		config:      config,
		newSession:  newSession,
		state:       discordgo.NewState(),
		limiter:     ratelimit.NewWindow(ratelimit.Config{Period: config.CommandPeriod, Limit: config.CommandLimit}),
		tracker:     channels.NewStateTracker(),
		logger:      logger,
		metrics:     config.Metrics,
		tracer:      config.Tracer,
		ctx:         ctx,
		cancel:      cancel,
		loginPolicy: retry.DefaultPolicy(),
		sleep:       retry.Sleep,
		now:         time.Now,
	}
	m.tracker.OnChange = func(s channels.ConnState) {
		m.metrics.SetConnectionState(int(s))
	}

	registry := commands.NewRegistry(config.Logger)
	m.dispatcher = commands.NewDispatcher(registry, commands.DispatcherOptions{
		Prefix:  config.CommandPrefix,
		Logger:  config.Logger,
		Tracer:  config.Tracer,
		Metrics: config.Metrics,
	})
	if err := m.registerCommands(registry); err != nil {
		cancel()
		return nil, channels.ErrInternal("failed to register commands", err)
	}

	return m, nil
}

// Type returns the channel type.
func (m *Manager) Type() models.ChannelType {
	return models.ChannelDiscord
}

// State returns the current connection state.
func (m *Manager) State() channels.ConnState {
	return m.tracker.State()
}

// Status returns the current connection status.
func (m *Manager) Status() channels.Status {
	return m.tracker.Status()
}

// Dispatcher returns the command dispatcher fed by inbound messages.
func (m *Manager) Dispatcher() *commands.Dispatcher {
	return m.dispatcher
}

// Me returns the bot account, or nil before the first login.
func (m *Manager) Me() *discordgo.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.me
}

func (m *Manager) cfg() Config {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.config
}

// Start logs in and opens the gateway connection. The keepalive loop starts
// when the gateway reports ready.
func (m *Manager) Start(ctx context.Context) error {
	if m.shutdown.Load() {
		return retry.Permanent(channels.ErrUnavailable("bridge has been shut down", nil))
	}
	if !m.tracker.Transition(channels.StateDisconnected, channels.StateConnecting) {
		return channels.ErrInternal(fmt.Sprintf("cannot start while %s", m.tracker.State()), nil)
	}

	m.mu.Lock()
	m.cycleDone = make(chan struct{})
	m.cycleEnded = false
	m.lastFault = nil
	m.mu.Unlock()

	config := m.cfg()
	if config.FakeConnect {
		m.mu.Lock()
		if m.me == nil {
			m.me = &discordgo.User{ID: "0", Username: "cerebot"}
		}
		m.mu.Unlock()
		m.loggedIn.Store(true)
		m.tracker.Set(channels.StateConnected)
		m.logger.Info("fake connect enabled, skipping discord login")
		return nil
	}

	if m.session == nil {
		session, state, err := m.newSession(config.Token)
		if err != nil {
			m.tracker.Fail(err)
			return retry.Permanent(err)
		}
		m.session = session
		if state != nil {
			m.state = state
		}
	}
	if !m.handlersOn {
		m.session.AddHandler(m.handleReady)
		m.session.AddHandler(m.handleMessageCreate)
		m.session.AddHandler(m.handleDisconnect)
		m.handlersOn = true
	}

	m.logger.Info("logging in to discord")

	var me *discordgo.User
	result := retry.Do(ctx, m.loginPolicy, func(ctx context.Context, attempt int) error {
		user, err := m.session.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			classified := classifyError("login failed", err)
			m.logger.Warn("discord login attempt failed", "attempt", attempt, "error", classified)
			if channels.GetErrorCode(classified) == channels.ErrCodeAuthentication {
				return retry.Permanent(classified)
			}
			return classified
		}
		me = user
		return nil
	})
	if result.Err != nil {
		m.metrics.RecordError("discord", string(channels.GetErrorCode(result.Err)))
		m.tracker.Fail(result.Err)
		return result.Err
	}

	m.mu.Lock()
	m.me = me
	m.mu.Unlock()
	m.loggedIn.Store(true)

	if err := m.session.Open(); err != nil {
		m.loggedIn.Store(false)
		classified := classifyError("failed to connect to Discord", err)
		m.metrics.RecordError("discord", string(channels.GetErrorCode(classified)))
		m.tracker.Fail(classified)
		return classified
	}

	m.tracker.Set(channels.StateConnected)
	m.logger.Info("connected to discord", "user", me.String(), "user_id", me.ID)
	return nil
}

// Run keeps the manager connected until ctx is done or Disconnect(true) is
// called, reconnecting with backoff after faults.
func (m *Manager) Run(ctx context.Context) error {
	rec := &channels.Reconnector{
		Config:  m.cfg().Reconnect,
		Logger:  m.logger,
		State:   m.tracker,
		Metrics: m.metrics,
	}
	return rec.Run(ctx, m.runCycle)
}

func (m *Manager) runCycle(ctx context.Context) error {
	if m.shutdown.Load() {
		return nil
	}
	if err := m.Start(ctx); err != nil {
		if m.shutdown.Load() {
			return nil
		}
		return err
	}
	if m.shutdown.Load() {
		m.Disconnect(true)
		return nil
	}

	m.mu.Lock()
	done := m.cycleDone
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		m.Disconnect(true)
		return ctx.Err()
	case <-done:
	}

	if m.shutdown.Load() {
		return nil
	}

	m.mu.Lock()
	fault := m.lastFault
	m.mu.Unlock()
	return channels.ErrConnection("connection lost", fault)
}

// Disconnect cancels the keepalive and closes the gateway connection. Close
// errors are logged, never returned. shutdown marks the disconnect as
// intentional; once set it stays set and Run stops reconnecting.
func (m *Manager) Disconnect(shutdown bool) {
	if shutdown {
		m.shutdown.Store(true)
		m.cancel()
	}

	m.stopKeepalive()

	if m.cfg().FakeConnect {
		m.loggedIn.Store(false)
		m.tracker.Set(channels.StateDisconnected)
		m.endCycle()
		return
	}

	if !m.tracker.Transition(channels.StateConnected, channels.StateDisconnecting) {
		return
	}

	m.loggedIn.Store(false)
	if err := m.session.Close(); err != nil {
		m.metrics.RecordError("discord", string(channels.ErrCodeConnection))
		m.logger.Error("error when disconnecting",
			"error_type", fmt.Sprintf("%T", err),
			"error", err)
	}

	m.tracker.Set(channels.StateDisconnected)
	m.endCycle()
	m.logger.Info("disconnected from discord", "shutdown", shutdown)
}

// ShuttingDown reports whether an intentional shutdown was requested.
func (m *Manager) ShuttingDown() bool {
	return m.shutdown.Load()
}

func (m *Manager) endCycle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cycleDone != nil && !m.cycleEnded {
		close(m.cycleDone)
		m.cycleEnded = true
	}
}

// disconnectAfterFault records err as the reason the cycle ended and
// disconnects without marking a shutdown.
func (m *Manager) disconnectAfterFault(err error) {
	m.mu.Lock()
	m.lastFault = err
	m.mu.Unlock()
	m.Disconnect(false)
}

func (m *Manager) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	if r != nil && r.User != nil {
		m.mu.Lock()
		m.me = r.User
		m.mu.Unlock()
	}
	guilds := 0
	if r != nil {
		guilds = len(r.Guilds)
	}
	m.logger.Info("discord gateway ready", "guilds", guilds)
	m.startKeepalive()
}

func (m *Manager) handleDisconnect(s *discordgo.Session, d *discordgo.Disconnect) {
	if m.shutdown.Load() || m.tracker.State() != channels.StateConnected {
		return
	}
	m.logger.Warn("discord gateway disconnected")
	go m.disconnectAfterFault(channels.ErrConnection("gateway disconnected", nil))
}

func (m *Manager) handleMessageCreate(s *discordgo.Session, mc *discordgo.MessageCreate) {
	if !m.loggedIn.Load() || mc == nil || mc.Message == nil || mc.Author == nil {
		return
	}
	if me := m.Me(); me != nil && mc.Author.ID == me.ID {
		return
	}
	if mc.Author.Bot {
		return
	}

	m.metrics.MessageReceived()

	ch := m.channelFor(mc.ChannelID, mc.GuildID)
	member := mc.Member
	if member != nil {
		member.User = mc.Author
		member.GuildID = mc.GuildID
	}
	author := newAuthor(mc.Author, member)

	if err := m.dispatcher.ReadChat(m.ctx, ch, author, mc.Content); err != nil {
		m.logger.Error("failed to handle chat message",
			"source", ch.Describe(),
			"user", author.String(),
			"error", err)
	}
}

// channelFor resolves a channel from the state cache, falling back to a bare
// handle for channels the cache has not seen (typically new DMs).
func (m *Manager) channelFor(channelID, guildID string) *Channel {
	if ch, err := m.state.Channel(channelID); err == nil {
		return newChannel(m, ch)
	}
	ch := &discordgo.Channel{ID: channelID, GuildID: guildID, Type: discordgo.ChannelTypeGuildText}
	if guildID == "" {
		ch.Type = discordgo.ChannelTypeDM
	}
	return newChannel(m, ch)
}

// LookupSource resolves a source identity to a live channel adapter.
func (m *Manager) LookupSource(ident models.SourceIdent) (commands.Source, error) {
	if ident.Service != models.ServiceDiscord {
		return nil, channels.ErrNotFound(fmt.Sprintf("source service %q is not %s", ident.Service, models.ServiceDiscord), nil)
	}
	ch, err := m.state.Channel(ident.ID)
	if err != nil {
		return nil, channels.ErrNotFound("channel "+ident.ID+" not found", err)
	}
	return newChannel(m, ch), nil
}

// CommandLimited records a command attempt against the sliding window and
// reports whether it must be dropped.
func (m *Manager) CommandLimited() bool {
	now := m.now()
	if m.limiter.Allow(now) {
		return false
	}
	limit := m.limiter.Config()
	m.logger.Debug("command limit reached",
		"recent", m.limiter.Count(now),
		"limit", limit.Limit,
		"period", limit.Period)
	return true
}

// UserIsAdmin reports whether user matches a configured admin by id,
// username or account tag.
func (m *Manager) UserIsAdmin(user commands.User) bool {
	if user == nil {
		return false
	}
	username := ""
	if a, ok := user.(*Author); ok {
		username = a.Username()
	}
	for _, admin := range m.cfg().Admins {
		switch {
		case admin == "":
		case admin == user.ID(), admin == user.String():
			return true
		case username != "" && strings.EqualFold(admin, username):
			return true
		}
	}
	return false
}

// UpdateConfig applies runtime-reloadable settings.
func (m *Manager) UpdateConfig(admins []string, period time.Duration, limit int) {
	m.configMu.Lock()
	m.config.Admins = append([]string(nil), admins...)
	if period > 0 {
		m.config.CommandPeriod = period
	}
	if limit > 0 {
		m.config.CommandLimit = limit
	}
	cfg := ratelimit.Config{Period: m.config.CommandPeriod, Limit: m.config.CommandLimit}
	m.configMu.Unlock()

	m.limiter.SetConfig(cfg)
	m.logger.Info("discord configuration updated",
		"admins", len(admins),
		"command_period", cfg.Period,
		"command_limit", cfg.Limit)
}

func (m *Manager) connected() bool {
	return m.loggedIn.Load()
}

// SendMessage posts raw text to a channel.
func (m *Manager) SendMessage(ctx context.Context, channelID, content string) (*discordgo.Message, error) {
	if m.cfg().FakeConnect {
		m.logger.Info("fake send", "channel_id", channelID, "content", content)
		m.metrics.MessageSent()
		return &discordgo.Message{ID: uuid.NewString(), ChannelID: channelID, Content: content}, nil
	}
	if !m.connected() {
		return nil, channels.ErrUnavailable("not connected to discord", nil)
	}

	ctx, span := m.tracer.TraceBackendCall(ctx, "send")
	defer span.End()

	msg, err := m.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		classified := classifyError("failed to send message", err)
		m.tracer.RecordError(span, classified)
		m.metrics.RecordError("discord", string(channels.GetErrorCode(classified)))
		return nil, classified
	}
	m.metrics.MessageSent()
	return msg, nil
}

// EditMessage replaces the content of a message the bot sent.
func (m *Manager) EditMessage(ctx context.Context, msg *discordgo.Message, content string) (*discordgo.Message, error) {
	if msg == nil {
		return nil, channels.ErrInvalidInput("message is nil", nil)
	}
	if m.cfg().FakeConnect {
		m.logger.Info("fake edit", "channel_id", msg.ChannelID, "message_id", msg.ID, "content", content)
		edited := *msg
		edited.Content = content
		return &edited, nil
	}
	if !m.connected() {
		return nil, channels.ErrUnavailable("not connected to discord", nil)
	}

	ctx, span := m.tracer.TraceBackendCall(ctx, "edit")
	defer span.End()

	edited, err := m.session.ChannelMessageEdit(msg.ChannelID, msg.ID, content, discordgo.WithContext(ctx))
	if err != nil {
		classified := classifyError("failed to edit message", err)
		m.tracer.RecordError(span, classified)
		m.metrics.RecordError("discord", string(channels.GetErrorCode(classified)))
		return nil, classified
	}
	return edited, nil
}

// AddRole grants a role to a guild member.
func (m *Manager) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return m.memberRoleCall(ctx, "role_add", func(opts ...discordgo.RequestOption) error {
		return m.session.GuildMemberRoleAdd(guildID, userID, roleID, opts...)
	})
}

// RemoveRole revokes a role from a guild member.
func (m *Manager) RemoveRole(ctx context.Context, guildID, userID, roleID string) error {
	return m.memberRoleCall(ctx, "role_remove", func(opts ...discordgo.RequestOption) error {
		return m.session.GuildMemberRoleRemove(guildID, userID, roleID, opts...)
	})
}

func (m *Manager) memberRoleCall(ctx context.Context, op string, call func(...discordgo.RequestOption) error) error {
	if m.cfg().FakeConnect {
		m.logger.Info("fake role change", "operation", op)
		return nil
	}
	if !m.connected() {
		return channels.ErrUnavailable("not connected to discord", nil)
	}

	ctx, span := m.tracer.TraceBackendCall(ctx, op)
	defer span.End()

	if err := call(discordgo.WithContext(ctx)); err != nil {
		classified := classifyError("failed to update member roles", err)
		m.tracer.RecordError(span, classified)
		m.metrics.RecordError("discord", string(channels.GetErrorCode(classified)))
		return classified
	}
	return nil
}
