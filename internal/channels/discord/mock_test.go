package discord

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/haasonsaas/cerebot/internal/channels"
	"github.com/haasonsaas/cerebot/internal/observability"
	"github.com/haasonsaas/cerebot/internal/retry"
)

const (
	testGuildID   = "g1"
	testChannelID = "c1"
	testDMID      = "d1"
	testBotID     = "bot1"
	testUserID    = "u1"

	everyonePerms = int64(104324673)
)

type sentCall struct {
	channelID string
	content   string
}

type roleCall struct {
	guildID string
	userID  string
	roleID  string
}

// mockDiscordSession is a mock implementation for testing
type mockDiscordSession struct {
	mu sync.Mutex

	openCalls  int
	closeCalls int
	userCalls  int
	handlers   int

	sent        []sentCall
	edits       []string
	roleAdds    []roleCall
	roleRemoves []roleCall

	openFn  func(call int) error
	closeFn func() error
	userFn  func(ctx context.Context, call int) (*discordgo.User, error)
	sendFn  func(ctx context.Context, channelID, content string) error
	roleFn  func(ctx context.Context) error
}

func (m *mockDiscordSession) Open() error {
	m.mu.Lock()
	m.openCalls++
	call := m.openCalls
	m.mu.Unlock()
	if m.openFn != nil {
		return m.openFn(call)
	}
	return nil
}

func (m *mockDiscordSession) Close() error {
	m.mu.Lock()
	m.closeCalls++
	m.mu.Unlock()
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

func (m *mockDiscordSession) AddHandler(handler interface{}) func() {
	m.mu.Lock()
	m.handlers++
	m.mu.Unlock()
	return func() {}
}

func (m *mockDiscordSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	m.mu.Lock()
	m.userCalls++
	call := m.userCalls
	m.mu.Unlock()
	if m.userFn != nil {
		return m.userFn(requestContext(options), call)
	}
	return &discordgo.User{ID: testBotID, Username: "cerebot", Bot: true}, nil
}

func (m *mockDiscordSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.sendFn != nil {
		if err := m.sendFn(requestContext(options), channelID, content); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentCall{channelID: channelID, content: content})
	return &discordgo.Message{ID: "msg-1", ChannelID: channelID, Content: content}, nil
}

func (m *mockDiscordSession) ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, content)
	return &discordgo.Message{ID: messageID, ChannelID: channelID, Content: content}, nil
}

func (m *mockDiscordSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	if m.roleFn != nil {
		if err := m.roleFn(requestContext(options)); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleAdds = append(m.roleAdds, roleCall{guildID, userID, roleID})
	return nil
}

func (m *mockDiscordSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	if m.roleFn != nil {
		if err := m.roleFn(requestContext(options)); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleRemoves = append(m.roleRemoves, roleCall{guildID, userID, roleID})
	return nil
}

// requestContext returns the context discordgo would attach to the HTTP
// request built with options.
func requestContext(options []discordgo.RequestOption) context.Context {
	cfg := &discordgo.RequestConfig{Request: httptest.NewRequest(http.MethodGet, "/", nil)}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg.Request.Context()
}

func (m *mockDiscordSession) sentContents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = s.content
	}
	return out
}

func (m *mockDiscordSession) counts() (open, close, user int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls, m.closeCalls, m.userCalls
}

// logCapture collects log records from every logger derived from it.
type logCapture struct {
	mu      sync.Mutex
	records []slog.Record
}

type captureHandler struct {
	capture *logCapture
	attrs   []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	r = r.Clone()
	r.AddAttrs(h.attrs...)
	h.capture.mu.Lock()
	h.capture.records = append(h.capture.records, r)
	h.capture.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{capture: h.capture, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
}

func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func (c *logCapture) count(level slog.Level, msg string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

// newTestState builds a state cache with two guilds. In "Crawl" the bot
// holds "Bot" at position 5; Tourist (3) and Helper (2) are vanity roles,
// Moderator (4) has extra permissions and Elder (6) sits above the bot.
func newTestState(t *testing.T) *discordgo.State {
	t.Helper()
	state := discordgo.NewState()
	state.User = &discordgo.User{ID: testBotID, Username: "cerebot"}

	crawl := &discordgo.Guild{
		ID:   testGuildID,
		Name: "Crawl",
		Roles: []*discordgo.Role{
			{ID: testGuildID, Name: "@everyone", Position: 0, Permissions: everyonePerms},
			{ID: "r3", Name: "Tourist", Position: 3, Permissions: everyonePerms},
			{ID: "r6", Name: "Elder", Position: 6, Permissions: everyonePerms},
			{ID: "r2", Name: "Helper", Position: 2, Permissions: everyonePerms},
			{ID: "r4", Name: "Moderator", Position: 4, Permissions: everyonePerms | discordgo.PermissionManageMessages},
			{ID: "r5", Name: "Bot", Position: 5, Permissions: discordgo.PermissionAdministrator},
		},
		Channels: []*discordgo.Channel{
			{ID: testChannelID, GuildID: testGuildID, Name: "general", Type: discordgo.ChannelTypeGuildText},
			{ID: "c2", GuildID: testGuildID, Name: "crawl-dev", Type: discordgo.ChannelTypeGuildText},
			{ID: "v1", GuildID: testGuildID, Name: "General Voice", Type: discordgo.ChannelTypeGuildVoice},
		},
		Members: []*discordgo.Member{
			{GuildID: testGuildID, User: &discordgo.User{ID: testBotID, Username: "cerebot"}, Roles: []string{"r5"}},
			{GuildID: testGuildID, User: &discordgo.User{ID: testUserID, Username: "alice"}, Nick: "Alice", Roles: []string{"r3"}},
		},
	}
	akrasiac := &discordgo.Guild{
		ID:   "g2",
		Name: "Akrasiac",
		Roles: []*discordgo.Role{
			{ID: "g2", Name: "@everyone", Permissions: everyonePerms},
		},
		Channels: []*discordgo.Channel{
			{ID: "c3", GuildID: "g2", Name: "lobby", Type: discordgo.ChannelTypeGuildText},
		},
	}

	for _, g := range []*discordgo.Guild{crawl, akrasiac} {
		if err := state.GuildAdd(g); err != nil {
			t.Fatalf("GuildAdd(%s): %v", g.Name, err)
		}
	}
	if err := state.ChannelAdd(&discordgo.Channel{ID: testDMID, Type: discordgo.ChannelTypeDM}); err != nil {
		t.Fatalf("ChannelAdd: %v", err)
	}
	return state
}

type testEnv struct {
	manager *Manager
	session *mockDiscordSession
	state   *discordgo.State
	logs    *logCapture
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestManager(t *testing.T, configure func(*Config)) *testEnv {
	t.Helper()
	logs := &logCapture{}
	cfg := Config{
		Token:   "test-token",
		Admins:  []string{"admin1"},
		Version: "1.2.3",
		Logger:  slog.New(&captureHandler{capture: logs}),
		Metrics: observability.NewMetrics(prometheus.NewRegistry()),
		Reconnect: channels.ReconnectConfig{
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Factor:       2,
		},
	}
	if configure != nil {
		configure(&cfg)
	}

	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	env := &testEnv{
		manager: m,
		session: &mockDiscordSession{},
		state:   newTestState(t),
		logs:    logs,
	}
	m.state = env.state
	m.newSession = func(string) (discordSession, *discordgo.State, error) {
		return env.session, env.state, nil
	}
	m.sleep = noSleep
	m.loginPolicy = retry.Policy{MaxAttempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
	t.Cleanup(func() { m.Disconnect(true) })
	return env
}

// start connects the manager and fails the test on error.
func (e *testEnv) start(t *testing.T) {
	t.Helper()
	if err := e.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

// say delivers an inbound guild message from alice.
func (e *testEnv) say(channelID, content string) {
	guildID := testGuildID
	if channelID == testDMID {
		guildID = ""
	}
	e.sayAs(&discordgo.User{ID: testUserID, Username: "alice"}, channelID, guildID, content)
}

func (e *testEnv) sayAs(user *discordgo.User, channelID, guildID, content string) {
	msg := &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "in-1",
		ChannelID: channelID,
		GuildID:   guildID,
		Content:   content,
		Author:    user,
	}}
	if guildID != "" {
		if member, err := e.state.Member(guildID, user.ID); err == nil {
			copied := *member
			msg.Member = &copied
		}
	}
	e.manager.handleMessageCreate(nil, msg)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
