package commands

import (
	"context"
	"sync"

	"github.com/haasonsaas/cerebot/pkg/models"
)

type mockUser struct {
	id   string
	name string
	tag  string
}

func (u mockUser) ID() string     { return u.id }
func (u mockUser) Name() string   { return u.name }
func (u mockUser) String() string { return u.tag }

type sentMessage struct {
	text string
	typ  models.MessageType
}

type mockSource struct {
	mu         sync.Mutex
	sent       []sentMessage
	limited    bool
	limitCalls int
	admins     map[string]bool
	private    bool
	singleUser bool
	sendErr    error
}

func (s *mockSource) Describe() string { return "Test:#general" }

func (s *mockSource) SourceIdent() models.SourceIdent {
	return models.SourceIdent{Service: "Test", ID: "1"}
}

func (s *mockSource) DCSSNick(user User) string { return SanitizeNick(user.Name()) }

func (s *mockSource) BotCommandAllowed(user User, cmd *Command) (bool, string) {
	if cmd.Scope == ScopeChannel && s.private {
		return false, "This command must be run in a channel."
	}
	return Allowed(cmd, s.IsAdmin(user), s.singleUser)
}

func (s *mockSource) SendChat(ctx context.Context, message string, messageType models.MessageType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, sentMessage{text: message, typ: messageType})
	return nil
}

func (s *mockSource) CommandLimited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limitCalls++
	return s.limited
}

func (s *mockSource) IsAdmin(user User) bool { return s.admins[user.ID()] }

func (s *mockSource) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.text
	}
	return out
}
