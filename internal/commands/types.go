// Package commands provides bot command detection, argument validation,
// permission checks and routing for chat sources.
package commands

import (
	"context"
	"regexp"

	"github.com/haasonsaas/cerebot/pkg/models"
)

// Scope restricts where and by whom a command may be run.
type Scope string

const (
	// ScopeNone allows the command anywhere.
	ScopeNone Scope = ""

	// ScopeAdmin restricts the command to configured admins.
	ScopeAdmin Scope = "admin"

	// ScopeChannel restricts the command to group channels.
	ScopeChannel Scope = "channel"
)

// ArgSpec describes one positional command argument.
type ArgSpec struct {
	// Pattern is matched against the start of the argument text.
	Pattern string

	// Description is shown in usage text (e.g. "ROLE", "on|off").
	Description string

	// Required arguments must be present for the command to run.
	Required bool

	re *regexp.Regexp
}

// Command describes a registered bot command.
type Command struct {
	// Name is the command name without the prefix (e.g., "addrole")
	Name string

	// Description is a short description of what the command does
	Description string

	// Args are the positional arguments. The last one receives the rest of
	// the message text.
	Args []ArgSpec

	// Scope restricts who may run the command and where.
	Scope Scope

	// SingleUserAllowed permits the command while the bridge runs in
	// single-user mode.
	SingleUserAllowed bool

	// Hidden hides the command from help listings
	Hidden bool

	// Handler is the function that executes the command
	Handler Handler
}

// Handler runs a command. Replies go through inv.Source.
type Handler func(ctx context.Context, inv *Invocation) error

// Invocation represents a parsed, validated command invocation.
type Invocation struct {
	// Command is the matched command definition
	Command *Command

	// Source is the chat source the command arrived on
	Source Source

	// User is the user who invoked the command
	User User

	// Args holds one value per supplied argument
	Args []string

	// RawText is the original message text
	RawText string

	// RequestID correlates log lines for this invocation
	RequestID string
}

// Arg returns the i-th argument, or "" when it was not supplied.
func (inv *Invocation) Arg(i int) string {
	if i < 0 || i >= len(inv.Args) {
		return ""
	}
	return inv.Args[i]
}

// User is the author of an inbound chat message.
type User interface {
	// ID is the backend's stable user id.
	ID() string

	// Name is the user's display name in the source.
	Name() string

	// String is the user's account tag (e.g. "name" or "name#1234").
	String() string
}

// Source is the capability set a chat backend exposes to the command layer.
type Source interface {
	// Describe returns a short human-readable location, used in logs.
	Describe() string

	// SourceIdent returns the stable identity of the source.
	SourceIdent() models.SourceIdent

	// DCSSNick maps a user to a nickname usable on the game server.
	DCSSNick(user User) string

	// BotCommandAllowed reports whether user may run cmd here, with a reason
	// to reply when not.
	BotCommandAllowed(user User, cmd *Command) (bool, string)

	// SendChat sends a message to the source.
	SendChat(ctx context.Context, message string, messageType models.MessageType) error

	// CommandLimited consults the backend's command rate limit. It returns
	// true when the command must be dropped.
	CommandLimited() bool

	// IsAdmin reports whether user is a configured admin.
	IsAdmin(user User) bool
}
