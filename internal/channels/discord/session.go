package discord

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/cerebot/internal/channels"
)

// discordSession is the subset of *discordgo.Session the manager uses. It
// allows for mocking the Discord session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

const gatewayIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// newSession builds a real gateway session and the state cache it maintains.
func newSession(token string) (discordSession, *discordgo.State, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, nil, channels.ErrAuthentication("failed to create Discord session", err)
	}
	dg.Identify.Intents = gatewayIntents
	// Reconnects are owned by the manager's supervisor.
	dg.ShouldReconnectOnError = false
	dg.StateEnabled = true
	return dg, dg.State, nil
}

// classifyError maps a discordgo error onto the channel error taxonomy.
func classifyError(message string, err error) error {
	if err == nil {
		return nil
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch code := restErr.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return channels.ErrAuthentication(message, err)
		case code == http.StatusForbidden:
			return channels.ErrPermission(message, err)
		case code == http.StatusNotFound:
			return channels.ErrNotFound(message, err)
		case code == http.StatusBadRequest:
			return channels.ErrInvalidInput(message, err)
		case code == http.StatusTooManyRequests, code >= 500:
			return channels.ErrUnavailable(message, err)
		default:
			return channels.ErrInternal(message, err)
		}
	}

	return channels.ErrConnection(message, err)
}
