package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/cerebot/internal/commands"
	"github.com/haasonsaas/cerebot/internal/markdown"
	"github.com/haasonsaas/cerebot/pkg/models"
)

const reasonChannelOnly = "This command must be run in a channel."

// Channel adapts a Discord channel to the commands.Source interface. It is
// built per event or lookup and never cached.
type Channel struct {
	manager *Manager
	channel *discordgo.Channel
}

var _ commands.Source = (*Channel)(nil)

func newChannel(m *Manager, ch *discordgo.Channel) *Channel {
	return &Channel{manager: m, channel: ch}
}

// ID returns the Discord channel id.
func (c *Channel) ID() string {
	return c.channel.ID
}

// GuildID returns the id of the guild the channel belongs to, or "" for
// private conversations.
func (c *Channel) GuildID() string {
	return c.channel.GuildID
}

// IsPrivate reports whether the channel is a direct or group DM.
func (c *Channel) IsPrivate() bool {
	switch c.channel.Type {
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		return true
	}
	return c.channel.GuildID == ""
}

// SourceIdent returns the stable identity of the channel.
func (c *Channel) SourceIdent() models.SourceIdent {
	return models.SourceIdent{Service: models.ServiceDiscord, ID: c.channel.ID}
}

// Describe returns "PM:<id>" for private conversations and
// "<server>:#<channel>" otherwise.
func (c *Channel) Describe() string {
	if c.IsPrivate() || c.channel.Name == "" {
		return "PM:" + c.channel.ID
	}
	guild := c.guild()
	if guild == nil {
		return c.channel.GuildID + ":#" + c.channel.Name
	}
	return guild.Name + ":#" + c.channel.Name
}

// User returns the bot's own account for private conversations, nil
// otherwise.
func (c *Channel) User() *discordgo.User {
	if !c.IsPrivate() {
		return nil
	}
	return c.manager.Me()
}

// ChatName returns the user's display name, stripped to characters the game
// server accepts when sanitize is set.
func (c *Channel) ChatName(user commands.User, sanitize bool) string {
	name := user.Name()
	if sanitize {
		name = commands.SanitizeNick(name)
	}
	return name
}

// DCSSNick maps a Discord user to a game nickname.
func (c *Channel) DCSSNick(user commands.User) string {
	return c.ChatName(user, true)
}

// IsAdmin reports whether user is a configured admin.
func (c *Channel) IsAdmin(user commands.User) bool {
	return c.manager.UserIsAdmin(user)
}

// BotCommandAllowed applies the generic permission check plus the rule that
// channel-scoped commands cannot be run from private conversations.
func (c *Channel) BotCommandAllowed(user commands.User, cmd *commands.Command) (bool, string) {
	if cmd.Scope == commands.ScopeChannel && c.IsPrivate() {
		return false, reasonChannelOnly
	}
	return commands.Allowed(cmd, c.IsAdmin(user), c.manager.cfg().SingleUser)
}

// CommandLimited consults the manager's command rate limit.
func (c *Channel) CommandLimited() bool {
	return c.manager.CommandLimited()
}

// SendChat formats message for Discord and sends it to the channel.
func (c *Channel) SendChat(ctx context.Context, message string, messageType models.MessageType) error {
	_, err := c.manager.SendMessage(ctx, c.channel.ID, markdown.Format(message, messageType))
	return err
}

// Send posts raw text to the channel and returns the created message.
func (c *Channel) Send(ctx context.Context, content string) (*discordgo.Message, error) {
	return c.manager.SendMessage(ctx, c.channel.ID, content)
}

// VanityRoles returns the roles users may assign themselves: roles below
// the bot role whose permissions equal @everyone's. It returns nil for
// private channels and for guilds where the bot does not hold the bot role.
func (c *Channel) VanityRoles() []*discordgo.Role {
	if c.IsPrivate() {
		return nil
	}
	guild := c.guild()
	if guild == nil {
		return nil
	}

	var everyone *discordgo.Role
	for _, role := range guild.Roles {
		if role.ID == guild.ID {
			everyone = role
			break
		}
	}
	if everyone == nil {
		return nil
	}

	botRole := c.botRole(guild)
	if botRole == nil {
		return nil
	}

	var roles []*discordgo.Role
	for _, role := range guild.Roles {
		if role.ID == guild.ID || role.ID == botRole.ID {
			continue
		}
		if role.Position < botRole.Position && role.Permissions == everyone.Permissions {
			roles = append(roles, role)
		}
	}
	return roles
}

// VanityRole returns the vanity role with exactly the given name.
func (c *Channel) VanityRole(name string) *discordgo.Role {
	for _, role := range c.VanityRoles() {
		if role.Name == name {
			return role
		}
	}
	return nil
}

// botRole finds the role named BotRole held by the bot's own member.
func (c *Channel) botRole(guild *discordgo.Guild) *discordgo.Role {
	me := c.manager.Me()
	if me == nil {
		return nil
	}
	member, err := c.manager.state.Member(guild.ID, me.ID)
	if err != nil {
		return nil
	}

	name := c.manager.cfg().BotRole
	for _, role := range guild.Roles {
		if role.Name != name {
			continue
		}
		for _, id := range member.Roles {
			if id == role.ID {
				return role
			}
		}
	}
	return nil
}

func (c *Channel) guild() *discordgo.Guild {
	if c.channel.GuildID == "" {
		return nil
	}
	guild, err := c.manager.state.Guild(c.channel.GuildID)
	if err != nil {
		return nil
	}
	return guild
}

// Author is the commands.User view of a Discord message author.
type Author struct {
	user   *discordgo.User
	member *discordgo.Member
}

var _ commands.User = (*Author)(nil)

func newAuthor(user *discordgo.User, member *discordgo.Member) *Author {
	return &Author{user: user, member: member}
}

// ID returns the user's snowflake id.
func (a *Author) ID() string {
	return a.user.ID
}

// Name returns the guild nickname, falling back to the global display name
// and then the username.
func (a *Author) Name() string {
	if a.member != nil && a.member.Nick != "" {
		return a.member.Nick
	}
	if a.user.GlobalName != "" {
		return a.user.GlobalName
	}
	return a.user.Username
}

// String returns the account tag.
func (a *Author) String() string {
	return a.user.String()
}

// Username returns the account username.
func (a *Author) Username() string {
	return a.user.Username
}

// Member returns the guild member, or nil in private conversations.
func (a *Author) Member() *discordgo.Member {
	return a.member
}
