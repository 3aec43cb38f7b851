package discord

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/cases"

	"github.com/haasonsaas/cerebot/internal/channels"
	"github.com/haasonsaas/cerebot/internal/commands"
	"github.com/haasonsaas/cerebot/internal/observability"
	"github.com/haasonsaas/cerebot/pkg/models"
)

const (
	glassesFrameDelay = 500 * time.Millisecond
	danceFrameDelay   = 250 * time.Millisecond
)

func roleArg() []commands.ArgSpec {
	return []commands.ArgSpec{{Pattern: `.+$`, Description: "ROLE", Required: true}}
}

func (m *Manager) registerCommands(registry *commands.Registry) error {
	prefix := m.cfg().CommandPrefix
	table := []*commands.Command{
		{
			Name:              "version",
			Description:       "Report the bridge version and the servers it listens to",
			Scope:             commands.ScopeAdmin,
			SingleUserAllowed: true,
			Handler:           m.versionCommand,
		},
		{
			Name:        "debugmode",
			Description: "Show or toggle DEBUG level logging",
			Args: []commands.ArgSpec{
				{Pattern: `(on|off)$`, Description: "on|off"},
			},
			Scope:             commands.ScopeAdmin,
			SingleUserAllowed: true,
			Handler:           m.debugmodeCommand,
		},
		{
			Name:              "bothelp",
			Description:       "List available bot commands",
			SingleUserAllowed: true,
			Handler:           commands.HelpHandler(registry, prefix),
		},
		{
			Name:              "listroles",
			Description:       "List roles you can give yourself",
			Scope:             commands.ScopeChannel,
			SingleUserAllowed: true,
			Handler:           m.listrolesCommand,
		},
		{
			Name:              "addrole",
			Description:       "Give yourself a role",
			Args:              roleArg(),
			Scope:             commands.ScopeChannel,
			SingleUserAllowed: true,
			Handler:           m.addroleCommand,
		},
		{
			Name:              "removerole",
			Description:       "Remove a role from yourself",
			Args:              roleArg(),
			Scope:             commands.ScopeChannel,
			SingleUserAllowed: true,
			Handler:           m.removeroleCommand,
		},
		{
			Name:              "glasses",
			SingleUserAllowed: true,
			Handler:           m.animation(glassesFrames(), glassesFrameDelay),
		},
		{
			Name:              "deal",
			SingleUserAllowed: true,
			Handler:           m.animation(dealFrames(), glassesFrameDelay),
		},
		{
			Name:              "dance",
			SingleUserAllowed: true,
			Handler:           m.animation(danceFrames([]string{":D|-<", ":D/-<", ":D|-<", `:D\\-<`}), danceFrameDelay),
		},
		{
			Name:              "zxcdance",
			SingleUserAllowed: true,
			Handler:           m.animation(danceFrames([]string{"└[^_^]┐", "┌[^_^]┘"}), danceFrameDelay),
		},
		{
			Name:        "say",
			Description: "Send a message to a channel on another server",
			Args: []commands.ArgSpec{
				{Pattern: `.+$`, Description: "SERVER", Required: true},
				{Pattern: `.+$`, Description: "CHANNEL", Required: true},
				{Pattern: `.+$`, Description: "MESSAGE", Required: true},
			},
			SingleUserAllowed: true,
			Handler:           m.sayCommand,
		},
	}

	for _, cmd := range table {
		if err := registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func sourceChannel(inv *commands.Invocation) (*Channel, error) {
	ch, ok := inv.Source.(*Channel)
	if !ok {
		return nil, channels.ErrInternal(fmt.Sprintf("unexpected source %T", inv.Source), nil)
	}
	return ch, nil
}

func reply(ctx context.Context, inv *commands.Invocation, text string) error {
	return inv.Source.SendChat(ctx, text, models.MessageNormal)
}

func (m *Manager) guildNames() []string {
	m.state.RLock()
	defer m.state.RUnlock()
	names := make([]string, 0, len(m.state.Guilds))
	for _, g := range m.state.Guilds {
		names = append(names, g.Name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) versionCommand(ctx context.Context, inv *commands.Invocation) error {
	return reply(ctx, inv, fmt.Sprintf("Version: %s; Listening to servers: %s",
		m.cfg().Version, strings.Join(m.guildNames(), ", ")))
}

func (m *Manager) debugmodeCommand(ctx context.Context, inv *commands.Invocation) error {
	state := inv.Arg(0)
	if state == "" {
		current := "off"
		if observability.DebugEnabled() {
			current = "on"
		}
		return reply(ctx, inv, fmt.Sprintf("DEBUG level logging is currently %s.", current))
	}

	observability.SetDebug(state == "on")
	m.logger.Info("log level changed", "debug", state == "on", "user", inv.User.String())
	return reply(ctx, inv, fmt.Sprintf("DEBUG level logging set to %s.", state))
}

func (m *Manager) listrolesCommand(ctx context.Context, inv *commands.Invocation) error {
	ch, err := sourceChannel(inv)
	if err != nil {
		return err
	}
	roles := ch.VanityRoles()
	if len(roles) == 0 {
		return reply(ctx, inv, "No available roles found.")
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = r.Name
	}
	return reply(ctx, inv, strings.Join(names, ", "))
}

func (m *Manager) addroleCommand(ctx context.Context, inv *commands.Invocation) error {
	ch, err := sourceChannel(inv)
	if err != nil {
		return err
	}
	name := inv.Arg(0)
	role := ch.VanityRole(name)
	if role == nil {
		return reply(ctx, inv, "Unknown role: "+name)
	}

	if err := m.AddRole(ctx, ch.GuildID(), inv.User.ID(), role.ID); err != nil {
		return err
	}
	return reply(ctx, inv, fmt.Sprintf("Member %s has been given role %s", inv.User.Name(), name))
}

func (m *Manager) removeroleCommand(ctx context.Context, inv *commands.Invocation) error {
	ch, err := sourceChannel(inv)
	if err != nil {
		return err
	}
	name := inv.Arg(0)
	role := ch.VanityRole(name)
	if role == nil {
		return reply(ctx, inv, "Unknown role: "+name)
	}

	if !m.memberHasRole(ch.GuildID(), inv.User, role.ID) {
		return reply(ctx, inv, fmt.Sprintf("Member %s does not have role %s", inv.User.Name(), name))
	}
	if err := m.RemoveRole(ctx, ch.GuildID(), inv.User.ID(), role.ID); err != nil {
		return err
	}
	return reply(ctx, inv, fmt.Sprintf("Member %s has lost role %s", inv.User.Name(), name))
}

func (m *Manager) memberHasRole(guildID string, user commands.User, roleID string) bool {
	var member *discordgo.Member
	if a, ok := user.(*Author); ok {
		member = a.Member()
	}
	if member == nil {
		var err error
		if member, err = m.state.Member(guildID, user.ID()); err != nil {
			return false
		}
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// animation returns a handler that sends frames[0] and then edits the same
// message through the remaining frames, waiting delay before each edit.
func (m *Manager) animation(frames []string, delay time.Duration) commands.Handler {
	return func(ctx context.Context, inv *commands.Invocation) error {
		ch, err := sourceChannel(inv)
		if err != nil {
			return err
		}
		msg, err := ch.Send(ctx, frames[0])
		if err != nil {
			return err
		}
		for _, frame := range frames[1:] {
			if err := m.sleep(ctx, delay); err != nil {
				return err
			}
			if msg, err = m.EditMessage(ctx, msg, frame); err != nil {
				return err
			}
		}
		return nil
	}
}

func glassesFrames() []string {
	return []string{"( •_•)", "( •_•)>⌐■-■", "(⌐■_■)"}
}

func dealFrames() []string {
	const (
		glasses  = "    ⌐■-■    "
		glassOn  = "   (⌐■_■)   "
		dealWith = "deal with it"
		blank    = "            "
	)
	lines := []string{blank, blank, blank, "    (•_•)   "}
	block := func(l []string) string {
		return "```" + strings.Join(l, "\n") + "```"
	}

	frames := []string{block(lines)}
	for i := 0; i < 3; i++ {
		frame := append([]string(nil), lines...)
		frame[i] = glasses
		frames = append(frames, block(frame))
	}
	return append(frames, block([]string{lines[0], dealWith, lines[2], glassOn}))
}

// danceFrames cycles through figures twice, skipping the opening figure on
// the first pass, and ends on the opening figure.
func danceFrames(figures []string) []string {
	frames := []string{figures[0]}
	frames = append(frames, figures[1:]...)
	frames = append(frames, figures...)
	return append(frames, figures[0])
}

func (m *Manager) sayCommand(ctx context.Context, inv *commands.Invocation) error {
	serverQuery, channelQuery, message := inv.Arg(0), inv.Arg(1), inv.Arg(2)
	fold := cases.Fold()
	matches := func(name, query string) bool {
		return strings.Contains(fold.String(name), fold.String(query))
	}

	m.state.RLock()
	guilds := append([]*discordgo.Guild(nil), m.state.Guilds...)
	m.state.RUnlock()
	sort.SliceStable(guilds, func(i, j int) bool { return guilds[i].Name < guilds[j].Name })

	var dest *discordgo.Guild
	for _, g := range guilds {
		if matches(g.Name, serverQuery) {
			dest = g
			break
		}
	}
	if dest == nil {
		names := make([]string, len(guilds))
		for i, g := range guilds {
			names[i] = g.Name
		}
		return reply(ctx, inv, fmt.Sprintf("Can't find server match for %s, must match one of: %s",
			serverQuery, strings.Join(names, ", ")))
	}

	m.state.RLock()
	var text []*discordgo.Channel
	for _, c := range dest.Channels {
		if c.Type == discordgo.ChannelTypeGuildText {
			text = append(text, c)
		}
	}
	m.state.RUnlock()
	sort.SliceStable(text, func(i, j int) bool { return text[i].Name < text[j].Name })

	var target *discordgo.Channel
	for _, c := range text {
		if matches(c.Name, channelQuery) {
			target = c
			break
		}
	}
	if target == nil {
		names := make([]string, len(text))
		for i, c := range text {
			names[i] = c.Name
		}
		return reply(ctx, inv, fmt.Sprintf("Can't find channel match for %s, must match one of: %s",
			channelQuery, strings.Join(names, ", ")))
	}

	m.logger.InfoContext(ctx, "relaying message",
		"from", inv.Source.Describe(),
		"to", dest.Name+":#"+target.Name,
		"user", inv.User.String())
	return newChannel(m, target).SendChat(ctx, message, models.MessageNormal)
}
