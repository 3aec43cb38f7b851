// Package markdown prepares outbound chat text for Discord's markdown
// renderer: emphasis escaping that leaves links intact, and per-type wrapping.
package markdown

import (
	"regexp"
	"strings"

	"github.com/haasonsaas/cerebot/pkg/models"
)

// urlPattern matches http(s) URLs with optional userinfo, IPv4 or DNS host,
// port and path. It is only used to keep links out of the escaper.
var urlPattern = regexp.MustCompile(`(?i)https?://` +
	`(?:\S+(?::\S*)?@)?` +
	`(?:` +
	`(?:[1-9]\d?|1\d\d|2[01]\d|22[0-3])(?:\.(?:1?\d{1,2}|2[0-4]\d|25[0-5])){2}(?:\.(?:[1-9]\d?|1\d\d|2[0-4]\d|25[0-4]))` +
	`|` +
	`(?:(?:[a-z\x{00a1}-\x{ffff}0-9]+-?)*[a-z\x{00a1}-\x{ffff}0-9]+)` +
	`(?:\.(?:[a-z\x{00a1}-\x{ffff}0-9]+-?)*[a-z\x{00a1}-\x{ffff}0-9]+)*` +
	`(?:\.(?:[a-z\x{00a1}-\x{ffff}]{2,}))` +
	`)` +
	`(?::\d{2,5})?` +
	`(?:/\S*)?`)

var emphasisEscaper = strings.NewReplacer(
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
)

// commandPrefixes are leading characters other chat bots treat as commands.
const commandPrefixes = "!?&%$^=.@"

// DefuseMarker is prefixed to messages whose first characters would be
// interpreted by Discord or by another bot.
const DefuseMarker = "]"

// Format converts a logical chat message into text that is safe to send to
// Discord as a single payload. It never truncates and never fails.
func Format(text string, messageType models.MessageType) string {
	if messageType == models.MessageMonster {
		text = strings.ReplaceAll(text, "```", "\\`\\`\\`")
	} else {
		text = EscapeEmphasis(text)
	}

	switch messageType {
	case models.MessageAction:
		return "_" + text + "_"
	case models.MessageMonster:
		return "```\n" + text + "\n```"
	}

	if NeedsDefuse(text) {
		return DefuseMarker + text
	}
	return text
}

// EscapeEmphasis backslash-escapes *, _ and ~ everywhere except inside URLs.
func EscapeEmphasis(text string) string {
	matches := urlPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return emphasisEscaper.Replace(text)
	}

	var b strings.Builder
	b.Grow(len(text) + len(text)/8)
	last := 0
	for _, m := range matches {
		b.WriteString(emphasisEscaper.Replace(text[last:m[0]]))
		b.WriteString(text[m[0]:m[1]])
		last = m[1]
	}
	b.WriteString(emphasisEscaper.Replace(text[last:]))
	return b.String()
}

// FindURLs returns every URL the escaper leaves untouched, in order.
func FindURLs(text string) []string {
	return urlPattern.FindAllString(text, -1)
}

// NeedsDefuse reports whether the start of text would trigger a Discord block
// format (quote, spoiler, heading, list) or another bot's command parser.
func NeedsDefuse(text string) bool {
	if text == "" {
		return false
	}
	switch {
	case strings.HasPrefix(text, ">"),
		strings.HasPrefix(text, "||"),
		strings.HasPrefix(text, "- "),
		headingPattern.MatchString(text):
		return true
	}
	return strings.ContainsRune(commandPrefixes, rune(text[0]))
}

var headingPattern = regexp.MustCompile(`^#{1,3} `)
