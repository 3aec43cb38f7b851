package commands

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// DefaultPrefix is the default bot command prefix.
const DefaultPrefix = "!"

// ErrUsage is returned when command arguments fail validation.
var ErrUsage = errors.New("invalid command arguments")

// ParsedCommand is a command name and its unparsed argument text.
type ParsedCommand struct {
	// Name is the lowercased command name (without prefix)
	Name string

	// Args is the text after the command name
	Args string
}

// Parser detects commands at the start of message text.
type Parser struct {
	prefix    string
	commandRe *regexp.Regexp
}

// NewParser creates a parser for the given prefix. An empty prefix selects
// DefaultPrefix.
func NewParser(prefix string) *Parser {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Parser{
		prefix:    prefix,
		commandRe: regexp.MustCompile(`(?s)^` + regexp.QuoteMeta(prefix) + `([a-zA-Z][a-zA-Z0-9_-]*)(?:\s+(.*))?$`),
	}
}

// Prefix returns the parser's command prefix.
func (p *Parser) Prefix() string {
	return p.prefix
}

// Parse returns the command at the start of text, or nil when text is not a
// command.
func (p *Parser) Parse(text string) *ParsedCommand {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	match := p.commandRe.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	return &ParsedCommand{
		Name: strings.ToLower(match[1]),
		Args: strings.TrimSpace(match[2]),
	}
}

// ParseArgs splits text into cmd's positional arguments and validates each
// against its pattern. The last argument receives the remainder of text.
// Text beyond the declared arguments of a command with no arguments is
// ignored.
func ParseArgs(cmd *Command, text string) ([]string, error) {
	if len(cmd.Args) == 0 {
		return nil, nil
	}

	values := splitArgs(text, len(cmd.Args))
	for i, spec := range cmd.Args {
		if i >= len(values) {
			if spec.Required {
				return nil, fmt.Errorf("%w: missing %s", ErrUsage, spec.Description)
			}
			break
		}
		if spec.re != nil && !spec.re.MatchString(values[i]) {
			return nil, fmt.Errorf("%w: bad %s %q", ErrUsage, spec.Description, values[i])
		}
	}
	return values, nil
}

// Usage renders the usage line for cmd, e.g. "!addrole ROLE" or
// "!debugmode [on|off]".
func Usage(prefix string, cmd *Command) string {
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(cmd.Name)
	for _, arg := range cmd.Args {
		b.WriteByte(' ')
		if arg.Required {
			b.WriteString(arg.Description)
		} else {
			b.WriteString("[" + arg.Description + "]")
		}
	}
	return b.String()
}

// splitArgs splits text into at most n whitespace-separated fields, keeping
// the spacing of the last field.
func splitArgs(text string, n int) []string {
	var out []string
	rest := strings.TrimSpace(text)
	for rest != "" && len(out) < n {
		if len(out) == n-1 {
			out = append(out, rest)
			break
		}
		end := strings.IndexFunc(rest, unicode.IsSpace)
		if end < 0 {
			out = append(out, rest)
			break
		}
		out = append(out, rest[:end])
		rest = strings.TrimLeftFunc(rest[end:], unicode.IsSpace)
	}
	return out
}
