package commands

import "strings"

// SanitizeNick strips characters the game server does not accept in player
// names, keeping ASCII letters, digits, '_' and '-'.
func SanitizeNick(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		}
		return -1
	}, name)
}
