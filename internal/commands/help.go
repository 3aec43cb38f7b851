package commands

import (
	"context"
	"strings"

	"github.com/haasonsaas/cerebot/pkg/models"
)

// HelpHandler returns a handler that lists the commands the invoking user may
// run on the current source.
func HelpHandler(registry *Registry, prefix string) Handler {
	return func(ctx context.Context, inv *Invocation) error {
		var usable []string
		for _, cmd := range registry.ListVisible() {
			if ok, _ := inv.Source.BotCommandAllowed(inv.User, cmd); ok {
				usable = append(usable, Usage(prefix, cmd))
			}
		}
		if len(usable) == 0 {
			return inv.Source.SendChat(ctx, "No commands available here.", models.MessageNormal)
		}
		return inv.Source.SendChat(ctx, "Available commands: "+strings.Join(usable, ", "), models.MessageNormal)
	}
}
