// Package channels defines the contract between chat backends and the relay,
// plus the connection state, error taxonomy and reconnect loop they share.
package channels

import (
	"context"

	"github.com/haasonsaas/cerebot/internal/commands"
	"github.com/haasonsaas/cerebot/pkg/models"
)

// Bridge is implemented by each chat backend connection manager.
type Bridge interface {
	// Start connects and logs in. It returns once the connection is
	// established or has failed.
	Start(ctx context.Context) error

	// Run keeps the bridge connected until ctx is done or Disconnect(true)
	// is called, reconnecting after faults.
	Run(ctx context.Context) error

	// Disconnect closes the connection. shutdown marks the disconnect as
	// intentional, which stops Run from reconnecting.
	Disconnect(shutdown bool)

	// LookupSource resolves a stable source identity to a live chat source.
	LookupSource(ident models.SourceIdent) (commands.Source, error)

	// Type returns the backend channel type.
	Type() models.ChannelType

	// Status returns the current connection status.
	Status() Status
}
