package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/cerebot/internal/channels"
)

// startKeepalive launches the keepalive loop unless one is already running.
func (m *Manager) startKeepalive() {
	if !m.loggedIn.Load() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepaliveCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(m.ctx)
	done := make(chan struct{})
	m.keepaliveCancel = cancel
	m.keepaliveDone = done

	go func() {
		defer close(done)
		m.keepalive(ctx)
	}()
}

// stopKeepalive cancels the keepalive loop and waits for it to exit. The
// in-flight probe carries the loop's context, so the wait ends as soon as the
// request is aborted. Must not be called from the loop goroutine.
func (m *Manager) stopKeepalive() {
	m.mu.Lock()
	cancel := m.keepaliveCancel
	done := m.keepaliveDone
	m.keepaliveCancel = nil
	m.keepaliveDone = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// keepalive probes the REST API as soon as the gateway is ready and then
// every PingInterval. The first failed probe schedules a disconnect and ends
// the loop; Run decides whether to reconnect.
func (m *Manager) keepalive(ctx context.Context) {
	interval := m.cfg().PingInterval
	m.logger.Debug("keepalive started", "interval", interval)

	for {
		_, err := m.session.User("@me", discordgo.WithContext(ctx))
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			m.logger.Warn("keepalive failed, disconnecting",
				"error_type", fmt.Sprintf("%T", err),
				"error", err)
			m.metrics.KeepaliveFailed()

			m.mu.Lock()
			cancel := m.keepaliveCancel
			m.keepaliveCancel = nil
			m.keepaliveDone = nil
			m.mu.Unlock()
			if cancel != nil {
				cancel()
			}

			go m.disconnectAfterFault(channels.ErrConnection("keepalive failed", err))
			return
		}

		m.tracker.RecordPing()

		if err := m.sleep(ctx, interval); err != nil {
			return
		}
	}
}
