package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haasonsaas/cerebot/internal/observability"
	"github.com/haasonsaas/cerebot/pkg/models"
)

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Prefix is the command prefix (defaults to DefaultPrefix).
	Prefix string

	Logger  *slog.Logger
	Tracer  *observability.Tracer
	Metrics *observability.Metrics
}

// Dispatcher routes inbound chat text to registered commands.
type Dispatcher struct {
	registry *Registry
	parser   *Parser
	logger   *slog.Logger
	tracer   *observability.Tracer
	metrics  *observability.Metrics
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: registry,
		parser:   NewParser(opts.Prefix),
		logger:   logger.With("component", "dispatcher"),
		tracer:   opts.Tracer,
		metrics:  opts.Metrics,
	}
}

// Prefix returns the command prefix.
func (d *Dispatcher) Prefix() string {
	return d.parser.Prefix()
}

// ReadChat handles one inbound message from user on src.
//
// Text that is not a known command is ignored. A known command is checked, in
// order, against the source's rate limit (dropped silently when exceeded),
// the source's permission check (reason replied on denial) and its argument
// patterns (usage replied on mismatch) before its handler runs.
func (d *Dispatcher) ReadChat(ctx context.Context, src Source, user User, text string) error {
	parsed := d.parser.Parse(text)
	if parsed == nil {
		return nil
	}

	cmd, ok := d.registry.Get(parsed.Name)
	if !ok {
		d.logger.Debug("ignoring unknown command", "command", parsed.Name, "source", src.Describe())
		return nil
	}

	if src.CommandLimited() {
		d.metrics.CommandRateLimited()
		d.logger.InfoContext(ctx, "command ignored due to command limit",
			"command", cmd.Name,
			"source", src.Describe(),
			"user", user.String(),
			"message", text)
		return nil
	}

	if allowed, reason := src.BotCommandAllowed(user, cmd); !allowed {
		d.metrics.RecordCommand(cmd.Name, "denied", 0)
		d.logger.Debug("command denied",
			"command", cmd.Name,
			"source", src.Describe(),
			"user", user.String(),
			"reason", reason)
		if reason == "" {
			return nil
		}
		return src.SendChat(ctx, reason, models.MessageNormal)
	}

	args, err := ParseArgs(cmd, parsed.Args)
	if err != nil {
		d.metrics.RecordCommand(cmd.Name, "usage", 0)
		return src.SendChat(ctx, "Usage: "+Usage(d.Prefix(), cmd), models.MessageNormal)
	}

	requestID := uuid.NewString()
	ctx = observability.AddRequestID(ctx, requestID)
	ctx, span := d.tracer.TraceCommand(ctx, cmd.Name, src.SourceIdent().String())
	defer span.End()
	d.tracer.SetAttributes(span,
		"request.id", requestID,
		"user.id", user.ID(),
		"user.name", user.String())
	traceID := observability.GetTraceID(ctx)

	inv := &Invocation{
		Command:   cmd,
		Source:    src,
		User:      user,
		Args:      args,
		RawText:   text,
		RequestID: requestID,
	}

	d.logger.DebugContext(ctx, "running command",
		"command", cmd.Name,
		"source", src.Describe(),
		"user", user.String(),
		"trace_id", traceID)

	start := time.Now()
	err = cmd.Handler(ctx, inv)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			d.metrics.RecordCommand(cmd.Name, "canceled", elapsed)
			return nil
		}
		d.tracer.RecordError(span, err)
		d.metrics.RecordCommand(cmd.Name, "error", elapsed)
		d.logger.ErrorContext(ctx, "command failed",
			"command", cmd.Name,
			"source", src.Describe(),
			"trace_id", traceID,
			"error", err)
		return fmt.Errorf("command %s: %w", cmd.Name, err)
	}

	d.metrics.RecordCommand(cmd.Name, "ok", elapsed)
	return nil
}
