package commands

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Registry manages command registrations. Names are unique and case
// insensitive.
type Registry struct {
	commands map[string]*Command
	logger   *slog.Logger
	mu       sync.RWMutex
}

// NewRegistry creates a new command registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		commands: make(map[string]*Command),
		logger:   logger.With("component", "commands"),
	}
}

// Register adds a command to the registry, compiling its argument patterns.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command is nil")
	}
	if cmd.Name == "" {
		return fmt.Errorf("command name is required")
	}
	if cmd.Handler == nil {
		return fmt.Errorf("command handler is required")
	}
	switch cmd.Scope {
	case ScopeNone, ScopeAdmin, ScopeChannel:
	default:
		return fmt.Errorf("command %q: unknown scope %q", cmd.Name, cmd.Scope)
	}

	seenOptional := false
	for i := range cmd.Args {
		arg := &cmd.Args[i]
		re, err := regexp.Compile(`^(?:` + arg.Pattern + `)`)
		if err != nil {
			return fmt.Errorf("command %q: argument %d pattern: %w", cmd.Name, i, err)
		}
		arg.re = re
		if arg.Required && seenOptional {
			return fmt.Errorf("command %q: required argument %d follows an optional one", cmd.Name, i)
		}
		if !arg.Required {
			seenOptional = true
		}
	}

	name := strings.ToLower(strings.TrimSpace(cmd.Name))

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %q already registered", name)
	}
	r.commands[name] = cmd

	r.logger.Debug("registered command",
		"name", name,
		"scope", string(cmd.Scope),
		"args", len(cmd.Args))

	return nil
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (*Command, bool) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, exists := r.commands[name]
	return cmd, exists
}

// List returns all registered commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		commands = append(commands, cmd)
	}

	sort.Slice(commands, func(i, j int) bool {
		return commands[i].Name < commands[j].Name
	})

	return commands
}

// ListVisible returns commands that should be shown in help.
func (r *Registry) ListVisible() []*Command {
	all := r.List()
	visible := make([]*Command, 0, len(all))
	for _, cmd := range all {
		if !cmd.Hidden {
			visible = append(visible, cmd)
		}
	}
	return visible
}
