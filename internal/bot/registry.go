package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"grouphelper/internal/command"
)

// HandlerFunc executes a command. Returned errors are reported and answered with a generic failure.
type HandlerFunc func(ctx context.Context, m *Message, inv command.Invocation) error

// Command describes a registered command
type Command struct {
	Name        string
	Aliases     []string
	Category    string
	Usage       string
	Description string

	OnlyChat    bool
	OnlyPrivate bool
	OnlyAdmin   bool
	DevOnly     bool
	// Hidden commands are reachable only through callbacks and left out of help
	Hidden bool

	// AdminPermissions must be held by the bot and, when the sender is an admin, by the sender
	AdminPermissions []string
	// XP awarded to the sender after a successful run
	XP int

	Exec HandlerFunc
}

// HasAlias reports whether name is one of the command's aliases
func (c *Command) HasAlias(name string) bool {
	for _, alias := range c.Aliases {
		if alias == name {
			return true
		}
	}
	return false
}

// Registry maps names and aliases to commands
type Registry struct {
	byName map[string]*Command
	order  []*Command
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Command)}
}

// Register adds a command. Names are stored lower-cased and must be unique.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Name == "" {
		return errors.New("command name is required")
	}
	if cmd.Exec == nil {
		return fmt.Errorf("command %s has no handler", cmd.Name)
	}

	cmd.Name = strings.ToLower(cmd.Name)
	for i, alias := range cmd.Aliases {
		cmd.Aliases[i] = strings.ToLower(alias)
	}

	if _, exists := r.byName[cmd.Name]; exists {
		return fmt.Errorf("command %s already registered", cmd.Name)
	}
	r.byName[cmd.Name] = cmd
	r.order = append(r.order, cmd)
	return nil
}

// Resolve finds a command by exact name, then by alias in registration order
func (r *Registry) Resolve(name string) (*Command, bool) {
	if name == "" {
		return nil, false
	}
	if cmd, ok := r.byName[name]; ok {
		return cmd, true
	}
	for _, cmd := range r.order {
		if cmd.HasAlias(name) {
			return cmd, true
		}
	}
	return nil, false
}

// Commands returns the registered commands in registration order
func (r *Registry) Commands() []*Command {
	out := make([]*Command, len(r.order))
	copy(out, r.order)
	return out
}
