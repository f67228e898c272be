/*
Copyright © 2025 gsd contributors
*/

// Package ops classifies CLI commands into operational groups so that help
// output can present lifecycle commands before inspection and support ones.
package ops

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
)

// CommandGroup is the operational classification of a command.
type CommandGroup string

const (
	GroupLifecycle CommandGroup = "lifecycle" // install, uninstall, update, repair
	GroupInspect   CommandGroup = "inspect"   // list
	GroupSupport   CommandGroup = "support"   // config, version
)

// GroupOrder is the display order for grouped help output.
var GroupOrder = []CommandGroup{GroupLifecycle, GroupInspect, GroupSupport}

// Registration ties a cobra command to its group and one-line summary.
type Registration struct {
	Name    string
	Group   CommandGroup
	Command *cobra.Command
	Summary string
}

// Registry holds registrations in registration order within each group.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Registration
	order  []*Registration
}

func newRegistry() *Registry {
	return &Registry{byName: make(map[string]*Registration)}
}

var defaultRegistry = newRegistry()

// GetRegistry returns the process-wide registry used by the CLI.
func GetRegistry() *Registry {
	return defaultRegistry
}

// RegisterCommand registers cmd in the process-wide registry.
func RegisterCommand(name string, group CommandGroup, cmd *cobra.Command, summary string) error {
	return defaultRegistry.Register(name, group, cmd, summary)
}

// Register adds a command. Registering the same name twice is an error.
func (r *Registry) Register(name string, group CommandGroup, cmd *cobra.Command, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("command %q already registered", name)
	}
	reg := &Registration{Name: name, Group: group, Command: cmd, Summary: summary}
	r.byName[name] = reg
	r.order = append(r.order, reg)
	return nil
}

// Lookup returns the registration for name, if any.
func (r *Registry) Lookup(name string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byName[name]
	return reg, ok
}

// ByGroup returns the group's commands in registration order.
func (r *Registry) ByGroup(group CommandGroup) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Registration
	for _, reg := range r.order {
		if reg.Group == group {
			out = append(out, reg)
		}
	}
	return out
}

// Len reports the total number of registered commands.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
