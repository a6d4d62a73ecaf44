package commands

import (
	"fmt"
	"sort"
	"strings"
)

// Registry maps command names to handlers. It is populated at startup and
// read-only afterwards, so an unknown command is a routing-table miss, not
// a runtime surprise.
type Registry struct {
	commands map[string]Command
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

func (r *Registry) Register(cmd Command) {
	r.commands[strings.ToLower(cmd.Name())] = cmd
}

func (r *Registry) Get(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToLower(strings.TrimSpace(name))]
	return cmd, ok
}

func (r *Registry) All() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) Names() string {
	all := r.All()
	names := make([]string, len(all))
	for i, cmd := range all {
		names[i] = cmd.Name()
	}
	return strings.Join(names, ", ")
}

// Describe renders the markdown command list used by the help command.
func (r *Registry) Describe() string {
	var b strings.Builder
	b.WriteString("Available commands:\n\n")
	for _, cmd := range r.All() {
		fmt.Fprintf(&b, "- `%s`: %s\n", cmd.Name(), cmd.Description())
	}
	return b.String()
}
