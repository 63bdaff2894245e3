package command

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Grammar describes one command verb: how many path arguments it takes and
// how they are validated. New verbs register here; the parser and help text
// pick them up without further changes.
type Grammar struct {
	// Verb is the canonical verb, upper case. It may contain a space for
	// multi-word verbs such as "CONFIRM DELETE".
	Verb          string
	Kind          Kind
	PathArgs      int
	DistinctPaths bool
	Usage         string
	Description   string
}

// Registry holds the recognized command grammars.
type Registry struct {
	mu       sync.RWMutex
	grammars map[string]Grammar
}

func NewRegistry() *Registry {
	return &Registry{
		grammars: make(map[string]Grammar),
	}
}

// Register adds or replaces a grammar. The verb is case-folded.
func (r *Registry) Register(g Grammar) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g.Verb = strings.ToUpper(strings.TrimSpace(g.Verb))
	r.grammars[g.Verb] = g
}

func (r *Registry) lookup(verb string) (Grammar, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[verb]
	return g, ok
}

// List returns all grammars sorted by verb.
func (r *Registry) List() []Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Grammar, 0, len(r.grammars))
	for _, g := range r.grammars {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Verb < out[j].Verb })
	return out
}

// HelpText renders the command reference from the registered grammars.
func (r *Registry) HelpText() string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, g := range r.List() {
		fmt.Fprintf(&b, "  %s — %s\n", g.Usage, g.Description)
	}
	b.WriteString("\nPaths start with / and point inside your Drive folder.")
	return b.String()
}

// DefaultRegistry returns a registry with the built-in file commands.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Grammar{
		Verb:        "HELP",
		Kind:        KindHelp,
		Usage:       "HELP",
		Description: "Show this command reference",
	})
	r.Register(Grammar{
		Verb:        "LIST",
		Kind:        KindList,
		PathArgs:    1,
		Usage:       "LIST <path>",
		Description: "List files in a folder",
	})
	r.Register(Grammar{
		Verb:        "SUMMARY",
		Kind:        KindSummary,
		PathArgs:    1,
		Usage:       "SUMMARY <path>",
		Description: "Summarize a file or folder",
	})
	r.Register(Grammar{
		Verb:        "DELETE",
		Kind:        KindDelete,
		PathArgs:    1,
		Usage:       "DELETE <path>",
		Description: "Delete a file (asks for confirmation)",
	})
	r.Register(Grammar{
		Verb:        "CONFIRM DELETE",
		Kind:        KindConfirmDelete,
		PathArgs:    1,
		Usage:       "CONFIRM DELETE <path>",
		Description: "Confirm a pending deletion",
	})
	r.Register(Grammar{
		Verb:          "MOVE",
		Kind:          KindMove,
		PathArgs:      2,
		DistinctPaths: true,
		Usage:         "MOVE <path> <destination>",
		Description:   "Move a file to another folder",
	})
	return r
}
