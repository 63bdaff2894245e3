package command

import (
	"fmt"
	"strings"
)

// Parse tokenizes rawText against the registry. Verbs are matched case
// insensitively; path arguments keep their case. The longest registered
// verb wins, so "CONFIRM DELETE /x" resolves to the two-word verb rather
// than an unknown "CONFIRM".
func (r *Registry) Parse(rawText, senderID string) Command {
	cmd := Command{
		Kind:     KindInvalid,
		SenderID: senderID,
		RawText:  rawText,
	}

	fields := strings.Fields(rawText)
	if len(fields) == 0 {
		cmd.ValidationError = "Empty message. Send HELP for available commands."
		return cmd
	}

	g, args, ok := r.matchVerb(fields)
	if !ok {
		cmd.ValidationError = fmt.Sprintf("Unknown command %q. Send HELP for available commands.", fields[0])
		return cmd
	}

	if len(args) != g.PathArgs {
		cmd.ValidationError = fmt.Sprintf("Usage: %s", g.Usage)
		return cmd
	}

	for _, arg := range args {
		if err := validatePath(arg); err != nil {
			cmd.ValidationError = err.Error()
			return cmd
		}
	}

	if g.DistinctPaths && len(args) == 2 && args[0] == args[1] {
		cmd.ValidationError = "Source and destination must be different paths."
		return cmd
	}

	cmd.Kind = g.Kind
	cmd.Valid = true
	if len(args) > 0 {
		cmd.Path = args[0]
	}
	if len(args) > 1 {
		cmd.DestPath = args[1]
	}
	return cmd
}

// matchVerb tries the two leading tokens as a verb first, then one.
func (r *Registry) matchVerb(fields []string) (Grammar, []string, bool) {
	if len(fields) >= 2 {
		verb := strings.ToUpper(fields[0]) + " " + strings.ToUpper(fields[1])
		if g, ok := r.lookup(verb); ok {
			return g, fields[2:], true
		}
	}
	if g, ok := r.lookup(strings.ToUpper(fields[0])); ok {
		return g, fields[1:], true
	}
	return Grammar{}, nil, false
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("Path must not be empty.")
	}
	if !strings.HasPrefix(path, "/") {
		return fmt.Errorf("Path %q must start with /.", path)
	}
	if strings.HasPrefix(path, "//") {
		return fmt.Errorf("Path %q must have a single leading /.", path)
	}
	if strings.Contains(path, "//") {
		return fmt.Errorf("Path %q must not contain empty segments.", path)
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("Path %q must not contain \"..\".", path)
	}
	return nil
}
