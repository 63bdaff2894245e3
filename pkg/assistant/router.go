package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sipeed/driveclaw/pkg/audit"
	"github.com/sipeed/driveclaw/pkg/command"
	"github.com/sipeed/driveclaw/pkg/confirm"
	"github.com/sipeed/driveclaw/pkg/logger"
)

const genericFailure = "Sorry, that didn't work. Please try again in a little while."

// summaryMaxFolderFiles caps how many files of a folder feed one summary.
const summaryMaxFolderFiles = 5

// Router dispatches parsed commands to the collaborators. It owns the
// confirmation flow for destructive commands and holds no other state.
type Router struct {
	registry     *command.Registry
	tracker      *confirm.Tracker
	store        FileStore
	summarizer   Summarizer
	recorder     Recorder
	timeout      time.Duration
	maxFileBytes int64
}

type RouterOptions struct {
	Registry     *command.Registry
	Tracker      *confirm.Tracker
	Store        FileStore
	Summarizer   Summarizer
	Recorder     Recorder
	Timeout      time.Duration
	MaxFileBytes int64
}

func NewRouter(opts RouterOptions) *Router {
	if opts.Registry == nil {
		opts.Registry = command.DefaultRegistry()
	}
	if opts.Tracker == nil {
		opts.Tracker = confirm.NewTracker(5 * time.Minute)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Router{
		registry:     opts.Registry,
		tracker:      opts.Tracker,
		store:        opts.Store,
		summarizer:   opts.Summarizer,
		recorder:     opts.Recorder,
		timeout:      opts.Timeout,
		maxFileBytes: opts.MaxFileBytes,
	}
}

func (r *Router) Registry() *command.Registry { return r.registry }

// Route executes one parsed command and returns the user-facing result.
// Collaborator failures come back as generic failure text; the underlying
// error never reaches the user.
func (r *Router) Route(ctx context.Context, cmd command.Command) Result {
	r.record(audit.Entry{
		EventType: audit.EventCommandReceived,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   cmd.Valid,
	})

	switch cmd.Kind {
	case command.KindInvalid:
		return Result{Success: false, Message: withHelpHint(cmd.ValidationError)}
	case command.KindHelp:
		return Result{Success: true, Message: r.registry.HelpText()}
	case command.KindList:
		return r.routeList(ctx, cmd)
	case command.KindDelete:
		return r.routeDelete(cmd)
	case command.KindConfirmDelete:
		return r.routeConfirmDelete(ctx, cmd)
	case command.KindMove:
		return r.routeMove(ctx, cmd)
	case command.KindSummary:
		return r.routeSummary(ctx, cmd)
	default:
		return Result{Success: false, Message: withHelpHint(fmt.Sprintf("Unsupported command %s.", cmd.Kind))}
	}
}

func (r *Router) routeList(ctx context.Context, cmd command.Command) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entries, err := r.store.List(ctx, cmd.Path)
	if err != nil {
		return r.collaboratorFailure(cmd, "list", err)
	}

	if len(entries) == 0 {
		return Result{Success: true, Message: fmt.Sprintf("%s is empty.", cmd.Path)}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Contents of %s:\n", cmd.Path)
	for _, e := range entries {
		if e.IsFolder {
			fmt.Fprintf(&b, "📁 %s/\n", e.Name)
		} else {
			fmt.Fprintf(&b, "%s (%s)\n", e.Name, formatSize(e.Size))
		}
	}
	return Result{Success: true, Message: strings.TrimRight(b.String(), "\n")}
}

func (r *Router) routeDelete(cmd command.Command) Result {
	pending := r.tracker.Request(cmd.SenderID, cmd.Path)
	window := pending.ExpiresAt.Sub(pending.CreatedAt)

	r.record(audit.Entry{
		EventType: audit.EventDeleteRequested,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   true,
	})

	return Result{
		Success: true,
		Message: fmt.Sprintf("You are about to delete %s. Send CONFIRM DELETE %s within %s to proceed.",
			cmd.Path, cmd.Path, formatWindow(window)),
	}
}

func (r *Router) routeConfirmDelete(ctx context.Context, cmd command.Command) Result {
	if err := r.tracker.Confirm(cmd.SenderID, cmd.Path); err != nil {
		r.record(audit.Entry{
			EventType: audit.EventCommandFailed,
			SenderID:  cmd.SenderID,
			Command:   cmd.RawText,
			Resource:  cmd.Path,
			Success:   false,
			Error:     err.Error(),
		})
		return Result{Success: false, Message: confirmationErrorMessage(err)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Delete(ctx, cmd.Path); err != nil {
		return r.collaboratorFailure(cmd, "delete", err)
	}

	r.record(audit.Entry{
		EventType: audit.EventDeleteConfirmed,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   true,
	})
	return Result{Success: true, Message: fmt.Sprintf("Deleted %s.", cmd.Path)}
}

func (r *Router) routeMove(ctx context.Context, cmd command.Command) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.store.Move(ctx, cmd.Path, cmd.DestPath); err != nil {
		return r.collaboratorFailure(cmd, "move", err)
	}

	r.record(audit.Entry{
		EventType: audit.EventFileMoved,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   true,
		Details:   map[string]any{"destination": cmd.DestPath},
	})
	return Result{Success: true, Message: fmt.Sprintf("Moved %s to %s.", cmd.Path, cmd.DestPath)}
}

func (r *Router) routeSummary(ctx context.Context, cmd command.Command) Result {
	if r.summarizer == nil {
		return Result{Success: false, Message: "Summaries are not configured on this bot."}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	entry, err := r.store.Stat(ctx, cmd.Path)
	if err != nil {
		return r.collaboratorFailure(cmd, "summary", err)
	}

	var name string
	var content []byte
	if entry.IsFolder {
		name, content, err = r.collectFolder(ctx, cmd.Path)
	} else {
		name = cmd.Path
		content, err = r.store.Fetch(ctx, cmd.Path, r.maxFileBytes)
	}
	if err != nil {
		// Fetch rejections (size ceiling, binary content) carry a message
		// the user can act on, unlike transport failures.
		if ctx.Err() != nil {
			return r.collaboratorFailure(cmd, "summary", err)
		}
		return Result{Success: false, Message: fmt.Sprintf("Cannot summarize %s: %v", cmd.Path, err)}
	}

	summary, err := r.summarizer.Summarize(ctx, name, content)
	if err != nil {
		return r.collaboratorFailure(cmd, "summary", err)
	}

	r.record(audit.Entry{
		EventType: audit.EventSummaryCreated,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   true,
	})
	return Result{Success: true, Message: summary}
}

// collectFolder gathers content from the first few fetchable files in a
// folder so a folder summary covers more than one document.
func (r *Router) collectFolder(ctx context.Context, path string) (string, []byte, error) {
	entries, err := r.store.List(ctx, path)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	collected := 0
	for _, e := range entries {
		if e.IsFolder || collected >= summaryMaxFolderFiles {
			continue
		}
		childPath := strings.TrimRight(path, "/") + "/" + e.Name
		content, err := r.store.Fetch(ctx, childPath, r.maxFileBytes)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- %s ---\n%s\n", e.Name, content)
		collected++
	}
	if collected == 0 {
		return "", nil, fmt.Errorf("no summarizable files in %s", path)
	}
	return path, []byte(b.String()), nil
}

func (r *Router) collaboratorFailure(cmd command.Command, op string, err error) Result {
	logger.ErrorCF("router", "Collaborator call failed", map[string]any{
		"op":     op,
		"sender": cmd.SenderID,
		"path":   cmd.Path,
		"error":  err.Error(),
	})
	r.record(audit.Entry{
		EventType: audit.EventCommandFailed,
		SenderID:  cmd.SenderID,
		Command:   cmd.RawText,
		Resource:  cmd.Path,
		Success:   false,
		Error:     err.Error(),
	})
	return Result{Success: false, Message: genericFailure}
}

// record appends to the audit log without blocking the reply.
func (r *Router) record(entry audit.Entry) {
	if r.recorder == nil {
		return
	}
	go func() {
		if err := r.recorder.Append(entry); err != nil {
			logger.WarnCF("router", "Audit append failed", map[string]any{
				"event": string(entry.EventType),
				"error": err.Error(),
			})
		}
	}()
}

func confirmationErrorMessage(err error) string {
	switch {
	case errors.Is(err, confirm.ErrNoPending):
		return "There is no deletion waiting for confirmation. Send DELETE <path> first."
	case errors.Is(err, confirm.ErrPathMismatch):
		return "That path does not match the pending deletion. Send DELETE again to restart confirmation."
	case errors.Is(err, confirm.ErrExpired):
		return "The confirmation window has passed. Send DELETE again to restart confirmation."
	default:
		return genericFailure
	}
}

func withHelpHint(msg string) string {
	if strings.Contains(msg, "HELP") {
		return msg
	}
	return msg + " Send HELP for the command reference."
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

func formatWindow(d time.Duration) string {
	d = d.Round(time.Second)
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	}
	return d.String()
}
