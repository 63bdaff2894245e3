package assistant

import (
	"context"

	"github.com/sipeed/driveclaw/pkg/audit"
	"github.com/sipeed/driveclaw/pkg/drive"
)

// FileStore is the file storage collaborator. The Drive client implements
// it; tests inject fakes.
type FileStore interface {
	List(ctx context.Context, path string) ([]drive.Entry, error)
	Delete(ctx context.Context, path string) error
	Move(ctx context.Context, src, dst string) error
	Stat(ctx context.Context, path string) (drive.Entry, error)
	Fetch(ctx context.Context, path string, limit int64) ([]byte, error)
}

// Summarizer turns file content into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, name string, content []byte) (string, error)
}

// Recorder receives audit entries. Appends are best effort and must never
// block a user-facing reply.
type Recorder interface {
	Append(entry audit.Entry) error
}

// Result is the outcome of executing one command.
type Result struct {
	Success bool
	Message string
}
