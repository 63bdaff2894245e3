package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(Config{
		Enabled:     true,
		LogFilePath: path,
		SecretKey:   []byte("test-secret"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestAppendWritesChainedEntries(t *testing.T) {
	l, path := newTestLogger(t)

	require.NoError(t, l.Append(Entry{
		EventType: EventDeleteRequested,
		SenderID:  "alice",
		Resource:  "/a/b.pdf",
		Success:   true,
	}))
	require.NoError(t, l.Append(Entry{
		EventType: EventDeleteConfirmed,
		SenderID:  "alice",
		Resource:  "/a/b.pdf",
		Success:   true,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(data)
	require.Len(t, lines, 2)

	var first, second Entry
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))

	assert.NotEmpty(t, first.ID)
	assert.NotEmpty(t, first.Hash)
	assert.Empty(t, first.PreviousHash)
	assert.Equal(t, first.Hash, second.PreviousHash)
	assert.False(t, first.Timestamp.IsZero())
}

func TestVerifyDetectsTampering(t *testing.T) {
	l, path := newTestLogger(t)

	for _, res := range []string{"/a.pdf", "/b.pdf", "/c.pdf"} {
		require.NoError(t, l.Append(Entry{
			EventType: EventDeleteConfirmed,
			SenderID:  "alice",
			Resource:  res,
			Success:   true,
		}))
	}

	n, err := l.Verify()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// Flip the resource of the middle entry.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := splitLines(data)
	var middle Entry
	require.NoError(t, json.Unmarshal(lines[1], &middle))
	middle.Resource = "/evil.pdf"
	tampered, err := json.Marshal(middle)
	require.NoError(t, err)
	out := append(append(append([]byte{}, lines[0]...), '\n'), tampered...)
	out = append(append(out, '\n'), lines[2]...)
	require.NoError(t, os.WriteFile(path, append(out, '\n'), 0o600))

	_, err = l.Verify()
	assert.Error(t, err)
}

func TestReopenResumesChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := Config{Enabled: true, LogFilePath: path, SecretKey: []byte("test-secret")}

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Append(Entry{EventType: EventFileMoved, SenderID: "alice", Success: true}))
	require.NoError(t, l.Close())

	l2, err := NewLogger(cfg)
	require.NoError(t, err)
	defer l2.Close()
	require.NoError(t, l2.Append(Entry{EventType: EventFileMoved, SenderID: "alice", Success: true}))

	n, err := l2.Verify()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEmptySecretKeyIsPersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := Config{Enabled: true, LogFilePath: path}

	l, err := NewLogger(cfg)
	require.NoError(t, err)
	require.NoError(t, l.Append(Entry{EventType: EventSummaryCreated, Success: true}))
	require.NoError(t, l.Close())

	l2, err := NewLogger(cfg)
	require.NoError(t, err)
	defer l2.Close()
	n, err := l2.Verify()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDisabledLoggerIsNoop(t *testing.T) {
	l, err := NewLogger(Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, l.Append(Entry{EventType: EventCommandFailed}))
	n, err := l.Verify()
	require.NoError(t, err)
	assert.Zero(t, n)
}
