package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/driveclaw/pkg/audit"
	"github.com/sipeed/driveclaw/pkg/confirm"
	"github.com/sipeed/driveclaw/pkg/drive"
)

type fakeStore struct {
	mu      sync.Mutex
	deletes []string
	moves   [][2]string
	listing map[string][]drive.Entry
	files   map[string][]byte
	failAll error
}

func (f *fakeStore) List(_ context.Context, path string) ([]drive.Entry, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	entries, ok := f.listing[path]
	if !ok {
		return nil, drive.ErrNotFound
	}
	return entries, nil
}

func (f *fakeStore) Delete(_ context.Context, path string) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, path)
	return nil
}

func (f *fakeStore) Move(_ context.Context, src, dst string) error {
	if f.failAll != nil {
		return f.failAll
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.moves = append(f.moves, [2]string{src, dst})
	return nil
}

func (f *fakeStore) Stat(_ context.Context, path string) (drive.Entry, error) {
	if f.failAll != nil {
		return drive.Entry{}, f.failAll
	}
	if _, ok := f.listing[path]; ok {
		return drive.Entry{Name: path, IsFolder: true}, nil
	}
	if _, ok := f.files[path]; ok {
		return drive.Entry{Name: path}, nil
	}
	return drive.Entry{}, drive.ErrNotFound
}

func (f *fakeStore) Fetch(_ context.Context, path string, limit int64) ([]byte, error) {
	if f.failAll != nil {
		return nil, f.failAll
	}
	content, ok := f.files[path]
	if !ok {
		return nil, drive.ErrNotFound
	}
	if limit > 0 && int64(len(content)) > limit {
		return nil, errors.New("above the byte limit")
	}
	return content, nil
}

type fakeSummarizer struct {
	lastName    string
	lastContent []byte
	err         error
}

func (f *fakeSummarizer) Summarize(_ context.Context, name string, content []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.lastName = name
	f.lastContent = content
	return "summary of " + name, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (f *fakeRecorder) Append(entry audit.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeRecorder) count(et audit.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if e.EventType == et {
			n++
		}
	}
	return n
}

type routerFixture struct {
	router     *Router
	store      *fakeStore
	summarizer *fakeSummarizer
	recorder   *fakeRecorder
	tracker    *confirm.Tracker
	clock      *time.Time
}

func newFixture(t *testing.T) *routerFixture {
	t.Helper()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := confirm.NewTracker(5 * time.Minute)
	tracker.SetClock(func() time.Time { return now })

	store := &fakeStore{
		listing: map[string][]drive.Entry{
			"/reports": {
				{Name: "archive", IsFolder: true},
				{Name: "q3.pdf", Size: 2048},
			},
		},
		files: map[string][]byte{
			"/reports/q3.pdf":    []byte("quarterly numbers"),
			"/reports/notes.txt": []byte("some notes"),
		},
	}
	summarizer := &fakeSummarizer{}
	recorder := &fakeRecorder{}

	return &routerFixture{
		router: NewRouter(RouterOptions{
			Tracker:      tracker,
			Store:        store,
			Summarizer:   summarizer,
			Recorder:     recorder,
			Timeout:      5 * time.Second,
			MaxFileBytes: 1024,
		}),
		store:      store,
		summarizer: summarizer,
		recorder:   recorder,
		tracker:    tracker,
		clock:      &now,
	}
}

func (fx *routerFixture) route(t *testing.T, sender, text string) Result {
	t.Helper()
	cmd := fx.router.Registry().Parse(text, sender)
	return fx.router.Route(context.Background(), cmd)
}

func TestDeleteThenConfirmInvokesDeleteOnce(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "DELETE /reports/q3.pdf")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "CONFIRM DELETE /reports/q3.pdf")
	assert.Empty(t, fx.store.deletes, "delete must not run before confirmation")

	res = fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")
	require.True(t, res.Success)
	assert.Equal(t, []string{"/reports/q3.pdf"}, fx.store.deletes)

	// The entry was consumed; confirming again is rejected.
	res = fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")
	assert.False(t, res.Success)
	assert.Equal(t, []string{"/reports/q3.pdf"}, fx.store.deletes)
}

func TestConfirmWithMismatchedPath(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	res := fx.route(t, "alice", "CONFIRM DELETE /reports/notes.txt")

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "does not match")
	assert.Empty(t, fx.store.deletes)
}

func TestConfirmWithoutPriorDelete(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no deletion waiting")
	assert.Empty(t, fx.store.deletes)
}

func TestConfirmAfterExpiry(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	*fx.clock = fx.clock.Add(6 * time.Minute)

	res := fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "window has passed")
	assert.Empty(t, fx.store.deletes)
}

func TestSecondDeleteReplacesFirst(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	fx.route(t, "alice", "DELETE /reports/notes.txt")

	res := fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "does not match")

	res = fx.route(t, "alice", "CONFIRM DELETE /reports/notes.txt")
	require.True(t, res.Success)
	assert.Equal(t, []string{"/reports/notes.txt"}, fx.store.deletes)
}

func TestHelpIgnoresTrackerState(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	res := fx.route(t, "alice", "HELP")

	require.True(t, res.Success)
	assert.Contains(t, res.Message, "LIST <path>")

	// The pending confirmation is untouched by HELP.
	res = fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")
	assert.True(t, res.Success)
}

func TestInvalidCommandCarriesHelpHint(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "FROB /x")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Unknown command")
	assert.Contains(t, res.Message, "HELP")
}

func TestListFormatsEntries(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "LIST /reports")
	require.True(t, res.Success)
	assert.Contains(t, res.Message, "📁 archive/")
	assert.Contains(t, res.Message, "q3.pdf (2.0 KB)")
}

func TestCollaboratorErrorIsOpaque(t *testing.T) {
	fx := newFixture(t)
	fx.store.failAll = errors.New("drive API: status 500: internal wiring exposed")

	res := fx.route(t, "alice", "LIST /reports")
	assert.False(t, res.Success)
	assert.Equal(t, genericFailure, res.Message)
	assert.NotContains(t, res.Message, "wiring")
}

func TestMove(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "MOVE /reports/q3.pdf /reports/archive")
	require.True(t, res.Success)
	assert.Equal(t, [][2]string{{"/reports/q3.pdf", "/reports/archive"}}, fx.store.moves)
}

func TestSummaryOfFile(t *testing.T) {
	fx := newFixture(t)

	res := fx.route(t, "alice", "SUMMARY /reports/q3.pdf")
	require.True(t, res.Success)
	assert.Equal(t, "summary of /reports/q3.pdf", res.Message)
	assert.Equal(t, []byte("quarterly numbers"), fx.summarizer.lastContent)
}

func TestSummaryOfFolderCollectsFiles(t *testing.T) {
	fx := newFixture(t)
	fx.store.listing["/reports"] = []drive.Entry{
		{Name: "q3.pdf", Size: 17},
		{Name: "notes.txt", Size: 10},
	}

	res := fx.route(t, "alice", "SUMMARY /reports")
	require.True(t, res.Success)
	assert.Contains(t, string(fx.summarizer.lastContent), "quarterly numbers")
	assert.Contains(t, string(fx.summarizer.lastContent), "some notes")
}

func TestSummaryRejectsOversizedFile(t *testing.T) {
	fx := newFixture(t)
	fx.store.files["/reports/big.bin"] = make([]byte, 4096)

	res := fx.route(t, "alice", "SUMMARY /reports/big.bin")
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Cannot summarize")
}

func TestDeleteFlowIsAudited(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	fx.route(t, "alice", "CONFIRM DELETE /reports/q3.pdf")

	require.Eventually(t, func() bool {
		return fx.recorder.count(audit.EventCommandReceived) == 2 &&
			fx.recorder.count(audit.EventDeleteRequested) == 1 &&
			fx.recorder.count(audit.EventDeleteConfirmed) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSendersDoNotShareConfirmations(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	res := fx.route(t, "bob", "CONFIRM DELETE /reports/q3.pdf")

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no deletion waiting")
	assert.Empty(t, fx.store.deletes)
}

func TestConfirmKeywordParsing(t *testing.T) {
	fx := newFixture(t)

	fx.route(t, "alice", "DELETE /reports/q3.pdf")
	res := fx.route(t, "alice", "confirm delete /reports/q3.pdf")
	require.True(t, res.Success, "verb matching must be case-insensitive: %s", res.Message)
	assert.Equal(t, []string{"/reports/q3.pdf"}, fx.store.deletes)
}

func TestUnknownTextNeverPanics(t *testing.T) {
	fx := newFixture(t)
	for _, text := range []string{"", "   ", "DELETE", "MOVE /a", "💥", strings.Repeat("x", 10000)} {
		res := fx.route(t, "alice", text)
		assert.False(t, res.Success, "input %q", text)
	}
}
