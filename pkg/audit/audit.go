// Package audit records every executed file command as a tamper-evident
// JSON-lines log. Entries are HMAC-chained so edits or deletions in the
// middle of the log are detectable.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an audit event.
type EventType string

const (
	EventCommandReceived EventType = "command_received"
	EventDeleteRequested EventType = "delete_requested"
	EventDeleteConfirmed EventType = "delete_confirmed"
	EventFileMoved       EventType = "file_moved"
	EventSummaryCreated  EventType = "summary_created"
	EventCommandFailed   EventType = "command_failed"
)

// Entry is a single audit record.
type Entry struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    EventType      `json:"event_type"`
	SenderID     string         `json:"sender_id,omitempty"`
	Channel      string         `json:"channel,omitempty"`
	Command      string         `json:"command,omitempty"`
	Resource     string         `json:"resource,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	Hash         string         `json:"hash,omitempty"`
	PreviousHash string         `json:"previous_hash,omitempty"`
}

// Config holds audit logger settings.
type Config struct {
	Enabled     bool
	LogFilePath string
	SecretKey   []byte
}

// Logger appends entries to the audit log file.
type Logger struct {
	config   Config
	file     *os.File
	mu       sync.Mutex
	lastHash string
}

func NewLogger(config Config) (*Logger, error) {
	l := &Logger{config: config}

	if !config.Enabled {
		return l, nil
	}

	dir := filepath.Dir(config.LogFilePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	if len(l.config.SecretKey) == 0 {
		key, err := loadOrCreateSecretKey(config.LogFilePath + ".key")
		if err != nil {
			return nil, fmt.Errorf("failed to load audit secret key: %w", err)
		}
		l.config.SecretKey = key
	}

	// Resume the chain from the last entry so restarts stay verifiable.
	if data, err := os.ReadFile(config.LogFilePath); err == nil {
		lines := splitLines(data)
		if len(lines) > 0 {
			var last Entry
			if err := json.Unmarshal(lines[len(lines)-1], &last); err == nil {
				l.lastHash = last.Hash
			}
		}
	}

	file, err := os.OpenFile(config.LogFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file

	return l, nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Append records one entry. The entry's ID, timestamp and hash chain are
// filled in here.
func (l *Logger) Append(entry Entry) error {
	if !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	entry.PreviousHash = l.lastHash
	entry.Hash = l.computeHash(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	if l.file != nil {
		if _, err := l.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}
	}

	l.lastHash = entry.Hash
	return nil
}

func (l *Logger) computeHash(entry Entry) string {
	signData := fmt.Sprintf("%s|%s|%s|%s|%s|%v|%s",
		entry.ID,
		entry.Timestamp.Format(time.RFC3339Nano),
		entry.EventType,
		entry.SenderID,
		entry.Resource,
		entry.Success,
		entry.PreviousHash,
	)

	h := hmac.New(sha256.New, l.config.SecretKey)
	h.Write([]byte(signData))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// loadOrCreateSecretKey keeps the HMAC key alongside the log so chains
// written by earlier runs stay verifiable.
func loadOrCreateSecretKey(path string) ([]byte, error) {
	if data, err := os.ReadFile(path); err == nil {
		key, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err == nil && len(key) > 0 {
			return key, nil
		}
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)+"\n"), 0o600); err != nil {
		return nil, err
	}
	return key, nil
}

// Verify re-reads the log file and checks the hash chain. It returns the
// number of verified entries, or an error naming the first broken link.
func (l *Logger) Verify() (int, error) {
	l.mu.Lock()
	path := l.config.LogFilePath
	key := l.config.SecretKey
	l.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	verifier := &Logger{config: Config{Enabled: true, SecretKey: key}}
	count := 0
	prevHash := ""
	for _, line := range splitLines(data) {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return count, fmt.Errorf("entry %d: malformed JSON: %w", count+1, err)
		}
		if entry.PreviousHash != prevHash {
			return count, fmt.Errorf("entry %d (%s): chain broken", count+1, entry.ID)
		}
		want := entry.Hash
		entry.Hash = ""
		if verifier.computeHash(entry) != want {
			return count, fmt.Errorf("entry %d (%s): hash mismatch", count+1, entry.ID)
		}
		prevHash = want
		count++
	}
	return count, nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
