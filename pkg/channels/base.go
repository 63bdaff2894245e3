// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package channels

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/logger"
)

// Channel is one messaging transport (WhatsApp, Telegram, WebSocket).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg bus.OutboundMessage) error
	IsRunning() bool
}

// BaseChannel carries the shared channel plumbing: allow-list checks and
// publishing inbound messages to the bus.
type BaseChannel struct {
	name      string
	bus       *bus.MessageBus
	allowFrom []string
	running   atomic.Bool
}

func NewBaseChannel(name string, msgBus *bus.MessageBus, allowFrom []string) *BaseChannel {
	return &BaseChannel{
		name:      name,
		bus:       msgBus,
		allowFrom: allowFrom,
	}
}

func (b *BaseChannel) Name() string    { return b.name }
func (b *BaseChannel) IsRunning() bool { return b.running.Load() }

func (b *BaseChannel) setRunning(v bool) { b.running.Store(v) }

// IsAllowed reports whether senderID passes the allow-list. An empty list
// allows everyone. Sender IDs may be compound ("12345|alice"); an allow
// entry matches the whole ID or any of its parts, and usernames may be
// written with a leading @.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if len(b.allowFrom) == 0 {
		return true
	}

	senderParts := strings.Split(senderID, "|")
	for _, allowed := range b.allowFrom {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		if allowed == senderID {
			return true
		}
		bare := strings.TrimPrefix(allowed, "@")
		for _, part := range senderParts {
			if bare == part {
				return true
			}
		}
		// Legacy compound allow entries still match a bare numeric ID.
		for _, part := range strings.Split(allowed, "|") {
			if part == senderID {
				return true
			}
		}
	}
	return false
}

// HandleMessage publishes one inbound message after the allow-list check.
func (b *BaseChannel) HandleMessage(senderID, chatID, content string, metadata map[string]string) {
	if !b.IsAllowed(senderID) {
		logger.DebugCF(b.name, "Message rejected by allowlist", map[string]any{
			"sender": senderID,
		})
		return
	}
	if b.bus == nil {
		return
	}
	b.bus.PublishInbound(bus.InboundMessage{
		Channel:  b.name,
		SenderID: senderID,
		ChatID:   chatID,
		Content:  content,
		Metadata: metadata,
	})
}
