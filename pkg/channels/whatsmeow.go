package channels

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	_ "modernc.org/sqlite"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/logger"
)

const whatsappMaxMessageLength = 4096

// WhatsmeowChannel connects directly to WhatsApp through the multi-device
// protocol. The device pairing lives in a local sqlite store; run
// `driveclaw whatsapp link` before first use.
type WhatsmeowChannel struct {
	*BaseChannel
	client    *whatsmeow.Client
	config    config.WhatsAppConfig
	container *sqlstore.Container
	mu        sync.Mutex
	cancel    context.CancelFunc
}

func NewWhatsmeowChannel(cfg config.WhatsAppConfig, msgBus *bus.MessageBus) (*WhatsmeowChannel, error) {
	base := NewBaseChannel("whatsapp", msgBus, cfg.AllowFrom)

	return &WhatsmeowChannel{
		BaseChannel: base,
		config:      cfg,
	}, nil
}

func (c *WhatsmeowChannel) Start(ctx context.Context) error {
	dbPath := config.ExpandHome(c.config.DBPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create db directory: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite",
		fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", dbPath), waLog.Noop)
	if err != nil {
		return fmt.Errorf("failed to open whatsmeow db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	if deviceStore.ID == nil {
		return fmt.Errorf("no linked WhatsApp device found; run 'driveclaw whatsapp link' first")
	}

	client := whatsmeow.NewClient(deviceStore, waLog.Noop)
	c.client = client

	client.AddEventHandler(c.eventHandler)

	if err := client.Connect(); err != nil {
		return fmt.Errorf("failed to connect whatsmeow: %w", err)
	}

	_, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.setRunning(true)
	logger.InfoC("whatsapp", "WhatsApp channel connected")
	return nil
}

func (c *WhatsmeowChannel) Stop(ctx context.Context) error {
	logger.InfoC("whatsapp", "Stopping WhatsApp channel...")

	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.Disconnect()
		c.client = nil
	}

	c.setRunning(false)
	return nil
}

func (c *WhatsmeowChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()

	if client == nil {
		return fmt.Errorf("whatsmeow client not connected")
	}

	jid, err := types.ParseJID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	for _, chunk := range splitMessage(msg.Content, whatsappMaxMessageLength) {
		_, err := client.SendMessage(ctx, jid, &waE2E.Message{
			Conversation: proto.String(chunk),
		})
		if err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

func (c *WhatsmeowChannel) eventHandler(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleIncomingMessage(v)
	case *events.Connected:
		logger.InfoC("whatsapp", "WhatsApp connected")
	case *events.Disconnected:
		logger.WarnC("whatsapp", "WhatsApp disconnected")
	case *events.LoggedOut:
		logger.ErrorCF("whatsapp", "WhatsApp logged out", map[string]any{
			"reason": v.Reason,
		})
		c.setRunning(false)
	}
}

func (c *WhatsmeowChannel) handleIncomingMessage(msg *events.Message) {
	// Status broadcasts and echoes of our own messages are not commands.
	if msg.Info.Chat.User == "status" || msg.Info.IsFromMe {
		return
	}

	senderID := msg.Info.Sender.User
	chatID := msg.Info.Chat.String()

	content := ""
	if msg.Message.GetConversation() != "" {
		content = msg.Message.GetConversation()
	} else if msg.Message.GetExtendedTextMessage() != nil {
		content = msg.Message.GetExtendedTextMessage().GetText()
	}
	if content == "" {
		return
	}

	metadata := map[string]string{
		"message_id": msg.Info.ID,
	}
	if msg.Info.PushName != "" {
		metadata["push_name"] = msg.Info.PushName
	}

	logger.DebugCF("whatsapp", "Message received", map[string]any{
		"sender": senderID,
		"chat":   chatID,
		"len":    len(content),
	})

	c.HandleMessage(senderID, chatID, content, metadata)
}
