package channels

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/logger"
)

const telegramMaxMessageLength = 4096

// TelegramChannel receives commands over Telegram long polling.
type TelegramChannel struct {
	*BaseChannel
	bot    *telego.Bot
	config config.TelegramConfig
	mu     sync.Mutex
}

func NewTelegramChannel(cfg config.TelegramConfig, msgBus *bus.MessageBus) (*TelegramChannel, error) {
	bot, err := telego.NewBot(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	base := NewBaseChannel("telegram", msgBus, cfg.AllowFrom)

	return &TelegramChannel{
		BaseChannel: base,
		bot:         bot,
		config:      cfg,
	}, nil
}

func (c *TelegramChannel) Start(ctx context.Context) error {
	logger.InfoC("telegram", "Starting Telegram bot (polling mode)...")

	updates, err := c.bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout: 30,
	})
	if err != nil {
		return fmt.Errorf("failed to start long polling: %w", err)
	}

	c.setRunning(true)
	logger.InfoCF("telegram", "Telegram bot connected", map[string]any{
		"username": c.bot.Username(),
	})

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					logger.WarnC("telegram", "Updates channel closed")
					c.setRunning(false)
					return
				}
				if update.Message != nil {
					c.handleMessage(update)
				}
			}
		}
	}()

	return nil
}

func (c *TelegramChannel) Stop(ctx context.Context) error {
	c.setRunning(false)
	return nil
}

func (c *TelegramChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("telegram bot not running")
	}

	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	for _, chunk := range splitMessage(msg.Content, telegramMaxMessageLength) {
		if _, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), chunk)); err != nil {
			return fmt.Errorf("failed to send message: %w", err)
		}
	}
	return nil
}

func (c *TelegramChannel) handleMessage(update telego.Update) {
	message := update.Message
	user := message.From
	if user == nil || message.Text == "" {
		return
	}

	userID := fmt.Sprintf("%d", user.ID)
	senderID := userID
	if user.Username != "" {
		senderID = fmt.Sprintf("%s|%s", userID, user.Username)
	}

	chatID := fmt.Sprintf("%d", message.Chat.ID)

	metadata := map[string]string{
		"message_id": strconv.Itoa(message.MessageID),
	}
	if user.Username != "" {
		metadata["username"] = user.Username
	}

	logger.DebugCF("telegram", "Message received", map[string]any{
		"sender": senderID,
		"chat":   chatID,
		"len":    len(message.Text),
	})

	c.HandleMessage(senderID, chatID, message.Text, metadata)
}
