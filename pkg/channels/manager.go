// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package channels

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/logger"
)

const (
	outboundQueueSize = 100
	sendTimeout       = 30 * time.Second
)

type channelWorker struct {
	ch    Channel
	queue chan bus.OutboundMessage
}

// Manager owns the enabled channels: it starts and stops them and fans
// outbound bus messages out to per-channel send workers.
type Manager struct {
	channels map[string]Channel
	workers  map[string]*channelWorker
	bus      *bus.MessageBus
	cancel   context.CancelFunc
	mu       sync.RWMutex
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		workers:  make(map[string]*channelWorker),
		bus:      messageBus,
	}

	if err := m.initChannels(cfg); err != nil {
		return nil, err
	}
	if len(m.channels) == 0 {
		return nil, fmt.Errorf("no channels enabled; enable at least one channel in the config")
	}
	return m, nil
}

func (m *Manager) initChannels(cfg *config.Config) error {
	logger.InfoC("channels", "Initializing channel manager")

	if cfg.Channels.WhatsApp.Enabled {
		ch, err := NewWhatsmeowChannel(cfg.Channels.WhatsApp, m.bus)
		if err != nil {
			return fmt.Errorf("whatsapp channel: %w", err)
		}
		m.register(ch)
	}

	if cfg.Channels.Telegram.Enabled && cfg.Channels.Telegram.Token != "" {
		ch, err := NewTelegramChannel(cfg.Channels.Telegram, m.bus)
		if err != nil {
			return fmt.Errorf("telegram channel: %w", err)
		}
		m.register(ch)
	}

	if cfg.Channels.WebSocket.Enabled {
		ch, err := NewWebSocketChannel(cfg.Channels.WebSocket, m.bus)
		if err != nil {
			return fmt.Errorf("websocket channel: %w", err)
		}
		m.register(ch)
	}

	return nil
}

func (m *Manager) register(ch Channel) {
	m.channels[ch.Name()] = ch
	m.workers[ch.Name()] = &channelWorker{
		ch:    ch,
		queue: make(chan bus.OutboundMessage, outboundQueueSize),
	}
	logger.InfoCF("channels", "Channel enabled", map[string]any{
		"channel": ch.Name(),
	})
}

// StartAll starts every channel and the outbound dispatcher.
func (m *Manager) StartAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	for name, ch := range m.channels {
		if err := ch.Start(ctx); err != nil {
			cancel()
			return fmt.Errorf("failed to start channel %s: %w", name, err)
		}
	}

	for _, w := range m.workers {
		go m.runWorker(ctx, w)
	}
	go m.dispatchOutbound(ctx)

	return nil
}

// StopAll stops the dispatcher and every channel.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.mu.Unlock()

	for name, ch := range m.channels {
		if err := ch.Stop(ctx); err != nil {
			logger.WarnCF("channels", "Channel stop failed", map[string]any{
				"channel": name,
				"error":   err.Error(),
			})
		}
	}
}

// dispatchOutbound routes outbound bus messages to the matching channel
// worker. A full worker queue drops the message so one slow channel never
// blocks the rest.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	for {
		msg, ok := m.bus.SubscribeOutbound(ctx)
		if !ok {
			return
		}

		m.mu.RLock()
		worker, found := m.workers[msg.Channel]
		m.mu.RUnlock()

		if !found {
			logger.WarnCF("channels", "Outbound message for unknown channel", map[string]any{
				"channel": msg.Channel,
			})
			continue
		}

		select {
		case worker.queue <- msg:
		default:
			logger.WarnCF("channels", "Outbound queue full, dropping message", map[string]any{
				"channel": msg.Channel,
			})
		}
	}
}

func (m *Manager) runWorker(ctx context.Context, w *channelWorker) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.queue:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if err := w.ch.Send(sendCtx, msg); err != nil {
				logger.ErrorCF("channels", "Send failed", map[string]any{
					"channel": w.ch.Name(),
					"chat":    msg.ChatID,
					"error":   err.Error(),
				})
			}
			cancel()
		}
	}
}

// Statuses returns the running state of each configured channel.
func (m *Manager) Statuses() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.channels))
	for name, ch := range m.channels {
		out[name] = ch.IsRunning()
	}
	return out
}
