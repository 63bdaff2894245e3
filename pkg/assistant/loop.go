// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package assistant

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/logger"
)

const senderQueueSize = 16

const rateLimitedReply = "You're sending commands too quickly. Give it a moment and try again."

// Loop consumes inbound messages and runs one parse→route→format cycle per
// message. Messages from one sender are processed in receipt order on a
// dedicated worker; different senders run concurrently.
type Loop struct {
	bus       *bus.MessageBus
	router    *Router
	formatter Formatter
	limits    config.RateLimitsConfig

	mu       sync.Mutex
	workers  map[string]chan bus.InboundMessage
	limiters map[string]*rate.Limiter
	wg       sync.WaitGroup
}

func NewLoop(msgBus *bus.MessageBus, router *Router, formatter Formatter, limits config.RateLimitsConfig) *Loop {
	return &Loop{
		bus:       msgBus,
		router:    router,
		formatter: formatter,
		limits:    limits,
		workers:   make(map[string]chan bus.InboundMessage),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight workers.
func (l *Loop) Run(ctx context.Context) error {
	logger.InfoC("assistant", "Assistant loop started")

	for {
		msg, ok := l.bus.ConsumeInbound(ctx)
		if !ok {
			break
		}
		l.dispatch(ctx, msg)
	}

	l.wg.Wait()
	logger.InfoC("assistant", "Assistant loop stopped")
	return nil
}

// dispatch hands msg to the sender's worker, spawning it on first use. A
// full queue drops the message rather than stalling every other sender.
func (l *Loop) dispatch(ctx context.Context, msg bus.InboundMessage) {
	key := senderKey(msg)

	l.mu.Lock()
	queue, ok := l.workers[key]
	if !ok {
		queue = make(chan bus.InboundMessage, senderQueueSize)
		l.workers[key] = queue
		l.wg.Add(1)
		go l.runWorker(ctx, key, queue)
	}
	l.mu.Unlock()

	select {
	case queue <- msg:
	default:
		logger.WarnCF("assistant", "Sender queue full, dropping message", map[string]any{
			"sender": key,
		})
	}
}

func (l *Loop) runWorker(ctx context.Context, key string, queue chan bus.InboundMessage) {
	defer l.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-queue:
			l.handle(ctx, key, msg)
		}
	}
}

func (l *Loop) handle(ctx context.Context, key string, msg bus.InboundMessage) {
	if l.limits.Enabled && !l.allow(key) {
		l.reply(msg, rateLimitedReply)
		return
	}

	cmd := l.router.Registry().Parse(msg.Content, key)

	logger.DebugCF("assistant", "Command parsed", map[string]any{
		"sender": key,
		"kind":   string(cmd.Kind),
	})

	result := l.router.Route(ctx, cmd)
	l.reply(msg, l.formatter.Format(result))
}

func (l *Loop) reply(msg bus.InboundMessage, content string) {
	if content == "" {
		return
	}
	l.bus.PublishOutbound(bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		Content: content,
	})
}

func (l *Loop) allow(key string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		perMinute := l.limits.MessagesPerMinute
		if perMinute <= 0 {
			perMinute = 30
		}
		burst := l.limits.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
}

// senderKey scopes sender identity to a channel so the same user ID on two
// platforms never shares confirmation state.
func senderKey(msg bus.InboundMessage) string {
	return msg.Channel + ":" + msg.SenderID
}
