// Package notify delivers user notifications over the database inbox and
// mail channels. Delivery is asynchronous and best effort: a slow or broken
// channel never blocks the request that produced the message.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aussiebroadwan/vaultgate/internal/vaultgate/domain"
)

// Message is one notification for one user.
type Message struct {
	UserID   string
	Email    string
	Name     string
	Channels []domain.Channel
	Title    string
	Body     string
}

// Channel delivers a message over one medium.
type Channel interface {
	Name() domain.Channel
	Deliver(ctx context.Context, msg Message) error
}

const DefaultQueueSize = 256

// Dispatcher fans messages out to channels from a bounded queue. When the
// queue is full the message is dropped with a warning.
type Dispatcher struct {
	logger   *slog.Logger
	channels map[domain.Channel]Channel
	queue    chan Message

	mu      sync.RWMutex // guards stopped and the close of queue
	stopped bool
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher over the given channels. A message
// asking for a channel that was not registered skips it.
func NewDispatcher(logger *slog.Logger, queueSize int, channels ...Channel) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		logger:   logger,
		channels: make(map[domain.Channel]Channel),
		queue:    make(chan Message, queueSize),
	}
	for _, c := range channels {
		if c != nil {
			d.channels[c.Name()] = c
		}
	}
	return d
}

// Start launches workers goroutines draining the queue.
func (d *Dispatcher) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}
	for range workers {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("notification dispatcher started", "workers", workers, "channels", len(d.channels))
}

// Stop closes the queue and waits for queued messages to be delivered.
// Messages sent after Stop are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("notification dispatcher stopped")
}

// Send queues msg without blocking.
func (d *Dispatcher) Send(ctx context.Context, msg Message) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.stopped {
		d.logger.Warn("notification dispatcher stopped, message dropped", "user_id", msg.UserID, "title", msg.Title)
		return
	}
	select {
	case d.queue <- msg:
	default:
		d.logger.Warn("notification queue full, message dropped", "user_id", msg.UserID, "title", msg.Title)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(context.Background(), msg)
	}
}

// deliver sends msg on each requested channel. Bodies are never logged;
// they may hold a one-time code.
func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	for _, name := range msg.Channels {
		c, ok := d.channels[name]
		if !ok {
			d.logger.Debug("notification channel disabled", "channel", name, "user_id", msg.UserID)
			continue
		}
		if err := c.Deliver(ctx, msg); err != nil {
			d.logger.Error("notification delivery failed",
				"channel", name,
				"user_id", msg.UserID,
				"title", msg.Title,
				"err", err,
			)
			continue
		}
		d.logger.Debug("notification delivered", "channel", name, "user_id", msg.UserID, "title", msg.Title)
	}
}
