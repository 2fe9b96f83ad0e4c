// Package dispatch queues outbound game commands across session reconnects.
package dispatch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
)

// DefaultCommandDelay throttles outbound instructions to respect game-server
// chat rate limits.
const DefaultCommandDelay = 500 * time.Millisecond

// Sender delivers one instruction to the live game session. Delivery is
// fire-and-forget: once handed over, a command is never rolled back.
type Sender interface {
	SendCommand(ctx context.Context, text string) error
}

// Queue is the ordered pending list of commands awaiting delivery. Commands
// drain only while the session is connected and survive disconnects in
// insertion order. No maximum length is enforced; unbounded growth while
// disconnected is an accepted operational risk.
type Queue struct {
	sender      Sender
	delay       time.Duration
	onDelivered func(command domain.Command)

	mu        sync.Mutex
	pending   []domain.Command
	connected bool
	draining  bool
}

// NewQueue builds a disconnected queue draining into sender. A non-positive
// delay falls back to DefaultCommandDelay. onDelivered, when set, observes
// each command after hand-off.
func NewQueue(sender Sender, delay time.Duration, onDelivered func(command domain.Command)) *Queue {
	if delay <= 0 {
		delay = DefaultCommandDelay
	}
	return &Queue{
		sender:      sender,
		delay:       delay,
		onDelivered: onDelivered,
	}
}

// Enqueue appends a command to the tail of the pending list and starts a
// drain when the session is connected.
func (q *Queue) Enqueue(command domain.Command) {
	q.mu.Lock()
	q.pending = append(q.pending, command)
	start := q.connected && !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// OnConnected flips the queue to the connected state and drains any
// commands queued while disconnected.
func (q *Queue) OnConnected() {
	q.mu.Lock()
	q.connected = true
	start := len(q.pending) > 0 && !q.draining
	if start {
		q.draining = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// OnDisconnected stops draining. A command already handed to the sender is
// not rolled back; everything still pending stays queued for the next
// connection.
func (q *Queue) OnDisconnected() {
	q.mu.Lock()
	q.connected = false
	q.mu.Unlock()
}

// Pending reports the number of commands awaiting delivery.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// drain pops and delivers commands one at a time until the list empties or
// the session disconnects. Only one drain runs at a time.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if !q.connected || len(q.pending) == 0 {
			q.draining = false
			q.mu.Unlock()
			return
		}
		command := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.sender.SendCommand(context.Background(), command.Text); err != nil {
			log.Printf("send command %q: %v", command.Text, err)
		} else if q.onDelivered != nil {
			q.onDelivered(command)
		}

		time.Sleep(q.delay)
	}
}
