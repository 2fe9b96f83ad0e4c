package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/l0lusurname/DonutShopAutoDeliver/internal/services/delivery/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *fakeSender) SendCommand(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSender) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
}

func waitFor(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestEnqueueWhileDisconnectedNeverDelivers(t *testing.T) {
	sender := &fakeSender{}
	queue := NewQueue(sender, time.Millisecond, nil)

	queue.Enqueue(domain.Command{Text: "/pay Steve 1m"})
	queue.Enqueue(domain.Command{Text: "/pay Alex 2m"})

	time.Sleep(20 * time.Millisecond)
	if sent := sender.snapshot(); len(sent) != 0 {
		t.Fatalf("expected no deliveries while disconnected, got %v", sent)
	}
	if queue.Pending() != 2 {
		t.Fatalf("expected 2 pending commands, got %d", queue.Pending())
	}
}

func TestConnectedTransitionDrainsInInsertionOrder(t *testing.T) {
	sender := &fakeSender{}
	queue := NewQueue(sender, time.Millisecond, nil)

	queue.Enqueue(domain.Command{Text: "first"})
	queue.Enqueue(domain.Command{Text: "second"})
	queue.Enqueue(domain.Command{Text: "third"})
	queue.OnConnected()

	waitFor(t, time.Second, func() bool { return queue.Pending() == 0 && len(sender.snapshot()) == 3 })

	sent := sender.snapshot()
	if sent[0] != "first" || sent[1] != "second" || sent[2] != "third" {
		t.Fatalf("expected FIFO order, got %v", sent)
	}
}

func TestEnqueueWhileConnectedDeliversImmediately(t *testing.T) {
	sender := &fakeSender{}
	queue := NewQueue(sender, time.Millisecond, nil)
	queue.OnConnected()

	queue.Enqueue(domain.Command{Text: "/pay Steve 1m"})

	waitFor(t, time.Second, func() bool { return len(sender.snapshot()) == 1 })
}

func TestDisconnectKeepsPendingForNextConnection(t *testing.T) {
	sender := &fakeSender{}
	queue := NewQueue(sender, 5*time.Millisecond, nil)

	queue.Enqueue(domain.Command{Text: "a"})
	queue.Enqueue(domain.Command{Text: "b"})
	queue.Enqueue(domain.Command{Text: "c"})

	queue.OnConnected()
	waitFor(t, time.Second, func() bool { return len(sender.snapshot()) >= 1 })
	queue.OnDisconnected()

	// Whatever was not yet handed over must survive the disconnect.
	delivered := len(sender.snapshot())
	remaining := queue.Pending()
	if delivered+remaining != 3 {
		t.Fatalf("lost commands: delivered %d, pending %d", delivered, remaining)
	}

	queue.OnConnected()
	waitFor(t, time.Second, func() bool { return queue.Pending() == 0 && len(sender.snapshot()) == 3 })

	sent := sender.snapshot()
	if sent[0] != "a" || sent[1] != "b" || sent[2] != "c" {
		t.Fatalf("expected order preserved across reconnect, got %v", sent)
	}
}

func TestOnDeliveredObservesCommands(t *testing.T) {
	sender := &fakeSender{}
	var mu sync.Mutex
	var observed []string
	queue := NewQueue(sender, time.Millisecond, func(command domain.Command) {
		mu.Lock()
		observed = append(observed, command.Text)
		mu.Unlock()
	})
	queue.OnConnected()

	queue.Enqueue(domain.Command{Text: "/pay Steve 1m"})

	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(observed) == 1
	})
}
