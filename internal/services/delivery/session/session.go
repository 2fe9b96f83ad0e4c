// Package session supervises the connection to the game server and exposes
// its state transitions to observers.
//
// The session never owns gameplay semantics; it only keeps a transport alive
// and relays connect/disconnect events so the dispatch queue can react.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNotConnected indicates a send was attempted without a live connection.
var ErrNotConnected = errors.New("game session is not connected")

// Observer receives connection state transitions.
type Observer interface {
	OnConnected()
	OnDisconnected()
}

// Conn is one live connection to the game server.
type Conn interface {
	// SendCommand writes one instruction to the server.
	SendCommand(ctx context.Context, text string) error
	// Wait blocks until the connection drops or ctx ends.
	Wait(ctx context.Context) error
	Close() error
}

// Dialer establishes game server connections.
type Dialer interface {
	DialGame(ctx context.Context) (Conn, error)
}

// Session owns the connection lifecycle: dial with exponential backoff,
// relay state transitions, redial after drops. It never initiates work on
// its own; commands arrive through SendCommand.
type Session struct {
	dialer       Dialer
	retryInitial time.Duration
	retryMax     time.Duration

	mu        sync.RWMutex
	conn      Conn
	observers []Observer
}

// New builds a disconnected session around dialer.
func New(dialer Dialer) *Session {
	return &Session{
		dialer:       dialer,
		retryInitial: 500 * time.Millisecond,
		retryMax:     30 * time.Second,
	}
}

// Subscribe registers an observer for state transitions. Observers must be
// registered before Run starts.
func (s *Session) Subscribe(observer Observer) {
	if observer == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, observer)
	s.mu.Unlock()
}

// Ready reports whether a connection is currently live.
func (s *Session) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn != nil
}

// SendCommand hands one instruction to the live connection.
func (s *Session) SendCommand(ctx context.Context, text string) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendCommand(ctx, text)
}

// Run keeps the session connected until ctx ends. Each cycle dials with
// exponential backoff, announces the connection, then blocks until the
// connection drops and announces the disconnect before redialing.
func (s *Session) Run(ctx context.Context) error {
	for {
		conn, err := backoff.Retry(ctx, func() (Conn, error) {
			conn, dialErr := s.dialer.DialGame(ctx)
			if dialErr != nil {
				log.Printf("dial game session: %v", dialErr)
				return nil, dialErr
			}
			return conn, nil
		}, backoff.WithBackOff(s.newBackOff()))
		if err != nil {
			return err
		}

		s.setConn(conn)
		s.notifyConnected()
		log.Printf("game session connected")

		waitErr := conn.Wait(ctx)
		s.setConn(nil)
		_ = conn.Close()
		s.notifyDisconnected()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("game session dropped: %v; reconnecting", waitErr)
	}
}

func (s *Session) newBackOff() *backoff.ExponentialBackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.retryInitial
	policy.MaxInterval = s.retryMax
	return policy
}

func (s *Session) setConn(conn Conn) {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
}

func (s *Session) notifyConnected() {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, observer := range observers {
		observer.OnConnected()
	}
}

func (s *Session) notifyDisconnected() {
	s.mu.RLock()
	observers := append([]Observer(nil), s.observers...)
	s.mu.RUnlock()
	for _, observer := range observers {
		observer.OnDisconnected()
	}
}
