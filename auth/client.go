package auth

import (
	"sync"
	"time"
)

// pollInterval is the slice WaitForResponse polls at; short enough to
// notice transport death promptly without a raw condition variable
// shared across the reader and caller goroutines.
const pollInterval = 100 * time.Millisecond

// AuthEvent is a single-shot latch: Set may be called any number of
// times (only the first has effect) from the transport's reader
// goroutine; IsSet and WaitForResponse read it from the blocking
// caller. It is the
// completion signal a blocked Client.WaitForResponse call waits on.
type AuthEvent struct {
	once sync.Once
	ch   chan struct{}
}

// NewAuthEvent returns a fresh, unset AuthEvent.
func NewAuthEvent() *AuthEvent {
	return &AuthEvent{ch: make(chan struct{})}
}

// Set marks the event as fired. Idempotent.
func (e *AuthEvent) Set() {
	e.once.Do(func() { close(e.ch) })
}

// IsSet reports whether Set has been called.
func (e *AuthEvent) IsSet() bool {
	select {
	case <-e.ch:
		return true
	default:
		return false
	}
}

// Client is the blocking, synchronous facade a caller drives.
// Each Auth* method arms the underlying
// AuthHandler and triggers SSH_MSG_SERVICE_REQUEST without waiting;
// WaitForResponse blocks until the attempt reaches a terminal state.
type Client struct {
	handler *AuthHandler
}

// NewClient wraps handler (which must be in Client mode) in the
// blocking facade.
func NewClient(handler *AuthHandler) *Client {
	return &Client{handler: handler}
}

// AuthNone arms a "none" attempt and returns the event to pass to
// WaitForResponse.
func (c *Client) AuthNone(username string) (*AuthEvent, error) {
	ev := NewAuthEvent()
	if err := c.handler.ArmNone(username, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// AuthPassword arms a "password" attempt.
func (c *Client) AuthPassword(username, password string) (*AuthEvent, error) {
	ev := NewAuthEvent()
	if err := c.handler.ArmPassword(username, password, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// AuthPublicKey arms a "publickey" attempt signed by signer.
func (c *Client) AuthPublicKey(username string, signer Signer) (*AuthEvent, error) {
	ev := NewAuthEvent()
	if err := c.handler.ArmPublicKey(username, signer, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// AuthInteractive arms a "keyboard-interactive" attempt. responder is
// invoked once per USERAUTH_INFO_REQUEST round.
func (c *Client) AuthInteractive(username string, responder InteractiveResponder, submethods string) (*AuthEvent, error) {
	ev := NewAuthEvent()
	if err := c.handler.ArmInteractive(username, responder, submethods, ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// Abort wakes a caller blocked in WaitForResponse without sending any
// protocol message.
func (c *Client) Abort() { c.handler.Abort() }

// IsAuthenticated reports whether the most recent attempt succeeded.
func (c *Client) IsAuthenticated() bool { return c.handler.IsAuthenticated() }

// WaitForResponse blocks until ev fires or the transport dies,
// polling in pollInterval slices so transport death is observed even
// when no message ever arrives. On success it
// returns an empty, nil-error slice. On partial success it returns the
// server's allowed-methods list with a nil error. Any other outcome
// returns a non-nil error.
func (c *Client) WaitForResponse(ev *AuthEvent) ([]string, error) {
	t := c.handler.transport
poll:
	for {
		select {
		case <-ev.ch:
			break poll
		case <-time.After(pollInterval):
			if !t.IsActive() {
				if err := t.PendingError(); err != nil {
					return nil, err
				}
				return nil, &TransportDeadError{}
			}
		}
	}
	if c.handler.IsAuthenticated() {
		return nil, nil
	}
	if err := t.PendingError(); err != nil {
		if partial, ok := err.(*PartialAuthenticationError); ok {
			return partial.Allowed, nil
		}
		return nil, err
	}
	return nil, &AuthenticationFailedError{}
}
