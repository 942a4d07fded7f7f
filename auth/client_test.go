package auth

import (
	"testing"
	"time"
)

// Event liveness: a transport that dies before any terminal message
// arrives still wakes WaitForResponse.
func TestWaitForResponseOnTransportDeath(t *testing.T) {
	ct, ch, _, _ := newPair(t, nil)
	client := NewClient(ch)

	ev, err := client.AuthNone("alice")
	if err != nil {
		t.Fatalf("AuthNone: %v", err)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		ct.Kill(nil)
	}()

	_, err = client.WaitForResponse(ev)
	if err == nil {
		t.Fatalf("expected an error when the transport dies")
	}
	if _, ok := err.(*TransportDeadError); !ok {
		t.Fatalf("expected TransportDeadError, got %T: %v", err, err)
	}
}

// Abort wakes the caller without any protocol message, and is
// idempotent.
func TestAbortWakesCaller(t *testing.T) {
	_, ch, _, _ := newPair(t, nil)
	client := NewClient(ch)

	ev, err := client.AuthNone("alice")
	if err != nil {
		t.Fatalf("AuthNone: %v", err)
	}

	client.Abort()
	client.Abort() // idempotent

	if !ev.IsSet() {
		t.Fatalf("expected event to be set after Abort")
	}
}
