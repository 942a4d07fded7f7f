package auth

// Transport is the narrow contract the auth core consumes from the
// enclosing SSH transport. Framing, key exchange,
// ciphers and the session-id itself all live on the other side of
// this interface; the auth core only ever sends fully-built messages
// and receives already-demultiplexed payloads via Handler's dispatch
// methods.
//
// Implementations MUST serialize Send calls (and the outgoing field
// writes that precede them) behind a single mutex shared with the
// rest of the transport, so that at most one SSH_MSG_USERAUTH_REQUEST
// attempt is in flight at a time.
type Transport interface {
	// Send enqueues a fully built auth-layer message for transmission.
	Send(msg []byte) error

	// SessionID returns the session identifier fixed at the first key
	// exchange. Read-only to the auth core.
	SessionID() []byte

	// IsActive reports whether the transport is still usable.
	IsActive() bool

	// PendingError returns any error the transport's reader captured
	// when the connection died, or nil.
	PendingError() error

	// SetPendingError lets the state machine record a
	// BadAuthenticationTypeError / PartialAuthenticationError (or any
	// fatal decode/protocol error) for later retrieval by the blocking
	// facade.
	SetPendingError(err error)

	// AuthTrigger is called exactly once, on successful authentication,
	// to unblock the connection layer above.
	AuthTrigger()

	// KeyInfo looks up the KeyParser registered for a wire public key
	// algorithm name. Server-side only.
	KeyInfo(algoName string) (KeyParser, bool)

	// ServerObject returns the pluggable server Policy, or nil in
	// client mode.
	ServerObject() Policy

	// ServerMode reports whether this transport is operating as a
	// server.
	ServerMode() bool

	// Disconnect asks the transport to send SSH_MSG_DISCONNECT with
	// the given reason and close. Server-side only.
	Disconnect(reason uint32, message string) error
}

// MemTransport is a minimal in-memory Transport used by this
// package's own tests and suitable as a starting point for an
// embedder wiring a real packetConn-backed transport underneath: it
// is not a production transport, just enough plumbing to drive the
// state machine deterministically.
type MemTransport struct {
	sessionID []byte
	server    bool
	policy    Policy
	parsers   map[string]KeyParser

	active  bool
	pending error

	Outbox       [][]byte
	triggerCount int

	disconnected   bool
	disconnectCode uint32
	disconnectMsg  string
}

// NewMemTransport constructs a MemTransport bound to sessionID, in
// client mode unless server is true. policy may be nil in client mode.
func NewMemTransport(sessionID []byte, server bool, policy Policy) *MemTransport {
	return &MemTransport{
		sessionID: sessionID,
		server:    server,
		policy:    policy,
		parsers:   map[string]KeyParser{"": NewKeyParser()},
		active:    true,
	}
}

// RegisterKeyParser overrides the parser used for algoName; the empty
// string is the fallback used when no exact match is registered.
func (t *MemTransport) RegisterKeyParser(algoName string, p KeyParser) {
	t.parsers[algoName] = p
}

func (t *MemTransport) Send(msg []byte) error {
	if !t.active {
		return &TransportDeadError{Cause: t.pending}
	}
	cp := make([]byte, len(msg))
	copy(cp, msg)
	t.Outbox = append(t.Outbox, cp)
	return nil
}

func (t *MemTransport) SessionID() []byte   { return t.sessionID }
func (t *MemTransport) IsActive() bool      { return t.active }
func (t *MemTransport) PendingError() error { return t.pending }

func (t *MemTransport) SetPendingError(err error) { t.pending = err }

func (t *MemTransport) AuthTrigger() { t.triggerCount++ }

func (t *MemTransport) KeyInfo(algoName string) (KeyParser, bool) {
	if p, ok := t.parsers[algoName]; ok {
		return p, true
	}
	p, ok := t.parsers[""]
	return p, ok
}

func (t *MemTransport) ServerObject() Policy { return t.policy }
func (t *MemTransport) ServerMode() bool     { return t.server }

func (t *MemTransport) Disconnect(reason uint32, message string) error {
	t.disconnected = true
	t.disconnectCode = reason
	t.disconnectMsg = message
	msg := Marshal(&disconnectMsg{Reason: reason, Message: message, Lang: "en"})
	t.Outbox = append(t.Outbox, msg)
	t.active = false
	return nil
}

// Disconnected reports whether Disconnect was called, and with what
// reason; useful for tests asserting disconnect behavior.
func (t *MemTransport) Disconnected() (bool, uint32) {
	return t.disconnected, t.disconnectCode
}

// Kill simulates the reader thread observing the connection die with
// cause, without an explicit Disconnect (e.g. a socket reset).
func (t *MemTransport) Kill(cause error) {
	t.active = false
	if t.pending == nil {
		t.pending = cause
	}
}
