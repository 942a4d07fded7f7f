package auth

import (
	"fmt"
	"sync"
)

// Mode fixes whether a Handler drives the client or server half of
// the protocol. Immutable after NewHandler.
type Mode int

const (
	Client Mode = iota
	Server
)

// InteractiveResponder is the client-side callback invoked for every
// USERAUTH_INFO_REQUEST received while a keyboard-interactive attempt
// is in flight. It must return exactly as many responses as prompts.
type InteractiveResponder func(name, instructions string, prompts []Prompt) ([]string, error)

// BannerFunc receives USERAUTH_BANNER text; wiring it to a logger is
// the embedder's job, mirroring ssh.ClientConfig.BannerCallback.
type BannerFunc func(message, lang string)

const (
	methodNone                = "none"
	methodPassword            = "password"
	methodPublicKey           = "publickey"
	methodKeyboardInteractive = "keyboard-interactive"
)

// AuthHandler is the per-transport auth state machine. One
// instance is created per transport and lives exactly as long as it;
// it never outlives or extends the life of its Transport.
type AuthHandler struct {
	mode      Mode
	transport Transport

	mu sync.Mutex

	// authenticated is set on USERAUTH_SUCCESS (client) or when a
	// success is sent (server); a USERAUTH_FAILURE received by the
	// client sets it back to false.
	authenticated bool

	// authMethod records the method of the in-flight client attempt,
	// or the most recently processed method server-side.
	authMethod string

	// client-side per-attempt state.
	username    string
	password    string
	signer      Signer
	responder   InteractiveResponder
	submethods  string
	event       *AuthEvent
	banner      BannerFunc

	// server-side state.
	authUsername      string
	authFailCount     uint32
	interactiveActive bool
}

// NewHandler constructs an AuthHandler bound to transport.
func NewHandler(mode Mode, transport Transport) *AuthHandler {
	return &AuthHandler{mode: mode, transport: transport}
}

// SetBannerFunc installs the callback invoked for incoming
// USERAUTH_BANNER messages (client only). Optional.
func (h *AuthHandler) SetBannerFunc(f BannerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.banner = f
}

// IsAuthenticated reports whether this handler has completed
// authentication.
func (h *AuthHandler) IsAuthenticated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authenticated
}

// Username returns the username bound to this session: the one the
// caller armed, client-side, or the one the server bound from the
// first USERAUTH_REQUEST.
func (h *AuthHandler) Username() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mode == Server {
		return h.authUsername
	}
	return h.username
}

// ---- client-side: arm an attempt ----------------------------------

// ArmNone arms a "none" attempt and sends SSH_MSG_SERVICE_REQUEST.
func (h *AuthHandler) ArmNone(username string, ev *AuthEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authMethod = methodNone
	h.username = username
	h.event = ev
	return h.requestAuthLocked()
}

// ArmPassword arms a "password" attempt.
func (h *AuthHandler) ArmPassword(username, password string, ev *AuthEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authMethod = methodPassword
	h.username = username
	h.password = password
	h.event = ev
	return h.requestAuthLocked()
}

// ArmPublicKey arms a "publickey" attempt, signed with signer.
func (h *AuthHandler) ArmPublicKey(username string, signer Signer, ev *AuthEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authMethod = methodPublicKey
	h.username = username
	h.signer = signer
	h.event = ev
	return h.requestAuthLocked()
}

// ArmInteractive arms a "keyboard-interactive" attempt.
func (h *AuthHandler) ArmInteractive(username string, responder InteractiveResponder, submethods string, ev *AuthEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authMethod = methodKeyboardInteractive
	h.username = username
	h.responder = responder
	h.submethods = submethods
	h.event = ev
	return h.requestAuthLocked()
}

func (h *AuthHandler) requestAuthLocked() error {
	return h.transport.Send(Marshal(&serviceRequestMsg{Service: serviceUserAuth}))
}

// Abort wakes a blocked caller without sending any message (SSH has
// no attempt-cancellation wire message). Idempotent.
func (h *AuthHandler) Abort() {
	h.mu.Lock()
	ev := h.event
	h.mu.Unlock()
	if ev != nil {
		ev.Set()
	}
}

// ---- client-side: incoming dispatch --------------------------------

func (h *AuthHandler) handleServiceAccept(payload []byte) error {
	var m serviceAcceptMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	if m.Service != serviceUserAuth {
		// Some other service accepted; nothing to do.
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	req := userAuthRequestMsg{
		User:    h.username,
		Service: serviceConnection,
		Method:  h.authMethod,
	}

	switch h.authMethod {
	case methodNone:
		// no extra fields.
	case methodPassword:
		var buf []byte
		buf = appendBool(buf, false)
		buf = appendString(buf, []byte(h.password))
		req.Payload = buf
	case methodPublicKey:
		if h.signer == nil {
			return h.fatalLocked(&ProtocolError{Reason: "publickey attempt armed without a signer"})
		}
		pub := h.signer.PublicKey()
		blob := buildDataSignedForAuth(h.transport.SessionID(), h.username, pub.Type(), pub.Marshal())
		sig, err := h.signer.Sign(nil, blob)
		if err != nil {
			return h.fatalLocked(err)
		}
		var buf []byte
		buf = appendBool(buf, true)
		buf = appendString(buf, []byte(pub.Type()))
		buf = appendString(buf, pub.Marshal())
		buf = appendString(buf, Marshal(sig))
		req.Payload = buf
	case methodKeyboardInteractive:
		var buf []byte
		buf = appendString(buf, nil) // lang, always empty
		buf = appendString(buf, []byte(h.submethods))
		req.Payload = buf
	default:
		return h.fatalLocked(&ProtocolError{Reason: fmt.Sprintf("unknown auth method %q", h.authMethod)})
	}

	return h.transport.Send(Marshal(&req))
}

func (h *AuthHandler) handleUserAuthSuccess(payload []byte) error {
	var m userAuthSuccessMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	h.mu.Lock()
	h.authenticated = true
	ev := h.event
	h.mu.Unlock()

	h.transport.AuthTrigger()
	if ev != nil {
		ev.Set()
	}
	return nil
}

func (h *AuthHandler) handleUserAuthFailure(payload []byte) error {
	var m userAuthFailureMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}

	h.mu.Lock()
	if m.Partial {
		h.transport.SetPendingError(&PartialAuthenticationError{Allowed: m.Methods})
	} else if !contains(m.Methods, h.authMethod) {
		h.transport.SetPendingError(&BadAuthenticationTypeError{Allowed: m.Methods})
	}
	h.authenticated = false
	h.username = ""
	ev := h.event
	h.mu.Unlock()

	if ev != nil {
		ev.Set()
	}
	return nil
}

func (h *AuthHandler) handleUserAuthBanner(payload []byte) error {
	var m userAuthBannerMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	h.mu.Lock()
	cb := h.banner
	h.mu.Unlock()
	if cb != nil {
		cb(m.Message, m.Lang)
	}
	return nil
}

// handleMessage60 dispatches message number 60, whose meaning is
// overloaded between USERAUTH_PK_OK and USERAUTH_INFO_REQUEST. This
// package's client facade never emits an unsigned publickey probe (it
// always attaches a signature), so the only legal arrival of 60 on the
// client is an INFO_REQUEST while a keyboard-interactive attempt is in
// flight.
func (h *AuthHandler) handleMessage60(payload []byte) error {
	h.mu.Lock()
	method := h.authMethod
	h.mu.Unlock()

	if method != methodKeyboardInteractive {
		return h.fatal(&ProtocolError{Reason: "USERAUTH_INFO_REQUEST received outside keyboard-interactive"})
	}

	var m userAuthInfoRequestMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	prompts, err := decodePrompts(m.Prompts, m.NumPrompts)
	if err != nil {
		return h.fatal(err)
	}

	h.mu.Lock()
	responder := h.responder
	h.mu.Unlock()
	if responder == nil {
		return h.fatal(&ProtocolError{Reason: "keyboard-interactive attempt has no responder"})
	}

	responses, err := responder(m.Name, m.Instructions, prompts)
	if err != nil {
		return h.fatal(err)
	}

	var buf []byte
	for _, r := range responses {
		buf = appendString(buf, []byte(r))
	}
	return h.transport.Send(Marshal(&userAuthInfoResponseMsg{NumResp: uint32(len(responses)), Answers: buf}))
}

// ---- server-side: incoming dispatch --------------------------------

func (h *AuthHandler) handleServiceRequest(payload []byte) error {
	var m serviceRequestMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	if m.Service != serviceUserAuth {
		return h.disconnect(ReasonServiceNotAvailable, "Service not available")
	}
	return h.transport.Send(Marshal(&serviceAcceptMsg{Service: serviceUserAuth}))
}

func (h *AuthHandler) handleUserAuthRequest(payload []byte) error {
	var req userAuthRequestMsg
	if err := Unmarshal(payload, &req); err != nil {
		return h.fatal(err)
	}
	if req.Service != serviceConnection {
		return h.disconnect(ReasonServiceNotAvailable, "Service not available")
	}

	h.mu.Lock()
	if h.authUsername != "" && h.authUsername != req.User {
		h.mu.Unlock()
		return h.disconnect(ReasonNoMoreAuthMethodsAvailable, "No more auth methods available")
	}
	h.authUsername = req.User
	if h.authenticated {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	policy := h.transport.ServerObject()

	var result AuthResult
	switch req.Method {
	case methodNone:
		result = policy.CheckAuthNone(req.User)

	case methodPassword:
		changeReq, rest, ok := parseBool(req.Payload)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "password request"})
		}
		passwordBytes, rest, ok := parseString(rest)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "password request"})
		}
		password := string(passwordBytes) // pass raw bytes through on decode failure
		if changeReq {
			if _, _, ok := parseString(rest); !ok {
				return h.fatal(&MalformedPacketError{Reason: "password change request"})
			}
			result = AuthFailed
		} else {
			result = policy.CheckAuthPassword(req.User, password)
		}

	case methodPublicKey:
		sigAttached, rest, ok := parseBool(req.Payload)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "publickey request"})
		}
		algoBytes, rest, ok := parseString(rest)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "publickey request"})
		}
		algoName := string(algoBytes)
		pubKeyBlob, rest, ok := parseString(rest)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "publickey request"})
		}

		parser, ok := h.transport.KeyInfo(algoName)
		if !ok {
			return h.disconnect(ReasonNoMoreAuthMethodsAvailable, "No more auth methods available")
		}
		key, err := parser(pubKeyBlob)
		if err != nil {
			return h.disconnect(ReasonNoMoreAuthMethodsAvailable, "No more auth methods available")
		}

		result = policy.CheckAuthPublicKey(req.User, key)
		if result != AuthFailed {
			if !sigAttached {
				if err := h.transport.Send(Marshal(&userAuthPubKeyOkMsg{Algo: algoName, PubKey: pubKeyBlob})); err != nil {
					return err
				}
				return nil
			}
			sigBytes, _, ok := parseString(rest)
			if !ok {
				return h.fatal(&MalformedPacketError{Reason: "publickey signature"})
			}
			var sig Signature
			if err := Unmarshal(sigBytes, sigAsMsg(&sig)); err != nil {
				return h.fatal(err)
			}
			blob := buildDataSignedForAuth(h.transport.SessionID(), req.User, algoName, pubKeyBlob)
			if err := key.Verify(blob, &sig); err != nil {
				result = AuthFailed
			}
		}

	case methodKeyboardInteractive:
		_, rest, ok := parseString(req.Payload) // lang
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "keyboard-interactive request"})
		}
		submethodsBytes, _, ok := parseString(rest)
		if !ok {
			return h.fatal(&MalformedPacketError{Reason: "keyboard-interactive request"})
		}
		var query *InteractiveQuery
		result, query = policy.CheckAuthInteractive(req.User, string(submethodsBytes))
		if query != nil {
			h.mu.Lock()
			h.interactiveActive = true
			h.mu.Unlock()
			return h.sendInteractiveQuery(query)
		}

	default:
		// Unknown method: route to CheckAuthNone so the server's
		// standard failure list is produced.
		result = policy.CheckAuthNone(req.User)
	}

	h.mu.Lock()
	h.authMethod = req.Method
	h.mu.Unlock()
	return h.sendAuthResult(req.User, req.Method, result)
}

func (h *AuthHandler) handleUserAuthInfoResponse(payload []byte) error {
	var m userAuthInfoResponseMsg
	if err := Unmarshal(payload, &m); err != nil {
		return h.fatal(err)
	}
	responses, err := decodeResponses(m.Answers, m.NumResp)
	if err != nil {
		return h.fatal(err)
	}

	policy := h.transport.ServerObject()
	result, query := policy.CheckAuthInteractiveResponse(responses)
	if query != nil {
		return h.sendInteractiveQuery(query)
	}

	h.mu.Lock()
	h.interactiveActive = false
	username := h.authUsername
	h.mu.Unlock()

	return h.sendAuthResult(username, methodKeyboardInteractive, result)
}

func (h *AuthHandler) sendInteractiveQuery(q *InteractiveQuery) error {
	var buf []byte
	for _, p := range q.Prompts {
		buf = appendString(buf, []byte(p.Text))
		buf = appendBool(buf, p.EchoOn)
	}
	return h.transport.Send(Marshal(&userAuthInfoRequestMsg{
		Name:         q.Name,
		Instructions: q.Instructions,
		Lang:         "",
		NumPrompts:   uint32(len(q.Prompts)),
		Prompts:      buf,
	}))
}

func (h *AuthHandler) sendAuthResult(username, method string, result AuthResult) error {
	if result == AuthSuccessful {
		if err := h.transport.Send(Marshal(&userAuthSuccessMsg{})); err != nil {
			return err
		}
		h.mu.Lock()
		h.authenticated = true
		h.mu.Unlock()
		h.transport.AuthTrigger()
		return nil
	}

	policy := h.transport.ServerObject()
	allowed := policy.GetAllowedAuths(username)
	partial := result == AuthPartiallySuccessful
	if err := h.transport.Send(Marshal(&userAuthFailureMsg{Methods: allowed, Partial: partial})); err != nil {
		return err
	}

	var failCount uint32
	if !partial {
		h.mu.Lock()
		h.authFailCount++
		failCount = h.authFailCount
		h.mu.Unlock()
	} else {
		h.mu.Lock()
		failCount = h.authFailCount
		h.mu.Unlock()
	}

	if failCount >= 10 {
		return h.disconnect(ReasonNoMoreAuthMethodsAvailable, "No more auth methods available")
	}
	return nil
}

// ---- shared helpers -------------------------------------------------

func (h *AuthHandler) fatal(err error) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.fatalLocked(err)
}

func (h *AuthHandler) fatalLocked(err error) error {
	h.transport.SetPendingError(err)
	if h.event != nil {
		h.event.Set()
	}
	return err
}

func (h *AuthHandler) disconnect(reason uint32, message string) error {
	err := &DisconnectError{Reason: reason, Message: message}
	_ = h.transport.Disconnect(reason, message)
	h.transport.SetPendingError(err)
	h.mu.Lock()
	ev := h.event
	h.mu.Unlock()
	if ev != nil {
		ev.Set()
	}
	return err
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func decodePrompts(raw []byte, n uint32) ([]Prompt, error) {
	prompts := make([]Prompt, 0, n)
	for i := uint32(0); i < n; i++ {
		text, rest, ok := parseString(raw)
		if !ok {
			return nil, &MalformedPacketError{Reason: "info request prompt"}
		}
		echo, rest, ok := parseBool(rest)
		if !ok {
			return nil, &MalformedPacketError{Reason: "info request prompt"}
		}
		prompts = append(prompts, Prompt{Text: string(text), EchoOn: echo})
		raw = rest
	}
	return prompts, nil
}

func decodeResponses(raw []byte, n uint32) ([]string, error) {
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		v, rest, ok := parseString(raw)
		if !ok {
			return nil, &MalformedPacketError{Reason: "info response"}
		}
		out = append(out, string(v))
		raw = rest
	}
	return out, nil
}

// sigAsMsg lets Unmarshal (which only understands exported struct
// fields) populate a Signature's two fields; Signature's own fields
// are already exported so this is just a type-level adapter.
func sigAsMsg(s *Signature) *signatureMsg {
	return (*signatureMsg)(s)
}

type signatureMsg Signature
