package auth

// Dispatch routes an already-framed, already-decrypted auth-layer
// payload (msgType is the leading byte the transport peeled off
// before handing the rest over) to the right state-machine method.
// This uses a static table from message number to handler method,
// mirroring how the underlying connection multiplexes message types.
func (h *AuthHandler) Dispatch(msgType byte, payload []byte) error {
	var table map[byte]func(*AuthHandler, []byte) error
	if h.mode == Server {
		table = serverDispatch
	} else {
		table = clientDispatch
	}
	fn, ok := table[msgType]
	if !ok {
		return h.fatal(&ProtocolError{Reason: "unexpected message type on this side of the protocol"})
	}
	// The handlers Unmarshal into sshtype-tagged structs, which expect
	// the message-type byte in front, so put it back.
	return fn(h, append([]byte{msgType}, payload...))
}

var clientDispatch = map[byte]func(*AuthHandler, []byte) error{
	msgServiceAccept:       (*AuthHandler).handleServiceAccept,
	msgUserAuthSuccess:     (*AuthHandler).handleUserAuthSuccess,
	msgUserAuthFailure:     (*AuthHandler).handleUserAuthFailure,
	msgUserAuthBanner:      (*AuthHandler).handleUserAuthBanner,
	msgUserAuthInfoRequest: (*AuthHandler).handleMessage60,
}

var serverDispatch = map[byte]func(*AuthHandler, []byte) error{
	msgServiceRequest:   (*AuthHandler).handleServiceRequest,
	msgUserAuthRequest:  (*AuthHandler).handleUserAuthRequest,
	msgUserAuthInfoResp: (*AuthHandler).handleUserAuthInfoResponse,
}
