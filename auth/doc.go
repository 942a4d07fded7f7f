// Package auth implements the SSH-2 user authentication protocol
// (RFC 4252) on top of an already key-exchanged transport: the
// SSH_MSG_SERVICE_REQUEST/ACCEPT handshake and the
// SSH_MSG_USERAUTH_* message flow for the "none", "password",
// "publickey" and "keyboard-interactive" methods.
//
// It does not implement the transport layer (key exchange, framing,
// ciphers) or the connection layer (channels); it drives both from a
// narrow Transport interface and hands control back to the caller
// through a blocking facade (client side) or a pluggable Policy
// (server side).
package auth
