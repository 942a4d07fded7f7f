package auth

import (
	"crypto/rand"
	"io"

	gossh "golang.org/x/crypto/ssh"
)

// PublicKey is the capability this layer needs from a public key: its
// wire algorithm name, its wire blob, and the ability to check a
// signature computed over an arbitrary byte string. Concrete key
// types (RSA, ECDSA, Ed25519 ...) live outside this package; see
// WrapPublicKey for an adapter onto golang.org/x/crypto/ssh.
type PublicKey interface {
	Type() string
	Marshal() []byte
	Verify(data []byte, sig *Signature) error
}

// Signer additionally can produce a signature over arbitrary data with
// its private half. Only needed client-side.
type Signer interface {
	PublicKey() PublicKey
	Sign(rand io.Reader, data []byte) (*Signature, error)
}

// Signature is the generic signature envelope: a wire algorithm name
// (which may differ from the key's own Type(), e.g. rsa-sha2-512) and
// the raw signature bytes.
type Signature struct {
	Format string
	Blob   []byte
}

// KeyParser turns a raw public-key blob into a usable PublicKey,
// keyed by wire algorithm name in the transport's parser registry
// (Transport.KeyInfo's lookup table).
type KeyParser func(blob []byte) (PublicKey, error)

// gosshPublicKey adapts golang.org/x/crypto/ssh.PublicKey to this
// package's narrower PublicKey capability, so a server can verify
// signatures from real client keys without this package implementing
// any key algorithm itself.
type gosshPublicKey struct {
	inner gossh.PublicKey
}

// WrapPublicKey adapts a golang.org/x/crypto/ssh.PublicKey (as
// produced by gossh.ParsePublicKey, gossh.ParseAuthorizedKey, or a
// Signer's PublicKey method) into this package's PublicKey interface.
func WrapPublicKey(k gossh.PublicKey) PublicKey {
	return &gosshPublicKey{inner: k}
}

func (k *gosshPublicKey) Type() string    { return k.inner.Type() }
func (k *gosshPublicKey) Marshal() []byte { return k.inner.Marshal() }

func (k *gosshPublicKey) Verify(data []byte, sig *Signature) error {
	return k.inner.Verify(data, &gossh.Signature{Format: sig.Format, Blob: sig.Blob})
}

// gosshSigner adapts golang.org/x/crypto/ssh.Signer.
type gosshSigner struct {
	inner gossh.Signer
}

// WrapSigner adapts a golang.org/x/crypto/ssh.Signer (as returned by
// gossh.NewSignerFromKey/gossh.ParsePrivateKey) into this package's
// Signer interface.
func WrapSigner(s gossh.Signer) Signer {
	return &gosshSigner{inner: s}
}

func (s *gosshSigner) PublicKey() PublicKey {
	return WrapPublicKey(s.inner.PublicKey())
}

func (s *gosshSigner) Sign(r io.Reader, data []byte) (*Signature, error) {
	if r == nil {
		r = rand.Reader
	}
	sig, err := s.inner.Sign(r, data)
	if err != nil {
		return nil, err
	}
	return &Signature{Format: sig.Format, Blob: sig.Blob}, nil
}

// NewKeyParser builds a KeyParser backed by
// golang.org/x/crypto/ssh.ParsePublicKey; it is the default registered
// for every algorithm name a server doesn't override in its own
// KeyParser registry (see transport.go's KeyInfo).
func NewKeyParser() KeyParser {
	return func(blob []byte) (PublicKey, error) {
		k, err := gossh.ParsePublicKey(blob)
		if err != nil {
			return nil, err
		}
		return WrapPublicKey(k), nil
	}
}

// buildDataSignedForAuth composes the canonical byte string a
// publickey USERAUTH_REQUEST's signature is computed over and
// verified against for a publickey USERAUTH_REQUEST:
//
//	string session_id || byte SSH_MSG_USERAUTH_REQUEST || string username ||
//	string "ssh-connection" || string "publickey" || boolean true ||
//	string alg_name || string pubkey_blob
func buildDataSignedForAuth(sessionID []byte, username, algoName string, pubKeyBlob []byte) []byte {
	var buf []byte
	buf = appendString(buf, sessionID)
	buf = append(buf, msgUserAuthRequest)
	buf = appendString(buf, []byte(username))
	buf = appendString(buf, []byte(serviceConnection))
	buf = appendString(buf, []byte("publickey"))
	buf = appendBool(buf, true)
	buf = appendString(buf, []byte(algoName))
	buf = appendString(buf, pubKeyBlob)
	return buf
}
