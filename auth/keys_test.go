package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	gossh "golang.org/x/crypto/ssh"
)

func mustTestSigner(t *testing.T) gossh.Signer {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	signer, err := gossh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("wrap signer: %v", err)
	}
	_ = pub
	return signer
}

// Signature blob canonicity: the client and the server must compute
// byte-identical canonical blobs from the same inputs.
func TestSignatureBlobCanonicity(t *testing.T) {
	signer := WrapSigner(mustTestSigner(t))
	pub := signer.PublicKey()
	sessionID := []byte("shared-session-id")

	clientBlob := buildDataSignedForAuth(sessionID, "alice", pub.Type(), pub.Marshal())
	serverBlob := buildDataSignedForAuth(sessionID, "alice", pub.Type(), pub.Marshal())

	if string(clientBlob) != string(serverBlob) {
		t.Fatalf("canonical blobs differ:\nclient=%x\nserver=%x", clientBlob, serverBlob)
	}

	sig, err := signer.Sign(rand.Reader, clientBlob)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := pub.Verify(serverBlob, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
