// Command sshauth-demo wires two in-process AuthHandlers — one
// client, one server — over a loopback MemTransport pair and drives a
// password authentication to completion. It exists to exercise the
// package end-to-end without a real net.Conn or key exchange, which
// are both out of this module's scope.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/mrpk1906/sshauth/auth"
)

// loopback copies every message one side's MemTransport Sends onto the
// other side's AuthHandler.Dispatch, round after round, until both
// sides go idle. It stands in for the real transport's reader thread.
type loopback struct {
	clientTransport *auth.MemTransport
	serverTransport *auth.MemTransport
	clientHandler   *auth.AuthHandler
	serverHandler   *auth.AuthHandler
}

func (l *loopback) pump() error {
	for progressed := true; progressed; {
		progressed = false
		for len(l.clientTransport.Outbox) > 0 {
			msg := l.clientTransport.Outbox[0]
			l.clientTransport.Outbox = l.clientTransport.Outbox[1:]
			if err := l.serverHandler.Dispatch(msg[0], msg[1:]); err != nil {
				return err
			}
			progressed = true
		}
		for len(l.serverTransport.Outbox) > 0 {
			msg := l.serverTransport.Outbox[0]
			l.serverTransport.Outbox = l.serverTransport.Outbox[1:]
			if err := l.clientHandler.Dispatch(msg[0], msg[1:]); err != nil {
				return err
			}
			progressed = true
		}
	}
	return nil
}

type demoPolicy struct{}

func (demoPolicy) GetAllowedAuths(string) []string { return []string{"password", "publickey"} }
func (demoPolicy) CheckAuthNone(string) auth.AuthResult { return auth.AuthFailed }
func (demoPolicy) CheckAuthPassword(username, password string) auth.AuthResult {
	if username == "alice" && password == "hunter2" {
		return auth.AuthSuccessful
	}
	return auth.AuthFailed
}
func (demoPolicy) CheckAuthPublicKey(string, auth.PublicKey) auth.AuthResult { return auth.AuthFailed }
func (demoPolicy) CheckAuthInteractive(string, string) (auth.AuthResult, *auth.InteractiveQuery) {
	return auth.AuthFailed, nil
}
func (demoPolicy) CheckAuthInteractiveResponse([]string) (auth.AuthResult, *auth.InteractiveQuery) {
	return auth.AuthFailed, nil
}

func main() {
	sessionID := []byte("demo-session-id")
	policy := demoPolicy{}

	clientTransport := auth.NewMemTransport(sessionID, false, nil)
	serverTransport := auth.NewMemTransport(sessionID, true, policy)

	clientHandler := auth.NewHandler(auth.Client, clientTransport)
	serverHandler := auth.NewHandler(auth.Server, serverTransport)

	l := &loopback{
		clientTransport: clientTransport,
		serverTransport: serverTransport,
		clientHandler:   clientHandler,
		serverHandler:   serverHandler,
	}

	client := auth.NewClient(clientHandler)
	ev, err := client.AuthPassword("alice", "hunter2")
	if err != nil {
		log.Fatalf("arm password auth: %v", err)
	}

	if err := l.pump(); err != nil {
		log.Fatalf("auth exchange failed: %v", err)
	}

	allowed, err := client.WaitForResponse(ev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authentication failed: %v\n", err)
		os.Exit(1)
	}
	if len(allowed) > 0 {
		fmt.Printf("partial success, still allowed: %v\n", allowed)
		return
	}
	fmt.Println("authenticated:", client.IsAuthenticated())
}
