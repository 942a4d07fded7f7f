package auth

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// TerminalResponder is the default InteractiveResponder: it prints the
// name/instructions once, then prompts for each (text, echoOn) pair,
// reading echoed prompts as a plain line and non-echoed ones with
// term.ReadPassword — the same split golang.org/x/term's own password
// helper makes for terminal-driven SSH clients.
type TerminalResponder struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalResponder builds a TerminalResponder reading from stdin
// and writing prompts to stdout.
func NewTerminalResponder() *TerminalResponder {
	return &TerminalResponder{In: os.Stdin, Out: os.Stdout}
}

// Respond implements InteractiveResponder.
func (t *TerminalResponder) Respond(name, instructions string, prompts []Prompt) ([]string, error) {
	if name != "" {
		fmt.Fprintln(t.Out, name)
	}
	if instructions != "" {
		fmt.Fprintln(t.Out, instructions)
	}

	responses := make([]string, len(prompts))
	reader := bufio.NewReader(t.In)
	for i, p := range prompts {
		fmt.Fprint(t.Out, p.Text)
		if p.EchoOn {
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return nil, err
			}
			responses[i] = trimNewline(line)
			continue
		}
		pw, err := term.ReadPassword(int(t.In.Fd()))
		fmt.Fprintln(t.Out)
		if err != nil {
			return nil, err
		}
		responses[i] = string(pw)
	}
	return responses, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
