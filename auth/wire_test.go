package auth

import (
	"math/big"
	"reflect"
	"testing"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	if got, rest, ok := parseBool(appendBool(nil, true)); !ok || !got || len(rest) != 0 {
		t.Fatalf("bool round-trip: got=%v rest=%v ok=%v", got, rest, ok)
	}
	if got, rest, ok := parseUint32(appendUint32(nil, 0xdeadbeef)); !ok || got != 0xdeadbeef || len(rest) != 0 {
		t.Fatalf("uint32 round-trip: got=%x rest=%v ok=%v", got, rest, ok)
	}
	s := []byte("ssh-connection")
	if got, rest, ok := parseString(appendString(nil, s)); !ok || string(got) != string(s) || len(rest) != 0 {
		t.Fatalf("string round-trip: got=%q rest=%v ok=%v", got, rest, ok)
	}
	names := []string{"publickey", "password", "keyboard-interactive"}
	if got, rest, ok := parseNameList(appendNameList(nil, names)); !ok || !reflect.DeepEqual(got, names) || len(rest) != 0 {
		t.Fatalf("name-list round-trip: got=%v rest=%v ok=%v", got, rest, ok)
	}
	if got, rest, ok := parseNameList(appendNameList(nil, nil)); !ok || len(got) != 0 || len(rest) != 0 {
		t.Fatalf("empty name-list round-trip: got=%v rest=%v ok=%v", got, rest, ok)
	}
	for _, n := range []int64{0, 1, 127, 128, 255, 256, -1, -128, -129, 1 << 40} {
		want := big.NewInt(n)
		got, rest, ok := parseMpint(appendMpint(nil, want))
		if !ok || got.Cmp(want) != 0 || len(rest) != 0 {
			t.Fatalf("mpint round-trip for %d: got=%v rest=%v ok=%v", n, got, rest, ok)
		}
	}
}

func TestLengthPrefixOverrun(t *testing.T) {
	// A string claiming to be longer than the remaining buffer must
	// fail, never panic or read out of bounds.
	buf := appendUint32(nil, 100)
	buf = append(buf, []byte("short")...)
	if _, _, ok := parseString(buf); ok {
		t.Fatalf("expected overrun to fail decoding")
	}
}

func TestMessageRoundTrip(t *testing.T) {
	in := &userAuthFailureMsg{Methods: []string{"password", "publickey"}, Partial: true}
	encoded := Marshal(in)
	if encoded[0] != msgUserAuthFailure {
		t.Fatalf("expected leading message number %d, got %d", msgUserAuthFailure, encoded[0])
	}
	var out userAuthFailureMsg
	if err := Unmarshal(encoded, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, &out) {
		t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestServiceMessageRoundTrip(t *testing.T) {
	in := &serviceRequestMsg{Service: "ssh-userauth"}
	var out serviceRequestMsg
	if err := Unmarshal(Marshal(in), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Service != in.Service {
		t.Fatalf("got %q want %q", out.Service, in.Service)
	}
}

func TestUserAuthRequestPayloadIsRawTrailingBytes(t *testing.T) {
	in := &userAuthRequestMsg{
		User:    "alice",
		Service: serviceConnection,
		Method:  "password",
		Payload: append(appendBool(nil, false), appendString(nil, []byte("hunter2"))...),
	}
	var out userAuthRequestMsg
	if err := Unmarshal(Marshal(in), &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(in, &out) {
		t.Fatalf("round trip mismatch: in=%+v out=%+v", in, out)
	}
}

func TestWrongMessageNumberRejected(t *testing.T) {
	encoded := Marshal(&userAuthSuccessMsg{})
	var out userAuthFailureMsg
	if err := Unmarshal(encoded, &out); err == nil {
		t.Fatalf("expected mismatched message number to fail")
	}
}
