package auth

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Wire primitives, RFC 4251 §5. All integers are big-endian.

func parseBool(in []byte) (bool, []byte, bool) {
	if len(in) < 1 {
		return false, nil, false
	}
	return in[0] != 0, in[1:], true
}

func parseUint32(in []byte) (uint32, []byte, bool) {
	if len(in) < 4 {
		return 0, nil, false
	}
	return uint32(in[0])<<24 | uint32(in[1])<<16 | uint32(in[2])<<8 | uint32(in[3]), in[4:], true
}

func parseString(in []byte) (out, rest []byte, ok bool) {
	length, in, ok := parseUint32(in)
	if !ok || uint32(len(in)) < length {
		return nil, nil, false
	}
	return in[:length], in[length:], true
}

// parseNameList decodes a comma-separated ASCII name-list carried as a
// string. An empty string decodes to a nil (empty) slice.
func parseNameList(in []byte) (out []string, rest []byte, ok bool) {
	contents, rest, ok := parseString(in)
	if !ok {
		return nil, nil, false
	}
	if len(contents) == 0 {
		return nil, rest, true
	}
	return strings.Split(string(contents), ","), rest, true
}

// parseMpint decodes a two's-complement, big-endian multiple precision
// integer.
func parseMpint(in []byte) (out *big.Int, rest []byte, ok bool) {
	contents, rest, ok := parseString(in)
	if !ok {
		return nil, nil, false
	}
	result := new(big.Int)
	if len(contents) > 0 && contents[0]&0x80 != 0 {
		// negative: two's complement.
		notBytes := make([]byte, len(contents))
		for i, b := range contents {
			notBytes[i] = ^b
		}
		result.SetBytes(notBytes)
		result.Add(result, big.NewInt(1))
		result.Neg(result)
	} else {
		result.SetBytes(contents)
	}
	return result, rest, true
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func appendUint32(buf []byte, n uint32) []byte {
	return append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
}

func appendString(buf []byte, s []byte) []byte {
	buf = appendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendNameList(buf []byte, names []string) []byte {
	return appendString(buf, []byte(strings.Join(names, ",")))
}

func appendMpint(buf []byte, n *big.Int) []byte {
	if n.Sign() == 0 {
		return appendString(buf, nil)
	}
	if n.Sign() > 0 {
		bs := n.Bytes()
		if bs[0]&0x80 != 0 {
			bs = append([]byte{0}, bs...)
		}
		return appendString(buf, bs)
	}

	// Negative: find the minimal byte length whose two's-complement
	// range covers n, then encode n mod 2^(8*length).
	length := 1
	limit := big.NewInt(-128) // -2^7, the most negative 1-byte value
	for n.Cmp(limit) < 0 {
		length++
		limit.Lsh(limit, 8)
	}
	mod := new(big.Int).Lsh(big.NewInt(1), uint(length*8))
	twos := new(big.Int).Add(n, mod)
	bs := twos.Bytes()
	if len(bs) < length {
		pad := make([]byte, length-len(bs))
		bs = append(pad, bs...)
	}
	return appendString(buf, bs)
}

// The remaining functions implement a small reflection-based codec for
// the tagged message structs in messages.go, in the same spirit as
// golang.org/x/crypto/ssh's internal Marshal/Unmarshal: a struct field
// of type byte/bool/uint32/string/[]string/*big.Int/[]byte maps
// directly onto a wire primitive, in field order, preceded by the
// struct's "sshtype" tag as the leading message-number byte.

// decodeUint32Field and friends are defined inline in decodeField below.

// Unmarshal parses the wire encoding of msg (whose first byte is the
// message number and is checked against the "sshtype" struct tag, if
// present) into the fields of v, which must be a pointer to a struct.
func Unmarshal(data []byte, v interface{}) error {
	out := reflect.ValueOf(v).Elem()
	msgNum := out.Type()
	if tag, ok := sshTypeTag(msgNum); ok {
		if len(data) < 1 {
			return &MalformedPacketError{Reason: "empty packet"}
		}
		if data[0] != tag {
			return &MalformedPacketError{Reason: fmt.Sprintf("unexpected message type %d (expected %d)", data[0], tag)}
		}
		data = data[1:]
	}
	t := out.Type()
	for i := 0; i < out.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		field := out.Field(i)
		if sf.Tag.Get("ssh") == "rest" {
			cp := make([]byte, len(data))
			copy(cp, data)
			field.SetBytes(cp)
			data = nil
			continue
		}
		var ok bool
		data, ok = decodeField(field, data)
		if !ok {
			return &MalformedPacketError{Reason: fmt.Sprintf("short packet decoding field %d of %s", i, t.Name())}
		}
	}
	return nil
}

func decodeField(field reflect.Value, data []byte) ([]byte, bool) {
	switch field.Kind() {
	case reflect.Bool:
		v, rest, ok := parseBool(data)
		if ok {
			field.SetBool(v)
		}
		return rest, ok
	case reflect.Uint8:
		if len(data) < 1 {
			return nil, false
		}
		field.SetUint(uint64(data[0]))
		return data[1:], true
	case reflect.Uint32:
		v, rest, ok := parseUint32(data)
		if ok {
			field.SetUint(uint64(v))
		}
		return rest, ok
	case reflect.String:
		v, rest, ok := parseString(data)
		if ok {
			field.SetString(string(v))
		}
		return rest, ok
	case reflect.Slice:
		switch field.Type().Elem().Kind() {
		case reflect.String:
			v, rest, ok := parseNameList(data)
			if ok {
				field.Set(reflect.ValueOf(v))
			}
			return rest, ok
		case reflect.Uint8:
			v, rest, ok := parseString(data)
			if ok {
				cp := make([]byte, len(v))
				copy(cp, v)
				field.SetBytes(cp)
			}
			return rest, ok
		}
	case reflect.Ptr:
		if field.Type() == reflect.TypeOf((*big.Int)(nil)) {
			v, rest, ok := parseMpint(data)
			if ok {
				field.Set(reflect.ValueOf(v))
			}
			return rest, ok
		}
	}
	return nil, false
}

// Marshal serializes msg (a struct possibly carrying a "sshtype" tag)
// to its SSH wire encoding, prefixed by the message number if tagged.
func Marshal(msg interface{}) []byte {
	v := reflect.ValueOf(msg)
	for v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	var out []byte
	if tag, ok := sshTypeTag(v.Type()); ok {
		out = append(out, tag)
	}
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		sf := t.Field(i)
		if sf.Name == "_" {
			continue
		}
		if sf.Tag.Get("ssh") == "rest" {
			out = append(out, v.Field(i).Bytes()...)
			continue
		}
		out = encodeField(out, v.Field(i))
	}
	return out
}

func encodeField(buf []byte, field reflect.Value) []byte {
	switch field.Kind() {
	case reflect.Bool:
		return appendBool(buf, field.Bool())
	case reflect.Uint8:
		return append(buf, byte(field.Uint()))
	case reflect.Uint32:
		return appendUint32(buf, uint32(field.Uint()))
	case reflect.String:
		return appendString(buf, []byte(field.String()))
	case reflect.Slice:
		switch field.Type().Elem().Kind() {
		case reflect.String:
			return appendNameList(buf, field.Interface().([]string))
		case reflect.Uint8:
			return appendString(buf, field.Bytes())
		}
	case reflect.Ptr:
		if field.Type() == reflect.TypeOf((*big.Int)(nil)) {
			return appendMpint(buf, field.Interface().(*big.Int))
		}
	}
	return buf
}

func sshTypeTag(t reflect.Type) (byte, bool) {
	f, ok := t.FieldByName("_")
	if !ok {
		return 0, false
	}
	tag := f.Tag.Get("sshtype")
	if tag == "" {
		return 0, false
	}
	n, err := strconv.Atoi(tag)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}
