// Package record implements the line codec shared by the WAL and SST
// formats: one logical operation per newline-terminated, tab-separated
// line.
package record

import (
	"strings"

	"github.com/dnguyen-labs/minikv/internal/bufpool"
	"github.com/dnguyen-labs/minikv/internal/kverrors"
)

// Tombstone is the sentinel value marking a deleted key in both the WAL
// (when a delete is encoded as a PUT-of-tombstone) and SST line formats.
const Tombstone = "__TOMBSTONE__"

const (
	opPut = "PUT"
	opDel = "DEL"
)

// Kind distinguishes a PUT from a DELETE operation.
type Kind byte

const (
	Put Kind = iota
	Del
)

// Record is a single logical operation: a kind, a key, and — for Put —
// a value.
type Record struct {
	Kind  Kind
	Key   string
	Value string
}

// ErrMalformed is returned by Decode when a line cannot be parsed.
var ErrMalformed = kverrors.New(kverrors.MalformedRecord, "malformed record")

// ValidateKeyValue rejects keys/values containing the reserved delimiter
// or terminator bytes, or an empty key.
func ValidateKeyValue(key, value string) error {
	if key == "" {
		return kverrors.ErrKeyEmpty
	}
	if strings.ContainsAny(key, "\t\n") || strings.ContainsAny(value, "\t\n") {
		return kverrors.ErrReservedByte
	}
	return nil
}

// EncodeWAL renders r as a WAL line: "OP\tKEY\tVALUE\n". DEL records carry
// an empty VALUE field.
func EncodeWAL(r Record) []byte {
	op := opPut
	val := r.Value
	if r.Kind == Del {
		op = opDel
		val = ""
	}

	n := len(op) + len(r.Key) + len(val) + 3
	buf := bufpool.Get(n)
	buf = append(buf, op...)
	buf = append(buf, '\t')
	buf = append(buf, r.Key...)
	buf = append(buf, '\t')
	buf = append(buf, val...)
	buf = append(buf, '\n')
	return buf
}

// DecodeWAL parses a single WAL line (without its trailing newline).
// Empty lines must be filtered out by the caller before calling DecodeWAL.
func DecodeWAL(line string) (Record, error) {
	parts := strings.Split(line, "\t")
	if len(parts) != 3 {
		return Record{}, ErrMalformed
	}

	op, key, val := parts[0], parts[1], parts[2]
	switch op {
	case opPut:
		if val == Tombstone {
			return Record{Kind: Del, Key: key}, nil
		}
		return Record{Kind: Put, Key: key, Value: val}, nil
	case opDel:
		return Record{Kind: Del, Key: key}, nil
	default:
		return Record{}, ErrMalformed
	}
}

// EncodeSST renders a key/value (or tombstone) pair as an SST line:
// "KEY\tVALUE\n".
func EncodeSST(key, value string) []byte {
	n := len(key) + len(value) + 2
	buf := bufpool.Get(n)
	buf = append(buf, key...)
	buf = append(buf, '\t')
	buf = append(buf, value...)
	buf = append(buf, '\n')
	return buf
}

// DecodeSST parses a single SST line (without its trailing newline).
func DecodeSST(line string) (key, value string, err error) {
	parts := strings.SplitN(line, "\t", 2)
	if len(parts) != 2 {
		return "", "", ErrMalformed
	}
	return parts[0], parts[1], nil
}

// IsTombstone reports whether value is the tombstone sentinel.
func IsTombstone(value string) bool {
	return value == Tombstone
}
