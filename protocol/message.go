package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// errShape is the structural failure reported by decodeStrict; callers wrap
// it in the rejection that fits the decoded object.
var errShape = errors.New("shape mismatch")

// decodeStrict decodes a JSON object into v after checking that the object
// has exactly the given keys and that neither they nor the entries of array
// values are null. Primitive kinds are enforced by decoding into typed
// fields: a string where an integer belongs, or a fractional number, fails.
func decodeStrict(data []byte, v any, keys ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("%w: %w", errShape, err)
	}
	if fields == nil {
		return fmt.Errorf("%w: not an object", errShape)
	}
	if len(fields) != len(keys) {
		return fmt.Errorf("%w: want %d fields, got %d", errShape, len(keys), len(fields))
	}
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			return fmt.Errorf("%w: missing field %q", errShape, key)
		}
		raw = bytes.TrimSpace(raw)
		if bytes.Equal(raw, []byte("null")) {
			return fmt.Errorf("%w: null field %q", errShape, key)
		}
		if len(raw) > 0 && raw[0] == '[' {
			var elems []json.RawMessage
			if err := json.Unmarshal(raw, &elems); err != nil {
				return fmt.Errorf("%w: field %q: %w", errShape, key, err)
			}
			for i, elem := range elems {
				if bytes.Equal(bytes.TrimSpace(elem), []byte("null")) {
					return fmt.Errorf("%w: null entry %d in field %q", errShape, i, key)
				}
			}
		}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", errShape, err)
	}
	return nil
}

// request is implemented by every request body the gateway accepts.
type request interface {
	fields() []string
	expectedType() string
	requestType() string
}

// DecodeRequest reads one request body of type T from reader. Any structural
// problem yields ErrInvalidRequestShape without detail, so schema information
// is not leaked to callers.
func DecodeRequest[T any, PT interface {
	*T
	request
}](reader io.Reader) (*T, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, ErrInvalidRequestShape
	}
	return UnmarshalRequest[T, PT](data)
}

// UnmarshalRequest is DecodeRequest for an in-memory body.
func UnmarshalRequest[T any, PT interface {
	*T
	request
}](data []byte) (*T, error) {
	var msg T
	req := PT(&msg)
	if err := decodeStrict(data, req, req.fields()...); err != nil {
		return nil, ErrInvalidRequestShape
	}
	if req.requestType() != req.expectedType() {
		return nil, ErrInvalidRequestShape
	}
	return &msg, nil
}

// SerializeMessage serializes a message to JSON bytes.
func SerializeMessage[T any](msg *T) ([]byte, error) {
	return json.Marshal(msg)
}

// UnmarshalMessage deserializes a message from JSON bytes.
func UnmarshalMessage[T any](data []byte) (*T, error) {
	var msg T
	err := json.Unmarshal(data, &msg)
	return &msg, err
}

// DecodeMessage deserializes a message from a JSON reader.
func DecodeMessage[T any](reader io.Reader) (*T, error) {
	var msg T
	err := json.NewDecoder(reader).Decode(&msg)
	return &msg, err
}
