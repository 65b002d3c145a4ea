// Package ordered reads and writes JSON objects whose key order matters.
//
// encoding/json decodes objects into maps and loses the order in which keys
// appeared. Persisted snapshots need that order back so notifications list
// courses and assignments the way the portal listed them.
package ordered

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrNotObject is returned by Decode when the input is not an object.
	// A JSON null is not an object.
	ErrNotObject = errors.New("ordered: not a JSON object")
	// ErrTrailingData is returned by Decode when bytes follow the object.
	ErrTrailingData = errors.New("ordered: data after the object")
)

// Decode walks the top-level object in data and calls fn for every member in
// document order. The input must hold exactly one object; surrounding
// whitespace is allowed.
func Decode(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("ordered: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return ErrNotObject
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("ordered: key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("ordered: unexpected key token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("ordered: value of %q: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("ordered: closing brace: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return ErrTrailingData
	}
	return nil
}

// Writer builds a JSON object one member at a time.
type Writer struct {
	buf bytes.Buffer
	n   int
}

// Field appends key: value. Values are encoded with encoding/json.
func (w *Writer) Field(key string, value any) error {
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ordered: value of %q: %w", key, err)
	}
	return w.Raw(key, v)
}

// Raw appends key: value where value is already valid JSON.
func (w *Writer) Raw(key string, value json.RawMessage) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	if w.n == 0 {
		w.buf.WriteByte('{')
	} else {
		w.buf.WriteByte(',')
	}
	w.buf.Write(k)
	w.buf.WriteByte(':')
	w.buf.Write(value)
	w.n++
	return nil
}

// Bytes closes the object and returns it. An empty Writer yields "{}".
func (w *Writer) Bytes() []byte {
	if w.n == 0 {
		return []byte("{}")
	}
	out := make([]byte, 0, w.buf.Len()+1)
	out = append(out, w.buf.Bytes()...)
	return append(out, '}')
}
