package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrNoJSON is returned for bodies that are empty, malformed or the literal null.
var ErrNoJSON = errors.New("no JSON payload")

// Signal is the last accepted webhook payload. The document is kept as
// compacted raw JSON so key order and number formatting survive a round trip.
type Signal struct {
	raw json.RawMessage
}

// Field is one top-level member of an object signal. Value holds string
// members unquoted and every other member as compact JSON.
type Field struct {
	Key   string
	Value string
}

// ParseSignal accepts any well-formed UTF-8 JSON document except null.
// json.Valid alone lets invalid UTF-8 inside strings through.
func ParseSignal(body []byte) (Signal, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !utf8.Valid(trimmed) || !json.Valid(trimmed) || bytes.Equal(trimmed, []byte("null")) {
		return Signal{}, ErrNoJSON
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return Signal{}, ErrNoJSON
	}
	return Signal{raw: buf.Bytes()}, nil
}

func (s Signal) IsEmpty() bool {
	return len(s.raw) == 0
}

// Bytes returns the compact document, or {} for an empty signal.
func (s Signal) Bytes() []byte {
	if s.IsEmpty() {
		return []byte("{}")
	}
	return append([]byte(nil), s.raw...)
}

func (s Signal) MarshalJSON() ([]byte, error) {
	return s.Bytes(), nil
}

func (s *Signal) UnmarshalJSON(data []byte) error {
	parsed, err := ParseSignal(data)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Pretty returns the document indented with four spaces.
func (s Signal) Pretty() string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, s.Bytes(), "", "    "); err != nil {
		return string(s.Bytes())
	}
	return buf.String()
}

// LicenseID returns the top-level "licenseID" string member. Documents that
// are not objects, or whose licenseID is missing or not a string, have none.
func (s Signal) LicenseID() (string, bool) {
	if s.IsEmpty() || s.raw[0] != '{' {
		return "", false
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(s.raw, &doc); err != nil {
		return "", false
	}
	value, ok := doc["licenseID"]
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(value, &id); err != nil {
		return "", false
	}
	return id, true
}

// Fields lists the top-level members of an object signal in document order.
// Non-object signals yield nil.
func (s Signal) Fields() ([]Field, error) {
	if s.IsEmpty() || s.raw[0] != '{' {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(s.raw))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("reading signal: %w", err)
	}

	var fields []Field
	for dec.More() {
		token, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("reading signal key: %w", err)
		}
		key, _ := token.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("reading signal value %q: %w", key, err)
		}
		fields = append(fields, Field{Key: key, Value: displayValue(value)})
	}
	return fields, nil
}

func displayValue(value json.RawMessage) string {
	if strings.HasPrefix(string(value), `"`) {
		var str string
		if err := json.Unmarshal(value, &str); err == nil {
			return str
		}
	}
	return string(value)
}
