package models

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseSignal_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"whitespace only", "   \n"},
		{"plain text", "hello"},
		{"truncated object", `{"licenseID": "abc"`},
		{"form encoded", "licenseID=abc&owner=x"},
		{"json null", "null"},
		{"invalid utf-8 in string", "{\"licenseID\":\"abc\xff\"}"},
		{"invalid utf-8 in key", "{\"\xc3\x28\":1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSignal([]byte(tt.body))
			if !errors.Is(err, ErrNoJSON) {
				t.Errorf("Expected ErrNoJSON, got %v", err)
			}
		})
	}
}

func TestParseSignal_KeepsKeyOrder(t *testing.T) {
	signal, err := ParseSignal([]byte(`{ "z": 1, "licenseID": "abc", "a": {"nested": [1, 2.50]} }`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := `{"z":1,"licenseID":"abc","a":{"nested":[1,2.50]}}`
	if string(signal.Bytes()) != expected {
		t.Errorf("Expected %s, got %s", expected, signal.Bytes())
	}
}

func TestSignal_LicenseID(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID string
		wantOK bool
	}{
		{"string id", `{"licenseID":"abc123","price":1}`, "abc123", true},
		{"missing id", `{"price":1}`, "", false},
		{"null id", `{"licenseID":null}`, "", false},
		{"numeric id", `{"licenseID":42}`, "", false},
		{"array document", `["licenseID"]`, "", false},
		{"scalar document", `"abc123"`, "", false},
		{"case sensitive key", `{"licenseid":"abc123"}`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, err := ParseSignal([]byte(tt.body))
			if err != nil {
				t.Fatalf("Expected no parse error, got %v", err)
			}
			id, ok := signal.LicenseID()
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("Expected (%q, %v), got (%q, %v)", tt.wantID, tt.wantOK, id, ok)
			}
		})
	}
}

func TestSignal_Fields(t *testing.T) {
	signal, err := ParseSignal([]byte(`{"ticker":"BTCUSD","licenseID":"abc","size":0.5,"meta":{"a":true},"note":null}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	fields, err := signal.Fields()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []Field{
		{"ticker", "BTCUSD"},
		{"licenseID", "abc"},
		{"size", "0.5"},
		{"meta", `{"a":true}`},
		{"note", "null"},
	}
	if len(fields) != len(expected) {
		t.Fatalf("Expected %d fields, got %d", len(expected), len(fields))
	}
	for i := range expected {
		if fields[i] != expected[i] {
			t.Errorf("Field %d: expected %+v, got %+v", i, expected[i], fields[i])
		}
	}
}

func TestSignal_FieldsOfNonObject(t *testing.T) {
	signal, _ := ParseSignal([]byte(`[1,2,3]`))

	fields, err := signal.Fields()
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if fields != nil {
		t.Errorf("Expected no fields for array document, got %v", fields)
	}
}

func TestSignal_Empty(t *testing.T) {
	var signal Signal

	if !signal.IsEmpty() {
		t.Error("Expected zero signal to be empty")
	}
	if string(signal.Bytes()) != "{}" {
		t.Errorf("Expected {}, got %s", signal.Bytes())
	}
	if _, ok := signal.LicenseID(); ok {
		t.Error("Expected empty signal to carry no licenseID")
	}
	if signal.Pretty() != "{}" {
		t.Errorf("Expected pretty {}, got %s", signal.Pretty())
	}
}

func TestSignal_Pretty(t *testing.T) {
	signal, _ := ParseSignal([]byte(`{"b":1,"a":[true]}`))

	expected := "{\n    \"b\": 1,\n    \"a\": [\n        true\n    ]\n}"
	if signal.Pretty() != expected {
		t.Errorf("Expected %q, got %q", expected, signal.Pretty())
	}
}

func TestSignal_EmbedsVerbatimInJSON(t *testing.T) {
	signal, _ := ParseSignal([]byte(`{"b":1,"a":2}`))

	data, err := json.Marshal(map[string]interface{}{"signal": signal})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}
	if string(data) != `{"signal":{"b":1,"a":2}}` {
		t.Errorf("Unexpected encoding: %s", data)
	}

	var decoded struct {
		Signal Signal `json:"signal"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if string(decoded.Signal.Bytes()) != `{"b":1,"a":2}` {
		t.Errorf("Expected key order preserved, got %s", decoded.Signal.Bytes())
	}
}
