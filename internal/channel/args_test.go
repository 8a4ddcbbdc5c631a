package channel

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestDecodeArguments(t *testing.T) {
	nilCases := []string{"", "  ", "null"}
	for _, raw := range nilCases {
		v, err := DecodeArguments(json.RawMessage(raw))
		if err != nil || v != nil {
			t.Errorf("Expected nil for %q, got %#v (%v)", raw, v, err)
		}
	}

	v, _ := DecodeArguments(json.RawMessage(`"Receipt #1"`))
	if v != "Receipt #1" {
		t.Errorf("Expected string, got %#v", v)
	}

	v, _ = DecodeArguments(json.RawMessage(`[27, 64, 255]`))
	if b, ok := v.([]byte); !ok || !bytes.Equal(b, []byte{27, 64, 255}) {
		t.Errorf("Expected byte slice, got %#v", v)
	}

	v, _ = DecodeArguments(json.RawMessage(`{"$bytes": "G0A="}`))
	if b, ok := v.([]byte); !ok || !bytes.Equal(b, []byte{0x1B, 0x40}) {
		t.Errorf("Expected tagged bytes, got %#v", v)
	}

	v, _ = DecodeArguments(json.RawMessage(`[]`))
	if b, ok := v.([]byte); !ok || len(b) != 0 {
		t.Errorf("Expected empty byte slice, got %#v", v)
	}
}

func TestDecodeArguments_NotBytes(t *testing.T) {
	for _, raw := range []string{`[1, 256]`, `[-1]`, `[1.5]`, `["a"]`, `{"$bytes": "***"}`, `{"$bytes": "G0A=", "x": 1}`, `42`, `true`} {
		v, err := DecodeArguments(json.RawMessage(raw))
		if err != nil {
			t.Errorf("Expected generic value for %s, got error %v", raw, err)
			continue
		}
		if _, ok := v.([]byte); ok {
			t.Errorf("Expected %s not to decode as bytes", raw)
		}
	}
}

func TestDecodeArguments_Malformed(t *testing.T) {
	if _, err := DecodeArguments(json.RawMessage(`{"unterminated`)); err == nil {
		t.Error("Expected error for malformed JSON")
	}
}

func TestBytesArgument_RoundTrip(t *testing.T) {
	payload := []byte{0x1B, 0x40, 'h', 'i'}
	raw, err := json.Marshal(BytesArgument(payload))
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	v, err := DecodeArguments(raw)
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if b, ok := v.([]byte); !ok || !bytes.Equal(b, payload) {
		t.Errorf("Expected %v, got %#v", payload, v)
	}
}
