package channel

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// bytesKey tags a base64 byte sequence inside a JSON argument
const bytesKey = "$bytes"

// DecodeArguments turns a JSON argument into the value a Call carries.
// null and absent become nil, strings stay strings, {"$bytes": base64}
// and arrays of integers in 0..255 become []byte. Anything else decodes
// to its generic JSON form and fails the print methods' type checks.
func DecodeArguments(raw json.RawMessage) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	switch trimmed[0] {
	case '[':
		var ints []int
		if err := json.Unmarshal(trimmed, &ints); err == nil {
			if data, ok := intsToBytes(ints); ok {
				return data, nil
			}
		}
	case '{':
		var tagged map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &tagged); err == nil && len(tagged) == 1 {
			if encoded, ok := tagged[bytesKey]; ok {
				var s string
				if err := json.Unmarshal(encoded, &s); err == nil {
					if data, err := base64.StdEncoding.DecodeString(s); err == nil {
						return data, nil
					}
				}
			}
		}
	}

	var value any
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, fmt.Errorf("malformed arguments: %w", err)
	}
	return value, nil
}

// BytesArgument wraps data in the tagged form DecodeArguments understands
func BytesArgument(data []byte) map[string]string {
	return map[string]string{bytesKey: base64.StdEncoding.EncodeToString(data)}
}

func intsToBytes(ints []int) ([]byte, bool) {
	data := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return nil, false
		}
		data[i] = byte(v)
	}
	return data, true
}
