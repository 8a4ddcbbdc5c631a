// Package escpos frames payloads for ESC/POS receipt printers
package escpos

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ESC/POS control bytes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	LF  byte = 0x0A
)

// cutWindow is how far back from the end of a raw payload we look for a cut
const cutWindow = 16

// Encoder accumulates ESC/POS commands
type Encoder struct {
	buffer  *bytes.Buffer
	charset encoding.Encoding
}

// NewEncoder creates an encoder that writes text in the given charset
func NewEncoder(charset encoding.Encoding) *Encoder {
	return &Encoder{
		buffer:  new(bytes.Buffer),
		charset: charset,
	}
}

// Initialize writes ESC @
func (e *Encoder) Initialize() {
	e.buffer.WriteByte(ESC)
	e.buffer.WriteByte('@')
}

// LineFeed writes a single line feed
func (e *Encoder) LineFeed() {
	e.buffer.WriteByte(LF)
}

// Feed writes ESC d n to advance the paper n lines
func (e *Encoder) Feed(lines int) {
	e.buffer.WriteByte(ESC)
	e.buffer.WriteByte('d')
	e.buffer.WriteByte(byte(lines))
}

// Cut writes a full cut
func (e *Encoder) Cut() {
	e.buffer.WriteByte(GS)
	e.buffer.WriteByte('V')
	e.buffer.WriteByte(0)
}

// Write appends raw bytes
func (e *Encoder) Write(data []byte) {
	e.buffer.Write(data)
}

// WriteText appends text in the encoder's charset. Runes the code page
// cannot represent are replaced rather than rejected.
func (e *Encoder) WriteText(text string) error {
	enc := encoding.ReplaceUnsupported(e.charset.NewEncoder())
	data, err := enc.Bytes([]byte(text))
	if err != nil {
		return fmt.Errorf("failed to encode text: %w", err)
	}
	e.buffer.Write(data)
	return nil
}

// GetBytes returns the generated commands
func (e *Encoder) GetBytes() []byte {
	return e.buffer.Bytes()
}

// Framer turns print requests into device-ready payloads. It holds no
// buffer of its own and is safe for concurrent use.
type Framer struct {
	charset   encoding.Encoding
	feedLines int
}

// NewFramer creates a framer for the named charset (e.g. "CP858") that
// feeds feedLines before every cut it appends
func NewFramer(charsetName string, feedLines int) (*Framer, error) {
	cs, err := LookupCharset(charsetName)
	if err != nil {
		return nil, err
	}
	if feedLines < 0 {
		feedLines = 0
	}
	if feedLines > 255 {
		feedLines = 255
	}
	return &Framer{charset: cs, feedLines: feedLines}, nil
}

// FrameRaw wraps a caller-built payload: ESC @ first, then the payload,
// then feed and cut unless the payload already ends with a cut
func (f *Framer) FrameRaw(data []byte) []byte {
	e := NewEncoder(f.charset)
	e.Initialize()
	e.Write(data)
	if !EndsWithCut(data) {
		e.Feed(f.feedLines)
		e.Cut()
	}
	return e.GetBytes()
}

// FrameText encodes text and terminates it with LF, feed and cut
func (f *Framer) FrameText(text string) ([]byte, error) {
	e := NewEncoder(f.charset)
	if err := e.WriteText(text); err != nil {
		return nil, err
	}
	e.LineFeed()
	e.Feed(f.feedLines)
	e.Cut()
	return e.GetBytes(), nil
}

// LookupCharset resolves a code page name to a text encoding
func LookupCharset(name string) (encoding.Encoding, error) {
	switch strings.ToUpper(strings.ReplaceAll(name, "-", "")) {
	case "", "CP858", "IBM858":
		return charmap.CodePage858, nil
	case "CP437", "IBM437":
		return charmap.CodePage437, nil
	case "CP850", "IBM850":
		return charmap.CodePage850, nil
	case "CP1252", "WINDOWS1252":
		return charmap.Windows1252, nil
	case "ISO88591", "LATIN1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unsupported charset: %s", name)
	}
}

// EndsWithCut reports whether a GS V sequence appears in the trailing
// bytes of data
func EndsWithCut(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	start := len(data) - cutWindow
	if start < 0 {
		start = 0
	}
	for i := start; i <= len(data)-2; i++ {
		if data[i] == GS && data[i+1] == 'V' {
			return true
		}
	}
	return false
}
