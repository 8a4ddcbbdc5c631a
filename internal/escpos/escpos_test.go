package escpos

import (
	"bytes"
	"testing"
)

func TestEndsWithCut(t *testing.T) {
	if EndsWithCut(nil) {
		t.Error("Expected nil payload to have no cut")
	}
	if EndsWithCut([]byte{GS}) {
		t.Error("Expected single byte payload to have no cut")
	}
	if !EndsWithCut([]byte{'h', 'i', GS, 'V', 0}) {
		t.Error("Expected trailing GS V to be detected")
	}

	// A cut buried before the trailing window does not count
	data := append([]byte{GS, 'V', 0}, bytes.Repeat([]byte{'x'}, 20)...)
	if EndsWithCut(data) {
		t.Error("Expected cut outside the trailing window to be ignored")
	}
}

func TestFrameRaw_AppendsFeedAndCut(t *testing.T) {
	f, err := NewFramer("CP858", 2)
	if err != nil {
		t.Fatalf("Failed to create framer: %v", err)
	}

	got := f.FrameRaw([]byte("abc"))
	want := []byte{ESC, '@', 'a', 'b', 'c', ESC, 'd', 2, GS, 'V', 0}
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % X, got % X", want, got)
	}
}

func TestFrameRaw_KeepsExistingCut(t *testing.T) {
	f, _ := NewFramer("CP858", 2)

	payload := []byte{'a', GS, 'V', 1}
	got := f.FrameRaw(payload)
	want := append([]byte{ESC, '@'}, payload...)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % X, got % X", want, got)
	}
}

func TestFrameText_CP858(t *testing.T) {
	f, _ := NewFramer("CP858", 3)

	got, err := f.FrameText("Receipt #1 €")
	if err != nil {
		t.Fatalf("Failed to frame text: %v", err)
	}

	want := append([]byte("Receipt #1 "), 0xD5, LF, ESC, 'd', 3, GS, 'V', 0)
	if !bytes.Equal(got, want) {
		t.Errorf("Expected % X, got % X", want, got)
	}
}

func TestFrameText_ReplacesUnsupportedRunes(t *testing.T) {
	f, _ := NewFramer("CP858", 0)

	got, err := f.FrameText("漢")
	if err != nil {
		t.Fatalf("Expected replacement instead of error, got %v", err)
	}
	if len(got) == 0 || got[0] == 0 {
		t.Errorf("Expected a replacement byte, got % X", got)
	}
}

func TestFramer_ConcurrentUse(t *testing.T) {
	f, _ := NewFramer("CP858", 1)

	done := make(chan []byte, 8)
	for i := 0; i < 8; i++ {
		go func() {
			done <- f.FrameRaw([]byte("same"))
		}()
	}
	first := <-done
	for i := 1; i < 8; i++ {
		if got := <-done; !bytes.Equal(got, first) {
			t.Fatalf("Expected identical frames, got % X and % X", first, got)
		}
	}
}

func TestLookupCharset(t *testing.T) {
	for _, name := range []string{"", "cp858", "CP-437", "windows-1252", "latin1"} {
		if _, err := LookupCharset(name); err != nil {
			t.Errorf("Expected charset %q to resolve, got %v", name, err)
		}
	}
	if _, err := LookupCharset("EBCDIC"); err == nil {
		t.Error("Expected error for unknown charset")
	}
}

func TestNewFramer_ClampsFeed(t *testing.T) {
	f, _ := NewFramer("CP858", 999)
	got := f.FrameRaw([]byte("x"))
	if got[len(got)-4] != 255 {
		t.Errorf("Expected feed clamped to 255, got %d", got[len(got)-4])
	}
}
