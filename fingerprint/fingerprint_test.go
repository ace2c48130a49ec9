package fingerprint

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFingerprintDeterministic(t *testing.T) {
	data := bytes.Repeat([]byte("clave"), 1000)

	a, err := Bytes(data)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "track.wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	b, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("file and buffer fingerprints differ: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(a))
	}
	if len(a.Short()) != 12 {
		t.Errorf("expected short form of 12 chars, got %q", a.Short())
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	large := make([]byte, 3*SampleSize)
	for i := range large {
		large[i] = byte(i % 251)
	}
	base, _ := Bytes(large)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
		same   bool
	}{
		{"head byte", func(b []byte) []byte { b[10]++; return b }, false},
		{"tail byte", func(b []byte) []byte { b[len(b)-10]++; return b }, false},
		{"middle byte", func(b []byte) []byte { b[len(b)/2]++; return b }, true},
		{"size", func(b []byte) []byte { return append(b, 0) }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(bytes.Clone(large))
			got, err := Bytes(data)
			if err != nil {
				t.Fatal(err)
			}
			if (got == base) != tt.same {
				t.Errorf("same=%v, want %v", got == base, tt.same)
			}
		})
	}
}

func TestFingerprintErrors(t *testing.T) {
	if _, err := Bytes(nil); !errors.Is(err, ErrEmptyContent) {
		t.Errorf("expected ErrEmptyContent, got %v", err)
	}
	if _, err := File(filepath.Join(t.TempDir(), "missing.mp3")); err == nil {
		t.Error("expected error for missing file")
	}
}
