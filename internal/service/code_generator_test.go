package service

import (
	"bytes"
	"errors"
	"testing"
)

func TestCodeGeneratorProducesSixDigits(t *testing.T) {
	gen := NewCodeGenerator()
	seen := make(map[string]struct{})

	for i := 0; i < 2000; i++ {
		code, err := gen.Generate()
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 characters, got %q", code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("expected only digits, got %q", code)
			}
		}
		if code[0] == '0' {
			t.Fatalf("code below range: %q", code)
		}
		seen[code] = struct{}{}
	}

	if len(seen) < 1900 {
		t.Fatalf("expected mostly distinct codes, got %d distinct of 2000", len(seen))
	}
}

func TestCodeGeneratorBounds(t *testing.T) {
	low := &CodeGenerator{reader: bytes.NewReader(make([]byte, 64))}
	code, err := low.Generate()
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if code != "100000" {
		t.Fatalf("expected lowest code 100000, got %q", code)
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestCodeGeneratorPropagatesReaderError(t *testing.T) {
	gen := &CodeGenerator{reader: failingReader{}}
	if _, err := gen.Generate(); err == nil {
		t.Fatal("expected error from failing reader")
	}
}
