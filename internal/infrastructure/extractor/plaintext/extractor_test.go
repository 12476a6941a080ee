package plaintext

import (
	"context"
	"testing"
)

func TestExtractTrimsAndDropsBOM(t *testing.T) {
	text, err := NewExtractor().Extract(context.Background(), []byte("\uFEFF  olá mundo\n\n"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if text != "olá mundo" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestExtractRejectsBinary(t *testing.T) {
	if _, err := NewExtractor().Extract(context.Background(), []byte{0xff, 0xfe, 0x00, 0x81}); err == nil {
		t.Fatalf("expected error for invalid UTF-8")
	}
}
