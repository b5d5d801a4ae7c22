package pdf

import "testing"

func TestExtractEmpty(t *testing.T) {
	if _, err := NewExtractor().Extract(nil); err == nil {
		t.Error("expected error for empty content")
	}
}

func TestExtractCorrupt(t *testing.T) {
	if _, err := NewExtractor().Extract([]byte("not a pdf at all")); err == nil {
		t.Error("expected error for corrupt content")
	}
}
