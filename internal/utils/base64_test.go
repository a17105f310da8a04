package utils

import (
	"bytes"
	"testing"
)

func TestBase64URLRoundTrip(t *testing.T) {
	data := RandomBytes(32)
	encoded := EncodeBase64URL(data)

	decoded, err := DecodeBase64URL(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecodeBase64URLPaddingVariants(t *testing.T) {
	// "hi" encodes to "aGk" unpadded, "aGk=" padded.
	for _, input := range []string{"aGk", "aGk="} {
		decoded, err := DecodeBase64URL(input)
		if err != nil {
			t.Fatalf("decoding %q: %v", input, err)
		}
		if string(decoded) != "hi" {
			t.Fatalf("decoding %q: got %q", input, decoded)
		}
	}
}

func TestDecodeBase64URLRejectsInvalid(t *testing.T) {
	if _, err := DecodeBase64URL("!!not-base64!!"); err == nil {
		t.Fatal("expected error for invalid input")
	}
}

func TestRandomBytesLength(t *testing.T) {
	if got := len(RandomBytes(32)); got != 32 {
		t.Fatalf("expected 32 bytes, got %d", got)
	}
	if bytes.Equal(RandomBytes(16), RandomBytes(16)) {
		t.Fatal("two random draws are identical")
	}
}
