package utils

import (
	"encoding/base64"
	"strings"
)

// EncodeBase64URL encodes raw bytes using unpadded base64url as
// required by the WebAuthn wire format.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes base64url strings with or without padding.
// Browsers and authenticators are inconsistent about padding, so we
// re-pad before decoding.
func DecodeBase64URL(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.URLEncoding.DecodeString(s)
}
