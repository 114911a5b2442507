package github

import (
	"encoding/base64"
	"strings"
)

// EncodeContent encodes file bytes for the contents API.
func EncodeContent(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DecodeContent reverses EncodeContent. The API wraps long payloads with
// newlines, which are ignored.
func DecodeContent(value string) ([]byte, error) {
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(value)
	return base64.StdEncoding.DecodeString(cleaned)
}
