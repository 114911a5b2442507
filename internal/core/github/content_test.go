package github

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContentRoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("# Auto Commit\n\nUpdated on 2025-01-01"),
		{0x00, 0xff, 0x10, 0x80},
		[]byte(strings.Repeat("é✓", 200)),
	}
	for _, input := range inputs {
		decoded, err := DecodeContent(EncodeContent(input))
		require.NoError(t, err)
		require.Equal(t, input, decoded)
	}
}

func TestDecodeContentIgnoresLineBreaks(t *testing.T) {
	decoded, err := DecodeContent("aGVs\r\nbG8=\n")
	require.NoError(t, err)
	require.Equal(t, "hello", string(decoded))
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{token: "ghp_" + strings.Repeat("a", 36), want: true},
		{token: "gho_" + strings.Repeat("B", 40), want: true},
		{token: "github_pat_" + strings.Repeat("x", 22) + "_" + strings.Repeat("y", 59), want: true},
		{token: strings.Repeat("a1", 20), want: true},
		{token: "ghp_short", want: false},
		{token: "", want: false},
		{token: strings.Repeat("z", 40), want: false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, ValidateToken(tt.token), tt.token)
	}
}

func TestMaskToken(t *testing.T) {
	require.Equal(t, "ghp_********wxyz", MaskToken("ghp_abcdefghijklmnopqrstuvwxyz"))
	require.Equal(t, "***", MaskToken("abc"))
}
