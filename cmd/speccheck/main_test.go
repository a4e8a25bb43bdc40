package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncateString(t *testing.T) {
	require.Equal(t, "short", truncateString("short", 10))
	require.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))

	// multi-byte characters are never split
	out := truncateString("default-src 'self' ünïcödé ✓✓✓✓✓", 22)
	require.True(t, utf8.ValidString(out))
	require.Equal(t, 22, utf8.RuneCountInString(out))
	require.Equal(t, "default-src 'self' ...", out)
}
