package invoice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	issued := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	require.Equal(t, "INV-2026080001", FormatNumber("INV", issued, 1))
	require.Equal(t, "INV-2026080042", FormatNumber("INV", issued, 42))
	require.Equal(t, "ACME-2026089999", FormatNumber("ACME", issued, 9999))
	// the sequence widens past four digits instead of wrapping
	require.Equal(t, "INV-20260810001", FormatNumber("INV", issued, 10001))
}

func TestParseNumber(t *testing.T) {
	month, seq, err := ParseNumber("INV-2026080042")
	require.NoError(t, err)
	require.Equal(t, "202608", month)
	require.Equal(t, 42, seq)

	month, seq, err = ParseNumber("ACME-20260810001")
	require.NoError(t, err)
	require.Equal(t, "202608", month)
	require.Equal(t, 10001, seq)
}

func TestParseNumber_RoundTrip(t *testing.T) {
	issued := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	for _, seq := range []int{1, 99, 1234, 99999} {
		month, got, err := ParseNumber(FormatNumber("INV", issued, seq))
		require.NoError(t, err)
		require.Equal(t, "202612", month)
		require.Equal(t, seq, got)
	}
}

func TestParseNumber_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"INV",
		"INV-",
		"INV-2026",
		"INV-209901xxxx",
		"INV-abcdef0001",
		"2026080001",
	} {
		_, _, err := ParseNumber(in)
		require.Error(t, err, "input %q", in)
	}
}
