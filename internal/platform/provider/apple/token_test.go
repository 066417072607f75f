package apple

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserIDTokenRoundTrip(t *testing.T) {
	for _, userID := range []string{
		"a1",
		"0123456789abcdef",
		strings.Repeat("f", 30),
	} {
		token, err := UserIDToToken(userID)
		require.NoError(t, err)
		require.Len(t, token, 36, "token must be UUID-shaped")

		got, err := TokenToUserID(token)
		require.NoError(t, err)
		require.Equal(t, userID, got)
	}
}

func TestUserIDToToken_Invalid(t *testing.T) {
	_, err := UserIDToToken("")
	require.Error(t, err)

	_, err = UserIDToToken("not-hex!")
	require.Error(t, err)

	_, err = UserIDToToken(strings.Repeat("f", 31))
	require.Error(t, err, "over the packable length")
}

func TestTokenToUserID_Invalid(t *testing.T) {
	_, err := TokenToUserID("")
	require.Error(t, err)

	_, err = TokenToUserID("00000000-0000-0000-0000-000000000000")
	require.Error(t, err, "zero length prefix is not a packed user id")

	// length prefix claims more payload than fits
	_, err = TokenToUserID("ff000000-0000-0000-0000-000000000000")
	require.Error(t, err)

	// padding must be all pad characters
	token, err := UserIDToToken("abcd")
	require.NoError(t, err)
	broken := strings.Replace(token, "a", "b", -1)
	_, err = TokenToUserID(broken)
	require.Error(t, err)
}

func TestUserIDToToken_CaseInsensitive(t *testing.T) {
	lower, err := UserIDToToken("abcdef")
	require.NoError(t, err)
	upper, err := UserIDToToken("ABCDEF")
	require.NoError(t, err)
	require.Equal(t, lower, upper)
}
