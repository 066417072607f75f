package apple

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// The app account token field in store receipts must be a UUID, so user ids
// are packed into one with a reversible length-prefixed hex scheme:
// [2-hex length][hex user id][padding to 32 with 'a'].
const (
	tokenHexLen     = 32
	maxUserIDHexLen = 30
	padChar         = "a"
)

// UserIDToToken packs a hex user id into an app account token (UUID form).
func UserIDToToken(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id is empty")
	}

	normalized := strings.ToLower(userID)
	if !isHex(normalized) {
		return "", fmt.Errorf("string is not valid hex")
	}
	if len(normalized) > maxUserIDHexLen {
		return "", fmt.Errorf("hex string too long: max length is %d", maxUserIDHexLen)
	}

	tokenHex := fmt.Sprintf("%02x", len(normalized)) + normalized
	if len(tokenHex) < tokenHexLen {
		tokenHex += strings.Repeat(padChar, tokenHexLen-len(tokenHex))
	}
	return formatUUID(tokenHex)
}

// TokenToUserID recovers the user id from an app account token.
func TokenToUserID(token string) (string, error) {
	clean := strings.ToLower(strings.ReplaceAll(token, "-", ""))
	if len(clean) != tokenHexLen || !isHex(clean) {
		return "", fmt.Errorf("invalid token format")
	}

	n, err := strconv.ParseUint(clean[:2], 16, 8)
	if err != nil {
		return "", fmt.Errorf("invalid token length prefix")
	}
	size := int(n)
	if size <= 0 || size > maxUserIDHexLen {
		return "", fmt.Errorf("token is not encoded by known user id scheme")
	}

	end := 2 + size
	payload := clean[2:end]
	padding := clean[end:]
	if !isHex(payload) || strings.Trim(padding, padChar) != "" {
		return "", fmt.Errorf("token is not encoded by known user id scheme")
	}
	return payload, nil
}

func formatUUID(tokenHex string) (string, error) {
	if len(tokenHex) != tokenHexLen {
		return "", fmt.Errorf("invalid token hex length: %d", len(tokenHex))
	}
	var b strings.Builder
	b.WriteString(tokenHex[:8])
	b.WriteString("-")
	b.WriteString(tokenHex[8:12])
	b.WriteString("-")
	b.WriteString(tokenHex[12:16])
	b.WriteString("-")
	b.WriteString(tokenHex[16:20])
	b.WriteString("-")
	b.WriteString(tokenHex[20:32])
	return b.String(), nil
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !(unicode.IsDigit(ch) || ('a' <= ch && ch <= 'f') || ('A' <= ch && ch <= 'F')) {
			return false
		}
	}
	return true
}
