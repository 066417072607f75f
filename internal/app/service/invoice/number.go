package invoice

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FormatNumber builds an invoice number PREFIX-YYYYMM#### where the sequence
// restarts every month.
func FormatNumber(prefix string, issued time.Time, seq int) string {
	return fmt.Sprintf("%s-%s%04d", prefix, issued.Format("200601"), seq)
}

// ParseNumber splits an invoice number into its year-month key and sequence.
func ParseNumber(number string) (month string, seq int, err error) {
	i := strings.LastIndex(number, "-")
	if i < 0 || len(number)-i-1 < 10 {
		return "", 0, fmt.Errorf("malformed invoice number: %q", number)
	}
	tail := number[i+1:]
	month = tail[:6]
	if _, err := time.Parse("200601", month); err != nil {
		return "", 0, fmt.Errorf("malformed invoice number: %q", number)
	}
	seq, err = strconv.Atoi(tail[6:])
	if err != nil || seq < 0 {
		return "", 0, fmt.Errorf("malformed invoice number: %q", number)
	}
	return month, seq, nil
}
