package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func signHeader(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Unix(1790000000, 0)
	header := signHeader(t, payload, "whsec_test", now)

	require.NoError(t, VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, now))
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1790000000, 0)
	header := signHeader(t, payload, "whsec_other", now)

	err := VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, now)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	now := time.Unix(1790000000, 0)
	header := signHeader(t, []byte(`{"amount":100}`), "whsec_test", now)

	err := VerifySignature([]byte(`{"amount":10000}`), header, "whsec_test", DefaultSignatureTolerance, now)
	require.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifySignature_Expired(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Unix(1790000000, 0)
	header := signHeader(t, payload, "whsec_test", signedAt)

	err := VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, signedAt.Add(6*time.Minute))
	require.ErrorIs(t, err, ErrSignatureExpired)

	// clock skew in the other direction is rejected too
	err = VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, signedAt.Add(-6*time.Minute))
	require.ErrorIs(t, err, ErrSignatureExpired)
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1790000000, 0)

	for _, header := range []string{
		"",
		"t=notanumber,v1=deadbeef",
		"v1=deadbeef",
		fmt.Sprintf("t=%d", now.Unix()),
	} {
		err := VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, now)
		require.Error(t, err, "header %q", header)
	}
}

func TestVerifySignature_SecondV1EntryPasses(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Unix(1790000000, 0)

	mac := hmac.New(sha256.New, []byte("whsec_test"))
	fmt.Fprintf(mac, "%d.%s", now.Unix(), payload)
	good := hex.EncodeToString(mac.Sum(nil))
	stale := hex.EncodeToString(make([]byte, 32))
	header := fmt.Sprintf("t=%d,v1=%s,v1=%s", now.Unix(), stale, good)

	require.NoError(t, VerifySignature(payload, header, "whsec_test", DefaultSignatureTolerance, now))
}
