package invoice

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
)

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "0.00", formatAmount(0))
	require.Equal(t, "0.05", formatAmount(5))
	require.Equal(t, "9.99", formatAmount(999))
	require.Equal(t, "120.00", formatAmount(12000))
	require.Equal(t, "-9.99", formatAmount(-999))
}

func TestArtifactTemplate(t *testing.T) {
	cfg := &config.Config{}
	cfg.Invoice.SenderName = "Acme Media"
	cfg.Invoice.SenderAddress = "1 Example Street"
	s := &Service{cfg: cfg}

	now := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	inv := &models.Invoice{
		Number:    "INV-2026080007",
		Amount:    900,
		TaxAmount: 171,
		Total:     1071,
		Currency:  "eur",
		IssuedAt:  now,
		DueAt:     now.AddDate(0, 0, 14),
	}
	txn := &models.Transaction{
		Amount:         1000,
		CouponCode:     "WELCOME10",
		DiscountAmount: 100,
		ContentType:    strPtr("article"),
		ContentID:      strPtr("a-42"),
	}

	var buf bytes.Buffer
	err := artifactTmpl.Execute(&buf, s.artifactData(inv, txn, &BillingDetails{VATID: "DE123456789"}))
	require.NoError(t, err)

	out := buf.String()
	require.Contains(t, out, "INV-2026080007")
	require.Contains(t, out, "Acme Media")
	require.Contains(t, out, "article a-42")
	require.Contains(t, out, "10.00 EUR")
	require.Contains(t, out, "WELCOME10")
	require.Contains(t, out, "-1.00 EUR")
	require.Contains(t, out, "10.71 EUR")
	require.Contains(t, out, "DE123456789")
}

func strPtr(s string) *string { return &s }
