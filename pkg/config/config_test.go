package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCouponDiscount(t *testing.T) {
	percent := &Coupon{Code: "TEN", PercentOff: 10}
	require.Equal(t, int64(100), percent.Discount(1000))
	require.Equal(t, int64(0), percent.Discount(0))

	fixed := &Coupon{Code: "OFF500", AmountOff: 500}
	require.Equal(t, int64(500), fixed.Discount(1000))
	require.Equal(t, int64(300), fixed.Discount(300), "discount is capped at the amount")

	both := &Coupon{Code: "BOTH", AmountOff: 200, PercentOff: 50}
	require.Equal(t, int64(200), both.Discount(1000), "fixed amount wins when both are set")

	var nilCoupon *Coupon
	require.Equal(t, int64(0), nilCoupon.Discount(1000))
}

func TestGetCoupon(t *testing.T) {
	c := &Config{Coupons: []*Coupon{{Code: "Welcome10", PercentOff: 10}}}
	require.NotNil(t, c.GetCoupon("WELCOME10"), "lookup is case-insensitive")
	require.NotNil(t, c.GetCoupon("welcome10"))
	require.Nil(t, c.GetCoupon("NOPE"))
	require.Nil(t, c.GetCoupon(""))
}

func TestTaxRateFor(t *testing.T) {
	c := &Config{}
	c.Invoice.DefaultTaxRate = 500
	c.Invoice.TaxRates = map[string]int64{"DE": 1900, "FR": 2000}

	require.Equal(t, int64(1900), c.TaxRateFor("DE", ""))
	require.Equal(t, int64(1900), c.TaxRateFor("de", ""), "country match is case-insensitive")
	require.Equal(t, int64(2000), c.TaxRateFor("FR", ""))
	require.Equal(t, int64(500), c.TaxRateFor("US", ""), "unknown country falls back to the default rate")
	require.Equal(t, int64(0), c.TaxRateFor("DE", "DE123456789"), "VAT id zero-rates the invoice")
}
