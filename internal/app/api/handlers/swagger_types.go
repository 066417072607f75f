package handlers

import (
	"github.com/fatflowers/paywall/internal/app/service/checkout"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// RespOneTimeCheckout wraps the one-time checkout result in the standard envelope.
type RespOneTimeCheckout struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.OneTimeResult   `json:"data"`
}

// RespSubscribe wraps the subscription checkout result in the standard envelope.
type RespSubscribe struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    checkout.SubscribeResult `json:"data"`
}

// RespAppleReceipt wraps the receipt redemption result in the standard envelope.
type RespAppleReceipt struct {
	Code    response.APIResponseCode    `json:"code"`
	Message string                      `json:"message"`
	Data    checkout.AppleReceiptResult `json:"data"`
}

// RespTransaction wraps a single ledger entry in the standard envelope.
type RespTransaction struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Transaction       `json:"data"`
}

// RespSubscription wraps a subscription in the standard envelope.
type RespSubscription struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    models.Subscription      `json:"data"`
}

// RespAccessCheck wraps an access decision in the standard envelope.
type RespAccessCheck struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    accessCheckResponse      `json:"data"`
}

// RespScanTransactions wraps the admin scan result in the standard envelope.
type RespScanTransactions struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ledger.ScanResponse      `json:"data"`
}
