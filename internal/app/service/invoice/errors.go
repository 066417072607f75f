package invoice

import "errors"

var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrTransactionNotBillable = errors.New("transaction is not in a billable state")
)
