package types

type PaymentProvider string

const (
	PaymentProviderStripe PaymentProvider = "stripe"
	PaymentProviderPayPal PaymentProvider = "paypal"
	PaymentProviderApple  PaymentProvider = "apple"
	// PaymentProviderInner is used for complimentary grants issued by operators;
	// no money moves through an external processor.
	PaymentProviderInner PaymentProvider = "inner"
)

type TransactionType string

const (
	TransactionTypeOneTime      TransactionType = "one_time"
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeUpgrade      TransactionType = "upgrade"
	TransactionTypeDowngrade    TransactionType = "downgrade"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
	TransactionStatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether no further business-driven transition is expected
// from the status. completed is terminal except for the explicit refund path.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed,
		TransactionStatusRefunded, TransactionStatusCancelled:
		return true
	}
	return false
}

type AccessType string

const (
	AccessTypeOneTime      AccessType = "one_time"
	AccessTypeSubscription AccessType = "subscription"
	AccessTypePlanRequired AccessType = "plan_required"
)

// ContentRef identifies a protected content item.
type ContentRef struct {
	Type string `json:"content_type"`
	ID   string `json:"content_id"`
}

func (r ContentRef) Valid() bool { return r.Type != "" && r.ID != "" }
