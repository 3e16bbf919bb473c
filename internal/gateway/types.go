package gateway

// Transaction-status vocabulary reported by the gateway.
const (
	StatusCapture    = "capture"
	StatusSettlement = "settlement"
	StatusPending    = "pending"
	StatusDeny       = "deny"
	StatusCancel     = "cancel"
	StatusExpire     = "expire"
)

// Fraud-check vocabulary reported alongside capture statuses.
const (
	FraudAccept    = "accept"
	FraudChallenge = "challenge"
	FraudDeny      = "deny"
)

// TransactionItem is one purchased line forwarded to the gateway.
type TransactionItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CustomerDetails is the contact snapshot forwarded to the gateway.
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreateTransactionRequest registers a payment session for an order.
type CreateTransactionRequest struct {
	OrderNumber string
	GrossAmount int64
	Customer    CustomerDetails
	Items       []TransactionItem
}

// Session is the gateway's handle for a registered transaction.
type Session struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// TransactionStatus is the gateway's current view of a transaction, as
// returned by the status-query endpoint and mirrored in webhook payloads.
type TransactionStatus struct {
	OrderNumber       string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	TransactionTime   string `json:"transaction_time"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	SignatureKey      string `json:"signature_key"`
}
