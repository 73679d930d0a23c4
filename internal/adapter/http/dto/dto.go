package dto

// CheckoutCreateRequest is the request body for creating a checkout.
type CheckoutCreateRequest struct {
	Reference            string  `json:"reference" binding:"required,max=100"`
	Email                string  `json:"email" binding:"required,email"`
	Name                 string  `json:"name,omitempty"`
	Phone                string  `json:"phone,omitempty"`
	Document             string  `json:"document,omitempty"`
	AmountCents          int64   `json:"amount_cents" binding:"required,gt=0"`
	Currency             string  `json:"currency" binding:"required,len=3"`
	Country              *string `json:"country,omitempty" binding:"omitempty,len=2"`
	Method               *string `json:"method,omitempty" binding:"omitempty,paymethod"`
	OfferID              *string `json:"offer_id,omitempty" binding:"omitempty,uuid"`
	ProductID            *string `json:"product_id,omitempty" binding:"omitempty,uuid"`
	VaultPaymentMethodID *string `json:"vault_payment_method_id,omitempty" binding:"omitempty,uuid"`
	Token                string  `json:"token,omitempty"`
}

// TransactionResponse is the wire shape of a payment transaction.
type TransactionResponse struct {
	ID              string  `json:"id"`
	Provider        string  `json:"provider"`
	ProviderOrderID string  `json:"provider_order_id"`
	AmountCents     int64   `json:"amount_cents"`
	Currency        string  `json:"currency"`
	Status          string  `json:"status"`
	FailureReason   *string `json:"failure_reason,omitempty"`
	CreatedAt       string  `json:"created_at"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
}

// CheckoutResponse is the response body for checkout creation.
type CheckoutResponse struct {
	Transaction       TransactionResponse `json:"transaction"`
	ProviderReference string              `json:"provider_reference,omitempty"`
}

// SaveCardRequest is the request body for vaulting a tokenized card.
type SaveCardRequest struct {
	CustomerID          string `json:"customer_id" binding:"required,uuid"`
	Provider            string `json:"provider" binding:"required,provider"`
	AccountID           string `json:"account_id" binding:"required"`
	Token               string `json:"token" binding:"required"`
	Brand               string `json:"brand,omitempty"`
	Last4               string `json:"last4,omitempty" binding:"omitempty,len=4"`
	ExpMonth            int    `json:"exp_month,omitempty" binding:"omitempty,min=1,max=12"`
	ExpYear             int    `json:"exp_year,omitempty"`
	ProviderFingerprint string `json:"provider_fingerprint,omitempty"`
	SetAsDefault        bool   `json:"set_as_default,omitempty"`
}

// PaymentMethodResponse is the wire shape of a vaulted payment method.
type PaymentMethodResponse struct {
	ID        string `json:"id"`
	Provider  string `json:"provider"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int    `json:"exp_month"`
	ExpYear   int    `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
	Status    string `json:"status"`
}

// StatsResponse is the response for admin transaction statistics.
type StatsResponse struct {
	Total      int64            `json:"total"`
	Paid       int64            `json:"paid"`
	Failed     int64            `json:"failed"`
	Pending    int64            `json:"pending"`
	PaidCents  int64            `json:"paid_cents"`
	ByProvider map[string]int64 `json:"by_provider"`
}
