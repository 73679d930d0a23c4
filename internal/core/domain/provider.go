package domain

// Provider identifies a payment provider integrated with the platform.
type Provider string

const (
	ProviderStripe      Provider = "STRIPE"
	ProviderKRXPay      Provider = "KRXPAY" // platform default acquirer
	ProviderAppmax      Provider = "APPMAX"
	ProviderOpenFinance Provider = "OPENFINANCE"
)

// AllProviders lists every provider the platform knows about.
var AllProviders = []Provider{
	ProviderStripe,
	ProviderKRXPay,
	ProviderAppmax,
	ProviderOpenFinance,
}

// Valid reports whether p is a known provider code.
func (p Provider) Valid() bool {
	switch p {
	case ProviderStripe, ProviderKRXPay, ProviderAppmax, ProviderOpenFinance:
		return true
	}
	return false
}

// PaymentMethodType is how the buyer pays.
type PaymentMethodType string

const (
	MethodCard        PaymentMethodType = "CARD"
	MethodPix         PaymentMethodType = "PIX"
	MethodBoleto      PaymentMethodType = "BOLETO"
	MethodOpenFinance PaymentMethodType = "OPEN_FINANCE"
)
