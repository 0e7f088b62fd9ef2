package domain

import "strings"

// PaymentKind classifies how the quote leg of a trade is funded.
type PaymentKind int

const (
	// PaymentKindWallet trades settle both legs between platform wallets immediately.
	PaymentKindWallet PaymentKind = iota + 1
	// PaymentKindExternal trades wait for an off-platform payment confirmation.
	PaymentKindExternal
)

func (k PaymentKind) String() string {
	switch k {
	case PaymentKindWallet:
		return "wallet"
	case PaymentKindExternal:
		return "external"
	default:
		return "unknown"
	}
}

// PaymentMethod is one of the methods a seller may accept.
type PaymentMethod string

const (
	PaymentMethodWallet       PaymentMethod = "CryptoTrade wallet"
	PaymentMethodBankTransfer PaymentMethod = "Bank transfer"
	PaymentMethodPayPal       PaymentMethod = "PayPal"
	PaymentMethodWise         PaymentMethod = "Wise"
	PaymentMethodRevolut      PaymentMethod = "Revolut"
)

var paymentMethods = map[string]PaymentMethod{
	strings.ToLower(string(PaymentMethodWallet)):       PaymentMethodWallet,
	strings.ToLower(string(PaymentMethodBankTransfer)): PaymentMethodBankTransfer,
	strings.ToLower(string(PaymentMethodPayPal)):       PaymentMethodPayPal,
	strings.ToLower(string(PaymentMethodWise)):         PaymentMethodWise,
	strings.ToLower(string(PaymentMethodRevolut)):      PaymentMethodRevolut,
}

// ParsePaymentMethod resolves a case-insensitive method name to a known method.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m, ok := paymentMethods[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// Kind returns the settlement variant of the method.
func (m PaymentMethod) Kind() PaymentKind {
	switch m {
	case PaymentMethodWallet:
		return PaymentKindWallet
	case PaymentMethodBankTransfer, PaymentMethodPayPal, PaymentMethodWise, PaymentMethodRevolut:
		return PaymentKindExternal
	default:
		return 0
	}
}

// Valid reports whether m belongs to the known catalog.
func (m PaymentMethod) Valid() bool {
	return m.Kind() != 0
}
