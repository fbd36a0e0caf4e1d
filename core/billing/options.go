package billing

// HalfPaymentTolerance is the amount (in currency units) under which a debt is
// considered settled, and over half the tuition a half payment is still offered.
const HalfPaymentTolerance = 1000.0

// PaymentOptions are the amounts a cashier can collect for a registration.
// Half is nil when the half payment option is not offered.
type PaymentOptions struct {
	Full float64  `json:"full"`
	Half *float64 `json:"half"`
}

// DerivePaymentOptions offers the full debt, and half of the total tuition when the
// remaining debt exceeds that half by more than HalfPaymentTolerance.
func DerivePaymentOptions(debt, tuitionTotal float64) PaymentOptions {
	opts := PaymentOptions{Full: debt}
	half := tuitionTotal / 2
	if debt > half+HalfPaymentTolerance {
		opts.Half = &half
	}
	return opts
}
