package enums

// PaymentStatus mirrors the gateway's checkout session payment status.
type PaymentStatus string

const (
	PaymentStatusPaid              PaymentStatus = "paid"
	PaymentStatusUnpaid            PaymentStatus = "unpaid"
	PaymentStatusNoPaymentRequired PaymentStatus = "no_payment_required"
)

// IsPaid reports whether funds were captured for the session.
func (p PaymentStatus) IsPaid() bool {
	return p == PaymentStatusPaid
}
