package billingstatus

import (
	"math"
	"strings"

	"github.com/ehr/console/pkg/consolemodels"
)

// settleTolerance absorbs rounding noise: outstanding amounts at or below it
// count as settled when classifying.
const settleTolerance = 0.5

// Outstanding returns the amount still payable on a bill. It never returns a
// negative value and is zero for cancelled or refunded bills. A
// server-computed remaining value wins over the paid/refund arithmetic.
func Outstanding(b *consolemodels.Bill) float64 {
	if b == nil {
		return 0
	}
	switch normalize(b.Status) {
	case consolemodels.BillStatusCancelled, consolemodels.BillStatusRefunded:
		return 0
	}
	if b.Remaining.Valid {
		return nonNegative(b.Remaining.Value)
	}
	paid := finite(b.PaidAmount.Float())
	if refunded := RefundedAmount(b); refunded > paid {
		paid = refunded
	}
	return nonNegative(finite(b.Amount.Float()) - paid)
}

// RefundedAmount sums the refunds recorded against a bill.
func RefundedAmount(b *consolemodels.Bill) float64 {
	if b == nil {
		return 0
	}
	var total float64
	for _, r := range b.Refunds {
		total += finite(r.Amount.Float())
	}
	return total
}

func settled(amount float64) bool {
	return amount <= settleTolerance
}

func nonNegative(v float64) float64 {
	v = finite(v)
	if v < 0 {
		return 0
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
