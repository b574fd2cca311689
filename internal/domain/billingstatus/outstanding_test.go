package billingstatus

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/console/pkg/consolemodels"
)

func bill(t *testing.T, doc string) consolemodels.Bill {
	t.Helper()
	var b consolemodels.Bill
	require.NoError(t, json.Unmarshal([]byte(doc), &b))
	return b
}

func TestOutstanding(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want float64
	}{
		{"fully paid", `{"amount":1000,"paidAmount":1000}`, 0},
		{"refund counts as paid", `{"amount":1000,"refunds":[{"amount":1000}],"status":"paid"}`, 0},
		{"unpaid", `{"amount":850,"paidAmount":0,"status":"pending"}`, 850},
		{"partially paid", `{"amount":850,"paidAmount":300}`, 550},
		{"cancelled", `{"amount":850,"paidAmount":0,"status":"cancelled"}`, 0},
		{"refunded mixed case", `{"amount":850,"status":" Refunded "}`, 0},
		{"remaining wins", `{"amount":850,"paidAmount":0,"remaining":120}`, 120},
		{"negative remaining floored", `{"amount":850,"remaining":-40}`, 0},
		{"string remaining ignored", `{"amount":850,"paidAmount":800,"remaining":"abc"}`, 50},
		{"numeric strings", `{"amount":"500","paidAmount":"200"}`, 300},
		{"garbage amounts", `{"amount":"n/a","paidAmount":{}}`, 0},
		{"overpaid", `{"amount":100,"paidAmount":400}`, 0},
		{"partial refund below paid", `{"amount":1000,"paidAmount":600,"refunds":[{"amount":100},{"amount":50}]}`, 400},
		{"empty", `{}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := bill(t, tt.doc)
			assert.Equal(t, tt.want, Outstanding(&b))
		})
	}
}

func TestOutstanding_NeverNegative(t *testing.T) {
	amounts := []float64{-100, 0, 0.3, 1, 999.99, math.Inf(1), math.NaN()}
	for _, amount := range amounts {
		for _, paid := range amounts {
			b := consolemodels.Bill{Amount: consolemodels.Number(amount), PaidAmount: consolemodels.Number(paid)}
			assert.GreaterOrEqual(t, Outstanding(&b), 0.0)
			b.Remaining = consolemodels.Num(amount)
			assert.GreaterOrEqual(t, Outstanding(&b), 0.0)
		}
	}
	assert.Zero(t, Outstanding(nil))
}

func TestRefundedAmount(t *testing.T) {
	b := bill(t, `{"refunds":[{"amount":100},{"amount":"25.5"},{"amount":null}]}`)
	assert.Equal(t, 125.5, RefundedAmount(&b))
	assert.Zero(t, RefundedAmount(nil))
}
