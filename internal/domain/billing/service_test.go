package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/consolemodels"
)

type mockPatients struct {
	patients []consolemodels.Patient
	err      error
	last     upstream.PatientQuery
}

func (m *mockPatients) ListPatients(_ context.Context, q upstream.PatientQuery) ([]consolemodels.Patient, error) {
	m.last = q
	return m.patients, m.err
}

func bill(typ string, amount, paid float64, created string) consolemodels.Bill {
	return consolemodels.Bill{
		Type:       typ,
		Amount:     consolemodels.Number(amount),
		PaidAmount: consolemodels.Number(paid),
		CreatedAt:  created,
	}
}

func fixture() []consolemodels.Patient {
	b1 := bill("consultation", 500, 500, "2024-06-01T10:00:00Z")
	b1.PaymentMode = "Cash"
	b2 := bill("registration", 100, 0, "2024-06-01T11:00:00Z")
	b2.Discount, b2.DiscountReason = 20, "staff"
	b3 := bill("service", 300, 300, "2024-06-02T09:00:00Z")
	b3.Status, b3.PaymentMode = "partially_refunded", "UPI"
	b3.Refunds = []consolemodels.Refund{{Amount: 100}}

	b4 := bill("consultation", 500, 0, "2024-06-02T12:00:00Z")
	b4.Status = "cancelled"
	b5 := bill("consultation", 1000, 400, "2024-06-03T08:00:00Z")
	b5.ConsultationType, b5.InvoiceNumber, b5.PaymentMode = "superconsultant", "INV-9", "card"
	b6 := bill("service", 200, 200, "2024-06-03T08:05:00Z")
	b6.InvoiceNumber = "INV-9"
	b7 := bill("pharmacy", 50, 50, "")
	b7.PaymentMode = "cash"
	b8 := bill("consultation", 300, 300, "2024-06-04T10:00:00Z")
	b8.Status, b8.PaymentMode = "refunded", "cash"

	return []consolemodels.Patient{
		{ID: "p1", Name: "Asha Rao", Billing: []consolemodels.Bill{b1, b2, b3}},
		{ID: "p2", Name: "Bilal Khan", Billing: []consolemodels.Bill{b4, b5, b6, b7}, ReassignedBilling: []consolemodels.Bill{b8}},
	}
}

func newTestService() (*Service, *mockPatients) {
	src := &mockPatients{patients: fixture()}
	return NewService(src, time.UTC), src
}

func TestService_Rows(t *testing.T) {
	svc, _ := newTestService()
	rows, err := svc.Rows(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 8)

	assert.Equal(t, "consultation", rows[0].Type)
	assert.Equal(t, "pharmacy", rows[7].Type, "undated bills sort last")
	assert.Nil(t, rows[7].CreatedAt)
	assert.True(t, rows[6].Reassignment)

	cats := map[string]int{}
	for _, r := range rows {
		cats[r.Category]++
	}
	assert.Equal(t, map[string]int{"consultation": 3, "registration": 1, "service": 1, "superconsultant": 2, "other": 1}, cats)
}

func TestService_Rows_DateRange(t *testing.T) {
	svc, _ := newTestService()
	rows, err := svc.Rows(context.Background(), Filter{
		From: time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "service", rows[0].Type)
	assert.Equal(t, "cancelled", rows[1].Status)
}

func TestService_Rows_Center(t *testing.T) {
	svc, src := newTestService()
	src.patients[0].Billing[0].CenterID = "c2"
	src.patients[0].Billing[1].CenterID = "c1"
	rows, err := svc.Rows(context.Background(), Filter{CenterID: "c1"})
	require.NoError(t, err)
	assert.Len(t, rows, 7, "only the bill tagged with another center drops out")
	assert.Equal(t, "c1", src.last.CenterID)
}

func TestService_Cancellations(t *testing.T) {
	svc, _ := newTestService()
	rep, err := svc.Cancellations(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Count)
	assert.Equal(t, 500.0, rep.Total)
	assert.Equal(t, "p2", rep.Rows[0].PatientID)
}

func TestService_Refunds(t *testing.T) {
	svc, _ := newTestService()
	rep, err := svc.Refunds(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Count)
	// 100 refunded on the service bill, 300 for the fully refunded bill
	// that carries no refund entries
	assert.Equal(t, 400.0, rep.Total)
}

func TestService_Discounts(t *testing.T) {
	svc, _ := newTestService()
	rep, err := svc.Discounts(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Count)
	assert.Equal(t, 20.0, rep.Total)
	assert.Equal(t, "staff", rep.Rows[0].DiscountReason)
}

func TestService_Discounts_EmptyIsNotNil(t *testing.T) {
	svc, src := newTestService()
	src.patients = nil
	rep, err := svc.Discounts(context.Background(), Filter{})
	require.NoError(t, err)
	assert.NotNil(t, rep.Rows)
	assert.Zero(t, rep.Count)
}

func TestService_Collections(t *testing.T) {
	svc, _ := newTestService()
	rep, err := svc.Collections(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1350.0, rep.Total)
	assert.Equal(t, []ModeTotal{
		{Mode: "cash", Count: 2, Amount: 550},
		{Mode: "card", Count: 1, Amount: 400},
		{Mode: UnspecifiedMode, Count: 1, Amount: 200},
		{Mode: "upi", Count: 1, Amount: 200},
	}, rep.ByMode)
	assert.Equal(t, []DayTotal{
		{Day: "2024-06-01", Count: 1, Amount: 500},
		{Day: "2024-06-02", Count: 1, Amount: 200},
		{Day: "2024-06-03", Count: 2, Amount: 600},
	}, rep.ByDay)
}

func TestService_Collections_DayInHospitalZone(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	src := &mockPatients{patients: []consolemodels.Patient{{
		ID:      "p1",
		Billing: []consolemodels.Bill{bill("consultation", 500, 500, "2024-06-01T20:00:00Z")},
	}}}
	rep, err := NewService(src, ist).Collections(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, rep.ByDay, 1)
	assert.Equal(t, "2024-06-02", rep.ByDay[0].Day)
}

func TestService_Categories(t *testing.T) {
	svc, _ := newTestService()
	rep, err := svc.Categories(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Equal(t, []CategoryTotal{
		{Category: "consultation", Count: 2, Billed: 800, Collected: 500, Outstanding: 0},
		{Category: "registration", Count: 1, Billed: 100, Collected: 0, Outstanding: 100},
		{Category: "service", Count: 1, Billed: 300, Collected: 200, Outstanding: 0},
		{Category: "superconsultant", Count: 2, Billed: 1200, Collected: 600, Outstanding: 600},
		{Category: "other", Count: 1, Billed: 50, Collected: 50, Outstanding: 0},
	}, rep.Categories)
	assert.Equal(t, CategoryTotal{Category: "total", Count: 7, Billed: 2450, Collected: 1350, Outstanding: 700}, rep.Totals)
}

func TestService_UpstreamError(t *testing.T) {
	svc, src := newTestService()
	src.err = upstream.ErrUnavailable
	_, err := svc.Categories(context.Background(), Filter{})
	assert.True(t, errors.Is(err, upstream.ErrUnavailable))
}
