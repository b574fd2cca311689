package billing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/consolemodels"
)

type Service struct {
	patients PatientSource
	loc      *time.Location
}

// NewService returns a report service reading dates in loc (UTC when nil).
func NewService(patients PatientSource, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{patients: patients, loc: loc}
}

// Location is the time zone report days are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// Rows flattens every bill of every patient that matches f, ordered by
// creation date.
func (s *Service) Rows(ctx context.Context, f Filter) ([]BillRow, error) {
	patients, err := s.patients.ListPatients(ctx, upstream.PatientQuery{CenterID: f.CenterID})
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	var rows []BillRow
	for i := range patients {
		p := &patients[i]
		rows = s.appendRows(rows, p, p.Billing, false, f)
		rows = s.appendRows(rows, p, p.ReassignedBilling, true, f)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].CreatedAt, rows[j].CreatedAt
		if a == nil || b == nil {
			return a != nil && b == nil
		}
		return a.Before(*b)
	})
	return rows, nil
}

func (s *Service) appendRows(rows []BillRow, p *consolemodels.Patient, bills []consolemodels.Bill, reassignment bool, f Filter) []BillRow {
	_, super := billingstatus.SplitTracks(bills)
	superInvoices := make(map[string]bool)
	for _, b := range super {
		superInvoices[b.InvoiceNumber] = true
	}
	for i := range bills {
		b := &bills[i]
		if f.CenterID != "" && b.CenterID != "" && b.CenterID != f.CenterID {
			continue
		}
		created, dated := billingstatus.ParseTimestamp(b.CreatedAt, s.loc)
		if !f.From.IsZero() || !f.To.IsZero() {
			if !dated || (!f.From.IsZero() && created.Before(f.From)) || (!f.To.IsZero() && !created.Before(f.To)) {
				continue
			}
		}
		row := BillRow{
			PatientID:      p.ID,
			PatientName:    p.Name,
			UHID:           p.UHID,
			BillID:         b.ID,
			InvoiceNumber:  b.InvoiceNumber,
			Type:           b.Type,
			Status:         b.Status,
			PaymentMode:    b.PaymentMode,
			Amount:         b.Amount.Float(),
			Paid:           b.PaidAmount.Float(),
			Refunded:       refunded(b),
			Discount:       b.Discount.Float(),
			DiscountReason: b.DiscountReason,
			Outstanding:    billingstatus.Outstanding(b),
			Reassignment:   reassignment,
		}
		if dated {
			t := created
			row.CreatedAt = &t
		}
		switch {
		case billingstatus.IsSuperconsultantBill(b) || (b.InvoiceNumber != "" && superInvoices[b.InvoiceNumber]):
			row.Category = CategorySuperconsultant
		default:
			if c := billingstatus.Category(b); c != "" {
				row.Category = c
			} else {
				row.Category = CategoryOther
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// refunded sums the refunds of a bill. A bill marked refunded with no refund
// entries counts as refunded in full.
func refunded(b *consolemodels.Bill) float64 {
	total := billingstatus.RefundedAmount(b)
	if total == 0 && status(b.Status) == consolemodels.BillStatusRefunded {
		return b.Amount.Float()
	}
	return total
}

func status(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Cancellations lists cancelled bills.
func (s *Service) Cancellations(ctx context.Context, f Filter) (*RowReport, error) {
	rows, err := s.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	rep := &RowReport{Rows: []BillRow{}}
	for _, r := range rows {
		if status(r.Status) == consolemodels.BillStatusCancelled {
			rep.Rows = append(rep.Rows, r)
			rep.Total += r.Amount
		}
	}
	rep.Count = len(rep.Rows)
	return rep, nil
}

// Refunds lists bills with refunds or a refunded status. Total is the
// refunded amount.
func (s *Service) Refunds(ctx context.Context, f Filter) (*RowReport, error) {
	rows, err := s.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	rep := &RowReport{Rows: []BillRow{}}
	for _, r := range rows {
		st := status(r.Status)
		if r.Refunded > 0 || st == consolemodels.BillStatusRefunded || st == consolemodels.BillStatusPartiallyRefunded {
			rep.Rows = append(rep.Rows, r)
			rep.Total += r.Refunded
		}
	}
	rep.Count = len(rep.Rows)
	return rep, nil
}

// Discounts lists discounted bills. Total is the discount given.
func (s *Service) Discounts(ctx context.Context, f Filter) (*RowReport, error) {
	rows, err := s.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	rep := &RowReport{Rows: []BillRow{}}
	for _, r := range rows {
		if r.Discount > 0 {
			rep.Rows = append(rep.Rows, r)
			rep.Total += r.Discount
		}
	}
	rep.Count = len(rep.Rows)
	return rep, nil
}

// Collections groups net collection by payment mode and by day. Modes are
// ordered by amount, days chronologically; undated bills have no day.
func (s *Service) Collections(ctx context.Context, f Filter) (*CollectionReport, error) {
	rows, err := s.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	modes := make(map[string]*ModeTotal)
	days := make(map[string]*DayTotal)
	rep := &CollectionReport{ByMode: []ModeTotal{}, ByDay: []DayTotal{}}
	for _, r := range rows {
		amt := r.Collected()
		if amt <= 0 {
			continue
		}
		rep.Total += amt

		mode := status(r.PaymentMode)
		if mode == "" {
			mode = UnspecifiedMode
		}
		if modes[mode] == nil {
			modes[mode] = &ModeTotal{Mode: mode}
		}
		modes[mode].Count++
		modes[mode].Amount += amt

		if r.CreatedAt != nil {
			day := r.CreatedAt.In(s.loc).Format("2006-01-02")
			if days[day] == nil {
				days[day] = &DayTotal{Day: day}
			}
			days[day].Count++
			days[day].Amount += amt
		}
	}
	for _, m := range modes {
		rep.ByMode = append(rep.ByMode, *m)
	}
	sort.Slice(rep.ByMode, func(i, j int) bool {
		if rep.ByMode[i].Amount != rep.ByMode[j].Amount {
			return rep.ByMode[i].Amount > rep.ByMode[j].Amount
		}
		return rep.ByMode[i].Mode < rep.ByMode[j].Mode
	})
	for _, d := range days {
		rep.ByDay = append(rep.ByDay, *d)
	}
	sort.Slice(rep.ByDay, func(i, j int) bool { return rep.ByDay[i].Day < rep.ByDay[j].Day })
	return rep, nil
}

// Categories breaks billing down by category. Cancelled bills are left out
// entirely.
func (s *Service) Categories(ctx context.Context, f Filter) (*CategoryReport, error) {
	rows, err := s.Rows(ctx, f)
	if err != nil {
		return nil, err
	}
	byCat := make(map[string]*CategoryTotal, len(categoryOrder))
	for _, c := range categoryOrder {
		byCat[c] = &CategoryTotal{Category: c}
	}
	rep := &CategoryReport{Totals: CategoryTotal{Category: "total"}}
	for _, r := range rows {
		if status(r.Status) == consolemodels.BillStatusCancelled {
			continue
		}
		for _, t := range []*CategoryTotal{byCat[r.Category], &rep.Totals} {
			t.Count++
			t.Billed += r.Amount
			t.Collected += r.Collected()
			t.Outstanding += r.Outstanding
		}
	}
	for _, c := range categoryOrder {
		rep.Categories = append(rep.Categories, *byCat[c])
	}
	return rep, nil
}
