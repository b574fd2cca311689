// Package billingstatus derives the billing status labels and the relevant
// appointment date the console shows for a patient. Everything here is a
// pure function of the records passed in: no I/O, no clocks, no shared state.
package billingstatus

import (
	"strings"

	"github.com/ehr/console/pkg/consolemodels"
)

// Label is a human-facing billing status.
type Label string

const (
	LabelAllPaid                   Label = "All Paid"
	LabelConsultationFeeRequired   Label = "Consultation Fee Required"
	LabelConsultationFeePending    Label = "Consultation Fee Pending"
	LabelRegistrationFeePending    Label = "Registration Fee Pending"
	LabelServiceChargesPending     Label = "Service Charges Pending"
	LabelPendingPayment            Label = "Pending Payment"
	LabelSuperconsultantFeePending Label = "Superconsultant Fee Pending"
	LabelNoSuperconsultantBilling  Label = "No Superconsultant Billing"
)

// ConsultationLabels lists the labels of the regular consultation track.
var ConsultationLabels = []Label{
	LabelAllPaid,
	LabelConsultationFeeRequired,
	LabelConsultationFeePending,
	LabelRegistrationFeePending,
	LabelServiceChargesPending,
	LabelPendingPayment,
}

// ColorKey is the presentation hint for a label.
func (l Label) ColorKey() string {
	switch l {
	case LabelAllPaid:
		return "green"
	case LabelConsultationFeeRequired:
		return "red"
	case LabelConsultationFeePending:
		return "orange"
	case LabelRegistrationFeePending:
		return "blue"
	case LabelServiceChargesPending:
		return "purple"
	case LabelSuperconsultantFeePending:
		return "amber"
	default:
		return "gray"
	}
}

// Settled reports whether nothing is owed under this label.
func (l Label) Settled() bool {
	return l == LabelAllPaid || l == LabelNoSuperconsultantBilling
}

// ParseLabel matches a label case-insensitively.
func ParseLabel(s string) (Label, bool) {
	s = normalize(s)
	for _, l := range append(ConsultationLabels, LabelSuperconsultantFeePending, LabelNoSuperconsultantBilling) {
		if normalize(string(l)) == s {
			return l, true
		}
	}
	return "", false
}

// CategorySums holds outstanding totals of the regular track per category.
type CategorySums struct {
	Consultation float64 `json:"consultation"`
	Registration float64 `json:"registration"`
	Service      float64 `json:"service"`
}

// Total returns the sum of all categories.
func (c CategorySums) Total() float64 {
	return c.Consultation + c.Registration + c.Service
}

// BillingSummary is the full billing picture of a patient, both tracks.
type BillingSummary struct {
	Outstanding           CategorySums `json:"outstanding"`
	SuperconsultantDue    float64      `json:"superconsultant_due"`
	Status                Label        `json:"status"`
	SuperconsultantStatus Label        `json:"superconsultant_status"`
}

// ClassifyConsultation derives the regular-track status label from a
// patient's bills. Superconsultant bills are excluded; a fee blocking the
// clinical workflow (consultation) is reported before registration and
// service charges.
func ClassifyConsultation(bills []consolemodels.Bill) Label {
	if len(bills) == 0 {
		return LabelConsultationFeeRequired
	}
	regular, _ := SplitTracks(bills)
	eligible := consultationTrack(regular)
	if len(eligible) == 0 {
		return LabelAllPaid
	}
	sums, total := tally(eligible)
	return labelFor(sums, total)
}

// ClassifySuperconsultant derives the superconsultant-track label.
func ClassifySuperconsultant(bills []consolemodels.Bill) Label {
	_, super := SplitTracks(bills)
	if len(super) == 0 {
		return LabelNoSuperconsultantBilling
	}
	if settled(superconsultantDue(super)) {
		return LabelAllPaid
	}
	return LabelSuperconsultantFeePending
}

// Summarize computes both track labels and the outstanding totals in one go.
func Summarize(bills []consolemodels.Bill) BillingSummary {
	regular, super := SplitTracks(bills)
	sums, _ := tally(consultationTrack(regular))
	due := superconsultantDue(super)
	if settled(due) {
		due = 0
	}
	return BillingSummary{
		Outstanding:           sums,
		SuperconsultantDue:    due,
		Status:                ClassifyConsultation(bills),
		SuperconsultantStatus: ClassifySuperconsultant(bills),
	}
}

// Category returns the regular-track category of a bill: consultation,
// registration, service, or "" when it belongs to none of them.
func Category(b *consolemodels.Bill) string {
	switch t := normalize(b.Type); {
	case t == consolemodels.BillTypeConsultation ||
		strings.Contains(normalize(b.Description), consolemodels.BillTypeConsultation):
		return consolemodels.BillTypeConsultation
	case t == consolemodels.BillTypeRegistration:
		return consolemodels.BillTypeRegistration
	case t == consolemodels.BillTypeService:
		return consolemodels.BillTypeService
	}
	return ""
}

func consultationTrack(bills []consolemodels.Bill) []consolemodels.Bill {
	var out []consolemodels.Bill
	for _, b := range bills {
		switch normalize(b.Type) {
		case consolemodels.BillTypeConsultation, consolemodels.BillTypeRegistration, consolemodels.BillTypeService:
			out = append(out, b)
		}
	}
	return out
}

func tally(bills []consolemodels.Bill) (CategorySums, float64) {
	var sums CategorySums
	var total float64
	for i := range bills {
		due := Outstanding(&bills[i])
		if settled(due) {
			continue
		}
		total += due
		switch Category(&bills[i]) {
		case consolemodels.BillTypeConsultation:
			sums.Consultation += due
		case consolemodels.BillTypeRegistration:
			sums.Registration += due
		case consolemodels.BillTypeService:
			sums.Service += due
		}
	}
	return sums, total
}

func labelFor(sums CategorySums, total float64) Label {
	switch {
	case total <= 0:
		return LabelAllPaid
	case sums.Consultation > 0:
		return LabelConsultationFeePending
	case sums.Registration > 0:
		return LabelRegistrationFeePending
	case sums.Service > 0:
		return LabelServiceChargesPending
	}
	return LabelPendingPayment
}

func superconsultantDue(bills []consolemodels.Bill) float64 {
	var due float64
	for i := range bills {
		if o := Outstanding(&bills[i]); !settled(o) {
			due += o
		}
	}
	return due
}
