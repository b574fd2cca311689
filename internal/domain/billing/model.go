package billing

import (
	"time"
)

// Report names served under /reports/billing/:report.
const (
	ReportCancellations = "cancellations"
	ReportRefunds       = "refunds"
	ReportDiscounts     = "discounts"
	ReportCollections   = "collections"
	ReportCategories    = "categories"
)

// Category of a bill in the category breakdown.
const (
	CategoryConsultation    = "consultation"
	CategoryRegistration    = "registration"
	CategoryService         = "service"
	CategorySuperconsultant = "superconsultant"
	CategoryOther           = "other"
)

var categoryOrder = []string{
	CategoryConsultation,
	CategoryRegistration,
	CategoryService,
	CategorySuperconsultant,
	CategoryOther,
}

// UnspecifiedMode labels collections with no payment mode recorded.
const UnspecifiedMode = "unspecified"

// Filter narrows a report to bills created in [From, To) at a center. Zero
// values do not filter; bills without a readable creation date only appear
// in reports with an open range.
type Filter struct {
	From     time.Time
	To       time.Time
	CenterID string
}

// BillRow is one bill flattened with its patient and derived amounts.
type BillRow struct {
	PatientID      string     `json:"patient_id"`
	PatientName    string     `json:"patient_name"`
	UHID           string     `json:"uh_id,omitempty"`
	BillID         string     `json:"bill_id,omitempty"`
	InvoiceNumber  string     `json:"invoice_number,omitempty"`
	Type           string     `json:"type"`
	Category       string     `json:"category"`
	Status         string     `json:"status,omitempty"`
	PaymentMode    string     `json:"payment_mode,omitempty"`
	Amount         float64    `json:"amount"`
	Paid           float64    `json:"paid"`
	Refunded       float64    `json:"refunded"`
	Discount       float64    `json:"discount"`
	DiscountReason string     `json:"discount_reason,omitempty"`
	Outstanding    float64    `json:"outstanding"`
	Reassignment   bool       `json:"reassignment"`
	CreatedAt      *time.Time `json:"created_at,omitempty"`
}

// Collected is what the hospital kept: paid less refunds, never negative.
func (r BillRow) Collected() float64 {
	if v := r.Paid - r.Refunded; v > 0 {
		return v
	}
	return 0
}

// RowReport is a list of bills with their count and total.
type RowReport struct {
	Count int       `json:"count"`
	Total float64   `json:"total"`
	Rows  []BillRow `json:"rows"`
}

// ModeTotal is the collection of one payment mode.
type ModeTotal struct {
	Mode   string  `json:"mode"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// DayTotal is the collection of one calendar day.
type DayTotal struct {
	Day    string  `json:"day"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// CollectionReport is net collection grouped by payment mode and by day.
type CollectionReport struct {
	Total  float64     `json:"total"`
	ByMode []ModeTotal `json:"by_mode"`
	ByDay  []DayTotal  `json:"by_day"`
}

// CategoryTotal aggregates the bills of one category.
type CategoryTotal struct {
	Category    string  `json:"category"`
	Count       int     `json:"count"`
	Billed      float64 `json:"billed"`
	Collected   float64 `json:"collected"`
	Outstanding float64 `json:"outstanding"`
}

// CategoryReport breaks billing down by category. The superconsultant track
// is its own category and never mixes with consultation.
type CategoryReport struct {
	Categories []CategoryTotal `json:"categories"`
	Totals     CategoryTotal   `json:"totals"`
}
