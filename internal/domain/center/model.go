package center

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrInactive means the center exists but does not take patients.
	ErrInactive = errors.New("center is inactive")
)

// ValidationError rejects input before it is stored.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

// Center maps to the centers table.
type Center struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Code               string    `db:"code" json:"code"`
	Address            *string   `db:"address" json:"address,omitempty"`
	Phone              *string   `db:"phone" json:"phone,omitempty"`
	Active             bool      `db:"active" json:"active"`
	ConsultationFee    float64   `db:"consultation_fee" json:"consultation_fee"`
	RegistrationFee    float64   `db:"registration_fee" json:"registration_fee"`
	SuperconsultantFee float64   `db:"superconsultant_fee" json:"superconsultant_fee"`
	ReassignmentFee    float64   `db:"reassignment_fee" json:"reassignment_fee"`
	Currency           string    `db:"currency" json:"currency"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Fee categories a center charges for.
const (
	FeeConsultation    = "consultation"
	FeeRegistration    = "registration"
	FeeSuperconsultant = "superconsultant"
	FeeReassignment    = "reassignment"
)

// Fee returns the configured fee for a category.
func (c *Center) Fee(category string) (float64, bool) {
	switch category {
	case FeeConsultation:
		return c.ConsultationFee, true
	case FeeRegistration:
		return c.RegistrationFee, true
	case FeeSuperconsultant:
		return c.SuperconsultantFee, true
	case FeeReassignment:
		return c.ReassignmentFee, true
	}
	return 0, false
}

// Discount kinds.
const (
	KindPercentage = "percentage"
	KindFlat       = "flat"
)

// AppliesAll makes a rule apply to every fee category.
const AppliesAll = "all"

var validAppliesTo = map[string]bool{
	FeeConsultation:    true,
	FeeRegistration:    true,
	FeeSuperconsultant: true,
	FeeReassignment:    true,
	"service":          true,
	AppliesAll:         true,
}

// DiscountRule maps to the discount_rules table.
type DiscountRule struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CenterID   uuid.UUID  `db:"center_id" json:"center_id"`
	Name       string     `db:"name" json:"name"`
	Kind       string     `db:"kind" json:"kind"`
	Value      float64    `db:"value" json:"value"`
	AppliesTo  string     `db:"applies_to" json:"applies_to"`
	Active     bool       `db:"active" json:"active"`
	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// Applies reports whether the rule discounts category at the given time.
// The validity window is [ValidFrom, ValidUntil].
func (r *DiscountRule) Applies(category string, at time.Time) bool {
	if !r.Active {
		return false
	}
	if r.AppliesTo != AppliesAll && r.AppliesTo != category {
		return false
	}
	if r.ValidFrom != nil && at.Before(*r.ValidFrom) {
		return false
	}
	if r.ValidUntil != nil && at.After(*r.ValidUntil) {
		return false
	}
	return true
}

// Amount is the discount the rule gives on gross, capped at gross.
func (r *DiscountRule) Amount(gross float64) float64 {
	var d float64
	switch r.Kind {
	case KindPercentage:
		d = gross * r.Value / 100
	case KindFlat:
		d = r.Value
	}
	if d > gross {
		d = gross
	}
	if d < 0 {
		d = 0
	}
	return d
}

// Quote is the price of one fee at a center after the best discount.
type Quote struct {
	CenterID uuid.UUID     `json:"center_id"`
	Category string        `json:"category"`
	Currency string        `json:"currency"`
	Gross    float64       `json:"gross"`
	Discount float64       `json:"discount"`
	Net      float64       `json:"net"`
	Rule     *DiscountRule `json:"rule,omitempty"`
	At       time.Time     `json:"at"`
}

// ListFilter narrows a center listing.
type ListFilter struct {
	Active *bool
	Query  string
}
