package patient

import (
	"errors"
	"time"

	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/pkg/consolemodels"
)

// ErrNotFound is returned when the hospital backend has no such patient.
var ErrNotFound = errors.New("patient not found")

// ValidationError rejects a request before any data is read.
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

func isValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// View selects which billing track an assignment list is classified by.
type View string

const (
	ViewDoctor          View = "doctor"
	ViewSuperconsultant View = "superconsultant"
)

// ParseView maps a query value to a View. Empty means the doctor view.
func ParseView(s string) (View, bool) {
	switch View(s) {
	case "", ViewDoctor:
		return ViewDoctor, true
	case ViewSuperconsultant:
		return ViewSuperconsultant, true
	}
	return "", false
}

// AssignmentFilter narrows an assignment list. Zero values do not filter.
// A Limit of zero returns every match.
type AssignmentFilter struct {
	View     View
	StaffID  string
	CenterID string
	From     time.Time
	To       time.Time
	Today    bool
	Status   billingstatus.Label
	Query    string
	UserID   string
	Limit    int
	Offset   int
}

// Assignment is one row of a doctor or superconsultant list.
type Assignment struct {
	PatientID          string                  `json:"patient_id"`
	Name               string                  `json:"name"`
	Phone              string                  `json:"phone,omitempty"`
	UHID               string                  `json:"uh_id,omitempty"`
	CenterID           string                  `json:"center_id,omitempty"`
	DoctorID           string                  `json:"doctor_id,omitempty"`
	DoctorName         string                  `json:"doctor_name,omitempty"`
	Status             billingstatus.Label     `json:"status"`
	StatusColor        string                  `json:"status_color"`
	Appointment        *billingstatus.Resolved `json:"appointment,omitempty"`
	AppointmentDisplay string                  `json:"appointment_display"`
	RelevantDate       *time.Time              `json:"relevant_date,omitempty"`
	Reassigned         bool                    `json:"reassigned"`
	Viewed             bool                    `json:"viewed"`
	ViewedAt           *time.Time              `json:"viewed_at,omitempty"`
}

// Status is the full derived picture of one patient.
type Status struct {
	Assignment
	Billing  billingstatus.BillingSummary `json:"billing"`
	Bills    int                          `json:"bills"`
	Requests []Request                    `json:"reassignment_requests,omitempty"`
}

// Request is a reassignment billing request with its derived state.
type Request struct {
	consolemodels.BillingRequest
	Pending bool `json:"pending"`
}

// Overview counts patients per label across both tracks, plus pending
// reassignment requests.
type Overview struct {
	Patients        int                         `json:"patients"`
	Consultation    map[billingstatus.Label]int `json:"consultation"`
	Superconsultant map[billingstatus.Label]int `json:"superconsultant"`
	PendingRequests int                         `json:"pending_requests"`
	GeneratedAt     time.Time                   `json:"generated_at"`
}
