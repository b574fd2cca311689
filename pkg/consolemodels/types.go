// Package consolemodels holds the wire shapes of the records the hospital
// backend serves to the console. Decoding is lenient: ids, dates and times
// may arrive as strings, numbers or Mongo "_id" values, and malformed values
// decode as absent instead of failing the document.
package consolemodels

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Bill type values.
const (
	BillTypeConsultation = "consultation"
	BillTypeRegistration = "registration"
	BillTypeService      = "service"
)

// Bill status values seen on the backend.
const (
	BillStatusPending           = "pending"
	BillStatusPaid              = "paid"
	BillStatusCompleted         = "completed"
	BillStatusCancelled         = "cancelled"
	BillStatusRefunded          = "refunded"
	BillStatusPartiallyRefunded = "partially_refunded"
	BillStatusPartiallyPaid     = "partially_paid"
	BillStatusNoPayments        = "no payments"
)

// SuperconsultantSource is the meta.source marker for superconsultant bills.
const SuperconsultantSource = "superconsultant"

// ReassignmentConsultation is the appointment type of reassignment visits.
const ReassignmentConsultation = "reassignment_consultation"

// Number decodes JSON numbers, numeric strings and null. Anything else
// decodes to zero instead of failing the whole document.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	*n = Number(parseLenientFloat(b))
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// OptNumber is a number whose presence matters. Valid is set only when the
// document carried a real JSON number.
type OptNumber struct {
	Value float64
	Valid bool
}

func (o *OptNumber) UnmarshalJSON(b []byte) error {
	*o = OptNumber{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == '"' || bytes.Equal(b, []byte("null")) {
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return nil
	}
	o.Value, o.Valid = v, true
	return nil
}

func (o OptNumber) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// Num is a convenience constructor for a present OptNumber.
func Num(v float64) OptNumber { return OptNumber{Value: v, Valid: true} }

// Flag decodes booleans sent as true/false, "true"/"false" or 1/0.
type Flag bool

func (f *Flag) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(string(bytes.TrimSpace(b)), `"`))
	*f = Flag(s == "true" || s == "1" || s == "yes")
	return nil
}

// Text decodes strings, numbers and Mongo {"$oid": ...} ids into a string.
// Numbers keep their integral form so epoch milliseconds survive. Anything
// else decodes to "".
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil
	}
	switch c := b[0]; {
	case c == '"':
		var s string
		if json.Unmarshal(b, &s) == nil {
			*t = Text(s)
		}
	case c == '-' || (c >= '0' && c <= '9'):
		*t = Text(numberText(string(b)))
	case c == '{':
		var oid struct {
			OID string `json:"$oid"`
		}
		if json.Unmarshal(b, &oid) == nil {
			*t = Text(oid.OID)
		}
	}
	return nil
}

func numberText(s string) string {
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e18 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseLenientFloat(b []byte) float64 {
	s := strings.TrimSpace(string(b))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Refund is a single refund issued against a bill.
type Refund struct {
	Amount    Number `json:"amount"`
	Reason    string `json:"reason,omitempty"`
	Mode      string `json:"mode,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

func (r *Refund) UnmarshalJSON(b []byte) error {
	type Alias Refund
	aux := struct {
		*Alias
		CreatedAt Text `json:"createdAt"`
	}{Alias: (*Alias)(r), CreatedAt: Text(r.CreatedAt)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.CreatedAt = string(aux.CreatedAt)
	return nil
}

// BillMeta carries provenance information of a bill.
type BillMeta struct {
	Source string `json:"source,omitempty"`
}

// Bill is one billing record of a patient.
type Bill struct {
	ID               string                 `json:"id,omitempty"`
	Type             string                 `json:"type"`
	ConsultationType string                 `json:"consultationType,omitempty"`
	Description      string                 `json:"description,omitempty"`
	Status           string                 `json:"status,omitempty"`
	Amount           Number                 `json:"amount"`
	PaidAmount       Number                 `json:"paidAmount"`
	Remaining        OptNumber              `json:"remaining"`
	Discount         Number                 `json:"discount,omitempty"`
	DiscountReason   string                 `json:"discountReason,omitempty"`
	PaymentMode      string                 `json:"paymentMode,omitempty"`
	Refunds          []Refund               `json:"refunds,omitempty"`
	InvoiceNumber    string                 `json:"invoiceNumber,omitempty"`
	CenterID         string                 `json:"centerId,omitempty"`
	Meta             *BillMeta              `json:"meta,omitempty"`
	CustomData       map[string]interface{} `json:"customData,omitempty"`
	AppointmentTime  string                 `json:"appointmentTime,omitempty"`
	CreatedAt        string                 `json:"createdAt,omitempty"`
}

func (b *Bill) UnmarshalJSON(data []byte) error {
	type Alias Bill
	aux := struct {
		*Alias
		ID              Text `json:"id"`
		MongoID         Text `json:"_id"`
		CenterID        Text `json:"centerId"`
		AppointmentTime Text `json:"appointmentTime"`
		CreatedAt       Text `json:"createdAt"`
	}{
		Alias:           (*Alias)(b),
		ID:              Text(b.ID),
		CenterID:        Text(b.CenterID),
		AppointmentTime: Text(b.AppointmentTime),
		CreatedAt:       Text(b.CreatedAt),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	b.ID = firstNonEmpty(string(aux.ID), string(aux.MongoID))
	b.CenterID = string(aux.CenterID)
	b.AppointmentTime = string(aux.AppointmentTime)
	b.CreatedAt = string(aux.CreatedAt)
	return nil
}

// CustomString returns customData[key] when it is a non-empty string.
func (b *Bill) CustomString(key string) string {
	if b.CustomData == nil {
		return ""
	}
	s, _ := b.CustomData[key].(string)
	return strings.TrimSpace(s)
}

// Appointment is one scheduled visit. Only some of the date fields are ever
// populated for a given entry.
type Appointment struct {
	ID                      string `json:"id,omitempty"`
	ScheduledAt             string `json:"scheduledAt,omitempty"`
	AppointmentTime         string `json:"appointmentTime,omitempty"`
	ConfirmedDate           string `json:"confirmedDate,omitempty"`
	ConfirmedTime           string `json:"confirmedTime,omitempty"`
	PreferredDate           string `json:"preferredDate,omitempty"`
	PreferredTime           string `json:"preferredTime,omitempty"`
	Date                    string `json:"date,omitempty"`
	Status                  string `json:"status,omitempty"`
	Type                    string `json:"type,omitempty"`
	AppointmentType         string `json:"appointmentType,omitempty"`
	ReassignmentAppointment Flag   `json:"reassignmentAppointment,omitempty"`
}

func (a *Appointment) UnmarshalJSON(b []byte) error {
	type Alias Appointment
	aux := struct {
		*Alias
		ID              Text `json:"id"`
		MongoID         Text `json:"_id"`
		ScheduledAt     Text `json:"scheduledAt"`
		AppointmentTime Text `json:"appointmentTime"`
		ConfirmedDate   Text `json:"confirmedDate"`
		ConfirmedTime   Text `json:"confirmedTime"`
		PreferredDate   Text `json:"preferredDate"`
		PreferredTime   Text `json:"preferredTime"`
		Date            Text `json:"date"`
	}{
		Alias:           (*Alias)(a),
		ID:              Text(a.ID),
		ScheduledAt:     Text(a.ScheduledAt),
		AppointmentTime: Text(a.AppointmentTime),
		ConfirmedDate:   Text(a.ConfirmedDate),
		ConfirmedTime:   Text(a.ConfirmedTime),
		PreferredDate:   Text(a.PreferredDate),
		PreferredTime:   Text(a.PreferredTime),
		Date:            Text(a.Date),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	a.ID = firstNonEmpty(string(aux.ID), string(aux.MongoID))
	a.ScheduledAt = string(aux.ScheduledAt)
	a.AppointmentTime = string(aux.AppointmentTime)
	a.ConfirmedDate = string(aux.ConfirmedDate)
	a.ConfirmedTime = string(aux.ConfirmedTime)
	a.PreferredDate = string(aux.PreferredDate)
	a.PreferredTime = string(aux.PreferredTime)
	a.Date = string(aux.Date)
	return nil
}

// DoctorRef is the assigned doctor. The backend sends either a bare id or an
// embedded object.
type DoctorRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

func (d *DoctorRef) UnmarshalJSON(b []byte) error {
	*d = DoctorRef{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &d.ID)
	}
	var raw struct {
		ID         Text   `json:"id"`
		MongoID    Text   `json:"_id"`
		Name       string `json:"name"`
		FullName   string `json:"fullName"`
		DoctorName string `json:"doctorName"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil
	}
	d.ID = firstNonEmpty(string(raw.ID), string(raw.MongoID))
	d.Name = firstNonEmpty(raw.Name, raw.FullName, raw.DoctorName)
	return nil
}

// ReassignmentEntry records one reassignment of the patient.
type ReassignmentEntry struct {
	FromDoctor   string `json:"fromDoctor,omitempty"`
	ToDoctor     string `json:"toDoctor,omitempty"`
	Reason       string `json:"reason,omitempty"`
	ReassignedAt string `json:"reassignedAt,omitempty"`
}

func (e *ReassignmentEntry) UnmarshalJSON(b []byte) error {
	type Alias ReassignmentEntry
	aux := struct {
		*Alias
		FromDoctor   Text `json:"fromDoctor"`
		ToDoctor     Text `json:"toDoctor"`
		ReassignedAt Text `json:"reassignedAt"`
	}{
		Alias:        (*Alias)(e),
		FromDoctor:   Text(e.FromDoctor),
		ToDoctor:     Text(e.ToDoctor),
		ReassignedAt: Text(e.ReassignedAt),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.FromDoctor = string(aux.FromDoctor)
	e.ToDoctor = string(aux.ToDoctor)
	e.ReassignedAt = string(aux.ReassignedAt)
	return nil
}

// Patient is a patient document with its embedded billing and scheduling
// history.
type Patient struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Phone               string              `json:"phone,omitempty"`
	Email               string              `json:"email,omitempty"`
	Age                 Number              `json:"age,omitempty"`
	Gender              string              `json:"gender,omitempty"`
	UHID                string              `json:"uhId,omitempty"`
	CenterID            string              `json:"centerId,omitempty"`
	Billing             []Bill              `json:"billing,omitempty"`
	ReassignedBilling   []Bill              `json:"reassignedBilling,omitempty"`
	Appointments        []Appointment       `json:"appointments,omitempty"`
	AppointmentTime     string              `json:"appointmentTime,omitempty"`
	AssignedDoctor      *DoctorRef          `json:"assignedDoctor,omitempty"`
	AssignedAt          string              `json:"assignedAt,omitempty"`
	IsReassigned        Flag                `json:"isReassigned,omitempty"`
	LastReassignedAt    string              `json:"lastReassignedAt,omitempty"`
	ReassignmentHistory []ReassignmentEntry `json:"reassignmentHistory,omitempty"`
	CreatedAt           string              `json:"createdAt,omitempty"`
}

func (p *Patient) UnmarshalJSON(b []byte) error {
	type Alias Patient
	aux := struct {
		*Alias
		ID               Text `json:"id"`
		MongoID          Text `json:"_id"`
		Phone            Text `json:"phone"`
		UHID             Text `json:"uhId"`
		CenterID         Text `json:"centerId"`
		AppointmentTime  Text `json:"appointmentTime"`
		AssignedAt       Text `json:"assignedAt"`
		LastReassignedAt Text `json:"lastReassignedAt"`
		CreatedAt        Text `json:"createdAt"`
	}{
		Alias:            (*Alias)(p),
		ID:               Text(p.ID),
		Phone:            Text(p.Phone),
		UHID:             Text(p.UHID),
		CenterID:         Text(p.CenterID),
		AppointmentTime:  Text(p.AppointmentTime),
		AssignedAt:       Text(p.AssignedAt),
		LastReassignedAt: Text(p.LastReassignedAt),
		CreatedAt:        Text(p.CreatedAt),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.ID = firstNonEmpty(string(aux.ID), string(aux.MongoID))
	p.Phone = string(aux.Phone)
	p.UHID = string(aux.UHID)
	p.CenterID = string(aux.CenterID)
	p.AppointmentTime = string(aux.AppointmentTime)
	p.AssignedAt = string(aux.AssignedAt)
	p.LastReassignedAt = string(aux.LastReassignedAt)
	p.CreatedAt = string(aux.CreatedAt)
	return nil
}

// Reassigned reports whether the patient has been re-routed at least once.
func (p *Patient) Reassigned() bool {
	return bool(p.IsReassigned) || len(p.ReassignmentHistory) > 0
}

// BillList decodes a billing sub-record sent either as a single object or an
// array. A nil BillList means the field was absent.
type BillList []Bill

func (l *BillList) UnmarshalJSON(b []byte) error {
	*l = nil
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '[' {
		var bills []Bill
		if err := json.Unmarshal(b, &bills); err != nil {
			return nil
		}
		*l = bills
		return nil
	}
	var one Bill
	if err := json.Unmarshal(b, &one); err != nil {
		return nil
	}
	*l = BillList{one}
	return nil
}

// BillingRequest is a reassignment consultation billing request.
type BillingRequest struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patientId,omitempty"`
	PatientName string    `json:"patientName,omitempty"`
	DoctorID    string    `json:"doctorId,omitempty"`
	Status      string    `json:"status,omitempty"`
	Remaining   OptNumber `json:"remaining"`
	Total       Number    `json:"total,omitempty"`
	Paid        Number    `json:"paid,omitempty"`
	Billing     BillList  `json:"billing,omitempty"`
	CreatedAt   string    `json:"createdAt,omitempty"`
}

func (r *BillingRequest) UnmarshalJSON(b []byte) error {
	type Alias BillingRequest
	aux := struct {
		*Alias
		ID        Text `json:"id"`
		MongoID   Text `json:"_id"`
		PatientID Text `json:"patientId"`
		DoctorID  Text `json:"doctorId"`
		CreatedAt Text `json:"createdAt"`
	}{
		Alias:     (*Alias)(r),
		ID:        Text(r.ID),
		PatientID: Text(r.PatientID),
		DoctorID:  Text(r.DoctorID),
		CreatedAt: Text(r.CreatedAt),
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.ID = firstNonEmpty(string(aux.ID), string(aux.MongoID))
	r.PatientID = string(aux.PatientID)
	r.DoctorID = string(aux.DoctorID)
	r.CreatedAt = string(aux.CreatedAt)
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
