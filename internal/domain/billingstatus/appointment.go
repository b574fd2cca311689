package billingstatus

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/console/pkg/consolemodels"
)

// Source names where a resolved appointment came from.
type Source string

const (
	SourceAppointments      Source = "appointments"
	SourcePatient           Source = "patient"
	SourceReassignedBilling Source = "reassigned_billing"
	SourceBilling           Source = "billing"
)

// Resolved is the single appointment the console treats as relevant for a
// patient.
type Resolved struct {
	Date         time.Time `json:"date"`
	Time         string    `json:"time,omitempty"`
	Status       string    `json:"status,omitempty"`
	Source       Source    `json:"source"`
	Reassignment bool      `json:"reassignment"`
}

// Resolver resolves appointment dates and timelines in a fixed time zone.
// The zero value is not usable; use NewResolver.
type Resolver struct {
	loc *time.Location
	log zerolog.Logger
}

// NewResolver returns a resolver reading zone-less dates in loc (UTC when
// nil).
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, log: zerolog.Nop()}
}

// WithLogger returns a copy of the resolver that traces its decisions at
// debug level.
func (r *Resolver) WithLogger(logger zerolog.Logger) *Resolver {
	cp := *r
	cp.log = logger
	return &cp
}

// Location returns the resolver's time zone.
func (r *Resolver) Location() *time.Location { return r.loc }

// ResolveAppointment is a convenience wrapper around Resolver.Resolve.
func ResolveAppointment(p *consolemodels.Patient, loc *time.Location) *Resolved {
	return NewResolver(loc).Resolve(p)
}

type candidate struct {
	instant
	clockText    string
	status       string
	reassignment bool
}

// Resolve picks the relevant appointment of a patient by source priority:
// the appointments array, the patient's own appointmentTime, the most recent
// reassigned bill, then the most recent bill. It returns nil when nothing
// resolves. Malformed values are skipped, never reported.
func (r *Resolver) Resolve(p *consolemodels.Patient) *Resolved {
	if p == nil {
		return nil
	}
	if c, ok := r.fromAppointments(p); ok {
		return r.resolved(p, c, SourceAppointments)
	}
	if in, ok := combine(p.AppointmentTime, "", r.loc); ok {
		return r.resolved(p, candidate{instant: in}, SourcePatient)
	}
	if c, ok := r.fromBilling(p.ReassignedBilling); ok {
		c.reassignment = true
		return r.resolved(p, c, SourceReassignedBilling)
	}
	if c, ok := r.fromBilling(p.Billing); ok {
		return r.resolved(p, c, SourceBilling)
	}
	r.log.Debug().Str("patient_id", p.ID).Msg("no appointment resolved")
	return nil
}

func (r *Resolver) resolved(p *consolemodels.Patient, c candidate, src Source) *Resolved {
	res := &Resolved{
		Date:         c.at,
		Time:         c.clockText,
		Status:       c.status,
		Source:       src,
		Reassignment: c.reassignment,
	}
	if res.Time == "" && c.hasClock {
		res.Time = c.at.In(r.loc).Format(clockLayout)
	}
	r.log.Debug().
		Str("patient_id", p.ID).
		Str("source", string(src)).
		Time("date", res.Date).
		Msg("appointment resolved")
	return res
}

func (r *Resolver) fromAppointments(p *consolemodels.Patient) (candidate, bool) {
	var cands []candidate
	for i := range p.Appointments {
		if c, ok := r.appointmentCandidate(&p.Appointments[i]); ok {
			cands = append(cands, c)
		}
	}
	if len(cands) == 0 {
		return candidate{}, false
	}
	if !p.Reassigned() {
		return earliest(cands), true
	}
	var flagged []candidate
	for _, c := range cands {
		if c.reassignment {
			flagged = append(flagged, c)
		}
	}
	if len(flagged) > 0 {
		return latest(flagged), true
	}
	return latest(cands), true
}

func (r *Resolver) appointmentCandidate(a *consolemodels.Appointment) (candidate, bool) {
	flagged := isReassignmentAppointment(a)
	type field struct{ date, clock string }
	var fields []field
	if flagged {
		fields = append(fields,
			field{a.ConfirmedDate, a.ConfirmedTime},
			field{a.PreferredDate, a.PreferredTime},
		)
	}
	fields = append(fields,
		field{a.ScheduledAt, ""},
		field{a.AppointmentTime, ""},
		field{a.ConfirmedDate, a.ConfirmedTime},
		field{a.PreferredDate, a.PreferredTime},
		field{a.Date, ""},
	)
	for _, f := range fields {
		in, ok := combine(f.date, f.clock, r.loc)
		if !ok {
			continue
		}
		c := candidate{instant: in, status: a.Status, reassignment: flagged}
		if in.clockMerged {
			c.clockText = strings.TrimSpace(f.clock)
		}
		return c, true
	}
	return candidate{}, false
}

func isReassignmentAppointment(a *consolemodels.Appointment) bool {
	return bool(a.ReassignmentAppointment) ||
		normalize(a.AppointmentType) == consolemodels.ReassignmentConsultation ||
		normalize(a.Type) == consolemodels.ReassignmentConsultation
}

// fromBilling reads the appointment time of the most recent bill only. Older
// bills are not consulted when it has none.
func (r *Resolver) fromBilling(bills []consolemodels.Bill) (candidate, bool) {
	order := r.recency(bills)
	if len(order) == 0 {
		return candidate{}, false
	}
	b := &bills[order[0]]
	raw := b.CustomString("appointmentTime")
	if raw == "" {
		raw = strings.TrimSpace(b.AppointmentTime)
	}
	if in, ok := combine(raw, "", r.loc); ok {
		return candidate{instant: in}, true
	}
	return candidate{}, false
}

// recency orders bill indexes most recent first: bills with a parseable
// createdAt by that date, then the rest by position, later first.
func (r *Resolver) recency(bills []consolemodels.Bill) []int {
	type ranked struct {
		idx   int
		at    time.Time
		dated bool
	}
	rs := make([]ranked, len(bills))
	for i := range bills {
		t, _, ok := parseDate(bills[i].CreatedAt, r.loc)
		rs[i] = ranked{idx: i, at: t, dated: ok}
	}
	sort.SliceStable(rs, func(a, b int) bool {
		x, y := rs[a], rs[b]
		if x.dated != y.dated {
			return x.dated
		}
		if x.dated && !x.at.Equal(y.at) {
			return x.at.After(y.at)
		}
		return x.idx > y.idx
	})
	out := make([]int, len(rs))
	for i, x := range rs {
		out[i] = x.idx
	}
	return out
}

func earliest(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.at.Before(best.at) {
			best = c
		}
	}
	return best
}

func latest(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		if c.at.After(best.at) {
			best = c
		}
	}
	return best
}
