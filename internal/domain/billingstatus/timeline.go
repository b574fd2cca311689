package billingstatus

import (
	"sort"
	"time"

	"github.com/ehr/console/pkg/consolemodels"
)

const (
	dayLayout   = "02 Jan 2006"
	clockLayout = "03:04 PM"
)

// FallbackKind tells which assignment date stands in for a missing
// appointment.
type FallbackKind string

const (
	FallbackNone       FallbackKind = ""
	FallbackAssigned   FallbackKind = "assigned"
	FallbackReassigned FallbackKind = "reassigned"
)

// Timeline is the single date view of a patient shared by filtering, sorting
// and display. Appointment wins whenever it resolved; the assignment date is
// only consulted in its absence.
type Timeline struct {
	Appointment *Resolved
	Fallback    time.Time
	Kind        FallbackKind

	loc *time.Location
}

// Timeline builds the date view of a patient.
func (r *Resolver) Timeline(p *consolemodels.Patient) Timeline {
	tl := Timeline{loc: r.loc}
	if p == nil {
		return tl
	}
	tl.Appointment = r.Resolve(p)
	if p.Reassigned() {
		if t, _, ok := parseDate(p.LastReassignedAt, r.loc); ok {
			tl.Fallback, tl.Kind = t, FallbackReassigned
			return tl
		}
	}
	if t, _, ok := parseDate(p.AssignedAt, r.loc); ok {
		tl.Fallback, tl.Kind = t, FallbackAssigned
	}
	return tl
}

// Date returns the date used for filtering: the appointment date, or the
// assignment date when no appointment resolved.
func (t Timeline) Date() (time.Time, bool) {
	if t.Appointment != nil {
		return t.Appointment.Date, true
	}
	if t.Kind != FallbackNone {
		return t.Fallback, true
	}
	return time.Time{}, false
}

// InRange reports whether the relevant date falls in [from, to). A zero
// bound is open.
func (t Timeline) InRange(from, to time.Time) bool {
	d, ok := t.Date()
	if !ok {
		return false
	}
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && !d.Before(to) {
		return false
	}
	return true
}

// OnDay reports whether the relevant date falls on the calendar day of day,
// in the timeline's zone.
func (t Timeline) OnDay(day time.Time) bool {
	start := startOfDay(day, t.location())
	return t.InRange(start, start.AddDate(0, 0, 1))
}

// Display renders the date the way the console lists it.
func (t Timeline) Display() string {
	loc := t.location()
	if a := t.Appointment; a != nil {
		d := a.Date.In(loc)
		if a.Time == "" {
			return d.Format(dayLayout) + " (Appointment)"
		}
		return d.Format(dayLayout) + " at " + d.Format(clockLayout) + " (Appointment)"
	}
	switch t.Kind {
	case FallbackReassigned:
		return t.Fallback.In(loc).Format(dayLayout+", "+clockLayout) + " (Reassigned)"
	case FallbackAssigned:
		return t.Fallback.In(loc).Format(dayLayout+", "+clockLayout) + " (Assigned)"
	}
	return "No appointment"
}

func (t Timeline) location() *time.Location {
	if t.loc == nil {
		return time.UTC
	}
	return t.loc
}

// Entry pairs a patient with its timeline for list views.
type Entry struct {
	Patient  *consolemodels.Patient
	Timeline Timeline
}

// SortEntries orders a list view: patients with an appointment first,
// earliest appointment first; then the rest by most recent
// assignment/reassignment; patients with no date at all last. The sort is
// stable.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Timeline, entries[j].Timeline
		ra, rb := rank(a), rank(b)
		if ra != rb {
			return ra < rb
		}
		switch ra {
		case 0:
			return a.Appointment.Date.Before(b.Appointment.Date)
		case 1:
			return a.Fallback.After(b.Fallback)
		}
		return false
	})
}

func rank(t Timeline) int {
	switch {
	case t.Appointment != nil:
		return 0
	case t.Kind != FallbackNone:
		return 1
	}
	return 2
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// InRange reports whether a patient's relevant date falls in [from, to).
func InRange(p *consolemodels.Patient, from, to time.Time, loc *time.Location) bool {
	return NewResolver(loc).Timeline(p).InRange(from, to)
}

// DisplayString renders a patient's relevant date for list views.
func DisplayString(p *consolemodels.Patient, loc *time.Location) string {
	return NewResolver(loc).Timeline(p).Display()
}

// SortForList returns the patients in list order. The input is not modified.
func SortForList(patients []consolemodels.Patient, loc *time.Location) []consolemodels.Patient {
	r := NewResolver(loc)
	entries := make([]Entry, len(patients))
	for i := range patients {
		entries[i] = Entry{Patient: &patients[i], Timeline: r.Timeline(&patients[i])}
	}
	SortEntries(entries)
	out := make([]consolemodels.Patient, len(entries))
	for i, e := range entries {
		out[i] = *e.Patient
	}
	return out
}
