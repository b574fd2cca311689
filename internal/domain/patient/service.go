package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/console/internal/domain/billingstatus"
	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/internal/platform/websocket"
	"github.com/ehr/console/pkg/consolemodels"
)

// EventViewed is published on the assignments topic after a patient is
// marked viewed.
const EventViewed = "assignment.viewed"

type Service struct {
	source    Source
	views     ViewRepository
	resolver  *billingstatus.Resolver
	publisher websocket.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(source Source, views ViewRepository, resolver *billingstatus.Resolver) *Service {
	if resolver == nil {
		resolver = billingstatus.NewResolver(nil)
	}
	return &Service{
		source:   source,
		views:    views,
		resolver: resolver,
		now:      time.Now,
		logger:   zerolog.Nop(),
	}
}

// SetPublisher attaches an optional live event publisher.
func (s *Service) SetPublisher(p websocket.Publisher) { s.publisher = p }

// SetLogger attaches a logger.
func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "patient").Logger()
}

// SetClock overrides the clock used for "today" and viewed markers.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Location is the time zone dates are read and rendered in.
func (s *Service) Location() *time.Location { return s.resolver.Location() }

// ListAssignments returns one page of the assignment list and the number of
// matches. Every call classifies freshly fetched records.
func (s *Service) ListAssignments(ctx context.Context, f AssignmentFilter) ([]Assignment, int, error) {
	view, ok := ParseView(string(f.View))
	if !ok {
		return nil, 0, ValidationError("invalid view: " + string(f.View))
	}
	if f.Status != "" {
		label, ok := billingstatus.ParseLabel(string(f.Status))
		if !ok {
			return nil, 0, ValidationError("invalid status: " + string(f.Status))
		}
		f.Status = label
	}
	from, to := f.From, f.To
	if f.Today {
		from = startOfDay(s.now(), s.Location())
		to = from.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, 0, ValidationError("from must be before to")
	}

	q := upstream.PatientQuery{CenterID: f.CenterID}
	if view == ViewSuperconsultant {
		q.SuperconsultantID = f.StaffID
	} else {
		q.DoctorID = f.StaffID
	}
	patients, err := s.source.ListPatients(ctx, q)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}

	needle := strings.ToLower(strings.TrimSpace(f.Query))
	entries := make([]billingstatus.Entry, 0, len(patients))
	labels := make(map[*consolemodels.Patient]billingstatus.Label, len(patients))
	for i := range patients {
		p := &patients[i]
		if needle != "" && !matches(p, needle) {
			continue
		}
		tl := s.resolver.Timeline(p)
		if (!from.IsZero() || !to.IsZero()) && !tl.InRange(from, to) {
			continue
		}
		label := classify(view, p.Billing)
		if f.Status != "" && label != f.Status {
			continue
		}
		labels[p] = label
		entries = append(entries, billingstatus.Entry{Patient: p, Timeline: tl})
	}
	billingstatus.SortEntries(entries)

	total := len(entries)
	start, end := 0, total
	if f.Limit > 0 {
		start = min(f.Offset, total)
		end = min(start+f.Limit, total)
	}
	page := entries[start:end]

	viewed, err := s.viewed(ctx, f.UserID)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Assignment, 0, len(page))
	for _, e := range page {
		a := s.assignment(e.Patient, e.Timeline, labels[e.Patient])
		mergeViewed(&a, e.Timeline, viewed)
		out = append(out, a)
	}
	return out, total, nil
}

// GetStatus derives the full billing and appointment status of one patient,
// including the reassignment billing requests raised for them.
func (s *Service) GetStatus(ctx context.Context, id, userID string) (*Status, error) {
	p, err := s.source.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	tl := s.resolver.Timeline(p)
	st := &Status{
		Assignment: s.assignment(p, tl, billingstatus.ClassifyConsultation(p.Billing)),
		Billing:    billingstatus.Summarize(p.Billing),
		Bills:      len(p.Billing),
	}

	reqs, err := s.source.ListBillingRequests(ctx, upstream.RequestQuery{})
	if err != nil {
		return nil, fmt.Errorf("list billing requests: %w", err)
	}
	for _, r := range reqs {
		if r.PatientID != "" && r.PatientID == p.ID {
			st.Requests = append(st.Requests, Request{BillingRequest: r, Pending: billingstatus.IsReassignmentRequestPending(&r)})
		}
	}

	viewed, err := s.viewed(ctx, userID)
	if err != nil {
		return nil, err
	}
	mergeViewed(&st.Assignment, tl, viewed)
	return st, nil
}

// MarkViewed records that userID opened the patient. Derived state is never
// touched; the marker is merged in on the next read.
func (s *Service) MarkViewed(ctx context.Context, patientID, userID string) (time.Time, error) {
	patientID, userID = strings.TrimSpace(patientID), strings.TrimSpace(userID)
	if patientID == "" {
		return time.Time{}, ValidationError("patient id is required")
	}
	if userID == "" {
		return time.Time{}, ValidationError("user id is required")
	}
	at := s.now().UTC()
	if err := s.views.MarkViewed(ctx, patientID, userID, at); err != nil {
		return time.Time{}, err
	}
	if s.publisher != nil {
		ev := websocket.NewEvent(websocket.TopicAssignments, EventViewed, map[string]interface{}{
			"patient_id": patientID,
			"user_id":    userID,
			"viewed_at":  at,
		})
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn().Err(err).Str("patient_id", patientID).Msg("publish viewed event")
		}
	}
	return at, nil
}

// ListReassignmentRequests returns reassignment billing requests, optionally
// only those still awaiting payment.
func (s *Service) ListReassignmentRequests(ctx context.Context, doctorID string, pendingOnly bool) ([]Request, error) {
	reqs, err := s.source.ListBillingRequests(ctx, upstream.RequestQuery{DoctorID: doctorID})
	if err != nil {
		return nil, fmt.Errorf("list billing requests: %w", err)
	}
	out := make([]Request, 0, len(reqs))
	for i := range reqs {
		pending := billingstatus.IsReassignmentRequestPending(&reqs[i])
		if pendingOnly && !pending {
			continue
		}
		out = append(out, Request{BillingRequest: reqs[i], Pending: pending})
	}
	return out, nil
}

// Overview counts every patient per label on both tracks.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	patients, err := s.source.ListPatients(ctx, upstream.PatientQuery{})
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	reqs, err := s.source.ListBillingRequests(ctx, upstream.RequestQuery{})
	if err != nil {
		return nil, fmt.Errorf("list billing requests: %w", err)
	}
	ov := &Overview{
		Patients:        len(patients),
		Consultation:    make(map[billingstatus.Label]int),
		Superconsultant: make(map[billingstatus.Label]int),
		PendingRequests: len(billingstatus.PendingRequests(reqs)),
		GeneratedAt:     s.now().UTC(),
	}
	for i := range patients {
		ov.Consultation[billingstatus.ClassifyConsultation(patients[i].Billing)]++
		ov.Superconsultant[billingstatus.ClassifySuperconsultant(patients[i].Billing)]++
	}
	return ov, nil
}

func (s *Service) viewed(ctx context.Context, userID string) (map[string]time.Time, error) {
	if userID == "" || s.views == nil {
		return nil, nil
	}
	m, err := s.views.ViewedSince(ctx, userID, time.Time{})
	if err != nil {
		return nil, fmt.Errorf("load viewed markers: %w", err)
	}
	return m, nil
}

func (s *Service) assignment(p *consolemodels.Patient, tl billingstatus.Timeline, label billingstatus.Label) Assignment {
	a := Assignment{
		PatientID:          p.ID,
		Name:               p.Name,
		Phone:              p.Phone,
		UHID:               p.UHID,
		CenterID:           p.CenterID,
		Status:             label,
		StatusColor:        label.ColorKey(),
		Appointment:        tl.Appointment,
		AppointmentDisplay: tl.Display(),
		Reassigned:         p.Reassigned(),
	}
	if p.AssignedDoctor != nil {
		a.DoctorID, a.DoctorName = p.AssignedDoctor.ID, p.AssignedDoctor.Name
	}
	if d, ok := tl.Date(); ok {
		a.RelevantDate = &d
	}
	return a
}

// mergeViewed marks the row viewed unless the patient was (re)assigned after
// the marker was written.
func mergeViewed(a *Assignment, tl billingstatus.Timeline, viewed map[string]time.Time) {
	at, ok := viewed[a.PatientID]
	if !ok {
		return
	}
	if tl.Kind != billingstatus.FallbackNone && at.Before(tl.Fallback) {
		return
	}
	a.Viewed = true
	a.ViewedAt = &at
}

func classify(view View, bills []consolemodels.Bill) billingstatus.Label {
	if view == ViewSuperconsultant {
		return billingstatus.ClassifySuperconsultant(bills)
	}
	return billingstatus.ClassifyConsultation(bills)
}

func matches(p *consolemodels.Patient, needle string) bool {
	for _, v := range []string{p.Name, p.Phone, p.UHID, p.ID} {
		if v != "" && strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
