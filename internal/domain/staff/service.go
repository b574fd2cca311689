package staff

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/console/internal/domain/center"
	"github.com/ehr/console/internal/platform/websocket"
)

// Events published on the staff topic.
const (
	EventStaffChanged = "staff.changed"
	EventStaffDeleted = "staff.deleted"
)

// CenterLookup resolves the center a staff member is attached to.
type CenterLookup interface {
	GetCenter(ctx context.Context, id uuid.UUID) (*center.Center, error)
}

type Service struct {
	repo      Repository
	centers   CenterLookup
	publisher websocket.Publisher
	logger    zerolog.Logger
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, logger: zerolog.Nop()}
}

// SetCenters enables center checks on create and update.
func (s *Service) SetCenters(c CenterLookup) { s.centers = c }

func (s *Service) SetPublisher(p websocket.Publisher) { s.publisher = p }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "staff").Logger()
}

func (s *Service) Create(ctx context.Context, m *Staff) error {
	if err := s.validate(ctx, m); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, EventStaffChanged, m)
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, m *Staff) error {
	if _, err := s.repo.GetByID(ctx, m.ID); err != nil {
		return err
	}
	if err := s.validate(ctx, m); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		return err
	}
	s.publish(ctx, EventStaffChanged, m)
	return nil
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, EventStaffDeleted, map[string]uuid.UUID{"id": id})
	return nil
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.setActive(ctx, id, true)
}

// Deactivate keeps the record so past assignments still resolve a name.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.setActive(ctx, id, false)
}

func (s *Service) setActive(ctx context.Context, id uuid.UUID, active bool) (*Staff, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, EventStaffChanged, m)
	return m, nil
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Staff, int, error) {
	f.Role = strings.ToLower(strings.TrimSpace(f.Role))
	if f.Role != "" && !validRoles[f.Role] {
		return nil, 0, ValidationError("invalid role: " + f.Role)
	}
	f.Query = strings.TrimSpace(f.Query)
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) validate(ctx context.Context, m *Staff) error {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.ToLower(strings.TrimSpace(m.Email))
	m.Role = strings.ToLower(strings.TrimSpace(m.Role))
	if m.Name == "" {
		return ValidationError("name is required")
	}
	if addr, err := mail.ParseAddress(m.Email); err != nil || addr.Address != m.Email {
		return ValidationError("invalid email: " + m.Email)
	}
	if !validRoles[m.Role] {
		return ValidationError("invalid role: " + m.Role)
	}
	if m.UpstreamID != nil {
		if id := strings.TrimSpace(*m.UpstreamID); id != "" {
			m.UpstreamID = &id
		} else {
			m.UpstreamID = nil
		}
	}
	if m.UpstreamID != nil && !m.Clinical() {
		return ValidationError("upstream_id is only valid for doctors and superconsultants")
	}

	if m.CenterID != nil && s.centers != nil {
		if _, err := s.centers.GetCenter(ctx, *m.CenterID); err != nil {
			if errors.Is(err, center.ErrNotFound) {
				return ValidationError("unknown center: " + m.CenterID.String())
			}
			return err
		}
	}

	existing, err := s.repo.GetByEmail(ctx, m.Email)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case existing.ID != m.ID:
		return ValidationError("email " + m.Email + " is already registered")
	}
	return nil
}

func (s *Service) publish(ctx context.Context, typ string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, websocket.NewEvent(websocket.TopicStaff, typ, payload)); err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Msg("publish staff event")
	}
}
