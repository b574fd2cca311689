package center

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/console/internal/platform/websocket"
)

// Events published on the centers topic.
const (
	EventCenterChanged   = "center.changed"
	EventCenterDeleted   = "center.deleted"
	EventDiscountChanged = "discount.changed"
)

var (
	codePattern     = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_-]{1,31}$`)
	currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)
)

type Service struct {
	centers   CenterRepository
	discounts DiscountRepository
	publisher websocket.Publisher
	now       func() time.Time
	logger    zerolog.Logger
}

func NewService(centers CenterRepository, discounts DiscountRepository) *Service {
	return &Service{centers: centers, discounts: discounts, now: time.Now, logger: zerolog.Nop()}
}

// SetPublisher attaches an optional live event publisher.
func (s *Service) SetPublisher(p websocket.Publisher) { s.publisher = p }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "center").Logger()
}

// -- Center --

func (s *Service) CreateCenter(ctx context.Context, c *Center) error {
	if err := s.validateCenter(ctx, c); err != nil {
		return err
	}
	if err := s.centers.Create(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, EventCenterChanged, c)
	return nil
}

func (s *Service) GetCenter(ctx context.Context, id uuid.UUID) (*Center, error) {
	return s.centers.GetByID(ctx, id)
}

func (s *Service) UpdateCenter(ctx context.Context, c *Center) error {
	if _, err := s.centers.GetByID(ctx, c.ID); err != nil {
		return err
	}
	if err := s.validateCenter(ctx, c); err != nil {
		return err
	}
	if err := s.centers.Update(ctx, c); err != nil {
		return err
	}
	s.publish(ctx, EventCenterChanged, c)
	return nil
}

func (s *Service) DeleteCenter(ctx context.Context, id uuid.UUID) error {
	if err := s.centers.Delete(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, EventCenterDeleted, map[string]uuid.UUID{"id": id})
	return nil
}

func (s *Service) ListCenters(ctx context.Context, f ListFilter, limit, offset int) ([]*Center, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.centers.List(ctx, f, limit, offset)
}

func (s *Service) validateCenter(ctx context.Context, c *Center) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = "INR"
	}
	if c.Name == "" {
		return ValidationError("name is required")
	}
	if !codePattern.MatchString(c.Code) {
		return ValidationError("code must be 2-32 characters of A-Z, 0-9, - or _")
	}
	if !currencyPattern.MatchString(c.Currency) {
		return ValidationError("currency must be a 3 letter ISO code")
	}
	for name, fee := range map[string]float64{
		"consultation_fee":    c.ConsultationFee,
		"registration_fee":    c.RegistrationFee,
		"superconsultant_fee": c.SuperconsultantFee,
		"reassignment_fee":    c.ReassignmentFee,
	} {
		if fee < 0 || math.IsNaN(fee) || math.IsInf(fee, 0) {
			return ValidationError(name + " must be a non-negative amount")
		}
	}

	existing, err := s.centers.GetByCode(ctx, c.Code)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return err
	case existing.ID != c.ID:
		return ValidationError("code " + c.Code + " is already used by another center")
	}
	return nil
}

// -- Discount Rules --

func (s *Service) CreateDiscount(ctx context.Context, d *DiscountRule) error {
	if _, err := s.centers.GetByID(ctx, d.CenterID); err != nil {
		return err
	}
	if err := validateDiscount(d); err != nil {
		return err
	}
	if err := s.discounts.Create(ctx, d); err != nil {
		return err
	}
	s.publish(ctx, EventDiscountChanged, d)
	return nil
}

func (s *Service) GetDiscount(ctx context.Context, id uuid.UUID) (*DiscountRule, error) {
	return s.discounts.GetByID(ctx, id)
}

func (s *Service) UpdateDiscount(ctx context.Context, d *DiscountRule) error {
	existing, err := s.discounts.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	d.CenterID = existing.CenterID
	if err := validateDiscount(d); err != nil {
		return err
	}
	if err := s.discounts.Update(ctx, d); err != nil {
		return err
	}
	s.publish(ctx, EventDiscountChanged, d)
	return nil
}

func (s *Service) DeleteDiscount(ctx context.Context, id uuid.UUID) error {
	return s.discounts.Delete(ctx, id)
}

func (s *Service) ListDiscounts(ctx context.Context, centerID uuid.UUID) ([]*DiscountRule, error) {
	if _, err := s.centers.GetByID(ctx, centerID); err != nil {
		return nil, err
	}
	return s.discounts.ListByCenter(ctx, centerID)
}

func validateDiscount(d *DiscountRule) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Kind = strings.ToLower(strings.TrimSpace(d.Kind))
	d.AppliesTo = strings.ToLower(strings.TrimSpace(d.AppliesTo))
	if d.AppliesTo == "" {
		d.AppliesTo = AppliesAll
	}
	if d.Name == "" {
		return ValidationError("name is required")
	}
	if d.Kind != KindPercentage && d.Kind != KindFlat {
		return ValidationError("kind must be percentage or flat")
	}
	if d.Value < 0 || math.IsNaN(d.Value) || math.IsInf(d.Value, 0) {
		return ValidationError("value must be a non-negative amount")
	}
	if d.Kind == KindPercentage && d.Value > 100 {
		return ValidationError("percentage cannot exceed 100")
	}
	if !validAppliesTo[d.AppliesTo] {
		return ValidationError("invalid applies_to: " + d.AppliesTo)
	}
	if d.ValidFrom != nil && d.ValidUntil != nil && d.ValidUntil.Before(*d.ValidFrom) {
		return ValidationError("valid_until must not be before valid_from")
	}
	return nil
}

// -- Quotes --

// QuoteFee prices a fee category at a center at the given time, applying the
// single best active discount rule. The net amount is never negative.
func (s *Service) QuoteFee(ctx context.Context, centerID uuid.UUID, category string, at time.Time) (*Quote, error) {
	c, err := s.centers.GetByID(ctx, centerID)
	if err != nil {
		return nil, err
	}
	if !c.Active {
		return nil, ErrInactive
	}
	category = strings.ToLower(strings.TrimSpace(category))
	gross, ok := c.Fee(category)
	if !ok {
		return nil, ValidationError("unknown fee category: " + category)
	}
	if at.IsZero() {
		at = s.now()
	}

	rules, err := s.discounts.ListByCenter(ctx, centerID)
	if err != nil {
		return nil, err
	}
	q := &Quote{CenterID: c.ID, Category: category, Currency: c.Currency, Gross: gross, At: at}
	for _, r := range rules {
		if !r.Applies(category, at) {
			continue
		}
		if d := r.Amount(gross); d > q.Discount {
			q.Discount, q.Rule = d, r
		}
	}
	q.Discount = round2(q.Discount)
	q.Net = math.Max(0, round2(gross-q.Discount))
	return q, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (s *Service) publish(ctx context.Context, typ string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, websocket.NewEvent(websocket.TopicCenters, typ, payload)); err != nil {
		s.logger.Warn().Err(err).Str("event", typ).Msg("publish center event")
	}
}
