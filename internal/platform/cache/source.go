package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/consolemodels"
)

// KeyPrefix namespaces every snapshot key.
const KeyPrefix = "console:snapshot:"

// Backend is the hospital backend as the console reads it.
type Backend interface {
	ListPatients(ctx context.Context, q upstream.PatientQuery) ([]consolemodels.Patient, error)
	GetPatient(ctx context.Context, id string) (*consolemodels.Patient, error)
	ListBillingRequests(ctx context.Context, q upstream.RequestQuery) ([]consolemodels.BillingRequest, error)
}

// Source is a Backend that answers from cached snapshots while they are
// fresh. Snapshots hold raw records only; derived statuses are always
// recomputed by callers. Cache failures fall through to the backend.
type Source struct {
	backend  Backend
	provider Provider
	ttl      time.Duration
	logger   zerolog.Logger
}

func NewSource(backend Backend, provider Provider, ttl time.Duration, logger zerolog.Logger) *Source {
	return &Source{
		backend:  backend,
		provider: provider,
		ttl:      ttl,
		logger:   logger.With().Str("component", "cache").Logger(),
	}
}

func (s *Source) ListPatients(ctx context.Context, q upstream.PatientQuery) ([]consolemodels.Patient, error) {
	key := KeyPrefix + "patients:" + joinKey(q.DoctorID, q.SuperconsultantID, q.CenterID, timeKey(q.From), timeKey(q.To))
	var out []consolemodels.Patient
	err := s.cached(ctx, key, &out, func() (interface{}, error) {
		return s.backend.ListPatients(ctx, q)
	})
	return out, err
}

func (s *Source) GetPatient(ctx context.Context, id string) (*consolemodels.Patient, error) {
	var out consolemodels.Patient
	err := s.cached(ctx, KeyPrefix+"patient:"+id, &out, func() (interface{}, error) {
		return s.backend.GetPatient(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Source) ListBillingRequests(ctx context.Context, q upstream.RequestQuery) ([]consolemodels.BillingRequest, error) {
	key := KeyPrefix + "requests:" + joinKey(q.Status, q.DoctorID)
	var out []consolemodels.BillingRequest
	err := s.cached(ctx, key, &out, func() (interface{}, error) {
		return s.backend.ListBillingRequests(ctx, q)
	})
	return out, err
}

// Invalidate drops every snapshot so the next read goes to the backend.
func (s *Source) Invalidate(ctx context.Context) error {
	if err := s.provider.DeletePrefix(ctx, KeyPrefix); err != nil {
		return fmt.Errorf("invalidate snapshots: %w", err)
	}
	return nil
}

func (s *Source) cached(ctx context.Context, key string, out interface{}, load func() (interface{}, error)) error {
	if s.ttl > 0 {
		raw, err := s.provider.Get(ctx, key)
		switch {
		case err == nil:
			if jerr := json.Unmarshal(raw, out); jerr == nil {
				return nil
			}
			s.logger.Warn().Str("key", key).Msg("discarding undecodable snapshot")
		case !errors.Is(err, ErrMiss):
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
	}

	v, err := load()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}
	if s.ttl > 0 {
		if err := s.provider.Set(ctx, key, raw, s.ttl); err != nil {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
	}
	return nil
}

func joinKey(parts ...string) string {
	return strings.Join(parts, "|")
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
