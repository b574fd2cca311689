package patient

import (
	"context"
	"time"

	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/consolemodels"
)

// Source reads patients and billing requests from the hospital backend,
// directly or through the snapshot cache.
type Source interface {
	ListPatients(ctx context.Context, q upstream.PatientQuery) ([]consolemodels.Patient, error)
	GetPatient(ctx context.Context, id string) (*consolemodels.Patient, error)
	ListBillingRequests(ctx context.Context, q upstream.RequestQuery) ([]consolemodels.BillingRequest, error)
}

// ViewRepository stores "viewed" markers. They live apart from derived
// state and are merged in at read time.
type ViewRepository interface {
	MarkViewed(ctx context.Context, patientID, userID string, at time.Time) error
	ViewedSince(ctx context.Context, userID string, since time.Time) (map[string]time.Time, error)
}
