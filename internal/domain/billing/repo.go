package billing

import (
	"context"

	"github.com/ehr/console/internal/platform/upstream"
	"github.com/ehr/console/pkg/consolemodels"
)

// PatientSource reads the patients whose embedded bills feed the reports.
type PatientSource interface {
	ListPatients(ctx context.Context, q upstream.PatientQuery) ([]consolemodels.Patient, error)
}
