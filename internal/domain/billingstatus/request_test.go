package billingstatus

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehr/console/pkg/consolemodels"
)

func TestIsReassignmentRequestPending(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"billing object no payments", `{"billing":{"status":"No Payments"}}`, true},
		{"billing array partial", `{"billing":[{"status":"paid"},{"status":"partial"}]}`, true},
		{"billing remaining", `{"billing":[{"status":"paid","remaining":20}]}`, true},
		{"billing all paid", `{"billing":[{"status":"paid","remaining":0}],"status":"pending"}`, false},
		{"no billing status pending", `{"status":"pending"}`, true},
		{"no billing partially paid spaced", `{"status":"Partially Paid"}`, true},
		{"no billing paid less than total", `{"status":"open","total":500,"paid":200}`, true},
		{"no billing remaining", `{"status":"open","remaining":10}`, true},
		{"no billing settled", `{"status":"paid","total":500,"paid":500}`, false},
		{"empty billing array uses request", `{"billing":[],"status":"unpaid"}`, true},
		{"null billing", `{"billing":null,"status":"completed"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req consolemodels.BillingRequest
			require.NoError(t, json.Unmarshal([]byte(tt.doc), &req))
			assert.Equal(t, tt.want, IsReassignmentRequestPending(&req))
		})
	}
	assert.False(t, IsReassignmentRequestPending(nil))
}

func TestPendingRequests(t *testing.T) {
	reqs := []consolemodels.BillingRequest{
		{ID: "a", Status: "pending"},
		{ID: "b", Status: "paid"},
		{ID: "c", Total: 100, Paid: 20},
	}
	got := PendingRequests(reqs)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
}
