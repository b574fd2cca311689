package billingstatus

import "github.com/ehr/console/pkg/consolemodels"

var pendingBillStatuses = map[string]bool{
	"no payments":    true,
	"no_payments":    true,
	"pending":        true,
	"partially_paid": true,
	"unpaid":         true,
	"partial":        true,
}

var pendingRequestStatuses = map[string]bool{
	"no payments":    true,
	"no_payments":    true,
	"no-payments":    true,
	"pending":        true,
	"partially_paid": true,
	"partially paid": true,
	"partially-paid": true,
	"unpaid":         true,
	"partial":        true,
}

// IsReassignmentRequestPending reports whether a reassignment billing request
// still awaits payment. Embedded billing entries decide when present;
// otherwise the request's own status and totals do.
func IsReassignmentRequestPending(req *consolemodels.BillingRequest) bool {
	if req == nil {
		return false
	}
	if len(req.Billing) > 0 {
		for _, b := range req.Billing {
			if pendingBillStatuses[normalize(b.Status)] {
				return true
			}
			if b.Remaining.Valid && finite(b.Remaining.Value) > 0 {
				return true
			}
		}
		return false
	}
	if pendingRequestStatuses[normalize(req.Status)] {
		return true
	}
	if req.Remaining.Valid && finite(req.Remaining.Value) > 0 {
		return true
	}
	return finite(req.Paid.Float()) < finite(req.Total.Float())
}

// PendingRequests filters requests down to the ones still awaiting payment.
func PendingRequests(reqs []consolemodels.BillingRequest) []consolemodels.BillingRequest {
	var out []consolemodels.BillingRequest
	for i := range reqs {
		if IsReassignmentRequestPending(&reqs[i]) {
			out = append(out, reqs[i])
		}
	}
	return out
}
