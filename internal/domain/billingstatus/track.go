package billingstatus

import (
	"strings"

	"github.com/ehr/console/pkg/consolemodels"
)

// IsSuperconsultantBill reports whether a bill was raised by the
// superconsultant track, either through its consultation type prefix or its
// meta source.
func IsSuperconsultantBill(b *consolemodels.Bill) bool {
	if b == nil {
		return false
	}
	if strings.HasPrefix(normalize(b.ConsultationType), consolemodels.SuperconsultantSource) {
		return true
	}
	return b.Meta != nil && normalize(b.Meta.Source) == consolemodels.SuperconsultantSource
}

// SplitTracks separates regular billing from superconsultant billing. A bill
// that shares an invoice number with a superconsultant bill belongs to the
// superconsultant track as well.
func SplitTracks(bills []consolemodels.Bill) (regular, super []consolemodels.Bill) {
	invoices := make(map[string]struct{})
	for i := range bills {
		if inv := strings.TrimSpace(bills[i].InvoiceNumber); inv != "" && IsSuperconsultantBill(&bills[i]) {
			invoices[inv] = struct{}{}
		}
	}
	for i := range bills {
		b := bills[i]
		_, shared := invoices[strings.TrimSpace(b.InvoiceNumber)]
		if IsSuperconsultantBill(&b) || (shared && strings.TrimSpace(b.InvoiceNumber) != "") {
			super = append(super, b)
			continue
		}
		regular = append(regular, b)
	}
	return regular, super
}
