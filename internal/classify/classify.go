// Package classify derives carrier-account and channel classifications from identifiers.
package classify

import "strings"

// UPS billing accounts, named by the service level they are used for.
const (
	AccountNDA    = "nda"
	AccountGround = "ground"
)

// Account numbers embedded in tracking numbers (after "1Z") and in invoice numbers.
const (
	ndaAccountNumber    = "R1833C"
	groundAccountNumber = "J9299A"

	upsTrackingPrefix = "1Z"
)

// UPSAccountType maps a tracking number to the account that shipped it.
// Returns nil for anything that is not one of the two known accounts.
func UPSAccountType(trackingNumber string) *string {
	upper := strings.ToUpper(trackingNumber)
	switch {
	case strings.HasPrefix(upper, upsTrackingPrefix+ndaAccountNumber):
		return ptr(AccountNDA)
	case strings.HasPrefix(upper, upsTrackingPrefix+groundAccountNumber):
		return ptr(AccountGround)
	}
	return nil
}

// IsUPSTracking reports whether the carrier's tracking API can be asked about this number.
func IsUPSTracking(trackingNumber string) bool {
	return strings.HasPrefix(strings.ToUpper(trackingNumber), upsTrackingPrefix)
}

// AccountTypeFromInvoice reads the account number out of an invoice number,
// e.g. "0000R1833C066" is an NDA invoice.
func AccountTypeFromInvoice(invoiceNumber string) *string {
	upper := strings.ToUpper(invoiceNumber)
	switch {
	case strings.Contains(upper, ndaAccountNumber):
		return ptr(AccountNDA)
	case strings.Contains(upper, groundAccountNumber):
		return ptr(AccountGround)
	}
	return nil
}

// IsChewyOrder flags marketplace orders by fulfillment order number.
// A plain "CH" substring match: numbers like "MATCH-12" are flagged too.
func IsChewyOrder(orderNumber string) bool {
	if orderNumber == "" {
		return false
	}
	return strings.Contains(strings.ToUpper(orderNumber), "CH")
}

func ptr(s string) *string { return &s }
