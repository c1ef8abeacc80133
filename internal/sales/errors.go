package sales

import "github.com/optica-erp/optica-erp/internal/shared"

var (
	// ErrQuoteNotApproved rejects converting a quote in any other status.
	ErrQuoteNotApproved = shared.RuleError("quote is not approved")
	// ErrQuoteExpired rejects converting a quote past its validity date.
	ErrQuoteExpired = shared.RuleError("quote validity has ended")
	// ErrNoOpenShift rejects conversions while the branch register is closed.
	ErrNoOpenShift = shared.RuleError("no open cash shift for branch")
	// ErrInsufficientStock rejects a conversion that would drive stock negative.
	ErrInsufficientStock = shared.RuleError("insufficient stock")
	// ErrPaymentMismatch rejects payments that do not add up to the quote total.
	ErrPaymentMismatch = shared.RuleError("payments do not match total")
	// ErrSaleCanceled rejects cancelling a sale twice.
	ErrSaleCanceled = shared.RuleError("sale already canceled")
)
