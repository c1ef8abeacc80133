// Package cashier keeps the per-branch cash register shifts and their
// append-only movement ledger.
package cashier

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// ShiftStatus enumerates register shift states.
type ShiftStatus string

const (
	ShiftOpen   ShiftStatus = "OPEN"
	ShiftClosed ShiftStatus = "CLOSED"
)

// Direction tells whether money entered or left the register.
type Direction string

const (
	DirectionIn  Direction = "IN"
	DirectionOut Direction = "OUT"
)

// MovementType classifies a cash movement.
type MovementType string

const (
	MovementSalePayment MovementType = "SALE_PAYMENT"
	MovementRefund      MovementType = "REFUND"
	MovementSupply      MovementType = "SUPPLY"
	MovementWithdrawal  MovementType = "WITHDRAWAL"
)

// Shift is a cash register session for one branch.
type Shift struct {
	ID              int64
	TenantID        int64
	BranchID        int64
	Status          ShiftStatus
	OpenedBy        int64
	OpeningFloat    decimal.Decimal
	OpenedAt        time.Time
	ClosedBy        *int64
	ClosedAt        *time.Time
	DeclaredClosing *decimal.Decimal
	ExpectedClosing *decimal.Decimal
	Difference      *decimal.Decimal
}

// Movement is an immutable ledger entry. Corrections are new entries.
type Movement struct {
	ID            int64
	TenantID      int64
	BranchID      int64
	ShiftID       int64
	Direction     Direction
	Type          MovementType
	Method        string
	Amount        decimal.Decimal
	SalePaymentID *int64
	Note          string
	CreatedBy     int64
	CreatedAt     time.Time
}

// MethodCash is the only payment method that moves physical money.
const MethodCash = "CASH"

// Totals aggregates the drawer's cash movements by direction. Receipts in
// other methods never touch the drawer and are kept apart in NonCash, net
// of refunds, keyed by method.
type Totals struct {
	In      decimal.Decimal
	Out     decimal.Decimal
	NonCash map[string]decimal.Decimal
}

// Expected is the cash the drawer should hold: opening + IN - OUT.
func (t Totals) Expected(opening decimal.Decimal) decimal.Decimal {
	return opening.Add(t.In).Sub(t.Out)
}

// Summarize totals a slice of movements.
func Summarize(movements []Movement) Totals {
	totals := Totals{In: decimal.Zero, Out: decimal.Zero, NonCash: map[string]decimal.Decimal{}}
	for _, m := range movements {
		amount := m.Amount
		if m.Direction == DirectionOut {
			amount = amount.Neg()
		}
		if !strings.EqualFold(m.Method, MethodCash) {
			method := strings.ToUpper(m.Method)
			totals.NonCash[method] = totals.NonCash[method].Add(amount)
			continue
		}
		switch m.Direction {
		case DirectionIn:
			totals.In = totals.In.Add(m.Amount)
		case DirectionOut:
			totals.Out = totals.Out.Add(m.Amount)
		}
	}
	return totals
}

// ShiftSummary is a shift with its ledger and running balance.
type ShiftSummary struct {
	Shift     Shift
	Totals    Totals
	Expected  decimal.Decimal
	Movements []Movement
}

// OpenShiftInput opens a register.
type OpenShiftInput struct {
	TenantID     int64
	BranchID     int64
	ActorID      int64
	OpeningFloat decimal.Decimal
}

// CloseShiftInput closes the open register with the counted amount.
type CloseShiftInput struct {
	TenantID int64
	BranchID int64
	ActorID  int64
	Declared decimal.Decimal
}

// ManualMovementInput records a supply or withdrawal.
type ManualMovementInput struct {
	TenantID int64
	BranchID int64
	ActorID  int64
	Type     MovementType
	Amount   decimal.Decimal
	Note     string
}

var (
	// ErrNoOpenShift indicates the branch has no open register.
	ErrNoOpenShift = shared.RuleError("no open cash shift for branch")
	// ErrMultipleOpenShifts indicates more than one open register, a data anomaly.
	ErrMultipleOpenShifts = shared.RuleError("more than one open cash shift for branch")
	// ErrShiftAlreadyOpen rejects opening a second register.
	ErrShiftAlreadyOpen = shared.RuleError("cash shift already open for branch")
	// ErrInsufficientCash rejects withdrawals above the expected balance.
	ErrInsufficientCash = shared.RuleError("withdrawal exceeds cash in the register")
)
