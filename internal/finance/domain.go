// Package finance provisions each tenant's chart of accounts and the default
// finance accounts money is received into.
package finance

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind enumerates chart of accounts categories.
type AccountKind string

const (
	KindAsset     AccountKind = "ASSET"
	KindLiability AccountKind = "LIABILITY"
	KindEquity    AccountKind = "EQUITY"
	KindRevenue   AccountKind = "REVENUE"
	KindExpense   AccountKind = "EXPENSE"
)

// Valid reports whether k is a known kind.
func (k AccountKind) Valid() bool {
	switch k {
	case KindAsset, KindLiability, KindEquity, KindRevenue, KindExpense:
		return true
	}
	return false
}

// ChartNode is a persisted chart of accounts entry.
type ChartNode struct {
	ID        int64
	TenantID  int64
	Code      string
	Name      string
	Kind      AccountKind
	ParentID  *int64
	IsSystem  bool
	CreatedAt time.Time
}

// FinanceAccountType enumerates where money is held.
type FinanceAccountType string

const (
	AccountCash         FinanceAccountType = "CASH"
	AccountBank         FinanceAccountType = "BANK"
	AccountPix          FinanceAccountType = "PIX"
	AccountCardAcquirer FinanceAccountType = "CARD_ACQUIRER"
	AccountOther        FinanceAccountType = "OTHER"
)

// FinanceAccount is a tenant cash-equivalent account.
type FinanceAccount struct {
	ID        int64
	TenantID  int64
	BranchID  *int64
	Name      string
	Type      FinanceAccountType
	IsDefault bool
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// SeedNode describes a chart entry to provision.
type SeedNode struct {
	Code string
	Name string
	Kind AccountKind
}

// SeedAccount describes a finance account to provision.
type SeedAccount struct {
	Name           string
	Type           FinanceAccountType
	IsDefault      bool
	OpeningBalance decimal.Decimal
}

// BatchReport summarises a multi-tenant provisioning run.
type BatchReport struct {
	Succeeded []int64
	Failed    map[int64]error
}
