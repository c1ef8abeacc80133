package rbac

import (
	"context"
	"strings"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// Gate resolves the permissions granted to an actor.
type Gate interface {
	EffectivePermissions(ctx context.Context, actor shared.Actor) ([]string, error)
}

// Wildcard grants every permission.
const Wildcard = "*"

// RoleGate is a static role to permission table.
type RoleGate map[string][]string

// EffectivePermissions returns the permissions attached to the actor role.
func (g RoleGate) EffectivePermissions(_ context.Context, actor shared.Actor) ([]string, error) {
	return g[strings.ToUpper(strings.TrimSpace(actor.Role))], nil
}

// DefaultRoles is the table used when no external gate is configured.
func DefaultRoles() RoleGate {
	return RoleGate{
		"ADMIN":   {Wildcard},
		"MANAGER": {Wildcard},
		"SELLER": {
			shared.PermQuoteView, shared.PermQuoteCreate, shared.PermQuoteEdit,
			shared.PermQuoteCancel, shared.PermQuoteConvert, shared.PermSaleView,
			shared.PermStockView, shared.PermCashView, shared.PermCommissionView,
		},
		"CASHIER": {
			shared.PermQuoteView, shared.PermQuoteConvert, shared.PermSaleView,
			shared.PermCashView, shared.PermCashOpen, shared.PermCashClose,
			shared.PermCashMove, shared.PermStockView,
		},
	}
}
