package shared

// Permissions checked by the HTTP layer. Role-to-permission assignment is
// owned by the permission gate.
const (
	PermQuoteView     = "sales.quote.view"
	PermQuoteCreate   = "sales.quote.create"
	PermQuoteEdit     = "sales.quote.edit"
	PermQuoteApprove  = "sales.quote.approve"
	PermQuoteCancel   = "sales.quote.cancel"
	PermQuoteConvert  = "sales.quote.convert"
	PermQuoteStats    = "sales.quote.stats"
	PermQuoteMaintain = "sales.quote.maintain"

	PermSaleView   = "sales.sale.view"
	PermSaleCancel = "sales.sale.cancel"

	PermCashView  = "cash.shift.view"
	PermCashOpen  = "cash.shift.open"
	PermCashClose = "cash.shift.close"
	PermCashMove  = "cash.movement.create"

	PermStockView   = "inventory.stock.view"
	PermStockAdjust = "inventory.stock.adjust"

	PermCommissionView    = "sales.commission.view"
	PermCommissionViewAll = "sales.commission.view_all"

	PermFinanceView      = "finance.ledger.view"
	PermFinanceProvision = "finance.ledger.provision"
)
