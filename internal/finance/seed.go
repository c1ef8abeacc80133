package finance

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/optica-erp/optica-erp/internal/shared"
)

// DefaultChart is the chart of accounts every tenant receives, parents first.
func DefaultChart() []SeedNode {
	return []SeedNode{
		{Code: "1", Name: "Ativo", Kind: KindAsset},
		{Code: "1.1", Name: "Ativo Circulante", Kind: KindAsset},
		{Code: "1.1.01", Name: "Caixa", Kind: KindAsset},
		{Code: "1.1.02", Name: "Bancos", Kind: KindAsset},
		{Code: "1.1.03", Name: "Contas a Receber", Kind: KindAsset},
		{Code: "1.1.04", Name: "Estoque", Kind: KindAsset},
		{Code: "1.2", Name: "Ativo Não Circulante", Kind: KindAsset},
		{Code: "1.2.01", Name: "Imobilizado", Kind: KindAsset},
		{Code: "2", Name: "Passivo", Kind: KindLiability},
		{Code: "2.1", Name: "Passivo Circulante", Kind: KindLiability},
		{Code: "2.1.01", Name: "Fornecedores", Kind: KindLiability},
		{Code: "2.1.02", Name: "Impostos a Recolher", Kind: KindLiability},
		{Code: "2.1.03", Name: "Salários a Pagar", Kind: KindLiability},
		{Code: "2.1.04", Name: "Comissões a Pagar", Kind: KindLiability},
		{Code: "3", Name: "Patrimônio Líquido", Kind: KindEquity},
		{Code: "3.1", Name: "Capital Social", Kind: KindEquity},
		{Code: "3.2", Name: "Lucros Acumulados", Kind: KindEquity},
		{Code: "4", Name: "Receitas", Kind: KindRevenue},
		{Code: "4.1", Name: "Receita de Vendas", Kind: KindRevenue},
		{Code: "4.1.01", Name: "Venda de Produtos", Kind: KindRevenue},
		{Code: "4.1.02", Name: "Prestação de Serviços", Kind: KindRevenue},
		{Code: "4.2", Name: "Outras Receitas", Kind: KindRevenue},
		{Code: "5", Name: "Despesas", Kind: KindExpense},
		{Code: "5.1", Name: "Custo das Mercadorias Vendidas", Kind: KindExpense},
		{Code: "5.2", Name: "Despesas Operacionais", Kind: KindExpense},
		{Code: "5.2.01", Name: "Aluguel", Kind: KindExpense},
		{Code: "5.2.02", Name: "Salários", Kind: KindExpense},
		{Code: "5.2.03", Name: "Comissões", Kind: KindExpense},
		{Code: "5.2.04", Name: "Taxas de Cartão", Kind: KindExpense},
		{Code: "5.2.05", Name: "Despesas Administrativas", Kind: KindExpense},
	}
}

// DefaultAccounts are the finance accounts every tenant receives.
func DefaultAccounts() []SeedAccount {
	return []SeedAccount{
		{Name: "Caixa Loja", Type: AccountCash, IsDefault: true, OpeningBalance: decimal.Zero},
		{Name: "Conta Bancária", Type: AccountBank, OpeningBalance: decimal.Zero},
		{Name: "PIX", Type: AccountPix, OpeningBalance: decimal.Zero},
		{Name: "Maquininha de Cartão", Type: AccountCardAcquirer, OpeningBalance: decimal.Zero},
		{Name: "Outros", Type: AccountOther, OpeningBalance: decimal.Zero},
	}
}

// ParentCode returns the code without its last dotted segment, "" for roots.
func ParentCode(code string) string {
	idx := strings.LastIndex(code, ".")
	if idx < 0 {
		return ""
	}
	return code[:idx]
}

// ValidateSeed checks that every parent precedes its children, codes are
// unique and kinds are known. A child must share its parent's kind.
func ValidateSeed(chart []SeedNode, accounts []SeedAccount) error {
	seen := make(map[string]AccountKind, len(chart))
	for i, node := range chart {
		code := strings.TrimSpace(node.Code)
		if code == "" || code != node.Code || strings.Contains(code, "..") || strings.HasSuffix(code, ".") {
			return shared.Validationf("seed node %d has malformed code %q", i, node.Code)
		}
		if strings.TrimSpace(node.Name) == "" {
			return shared.Validationf("seed node %s has no name", code)
		}
		if !node.Kind.Valid() {
			return shared.Validationf("seed node %s has unknown kind %q", code, node.Kind)
		}
		if _, dup := seen[code]; dup {
			return shared.Validationf("seed node %s is duplicated", code)
		}
		if parent := ParentCode(code); parent != "" {
			parentKind, ok := seen[parent]
			if !ok {
				return shared.Validationf("seed node %s appears before its parent %s", code, parent)
			}
			if parentKind != node.Kind {
				return shared.Validationf("seed node %s kind %s differs from parent kind %s", code, node.Kind, parentKind)
			}
		}
		seen[code] = node.Kind
	}
	names := make(map[string]struct{}, len(accounts))
	defaults := 0
	for _, acc := range accounts {
		name := strings.TrimSpace(acc.Name)
		if name == "" {
			return shared.Validationf("seed finance account has no name")
		}
		if _, dup := names[name]; dup {
			return shared.Validationf("seed finance account %s is duplicated", name)
		}
		names[name] = struct{}{}
		if acc.OpeningBalance.IsNegative() {
			return shared.Validationf("seed finance account %s has negative opening balance", name)
		}
		if acc.IsDefault {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("%w: %d default finance accounts", shared.ErrValidation, defaults)
	}
	return nil
}
