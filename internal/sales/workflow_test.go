package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/optica-erp/optica-erp/internal/cashier"
	"github.com/optica-erp/optica-erp/internal/quotes"
)

// SaleWorkflowSuite walks a counter sale from approved quote to cancellation.
type SaleWorkflowSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func (s *SaleWorkflowSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
}

func (s *SaleWorkflowSuite) TestMixedPaymentsThenCancel() {
	t := s.T()

	res, err := s.f.svc.ConvertQuote(s.ctx, convertInput([]PaymentInput{
		{Method: MethodCash, Amount: dec("199.90")},
		{Method: MethodCreditCard, Amount: dec("800.00"), Installments: 4},
	}))
	require.NoError(t, err)
	require.Len(t, res.Sale.Payments, 2)
	assert.Equal(t, 4, res.Sale.Payments[1].Installments)
	require.Len(t, s.f.store.movements, 2)

	canceled, err := s.f.svc.CancelSale(s.ctx, CancelInput{
		TenantID: tenantID,
		BranchID: branchID,
		SaleID:   res.Sale.ID,
		ActorID:  actorID,
		Reason:   "cliente desistiu",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)

	// Only the cash payment goes back through the register.
	require.Len(t, s.f.store.movements, 3)
	refund := s.f.store.movements[2]
	assert.Equal(t, cashier.DirectionOut, refund.Direction)
	assert.Equal(t, cashier.MovementRefund, refund.Type)
	assert.True(t, refund.Amount.Equal(dec("199.90")))

	assert.Equal(t, 3, s.f.store.stock[frameID].Quantity)
	assert.Equal(t, 10, s.f.store.stock[lensID].Quantity)
	assert.Len(t, s.f.store.commissions, 1)
	assert.Equal(t, quotes.StatusConverted, s.f.store.quotes[quoteID].Status)

	_, err = s.f.svc.CancelSale(s.ctx, CancelInput{
		TenantID: tenantID, BranchID: branchID, SaleID: res.Sale.ID, ActorID: actorID, Reason: "de novo",
	})
	assert.ErrorIs(t, err, ErrSaleCanceled)
}

func (s *SaleWorkflowSuite) TestCompetingQuotesForLastUnits() {
	t := s.T()

	second := approvedQuote()
	second.ID = quoteID + 1
	second.Items = second.Items[:1]
	second.Items[0].Quantity = 3
	second.Items[0].LineTotal = dec("2699.70")
	second.Subtotal, second.Total = dec("2699.70"), dec("2699.70")
	s.f.store.quotes[second.ID] = second

	_, err := s.f.svc.ConvertQuote(s.ctx, convertInput(cashPayment("999.90")))
	require.NoError(t, err)

	in := convertInput(cashPayment("2699.70"))
	in.QuoteID = second.ID
	_, err = s.f.svc.ConvertQuote(s.ctx, in)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Contains(t, err.Error(), "available=2, requested=3")
	assert.Equal(t, quotes.StatusApproved, s.f.store.quotes[second.ID].Status)
	assert.Len(t, s.f.store.sales, 1)
}

func TestSaleWorkflowSuite(t *testing.T) {
	suite.Run(t, new(SaleWorkflowSuite))
}
