package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/modelgate/core/store"
)

func seed(t *testing.T, s store.Store, model string, records ...store.Record) {
	t.Helper()
	c, err := s.Resolve(model)
	require.NoError(t, err)
	for _, r := range records {
		_, err := c.Create(context.Background(), r)
		require.NoError(t, err)
	}
}

func TestCompute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s := store.NewMemoryStore(ModelSaleOrder, ModelAccountMove, ModelAccountPayment, ModelStockPicking, ModelStockQuant)

	seed(t, s, ModelSaleOrder,
		store.Record{"name": "S001", "state": "sale", "amount_total": 1000.0, "partner_id": []interface{}{7, "Azure Interior"}, "date_order": "2024-06-02 10:00:00"},
		store.Record{"name": "S002", "state": "done", "amount_total": 500, "partner_id": 7, "date_order": time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)},
		store.Record{"name": "S003", "state": "sale", "amount_total": 250.5, "partner_id": 9, "date_order": "2023-12-31"},
		store.Record{"name": "S004", "state": "draft", "amount_total": 9999.0, "partner_id": 11, "date_order": "2024-06-01"},
	)
	seed(t, s, ModelAccountPayment,
		store.Record{"state": "posted", "payment_type": "inbound", "amount": 800.0},
		store.Record{"state": "posted", "payment_type": "outbound", "amount": 300.0},
		store.Record{"state": "draft", "payment_type": "inbound", "amount": 5000.0},
	)
	seed(t, s, ModelAccountMove,
		store.Record{"name": "INV/001", "move_type": "out_invoice", "state": "posted", "amount_total_signed": 1000.0, "amount_residual_signed": 400.0, "invoice_date": "2024-06-03", "payment_state": "partial"},
		store.Record{"name": "INV/002", "move_type": "out_invoice", "state": "posted", "amount_total_signed": 500.0, "amount_residual_signed": 0.0, "invoice_date": "2024-05-01", "payment_state": "paid"},
		store.Record{"name": "BILL/001", "move_type": "in_invoice", "state": "posted", "amount_total_signed": -700.0, "amount_residual_signed": -700.0, "invoice_date": "2024-06-10", "payment_state": "not_paid"},
		store.Record{"name": "INV/003", "move_type": "out_invoice", "state": "draft", "amount_total_signed": 100.0, "amount_residual_signed": 100.0, "invoice_date": "2024-06-11"},
		store.Record{"name": "MISC/001", "move_type": "entry", "state": "posted", "amount_total_signed": 42.0, "amount_residual_signed": 42.0, "invoice_date": "2024-06-12"},
	)
	seed(t, s, ModelStockPicking,
		store.Record{"picking_type_code": "outgoing", "state": "assigned"},
		store.Record{"picking_type_code": "outgoing", "state": "done"},
		store.Record{"picking_type_code": "incoming", "state": "assigned"},
		store.Record{"picking_type_code": "outgoing", "state": "confirmed"},
	)
	seed(t, s, ModelStockQuant,
		store.Record{"quantity": 2.0, "value": 20.0},
		store.Record{"quantity": 5.0, "value": 50.0},
		store.Record{"quantity": 100, "value": 1000},
	)

	summary, err := Compute(ctx, s, now)
	require.NoError(t, err)

	assert.Equal(t, KPI{TotalRevenue: 1750.5, TotalOrders: 3, ActiveCustomers: 2, CashBalance: 500}, summary.KPI)
	assert.Equal(t, Finance{AccountsReceivable: 400, AccountsPayable: 700}, summary.Finance)
	assert.Equal(t, Logistics{PendingDeliveries: 2, LowStockItems: 1, InventoryValue: 1070}, summary.Logistics)

	require.Len(t, summary.RecentTransactions, 3)
	assert.Equal(t, Transaction{ID: 3, Reference: "BILL/001", Type: "Vendor Bill", Amount: -700, Date: "2024-06-10", Status: "Pending"}, summary.RecentTransactions[0])
	assert.Equal(t, "INV/001", summary.RecentTransactions[1].Reference)
	assert.Equal(t, "Completed", summary.RecentTransactions[2].Status)

	require.Len(t, summary.SalesTrend, TrendMonths)
	assert.Equal(t, TrendPoint{Name: "Jan", Month: "2024-01", Revenue: 0}, summary.SalesTrend[0])
	assert.Equal(t, 500.0, summary.SalesTrend[3].Revenue)
	assert.Equal(t, TrendPoint{Name: "Jun", Month: "2024-06", Revenue: 1000}, summary.SalesTrend[5])
}

func TestCompute_MissingModels(t *testing.T) {
	s := store.NewMemoryStore("res.partner")
	summary, err := Compute(context.Background(), s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, KPI{}, summary.KPI)
	assert.Equal(t, Finance{}, summary.Finance)
	assert.Equal(t, Logistics{}, summary.Logistics)
	assert.NotNil(t, summary.RecentTransactions)
	assert.Empty(t, summary.RecentTransactions)
	assert.Len(t, summary.SalesTrend, TrendMonths)
}

func TestRecentTransactions_Limit(t *testing.T) {
	var moves []store.Record
	for i := 1; i <= 8; i++ {
		moves = append(moves, store.Record{"id": int64(i), "name": "INV", "move_type": "out_invoice", "invoice_date": "2024-01-01"})
	}
	res := recentTransactions(moves)
	require.Len(t, res, RecentTransactionCount)
	assert.Equal(t, int64(8), res[0].ID)
}

func TestReference(t *testing.T) {
	assert.Equal(t, "7", reference([]interface{}{7, "Azure"}))
	assert.Equal(t, "7", reference(7.0))
	assert.Equal(t, "", reference(false))
	assert.Equal(t, "", reference(nil))
	assert.Equal(t, "12", reference(int64(12)))
}
