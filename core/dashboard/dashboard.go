/*Package dashboard aggregates the owner dashboard from the records of the entity store.

All figures are computed live from sale.order, account.move, account.payment,
stock.picking and stock.quant. A section whose entity types are not served by the
store is reported as zeros or empty lists.
*/
package dashboard

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/relabs-tech/modelgate/core/logger"
	"github.com/relabs-tech/modelgate/core/store"
)

// entity types the dashboard reads
const (
	ModelSaleOrder      = "sale.order"
	ModelAccountMove    = "account.move"
	ModelAccountPayment = "account.payment"
	ModelStockPicking   = "stock.picking"
	ModelStockQuant     = "stock.quant"
)

// LowStockThreshold is the quantity below which a stock quant counts as low stock
const LowStockThreshold = 5

// RecentTransactionCount is the number of transactions listed in the summary
const RecentTransactionCount = 5

// TrendMonths is the number of months in the sales trend
const TrendMonths = 6

// Summary is the complete owner dashboard
type Summary struct {
	KPI                KPI           `json:"kpi"`
	Finance            Finance       `json:"finance"`
	Logistics          Logistics     `json:"logistics"`
	RecentTransactions []Transaction `json:"recent_transactions"`
	SalesTrend         []TrendPoint  `json:"sales_trend"`
}

// KPI holds the headline figures
type KPI struct {
	TotalRevenue    float64 `json:"total_revenue"`
	TotalOrders     int     `json:"total_orders"`
	ActiveCustomers int     `json:"active_customers"`
	CashBalance     float64 `json:"cash_balance"`
}

// Finance holds open receivables and payables
type Finance struct {
	AccountsReceivable float64 `json:"accounts_receivable"`
	AccountsPayable    float64 `json:"accounts_payable"`
}

// Logistics holds warehouse figures
type Logistics struct {
	PendingDeliveries int     `json:"pending_deliveries"`
	LowStockItems     int     `json:"low_stock_items"`
	InventoryValue    float64 `json:"inventory_value"`
}

// Transaction is a posted customer invoice or vendor bill
type Transaction struct {
	ID        int64   `json:"id"`
	Reference string  `json:"reference"`
	Type      string  `json:"type"`
	Amount    float64 `json:"amount"`
	Date      string  `json:"date"`
	Status    string  `json:"status"`
}

// TrendPoint is the confirmed sales revenue of one month
type TrendPoint struct {
	Name    string  `json:"name"`
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
}

// Compute builds the summary. now determines the months of the sales trend.
func Compute(ctx context.Context, s store.Store, now time.Time) (*Summary, error) {
	rlog := logger.FromContext(ctx)
	summary := &Summary{
		RecentTransactions: []Transaction{},
	}

	orders, err := search(ctx, s, ModelSaleOrder,
		store.Where("state", store.OperatorIn, []string{"sale", "done"}),
		"amount_total", "partner_id", "date_order")
	if err != nil {
		return nil, err
	}
	customers := map[string]bool{}
	for _, o := range orders {
		summary.KPI.TotalRevenue += number(o["amount_total"])
		if partner := reference(o["partner_id"]); partner != "" {
			customers[partner] = true
		}
	}
	summary.KPI.TotalOrders = len(orders)
	summary.KPI.ActiveCustomers = len(customers)
	summary.SalesTrend = salesTrend(orders, now)

	payments, err := search(ctx, s, ModelAccountPayment,
		store.Where("state", store.OperatorEqual, "posted"),
		"amount", "payment_type")
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		switch p["payment_type"] {
		case "inbound":
			summary.KPI.CashBalance += number(p["amount"])
		case "outbound":
			summary.KPI.CashBalance -= number(p["amount"])
		}
	}

	moves, err := search(ctx, s, ModelAccountMove,
		store.Where("state", store.OperatorEqual, "posted").And("move_type", store.OperatorIn, []string{"out_invoice", "in_invoice"}),
		"name", "move_type", "amount_total_signed", "amount_residual_signed", "invoice_date", "payment_state")
	if err != nil {
		return nil, err
	}
	for _, m := range moves {
		switch m["move_type"] {
		case "out_invoice":
			summary.Finance.AccountsReceivable += number(m["amount_residual_signed"])
		case "in_invoice":
			summary.Finance.AccountsPayable += math.Abs(number(m["amount_residual_signed"]))
		}
	}
	summary.RecentTransactions = recentTransactions(moves)

	pickings, err := search(ctx, s, ModelStockPicking,
		store.Where("picking_type_code", store.OperatorEqual, "outgoing").And("state", store.OperatorNotIn, []string{"done", "cancel"}),
		"state")
	if err != nil {
		return nil, err
	}
	summary.Logistics.PendingDeliveries = len(pickings)

	quants, err := search(ctx, s, ModelStockQuant, nil, "quantity", "value")
	if err != nil {
		return nil, err
	}
	for _, q := range quants {
		if number(q["quantity"]) < LowStockThreshold {
			summary.Logistics.LowStockItems++
		}
		summary.Logistics.InventoryValue += number(q["value"])
	}

	rlog.Debugf("dashboard computed from %d orders, %d moves, %d payments, %d pickings, %d quants",
		len(orders), len(moves), len(payments), len(pickings), len(quants))
	return summary, nil
}

// search returns no records for entity types the store does not serve
func search(ctx context.Context, s store.Store, model string, domain store.Domain, fields ...string) ([]store.Record, error) {
	if !store.Supports(s, model) {
		logger.FromContext(ctx).Debugf("dashboard: %s not available", model)
		return nil, nil
	}
	c, err := s.Resolve(model)
	if err != nil {
		return nil, err
	}
	records, err := c.SearchRead(ctx, domain, fields)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", model, err)
	}
	return records, nil
}

func salesTrend(orders []store.Record, now time.Time) []TrendPoint {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(TrendMonths - 1), 0)
	points := make([]TrendPoint, TrendMonths)
	for i := range points {
		month := first.AddDate(0, i, 0)
		points[i] = TrendPoint{Name: month.Format("Jan"), Month: month.Format("2006-01")}
	}
	for _, o := range orders {
		date, ok := store.ParseTime(o["date_order"])
		if !ok {
			continue
		}
		date = date.UTC()
		i := (date.Year()-first.Year())*12 + int(date.Month()) - int(first.Month())
		if i >= 0 && i < TrendMonths {
			points[i].Revenue += number(o["amount_total"])
		}
	}
	return points
}

func recentTransactions(moves []store.Record) []Transaction {
	type dated struct {
		record store.Record
		date   time.Time
	}
	sorted := make([]dated, 0, len(moves))
	for _, m := range moves {
		date, _ := store.ParseTime(m["invoice_date"])
		sorted = append(sorted, dated{record: m, date: date})
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].date.Equal(sorted[j].date) {
			return sorted[i].date.After(sorted[j].date)
		}
		return sorted[i].record.ID() > sorted[j].record.ID()
	})

	res := []Transaction{}
	for _, d := range sorted {
		if len(res) == RecentTransactionCount {
			break
		}
		m := d.record
		t := Transaction{
			ID:        m.ID(),
			Reference: fmt.Sprint(store.DisplayName(ModelAccountMove, m)),
			Type:      "Customer Invoice",
			Amount:    number(m["amount_total_signed"]),
			Status:    "Pending",
		}
		if m["move_type"] == "in_invoice" {
			t.Type = "Vendor Bill"
		}
		if !d.date.IsZero() {
			t.Date = d.date.Format("2006-01-02")
		}
		if state := m["payment_state"]; state == "paid" || state == "in_payment" {
			t.Status = "Completed"
		}
		res = append(res, t)
	}
	return res
}

// number converts numeric field values to float64. Anything else counts as zero.
func number(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	}
	return 0
}

// reference returns the id of a many2one value, which is either an id or an [id, name] pair
func reference(v interface{}) string {
	switch r := v.(type) {
	case nil:
		return ""
	case []interface{}:
		if len(r) == 0 {
			return ""
		}
		return reference(r[0])
	case float64:
		return fmt.Sprint(int64(r))
	case bool:
		// odoo reports empty many2one fields as false
		return ""
	}
	return fmt.Sprint(v)
}
