// Package report builds xlsx order reports and the monthly staff archive.
package report

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"bakehouse/internal/model"
)

// OrderSource is what the order report reads.
type OrderSource interface {
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListStores(ctx context.Context, activeOnly bool) ([]model.Store, error)
}

var (
	orderColumns = []string{"Number", "Store", "Pickup date", "Pickup time", "Status", "Customer", "Phone",
		"Email", "Organization", "Payment", "Subtotal", "Discount", "Total", "Created"}
	itemColumns    = []string{"Order", "Product ID", "Product", "Quantity", "Unit price", "Line total"}
	summaryColumns = []string{"Store", "Orders", "Canceled", "Revenue"}
)

// Orders writes orders with pickup dates in [from, to] as an xlsx workbook
// with Orders, Items and Summary sheets.
func Orders(ctx context.Context, src OrderSource, from, to string) (*bytes.Buffer, error) {
	orders, err := src.ListOrders(ctx, model.OrderFilter{From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	stores, err := src.ListStores(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	storeNames := make(map[int64]string, len(stores))
	for _, s := range stores {
		storeNames[s.ID] = s.Name
	}
	// Oldest first reads better in a spreadsheet.
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].PickupDate != orders[j].PickupDate {
			return orders[i].PickupDate < orders[j].PickupDate
		}
		if orders[i].PickupTime != orders[j].PickupTime {
			return orders[i].PickupTime < orders[j].PickupTime
		}
		return orders[i].ID < orders[j].ID
	})

	wb := NewWorkbook()
	defer wb.Close()

	if err := wb.AddSheet("Orders"); err != nil {
		return nil, err
	}
	if err := wb.WriteHeader(orderColumns); err != nil {
		return nil, err
	}
	type storeTotals struct {
		orders, canceled int
		revenue          int64
	}
	totals := make(map[int64]*storeTotals)
	for _, o := range orders {
		org := ""
		if o.OrganizationID != nil {
			org = fmt.Sprintf("#%d", *o.OrganizationID)
		}
		if err := wb.WriteRow([]any{
			o.Number, storeNames[o.StoreID], o.PickupDate, o.PickupTime, string(o.Status),
			o.CustomerName, o.CustomerPhone, o.CustomerEmail, org, string(o.PaymentMethod),
			cents(o.SubtotalCents), cents(o.DiscountCents), cents(o.TotalCents),
			o.CreatedAt.Format("2006-01-02 15:04"),
		}); err != nil {
			return nil, err
		}
		st := totals[o.StoreID]
		if st == nil {
			st = &storeTotals{}
			totals[o.StoreID] = st
		}
		st.orders++
		if o.Status == model.OrderCanceled {
			st.canceled++
		} else {
			st.revenue += o.TotalCents
		}
	}

	if err := wb.AddSheet("Items"); err != nil {
		return nil, err
	}
	if err := wb.WriteHeader(itemColumns); err != nil {
		return nil, err
	}
	for _, o := range orders {
		full, err := src.GetOrder(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("get order %d: %w", o.ID, err)
		}
		for _, it := range full.Items {
			if err := wb.WriteRow([]any{
				o.Number, it.ProductID, it.Name, it.Quantity,
				cents(it.PriceCents), cents(it.PriceCents * int64(it.Quantity)),
			}); err != nil {
				return nil, err
			}
		}
	}

	if err := wb.AddSheet("Summary"); err != nil {
		return nil, err
	}
	if err := wb.WriteHeader(summaryColumns); err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		st := totals[id]
		if err := wb.WriteRow([]any{storeNames[id], st.orders, st.canceled, cents(st.revenue)}); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := wb.Save(&buf); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return &buf, nil
}

// cents renders an amount as a number so spreadsheets can sum it.
func cents(c int64) float64 {
	return float64(c) / 100
}
