package db

import (
	"context"
	"testing"

	"bakehouse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(number, date string) *model.Order {
	return &model.Order{
		Number:        number,
		StoreID:       1,
		CustomerName:  "Ada",
		CustomerPhone: "+100",
		PickupDate:    date,
		PickupTime:    "08:00",
		PaymentMethod: model.PaymentCash,
		SubtotalCents: 900,
		TotalCents:    900,
		Items:         []model.OrderItem{{ProductID: 1, Name: "Rye", Quantity: 2, PriceCents: 450}},
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedStores(t, db)

	o := newOrder("BH-1", "2026-10-15")
	require.NoError(t, db.CreateOrder(ctx, o))
	require.NotZero(t, o.ID)
	assert.Equal(t, model.OrderPending, o.Status)

	got, err := db.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "BH-1", got.Number)
	assert.Nil(t, got.OrganizationID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	_, err = db.GetOrder(ctx, 999)
	assert.ErrorIs(t, err, model.ErrNotFound)

	assert.Error(t, db.CreateOrder(ctx, &model.Order{Number: "empty"}))
}

func TestListOrdersFilter(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedStores(t, db)

	for i, d := range []string{"2026-10-15", "2026-10-16", "2026-10-20"} {
		require.NoError(t, db.CreateOrder(ctx, newOrder("BH-"+string(rune('A'+i)), d)))
	}

	all, err := db.ListOrders(ctx, model.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2026-10-20", all[0].PickupDate)

	ranged, err := db.ListOrders(ctx, model.OrderFilter{From: "2026-10-15", To: "2026-10-16"})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	limited, err := db.ListOrders(ctx, model.OrderFilter{Limit: 1, Status: model.OrderPending})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestUpdateOrderStatusConditional(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedStores(t, db)

	o := newOrder("BH-1", "2026-10-15")
	require.NoError(t, db.CreateOrder(ctx, o))

	require.NoError(t, db.UpdateOrderStatus(ctx, o.ID, model.OrderPending, model.OrderConfirmed, "admin"))

	// A second reviewer still believing the order is pending loses.
	err := db.UpdateOrderStatus(ctx, o.ID, model.OrderPending, model.OrderCanceled, "other")
	assert.ErrorIs(t, err, model.ErrStatusConflict)

	err = db.UpdateOrderStatus(ctx, 999, model.OrderPending, model.OrderConfirmed, "admin")
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := db.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderConfirmed, got.Status)

	var history int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM order_status_history WHERE order_id = ?`, o.ID).Scan(&history))
	assert.Equal(t, 1, history)
}
