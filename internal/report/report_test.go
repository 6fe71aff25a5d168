package report

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"bakehouse/internal/config"
	"bakehouse/internal/db"
	"bakehouse/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	logger := zerolog.Nop()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "bakehouse.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.SyncStoresFromConfig(context.Background(), &config.StoresConfig{
		Stores: []config.StoreConfig{
			{ID: 1, Slug: "center", Name: "Center", IsActive: true},
			{ID: 2, Slug: "harbor", Name: "Harbor", IsActive: true},
		},
	}))
	return database
}

func addOrder(t *testing.T, database *db.DB, number string, storeID int64, date string, total int64) *model.Order {
	t.Helper()
	o := &model.Order{
		Number: number, StoreID: storeID, CustomerName: "Ada", CustomerPhone: "+100",
		PickupDate: date, PickupTime: "09:00", PaymentMethod: model.PaymentCard,
		SubtotalCents: total, TotalCents: total,
		Items: []model.OrderItem{{ProductID: 1, Name: "Rye", Quantity: 1, PriceCents: total}},
	}
	require.NoError(t, database.CreateOrder(context.Background(), o))
	return o
}

func openRows(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestOrdersReport(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	addOrder(t, database, "BH-2", 1, "2026-09-20", 1250)
	addOrder(t, database, "BH-1", 1, "2026-09-02", 500)
	canceled := addOrder(t, database, "BH-3", 2, "2026-09-10", 900)
	require.NoError(t, database.UpdateOrderStatus(ctx, canceled.ID, model.OrderPending, model.OrderCanceled, "admin"))
	addOrder(t, database, "BH-4", 1, "2026-10-01", 700)

	buf, err := Orders(ctx, database, "2026-09-01", "2026-09-30")
	require.NoError(t, err)

	orders := openRows(t, buf, "Orders")
	require.Len(t, orders, 4)
	assert.Equal(t, orderColumns, orders[0])
	assert.Equal(t, "BH-1", orders[1][0])
	assert.Equal(t, "Center", orders[1][1])
	assert.Equal(t, "BH-2", orders[3][0])

	items := openRows(t, buf, "Items")
	assert.Len(t, items, 4)

	summary := openRows(t, buf, "Summary")
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"Center", "2", "0", "17.5"}, summary[1])
	assert.Equal(t, []string{"Harbor", "1", "1", "0"}, summary[2])
}

func TestArchive(t *testing.T) {
	database := newTestDB(t)
	addOrder(t, database, "BH-1", 1, "2026-09-02", 500)

	buf, err := Archive(context.Background(), database, nopLogger())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, db.ExportTableNames, f.GetSheetList())

	rows, err := f.GetRows("orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

type sentDoc struct {
	name, caption string
	size          int
}

type fakeNotifier struct {
	docs []sentDoc
}

func (f *fakeNotifier) SendDocument(_ context.Context, filename string, data io.Reader, caption string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.docs = append(f.docs, sentDoc{name: filename, caption: caption, size: len(b)})
	return nil
}

func TestMonthlyRun(t *testing.T) {
	database := newTestDB(t)
	addOrder(t, database, "BH-1", 1, "2026-09-02", 500)
	notifier := &fakeNotifier{}

	m := NewMonthly(database, notifier, nopLogger())
	require.NoError(t, m.Run(context.Background(), time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)))

	require.Len(t, notifier.docs, 2)
	assert.Equal(t, "orders_2026-09.xlsx", notifier.docs[0].name)
	assert.Equal(t, "archive_2026-09.xlsx", notifier.docs[1].name)
	assert.Positive(t, notifier.docs[0].size)
}

func TestMonthRangeAndSchedule(t *testing.T) {
	from, to := MonthRange(time.Date(2028, 2, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2028-02-01", from)
	assert.Equal(t, "2028-02-29", to)

	next := nextFirstOfMonth(time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 5, 0, 0, time.UTC), next)
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
