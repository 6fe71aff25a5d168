package checkout

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bakehouse/internal/cart"
	"bakehouse/internal/config"
	"bakehouse/internal/db"
	"bakehouse/internal/events"
	"bakehouse/internal/model"
	"bakehouse/internal/pickup"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	orders []events.OrderCreated
}

func (p *recordingPublisher) PublishPayload(_ context.Context, eventType, _ string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	if oc, ok := payload.(events.OrderCreated); ok {
		p.orders = append(p.orders, oc)
	}
}

type fixture struct {
	db      *db.DB
	carts   *cart.Service
	store   *cart.MemoryStore
	pub     *recordingPublisher
	svc     *Service
	bread   *model.Product
	cake    *model.Product
	monday  *model.Product
	storeID int64
}

// newFixture runs at Wednesday 2026-10-14 10:00 UTC. Store 1 opens Mon-Fri
// 08:00-18:00.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "bakehouse.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, database.SyncStoresFromConfig(ctx, &config.StoresConfig{
		Stores: []config.StoreConfig{
			{ID: 1, Slug: "center", Name: "Center", IsActive: true,
				Hours: &config.WeeklyHoursConfig{StartTime: "08:00", EndTime: "18:00", DaysOff: []int{6, 7}}},
			{ID: 2, Slug: "closed", Name: "Closed", IsActive: false},
		},
	}))

	weekend := pickup.NewWeekdaySet(time.Saturday, time.Sunday)
	mondays := pickup.NewWeekdaySet(time.Monday)
	breadCat := &model.Category{Slug: "bread", Name: "Bread", IsActive: true}
	cakeCat := &model.Category{Slug: "cakes", Name: "Cakes", PickupDays: &weekend, IsActive: true}
	monCat := &model.Category{Slug: "monday", Name: "Monday specials", PickupDays: &mondays, IsActive: true}
	for _, c := range []*model.Category{breadCat, cakeCat, monCat} {
		require.NoError(t, database.SaveCategory(ctx, c))
	}

	f := &fixture{db: database, storeID: 1, pub: &recordingPublisher{}}
	f.bread = &model.Product{CategoryID: breadCat.ID, Slug: "rye", Name: "Rye", PriceCents: 450, IsActive: true}
	f.cake = &model.Product{CategoryID: cakeCat.ID, Slug: "torte", Name: "Torte", PriceCents: 3200, IsActive: true}
	f.monday = &model.Product{CategoryID: monCat.ID, Slug: "bun", Name: "Bun", PriceCents: 150, IsActive: true}
	for _, p := range []*model.Product{f.bread, f.cake, f.monday} {
		require.NoError(t, database.SaveProduct(ctx, p))
	}

	f.store = cart.NewMemoryStore()
	f.carts = cart.NewService(f.store, database, &logger, nil)

	resolver := &pickup.Resolver{
		Cutoff:  pickup.DefaultCutoff,
		Horizon: pickup.DefaultHorizon,
		Now:     func() time.Time { return time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC) },
	}
	f.svc = NewService(database, f.carts, resolver, f.pub, &logger, Options{SlotStep: time.Hour})
	return f
}

func (f *fixture) cart(t *testing.T, prefs model.Preferences, lines ...model.CartLine) string {
	t.Helper()
	c := model.Cart{ID: "cart-" + t.Name(), Lines: lines, Preferences: prefs}
	require.NoError(t, f.store.Save(context.Background(), c))
	return c.ID
}

func line(p *model.Product, qty int) model.CartLine {
	return model.CartLine{ProductID: p.ID, Name: p.Name, Quantity: qty, PriceCents: p.PriceCents}
}

func guest() *model.Customer {
	return &model.Customer{Name: "Ada", Phone: "+49 30 1234"}
}

func TestOptionsUnrestricted(t *testing.T) {
	f := newFixture(t)
	id := f.cart(t, model.Preferences{}, line(f.bread, 2))

	opts, err := f.svc.Options(context.Background(), f.storeID, id)
	require.NoError(t, err)

	assert.False(t, opts.Blocked)
	assert.Nil(t, opts.Restriction)
	assert.Equal(t, "2026-10-15", opts.EarliestDate)
	assert.Equal(t, "2026-10-15", opts.FirstDate)
	require.NotNil(t, opts.TimeRange)
	assert.Equal(t, pickup.TimeRange{Start: "08:00", End: "18:00"}, *opts.TimeRange)
	assert.Equal(t, "08:00", opts.DefaultTime)
	assert.Equal(t, "08:00", opts.Slots[0])
	assert.Equal(t, "18:00", opts.Slots[len(opts.Slots)-1])
	assert.Contains(t, opts.DisabledDates, "2026-10-17")
	assert.NotContains(t, opts.DisabledDates, "2026-10-16")
}

func TestOptionsRestrictedToMondays(t *testing.T) {
	f := newFixture(t)
	id := f.cart(t, model.Preferences{}, line(f.bread, 1), line(f.monday, 3))

	opts, err := f.svc.Options(context.Background(), f.storeID, id)
	require.NoError(t, err)
	assert.False(t, opts.Blocked)
	assert.Equal(t, "2026-10-19", opts.FirstDate)
	require.NotNil(t, opts.Restriction)
	assert.Equal(t, []time.Weekday{time.Monday}, opts.Restriction.Days())
}

func TestOptionsBlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("incompatible products", func(t *testing.T) {
		id := f.cart(t, model.Preferences{}, line(f.cake, 1), line(f.monday, 1))
		opts, err := f.svc.Options(ctx, f.storeID, id)
		require.NoError(t, err)
		assert.True(t, opts.Blocked)
		assert.Equal(t, BlockIncompatibleProducts, opts.BlockReason)
		assert.Empty(t, opts.FirstDate)
		assert.Nil(t, opts.TimeRange)
	})

	t.Run("store closed on every allowed day", func(t *testing.T) {
		id := f.cart(t, model.Preferences{}, line(f.cake, 1))
		opts, err := f.svc.Options(ctx, f.storeID, id)
		require.NoError(t, err)
		assert.True(t, opts.Blocked)
		assert.Equal(t, BlockNoOpenDate, opts.BlockReason)
	})
}

func TestOptionsStoreUnavailable(t *testing.T) {
	f := newFixture(t)
	id := f.cart(t, model.Preferences{}, line(f.bread, 1))

	_, err := f.svc.Options(context.Background(), 2, id)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = f.svc.Options(context.Background(), 99, id)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestOptionsFollowException(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.SetException(ctx, model.StoreException{
		StoreID: 1, Date: "2026-10-15", IsClosed: false, StartTime: "10:00", EndTime: "14:00", Reason: "inventory",
	}))
	id := f.cart(t, model.Preferences{}, line(f.bread, 1))

	opts, err := f.svc.Options(ctx, f.storeID, id)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", opts.FirstDate)
	assert.Equal(t, "10:00", opts.DefaultTime)
	assert.Equal(t, []string{"10:00", "11:00", "12:00", "13:00", "14:00"}, opts.Slots)
}

func TestDateOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.cart(t, model.Preferences{}, line(f.bread, 1))

	got, err := f.svc.DateOptions(ctx, f.storeID, id, "2026-10-16")
	require.NoError(t, err)
	assert.True(t, got.Selectable)
	assert.Equal(t, "08:00", got.DefaultTime)

	got, err = f.svc.DateOptions(ctx, f.storeID, id, "2026-10-17")
	require.NoError(t, err)
	assert.False(t, got.Selectable)
	assert.Nil(t, got.TimeRange)
	assert.Empty(t, got.Slots)

	got, err = f.svc.DateOptions(ctx, f.storeID, id, "2026-10-14")
	require.NoError(t, err)
	assert.False(t, got.Selectable, "today is before the earliest date")

	_, err = f.svc.DateOptions(ctx, f.storeID, id, "16.10.2026")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "date")
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)
	id := f.cart(t, model.Preferences{}, line(f.bread, 1))

	cal, err := f.svc.Calendar(context.Background(), f.storeID, id, "")
	require.NoError(t, err)
	assert.Equal(t, 2026, cal.Year)
	assert.Equal(t, 10, cal.Month)

	_, err = f.svc.Calendar(context.Background(), f.storeID, id, "october")
	var verr *model.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSubmitGuest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.cart(t, model.Preferences{}, line(f.bread, 2))

	// Catalog price changed after the item was added.
	f.bread.PriceCents = 500
	require.NoError(t, f.db.SaveProduct(ctx, f.bread))

	res, err := f.svc.Submit(ctx, SubmitRequest{
		CartID: id, StoreID: f.storeID, PickupDate: "2026-10-15", PickupTime: "08:00",
		PaymentMethod: model.PaymentCash, Customer: guest(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.TotalCents)
	assert.Zero(t, res.DiscountCents)
	assert.Regexp(t, `^BH-20261015-[0-9A-F]{6}$`, res.Number)

	order, err := f.db.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Equal(t, "Ada", order.CustomerName)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(500), order.Items[0].PriceCents)

	c, err := f.carts.Get(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, c.Lines)

	require.Len(t, f.pub.orders, 1)
	assert.Equal(t, events.TypeOrderCreated, f.pub.events[0])
	assert.Equal(t, "Center", f.pub.orders[0].StoreName)
}

func TestSubmitUsesCartCustomer(t *testing.T) {
	f := newFixture(t)
	id := f.cart(t, model.Preferences{StoreID: 1, Customer: guest()}, line(f.bread, 1))

	res, err := f.svc.Submit(context.Background(), SubmitRequest{
		CartID: id, StoreID: f.storeID, PickupDate: "2026-10-15", PickupTime: "09:30",
		PaymentMethod: model.PaymentCard,
	})
	require.NoError(t, err)
	order, err := f.db.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "+49 30 1234", order.CustomerPhone)
}

func TestSubmitOrganizationDiscount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tier := &model.PriceTier{Name: "wholesale", DiscountPercent: 15}
	require.NoError(t, f.db.SavePriceTier(ctx, tier))
	app := &model.Application{CompanyName: "Cafe Nord", TaxID: "DE123", ContactName: "Jo", Email: "jo@nord.example", Phone: "+49 40 1"}
	require.NoError(t, f.db.CreateApplication(ctx, app))
	org, err := f.db.ApproveApplication(ctx, app.ID, "admin", &tier.ID, "")
	require.NoError(t, err)

	id := f.cart(t, model.Preferences{}, line(f.bread, 10))
	res, err := f.svc.Submit(ctx, SubmitRequest{
		CartID: id, StoreID: f.storeID, PickupDate: "2026-10-16", PickupTime: "18:00",
		PaymentMethod: model.PaymentInvoice, OrganizationID: org.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4500), res.SubtotalCents)
	assert.Equal(t, int64(675), res.DiscountCents)
	assert.Equal(t, int64(3825), res.TotalCents)

	order, err := f.db.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	require.NotNil(t, order.OrganizationID)
	assert.Equal(t, org.ID, *order.OrganizationID)
	assert.Equal(t, "Cafe Nord", order.CustomerName)
}

func TestSubmitRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := func(id string) SubmitRequest {
		return SubmitRequest{
			CartID: id, StoreID: f.storeID, PickupDate: "2026-10-15", PickupTime: "10:00",
			PaymentMethod: model.PaymentCash, Customer: guest(),
		}
	}

	t.Run("weekend date", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}, line(f.bread, 1)))
		req.PickupDate = "2026-10-17"
		_, err := f.svc.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("date before cutoff window", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}, line(f.bread, 1)))
		req.PickupDate = "2026-10-14"
		_, err := f.svc.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("time after closing", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}, line(f.bread, 1)))
		req.PickupTime = "18:01"
		_, err := f.svc.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrTimeUnavailable)
	})

	t.Run("restricted weekday", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}, line(f.monday, 1)))
		_, err := f.svc.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrDateUnavailable)
	})

	t.Run("incompatible products", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}, line(f.cake, 1), line(f.monday, 1)))
		_, err := f.svc.Submit(ctx, req)
		assert.ErrorIs(t, err, ErrNoPickupDate)
	})

	t.Run("empty cart", func(t *testing.T) {
		req := base(f.cart(t, model.Preferences{}))
		_, err := f.svc.Submit(ctx, req)
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "cart")
	})

	t.Run("invalid fields", func(t *testing.T) {
		_, err := f.svc.Submit(ctx, SubmitRequest{
			CartID: "missing", StoreID: f.storeID, PickupDate: "15/10/2026", PickupTime: "8am",
			PaymentMethod: model.PaymentInvoice, Customer: &model.Customer{},
		})
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
		for _, field := range []string{"pickup_date", "pickup_time", "payment_method", "customer.name", "customer.phone"} {
			assert.Contains(t, verr.Fields, field)
		}
	})

	t.Run("inactive product", func(t *testing.T) {
		gone := &model.Product{CategoryID: f.bread.CategoryID, Slug: "gone", Name: "Gone", PriceCents: 1, IsActive: true}
		require.NoError(t, f.db.SaveProduct(ctx, gone))
		id := f.cart(t, model.Preferences{}, line(gone, 1))
		gone.IsActive = false
		require.NoError(t, f.db.SaveProduct(ctx, gone))

		_, err := f.svc.Submit(ctx, base(id))
		var verr *model.ValidationError
		require.ErrorAs(t, err, &verr)
	})

	assert.Empty(t, f.pub.orders)
}

func TestSubmitIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	f.svc.UseIdempotency(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	req := SubmitRequest{
		CartID: f.cart(t, model.Preferences{}, line(f.bread, 1)), StoreID: f.storeID,
		PickupDate: "2026-10-15", PickupTime: "12:00", PaymentMethod: model.PaymentCash,
		Customer: guest(), IdempotencyKey: "k-1",
	}
	first, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)

	again, err := f.svc.Submit(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Number, again.Number)
	assert.Equal(t, first.TotalCents, again.TotalCents)
	assert.Len(t, f.pub.orders, 1)

	// A failed attempt releases the key.
	bad := req
	bad.IdempotencyKey = "k-2"
	bad.PickupTime = "20:00"
	_, err = f.svc.Submit(ctx, bad)
	require.ErrorIs(t, err, ErrTimeUnavailable)
	assert.False(t, mr.Exists("idem:checkout:k-2"))

	inflight := req
	inflight.IdempotencyKey = "k-3"
	require.NoError(t, mr.Set("idem:checkout:k-3", requestFingerprint(inflight)+"|pending"))
	_, err = f.svc.Submit(ctx, inflight)
	assert.ErrorIs(t, err, ErrDuplicateSubmit)
}

func TestSubmitIdempotencyKeyReusedForOtherCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mr := miniredis.RunT(t)
	f.svc.UseIdempotency(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	first := SubmitRequest{
		CartID: f.cart(t, model.Preferences{}, line(f.bread, 1)), StoreID: f.storeID,
		PickupDate: "2026-10-15", PickupTime: "12:00", PaymentMethod: model.PaymentCash,
		Customer: guest(), IdempotencyKey: "shared",
	}
	_, err := f.svc.Submit(ctx, first)
	require.NoError(t, err)

	other := first
	other.CartID = "cart-other"
	require.NoError(t, f.store.Save(ctx, model.Cart{ID: other.CartID, Lines: []model.CartLine{line(f.bread, 4)}}))
	_, err = f.svc.Submit(ctx, other)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "idempotency_key")

	later := first
	later.PickupDate = "2026-10-16"
	_, err = f.svc.Submit(ctx, later)
	require.ErrorAs(t, err, &verr)

	assert.Len(t, f.pub.orders, 1)
	c, err := f.carts.Get(ctx, other.CartID)
	require.NoError(t, err)
	assert.Len(t, c.Lines, 1)
}

func TestSubmitNormalizesPickupTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, SubmitRequest{
		CartID: f.cart(t, model.Preferences{}, line(f.bread, 1)), StoreID: f.storeID,
		PickupDate: "2026-10-15", PickupTime: "9:30", PaymentMethod: model.PaymentCash,
		Customer: guest(),
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", res.PickupTime)

	order, err := f.db.GetOrder(ctx, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "09:30", order.PickupTime)
}
