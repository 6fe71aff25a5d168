// Package checkout turns a cart into an order. It drives the pickup resolver
// for the date and time pickers and re-validates the chosen slot on submit.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"bakehouse/internal/events"
	"bakehouse/internal/metrics"
	"bakehouse/internal/model"
	"bakehouse/internal/pickup"
	"bakehouse/internal/redisx"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Repository is the persistence checkout needs.
type Repository interface {
	GetStore(ctx context.Context, id int64) (*model.Store, error)
	StoreSchedule(ctx context.Context, storeID int64, from string) (pickup.Schedule, error)
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	GetPriceTier(ctx context.Context, id int64) (*model.PriceTier, error)
	CreateOrder(ctx context.Context, o *model.Order) error
}

// Carts is the cart side of checkout.
type Carts interface {
	Get(ctx context.Context, id string) (model.Cart, error)
	Clear(ctx context.Context, id string) error
}

// Publisher receives order.created events.
type Publisher interface {
	PublishPayload(ctx context.Context, eventType, key string, payload any)
}

// Options configures the service.
type Options struct {
	SlotStep       time.Duration
	IdempotencyTTL time.Duration
}

type Service struct {
	repo      Repository
	carts     Carts
	resolver  *pickup.Resolver
	publisher Publisher
	redis     *redis.Client
	opts      Options
	logger    *zerolog.Logger
}

func NewService(repo Repository, carts Carts, resolver *pickup.Resolver, publisher Publisher, logger *zerolog.Logger, opts Options) *Service {
	if opts.SlotStep <= 0 {
		opts.SlotStep = pickup.DefaultSlotStep
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = redisx.TTLIdempotency
	}
	return &Service{
		repo:      repo,
		carts:     carts,
		resolver:  resolver,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
	}
}

// UseIdempotency enables Idempotency-Key handling on Submit.
func (s *Service) UseIdempotency(rdb *redis.Client) {
	s.redis = rdb
}

// PickupOptions is what the checkout form shows after a store is selected.
type PickupOptions struct {
	StoreID       int64              `json:"store_id"`
	Restriction   *pickup.WeekdaySet `json:"restriction,omitempty"`
	Blocked       bool               `json:"blocked"`
	BlockReason   string             `json:"block_reason,omitempty"`
	EarliestDate  string             `json:"earliest_date"`
	FirstDate     string             `json:"first_date,omitempty"`
	TimeRange     *pickup.TimeRange  `json:"time_range,omitempty"`
	DefaultTime   string             `json:"default_time,omitempty"`
	Slots         []string           `json:"slots,omitempty"`
	DisabledDates []string           `json:"disabled_dates"`
}

const (
	BlockIncompatibleProducts = "incompatible_products"
	BlockNoOpenDate           = "no_open_date"
)

// DateOptions is what the form shows after a date is picked.
type DateOptions struct {
	Date        string            `json:"date"`
	Selectable  bool              `json:"selectable"`
	TimeRange   *pickup.TimeRange `json:"time_range,omitempty"`
	DefaultTime string            `json:"default_time,omitempty"`
	Slots       []string          `json:"slots,omitempty"`
}

// pickupContext is the resolver input for one store and cart.
type pickupContext struct {
	store       *model.Store
	cart        model.Cart
	lines       []model.CartLine
	schedule    pickup.Schedule
	restriction *pickup.WeekdaySet
}

func (s *Service) load(ctx context.Context, storeID int64, cartID string) (*pickupContext, error) {
	store, err := s.repo.GetStore(ctx, storeID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && !store.IsActive) {
		return nil, ErrStoreUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}

	cart, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	lines, err := s.currentLines(ctx, cart)
	if err != nil {
		return nil, err
	}

	schedule, err := s.repo.StoreSchedule(ctx, storeID, pickup.DateKey(s.resolver.EarliestDate()))
	if err != nil {
		return nil, fmt.Errorf("store schedule: %w", err)
	}

	return &pickupContext{
		store:       store,
		cart:        cart,
		lines:       lines,
		schedule:    schedule,
		restriction: pickup.IntersectRestrictions(lines),
	}, nil
}

// currentLines re-reads price and category of every line so restrictions and
// totals reflect the catalog now, not when the item was added.
func (s *Service) currentLines(ctx context.Context, cart model.Cart) ([]model.CartLine, error) {
	lines := make([]model.CartLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		p, err := s.repo.GetProduct(ctx, l.ProductID)
		if errors.Is(err, model.ErrNotFound) || (err == nil && !p.IsActive) {
			return nil, model.NewValidationError("cart", fmt.Sprintf("product %d is no longer available", l.ProductID))
		}
		if err != nil {
			return nil, fmt.Errorf("get product %d: %w", l.ProductID, err)
		}
		cat, err := s.repo.GetCategory(ctx, p.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("get category %d: %w", p.CategoryID, err)
		}
		if !cat.IsActive {
			return nil, model.NewValidationError("cart", fmt.Sprintf("product %d is no longer available", l.ProductID))
		}
		lines = append(lines, model.CartLine{
			ProductID:  p.ID,
			Name:       p.Name,
			Quantity:   l.Quantity,
			PriceCents: p.PriceCents,
			Category:   cat,
		})
	}
	return lines, nil
}

// Options recomputes the pickup proposal for a store selection.
func (s *Service) Options(ctx context.Context, storeID int64, cartID string) (*PickupOptions, error) {
	pc, err := s.load(ctx, storeID, cartID)
	if err != nil {
		return nil, err
	}

	out := &PickupOptions{
		StoreID:       storeID,
		Restriction:   pc.restriction,
		EarliestDate:  pickup.DateKey(s.resolver.EarliestDate()),
		DisabledDates: s.resolver.DisabledDates(pc.schedule, pc.restriction),
	}

	first, ok := s.resolver.FirstAvailableDate(pc.schedule, pc.restriction)
	if !ok {
		out.Blocked = true
		out.BlockReason = BlockNoOpenDate
		if pc.restriction != nil && pc.restriction.Empty() {
			out.BlockReason = BlockIncompatibleProducts
		}
		return out, nil
	}

	tr := pickup.TimeRangeForDate(pc.schedule, first)
	out.FirstDate = pickup.DateKey(first)
	out.TimeRange = tr
	out.DefaultTime = pickup.FirstAvailableTime(tr)
	out.Slots = pickup.TimeSlots(tr, s.opts.SlotStep)
	return out, nil
}

// DateOptions recomputes the time picker after the date changes.
func (s *Service) DateOptions(ctx context.Context, storeID int64, cartID, date string) (*DateOptions, error) {
	day, err := s.resolver.ParseDate(date)
	if err != nil {
		return nil, model.NewValidationError("date", "invalid date format, expected YYYY-MM-DD")
	}
	pc, err := s.load(ctx, storeID, cartID)
	if err != nil {
		return nil, err
	}

	out := &DateOptions{Date: pickup.DateKey(day)}
	if !s.resolver.IsSelectable(pc.schedule, pc.restriction, day) {
		return out, nil
	}
	tr := pickup.TimeRangeForDate(pc.schedule, day)
	out.Selectable = true
	out.TimeRange = tr
	out.DefaultTime = pickup.FirstAvailableTime(tr)
	out.Slots = pickup.TimeSlots(tr, s.opts.SlotStep)
	return out, nil
}

// Calendar returns the month grid for the date picker; month is YYYY-MM.
func (s *Service) Calendar(ctx context.Context, storeID int64, cartID, month string) (*pickup.CalendarMonth, error) {
	var m time.Time
	if month == "" {
		m = s.resolver.EarliestDate()
	} else {
		var err error
		m, err = time.ParseInLocation("2006-01", month, s.resolver.Location())
		if err != nil {
			return nil, model.NewValidationError("month", "invalid month format, expected YYYY-MM")
		}
	}
	pc, err := s.load(ctx, storeID, cartID)
	if err != nil {
		return nil, err
	}
	cal := s.resolver.Calendar(pc.schedule, pc.restriction, m.Year(), m.Month())
	return &cal, nil
}

// SubmitRequest is the order submission payload.
type SubmitRequest struct {
	CartID         string              `json:"cart_id"`
	StoreID        int64               `json:"store_id"`
	PickupDate     string              `json:"pickup_date"`
	PickupTime     string              `json:"pickup_time"`
	PaymentMethod  model.PaymentMethod `json:"payment_method"`
	Customer       *model.Customer     `json:"customer,omitempty"`
	// OrganizationID comes from the caller's organization credential, never the body.
	OrganizationID int64  `json:"-"`
	IdempotencyKey string `json:"-"`
}

type SubmitResult struct {
	OrderID       int64  `json:"order_id"`
	Number        string `json:"number"`
	SubtotalCents int64  `json:"subtotal_cents"`
	DiscountCents int64  `json:"discount_cents"`
	TotalCents    int64  `json:"total_cents"`
	PickupDate    string `json:"pickup_date"`
	PickupTime    string `json:"pickup_time"`
	Replayed      bool   `json:"replayed,omitempty"`
}

func (s *Service) validate(req *SubmitRequest) error {
	verr := &model.ValidationError{}
	if strings.TrimSpace(req.CartID) == "" {
		verr.Add("cart_id", "cart_id is required")
	}
	if req.StoreID <= 0 {
		verr.Add("store_id", "store_id is required")
	}
	if req.PickupDate == "" {
		verr.Add("pickup_date", "pickup_date is required")
	} else if _, err := s.resolver.ParseDate(req.PickupDate); err != nil {
		verr.Add("pickup_date", "invalid date format, expected YYYY-MM-DD")
	}
	if req.PickupTime == "" {
		verr.Add("pickup_time", "pickup_time is required")
	} else if m, err := pickup.ParseClock(req.PickupTime); err != nil {
		verr.Add("pickup_time", "invalid time format, expected HH:MM")
	} else {
		req.PickupTime = pickup.FormatClock(m)
	}
	if !req.PaymentMethod.Valid() {
		verr.Add("payment_method", "payment_method must be one of cash, card, invoice")
	} else if req.PaymentMethod == model.PaymentInvoice && req.OrganizationID == 0 {
		verr.Add("payment_method", "invoice is only available to organizations")
	}
	if req.OrganizationID == 0 {
		if req.Customer == nil {
			verr.Add("customer", "customer details are required")
		} else {
			if strings.TrimSpace(req.Customer.Name) == "" {
				verr.Add("customer.name", "name is required")
			}
			if strings.TrimSpace(req.Customer.Phone) == "" {
				verr.Add("customer.phone", "phone is required")
			}
		}
	}
	return verr.Err()
}

// Submit validates the pickup selection against the live schedule and cart,
// creates the order and clears the cart.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	res, err := s.submitOnce(ctx, req)
	if err != nil {
		metrics.IncCheckoutRejected(rejectReason(err))
		return nil, err
	}
	if !res.Replayed {
		kind := "guest"
		if req.OrganizationID > 0 {
			kind = "organization"
		}
		metrics.IncOrderCreated(kind)
	}
	return res, nil
}

func rejectReason(err error) string {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrNoPickupDate):
		return "no_pickup_date"
	case errors.Is(err, ErrDateUnavailable):
		return "date_unavailable"
	case errors.Is(err, ErrTimeUnavailable):
		return "time_unavailable"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrDuplicateSubmit):
		return "duplicate"
	}
	return "error"
}

func (s *Service) submitOnce(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	// Guests may have entered their details earlier; those travel with the cart.
	if req.Customer == nil && req.OrganizationID == 0 && req.CartID != "" {
		if c, err := s.carts.Get(ctx, req.CartID); err == nil && c.Preferences.Customer != nil {
			cust := *c.Preferences.Customer
			req.Customer = &cust
		}
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	if s.redis != nil && req.IdempotencyKey != "" {
		key := fmt.Sprintf(redisx.KeyIdemCheckout, req.IdempotencyKey)
		fp := requestFingerprint(req)
		value, claimed, err := redisx.Claim(ctx, s.redis, key, fp+"|"+redisx.PendingMarker, s.opts.IdempotencyTTL)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Idempotency store unavailable, continuing without it")
		} else if !claimed {
			return s.replay(value, fp)
		} else {
			res, err := s.submit(ctx, req)
			if err != nil {
				_ = redisx.Release(ctx, s.redis, key)
				return nil, err
			}
			if err := redisx.Complete(ctx, s.redis, key, fp+"|"+encodeResult(res), s.opts.IdempotencyTTL); err != nil {
				s.logger.Warn().Err(err).Str("order", res.Number).Msg("Failed to store idempotency result")
			}
			return res, nil
		}
	}
	return s.submit(ctx, req)
}

func (s *Service) submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	pc, err := s.load(ctx, req.StoreID, req.CartID)
	if err != nil {
		return nil, err
	}
	if len(pc.lines) == 0 {
		return nil, model.NewValidationError("cart", "cart is empty")
	}

	if _, ok := s.resolver.FirstAvailableDate(pc.schedule, pc.restriction); !ok {
		return nil, ErrNoPickupDate
	}
	day, _ := s.resolver.ParseDate(req.PickupDate)
	if !s.resolver.IsSelectable(pc.schedule, pc.restriction, day) {
		return nil, ErrDateUnavailable
	}
	tr := pickup.TimeRangeForDate(pc.schedule, day)
	if tr == nil || !tr.Contains(req.PickupTime) {
		return nil, ErrTimeUnavailable
	}

	order := &model.Order{
		Number:        newOrderNumber(day),
		StoreID:       req.StoreID,
		PickupDate:    pickup.DateKey(day),
		PickupTime:    req.PickupTime,
		PaymentMethod: req.PaymentMethod,
		Status:        model.OrderPending,
	}
	for _, l := range pc.lines {
		order.Items = append(order.Items, model.OrderItem{
			ProductID:  l.ProductID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			PriceCents: l.PriceCents,
		})
		order.SubtotalCents += l.PriceCents * int64(l.Quantity)
	}

	if req.OrganizationID > 0 {
		org, err := s.repo.GetOrganization(ctx, req.OrganizationID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewValidationError("organization_id", "unknown organization")
		}
		if err != nil {
			return nil, fmt.Errorf("get organization: %w", err)
		}
		orgID := org.ID
		order.OrganizationID = &orgID
		order.CustomerName = org.Name
		order.CustomerEmail = org.Email
		order.CustomerPhone = org.Phone
		if req.Customer != nil {
			order.CustomerName = firstNonEmpty(req.Customer.Name, org.Name)
			order.CustomerPhone = firstNonEmpty(req.Customer.Phone, org.Phone)
		}
		if org.PriceTierID != nil {
			tier, err := s.repo.GetPriceTier(ctx, *org.PriceTierID)
			if err != nil {
				return nil, fmt.Errorf("get price tier: %w", err)
			}
			order.DiscountCents = tier.Apply(order.SubtotalCents)
		}
	} else {
		order.CustomerName = strings.TrimSpace(req.Customer.Name)
		order.CustomerPhone = strings.TrimSpace(req.Customer.Phone)
		order.CustomerEmail = strings.TrimSpace(req.Customer.Email)
	}
	order.TotalCents = order.SubtotalCents - order.DiscountCents

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := s.carts.Clear(ctx, req.CartID); err != nil {
		s.logger.Error().Err(err).Str("cart_id", req.CartID).Str("order", order.Number).Msg("Failed to clear cart after checkout")
	}

	if s.publisher != nil {
		s.publisher.PublishPayload(ctx, events.TypeOrderCreated, order.Number, events.OrderCreated{
			OrderID:        order.ID,
			Number:         order.Number,
			StoreID:        order.StoreID,
			StoreName:      pc.store.Name,
			OrganizationID: order.OrganizationID,
			CustomerName:   order.CustomerName,
			CustomerPhone:  order.CustomerPhone,
			PickupDate:     order.PickupDate,
			PickupTime:     order.PickupTime,
			Items:          len(order.Items),
			TotalCents:     order.TotalCents,
		})
	}

	s.logger.Info().
		Str("order", order.Number).
		Int64("store_id", order.StoreID).
		Str("pickup", order.PickupDate+" "+order.PickupTime).
		Int64("total_cents", order.TotalCents).
		Msg("Order created")

	return &SubmitResult{
		OrderID:       order.ID,
		Number:        order.Number,
		SubtotalCents: order.SubtotalCents,
		DiscountCents: order.DiscountCents,
		TotalCents:    order.TotalCents,
		PickupDate:    order.PickupDate,
		PickupTime:    order.PickupTime,
	}, nil
}

func newOrderNumber(pickupDay time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "BH-" + pickupDay.Format("20060102") + "-" + suffix
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// encodeResult stores just enough to answer a replayed request.
func encodeResult(r *SubmitResult) string {
	return strings.Join([]string{
		strconv.FormatInt(r.OrderID, 10), r.Number,
		strconv.FormatInt(r.SubtotalCents, 10), strconv.FormatInt(r.DiscountCents, 10), strconv.FormatInt(r.TotalCents, 10),
		r.PickupDate, r.PickupTime,
	}, "|")
}

// requestFingerprint identifies what an idempotency key was first used for.
func requestFingerprint(req SubmitRequest) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%s|%s|%s",
		req.CartID, req.StoreID, req.OrganizationID, req.PickupDate, req.PickupTime, req.PaymentMethod)))
	return hex.EncodeToString(sum[:12])
}

func (s *Service) replay(value, fp string) (*SubmitResult, error) {
	stored, rest, ok := strings.Cut(value, "|")
	if !ok {
		return nil, fmt.Errorf("corrupt idempotency record %q", value)
	}
	if stored != fp {
		return nil, model.NewValidationError("idempotency_key", "key was already used for a different checkout")
	}
	if rest == redisx.PendingMarker {
		return nil, ErrDuplicateSubmit
	}
	parts := strings.Split(rest, "|")
	if len(parts) != 7 {
		return nil, fmt.Errorf("corrupt idempotency record %q", value)
	}
	res := &SubmitResult{Number: parts[1], PickupDate: parts[5], PickupTime: parts[6], Replayed: true}
	var err error
	if res.OrderID, err = strconv.ParseInt(parts[0], 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record: %w", err)
	}
	res.SubtotalCents, _ = strconv.ParseInt(parts[2], 10, 64)
	res.DiscountCents, _ = strconv.ParseInt(parts[3], 10, 64)
	res.TotalCents, _ = strconv.ParseInt(parts[4], 10, 64)
	return res, nil
}
