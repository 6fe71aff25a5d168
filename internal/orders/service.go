// Package orders implements the back-office order status workflow.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bakehouse/internal/events"
	"bakehouse/internal/metrics"
	"bakehouse/internal/model"
	"github.com/rs/zerolog"
)

var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrUnknownStatus     = errors.New("unknown order status")
)

// Repository is the order persistence the workflow needs.
type Repository interface {
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, from, to model.OrderStatus, actor string) error
}

// Publisher receives order.status_changed events.
type Publisher interface {
	PublishPayload(ctx context.Context, eventType, key string, payload any)
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    *zerolog.Logger
}

func NewService(repo Repository, publisher Publisher, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

func (s *Service) List(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	if f.Status != "" && !KnownStatus(f.Status) {
		return nil, ErrUnknownStatus
	}
	return s.repo.ListOrders(ctx, f)
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// Validate reports whether the order may move to newStatus right now. It does
// not change anything.
func (s *Service) Validate(ctx context.Context, id int64, newStatus model.OrderStatus) (bool, error) {
	if !KnownStatus(newStatus) {
		return false, ErrUnknownStatus
	}
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return false, err
	}
	return CanTransition(o.Status, newStatus), nil
}

// ApplyStatus moves the order to newStatus. The update only succeeds while the
// order is still in the status it was read in; otherwise model.ErrStatusConflict.
func (s *Service) ApplyStatus(ctx context.Context, id int64, newStatus model.OrderStatus, actor string) (*model.Order, error) {
	if !KnownStatus(newStatus) {
		return nil, ErrUnknownStatus
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "admin"
	}

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	from := o.Status
	if !CanTransition(from, newStatus) {
		metrics.IncOrderStatusChange(string(newStatus), "invalid")
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, newStatus)
	}

	if err := s.repo.UpdateOrderStatus(ctx, id, from, newStatus, actor); err != nil {
		if errors.Is(err, model.ErrStatusConflict) {
			metrics.IncOrderStatusChange(string(newStatus), "conflict")
			s.logger.Warn().Int64("order_id", id).Str("from", string(from)).Str("to", string(newStatus)).Msg("Order status changed concurrently")
		}
		return nil, err
	}
	metrics.IncOrderStatusChange(string(newStatus), "applied")

	o.Status = newStatus
	if s.publisher != nil {
		s.publisher.PublishPayload(ctx, events.TypeOrderStatusChanged, o.Number, events.OrderStatusChanged{
			OrderID: o.ID,
			Number:  o.Number,
			From:    string(from),
			To:      string(newStatus),
			Actor:   actor,
		})
	}

	s.logger.Info().
		Str("order", o.Number).
		Str("from", string(from)).
		Str("to", string(newStatus)).
		Str("actor", actor).
		Msg("Order status changed")
	return o, nil
}
