package cart

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"bakehouse/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxLineQuantity caps a single cart line.
const MaxLineQuantity = 99

var (
	ErrInvalidAction      = errors.New("invalid cart action")
	ErrProductUnavailable = errors.New("product is not available")
	ErrStoreUnavailable   = errors.New("store is not available")
)

// Catalog is the read side the cart confirms mutations against.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	GetStore(ctx context.Context, id int64) (*model.Store, error)
}

// Observer is told about every rolled back mutation.
type Observer interface {
	CartRolledBack(action ActionType)
}

type Service struct {
	store    Store
	catalog  Catalog
	logger   *zerolog.Logger
	observer Observer
	now      func() time.Time
}

func NewService(store Store, catalog Catalog, logger *zerolog.Logger, observer Observer) *Service {
	return &Service{
		store:    store,
		catalog:  catalog,
		logger:   logger,
		observer: observer,
		now:      time.Now,
	}
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context, prefs model.Preferences) (model.Cart, error) {
	c := model.Cart{ID: uuid.NewString(), Lines: []model.CartLine{}, Preferences: prefs, UpdatedAt: s.now()}
	if err := s.store.Save(ctx, c); err != nil {
		return model.Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (model.Cart, error) {
	return s.store.Get(ctx, id)
}

// Clear empties the cart after a successful checkout.
func (s *Service) Clear(ctx context.Context, id string) error {
	_, err := s.store.Update(ctx, id, s.apply(Action{Type: ActionClear}))
	return err
}

func (s *Service) apply(a Action) UpdateFunc {
	return func(c model.Cart) (model.Cart, error) {
		next := Reduce(c, a)
		next.UpdatedAt = s.now()
		return next, nil
	}
}

// Mutate applies a to the cart. The projected state is saved before it is
// confirmed against the catalog; if confirmation fails the compensating action
// is applied and saved, and the confirmation error is returned with the
// rolled back cart. There is no retry.
//
// Every write is an atomic update of the stored cart, so concurrent mutations
// are not lost and a rollback only touches the lines its action changed.
func (s *Service) Mutate(ctx context.Context, cartID string, a Action) (model.Cart, error) {
	if err := validateAction(a); err != nil {
		return model.Cart{}, err
	}

	var before model.Cart
	projected, err := s.store.Update(ctx, cartID, func(c model.Cart) (model.Cart, error) {
		before = c
		return s.apply(a)(c)
	})
	if err != nil {
		return model.Cart{}, fmt.Errorf("update cart: %w", err)
	}

	confirmed, confirmErr := s.confirm(ctx, projected, a)
	if confirmErr == nil {
		out, err := s.store.Update(ctx, cartID, func(c model.Cart) (model.Cart, error) {
			return withSnapshot(c, confirmed, a.ProductID), nil
		})
		if err != nil {
			return projected, fmt.Errorf("save cart: %w", err)
		}
		return out, nil
	}

	rolledBack, err := s.store.Update(ctx, cartID, s.apply(Compensate(before, a)))
	if err != nil {
		s.logger.Error().Err(err).Str("cart_id", cartID).Msg("Failed to roll back cart")
		return projected, errors.Join(confirmErr, err)
	}
	if s.observer != nil {
		s.observer.CartRolledBack(a.Type)
	}
	s.logger.Info().Err(confirmErr).Str("cart_id", cartID).Str("action", string(a.Type)).Msg("Cart mutation rolled back")
	return rolledBack, confirmErr
}

// withSnapshot copies the confirmed name, price and category of productID into
// the current cart, keeping whatever quantity it holds now.
func withSnapshot(cur, confirmed model.Cart, productID int64) model.Cart {
	snap, j := confirmed.Line(productID)
	_, i := cur.Line(productID)
	if productID == 0 || i < 0 || j < 0 {
		return cur
	}
	out := cur
	out.Lines = slices.Clone(cur.Lines)
	snap.Quantity = out.Lines[i].Quantity
	out.Lines[i] = snap
	return out
}

func validateAction(a Action) error {
	switch a.Type {
	case ActionAddItem, ActionSetQuantity:
		if a.ProductID <= 0 {
			return fmt.Errorf("%w: product_id is required", ErrInvalidAction)
		}
		if a.Type == ActionAddItem && a.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", ErrInvalidAction)
		}
		if a.Quantity > MaxLineQuantity {
			return fmt.Errorf("%w: quantity cannot exceed %d", ErrInvalidAction, MaxLineQuantity)
		}
	case ActionRemoveItem:
		if a.ProductID <= 0 {
			return fmt.Errorf("%w: product_id is required", ErrInvalidAction)
		}
	case ActionSetPreferences:
		if a.Preferences == nil {
			return fmt.Errorf("%w: preferences are required", ErrInvalidAction)
		}
	case ActionClear:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAction, a.Type)
	}
	return nil
}

// confirm checks the projected cart against the catalog and fills the line
// snapshot (name, price, category) of the product the action touched.
func (s *Service) confirm(ctx context.Context, c model.Cart, a Action) (model.Cart, error) {
	switch a.Type {
	case ActionAddItem, ActionSetQuantity:
		_, i := c.Line(a.ProductID)
		if i < 0 {
			return c, nil
		}
		if c.Lines[i].Quantity > MaxLineQuantity {
			return c, fmt.Errorf("%w: quantity cannot exceed %d", ErrInvalidAction, MaxLineQuantity)
		}
		line, err := s.snapshot(ctx, a.ProductID)
		if err != nil {
			return c, err
		}
		line.Quantity = c.Lines[i].Quantity
		c.Lines[i] = line

	case ActionSetPreferences:
		if id := c.Preferences.StoreID; id > 0 {
			store, err := s.catalog.GetStore(ctx, id)
			if errors.Is(err, model.ErrNotFound) || (err == nil && !store.IsActive) {
				return c, ErrStoreUnavailable
			}
			if err != nil {
				return c, err
			}
		}
	}
	return c, nil
}

func (s *Service) snapshot(ctx context.Context, productID int64) (model.CartLine, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if errors.Is(err, model.ErrNotFound) {
		return model.CartLine{}, ErrProductUnavailable
	}
	if err != nil {
		return model.CartLine{}, err
	}
	if !p.IsActive {
		return model.CartLine{}, ErrProductUnavailable
	}
	cat, err := s.catalog.GetCategory(ctx, p.CategoryID)
	if err != nil {
		return model.CartLine{}, fmt.Errorf("category of product %d: %w", productID, err)
	}
	if !cat.IsActive {
		return model.CartLine{}, ErrProductUnavailable
	}
	return model.CartLine{ProductID: p.ID, Name: p.Name, PriceCents: p.PriceCents, Category: cat}, nil
}
