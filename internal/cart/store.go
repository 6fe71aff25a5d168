package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"bakehouse/internal/model"
	"bakehouse/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// ErrConcurrentUpdate is returned when a cart kept changing under an update.
var ErrConcurrentUpdate = errors.New("cart is being changed concurrently")

// maxUpdateAttempts bounds optimistic retries of one Update.
const maxUpdateAttempts = 50

// UpdateFunc computes the next cart from the stored one. It may run more than
// once and must not have side effects.
type UpdateFunc func(model.Cart) (model.Cart, error)

// Store persists carts by id. Get returns model.ErrNotFound for unknown or expired carts.
type Store interface {
	Get(ctx context.Context, id string) (model.Cart, error)
	Save(ctx context.Context, c model.Cart) error
	// Update atomically replaces the cart with fn's result.
	Update(ctx context.Context, id string, fn UpdateFunc) (model.Cart, error)
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps carts as JSON with a sliding TTL.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = redisx.TTLCart
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (model.Cart, error) {
	return getCart(ctx, s.rdb, id)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getCart(ctx context.Context, rdb getter, id string) (model.Cart, error) {
	val, err := rdb.Get(ctx, fmt.Sprintf(redisx.KeyCart, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Cart{}, model.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, fmt.Errorf("get cart %s: %w", id, err)
	}
	var c model.Cart
	if err := json.Unmarshal(val, &c); err != nil {
		return model.Cart{}, fmt.Errorf("decode cart %s: %w", id, err)
	}
	return c, nil
}

// Update runs fn under WATCH on the cart key and retries when another writer
// got in between.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (model.Cart, error) {
	key := fmt.Sprintf(redisx.KeyCart, id)
	var next model.Cart
	txf := func(tx *redis.Tx) error {
		cur, err := getCart(ctx, tx, id)
		if err != nil {
			return err
		}
		next, err = fn(cur)
		if err != nil {
			return err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return model.Cart{}, err
		}
		return next, nil
	}
	return model.Cart{}, ErrConcurrentUpdate
}

func (s *RedisStore) Save(ctx context.Context, c model.Cart) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, fmt.Sprintf(redisx.KeyCart, c.ID), data, s.ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, fmt.Sprintf(redisx.KeyCart, id)).Err()
}

// MemoryStore is used when Redis is not configured.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]model.Cart
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]model.Cart)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.carts[id]
	if !ok {
		return model.Cart{}, model.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) Save(_ context.Context, c model.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[c.ID] = c
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn UpdateFunc) (model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.carts[id]
	if !ok {
		return model.Cart{}, model.ErrNotFound
	}
	next, err := fn(cur)
	if err != nil {
		return model.Cart{}, err
	}
	s.carts[id] = next
	return next, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, id)
	return nil
}
