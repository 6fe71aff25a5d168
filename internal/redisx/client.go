package redisx

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PendingMarker marks an idempotency record whose first request is still in flight.
const PendingMarker = "pending"

func New(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Claim reserves key for ttl, storing pending until Complete replaces it.
// When the key is already held it returns the stored value and claimed=false.
func Claim(ctx context.Context, rdb *redis.Client, key, pending string, ttl time.Duration) (value string, claimed bool, err error) {
	ok, err := rdb.SetNX(ctx, key, pending, ttl).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	value, err = rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET.
		return Claim(ctx, rdb, key, pending, ttl)
	}
	return value, false, err
}

// Complete replaces the pending marker with the final result.
func Complete(ctx context.Context, rdb *redis.Client, key, value string, ttl time.Duration) error {
	return rdb.Set(ctx, key, value, ttl).Err()
}

// Release drops a claim so the request can be retried.
func Release(ctx context.Context, rdb *redis.Client, key string) error {
	return rdb.Del(ctx, key).Err()
}
