package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bakehouse/internal/model"
	"bakehouse/internal/pickup"
)

// ListStores returns stores ordered by name.
func (db *DB) ListStores(ctx context.Context, activeOnly bool) ([]model.Store, error) {
	query := `SELECT id, slug, name, address, phone, is_active, created_at, updated_at FROM stores`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stores := make([]model.Store, 0)
	for rows.Next() {
		var s model.Store
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Address, &s.Phone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

// GetStore returns a store by id.
func (db *DB) GetStore(ctx context.Context, id int64) (*model.Store, error) {
	var s model.Store
	err := db.QueryRowContext(ctx, `
		SELECT id, slug, name, address, phone, is_active, created_at, updated_at
		FROM stores WHERE id = ?`, id,
	).Scan(&s.ID, &s.Slug, &s.Name, &s.Address, &s.Phone, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListStoreHours returns the weekly rows of a store, Monday first.
func (db *DB) ListStoreHours(ctx context.Context, storeID int64) ([]model.StoreHours, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT store_id, day_of_week, is_closed, start_time, end_time
		FROM store_hours WHERE store_id = ? ORDER BY day_of_week`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hours := make([]model.StoreHours, 0, 7)
	for rows.Next() {
		var h model.StoreHours
		if err := rows.Scan(&h.StoreID, &h.DayOfWeek, &h.IsClosed, &h.StartTime, &h.EndTime); err != nil {
			return nil, err
		}
		hours = append(hours, h)
	}
	return hours, rows.Err()
}

// ListStoreExceptions returns exceptions on or after from (YYYY-MM-DD); empty from returns all.
func (db *DB) ListStoreExceptions(ctx context.Context, storeID int64, from string) ([]model.StoreException, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT store_id, date, is_closed, start_time, end_time, reason
		FROM store_exceptions
		WHERE store_id = ? AND date >= ?
		ORDER BY date`, storeID, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.StoreException, 0)
	for rows.Next() {
		var e model.StoreException
		if err := rows.Scan(&e.StoreID, &e.Date, &e.IsClosed, &e.StartTime, &e.EndTime, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StoreSchedule returns the resolver view of a store: weekly hours plus
// exceptions from the given date on.
func (db *DB) StoreSchedule(ctx context.Context, storeID int64, from string) (pickup.Schedule, error) {
	if _, err := db.GetStore(ctx, storeID); err != nil {
		return pickup.Schedule{}, err
	}
	hours, err := db.ListStoreHours(ctx, storeID)
	if err != nil {
		return pickup.Schedule{}, fmt.Errorf("list hours: %w", err)
	}
	exceptions, err := db.ListStoreExceptions(ctx, storeID, from)
	if err != nil {
		return pickup.Schedule{}, fmt.Errorf("list exceptions: %w", err)
	}
	return model.BuildSchedule(hours, exceptions), nil
}

// UpsertStoreHours creates or replaces the weekly row for one day.
func (db *DB) UpsertStoreHours(ctx context.Context, h model.StoreHours) error {
	if _, err := pickup.WeekdayFromNumber(h.DayOfWeek); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO store_hours (store_id, day_of_week, is_closed, start_time, end_time, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(store_id, day_of_week) DO UPDATE SET
			is_closed = excluded.is_closed,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		h.StoreID, h.DayOfWeek, h.IsClosed, h.StartTime, h.EndTime, time.Now(),
	)
	return err
}

// SetException creates or updates the override for a specific date.
func (db *DB) SetException(ctx context.Context, e model.StoreException) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO store_exceptions (store_id, date, is_closed, start_time, end_time, reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(store_id, date) DO UPDATE SET
			is_closed = excluded.is_closed,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			reason = excluded.reason,
			updated_at = excluded.updated_at`,
		e.StoreID, e.Date, e.IsClosed, e.StartTime, e.EndTime, e.Reason, time.Now(),
	)
	return err
}

// DeleteException removes the override for a date.
func (db *DB) DeleteException(ctx context.Context, storeID int64, date string) error {
	res, err := db.ExecContext(ctx,
		"DELETE FROM store_exceptions WHERE store_id = ? AND date = ?", storeID, date)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	return nil
}
