package db

import (
	"context"
	"fmt"
	"time"

	"bakehouse/internal/config"
	"bakehouse/internal/model"
)

// SyncStoresFromConfig applies stores.yaml to the database.
// It upserts stores, rewrites weekly hours for stores that declare them, marks
// missing stores inactive and adds closed exceptions for holidays. Holiday
// exceptions never replace an exception already set by staff.
func (db *DB) SyncStoresFromConfig(ctx context.Context, cfg *config.StoresConfig) error {
	if cfg == nil {
		return fmt.Errorf("stores config is nil")
	}

	now := time.Now()
	seen := make(map[int64]struct{})

	for _, s := range cfg.Stores {
		// Preserve created_at if the store already exists.
		_, err := db.ExecContext(ctx, `
			INSERT INTO stores (id, slug, name, address, phone, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, COALESCE((SELECT created_at FROM stores WHERE id = ?), ?), ?)
			ON CONFLICT(id) DO UPDATE SET
				slug = excluded.slug,
				name = excluded.name,
				address = excluded.address,
				phone = excluded.phone,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`,
			s.ID, s.Slug, s.Name, s.Address, s.Phone, boolToInt(s.IsActive), s.ID, now, now,
		)
		if err != nil {
			return fmt.Errorf("sync store %d: %w", s.ID, err)
		}
		id := int64(s.ID)
		seen[id] = struct{}{}

		if s.Hours == nil {
			continue
		}
		for day := 1; day <= 7; day++ {
			h := model.StoreHours{StoreID: id, DayOfWeek: day, StartTime: s.Hours.StartTime, EndTime: s.Hours.EndTime}
			if s.Hours.IsDayOff(day) {
				h = model.StoreHours{StoreID: id, DayOfWeek: day, IsClosed: true}
			}
			if err := db.UpsertStoreHours(ctx, h); err != nil {
				return fmt.Errorf("sync store %d hours: %w", s.ID, err)
			}
		}
	}

	// Deactivate stores that disappeared from config.
	rows, err := db.QueryContext(ctx, `SELECT id FROM stores WHERE is_active = 1`)
	if err != nil {
		return err
	}
	var missing []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, id := range missing {
		if _, err := db.ExecContext(ctx, `UPDATE stores SET is_active = 0, updated_at = ? WHERE id = ?`, now, id); err != nil {
			return fmt.Errorf("deactivate store %d: %w", id, err)
		}
		db.logger.Info().Int64("store_id", id).Msg("Store missing from config, deactivated")
	}

	for _, h := range cfg.Holidays {
		for id := range seen {
			if _, err := db.ExecContext(ctx, `
				INSERT INTO store_exceptions (store_id, date, is_closed, reason, updated_at)
				VALUES (?, ?, 1, ?, ?)
				ON CONFLICT(store_id, date) DO NOTHING`,
				id, h.Date, h.Name, now,
			); err != nil {
				return fmt.Errorf("holiday %s for store %d: %w", h.Date, id, err)
			}
		}
	}

	return nil
}
