package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bakehouse/internal/model"
	"bakehouse/internal/pickup"
)

const categoryColumns = `id, slug, name, pickup_days, sort_order, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var c model.Category
	var days sql.NullInt64
	if err := row.Scan(&c.ID, &c.Slug, &c.Name, &days, &c.SortOrder, &c.IsActive, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if days.Valid {
		set := pickup.WeekdaySet(days.Int64)
		c.PickupDays = &set
	}
	return &c, nil
}

func pickupDaysValue(days *pickup.WeekdaySet) any {
	if days == nil {
		return nil
	}
	return int64(*days)
}

// ListCategories returns categories in display order.
func (db *DB) ListCategories(ctx context.Context, activeOnly bool) ([]model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY sort_order, name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// GetCategory returns a category by id.
func (db *DB) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	c, err := scanCategory(db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return c, err
}

// SaveCategory inserts c when c.ID is zero, otherwise updates it.
// A duplicate slug yields model.ErrSlugTaken.
func (db *DB) SaveCategory(ctx context.Context, c *model.Category) error {
	now := time.Now()
	if c.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO categories (slug, name, pickup_days, sort_order, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.Slug, c.Name, pickupDaysValue(c.PickupDays), c.SortOrder, c.IsActive, now, now,
		)
		if err != nil {
			return mapWriteError(err)
		}
		c.ID, err = res.LastInsertId()
		c.CreatedAt, c.UpdatedAt = now, now
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE categories
		SET slug = ?, name = ?, pickup_days = ?, sort_order = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Slug, c.Name, pickupDaysValue(c.PickupDays), c.SortOrder, c.IsActive, now, c.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	c.UpdatedAt = now
	return nil
}

const productColumns = `id, category_id, slug, name, description, price_cents, is_active, created_at, updated_at`

func scanProduct(row rowScanner) (*model.Product, error) {
	var p model.Product
	if err := row.Scan(&p.ID, &p.CategoryID, &p.Slug, &p.Name, &p.Description, &p.PriceCents, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns products, optionally only active ones of active categories.
func (db *DB) ListProducts(ctx context.Context, categoryID int64, activeOnly bool) ([]model.Product, error) {
	var (
		where []string
		args  []any
	)
	if categoryID > 0 {
		where = append(where, "category_id = ?")
		args = append(args, categoryID)
	}
	if activeOnly {
		where = append(where, "is_active = 1", "category_id IN (SELECT id FROM categories WHERE is_active = 1)")
	}
	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY name`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetProduct returns a product by id.
func (db *DB) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	p, err := scanProduct(db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return p, err
}

// SaveProduct inserts p when p.ID is zero, otherwise updates it.
// A duplicate slug yields model.ErrSlugTaken.
func (db *DB) SaveProduct(ctx context.Context, p *model.Product) error {
	now := time.Now()
	if p.ID == 0 {
		res, err := db.ExecContext(ctx, `
			INSERT INTO products (category_id, slug, name, description, price_cents, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.CategoryID, p.Slug, p.Name, p.Description, p.PriceCents, p.IsActive, now, now,
		)
		if err != nil {
			return mapWriteError(err)
		}
		p.ID, err = res.LastInsertId()
		p.CreatedAt, p.UpdatedAt = now, now
		return err
	}

	res, err := db.ExecContext(ctx, `
		UPDATE products
		SET category_id = ?, slug = ?, name = ?, description = ?, price_cents = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		p.CategoryID, p.Slug, p.Name, p.Description, p.PriceCents, p.IsActive, now, p.ID,
	)
	if err != nil {
		return mapWriteError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// SavePriceTier inserts or updates a tier by name.
func (db *DB) SavePriceTier(ctx context.Context, t *model.PriceTier) error {
	err := db.QueryRowContext(ctx, `
		INSERT INTO price_tiers (name, discount_percent) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET discount_percent = excluded.discount_percent
		RETURNING id`,
		t.Name, t.DiscountPercent,
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("save price tier: %w", err)
	}
	return nil
}

// ListPriceTiers returns all tiers.
func (db *DB) ListPriceTiers(ctx context.Context) ([]model.PriceTier, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, discount_percent FROM price_tiers ORDER BY discount_percent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.PriceTier, 0)
	for rows.Next() {
		var t model.PriceTier
		if err := rows.Scan(&t.ID, &t.Name, &t.DiscountPercent); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetPriceTier returns a tier by id.
func (db *DB) GetPriceTier(ctx context.Context, id int64) (*model.PriceTier, error) {
	var t model.PriceTier
	err := db.QueryRowContext(ctx, `SELECT id, name, discount_percent FROM price_tiers WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.DiscountPercent)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func mapWriteError(err error) error {
	if isUniqueViolation(err) {
		return model.ErrSlugTaken
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("referenced row: %w", model.ErrNotFound)
	}
	return err
}
