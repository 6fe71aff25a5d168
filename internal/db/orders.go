package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bakehouse/internal/model"
)

const orderColumns = `id, number, store_id, organization_id, customer_name, customer_phone, customer_email,
	pickup_date, pickup_time, payment_method, status, subtotal_cents, discount_cents, total_cents,
	created_at, updated_at`

func scanOrder(row rowScanner) (*model.Order, error) {
	var o model.Order
	var orgID sql.NullInt64
	if err := row.Scan(
		&o.ID, &o.Number, &o.StoreID, &orgID, &o.CustomerName, &o.CustomerPhone, &o.CustomerEmail,
		&o.PickupDate, &o.PickupTime, &o.PaymentMethod, &o.Status, &o.SubtotalCents, &o.DiscountCents, &o.TotalCents,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if orgID.Valid {
		o.OrganizationID = &orgID.Int64
	}
	return &o, nil
}

// CreateOrder stores an order with its items in one transaction and fills o.ID.
func (db *DB) CreateOrder(ctx context.Context, o *model.Order) error {
	if o == nil {
		return fmt.Errorf("order is nil")
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("order has no items")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	if o.Status == "" {
		o.Status = model.OrderPending
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO orders (
			number, store_id, organization_id, customer_name, customer_phone, customer_email,
			pickup_date, pickup_time, payment_method, status, subtotal_cents, discount_cents, total_cents,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.Number, o.StoreID, o.OrganizationID, o.CustomerName, o.CustomerPhone, o.CustomerEmail,
		o.PickupDate, o.PickupTime, o.PaymentMethod, o.Status, o.SubtotalCents, o.DiscountCents, o.TotalCents,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, item := range o.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, name, quantity, price_cents)
			VALUES (?, ?, ?, ?, ?)`,
			id, item.ProductID, item.Name, item.Quantity, item.PriceCents,
		); err != nil {
			return fmt.Errorf("insert order item %d: %w", item.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	o.ID = id
	o.CreatedAt, o.UpdatedAt = now, now
	return nil
}

// GetOrder returns an order with its items.
func (db *DB) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	o, err := scanOrder(db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT product_id, name, quantity, price_cents FROM order_items WHERE order_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item model.OrderItem
		if err := rows.Scan(&item.ProductID, &item.Name, &item.Quantity, &item.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, item)
	}
	return o, rows.Err()
}

// ListOrders returns orders matching f, latest pickup first. Items are not loaded.
func (db *DB) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var (
		where []string
		args  []any
	)
	if f.StoreID > 0 {
		where = append(where, "store_id = ?")
		args = append(args, f.StoreID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.From != "" {
		where = append(where, "pickup_date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		where = append(where, "pickup_date <= ?")
		args = append(args, f.To)
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY pickup_date DESC, pickup_time DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// UpdateOrderStatus moves an order from one status to another only if it is
// still in from. A concurrent change yields model.ErrStatusConflict.
func (db *DB) UpdateOrderStatus(ctx context.Context, id int64, from, to model.OrderStatus, actor string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, id).Scan(&exists); err != nil {
			return err
		}
		if exists == 0 {
			return model.ErrNotFound
		}
		return model.ErrStatusConflict
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, from, to, actor, now,
	); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}

	return tx.Commit()
}
