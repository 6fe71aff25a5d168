package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bakehouse/internal/model"
)

const applicationColumns = `id, company_name, tax_id, contact_name, email, phone, message, status,
	reviewed_by, reviewed_at, reject_reason, organization_id, created_at`

func scanApplication(row rowScanner) (*model.Application, error) {
	var a model.Application
	var reviewedBy, rejectReason sql.NullString
	var reviewedAt sql.NullTime
	var orgID sql.NullInt64
	if err := row.Scan(
		&a.ID, &a.CompanyName, &a.TaxID, &a.ContactName, &a.Email, &a.Phone, &a.Message, &a.Status,
		&reviewedBy, &reviewedAt, &rejectReason, &orgID, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.ReviewedBy = reviewedBy.String
	a.RejectReason = rejectReason.String
	if reviewedAt.Valid {
		a.ReviewedAt = &reviewedAt.Time
	}
	if orgID.Valid {
		a.OrganizationID = &orgID.Int64
	}
	return &a, nil
}

// CreateApplication stores a new pending application and fills a.ID.
func (db *DB) CreateApplication(ctx context.Context, a *model.Application) error {
	now := time.Now()
	res, err := db.ExecContext(ctx, `
		INSERT INTO b2b_applications (company_name, tax_id, contact_name, email, phone, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CompanyName, a.TaxID, a.ContactName, a.Email, a.Phone, a.Message, model.ApplicationPending, now,
	)
	if err != nil {
		return err
	}
	a.ID, err = res.LastInsertId()
	a.Status = model.ApplicationPending
	a.CreatedAt = now
	return err
}

// GetApplication returns an application by id.
func (db *DB) GetApplication(ctx context.Context, id int64) (*model.Application, error) {
	a, err := scanApplication(db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM b2b_applications WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	return a, err
}

// ListApplications returns applications, newest first; empty status returns all.
func (db *DB) ListApplications(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM b2b_applications`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// claimApplication flips a pending application to status. Only one caller can
// win: the loser sees zero affected rows and gets model.ErrAlreadyProcessed.
func claimApplication(ctx context.Context, tx *sql.Tx, id int64, status model.ApplicationStatus, reviewer, reason string, now time.Time) error {
	var rejectReason any
	if reason != "" {
		rejectReason = reason
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE b2b_applications
		SET status = ?, reviewed_by = ?, reviewed_at = ?, reject_reason = ?
		WHERE id = ? AND status = ?`,
		status, reviewer, now, rejectReason, id, model.ApplicationPending,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM b2b_applications WHERE id = ?`, id).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return model.ErrNotFound
	}
	return model.ErrAlreadyProcessed
}

// ApproveApplication claims a pending application and creates its organization
// in the same transaction, so the organization exists at most once. tokenHash
// is the hashed access token of the new organization; empty stores none.
func (db *DB) ApproveApplication(ctx context.Context, id int64, reviewer string, priceTierID *int64, tokenHash string) (*model.Organization, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()
	if err := claimApplication(ctx, tx, id, model.ApplicationApproved, reviewer, "", now); err != nil {
		return nil, err
	}

	a, err := scanApplication(tx.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM b2b_applications WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("load application: %w", err)
	}

	org := &model.Organization{
		Name:          a.CompanyName,
		TaxID:         a.TaxID,
		Email:         a.Email,
		Phone:         a.Phone,
		PriceTierID:   priceTierID,
		ApplicationID: a.ID,
		CreatedAt:     now,
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO organizations (name, tax_id, email, phone, price_tier_id, application_id, token_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		org.Name, org.TaxID, org.Email, org.Phone, org.PriceTierID, org.ApplicationID, nullString(tokenHash), now,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("price tier: %w", model.ErrNotFound)
		}
		return nil, fmt.Errorf("create organization: %w", err)
	}
	if org.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE b2b_applications SET organization_id = ? WHERE id = ?`, org.ID, id,
	); err != nil {
		return nil, fmt.Errorf("link organization: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return org, nil
}

// RejectApplication claims a pending application as rejected.
func (db *DB) RejectApplication(ctx context.Context, id int64, reviewer, reason string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := claimApplication(ctx, tx, id, model.ApplicationRejected, reviewer, reason, time.Now()); err != nil {
		return err
	}
	return tx.Commit()
}

const organizationColumns = `id, name, tax_id, email, phone, price_tier_id, application_id, created_at`

func scanOrganization(row rowScanner) (*model.Organization, error) {
	var o model.Organization
	var tier sql.NullInt64
	err := row.Scan(&o.ID, &o.Name, &o.TaxID, &o.Email, &o.Phone, &tier, &o.ApplicationID, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tier.Valid {
		o.PriceTierID = &tier.Int64
	}
	return &o, nil
}

// GetOrganization returns an organization by id.
func (db *DB) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	return scanOrganization(db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id = ?`, id))
}

// GetOrganizationByToken returns the organization holding the hashed access token.
func (db *DB) GetOrganizationByToken(ctx context.Context, tokenHash string) (*model.Organization, error) {
	if tokenHash == "" {
		return nil, model.ErrNotFound
	}
	return scanOrganization(db.QueryRowContext(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE token_hash = ?`, tokenHash))
}

// SetOrganizationToken replaces the access token hash, revoking the previous token.
func (db *DB) SetOrganizationToken(ctx context.Context, id int64, tokenHash string) error {
	res, err := db.ExecContext(ctx, `UPDATE organizations SET token_hash = ? WHERE id = ?`, nullString(tokenHash), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// CountOrganizations returns how many organizations were created from an application.
func (db *DB) CountOrganizations(ctx context.Context, applicationID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM organizations WHERE application_id = ?`, applicationID).Scan(&n)
	return n, err
}
