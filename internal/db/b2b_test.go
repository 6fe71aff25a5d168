package db

import (
	"context"
	"sync"
	"testing"

	"bakehouse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApplication(t *testing.T, db *DB) *model.Application {
	t.Helper()
	a := &model.Application{
		CompanyName: "Cafe Nord",
		TaxID:       "DE123",
		ContactName: "Lea",
		Email:       "lea@nord.example",
		Phone:       "+49 1",
	}
	require.NoError(t, db.CreateApplication(context.Background(), a))
	return a
}

func TestApproveApplication(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tier := &model.PriceTier{Name: "cafe", DiscountPercent: 10}
	require.NoError(t, db.SavePriceTier(ctx, tier))
	a := newApplication(t, db)

	org, err := db.ApproveApplication(ctx, a.ID, "admin", &tier.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Cafe Nord", org.Name)
	assert.Equal(t, a.ID, org.ApplicationID)

	got, err := db.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationApproved, got.Status)
	assert.Equal(t, "admin", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)
	require.NotNil(t, got.OrganizationID)
	assert.Equal(t, org.ID, *got.OrganizationID)

	stored, err := db.GetOrganization(ctx, org.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PriceTierID)
	assert.Equal(t, tier.ID, *stored.PriceTierID)

	_, err = db.ApproveApplication(ctx, a.ID, "admin", nil, "")
	assert.ErrorIs(t, err, model.ErrAlreadyProcessed)
	assert.ErrorIs(t, db.RejectApplication(ctx, a.ID, "admin", "late"), model.ErrAlreadyProcessed)

	_, err = db.ApproveApplication(ctx, 404, "admin", nil, "")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApproveUnknownTierLeavesApplicationPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := newApplication(t, db)

	missing := int64(77)
	_, err := db.ApproveApplication(ctx, a.ID, "admin", &missing, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := db.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationPending, got.Status)
}

func TestRejectApplication(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := newApplication(t, db)

	require.NoError(t, db.RejectApplication(ctx, a.ID, "admin", "no tax id"))

	got, err := db.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationRejected, got.Status)
	assert.Equal(t, "no tax id", got.RejectReason)
	assert.Nil(t, got.OrganizationID)

	pending, err := db.ListApplications(ctx, model.ApplicationPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
	all, err := db.ListApplications(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOrganizationToken(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first := newApplication(t, db)
	org, err := db.ApproveApplication(ctx, first.ID, "admin", nil, "hash-1")
	require.NoError(t, err)
	second := newApplication(t, db)
	_, err = db.ApproveApplication(ctx, second.ID, "admin", nil, "")
	require.NoError(t, err)

	got, err := db.GetOrganizationByToken(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	_, err = db.GetOrganizationByToken(ctx, "")
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, db.SetOrganizationToken(ctx, org.ID, "hash-2"))
	_, err = db.GetOrganizationByToken(ctx, "hash-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	got, err = db.GetOrganizationByToken(ctx, "hash-2")
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	assert.ErrorIs(t, db.SetOrganizationToken(ctx, 404, "hash-3"), model.ErrNotFound)
}

func TestConcurrentReviewSingleWinner(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for round := 0; round < 5; round++ {
		a := newApplication(t, db)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			_, errs[0] = db.ApproveApplication(ctx, a.ID, "alice", nil, "")
		}()
		go func() {
			defer wg.Done()
			<-start
			_, errs[1] = db.ApproveApplication(ctx, a.ID, "bob", nil, "")
		}()
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, model.ErrAlreadyProcessed)
		}
		assert.Equal(t, 1, succeeded)

		n, err := db.CountOrganizations(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}
}

func TestConcurrentApproveAndReject(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := newApplication(t, db)

	var wg sync.WaitGroup
	var approveErr, rejectErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = db.ApproveApplication(ctx, a.ID, "alice", nil, "")
	}()
	go func() {
		defer wg.Done()
		rejectErr = db.RejectApplication(ctx, a.ID, "bob", "duplicate")
	}()
	wg.Wait()

	require.True(t, (approveErr == nil) != (rejectErr == nil), "exactly one review must win")

	n, err := db.CountOrganizations(ctx, a.ID)
	require.NoError(t, err)
	if approveErr == nil {
		assert.ErrorIs(t, rejectErr, model.ErrAlreadyProcessed)
		assert.Equal(t, 1, n)
	} else {
		assert.ErrorIs(t, approveErr, model.ErrAlreadyProcessed)
		assert.Equal(t, 0, n)
	}
}
