package b2b

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"bakehouse/internal/db"
	"bakehouse/internal/events"
	"bakehouse/internal/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []events.ApplicationEvent
	types  []string
}

func (r *recorder) PublishPayload(_ context.Context, eventType, _ string, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, eventType)
	r.events = append(r.events, payload.(events.ApplicationEvent))
}

func newTestService(t *testing.T) (*Service, *db.DB, *recorder) {
	t.Helper()
	logger := zerolog.Nop()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "bakehouse.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	rec := &recorder{}
	return NewService(database, rec, &logger), database, rec
}

func validApplication() *model.Application {
	return &model.Application{
		CompanyName: " Cafe Nord ",
		TaxID:       "DE811907980",
		ContactName: "Jo Berg",
		Email:       "jo@cafe-nord.example",
		Phone:       "+49 40 5555",
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, rec := newTestService(t)

	err := svc.Submit(context.Background(), &model.Application{Email: "not-an-email"})
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	for _, field := range []string{"company_name", "tax_id", "contact_name", "email", "phone"} {
		assert.Contains(t, verr.Fields, field)
	}
	assert.Empty(t, rec.events)
}

func TestSubmitAndApprove(t *testing.T) {
	svc, database, rec := newTestService(t)
	ctx := context.Background()

	tier := &model.PriceTier{Name: "cafe", DiscountPercent: 10}
	require.NoError(t, database.SavePriceTier(ctx, tier))

	a := validApplication()
	require.NoError(t, svc.Submit(ctx, a))
	assert.Equal(t, "Cafe Nord", a.CompanyName)
	assert.Equal(t, model.ApplicationPending, a.Status)

	pending, err := svc.List(ctx, model.ApplicationPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	org, err := svc.Approve(ctx, a.ID, "mila", &tier.ID)
	require.NoError(t, err)
	require.NotNil(t, org.PriceTierID)
	assert.Equal(t, tier.ID, *org.PriceTierID)

	require.Len(t, rec.events, 2)
	assert.Equal(t, []string{events.TypeApplicationSubmitted, events.TypeApplicationReviewed}, rec.types)
	assert.Equal(t, "approved", rec.events[1].Status)
	require.NotNil(t, rec.events[1].OrganizationID)
	assert.Equal(t, org.ID, *rec.events[1].OrganizationID)

	err = svc.Reject(ctx, a.ID, "mila", "duplicate")
	assert.ErrorIs(t, err, model.ErrAlreadyProcessed)
}

func TestApproveUnknownTier(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := validApplication()
	require.NoError(t, svc.Submit(ctx, a))

	missing := int64(42)
	_, err := svc.Approve(ctx, a.ID, "mila", &missing)
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "price_tier_id")

	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationPending, got.Status)
}

func TestReject(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	a := validApplication()
	require.NoError(t, svc.Submit(ctx, a))

	var verr *model.ValidationError
	require.ErrorAs(t, svc.Reject(ctx, a.ID, "mila", " "), &verr)

	require.NoError(t, svc.Reject(ctx, a.ID, "mila", "no tax registration"))
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ApplicationRejected, got.Status)
	assert.Equal(t, "no tax registration", got.RejectReason)
	assert.Equal(t, "rejected", rec.events[len(rec.events)-1].Status)

	_, err = svc.List(ctx, "archived")
	assert.ErrorAs(t, err, &verr)
}

func TestConcurrentDecisionsHaveOneWinner(t *testing.T) {
	svc, database, _ := newTestService(t)
	ctx := context.Background()
	a := validApplication()
	require.NoError(t, svc.Submit(ctx, a))

	const reviewers = 4
	var wg sync.WaitGroup
	errs := make([]error, reviewers)
	for i := 0; i < reviewers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, errs[i] = svc.Approve(ctx, a.ID, "approver", nil)
			} else {
				errs[i] = svc.Reject(ctx, a.ID, "rejector", "not eligible")
			}
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, model.ErrAlreadyProcessed), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, wins)

	n, err := database.CountOrganizations(ctx, a.ID)
	require.NoError(t, err)
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	if got.Status == model.ApplicationApproved {
		assert.Equal(t, 1, n)
	} else {
		assert.Equal(t, 0, n)
	}
}

func TestOrganizationAccessToken(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := validApplication()
	require.NoError(t, svc.Submit(ctx, a))

	org, err := svc.Approve(ctx, a.ID, "mila", nil)
	require.NoError(t, err)
	require.NotEmpty(t, org.AccessToken)

	got, err := svc.Authenticate(ctx, org.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)
	assert.Empty(t, got.AccessToken)

	for _, bad := range []string{"", "bho_nope", HashToken(org.AccessToken)} {
		_, err := svc.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}

	rotated, err := svc.RotateToken(ctx, org.ID)
	require.NoError(t, err)
	assert.NotEqual(t, org.AccessToken, rotated.AccessToken)

	_, err = svc.Authenticate(ctx, org.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
	got, err = svc.Authenticate(ctx, rotated.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, org.ID, got.ID)

	_, err = svc.RotateToken(ctx, 404)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
