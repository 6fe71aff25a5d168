// Package b2b handles wholesale account applications. Approval and rejection
// are atomic claims on the pending row, so a decision is made exactly once.
package b2b

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"bakehouse/internal/events"
	"bakehouse/internal/metrics"
	"bakehouse/internal/model"
	"github.com/rs/zerolog"
)

// Repository is the application persistence the workflow needs.
type Repository interface {
	CreateApplication(ctx context.Context, a *model.Application) error
	GetApplication(ctx context.Context, id int64) (*model.Application, error)
	ListApplications(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error)
	ApproveApplication(ctx context.Context, id int64, reviewer string, priceTierID *int64, tokenHash string) (*model.Organization, error)
	RejectApplication(ctx context.Context, id int64, reviewer, reason string) error
	GetPriceTier(ctx context.Context, id int64) (*model.PriceTier, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	GetOrganizationByToken(ctx context.Context, tokenHash string) (*model.Organization, error)
	SetOrganizationToken(ctx context.Context, id int64, tokenHash string) error
}

type Publisher interface {
	PublishPayload(ctx context.Context, eventType, key string, payload any)
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    *zerolog.Logger
}

func NewService(repo Repository, publisher Publisher, logger *zerolog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

func validate(a *model.Application) error {
	a.CompanyName = strings.TrimSpace(a.CompanyName)
	a.TaxID = strings.TrimSpace(a.TaxID)
	a.ContactName = strings.TrimSpace(a.ContactName)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Message = strings.TrimSpace(a.Message)

	verr := &model.ValidationError{}
	if a.CompanyName == "" {
		verr.Add("company_name", "company name is required")
	}
	if a.TaxID == "" {
		verr.Add("tax_id", "tax id is required")
	}
	if a.ContactName == "" {
		verr.Add("contact_name", "contact name is required")
	}
	if a.Email == "" {
		verr.Add("email", "email is required")
	} else if _, err := mail.ParseAddress(a.Email); err != nil {
		verr.Add("email", "invalid email address")
	}
	if a.Phone == "" {
		verr.Add("phone", "phone is required")
	}
	if len(a.Message) > 2000 {
		verr.Add("message", "message must be at most 2000 characters")
	}
	return verr.Err()
}

// Submit stores a new pending application.
func (s *Service) Submit(ctx context.Context, a *model.Application) error {
	if err := validate(a); err != nil {
		return err
	}
	if err := s.repo.CreateApplication(ctx, a); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	s.publish(ctx, events.TypeApplicationSubmitted, a, "", nil)
	s.logger.Info().Int64("application_id", a.ID).Str("company", a.CompanyName).Msg("B2B application submitted")
	return nil
}

func (s *Service) List(ctx context.Context, status model.ApplicationStatus) ([]model.Application, error) {
	switch status {
	case "", model.ApplicationPending, model.ApplicationApproved, model.ApplicationRejected:
	default:
		return nil, model.NewValidationError("status", "status must be one of pending, approved, rejected")
	}
	return s.repo.ListApplications(ctx, status)
}

func (s *Service) Get(ctx context.Context, id int64) (*model.Application, error) {
	return s.repo.GetApplication(ctx, id)
}

// Approve creates the organization for a pending application. A second
// decision on the same application returns model.ErrAlreadyProcessed. The
// returned organization carries its new access token; only the hash is stored.
func (s *Service) Approve(ctx context.Context, id int64, reviewer string, priceTierID *int64) (*model.Organization, error) {
	reviewer = strings.TrimSpace(reviewer)
	if reviewer == "" {
		return nil, model.NewValidationError("reviewer", "reviewer is required")
	}
	if priceTierID != nil {
		if _, err := s.repo.GetPriceTier(ctx, *priceTierID); errors.Is(err, model.ErrNotFound) {
			return nil, model.NewValidationError("price_tier_id", "unknown price tier")
		} else if err != nil {
			return nil, fmt.Errorf("get price tier: %w", err)
		}
	}

	token, hash := newAccessToken()
	org, err := s.repo.ApproveApplication(ctx, id, reviewer, priceTierID, hash)
	if err != nil {
		s.recordLoss(id, "approve", err)
		return nil, err
	}
	org.AccessToken = token
	metrics.IncApplicationDecision("approved")

	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("application_id", id).Msg("Approved application could not be reloaded")
		a = &model.Application{ID: id, CompanyName: org.Name, Status: model.ApplicationApproved}
	}
	s.publish(ctx, events.TypeApplicationReviewed, a, reviewer, &org.ID)
	s.logger.Info().Int64("application_id", id).Int64("organization_id", org.ID).Str("reviewer", reviewer).Msg("B2B application approved")
	return org, nil
}

// Reject closes a pending application with a reason.
func (s *Service) Reject(ctx context.Context, id int64, reviewer, reason string) error {
	reviewer = strings.TrimSpace(reviewer)
	reason = strings.TrimSpace(reason)
	verr := &model.ValidationError{}
	if reviewer == "" {
		verr.Add("reviewer", "reviewer is required")
	}
	if reason == "" {
		verr.Add("reason", "reason is required")
	}
	if err := verr.Err(); err != nil {
		return err
	}

	if err := s.repo.RejectApplication(ctx, id, reviewer, reason); err != nil {
		s.recordLoss(id, "reject", err)
		return err
	}
	metrics.IncApplicationDecision("rejected")

	a, err := s.repo.GetApplication(ctx, id)
	if err != nil {
		a = &model.Application{ID: id, Status: model.ApplicationRejected}
	}
	s.publish(ctx, events.TypeApplicationReviewed, a, reviewer, nil)
	s.logger.Info().Int64("application_id", id).Str("reviewer", reviewer).Msg("B2B application rejected")
	return nil
}

func (s *Service) recordLoss(id int64, op string, err error) {
	if errors.Is(err, model.ErrAlreadyProcessed) {
		metrics.IncApplicationDecision("already_processed")
		s.logger.Warn().Int64("application_id", id).Str("op", op).Msg("B2B application already processed")
	}
}

func (s *Service) publish(ctx context.Context, eventType string, a *model.Application, reviewer string, orgID *int64) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishPayload(ctx, eventType, fmt.Sprintf("application-%d", a.ID), events.ApplicationEvent{
		ApplicationID:  a.ID,
		CompanyName:    a.CompanyName,
		ContactName:    a.ContactName,
		Email:          a.Email,
		Status:         string(a.Status),
		Reviewer:       reviewer,
		OrganizationID: orgID,
	})
}
