package b2b

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"bakehouse/internal/model"
	"github.com/google/uuid"
)

const tokenPrefix = "bho_"

// ErrInvalidToken is returned for unknown or revoked organization tokens.
var ErrInvalidToken = errors.New("invalid organization token")

// HashToken is the form an access token is stored and looked up in.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func newAccessToken() (token, hash string) {
	a, b := uuid.New(), uuid.New()
	token = tokenPrefix + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
	return token, HashToken(token)
}

// Authenticate resolves the organization an access token belongs to.
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Organization, error) {
	token = strings.TrimSpace(token)
	if !strings.HasPrefix(token, tokenPrefix) {
		return nil, ErrInvalidToken
	}
	org, err := s.repo.GetOrganizationByToken(ctx, HashToken(token))
	if errors.Is(err, model.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("lookup organization token: %w", err)
	}
	return org, nil
}

// RotateToken issues a new access token for an organization and revokes the old one.
func (s *Service) RotateToken(ctx context.Context, orgID int64) (*model.Organization, error) {
	token, hash := newAccessToken()
	if err := s.repo.SetOrganizationToken(ctx, orgID, hash); err != nil {
		return nil, err
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	org.AccessToken = token
	s.logger.Info().Int64("organization_id", orgID).Msg("Organization token rotated")
	return org, nil
}
