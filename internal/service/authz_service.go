package service

import (
	"context"

	"github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/middleware"
)

type AuthzService struct {
	propertyRepo property.Repository
}

func NewAuthzService(propertyRepo property.Repository) *AuthzService {
	return &AuthzService{propertyRepo: propertyRepo}
}

// VerifyPropertyOwnership loads the listing and checks the caller owns it or is an admin.
func (s *AuthzService) VerifyPropertyOwnership(ctx context.Context, propertyID int64) (*property.Property, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return nil, errors.ErrUnauthorized
	}

	prop, err := s.propertyRepo.GetByID(ctx, propertyID)
	if err != nil {
		return nil, err
	}

	if !prop.IsOwnedBy(userID) && !middleware.IsAdmin(ctx) {
		return nil, errors.ErrForbidden
	}

	return prop, nil
}

// CurrentUser returns the authenticated caller's id.
func (s *AuthzService) CurrentUser(ctx context.Context) (int64, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return 0, errors.ErrUnauthorized
	}
	return userID, nil
}
