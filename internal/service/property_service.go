package service

import (
	"context"
	"fmt"
	"io"

	"github.com/cassiomorais/realestate/internal/domain/payment"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/cassiomorais/realestate/internal/infrastructure/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PropertyService manages listings and their photos.
type PropertyService struct {
	propertyRepo   property.Repository
	paymentRepo    payment.Repository
	txManager      TransactionManager
	authz          *AuthzService
	photos         storage.PhotoStore
	thumbnailWidth int
	cache          StatsCache
	logger         zerolog.Logger
}

func NewPropertyService(
	propertyRepo property.Repository,
	paymentRepo payment.Repository,
	txManager TransactionManager,
	authz *AuthzService,
	photos storage.PhotoStore,
	thumbnailWidth int,
	logger zerolog.Logger,
) *PropertyService {
	return &PropertyService{
		propertyRepo:   propertyRepo,
		paymentRepo:    paymentRepo,
		txManager:      txManager,
		authz:          authz,
		photos:         photos,
		thumbnailWidth: thumbnailWidth,
		logger:         logger,
	}
}

// WithStatsCache invalidates the cached statistics report whenever a listing
// is created, repriced or deleted.
func (s *PropertyService) WithStatsCache(cache StatsCache) *PropertyService {
	s.cache = cache
	return s
}

// Create publishes a listing owned by the caller.
func (s *PropertyService) Create(ctx context.Context, d property.Details) (*property.Property, error) {
	ownerID, err := s.authz.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	p, err := property.NewProperty(ownerID, d)
	if err != nil {
		return nil, err
	}
	if err := s.propertyRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	invalidateStats(ctx, s.cache, s.logger)

	s.logger.Info().Int64("property_id", p.ID).Int64("owner_id", ownerID).Msg("Property created")
	return p, nil
}

func (s *PropertyService) Get(ctx context.Context, id int64) (*property.Property, error) {
	return s.propertyRepo.GetByID(ctx, id)
}

func (s *PropertyService) List(ctx context.Context, filter property.ListFilter) ([]*property.Property, error) {
	return s.propertyRepo.List(ctx, filter)
}

// Update edits a listing. Only the owner or an admin may do it.
func (s *PropertyService) Update(ctx context.Context, id int64, u property.Update) (*property.Property, error) {
	p, err := s.authz.VerifyPropertyOwnership(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := p.Apply(u); err != nil {
		return nil, err
	}
	if err := s.propertyRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	if u.Price != nil {
		invalidateStats(ctx, s.cache, s.logger)
	}
	return p, nil
}

// Delete removes a listing and every payment made for it.
func (s *PropertyService) Delete(ctx context.Context, id int64) error {
	if _, err := s.authz.VerifyPropertyOwnership(ctx, id); err != nil {
		return err
	}

	var removed int64
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		// Lock first so a settling payment job cannot interleave with the delete.
		if _, err := s.propertyRepo.Lock(txCtx, id); err != nil {
			return err
		}
		n, err := s.paymentRepo.DeleteByProperty(txCtx, id)
		if err != nil {
			return err
		}
		removed = n
		return s.propertyRepo.Delete(txCtx, id)
	})
	if err != nil {
		return err
	}
	invalidateStats(ctx, s.cache, s.logger)

	s.logger.Info().Int64("property_id", id).Int64("payments_removed", removed).Msg("Property deleted")
	return nil
}

// UploadPhoto stores a resized copy of the image and attaches it to the listing.
func (s *PropertyService) UploadPhoto(ctx context.Context, id int64, r io.Reader) (string, error) {
	if _, err := s.authz.VerifyPropertyOwnership(ctx, id); err != nil {
		return "", err
	}

	thumb, contentType, ext, err := storage.Thumbnail(r, s.thumbnailWidth)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("properties/%d/%s.%s", id, uuid.NewString(), ext)
	if err := s.photos.Save(ctx, key, thumb, contentType); err != nil {
		return "", err
	}
	if err := s.propertyRepo.SetPhoto(ctx, id, key); err != nil {
		return "", err
	}
	return key, nil
}

// OpenPhoto returns the listing photo, or storage.ErrPhotoNotFound when it has none.
func (s *PropertyService) OpenPhoto(ctx context.Context, id int64) (io.ReadCloser, error) {
	p, err := s.propertyRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.PhotoKey == nil {
		return nil, storage.ErrPhotoNotFound
	}
	return s.photos.Open(ctx, *p.PhotoKey)
}
