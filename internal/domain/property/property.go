package property

import (
	"strings"
	"time"

	"github.com/cassiomorais/realestate/internal/domain/errors"
)

// Property is a listing published by a user.
type Property struct {
	ID           int64
	Title        string
	Description  string
	Price        int64 // in cents
	Address      string
	SquareMeters float64
	Bedrooms     int
	Bathrooms    int
	ParkingSpots int
	Sold         bool
	OwnerID      int64
	PhotoKey     *string
	CreatedAt    time.Time
}

// Details holds the editable attributes of a listing.
type Details struct {
	Title        string
	Description  string
	Price        int64 // in cents
	Address      string
	SquareMeters float64
	Bedrooms     int
	Bathrooms    int
	ParkingSpots int
}

// NewProperty validates the details and builds an unsold listing owned by ownerID.
func NewProperty(ownerID int64, d Details) (*Property, error) {
	if ownerID <= 0 {
		return nil, errors.NewValidationError("owner_id", "is required")
	}
	d = d.normalized()
	if err := d.Validate(); err != nil {
		return nil, err
	}

	return &Property{
		Title:        d.Title,
		Description:  d.Description,
		Price:        d.Price,
		Address:      d.Address,
		SquareMeters: d.SquareMeters,
		Bedrooms:     d.Bedrooms,
		Bathrooms:    d.Bathrooms,
		ParkingSpots: d.ParkingSpots,
		OwnerID:      ownerID,
		CreatedAt:    time.Now(),
	}, nil
}

// Validate checks the listing rules: text fields present, positive price and area,
// non-negative room counts.
func (d Details) Validate() error {
	switch {
	case d.Title == "":
		return errors.NewValidationError("title", "is required")
	case d.Description == "":
		return errors.NewValidationError("description", "is required")
	case d.Address == "":
		return errors.NewValidationError("address", "is required")
	case d.Price <= 0:
		return errors.NewValidationError("price", "must be greater than 0")
	case d.SquareMeters <= 0:
		return errors.NewValidationError("square_meters", "must be greater than 0")
	case d.Bedrooms < 0 || d.Bathrooms < 0 || d.ParkingSpots < 0:
		return errors.NewValidationError("rooms", "cannot be negative")
	}
	return nil
}

func (d Details) normalized() Details {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Address = strings.TrimSpace(d.Address)
	return d
}

// Update is the subset of fields an owner may change after publishing.
type Update struct {
	Title       *string
	Description *string
	Address     *string
	Price       *int64
}

// Apply merges u into the listing. Sold listings cannot be edited.
func (p *Property) Apply(u Update) error {
	if p.Sold {
		return errors.ErrPropertyAlreadySold
	}

	next := Details{
		Title:        p.Title,
		Description:  p.Description,
		Price:        p.Price,
		Address:      p.Address,
		SquareMeters: p.SquareMeters,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		ParkingSpots: p.ParkingSpots,
	}
	if u.Title != nil {
		next.Title = *u.Title
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Address != nil {
		next.Address = *u.Address
	}
	if u.Price != nil {
		next.Price = *u.Price
	}

	next = next.normalized()
	if err := next.Validate(); err != nil {
		return err
	}

	p.Title = next.Title
	p.Description = next.Description
	p.Address = next.Address
	p.Price = next.Price
	return nil
}

// IsOwnedBy reports whether userID published the listing.
func (p *Property) IsOwnedBy(userID int64) bool {
	return p.OwnerID == userID
}
