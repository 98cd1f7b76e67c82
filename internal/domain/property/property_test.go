package property_test

import (
	"testing"

	"github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDetails() property.Details {
	return property.Details{
		Title:        "Casa en Providencia",
		Description:  "Three bedroom house",
		Price:        100_000_00,
		Address:      "Av. Providencia 123",
		SquareMeters: 120,
		Bedrooms:     3,
		Bathrooms:    2,
		ParkingSpots: 1,
	}
}

func TestNewProperty(t *testing.T) {
	p, err := property.NewProperty(1, validDetails())
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.OwnerID)
	assert.False(t, p.Sold)
	assert.Nil(t, p.PhotoKey)
	assert.True(t, p.IsOwnedBy(1))
	assert.False(t, p.IsOwnedBy(2))
}

func TestNewProperty_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*property.Details)
		field  string
	}{
		{"blank title", func(d *property.Details) { d.Title = "   " }, "title"},
		{"no description", func(d *property.Details) { d.Description = "" }, "description"},
		{"no address", func(d *property.Details) { d.Address = "" }, "address"},
		{"zero price", func(d *property.Details) { d.Price = 0 }, "price"},
		{"zero area", func(d *property.Details) { d.SquareMeters = 0 }, "square_meters"},
		{"negative rooms", func(d *property.Details) { d.Bedrooms = -1 }, "rooms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDetails()
			tt.mutate(&d)

			_, err := property.NewProperty(1, d)
			var ve *errors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestProperty_Apply(t *testing.T) {
	p, err := property.NewProperty(1, validDetails())
	require.NoError(t, err)

	title := "Depto centro"
	price := int64(90_000_00)
	require.NoError(t, p.Apply(property.Update{Title: &title, Price: &price}))

	assert.Equal(t, "Depto centro", p.Title)
	assert.Equal(t, int64(90_000_00), p.Price)
	assert.Equal(t, "Av. Providencia 123", p.Address)
}

func TestProperty_ApplyRejectsInvalidPrice(t *testing.T) {
	p, err := property.NewProperty(1, validDetails())
	require.NoError(t, err)

	price := int64(-5)
	err = p.Apply(property.Update{Price: &price})
	assert.ErrorIs(t, err, errors.ErrValidationFailed)
	assert.Equal(t, int64(100_000_00), p.Price)
}

func TestProperty_ApplyOnSoldListing(t *testing.T) {
	p, err := property.NewProperty(1, validDetails())
	require.NoError(t, err)
	p.Sold = true

	title := "new"
	assert.ErrorIs(t, p.Apply(property.Update{Title: &title}), errors.ErrPropertyAlreadySold)
}
