package property

import (
	"context"
)

// Repository defines the interface for property persistence
type Repository interface {
	Create(ctx context.Context, p *Property) error
	GetByID(ctx context.Context, id int64) (*Property, error)

	// Lock retrieves a property with a blocking row lock (SELECT FOR UPDATE).
	Lock(ctx context.Context, id int64) (*Property, error)

	Update(ctx context.Context, p *Property) error

	// MarkSold flips sold to true only if it is still false. It returns false
	// when another transaction already sold the property.
	MarkSold(ctx context.Context, id int64) (bool, error)

	SetPhoto(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter ListFilter) ([]*Property, error)
}

// ListFilter defines filters for browsing listings
type ListFilter struct {
	Query    string
	MinPrice *int64
	MaxPrice *int64
	Sold     *bool
	OwnerID  *int64
	Limit    int
	Offset   int
}
