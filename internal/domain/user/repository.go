package user

import "context"

// Repository defines the interface for user persistence
type Repository interface {
	// Create stores the user and assigns its ID. Returns ErrDuplicateUser when
	// the username or email is taken.
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]*User, error)
	SetActive(ctx context.Context, id int64, active bool) error
	SetAdmin(ctx context.Context, id int64, isAdmin bool) error
}
