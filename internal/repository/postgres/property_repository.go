package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domainErrors "github.com/cassiomorais/realestate/internal/domain/errors"
	"github.com/cassiomorais/realestate/internal/domain/property"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const propertyColumns = `id, title, description, price::text, address, square_meters,
	bedrooms, bathrooms, parking_spots, sold, owner_id, photo_key, created_at`

// PropertyRepository implements property.Repository using PostgreSQL.
type PropertyRepository struct {
	pool *pgxpool.Pool
}

func NewPropertyRepository(pool *pgxpool.Pool) *PropertyRepository {
	return &PropertyRepository{pool: pool}
}

func (r *PropertyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *PropertyRepository) Create(ctx context.Context, p *property.Property) error {
	err := r.db(ctx).QueryRow(ctx,
		`INSERT INTO properties
		 (title, description, price, address, square_meters, bedrooms, bathrooms, parking_spots, sold, owner_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		p.Title, p.Description, centsToNumericString(p.Price), p.Address, p.SquareMeters,
		p.Bedrooms, p.Bathrooms, p.ParkingSpots, p.Sold, p.OwnerID, p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domainErrors.ErrUserNotFound
		}
		return fmt.Errorf("insert property: %w", err)
	}
	return nil
}

func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*property.Property, error) {
	return scanProperty(r.db(ctx).QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1`, id))
}

// Lock retrieves the property and blocks concurrent writers until the transaction ends.
func (r *PropertyRepository) Lock(ctx context.Context, id int64) (*property.Property, error) {
	return scanProperty(r.db(ctx).QueryRow(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = $1 FOR UPDATE`, id))
}

func (r *PropertyRepository) Update(ctx context.Context, p *property.Property) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE properties SET title = $1, description = $2, address = $3, price = $4
		 WHERE id = $5`,
		p.Title, p.Description, p.Address, centsToNumericString(p.Price), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPropertyNotFound
	}
	return nil
}

// MarkSold flips the sold flag only if it is still false. The returned bool
// reports whether this call made the change.
func (r *PropertyRepository) MarkSold(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE properties SET sold = TRUE WHERE id = $1 AND sold = FALSE`, id)
	if err != nil {
		return false, fmt.Errorf("mark property sold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PropertyRepository) SetPhoto(ctx context.Context, id int64, key string) error {
	tag, err := r.db(ctx).Exec(ctx, `UPDATE properties SET photo_key = $1 WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set property photo: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPropertyNotFound
	}
	return nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM properties WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete property: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrPropertyNotFound
	}
	return nil
}

// List browses listings, newest first.
func (r *PropertyRepository) List(ctx context.Context, f property.ListFilter) ([]*property.Property, error) {
	query, args := buildPropertyListQuery(f)

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	defer rows.Close()

	var properties []*property.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		properties = append(properties, p)
	}
	return properties, rows.Err()
}

func buildPropertyListQuery(f property.ListFilter) (string, []any) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + propertyColumns + ` FROM properties WHERE 1=1`)
	args := []any{}
	argIdx := 1

	if q := strings.TrimSpace(f.Query); q != "" {
		fmt.Fprintf(&sb, " AND (title ILIKE $%d OR description ILIKE $%d OR address ILIKE $%d)", argIdx, argIdx, argIdx)
		args = append(args, "%"+escapeLike(q)+"%")
		argIdx++
	}
	if f.MinPrice != nil {
		fmt.Fprintf(&sb, " AND price >= $%d", argIdx)
		args = append(args, centsToNumericString(*f.MinPrice))
		argIdx++
	}
	if f.MaxPrice != nil {
		fmt.Fprintf(&sb, " AND price <= $%d", argIdx)
		args = append(args, centsToNumericString(*f.MaxPrice))
		argIdx++
	}
	if f.Sold != nil {
		fmt.Fprintf(&sb, " AND sold = $%d", argIdx)
		args = append(args, *f.Sold)
		argIdx++
	}
	if f.OwnerID != nil {
		fmt.Fprintf(&sb, " AND owner_id = $%d", argIdx)
		args = append(args, *f.OwnerID)
		argIdx++
	}

	fmt.Fprintf(&sb, " ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, clampLimit(f.Limit), max(f.Offset, 0))
	return sb.String(), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func scanProperty(s scanner) (*property.Property, error) {
	p := &property.Property{}
	var priceStr string
	err := s.Scan(
		&p.ID, &p.Title, &p.Description, &priceStr, &p.Address, &p.SquareMeters,
		&p.Bedrooms, &p.Bathrooms, &p.ParkingSpots, &p.Sold, &p.OwnerID, &p.PhotoKey, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrPropertyNotFound
		}
		return nil, fmt.Errorf("scan property: %w", err)
	}

	cents, err := numericStringToCents(priceStr)
	if err != nil {
		return nil, fmt.Errorf("parse price: %w", err)
	}
	p.Price = cents
	return p, nil
}
