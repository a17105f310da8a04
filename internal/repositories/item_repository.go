package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"github.com/bluefin-labs/enterprise-api/internal/models"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Item, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error)
	SearchByOwner(ctx context.Context, ownerID uuid.UUID, query string, limit, offset int) ([]models.Item, error)
	CountSearchByOwner(ctx context.Context, ownerID uuid.UUID, query string) (int, error)
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

type itemRepo struct {
	db DB
}

func NewItemRepository(db DB) ItemRepository {
	return &itemRepo{db: db}
}

const baseSelectItem = `
    SELECT id, name, description, price, quantity, owner_id, created_at, updated_at
    FROM items
`

func (r *itemRepo) Create(ctx context.Context, item *models.Item) error {
	q := `
        INSERT INTO items (id, name, description, price, quantity, owner_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, q, item.ID, item.Name, item.Description, item.Price, item.Quantity, item.OwnerID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return utils.ErrItemNameExists
		}
		return err
	}
	return nil
}

func (r *itemRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	row := r.db.QueryRow(ctx, baseSelectItem+" WHERE id = $1", id)
	var it models.Item
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Quantity, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *itemRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Item, error) {
	q := baseSelectItem + `
        WHERE owner_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `
	rows, err := r.db.Query(ctx, q, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Quantity, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *itemRepo) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM items WHERE owner_id = $1`, ownerID).Scan(&count)
	return count, err
}

func (r *itemRepo) SearchByOwner(ctx context.Context, ownerID uuid.UUID, query string, limit, offset int) ([]models.Item, error) {
	q := baseSelectItem + `
        WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%'
        ORDER BY created_at DESC
        LIMIT $3 OFFSET $4
    `
	rows, err := r.db.Query(ctx, q, ownerID, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Item
	for rows.Next() {
		var it models.Item
		if err := rows.Scan(&it.ID, &it.Name, &it.Description, &it.Price, &it.Quantity, &it.OwnerID, &it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *itemRepo) CountSearchByOwner(ctx context.Context, ownerID uuid.UUID, query string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM items WHERE owner_id = $1 AND name ILIKE '%' || $2 || '%'`,
		ownerID, query,
	).Scan(&count)
	return count, err
}

func (r *itemRepo) Update(ctx context.Context, item *models.Item) error {
	q := `
        UPDATE items
        SET name = $2, description = $3, price = $4, quantity = $5, updated_at = NOW()
        WHERE id = $1 AND owner_id = $6
    `
	tag, err := r.db.Exec(ctx, q, item.ID, item.Name, item.Description, item.Price, item.Quantity, item.OwnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}

func (r *itemRepo) Delete(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return utils.ErrNoRowsUpdated
	}
	return nil
}
