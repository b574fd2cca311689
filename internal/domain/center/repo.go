package center

import (
	"context"

	"github.com/google/uuid"
)

type CenterRepository interface {
	Create(ctx context.Context, c *Center) error
	GetByID(ctx context.Context, id uuid.UUID) (*Center, error)
	GetByCode(ctx context.Context, code string) (*Center, error)
	Update(ctx context.Context, c *Center) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ListFilter, limit, offset int) ([]*Center, int, error)
}

type DiscountRepository interface {
	Create(ctx context.Context, r *DiscountRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*DiscountRule, error)
	Update(ctx context.Context, r *DiscountRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByCenter(ctx context.Context, centerID uuid.UUID) ([]*DiscountRule, error)
}
