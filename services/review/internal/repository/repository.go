package repository

import (
	"context"

	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	// Create stores r and fills in ID and CreatedAt. A second review by the
	// same user for the same coffee fails with apperrors.ErrAlreadyExists.
	Create(ctx context.Context, r *domain.Review) error
	GetByID(ctx context.Context, id int64) (*domain.Review, error)
	GetByUserAndCoffee(ctx context.Context, userID, coffeeID int64) (*domain.Review, error)
	Update(ctx context.Context, r *domain.Review) error
	Delete(ctx context.Context, id int64) error
	// List returns one page of reviews and the total number matching filter.
	List(ctx context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error)
	// RatingStats returns the sum and count of ratings for a coffee.
	RatingStats(ctx context.Context, coffeeID int64) (float64, int, error)
}

// CoffeeRepository defines read access to the coffee catalog.
type CoffeeRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Coffee, error)
	Create(ctx context.Context, c *domain.Coffee) error
}

// DetailsCache caches assembled coffee details. Implementations must treat a
// miss as (nil, false, nil).
type DetailsCache interface {
	Get(ctx context.Context, coffeeID int64) (*domain.CoffeeDetails, bool, error)
	Set(ctx context.Context, d *domain.CoffeeDetails) error
	Invalidate(ctx context.Context, coffeeID int64) error
}
