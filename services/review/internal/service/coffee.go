package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/pkg/rating"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
	"github.com/jbytow/coffeetica/services/review/internal/repository"
)

// CoffeeService assembles coffee details with their rating aggregate.
type CoffeeService struct {
	coffees repository.CoffeeRepository
	reviews repository.ReviewRepository
	cache   repository.DetailsCache
	logger  *slog.Logger
}

// NewCoffeeService creates a new coffee service. cache may be nil.
func NewCoffeeService(coffees repository.CoffeeRepository, reviews repository.ReviewRepository, cache repository.DetailsCache, logger *slog.Logger) *CoffeeService {
	return &CoffeeService{
		coffees: coffees,
		reviews: reviews,
		cache:   cache,
		logger:  logger,
	}
}

// GetDetails returns a coffee with its half-star average, review count and up
// to three newest reviews. Cache errors degrade to a direct read.
func (s *CoffeeService) GetDetails(ctx context.Context, id int64) (*domain.CoffeeDetails, error) {
	if s.cache != nil {
		d, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "coffee details cache read failed",
				slog.Int64("coffee_id", id),
				slog.String("error", err.Error()),
			)
		} else if ok {
			return d, nil
		}
	}

	coffee, err := s.coffees.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	sum, count, err := s.reviews.RatingStats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("rating stats: %w", err)
	}

	latest, _, err := s.reviews.List(ctx, domain.ReviewFilter{
		CoffeeID:  id,
		Sort:      domain.SortCreatedAt,
		Direction: domain.Desc,
		Page:      pagination.Params{Size: domain.LatestReviewsLimit},
	})
	if err != nil {
		return nil, fmt.Errorf("latest reviews: %w", err)
	}

	details := &domain.CoffeeDetails{
		Coffee:            *coffee,
		AverageRating:     rating.FromSum(sum, count),
		TotalReviewsCount: count,
		LatestReviews:     latest,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, details); err != nil {
			s.logger.WarnContext(ctx, "coffee details cache write failed",
				slog.Int64("coffee_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return details, nil
}
