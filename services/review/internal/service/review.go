package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/pkg/rating"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
	"github.com/jbytow/coffeetica/services/review/internal/repository"
)

// Field length limits shared with the HTTP request validation.
const (
	MaxBrewingMethodLen      = 50
	MaxBrewingDescriptionLen = 200
)

// EventPublisher publishes review domain events.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, r *domain.Review) error
	PublishReviewUpdated(ctx context.Context, r *domain.Review) error
	PublishReviewDeleted(ctx context.Context, r *domain.Review) error
}

// ReviewService implements the business logic for review operations.
type ReviewService struct {
	reviews repository.ReviewRepository
	coffees repository.CoffeeRepository
	cache   repository.DetailsCache
	events  EventPublisher
	logger  *slog.Logger
}

// NewReviewService creates a new review service. cache may be nil.
func NewReviewService(
	reviews repository.ReviewRepository,
	coffees repository.CoffeeRepository,
	cache repository.DetailsCache,
	events EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews: reviews,
		coffees: coffees,
		cache:   cache,
		events:  events,
		logger:  logger,
	}
}

// GetMine returns the caller's review of a coffee, or a NOT_FOUND error when
// there is none.
func (s *ReviewService) GetMine(ctx context.Context, userID, coffeeID int64) (*domain.Review, error) {
	return s.reviews.GetByUserAndCoffee(ctx, userID, coffeeID)
}

// GetByID returns a single review.
func (s *ReviewService) GetByID(ctx context.Context, id int64) (*domain.Review, error) {
	return s.reviews.GetByID(ctx, id)
}

// Create records the actor's review of a coffee. A second review of the same
// coffee is a conflict.
func (s *ReviewService) Create(ctx context.Context, actor domain.Actor, in domain.ReviewInput) (*domain.Review, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	coffee, err := s.coffees.GetByID(ctx, in.CoffeeID)
	if err != nil {
		return nil, err
	}

	if _, err := s.reviews.GetByUserAndCoffee(ctx, actor.UserID, in.CoffeeID); err == nil {
		return nil, reviewExists(in.CoffeeID)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("check existing review: %w", err)
	}

	review := &domain.Review{
		CoffeeID:   in.CoffeeID,
		CoffeeName: coffee.Name,
		UserID:     actor.UserID,
		UserName:   actor.Username,
	}
	in.Apply(review)

	if err := s.reviews.Create(ctx, review); err != nil {
		// Lost a race with a concurrent create by the same user.
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, reviewExists(in.CoffeeID)
		}
		return nil, fmt.Errorf("create review: %w", err)
	}

	s.afterMutation(ctx, review, s.events.PublishReviewCreated)

	s.logger.InfoContext(ctx, "review created",
		slog.Int64("review_id", review.ID),
		slog.Int64("coffee_id", review.CoffeeID),
		slog.Int64("user_id", review.UserID),
	)
	return review, nil
}

// Update replaces the editable fields of a review. The review's coffee and
// creation time never change.
func (s *ReviewService) Update(ctx context.Context, actor domain.Actor, id int64, in domain.ReviewInput) (*domain.Review, error) {
	in = normalize(in)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(review) {
		return nil, apperrors.Forbidden("only the author or an administrator can modify this review")
	}
	if in.CoffeeID != review.CoffeeID {
		return nil, apperrors.InvalidInput("coffeeId does not match the review's coffee")
	}

	in.Apply(review)
	if err := s.reviews.Update(ctx, review); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update review: %w", err)
	}

	s.afterMutation(ctx, review, s.events.PublishReviewUpdated)

	s.logger.InfoContext(ctx, "review updated",
		slog.Int64("review_id", review.ID),
		slog.Int64("actor_id", actor.UserID),
	)
	return review, nil
}

// Delete removes a review.
func (s *ReviewService) Delete(ctx context.Context, actor domain.Actor, id int64) error {
	review, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !actor.CanModify(review) {
		return apperrors.Forbidden("only the author or an administrator can delete this review")
	}

	if err := s.reviews.Delete(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete review: %w", err)
	}

	s.afterMutation(ctx, review, s.events.PublishReviewDeleted)

	s.logger.InfoContext(ctx, "review deleted",
		slog.Int64("review_id", id),
		slog.Int64("actor_id", actor.UserID),
	)
	return nil
}

// List returns one page of a coffee's or a user's reviews. Exactly one subject
// may be given; with neither the page is empty.
func (s *ReviewService) List(ctx context.Context, filter domain.ReviewFilter) (pagination.Page[domain.Review], error) {
	switch {
	case filter.CoffeeID != 0 && filter.UserID != 0:
		return pagination.Page[domain.Review]{}, apperrors.InvalidInput("coffeeId and userId are mutually exclusive")
	case filter.CoffeeID == 0 && filter.UserID == 0:
		return pagination.Empty[domain.Review](filter.Page), nil
	}
	if filter.Sort == "" {
		filter.Sort, filter.Direction = domain.SortCreatedAt, domain.Desc
	}

	reviews, total, err := s.reviews.List(ctx, filter)
	if err != nil {
		return pagination.Page[domain.Review]{}, fmt.Errorf("list reviews: %w", err)
	}
	return pagination.NewPage(reviews, total, filter.Page), nil
}

// afterMutation drops the cached coffee aggregate and publishes the event.
// Neither failure fails the request.
func (s *ReviewService) afterMutation(ctx context.Context, review *domain.Review, publish func(context.Context, *domain.Review) error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, review.CoffeeID); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate coffee details cache",
				slog.Int64("coffee_id", review.CoffeeID),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := publish(ctx, review); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review event",
			slog.Int64("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}
}

func reviewExists(coffeeID int64) error {
	return apperrors.Conflict("you have already reviewed coffee " + strconv.FormatInt(coffeeID, 10))
}

func normalize(in domain.ReviewInput) domain.ReviewInput {
	in.Content = strings.TrimSpace(in.Content)
	in.BrewingMethod = strings.TrimSpace(in.BrewingMethod)
	in.BrewingDescription = strings.TrimSpace(in.BrewingDescription)
	return in
}

func validateInput(in domain.ReviewInput) error {
	fields := make(map[string]string)
	if in.CoffeeID <= 0 {
		fields["coffeeId"] = "is required"
	}
	if !rating.Valid(in.Rating) {
		fields["rating"] = "must be between 0.5 and 5.0 in steps of 0.5"
	}
	if in.Content == "" {
		fields["content"] = "is required"
	}
	switch {
	case in.BrewingMethod == "":
		fields["brewingMethod"] = "is required"
	case utf8.RuneCountInString(in.BrewingMethod) > MaxBrewingMethodLen:
		fields["brewingMethod"] = fmt.Sprintf("must be at most %d characters", MaxBrewingMethodLen)
	}
	if utf8.RuneCountInString(in.BrewingDescription) > MaxBrewingDescriptionLen {
		fields["brewingDescription"] = fmt.Sprintf("must be at most %d characters", MaxBrewingDescriptionLen)
	}
	if len(fields) > 0 {
		return apperrors.InvalidFields("review is incomplete", fields)
	}
	return nil
}
