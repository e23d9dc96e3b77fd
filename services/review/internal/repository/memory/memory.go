// Package memory holds map-backed repositories for local runs and tests.
// They enforce the same uniqueness and ordering rules as the PostgreSQL
// repositories.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

type userCoffee struct {
	userID, coffeeID int64
}

// ReviewRepository stores reviews in memory.
type ReviewRepository struct {
	mu      sync.RWMutex
	nextID  int64
	reviews map[int64]domain.Review
	byOwner map[userCoffee]int64
	coffees *CoffeeRepository
	now     func() time.Time
}

// NewReviewRepository returns an empty store. Coffee names on reads are
// resolved through coffees.
func NewReviewRepository(coffees *CoffeeRepository) *ReviewRepository {
	return &ReviewRepository{
		reviews: make(map[int64]domain.Review),
		byOwner: make(map[userCoffee]int64),
		coffees: coffees,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *ReviewRepository) Create(_ context.Context, review *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := userCoffee{review.UserID, review.CoffeeID}
	if _, ok := r.byOwner[key]; ok {
		return apperrors.AlreadyExists("review", "coffeeId", strconv.FormatInt(review.CoffeeID, 10))
	}

	r.nextID++
	review.ID = r.nextID
	review.CreatedAt = r.now()
	r.reviews[review.ID] = *review
	r.byOwner[key] = review.ID
	return nil
}

func (r *ReviewRepository) GetByID(_ context.Context, id int64) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rv, ok := r.reviews[id]
	if !ok {
		return nil, apperrors.NotFound("review", strconv.FormatInt(id, 10))
	}
	return r.withCoffeeName(rv), nil
}

func (r *ReviewRepository) GetByUserAndCoffee(_ context.Context, userID, coffeeID int64) (*domain.Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOwner[userCoffee{userID, coffeeID}]
	if !ok {
		return nil, apperrors.NotFound("review", "coffee "+strconv.FormatInt(coffeeID, 10))
	}
	return r.withCoffeeName(r.reviews[id]), nil
}

func (r *ReviewRepository) Update(_ context.Context, review *domain.Review) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.reviews[review.ID]
	if !ok {
		return apperrors.NotFound("review", strconv.FormatInt(review.ID, 10))
	}
	domain.ReviewInput{
		Rating:             review.Rating,
		Content:            review.Content,
		BrewingMethod:      review.BrewingMethod,
		BrewingDescription: review.BrewingDescription,
	}.Apply(&stored)
	r.reviews[review.ID] = stored
	return nil
}

func (r *ReviewRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rv, ok := r.reviews[id]
	if !ok {
		return apperrors.NotFound("review", strconv.FormatInt(id, 10))
	}
	delete(r.reviews, id)
	delete(r.byOwner, userCoffee{rv.UserID, rv.CoffeeID})
	return nil
}

func (r *ReviewRepository) List(_ context.Context, filter domain.ReviewFilter) ([]domain.Review, int, error) {
	r.mu.RLock()
	matched := make([]domain.Review, 0)
	for _, rv := range r.reviews {
		if (filter.CoffeeID != 0 && rv.CoffeeID == filter.CoffeeID) ||
			(filter.CoffeeID == 0 && rv.UserID == filter.UserID) {
			matched = append(matched, *r.withCoffeeName(rv))
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, compareReviews(filter.Sort, filter.Direction))

	total := len(matched)
	start := min(filter.Page.Offset, total)
	end := min(start+filter.Page.Size, total)
	return matched[start:end], total, nil
}

func (r *ReviewRepository) RatingStats(_ context.Context, coffeeID int64) (float64, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		sum   float64
		count int
	)
	for _, rv := range r.reviews {
		if rv.CoffeeID == coffeeID {
			sum += rv.Rating
			count++
		}
	}
	return sum, count, nil
}

func (r *ReviewRepository) withCoffeeName(rv domain.Review) *domain.Review {
	if r.coffees != nil {
		if c, ok := r.coffees.lookup(rv.CoffeeID); ok {
			rv.CoffeeName = c.Name
		}
	}
	return &rv
}

// compareReviews mirrors the SQL ORDER BY, including the id tie-break.
func compareReviews(field domain.SortField, dir domain.Direction) func(a, b domain.Review) int {
	return func(a, b domain.Review) int {
		if field == domain.SortRating {
			c := cmp.Or(cmp.Compare(a.Rating, b.Rating), cmp.Compare(a.ID, b.ID))
			if dir == domain.Asc {
				return c
			}
			return -c
		}
		return -cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	}
}

// CoffeeRepository stores coffees in memory.
type CoffeeRepository struct {
	mu      sync.RWMutex
	nextID  int64
	coffees map[int64]domain.Coffee
}

// NewCoffeeRepository returns a store pre-loaded with seed. Seed entries keep
// their IDs.
func NewCoffeeRepository(seed ...domain.Coffee) *CoffeeRepository {
	r := &CoffeeRepository{coffees: make(map[int64]domain.Coffee, len(seed))}
	for _, c := range seed {
		r.coffees[c.ID] = c
		r.nextID = max(r.nextID, c.ID)
	}
	return r
}

func (r *CoffeeRepository) GetByID(_ context.Context, id int64) (*domain.Coffee, error) {
	c, ok := r.lookup(id)
	if !ok {
		return nil, apperrors.NotFound("coffee", strconv.FormatInt(id, 10))
	}
	return &c, nil
}

func (r *CoffeeRepository) Create(_ context.Context, c *domain.Coffee) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	c.ID = r.nextID
	r.coffees[c.ID] = *c
	return nil
}

func (r *CoffeeRepository) lookup(id int64) (domain.Coffee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.coffees[id]
	return c, ok
}

// SeedCoffees is the starter catalog shared with the 002 migration.
func SeedCoffees() []domain.Coffee {
	return []domain.Coffee{
		{ID: 1, Name: "Yirgacheffe Kochere", CountryOfOrigin: "Ethiopia", Region: "Gedeo", RoastLevel: "Light", FlavorProfile: "Floral", ProcessingMethod: "Washed", ProductionYear: 2025, RoasteryName: "Hayb"},
		{ID: 2, Name: "Huila Supremo", CountryOfOrigin: "Colombia", Region: "Huila", RoastLevel: "Medium", FlavorProfile: "Chocolate", ProcessingMethod: "Washed", ProductionYear: 2025, RoasteryName: "Coffee Plant"},
		{ID: 3, Name: "Santos Bourbon", CountryOfOrigin: "Brazil", Region: "Mogiana", RoastLevel: "Medium-Dark", FlavorProfile: "Nutty", ProcessingMethod: "Natural", ProductionYear: 2024, RoasteryName: "Audun"},
	}
}
