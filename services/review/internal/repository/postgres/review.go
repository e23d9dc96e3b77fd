package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jbytow/coffeetica/pkg/database"
	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

const reviewColumns = `
		r.id, r.coffee_id, c.name, r.user_id, r.user_name, r.rating,
		r.content, r.brewing_method, r.brewing_description, r.created_at`

const reviewFrom = `
		FROM reviews r
		JOIN coffees c ON c.id = r.coffee_id`

// ReviewRepository implements review persistence operations using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a review and sets its ID and CreatedAt.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) (err error) {
	query := `
		INSERT INTO reviews (coffee_id, user_id, user_name, rating, content, brewing_method, brewing_description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	ctx, end := database.TraceQuery(ctx, "CreateReview", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query,
		review.CoffeeID,
		review.UserID,
		review.UserName,
		review.Rating,
		review.Content,
		review.BrewingMethod,
		review.BrewingDescription,
	).Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("review", "coffeeId", strconv.FormatInt(review.CoffeeID, 10))
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID returns a single review.
func (r *ReviewRepository) GetByID(ctx context.Context, id int64) (_ *domain.Review, err error) {
	query := `SELECT` + reviewColumns + reviewFrom + `
		WHERE r.id = $1`

	ctx, end := database.TraceQuery(ctx, "GetReview", query)
	defer func() { end(err) }()

	rv, err := scanReview(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// GetByUserAndCoffee returns the caller's review of a coffee.
func (r *ReviewRepository) GetByUserAndCoffee(ctx context.Context, userID, coffeeID int64) (_ *domain.Review, err error) {
	query := `SELECT` + reviewColumns + reviewFrom + `
		WHERE r.user_id = $1 AND r.coffee_id = $2`

	ctx, end := database.TraceQuery(ctx, "GetUserReview", query)
	defer func() { end(err) }()

	rv, err := scanReview(r.pool.QueryRow(ctx, query, userID, coffeeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", "coffee "+strconv.FormatInt(coffeeID, 10))
		}
		return nil, fmt.Errorf("get user review: %w", err)
	}
	return rv, nil
}

// Update overwrites the editable fields of a review. CreatedAt is untouched.
func (r *ReviewRepository) Update(ctx context.Context, review *domain.Review) (err error) {
	query := `
		UPDATE reviews
		SET rating = $2, content = $3, brewing_method = $4, brewing_description = $5, updated_at = NOW()
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "UpdateReview", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query,
		review.ID,
		review.Rating,
		review.Content,
		review.BrewingMethod,
		review.BrewingDescription,
	)
	if err != nil {
		return fmt.Errorf("update review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", strconv.FormatInt(review.ID, 10))
	}
	return nil
}

// Delete removes a review.
func (r *ReviewRepository) Delete(ctx context.Context, id int64) (err error) {
	query := `DELETE FROM reviews WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "DeleteReview", query)
	defer func() { end(err) }()

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("review", strconv.FormatInt(id, 10))
	}
	return nil
}

// List returns one page of a coffee's or a user's reviews and the total count.
func (r *ReviewRepository) List(ctx context.Context, filter domain.ReviewFilter) (_ []domain.Review, _ int, err error) {
	where, subject := "r.coffee_id = $1", filter.CoffeeID
	if filter.CoffeeID == 0 {
		where, subject = "r.user_id = $1", filter.UserID
	}

	query := `SELECT` + reviewColumns + `,
		       count(*) OVER() AS total_count` + reviewFrom + `
		WHERE ` + where + `
		ORDER BY ` + orderBy(filter.Sort, filter.Direction) + `
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "ListReviews", query)
	defer func() { end(err) }()

	rows, err := r.pool.Query(ctx, query, subject, filter.Page.Size, filter.Page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(
			&rv.ID,
			&rv.CoffeeID,
			&rv.CoffeeName,
			&rv.UserID,
			&rv.UserName,
			&rv.Rating,
			&rv.Content,
			&rv.BrewingMethod,
			&rv.BrewingDescription,
			&rv.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	// The window count is lost when the page is past the end.
	if len(reviews) == 0 && filter.Page.Offset > 0 {
		countQuery := `SELECT COUNT(*) FROM reviews r WHERE ` + where
		if err := r.pool.QueryRow(ctx, countQuery, subject).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count reviews: %w", err)
		}
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}
	return reviews, totalCount, nil
}

// RatingStats returns the sum and count of a coffee's ratings.
func (r *ReviewRepository) RatingStats(ctx context.Context, coffeeID int64) (_ float64, _ int, err error) {
	query := `
		SELECT COALESCE(SUM(rating), 0), COUNT(*)
		FROM reviews
		WHERE coffee_id = $1`

	ctx, end := database.TraceQuery(ctx, "RatingStats", query)
	defer func() { end(err) }()

	var (
		sum   float64
		count int
	)
	if err = r.pool.QueryRow(ctx, query, coffeeID).Scan(&sum, &count); err != nil {
		return 0, 0, fmt.Errorf("rating stats: %w", err)
	}
	return sum, count, nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var rv domain.Review
	if err := row.Scan(
		&rv.ID,
		&rv.CoffeeID,
		&rv.CoffeeName,
		&rv.UserID,
		&rv.UserName,
		&rv.Rating,
		&rv.Content,
		&rv.BrewingMethod,
		&rv.BrewingDescription,
		&rv.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rv, nil
}

// orderBy maps a whitelisted sort onto SQL. r.id breaks ties so paging is stable.
func orderBy(field domain.SortField, dir domain.Direction) string {
	if field == domain.SortRating {
		if dir == domain.Asc {
			return "r.rating ASC, r.id ASC"
		}
		return "r.rating DESC, r.id DESC"
	}
	return "r.created_at DESC, r.id DESC"
}

// isUniqueViolation reports a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
