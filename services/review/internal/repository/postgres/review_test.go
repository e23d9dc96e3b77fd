package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbytow/coffeetica/pkg/database"
	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
	"github.com/jbytow/coffeetica/services/review/internal/repository"
)

var (
	_ repository.ReviewRepository = (*ReviewRepository)(nil)
	_ repository.CoffeeRepository = (*CoffeeRepository)(nil)
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var reviewCols = []string{
	"id", "coffee_id", "name", "user_id", "user_name", "rating",
	"content", "brewing_method", "brewing_description", "created_at",
}

var reviewColsWithCount = append(append([]string{}, reviewCols...), "total_count")

func sampleReview() domain.Review {
	return domain.Review{
		ID:                 12,
		CoffeeID:           42,
		CoffeeName:         "Yirgacheffe Kochere",
		UserID:             7,
		UserName:           "ana",
		Rating:             4.5,
		Content:            "Bright and fruity",
		BrewingMethod:      "V60",
		BrewingDescription: "15g / 250ml",
		CreatedAt:          now,
	}
}

func reviewRow(r domain.Review) []any {
	return []any{
		r.ID, r.CoffeeID, r.CoffeeName, r.UserID, r.UserName, r.Rating,
		r.Content, r.BrewingMethod, r.BrewingDescription, r.CreatedAt,
	}
}

func TestReviewRepository_Create_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	rv.ID, rv.CreatedAt = 0, time.Time{}

	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(rv.CoffeeID, rv.UserID, rv.UserName, rv.Rating, rv.Content, rv.BrewingMethod, rv.BrewingDescription).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(12), now))

	err := repo.Create(context.Background(), &rv)
	require.NoError(t, err)
	assert.Equal(t, int64(12), rv.ID)
	assert.Equal(t, now, rv.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_UniqueViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectQuery("INSERT INTO reviews").
		WithArgs(rv.CoffeeID, rv.UserID, rv.UserName, rv.Rating, rv.Content, rv.BrewingMethod, rv.BrewingDescription).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_reviews_user_coffee"})

	err := repo.Create(context.Background(), &rv)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	want := sampleReview()
	mock.ExpectQuery("SELECT .+ FROM reviews r\\s+JOIN coffees c").
		WithArgs(int64(12)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(want)...))

	got, err := repo.GetByID(context.Background(), 12)
	require.NoError(t, err)
	assert.Equal(t, &want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM reviews r").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_GetByUserAndCoffee(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	want := sampleReview()
	mock.ExpectQuery("WHERE r.user_id = \\$1 AND r.coffee_id = \\$2").
		WithArgs(int64(7), int64(42)).
		WillReturnRows(pgxmock.NewRows(reviewCols).AddRow(reviewRow(want)...))
	mock.ExpectQuery("WHERE r.user_id = \\$1 AND r.coffee_id = \\$2").
		WithArgs(int64(8), int64(42)).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByUserAndCoffee(context.Background(), 7, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.ID)

	_, err = repo.GetByUserAndCoffee(context.Background(), 8, 42)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Update(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	rv := sampleReview()
	mock.ExpectExec("UPDATE reviews").
		WithArgs(rv.ID, rv.Rating, rv.Content, rv.BrewingMethod, rv.BrewingDescription).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE reviews").
		WithArgs(rv.ID, rv.Rating, rv.Content, rv.BrewingMethod, rv.BrewingDescription).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.Update(context.Background(), &rv))
	assert.ErrorIs(t, repo.Update(context.Background(), &rv), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Delete(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectExec("DELETE FROM reviews WHERE").
		WithArgs(int64(12)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM reviews WHERE").
		WithArgs(int64(12)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), 12))
	assert.ErrorIs(t, repo.Delete(context.Background(), 12), apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_List_ByCoffeeNewestFirst(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	first := sampleReview()
	second := sampleReview()
	second.ID, second.UserID, second.UserName = 11, 8, "ben"

	mock.ExpectQuery("WHERE r.coffee_id = \\$1\\s+ORDER BY r.created_at DESC, r.id DESC").
		WithArgs(int64(42), 3, 0).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount).
			AddRow(append(reviewRow(first), 7)...).
			AddRow(append(reviewRow(second), 7)...))

	got, total, err := repo.List(context.Background(), domain.ReviewFilter{
		CoffeeID:  42,
		Sort:      domain.SortCreatedAt,
		Direction: domain.Desc,
		Page:      pagination.Params{Page: 0, Size: 3, Offset: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	require.Len(t, got, 2)
	assert.Equal(t, int64(12), got[0].ID)
	assert.Equal(t, "ben", got[1].UserName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_List_ByUserRatingAsc(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("WHERE r.user_id = \\$1\\s+ORDER BY r.rating ASC, r.id ASC").
		WithArgs(int64(7), 10, 10).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount).
			AddRow(append(reviewRow(sampleReview()), 11)...))

	got, total, err := repo.List(context.Background(), domain.ReviewFilter{
		UserID:    7,
		Sort:      domain.SortRating,
		Direction: domain.Asc,
		Page:      pagination.Params{Page: 1, Size: 10, Offset: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	assert.Len(t, got, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_List_PastLastPageCountsSeparately(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("ORDER BY r.rating DESC").
		WithArgs(int64(42), 3, 9).
		WillReturnRows(pgxmock.NewRows(reviewColsWithCount))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM reviews r WHERE r.coffee_id = \\$1").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	got, total, err := repo.List(context.Background(), domain.ReviewFilter{
		CoffeeID:  42,
		Sort:      domain.SortRating,
		Direction: domain.Desc,
		Page:      pagination.Params{Page: 3, Size: 3, Offset: 9},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_RatingStats(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(rating\\), 0\\), COUNT\\(\\*\\)").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(12.5, 3))

	sum, count, err := repo.RatingStats(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 12.5, sum)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoffeeRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewCoffeeRepository(mock)

	cols := []string{
		"id", "name", "country_of_origin", "region", "roast_level", "flavor_profile",
		"processing_method", "production_year", "roastery_name",
	}
	mock.ExpectQuery("FROM coffees").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(42), "Huila Supremo", "Colombia", "Huila", "Medium", "Chocolate", "Washed", 2025, "Coffee Plant"))
	mock.ExpectQuery("FROM coffees").
		WithArgs(int64(43)).
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.GetByID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Huila Supremo", c.Name)
	assert.Equal(t, "Coffee Plant", c.RoasteryName)
	assert.Equal(t, 2025, c.ProductionYear)

	_, err = repo.GetByID(context.Background(), 43)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoffeeRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewCoffeeRepository(mock)

	c := domain.Coffee{Name: "Santos Bourbon", CountryOfOrigin: "Brazil", RoasteryName: "Audun", ProductionYear: 2024}
	mock.ExpectQuery("INSERT INTO coffees").
		WithArgs(c.Name, c.CountryOfOrigin, c.Region, c.RoastLevel, c.FlavorProfile, c.ProcessingMethod, c.ProductionYear, c.RoasteryName).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(4)))

	require.NoError(t, repo.Create(context.Background(), &c))
	assert.Equal(t, int64(4), c.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
