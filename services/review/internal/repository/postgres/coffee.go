package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/jbytow/coffeetica/pkg/database"
	apperrors "github.com/jbytow/coffeetica/pkg/errors"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
)

// CoffeeRepository reads coffees from PostgreSQL.
type CoffeeRepository struct {
	pool database.DBTX
}

// NewCoffeeRepository creates a new PostgreSQL-backed coffee repository.
func NewCoffeeRepository(pool database.DBTX) *CoffeeRepository {
	return &CoffeeRepository{pool: pool}
}

// GetByID returns a coffee or a NOT_FOUND AppError.
func (r *CoffeeRepository) GetByID(ctx context.Context, id int64) (_ *domain.Coffee, err error) {
	query := `
		SELECT id, name, country_of_origin, region, roast_level, flavor_profile,
		       processing_method, production_year, roastery_name
		FROM coffees
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetCoffee", query)
	defer func() { end(err) }()

	var c domain.Coffee
	err = r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.Name,
		&c.CountryOfOrigin,
		&c.Region,
		&c.RoastLevel,
		&c.FlavorProfile,
		&c.ProcessingMethod,
		&c.ProductionYear,
		&c.RoasteryName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("coffee", strconv.FormatInt(id, 10))
		}
		return nil, fmt.Errorf("get coffee: %w", err)
	}
	return &c, nil
}

// Create inserts a coffee and sets its ID.
func (r *CoffeeRepository) Create(ctx context.Context, c *domain.Coffee) (err error) {
	query := `
		INSERT INTO coffees (name, country_of_origin, region, roast_level, flavor_profile,
		                     processing_method, production_year, roastery_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	ctx, end := database.TraceQuery(ctx, "CreateCoffee", query)
	defer func() { end(err) }()

	err = r.pool.QueryRow(ctx, query,
		c.Name,
		c.CountryOfOrigin,
		c.Region,
		c.RoastLevel,
		c.FlavorProfile,
		c.ProcessingMethod,
		c.ProductionYear,
		c.RoasteryName,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("insert coffee: %w", err)
	}
	return nil
}
