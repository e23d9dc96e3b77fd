// Package reviewtest runs the review service HTTP API in-process for tests of
// its clients. The server is backed by the in-memory store seeded with the
// starter catalog and signs its own access tokens.
package reviewtest

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"time"

	"github.com/jbytow/coffeetica/pkg/health"
	"github.com/jbytow/coffeetica/pkg/logger"
	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/services/review/internal/auth"
	"github.com/jbytow/coffeetica/services/review/internal/domain"
	"github.com/jbytow/coffeetica/services/review/internal/event"
	handler "github.com/jbytow/coffeetica/services/review/internal/handler/http"
	"github.com/jbytow/coffeetica/services/review/internal/repository/memory"
	"github.com/jbytow/coffeetica/services/review/internal/service"
)

const secret = "reviewtest-secret"

// Role names understood by the server.
const (
	RoleUser  = domain.RoleUser
	RoleAdmin = domain.RoleAdmin
)

// Server is a running review API.
type Server struct {
	*httptest.Server

	jwt     *auth.JWTManager
	coffees *memory.CoffeeRepository
}

// NewServer starts a server. Callers must Close it.
func NewServer() *Server {
	return NewServerWithLogger(logger.Discard())
}

// NewServerWithLogger starts a server that logs through l.
func NewServerWithLogger(l *slog.Logger) *Server {
	coffees := memory.NewCoffeeRepository(memory.SeedCoffees()...)
	reviews := memory.NewReviewRepository(coffees)
	jwt := auth.NewJWTManager(secret, time.Hour)

	h := handler.NewRouter(
		service.NewReviewService(reviews, coffees, nil, event.Nop{}, l),
		service.NewCoffeeService(coffees, reviews, nil, l),
		jwt.Validator(),
		health.NewHandler(),
		handler.RouterConfig{
			ServiceName:        "review-service-test",
			RateLimitPerSecond: 1000,
			RateLimitBurst:     1000,
			FeedLimits:         pagination.DefaultLimits(),
		},
		l,
	)

	return &Server{
		Server:  httptest.NewServer(h),
		jwt:     jwt,
		coffees: coffees,
	}
}

// Token returns a signed access token. Roles default to User.
func (s *Server) Token(userID int64, username string, roles ...string) string {
	if len(roles) == 0 {
		roles = []string{RoleUser}
	}
	tok, err := s.jwt.GenerateAccessToken(userID, username, roles)
	if err != nil {
		panic("reviewtest: sign token: " + err.Error())
	}
	return tok
}

// AddCoffee adds a catalog entry and returns its id.
func (s *Server) AddCoffee(name, roastery string) int64 {
	c := &domain.Coffee{Name: name, RoasteryName: roastery}
	if err := s.coffees.Create(context.Background(), c); err != nil {
		panic("reviewtest: add coffee: " + err.Error())
	}
	return c.ID
}
