package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbytow/coffeetica/pkg/logger"
	"github.com/jbytow/coffeetica/services/review/reviewtest"
	"github.com/jbytow/coffeetica/services/web/internal/config"
	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

type harness struct {
	t   *testing.T
	srv *reviewtest.Server
	cfg *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := reviewtest.NewServer()
	t.Cleanup(srv.Close)

	return &harness{
		t:   t,
		srv: srv,
		cfg: &config.Config{
			LogLevel:            "error",
			APIBaseURL:          srv.URL,
			RequestTimeout:      5 * time.Second,
			BreakerFailureRatio: 1,
			BreakerMinRequests:  100,
			BreakerOpenTimeout:  time.Second,
			SessionFile:         filepath.Join(t.TempDir(), "state", "session.db"),
			FeedPageSize:        3,
		},
	}
}

func (h *harness) run(args ...string) (int, string, string) {
	h.t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), h.cfg, logger.Discard(), args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func (h *harness) login(userID int64, name string, roles ...string) {
	h.t.Helper()
	code, _, stderr := h.run("login", h.srv.Token(userID, name, roles...))
	require.Equal(h.t, 0, code, stderr)
}

// =============================================================================
// Session commands
// =============================================================================

func TestCLI_LoginPersistsAcrossRuns(t *testing.T) {
	h := newHarness(t)

	code, out, _ := h.run("whoami")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Not signed in.")

	code, out, _ = h.run("login", h.srv.Token(7, "ana"))
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Signed in as ana (id 7")

	_, out, _ = h.run("whoami")
	assert.Contains(t, out, "Signed in as ana (id 7")

	code, out, _ = h.run("logout")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Signed out.")

	_, out, _ = h.run("whoami")
	assert.Contains(t, out, "Not signed in.")
}

func TestCLI_LoginRejectsGarbage(t *testing.T) {
	h := newHarness(t)

	code, _, stderr := h.run("login", "not-a-token")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "error:")
}

// =============================================================================
// Review lifecycle
// =============================================================================

func TestCLI_ReviewLifecycle(t *testing.T) {
	h := newHarness(t)
	h.login(7, "ana")

	_, out, _ := h.run("mine", "1")
	assert.Contains(t, out, "You have not reviewed this coffee yet.")

	code, out, stderr := h.run("create", "1",
		"-rating", "4.5", "-content", "Bright and citrusy", "-method", "Pour Over", "-description", "3min bloom")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Yirgacheffe Kochere: 4.5")
	assert.Contains(t, out, "Brewed with Pour Over (3min bloom)")

	_, out, _ = h.run("show", "1")
	assert.Contains(t, out, "Rating: 4.5 (1 reviews)")
	assert.Contains(t, out, "ana: Bright and citrusy")
	assert.Contains(t, out, "Your review")

	code, out, stderr = h.run("edit", "1", "-rating", "4")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, out, "Yirgacheffe Kochere: 4.0")
	assert.Contains(t, out, "Bright and citrusy", "unset flags keep the prefill")

	code, out, _ = h.run("delete", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Review deleted.")

	_, out, _ = h.run("mine", "1")
	assert.Contains(t, out, "You have not reviewed this coffee yet.")
}

func TestCLI_CreateInvalidDraft(t *testing.T) {
	h := newHarness(t)
	h.login(7, "ana")

	code, out, stderr := h.run("create", "2", "-rating", "4.3", "-content", "ok", "-method", "V60")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "! ")
	assert.Contains(t, out, "rating")
	assert.Contains(t, stderr, "validation")

	_, out, _ = h.run("mine", "2")
	assert.Contains(t, out, "You have not reviewed this coffee yet.")
}

func TestCLI_CreateTwiceConflicts(t *testing.T) {
	h := newHarness(t)
	h.login(7, "ana")

	code, _, _ := h.run("create", "1", "-rating", "3", "-content", "fine", "-method", "Espresso")
	require.Equal(t, 0, code)

	code, out, _ := h.run("create", "1", "-rating", "5", "-content", "again", "-method", "Espresso")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Your review")
	assert.Contains(t, out, "fine")
}

func TestCLI_SignedOutCannotReview(t *testing.T) {
	h := newHarness(t)

	_, out, _ := h.run("mine", "1")
	assert.Contains(t, out, "Sign in to review this coffee.")

	code, out, _ := h.run("create", "1", "-rating", "4", "-content", "x", "-method", "y")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "Sign in to review this coffee.")

	code, out, _ = h.run("show", "1")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Yirgacheffe Kochere")
	assert.NotContains(t, out, "Sign in")
}

func TestCLI_ShowUnknownCoffee(t *testing.T) {
	h := newHarness(t)

	code, _, stderr := h.run("show", "999")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

// =============================================================================
// Feed
// =============================================================================

func TestCLI_Feed(t *testing.T) {
	h := newHarness(t)

	_, out, _ := h.run("feed", "coffee", "1")
	assert.Contains(t, out, "No reviews yet.")

	ratings := []string{"2", "5", "3.5", "4"}
	for i, r := range ratings {
		h.login(int64(10+i), "user"+r)
		code, _, stderr := h.run("create", "1", "-rating", r, "-content", "cup "+r, "-method", "Aeropress")
		require.Equal(t, 0, code, stderr)
	}

	code, out, _ := h.run("feed", "coffee", "1", "-sort", "rating-desc")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Showing 1 to 3 of 4 (page 1 of 2, rating-desc)")
	assert.Contains(t, out, "5.0  user5: cup 5")
	assert.Contains(t, out, "Page average: 4.0")

	_, out, _ = h.run("feed", "coffee", "1", "-sort", "rating-desc", "-page", "2")
	assert.Contains(t, out, "Showing 4 to 4 of 4 (page 2 of 2, rating-desc)")
	assert.Contains(t, out, "2.0  user2: cup 2")
	assert.Contains(t, out, "Page average: 2.0")

	_, out, _ = h.run("feed", "user", "11")
	assert.Contains(t, out, "Showing 1 to 1 of 1")
	assert.Contains(t, out, "Yirgacheffe Kochere: cup 5")
}

func TestCheckAggregate(t *testing.T) {
	var logs bytes.Buffer
	c := &cli{log: logger.NewText("warn", &logs)}
	reviews := []domain.Review{{Rating: 4}, {Rating: 5}}

	details := func(avg float64, total int) *domain.CoffeeDetails {
		return &domain.CoffeeDetails{
			Coffee:            domain.Coffee{ID: 5},
			AverageRating:     avg,
			TotalReviewsCount: total,
			LatestReviews:     reviews,
		}
	}

	assert.True(t, c.checkAggregate(details(4.5, 2)))
	assert.True(t, c.checkAggregate(details(3.0, 7)), "partial list is not checked")
	assert.True(t, c.checkAggregate(&domain.CoffeeDetails{}))
	assert.Empty(t, logs.String())

	assert.False(t, c.checkAggregate(details(2.0, 2)))
	assert.Contains(t, logs.String(), "coffee rating disagrees with its reviews")
	assert.Contains(t, logs.String(), "computed=4.5")
}

func TestCLI_ShowAggregateMatchesReviews(t *testing.T) {
	h := newHarness(t)
	for i, r := range []string{"4", "5"} {
		h.login(int64(20+i), "taster")
		code, _, stderr := h.run("create", "2", "-rating", r, "-content", "nice", "-method", "Chemex")
		require.Equal(t, 0, code, stderr)
	}

	var logs bytes.Buffer
	var out bytes.Buffer
	code := run(context.Background(), h.cfg, logger.NewText("warn", &logs), []string{"show", "2"}, &out, &bytes.Buffer{})
	require.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Rating: 4.5 (2 reviews)")
	assert.Empty(t, logs.String())
}

// =============================================================================
// Usage
// =============================================================================

func TestCLI_Usage(t *testing.T) {
	h := newHarness(t)

	tests := map[string][]string{
		"no args":       nil,
		"unknown":       {"brew"},
		"bad coffee id": {"mine", "abc"},
		"bad subject":   {"feed", "planet", "1"},
		"bad sort":      {"feed", "coffee", "1", "-sort", "sideways"},
		"login arity":   {"login"},
		"unknown flag":  {"create", "1", "-stars", "5"},
	}
	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			code, _, stderr := h.run(args...)
			assert.Equal(t, 2, code)
			assert.Contains(t, stderr, "usage: reviewctl")
		})
	}
}
