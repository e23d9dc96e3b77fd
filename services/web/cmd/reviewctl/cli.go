package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jbytow/coffeetica/pkg/httpclient"
	"github.com/jbytow/coffeetica/services/web/internal/config"
	"github.com/jbytow/coffeetica/services/web/internal/domain"
	"github.com/jbytow/coffeetica/services/web/internal/feed"
	"github.com/jbytow/coffeetica/services/web/internal/form"
	"github.com/jbytow/coffeetica/services/web/internal/lifecycle"
	"github.com/jbytow/coffeetica/services/web/internal/reviewapi"
	"github.com/jbytow/coffeetica/services/web/internal/session"
)

const usage = `usage: reviewctl <command> [arguments]

commands:
  login <token>                  sign in with an access token
  logout                         sign out
  whoami                         show the signed-in user
  show <coffeeId>                coffee details, rating and latest reviews
  mine <coffeeId>                your review of a coffee
  create <coffeeId> [flags]      review a coffee (-rating -content -method -description)
  edit <coffeeId> [flags]        change your review; unset flags keep their value
  delete <coffeeId>              delete your review
  feed coffee|user <id> [flags]  page through reviews (-sort newest|rating-desc|rating-asc -page N)
`

var errUsage = errors.New("invalid usage")

type cli struct {
	out      io.Writer
	log      *slog.Logger
	session  *session.Session
	api      *reviewapi.Client
	pageSize int
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	if err := os.MkdirAll(filepath.Dir(cfg.SessionFile), 0o700); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	store, err := session.OpenStore(cfg.SessionFile)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	defer store.Close()

	sess, err := session.Restore(store, log)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	c := &cli{
		out:      stdout,
		log:      log,
		session:  sess,
		api:      reviewapi.New(apiConfig(cfg), sess, log),
		pageSize: cfg.FeedPageSize,
	}
	if err := c.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "error: %v\n\n%s", err, usage)
			return 2
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func apiConfig(cfg *config.Config) reviewapi.Config {
	c := reviewapi.DefaultConfig(cfg.APIBaseURL)
	c.Timeout = cfg.RequestTimeout
	c.Breaker = httpclient.CircuitBreakerConfig{
		Name:         "review-api",
		MaxRequests:  1,
		Interval:     c.Breaker.Interval,
		Timeout:      cfg.BreakerOpenTimeout,
		FailureRatio: cfg.BreakerFailureRatio,
		MinRequests:  cfg.BreakerMinRequests,
	}
	return c
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return c.login(args)
	case "logout":
		return c.logout()
	case "whoami":
		return c.whoami()
	case "show":
		return c.show(ctx, args)
	case "mine":
		return c.mine(ctx, args)
	case "create":
		return c.create(ctx, args)
	case "edit":
		return c.edit(ctx, args)
	case "delete":
		return c.delete(ctx, args)
	case "feed":
		return c.feed(ctx, args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// --- Session ---

func (c *cli) login(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: login takes exactly one token", errUsage)
	}
	if err := c.session.Login(strings.TrimSpace(args[0])); err != nil {
		return err
	}
	return c.whoami()
}

func (c *cli) logout() error {
	if err := c.session.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Signed out.")
	return nil
}

func (c *cli) whoami() error {
	u := c.session.CurrentUser()
	if u == nil {
		fmt.Fprintln(c.out, "Not signed in.")
		return nil
	}
	fmt.Fprintf(c.out, "Signed in as %s (id %d, roles %s)\n", u.Username, u.UserID, strings.Join(u.Roles, ", "))
	return nil
}

// --- Coffee and own review ---

func (c *cli) show(ctx context.Context, args []string) error {
	coffeeID, err := coffeeArg("show", args)
	if err != nil {
		return err
	}

	d, err := c.api.GetCoffee(ctx, coffeeID)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s (%s)\n", d.Name, d.RoasteryName)
	if d.CountryOfOrigin != "" {
		fmt.Fprintf(c.out, "Origin: %s, %s | Roast: %s | Process: %s\n", d.CountryOfOrigin, d.Region, d.RoastLevel, d.ProcessingMethod)
	}
	fmt.Fprintf(c.out, "Rating: %.1f (%d reviews)\n", d.AverageRating, d.TotalReviewsCount)
	c.checkAggregate(d)
	if len(d.LatestReviews) > 0 {
		fmt.Fprintln(c.out, "Latest reviews:")
		for _, r := range d.LatestReviews {
			fmt.Fprintf(c.out, "  %.1f  %s: %s\n", r.Rating, r.UserName, r.Content)
		}
	}

	if !c.session.IsAuthenticated() {
		return nil
	}
	fmt.Fprintln(c.out)
	return c.mine(ctx, args)
}

func (c *cli) mine(ctx context.Context, args []string) error {
	coffeeID, err := coffeeArg("mine", args)
	if err != nil {
		return err
	}
	ctrl := c.controller(ctx)
	defer ctrl.Close()

	if err := ctrl.Open(ctx, coffeeID); err != nil {
		return err
	}
	c.printSnapshot(ctrl.Snapshot())
	return nil
}

func reviewFlags(name string) (*flag.FlagSet, *form.Values) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	v := &form.Values{}
	fs.Float64Var(&v.Rating, "rating", 0, "rating from 0.5 to 5 in half steps")
	fs.StringVar(&v.Content, "content", "", "review text")
	fs.StringVar(&v.BrewingMethod, "method", "", "brewing method")
	fs.StringVar(&v.BrewingDescription, "description", "", "brewing notes")
	return fs, v
}

func (c *cli) create(ctx context.Context, args []string) error {
	coffeeID, err := coffeeArg("create", args)
	if err != nil {
		return err
	}
	fs, values := reviewFlags("create")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctrl := c.controller(ctx)
	defer ctrl.Close()
	if err := ctrl.Open(ctx, coffeeID); err != nil {
		return err
	}
	return c.finish(ctrl, ctrl.Create(ctx, *values))
}

func (c *cli) edit(ctx context.Context, args []string) error {
	coffeeID, err := coffeeArg("edit", args)
	if err != nil {
		return err
	}
	fs, changes := reviewFlags("edit")
	if err := fs.Parse(args[1:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	ctrl := c.controller(ctx)
	defer ctrl.Close()
	if err := ctrl.Open(ctx, coffeeID); err != nil {
		return err
	}
	if err := ctrl.BeginEdit(); err != nil {
		return c.finish(ctrl, err)
	}

	values := ctrl.Snapshot().Form
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "rating":
			values.Rating = changes.Rating
		case "content":
			values.Content = changes.Content
		case "method":
			values.BrewingMethod = changes.BrewingMethod
		case "description":
			values.BrewingDescription = changes.BrewingDescription
		}
	})
	return c.finish(ctrl, ctrl.Update(ctx, values))
}

func (c *cli) delete(ctx context.Context, args []string) error {
	coffeeID, err := coffeeArg("delete", args)
	if err != nil {
		return err
	}
	ctrl := c.controller(ctx)
	defer ctrl.Close()
	if err := ctrl.Open(ctx, coffeeID); err != nil {
		return err
	}
	if err := ctrl.Delete(ctx); err != nil {
		return c.finish(ctrl, err)
	}
	fmt.Fprintln(c.out, "Review deleted.")
	return nil
}

func (c *cli) controller(ctx context.Context) *lifecycle.Controller {
	return lifecycle.New(c.session, c.api, c.log, lifecycle.WithContext(ctx))
}

// finish prints the outcome of a lifecycle action.
func (c *cli) finish(ctrl *lifecycle.Controller, err error) error {
	snap := ctrl.Snapshot()
	c.printSnapshot(snap)
	if err == nil {
		return nil
	}
	if snap.Inline != "" || snap.Banner != "" {
		return errors.New(domain.KindOf(err).String())
	}
	return err
}

func (c *cli) printSnapshot(s lifecycle.Snapshot) {
	switch s.State {
	case lifecycle.StateUnauthenticated:
		fmt.Fprintln(c.out, "Sign in to review this coffee.")
	case lifecycle.StateLoading:
		fmt.Fprintln(c.out, "Your review could not be loaded.")
	case lifecycle.StateNoReview:
		fmt.Fprintln(c.out, "You have not reviewed this coffee yet.")
	case lifecycle.StateViewing, lifecycle.StateEditing:
		r := s.Review
		fmt.Fprintf(c.out, "Your review #%d of %s: %.1f\n", r.ID, r.CoffeeName, r.Rating)
		fmt.Fprintf(c.out, "  %s\n", r.Content)
		fmt.Fprintf(c.out, "  Brewed with %s", r.BrewingMethod)
		if r.BrewingDescription != "" {
			fmt.Fprintf(c.out, " (%s)", r.BrewingDescription)
		}
		fmt.Fprintf(c.out, "\n  Written %s\n", r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if s.Inline != "" {
		fmt.Fprintf(c.out, "! %s\n", s.Inline)
		keys := make([]string, 0, len(s.FieldErrors))
		for k := range s.FieldErrors {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(c.out, "  %s %s\n", k, s.FieldErrors[k])
		}
	}
	if s.Banner != "" {
		fmt.Fprintf(c.out, "! %s\n", s.Banner)
	}
}

// checkAggregate recomputes the rating when every review of the coffee is
// among the latest ones and logs a disagreement with the backend.
func (c *cli) checkAggregate(d *domain.CoffeeDetails) bool {
	n := len(d.LatestReviews)
	if n == 0 || n != d.TotalReviewsCount {
		return true
	}
	local := domain.Summarize(d.LatestReviews)
	if local.AverageRating == d.AverageRating && local.TotalCount == d.TotalReviewsCount {
		return true
	}
	c.log.Warn("coffee rating disagrees with its reviews",
		slog.Int64("coffee_id", d.ID),
		slog.Float64("reported", d.AverageRating),
		slog.Float64("computed", local.AverageRating),
		slog.Int("reported_count", d.TotalReviewsCount),
	)
	return false
}

// --- Feed ---

func (c *cli) feed(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: feed needs coffee|user and an id", errUsage)
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("%w: invalid id %q", errUsage, args[1])
	}
	var subject feed.Subject
	switch args[0] {
	case "coffee":
		subject = feed.ByCoffee(id)
	case "user":
		subject = feed.ByUser(id)
	default:
		return fmt.Errorf("%w: feed subject must be coffee or user", errUsage)
	}

	fs := flag.NewFlagSet("feed", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sortName := fs.String("sort", "newest", "newest, rating-desc or rating-asc")
	page := fs.Int("page", 1, "page number starting at 1")
	if err := fs.Parse(args[2:]); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	sort, err := feed.ParseSort(*sortName)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	f := feed.New(c.api, c.log, feed.WithPageSize(c.pageSize))
	if err := f.SetSort(ctx, sort); err != nil {
		return err
	}
	if err := f.SetSubject(ctx, subject); err != nil {
		return err
	}
	if *page > 1 {
		if err := f.SetPage(ctx, *page); err != nil {
			return err
		}
	}

	v := f.View()
	first, last, total := v.Showing()
	if total == 0 {
		fmt.Fprintln(c.out, "No reviews yet.")
		return nil
	}
	fmt.Fprintf(c.out, "Showing %d to %d of %d (page %d of %d, %s)\n", first, last, total, v.Page, v.TotalPages, v.Sort)
	reviews := make([]domain.Review, len(v.Items))
	for i, it := range v.Items {
		reviews[i] = it.Review
		fmt.Fprintf(c.out, "  %.1f  %s: %s\n", it.Rating, it.Label(), it.Content)
	}
	fmt.Fprintf(c.out, "Page average: %.1f\n", domain.Summarize(reviews).AverageRating)
	return nil
}

func coffeeArg(cmd string, args []string) (int64, error) {
	if len(args) < 1 {
		return 0, fmt.Errorf("%w: %s needs a coffee id", errUsage, cmd)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid coffee id %q", errUsage, args[0])
	}
	return id, nil
}
