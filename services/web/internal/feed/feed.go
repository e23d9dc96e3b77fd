// Package feed pages through the reviews of one coffee or one user.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

// DefaultPageSize is the number of reviews shown per page.
const DefaultPageSize = 3

var (
	// ErrNoSubject is returned by Refresh and SetPage before SetSubject.
	ErrNoSubject = errors.New("no feed subject")
	// ErrInvalidPage is returned for page numbers below 1.
	ErrInvalidPage = errors.New("page numbers start at 1")
)

// Subject selects whose reviews the feed lists.
type Subject struct {
	coffeeID int64
	userID   int64
}

// ByCoffee lists every review of a coffee.
func ByCoffee(id int64) Subject { return Subject{coffeeID: id} }

// ByUser lists every review written by a user.
func ByUser(id int64) Subject { return Subject{userID: id} }

func (s Subject) valid() bool {
	return (s.coffeeID > 0) != (s.userID > 0)
}

// IsZero reports whether no subject was chosen.
func (s Subject) IsZero() bool { return s == Subject{} }

func (s Subject) String() string {
	if s.coffeeID > 0 {
		return fmt.Sprintf("coffee %d", s.coffeeID)
	}
	return fmt.Sprintf("user %d", s.userID)
}

// Sort is a feed ordering.
type Sort int

const (
	SortNewest Sort = iota
	SortRatingDesc
	SortRatingAsc
)

func (s Sort) String() string {
	switch s {
	case SortRatingDesc:
		return "rating-desc"
	case SortRatingAsc:
		return "rating-asc"
	default:
		return "newest"
	}
}

// ParseSort accepts the names produced by Sort.String.
func ParseSort(name string) (Sort, error) {
	switch name {
	case "", "newest":
		return SortNewest, nil
	case "rating-desc":
		return SortRatingDesc, nil
	case "rating-asc":
		return SortRatingAsc, nil
	default:
		return SortNewest, fmt.Errorf("unknown sort %q", name)
	}
}

func (s Sort) wire() (sortBy, direction string) {
	switch s {
	case SortRatingDesc:
		return "rating", "desc"
	case SortRatingAsc:
		return "rating", "asc"
	default:
		return "createdAt", "desc"
	}
}

// Lister fetches one page of a feed.
type Lister interface {
	ListReviews(ctx context.Context, q domain.FeedQuery) (*domain.ReviewPage, error)
}

// Item is one row of the feed.
type Item struct {
	domain.Review
	byCoffee bool
}

// Label names the other side of the review: the reviewer in a coffee feed,
// the coffee in a user feed.
func (it Item) Label() string {
	if it.byCoffee {
		return it.UserName
	}
	return it.CoffeeName
}

// View is an immutable view of the feed.
type View struct {
	Subject    Subject
	Sort       Sort
	Page       int
	PageSize   int
	TotalPages int
	Total      int
	Items      []Item
	Banner     string
	Loading    bool
}

// Showing returns the 1-based range of items on the page and the total, as in
// "Showing 4 to 6 of 7". An empty feed yields zeros.
func (v View) Showing() (first, last, total int) {
	if v.Total == 0 || len(v.Items) == 0 {
		return 0, 0, v.Total
	}
	first = (v.Page-1)*v.PageSize + 1
	return first, first + len(v.Items) - 1, v.Total
}

// position is what the feed lists.
type position struct {
	subject Subject
	sort    Sort
	page    int
}

func (p position) query(size int) domain.FeedQuery {
	sortBy, direction := p.sort.wire()
	return domain.FeedQuery{
		CoffeeID:  p.subject.coffeeID,
		UserID:    p.subject.userID,
		Page:      p.page - 1,
		Size:      size,
		SortBy:    sortBy,
		Direction: direction,
	}
}

// Feed is safe for concurrent use. Only the response to the most recent
// request is applied; a failed request leaves the shown position in place.
type Feed struct {
	lister Lister
	logger *slog.Logger
	size   int

	mu         sync.Mutex
	gen        uint64
	shown      position
	want       position
	items      []Item
	total      int
	totalPages int
	banner     string
	loading    bool
}

// Option configures a Feed.
type Option func(*Feed)

// WithPageSize overrides DefaultPageSize.
func WithPageSize(n int) Option {
	return func(f *Feed) {
		if n > 0 {
			f.size = n
		}
	}
}

// New returns a feed with no subject.
func New(lister Lister, logger *slog.Logger, opts ...Option) *Feed {
	f := &Feed{
		lister: lister,
		logger: logger,
		size:   DefaultPageSize,
		shown:  position{page: 1},
		want:   position{page: 1},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// SetSubject switches the feed to s, back on page 1, and loads it.
func (f *Feed) SetSubject(ctx context.Context, s Subject) error {
	if !s.valid() {
		return errors.New("feed subject needs exactly one of coffee or user")
	}
	f.mu.Lock()
	f.want.subject = s
	f.want.page = 1
	return f.loadLocked(ctx)
}

// SetSort changes the ordering, back on page 1, and reloads.
func (f *Feed) SetSort(ctx context.Context, s Sort) error {
	f.mu.Lock()
	f.want.sort = s
	f.want.page = 1
	if f.want.subject.IsZero() {
		f.shown = f.want
		f.mu.Unlock()
		return nil
	}
	return f.loadLocked(ctx)
}

// SetPage moves to page p (1-based) keeping the ordering.
func (f *Feed) SetPage(ctx context.Context, p int) error {
	if p < 1 {
		return ErrInvalidPage
	}
	f.mu.Lock()
	if f.want.subject.IsZero() {
		f.mu.Unlock()
		return ErrNoSubject
	}
	f.want.page = p
	return f.loadLocked(ctx)
}

// Refresh reloads the current page.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	if f.want.subject.IsZero() {
		f.mu.Unlock()
		return ErrNoSubject
	}
	return f.loadLocked(ctx)
}

// DismissError clears the banner.
func (f *Feed) DismissError() {
	f.mu.Lock()
	f.banner = ""
	f.mu.Unlock()
}

// View returns the current view.
func (f *Feed) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	return View{
		Subject:    f.shown.subject,
		Sort:       f.shown.sort,
		Page:       f.shown.page,
		PageSize:   f.size,
		TotalPages: f.totalPages,
		Total:      f.total,
		Items:      append([]Item(nil), f.items...),
		Banner:     f.banner,
		Loading:    f.loading,
	}
}

// loadLocked requests the wanted position and releases the lock while
// waiting.
func (f *Feed) loadLocked(ctx context.Context) error {
	f.gen++
	gen := f.gen
	f.loading = true
	want := f.want
	f.mu.Unlock()

	page, err := f.lister.ListReviews(ctx, want.query(f.size))

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		f.logger.Debug("discarding stale feed page",
			slog.String("subject", want.subject.String()),
			slog.Int("page", want.page),
		)
		return nil
	}
	f.loading = false

	if err != nil {
		f.logger.Warn("feed load failed",
			slog.String("subject", want.subject.String()),
			slog.Int("page", want.page),
			slog.String("kind", domain.KindOf(err).String()),
			slog.String("error", err.Error()),
		)
		f.want = f.shown
		f.banner = "Could not load reviews. Please try again."
		return err
	}

	byCoffee := want.subject.coffeeID > 0
	f.items = make([]Item, len(page.Content))
	for i, r := range page.Content {
		f.items[i] = Item{Review: r, byCoffee: byCoffee}
	}
	f.shown = want
	f.total = page.TotalElements
	f.totalPages = page.TotalPages
	f.banner = ""
	return nil
}
