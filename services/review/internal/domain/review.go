package domain

import (
	"slices"
	"time"

	"github.com/jbytow/coffeetica/pkg/pagination"
)

// Review is one user's rated opinion of one coffee. A user holds at most one
// review per coffee.
type Review struct {
	ID                 int64     `json:"id"`
	CoffeeID           int64     `json:"coffeeId"`
	CoffeeName         string    `json:"coffeeName"`
	UserID             int64     `json:"userId"`
	UserName           string    `json:"userName"`
	Rating             float64   `json:"rating"`
	Content            string    `json:"content"`
	BrewingMethod      string    `json:"brewingMethod"`
	BrewingDescription string    `json:"brewingDescription"`
	CreatedAt          time.Time `json:"createdAt"`
}

// ReviewInput is the mutable part of a review as submitted by a client.
type ReviewInput struct {
	CoffeeID           int64
	Rating             float64
	Content            string
	BrewingMethod      string
	BrewingDescription string
}

// Apply copies the editable fields onto r. Identity, ownership and CreatedAt
// are left alone.
func (in ReviewInput) Apply(r *Review) {
	r.Rating = in.Rating
	r.Content = in.Content
	r.BrewingMethod = in.BrewingMethod
	r.BrewingDescription = in.BrewingDescription
}

// Role names carried in access tokens.
const (
	RoleUser       = "User"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

// Actor is the authenticated caller of a mutation.
type Actor struct {
	UserID   int64
	Username string
	Roles    []string
}

// IsAdmin reports whether the actor may act on other users' reviews.
func (a Actor) IsAdmin() bool {
	return slices.Contains(a.Roles, RoleAdmin) || slices.Contains(a.Roles, RoleSuperAdmin)
}

// CanModify reports whether the actor may update or delete r.
func (a Actor) CanModify(r *Review) bool {
	return r.UserID == a.UserID || a.IsAdmin()
}

// SortField is a whitelisted feed ordering column.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortRating    SortField = "rating"
)

// Direction is a feed ordering direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseSort normalises the sortBy/direction query pair. Newest-first is
// always descending; rating honours the direction (default descending);
// anything else falls back to newest-first.
func ParseSort(sortBy, direction string) (SortField, Direction) {
	switch SortField(sortBy) {
	case SortRating:
		if Direction(direction) == Asc {
			return SortRating, Asc
		}
		return SortRating, Desc
	default:
		return SortCreatedAt, Desc
	}
}

// ReviewFilter selects one page of a review feed. Exactly one of CoffeeID and
// UserID is set.
type ReviewFilter struct {
	CoffeeID  int64
	UserID    int64
	Sort      SortField
	Direction Direction
	Page      pagination.Params
}

// LatestReviewsLimit bounds CoffeeDetails.LatestReviews.
const LatestReviewsLimit = 3
