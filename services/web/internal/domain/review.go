package domain

import (
	"slices"
	"time"

	"github.com/jbytow/coffeetica/pkg/pagination"
	"github.com/jbytow/coffeetica/pkg/rating"
)

// Review is a persisted review as returned by the review API.
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

// ReviewInput is the body of a create or update call. An empty
// BrewingDescription is sent as null.
type ReviewInput struct {
	CoffeeID           int64
	Rating             float64
	Content            string
	BrewingMethod      string
	BrewingDescription string
}

// Role names carried in access tokens.
const (
	RoleUser       = "User"
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

// AdminRoles may modify any user's review.
var AdminRoles = []string{RoleAdmin, RoleSuperAdmin}

// IsAdmin reports whether roles contains an administrative role.
func IsAdmin(roles []string) bool {
	return slices.ContainsFunc(roles, func(r string) bool { return slices.Contains(AdminRoles, r) })
}

// Coffee is the catalog part of a coffee detail view.
type Coffee struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	CountryOfOrigin  string `json:"countryOfOrigin"`
	Region           string `json:"region"`
	RoastLevel       string `json:"roastLevel"`
	FlavorProfile    string `json:"flavorProfile"`
	ProcessingMethod string `json:"processingMethod"`
	ProductionYear   int    `json:"productionYear"`
	RoasteryName     string `json:"roasteryName"`
}

// CoffeeDetails is a coffee with its backend-computed aggregate.
type CoffeeDetails struct {
	Coffee
	AverageRating     float64  `json:"averageRating"`
	TotalReviewsCount int      `json:"totalReviewsCount"`
	LatestReviews     []Review `json:"latestReviews"`
}

// Summarize derives an aggregate from a full list of reviews. Views that only
// hold raw reviews use it; the result matches what the backend reports for
// the same set.
func Summarize(reviews []Review) rating.Summary {
	ratings := make([]float64, len(reviews))
	for i, r := range reviews {
		ratings[i] = r.Rating
	}
	return rating.Summarize(ratings)
}

// FeedQuery is one request against the review feed endpoint. Exactly one of
// CoffeeID and UserID is set. Page is zero-based.
type FeedQuery struct {
	CoffeeID  int64
	UserID    int64
	Page      int
	Size      int
	SortBy    string
	Direction string
}

// ReviewPage is one page of a review feed.
type ReviewPage = pagination.Page[Review]
