// Package rating holds the one rounding policy for coffee ratings. The review
// service uses it to build coffee aggregates and the web client uses it when it
// has to derive an aggregate from a raw list of reviews, so both always agree.
package rating

import "math"

const (
	// Min is the lowest rating a persisted review can carry.
	Min = 0.5
	// Max is the highest rating a persisted review can carry.
	Max = 5.0
	// Step is the half-star granularity.
	Step = 0.5
)

// Summary is the aggregate rating of a set of reviews.
type Summary struct {
	AverageRating float64 `json:"averageRating"`
	TotalCount    int     `json:"totalReviewsCount"`
}

// RoundToHalfStar returns the multiple of 0.5 nearest to x. Ties round up.
func RoundToHalfStar(x float64) float64 {
	return math.Floor(x*2+0.5) / 2
}

// Average returns the half-star rounded mean of ratings, or 0 when empty.
func Average(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range ratings {
		sum += r
	}
	return RoundToHalfStar(sum / float64(len(ratings)))
}

// FromSum rounds a mean computed elsewhere (for example by SQL AVG over a
// SUM/COUNT pair) with the same policy as Average.
func FromSum(sum float64, count int) float64 {
	if count <= 0 {
		return 0
	}
	return RoundToHalfStar(sum / float64(count))
}

// Summarize returns the average and count of ratings.
func Summarize(ratings []float64) Summary {
	return Summary{
		AverageRating: Average(ratings),
		TotalCount:    len(ratings),
	}
}

// Valid reports whether r is an acceptable rating for a persisted review:
// within [Min, Max] and a whole number of half stars.
func Valid(r float64) bool {
	if r < Min || r > Max {
		return false
	}
	doubled := r * 2
	return doubled == math.Trunc(doubled)
}
