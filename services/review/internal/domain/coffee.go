package domain

// Coffee is a catalog entry that reviews attach to.
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

// CoffeeDetails is a coffee together with its rating aggregate and newest
// reviews.
type CoffeeDetails struct {
	Coffee
	AverageRating     float64  `json:"averageRating"`
	TotalReviewsCount int      `json:"totalReviewsCount"`
	LatestReviews     []Review `json:"latestReviews"`
}
