// Package form holds the editable fields of a review draft and validates them
// before anything is sent to the review API.
package form

import (
	"errors"
	"strings"

	"github.com/jbytow/coffeetica/pkg/validator"
	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

// Field limits enforced by the review API.
const (
	MaxBrewingMethodLen      = 50
	MaxBrewingDescriptionLen = 200
)

// Values is a review draft. Rating 0 means no rating has been picked yet.
type Values struct {
	Rating             float64 `json:"rating" validate:"required,halfstar"`
	Content            string  `json:"content" validate:"required"`
	BrewingMethod      string  `json:"brewingMethod" validate:"required,max=50"`
	BrewingDescription string  `json:"brewingDescription" validate:"max=200"`
}

// NewEmpty returns a blank draft.
func NewEmpty() Values {
	return Values{}
}

// FromReview returns a draft pre-filled with r.
func FromReview(r *domain.Review) Values {
	if r == nil {
		return NewEmpty()
	}
	return Values{
		Rating:             r.Rating,
		Content:            r.Content,
		BrewingMethod:      r.BrewingMethod,
		BrewingDescription: r.BrewingDescription,
	}
}

// Normalize trims surrounding whitespace from the text fields.
func (v *Values) Normalize() {
	v.Content = strings.TrimSpace(v.Content)
	v.BrewingMethod = strings.TrimSpace(v.BrewingMethod)
	v.BrewingDescription = strings.TrimSpace(v.BrewingDescription)
}

// Validate checks the draft after normalizing a copy of it. The error is a
// *domain.ValidationError keyed by JSON field name.
func (v Values) Validate() error {
	v.Normalize()
	err := validator.Validate(v)
	if err == nil {
		return nil
	}
	var ve *validator.ValidationError
	if errors.As(err, &ve) {
		return &domain.ValidationError{Message: "review is incomplete", Fields: ve.Fields()}
	}
	return &domain.ValidationError{Message: err.Error()}
}

// Input turns the draft into a request body for coffeeID.
func (v Values) Input(coffeeID int64) domain.ReviewInput {
	v.Normalize()
	return domain.ReviewInput{
		CoffeeID:           coffeeID,
		Rating:             v.Rating,
		Content:            v.Content,
		BrewingMethod:      v.BrewingMethod,
		BrewingDescription: v.BrewingDescription,
	}
}
