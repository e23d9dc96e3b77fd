package form

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jbytow/coffeetica/services/web/internal/domain"
)

func validValues() Values {
	return Values{Rating: 4.5, Content: "Juicy", BrewingMethod: "V60"}
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, validValues().Validate())

	v := validValues()
	v.BrewingDescription = strings.Repeat("d", MaxBrewingDescriptionLen)
	assert.NoError(t, v.Validate())
}

func TestValidate_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Values)
		field  string
	}{
		{"rating not picked", func(v *Values) { v.Rating = 0 }, "rating"},
		{"rating off step", func(v *Values) { v.Rating = 4.3 }, "rating"},
		{"rating too high", func(v *Values) { v.Rating = 5.5 }, "rating"},
		{"blank content", func(v *Values) { v.Content = "   " }, "content"},
		{"blank brewing method", func(v *Values) { v.BrewingMethod = "" }, "brewingMethod"},
		{"long brewing method", func(v *Values) { v.BrewingMethod = strings.Repeat("m", MaxBrewingMethodLen+1) }, "brewingMethod"},
		{"long description", func(v *Values) { v.BrewingDescription = strings.Repeat("d", MaxBrewingDescriptionLen+1) }, "brewingDescription"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validValues()
			tt.mutate(&v)

			err := v.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
			assert.Len(t, ve.Fields, 1)
		})
	}
}

func TestValidate_EmptyDraftReportsAllRequiredFields(t *testing.T) {
	var ve *domain.ValidationError
	require.ErrorAs(t, NewEmpty().Validate(), &ve)

	assert.Equal(t, map[string]string{
		"rating":        "is required",
		"content":       "is required",
		"brewingMethod": "is required",
	}, ve.Fields)
}

func TestFromReview(t *testing.T) {
	r := &domain.Review{
		ID: 9, CoffeeID: 1, Rating: 3.5, Content: "Nutty",
		BrewingMethod: "Aeropress", BrewingDescription: "2 min", CreatedAt: time.Now(),
	}

	v := FromReview(r)
	assert.Equal(t, Values{Rating: 3.5, Content: "Nutty", BrewingMethod: "Aeropress", BrewingDescription: "2 min"}, v)
	assert.Equal(t, NewEmpty(), FromReview(nil))
}

func TestInput_TrimsAndCarriesCoffee(t *testing.T) {
	v := Values{Rating: 4, Content: "  Sweet ", BrewingMethod: " Chemex", BrewingDescription: " "}

	in := v.Input(3)
	assert.Equal(t, domain.ReviewInput{CoffeeID: 3, Rating: 4, Content: "Sweet", BrewingMethod: "Chemex"}, in)
	assert.Equal(t, "  Sweet ", v.Content, "Input must not modify the draft")
}
