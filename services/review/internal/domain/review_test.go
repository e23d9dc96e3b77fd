package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		sortBy, direction string
		field             SortField
		dir               Direction
	}{
		{"createdAt", "desc", SortCreatedAt, Desc},
		{"createdAt", "asc", SortCreatedAt, Desc},
		{"rating", "asc", SortRating, Asc},
		{"rating", "desc", SortRating, Desc},
		{"rating", "", SortRating, Desc},
		{"brewingMethod", "asc", SortCreatedAt, Desc},
		{"", "", SortCreatedAt, Desc},
	}
	for _, tt := range tests {
		field, dir := ParseSort(tt.sortBy, tt.direction)
		assert.Equal(t, tt.field, field, "%s/%s", tt.sortBy, tt.direction)
		assert.Equal(t, tt.dir, dir, "%s/%s", tt.sortBy, tt.direction)
	}
}

func TestActor_CanModify(t *testing.T) {
	review := &Review{ID: 12, UserID: 7}

	assert.True(t, Actor{UserID: 7, Roles: []string{RoleUser}}.CanModify(review))
	assert.False(t, Actor{UserID: 8, Roles: []string{RoleUser}}.CanModify(review))
	assert.True(t, Actor{UserID: 8, Roles: []string{RoleAdmin}}.CanModify(review))
	assert.True(t, Actor{UserID: 9, Roles: []string{RoleUser, RoleSuperAdmin}}.CanModify(review))
}

func TestReviewInput_ApplyKeepsIdentity(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	r := &Review{ID: 12, CoffeeID: 42, UserID: 7, Rating: 4.5, Content: "Fruity", BrewingMethod: "V60", CreatedAt: created}

	ReviewInput{CoffeeID: 42, Rating: 3.5, Content: "Flat", BrewingMethod: "French press", BrewingDescription: "4 min"}.Apply(r)

	assert.Equal(t, int64(12), r.ID)
	assert.Equal(t, int64(7), r.UserID)
	assert.Equal(t, created, r.CreatedAt)
	assert.Equal(t, 3.5, r.Rating)
	assert.Equal(t, "French press", r.BrewingMethod)
	assert.Equal(t, "4 min", r.BrewingDescription)
}
