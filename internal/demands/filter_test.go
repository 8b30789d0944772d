package demands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ariefcatur/go-agro-market/internal/accounts"
)

func ids(ds []Demand) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func board() []Demand {
	base := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	return []Demand{
		{ID: "d1", RequesterID: "r1", Title: "Fresh Organic Tomatoes Needed", Location: "Chisinau", Status: StatusOpen, CreatedAt: base},
		{ID: "d2", RequesterID: "r2", Title: "Apples for juice", Description: "Any variety", Location: "Balti", Status: StatusInProgress, CreatedAt: base.Add(time.Hour)},
		{ID: "d4", RequesterID: "r1", Title: "Honey", Description: "Raw, for the tomato salad dressing", Status: StatusExpired, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "d3", RequesterID: "r2", Title: "Eggs", Location: "Chisinau", Status: StatusOpen, CreatedAt: base.Add(2 * time.Hour)},
	}
}

func TestFilter_NewestFirstTiesById(t *testing.T) {
	got := Filter(board(), "", FilterAll, Viewer{})
	assert.Equal(t, []string{"d3", "d4", "d2", "d1"}, ids(got))
}

func TestFilter_Text(t *testing.T) {
	assert.Equal(t, []string{"d4", "d1"}, ids(Filter(board(), "TOMATO", FilterAll, Viewer{})))
	assert.Equal(t, []string{"d3", "d1"}, ids(Filter(board(), "chisinau", FilterAll, Viewer{})))
	assert.Empty(t, Filter(board(), "wine", FilterAll, Viewer{}))
}

func TestFilter_Kinds(t *testing.T) {
	farmer := Viewer{ID: "f1", Role: accounts.RoleFarmer}
	chef := Viewer{ID: "r1", Role: accounts.RoleRestaurant}

	assert.Equal(t, []string{"d3", "d1"}, ids(Filter(board(), "", FilterOpen, chef)))
	assert.Equal(t, []string{"d4", "d1"}, ids(Filter(board(), "", FilterMine, chef)))
	assert.Empty(t, Filter(board(), "", FilterMine, farmer))
}

// canFulfill only narrows the board for farmers; any other viewer gets the
// full list.
func TestFilter_CanFulfill(t *testing.T) {
	farmer := Viewer{ID: "f1", Role: accounts.RoleFarmer}
	consumer := Viewer{ID: "c1", Role: accounts.RoleConsumer}

	assert.Equal(t, []string{"d3", "d1"}, ids(Filter(board(), "", FilterCanFulfill, farmer)))
	assert.Equal(t, []string{"d3", "d4", "d2", "d1"}, ids(Filter(board(), "", FilterCanFulfill, consumer)))
	assert.Len(t, Filter(board(), "", FilterCanFulfill, Viewer{}), 4)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusOpen, StatusInProgress))
	assert.True(t, CanTransition(StatusOpen, StatusCancelled))
	assert.True(t, CanTransition(StatusInProgress, StatusFulfilled))
	assert.True(t, CanTransition(StatusInProgress, StatusCancelled))
	assert.False(t, CanTransition(StatusOpen, StatusFulfilled))
	assert.False(t, CanTransition(StatusOpen, StatusExpired))
	assert.False(t, CanTransition(StatusFulfilled, StatusOpen))
	assert.False(t, CanTransition(StatusExpired, StatusOpen))

	assert.True(t, StatusOpen.Expirable())
	assert.True(t, StatusInProgress.Expirable())
	assert.False(t, StatusFulfilled.Expirable())
}

func TestFilterKindValid(t *testing.T) {
	assert.True(t, FilterCanFulfill.Valid())
	assert.False(t, FilterKind("nearby").Valid())
}
