package cart

import (
	"testing"

	"bakehouse/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseCart() model.Cart {
	return model.Cart{
		ID: "c1",
		Lines: []model.CartLine{
			{ProductID: 1, Name: "Rye", Quantity: 2, PriceCents: 450},
			{ProductID: 2, Name: "Croissant", Quantity: 1, PriceCents: 180},
		},
		Preferences: model.Preferences{StoreID: 1},
	}
}

func TestReduce(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		want   []model.CartLine
	}{
		{
			name:   "add new line",
			action: Action{Type: ActionAddItem, ProductID: 3, Quantity: 4},
			want: []model.CartLine{
				{ProductID: 1, Name: "Rye", Quantity: 2, PriceCents: 450},
				{ProductID: 2, Name: "Croissant", Quantity: 1, PriceCents: 180},
				{ProductID: 3, Quantity: 4},
			},
		},
		{
			name:   "add merges",
			action: Action{Type: ActionAddItem, ProductID: 1, Quantity: 3},
			want: []model.CartLine{
				{ProductID: 1, Name: "Rye", Quantity: 5, PriceCents: 450},
				{ProductID: 2, Name: "Croissant", Quantity: 1, PriceCents: 180},
			},
		},
		{
			name:   "remove",
			action: Action{Type: ActionRemoveItem, ProductID: 1},
			want:   []model.CartLine{{ProductID: 2, Name: "Croissant", Quantity: 1, PriceCents: 180}},
		},
		{
			name:   "set quantity zero removes",
			action: Action{Type: ActionSetQuantity, ProductID: 2, Quantity: 0},
			want:   []model.CartLine{{ProductID: 1, Name: "Rye", Quantity: 2, PriceCents: 450}},
		},
		{
			name:   "set quantity",
			action: Action{Type: ActionSetQuantity, ProductID: 2, Quantity: 6},
			want: []model.CartLine{
				{ProductID: 1, Name: "Rye", Quantity: 2, PriceCents: 450},
				{ProductID: 2, Name: "Croissant", Quantity: 6, PriceCents: 180},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := baseCart()
			got := Reduce(before, tt.action)
			assert.Equal(t, tt.want, got.Lines)
			assert.Equal(t, baseCart(), before, "input must not be modified")
		})
	}

	t.Run("clear", func(t *testing.T) {
		assert.Empty(t, Reduce(baseCart(), Action{Type: ActionClear}).Lines)
	})

	t.Run("preferences", func(t *testing.T) {
		prefs := model.Preferences{StoreID: 2, Customer: &model.Customer{Name: "Ada", Phone: "+1"}}
		got := Reduce(baseCart(), Action{Type: ActionSetPreferences, Preferences: &prefs})
		assert.Equal(t, prefs, got.Preferences)
	})
}

func TestCompensateRestoresCart(t *testing.T) {
	prefs := model.Preferences{StoreID: 9}
	actions := []Action{
		{Type: ActionAddItem, ProductID: 3, Quantity: 1},
		{Type: ActionAddItem, ProductID: 1, Quantity: 5},
		{Type: ActionRemoveItem, ProductID: 1},
		{Type: ActionRemoveItem, ProductID: 42},
		{Type: ActionSetQuantity, ProductID: 1, Quantity: 0},
		{Type: ActionSetQuantity, ProductID: 2, Quantity: 9},
		{Type: ActionSetQuantity, ProductID: 7, Quantity: 2},
		{Type: ActionSetPreferences, Preferences: &prefs},
		{Type: ActionClear},
	}

	for _, a := range actions {
		t.Run(string(a.Type), func(t *testing.T) {
			before := baseCart()
			projected := Reduce(before, a)
			restored := Reduce(projected, Compensate(before, a))
			assert.Equal(t, before.Lines, restored.Lines)
			assert.Equal(t, before.Preferences, restored.Preferences)
		})
	}
}

func TestCompensateUnknownIsNoop(t *testing.T) {
	before := baseCart()
	got := Reduce(before, Compensate(before, Action{Type: "bogus"}))
	assert.Equal(t, before, got)
}

func TestRestoreKeepsLinesAddedMeanwhile(t *testing.T) {
	before := baseCart()
	a := Action{Type: ActionRemoveItem, ProductID: before.Lines[0].ProductID}
	projected := Reduce(before, a)
	projected = Reduce(projected, Action{Type: ActionAddItem, ProductID: 42, Quantity: 1})

	restored := Reduce(projected, Compensate(before, a))
	require.Len(t, restored.Lines, len(before.Lines)+1)
	assert.Equal(t, before.Lines[0], restored.Lines[0])
	_, i := restored.Line(42)
	assert.GreaterOrEqual(t, i, 0)
}
