// Package cart keeps shopper carts and applies mutations optimistically: the
// projected state is stored first, confirmed against the catalog, and undone
// with a compensating action when confirmation fails.
package cart

import (
	"slices"

	"bakehouse/internal/model"
)

type ActionType string

const (
	ActionAddItem        ActionType = "add_item"
	ActionRemoveItem     ActionType = "remove_item"
	ActionSetQuantity    ActionType = "set_quantity"
	ActionSetPreferences ActionType = "set_preferences"
	ActionClear          ActionType = "clear"

	// Only produced by Compensate.
	actionRestoreLines ActionType = "restore_lines"
	actionNoop         ActionType = "noop"
)

// Action is one cart mutation.
type Action struct {
	Type        ActionType         `json:"type"`
	ProductID   int64              `json:"product_id,omitempty"`
	Quantity    int                `json:"quantity,omitempty"`
	Preferences *model.Preferences `json:"preferences,omitempty"`

	restore []placedLine
}

// placedLine is a line and the position it held before the action ran.
type placedLine struct {
	line  model.CartLine
	index int
}

// Reduce returns the cart after applying a. The input cart is not modified.
func Reduce(c model.Cart, a Action) model.Cart {
	out := c
	out.Lines = slices.Clone(c.Lines)

	switch a.Type {
	case ActionAddItem:
		if a.Quantity <= 0 {
			return out
		}
		if _, i := out.Line(a.ProductID); i >= 0 {
			out.Lines[i].Quantity += a.Quantity
			return out
		}
		out.Lines = append(out.Lines, model.CartLine{ProductID: a.ProductID, Quantity: a.Quantity})

	case ActionRemoveItem:
		out.Lines = slices.DeleteFunc(out.Lines, func(l model.CartLine) bool { return l.ProductID == a.ProductID })

	case ActionSetQuantity:
		_, i := out.Line(a.ProductID)
		switch {
		case a.Quantity <= 0 && i >= 0:
			out.Lines = slices.Delete(out.Lines, i, i+1)
		case a.Quantity <= 0:
		case i >= 0:
			out.Lines[i].Quantity = a.Quantity
		default:
			out.Lines = append(out.Lines, model.CartLine{ProductID: a.ProductID, Quantity: a.Quantity})
		}

	case ActionSetPreferences:
		if a.Preferences != nil {
			out.Preferences = *a.Preferences
		}

	case ActionClear:
		out.Lines = nil

	case actionRestoreLines:
		// Lines added meanwhile by other mutations are kept.
		for _, p := range a.restore {
			if _, i := out.Line(p.line.ProductID); i >= 0 {
				out.Lines[i] = p.line
				continue
			}
			out.Lines = slices.Insert(out.Lines, min(p.index, len(out.Lines)), p.line)
		}
	}
	return out
}

// compensators maps each action to the action undoing it, given the cart before it ran.
var compensators = map[ActionType]func(before model.Cart, a Action) Action{
	ActionAddItem: func(before model.Cart, a Action) Action {
		if l, i := before.Line(a.ProductID); i >= 0 {
			return Action{Type: ActionSetQuantity, ProductID: a.ProductID, Quantity: l.Quantity}
		}
		return Action{Type: ActionRemoveItem, ProductID: a.ProductID}
	},
	ActionRemoveItem: func(before model.Cart, a Action) Action {
		return restoreLine(before, a.ProductID)
	},
	ActionSetQuantity: func(before model.Cart, a Action) Action {
		if _, i := before.Line(a.ProductID); i >= 0 {
			// Restores position as well as quantity when the line was dropped.
			return restoreLine(before, a.ProductID)
		}
		return Action{Type: ActionRemoveItem, ProductID: a.ProductID}
	},
	ActionSetPreferences: func(before model.Cart, _ Action) Action {
		prefs := before.Preferences
		return Action{Type: ActionSetPreferences, Preferences: &prefs}
	},
	ActionClear: func(before model.Cart, _ Action) Action {
		restore := make([]placedLine, len(before.Lines))
		for i, l := range before.Lines {
			restore[i] = placedLine{line: l, index: i}
		}
		return Action{Type: actionRestoreLines, restore: restore}
	},
}

func restoreLine(before model.Cart, productID int64) Action {
	l, i := before.Line(productID)
	if i < 0 {
		return Action{Type: actionNoop}
	}
	return Action{Type: actionRestoreLines, restore: []placedLine{{line: l, index: i}}}
}

// Compensate returns the action that undoes a when applied to Reduce(before, a).
func Compensate(before model.Cart, a Action) Action {
	fn, ok := compensators[a.Type]
	if !ok {
		return Action{Type: actionNoop}
	}
	return fn(before, a)
}
