package session

import "github.com/zombor/fridge-chef/internal/kitchen"

// Editor holds the user's working copy of the ingredient list. Duplicates are
// allowed; only blank names are rejected.
type Editor struct {
	items []kitchen.Ingredient
}

// NewEditor starts an editor from a copy of items
func NewEditor(items []kitchen.Ingredient) *Editor {
	return &Editor{items: append([]kitchen.Ingredient(nil), items...)}
}

// Add appends an ingredient
func (e *Editor) Add(ing kitchen.Ingredient) error {
	n, err := ing.Normalize()
	if err != nil {
		return err
	}
	e.items = append(e.items, n)
	return nil
}

// Remove deletes the ingredient at i
func (e *Editor) Remove(i int) error {
	if err := e.check(i); err != nil {
		return err
	}
	e.items = append(e.items[:i:i], e.items[i+1:]...)
	return nil
}

// Edit replaces the ingredient at i
func (e *Editor) Edit(i int, ing kitchen.Ingredient) error {
	if err := e.check(i); err != nil {
		return err
	}
	n, err := ing.Normalize()
	if err != nil {
		return err
	}
	e.items[i] = n
	return nil
}

// List returns a copy of the current list
func (e *Editor) List() []kitchen.Ingredient {
	return append([]kitchen.Ingredient{}, e.items...)
}

// Len returns the number of ingredients
func (e *Editor) Len() int {
	return len(e.items)
}

// Commit freezes the current list into a recipe request. Later edits do not
// affect the returned request.
func (e *Editor) Commit(prefs kitchen.Preferences, count, maxCount int) (kitchen.RecipeRequest, error) {
	return kitchen.NewRecipeRequest(e.items, prefs, count, maxCount)
}

func (e *Editor) check(i int) error {
	if i < 0 || i >= len(e.items) {
		return &IndexOutOfRangeError{Index: i, Len: len(e.items)}
	}
	return nil
}
