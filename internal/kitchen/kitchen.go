// Package kitchen defines the values that flow through the fridge-to-recipe
// pipeline. It depends on nothing else in the module.
package kitchen

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyIngredient is returned when an ingredient name is blank after trimming
	ErrEmptyIngredient = errors.New("ingredient name is required")

	// ErrNoIngredientsSelected is returned when a recipe request has no ingredients
	ErrNoIngredientsSelected = errors.New("at least one ingredient is required")

	// ErrInvalidCount is returned when the requested recipe count is out of range
	ErrInvalidCount = errors.New("invalid recipe count")
)

// Ingredient is a named food item with an optional free-text quantity
type Ingredient struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// Normalize trims whitespace from every field and validates the name
func (i Ingredient) Normalize() (Ingredient, error) {
	out := Ingredient{
		Name:     strings.TrimSpace(i.Name),
		Quantity: strings.TrimSpace(i.Quantity),
		Unit:     strings.TrimSpace(i.Unit),
	}
	if out.Name == "" {
		return Ingredient{}, ErrEmptyIngredient
	}
	return out, nil
}

// String renders the ingredient the way it is shown to a model or a reader,
// e.g. "2 cups Rice" or "Onion".
func (i Ingredient) String() string {
	parts := make([]string, 0, 3)
	if i.Quantity != "" {
		parts = append(parts, i.Quantity)
	}
	if i.Unit != "" {
		parts = append(parts, i.Unit)
	}
	parts = append(parts, i.Name)
	return strings.Join(parts, " ")
}

// RecipeRequest is the frozen input of one generation call
type RecipeRequest struct {
	Ingredients []Ingredient `json:"ingredients"`
	Preferences Preferences  `json:"preferences"`
	Count       int          `json:"count"`
}

// NewRecipeRequest copies the ingredients and validates the request.
// maxCount <= 0 means no upper bound.
func NewRecipeRequest(ingredients []Ingredient, prefs Preferences, count, maxCount int) (RecipeRequest, error) {
	if len(ingredients) == 0 {
		return RecipeRequest{}, ErrNoIngredientsSelected
	}
	if count < 1 {
		return RecipeRequest{}, fmt.Errorf("%w: %d is less than 1", ErrInvalidCount, count)
	}
	if maxCount > 0 && count > maxCount {
		return RecipeRequest{}, fmt.Errorf("%w: %d exceeds the maximum of %d", ErrInvalidCount, count, maxCount)
	}

	frozen := make([]Ingredient, 0, len(ingredients))
	for _, ing := range ingredients {
		n, err := ing.Normalize()
		if err != nil {
			return RecipeRequest{}, err
		}
		frozen = append(frozen, n)
	}

	return RecipeRequest{
		Ingredients: frozen,
		Preferences: prefs.Normalize(),
		Count:       count,
	}, nil
}

// Recipe is one generated recipe. Values are never mutated after generation.
type Recipe struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Cuisine     string       `json:"cuisine,omitempty"`
	Servings    int          `json:"servings,omitempty"`
	PrepTime    string       `json:"prep_time,omitempty"`
	CookTime    string       `json:"cook_time,omitempty"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       []string     `json:"steps"`
}

// RecipeSet is the outcome of one generation call
type RecipeSet struct {
	Recipes   []Recipe `json:"recipes"`
	Requested int      `json:"requested"`
	// Partial is set when fewer than Requested recipes could be parsed
	Partial bool `json:"partial"`
}

// Document is a rendered recipe ready for download
type Document struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Data     []byte `json:"data"`
}

// FormatPDF is the MIME type of rendered documents
const FormatPDF = "application/pdf"
