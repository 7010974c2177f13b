// Package session sequences one user's way from fridge photos to a rendered
// recipe and keeps the per-session state between requests.
package session

import (
	"time"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/scanning"
)

// State is everything a session knows. It is a value: Orchestrator steps take
// one State and return a new one without modifying their input.
type State struct {
	ID    string `json:"id"`
	Stage Stage  `json:"stage"`
	// Generation increments on every committed change. Blocking calls are
	// tagged with it so late results can be recognized and dropped.
	Generation uint64 `json:"generation"`

	Images []scanning.Image `json:"images,omitempty"`
	// Duplicates is the number of uploads dropped by the last Upload
	Duplicates int `json:"duplicates"`

	Ingredients []kitchen.Ingredient   `json:"ingredients,omitempty"`
	Request     *kitchen.RecipeRequest `json:"request,omitempty"`
	Recipes     *kitchen.RecipeSet     `json:"recipes,omitempty"`
	Selected    int                    `json:"selected"`
	Document    *kitchen.Document      `json:"document,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SelectedRecipe returns the chosen recipe once the session reached RecipeSelected
func (s State) SelectedRecipe() (kitchen.Recipe, bool) {
	if s.Stage < RecipeSelected || s.Recipes == nil || s.Selected < 0 || s.Selected >= len(s.Recipes.Recipes) {
		return kitchen.Recipe{}, false
	}
	return s.Recipes.Recipes[s.Selected], true
}

// clone copies every slice and pointer so the result shares nothing with s
func (s State) clone() State {
	out := s
	out.Images = append([]scanning.Image(nil), s.Images...)
	out.Ingredients = append([]kitchen.Ingredient(nil), s.Ingredients...)
	if s.Request != nil {
		req := *s.Request
		req.Ingredients = append([]kitchen.Ingredient(nil), req.Ingredients...)
		out.Request = &req
	}
	if s.Recipes != nil {
		set := *s.Recipes
		set.Recipes = append([]kitchen.Recipe(nil), set.Recipes...)
		out.Recipes = &set
	}
	if s.Document != nil {
		doc := *s.Document
		out.Document = &doc
	}
	return out
}

// next returns a copy of s advanced to stage with a new generation
func (s State) next(stage Stage) State {
	out := s.clone()
	out.Stage = stage
	out.Generation++
	return out
}

// clearFrom drops everything produced at or after stage
func (s *State) clearFrom(stage Stage) {
	if stage <= IngredientsExtracted {
		s.Ingredients = nil
	}
	if stage <= IngredientsConfirmed {
		s.Request = nil
	}
	if stage <= RecipesGenerated {
		s.Recipes = nil
	}
	if stage <= RecipeSelected {
		s.Selected = 0
	}
	if stage <= DocumentRendered {
		s.Document = nil
	}
}
