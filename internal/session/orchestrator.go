package session

import (
	"context"
	"log/slog"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/scanning"
)

// ImageNormalizer validates uploads and drops ones already in the session
type ImageNormalizer interface {
	Admit(existing []scanning.Image, uploads []scanning.Upload) ([]scanning.Image, int, error)
}

// IngredientExtractor reads an ingredient list from photos
type IngredientExtractor interface {
	Extract(ctx context.Context, images []scanning.Image) ([]kitchen.Ingredient, error)
}

// RecipeGenerator suggests recipes for a confirmed request
type RecipeGenerator interface {
	Generate(ctx context.Context, req kitchen.RecipeRequest) (*kitchen.RecipeSet, error)
}

// DocumentRenderer lays out a recipe for download
type DocumentRenderer interface {
	Render(recipe kitchen.Recipe) (*kitchen.Document, error)
}

// Orchestrator sequences the workflow. It holds no session data: every step
// takes a State and returns the next one. On error the input State is
// returned unchanged.
type Orchestrator struct {
	normalizer ImageNormalizer
	extractor  IngredientExtractor
	generator  RecipeGenerator
	renderer   DocumentRenderer
	maxRecipes int
}

// NewOrchestrator wires the pipeline components. maxRecipes caps the count
// accepted by Confirm; zero means no cap.
func NewOrchestrator(normalizer ImageNormalizer, extractor IngredientExtractor, generator RecipeGenerator, renderer DocumentRenderer, maxRecipes int) *Orchestrator {
	return &Orchestrator{
		normalizer: normalizer,
		extractor:  extractor,
		generator:  generator,
		renderer:   renderer,
		maxRecipes: maxRecipes,
	}
}

// MaxRecipes returns the largest recipe count Confirm accepts
func (o *Orchestrator) MaxRecipes() int {
	return o.maxRecipes
}

// Check returns a *StageError when action is not allowed from s
func (o *Orchestrator) Check(action Action, s State) error {
	if !s.Stage.Allowed(action) {
		return &StageError{Action: action, Stage: s.Stage}
	}
	return nil
}

// Upload adds photos to the session. Everything derived from earlier photos is
// discarded. When every upload is a duplicate the state is left as it was
// apart from the Duplicates count.
func (o *Orchestrator) Upload(s State, uploads []scanning.Upload) (State, error) {
	if len(uploads) == 0 {
		return s, scanning.ErrNoImages
	}

	added, duplicates, err := o.normalizer.Admit(s.Images, uploads)
	if err != nil {
		return s, err
	}
	if len(added) == 0 {
		out := s.clone()
		out.Duplicates = duplicates
		return out, nil
	}

	out := s.next(ImagesUploaded)
	out.clearFrom(IngredientsExtracted)
	out.Images = append(out.Images, added...)
	out.Duplicates = duplicates
	return out, nil
}

// ClearImages discards the photos and everything derived from them
func (o *Orchestrator) ClearImages(s State) (State, error) {
	out := s.next(Idle)
	out.clearFrom(IngredientsExtracted)
	out.Images = nil
	out.Duplicates = 0
	return out, nil
}

// Extract asks the vision model for the ingredients in the session's photos
// and replaces the editor contents with them.
func (o *Orchestrator) Extract(ctx context.Context, s State) (State, error) {
	if err := o.Check(ActionExtract, s); err != nil {
		return s, err
	}

	ingredients, err := o.extractor.Extract(ctx, s.Images)
	if err != nil {
		return s, err
	}

	out := s.next(IngredientsExtracted)
	out.clearFrom(IngredientsExtracted)
	out.Ingredients = ingredients
	return out, nil
}

// AddIngredient appends to the ingredient list
func (o *Orchestrator) AddIngredient(s State, ing kitchen.Ingredient) (State, error) {
	return o.edit(s, func(e *Editor) error { return e.Add(ing) })
}

// EditIngredient replaces the ingredient at i
func (o *Orchestrator) EditIngredient(s State, i int, ing kitchen.Ingredient) (State, error) {
	return o.edit(s, func(e *Editor) error { return e.Edit(i, ing) })
}

// RemoveIngredient deletes the ingredient at i
func (o *Orchestrator) RemoveIngredient(s State, i int) (State, error) {
	return o.edit(s, func(e *Editor) error { return e.Remove(i) })
}

// edit applies fn to a fresh editor and returns the session to review.
// Confirmed requests and generated recipes no longer match the list and are
// dropped.
func (o *Orchestrator) edit(s State, fn func(*Editor) error) (State, error) {
	if err := o.Check(ActionEditIngredients, s); err != nil {
		return s, err
	}

	editor := NewEditor(s.Ingredients)
	if err := fn(editor); err != nil {
		return s, err
	}

	out := s.next(IngredientsExtracted)
	out.clearFrom(IngredientsConfirmed)
	out.Ingredients = editor.List()
	return out, nil
}

// Confirm freezes the ingredient list together with the preferences and
// recipe count.
func (o *Orchestrator) Confirm(s State, prefs kitchen.Preferences, count int) (State, error) {
	if err := o.Check(ActionConfirm, s); err != nil {
		return s, err
	}

	req, err := NewEditor(s.Ingredients).Commit(prefs, count, o.maxRecipes)
	if err != nil {
		return s, err
	}

	out := s.next(IngredientsConfirmed)
	out.clearFrom(IngredientsConfirmed)
	out.Request = &req
	return out, nil
}

// Generate asks the text model for recipes matching the confirmed request
func (o *Orchestrator) Generate(ctx context.Context, s State) (State, error) {
	if err := o.Check(ActionGenerate, s); err != nil {
		return s, err
	}
	if s.Request == nil {
		return s, &StageError{Action: ActionGenerate, Stage: s.Stage}
	}

	set, err := o.generator.Generate(ctx, *s.Request)
	if err != nil {
		return s, err
	}

	out := s.next(RecipesGenerated)
	out.clearFrom(RecipesGenerated)
	out.Recipes = set
	return out, nil
}

// Select picks one of the generated recipes. Selecting again discards a
// previously rendered document.
func (o *Orchestrator) Select(s State, i int) (State, error) {
	if err := o.Check(ActionSelect, s); err != nil {
		return s, err
	}
	n := 0
	if s.Recipes != nil {
		n = len(s.Recipes.Recipes)
	}
	if i < 0 || i >= n {
		return s, &IndexOutOfRangeError{Index: i, Len: n}
	}

	out := s.next(RecipeSelected)
	out.clearFrom(RecipeSelected)
	out.Selected = i
	return out, nil
}

// Render lays out the selected recipe
func (o *Orchestrator) Render(s State) (State, error) {
	if err := o.Check(ActionRender, s); err != nil {
		return s, err
	}
	recipe, ok := s.SelectedRecipe()
	if !ok {
		return s, &StageError{Action: ActionRender, Stage: s.Stage}
	}

	doc, err := o.renderer.Render(recipe)
	if err != nil {
		slog.Error("Failed to render recipe", "session", s.ID, "title", recipe.Title, "error", err)
		return s, err
	}

	out := s.next(DocumentRendered)
	out.Document = doc
	return out, nil
}
