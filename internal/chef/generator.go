// Package chef generates recipe candidates from a confirmed ingredient list.
package chef

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
)

var (
	// ErrGenerationService is returned when the text model cannot be reached
	// or refuses the request
	ErrGenerationService = errors.New("recipe generation service failed")

	// ErrGenerationParse is matched by GenerationParseError
	ErrGenerationParse = errors.New("could not parse recipe response")
)

// GenerationParseError is returned when no usable recipe could be read from
// the model's reply. Raw is kept for logging only.
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	if e.Err == nil {
		return ErrGenerationParse.Error()
	}
	return fmt.Sprintf("%s: %v", ErrGenerationParse, e.Err)
}

func (e *GenerationParseError) Unwrap() error {
	return e.Err
}

func (e *GenerationParseError) Is(target error) bool {
	return target == ErrGenerationParse
}

// Generator asks a text model for recipes
type Generator struct {
	model llm.Model
}

// NewGenerator creates a Generator backed by model
func NewGenerator(model llm.Model) *Generator {
	return &Generator{model: model}
}

// Generate returns up to req.Count distinct recipes. When at least one but
// fewer than req.Count recipes are usable the set is returned with Partial set.
func (g *Generator) Generate(ctx context.Context, req kitchen.RecipeRequest) (*kitchen.RecipeSet, error) {
	if len(req.Ingredients) == 0 {
		return nil, kitchen.ErrNoIngredientsSelected
	}
	if req.Count < 1 {
		return nil, fmt.Errorf("%w: %d is less than 1", kitchen.ErrInvalidCount, req.Count)
	}

	text, err := g.model.Generate(ctx, llm.Request{
		System: recipeSystem,
		Prompt: buildPrompt(req),
	})
	if err != nil {
		slog.Error("Failed to generate recipes",
			"model", g.model.Name(),
			"ingredients", len(req.Ingredients),
			"count", req.Count,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGenerationService, err)
	}

	recipes, err := parseRecipes(text)
	if err == nil && len(recipes) == 0 {
		err = errors.New("no well-formed recipe in response")
	}
	if err != nil {
		slog.Warn("Unparseable recipe response", "model", g.model.Name(), "error", err, "raw", text)
		return nil, &GenerationParseError{Raw: text, Err: err}
	}

	if len(recipes) > req.Count {
		recipes = recipes[:req.Count]
	}

	set := &kitchen.RecipeSet{
		Recipes:   recipes,
		Requested: req.Count,
		Partial:   len(recipes) < req.Count,
	}
	if set.Partial {
		slog.Warn("Partial recipe response",
			"model", g.model.Name(),
			"requested", req.Count,
			"parsed", len(recipes),
			"raw", text,
		)
	} else {
		slog.Info("Generated recipes", "model", g.model.Name(), "count", len(recipes))
	}
	return set, nil
}
