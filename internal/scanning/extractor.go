package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
)

// ingredientScanSystem frames the vision model for every extraction call
const ingredientScanSystem = "You are a kitchen assistant that identifies food items in photographs of refrigerators, pantries and countertops."

// ingredientScanPrompt is the fixed instruction sent with the fridge photos
const ingredientScanPrompt = `List all the food items you can see in these fridge images.

For each distinct food item:
1. **Name**: A short common name, e.g. "Eggs", "Cheddar cheese", "Spinach". Do not include brand names unless the item is unidentifiable without them.
2. **Quantity**: How much is visible, if you can estimate it (e.g. "6", "half", "1"). Leave empty if unsure.
3. **Unit**: The unit for the quantity (e.g. "bottle", "cups", "g"). Leave empty if not applicable.

Return ONLY valid JSON in this exact format:
{
  "ingredients": [
    {"name": "Eggs", "quantity": "6", "unit": ""},
    {"name": "Milk", "quantity": "1", "unit": "carton"}
  ]
}

Important:
- Only list food and drink, not containers, shelves or appliances
- List each item once even if it appears in several images
- If you cannot see any food, return {"ingredients": []}
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// Extractor turns fridge photos into an ingredient list using a vision model
type Extractor struct {
	model llm.Model
}

// NewExtractor creates an Extractor backed by model
func NewExtractor(model llm.Model) *Extractor {
	return &Extractor{model: model}
}

// Extract sends all images in a single request and returns the deduplicated
// ingredient list. It never returns an empty list without an error.
func (e *Extractor) Extract(ctx context.Context, images []Image) ([]kitchen.Ingredient, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}

	req := llm.Request{
		System: ingredientScanSystem,
		Prompt: ingredientScanPrompt,
		Images: make([]llm.Image, 0, len(images)),
	}
	totalBytes := 0
	for _, img := range images {
		req.Images = append(req.Images, llm.Image{MIMEType: img.MIMEType, Data: img.Data})
		totalBytes += len(img.Data)
	}

	text, err := e.model.Generate(ctx, req)
	if err != nil {
		slog.Error("Failed to extract ingredients",
			"model", e.model.Name(),
			"images", len(images),
			"bytes", totalBytes,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrExtractionService, err)
	}

	ingredients, err := parseIngredients(text)
	if err != nil {
		var parseErr *ExtractionParseError
		if errors.As(err, &parseErr) {
			slog.Warn("Unparseable ingredient response", "model", e.model.Name(), "error", parseErr.Err, "raw", parseErr.Raw)
		}
		return nil, err
	}

	slog.Info("Extracted ingredients", "model", e.model.Name(), "images", len(images), "count", len(ingredients))
	return ingredients, nil
}
