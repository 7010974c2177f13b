package chef

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/llm"
)

type recipeIngredient struct {
	Name     llm.FlexString `json:"name"`
	Quantity llm.FlexString `json:"quantity"`
	Unit     llm.FlexString `json:"unit"`
}

func (i *recipeIngredient) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*i = recipeIngredient{Name: llm.FlexString(strings.TrimSpace(name))}
		return nil
	}
	type plain recipeIngredient
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*i = recipeIngredient(p)
	return nil
}

type recipeItem struct {
	Title       llm.FlexString    `json:"title"`
	Description llm.FlexString    `json:"description"`
	Cuisine     llm.FlexString    `json:"cuisine"`
	Servings    llm.FlexString    `json:"servings"`
	PrepTime    llm.FlexString    `json:"prep_time"`
	CookTime    llm.FlexString    `json:"cook_time"`
	Ingredients []json.RawMessage `json:"ingredients"`
	Steps       []json.RawMessage `json:"steps"`
}

// parseRecipes decodes a generation reply. Each recipe is decoded on its own
// so one malformed entry does not discard the rest. The returned slice holds
// only well-formed, distinctly titled recipes in reply order.
func parseRecipes(text string) ([]kitchen.Recipe, error) {
	payload, err := llm.ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if payload[0] == '{' {
		var envelope struct {
			Recipes []json.RawMessage `json:"recipes"`
			Title   json.RawMessage   `json:"title"`
			Steps   json.RawMessage   `json:"steps"`
		}
		if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
			return nil, fmt.Errorf("unmarshaling json: %w", err)
		}
		switch {
		case envelope.Recipes != nil:
			items = envelope.Recipes
		case envelope.Title != nil || envelope.Steps != nil:
			// A lone recipe with no envelope
			items = []json.RawMessage{json.RawMessage(payload)}
		default:
			return nil, errors.New(`missing "recipes" field`)
		}
	} else if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	recipes := make([]kitchen.Recipe, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, raw := range items {
		recipe, ok := decodeRecipe(raw)
		if !ok {
			continue
		}
		key := strings.ToLower(recipe.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

// decodeRecipe reports false for entries without a title or without steps
func decodeRecipe(raw json.RawMessage) (kitchen.Recipe, bool) {
	var item recipeItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return kitchen.Recipe{}, false
	}

	recipe := kitchen.Recipe{
		Title:       string(item.Title),
		Description: string(item.Description),
		Cuisine:     string(item.Cuisine),
		Servings:    parseServings(string(item.Servings)),
		PrepTime:    string(item.PrepTime),
		CookTime:    string(item.CookTime),
	}
	if recipe.Title == "" {
		return kitchen.Recipe{}, false
	}

	for _, s := range item.Steps {
		var step llm.FlexString
		if err := json.Unmarshal(s, &step); err != nil || step == "" {
			continue
		}
		recipe.Steps = append(recipe.Steps, string(step))
	}
	if len(recipe.Steps) == 0 {
		return kitchen.Recipe{}, false
	}

	recipe.Ingredients = make([]kitchen.Ingredient, 0, len(item.Ingredients))
	for _, r := range item.Ingredients {
		var ing recipeIngredient
		if err := json.Unmarshal(r, &ing); err != nil || ing.Name == "" {
			continue
		}
		recipe.Ingredients = append(recipe.Ingredients, kitchen.Ingredient{
			Name:     string(ing.Name),
			Quantity: string(ing.Quantity),
			Unit:     string(ing.Unit),
		})
	}

	return recipe, true
}

// parseServings reads the leading integer of values like "4" or "4 people"
func parseServings(s string) int {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
		return n
	}
	if f, err := strconv.ParseFloat(fields[0], 64); err == nil && f >= 1 {
		return int(f)
	}
	return 0
}
