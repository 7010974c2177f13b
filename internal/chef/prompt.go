package chef

import (
	"fmt"
	"strings"

	"github.com/zombor/fridge-chef/internal/kitchen"
)

// recipeSystem frames the text model for every generation call
const recipeSystem = "You are an experienced home cook who writes clear, practical recipes from whatever is in the fridge."

// recipeFormat is appended to every generation prompt
const recipeFormat = `Return ONLY valid JSON in this exact format:
{
  "recipes": [
    {
      "title": "Recipe name",
      "description": "One or two sentences about the dish",
      "cuisine": "Italian",
      "servings": 2,
      "prep_time": "10 minutes",
      "cook_time": "25 minutes",
      "ingredients": [
        {"name": "Chicken breast", "quantity": "2", "unit": ""},
        {"name": "Rice", "quantity": "1", "unit": "cup"}
      ],
      "steps": [
        "First step",
        "Second step"
      ]
    }
  ]
}

Important:
- Every recipe must have a distinct title
- Every recipe must have at least one step
- Use mainly the listed ingredients; common pantry staples (salt, pepper, oil, water) may be assumed
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// buildPrompt embeds the request's ingredients, preferences and count
func buildPrompt(req kitchen.RecipeRequest) string {
	var b strings.Builder

	recipes := "recipe"
	if req.Count != 1 {
		recipes = "recipes"
	}
	fmt.Fprintf(&b, "Suggest %d distinct %s that can be cooked with these ingredients:\n", req.Count, recipes)
	for _, ing := range req.Ingredients {
		fmt.Fprintf(&b, "- %s\n", ing)
	}

	prefs := req.Preferences
	if !prefs.IsEmpty() {
		b.WriteString("\nDietary requirements:\n")
		if len(prefs.Diets) > 0 {
			fmt.Fprintf(&b, "- Diet: %s\n", strings.Join(prefs.Diets, ", "))
		}
		if len(prefs.Allergies) > 0 {
			fmt.Fprintf(&b, "- Must not contain (allergies): %s\n", strings.Join(prefs.Allergies, ", "))
		}
		if prefs.Cuisine != "" {
			fmt.Fprintf(&b, "- Cuisine: %s\n", prefs.Cuisine)
		}
		if prefs.Notes != "" {
			fmt.Fprintf(&b, "- Additional notes: %s\n", prefs.Notes)
		}
		b.WriteString("If the requirements conflict with each other or with the ingredients, follow the requirements and leave out ingredients that violate them.\n")
	}

	b.WriteString("\n")
	b.WriteString(recipeFormat)
	return b.String()
}
