package kitchen

import "strings"

// DedupeIngredients drops ingredients whose names repeat case-insensitively,
// keeping the first occurrence and the original order. Blank names are dropped.
func DedupeIngredients(in []Ingredient) []Ingredient {
	out := make([]Ingredient, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, ing := range in {
		n, err := ing.Normalize()
		if err != nil {
			continue
		}
		key := strings.ToLower(n.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}
