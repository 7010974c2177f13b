package kitchen

import "strings"

// Diet options offered by the UI. Any other non-empty string is accepted as a
// free-text constraint.
var DietOptions = []string{
	"Vegetarian",
	"Vegan",
	"Gluten-Free",
	"Keto",
	"Low-Carb",
	"Paleo",
}

// CuisineOptions offered by the UI. "Any" means no cuisine constraint.
var CuisineOptions = []string{
	"Any",
	"Italian",
	"Mexican",
	"Asian",
	"Mediterranean",
	"American",
	"Indian",
	"French",
}

// CuisineAny disables the cuisine constraint
const CuisineAny = "Any"

// Preferences are the dietary constraints of a single generation request
type Preferences struct {
	Diets     []string `json:"diets,omitempty"`
	Allergies []string `json:"allergies,omitempty"`
	Cuisine   string   `json:"cuisine,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Normalize trims values, drops blanks and "None" diets, deduplicates
// case-insensitively and maps known diets onto their canonical spelling.
// The result shares no slices with p.
func (p Preferences) Normalize() Preferences {
	out := Preferences{
		Diets:     cleanList(p.Diets, canonicalDiet),
		Allergies: cleanList(p.Allergies, nil),
		Cuisine:   strings.TrimSpace(p.Cuisine),
		Notes:     strings.TrimSpace(p.Notes),
	}
	if strings.EqualFold(out.Cuisine, CuisineAny) {
		out.Cuisine = ""
	}
	for _, c := range CuisineOptions {
		if strings.EqualFold(out.Cuisine, c) {
			out.Cuisine = c
		}
	}
	return out
}

// IsEmpty reports whether no constraint is set
func (p Preferences) IsEmpty() bool {
	n := p.Normalize()
	return len(n.Diets) == 0 && len(n.Allergies) == 0 && n.Cuisine == "" && n.Notes == ""
}

func canonicalDiet(s string) string {
	if strings.EqualFold(s, "none") {
		return ""
	}
	for _, d := range DietOptions {
		if strings.EqualFold(s, d) || strings.EqualFold(strings.ReplaceAll(s, " ", "-"), d) {
			return d
		}
	}
	return s
}

func cleanList(in []string, canon func(string) string) []string {
	var out []string
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if canon != nil {
			v = canon(v)
		}
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
