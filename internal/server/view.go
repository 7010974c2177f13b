package server

import (
	"time"

	"github.com/zombor/fridge-chef/internal/kitchen"
	"github.com/zombor/fridge-chef/internal/session"
)

// sessionView is the JSON shape of a session. Image and document bytes are
// left out; the document is fetched from its own endpoint.
type sessionView struct {
	ID          string                 `json:"id"`
	Stage       session.Stage          `json:"stage"`
	Busy        session.Action         `json:"busy,omitempty"`
	Images      []imageView            `json:"images"`
	Duplicates  int                    `json:"duplicates"`
	Ingredients []kitchen.Ingredient   `json:"ingredients"`
	Request     *kitchen.RecipeRequest `json:"request,omitempty"`
	Recipes     *kitchen.RecipeSet     `json:"recipes,omitempty"`
	Selected    *int                   `json:"selected,omitempty"`
	Document    *documentView          `json:"document,omitempty"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

type imageView struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Bytes    int    `json:"bytes"`
}

type documentView struct {
	Filename string `json:"filename"`
	Format   string `json:"format"`
	Bytes    int    `json:"bytes"`
}

func newSessionView(s session.State, busy session.Action) sessionView {
	v := sessionView{
		ID:          s.ID,
		Stage:       s.Stage,
		Busy:        busy,
		Images:      make([]imageView, 0, len(s.Images)),
		Duplicates:  s.Duplicates,
		Ingredients: s.Ingredients,
		Request:     s.Request,
		Recipes:     s.Recipes,
		UpdatedAt:   s.UpdatedAt,
	}
	if v.Ingredients == nil {
		v.Ingredients = []kitchen.Ingredient{}
	}
	for _, img := range s.Images {
		v.Images = append(v.Images, imageView{
			Filename: img.Filename,
			MIMEType: img.MIMEType,
			Width:    img.Width,
			Height:   img.Height,
			Bytes:    len(img.Data),
		})
	}
	if _, ok := s.SelectedRecipe(); ok {
		selected := s.Selected
		v.Selected = &selected
	}
	if s.Document != nil {
		v.Document = &documentView{
			Filename: s.Document.Filename,
			Format:   s.Document.Format,
			Bytes:    len(s.Document.Data),
		}
	}
	return v
}
