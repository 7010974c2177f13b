// Package render turns a recipe into a printable document.
package render

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/zombor/fridge-chef/internal/kitchen"
)

// ErrRender is matched by RenderError
var ErrRender = errors.New("rendering document failed")

// RenderError is returned when a recipe cannot be rendered
type RenderError struct {
	Title string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("rendering %q: %v", e.Title, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}

func (e *RenderError) Is(target error) bool {
	return target == ErrRender
}

// epoch is stamped into every document so identical recipes produce identical bytes
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

const (
	fontFamily = "Helvetica"
	lineHeight = 6.0
	margin     = 18.0
)

// PDF renders recipes as A4 PDF documents using the core Helvetica font.
// Rendering is offline and deterministic.
type PDF struct {
	// Footer is printed at the bottom of every page next to the page number
	Footer string
}

// NewPDF creates a PDF renderer
func NewPDF() *PDF {
	return &PDF{Footer: "Fridge Chef"}
}

// Render lays out a single recipe
func (p *PDF) Render(recipe kitchen.Recipe) (*kitchen.Document, error) {
	if strings.TrimSpace(recipe.Title) == "" {
		return nil, &RenderError{Err: errors.New("recipe has no title")}
	}

	text, err := newEncoder(recipe)
	if err != nil {
		return nil, &RenderError{Title: recipe.Title, Err: err}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(epoch)
	pdf.SetModificationDate(epoch)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(text(recipe.Title), false)
	pdf.SetCreator(text(p.Footer), false)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	footer := text(p.Footer)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, 5, fmt.Sprintf("%s - page %d", footer, pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", 20)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 9, text(recipe.Title), "", "L", false)

	if meta := metadataLine(recipe); meta != "" {
		pdf.SetFont(fontFamily, "", 10)
		pdf.SetTextColor(90, 90, 90)
		pdf.MultiCell(0, lineHeight, text(meta), "", "L", false)
	}

	if recipe.Description != "" {
		pdf.Ln(2)
		pdf.SetFont(fontFamily, "I", 11)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(0, lineHeight, text(recipe.Description), "", "L", false)
	}

	if len(recipe.Ingredients) > 0 {
		heading(pdf, "Ingredients")
		pdf.SetFont(fontFamily, "", 11)
		for _, ing := range recipe.Ingredients {
			pdf.MultiCell(0, lineHeight, text("• "+ing.String()), "", "L", false)
		}
	}

	heading(pdf, "Instructions")
	pdf.SetFont(fontFamily, "", 11)
	for i, step := range recipe.Steps {
		pdf.MultiCell(0, lineHeight, text(fmt.Sprintf("%d. %s", i+1, step)), "", "L", false)
		pdf.Ln(1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Title: recipe.Title, Err: err}
	}

	return &kitchen.Document{
		Filename: Filename(recipe.Title),
		Format:   kitchen.FormatPDF,
		Data:     buf.Bytes(),
	}, nil
}

func heading(pdf *fpdf.Fpdf, label string) {
	pdf.Ln(4)
	pdf.SetFont(fontFamily, "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, label, "B", 1, "L", false, 0, "")
	pdf.Ln(2)
}

func metadataLine(recipe kitchen.Recipe) string {
	var parts []string
	if recipe.Servings > 0 {
		parts = append(parts, fmt.Sprintf("Serves %d", recipe.Servings))
	}
	if recipe.PrepTime != "" {
		parts = append(parts, "Prep "+recipe.PrepTime)
	}
	if recipe.CookTime != "" {
		parts = append(parts, "Cook "+recipe.CookTime)
	}
	if recipe.Cuisine != "" {
		parts = append(parts, recipe.Cuisine)
	}
	return strings.Join(parts, " | ")
}

// newEncoder validates every string of the recipe and returns a function that
// transcodes text to Windows-1252, the encoding of the core PDF fonts.
// Characters without a Windows-1252 form are dropped.
func newEncoder(recipe kitchen.Recipe) (func(string) string, error) {
	fields := []string{recipe.Title, recipe.Description, recipe.Cuisine, recipe.PrepTime, recipe.CookTime}
	for _, ing := range recipe.Ingredients {
		fields = append(fields, ing.Name, ing.Quantity, ing.Unit)
	}
	fields = append(fields, recipe.Steps...)
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return nil, fmt.Errorf("invalid UTF-8 in %q", f)
		}
	}

	return func(s string) string {
		var b strings.Builder
		b.Grow(len(s))
		for _, r := range s {
			if enc, ok := charmap.Windows1252.EncodeRune(r); ok {
				b.WriteByte(enc)
			}
		}
		return b.String()
	}, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

const maxSlugLen = 50

// Filename derives a download name like "chicken-fried-rice.pdf" from a title
func Filename(title string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(title), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		slug = "recipe"
	}
	return slug + ".pdf"
}
