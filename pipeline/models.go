// Package pipeline assembles finished proposal decks: it builds every page
// as its own small presentation (template fills, curriculum tables,
// generated decks, rendered imagery) and splices them into one file.
package pipeline

import (
	"fmt"

	"deckforge/gamma"
	"deckforge/pptx"
	"deckforge/render"
)

// CurriculumModule is one teaching module of a proposal: the table rows it
// contributes plus the token values describing it.
type CurriculumModule struct {
	Title    string             `json:"title"`
	Overview string             `json:"overview,omitempty"`
	Rows     []pptx.TableRecord `json:"rows"`
}

// TotalHours sums the module rows' hour figures, skipping rows whose hours
// are not plain numbers.
func (m CurriculumModule) TotalHours() int {
	total := 0
	for _, row := range m.Rows {
		var h int
		if _, err := fmt.Sscanf(row.Hours, "%d", &h); err == nil {
			total += h
		}
	}
	return total
}

// Page is one unit of the final deck. Exactly one of the page kinds below
// implements it.
type Page interface {
	pageKind() string
}

// FixedPage is a template deck filled with token values and, optionally, a
// rendered visual replacing its hero image.
type FixedPage struct {
	// TemplatePath is the source presentation file.
	TemplatePath string
	// Slides optionally selects a subset of the template's slides,
	// 1-based in manifest order. Empty keeps all of them.
	Slides []int
	// Tokens fills {{token}} placeholders across every kept slide.
	Tokens map[string]string
	// Visual, when set, is rendered to PNG and swapped in for the largest
	// picture on VisualSlide.
	Visual render.Visual
	// VisualSlide is the 1-based slide carrying the picture to replace.
	// Zero means the first slide.
	VisualSlide int
}

func (FixedPage) pageKind() string { return "fixed" }

// TablePage is a template deck whose table is filled from a curriculum
// module.
type TablePage struct {
	TemplatePath string
	Tokens       map[string]string
	Module       CurriculumModule
	// TableSlide is the 1-based slide holding the table. Zero means the
	// first slide.
	TableSlide int
}

func (TablePage) pageKind() string { return "table" }

// DynamicPage is a deck produced by the generation API. When TemplateID is
// set the generation is seeded from that deck instead of starting fresh.
type DynamicPage struct {
	Request    *gamma.GenerationRequest
	TemplateID string
}

func (DynamicPage) pageKind() string { return "dynamic" }

// Plan is an ordered list of pages plus the output location.
type Plan struct {
	Pages      []Page
	OutputPath string
}

// Result reports a finished run. Errors lists the pages that failed to
// build; the output still covers every page that survived.
type Result struct {
	OutputPath string
	SlideCount int
	PagePaths  []string
	CacheHits  int
	Errors     []string
}

// PageError attributes a failure to the page that caused it.
type PageError struct {
	Index int
	Kind  string
	Err   error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %d (%s): %v", e.Index+1, e.Kind, e.Err)
}

func (e *PageError) Unwrap() error {
	return e.Err
}
