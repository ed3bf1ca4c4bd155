package render

import (
	"fmt"
	"html/template"
	"strings"
	"sync"
)

// Visual is one of the closed set of renderable page visuals. Each kind
// maps to an HTML template of the same name.
type Visual interface {
	Kind() string
}

// DesignBackground is a full-bleed title background.
type DesignBackground struct {
	Title    string
	Subtitle string
}

func (DesignBackground) Kind() string { return "design_bg" }

// GapRow is one current-vs-target line of a gap analysis.
type GapRow struct {
	Area    string
	Current string
	Target  string
}

// GapAnalysis contrasts the present state with the goal state.
type GapAnalysis struct {
	Title string
	Rows  []GapRow
}

func (GapAnalysis) Kind() string { return "gap_analysis" }

// Pillar is one element of a solution visual.
type Pillar struct {
	Name        string
	Description string
}

// Solution presents the proposed approach as a set of pillars.
type Solution struct {
	Title   string
	Pillars []Pillar
}

func (Solution) Kind() string { return "solution" }

// Stage is one step of a framework visual.
type Stage struct {
	Name   string
	Detail string
}

// Framework lays out a methodology as ordered stages.
type Framework struct {
	Title  string
	Stages []Stage
}

func (Framework) Kind() string { return "framework" }

// Milestone is one entry on a roadmap.
type Milestone struct {
	Label       string
	Period      string
	Description string
}

// Roadmap lays out milestones along a timeline.
type Roadmap struct {
	Title      string
	Milestones []Milestone
}

func (Roadmap) Kind() string { return "roadmap" }

// Metric is one headline number of an ROI visual.
type Metric struct {
	Label   string
	Value   string
	Caption string
}

// ROI presents the expected returns as headline metrics.
type ROI struct {
	Title   string
	Metrics []Metric
}

func (ROI) Kind() string { return "roi" }

// Kinds lists every supported visual kind.
func Kinds() []string {
	return []string{"design_bg", "gap_analysis", "solution", "framework", "roadmap", "roi"}
}

var (
	tmplOnce sync.Once
	tmplSet  *template.Template
	tmplErr  error
)

func templates() (*template.Template, error) {
	tmplOnce.Do(func() {
		funcs := template.FuncMap{
			"inc": func(i int) int { return i + 1 },
		}
		tmplSet, tmplErr = template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	})
	return tmplSet, tmplErr
}

// BuildHTML renders the visual's template with the given tokens into a
// complete HTML document.
func BuildHTML(v Visual, tokens Tokens) (string, error) {
	set, err := templates()
	if err != nil {
		return "", fmt.Errorf("parse templates: %w", err)
	}
	name := v.Kind() + ".html"
	if set.Lookup(name) == nil {
		return "", fmt.Errorf("unknown visual kind %q", v.Kind())
	}
	var b strings.Builder
	data := struct {
		CSSVars template.CSS
		V       Visual
	}{CSSVars: tokens.CSSVars(), V: v}
	if err := set.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", v.Kind(), err)
	}
	return b.String(), nil
}
