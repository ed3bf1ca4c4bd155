package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"deckforge/config"
	"deckforge/gamma"
	"deckforge/pipeline"
	"deckforge/render"
)

// ProposalSpec is the input document driving a generate run: client
// metadata plus the ordered pages of the deck.
type ProposalSpec struct {
	Client string            `json:"client"`
	Title  string            `json:"title"`
	Theme  string            `json:"theme,omitempty"`
	Tokens map[string]string `json:"tokens,omitempty"`
	Pages  []PageSpec        `json:"pages"`
}

// PageSpec describes one page. Kind selects which of the remaining fields
// apply: "fixed" and "table" pages fill template decks, "dynamic" pages
// come from the generation API.
type PageSpec struct {
	Kind string `json:"kind"`

	// fixed and table pages
	Template    string            `json:"template,omitempty"`
	Slides      []int             `json:"slides,omitempty"`
	Tokens      map[string]string `json:"tokens,omitempty"`
	Visual      *VisualSpec       `json:"visual,omitempty"`
	VisualSlide int               `json:"visualSlide,omitempty"`

	// table pages
	Module     *pipeline.CurriculumModule `json:"module,omitempty"`
	TableSlide int                        `json:"tableSlide,omitempty"`

	// dynamic pages
	InputText    string `json:"inputText,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	NumCards     int    `json:"numCards,omitempty"`
	TemplateID   string `json:"templateId,omitempty"`
}

// VisualSpec is the JSON form of a rendered visual. Items carry the
// per-kind content: gap rows, pillars, stages, milestones or metrics.
type VisualSpec struct {
	Kind     string       `json:"kind"`
	Title    string       `json:"title"`
	Subtitle string       `json:"subtitle,omitempty"`
	Items    []VisualItem `json:"items,omitempty"`
}

// VisualItem is one entry of a visual. Field meaning depends on the kind:
// a gap row reads Label/Value/Detail as area/current/target, a metric as
// label/value/caption, and so on.
type VisualItem struct {
	Label  string `json:"label"`
	Value  string `json:"value,omitempty"`
	Detail string `json:"detail,omitempty"`
	Period string `json:"period,omitempty"`
}

// LoadProposalSpec reads and validates a proposal spec file.
func LoadProposalSpec(path string) (*ProposalSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError("proposal", "LoadProposalSpec", err)
	}
	var spec ProposalSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, WrapError("proposal", "LoadProposalSpec", fmt.Errorf("parse %s: %w", path, err))
	}
	if len(spec.Pages) == 0 {
		return nil, WrapError("proposal", "LoadProposalSpec", fmt.Errorf("%s lists no pages", path))
	}
	for i, page := range spec.Pages {
		if err := page.validate(); err != nil {
			return nil, WrapError("proposal", "LoadProposalSpec", fmt.Errorf("page %d: %w", i+1, err))
		}
	}
	return &spec, nil
}

func (p PageSpec) validate() error {
	switch p.Kind {
	case "fixed":
		if p.Template == "" {
			return fmt.Errorf("fixed page needs a template")
		}
	case "table":
		if p.Template == "" {
			return fmt.Errorf("table page needs a template")
		}
		if p.Module == nil || len(p.Module.Rows) == 0 {
			return fmt.Errorf("table page needs module rows")
		}
	case "dynamic":
		if p.InputText == "" {
			return fmt.Errorf("dynamic page needs input text")
		}
	default:
		return fmt.Errorf("unknown page kind %q", p.Kind)
	}
	if p.Visual != nil {
		if _, err := p.Visual.toVisual(); err != nil {
			return err
		}
	}
	return nil
}

// BuildPlan turns the spec into an executable pipeline plan. Template
// paths resolve against cfg.TemplateDir; client-level tokens apply to
// every template page.
func BuildPlan(spec *ProposalSpec, cfg config.Config, outputPath string) (*pipeline.Plan, error) {
	base := map[string]string{
		"client": spec.Client,
		"title":  spec.Title,
		"date":   time.Now().Format("January 2, 2006"),
	}
	for k, v := range spec.Tokens {
		base[k] = v
	}
	theme := spec.Theme
	if theme == "" {
		theme = cfg.Gamma.ThemeID
	}

	plan := &pipeline.Plan{OutputPath: outputPath}
	for i, page := range spec.Pages {
		built, err := page.toPage(base, theme, cfg.TemplateDir)
		if err != nil {
			return nil, WrapError("proposal", "BuildPlan", fmt.Errorf("page %d: %w", i+1, err))
		}
		plan.Pages = append(plan.Pages, built)
	}
	return plan, nil
}

func (p PageSpec) toPage(base map[string]string, theme, templateDir string) (pipeline.Page, error) {
	tokens := make(map[string]string, len(base)+len(p.Tokens))
	for k, v := range base {
		tokens[k] = v
	}
	for k, v := range p.Tokens {
		tokens[k] = v
	}

	switch p.Kind {
	case "fixed":
		fixed := pipeline.FixedPage{
			TemplatePath: resolveTemplate(templateDir, p.Template),
			Slides:       p.Slides,
			Tokens:       tokens,
			VisualSlide:  p.VisualSlide,
		}
		if p.Visual != nil {
			v, err := p.Visual.toVisual()
			if err != nil {
				return nil, err
			}
			fixed.Visual = v
		}
		return fixed, nil
	case "table":
		return pipeline.TablePage{
			TemplatePath: resolveTemplate(templateDir, p.Template),
			Tokens:       tokens,
			Module:       *p.Module,
			TableSlide:   p.TableSlide,
		}, nil
	case "dynamic":
		return pipeline.DynamicPage{
			TemplateID: p.TemplateID,
			Request: &gamma.GenerationRequest{
				InputText:              p.InputText,
				ThemeID:                theme,
				NumCards:               p.NumCards,
				AdditionalInstructions: p.Instructions,
				ExportAs:               "pptx",
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown page kind %q", p.Kind)
	}
}

func resolveTemplate(templateDir, name string) string {
	if filepath.IsAbs(name) || templateDir == "" {
		return name
	}
	return filepath.Join(templateDir, name)
}

// toVisual maps the generic spec onto the closed visual set.
func (v *VisualSpec) toVisual() (render.Visual, error) {
	switch v.Kind {
	case "design_bg":
		return render.DesignBackground{Title: v.Title, Subtitle: v.Subtitle}, nil
	case "gap_analysis":
		rows := make([]render.GapRow, len(v.Items))
		for i, it := range v.Items {
			rows[i] = render.GapRow{Area: it.Label, Current: it.Value, Target: it.Detail}
		}
		return render.GapAnalysis{Title: v.Title, Rows: rows}, nil
	case "solution":
		pillars := make([]render.Pillar, len(v.Items))
		for i, it := range v.Items {
			pillars[i] = render.Pillar{Name: it.Label, Description: it.Detail}
		}
		return render.Solution{Title: v.Title, Pillars: pillars}, nil
	case "framework":
		stages := make([]render.Stage, len(v.Items))
		for i, it := range v.Items {
			stages[i] = render.Stage{Name: it.Label, Detail: it.Detail}
		}
		return render.Framework{Title: v.Title, Stages: stages}, nil
	case "roadmap":
		milestones := make([]render.Milestone, len(v.Items))
		for i, it := range v.Items {
			milestones[i] = render.Milestone{Label: it.Label, Period: it.Period, Description: it.Detail}
		}
		return render.Roadmap{Title: v.Title, Milestones: milestones}, nil
	case "roi":
		metrics := make([]render.Metric, len(v.Items))
		for i, it := range v.Items {
			metrics[i] = render.Metric{Label: it.Label, Value: it.Value, Caption: it.Detail}
		}
		return render.ROI{Title: v.Title, Metrics: metrics}, nil
	default:
		return nil, fmt.Errorf("unknown visual kind %q", v.Kind)
	}
}
