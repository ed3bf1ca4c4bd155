package main

import (
	"os"
	"path/filepath"
	"testing"

	"deckforge/config"
	"deckforge/pipeline"
	"deckforge/pptx"
	"deckforge/render"
)

func writeSpecFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "proposal.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write spec file: %v", err)
	}
	return path
}

func TestLoadProposalSpec(t *testing.T) {
	path := writeSpecFile(t, `{
		"client": "Acme",
		"title": "Data Platform Training",
		"pages": [
			{"kind": "fixed", "template": "cover.pptx"},
			{"kind": "table", "template": "module.pptx", "module": {
				"title": "Foundations", "rows": [
					{"subject": "Intro", "hours": "2", "content": "Basics", "exercise": "Quiz"}
				]
			}},
			{"kind": "dynamic", "inputText": "Summarize the offer"}
		]
	}`)

	spec, err := LoadProposalSpec(path)
	if err != nil {
		t.Fatalf("LoadProposalSpec failed: %v", err)
	}
	if spec.Client != "Acme" {
		t.Errorf("Client = %q, want Acme", spec.Client)
	}
	if len(spec.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(spec.Pages))
	}
	if spec.Pages[1].Module.Title != "Foundations" {
		t.Errorf("module title = %q", spec.Pages[1].Module.Title)
	}
}

func TestLoadProposalSpec_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"no pages", `{"client": "Acme", "pages": []}`},
		{"fixed without template", `{"pages": [{"kind": "fixed"}]}`},
		{"table without rows", `{"pages": [{"kind": "table", "template": "m.pptx", "module": {"title": "M"}}]}`},
		{"dynamic without input", `{"pages": [{"kind": "dynamic"}]}`},
		{"unknown kind", `{"pages": [{"kind": "mystery"}]}`},
		{"unknown visual", `{"pages": [{"kind": "fixed", "template": "c.pptx", "visual": {"kind": "pie"}}]}`},
		{"bad json", `{{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSpecFile(t, tt.body)
			if _, err := LoadProposalSpec(path); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestBuildPlan(t *testing.T) {
	spec := &ProposalSpec{
		Client: "Acme",
		Title:  "Training Offer",
		Tokens: map[string]string{"contact": "sales@example.com"},
		Pages: []PageSpec{
			{
				Kind:     "fixed",
				Template: "cover.pptx",
				Tokens:   map[string]string{"title": "Overridden"},
				Visual:   &VisualSpec{Kind: "design_bg", Title: "Training Offer"},
			},
			{
				Kind:     "table",
				Template: filepath.Join("/abs", "module.pptx"),
				Module: &pipeline.CurriculumModule{
					Title: "Foundations",
					Rows:  []pptx.TableRecord{{Subject: "Intro", Hours: "2"}},
				},
			},
			{
				Kind:      "dynamic",
				InputText: "Summarize",
				NumCards:  4,
			},
		},
	}
	cfg := config.Config{
		TemplateDir: "/templates",
		Gamma:       config.GammaConfig{ThemeID: "slate-01"},
	}

	plan, err := BuildPlan(spec, cfg, "/out/deck.pptx")
	if err != nil {
		t.Fatalf("BuildPlan failed: %v", err)
	}
	if plan.OutputPath != "/out/deck.pptx" {
		t.Errorf("OutputPath = %q", plan.OutputPath)
	}
	if len(plan.Pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(plan.Pages))
	}

	fixed, ok := plan.Pages[0].(pipeline.FixedPage)
	if !ok {
		t.Fatalf("page 0 is %T, want FixedPage", plan.Pages[0])
	}
	if fixed.TemplatePath != filepath.Join("/templates", "cover.pptx") {
		t.Errorf("template path = %q", fixed.TemplatePath)
	}
	if fixed.Tokens["client"] != "Acme" {
		t.Errorf("client token = %q", fixed.Tokens["client"])
	}
	if fixed.Tokens["title"] != "Overridden" {
		t.Errorf("page tokens should override spec tokens, got %q", fixed.Tokens["title"])
	}
	if fixed.Tokens["contact"] != "sales@example.com" {
		t.Errorf("contact token = %q", fixed.Tokens["contact"])
	}
	if fixed.Tokens["date"] == "" {
		t.Error("date token should be set")
	}
	if _, ok := fixed.Visual.(render.DesignBackground); !ok {
		t.Errorf("visual is %T, want DesignBackground", fixed.Visual)
	}

	table, ok := plan.Pages[1].(pipeline.TablePage)
	if !ok {
		t.Fatalf("page 1 is %T, want TablePage", plan.Pages[1])
	}
	if table.TemplatePath != filepath.Join("/abs", "module.pptx") {
		t.Errorf("absolute template path should pass through, got %q", table.TemplatePath)
	}

	dynamic, ok := plan.Pages[2].(pipeline.DynamicPage)
	if !ok {
		t.Fatalf("page 2 is %T, want DynamicPage", plan.Pages[2])
	}
	if dynamic.Request.ThemeID != "slate-01" {
		t.Errorf("theme should fall back to config, got %q", dynamic.Request.ThemeID)
	}
	if dynamic.Request.ExportAs != "pptx" {
		t.Errorf("ExportAs = %q, want pptx", dynamic.Request.ExportAs)
	}
	if dynamic.Request.NumCards != 4 {
		t.Errorf("NumCards = %d", dynamic.Request.NumCards)
	}
}

func TestVisualSpec_ToVisual(t *testing.T) {
	spec := &VisualSpec{
		Kind:  "gap_analysis",
		Title: "Where We Stand",
		Items: []VisualItem{
			{Label: "Reporting", Value: "Manual exports", Detail: "Self-serve dashboards"},
		},
	}
	v, err := spec.toVisual()
	if err != nil {
		t.Fatalf("toVisual failed: %v", err)
	}
	gap, ok := v.(render.GapAnalysis)
	if !ok {
		t.Fatalf("visual is %T", v)
	}
	if gap.Rows[0].Current != "Manual exports" || gap.Rows[0].Target != "Self-serve dashboards" {
		t.Errorf("unexpected row mapping: %+v", gap.Rows[0])
	}

	for _, kind := range render.Kinds() {
		v, err := (&VisualSpec{Kind: kind, Title: "T"}).toVisual()
		if err != nil {
			t.Errorf("kind %s: %v", kind, err)
		}
		if v.Kind() != kind {
			t.Errorf("kind %s mapped to %s", kind, v.Kind())
		}
	}
}

func TestParsePositions(t *testing.T) {
	got, err := parsePositions("1, 3,5")
	if err != nil {
		t.Fatalf("parsePositions failed: %v", err)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("parsePositions = %v", got)
	}

	if _, err := parsePositions("1,two"); err == nil {
		t.Error("expected error for non-numeric position")
	}
	if _, err := parsePositions(" , "); err == nil {
		t.Error("expected error for empty list")
	}
}
