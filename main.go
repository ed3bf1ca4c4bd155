package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"deckforge/config"
	"deckforge/gamma"
	"deckforge/logger"
	"deckforge/pipeline"
	"deckforge/pptx"
	"deckforge/render"
)

// CLI is the command tree.
var CLI struct {
	StorageDir string `help:"Override the storage directory (default ~/DeckForge)." type:"path"`

	Generate GenerateCmd `cmd:"" help:"Assemble a proposal deck from a proposal spec file." group:"Build"`
	Fill     FillCmd     `cmd:"" help:"Fill tokens in a template deck." group:"Build"`
	Scaffold ScaffoldCmd `cmd:"" help:"Write starter template decks into the template directory." group:"Build"`

	Merge   MergeCmd   `cmd:"" help:"Splice presentation files into one." group:"Slides"`
	Split   SplitCmd   `cmd:"" help:"Extract selected slides into a new file." group:"Slides"`
	Preview PreviewCmd `cmd:"" help:"Print a text outline of a deck's slides." group:"Slides"`

	Themes  ThemesCmd  `cmd:"" help:"List generation themes available to the account." group:"Account"`
	Folders FoldersCmd `cmd:"" help:"List generation folders available to the account." group:"Account"`
}

// appEnv bundles the pieces every command shares.
type appEnv struct {
	cfg     config.Config
	cfgSvc  *ConfigService
	log     *logger.Logger
	logLine func(string)
}

func newAppEnv() (*appEnv, error) {
	log := logger.NewLogger()
	cs := NewConfigService(log.Log)
	if CLI.StorageDir != "" {
		cs.SetStorageDir(CLI.StorageDir)
	}
	cfg, err := cs.GetConfig()
	if err != nil {
		return nil, err
	}
	if cfg.DetailedLog {
		dir, err := cs.GetStorageDir()
		if err == nil {
			if err := log.Init(filepath.Join(dir, "logs")); err != nil {
				fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
			}
		}
	}
	return &appEnv{cfg: cfg, cfgSvc: cs, log: log, logLine: log.Log}, nil
}

func (a *appEnv) close() {
	a.log.Close()
}

func (a *appEnv) gammaClient() (*gamma.HTTPClient, error) {
	if a.cfg.Gamma.APIKey == "" {
		return nil, fmt.Errorf("no API key configured; set gamma.apiKey in %s", a.configPathHint())
	}
	client := gamma.NewHTTPClient(a.cfg.Gamma.BaseURL, a.cfg.Gamma.APIKey)
	client.PollInterval = time.Duration(a.cfg.Gamma.PollIntervalSec) * time.Second
	client.PollTimeout = time.Duration(a.cfg.Gamma.PollTimeoutSec) * time.Second
	return client, nil
}

func (a *appEnv) configPathHint() string {
	path, err := a.cfgSvc.GetConfigPath()
	if err != nil {
		return "the config file"
	}
	return path
}

// GenerateCmd runs the full assembly pipeline over a proposal spec.
type GenerateCmd struct {
	Spec   string `arg:"" help:"Proposal spec file (JSON)." type:"existingfile"`
	Output string `short:"o" help:"Output path. Defaults to <outputDir>/<spec name>.pptx." type:"path"`
}

func (g *GenerateCmd) Run(ctx *kong.Context) error {
	app, err := newAppEnv()
	if err != nil {
		return err
	}
	defer app.close()

	spec, err := LoadProposalSpec(g.Spec)
	if err != nil {
		return err
	}

	output := g.Output
	if output == "" {
		stem := strings.TrimSuffix(filepath.Base(g.Spec), filepath.Ext(g.Spec))
		output = filepath.Join(app.cfg.OutputDir, stem+".pptx")
	}

	plan, err := BuildPlan(spec, app.cfg, output)
	if err != nil {
		return err
	}

	p := pipeline.Pipeline{
		Concurrency: app.cfg.MaxConcurrency,
		Log:         app.logLine,
	}
	if planNeedsGamma(plan) {
		client, err := app.gammaClient()
		if err != nil {
			return err
		}
		p.Gamma = client
		if app.cfg.LocalCache {
			cache, err := gamma.OpenArtifactCache(app.cfg.DataCacheDir)
			if err != nil {
				return WrapError("generate", "Run", err)
			}
			defer cache.Close()
			p.Cache = cache
		}
	}
	if planNeedsRenderer(plan) {
		tokens, err := render.LoadTokens(app.cfg.Render.TokenDir)
		if err != nil {
			return WrapError("generate", "Run", err)
		}
		renderer := render.NewChromeRenderer(tokens, app.cfg.Render.ChromePath)
		defer renderer.Close()
		p.Renderer = renderer
	}

	result, err := p.Run(context.Background(), plan)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "skipped %s\n", msg)
	}
	fmt.Printf("wrote %s (%d slides, %d pages, %d cache hits)\n",
		result.OutputPath, result.SlideCount, len(result.PagePaths), result.CacheHits)
	return nil
}

func planNeedsGamma(plan *pipeline.Plan) bool {
	for _, page := range plan.Pages {
		if _, ok := page.(pipeline.DynamicPage); ok {
			return true
		}
	}
	return false
}

func planNeedsRenderer(plan *pipeline.Plan) bool {
	for _, page := range plan.Pages {
		if fixed, ok := page.(pipeline.FixedPage); ok && fixed.Visual != nil {
			return true
		}
	}
	return false
}

// FillCmd substitutes tokens across a single deck.
type FillCmd struct {
	Input  string            `arg:"" help:"Template presentation file." type:"existingfile"`
	Output string            `arg:"" help:"Destination file." type:"path"`
	Set    map[string]string `help:"Token values as name=value pairs." mapsep:","`
	Strict bool              `help:"Fail when tokens remain unresolved."`
}

func (f *FillCmd) Run(ctx *kong.Context) error {
	c, err := pptx.OpenFile(f.Input)
	if err != nil {
		return err
	}
	var replaced int
	if f.Strict {
		slides, err := c.SlidePaths()
		if err != nil {
			return err
		}
		for _, slide := range slides {
			n, err := pptx.SubstituteStrict(c, slide, f.Set)
			if err != nil {
				return err
			}
			replaced += n
		}
	} else {
		replaced, err = pptx.SubstituteAll(c, f.Set)
		if err != nil {
			return err
		}
	}
	if err := c.SaveFile(f.Output); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d tokens replaced)\n", f.Output, replaced)
	return nil
}

// MergeCmd splices decks in argument order.
type MergeCmd struct {
	Inputs []string `arg:"" help:"Presentation files, in splice order." type:"existingfile"`
	Output string   `short:"o" required:"" help:"Destination file." type:"path"`
}

func (m *MergeCmd) Run(ctx *kong.Context) error {
	c, err := pptx.MergeFiles(m.Inputs, m.Output)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d slides from %d files)\n", m.Output, c.SlideCount(), len(m.Inputs))
	return nil
}

// SplitCmd extracts slides by position.
type SplitCmd struct {
	Input  string `arg:"" help:"Presentation file." type:"existingfile"`
	Slides string `arg:"" help:"Slide positions to keep, comma separated (e.g. 1,3,5)."`
	Output string `short:"o" required:"" help:"Destination file." type:"path"`
}

func (s *SplitCmd) Run(ctx *kong.Context) error {
	keep, err := parsePositions(s.Slides)
	if err != nil {
		return err
	}
	src, err := pptx.OpenFile(s.Input)
	if err != nil {
		return err
	}
	total := src.SlideCount()
	c, err := pptx.SplitFile(s.Input, keep, s.Output)
	if err != nil {
		return err
	}
	renum := pptx.RenumberedSlides(total, keep)
	kept := make([]int, 0, len(renum))
	for pos := range renum {
		kept = append(kept, pos)
	}
	sort.Ints(kept)
	for _, pos := range kept {
		fmt.Printf("slide %d -> %d\n", pos, renum[pos])
	}
	fmt.Printf("wrote %s (%d slides)\n", s.Output, c.SlideCount())
	return nil
}

func parsePositions(list string) ([]int, error) {
	parts := strings.Split(list, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid slide position %q", part)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no slide positions given")
	}
	return out, nil
}

// ThemesCmd lists account themes.
type ThemesCmd struct{}

func (t *ThemesCmd) Run(ctx *kong.Context) error {
	app, err := newAppEnv()
	if err != nil {
		return err
	}
	defer app.close()

	client, err := app.gammaClient()
	if err != nil {
		return err
	}
	themes, err := client.Themes(context.Background())
	if err != nil {
		return err
	}
	for _, theme := range themes {
		fmt.Printf("%s\t%s\n", theme.ID, theme.Name)
	}
	return nil
}

// FoldersCmd lists account folders.
type FoldersCmd struct{}

func (f *FoldersCmd) Run(ctx *kong.Context) error {
	app, err := newAppEnv()
	if err != nil {
		return err
	}
	defer app.close()

	client, err := app.gammaClient()
	if err != nil {
		return err
	}
	folders, err := client.Folders(context.Background())
	if err != nil {
		return err
	}
	for _, folder := range folders {
		fmt.Printf("%s\t%s\n", folder.ID, folder.Name)
	}
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("deckforge"),
		kong.Description("Compose proposal decks: fill templates, splice presentations, and pull generated pages."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	err := ctx.Run(ctx)
	ctx.FatalIfErrorf(err)
}
