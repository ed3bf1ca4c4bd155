package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"deckforge/gamma"
	"deckforge/pptx"
	"deckforge/render"
)

// Pipeline builds plans into finished presentation files. Gamma and
// Renderer may be nil when no plan page needs them.
type Pipeline struct {
	Gamma    gamma.Client
	Renderer render.Renderer
	Cache    *gamma.ArtifactCache
	// Concurrency bounds how many pages build in parallel.
	Concurrency int
	// WorkRoot hosts per-run scratch directories. Empty uses the output
	// file's directory.
	WorkRoot string
	// Log receives progress lines, may be nil.
	Log func(string)
}

func (p *Pipeline) logf(format string, args ...any) {
	if p.Log != nil {
		p.Log(fmt.Sprintf(format, args...))
	}
}

// Run builds every page of the plan, in parallel, then splices the pages
// that built successfully, in plan order, into plan.OutputPath. Page
// failures are collected in Result.Errors rather than aborting the run;
// Run fails only when no page survives or the splice itself does.
func (p *Pipeline) Run(ctx context.Context, plan *Plan) (*Result, error) {
	if len(plan.Pages) == 0 {
		return nil, fmt.Errorf("plan has no pages")
	}
	if plan.OutputPath == "" {
		return nil, fmt.Errorf("plan has no output path")
	}

	workRoot := p.WorkRoot
	if workRoot == "" {
		workRoot = filepath.Dir(plan.OutputPath)
	}
	workDir := filepath.Join(workRoot, "_work", uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	p.logf("building %d pages in %s", len(plan.Pages), workDir)

	pagePaths := make([]string, len(plan.Pages))
	cacheHits := make([]bool, len(plan.Pages))
	pageErrs := make([]*PageError, len(plan.Pages))

	g, gctx := errgroup.WithContext(ctx)
	limit := p.Concurrency
	if limit <= 0 {
		limit = 3
	}
	g.SetLimit(limit)

	for i, page := range plan.Pages {
		g.Go(func() error {
			dest := filepath.Join(workDir, fmt.Sprintf("page_%03d.pptx", i+1))
			hit, err := p.buildPage(gctx, page, dest)
			if err != nil {
				pageErrs[i] = &PageError{Index: i, Kind: page.pageKind(), Err: err}
				p.logf("%v", pageErrs[i])
				return nil
			}
			pagePaths[i] = dest
			cacheHits[i] = hit
			return nil
		})
	}
	// Workers record failures in pageErrs instead of returning them, so a
	// broken page never cancels its siblings.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var errs []string
	survivors := make([]string, 0, len(plan.Pages))
	hits := 0
	for i := range plan.Pages {
		if pageErrs[i] != nil {
			errs = append(errs, pageErrs[i].Error())
			continue
		}
		survivors = append(survivors, pagePaths[i])
		if cacheHits[i] {
			hits++
		}
	}
	if len(survivors) == 0 {
		failed := make([]error, 0, len(errs))
		for _, pe := range pageErrs {
			if pe != nil {
				failed = append(failed, pe)
			}
		}
		return nil, fmt.Errorf("no pages to splice: %w", errors.Join(failed...))
	}

	merged, err := pptx.MergeFiles(survivors, plan.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("splice pages: %w", err)
	}

	p.logf("assembled %s (%d slides, %d cache hits, %d failed pages)",
		plan.OutputPath, merged.SlideCount(), hits, len(errs))
	return &Result{
		OutputPath: plan.OutputPath,
		SlideCount: merged.SlideCount(),
		PagePaths:  survivors,
		CacheHits:  hits,
		Errors:     errs,
	}, nil
}

// buildPage dispatches on the page kind. The bool reports an artifact
// cache hit.
func (p *Pipeline) buildPage(ctx context.Context, page Page, dest string) (bool, error) {
	switch pg := page.(type) {
	case FixedPage:
		return false, p.buildFixedPage(ctx, pg, dest)
	case *FixedPage:
		return false, p.buildFixedPage(ctx, *pg, dest)
	case TablePage:
		return false, p.buildTablePage(pg, dest)
	case *TablePage:
		return false, p.buildTablePage(*pg, dest)
	case DynamicPage:
		return p.buildDynamicPage(ctx, pg, dest)
	case *DynamicPage:
		return p.buildDynamicPage(ctx, *pg, dest)
	default:
		return false, fmt.Errorf("unsupported page type %T", page)
	}
}

func (p *Pipeline) buildFixedPage(ctx context.Context, page FixedPage, dest string) error {
	c, err := pptx.OpenFile(page.TemplatePath)
	if err != nil {
		return err
	}
	if len(page.Slides) > 0 {
		c, err = pptx.ExtractSlides(c, page.Slides)
		if err != nil {
			return err
		}
	}
	if len(page.Tokens) > 0 {
		if _, err := pptx.SubstituteAll(c, page.Tokens); err != nil {
			return err
		}
	}
	if page.Visual != nil {
		if p.Renderer == nil {
			return fmt.Errorf("page needs a visual but no renderer is configured")
		}
		imgPath := dest + ".png"
		if err := p.Renderer.RenderPNG(ctx, page.Visual, imgPath); err != nil {
			return fmt.Errorf("render %s visual: %w", page.Visual.Kind(), err)
		}
		data, err := os.ReadFile(imgPath)
		if err != nil {
			return err
		}
		slidePath, err := p.slideAt(c, page.VisualSlide)
		if err != nil {
			return err
		}
		if err := pptx.ReplaceSlideImage(c, slidePath, data); err != nil {
			return err
		}
	}
	return c.SaveFile(dest)
}

func (p *Pipeline) buildTablePage(page TablePage, dest string) error {
	c, err := pptx.OpenFile(page.TemplatePath)
	if err != nil {
		return err
	}
	tokens := make(map[string]string, len(page.Tokens)+2)
	for k, v := range page.Tokens {
		tokens[k] = v
	}
	if _, ok := tokens["module_title"]; !ok {
		tokens["module_title"] = page.Module.Title
	}
	if _, ok := tokens["module_hours"]; !ok {
		tokens["module_hours"] = fmt.Sprintf("%d", page.Module.TotalHours())
	}
	if _, err := pptx.SubstituteAll(c, tokens); err != nil {
		return err
	}
	slidePath, err := p.slideAt(c, page.TableSlide)
	if err != nil {
		return err
	}
	if err := pptx.InjectTable(c, slidePath, page.Module.Rows); err != nil {
		return err
	}
	return c.SaveFile(dest)
}

func (p *Pipeline) buildDynamicPage(ctx context.Context, page DynamicPage, dest string) (bool, error) {
	if p.Gamma == nil {
		return false, fmt.Errorf("plan contains a generated page but no API client is configured")
	}

	var fingerprint string
	if p.Cache != nil {
		key := struct {
			TemplateID string
			Request    *gamma.GenerationRequest
		}{page.TemplateID, page.Request}
		fp, err := gamma.Fingerprint(key)
		if err != nil {
			return false, err
		}
		fingerprint = fp
		if cached, ok := p.Cache.Lookup(fingerprint); ok {
			p.logf("generation cache hit %s", fingerprint[:12])
			return true, copyFile(cached, dest)
		}
	}

	var genID string
	var err error
	if page.TemplateID != "" {
		genID, err = p.Gamma.GenerateFromTemplate(ctx, &gamma.FromTemplateRequest{
			GammaID:  page.TemplateID,
			Prompt:   page.Request.InputText,
			ThemeID:  page.Request.ThemeID,
			ExportAs: "pptx",
		})
	} else {
		genID, err = p.Gamma.Generate(ctx, page.Request)
	}
	if err != nil {
		return false, err
	}
	p.logf("generation %s submitted", genID)

	status, err := p.Gamma.WaitForCompletion(ctx, genID)
	if err != nil {
		return false, err
	}
	exportURL := status.ExportLocation("pptx")
	if exportURL == "" {
		return false, fmt.Errorf("generation %s completed without an export URL", genID)
	}
	if err := p.Gamma.DownloadExport(ctx, exportURL, dest); err != nil {
		return false, err
	}

	if p.Cache != nil && fingerprint != "" {
		if _, err := p.Cache.Store(fingerprint, dest); err != nil {
			p.logf("cache store failed: %v", err)
		}
	}
	return false, nil
}

// slideAt resolves a 1-based slide position, defaulting to the first
// slide.
func (p *Pipeline) slideAt(c *pptx.Container, pos int) (string, error) {
	paths, err := c.SlidePaths()
	if err != nil {
		return "", err
	}
	if pos <= 0 {
		pos = 1
	}
	if pos > len(paths) {
		return "", fmt.Errorf("slide position %d out of range 1..%d", pos, len(paths))
	}
	return paths[pos-1], nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0600)
}
