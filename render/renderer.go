package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Render canvas size, matching the slide aspect the rendered images are
// placed onto.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// Renderer produces a PNG file from a visual. ChromeRenderer is the
// production implementation; tests substitute their own.
type Renderer interface {
	RenderPNG(ctx context.Context, v Visual, destPath string) error
	Close() error
}

// ChromeRenderer screenshots built HTML in a headless Chrome it launches
// on first use.
type ChromeRenderer struct {
	// ChromePath optionally pins the browser binary; empty lets the
	// launcher find one.
	ChromePath string
	// Timeout bounds a single render.
	Timeout time.Duration

	tokens Tokens

	mu       sync.Mutex
	browser  *rod.Browser
	launched *launcher.Launcher
}

var _ Renderer = (*ChromeRenderer)(nil)

// NewChromeRenderer creates a renderer using the given design tokens.
func NewChromeRenderer(tokens Tokens, chromePath string) *ChromeRenderer {
	return &ChromeRenderer{
		ChromePath: chromePath,
		Timeout:    30 * time.Second,
		tokens:     tokens,
	}
}

func (r *ChromeRenderer) ensureStarted() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		if _, err := r.browser.Version(); err == nil {
			return r.browser, nil
		}
		_ = r.browser.Close()
		r.browser = nil
	}

	l := launcher.New().Headless(true)
	if r.ChromePath != "" {
		l = l.Bin(r.ChromePath)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	r.browser = browser
	r.launched = l
	return browser, nil
}

// RenderPNG builds the visual's HTML and writes its screenshot to
// destPath.
func (r *ChromeRenderer) RenderPNG(ctx context.Context, v Visual, destPath string) error {
	html, err := BuildHTML(v, r.tokens)
	if err != nil {
		return err
	}
	browser, err := r.ensureStarted()
	if err != nil {
		return err
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             ViewportWidth,
		Height:            ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if err := page.SetDocumentContent(html); err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		return fmt.Errorf("wait for layout: %w", err)
	}

	shot, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(destPath, shot, 0600); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	return nil
}

// Close shuts the browser down. Safe to call when it never started.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launched != nil {
		r.launched.Cleanup()
		r.launched = nil
	}
	return err
}
