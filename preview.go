package main

import (
	"fmt"
	"strings"

	ppt "github.com/VantageDataChat/GoPPT"
	"github.com/alecthomas/kong"
)

// PreviewCmd prints a per-slide text outline of a deck for a quick look
// without opening PowerPoint.
type PreviewCmd struct {
	Input  string `arg:"" help:"Presentation file." type:"existingfile"`
	Slides string `help:"Slide positions to show, comma separated. Default all."`
}

func (p *PreviewCmd) Run(ctx *kong.Context) error {
	reader := &ppt.PPTXReader{}
	pres, err := reader.Read(p.Input)
	if err != nil {
		return WrapError("preview", "Run", fmt.Errorf("read %s: %w", p.Input, err))
	}

	slides := pres.GetAllSlides()
	total := len(slides)
	positions := make([]int, 0, total)
	if p.Slides == "" {
		for i := 1; i <= total; i++ {
			positions = append(positions, i)
		}
	} else {
		positions, err = parsePositions(p.Slides)
		if err != nil {
			return err
		}
		for _, pos := range positions {
			if pos < 1 || pos > total {
				return fmt.Errorf("slide position %d out of range 1..%d", pos, total)
			}
		}
	}

	for _, pos := range positions {
		title, texts := slideOutline(slides[pos-1])
		if title == "" {
			title = "(no text)"
		}
		fmt.Printf("slide %d: %s\n", pos, title)
		for _, line := range texts {
			fmt.Printf("  %s\n", line)
		}
	}
	return nil
}

// slideOutline flattens a slide's rich text shapes into a title line and
// the remaining text lines, each capped at 60 runes.
func slideOutline(slide *ppt.Slide) (string, []string) {
	var title string
	var texts []string
	for _, shape := range slide.GetShapes() {
		rts, ok := shape.(*ppt.RichTextShape)
		if !ok {
			continue
		}
		for _, para := range rts.GetParagraphs() {
			var text string
			for _, elem := range para.GetElements() {
				if run, ok := elem.(*ppt.TextRun); ok {
					text += run.GetText()
				}
			}
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			if title == "" {
				title = text
				continue
			}
			if len([]rune(text)) > 60 {
				text = string([]rune(text)[:58]) + ".."
			}
			texts = append(texts, text)
		}
	}
	return title, texts
}
