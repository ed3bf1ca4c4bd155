package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	ppt "github.com/VantageDataChat/GoPPT"
	"github.com/alecthomas/kong"

	"deckforge/pptx"
)

// Scaffold layout constants, 16:9 widescreen.
const (
	emuPerInch = 914400

	scaffoldSlideWidth  = int64(12192000)
	scaffoldSlideHeight = int64(7.5 * emuPerInch)
	scaffoldMarginLeft  = int64(0.6 * emuPerInch)
	scaffoldContentW    = int64(12.1 * emuPerInch)

	scaffoldFontTitle    = 40
	scaffoldFontSubtitle = 22
	scaffoldFontSmall    = 12
)

// helper: create a solid fill
func solidFill(argb string) *ppt.Fill {
	return ppt.NewFill().SetSolid(ppt.NewColor(argb))
}

// helper: set paragraph alignment to center
func alignCenter(p *ppt.Paragraph) {
	p.SetAlignment(ppt.NewAlignment().SetHorizontal(ppt.HorizontalCenter))
}

// ScaffoldCmd writes starter template decks that the fill and generate
// commands can consume: a cover with token text and a replaceable
// backdrop image, a module deck with a native table, and a closing page.
type ScaffoldCmd struct {
	Dir   string `help:"Target directory. Defaults to the configured template directory." type:"path"`
	Force bool   `help:"Overwrite templates that already exist."`
}

func (s *ScaffoldCmd) Run(ctx *kong.Context) error {
	app, err := newAppEnv()
	if err != nil {
		return err
	}
	defer app.close()

	dir := s.Dir
	if dir == "" {
		dir = app.cfg.TemplateDir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return WrapError("scaffold", "Run", err)
	}

	templates := []struct {
		name  string
		build func() ([]byte, error)
	}{
		{"cover.pptx", buildCoverTemplate},
		{"module.pptx", buildModuleTemplate},
		{"closing.pptx", buildClosingTemplate},
	}
	for _, tpl := range templates {
		dest := filepath.Join(dir, tpl.name)
		if !s.Force {
			if _, err := os.Stat(dest); err == nil {
				fmt.Printf("kept %s (use --force to overwrite)\n", dest)
				continue
			}
		}
		data, err := tpl.build()
		if err != nil {
			return WrapError("scaffold", "Run", fmt.Errorf("%s: %w", tpl.name, err))
		}
		if err := os.WriteFile(dest, data, 0644); err != nil {
			return WrapError("scaffold", "Run", err)
		}
		fmt.Printf("wrote %s\n", dest)
	}
	return nil
}

// buildCoverTemplate produces the title page: token runs for client and
// title, and a backdrop image sized for a rendered visual.
func buildCoverTemplate() ([]byte, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = "Proposal Cover"
	slide := p.GetActiveSlide()

	// Backdrop placeholder, replaced by the rendered design background.
	backdrop, err := placeholderPNG(1920, 1080)
	if err != nil {
		return nil, err
	}
	img := slide.CreateDrawingShape()
	img.SetImageData(backdrop, "image/png")
	img.SetOffsetX(0).SetOffsetY(0)
	img.SetWidth(scaffoldSlideWidth).SetHeight(scaffoldSlideHeight)

	titleShape := slide.CreateRichTextShape()
	titleShape.SetOffsetX(scaffoldMarginLeft).SetOffsetY(int64(2.4 * emuPerInch))
	titleShape.SetWidth(scaffoldContentW).SetHeight(int64(1.2 * emuPerInch))
	tr := titleShape.CreateTextRun("{{title}}")
	tr.GetFont().SetSize(scaffoldFontTitle).SetBold(true).SetColor(ppt.NewColor("FFFFFFFF"))
	alignCenter(titleShape.GetActiveParagraph())

	clientShape := slide.CreateRichTextShape()
	clientShape.SetOffsetX(scaffoldMarginLeft).SetOffsetY(int64(3.8 * emuPerInch))
	clientShape.SetWidth(scaffoldContentW).SetHeight(int64(0.7 * emuPerInch))
	cr := clientShape.CreateTextRun("Prepared for {{client}}")
	cr.GetFont().SetSize(scaffoldFontSubtitle).SetColor(ppt.NewColor("FFE0E1DD"))
	alignCenter(clientShape.GetActiveParagraph())

	dateShape := slide.CreateRichTextShape()
	dateShape.SetOffsetX(scaffoldMarginLeft).SetOffsetY(int64(6.6 * emuPerInch))
	dateShape.SetWidth(scaffoldContentW).SetHeight(int64(0.4 * emuPerInch))
	dr := dateShape.CreateTextRun("{{date}}")
	dr.GetFont().SetSize(scaffoldFontSmall).SetColor(ppt.NewColor("FFE0E1DD"))
	alignCenter(dateShape.GetActiveParagraph())

	return writePresentation(p)
}

// buildClosingTemplate produces the thank-you page.
func buildClosingTemplate() ([]byte, error) {
	p := ppt.New()
	p.GetDocumentProperties().Title = "Proposal Closing"
	slide := p.GetActiveSlide()

	topBar := slide.CreateRichTextShape()
	topBar.SetOffsetX(0).SetOffsetY(0)
	topBar.SetWidth(scaffoldSlideWidth).SetHeight(int64(0.15 * emuPerInch))
	topBar.SetFill(solidFill("FF4CC9F0"))

	thanks := slide.CreateRichTextShape()
	thanks.SetOffsetX(scaffoldMarginLeft).SetOffsetY(int64(3.0 * emuPerInch))
	thanks.SetWidth(scaffoldContentW).SetHeight(int64(1.0 * emuPerInch))
	tr := thanks.CreateTextRun("Thank you, {{client}}")
	tr.GetFont().SetSize(scaffoldFontTitle).SetBold(true).SetColor(ppt.NewColor("FF0D1B2A"))
	alignCenter(thanks.GetActiveParagraph())

	contact := slide.CreateRichTextShape()
	contact.SetOffsetX(scaffoldMarginLeft).SetOffsetY(int64(4.4 * emuPerInch))
	contact.SetWidth(scaffoldContentW).SetHeight(int64(0.5 * emuPerInch))
	cr := contact.CreateTextRun("{{contact}}")
	cr.GetFont().SetSize(scaffoldFontSubtitle).SetColor(ppt.NewColor("FF415A77"))
	alignCenter(contact.GetActiveParagraph())

	bottomBar := slide.CreateRichTextShape()
	bottomBar.SetOffsetX(0).SetOffsetY(scaffoldSlideHeight - int64(0.15*emuPerInch))
	bottomBar.SetWidth(scaffoldSlideWidth).SetHeight(int64(0.15 * emuPerInch))
	bottomBar.SetFill(solidFill("FF4CC9F0"))

	return writePresentation(p)
}

func writePresentation(p *ppt.Presentation) ([]byte, error) {
	w, err := ppt.NewWriter(p, ppt.WriterPowerPoint2007)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	var buf bytes.Buffer
	if err := w.(*ppt.PPTXWriter).WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("write presentation: %w", err)
	}
	return buf.Bytes(), nil
}

// placeholderPNG renders a flat dark rectangle to stand in for the visual.
func placeholderPNG(w, h int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := color.RGBA{R: 0x0D, G: 0x1B, B: 0x2A, A: 0xFF}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

const scaffoldXMLDecl = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"

const scaffoldNS = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
	`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
	`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

// buildModuleTemplate produces the curriculum page with a native table:
// a header row and one template row the injector clones per record.
func buildModuleTemplate() ([]byte, error) {
	c := pptx.NewContainer()

	headCell := func(text string) string {
		return `<a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:rPr lang="en-US" sz="1200" b="1"/><a:t>` +
			text + `</a:t></a:r></a:p></a:txBody></a:tc>`
	}
	bodyCell := func(text string) string {
		return `<a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:rPr lang="en-US" sz="1100"/><a:t>` +
			text + `</a:t></a:r></a:p></a:txBody></a:tc>`
	}

	title := `<p:sp><p:txBody><a:p><a:r><a:rPr lang="en-US" sz="2800" b="1"/>` +
		`<a:t>{{module_title}} ({{module_hours}}h)</a:t></a:r></a:p></p:txBody></p:sp>`
	table := `<p:graphicFrame><p:xfrm><a:off x="457200" y="1143000"/><a:ext cx="11277600" cy="5000000"/></p:xfrm>` +
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">` +
		`<a:tbl><a:tblGrid>` +
		`<a:gridCol w="2286000"/><a:gridCol w="914400"/><a:gridCol w="4114800"/><a:gridCol w="3962400"/>` +
		`</a:tblGrid>` +
		`<a:tr h="457200">` + headCell("Subject") + headCell("Hours") + headCell("Content") + headCell("Exercise") + `</a:tr>` +
		`<a:tr h="457200">` + bodyCell("Subject") + bodyCell("0") + bodyCell("Content") + bodyCell("Exercise") + `</a:tr>` +
		`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`

	c.SetRaw("[Content_Types].xml", []byte(scaffoldXMLDecl+
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`+
		`<Override PartName="/ppt/slides/slide1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`+
		`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`+
		`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`+
		`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`+
		`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`+
		`</Types>`))
	c.SetRaw("ppt/presentation.xml", []byte(scaffoldXMLDecl+
		`<p:presentation `+scaffoldNS+`>`+
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
		`<p:sldIdLst><p:sldId id="256" r:id="rId2"/></p:sldIdLst>`+
		`<p:sldSz cx="12192000" cy="6858000"/>`+
		`</p:presentation>`))
	c.SetRaw("ppt/_rels/presentation.xml.rels", []byte(scaffoldXMLDecl+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`+
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide1.xml"/>`+
		`</Relationships>`))
	c.SetRaw("ppt/slides/slide1.xml", []byte(scaffoldXMLDecl+
		`<p:sld `+scaffoldNS+`><p:cSld><p:spTree>`+title+table+`</p:spTree></p:cSld></p:sld>`))
	c.SetRaw("ppt/slides/_rels/slide1.xml.rels", []byte(scaffoldXMLDecl+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
		`</Relationships>`))
	c.SetRaw("ppt/slideLayouts/slideLayout1.xml", []byte(scaffoldXMLDecl+
		`<p:sldLayout `+scaffoldNS+`><p:cSld><p:spTree/></p:cSld></p:sldLayout>`))
	c.SetRaw("ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(scaffoldXMLDecl+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>`+
		`</Relationships>`))
	c.SetRaw("ppt/slideMasters/slideMaster1.xml", []byte(scaffoldXMLDecl+
		`<p:sldMaster `+scaffoldNS+`><p:cSld><p:spTree/></p:cSld>`+
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst></p:sldMaster>`))
	c.SetRaw("ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(scaffoldXMLDecl+
		`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>`+
		`</Relationships>`))
	c.SetRaw("ppt/theme/theme1.xml", []byte(scaffoldXMLDecl+
		`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Office Theme"/>`))
	c.SetRaw("docProps/app.xml", []byte(scaffoldXMLDecl+
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" `+
		`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">`+
		`<Slides>1</Slides>`+
		`</Properties>`))

	var buf bytes.Buffer
	if err := c.Save(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
