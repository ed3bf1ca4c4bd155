package pptx

import (
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"
)

const (
	nsDecls = `xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"`

	relsNS = `xmlns="http://schemas.openxmlformats.org/package/2006/relationships"`
)

// deckSpec drives the test fixture builder.
type deckSpec struct {
	// slideBodies holds one text body per slide; "" yields an empty shape
	// tree. Entries may be raw spTree inner XML when rawBody is set.
	slideBodies []string
	rawBody     bool
	themeName   string
	slideW      int64
	slideH      int64
	// media maps file names under ppt/media to content. Slide 1's rels
	// reference every media file via rId10, rId11, ...
	media map[string][]byte
	// extraSlideRels is appended verbatim inside slide 1's Relationships
	// element.
	extraSlideRels string
}

// buildDeck assembles a minimal but internally consistent presentation
// container: one master, one layout, one theme and the requested slides.
func buildDeck(t *testing.T, spec deckSpec) *Container {
	t.Helper()
	if spec.themeName == "" {
		spec.themeName = "Office Theme"
	}
	if spec.slideW == 0 {
		spec.slideW = 12192000
	}
	if spec.slideH == 0 {
		spec.slideH = 6858000
	}
	c := NewContainer()

	var overrides strings.Builder
	addOverride := func(part, ctype string) {
		fmt.Fprintf(&overrides, `<Override PartName="/%s" ContentType="%s"/>`, part, ctype)
	}
	addOverride("ppt/presentation.xml", "application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml")
	addOverride("ppt/slideMasters/slideMaster1.xml", famMaster.ctype)
	addOverride("ppt/slideLayouts/slideLayout1.xml", famLayout.ctype)
	addOverride("ppt/theme/theme1.xml", famTheme.ctype)
	addOverride("docProps/app.xml", "application/vnd.openxmlformats-officedocument.extended-properties+xml")

	var sldIds, presRels, titles strings.Builder
	presRels.WriteString(`<Relationship Id="rId1" Type="` + relTypeMaster + `" Target="slideMasters/slideMaster1.xml"/>`)
	for i := range spec.slideBodies {
		n := i + 1
		rid := fmt.Sprintf("rId%d", n+1)
		fmt.Fprintf(&sldIds, `<p:sldId id="%d" r:id="%s"/>`, 255+n, rid)
		fmt.Fprintf(&presRels, `<Relationship Id="%s" Type="%s" Target="slides/slide%d.xml"/>`, rid, relTypeSlide, n)
		addOverride(fmt.Sprintf("ppt/slides/slide%d.xml", n), famSlide.ctype)
		fmt.Fprintf(&titles, `<vt:lpstr>Slide %d</vt:lpstr>`, n)
	}

	c.SetRaw(contentTypesPath, []byte(xmlDeclaration+
		`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`+
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`+
		`<Default Extension="xml" ContentType="application/xml"/>`+
		`<Default Extension="png" ContentType="image/png"/>`+
		overrides.String()+`</Types>`))

	c.SetRaw(presentationPath, []byte(xmlDeclaration+
		`<p:presentation `+nsDecls+`>`+
		`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`+
		`<p:sldIdLst>`+sldIds.String()+`</p:sldIdLst>`+
		fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, spec.slideW, spec.slideH)+
		`</p:presentation>`))
	c.SetRaw(presentationRels, []byte(xmlDeclaration+
		`<Relationships `+relsNS+`>`+presRels.String()+`</Relationships>`))

	for i, body := range spec.slideBodies {
		n := i + 1
		inner := body
		if !spec.rawBody {
			inner = `<p:sp><p:txBody><a:p><a:r><a:rPr lang="en-US" sz="1800"/>` +
				`<a:t>` + body + `</a:t></a:r></a:p></p:txBody></p:sp>`
		}
		c.SetRaw(fmt.Sprintf("ppt/slides/slide%d.xml", n), []byte(xmlDeclaration+
			`<p:sld `+nsDecls+`><p:cSld><p:spTree>`+inner+`</p:spTree></p:cSld></p:sld>`))

		var mediaRels strings.Builder
		if n == 1 {
			names := make([]string, 0, len(spec.media))
			for name := range spec.media {
				names = append(names, name)
			}
			sort.Strings(names)
			for j, name := range names {
				fmt.Fprintf(&mediaRels,
					`<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/%s"/>`,
					10+j, name)
			}
			mediaRels.WriteString(spec.extraSlideRels)
		}
		c.SetRaw(fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", n), []byte(xmlDeclaration+
			`<Relationships `+relsNS+`>`+
			`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
			mediaRels.String()+`</Relationships>`))
	}

	c.SetRaw("ppt/slideLayouts/slideLayout1.xml", []byte(xmlDeclaration+
		`<p:sldLayout `+nsDecls+`><p:cSld><p:spTree/></p:cSld></p:sldLayout>`))
	c.SetRaw("ppt/slideLayouts/_rels/slideLayout1.xml.rels", []byte(xmlDeclaration+
		`<Relationships `+relsNS+`>`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>`+
		`</Relationships>`))

	c.SetRaw("ppt/slideMasters/slideMaster1.xml", []byte(xmlDeclaration+
		`<p:sldMaster `+nsDecls+`><p:cSld><p:spTree/></p:cSld>`+
		`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>`+
		`</p:sldMaster>`))
	c.SetRaw("ppt/slideMasters/_rels/slideMaster1.xml.rels", []byte(xmlDeclaration+
		`<Relationships `+relsNS+`>`+
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>`+
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>`+
		`</Relationships>`))

	c.SetRaw("ppt/theme/theme1.xml", []byte(xmlDeclaration+
		`<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="`+spec.themeName+`"/>`))

	for name, data := range spec.media {
		c.SetRaw(mediaDir+"/"+name, data)
	}

	c.SetRaw(appPropsPath, []byte(xmlDeclaration+
		`<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties" `+
		`xmlns:vt="http://schemas.openxmlformats.org/officeDocument/2006/docPropsVTypes">`+
		fmt.Sprintf(`<Slides>%d</Slides>`, len(spec.slideBodies))+
		`<HeadingPairs><vt:vector size="4" baseType="variant">`+
		`<vt:variant><vt:lpstr>Theme</vt:lpstr></vt:variant><vt:variant><vt:i4>1</vt:i4></vt:variant>`+
		`<vt:variant><vt:lpstr>Slide Titles</vt:lpstr></vt:variant>`+
		fmt.Sprintf(`<vt:variant><vt:i4>%d</vt:i4></vt:variant>`, len(spec.slideBodies))+
		`</vt:vector></HeadingPairs>`+
		`<TitlesOfParts>`+
		fmt.Sprintf(`<vt:vector size="%d" baseType="lpstr">`, 1+len(spec.slideBodies))+
		`<vt:lpstr>`+spec.themeName+`</vt:lpstr>`+titles.String()+
		`</vt:vector></TitlesOfParts>`+
		`</Properties>`))

	return c
}

// tableSlideBody builds a raw spTree body holding a 4-column table with a
// header row and one template data row.
func tableSlideBody(colWidths []int64, headerH int64) string {
	var grid strings.Builder
	for _, w := range colWidths {
		fmt.Fprintf(&grid, `<a:gridCol w="%d"/>`, w)
	}
	cell := func(text string) string {
		return `<a:tc><a:txBody><a:bodyPr/><a:p><a:r><a:rPr lang="en-US" sz="1100"/>` +
			`<a:t>` + text + `</a:t></a:r></a:p></a:txBody></a:tc>`
	}
	return `<p:graphicFrame><p:xfrm><a:off x="457200" y="1143000"/><a:ext cx="11277600" cy="5000000"/></p:xfrm>` +
		`<a:graphic><a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/table">` +
		`<a:tbl><a:tblGrid>` + grid.String() + `</a:tblGrid>` +
		fmt.Sprintf(`<a:tr h="%d">`, headerH) +
		cell("Subject") + cell("Hours") + cell("Content") + cell("Exercise") +
		`</a:tr>` +
		`<a:tr h="457200">` +
		cell("tmpl-subject") + cell("tmpl-hours") + cell("tmpl-content") + cell("tmpl-exercise") +
		`</a:tr>` +
		`</a:tbl></a:graphicData></a:graphic></p:graphicFrame>`
}

// pictureSlideBody builds a raw spTree body with pictures referencing the
// given relationship ids, sized by the paired extents.
func pictureSlideBody(pics []struct {
	RID    string
	Cx, Cy int64
}) string {
	var b strings.Builder
	for _, p := range pics {
		fmt.Fprintf(&b, `<p:pic><p:blipFill><a:blip r:embed="%s"/></p:blipFill>`+
			`<p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm></p:spPr></p:pic>`,
			p.RID, p.Cx, p.Cy)
	}
	return b.String()
}

// mustDoc parses a part or fails the test.
func mustDoc(t *testing.T, c *Container, name string) *xmlquery.Node {
	t.Helper()
	doc, err := c.Doc(name)
	if err != nil {
		t.Fatalf("parse %s: %v", name, err)
	}
	return doc
}
