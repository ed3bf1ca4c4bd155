package pptx

import (
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Token names may use any letter or digit, not just ASCII, so templates
// can carry Korean placeholders like {{고객명}}.
var tokenPattern = regexp.MustCompile(`\{\{([\p{L}\p{N}_]+)\}\}`)

var (
	// ErrNoTable is returned when a slide targeted for table injection has
	// no table shape.
	ErrNoTable = errors.New("slide contains no table")
	// ErrNoTemplateRow is returned when the target table has a header row
	// but no data row to clone formatting from.
	ErrNoTemplateRow = errors.New("table has no template data row")
	// ErrNoPicture is returned when a slide targeted for image replacement
	// has no picture shape.
	ErrNoPicture = errors.New("slide contains no picture")
)

// UnresolvedTokenError reports placeholder tokens left on a slide after a
// strict substitution pass.
type UnresolvedTokenError struct {
	Slide  string
	Tokens []string
}

func (e *UnresolvedTokenError) Error() string {
	return fmt.Sprintf("slide %s: unresolved tokens: %s", e.Slide, strings.Join(e.Tokens, ", "))
}

// TableRecord is one injected table row.
type TableRecord struct {
	Subject  string `json:"subject"`
	Hours    string `json:"hours"`
	Content  string `json:"content"`
	Exercise string `json:"exercise"`
}

func (r TableRecord) columns() []string {
	return []string{r.Subject, r.Hours, r.Content, r.Exercise}
}

const (
	emuPerInch      = 914400
	tableBottomPad  = 274320 // gap kept below the table, in EMU
	minRowHeightEMU = 457200
	minFontSize     = 850  // hundredths of a point
	defaultFontSize = 1100 // hundredths of a point
	fontSizeStep    = 50
)

// dense columns carry long prose and are the only ones the font fitter
// shrinks; subject and hours stay at template size.
var denseColumns = map[int]bool{2: true, 3: true}

// sanitizeText normalizes control characters in replacement text: vertical
// tab and form feed become newlines, other C0 controls (except tab and
// newline) are dropped.
func sanitizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\v' || r == '\f':
			b.WriteRune('\n')
		case r == '\r':
			// swallowed; \r\n collapses to the following \n
		case r < 0x20 && r != '\t' && r != '\n':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Substitute replaces {{token}} placeholders on one slide with values,
// operating per paragraph so tokens split across runs still resolve.
// Unknown tokens are left literal. Returns the number of replacements.
func Substitute(c *Container, slidePath string, values map[string]string) (int, error) {
	n, _, err := substitute(c, slidePath, values)
	return n, err
}

// SubstituteStrict is Substitute, but any token without a value fails with
// an UnresolvedTokenError naming the leftovers.
func SubstituteStrict(c *Container, slidePath string, values map[string]string) (int, error) {
	n, unresolved, err := substitute(c, slidePath, values)
	if err != nil {
		return n, err
	}
	if len(unresolved) > 0 {
		return n, &UnresolvedTokenError{Slide: slidePath, Tokens: unresolved}
	}
	return n, nil
}

// SubstituteAll runs Substitute over every slide of the container and
// returns the total number of replacements.
func SubstituteAll(c *Container, values map[string]string) (int, error) {
	paths, err := c.SlidePaths()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, p := range paths {
		n, err := Substitute(c, p, values)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func substitute(c *Container, slidePath string, values map[string]string) (int, []string, error) {
	doc, err := c.Doc(slidePath)
	if err != nil {
		return 0, nil, err
	}
	replaced := 0
	unresolvedSet := make(map[string]bool)
	for _, para := range descendants(doc, "p") {
		texts := paragraphTexts(para)
		if len(texts) == 0 {
			continue
		}
		var combined strings.Builder
		for _, t := range texts {
			combined.WriteString(elemText(t))
		}
		src := combined.String()
		if !strings.Contains(src, "{{") {
			continue
		}
		out := tokenPattern.ReplaceAllStringFunc(src, func(m string) string {
			name := tokenPattern.FindStringSubmatch(m)[1]
			v, ok := values[name]
			if !ok {
				unresolvedSet[name] = true
				return m
			}
			replaced++
			return sanitizeText(v)
		})
		if out == src {
			continue
		}
		setElemText(texts[0], out)
		for _, t := range texts[1:] {
			setElemText(t, "")
		}
	}
	if replaced > 0 {
		c.MarkDirty(slidePath)
	}
	unresolved := make([]string, 0, len(unresolvedSet))
	for name := range unresolvedSet {
		unresolved = append(unresolved, name)
	}
	sort.Strings(unresolved)
	return replaced, unresolved, nil
}

// paragraphTexts collects a paragraph's run text nodes in document order.
func paragraphTexts(para *xmlquery.Node) []*xmlquery.Node {
	var out []*xmlquery.Node
	for run := para.FirstChild; run != nil; run = run.NextSibling {
		if run.Type != xmlquery.ElementNode || run.Data != "r" {
			continue
		}
		if t := childElem(run, "t"); t != nil {
			out = append(out, t)
		}
	}
	return out
}

// InjectTable fills the first table on the slide with records. The header
// row is untouched; the first data row serves as the formatting template
// and is cloned once per record. Row heights are fitted to the canvas and
// the dense text columns share one font size, shrunk across all rows when
// the longest prose would overflow.
func InjectTable(c *Container, slidePath string, records []TableRecord) error {
	doc, err := c.Doc(slidePath)
	if err != nil {
		return err
	}
	tbl := firstDescendant(doc, "tbl")
	if tbl == nil {
		return ErrNoTable
	}
	rows := childElems(tbl, "tr")
	if len(rows) < 2 {
		return ErrNoTemplateRow
	}
	header, template := rows[0], rows[1]

	for _, row := range rows[1:] {
		removeNode(row)
	}

	rowHeight, err := fitRowHeight(c, tbl, header, len(records))
	if err != nil {
		return err
	}
	colWidths := columnWidths(tbl)
	fontSize := fitTableFonts(template, records, colWidths, rowHeight)

	for _, rec := range records {
		row := cloneNode(template)
		setAttrVal(row, "h", strconv.FormatInt(rowHeight, 10))
		cells := childElems(row, "tc")
		cols := rec.columns()
		for i, cell := range cells {
			if i >= len(cols) {
				break
			}
			setCellText(cell, sanitizeText(cols[i]))
			if denseColumns[i] {
				setCellFontSize(cell, fontSize)
			}
		}
		appendChild(tbl, row)
	}

	c.MarkDirty(slidePath)
	return nil
}

// fitRowHeight divides the canvas space under the table header across the
// data rows, never going below the minimum row height.
func fitRowHeight(c *Container, tbl, header *xmlquery.Node, rowCount int) (int64, error) {
	if rowCount == 0 {
		return minRowHeightEMU, nil
	}
	_, slideH, err := slideSize(c)
	if err != nil {
		return 0, err
	}
	if slideH == 0 {
		slideH = 6858000 // 7.5in default canvas height
	}
	top := tableTop(tbl)
	headerH, _ := strconv.ParseInt(attrVal(header, "h"), 10, 64)
	available := slideH - top - tableBottomPad - headerH
	h := available / int64(rowCount)
	if h < minRowHeightEMU {
		h = minRowHeightEMU
	}
	return h, nil
}

// tableTop finds the y offset of the graphic frame holding the table.
func tableTop(tbl *xmlquery.Node) int64 {
	for n := tbl.Parent; n != nil; n = n.Parent {
		if n.Type == xmlquery.ElementNode && n.Data == "graphicFrame" {
			if off := firstDescendant(n, "off"); off != nil {
				y, _ := strconv.ParseInt(attrVal(off, "y"), 10, 64)
				return y
			}
		}
	}
	return 0
}

// columnWidths reads the table grid's column widths in EMU.
func columnWidths(tbl *xmlquery.Node) []int64 {
	grid := childElem(tbl, "tblGrid")
	if grid == nil {
		return nil
	}
	var out []int64
	for _, col := range childElems(grid, "gridCol") {
		w, _ := strconv.ParseInt(attrVal(col, "w"), 10, 64)
		out = append(out, w)
	}
	return out
}

// fitTableFonts picks one size for the dense columns of every data row.
// The tallest dense cell across all records, measured at the template
// size, sets the need; the size scales down by usable/needed so the rows
// stay uniform, never below the minimum.
func fitTableFonts(template *xmlquery.Node, records []TableRecord, widths []int64, rowHeight int64) int {
	rowPt := float64(rowHeight) / emuPerInch * 72
	usablePt := rowPt - 12 // cell vertical padding
	if usablePt <= 0 {
		usablePt = 1
	}
	base := defaultFontSize
	cells := childElems(template, "tc")
	if len(cells) > 2 {
		if sz := cellFontSize(cells[2]); sz > 0 {
			base = sz
		}
	}
	needed := 0.0
	for _, rec := range records {
		if h := worstLineHeight(rec.columns(), widths, base); h > needed {
			needed = h
		}
	}
	if needed <= usablePt {
		return base
	}
	size := int(float64(base) * usablePt / needed)
	size -= size % fontSizeStep
	if size < minFontSize {
		size = minFontSize
	}
	return size
}

// worstLineHeight estimates the tallest dense cell of a row at the given
// font size, in points.
func worstLineHeight(cols []string, widths []int64, size int) float64 {
	fontPt := float64(size) / 100
	charIn := fontPt * 0.012
	worst := 0.0
	for i, text := range cols {
		if !denseColumns[i] || i >= len(widths) {
			continue
		}
		colIn := float64(widths[i])/emuPerInch - 0.2
		if colIn < 0.5 {
			colIn = 0.5
		}
		perLine := colIn / charIn
		lines := 0.0
		for _, ln := range strings.Split(text, "\n") {
			if ln == "" {
				lines += 0.5
				continue
			}
			lines += math.Ceil(float64(len([]rune(ln))) / perLine)
		}
		if h := lines * fontPt * 1.3; h > worst {
			worst = h
		}
	}
	return worst
}

// cellFontSize returns the first explicit run size in the cell, in
// hundredths of a point, or 0 when none is declared.
func cellFontSize(tc *xmlquery.Node) int {
	for _, rPr := range descendants(tc, "rPr") {
		if v := attrVal(rPr, "sz"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
		}
	}
	return 0
}

// setCellFontSize forces every run property in the cell to the given size,
// creating run properties for runs that had none.
func setCellFontSize(tc *xmlquery.Node, size int) {
	sz := strconv.Itoa(size)
	for _, rPr := range descendants(tc, "rPr") {
		setAttrVal(rPr, "sz", sz)
	}
	for _, rPr := range descendants(tc, "endParaRPr") {
		setAttrVal(rPr, "sz", sz)
	}
	for _, run := range descendants(tc, "r") {
		if childElem(run, "rPr") != nil {
			continue
		}
		rPr := newElem(run.Prefix, "rPr")
		setAttrVal(rPr, "sz", sz)
		// rPr must precede the text element
		rPr.Parent = run
		rPr.NextSibling = run.FirstChild
		if run.FirstChild != nil {
			run.FirstChild.PrevSibling = rPr
		} else {
			run.LastChild = rPr
		}
		run.FirstChild = rPr
	}
}

// setCellText replaces the cell's paragraphs with one paragraph per text
// line, cloning the first existing paragraph to keep its formatting.
func setCellText(tc *xmlquery.Node, text string) {
	txBody := childElem(tc, "txBody")
	if txBody == nil {
		return
	}
	paras := childElems(txBody, "p")
	if len(paras) == 0 {
		return
	}
	template := cloneNode(paras[0])
	for _, p := range paras {
		removeNode(p)
	}
	for _, line := range strings.Split(text, "\n") {
		para := cloneNode(template)
		texts := paragraphTexts(para)
		if len(texts) == 0 {
			run := newElem(para.Prefix, "r")
			t := newElem(para.Prefix, "t")
			setElemText(t, line)
			appendChild(run, t)
			appendChild(para, run)
		} else {
			setElemText(texts[0], line)
			for _, t := range texts[1:] {
				setElemText(t, "")
			}
		}
		appendChild(txBody, para)
	}
}

// ReplaceSlideImage swaps the bytes behind the largest picture on the
// slide, leaving its frame and geometry untouched. The largest picture is
// the one with the greatest declared extent area.
func ReplaceSlideImage(c *Container, slidePath string, data []byte) error {
	doc, err := c.Doc(slidePath)
	if err != nil {
		return err
	}
	var best *xmlquery.Node
	var bestArea int64 = -1
	for _, pic := range descendants(doc, "pic") {
		area := int64(0)
		if ext := firstDescendant(pic, "ext"); ext != nil {
			cx, _ := strconv.ParseInt(attrVal(ext, "cx"), 10, 64)
			cy, _ := strconv.ParseInt(attrVal(ext, "cy"), 10, 64)
			area = cx * cy
		}
		if area > bestArea {
			best, bestArea = pic, area
		}
	}
	if best == nil {
		return ErrNoPicture
	}
	blip := firstDescendant(best, "blip")
	if blip == nil {
		return ErrNoPicture
	}
	rid := attrVal(blip, "r:embed")
	if rid == "" {
		return fmt.Errorf("%s: picture has no embedded image reference", slidePath)
	}
	targets, err := c.relTargets(relsPathFor(slidePath))
	if err != nil {
		return err
	}
	target, ok := targets[rid]
	if !ok {
		return fmt.Errorf("%s: relationship %s not found", slidePath, rid)
	}
	mediaPath := resolveTarget(path.Dir(slidePath), target)
	if !c.Has(mediaPath) {
		return fmt.Errorf("%s: media part %s not found", slidePath, mediaPath)
	}
	c.SetRaw(mediaPath, append([]byte(nil), data...))
	return nil
}
