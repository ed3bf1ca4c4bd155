package pptx

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// ErrNoSources is returned when a merge is requested with no inputs.
var ErrNoSources = errors.New("no presentation sources to merge")

const (
	relTypeSlide  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide"
	relTypeMaster = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster"
)

// MergeFiles splices the presentation files at paths, in order, into one
// package written to dest. The first source becomes the accumulating base;
// every later source is folded in with renumbered parts. Failures are
// attributed to the offending source path. Nothing is written unless every
// fold succeeds.
func MergeFiles(paths []string, dest string) (*Container, error) {
	if len(paths) == 0 {
		return nil, ErrNoSources
	}
	sources := make([]*Container, len(paths))
	for i, p := range paths {
		c, err := OpenFile(p)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", p, err)
		}
		sources[i] = c
	}
	merged, err := mergeLabeled(sources, paths)
	if err != nil {
		return nil, err
	}
	if err := merged.SaveFile(dest); err != nil {
		return nil, err
	}
	return merged, nil
}

// Merge folds the given containers into a new container without any archive
// I/O. Inputs are left unmodified.
func Merge(sources []*Container) (*Container, error) {
	labels := make([]string, len(sources))
	for i := range sources {
		labels[i] = fmt.Sprintf("source %d", i+1)
	}
	return mergeLabeled(sources, labels)
}

func mergeLabeled(sources []*Container, labels []string) (*Container, error) {
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	base, err := sources[0].Clone()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labels[0], err)
	}
	for i, src := range sources[1:] {
		if err := appendContainer(base, src); err != nil {
			return nil, fmt.Errorf("%s: %w", labels[i+1], err)
		}
	}
	if err := rewriteAppMetadata(base); err != nil {
		return nil, err
	}
	return base, nil
}

// appendContainer folds every slide of src into base, renumbering parts and
// rewriting all references so the result stays internally consistent.
func appendContainer(base, src *Container) error {
	reg, err := scanRegistry(base)
	if err != nil {
		return err
	}

	sldMap := offsetMap(familyNumbers(src, famSlide), reg.MaxSlide)
	layMap := offsetMap(familyNumbers(src, famLayout), reg.MaxLayout)
	mstMap := offsetMap(familyNumbers(src, famMaster), reg.MaxMaster)
	thmMap := offsetMap(familyNumbers(src, famTheme), reg.MaxTheme)

	mediaMap, err := copyMedia(base, src)
	if err != nil {
		return err
	}

	copyParts(base, src, famSlide, sldMap, true)
	copyParts(base, src, famLayout, layMap, true)
	copyParts(base, src, famMaster, mstMap, true)
	// Themes are leaf parts; their inbound relationships are rewritten on the
	// master side, so the theme's own rels (if any) are not carried.
	copyParts(base, src, famTheme, thmMap, false)

	for _, n := range sortedValues(sldMap) {
		rels := relsPathFor(famSlide.path(n))
		if err := rewriteRels(base, rels, map[string]map[int]int{"slideLayout": layMap}, mediaMap); err != nil {
			return err
		}
		if err := stripNotesRels(base, rels); err != nil {
			return err
		}
	}
	for _, n := range sortedValues(layMap) {
		rels := relsPathFor(famLayout.path(n))
		if err := rewriteRels(base, rels, map[string]map[int]int{"slideMaster": mstMap}, mediaMap); err != nil {
			return err
		}
	}
	for _, n := range sortedValues(mstMap) {
		rels := relsPathFor(famMaster.path(n))
		maps := map[string]map[int]int{"slideLayout": layMap, "theme": thmMap}
		if err := rewriteRels(base, rels, maps, mediaMap); err != nil {
			return err
		}
		if err := reallocateLayoutIDs(base, famMaster.path(n)); err != nil {
			return err
		}
	}

	if err := registerInManifest(base, src, sldMap, mstMap); err != nil {
		return err
	}
	if err := registerContentTypes(base, sldMap, layMap, mstMap, thmMap); err != nil {
		return err
	}
	if err := copyDefaultTypes(base, src); err != nil {
		return err
	}
	return harmonizeSlideSize(base, src)
}

func sortedValues(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func sortedKeys(m map[int]int) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// copyParts copies a family's part files (and sibling rels when withRels)
// from src to base under their renumbered names.
func copyParts(base, src *Container, f family, numMap map[int]int, withRels bool) {
	for old, newNum := range numMap {
		oldPath := f.path(old)
		if data, err := src.Raw(oldPath); err == nil {
			base.SetRaw(f.path(newNum), append([]byte(nil), data...))
		}
		if !withRels {
			continue
		}
		oldRels := relsPathFor(oldPath)
		if data, err := src.Raw(oldRels); err == nil {
			base.SetRaw(relsPathFor(f.path(newNum)), append([]byte(nil), data...))
		}
	}
}

// copyMedia copies src's media files into base. A filename collision with
// byte-identical content reuses the existing file; differing content gets a
// deterministic rename (stem_mN.ext). Returns the old → new name map for
// renamed files.
func copyMedia(base, src *Container) (map[string]string, error) {
	renames := make(map[string]string)
	existing := make(map[string]bool)
	for _, name := range base.Names() {
		if strings.HasPrefix(name, mediaDir+"/") {
			existing[path.Base(name)] = true
		}
	}
	for _, name := range src.Names() {
		if !strings.HasPrefix(name, mediaDir+"/") {
			continue
		}
		data, err := src.Raw(name)
		if err != nil {
			return nil, err
		}
		fileName := path.Base(name)
		if existing[fileName] {
			baseData, err := base.Raw(mediaDir + "/" + fileName)
			if err == nil && blake3.Sum256(baseData) == blake3.Sum256(data) {
				continue // identical bytes, reuse the existing file
			}
			stem := strings.TrimSuffix(fileName, path.Ext(fileName))
			ext := path.Ext(fileName)
			renamed := fileName
			for i := 1; existing[renamed]; i++ {
				renamed = fmt.Sprintf("%s_m%d%s", stem, i, ext)
			}
			renames[fileName] = renamed
			fileName = renamed
		}
		base.SetRaw(mediaDir+"/"+fileName, append([]byte(nil), data...))
		existing[fileName] = true
	}
	return renames, nil
}

// rewriteRels retargets the relationships of one copied rels file: numbered
// part references through the per-family offset maps, media references
// through the rename map. A missing rels file is skipped.
func rewriteRels(c *Container, relsName string, partMaps map[string]map[int]int, mediaMap map[string]string) error {
	if !c.Has(relsName) {
		return nil
	}
	doc, err := c.Doc(relsName)
	if err != nil {
		return err
	}
	prefixes := make([]string, 0, len(partMaps))
	for prefix := range partMaps {
		prefixes = append(prefixes, prefix)
	}
	sort.Strings(prefixes)

	changed := false
	for _, rel := range descendants(doc, "Relationship") {
		target := attrVal(rel, "Target")
		for _, prefix := range prefixes {
			pat := regexp.MustCompile(regexp.QuoteMeta(prefix) + `(\d+)\.xml`)
			if m := pat.FindStringSubmatch(target); m != nil {
				old, _ := strconv.Atoi(m[1])
				if newNum, ok := partMaps[prefix][old]; ok {
					target = strings.Replace(target,
						fmt.Sprintf("%s%d.xml", prefix, old),
						fmt.Sprintf("%s%d.xml", prefix, newNum), 1)
					setAttrVal(rel, "Target", target)
					changed = true
				}
				break
			}
		}
		for oldName, newName := range mediaMap {
			if strings.HasSuffix(target, "/"+oldName) {
				setAttrVal(rel, "Target", strings.TrimSuffix(target, oldName)+newName)
				changed = true
				break
			}
		}
	}
	if changed {
		c.MarkDirty(relsName)
	}
	return nil
}

// stripNotesRels drops notes-slide relationships from a copied slide's rels
// file. Notes parts are never copied, and a dangling reference to one
// corrupts downstream readers.
func stripNotesRels(c *Container, relsName string) error {
	if !c.Has(relsName) {
		return nil
	}
	doc, err := c.Doc(relsName)
	if err != nil {
		return err
	}
	removed := false
	for _, rel := range descendants(doc, "Relationship") {
		if strings.Contains(attrVal(rel, "Type"), "notesSlide") {
			removeNode(rel)
			removed = true
		}
	}
	if removed {
		c.MarkDirty(relsName)
	}
	return nil
}

// reallocateLayoutIDs rewrites a copied master's layout-id list to values
// strictly above the current maximum of the shared master/layout id space.
func reallocateLayoutIDs(c *Container, masterPath string) error {
	if !c.Has(masterPath) {
		return nil
	}
	used, err := sharedIDs(c, masterPath)
	if err != nil {
		return err
	}
	doc, err := c.Doc(masterPath)
	if err != nil {
		return err
	}
	lst := firstDescendant(doc, "sldLayoutIdLst")
	if lst == nil {
		return nil
	}
	next := maxOf(used, 2147483647) + 1
	for _, el := range childElems(lst, "sldLayoutId") {
		setAttrVal(el, "id", strconv.Itoa(next))
		next++
	}
	c.MarkDirty(masterPath)
	return nil
}

// registerInManifest appends the copied slides and masters to base's
// manifest and presentation-level relationships, allocating fresh manifest
// and relationship ids. Slides are registered in src's own display order so
// the merged manifest concatenates sources without reshuffling.
func registerInManifest(base, src *Container, sldMap, mstMap map[int]int) error {
	presDoc, err := base.Doc(presentationPath)
	if err != nil {
		return err
	}
	presRoot := rootElem(presDoc)
	if presRoot == nil {
		return fmt.Errorf("%s: empty document", presentationPath)
	}
	relsDoc, err := base.Doc(presentationRels)
	if err != nil {
		return err
	}
	relsRoot := rootElem(relsDoc)
	if relsRoot == nil {
		return fmt.Errorf("%s: empty document", presentationRels)
	}

	reg, err := scanRegistry(base)
	if err != nil {
		return err
	}

	slidePfx := presRoot.Prefix

	sldLst := childElem(presRoot, "sldIdLst")
	if sldLst == nil {
		sldLst = newElem(slidePfx, "sldIdLst")
		appendChild(presRoot, sldLst)
	}
	for _, old := range srcSlideOrder(src, sldMap) {
		reg.MaxRelID++
		reg.MaxSlideID++
		rid := fmt.Sprintf("rId%d", reg.MaxRelID)

		sld := newElem(slidePfx, "sldId")
		setAttrVal(sld, "id", strconv.Itoa(reg.MaxSlideID))
		setAttrVal(sld, "r:id", rid)
		appendChild(sldLst, sld)

		rel := newElem("", "Relationship")
		setAttrVal(rel, "Id", rid)
		setAttrVal(rel, "Type", relTypeSlide)
		setAttrVal(rel, "Target", fmt.Sprintf("slides/slide%d.xml", sldMap[old]))
		appendChild(relsRoot, rel)
	}

	mstLst := childElem(presRoot, "sldMasterIdLst")
	if mstLst == nil {
		mstLst = newElem(slidePfx, "sldMasterIdLst")
		appendChild(presRoot, mstLst)
	}
	used, err := sharedIDs(base, "")
	if err != nil {
		return err
	}
	nextShared := maxOf(used, 2147483647)
	for _, old := range sortedKeys(mstMap) {
		reg.MaxRelID++
		nextShared++
		rid := fmt.Sprintf("rId%d", reg.MaxRelID)

		mst := newElem(slidePfx, "sldMasterId")
		setAttrVal(mst, "id", strconv.Itoa(nextShared))
		setAttrVal(mst, "r:id", rid)
		appendChild(mstLst, mst)

		rel := newElem("", "Relationship")
		setAttrVal(rel, "Id", rid)
		setAttrVal(rel, "Type", relTypeMaster)
		setAttrVal(rel, "Target", fmt.Sprintf("slideMasters/slideMaster%d.xml", mstMap[old]))
		appendChild(relsRoot, rel)
	}

	base.MarkDirty(presentationPath)
	base.MarkDirty(presentationRels)
	return nil
}

// srcSlideOrder returns src's old slide numbers in src's manifest display
// order, falling back to numeric order when the manifest is unreadable.
func srcSlideOrder(src *Container, sldMap map[int]int) []int {
	paths, err := src.SlidePaths()
	if err != nil || len(paths) == 0 {
		return sortedKeys(sldMap)
	}
	pat := famSlide.pattern()
	var order []int
	seen := make(map[int]bool)
	for _, p := range paths {
		if m := pat.FindStringSubmatch(p); m != nil {
			n, _ := strconv.Atoi(m[1])
			if _, ok := sldMap[n]; ok && !seen[n] {
				order = append(order, n)
				seen[n] = true
			}
		}
	}
	// Parts absent from the manifest still get registered, after the
	// manifest-ordered ones.
	for _, n := range sortedKeys(sldMap) {
		if !seen[n] {
			order = append(order, n)
		}
	}
	return order
}

// registerContentTypes appends one override entry per copied part to the
// content-type registry.
func registerContentTypes(base *Container, sldMap, layMap, mstMap, thmMap map[int]int) error {
	doc, err := base.Doc(contentTypesPath)
	if err != nil {
		return err
	}
	root := rootElem(doc)
	if root == nil {
		return fmt.Errorf("%s: empty document", contentTypesPath)
	}
	for _, entry := range []struct {
		f    family
		nums map[int]int
	}{
		{famSlide, sldMap},
		{famLayout, layMap},
		{famMaster, mstMap},
		{famTheme, thmMap},
	} {
		for _, n := range sortedValues(entry.nums) {
			ov := newElem("", "Override")
			setAttrVal(ov, "PartName", "/"+entry.f.path(n))
			setAttrVal(ov, "ContentType", entry.f.ctype)
			appendChild(root, ov)
		}
	}
	base.MarkDirty(contentTypesPath)
	return nil
}

// copyDefaultTypes copies Default extension entries present in src's
// content-type registry but absent from base's.
func copyDefaultTypes(base, src *Container) error {
	if !src.Has(contentTypesPath) {
		return nil
	}
	baseDoc, err := base.Doc(contentTypesPath)
	if err != nil {
		return err
	}
	srcDoc, err := src.Doc(contentTypesPath)
	if err != nil {
		return err
	}
	baseRoot := rootElem(baseDoc)
	if baseRoot == nil {
		return fmt.Errorf("%s: empty document", contentTypesPath)
	}
	existing := make(map[string]bool)
	for _, def := range descendants(baseDoc, "Default") {
		existing[attrVal(def, "Extension")] = true
	}
	added := false
	for _, def := range descendants(srcDoc, "Default") {
		ext := attrVal(def, "Extension")
		if ext == "" || existing[ext] {
			continue
		}
		appendChild(baseRoot, cloneNode(def))
		existing[ext] = true
		added = true
	}
	if added {
		base.MarkDirty(contentTypesPath)
	}
	return nil
}

// harmonizeSlideSize adopts the larger of each canvas dimension when src
// declares a bigger slide size than base.
func harmonizeSlideSize(base, src *Container) error {
	bw, bh, err := slideSize(base)
	if err != nil {
		return err
	}
	sw, sh, err := slideSize(src)
	if err != nil {
		return err
	}
	if sw <= bw && sh <= bh {
		return nil
	}
	doc, err := base.Doc(presentationPath)
	if err != nil {
		return err
	}
	if sz := firstDescendant(doc, "sldSz"); sz != nil {
		setAttrVal(sz, "cx", strconv.FormatInt(maxInt64(bw, sw), 10))
		setAttrVal(sz, "cy", strconv.FormatInt(maxInt64(bh, sh), 10))
		base.MarkDirty(presentationPath)
	}
	return nil
}

func slideSize(c *Container) (cx, cy int64, err error) {
	doc, err := c.Doc(presentationPath)
	if err != nil {
		return 0, 0, err
	}
	sz := firstDescendant(doc, "sldSz")
	if sz == nil {
		return 0, 0, nil
	}
	cx, _ = strconv.ParseInt(attrVal(sz, "cx"), 10, 64)
	cy, _ = strconv.ParseInt(attrVal(sz, "cy"), 10, 64)
	return cx, cy, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// rewriteAppMetadata aligns docProps/app.xml with the merged part counts:
// the slide count plus the HeadingPairs / TitlesOfParts listings rebuilt
// from the final themes and slides. A package without app.xml is left alone.
func rewriteAppMetadata(c *Container) error {
	if !c.Has(appPropsPath) {
		return nil
	}
	doc, err := c.Doc(appPropsPath)
	if err != nil {
		return err
	}
	root := rootElem(doc)
	if root == nil {
		return nil
	}

	slideNums := familyNumbers(c, famSlide)
	themeNums := familyNumbers(c, famTheme)
	sort.Ints(slideNums)
	sort.Ints(themeNums)

	if el := childElem(root, "Slides"); el != nil {
		setElemText(el, strconv.Itoa(len(slideNums)))
	}

	var themeNames []string
	for _, n := range themeNums {
		name := fmt.Sprintf("Theme %d", n)
		if tdoc, err := c.Doc(famTheme.path(n)); err == nil {
			if troot := rootElem(tdoc); troot != nil {
				if v := attrVal(troot, "name"); v != "" {
					name = v
				}
			}
		}
		themeNames = append(themeNames, name)
	}
	var slideTitles []string
	for _, n := range slideNums {
		slideTitles = append(slideTitles, fmt.Sprintf("Slide %d", n))
	}

	if old := childElem(root, "HeadingPairs"); old != nil {
		removeNode(old)
	}
	hp := newElem(root.Prefix, "HeadingPairs")
	appendChild(root, hp)
	vec := newElem("vt", "vector")
	setAttrVal(vec, "size", "4")
	setAttrVal(vec, "baseType", "variant")
	appendChild(hp, vec)
	for _, pair := range []struct {
		label string
		count int
	}{
		{"Theme", len(themeNames)},
		{"Slide Titles", len(slideTitles)},
	} {
		v1 := newElem("vt", "variant")
		lp := newElem("vt", "lpstr")
		setElemText(lp, pair.label)
		appendChild(v1, lp)
		appendChild(vec, v1)

		v2 := newElem("vt", "variant")
		i4 := newElem("vt", "i4")
		setElemText(i4, strconv.Itoa(pair.count))
		appendChild(v2, i4)
		appendChild(vec, v2)
	}

	if old := childElem(root, "TitlesOfParts"); old != nil {
		removeNode(old)
	}
	tp := newElem(root.Prefix, "TitlesOfParts")
	appendChild(root, tp)
	vec2 := newElem("vt", "vector")
	setAttrVal(vec2, "size", strconv.Itoa(len(themeNames)+len(slideTitles)))
	setAttrVal(vec2, "baseType", "lpstr")
	appendChild(tp, vec2)
	for _, name := range append(append([]string(nil), themeNames...), slideTitles...) {
		lp := newElem("vt", "lpstr")
		setElemText(lp, name)
		appendChild(vec2, lp)
	}

	c.MarkDirty(appPropsPath)
	return nil
}
