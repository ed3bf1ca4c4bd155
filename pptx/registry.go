package pptx

import (
	"fmt"
	"regexp"
	"strconv"
)

// family describes one numbered part family of the package.
type family struct {
	dir    string // directory prefix inside the package
	prefix string // file name prefix before the numeric suffix
	ctype  string // content-type override value
}

var (
	famSlide = family{
		dir:    "ppt/slides",
		prefix: "slide",
		ctype:  "application/vnd.openxmlformats-officedocument.presentationml.slide+xml",
	}
	famLayout = family{
		dir:    "ppt/slideLayouts",
		prefix: "slideLayout",
		ctype:  "application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml",
	}
	famMaster = family{
		dir:    "ppt/slideMasters",
		prefix: "slideMaster",
		ctype:  "application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml",
	}
	famTheme = family{
		dir:    "ppt/theme",
		prefix: "theme",
		ctype:  "application/vnd.openxmlformats-officedocument.theme+xml",
	}
)

func (f family) path(n int) string {
	return fmt.Sprintf("%s/%s%d.xml", f.dir, f.prefix, n)
}

func (f family) pattern() *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(f.dir+"/"+f.prefix) + `(\d+)\.xml$`)
}

// familyNumbers returns the sorted numeric suffixes present for a family.
func familyNumbers(c *Container, f family) []int {
	pat := f.pattern()
	var nums []int
	for _, name := range c.Names() {
		if m := pat.FindStringSubmatch(name); m != nil {
			n, _ := strconv.Atoi(m[1])
			nums = append(nums, n)
		}
	}
	return nums
}

func maxOf(nums []int, fallback int) int {
	max := fallback
	for _, n := range nums {
		if n > max {
			max = n
		}
	}
	return max
}

// Registry captures the numbering state of a container: the highest suffix
// in use per family plus the id counters shared at the manifest level. It is
// recomputed before each fold and threaded through the merge steps instead
// of being kept as global mutable state.
type Registry struct {
	MaxSlide  int
	MaxLayout int
	MaxMaster int
	MaxTheme  int

	// MaxRelID is the highest rIdN in the presentation-level relationships.
	MaxRelID int
	// MaxSlideID is the highest id in the manifest's slide list.
	MaxSlideID int
}

var ridPattern = regexp.MustCompile(`^rId(\d+)$`)

// scanRegistry computes the Registry of a container.
func scanRegistry(c *Container) (Registry, error) {
	reg := Registry{
		MaxSlide:  maxOf(familyNumbers(c, famSlide), 0),
		MaxLayout: maxOf(familyNumbers(c, famLayout), 0),
		MaxMaster: maxOf(familyNumbers(c, famMaster), 0),
		MaxTheme:  maxOf(familyNumbers(c, famTheme), 0),
	}

	if c.Has(presentationRels) {
		doc, err := c.Doc(presentationRels)
		if err != nil {
			return reg, err
		}
		for _, rel := range descendants(doc, "Relationship") {
			if m := ridPattern.FindStringSubmatch(attrVal(rel, "Id")); m != nil {
				n, _ := strconv.Atoi(m[1])
				if n > reg.MaxRelID {
					reg.MaxRelID = n
				}
			}
		}
	}

	doc, err := c.Doc(presentationPath)
	if err != nil {
		return reg, err
	}
	root := rootElem(doc)
	if root == nil {
		return reg, fmt.Errorf("%s: empty document", presentationPath)
	}
	reg.MaxSlideID = 255 // manifest slide ids start above 255 by convention
	if lst := childElem(root, "sldIdLst"); lst != nil {
		for _, sld := range childElems(lst, "sldId") {
			if id, err := strconv.Atoi(attrVal(sld, "id")); err == nil && id > reg.MaxSlideID {
				reg.MaxSlideID = id
			}
		}
	}
	return reg, nil
}

// sharedIDs collects every id of the master/layout id space: the manifest's
// slide-master ids plus the layout-id lists of every slide master. The two
// families share one numeric namespace, so new ids must clear both.
// excludePath names a master part whose own layout ids are being replaced
// and therefore must not count as occupied.
func sharedIDs(c *Container, excludePath string) ([]int, error) {
	var ids []int
	doc, err := c.Doc(presentationPath)
	if err != nil {
		return nil, err
	}
	for _, el := range descendants(doc, "sldMasterId") {
		if id, err := strconv.Atoi(attrVal(el, "id")); err == nil {
			ids = append(ids, id)
		}
	}
	pat := famMaster.pattern()
	for _, name := range c.Names() {
		if pat.MatchString(name) && name != excludePath {
			mdoc, err := c.Doc(name)
			if err != nil {
				return nil, err
			}
			for _, el := range descendants(mdoc, "sldLayoutId") {
				if id, err := strconv.Atoi(attrVal(el, "id")); err == nil {
					ids = append(ids, id)
				}
			}
		}
	}
	return ids, nil
}

// offsetMap maps each source suffix to a collision-free suffix in the base:
// new = old + base max.
func offsetMap(srcNums []int, baseMax int) map[int]int {
	m := make(map[int]int, len(srcNums))
	for _, n := range srcNums {
		m[n] = n + baseMax
	}
	return m
}
