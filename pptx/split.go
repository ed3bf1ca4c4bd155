package pptx

import (
	"fmt"
	"sort"
)

// ExtractSlides returns a copy of src reduced to the slides at the given
// 1-based manifest positions, kept in manifest order regardless of the
// order requested. Dropped slides are removed from the manifest, the
// presentation relationships, the content-type registry and the part store.
// Masters, layouts, themes and media stay in place so every kept slide
// still resolves.
func ExtractSlides(src *Container, keep []int) (*Container, error) {
	out, err := src.Clone()
	if err != nil {
		return nil, err
	}
	paths, err := out.SlidePaths()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("presentation has no slides")
	}
	keepSet := make(map[int]bool, len(keep))
	for _, pos := range keep {
		if pos < 1 || pos > len(paths) {
			return nil, fmt.Errorf("slide position %d out of range 1..%d", pos, len(paths))
		}
		keepSet[pos] = true
	}
	if len(keepSet) == 0 {
		return nil, fmt.Errorf("no slides selected")
	}

	var dropped []string
	for i, p := range paths {
		if !keepSet[i+1] {
			dropped = append(dropped, p)
		}
	}
	if len(dropped) == 0 {
		return out, nil
	}

	if err := dropManifestEntries(out, dropped); err != nil {
		return nil, err
	}
	dropContentTypeOverrides(out, dropped)
	for _, p := range dropped {
		out.Remove(p)
		out.Remove(relsPathFor(p))
	}
	if err := rewriteAppMetadata(out); err != nil {
		return nil, err
	}
	return out, nil
}

// SplitFile extracts the given 1-based slide positions of srcPath into a
// new presentation file at dest.
func SplitFile(srcPath string, keep []int, dest string) (*Container, error) {
	src, err := OpenFile(srcPath)
	if err != nil {
		return nil, err
	}
	out, err := ExtractSlides(src, keep)
	if err != nil {
		return nil, err
	}
	if err := out.SaveFile(dest); err != nil {
		return nil, err
	}
	return out, nil
}

// dropManifestEntries removes the manifest and presentation-relationship
// entries pointing at the dropped slide parts.
func dropManifestEntries(c *Container, dropped []string) error {
	droppedSet := make(map[string]bool, len(dropped))
	for _, p := range dropped {
		droppedSet[p] = true
	}

	relsDoc, err := c.Doc(presentationRels)
	if err != nil {
		return err
	}
	droppedIDs := make(map[string]bool)
	for _, rel := range descendants(relsDoc, "Relationship") {
		target := resolveTarget("ppt", attrVal(rel, "Target"))
		if droppedSet[target] {
			droppedIDs[attrVal(rel, "Id")] = true
			removeNode(rel)
		}
	}
	c.MarkDirty(presentationRels)

	presDoc, err := c.Doc(presentationPath)
	if err != nil {
		return err
	}
	root := rootElem(presDoc)
	if root == nil {
		return fmt.Errorf("%s: empty document", presentationPath)
	}
	if lst := childElem(root, "sldIdLst"); lst != nil {
		for _, sld := range childElems(lst, "sldId") {
			if droppedIDs[attrVal(sld, "r:id")] {
				removeNode(sld)
			}
		}
	}
	c.MarkDirty(presentationPath)
	return nil
}

// dropContentTypeOverrides removes the Override entries of the dropped
// parts from the content-type registry.
func dropContentTypeOverrides(c *Container, dropped []string) {
	doc, err := c.Doc(contentTypesPath)
	if err != nil {
		return
	}
	droppedSet := make(map[string]bool, len(dropped))
	for _, p := range dropped {
		droppedSet["/"+p] = true
	}
	removed := false
	for _, ov := range descendants(doc, "Override") {
		if droppedSet[attrVal(ov, "PartName")] {
			removeNode(ov)
			removed = true
		}
	}
	if removed {
		c.MarkDirty(contentTypesPath)
	}
}

// RenumberedSlides reports the kept slides' final 1-based positions keyed
// by their original positions, for callers that track slides across a
// split.
func RenumberedSlides(total int, keep []int) map[int]int {
	keepSet := make(map[int]bool, len(keep))
	for _, pos := range keep {
		keepSet[pos] = true
	}
	out := make(map[int]int)
	next := 1
	kept := make([]int, 0, len(keepSet))
	for pos := 1; pos <= total; pos++ {
		if keepSet[pos] {
			kept = append(kept, pos)
		}
	}
	sort.Ints(kept)
	for _, pos := range kept {
		out[pos] = next
		next++
	}
	return out
}
