package pptx

import (
	"path"
	"strings"
	"testing"
)

// checkPackageConsistency asserts the structural invariants every produced
// package must hold: each relationship target resolves to a real part, each
// content-type override names a real part, and each manifest entry resolves
// through the presentation relationships.
func checkPackageConsistency(t *testing.T, c *Container) {
	t.Helper()

	for _, name := range c.Names() {
		if !strings.HasSuffix(name, ".rels") {
			continue
		}
		baseDir := path.Dir(path.Dir(name))
		targets, err := c.relTargets(name)
		if err != nil {
			t.Fatalf("relTargets %s: %v", name, err)
		}
		for rid, target := range targets {
			if strings.Contains(target, "://") {
				continue // external targets are opaque
			}
			resolved := resolveTarget(baseDir, target)
			if !c.Has(resolved) {
				t.Errorf("%s: %s -> %s resolves to missing part %s", name, rid, target, resolved)
			}
		}
	}

	ctDoc := mustDoc(t, c, contentTypesPath)
	for _, ov := range descendants(ctDoc, "Override") {
		part := strings.TrimPrefix(attrVal(ov, "PartName"), "/")
		if !c.Has(part) {
			t.Errorf("content-type override names missing part %s", part)
		}
	}

	presDoc := mustDoc(t, c, presentationPath)
	targets, err := c.relTargets(presentationRels)
	if err != nil {
		t.Fatalf("relTargets presentation: %v", err)
	}
	for _, tag := range []string{"sldId", "sldMasterId"} {
		for _, el := range descendants(presDoc, tag) {
			rid := attrVal(el, "r:id")
			target, ok := targets[rid]
			if !ok {
				t.Errorf("manifest %s references unknown relationship %s", tag, rid)
				continue
			}
			if !c.Has(resolveTarget("ppt", target)) {
				t.Errorf("manifest %s -> %s points at missing part", tag, target)
			}
		}
	}
}

func TestMergedPackageStaysConsistent(t *testing.T) {
	a := buildDeck(t, deckSpec{
		slideBodies: []string{"a1", "a2"},
		media:       map[string][]byte{"image1.png": []byte("aaaa")},
	})
	b := buildDeck(t, deckSpec{
		slideBodies: []string{"b1", "b2", "b3"},
		media:       map[string][]byte{"image1.png": []byte("bbbb")},
	})
	c := buildDeck(t, deckSpec{slideBodies: []string{"c1"}})

	merged, err := Merge([]*Container{a, b, c})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	checkPackageConsistency(t, merged)
}

func TestExtractedPackageStaysConsistent(t *testing.T) {
	src := buildDeck(t, deckSpec{slideBodies: []string{"one", "two", "three", "four", "five"}})
	out, err := ExtractSlides(src, []int{1, 3, 5})
	if err != nil {
		t.Fatalf("ExtractSlides: %v", err)
	}
	checkPackageConsistency(t, out)
}

func TestMergeOfMergesStaysConsistent(t *testing.T) {
	a := buildDeck(t, deckSpec{slideBodies: []string{"a1"}})
	b := buildDeck(t, deckSpec{slideBodies: []string{"b1"}})
	first, err := Merge([]*Container{a, b})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	c := buildDeck(t, deckSpec{slideBodies: []string{"c1", "c2"}})
	second, err := Merge([]*Container{first, c})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if got := second.SlideCount(); got != 4 {
		t.Errorf("SlideCount = %d, want 4", got)
	}
	checkPackageConsistency(t, second)
}
