package pptx

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestExtractSlides(t *testing.T) {
	src := buildDeck(t, deckSpec{slideBodies: []string{"one", "two", "three", "four"}})

	out, err := ExtractSlides(src, []int{4, 2})
	if err != nil {
		t.Fatalf("ExtractSlides: %v", err)
	}
	if got := out.SlideCount(); got != 2 {
		t.Fatalf("SlideCount = %d, want 2", got)
	}

	paths, err := out.SlidePaths()
	if err != nil {
		t.Fatalf("SlidePaths: %v", err)
	}
	// manifest order wins over the requested order
	if paths[0] != "ppt/slides/slide2.xml" || paths[1] != "ppt/slides/slide4.xml" {
		t.Errorf("SlidePaths = %v, want slide2 then slide4", paths)
	}

	for _, gone := range []string{
		"ppt/slides/slide1.xml",
		"ppt/slides/slide3.xml",
		"ppt/slides/_rels/slide1.xml.rels",
	} {
		if out.Has(gone) {
			t.Errorf("dropped part %s still present", gone)
		}
	}

	ct, _ := out.Raw(contentTypesPath)
	if bytes.Contains(ct, []byte("/ppt/slides/slide1.xml")) {
		t.Error("content types still list a dropped slide")
	}
	if !bytes.Contains(ct, []byte("/ppt/slides/slide2.xml")) {
		t.Error("content types lost a kept slide")
	}

	app, _ := out.Raw(appPropsPath)
	if !bytes.Contains(app, []byte("<Slides>2</Slides>")) {
		t.Errorf("app props slide count not updated:\n%s", app)
	}

	// the source is untouched
	if got := src.SlideCount(); got != 4 {
		t.Errorf("source SlideCount = %d, want 4", got)
	}
}

func TestExtractSlidesValidation(t *testing.T) {
	src := buildDeck(t, deckSpec{slideBodies: []string{"one", "two"}})
	if _, err := ExtractSlides(src, []int{3}); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("position 3 error = %v, want out of range", err)
	}
	if _, err := ExtractSlides(src, []int{0}); err == nil {
		t.Error("position 0 accepted")
	}
	if _, err := ExtractSlides(src, nil); err == nil {
		t.Error("empty selection accepted")
	}
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.pptx")
	dstPath := filepath.Join(dir, "dst.pptx")

	src := buildDeck(t, deckSpec{slideBodies: []string{"one", "two", "three"}})
	if err := src.SaveFile(srcPath); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := SplitFile(srcPath, []int{1, 3}, dstPath); err != nil {
		t.Fatalf("SplitFile: %v", err)
	}
	out, err := OpenFile(dstPath)
	if err != nil {
		t.Fatalf("open split: %v", err)
	}
	if got := out.SlideCount(); got != 2 {
		t.Errorf("SlideCount = %d, want 2", got)
	}
}

func TestRenumberedSlides(t *testing.T) {
	got := RenumberedSlides(5, []int{4, 2, 5})
	want := map[int]int{2: 1, 4: 2, 5: 3}
	if len(got) != len(want) {
		t.Fatalf("RenumberedSlides = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("RenumberedSlides[%d] = %d, want %d", k, got[k], v)
		}
	}
}
