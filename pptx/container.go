package pptx

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Well-known part paths inside a presentation package.
const (
	contentTypesPath = "[Content_Types].xml"
	presentationPath = "ppt/presentation.xml"
	presentationRels = "ppt/_rels/presentation.xml.rels"
	appPropsPath     = "docProps/app.xml"
	mediaDir         = "ppt/media"
)

// ErrNotPresentation is returned when an archive lacks the presentation
// manifest part.
var ErrNotPresentation = errors.New("archive is not a presentation package")

// Part is a single named entry of a container: raw bytes plus a lazily
// parsed XML document for .xml/.rels parts.
type Part struct {
	raw   []byte
	doc   *xmlquery.Node
	dirty bool
}

// Container is a fully in-memory presentation package: part path to content.
// All merge and injection operations work on this model; archive I/O only
// happens in OpenFile/OpenReader and Save.
type Container struct {
	parts map[string]*Part
}

// NewContainer returns an empty container. Used by tests that assemble
// packages part by part.
func NewContainer() *Container {
	return &Container{parts: make(map[string]*Part)}
}

// OpenFile unpacks the zip archive at the given path into a container.
func OpenFile(filePath string) (*Container, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filePath, err)
	}
	defer zr.Close()
	c, err := readArchive(&zr.Reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	return c, nil
}

// OpenReader unpacks a zip archive from an in-memory reader.
func OpenReader(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return readArchive(zr)
}

func readArchive(zr *zip.Reader) (*Container, error) {
	c := NewContainer()
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
		}
		c.parts[path.Clean(f.Name)] = &Part{raw: data}
	}
	if !c.Has(presentationPath) {
		return nil, ErrNotPresentation
	}
	return c, nil
}

// SaveFile repacks the container into a zip archive at the given path,
// creating parent directories as needed.
func (c *Container) SaveFile(filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()
	if err := c.Save(f); err != nil {
		return err
	}
	return f.Close()
}

// Save writes the container as a zip archive. Parts are written in sorted
// path order so output is deterministic.
func (c *Container) Save(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range c.Names() {
		entry, err := zw.Create(name)
		if err != nil {
			zw.Close()
			return fmt.Errorf("create zip entry %s: %w", name, err)
		}
		data, err := c.Raw(name)
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := entry.Write(data); err != nil {
			zw.Close()
			return fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}
	// Close flushes the central directory; its error matters.
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

// Names returns all part paths in sorted order.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.parts))
	for name := range c.parts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a part exists.
func (c *Container) Has(name string) bool {
	_, ok := c.parts[name]
	return ok
}

// Raw returns the current bytes of a part, serializing a dirty parsed
// document first.
func (c *Container) Raw(name string) ([]byte, error) {
	p, ok := c.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s: not found", name)
	}
	if p.dirty && p.doc != nil {
		p.raw = serializeXML(p.doc)
		p.dirty = false
	}
	return p.raw, nil
}

// SetRaw replaces a part's bytes, creating the part if absent. Any cached
// parse is discarded.
func (c *Container) SetRaw(name string, data []byte) {
	c.parts[path.Clean(name)] = &Part{raw: data}
}

// Remove deletes a part. Removing an absent part is a no-op.
func (c *Container) Remove(name string) {
	delete(c.parts, name)
}

// Doc returns the parsed XML document of a part, caching the parse. Callers
// that mutate the tree must follow with MarkDirty.
func (c *Container) Doc(name string) (*xmlquery.Node, error) {
	p, ok := c.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s: not found", name)
	}
	if p.doc == nil {
		doc, err := parseXML(p.raw)
		if err != nil {
			return nil, fmt.Errorf("part %s: %w", name, err)
		}
		p.doc = doc
	}
	return p.doc, nil
}

// MarkDirty flags a part's parsed document as modified so the next Raw or
// Save serializes it.
func (c *Container) MarkDirty(name string) {
	if p, ok := c.parts[name]; ok && p.doc != nil {
		p.dirty = true
	}
}

// Clone returns an independent deep copy of the container.
func (c *Container) Clone() (*Container, error) {
	out := NewContainer()
	for name := range c.parts {
		data, err := c.Raw(name)
		if err != nil {
			return nil, err
		}
		cp := make([]byte, len(data))
		copy(cp, data)
		out.parts[name] = &Part{raw: cp}
	}
	return out, nil
}

// SlidePaths returns the container's slide part paths in manifest display
// order.
func (c *Container) SlidePaths() ([]string, error) {
	doc, err := c.Doc(presentationPath)
	if err != nil {
		return nil, err
	}
	root := rootElem(doc)
	if root == nil {
		return nil, fmt.Errorf("%s: empty document", presentationPath)
	}
	targets, err := c.relTargets(presentationRels)
	if err != nil {
		return nil, err
	}
	var paths []string
	if lst := childElem(root, "sldIdLst"); lst != nil {
		for _, sld := range childElems(lst, "sldId") {
			rid := attrVal(sld, "r:id")
			target, ok := targets[rid]
			if !ok {
				return nil, fmt.Errorf("manifest slide %s: missing relationship", rid)
			}
			paths = append(paths, resolveTarget("ppt", target))
		}
	}
	return paths, nil
}

// SlideCount returns the number of displayed slides in the manifest.
func (c *Container) SlideCount() int {
	paths, err := c.SlidePaths()
	if err != nil {
		return 0
	}
	return len(paths)
}

// relTargets reads a relationship file into an id → target map. A missing
// relationship file yields an empty map, not an error.
func (c *Container) relTargets(relsName string) (map[string]string, error) {
	targets := make(map[string]string)
	if !c.Has(relsName) {
		return targets, nil
	}
	doc, err := c.Doc(relsName)
	if err != nil {
		return nil, err
	}
	for _, rel := range descendants(doc, "Relationship") {
		targets[attrVal(rel, "Id")] = attrVal(rel, "Target")
	}
	return targets, nil
}

// relsPathFor returns the sibling relationship file path of a part:
// ppt/slides/slide3.xml → ppt/slides/_rels/slide3.xml.rels.
func relsPathFor(partPath string) string {
	dir, base := path.Split(partPath)
	return dir + "_rels/" + base + ".rels"
}

// resolveTarget resolves a relationship target against the directory of the
// part owning the relationship file.
func resolveTarget(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}
