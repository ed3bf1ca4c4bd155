package pptx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// xmlDeclaration is the prolog written in front of every serialized XML part.
// PowerPoint rejects single-quoted prologs, so it is emitted verbatim rather
// than rebuilt from the parsed declaration node.
const xmlDeclaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\r\n"

// parseXML parses a raw XML part into a document node.
func parseXML(data []byte) (*xmlquery.Node, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// serializeXML renders a parsed document back to bytes with a double-quoted
// XML declaration.
func serializeXML(doc *xmlquery.Node) []byte {
	var buf bytes.Buffer
	buf.WriteString(xmlDeclaration)
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.DeclarationNode {
			continue
		}
		buf.WriteString(child.OutputXML(true))
	}
	return buf.Bytes()
}

// rootElem returns the document's root element.
func rootElem(doc *xmlquery.Node) *xmlquery.Node {
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return child
		}
	}
	return nil
}

// childElem returns the first direct child element with the given local name,
// ignoring the namespace prefix.
func childElem(n *xmlquery.Node, local string) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == local {
			return child
		}
	}
	return nil
}

// childElems returns all direct child elements with the given local name.
func childElems(n *xmlquery.Node, local string) []*xmlquery.Node {
	var out []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == local {
			out = append(out, child)
		}
	}
	return out
}

// descendants collects every descendant element with the given local name in
// document order.
func descendants(n *xmlquery.Node, local string) []*xmlquery.Node {
	var out []*xmlquery.Node
	var walk func(*xmlquery.Node)
	walk = func(cur *xmlquery.Node) {
		for child := cur.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == xmlquery.ElementNode && child.Data == local {
				out = append(out, child)
			}
			walk(child)
		}
	}
	walk(n)
	return out
}

// firstDescendant returns the first descendant element with the given local
// name, or nil.
func firstDescendant(n *xmlquery.Node, local string) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode && child.Data == local {
			return child
		}
		if found := firstDescendant(child, local); found != nil {
			return found
		}
	}
	return nil
}

// splitQName splits "r:id" into its prefix and local part.
func splitQName(name string) (space, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

// attrVal returns the value of the named attribute. The name may carry a
// prefix ("r:id"); an unprefixed name matches only unprefixed attributes.
func attrVal(n *xmlquery.Node, name string) string {
	space, local := splitQName(name)
	for _, a := range n.Attr {
		if a.Name.Local == local && a.Name.Space == space {
			return a.Value
		}
	}
	return ""
}

// setAttrVal updates the named attribute in place, appending it when absent.
func setAttrVal(n *xmlquery.Node, name, value string) {
	space, local := splitQName(name)
	for i := range n.Attr {
		if n.Attr[i].Name.Local == local && n.Attr[i].Name.Space == space {
			n.Attr[i].Value = value
			return
		}
	}
	n.Attr = append(n.Attr, xmlquery.Attr{
		Name:  xml.Name{Space: space, Local: local},
		Value: value,
	})
}

// newElem creates a detached element node.
func newElem(prefix, local string) *xmlquery.Node {
	return &xmlquery.Node{
		Type:   xmlquery.ElementNode,
		Data:   local,
		Prefix: prefix,
	}
}

// appendChild attaches child as the last child of parent.
func appendChild(parent, child *xmlquery.Node) {
	xmlquery.AddChild(parent, child)
}

// removeNode detaches a node from its tree.
func removeNode(n *xmlquery.Node) {
	xmlquery.RemoveFromTree(n)
}

// cloneNode makes a deep, detached copy of a node and its subtree.
func cloneNode(n *xmlquery.Node) *xmlquery.Node {
	clone := &xmlquery.Node{
		Type:         n.Type,
		Data:         n.Data,
		Prefix:       n.Prefix,
		NamespaceURI: n.NamespaceURI,
	}
	if len(n.Attr) > 0 {
		clone.Attr = make([]xmlquery.Attr, len(n.Attr))
		copy(clone.Attr, n.Attr)
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		appendChild(clone, cloneNode(child))
	}
	return clone
}

// elemText returns the concatenated text content of an element.
func elemText(n *xmlquery.Node) string {
	return n.InnerText()
}

// setElemText replaces an element's children with a single text node. An
// empty string leaves the element with no children.
func setElemText(n *xmlquery.Node, text string) {
	for n.FirstChild != nil {
		removeNode(n.FirstChild)
	}
	if text == "" {
		return
	}
	appendChild(n, &xmlquery.Node{Type: xmlquery.TextNode, Data: text})
}
