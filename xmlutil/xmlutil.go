// Package xmlutil holds helpers around etree shared by the WPS server and
// its request codecs.
package xmlutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

var ErrInvalid = errors.New("invalid xml")

// EscapeText returns s ready to be written as an XML text node.
func EscapeText(s string) string {
	doc := NewDocument()
	doc.CreateText(s)
	out, _ := doc.WriteToString()
	return out
}

// ToString serializes an element and its children, indented with two
// spaces when indent is set.
func ToString(e *etree.Element, indent bool) string {
	doc := NewDocument()
	doc.SetRoot(e.Copy())
	if indent {
		doc.Indent(2)
	}
	out, _ := doc.WriteToString()
	return out
}

// NewDocument returns a document escaping like libxml does, quotes in text
// are left alone.
func NewDocument() *etree.Document {
	doc := etree.NewDocument()
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	return doc
}

// Parse reads a document and returns its root element.
func Parse(s string) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("no root element: %w", ErrInvalid)
	}
	return root, nil
}

// NewElement creates a detached element with text content.
func NewElement(tag, text string) *etree.Element {
	e := etree.NewElement(tag)
	if text != "" {
		e.SetText(text)
	}
	return e
}

// Text returns trimmed character data of an element.
func Text(e *etree.Element) string {
	return strings.TrimSpace(e.Text())
}

// ChildElements returns element children with the given local name.
func ChildElements(e *etree.Element, tag string) []*etree.Element {
	var out []*etree.Element
	for _, c := range e.ChildElements() {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

// Path returns the location of an element from the document root, used in
// error messages.
func Path(e *etree.Element) string {
	var parts []string
	for ; e != nil && e.Tag != ""; e = e.Parent() {
		parts = append(parts, e.Tag)
	}
	var sb strings.Builder
	for i := len(parts) - 1; i >= 0; i-- {
		sb.WriteByte('/')
		sb.WriteString(parts[i])
	}
	return sb.String()
}
