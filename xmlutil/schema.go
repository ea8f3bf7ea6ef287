package xmlutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Schema validates documents against a subset of XML Schema: global
// xs:element and named xs:complexType declarations, xs:sequence of
// elements and xs:choice groups with minOccurs and maxOccurs, xs:attribute
// with optional use="required", inline anonymous complex types and builtin
// simple types int, long, float, double, boolean, string and dateTime.
type Schema struct {
	root     *etree.Element
	elements map[string]*elementDecl
	types    map[string]*complexType
}

type elementDecl struct {
	name     string
	typ      string
	inline   *complexType
	min, max int // max < 0 is unbounded
}

type attributeDecl struct {
	name     string
	typ      string
	required bool
}

// particle is a sequence item, either a single element or a choice between
// several.
type particle struct {
	element  *elementDecl
	choice   []*elementDecl
	min, max int
}

func (p *particle) match(tag string) *elementDecl {
	if p.element != nil {
		if p.element.name == tag {
			return p.element
		}
		return nil
	}
	for _, d := range p.choice {
		if d.name == tag {
			return d
		}
	}
	return nil
}

func (p *particle) String() string {
	if p.element != nil {
		return fmt.Sprintf("%q", p.element.name)
	}
	names := make([]string, len(p.choice))
	for i, d := range p.choice {
		names[i] = d.name
	}
	return fmt.Sprintf("one of %q", names)
}

type complexType struct {
	name       string
	sequence   []*particle
	attributes []attributeDecl
}

const unbounded = -1

// dateTime layouts accepted, time zone is optional.
var dateTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"}

// ParseSchema reads declarations either wrapped in xs:schema or given as a
// bare list of top level declarations.
func ParseSchema(src string) (*Schema, error) {
	if !strings.Contains(src, "<xs:schema") {
		src = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">` + src + `</xs:schema>`
	}
	root, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	if root.Tag != "schema" {
		return nil, fmt.Errorf("schema: unexpected root %q: %w", root.Tag, ErrInvalid)
	}

	s := &Schema{root: root, elements: make(map[string]*elementDecl), types: make(map[string]*complexType)}
	for _, c := range root.ChildElements() {
		switch c.Tag {
		case "element":
			d, err := parseElementDecl(c)
			if err != nil {
				return nil, err
			}
			s.elements[d.name] = d
		case "complexType":
			t, err := parseComplexType(c)
			if err != nil {
				return nil, err
			}
			if t.name == "" {
				return nil, fmt.Errorf("schema: top level complexType without name: %w", ErrInvalid)
			}
			s.types[t.name] = t
		default:
			return nil, fmt.Errorf("schema: unsupported declaration %q: %w", c.Tag, ErrInvalid)
		}
	}
	return s, s.resolve()
}

// MustParseSchema is ParseSchema for declarations known at compile time.
func MustParseSchema(src string) *Schema {
	s, err := ParseSchema(src)
	if err != nil {
		panic(err)
	}
	return s
}

func parseOccurs(e *etree.Element, key string) (int, error) {
	v := e.SelectAttrValue(key, "1")
	if v == "unbounded" {
		return unbounded, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("schema: %s %s=%q: %w", Path(e), key, v, ErrInvalid)
	}
	return n, nil
}

func parseElementDecl(e *etree.Element) (*elementDecl, error) {
	d := &elementDecl{name: e.SelectAttrValue("name", ""), typ: e.SelectAttrValue("type", "")}
	if d.name == "" {
		return nil, fmt.Errorf("schema: element without name: %w", ErrInvalid)
	}
	var err error
	if d.min, err = parseOccurs(e, "minOccurs"); err != nil {
		return nil, err
	}
	if d.max, err = parseOccurs(e, "maxOccurs"); err != nil {
		return nil, err
	}
	if ct := e.SelectElement("complexType"); ct != nil {
		if d.inline, err = parseComplexType(ct); err != nil {
			return nil, err
		}
	}
	if d.typ == "" && d.inline == nil {
		d.typ = "xs:string"
	}
	return d, nil
}

func parseComplexType(e *etree.Element) (*complexType, error) {
	t := &complexType{name: e.SelectAttrValue("name", "")}
	for _, c := range e.ChildElements() {
		switch c.Tag {
		case "sequence":
			for _, el := range c.ChildElements() {
				var (
					p   *particle
					err error
				)
				switch el.Tag {
				case "element":
					p, err = parseElementParticle(el)
				case "choice":
					p, err = parseChoice(el)
				default:
					err = fmt.Errorf("schema: unsupported %q in sequence: %w", el.Tag, ErrInvalid)
				}
				if err != nil {
					return nil, err
				}
				t.sequence = append(t.sequence, p)
			}
		case "attribute":
			a := attributeDecl{
				name:     c.SelectAttrValue("name", ""),
				typ:      c.SelectAttrValue("type", "xs:string"),
				required: c.SelectAttrValue("use", "optional") == "required",
			}
			if a.name == "" {
				return nil, fmt.Errorf("schema: attribute without name: %w", ErrInvalid)
			}
			t.attributes = append(t.attributes, a)
		default:
			return nil, fmt.Errorf("schema: unsupported %q in complexType: %w", c.Tag, ErrInvalid)
		}
	}
	return t, nil
}

func parseElementParticle(e *etree.Element) (*particle, error) {
	d, err := parseElementDecl(e)
	if err != nil {
		return nil, err
	}
	return &particle{element: d, min: d.min, max: d.max}, nil
}

// parseChoice reads a choice group, occurrences of its alternatives are
// ignored, the group ones apply.
func parseChoice(e *etree.Element) (*particle, error) {
	p := &particle{}
	var err error
	if p.min, err = parseOccurs(e, "minOccurs"); err != nil {
		return nil, err
	}
	if p.max, err = parseOccurs(e, "maxOccurs"); err != nil {
		return nil, err
	}
	for _, c := range e.ChildElements() {
		if c.Tag != "element" {
			return nil, fmt.Errorf("schema: unsupported %q in choice: %w", c.Tag, ErrInvalid)
		}
		d, err := parseElementDecl(c)
		if err != nil {
			return nil, err
		}
		p.choice = append(p.choice, d)
	}
	if len(p.choice) == 0 {
		return nil, fmt.Errorf("schema: empty choice: %w", ErrInvalid)
	}
	return p, nil
}

// Element returns a copy of the xs:schema element the schema was read
// from.
func (s *Schema) Element() *etree.Element {
	return s.root.Copy()
}

// resolve checks every referenced type exists.
func (s *Schema) resolve() error {
	var check func(d *elementDecl) error
	checkType := func(t *complexType) error {
		for _, p := range t.sequence {
			decls := p.choice
			if p.element != nil {
				decls = []*elementDecl{p.element}
			}
			for _, d := range decls {
				if err := check(d); err != nil {
					return err
				}
			}
		}
		for _, a := range t.attributes {
			if !isSimple(a.typ) {
				return fmt.Errorf("schema: attribute %q: unknown type %q: %w", a.name, a.typ, ErrInvalid)
			}
		}
		return nil
	}
	check = func(d *elementDecl) error {
		if d.inline != nil {
			return checkType(d.inline)
		}
		if _, ok := s.types[d.typ]; !ok && !isSimple(d.typ) {
			return fmt.Errorf("schema: element %q: unknown type %q: %w", d.name, d.typ, ErrInvalid)
		}
		return nil
	}
	for _, t := range s.types {
		if err := checkType(t); err != nil {
			return err
		}
	}
	for _, d := range s.elements {
		if err := check(d); err != nil {
			return err
		}
	}
	return nil
}

func isSimple(typ string) bool {
	switch typ {
	case "xs:int", "xs:long", "xs:float", "xs:double", "xs:boolean", "xs:string", "xs:dateTime":
		return true
	}
	return false
}

func checkSimple(typ, v string) error {
	var err error
	switch typ {
	case "xs:int":
		_, err = strconv.ParseInt(v, 10, 32)
	case "xs:long":
		_, err = strconv.ParseInt(v, 10, 64)
	case "xs:float":
		_, err = strconv.ParseFloat(v, 32)
	case "xs:double":
		_, err = strconv.ParseFloat(v, 64)
	case "xs:boolean":
		switch v {
		case "true", "false", "1", "0":
		default:
			err = fmt.Errorf("not a boolean")
		}
	case "xs:dateTime":
		_, err = ParseDateTime(v)
	}
	return err
}

// ParseDateTime reads an xs:dateTime value, values without time zone are
// in UTC.
func ParseDateTime(v string) (time.Time, error) {
	var err error
	for _, layout := range dateTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// EnsureValidity checks e against the global element declaration of the
// same name.
func (s *Schema) EnsureValidity(e *etree.Element) error {
	d, ok := s.elements[e.Tag]
	if !ok {
		return fmt.Errorf("%s: undeclared element: %w", Path(e), ErrInvalid)
	}
	return s.validate(e, d)
}

func (s *Schema) validate(e *etree.Element, d *elementDecl) error {
	t := d.inline
	if t == nil {
		t = s.types[d.typ]
	}
	if t == nil {
		if len(e.ChildElements()) > 0 {
			return fmt.Errorf("%s: unexpected child elements in %s: %w", Path(e), d.typ, ErrInvalid)
		}
		if err := checkSimple(d.typ, Text(e)); err != nil {
			return fmt.Errorf("%s: bad %s value %q: %w", Path(e), d.typ, Text(e), ErrInvalid)
		}
		return nil
	}

	declared := make(map[string]bool, len(t.attributes))
	for _, a := range t.attributes {
		declared[a.name] = true
		attr := e.SelectAttr(a.name)
		if attr == nil {
			if a.required {
				return fmt.Errorf("%s: missing attribute %q: %w", Path(e), a.name, ErrInvalid)
			}
			continue
		}
		if err := checkSimple(a.typ, attr.Value); err != nil {
			return fmt.Errorf("%s: attribute %q: bad %s value %q: %w", Path(e), a.name, a.typ, attr.Value, ErrInvalid)
		}
	}
	for _, attr := range e.Attr {
		if attr.Space == "xmlns" || attr.Key == "xmlns" || declared[attr.Key] {
			continue
		}
		return fmt.Errorf("%s: undeclared attribute %q: %w", Path(e), attr.Key, ErrInvalid)
	}
	if Text(e) != "" {
		return fmt.Errorf("%s: unexpected text in complex element: %w", Path(e), ErrInvalid)
	}

	children := e.ChildElements()
	i := 0
	for _, p := range t.sequence {
		n := 0
		for i < len(children) && (p.max < 0 || n < p.max) {
			cd := p.match(children[i].Tag)
			if cd == nil {
				break
			}
			if err := s.validate(children[i], cd); err != nil {
				return err
			}
			i++
			n++
		}
		if n < p.min {
			return fmt.Errorf("%s: expected at least %d of %s, found %d: %w", Path(e), p.min, p, n, ErrInvalid)
		}
	}
	if i < len(children) {
		return fmt.Errorf("%s: unexpected element %q: %w", Path(e), children[i].Tag, ErrInvalid)
	}
	return nil
}
