package xmlutil

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEscapeText(t *testing.T) {
	cases := map[string]string{
		"plain":        "plain",
		"a<b & 'c'":    "a&lt;b &amp; 'c'",
		`"quoted" > x`: `"quoted" &gt; x`,
	}
	for in, want := range cases {
		if got := EscapeText(in); got != want {
			t.Errorf("EscapeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToString(t *testing.T) {
	root, err := Parse(`<a x="1"><b>t</b><c/></a>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got, want := ToString(root, false), `<a x="1"><b>t</b><c/></a>`; got != want {
		t.Errorf("ToString = %q, want %q", got, want)
	}
	if got, want := ToString(root, true), "<a x=\"1\">\n  <b>t</b>\n  <c/>\n</a>\n"; got != want {
		t.Errorf("ToString indented = %q, want %q", got, want)
	}
	// the original tree is left alone
	if root.Parent() == nil || root.Parent().Tag != "" {
		t.Error("ToString detached the source element")
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "<a>", "not xml at all", "<a></b>"} {
		if _, err := Parse(in); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", in, err)
		}
	}
}

func TestPath(t *testing.T) {
	root, err := Parse(`<r><s><t/></s></r>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	leaf := root.SelectElement("s").SelectElement("t")
	if got := Path(leaf); got != "/r/s/t" {
		t.Errorf("Path = %q", got)
	}
	if got := len(ChildElements(root, "s")); got != 1 {
		t.Errorf("ChildElements = %d", got)
	}
}

const testSchema = `
<xs:complexType name="Option">
  <xs:sequence>
    <xs:element name="int_value" minOccurs="0">
      <xs:complexType>
        <xs:attribute name="value" type="xs:int" use="required"/>
      </xs:complexType>
    </xs:element>
  </xs:sequence>
  <xs:attribute name="name" type="xs:string" use="required"/>
</xs:complexType>
<xs:element name="options">
  <xs:complexType>
    <xs:sequence>
      <xs:element name="option" type="Option" minOccurs="0" maxOccurs="unbounded"/>
    </xs:sequence>
  </xs:complexType>
</xs:element>
<xs:element name="request">
  <xs:complexType>
    <xs:sequence>
      <xs:element name="origin" type="xs:long"/>
      <xs:element name="criterion" type="xs:int" maxOccurs="2"/>
      <xs:element name="date" type="xs:dateTime" minOccurs="0"/>
      <xs:element name="flag" type="xs:boolean" minOccurs="0"/>
    </xs:sequence>
    <xs:attribute name="weight" type="xs:double"/>
  </xs:complexType>
</xs:element>
<xs:element name="state" type="xs:int"/>
<xs:element name="steps">
  <xs:complexType>
    <xs:sequence>
      <xs:choice minOccurs="1" maxOccurs="unbounded">
        <xs:element name="walk" type="xs:double"/>
        <xs:element name="ride" type="xs:double"/>
      </xs:choice>
      <xs:element name="total" type="xs:double"/>
    </xs:sequence>
  </xs:complexType>
</xs:element>
`

func TestSchema(t *testing.T) {
	s, err := ParseSchema(testSchema)
	if err != nil {
		t.Fatalf("ParseSchema: %v", err)
	}

	cases := []struct {
		doc   string
		valid bool
		path  string
	}{
		{doc: `<state>3</state>`, valid: true},
		{doc: `<state>three</state>`, path: "/state"},
		{doc: `<options/>`, valid: true},
		{doc: `<options><option name="a"><int_value value="4"/></option><option name="b"/></options>`, valid: true},
		{doc: `<options><option><int_value value="4"/></option></options>`, path: "/options/option"},
		{doc: `<options><option name="a"><int_value value="x"/></option></options>`, path: "/options/option/int_value"},
		{doc: `<options><option name="a" extra="1"/></options>`, path: "/options/option"},
		{doc: `<options><other/></options>`, path: "/options"},
		{doc: `<request weight="0.5"><origin>1</origin><criterion>1</criterion><criterion>2</criterion><date>2024-05-04T07:00:00</date><flag>true</flag></request>`, valid: true},
		{doc: `<request><origin>1</origin></request>`, path: "/request"},
		{doc: `<request><origin>1</origin><criterion>1</criterion><criterion>2</criterion><criterion>3</criterion></request>`, path: "/request"},
		{doc: `<request><criterion>1</criterion><origin>1</origin></request>`, path: "/request"},
		{doc: `<request weight="heavy"><origin>1</origin><criterion>1</criterion></request>`, path: "/request"},
		{doc: `<request><origin>1</origin><criterion>1</criterion><date>yesterday</date></request>`, path: "/request/date"},
		{doc: `<unknown/>`, path: "/unknown"},
		{doc: `<steps><walk>1</walk><ride>2.5</ride><walk>3</walk><total>6.5</total></steps>`, valid: true},
		{doc: `<steps><total>0</total></steps>`, path: "/steps"},
		{doc: `<steps><walk>1</walk><run>2</run><total>3</total></steps>`, path: "/steps"},
		{doc: `<steps><walk>x</walk><total>3</total></steps>`, path: "/steps/walk"},
	}
	for _, c := range cases {
		root, err := Parse(c.doc)
		if err != nil {
			t.Fatalf("Parse(%s): %v", c.doc, err)
		}
		err = s.EnsureValidity(root)
		if c.valid {
			if err != nil {
				t.Errorf("%s: unexpected error %v", c.doc, err)
			}
			continue
		}
		if !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: error = %v, want ErrInvalid", c.doc, err)
			continue
		}
		if !strings.HasPrefix(err.Error(), c.path+":") {
			t.Errorf("%s: error %q does not point at %s", c.doc, err, c.path)
		}
	}
}

func TestSchemaElement(t *testing.T) {
	s := MustParseSchema(`<xs:element name="state" type="xs:int"/>`)
	e := s.Element()
	if e.Tag != "schema" || len(e.ChildElements()) != 1 {
		t.Fatalf("Element() = %s", ToString(e, false))
	}
	// callers get their own copy
	e.RemoveChildAt(0)
	if len(s.Element().ChildElements()) != 1 {
		t.Error("Element() shares the schema tree")
	}
}

func TestParseSchemaErrors(t *testing.T) {
	bad := []string{
		`<xs:element name="a" type="Missing"/>`,
		`<xs:element type="xs:int"/>`,
		`<xs:element name="a" maxOccurs="many"/>`,
		`<xs:simpleType name="x"/>`,
		`<xs:complexType><xs:sequence/></xs:complexType>`,
		`<xs:element name="a"><xs:complexType><xs:all/></xs:complexType></xs:element>`,
		`<xs:element name="a"><xs:complexType><xs:sequence><xs:choice/></xs:sequence></xs:complexType></xs:element>`,
	}
	for _, src := range bad {
		if _, err := ParseSchema(src); !errors.Is(err, ErrInvalid) {
			t.Errorf("ParseSchema(%s) error = %v, want ErrInvalid", src, err)
		}
	}
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2024-05-04T07:30:00")
	if err != nil {
		t.Fatalf("ParseDateTime: %v", err)
	}
	if want := time.Date(2024, 5, 4, 7, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
	if _, err := ParseDateTime("2024-05-04T07:30:00+02:00"); err != nil {
		t.Errorf("zoned: %v", err)
	}
	if _, err := ParseDateTime("07:30"); err == nil {
		t.Error("expected error")
	}
}
