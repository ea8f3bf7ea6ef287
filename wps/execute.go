package wps

import (
	"fmt"

	"github.com/beevik/etree"

	"tempus/xmlutil"
)

// ParseExecute reads an Execute request: identifier, data inputs and the
// response form. Input values are detached from the request tree.
func ParseExecute(root *etree.Element) (string, Values, error) {
	children := root.ChildElements()
	i := 0
	next := func(tag string) *etree.Element {
		if i < len(children) && children[i].Tag == tag {
			i++
			return children[i-1]
		}
		return nil
	}

	var id string
	if e := next("Identifier"); e != nil {
		id = xmlutil.Text(e)
	}
	if id == "" {
		return "", nil, fmt.Errorf("identifier undefined: %w", ErrInvalidParameter)
	}

	inputs := next("DataInputs")
	if inputs == nil {
		return "", nil, fmt.Errorf("DataInputs undefined: %w", ErrInvalidParameter)
	}
	in := make(Values)
	for _, input := range inputs.ChildElements() {
		if input.Tag != "Input" {
			return "", nil, fmt.Errorf("only Input elements are allowed inside DataInputs: %w", ErrInvalidParameter)
		}
		var name string
		if e := input.SelectElement("Identifier"); e != nil {
			name = xmlutil.Text(e)
		}
		if name == "" {
			return "", nil, fmt.Errorf("input identifier undefined: %w", ErrInvalidParameter)
		}
		if _, ok := in[name]; ok {
			return "", nil, fmt.Errorf("input %q given twice: %w", name, ErrInvalidParameter)
		}
		v, err := inputValue(name, input.SelectElement("Data"))
		if err != nil {
			return "", nil, err
		}
		in[name] = v
	}

	form := next("ResponseForm")
	if form == nil {
		return "", nil, fmt.Errorf("ResponseForm undefined: %w", ErrInvalidParameter)
	}
	if out := form.ChildElements(); len(out) > 0 && out[0].Tag != "RawDataOutput" {
		return "", nil, fmt.Errorf("only raw data output is supported: %w", ErrInvalidParameter)
	}
	return id, in, nil
}

// inputValue returns the element held by complex data, literal data is
// wrapped into an element named after the input.
func inputValue(name string, data *etree.Element) (*etree.Element, error) {
	if data == nil || len(data.ChildElements()) == 0 {
		return nil, fmt.Errorf("input %q: undefined data: %w", name, ErrInvalidParameter)
	}
	d := data.ChildElements()[0]
	switch d.Tag {
	case "ComplexData":
		kids := d.ChildElements()
		if len(kids) == 0 {
			return nil, fmt.Errorf("input %q: empty complex data: %w", name, ErrInvalidParameter)
		}
		return kids[0].Copy(), nil
	case "LiteralData":
		return xmlutil.NewElement(name, xmlutil.Text(d)), nil
	}
	return nil, fmt.Errorf("input %q: data must be either LiteralData or ComplexData: %w", name, ErrInvalidParameter)
}

// ExecuteRequest builds the document ParseExecute reads, inputs are sent
// as complex data.
func ExecuteRequest(id string, in Values) *etree.Document {
	doc := xmlutil.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("wps:Execute")
	root.CreateAttr("xmlns:wps", nsWPS)
	root.CreateAttr("xmlns:ows", nsOWS)
	root.CreateAttr("service", "WPS")
	root.CreateAttr("version", Version)
	root.CreateElement("ows:Identifier").SetText(id)

	inputs := root.CreateElement("DataInputs")
	for _, name := range sortedNames(in) {
		input := inputs.CreateElement("Input")
		input.CreateElement("ows:Identifier").SetText(name)
		cd := input.CreateElement("Data").CreateElement("ComplexData")
		cd.CreateAttr("mimeType", "text/xml")
		cd.CreateAttr("encoding", "UTF-8")
		cd.AddChild(in[name].Copy())
	}
	root.CreateElement("ResponseForm").CreateElement("RawDataOutput")
	doc.Indent(2)
	return doc
}

// ParseExecuteResponse extracts outputs from an ExecuteResponse, or the
// text of an ExceptionReport as an error.
func ParseExecuteResponse(root *etree.Element) (Values, error) {
	if root.Tag == "ExceptionReport" {
		ex := root.SelectElement("Exception")
		if ex == nil {
			return nil, fmt.Errorf("empty exception report: %w", ErrInvalidParameter)
		}
		var text string
		if t := ex.SelectElement("ExceptionText"); t != nil {
			text = xmlutil.Text(t)
		}
		return nil, &Exception{Code: ex.SelectAttrValue("exceptionCode", ""), Text: text}
	}
	if root.Tag != "ExecuteResponse" {
		return nil, fmt.Errorf("unexpected document %q: %w", root.Tag, xmlutil.ErrInvalid)
	}
	out := make(Values)
	if po := root.SelectElement("ProcessOutputs"); po != nil {
		for _, o := range po.SelectElements("Output") {
			id := o.SelectElement("Identifier")
			data := o.SelectElement("Data")
			if id == nil || data == nil {
				continue
			}
			if cd := data.SelectElement("ComplexData"); cd != nil && len(cd.ChildElements()) > 0 {
				out[xmlutil.Text(id)] = cd.ChildElements()[0].Copy()
			}
		}
	}
	return out, nil
}

// Exception is an OWS exception received from a server.
type Exception struct {
	Code string
	Text string
}

func (e *Exception) Error() string {
	return e.Code + ": " + e.Text
}
