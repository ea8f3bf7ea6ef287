package wps

import (
	"github.com/beevik/etree"

	"tempus/xmlutil"
)

const (
	nsWPS   = "http://www.opengis.net/wps/1.0.0"
	nsOWS   = "http://www.opengis.net/ows/1.1"
	nsXLink = "http://www.w3.org/1999/xlink"
	nsXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	nsXS    = "http://www.w3.org/2001/XMLSchema"

	Version  = "1.0.0"
	Language = "en-US"
	Title    = "Tempus WPS server"
)

// OWS exception codes.
const (
	OperationNotSupported = "OperationNotSupported"
	InvalidParameterValue = "InvalidParameterValue"
	MissingParameterValue = "MissingParameterValue"
	NoApplicableCode      = "NoApplicableCode"
)

func newDocument(root string, schemaLocation string) (*etree.Document, *etree.Element) {
	doc := xmlutil.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	e := doc.CreateElement(root)
	e.CreateAttr("xmlns:wps", nsWPS)
	e.CreateAttr("xmlns:ows", nsOWS)
	e.CreateAttr("xmlns:xlink", nsXLink)
	e.CreateAttr("xmlns:xsi", nsXSI)
	e.CreateAttr("xsi:schemaLocation", schemaLocation)
	e.CreateAttr("service", "WPS")
	e.CreateAttr("version", Version)
	e.CreateAttr("xml:lang", Language)
	return doc, e
}

func title(s *Service) string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

func operation(parent *etree.Element, name, method, href string) {
	op := parent.CreateElement("ows:Operation")
	op.CreateAttr("name", name)
	dcp := op.CreateElement("ows:DCP").CreateElement("ows:HTTP")
	dcp.CreateElement("ows:" + method).CreateAttr("xlink:href", href)
}

// GetCapabilities lists operations, reachable at scriptURL, and offered
// processes.
func GetCapabilities(scriptURL string, services []*Service) *etree.Document {
	doc, root := newDocument("wps:Capabilities", "http://schemas.opengis.net/wps/1.0.0/wpsGetCapabilities_response.xsd")
	root.CreateAttr("updateSequence", "1")

	id := root.CreateElement("ows:ServiceIdentification")
	id.CreateElement("ows:Title").SetText(Title)
	id.CreateElement("ows:ServiceType").SetText("WPS")
	id.CreateElement("ows:ServiceTypeVersion").SetText(Version)
	root.CreateElement("ows:ServiceProvider").CreateElement("ows:ProviderName").SetText("Tempus")

	ops := root.CreateElement("ows:OperationsMetadata")
	operation(ops, "GetCapabilities", "Get", scriptURL)
	operation(ops, "DescribeProcess", "Get", scriptURL)
	operation(ops, "Execute", "Post", scriptURL)

	offerings := root.CreateElement("wps:ProcessOfferings")
	for _, s := range services {
		p := offerings.CreateElement("wps:Process")
		p.CreateAttr("wps:processVersion", "1.0")
		p.CreateElement("ows:Identifier").SetText(s.Name)
		p.CreateElement("ows:Title").SetText(title(s))
	}

	langs := root.CreateElement("wps:Languages")
	langs.CreateElement("wps:Default").CreateElement("ows:Language").SetText(Language)
	langs.CreateElement("wps:Supported").CreateElement("ows:Language").SetText(Language)

	doc.Indent(2)
	return doc
}

func complexData(parent *etree.Element, p Parameter) {
	cd := parent.CreateElement("ComplexData")
	for _, tag := range []string{"Default", "Supported"} {
		f := cd.CreateElement(tag).CreateElement("Format")
		f.CreateElement("MimeType").SetText("text/xml")
		f.CreateElement("Encoding").SetText("UTF-8")
		f.CreateElement("Schema").AddChild(p.Schema.Element())
	}
}

// DescribeProcess describes inputs and outputs of services with their
// schemas.
func DescribeProcess(services []*Service) *etree.Document {
	doc, root := newDocument("wps:ProcessDescriptions", "http://schemas.opengis.net/wps/1.0.0/wpsDescribeProcess_response.xsd")
	root.CreateAttr("xmlns:xs", nsXS)

	for _, s := range services {
		pd := root.CreateElement("ProcessDescription")
		pd.CreateAttr("wps:processVersion", "1.0")
		pd.CreateAttr("storeSupported", "false")
		pd.CreateAttr("statusSupported", "false")
		pd.CreateElement("ows:Identifier").SetText(s.Name)
		pd.CreateElement("ows:Title").SetText(title(s))
		pd.CreateElement("ows:Abstract").SetText(title(s))

		inputs := pd.CreateElement("DataInputs")
		for _, p := range s.Inputs {
			in := inputs.CreateElement("Input")
			in.CreateAttr("minOccurs", "1")
			in.CreateAttr("maxOccurs", "1")
			in.CreateElement("ows:Identifier").SetText(p.Name)
			in.CreateElement("ows:Title").SetText(p.Title)
			complexData(in, p)
		}
		outputs := pd.CreateElement("ProcessOutputs")
		for _, p := range s.Outputs {
			out := outputs.CreateElement("Output")
			out.CreateElement("ows:Identifier").SetText(p.Name)
			out.CreateElement("ows:Title").SetText(p.Title)
			complexData(out, p)
		}
	}
	doc.Indent(2)
	return doc
}

// ExecuteResponse carries outputs of a service run, instance identifies
// the run.
func ExecuteResponse(s *Service, outputs Values, instance string) *etree.Document {
	doc, root := newDocument("wps:ExecuteResponse", "http://schemas.opengis.net/wps/1.0.0/wpsExecute_response.xsd")
	root.CreateAttr("serviceInstance", instance)

	p := root.CreateElement("wps:Process")
	p.CreateAttr("wps:processVersion", "1.0")
	p.CreateElement("ows:Identifier").SetText(s.Name)
	p.CreateElement("ows:Title").SetText(title(s))

	root.CreateElement("wps:Status").CreateElement("wps:ProcessSucceeded").SetText("Process successful")

	po := root.CreateElement("wps:ProcessOutputs")
	for _, param := range s.Outputs {
		e, ok := outputs[param.Name]
		if !ok {
			continue
		}
		out := po.CreateElement("wps:Output")
		out.CreateElement("ows:Identifier").SetText(param.Name)
		out.CreateElement("ows:Title").SetText(param.Title)
		cd := out.CreateElement("wps:Data").CreateElement("wps:ComplexData")
		cd.CreateAttr("mimeType", "text/xml")
		cd.CreateAttr("encoding", "UTF-8")
		cd.AddChild(e.Copy())
	}
	doc.Indent(2)
	return doc
}

// ExceptionReport describes why a request failed.
func ExceptionReport(code, text string) *etree.Document {
	doc := xmlutil.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ows:ExceptionReport")
	root.CreateAttr("xmlns:ows", nsOWS)
	root.CreateAttr("xmlns:xsi", nsXSI)
	root.CreateAttr("xsi:schemaLocation", "http://schemas.opengis.net/ows/1.1.0/owsExceptionReport.xsd")
	root.CreateAttr("version", Version)
	root.CreateAttr("xml:lang", Language)

	ex := root.CreateElement("ows:Exception")
	ex.CreateAttr("exceptionCode", code)
	ex.CreateElement("ows:ExceptionText").SetText(text)
	doc.Indent(2)
	return doc
}
