// Package soap reads and writes the SOAP 1.1 envelopes spoken by the legacy
// game client. Element lookup works on local names only, so callers never
// need to know which namespace prefix a client happened to use.
package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

const (
	// EnvelopeNS is the SOAP 1.1 envelope namespace.
	EnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

	XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"
	XSDNamespace = "http://www.w3.org/2001/XMLSchema"

	// XMLDeclaration prefixes every document we send.
	XMLDeclaration = `<?xml version="1.0" encoding="utf-8"?>`

	// ContentType is used for every SOAP and clan stub response.
	ContentType = "text/xml; charset=utf-8"
)

// ErrMalformedXML is returned when a request body is not a usable envelope.
var ErrMalformedXML = errors.New("malformed SOAP envelope")

// Element is a node of a parsed envelope.
type Element = etree.Element

// ExtractOperation parses an envelope and returns the operation element,
// the first child element of Body.
func ExtractOperation(xmlText string) (*Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlText); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedXML, err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, fmt.Errorf("%w: missing Envelope element", ErrMalformedXML)
	}

	body := directChild(root, "Body")
	if body == nil {
		return nil, fmt.Errorf("%w: missing Body element", ErrMalformedXML)
	}

	children := body.ChildElements()
	if len(children) == 0 {
		return nil, fmt.Errorf("%w: empty Body", ErrMalformedXML)
	}
	return children[0], nil
}

// OperationName returns the local tag name of el.
func OperationName(el *Element) string {
	if el == nil {
		return ""
	}
	return el.Tag
}

// ChildElement returns the first descendant of el, depth first in document
// order, whose local name is name.
func ChildElement(el *Element, name string) *Element {
	if el == nil {
		return nil
	}
	for _, child := range el.ChildElements() {
		if child.Tag == name {
			return child
		}
		if found := ChildElement(child, name); found != nil {
			return found
		}
	}
	return nil
}

// ElementText returns the trimmed text of the first descendant named name,
// or "" when there is none.
func ElementText(el *Element, name string) string {
	found := ChildElement(el, name)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

// ElementInt parses the text of the first descendant named name. Missing or
// non-numeric values read as 0.
func ElementInt(el *Element, name string) int {
	text := ElementText(el, name)
	if text == "" {
		return 0
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return v
}

// ProfileID reads profileId from the operation, falling back to the
// profileid carried inside the certificate block.
func ProfileID(op *Element) int {
	if id := ElementInt(op, "profileId"); id != 0 {
		return id
	}
	return ElementInt(ChildElement(op, "certificate"), "profileid")
}

// WrapResponse marshals model and wraps it in soap:Envelope/soap:Body.
func WrapResponse(model any) (string, error) {
	inner, err := xml.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return envelope(string(inner)), nil
}

// BuildFault returns a complete fault envelope carrying message.
func BuildFault(message string) string {
	var escaped bytes.Buffer
	// EscapeText only fails when the writer does.
	_ = xml.EscapeText(&escaped, []byte(message))

	return envelope("<soap:Fault>" +
		"<faultcode>soap:Server</faultcode>" +
		"<faultstring>" + escaped.String() + "</faultstring>" +
		"</soap:Fault>")
}

// MarshalDocument marshals model as a standalone XML document, without an
// envelope. The clan endpoints answer this way.
func MarshalDocument(model any) (string, error) {
	out, err := xml.Marshal(model)
	if err != nil {
		return "", fmt.Errorf("failed to marshal document: %w", err)
	}
	return XMLDeclaration + string(out), nil
}

func envelope(body string) string {
	var sb strings.Builder
	sb.WriteString(XMLDeclaration)
	sb.WriteString(`<soap:Envelope xmlns:soap="` + EnvelopeNS + `"`)
	sb.WriteString(` xmlns:xsi="` + XSINamespace + `"`)
	sb.WriteString(` xmlns:xsd="` + XSDNamespace + `">`)
	sb.WriteString("<soap:Body>")
	sb.WriteString(body)
	sb.WriteString("</soap:Body></soap:Envelope>")
	return sb.String()
}

func directChild(el *Element, name string) *Element {
	for _, child := range el.ChildElements() {
		if child.Tag == name {
			return child
		}
	}
	return nil
}
