// Package urdf reads and writes Unified Robot Description Format documents. Links and their
// collision elements are modeled; every other element is carried through untouched, in order.
package urdf

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Extension is the file extension associated with URDF files.
const Extension string = "urdf"

// Robot is the root of a URDF document.
type Robot struct {
	Name  string
	Attrs []xml.Attr // every attribute other than name
	Links []*Link

	children []node
}

// Link is the XML used in a URDF link element.
type Link struct {
	Name       string
	Attrs      []xml.Attr
	Collisions []*Collision

	children []node
}

// Collision is the XML used in a URDF collision element.
type Collision struct {
	XMLName  xml.Name  `xml:"collision"`
	Name     string    `xml:"name,attr,omitempty"`
	Origin   *Origin   `xml:"origin,omitempty"`
	Geometry *Geometry `xml:"geometry,omitempty"`
	Extra    []Element `xml:",any"`
}

// Element is any XML element the model does not interpret, such as joints, visuals and materials.
// Surrounding whitespace in text content is dropped so documents re-indent cleanly.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Element  `xml:",any"`
	Text     string     `xml:",chardata"`
}

// node keeps document order for the children of a robot or link; exactly one field is set.
type node struct {
	link      *Link
	collision *Collision
	element   *Element
}

// Parse reads a URDF document.
func Parse(data []byte) (*Robot, error) {
	robot := &Robot{}
	if err := xml.Unmarshal(data, robot); err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrValidation, "couldn't parse xml: %v", err)
	}
	return robot, nil
}

// Read reads a URDF document from r.
func Read(r io.Reader) (*Robot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Marshal renders the document with an XML declaration and two space indentation.
func (r *Robot) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// Link returns the link with the given name, or nil.
func (r *Robot) Link(name string) *Link {
	for _, l := range r.Links {
		if l.Name == name {
			return l
		}
	}
	return nil
}

// AddLink appends a link to the end of the document.
func (r *Robot) AddLink(l *Link) {
	r.Links = append(r.Links, l)
	r.children = append(r.children, node{link: l})
}

// AddCollision appends c after the link's existing collision elements.
func (l *Link) AddCollision(c *Collision) {
	l.Collisions = append(l.Collisions, c)
	at := len(l.children)
	for i, n := range l.children {
		if n.collision != nil {
			at = i + 1
		}
	}
	l.children = append(l.children, node{})
	copy(l.children[at+1:], l.children[at:])
	l.children[at] = node{collision: c}
}

// UnmarshalXML implements xml.Unmarshaler.
func (r *Robot) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local != "robot" {
		return errors.Wrapf(ErrValidation, "root element is <%s>, not <robot>", start.Name.Local)
	}
	r.Name, r.Attrs = splitName(start.Attr)
	return decodeChildren(d, func(child xml.StartElement) error {
		if child.Name.Local != "link" {
			return r.addElement(d, child)
		}
		l := &Link{}
		if err := d.DecodeElement(l, &child); err != nil {
			return err
		}
		r.AddLink(l)
		return nil
	})
}

// MarshalXML implements xml.Marshaler.
func (r *Robot) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "robot"}, Attr: joinName(r.Name, r.Attrs)}
	return encodeChildren(e, start, r.children)
}

func (r *Robot) addElement(d *xml.Decoder, start xml.StartElement) error {
	el := &Element{}
	if err := d.DecodeElement(el, &start); err != nil {
		return err
	}
	r.children = append(r.children, node{element: el})
	return nil
}

// UnmarshalXML implements xml.Unmarshaler.
func (l *Link) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	l.Name, l.Attrs = splitName(start.Attr)
	return decodeChildren(d, func(child xml.StartElement) error {
		if child.Name.Local == "collision" {
			c := &Collision{}
			if err := d.DecodeElement(c, &child); err != nil {
				return err
			}
			l.Collisions = append(l.Collisions, c)
			l.children = append(l.children, node{collision: c})
			return nil
		}
		el := &Element{}
		if err := d.DecodeElement(el, &child); err != nil {
			return err
		}
		l.children = append(l.children, node{element: el})
		return nil
	})
}

// MarshalXML implements xml.Marshaler.
func (l *Link) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "link"}, Attr: joinName(l.Name, l.Attrs)}
	return encodeChildren(e, start, l.children)
}

// UnmarshalXML implements xml.Unmarshaler.
func (el *Element) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	type plain Element
	if err := d.DecodeElement((*plain)(el), &start); err != nil {
		return err
	}
	el.Attrs = flattenNamespaceDecls(el.Attrs)
	el.Text = strings.TrimSpace(el.Text)
	return nil
}

func decodeChildren(d *xml.Decoder, onChild func(xml.StartElement) error) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if err := onChild(t); err != nil {
				return err
			}
		case xml.EndElement:
			return nil
		}
	}
}

func encodeChildren(e *xml.Encoder, start xml.StartElement, children []node) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, n := range children {
		var err error
		switch {
		case n.link != nil:
			err = e.Encode(n.link)
		case n.collision != nil:
			err = e.Encode(n.collision)
		case n.element != nil:
			err = e.Encode(n.element)
		}
		if err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func splitName(attrs []xml.Attr) (string, []xml.Attr) {
	var name string
	var rest []xml.Attr
	for _, attr := range flattenNamespaceDecls(attrs) {
		if attr.Name.Space == "" && attr.Name.Local == "name" {
			name = attr.Value
			continue
		}
		rest = append(rest, attr)
	}
	return name, rest
}

func joinName(name string, attrs []xml.Attr) []xml.Attr {
	return append([]xml.Attr{{Name: xml.Name{Local: "name"}, Value: name}}, attrs...)
}

// flattenNamespaceDecls rewrites xmlns:prefix declarations so the encoder writes them back as they were read.
func flattenNamespaceDecls(attrs []xml.Attr) []xml.Attr {
	for i, attr := range attrs {
		if attr.Name.Space == "xmlns" {
			attrs[i].Name = xml.Name{Local: "xmlns:" + attr.Name.Local}
		}
	}
	return attrs
}
