// Package genicam handles GenICam register description documents as raw XML
// with late-bound default nodes.
//
// A Document keeps the source bytes untouched and only validates that they
// form a well-formed XML register description. Callers register default node
// fragments for features the base document leaves out; the fragments are
// spliced in before the closing root tag when the document is rendered, and
// are skipped when the document already defines a node with the same name.
// This mirrors how camera transports patch a generic schema with
// device-specific sensor geometry and pixel formats.
package genicam

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformed reports a document that is not well-formed XML or has no
// root element.
var ErrMalformed = errors.New("genicam: malformed document")

// Document is a parsed register description.
type Document struct {
	raw      []byte
	rootName string
	nodes    map[string]bool

	defaults     map[string]string
	defaultOrder []string
}

// Parse validates the document and indexes its named feature nodes.
func Parse(data []byte) (*Document, error) {
	d := &Document{
		raw:      data,
		nodes:    make(map[string]bool),
		defaults: make(map[string]string),
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				d.rootName = t.Name.Local
			}
			depth++
			for _, attr := range t.Attr {
				if attr.Name.Local == "Name" {
					d.nodes[attr.Value] = true
				}
			}
		case xml.EndElement:
			depth--
		}
	}
	if d.rootName == "" {
		return nil, ErrMalformed
	}
	return d, nil
}

// HasNode reports whether the base document defines a feature node with the
// given name. Default nodes registered with SetDefaultNode do not count.
func (d *Document) HasNode(name string) bool {
	return d.nodes[name]
}

// SetDefaultNode registers an XML fragment to splice into the rendered
// document when the base document does not define the named node. Setting
// the same name again replaces the fragment; registration order is kept for
// rendering.
func (d *Document) SetDefaultNode(name, fragment string) {
	if _, ok := d.defaults[name]; !ok {
		d.defaultOrder = append(d.defaultOrder, name)
	}
	d.defaults[name] = fragment
}

// XML renders the document with the applicable default nodes spliced in
// before the closing root tag.
func (d *Document) XML() ([]byte, error) {
	var pending []string
	for _, name := range d.defaultOrder {
		if !d.nodes[name] {
			pending = append(pending, d.defaults[name])
		}
	}
	if len(pending) == 0 {
		return d.raw, nil
	}

	closing := []byte("</" + d.rootName)
	idx := bytes.LastIndex(d.raw, closing)
	if idx < 0 {
		return nil, ErrMalformed
	}

	var out bytes.Buffer
	out.Grow(len(d.raw) + 64*len(pending))
	out.Write(d.raw[:idx])
	for _, fragment := range pending {
		out.WriteString(strings.TrimSpace(fragment))
		out.WriteByte('\n')
	}
	out.Write(d.raw[idx:])
	return out.Bytes(), nil
}
