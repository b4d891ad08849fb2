// Package xmlfield extracts scalar values, value lists and repeated rows from
// the XML documents returned by the backend.
//
// A field path is a slash separated list of element local names, e.g.
// "Provisioning_x0020_Tasks/taskid". Namespace prefixes are ignored. The first
// step matches at any depth below the node the path is evaluated against;
// every following step matches direct children only.
package xmlfield

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
)

var (
	ErrMalformed   = errors.New("malformed xml document")
	ErrInvalidPath = errors.New("invalid field path")
	ErrNotFound    = errors.New("field not found")
)

// Document is a parsed XML document or a sub-tree of one. A nil *Document
// behaves like an empty document.
type Document struct {
	node *xmlquery.Node
}

func Parse(r io.Reader) (*Document, error) {
	node, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &Document{node: node}, nil
}

func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Compile turns a field path into the XPath expression used to evaluate it.
func Compile(path string) (string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return "", ErrInvalidPath
	}

	steps := strings.Split(path, "/")
	var b strings.Builder
	b.WriteString(".//")
	for i, step := range steps {
		step = strings.TrimSpace(step)
		if step == "" || strings.ContainsAny(step, "'\"[]()@ ") {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
		if i > 0 {
			b.WriteString("/")
		}
		if idx := strings.IndexByte(step, ':'); idx >= 0 {
			step = step[idx+1:]
		}
		b.WriteString("*[local-name()='")
		b.WriteString(step)
		b.WriteString("']")
	}
	return b.String(), nil
}

func (d *Document) query(path string) []*xmlquery.Node {
	if d == nil || d.node == nil {
		return nil
	}
	expr, err := Compile(path)
	if err != nil {
		return nil
	}
	nodes, err := xmlquery.QueryAll(d.node, expr)
	if err != nil {
		return nil
	}
	return nodes
}

// Value returns the text of the first element matching path.
func (d *Document) Value(path string) (string, bool) {
	nodes := d.query(path)
	if len(nodes) == 0 {
		return "", false
	}
	return strings.TrimSpace(nodes[0].InnerText()), true
}

// Text is Value without the presence flag.
func (d *Document) Text(path string) string {
	v, _ := d.Value(path)
	return v
}

// Values returns the text of every element matching path, in document order.
func (d *Document) Values(path string) []string {
	nodes := d.query(path)
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, strings.TrimSpace(n.InnerText()))
	}
	return values
}

// Rows returns every element matching path as its own sub-document so that
// fields of one repeated record can be read together.
func (d *Document) Rows(path string) []*Document {
	nodes := d.query(path)
	rows := make([]*Document, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, &Document{node: n})
	}
	return rows
}

// Child returns the first element matching path as a sub-document, or nil.
func (d *Document) Child(path string) *Document {
	nodes := d.query(path)
	if len(nodes) == 0 {
		return nil
	}
	return &Document{node: nodes[0]}
}

func (d *Document) Has(path string) bool {
	return len(d.query(path)) > 0
}

func (d *Document) Bool(path string) bool {
	v, ok := d.Value(path)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func (d *Document) Int(path string) (int, error) {
	v, ok := d.Value(path)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrMalformed, path, v)
	}
	return n, nil
}

// Empty reports whether the document has no element content at all.
func (d *Document) Empty() bool {
	if d == nil || d.node == nil {
		return true
	}
	for c := d.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return false
		}
		if c.Type == xmlquery.TextNode && strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

func (d *Document) String() string {
	if d == nil || d.node == nil {
		return ""
	}
	return d.node.OutputXML(true)
}
