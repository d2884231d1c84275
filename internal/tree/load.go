package tree

import (
	"bytes"
	"errors"
	"io"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"viewc/internal/diag"
	"viewc/internal/source"
)

// Format is a view document encoding.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
)

// FormatOf picks the encoding from a file name.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatUnknown
}

// IsViewFile reports whether name has a view extension.
func IsViewFile(name string) bool { return FormatOf(name) != FormatUnknown }

// Parse decodes and validates a view document. name selects the format and
// becomes the view's Path.
func Parse(name string, data []byte) (*View, error) {
	v := &View{}
	var err error
	switch FormatOf(name) {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(v)
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(v)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		return nil, diag.Errorf(diag.IOTreeFormat, name, "unsupported view format %q", filepath.Ext(name))
	}
	if err != nil {
		return nil, diag.Wrap(diag.IOTreeFormat, name, err, "decode view").At(diag.Location{File: name})
	}
	v.Path = name
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Load parses a file of fs; the view path is the file's virtual path.
func Load(fs *source.FileSet, id source.FileID) (*View, error) {
	f, ok := fs.Get(id)
	if !ok {
		return nil, diag.Errorf(diag.IOLoadFileError, "", "unknown file id %d", id)
	}
	return Parse(f.VirtualPath, f.Content)
}

// Validate checks the structural rules of the document.
func (v *View) Validate() error {
	return Walk(v.Nodes, func(path string, n *Node) error {
		loc := diag.Location{File: v.Path, Line: n.Line, Path: path}
		fail := func(format string, args ...any) error {
			return diag.Errorf(diag.IOTreeFormat, n.Name(), format, args...).At(loc)
		}
		switch {
		case n.Tag == "" && n.Prefix != "":
			return fail("node with prefix %q has no tag", n.Prefix)
		case n.IsText() && (len(n.Attributes) > 0 || len(n.Children) > 0 || len(n.Properties) > 0):
			return fail("text nodes cannot have attributes or children")
		case !n.IsText() && n.Text != "":
			return fail("element <%s> cannot carry text, add a text child instead", n.Name())
		}
		for _, a := range n.Attributes {
			if a.Name == "" {
				return fail("attribute without a name on <%s>", n.Name())
			}
			if a.Binding != nil && (a.Binding.Kind == "" || a.Value != "") {
				return fail("attribute %s: a binding needs a kind and excludes a literal value", a.Name)
			}
		}
		for _, pe := range n.Properties {
			if pe.Name == "" {
				return fail("property element without a name on <%s>", n.Name())
			}
		}
		return nil
	})
}
