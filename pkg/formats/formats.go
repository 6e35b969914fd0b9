// Package formats reads and writes robot description files. Parsers
// for URDF, MJCF, and ASCII USD all produce the canonical model.Robot;
// generators render it back out as URDF or MJCF. Dialect detection is
// a pure function over the file name and content.
package formats

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/net/html/charset"

	"github.com/Faultbox/robokit/pkg/model"
)

// Parse errors shared by every dialect.
var (
	ErrMalformed        = errors.New("malformed robot description")
	ErrMissingRoot      = errors.New("missing root element")
	ErrMissingAttribute = errors.New("missing required attribute")
	ErrUnknownDialect   = errors.New("unknown robot description dialect")
)

// Dialect identifies a robot description file format.
type Dialect int

const (
	DialectUnknown Dialect = iota
	DialectURDF
	DialectMJCF
	DialectUSDA
)

// String returns a human-readable dialect name.
func (d Dialect) String() string {
	switch d {
	case DialectURDF:
		return "URDF"
	case DialectMJCF:
		return "MJCF"
	case DialectUSDA:
		return "USDA"
	default:
		return "unknown"
	}
}

// Document is the result of parsing one robot description file. Warnings
// collect the recoverable oddities the parsers tolerated: orphaned
// joints, fallback roots, skipped geometry.
type Document struct {
	Robot    *model.Robot
	Dialect  Dialect
	Warnings []string
}

func (d *Document) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

// ParseOptions tunes dialect-specific behavior. The zero value is valid.
// package:// mesh URIs resolve through PackageMap first, then
// PackageDir, then ResolvePackage; a URI none of them covers is kept
// verbatim for the asset index to untangle.
type ParseOptions struct {
	// PackageMap maps a package name to the directory replacing
	// package://name/.
	PackageMap map[string]string

	// PackageDir is a single directory substituted for any package
	// prefix.
	PackageDir string

	// ResolvePackage is the fallback hook for package URIs.
	ResolvePackage func(pkg, rel string) string
}

// resolvePackage rewrites one package://pkg/rel URI. A nil receiver
// leaves the URI untouched.
func (o *ParseOptions) resolvePackage(uri string) string {
	rest := strings.TrimPrefix(uri, "package://")
	pkg, rel, _ := strings.Cut(rest, "/")
	if o != nil {
		if base, ok := o.PackageMap[pkg]; ok {
			return path.Join(base, rel)
		}
		if o.PackageDir != "" {
			return path.Join(o.PackageDir, rel)
		}
		if o.ResolvePackage != nil {
			return o.ResolvePackage(pkg, rel)
		}
	}
	return uri
}

// resolveMeshPath rewrites package URIs in mesh references; everything
// else passes through untouched.
func resolveMeshPath(filename string, opts *ParseOptions) string {
	if strings.HasPrefix(filename, "package://") {
		return opts.resolvePackage(filename)
	}
	return filename
}

// Detect identifies the dialect of a robot description from its file
// name and content. It never errors; unrecognizable input maps to
// DialectUnknown.
func Detect(name string, data []byte) Dialect {
	switch strings.ToLower(path.Ext(name)) {
	case ".urdf":
		return DialectURDF
	case ".mjcf":
		return DialectMJCF
	case ".usd", ".usda":
		return DialectUSDA
	}
	if bytes.HasPrefix(data, []byte("PXR-USDC")) {
		return DialectUSDA
	}
	head := trimBOM(data)
	if len(head) > 4096 {
		head = head[:4096]
	}
	if bytes.HasPrefix(bytes.TrimLeft(head, " \t\r\n"), []byte("#usda")) {
		return DialectUSDA
	}
	if root, ok := sniffRootElement(data); ok {
		switch root {
		case "robot":
			return DialectURDF
		case "mujoco":
			return DialectMJCF
		}
		return DialectUnknown
	}
	for _, line := range strings.Split(string(head), "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "def ") || strings.HasPrefix(t, "over ") {
			return DialectUSDA
		}
	}
	return DialectUnknown
}

// Parse detects the dialect and hands the data to its parser.
func Parse(name string, data []byte, opts *ParseOptions) (*Document, error) {
	switch Detect(name, data) {
	case DialectURDF:
		return ParseURDF(data, opts)
	case DialectMJCF:
		return ParseMJCF(data, opts)
	case DialectUSDA:
		return ParseUSDA(data, opts)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDialect, name)
	}
}

// ParseFile parses a robot description from disk.
func ParseFile(pathname string, opts *ParseOptions) (*Document, error) {
	data, err := os.ReadFile(pathname)
	if err != nil {
		return nil, fmt.Errorf("reading robot description: %w", err)
	}
	return Parse(pathname, data, opts)
}

// newXMLDecoder builds a decoder with the shared lenient preprocessing:
// BOM stripped, misplaced prologs relocated, and non-UTF-8 charsets
// honored.
func newXMLDecoder(data []byte) *xml.Decoder {
	dec := xml.NewDecoder(bytes.NewReader(relocateProlog(trimBOM(data))))
	dec.CharsetReader = charset.NewReaderLabel
	return dec
}

// rootElement skips the prolog, comments, and directives and returns
// the document's first start element.
func rootElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return xml.StartElement{}, fmt.Errorf("%w: document has no root element", ErrMissingRoot)
		}
		if err != nil {
			return xml.StartElement{}, wrapXMLError(err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// sniffRootElement returns the local name of the first start element.
func sniffRootElement(data []byte) (string, bool) {
	dec := xml.NewDecoder(bytes.NewReader(trimBOM(data)))
	dec.CharsetReader = charset.NewReaderLabel
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", false
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, true
		}
	}
}

// wrapXMLError folds a decoder failure into ErrMalformed, keeping the
// line number when the decoder supplies one.
func wrapXMLError(err error) error {
	var syn *xml.SyntaxError
	if errors.As(err, &syn) {
		return fmt.Errorf("%w: line %d: %s", ErrMalformed, syn.Line, syn.Msg)
	}
	return fmt.Errorf("%w: %v", ErrMalformed, err)
}

// relocateProlog moves an XML declaration that appears after leading
// comments back to the front of the buffer. Some exporters emit the
// prolog below a comment banner, which stricter parsers reject.
func relocateProlog(data []byte) []byte {
	i := bytes.Index(data, []byte("<?xml"))
	if i <= 0 {
		return data
	}
	rel := bytes.Index(data[i:], []byte("?>"))
	if rel < 0 {
		return data
	}
	end := i + rel + 2
	if !commentsAndSpaceOnly(data[:i]) {
		return data
	}
	out := make([]byte, 0, len(data)+1)
	out = append(out, data[i:end]...)
	out = append(out, '\n')
	out = append(out, data[:i]...)
	out = append(out, data[end:]...)
	return out
}

// commentsAndSpaceOnly reports whether the slice holds nothing but
// whitespace and complete XML comments.
func commentsAndSpaceOnly(b []byte) bool {
	for len(b) > 0 {
		switch {
		case b[0] == ' ' || b[0] == '\t' || b[0] == '\r' || b[0] == '\n':
			b = b[1:]
		case bytes.HasPrefix(b, []byte("<!--")):
			end := bytes.Index(b, []byte("-->"))
			if end < 0 {
				return false
			}
			b = b[end+3:]
		default:
			return false
		}
	}
	return true
}

func trimBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// parseFloats splits a whitespace-separated attribute value into
// floats, skipping tokens that do not parse.
func parseFloats(s string) []float64 {
	fields := strings.Fields(s)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// parseVec3 reads "x y z", leaving missing components at the fallback.
func parseVec3(s string, fallback mgl64.Vec3) mgl64.Vec3 {
	vals := parseFloats(s)
	out := fallback
	for i := 0; i < len(vals) && i < 3; i++ {
		out[i] = vals[i]
	}
	return out
}

// parseRGBA reads an "r g b a" color; missing components default to an
// opaque black.
func parseRGBA(s string) *model.Color {
	v := parseFloats(s)
	c := &model.Color{A: 1}
	for i := range v {
		switch i {
		case 0:
			c.R = v[0]
		case 1:
			c.G = v[1]
		case 2:
			c.B = v[2]
		case 3:
			c.A = v[3]
		}
	}
	return c
}

// parseMeshScale accepts a single scalar (applied uniformly) or three
// components.
func parseMeshScale(s string) mgl64.Vec3 {
	vals := parseFloats(s)
	switch len(vals) {
	case 0:
		return mgl64.Vec3{1, 1, 1}
	case 1:
		return mgl64.Vec3{vals[0], vals[0], vals[0]}
	case 2:
		return mgl64.Vec3{vals[0], vals[1], 1}
	default:
		return mgl64.Vec3{vals[0], vals[1], vals[2]}
	}
}

func floatAt(v []float64, i int) float64 {
	if i < len(v) {
		return v[i]
	}
	return 0
}

// ftoa renders a float compactly for XML attributes.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func fmtVec3(v mgl64.Vec3) string {
	return ftoa(v[0]) + " " + ftoa(v[1]) + " " + ftoa(v[2])
}

// xmlEscaper escapes attribute values in generated XML.
var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)
