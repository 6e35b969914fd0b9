package assets

import (
	"fmt"
	"path"
	"strings"
)

// Strategy identifies which resolution step produced a hit.
type Strategy int

const (
	StrategyNone Strategy = iota
	StrategyExact
	StrategyNormalized
	StrategyBaseDir
	StrategyCaseInsensitive
	StrategyFilename
	StrategyFilenameCI
	StrategySuffix
)

// String returns a short label for reporting.
func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "miss"
	case StrategyExact:
		return "exact"
	case StrategyNormalized:
		return "normalized"
	case StrategyBaseDir:
		return "base-dir"
	case StrategyCaseInsensitive:
		return "case-insensitive"
	case StrategyFilename:
		return "filename"
	case StrategyFilenameCI:
		return "filename-case-insensitive"
	case StrategySuffix:
		return "suffix"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Resolve matches a requested path against the bundle, trying each
// strategy in order until one hits. A miss returns (nil, StrategyNone);
// it is never an error, callers substitute a placeholder instead.
func (ix *Index) Resolve(requested, baseDir string) (*Ref, Strategy) {
	// 1. Exact match on the raw request.
	if ref, ok := ix.direct[requested]; ok {
		return ref, StrategyExact
	}

	// 2. Exact match after stripping markers and normalizing.
	norm := NormalizePath(stripMarkers(requested))
	if norm == "" {
		return nil, StrategyNone
	}
	if ref, ok := ix.direct[norm]; ok {
		return ref, StrategyNormalized
	}

	// 3. The same, relative to the document's directory.
	if baseDir != "" {
		if ref, ok := ix.direct[NormalizePath(baseDir+"/"+norm)]; ok {
			return ref, StrategyBaseDir
		}
	}

	// 4. Case-insensitive full path.
	if ref, ok := ix.caseInsensitive[strings.ToLower(norm)]; ok {
		return ref, StrategyCaseInsensitive
	}

	// 5 and 6. Filename only, then case-insensitive filename.
	base := path.Base(norm)
	if ref, ok := ix.byFilename[base]; ok {
		return ref, StrategyFilename
	}
	if ref, ok := ix.byFilenameCI[strings.ToLower(base)]; ok {
		return ref, StrategyFilenameCI
	}

	// 7. Trailing suffix against each asset's shortest unique suffix.
	for _, s := range trailingSuffixes(norm) {
		if ref, ok := ix.bySuffix[s]; ok {
			return ref, StrategySuffix
		}
	}
	return nil, StrategyNone
}

// stripMarkers removes the transport wrappers parsers leave on asset
// references: blob and data markers, a package://<pkg>/ prefix (the
// package segment is dropped), and a leading ./
func stripMarkers(p string) string {
	p = strings.TrimPrefix(p, "blob:")
	p = strings.TrimPrefix(p, "data:")
	if rest, ok := strings.CutPrefix(p, "package://"); ok {
		if i := strings.Index(rest, "/"); i >= 0 {
			p = rest[i+1:]
		} else {
			p = ""
		}
	}
	return strings.TrimPrefix(p, "./")
}

// NormalizePath brings a path into canonical form: forward slashes,
// duplicate separators collapsed, ./ segments dropped, and ../ resolved
// against preceding segments until stable. Leading ../ that cannot be
// resolved is kept.
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ""
	}
	out := path.Clean(p)
	if out == "." {
		return ""
	}
	return out
}
