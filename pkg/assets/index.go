// Package assets indexes a robot's asset bundle and resolves the loose
// path references found in robot descriptions against it: exact paths,
// case mismatches, bare filenames, and unique trailing suffixes all
// land on the same content.
package assets

import (
	"path"
	"sort"
	"strings"
)

// Ref points at one asset in the bundle. Data aliases the bytes handed
// to BuildIndex.
type Ref struct {
	Path string
	Data []byte
}

// Index is a set of parallel lookup tables over one asset bundle. It is
// built once and read-only afterwards, so concurrent readers need no
// locking.
type Index struct {
	direct          map[string]*Ref
	caseInsensitive map[string]*Ref
	byFilename      map[string]*Ref
	byFilenameCI    map[string]*Ref
	bySuffix        map[string]*Ref
}

// BuildIndex constructs the lookup tables from a flat path-to-content
// map. The filename tables hold only filenames that occur once in the
// bundle; colliding names are left to the suffix table, which
// disambiguates them by their shortest unique trailing segments.
func BuildIndex(files map[string][]byte) *Index {
	ix := &Index{
		direct:          make(map[string]*Ref, len(files)*2),
		caseInsensitive: make(map[string]*Ref, len(files)),
		byFilename:      make(map[string]*Ref, len(files)),
		byFilenameCI:    make(map[string]*Ref, len(files)),
		bySuffix:        make(map[string]*Ref, len(files)),
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	// Count filenames and trailing segment sequences across the bundle
	// so ambiguous keys can be skipped.
	nameCount := map[string]int{}
	nameCICount := map[string]int{}
	suffixCount := map[string]int{}
	for _, p := range paths {
		norm := NormalizePath(p)
		base := path.Base(norm)
		nameCount[base]++
		nameCICount[strings.ToLower(base)]++
		for _, s := range trailingSuffixes(norm) {
			suffixCount[s]++
		}
	}

	for _, p := range paths {
		ref := &Ref{Path: p, Data: files[p]}
		norm := NormalizePath(p)

		put(ix.direct, p, ref)
		put(ix.direct, norm, ref)
		put(ix.caseInsensitive, strings.ToLower(norm), ref)

		base := path.Base(norm)
		if nameCount[base] == 1 {
			put(ix.byFilename, base, ref)
		}
		if nameCICount[strings.ToLower(base)] == 1 {
			put(ix.byFilenameCI, strings.ToLower(base), ref)
		}

		// The shortest suffix owned by exactly one asset.
		for _, s := range trailingSuffixes(norm) {
			if suffixCount[s] == 1 {
				put(ix.bySuffix, s, ref)
				break
			}
		}
	}
	return ix
}

// Len returns the number of assets indexed.
func (ix *Index) Len() int {
	return len(ix.caseInsensitive)
}

// Paths returns the indexed asset paths, sorted.
func (ix *Index) Paths() []string {
	seen := map[string]bool{}
	var out []string
	for _, ref := range ix.direct {
		if !seen[ref.Path] {
			seen[ref.Path] = true
			out = append(out, ref.Path)
		}
	}
	sort.Strings(out)
	return out
}

func put(m map[string]*Ref, key string, ref *Ref) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = ref
	}
}

// trailingSuffixes lists the path's trailing segment sequences from
// shortest to longest: "a/b/c" yields "c", "b/c", "a/b/c".
func trailingSuffixes(p string) []string {
	segs := strings.Split(p, "/")
	out := make([]string, 0, len(segs))
	for k := 1; k <= len(segs); k++ {
		out = append(out, strings.Join(segs[len(segs)-k:], "/"))
	}
	return out
}
