package assets

import (
	"fmt"
	"path"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/robokit/pkg/mesh"
	"github.com/Faultbox/robokit/pkg/model"
)

// Loader turns mesh references into decoded, unit-corrected geometry.
// One Loader spans one load session: all meshes it decodes share a
// ScaleSession, so the millimeter heuristic locks once for the whole
// robot. Safe for concurrent use.
type Loader struct {
	index *Index
	scale *ScaleSession
}

// NewLoader wraps an index in a fresh load session.
func NewLoader(index *Index) *Loader {
	return &Loader{index: index, scale: NewScaleSession()}
}

// Scale exposes the session for reporting.
func (l *Loader) Scale() *ScaleSession {
	return l.scale
}

// MeshRequest names one mesh to load: the path as written in the robot
// description and the directory of the referencing document.
type MeshRequest struct {
	Path    string
	BaseDir string
}

// LoadResult is the outcome of one mesh load. Placeholder results carry
// no mesh; consumers substitute PlaceholderGeometry so a missing asset
// never sinks the rest of the robot.
type LoadResult struct {
	Request     MeshRequest
	Mesh        *mesh.Mesh
	Ref         *Ref
	Strategy    Strategy
	Scale       float64
	Placeholder bool
	Err         error
}

// LoadMesh resolves, decodes, and unit-corrects one mesh. Resolution
// misses and decode failures both degrade to a placeholder result.
func (l *Loader) LoadMesh(requested, baseDir string) LoadResult {
	res := LoadResult{
		Request: MeshRequest{Path: requested, BaseDir: baseDir},
		Scale:   1.0,
	}

	ref, strategy := l.index.Resolve(requested, baseDir)
	res.Strategy = strategy
	if ref == nil {
		res.Placeholder = true
		return res
	}
	res.Ref = ref

	m, err := mesh.Decode(ref.Path, ref.Data, l.fetchNear(ref.Path))
	if err != nil {
		res.Placeholder = true
		res.Err = fmt.Errorf("decoding %s: %w", ref.Path, err)
		return res
	}

	res.Scale = l.scale.Observe(m.MaxDimension())
	if res.Scale != 1.0 {
		m.ApplyScale(res.Scale)
	}
	res.Mesh = m
	return res
}

// LoadMeshes runs one goroutine per request. Results come back in
// request order; the scale lock applies in completion order.
func (l *Loader) LoadMeshes(requests []MeshRequest) []LoadResult {
	results := make([]LoadResult, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req MeshRequest) {
			defer wg.Done()
			results[i] = l.LoadMesh(req.Path, req.BaseDir)
		}(i, req)
	}
	wg.Wait()
	return results
}

// fetchNear resolves side-files a mesh references (glTF external
// buffers) relative to the mesh's own directory in the bundle.
func (l *Loader) fetchNear(meshPath string) mesh.FetchFunc {
	dir := path.Dir(meshPath)
	if dir == "." {
		dir = ""
	}
	return func(uri string) ([]byte, error) {
		if ref, _ := l.index.Resolve(uri, dir); ref != nil {
			return ref.Data, nil
		}
		return nil, fmt.Errorf("buffer %q not in asset bundle", uri)
	}
}

// PlaceholderGeometry is the visibly-marked stand-in for an asset that
// could not be resolved or decoded: a small magenta box.
func PlaceholderGeometry() model.Geometry {
	return model.Geometry{
		Shape: model.ShapeBox,
		Size:  mgl64.Vec3{0.1, 0.1, 0.1},
		Color: &model.Color{R: 1, G: 0, B: 1, A: 1},
	}
}
